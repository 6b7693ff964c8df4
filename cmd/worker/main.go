package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentwars/arena-api/cmd/worker/cmds"
	"github.com/agentwars/arena-api/internal/logger"
	otelarena "github.com/agentwars/arena-api/internal/otel"
	"github.com/agentwars/arena-api/internal/types"
	"github.com/agentwars/arena-api/internal/workererrors"
)

var tracer = otel.Tracer("github.com/agentwars/arena-api/worker")

func runApp(ctx context.Context) int {
	useOTLP, err := strconv.ParseBool(os.Getenv("USE_OTLP"))
	if err != nil {
		logger.Logger.Warn("USE_OTLP env var is invalid", "error", err)
		useOTLP = false
	}

	shutdown, err := otelarena.SetupOTelSDK(ctx, useOTLP)
	if err != nil {
		logger.Logger.Warn("failed to setup otel sdk")
	}
	defer func() {
		fail := shutdown(ctx)
		if fail != nil {
			logger.Logger.Warn("no clean shutdown for otel", "error", fail)
		}
	}()

	carrier := otelarena.CreateEnvCarrier()
	extractedContext := otel.GetTextMapPropagator().Extract(context.Background(), carrier)
	ctx, span := tracer.Start(
		ctx,
		"Worker",
		trace.WithNewRoot(),
		trace.WithLinks(trace.LinkFromContext(extractedContext)),
	)
	defer span.End()

	err = cmds.Execute(ctx)
	if err != nil {
		logger.Logger.Error("error executing subcommands", "error", err)

		var ee workererrors.ExitError
		if errors.As(err, &ee) {
			return ee.Code
		}
		return types.ExitErrored
	}

	return 0
}

func main() {
	logger.LogLevel.Set(slog.LevelDebug)
	logger.InitSlog()

	// Loop mode shuts down between rounds on SIGTERM/SIGINT.
	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)

	code := runApp(ctx)
	cancelSignal()
	os.Exit(code)
}
