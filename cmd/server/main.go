package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	otellib "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/agentwars/arena-api/cmd/server/internal/routes"
	routesv1 "github.com/agentwars/arena-api/cmd/server/internal/routes/v1"
	"github.com/agentwars/arena-api/internal/config"
	"github.com/agentwars/arena-api/internal/database"
	"github.com/agentwars/arena-api/internal/logger"
	"github.com/agentwars/arena-api/internal/migrations"
	"github.com/agentwars/arena-api/internal/models"
	"github.com/agentwars/arena-api/internal/otel"
	"github.com/agentwars/arena-api/internal/taskrunner"
	"github.com/agentwars/arena-api/internal/upload"
)

const name string = "github.com/agentwars/arena-api/server"

var tracer = otellib.Tracer(name)

type server struct {
	router       *echo.Echo
	config       *config.Config
	db           *gorm.DB
	taskRunner   *taskrunner.Client
	otelShutdown func(context.Context) error
}

// ensureMvpOwner finds or creates the placeholder account that owns every
// submission until real authentication lands.
func ensureMvpOwner(ctx context.Context, db *gorm.DB, email string) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "ensureMvpOwner")
	defer span.End()

	var owner models.User
	err := db.WithContext(ctx).Where("email = ?", email).First(&owner).Error
	if err == nil {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "found existing owner")
		return owner.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to look up owner")
		return uuid.Nil, fmt.Errorf("failed to look up owner: %w", err)
	}

	owner = models.User{
		Email:        email,
		PasswordHash: "MVP_NO_AUTH",
		Role:         "admin",
	}
	err = db.WithContext(ctx).Create(&owner).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create owner")
		return uuid.Nil, fmt.Errorf("failed to create owner: %w", err)
	}

	span.AddEvent("created placeholder owner")
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created owner")
	return owner.ID, nil
}

func initServer(ctx context.Context) (*server, error) {
	server := new(server)

	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server config: %w", err)
	}
	server.config = cfg

	shutdownOTel, err := otel.SetupOTelSDK(ctx, cfg.Logging.UseOTLP)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTEL SDK: %w", err)
	}
	defer func() {
		// Something failed to initialize, make sure everything gets flushed to the server
		if server.otelShutdown == nil {
			otelShutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				time.Second*time.Duration(cfg.GracefulShutdownSecs),
			)
			defer cancel()

			if err = shutdownOTel(otelShutdownCtx); err != nil {
				logger.Logger.Error("failed to flush otel data", "error", err)
			}
		}
	}()

	ctx, span := tracer.Start(ctx, "initServer")
	defer span.End()

	logger.LogLevel.Set(slog.Level(cfg.Logging.App.Level))

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to connect to database")
		return nil, err
	}

	err = migrations.Up(ctx, db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to perform database migrations")
		return nil, fmt.Errorf("failed to perform database migrations: %w", err)
	}

	span.AddEvent("migrated database to latest version")

	ownerID, err := ensureMvpOwner(ctx, db, cfg.Arena.OwnerEmail)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to ensure placeholder owner")
		return nil, err
	}

	span.AddEvent("ensured placeholder owner")

	var archiver upload.Uploader
	if cfg.S3Archive != nil && cfg.S3Archive.Enabled {
		minioUploader, err := upload.NewMinioUploader(
			cfg.S3Archive.Endpoint,
			cfg.S3Archive.AccessKeyID,
			cfg.S3Archive.SecretAccessKey,
			cfg.S3Archive.SSLEnabled,
			cfg.S3Archive.BucketName,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct archiver")
			return nil, err
		}
		archiver = upload.NewRetryUploader(minioUploader)

		span.AddEvent("initialized submission archiver")
	}

	taskRunnerClient := taskrunner.Create()

	e, err := routes.BuildEcho(logger.Logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error building router")
		return nil, fmt.Errorf("error building router: %w", err)
	}

	span.AddEvent("created echo router")

	v1Handler := routesv1.NewHandler(db, taskRunnerClient, cfg, archiver, ownerID)
	v1Handler.AddRoutes(e)

	server.otelShutdown = shutdownOTel
	server.router = e
	server.db = db
	server.taskRunner = taskRunnerClient

	return server, nil
}

func (s *server) Start(_ context.Context) error {
	logger.Logger.Info("Starting services...")

	err := s.router.Start(s.config.ListenAddress)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *server) Shutdown() error {
	var errs error

	ctx, cancelTimeout := context.WithTimeout(
		context.Background(),
		time.Second*time.Duration(s.config.GracefulShutdownSecs),
	)
	defer cancelTimeout()

	if err := s.router.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, err)
	}

	if err := s.taskRunner.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to shutdown taskRunner gracefully: %w", err))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		errs = errors.Join(errs, sqlDB.Close())
	}

	if s.otelShutdown != nil {
		errs = errors.Join(errs, s.otelShutdown(ctx))
	}

	return errs
}

func main() {
	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)

	logger.InitSlog()

	server, err := initServer(ctx)
	if err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	errch := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Got shutdown signal!")
		errch <- server.Shutdown()
		close(errch)
	}()

	if err := server.Start(ctx); err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	if err := <-errch; err != nil {
		logger.Logger.Error("Error shutting down server", "error", err)
	}

	cancelSignal()
}
