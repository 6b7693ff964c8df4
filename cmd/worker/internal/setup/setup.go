package setup

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentwars/arena-api/cmd/worker/internal/command"
)

var tracer = otel.Tracer(
	"github.com/agentwars/arena-api/worker/internal/setup",
)

const (
	commandTimeout = time.Second * 90
	// Hard per-command ceiling, well above the stored log cap. A command that
	// floods past this fails instead of flooding the worker.
	commandOutputCap = 1 << 20

	// LogCap bounds the stored setup log.
	LogCap            = 20000
	truncationMarker  = "\n...TRUNCATED"
	commandsSeparator = "---\n"
)

// allowedEnv is the only worker environment forwarded to setup commands. The
// declared commands are untrusted input, they never see worker credentials.
var allowedEnv = []string{"PATH", "HOME", "LANG", "TMPDIR", "USER"}

type Outcome struct {
	// Attempted is false only when no commands were declared.
	Attempted bool
	// AllOk is true when every declared command exited zero. Vacuously true
	// when nothing was attempted.
	AllOk bool
	// Log concatenates every command's entry in invocation order, capped at
	// LogCap with a truncation marker.
	Log string
}

//go:generate mockgen -destination ./mock/mock.go -package mock . Runner

type Runner interface {
	RunAll(ctx context.Context, workingDir string, commands []string) Outcome
}

// Ensure ShellRunner implements Runner interface.
var _ Runner = (*ShellRunner)(nil)

// ShellRunner runs each declared setup command through `bash -lc` in the
// fetched repository. A failing command never aborts the remaining ones.
type ShellRunner struct {
	executor command.Executor
}

func NewShellRunner(executor command.Executor) *ShellRunner {
	return &ShellRunner{executor: executor}
}

func commandEnv() []string {
	env := make([]string, 0, len(allowedEnv)+3)
	for _, key := range allowedEnv {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	env = append(env,
		"CI=1",
		"NODE_ENV=production",
		"DEBIAN_FRONTEND=noninteractive",
	)
	return env
}

func (r *ShellRunner) RunAll(
	ctx context.Context,
	workingDir string,
	commands []string,
) Outcome {
	ctx, span := tracer.Start(ctx, "ShellRunner.RunAll", trace.WithAttributes(
		attribute.String("dir", workingDir),
		attribute.Int("commandCount", len(commands)),
	))
	defer span.End()

	if len(commands) == 0 {
		span.AddEvent("no setup commands declared")
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "nothing to run")
		return Outcome{Attempted: false, AllOk: true, Log: ""}
	}

	env := commandEnv()
	allOk := true
	var log strings.Builder

	for _, declared := range commands {
		cmd := command.New("bash", "-lc", declared)
		cmd.Dir = workingDir
		cmd.Env = env
		cmd.Timeout = commandTimeout
		cmd.OutputCap = commandOutputCap

		result, err := r.executor.Execute(ctx, cmd)

		fmt.Fprintf(&log, "$ %s\n", declared)
		if result != nil {
			log.Write(result.Stdout)
			log.Write(result.Stderr)
		}
		switch {
		case err != nil:
			allOk = false
			fmt.Fprintf(&log, "error: %s\n", err)
		case result.ExitCode != 0:
			allOk = false
			fmt.Fprintf(&log, "exit status %d\n", result.ExitCode)
		}
		if result != nil {
			fmt.Fprintf(&log, "(elapsed %s)\n", result.Elapsed.Round(time.Millisecond))
		}
		log.WriteString(commandsSeparator)
	}

	capped := log.String()
	if len(capped) > LogCap {
		capped = capped[:LogCap] + truncationMarker
	}

	span.SetAttributes(
		attribute.Bool("allOk", allOk),
		attribute.Int("logSize", len(capped)),
	)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "ran setup commands")
	return Outcome{Attempted: true, AllOk: allOk, Log: capped}
}
