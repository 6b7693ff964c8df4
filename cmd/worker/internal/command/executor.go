package command

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer(
	"github.com/agentwars/arena-api/worker/internal/command",
)

// ErrTimeout is returned when a command's own Timeout elapsed before it
// exited. The process group is killed, no orphans survive the run.
var ErrTimeout = errors.New("command timed out")

// ErrOutputCapExceeded is returned when a command produced more combined
// stdout/stderr bytes than OutputCap allows. The run fails rather than
// silently truncating, callers that want truncated logs trim afterwards.
var ErrOutputCapExceeded = errors.New("command output exceeded cap")

type Result struct {
	Cmd      []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
}

type Command struct {
	Stdin   io.Reader
	Program string
	Args    []string
	// Dir is the working directory. Empty means the caller's.
	Dir string
	// Env replaces the environment entirely when non-nil. Untrusted commands
	// get a filtered environment, never the worker's.
	Env []string
	// Timeout bounds the run when positive.
	Timeout time.Duration
	// OutputCap bounds combined stdout+stderr bytes when positive.
	OutputCap int64
}

func New(program string, args ...string) *Command {
	return &Command{
		Program: program,
		Args:    args,
	}
}

//go:generate mockgen -destination ./mock/mock.go -package mock . Executor

type Executor interface {
	// Execute runs cmd to completion. A non-zero exit code is a Result, not
	// an error. On ErrTimeout and ErrOutputCapExceeded the partial Result is
	// returned alongside the error.
	Execute(ctx context.Context, cmd *Command) (*Result, error)
}
