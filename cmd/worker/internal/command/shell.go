package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentwars/arena-api/internal/logger"
)

// Ensure ShellExecutor implements Executor interface.
var _ Executor = (*ShellExecutor)(nil)

// Executes the command via fork / subprocess
type ShellExecutor struct{}

func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{}
}

// capWriter fails the copy once the shared budget is spent. exec surfaces the
// write error from Wait, which aborts the run. exec copies stdout and stderr
// in separate goroutines, so the shared budget must be atomic.
type capWriter struct {
	buf bytes.Buffer
	// nil means unlimited.
	budget *atomic.Int64
}

func (w *capWriter) Write(p []byte) (int, error) {
	if w.budget != nil && w.budget.Add(-int64(len(p))) < 0 {
		return 0, ErrOutputCapExceeded
	}
	return w.buf.Write(p)
}

func (*ShellExecutor) Execute(ctx context.Context, command *Command) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ShellExecutor.Execute", trace.WithAttributes(
		attribute.String("program", command.Program),
		attribute.StringSlice("args", command.Args),
		attribute.String("dir", command.Dir),
	))
	defer span.End()

	if command.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}

	var budget *atomic.Int64
	if command.OutputCap > 0 {
		budget = new(atomic.Int64)
		budget.Store(command.OutputCap)
	}
	stdout := capWriter{budget: budget}
	stderr := capWriter{budget: budget}

	started := time.Now()

	//nolint:gosec // G204: not controllable by sanitizing here; callers should ensure sanitization
	cmd := exec.CommandContext(ctx, command.Program, command.Args...)
	cmd.Stdin = command.Stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = command.Dir
	cmd.Env = command.Env
	cmd.WaitDelay = time.Second
	// Kill the whole process group so children of the command do not outlive
	// the timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	err := cmd.Run()
	elapsed := time.Since(started)

	executed := make([]string, 0, len(command.Args)+1)
	executed = append(executed, command.Program)
	executed = append(executed, command.Args...)

	result := &Result{
		Cmd:      executed,
		Stdout:   stdout.buf.Bytes(),
		Stderr:   stderr.buf.Bytes(),
		ExitCode: -1,
		Elapsed:  elapsed,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if errors.Is(err, ErrOutputCapExceeded) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "command output exceeded cap")
			return result, ErrOutputCapExceeded
		}

		if command.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			span.RecordError(ErrTimeout)
			span.SetStatus(codes.Error, "command timed out")
			return result, ErrTimeout
		}

		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to execute command")
			return nil, err
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(result.Stdout))
	for scanner.Scan() {
		line := scanner.Text()
		logger.Logger.DebugContext(ctx, "stdout", "line", line)
	}
	scanner = bufio.NewScanner(bytes.NewReader(result.Stderr))
	for scanner.Scan() {
		line := scanner.Text()
		logger.Logger.DebugContext(ctx, "stderr", "line", line)
	}

	span.AddEvent("executed", trace.WithAttributes(
		attribute.Int("exitCode", result.ExitCode),
		attribute.String("elapsed", elapsed.String()),
	))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "successfully executed command")
	return result, nil
}
