package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/codeagent/internal/config"
)

// Outcome classifies how a command run ended.
type Outcome string

const (
	// OutcomeCompleted means the command ran to completion; ExitCode tells
	// whether it succeeded.
	OutcomeCompleted Outcome = "completed"
	// OutcomeRejected means the validator denied the command before any
	// process was spawned.
	OutcomeRejected Outcome = "rejected"
	// OutcomeTimeout means the command was killed after exceeding its
	// timeout; captured output up to that point is preserved.
	OutcomeTimeout Outcome = "timeout"
)

// timeoutExitCode mirrors the conventional shell exit status for timeouts.
const timeoutExitCode = 124

// Request describes one command execution.
type Request struct {
	Command string
	Dir     string        // Working directory; defaults to the validator root
	Timeout time.Duration // Zero means the configured default
}

// Result is the immutable record of one command execution.
type Result struct {
	Outcome  Outcome
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Failed reports whether the run ended in anything other than a clean exit.
func (r Result) Failed() bool {
	return r.Outcome != OutcomeCompleted || r.ExitCode != 0
}

// Executor runs validated shell commands with a timeout and bounded output
// capture. It is safe for concurrent use.
type Executor struct {
	validator      *Validator
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	outputLimit    int
	logger         *logging.Logger
}

// NewExecutor creates an executor enforcing the given sandbox settings.
func NewExecutor(v *Validator, cfg config.SandboxConfig) *Executor {
	return &Executor{
		validator:      v,
		defaultTimeout: time.Duration(cfg.DefaultTimeout) * time.Second,
		maxTimeout:     time.Duration(cfg.MaxTimeout) * time.Second,
		outputLimit:    cfg.OutputLimit,
		logger:         logging.New().WithComponent("sandbox"),
	}
}

// Run validates and executes one command. Denied commands never spawn a
// process; they come back as OutcomeRejected with the reason in Stderr.
func (e *Executor) Run(ctx context.Context, req Request) Result {
	start := time.Now()

	cwd := req.Dir
	if cwd == "" {
		cwd = e.validator.Root()
	}

	if err := e.validator.Validate(req.Command, cwd); err != nil {
		e.logger.Warn("command rejected", map[string]interface{}{
			"command": req.Command,
			"reason":  err.Error(),
		})
		return Result{
			Outcome:  OutcomeRejected,
			ExitCode: 1,
			Stderr:   err.Error(),
			Duration: time.Since(start),
		}
	}

	timeout := e.clampTimeout(req.Timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := &cappedBuffer{limit: e.outputLimit}
	stderr := &cappedBuffer{limit: e.outputLimit}

	cmd := exec.CommandContext(ctx, "bash", "-c", req.Command)
	cmd.Dir = cwd
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureCommandProcess(cmd)
	cmd.Cancel = func() error {
		terminateCommandProcess(cmd)
		return nil
	}

	runErr := cmd.Run()
	duration := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		e.logger.Warn("command timed out", map[string]interface{}{
			"command": req.Command,
			"timeout": timeout.String(),
		})
		// Output captured before the kill is preserved on both streams; the
		// timeout note is appended, never a replacement.
		errOut := stderr.String()
		note := fmt.Sprintf("command timed out after %s", timeout)
		if errOut != "" {
			errOut += "\n" + note
		} else {
			errOut = note
		}
		return Result{
			Outcome:  OutcomeTimeout,
			ExitCode: timeoutExitCode,
			Stdout:   stdout.String(),
			Stderr:   errOut,
			Duration: duration,
		}
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// The command never started (bash missing, bad dir, ...).
			return Result{
				Outcome:  OutcomeCompleted,
				ExitCode: 1,
				Stderr:   fmt.Sprintf("command failed to start: %v", runErr),
				Duration: duration,
			}
		}
	}

	e.logger.Debug("command completed", map[string]interface{}{
		"command":  req.Command,
		"exit":     exitCode,
		"duration": duration.String(),
	})

	return Result{
		Outcome:  OutcomeCompleted,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}
}

// clampTimeout applies the default and the configured ceiling, with a one
// second floor.
func (e *Executor) clampTimeout(requested time.Duration) time.Duration {
	timeout := requested
	if timeout == 0 {
		timeout = e.defaultTimeout
	}
	if timeout < time.Second {
		timeout = time.Second
	}
	if timeout > e.maxTimeout {
		timeout = e.maxTimeout
	}
	return timeout
}

// cappedBuffer captures up to limit bytes and counts the rest, so a chatty
// command cannot blow up memory or downstream token usage.
type cappedBuffer struct {
	limit   int
	buf     bytes.Buffer
	dropped int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			p = p[:room]
		}
		b.buf.Write(p)
		b.dropped += n - len(p)
	} else {
		b.dropped += n
	}
	return n, nil
}

func (b *cappedBuffer) String() string {
	if b.dropped == 0 {
		return b.buf.String()
	}
	return fmt.Sprintf("%s\n... [%d bytes truncated]", b.buf.String(), b.dropped)
}
