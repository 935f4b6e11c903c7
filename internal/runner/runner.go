// Package runner executes resolved tool binaries as managed subprocesses.
//
// It is the only place the engine spawns processes. Argument vectors are
// passed verbatim to the OS, there is no shell in between, so targets and
// option values cannot inject commands. Output is captured per stream with
// a byte cap, a wall clock timeout kills the process (and its children, on
// platforms with process groups) and cooperative cancellation arrives
// through the context.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"

	"github.com/reconware/sweeper/internal/model"
)

// DefaultMaxOutput caps each captured stream. Scan reports are bounded, a
// tool exceeding this is misbehaving and gets truncated with a flag.
const DefaultMaxOutput = 8 << 20

const waitDelay = 10 * time.Second

// Command describes one subprocess execution.
type Command struct {
	// Path must be an absolute path to the executable, typically a cached
	// registry resolution.
	Path string
	// Args is the discrete argument vector, never a shell string.
	Args []string
	Env  []string
	Dir  string
	// Timeout bounds the wall clock run time. Zero means no timeout.
	Timeout time.Duration
	// MaxOutput caps each of stdout and stderr in bytes.
	// Zero means DefaultMaxOutput.
	MaxOutput int
}

// Run executes proto and blocks until the process exits, the timeout fires
// or ctx is cancelled.
//
// A process that ran and exited, with whatever code, is a normal result.
// Timeout and cancellation are normal results too, flagged on ExecResult
// with partial output attached. The returned error is reserved for the
// process failing to run at all: model.ErrToolNotFound,
// model.ErrToolNotExecutable or model.ErrSpawn.
func Run(ctx context.Context, proto Command) (model.ExecResult, error) {
	if proto.Path == "" {
		return model.ExecResult{}, fmt.Errorf("%w: empty executable path", model.ErrSpawn)
	}

	maxOutput := proto.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	runCtx := ctx
	if proto.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, proto.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, proto.Path, proto.Args...)
	cmd.Env = proto.Env
	cmd.Dir = proto.Dir
	cmd.WaitDelay = waitDelay

	stdout := &cappedBuffer{max: maxOutput}
	stderr := &cappedBuffer{max: maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	setSysProcAttr(cmd)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return model.ExecResult{}, classifyStartError(proto.Path, err)
	}
	waitErr := cmd.Wait()

	res := model.ExecResult{
		Stdout:          stdout.bytes(),
		Stderr:          stderr.bytes(),
		Duration:        time.Since(started),
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
	}

	// the tie-break between cancellation and timeout: a cancel signal that
	// arrived before the deadline wins, even when both contexts are done
	switch {
	case ctx.Err() != nil:
		res.Cancelled = true
	case runCtx.Err() != nil:
		res.TimedOut = true
	}

	switch {
	case waitErr == nil:
		code := 0
		res.ExitCode = &code
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			if exitErr.ProcessState.Exited() {
				code := exitErr.ProcessState.ExitCode()
				res.ExitCode = &code
			}
			// killed by a signal: no exit code
		} else if !res.Cancelled && !res.TimedOut {
			return res, fmt.Errorf("waiting on %s: %w", proto.Path, errors.Join(model.ErrSpawn, waitErr))
		}
	}

	// a natural exit that raced the cancel signal still reports cancelled,
	// see the switch above; a clean run keeps both flags unset
	return res, nil
}

func classifyStartError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", path, model.ErrToolNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w", path, model.ErrToolNotExecutable)
	}
	return fmt.Errorf("starting %s: %w", path, errors.Join(model.ErrSpawn, err))
}

// cappedBuffer keeps at most max bytes and flags the overflow. Write never
// fails so the subprocess is not killed by a full pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	room := b.max - b.buf.Len()
	if room <= 0 {
		if n > 0 {
			b.truncated = true
		}
		return n, nil
	}
	if n > room {
		p = p[:room]
		b.truncated = true
	}
	b.buf.Write(p)
	return n, nil
}

func (b *cappedBuffer) bytes() []byte {
	return b.buf.Bytes()
}
