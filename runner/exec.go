// Package runner invokes the VM's build system, the VM binary and git as
// opaque subprocesses.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Command is one subprocess invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is what a finished subprocess produced. Stdout and Stderr are
// captured separately; Combined interleaves both in write order.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Combined string
}

// Executor runs a command to completion. A non-zero exit is reported in
// Result, not as an error; errors mean the process could not be run or
// was stopped by ctx.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}

// waitDelay bounds how long Execute waits for output pipes after the
// process is killed, in case a grandchild still holds them open.
const waitDelay = 2 * time.Second

// OSExecutor runs commands with os/exec.
type OSExecutor struct{}

func (OSExecutor) Execute(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	combined := &lockedBuffer{}
	cmd.Stdout = &teeWriter{own: &stdout, shared: combined}
	cmd.Stderr = &teeWriter{own: &stderr, shared: combined}

	err := cmd.Run()
	res := Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s: %w", c, ctxErr)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return res, fmt.Errorf("%s: %w", c, err)
	}
	return res, nil
}

// teeWriter feeds one stream into its own buffer and the shared one.
type teeWriter struct {
	own    *bytes.Buffer
	shared *lockedBuffer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.own.Write(p)
	w.shared.Write(p)
	return len(p), nil
}

// lockedBuffer is written by the stdout and stderr copy goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
