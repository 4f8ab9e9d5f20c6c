// Package runnertest provides a scripted runner.Executor for tests.
package runnertest

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/t81dev/t81-lang/runner"
)

// Response is what the fake returns for a matched command.
type Response struct {
	Result runner.Result
	Err    error
}

// Exit returns a Response for a process that exited with code and wrote
// stdout and stderr.
func Exit(code int, stdout, stderr string) Response {
	return Response{Result: runner.Result{
		ExitCode: code,
		Stdout:   stdout,
		Stderr:   stderr,
		Combined: stdout + stderr,
	}}
}

type rule struct {
	match func(runner.Command) bool
	resp  Response
}

// Executor answers commands from a list of rules; the first matching rule
// wins and unmatched commands exit 0 with no output. Every call is
// recorded in Calls.
type Executor struct {
	rules []rule
	Calls []runner.Command
}

// New returns an empty fake.
func New() *Executor {
	return &Executor{}
}

// On adds a rule for commands accepted by match.
func (e *Executor) On(match func(runner.Command) bool, resp Response) *Executor {
	e.rules = append(e.rules, rule{match: match, resp: resp})
	return e
}

// OnName answers commands whose program is name.
func (e *Executor) OnName(name string, resp Response) *Executor {
	return e.On(func(c runner.Command) bool { return c.Name == name }, resp)
}

// OnProgram answers VM runs whose last argument has the given base name.
func (e *Executor) OnProgram(base string, resp Response) *Executor {
	return e.On(func(c runner.Command) bool {
		return len(c.Args) > 0 && filepath.Base(c.Args[len(c.Args)-1]) == base
	}, resp)
}

func (e *Executor) Execute(ctx context.Context, c runner.Command) (runner.Result, error) {
	c.Args = slices.Clone(c.Args)
	e.Calls = append(e.Calls, c)
	if err := ctx.Err(); err != nil {
		return runner.Result{ExitCode: -1}, err
	}
	for _, r := range e.rules {
		if r.match(c) {
			return r.resp.Result, r.resp.Err
		}
	}
	return runner.Result{}, nil
}

// Names returns the program names of all recorded calls, in order.
func (e *Executor) Names() []string {
	names := make([]string, 0, len(e.Calls))
	for _, c := range e.Calls {
		names = append(names, filepath.Base(c.Name))
	}
	return names
}
