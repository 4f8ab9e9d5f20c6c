package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/t81dev/t81-lang/failure"
)

var log = commonlog.GetLogger("t81compat.runner")

// Defaults matching the t81-vm repository layout.
var (
	DefaultBuild    = []string{"make", "build-check"}
	DefaultBinary   = filepath.Join("build", "t81vm")
	DefaultRunFlags = []string{"--trace", "--snapshot"}
)

// Options configures a Runner. Zero values select the defaults above.
type Options struct {
	// Dir is the VM repository root; every command runs there.
	Dir      string
	Build    []string
	Binary   string // relative to Dir unless absolute
	RunFlags []string
	// Timeout bounds each subprocess. Zero means no limit.
	Timeout time.Duration
}

// Runner drives the VM repository through an Executor.
type Runner struct {
	exec Executor
	opts Options
}

// New creates a Runner. A nil exec selects OSExecutor.
func New(exec Executor, opts Options) *Runner {
	if exec == nil {
		exec = OSExecutor{}
	}
	if len(opts.Build) == 0 {
		opts.Build = DefaultBuild
	}
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.RunFlags == nil {
		opts.RunFlags = DefaultRunFlags
	}
	return &Runner{exec: exec, opts: opts}
}

// Dir returns the VM repository root.
func (r *Runner) Dir() string {
	return r.opts.Dir
}

// Build runs the VM build action and fails with BuildFailed, carrying the
// combined output, on a non-zero exit.
func (r *Runner) Build(ctx context.Context) error {
	cmd := Command{Name: r.opts.Build[0], Args: r.opts.Build[1:], Dir: r.opts.Dir}
	log.Infof("building VM: %s (in %s)", cmd, cmd.Dir)

	res, err := r.run(ctx, cmd)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return failure.Newf(failure.BuildFailed, "Command failed (%d): %s\n%s",
			res.ExitCode, cmd, strings.TrimRight(res.Combined, "\n"))
	}
	return nil
}

// BinaryPath returns where the built VM binary is expected.
func (r *Runner) BinaryPath() string {
	if filepath.IsAbs(r.opts.Binary) {
		return r.opts.Binary
	}
	return filepath.Join(r.opts.Dir, r.opts.Binary)
}

// LocateBinary verifies the built VM binary exists.
func (r *Runner) LocateBinary() (string, error) {
	bin := r.BinaryPath()
	info, err := os.Stat(bin)
	if err != nil {
		return "", failure.Newf(failure.MissingArtifact, "Expected VM binary not found: %s", bin)
	}
	if info.IsDir() {
		return "", failure.Newf(failure.MissingArtifact, "Expected VM binary is a directory: %s", bin)
	}
	log.Debugf("VM binary at %s", bin)
	return bin, nil
}

// RunVector runs the VM binary on one program with tracing and a final
// state snapshot requested.
func (r *Runner) RunVector(ctx context.Context, bin, program string) (Result, error) {
	args := append(append([]string(nil), r.opts.RunFlags...), program)
	cmd := Command{Name: bin, Args: args, Dir: r.opts.Dir}
	log.Infof("running %s", filepath.Base(program))

	res, err := r.run(ctx, cmd)
	if err != nil {
		return res, err
	}
	log.Debugf("%s exited %d (stdout %d bytes, stderr %d bytes)",
		filepath.Base(program), res.ExitCode, len(res.Stdout), len(res.Stderr))
	return res, nil
}

// Revision returns the VM repository's current git revision.
func (r *Runner) Revision(ctx context.Context) (string, error) {
	cmd := Command{Name: "git", Args: []string{"rev-parse", "HEAD"}, Dir: r.opts.Dir}
	res, err := r.run(ctx, cmd)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", failure.Newf(failure.EnvironmentError, "git rev-parse HEAD in %s: exit %d: %s",
			r.opts.Dir, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// run executes cmd under the per-step timeout and classifies errors.
func (r *Runner) run(ctx context.Context, cmd Command) (Result, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	log.Debugf("exec: %s", cmd)

	res, err := r.exec.Execute(ctx, cmd)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, context.DeadlineExceeded):
		if r.opts.Timeout > 0 {
			return res, failure.Wrapf(failure.Timeout, err, "%s did not finish within %s", cmd, r.opts.Timeout)
		}
		return res, failure.Wrapf(failure.Timeout, err, "%s did not finish before the deadline", cmd)
	case failure.KindOf(err) != failure.Unknown:
		return res, err
	default:
		return res, failure.Wrapf(failure.EnvironmentError, err, "cannot run %s", cmd)
	}
}
