// Package smoke builds the VM and runs two fixed vectors against it: one
// that must succeed with a committed state hash, one that must fault.
package smoke

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/t81dev/t81-lang/failure"
	"github.com/t81dev/t81-lang/runner"
)

var log = commonlog.GetLogger("t81compat.smoke")

// Output markers the VM must print.
const (
	StateHashMarker = "STATE_HASH "
	FaultMarker     = "FAULT"
)

// Default vector locations, relative to the VM repository root.
var (
	DefaultSuccessVector = filepath.Join("tests", "harness", "test_vectors", "arithmetic.t81")
	DefaultFaultVector   = filepath.Join("tests", "harness", "test_vectors", "faults.t81")
)

// State is the progress of a smoke run.
type State int

const (
	NotStarted State = iota
	Built
	BinaryLocated
	SuccessVectorVerified
	FaultVectorVerified
	Passed
	Failed
)

var stateNames = [...]string{
	NotStarted:            "NotStarted",
	Built:                 "Built",
	BinaryLocated:         "BinaryLocated",
	SuccessVectorVerified: "SuccessVectorVerified",
	FaultVectorVerified:   "FaultVectorVerified",
	Passed:                "Passed",
	Failed:                "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Runner is the subset of *runner.Runner a smoke run needs.
type Runner interface {
	Build(ctx context.Context) error
	LocateBinary() (string, error)
	RunVector(ctx context.Context, bin, program string) (runner.Result, error)
}

// Vectors names the two test programs.
type Vectors struct {
	Success string
	Fault   string
}

// Report is the evidence collected by a passing run.
type Report struct {
	Binary string
	// StateHash is the token following STATE_HASH in the success output.
	StateHash string
	// FaultLine is the first stderr line of the fault run carrying FAULT.
	FaultLine string
}

// Validator runs the smoke sequence once.
type Validator struct {
	runner  Runner
	vectors Vectors
	state   State
	failure error
}

// NewValidator creates a validator over r for the given vectors.
func NewValidator(r Runner, vectors Vectors) *Validator {
	return &Validator{runner: r, vectors: vectors}
}

// State returns the current state.
func (v *Validator) State() State {
	return v.state
}

// Err returns the failure that moved the validator to Failed, if any.
func (v *Validator) Err() error {
	return v.failure
}

// Run executes build, binary location, the success vector and the fault
// vector in order. The first failed check aborts the run.
func (v *Validator) Run(ctx context.Context) (*Report, error) {
	if v.state != NotStarted {
		return nil, fmt.Errorf("smoke: validator already used (state %s)", v.state)
	}

	if err := v.runner.Build(ctx); err != nil {
		return nil, v.fail(err)
	}
	v.advance(Built)

	bin, err := v.runner.LocateBinary()
	if err != nil {
		return nil, v.fail(err)
	}
	v.advance(BinaryLocated)
	report := &Report{Binary: bin}

	report.StateHash, err = v.checkSuccess(ctx, bin)
	if err != nil {
		return nil, v.fail(err)
	}
	v.advance(SuccessVectorVerified)

	report.FaultLine, err = v.checkFault(ctx, bin)
	if err != nil {
		return nil, v.fail(err)
	}
	v.advance(FaultVectorVerified)

	v.advance(Passed)
	return report, nil
}

func (v *Validator) checkSuccess(ctx context.Context, bin string) (string, error) {
	name := filepath.Base(v.vectors.Success)
	res, err := v.runner.RunVector(ctx, bin, v.vectors.Success)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", failure.Newf(failure.UnexpectedFailure,
			"Expected success running %s (exit %d): %s", name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	hash, ok := stateHash(res.Stdout)
	if !ok {
		return "", failure.Newf(failure.MissingExpectedOutput, "Expected STATE_HASH in VM snapshot output of %s", name)
	}
	return hash, nil
}

func (v *Validator) checkFault(ctx context.Context, bin string) (string, error) {
	name := filepath.Base(v.vectors.Fault)
	res, err := v.runner.RunVector(ctx, bin, v.vectors.Fault)
	if err != nil {
		return "", err
	}
	if res.ExitCode == 0 {
		return "", failure.Newf(failure.UnexpectedSuccess, "Expected fault running %s", name)
	}
	line, ok := faultLine(res.Stderr)
	if !ok {
		return "", failure.Newf(failure.MissingFaultMarker, "Expected FAULT marker in stderr for fault vector %s", name)
	}
	return line, nil
}

func (v *Validator) advance(s State) {
	log.Debugf("smoke: %s -> %s", v.state, s)
	v.state = s
}

func (v *Validator) fail(err error) error {
	log.Debugf("smoke: %s -> %s", v.state, Failed)
	v.state = Failed
	v.failure = err
	return err
}

// stateHash finds the STATE_HASH marker in stdout and returns the token
// after it. A marker followed by nothing still counts as present.
func stateHash(stdout string) (string, bool) {
	i := strings.Index(stdout, StateHashMarker)
	if i < 0 {
		return "", false
	}
	rest := stdout[i+len(StateHashMarker):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", true
	}
	return fields[0], true
}

func faultLine(stderr string) (string, bool) {
	if !strings.Contains(stderr, FaultMarker) {
		return "", false
	}
	for _, line := range strings.Split(stderr, "\n") {
		if strings.Contains(line, FaultMarker) {
			return strings.TrimSpace(line), true
		}
	}
	return "", true
}
