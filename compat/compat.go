// Package compat runs one complete t81-lang / t81-vm compatibility pass:
// contract load, contract validation, VM build and the smoke vectors.
package compat

import (
	"context"

	"github.com/tliron/commonlog"

	"github.com/t81dev/t81-lang/config"
	"github.com/t81dev/t81-lang/contract"
	"github.com/t81dev/t81-lang/failure"
	"github.com/t81dev/t81-lang/receipt"
	"github.com/t81dev/t81-lang/runner"
	"github.com/t81dev/t81-lang/smoke"
)

var log = commonlog.GetLogger("t81compat")

// SuccessLine is printed by the CLI after a passing run.
const SuccessLine = "t81-lang vm compatibility check: ok"

// Options adjusts a pass.
type Options struct {
	// Executor runs subprocesses; nil selects runner.OSExecutor.
	Executor runner.Executor
	// ReceiptPath, when set, receives a receipt of the passing run.
	ReceiptPath string
}

// Outcome is what a passing run established.
type Outcome struct {
	Local    *contract.Local
	External *contract.External
	Lane     contract.Lane
	Smoke    *smoke.Report
	Receipt  *receipt.Receipt
}

// Run executes the whole pass. The first failure aborts it and is
// returned as a *failure.Error.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Outcome, error) {
	runOpts, err := cfg.RunnerOptions()
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckVMDir(); err != nil {
		return nil, err
	}
	r := runner.New(opts.Executor, runOpts)
	lane := cfg.LaneMode()
	log.Infof("checking %s against %s (lane %s)", cfg.Root, r.Dir(), lane)

	local, err := contract.LoadLocal(cfg.LocalContractPath())
	if err != nil {
		return nil, err
	}
	ext, err := contract.LoadExternal(cfg.ExternalContractPath())
	if err != nil {
		return nil, err
	}
	if err := contract.NewValidator(lane, r).Validate(ctx, local, ext); err != nil {
		return nil, err
	}

	v := smoke.NewValidator(r, smoke.Vectors{
		Success: cfg.SuccessVector(),
		Fault:   cfg.FaultVector(),
	})
	report, err := v.Run(ctx)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Local: local, External: ext, Lane: lane, Smoke: report}
	if opts.ReceiptPath != "" {
		out.Receipt = newReceipt(ctx, r, out)
		if err := receipt.Write(opts.ReceiptPath, out.Receipt); err != nil {
			return nil, failure.Wrapf(failure.EnvironmentError, err, "cannot write receipt")
		}
		log.Infof("receipt %s written to %s", out.Receipt.RunID, opts.ReceiptPath)
	}
	return out, nil
}

func newReceipt(ctx context.Context, r *runner.Runner, out *Outcome) *receipt.Receipt {
	rec := receipt.New()
	rec.ContractVersion = out.External.ContractVersion.Trimmed()
	rec.Lane = out.Lane.String()
	rec.Binary = out.Smoke.Binary
	rec.StateHash = out.Smoke.StateHash
	rec.FaultLine = out.Smoke.FaultLine

	// The revision is evidence only; a checkout without git still passes.
	if rev, err := r.Revision(ctx); err == nil {
		rec.VMRevision = rev
	} else {
		log.Warningf("VM revision unavailable for receipt: %v", err)
	}
	return rec
}
