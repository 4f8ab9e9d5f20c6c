// vmcompat checks that the t81-vm checkout next to this front-end still
// honors the runtime contract: contract documents, lane pin, opcode and
// format floors, then a build and two smoke vectors.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/t81dev/t81-lang/compat"
	"github.com/t81dev/t81-lang/config"
	"github.com/t81dev/t81-lang/failure"
	"github.com/t81dev/t81-lang/runner"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("t81compat.cli")

type options struct {
	root    string
	config  string
	receipt string
	lane    string
	vmDir   string
	verbose int
}

// app carries the process environment so tests can substitute it.
type app struct {
	stdout, stderr io.Writer
	getenv         func(string) string
	executor       runner.Executor
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv}
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (a *app) run(ctx context.Context, args []string) int {
	cmd := a.command()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		kind := failure.KindOf(err)
		if kind == failure.Unknown {
			// Flag and argument errors from cobra.
			fmt.Fprintf(a.stderr, "vmcompat: %v\n%s", err, cmd.UsageString())
			return 2
		}
		log.Debugf("check failed: %v", err)
		fmt.Fprintf(a.stderr, "vmcompat: %s: %v\n", kind, err)
		return 1
	}
	return 0
}

func (a *app) command() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "vmcompat",
		Short: "Verify the t81-vm checkout against the t81-lang runtime contract",
		Long: `Loads contracts/runtime-contract.json and the VM's
docs/contracts/vm-compatibility.json, validates version, lane pin, opcodes and
program formats, then builds the VM and runs the arithmetic and fault vectors.

Environment:
  T81_VM_DIR          VM checkout (default ../t81-vm)
  VM_COMPAT_LANE      "pinned" to require vm_main_pin
  T81_VM_TIMEOUT      limit per subprocess, e.g. 5m ("0" disables)
  T81_COMPAT_VERBOSE  log verbosity`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.check(cmd.Context(), cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.root, "root", ".", "front-end repository root, or a directory below it")
	f.StringVar(&opts.config, "config", "", "configuration file (default: "+config.FileName+" at the root)")
	f.StringVar(&opts.receipt, "receipt", "", "write a CBOR receipt of a passing run to `path`")
	f.StringVar(&opts.lane, "lane", "", "lane override: default or pinned")
	f.StringVar(&opts.vmDir, "vm-dir", "", "VM checkout override")
	f.CountVarP(&opts.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	return cmd
}

func (a *app) check(ctx context.Context, cmd *cobra.Command, opts *options) error {
	cfg, err := a.loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	commonlog.Configure(cfg.Verbose, nil)
	if cfg.File != "" {
		log.Infof("using %s", cfg.File)
	}

	if _, err := compat.Run(ctx, cfg, compat.Options{
		Executor:    a.executor,
		ReceiptPath: opts.receipt,
	}); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, compat.SuccessLine)
	return nil
}

// loadConfig layers defaults, the configuration file, the environment and
// finally explicit flags.
func (a *app) loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.config != "" {
		root, absErr := filepath.Abs(opts.root)
		if absErr != nil {
			return nil, failure.Wrapf(failure.ConfigurationError, absErr, "--root %s", opts.root)
		}
		cfg, err = config.LoadFile(root, opts.config)
	} else {
		cfg, err = config.FindAndLoad(opts.root)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(a.getenv); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("lane") {
		cfg.Lane = opts.lane
	}
	if cmd.Flags().Changed("vm-dir") {
		dir, err := filepath.Abs(opts.vmDir)
		if err != nil {
			return nil, failure.Wrapf(failure.ConfigurationError, err, "--vm-dir %s", opts.vmDir)
		}
		cfg.VM.Dir = dir
	}
	if opts.verbose > 0 {
		cfg.Verbose = opts.verbose
	}
	return cfg, nil
}
