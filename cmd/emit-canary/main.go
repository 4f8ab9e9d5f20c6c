// emit-canary writes the fixed TISC JSON canary program that downstream
// VM checks load to confirm they accept the front-end's program format.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/t81dev/t81-lang/canary"

	_ "github.com/tliron/commonlog/simple"
)

const usage = "usage: emit-canary <out-file>"

var errUsage = errors.New(usage)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		digest  bool
		verbose int
	)
	cmd := &cobra.Command{
		Use:   "emit-canary <out-file>",
		Short: "Write the TISC JSON canary program",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return errUsage
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			commonlog.Configure(verbose, nil)
			path := args[0]
			data, err := canary.Emit(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
			if digest {
				sum, err := canary.Digest(data)
				if err != nil {
					return err
				}
				fmt.Fprintln(stdout, sum)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&digest, "digest", false, "also print the canonical sha256 digest")
	cmd.Flags().CountVarP(&verbose, "verbose", "v", "increase log verbosity (repeatable)")
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, usage)
			return 2
		}
		fmt.Fprintf(stderr, "emit-canary: %v\n", err)
		return 1
	}
	return 0
}
