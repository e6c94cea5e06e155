package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <type> <key>",
		Short: "Check the version chain of an object",
		Long: `Check that every version of an object replaces the one before it,
that sequences increase, that only the latest version is current, and that
association windows are well formed.

Exits 1 when a problem is found.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runVerify(opts *RootOptions, typeName, keyArg string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.versionedType(typeName); err != nil {
		return err
	}
	key, err := s.parseKey(keyArg)
	if err != nil {
		return err
	}

	report, err := s.engine.VerifyChain(cmd.Context(), typeName, key)
	if err != nil {
		exit := ExitCommandError
		if code := errorCodeFor(err); code == ErrCodeNotFound {
			exit = ExitFailure
		}
		return s.out.Fail(exit, errorCodeFor(err), err)
	}

	if s.out.Format == "json" {
		if report.OK() {
			return s.out.Success(report)
		}
		_ = s.out.Error(ErrCodeChain, "version chain is broken", report)
		return NewExitError(ExitFailure, fmt.Sprintf("%d chain problem(s)", len(report.Problems)))
	}

	if report.OK() {
		fmt.Fprintf(s.out.Writer, "%s %s %s: %d version(s), chain intact\n", okMark(), typeName, key, report.Versions)
		return nil
	}
	fmt.Fprintf(s.out.Writer, "%s %s %s: chain is broken\n", failMark(), typeName, key)
	for _, p := range report.Problems {
		fmt.Fprintf(s.out.Writer, "  %s\n", p)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d chain problem(s)", len(report.Problems)))
}
