package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitResult is the JSON payload of the init command.
type InitResult struct {
	Driver        string `json:"driver"`
	DSN           string `json:"dsn"`
	SchemaVersion int    `json:"schema_version"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the database schema",
		Long: `Open the configured database and apply the vstore schema.

Safe to run repeatedly: existing tables are left in place.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	version, err := s.store.SchemaVersion(cmd.Context())
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeStorage, err)
	}
	result := InitResult{Driver: s.cfg.Database.Driver, DSN: s.cfg.Database.DSN, SchemaVersion: version}
	if s.out.Format == "json" {
		return s.out.Success(result)
	}
	fmt.Fprintf(s.out.Writer, "%s schema version %d ready (%s %s)\n", okMark(), version, result.Driver, result.DSN)
	return nil
}
