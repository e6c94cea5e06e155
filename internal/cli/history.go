package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/vstore/internal/model"
)

// VersionSummary is one line of the history command.
type VersionSummary struct {
	Sequence       int64      `json:"sequence"`
	VersionKey     uuid.UUID  `json:"version_key"`
	Replaces       *uuid.UUID `json:"replaces,omitempty"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	CreationTime   time.Time  `json:"creation_time"`
	ObsoletionTime *time.Time `json:"obsoletion_time,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <type> <key>",
		Short: "List every version of an object",
		Long: `List the stored versions of a versioned object, oldest first.

Example:
  vstore history Patient 0f8fad5b-d9cb-469f-a165-70867728950e`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runHistory(opts *RootOptions, typeName, keyArg string, cmd *cobra.Command) error {
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

	versions, err := s.engine.History(cmd.Context(), typeName, key)
	if err != nil {
		return s.out.Fail(ExitCommandError, errorCodeFor(err), err)
	}
	if len(versions) == 0 {
		return s.out.Fail(ExitFailure, ErrCodeNotFound, fmt.Errorf("%s %s not found", typeName, key))
	}

	summaries := make([]VersionSummary, 0, len(versions))
	for _, obj := range versions {
		v := obj.(model.VersionedObject).Version()
		summaries = append(summaries, VersionSummary{
			Sequence:       v.VersionSequence,
			VersionKey:     v.VersionKey,
			Replaces:       v.PreviousVersionKey,
			CreatedBy:      v.CreatedByKey,
			CreationTime:   v.CreationTime,
			ObsoletionTime: v.ObsoletionTime,
		})
	}

	if s.out.Format == "json" {
		return s.out.Success(summaries)
	}
	fmt.Fprintf(s.out.Writer, "%s %s: %d version(s)\n", typeName, key, len(summaries))
	for _, v := range summaries {
		state := okMark() + " current"
		if v.ObsoletionTime != nil {
			state = "obsoleted " + v.ObsoletionTime.Format(time.RFC3339)
		}
		fmt.Fprintf(s.out.Writer, "  %4d  %s  %s  %s\n", v.Sequence, v.VersionKey, v.CreationTime.Format(time.RFC3339), state)
	}
	return nil
}
