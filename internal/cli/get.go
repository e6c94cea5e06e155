package cli

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/vstore/internal/model"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Version string
	Fast    bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <type> <key>",
		Short: "Show one object",
		Long: `Show the current version of an object, or a past version with --version.

Family roots (Entity, Act) resolve to the stored concrete type.

Example:
  vstore get Patient 0f8fad5b-d9cb-469f-a165-70867728950e
  vstore get Entity 0f8fad5b-d9cb-469f-a165-70867728950e --version 7c9e6679-7425-40de-944b-e07fc1f90ae7`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Version, "version", "", "version key to read instead of the head")
	cmd.Flags().BoolVar(&opts.Fast, "fast", false, "skip associations")

	return cmd
}

func runGet(opts *GetOptions, typeName, keyArg string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, ok := s.engine.Registry().Lookup(typeName); !ok {
		return s.out.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Errorf("unknown type %q", typeName))
	}
	key, err := s.parseKey(keyArg)
	if err != nil {
		return err
	}
	var version *uuid.UUID
	if opts.Version != "" {
		vk, err := s.parseKey(opts.Version)
		if err != nil {
			return err
		}
		version = &vk
	}

	ctx := cmd.Context()
	var obj any
	if info, _ := s.engine.Registry().Lookup(typeName); info.Family == typeName {
		obj, err = s.engine.GetAny(ctx, typeName, key, version, model.SystemPrincipal, opts.Fast)
	} else {
		obj, err = s.engine.Get(ctx, typeName, key, version, model.SystemPrincipal, opts.Fast)
	}
	if err != nil {
		return s.out.Fail(ExitCommandError, errorCodeFor(err), err)
	}
	if obj == nil {
		return s.out.Fail(ExitFailure, ErrCodeNotFound, fmt.Errorf("%s %s not found", typeName, key))
	}

	if s.out.Format == "json" {
		return s.out.Success(obj)
	}
	return s.printObject(obj)
}

func (s *session) printObject(obj any) error {
	out := s.out
	name, _ := s.engine.Registry().TypeOf(reflect.TypeOf(obj))
	b := obj.(model.Identified).Base()
	fmt.Fprintf(out.Writer, "%s %s\n", name, b.Key)
	if vo, ok := obj.(model.VersionedObject); ok {
		v := vo.Version()
		state := "current"
		if !v.IsHead() {
			state = "obsolete"
		}
		fmt.Fprintf(out.Writer, "version %s (sequence %d, %s)\n", v.VersionKey, v.VersionSequence, state)
	}
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out.Writer, string(data))
	return nil
}
