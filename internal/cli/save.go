package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/synthnet/internal/compiler"
	"github.com/roach88/synthnet/internal/store"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Database string
}

// SavedNetwork is one network written by save.
type SavedNetwork struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SaveResult holds the networks written by save.
type SaveResult struct {
	Networks []SavedNetwork `json:"networks"`
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <file.cue|dir>",
		Short: "Store compiled networks in the database",
		Long: `Compile and validate networks, then store them in the database.

Each network becomes the newest version of its name. Saving a network
whose content is already stored returns the existing id. Stored networks
can be referenced by name or id in render and play.

Examples:
  synthnet save voice.cue --db ./synthnet.db
  synthnet save ./networks --db ./synthnet.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSave(opts *SaveOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	specs, errs := LoadNetworks(path)
	if len(errs) > 0 {
		return WrapExitError(ExitCommandError, "failed to load networks", errors.Join(errs...))
	}
	for _, spec := range specs {
		if verrs := compiler.Validate(spec); len(verrs) > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("invalid network %s: %v", spec.Name, verrs[0]))
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	result := SaveResult{Networks: make([]SavedNetwork, 0, len(specs))}
	for _, spec := range specs {
		saved, err := st.SaveNetwork(cmd.Context(), spec)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to save network", err)
		}
		formatter.VerboseLog("Saved %s as %s", saved.Name, saved.ID)
		result.Networks = append(result.Networks, SavedNetwork{ID: saved.ID, Name: saved.Name})
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	for _, n := range result.Networks {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s\n", n.Name, n.ID)
	}
	return nil
}
