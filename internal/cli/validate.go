package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/synthnet/internal/compiler"
	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
	"github.com/roach88/synthnet/internal/ladspa"
	"github.com/roach88/synthnet/internal/modules"
)

// ErrCodeUnknownType reports a source whose type is neither built in nor
// provided by a scanned plugin.
const ErrCodeUnknownType = "E120"

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Plugins []string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Networks []string                   `json:"networks,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <file.cue|dir>",
		Short: "Validate network definitions",
		Long: `Validate CUE network definitions without running them.

Checks that every network compiles, that names and connections are
consistent, that connections form no feedback loop, and that every source
type is known. Plugin types are known once their libraries are scanned
with --plugins.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Plugins, "plugins", nil, "LADSPA files or directories providing plugin types")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	specs, loadErrors := LoadNetworks(path)

	// Handle load errors (path not found, no files, etc.)
	if len(specs) == 0 && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	var validationErrors []compiler.ValidationError

	// Add any compile errors as validation errors
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    getLineFromCuePos(loadErr),
			})
		}
	}

	types := knownTypes(opts.Plugins, newLogger(opts.RootOptions, cmd.ErrOrStderr()))
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		formatter.VerboseLog("Validating network: %s", spec.Name)
		names = append(names, spec.Name)
		validationErrors = append(validationErrors, compiler.Validate(spec)...)
		validationErrors = append(validationErrors, checkTypes(spec, types, "")...)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, names)
}

// knownTypes returns the built-in types plus the plugin types found in
// paths.
func knownTypes(paths []string, logger *slog.Logger) *graph.TypeRegistry {
	types := modules.NewRegistry()
	if len(paths) > 0 {
		host := ladspa.NewHost(types, ladspa.WithLogger(logger))
		if _, err := host.ScanPaths(paths); err != nil {
			logger.Warn("plugin scan incomplete", "error", err)
		}
	}
	return types
}

// checkTypes reports every source of spec, and of its sub-networks, whose
// type is not registered.
func checkTypes(spec ir.NetworkSpec, types *graph.TypeRegistry, prefix string) []compiler.ValidationError {
	var errs []compiler.ValidationError
	for i, s := range spec.Sources {
		field := fmt.Sprintf("%ssources[%d]", prefix, i)
		if _, ok := types.Lookup(s.Type); !ok && s.Type != "" {
			errs = append(errs, compiler.ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("network %s: source %s has unknown type %q", spec.Name, s.Name, s.Type),
				Code:    ErrCodeUnknownType,
			})
		}
		if s.Network != nil {
			errs = append(errs, checkTypes(*s.Network, types, field+".network.")...)
		}
	}
	return errs
}

// getLineFromCuePos extracts the line number of a load error position.
func getLineFromCuePos(err *LoadError) int {
	if err.Pos.IsValid() {
		return err.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, names []string) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, Networks: names}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d network(s) valid\n", len(names))
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateNetworks validates every network declared in path against the
// built-in types.
// This is a helper function for external callers.
func ValidateNetworks(path string) ([]compiler.ValidationError, error) {
	specs, loadErrors := LoadNetworks(path)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	types := knownTypes(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var errs []compiler.ValidationError
	for _, spec := range specs {
		errs = append(errs, compiler.Validate(spec)...)
		errs = append(errs, checkTypes(spec, types, "")...)
	}
	return errs, nil
}
