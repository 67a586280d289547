package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/synthnet/internal/audio"
)

// EngineFlags are the flags shared by commands that run a network.
type EngineFlags struct {
	Network    string
	Database   string
	SampleRate int
	BlockSize  int
	Voices     int
	Plugins    []string
	Sets       []string
}

func (f *EngineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Network, "network", "n", "", "network to run (default: first declared)")
	cmd.Flags().StringVar(&f.Database, "db", "", "SQLite database to load stored networks from")
	cmd.Flags().IntVar(&f.SampleRate, "rate", 48000, "sample rate in Hz")
	cmd.Flags().IntVar(&f.BlockSize, "block", 128, "frames per block")
	cmd.Flags().IntVar(&f.Voices, "voices", 1, "number of contexts to spawn")
	cmd.Flags().StringSliceVar(&f.Plugins, "plugins", nil, "LADSPA files or directories providing plugin types")
	cmd.Flags().StringArrayVar(&f.Sets, "set", nil, "property override source.property=value (repeatable)")
}

func (f *EngineFlags) source(ref string) NetworkSource {
	return NetworkSource{Ref: ref, Network: f.Network, Database: f.Database}
}

func (f *EngineFlags) runtime() RuntimeOptions {
	return RuntimeOptions{SampleRate: f.SampleRate, BlockSize: f.BlockSize, Plugins: f.Plugins, Sets: f.Sets}
}

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	EngineFlags
	Seconds float64
	Output  string
}

// RenderResult describes a finished offline render.
type RenderResult struct {
	Network    string `json:"network"`
	Frames     int    `json:"frames"`
	SampleRate int    `json:"sample_rate"`
	Output     string `json:"output"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <file.cue|dir|stored-name>",
		Short: "Render a network offline to raw audio",
		Long: `Render a network offline and write interleaved stereo little-endian
float32 frames.

The network is prepared, --voices contexts are spawned, and blocks are
rendered as fast as possible. Each spawn is applied at its own block
boundary, so voice k starts k-1 blocks late.

Examples:
  synthnet render voice.cue -o voice.f32
  synthnet render voice.cue --seconds 5 --set osc.freq=220 | aplay -f FLOAT_LE -c 2 -r 48000
  synthnet render --db ./synthnet.db lead -o lead.f32`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().Float64Var(&opts.Seconds, "seconds", 2, "length of the render")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "-", "output file, - for stdout")

	return cmd
}

func runRender(opts *RenderOptions, ref string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.Seconds <= 0 {
		return NewExitError(ExitCommandError, "seconds must be positive")
	}

	spec, err := opts.source(ref).Resolve(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load network", err)
	}
	rt, err := buildRuntime(spec, opts.runtime(), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build network", err)
	}

	if err := rt.Network.Prepare(); err != nil {
		return WrapExitError(ExitCommandError, "failed to prepare network", err)
	}
	defer rt.shutdown()

	for range opts.Voices {
		if _, _, err := rt.Network.Spawn(); err != nil {
			return WrapExitError(ExitCommandError, "failed to spawn context", err)
		}
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.Output != "-" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output", err)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)

	frames := int(opts.Seconds * float64(rt.Engine.SampleRate()))
	formatter.VerboseLog("Rendering %d frames of %s", frames, spec.Name)
	if err := audio.WriteFrames(bw, rt.Engine, frames, rt.Engine.BlockSize()); err != nil {
		return WrapExitError(ExitCommandError, "render failed", err)
	}
	if err := bw.Flush(); err != nil {
		return WrapExitError(ExitCommandError, "render failed", err)
	}
	rt.Engine.CollectGarbage()

	result := RenderResult{
		Network:    spec.Name,
		Frames:     frames,
		SampleRate: rt.Engine.SampleRate(),
		Output:     opts.Output,
	}
	// Raw frames own stdout; the summary goes to stderr then.
	out := formatter
	if opts.Output == "-" {
		out = &OutputFormatter{Format: opts.Format, Writer: cmd.ErrOrStderr()}
	}
	if opts.Format == "json" {
		return out.Success(result)
	}
	fmt.Fprintf(out.Writer, "Rendered %d frames of %s at %d Hz to %s\n", frames, spec.Name, result.SampleRate, opts.Output)
	return nil
}
