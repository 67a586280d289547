package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/roach88/synthnet/internal/audio"
	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/midi"
)

// controlPeriod is how often the control loop dispatches MIDI events and
// collects drained transactions while playing.
const controlPeriod = 10 * time.Millisecond

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	EngineFlags
	Seconds float64
	MIDIIn  string
	Binds   []string
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <file.cue|dir|stored-name>",
		Short: "Play a network on the audio device",
		Long: `Play a network live on the default audio device.

The audio device pulls blocks from the engine; the control loop dispatches
MIDI events to property bindings and collects applied transactions. A
binding maps a controller onto a property's range:

  --bind source.property=channel/signal/param

with channel 1-16 and signal one of note, cc, bend, pressure,
poly-pressure, program. Playback stops after --seconds, or on Ctrl-C.

Examples:
  synthnet play voice.cue
  synthnet play voice.cue --midi-in "Launchkey MIDI" --bind amp.volume=1/cc/7 --bind osc.freq=1/bend/0`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().Float64Var(&opts.Seconds, "seconds", 0, "stop after this many seconds (0: until interrupted)")
	cmd.Flags().StringVar(&opts.MIDIIn, "midi-in", "", "MIDI input port name")
	cmd.Flags().StringArrayVar(&opts.Binds, "bind", nil, "controller binding source.property=channel/signal/param (repeatable)")

	return cmd
}

func runPlay(opts *PlayOptions, ref string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	spec, err := opts.source(ref).Resolve(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load network", err)
	}
	rt, err := buildRuntime(spec, opts.runtime(), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build network", err)
	}

	recv := midi.NewReceiver(midi.WithLogger(logger))
	for _, b := range opts.Binds {
		if err := bindController(recv, rt.Network, b); err != nil {
			return WrapExitError(ExitCommandError, "invalid binding", err)
		}
	}

	if err := rt.Network.Prepare(); err != nil {
		return WrapExitError(ExitCommandError, "failed to prepare network", err)
	}
	for range opts.Voices {
		if _, _, err := rt.Network.Spawn(); err != nil {
			rt.shutdown()
			return WrapExitError(ExitCommandError, "failed to spawn context", err)
		}
	}

	if opts.MIDIIn != "" {
		stop, err := listenPort(recv, opts.MIDIIn)
		if err != nil {
			rt.shutdown()
			return WrapExitError(ExitCommandError, "failed to open MIDI input", err)
		}
		defer func() {
			stop()
			drivers.Close()
		}()
	}

	player, err := audio.NewPlayer(rt.Engine.SampleRate(), rt.Engine)
	if err != nil {
		rt.shutdown()
		return WrapExitError(ExitCommandError, "failed to open audio device", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if opts.Seconds > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, time.Duration(opts.Seconds*float64(time.Second)))
		defer cancelTimeout()
	}

	logger.Info("playing", "network", spec.Name, "sample_rate", rt.Engine.SampleRate(), "block_size", rt.Engine.BlockSize(), "voices", opts.Voices)
	fmt.Fprintf(cmd.OutOrStdout(), "Playing %s. Press Ctrl-C to stop.\n", spec.Name)
	player.Play()

	controlLoop(ctx, rt, recv)
	played := player.Position()

	// The device no longer pulls blocks once stopped, so this goroutine
	// becomes the realtime side for the final drain.
	if err := player.Stop(); err != nil {
		logger.Warn("audio device close failed", "error", err)
	}
	rt.shutdown()
	logger.Info("stopped", "network", spec.Name, "frames", rt.Engine.Frame(), "played", played)
	return nil
}

// controlLoop runs the control side until ctx is done.
func controlLoop(ctx context.Context, rt *Runtime, recv *midi.Receiver) {
	ticker := time.NewTicker(controlPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recv.Dispatch()
			rt.Engine.CollectGarbage()
		}
	}
}

// bindController parses "source.property=channel/signal/param" and binds
// the property on recv.
func bindController(recv *midi.Receiver, net *graph.Network, spec string) error {
	lhs, rhs, ok := strings.Cut(spec, "=")
	if !ok {
		return fmt.Errorf("binding %q: expected source.property=channel/signal/param", spec)
	}
	name, prop, ok := strings.Cut(lhs, ".")
	if !ok {
		return fmt.Errorf("binding %q: expected source.property", spec)
	}
	src, ok := net.Source(name)
	if !ok {
		return fmt.Errorf("binding %q: source %q: %w", spec, name, graph.ErrNoSource)
	}
	t, err := parseTarget(rhs)
	if err != nil {
		return fmt.Errorf("binding %q: %w", spec, err)
	}
	_, err = midi.Bind(recv, src, prop, t)
	return err
}

// parseTarget parses "channel/signal/param" with a 1-based channel. The
// param may be omitted for channel-wide signals.
func parseTarget(s string) (midi.Target, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return midi.Target{}, fmt.Errorf("target %q: expected channel/signal/param", s)
	}
	ch, err := strconv.Atoi(parts[0])
	if err != nil || ch < 1 || ch > 16 {
		return midi.Target{}, fmt.Errorf("target %q: channel must be 1-16", s)
	}
	sig, err := midi.ParseSignal(parts[1])
	if err != nil {
		return midi.Target{}, fmt.Errorf("target %q: %w", s, err)
	}
	param := 0
	if len(parts) == 3 {
		param, err = strconv.Atoi(parts[2])
		if err != nil || param < 0 || param > 127 {
			return midi.Target{}, fmt.Errorf("target %q: param must be 0-127", s)
		}
	}
	return midi.Target{Channel: uint8(ch - 1), Signal: sig, Param: uint8(param)}, nil
}

// listenPort finds the input port named name among the registered driver's
// inputs and feeds it to recv.
func listenPort(recv *midi.Receiver, name string) (stop func(), err error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, err
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("MIDI input %q not found", name)
	}
	return recv.Listen(found)
}
