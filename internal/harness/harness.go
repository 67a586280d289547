package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/synthnet/internal/compiler"
	"github.com/roach88/synthnet/internal/engine"
	"github.com/roach88/synthnet/internal/graph"
	"github.com/roach88/synthnet/internal/ir"
	"github.com/roach88/synthnet/internal/midi"
	"github.com/roach88/synthnet/internal/modules"
)

// maxSettleBlocks bounds the blocks rendered to drain the pending queue
// after one step.
const maxSettleBlocks = 1024

// Harness drives one network through a scenario. The control side and the
// realtime side run on the calling goroutine: every step commits its
// transactions, then blocks are rendered until the engine has drained them.
type Harness struct {
	eng      *engine.Engine
	net      *graph.Network
	recv     *midi.Receiver
	contexts map[string]graph.ContextID
	result   *Result
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Compile the network from the CUE file or inline text
//  2. Build it on a fresh engine whose tracer records drained transactions
//  3. Execute steps in order, settling the engine after each one
//  4. Evaluate the final assertions
//
// A returned error means the scenario could not run at all; failed steps
// and assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	spec, err := loadNetwork(scenario)
	if err != nil {
		return nil, err
	}
	if verrs := compiler.Validate(spec); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, v := range verrs {
			msgs[i] = v.Error()
		}
		return nil, fmt.Errorf("invalid network %s: %s", spec.Name, strings.Join(msgs, "; "))
	}

	result := NewResult()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	eng := engine.New(
		engine.WithSampleRate(scenario.SampleRate),
		engine.WithBlockSize(scenario.BlockSize),
		engine.WithLogger(logger),
		engine.WithTracer(func(stamp int64, jobs []*engine.Job) {
			names := make([]string, len(jobs))
			for i, j := range jobs {
				names[i] = j.String()
			}
			result.AddTransactionTrace(stamp, names)
		}),
	)

	net, err := graph.Build(spec, eng, modules.NewRegistry(), graph.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}
	net.ObserveProperties(func(src *graph.Source, p *graph.Property, stamp int64) {
		result.AddPropertyTrace(src.Name(), p.Name, p.Value(), stamp)
	})

	h := &Harness{
		eng:      eng,
		net:      net,
		recv:     midi.NewReceiver(midi.WithLogger(logger)),
		contexts: make(map[string]graph.ContextID),
		result:   result,
		logger:   logger,
	}

	for i := range scenario.Steps {
		h.runStep(i, &scenario.Steps[i])
	}

	for _, errMsg := range EvaluateAssertions(h, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// loadNetwork compiles the scenario's CUE source and selects one network.
func loadNetwork(s *Scenario) (ir.NetworkSpec, error) {
	var specs []ir.NetworkSpec
	if s.Network != "" {
		var err error
		specs, err = compiler.LoadFile(s.Network)
		if err != nil {
			return ir.NetworkSpec{}, fmt.Errorf("failed to load network: %w", err)
		}
	} else {
		v := cuecontext.New().CompileString(s.CUE, cue.Filename(s.Name+".cue"))
		var errs []error
		specs, errs = compiler.CompileAll(v)
		if len(errs) > 0 {
			return ir.NetworkSpec{}, fmt.Errorf("failed to compile network: %w", errors.Join(errs...))
		}
	}

	if s.Select == "" {
		return specs[0], nil
	}
	spec, ok := compiler.Lookup(specs, s.Select)
	if !ok {
		return ir.NetworkSpec{}, fmt.Errorf("network %q not declared", s.Select)
	}
	return spec, nil
}

// runStep executes one step and settles the engine. A step error is
// recorded unless the step expected it.
func (h *Harness) runStep(index int, st *Step) {
	err := h.execute(st)
	h.settle()
	h.logger.Debug("step executed", "index", index, "pending", h.eng.Pending(), "applied", h.eng.AppliedStamp())

	switch {
	case st.Error != "" && err == nil:
		h.result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got none", index, st.Error))
	case st.Error != "" && !strings.Contains(err.Error(), st.Error):
		h.result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got %q", index, st.Error, err))
	case st.Error == "" && err != nil:
		h.result.AddError(fmt.Sprintf("steps[%d]: %v", index, err))
	}

	for _, msg := range EvaluateAssertions(h, st.Check) {
		h.result.AddError(fmt.Sprintf("steps[%d]: %s", index, msg))
	}
}

func (h *Harness) execute(st *Step) error {
	switch {
	case st.Prepare:
		return h.net.Prepare()

	case st.Unprepare:
		h.net.Unprepare()
		clear(h.contexts)
		return nil

	case st.Spawn != "":
		if _, dup := h.contexts[st.Spawn]; dup {
			return fmt.Errorf("context alias %q already in use", st.Spawn)
		}
		ctx, _, err := h.net.Spawn()
		if err != nil {
			return err
		}
		h.contexts[st.Spawn] = ctx
		return nil

	case st.Release != "":
		ctx, ok := h.contexts[st.Release]
		if !ok {
			return fmt.Errorf("unknown context alias %q", st.Release)
		}
		h.net.Release(ctx)
		delete(h.contexts, st.Release)
		return nil

	case st.Set != nil:
		src, err := h.source(st.Set.Source)
		if err != nil {
			return err
		}
		v, err := ir.FromAny(st.Set.Value)
		if err != nil {
			return fmt.Errorf("set %s.%s: %w", st.Set.Source, st.Set.Property, err)
		}
		_, err = src.Set(st.Set.Property, v)
		return err

	case st.Connect != "":
		return h.link(st.Connect, true)

	case st.Disconnect != "":
		return h.link(st.Disconnect, false)

	case st.Bind != nil:
		src, err := h.source(st.Bind.Source)
		if err != nil {
			return err
		}
		t, err := target(st.Bind.Channel, st.Bind.Signal, st.Bind.Param)
		if err != nil {
			return err
		}
		_, err = midi.Bind(h.recv, src, st.Bind.Property, t)
		return err

	case st.MIDI != nil:
		t, err := target(st.MIDI.Channel, st.MIDI.Signal, st.MIDI.Param)
		if err != nil {
			return err
		}
		h.recv.Post(midi.Event{Target: t, Value: st.MIDI.Value})
		h.recv.Dispatch()
		return nil

	case st.Blocks > 0:
		for range st.Blocks {
			h.eng.ProcessBlock()
		}
		return nil
	}
	return nil
}

// settle renders blocks until every committed transaction is applied, then
// collects what the realtime side handed back.
func (h *Harness) settle() {
	for n := 0; h.eng.Pending() > 0 && n < maxSettleBlocks; n++ {
		h.eng.ProcessBlock()
	}
	h.eng.CollectGarbage()
}

func (h *Harness) source(name string) (*graph.Source, error) {
	src, ok := h.net.Source(name)
	if !ok {
		return nil, fmt.Errorf("source %q: %w", name, graph.ErrNoSource)
	}
	return src, nil
}

func (h *Harness) link(s string, connect bool) error {
	c, err := compiler.ParseLink(s)
	if err != nil {
		return err
	}
	src, err := h.source(c.From)
	if err != nil {
		return err
	}
	dst, err := h.source(c.To)
	if err != nil {
		return err
	}
	if connect {
		return h.net.Connect(dst, c.ToChannel, src, c.FromChannel)
	}
	return h.net.Disconnect(dst, c.ToChannel, src, c.FromChannel)
}

// target converts a 1-based channel into a receiver target.
func target(channel int, signal string, param int) (midi.Target, error) {
	sig, err := midi.ParseSignal(signal)
	if err != nil {
		return midi.Target{}, err
	}
	return midi.Target{Channel: uint8(channel - 1), Signal: sig, Param: uint8(param)}, nil
}
