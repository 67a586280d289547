package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Default rendering parameters.
const (
	DefaultSampleRate = 48000
	DefaultBlockSize  = 128
)

// MasterChannels is the number of channels on the master bus.
const MasterChannels = 2

// Tracer observes drained transactions on the control side, in commit order.
type Tracer func(stamp int64, jobs []*Job)

// doneItem travels from the realtime side back to the control side.
// Exactly one of trans or flow is set.
type doneItem struct {
	trans *Trans
	flow  *Job
}

// Engine is the realtime module graph plus the transaction handoff that
// mutates it.
//
// Thread-safety model:
//   - NewModule, Open, Trans.*, CollectGarbage: control side, one mutator
//   - ProcessBlock, Render, MasterBus, Run: realtime side, exactly one goroutine
//   - AppliedStamp, Frame, SampleRate, BlockSize: safe from any goroutine
//
// INVARIANTS:
//   - at most one transaction is drained per block, completely, before the
//     block is rendered
//   - transactions are drained in commit order
//   - module memory is touched by the realtime side only, except through
//     Access jobs
type Engine struct {
	sampleRate int
	blockSize  int
	clock      *Clock
	log        *slog.Logger
	tracer     Tracer

	pending *spscQueue[*Trans]
	done    *spscQueue[doneItem]
	nextID  atomic.Uint64

	// Realtime side state.
	modules  map[*Module]struct{}
	schedule []*Module
	deferred []*Module
	flowing  []*Module
	dirty    bool
	zero     []float32
	master   [MasterChannels][]float32
	renderAt int
	rendered bool

	frame   atomic.Int64
	applied atomic.Int64
	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithSampleRate sets the mixing frequency in Hz.
func WithSampleRate(rate int) Option {
	return func(e *Engine) {
		if rate > 0 {
			e.sampleRate = rate
		}
	}
}

// WithBlockSize sets the number of values rendered per block.
func WithBlockSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.blockSize = n
		}
	}
}

// WithClock sets the commit stamp clock. Used to keep stamps increasing
// across engine rebuilds.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the control-side logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithTracer installs a drained-transaction observer. It runs inside
// CollectGarbage, never on the realtime side.
func WithTracer(t Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New creates an engine with an empty module graph.
func New(opts ...Option) *Engine {
	e := &Engine{
		sampleRate: DefaultSampleRate,
		blockSize:  DefaultBlockSize,
		clock:      NewClock(),
		log:        slog.Default(),
		pending:    newSPSCQueue[*Trans](),
		done:       newSPSCQueue[doneItem](),
		modules:    make(map[*Module]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.zero = make([]float32, e.blockSize)
	for c := range e.master {
		e.master[c] = make([]float32, e.blockSize)
	}
	return e
}

// SampleRate returns the mixing frequency in Hz.
func (e *Engine) SampleRate() int { return e.sampleRate }

// BlockSize returns the number of values per block.
func (e *Engine) BlockSize() int { return e.blockSize }

// Frame returns the frame tick at the start of the next block.
func (e *Engine) Frame() int64 { return e.frame.Load() }

// AppliedStamp returns the stamp of the most recently drained transaction.
func (e *Engine) AppliedStamp() int64 { return e.applied.Load() }

// Pending returns the number of committed transactions not yet drained.
func (e *Engine) Pending() int { return e.pending.Len() }

// NewModule creates a module of class with the given user data. The module
// is invisible to the realtime side until an Integrate job is applied.
// Control side only.
func (e *Engine) NewModule(class *Class, user any, label string) *Module {
	if class == nil || class.Process == nil {
		assertf("new-module", nil, "class %q without process function", classname(class))
	}
	m := &Module{
		id:        e.nextID.Add(1),
		label:     label,
		class:     class,
		engine:    e,
		User:      user,
		outputs:   make([][]float32, class.NOStreams),
		inputs:    make([]inputLink, class.NIStreams),
		jinputs:   make([][]inputLink, class.NJStreams),
		jsum:      make([][]float32, class.NJStreams),
		consumers: make([]int, class.NOStreams),
	}
	for i := range m.outputs {
		m.outputs[i] = make([]float32, e.blockSize)
	}
	for j := range m.jsum {
		m.jsum[j] = make([]float32, e.blockSize)
	}
	return m
}

func classname(c *Class) string {
	if c == nil {
		return "<nil>"
	}
	return c.Name
}

// ProcessBlock drains at most one committed transaction and renders one
// block. Realtime side only.
func (e *Engine) ProcessBlock() {
	if t, ok := e.pending.TryPop(); ok {
		e.apply(t)
		e.applied.Store(t.stamp)
		e.done.Push(doneItem{trans: t})
	}
	e.runFlows()
	if e.dirty {
		e.schedule, e.deferred = buildSchedule(e.modules)
		e.dirty = false
	}

	n := e.blockSize
	for c := range e.master {
		clear(e.master[c])
	}
	for _, m := range e.schedule {
		if len(m.jinputs) > 0 {
			m.sumJoint(n)
		}
		m.class.Process(m, n)
	}
	for _, m := range e.deferred {
		m.class.ProcessDefer(m, n)
	}
	e.frame.Add(int64(n))
	e.rendered = true
	e.renderAt = 0
}

// MasterBus returns the master bus channel c of the last rendered block.
// Modules mix into it from ProcessDefer; readers use it after ProcessBlock.
// Realtime side only.
func (e *Engine) MasterBus(c int) []float32 {
	return e.master[c]
}

// Render fills dst with interleaved stereo frames from the master bus,
// rendering blocks as needed. Realtime side only.
func (e *Engine) Render(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		if !e.rendered || e.renderAt >= e.blockSize {
			e.ProcessBlock()
		}
		dst[i] = e.master[0][e.renderAt]
		dst[i+1] = e.master[1][e.renderAt]
		e.renderAt++
	}
}

// Run drives ProcessBlock from the calling goroutine, paced by the block
// period, until ctx is cancelled. It is the headless realtime thread; use
// it only when no audio device pulls blocks through Render.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	period := time.Duration(float64(time.Second) * float64(e.blockSize) / float64(e.sampleRate))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	e.log.Info("engine starting", "sample_rate", e.sampleRate, "block_size", e.blockSize, "period", period)
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopping: context cancelled", "frame", e.Frame())
			return ctx.Err()
		case <-ticker.C:
			e.ProcessBlock()
		}
	}
}

// CollectGarbage runs, on the control side, everything the realtime side
// handed back: tracer notifications, free callbacks of applied jobs and class
// Free of discarded modules, in commit order. Returns the number of items
// collected.
func (e *Engine) CollectGarbage() int {
	n := 0
	for {
		item, ok := e.done.TryPop()
		if !ok {
			return n
		}
		n++
		if item.flow != nil {
			if item.flow.Free != nil {
				item.flow.Free()
			}
			continue
		}
		t := item.trans
		if e.tracer != nil {
			e.tracer(t.stamp, t.jobs)
		}
		for _, j := range t.jobs {
			switch j.Kind {
			case JobAccess:
				if j.Free != nil {
					j.Free()
				}
			case JobDiscard:
				if c := j.Module.class; c.Free != nil {
					c.Free(j.Module.User, c)
				}
			}
		}
		e.log.Debug("transaction collected", "stamp", t.stamp, "jobs", len(t.jobs))
	}
}

// apply runs every job of t in order. Realtime side only.
func (e *Engine) apply(t *Trans) {
	for _, j := range t.jobs {
		switch j.Kind {
		case JobIntegrate:
			e.integrate(j.Module)
		case JobDiscard:
			e.discard(j.Module)
		case JobConnect:
			e.connect(j)
		case JobDisconnect:
			e.disconnect(j)
		case JobJConnect:
			e.jconnect(j)
		case JobJDisconnect:
			e.jdisconnect(j)
		case JobAccess:
			e.mustIntegrated("access", j.Module)
			j.Access(j.Module)
		case JobFlowAccess:
			e.mustIntegrated("flow-access", j.Module)
			if len(j.Module.flows) == 0 {
				e.flowing = append(e.flowing, j.Module)
			}
			j.Module.flows = append(j.Module.flows, j)
		default:
			assertf("apply", j.Module, "unknown job kind %d", int(j.Kind))
		}
	}
}

func (e *Engine) mustIntegrated(op string, m *Module) {
	if !m.integrated {
		assertf(op, m, "module is not integrated")
	}
}

func (e *Engine) integrate(m *Module) {
	if m.integrated || m.discarded {
		assertf("integrate", m, "module integrated twice")
	}
	m.integrated = true
	e.modules[m] = struct{}{}
	if m.class.Reset != nil {
		m.class.Reset(m)
	}
	e.dirty = true
}

func (e *Engine) discard(m *Module) {
	e.mustIntegrated("discard", m)
	if m.hasConsumers() {
		assertf("discard", m, "module outputs still feed other modules")
	}
	for i, l := range m.inputs {
		if l.src != nil {
			l.src.consumers[l.stream]--
			m.inputs[i] = inputLink{}
		}
	}
	for j, links := range m.jinputs {
		for _, l := range links {
			l.src.consumers[l.stream]--
		}
		m.jinputs[j] = nil
	}
	for _, f := range m.flows {
		e.done.Push(doneItem{flow: f})
	}
	m.flows = nil
	m.integrated = false
	m.discarded = true
	delete(e.modules, m)
	e.dirty = true
}

func (e *Engine) checkStreams(op string, j *Job, nDst int) {
	e.mustIntegrated(op, j.Module)
	if j.Stream < 0 || j.Stream >= nDst {
		assertf(op, j.Module, "input stream %d out of range [0,%d)", j.Stream, nDst)
	}
	if j.Src == nil {
		return
	}
	e.mustIntegrated(op, j.Src)
	if j.SrcStream < 0 || j.SrcStream >= j.Src.class.NOStreams {
		assertf(op, j.Src, "output stream %d out of range [0,%d)", j.SrcStream, j.Src.class.NOStreams)
	}
}

func (e *Engine) connect(j *Job) {
	e.checkStreams("connect", j, j.Module.class.NIStreams)
	if j.Module.inputs[j.Stream].src != nil {
		assertf("connect", j.Module, "input stream %d already connected", j.Stream)
	}
	j.Module.inputs[j.Stream] = inputLink{src: j.Src, stream: j.SrcStream}
	j.Src.consumers[j.SrcStream]++
	e.dirty = true
}

func (e *Engine) disconnect(j *Job) {
	e.checkStreams("disconnect", j, j.Module.class.NIStreams)
	l := j.Module.inputs[j.Stream]
	if l.src == nil {
		assertf("disconnect", j.Module, "input stream %d not connected", j.Stream)
	}
	l.src.consumers[l.stream]--
	j.Module.inputs[j.Stream] = inputLink{}
	e.dirty = true
}

func (e *Engine) jconnect(j *Job) {
	e.checkStreams("jconnect", j, j.Module.class.NJStreams)
	j.Module.jinputs[j.Stream] = append(j.Module.jinputs[j.Stream], inputLink{src: j.Src, stream: j.SrcStream})
	j.Src.consumers[j.SrcStream]++
	e.dirty = true
}

func (e *Engine) jdisconnect(j *Job) {
	e.checkStreams("jdisconnect", j, j.Module.class.NJStreams)
	links := j.Module.jinputs[j.Stream]
	for i, l := range links {
		if l.src == j.Src && l.stream == j.SrcStream {
			j.Module.jinputs[j.Stream] = append(links[:i], links[i+1:]...)
			j.Src.consumers[j.SrcStream]--
			e.dirty = true
			return
		}
	}
	assertf("jdisconnect", j.Module, "joint stream %d has no connection from %s[%d]", j.Stream, j.Src.Label(), j.SrcStream)
}

// runFlows runs flow jobs whose tick has been reached. Realtime side only.
func (e *Engine) runFlows() {
	if len(e.flowing) == 0 {
		return
	}
	now := e.frame.Load()
	keep := e.flowing[:0]
	for _, m := range e.flowing {
		if !m.integrated {
			continue
		}
		rest := m.flows[:0]
		for _, f := range m.flows {
			if f.Tick <= now {
				f.Access(m)
				e.done.Push(doneItem{flow: f})
				continue
			}
			rest = append(rest, f)
		}
		m.flows = rest
		if len(rest) > 0 {
			keep = append(keep, m)
		}
	}
	e.flowing = keep
}
