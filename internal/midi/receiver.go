package midi

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Handler consumes events for one target on the control path.
type Handler func(Event)

// Option configures a Receiver.
type Option func(*Receiver)

// WithLogger sets the receiver logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Receiver) {
		r.log = l
	}
}

// Receiver queues inbound events and dispatches them to handlers.
//
// Thread-safety: Post and Listen may be used from any goroutine. Dispatch
// and the handlers run on the control path.
type Receiver struct {
	log *slog.Logger

	mu       sync.Mutex
	handlers map[Target]map[uint64]Handler
	nextID   uint64
	pending  []Event
}

// NewReceiver returns a receiver without handlers.
func NewReceiver(opts ...Option) *Receiver {
	r := &Receiver{
		log:      slog.Default(),
		handlers: make(map[Target]map[uint64]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds h for events on t. The returned cancel removes it.
func (r *Receiver) Register(t Target, h Handler) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	if r.handlers[t] == nil {
		r.handlers[t] = make(map[uint64]Handler)
	}
	r.handlers[t][id] = h
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers[t], id)
		if len(r.handlers[t]) == 0 {
			delete(r.handlers, t)
		}
	}
}

// Handlers returns the number of handlers registered for t.
func (r *Receiver) Handlers(t Target) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[t])
}

// Post queues ev for the next Dispatch.
func (r *Receiver) Post(ev Event) {
	r.mu.Lock()
	r.pending = append(r.pending, ev)
	r.mu.Unlock()
}

// Dispatch hands every queued event to its handlers in arrival order and
// returns the number of events consumed. Events without a handler are
// dropped.
func (r *Receiver) Dispatch() int {
	r.mu.Lock()
	events := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, ev := range events {
		for _, h := range r.lookup(ev.Target) {
			h(ev)
		}
	}
	return len(events)
}

func (r *Receiver) lookup(t Target) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	hs := r.handlers[t]
	out := make([]Handler, 0, len(hs))
	for _, id := range slices.Sorted(maps.Keys(hs)) {
		out = append(out, hs[id])
	}
	return out
}

// Listen opens in if needed and posts every decodable message it
// receives. stop ends the subscription; the port stays open.
func (r *Receiver) Listen(in drivers.In) (stop func(), err error) {
	if !in.IsOpen() {
		if err := in.Open(); err != nil {
			return nil, err
		}
	}
	stop, err = gomidi.ListenTo(in, r.receive, gomidi.HandleError(func(err error) {
		r.log.Warn("MIDI listener error", "port", in.String(), "error", err)
	}))
	if err != nil {
		return nil, err
	}
	r.log.Info("MIDI input connected", "port", in.String())
	return stop, nil
}

func (r *Receiver) receive(msg gomidi.Message, _ int32) {
	if ev, ok := Decode(msg); ok {
		r.Post(ev)
		return
	}
	r.log.Debug("unhandled MIDI message", "msg", msg.String())
}
