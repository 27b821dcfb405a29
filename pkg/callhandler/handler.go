// Package callhandler is the producer-facing surface of the in-call state
// core. Transport callbacks convert telephony events into envelopes here;
// the envelopes are applied to the registries by a single dispatch goroutine
// in arrival order.
package callhandler

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/odvcencio/dialtone/pkg/audioroute"
	"github.com/odvcencio/dialtone/pkg/calls"
	"github.com/odvcencio/dialtone/pkg/dispatch"
	"github.com/odvcencio/dialtone/pkg/event"
)

var (
	// ErrAlreadyActive is returned by Setup on an already-active handler.
	// The hosting process calls Setup exactly once; a second call is a
	// lifecycle bug upstream.
	ErrAlreadyActive = errors.New("callhandler: setup already completed")

	// ErrNotActive is returned by Teardown when Setup never ran or
	// Teardown already ran.
	ErrNotActive = errors.New("callhandler: handler is not active")

	// ErrMissingCollaborator is returned by Setup when a required registry
	// binding is nil.
	ErrMissingCollaborator = errors.New("callhandler: call and audio registries are required")
)

// Collaborators binds the downstream state owners the dispatch loop mutates.
// Foreground may be nil; bringing the UI forward is best effort.
type Collaborators struct {
	Calls      dispatch.CallRegistry
	Audio      dispatch.AudioRegistry
	Foreground dispatch.ForegroundHook
}

// Handler owns the dispatch queue and loop for one service lifetime.
//
// Notify methods are safe to call from any goroutine and never fail from the
// caller's perspective: after teardown the event is logged and dropped, never
// surfaced, so a transport callback can never be destabilized by this side.
// Notifications that arrive before Setup are queued and dispatched once the
// loop starts.
type Handler struct {
	logger    *slog.Logger
	queue     *dispatch.Queue
	warnDepth int

	mu         sync.Mutex
	dispatcher *dispatch.Dispatcher
	collab     Collaborators
	active     bool
	tornDown   bool
}

// Option customizes a Handler.
type Option func(*Handler)

// WithQueueWarnDepth logs a warning whenever the pending-envelope count
// crosses depth. Zero disables the check.
func WithQueueWarnDepth(depth int) Option {
	return func(h *Handler) { h.warnDepth = depth }
}

// New returns a handler whose queue is open but whose loop is not running
// until Setup.
func New(logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger: logger.With(slog.String("component", "callhandler")),
		queue:  dispatch.NewQueue(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Setup binds the collaborators and starts the dispatch loop. It must be
// called exactly once, before Teardown.
func (h *Handler) Setup(c Collaborators) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active || h.tornDown {
		return ErrAlreadyActive
	}
	if c.Calls == nil || c.Audio == nil {
		return ErrMissingCollaborator
	}

	h.collab = c
	h.dispatcher = dispatch.New(h.queue, c.Calls, c.Audio, c.Foreground, h.logger)
	if err := h.dispatcher.Start(); err != nil {
		h.dispatcher = nil
		h.collab = Collaborators{}
		return err
	}
	h.active = true
	h.logger.Info("call handler active")
	return nil
}

// Teardown stops the dispatch loop. It closes the queue so further
// notifications are dropped, waits for the in-flight handler invocation to
// finish (pending envelopes are discarded, not drained), then force-clears
// the call registry. The clear is unconditional: the telephony process
// disconnects either because calls ended or because it crashed, and after a
// crash the UI must not believe stale calls are still live.
func (h *Handler) Teardown() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.active {
		return ErrNotActive
	}
	h.active = false
	h.tornDown = true

	h.dispatcher.Stop()
	h.collab.Calls.ForceClearAll()

	h.dispatcher = nil
	h.collab = Collaborators{}
	h.logger.Info("call handler stopped")
	return nil
}

// Active reports whether Setup has completed and Teardown has not begun.
func (h *Handler) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// NotifyCallUpdated reports a delta for one call.
func (h *Handler) NotifyCallUpdated(call calls.Call) {
	h.enqueue(event.NewCallUpdated(call))
}

// NotifyCallsUpdated reports a full-state snapshot of all calls.
func (h *Handler) NotifyCallsUpdated(snapshot []calls.Call) {
	h.enqueue(event.NewCallsUpdated(snapshot))
}

// NotifyIncomingCall reports a ringing call and its candidate text responses.
func (h *Handler) NotifyIncomingCall(call calls.Call, textResponses []string) {
	h.enqueue(event.NewIncomingCall(call, textResponses))
}

// NotifyCallDisconnected reports that a call ended.
func (h *Handler) NotifyCallDisconnected(call calls.Call) {
	h.enqueue(event.NewCallDisconnected(call))
}

// NotifyAudioModeChanged reports the active audio route and mute state.
func (h *Handler) NotifyAudioModeChanged(route audioroute.Route, muted bool) {
	h.enqueue(event.NewAudioModeChanged(route, muted))
}

// NotifySupportedAudioModeChanged reports the usable audio route mask.
func (h *Handler) NotifySupportedAudioModeChanged(mask audioroute.Route) {
	h.enqueue(event.NewSupportedRoutesChanged(mask))
}

// NotifyBringToForeground asks the UI layer to surface itself.
func (h *Handler) NotifyBringToForeground() {
	h.enqueue(event.NewBringToForeground())
}

func (h *Handler) enqueue(env event.Envelope) {
	if err := h.queue.Enqueue(env); err != nil {
		h.logger.Warn("dropping event after teardown",
			slog.String("kind", string(env.Kind())),
			slog.String("seq", env.Seq()))
		return
	}
	if h.warnDepth > 0 {
		if depth := h.queue.Len(); depth >= h.warnDepth {
			h.logger.Warn("dispatch queue backlog",
				slog.Int("depth", depth),
				slog.Int("warn_depth", h.warnDepth))
		}
	}
}
