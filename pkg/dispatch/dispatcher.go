package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/odvcencio/dialtone/pkg/audioroute"
	"github.com/odvcencio/dialtone/pkg/calls"
	"github.com/odvcencio/dialtone/pkg/event"
)

var tracer = otel.Tracer("github.com/odvcencio/dialtone/pkg/dispatch")

// ErrAlreadyStarted is returned when Start is called twice on one dispatcher.
var ErrAlreadyStarted = errors.New("dispatch: dispatcher already started")

// CallRegistry applies call-list mutations. Implementations are only mutated
// from the dispatch goroutine, so they need no write synchronization of
// their own.
type CallRegistry interface {
	ApplySingle(call calls.Call)
	ApplyBatch(batch []calls.Call)
	ApplyIncoming(call calls.Call, textResponses []string)
	ApplyDisconnect(call calls.Call)
	ForceClearAll()
}

// AudioRegistry applies audio-route mutations.
type AudioRegistry interface {
	ApplyModeChange(route audioroute.Route, muted bool)
	ApplySupportedMask(mask audioroute.Route)
}

// ForegroundHook surfaces the UI layer. A nil hook is tolerated: bringing the
// UI forward is best effort.
type ForegroundHook interface {
	BringToForeground()
}

// State is the dispatcher lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateActive
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Dispatcher is the single consumer of a Queue. It pulls one envelope at a
// time and applies it to the bound collaborator before pulling the next, so
// collaborator effects occur in exactly the order envelopes arrived and no
// two handler invocations ever overlap.
type Dispatcher struct {
	queue      *Queue
	registry   CallRegistry
	audio      AudioRegistry
	foreground ForegroundHook
	logger     *slog.Logger

	state atomic.Int32
	done  chan struct{}
}

// New binds the collaborators to a dispatcher consuming queue. registry and
// audio must be non-nil; foreground may be nil.
func New(queue *Queue, registry CallRegistry, audio AudioRegistry, foreground ForegroundHook, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:      queue,
		registry:   registry,
		audio:      audio,
		foreground: foreground,
		logger:     logger.With(slog.String("component", "dispatch")),
		done:       make(chan struct{}),
	}
}

// Start launches the consumer goroutine. It may be called once.
func (d *Dispatcher) Start() error {
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateActive)) {
		return ErrAlreadyStarted
	}
	go d.run()
	return nil
}

// Stop closes the queue, discarding pending envelopes, and blocks until the
// in-flight handler invocation (if any) has finished. Idempotent.
func (d *Dispatcher) Stop() {
	d.state.CompareAndSwap(int32(StateActive), int32(StateDraining))
	d.queue.Close()
	<-d.done
}

// State returns the current lifecycle position.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Done is closed once the consumer goroutine has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	defer d.state.Store(int32(StateStopped))

	for {
		env, ok := d.queue.Dequeue()
		if !ok {
			return
		}
		d.apply(env)
	}
}

// apply routes one envelope to exactly one collaborator call. A panicking
// collaborator is logged and isolated so the next envelope still dispatches.
func (d *Dispatcher) apply(env event.Envelope) {
	_, span := tracer.Start(context.Background(), "dispatch.apply",
		trace.WithAttributes(
			attribute.String("envelope.kind", string(env.Kind())),
			attribute.String("envelope.seq", env.Seq()),
		))
	start := time.Now()
	defer func() {
		metricHandlerDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			metricHandlerFaults.WithLabelValues(string(env.Kind())).Inc()
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			d.logger.Error("handler fault isolated",
				slog.String("kind", string(env.Kind())),
				slog.String("seq", env.Seq()),
				slog.Any("panic", r),
				slog.String("stack", string(stack[:n])))
			span.SetStatus(codes.Error, "handler panicked")
		}
		span.End()
	}()

	switch e := env.(type) {
	case event.CallUpdated:
		d.registry.ApplySingle(e.Call)
	case event.CallsUpdated:
		d.registry.ApplyBatch(e.Calls)
	case event.IncomingCall:
		d.registry.ApplyIncoming(e.Call, e.TextResponses)
	case event.CallDisconnected:
		d.registry.ApplyDisconnect(e.Call)
	case event.AudioModeChanged:
		d.audio.ApplyModeChange(e.Route, e.Muted)
	case event.SupportedRoutesChanged:
		d.audio.ApplySupportedMask(e.Mask)
	case event.BringToForeground:
		if d.foreground != nil {
			d.foreground.BringToForeground()
		}
	default:
		// The envelope set is closed; hitting this means a new kind was
		// added without a routing case. Programming error, not a runtime
		// condition.
		d.logger.Error("BUG: unhandled envelope kind",
			slog.String("kind", string(env.Kind())),
			slog.String("seq", env.Seq()))
		span.SetStatus(codes.Error, "unhandled envelope kind")
	}
}
