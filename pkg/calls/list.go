package calls

import (
	"sort"
	"sync"
)

// Listener observes call registry changes. Callbacks run on the dispatch
// goroutine and receive defensive copies; they must not block for long.
type Listener interface {
	// OnCallsChanged delivers a full snapshot after any mutation.
	OnCallsChanged(snapshot []Call)
	// OnIncomingCall fires once per incoming call, before OnCallsChanged.
	OnIncomingCall(call Call, textResponses []string)
}

// List is the call registry. All Apply* mutations happen on the single
// dispatch goroutine; the lock only guards concurrent readers (Snapshot).
type List struct {
	mu        sync.RWMutex
	calls     map[string]Call
	listeners []Listener
}

// NewList returns an empty call registry.
func NewList() *List {
	return &List{calls: make(map[string]Call)}
}

// AddListener registers a listener for subsequent changes.
func (l *List) AddListener(listener Listener) {
	l.mu.Lock()
	l.listeners = append(l.listeners, listener)
	l.mu.Unlock()
}

// ApplySingle upserts one call. A terminal state removes the call from the
// active list.
func (l *List) ApplySingle(call Call) {
	l.mu.Lock()
	l.upsertLocked(call)
	l.mu.Unlock()
	l.notifyChanged()
}

// ApplyBatch replaces the registry with a full-state snapshot. The telephony
// process periodically resends the complete list, so a missed delta heals on
// the next batch.
func (l *List) ApplyBatch(batch []Call) {
	l.mu.Lock()
	l.calls = make(map[string]Call, len(batch))
	for _, call := range batch {
		l.upsertLocked(call)
	}
	l.mu.Unlock()
	l.notifyChanged()
}

// ApplyIncoming records a ringing call together with the candidate text
// responses the user may answer with.
func (l *List) ApplyIncoming(call Call, textResponses []string) {
	call.State = StateIncoming
	call.TextResponses = append([]string(nil), textResponses...)
	l.mu.Lock()
	l.upsertLocked(call)
	listeners := l.listenersLocked()
	l.mu.Unlock()

	for _, listener := range listeners {
		listener.OnIncomingCall(call, call.TextResponses)
	}
	l.notifyChanged()
}

// ApplyDisconnect removes the call from the active list.
func (l *List) ApplyDisconnect(call Call) {
	call.State = StateDisconnected
	l.mu.Lock()
	l.upsertLocked(call)
	l.mu.Unlock()
	l.notifyChanged()
}

// ForceClearAll drops every call. Called at teardown so observers never see
// stale calls if the telephony process died rather than hung up.
func (l *List) ForceClearAll() {
	l.mu.Lock()
	l.calls = make(map[string]Call)
	l.mu.Unlock()
	l.notifyChanged()
}

// Snapshot returns the active calls ordered by creation time, then ID.
func (l *List) Snapshot() []Call {
	l.mu.RLock()
	snapshot := make([]Call, 0, len(l.calls))
	for _, call := range l.calls {
		snapshot = append(snapshot, call)
	}
	l.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if !snapshot[i].CreatedAt.Equal(snapshot[j].CreatedAt) {
			return snapshot[i].CreatedAt.Before(snapshot[j].CreatedAt)
		}
		return snapshot[i].ID < snapshot[j].ID
	})
	return snapshot
}

// Len returns the number of active calls.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.calls)
}

func (l *List) upsertLocked(call Call) {
	if call.ID == "" {
		return
	}
	if call.Terminal() {
		delete(l.calls, call.ID)
		return
	}
	l.calls[call.ID] = call
}

func (l *List) listenersLocked() []Listener {
	return append([]Listener(nil), l.listeners...)
}

func (l *List) notifyChanged() {
	l.mu.RLock()
	listeners := l.listenersLocked()
	l.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	snapshot := l.Snapshot()
	for _, listener := range listeners {
		listener.OnCallsChanged(snapshot)
	}
}
