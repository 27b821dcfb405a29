// Package calls holds the in-memory call registry that UI layers observe.
// The registry is mutated only from the dispatch goroutine; reads may come
// from any goroutine.
package calls

import (
	"time"

	"github.com/google/uuid"
)

// State describes where a call is in its lifecycle.
type State string

const (
	StateIdle          State = "idle"
	StateDialing       State = "dialing"
	StateIncoming      State = "incoming"
	StateActive        State = "active"
	StateOnHold        State = "on_hold"
	StateWaiting       State = "waiting"
	StateDisconnecting State = "disconnecting"
	StateDisconnected  State = "disconnected"
)

// Call is a snapshot of one call as reported by the telephony process.
// Instances are values; the registry never hands out shared mutable state.
type Call struct {
	ID            string    `json:"id"`
	Number        string    `json:"number,omitempty"`
	State         State     `json:"state"`
	TextResponses []string  `json:"textResponses,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// New returns a call in the idle state with a fresh ID.
func New(number string) Call {
	return Call{
		ID:        uuid.NewString(),
		Number:    number,
		State:     StateIdle,
		CreatedAt: time.Now(),
	}
}

// Terminal reports whether the call has left the active call list for good.
func (c Call) Terminal() bool {
	return c.State == StateDisconnected
}
