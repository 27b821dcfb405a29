// Package event defines the envelopes the transport layer hands to the
// dispatch loop. The set of envelope types is closed: adding a kind means
// adding a struct here and a case to the dispatch routing switch.
package event

import (
	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/dialtone/pkg/audioroute"
	"github.com/odvcencio/dialtone/pkg/calls"
)

// Kind identifies the payload shape of an envelope.
type Kind string

const (
	KindCallUpdated            Kind = "call.updated"
	KindCallsUpdated           Kind = "calls.updated"
	KindIncomingCall           Kind = "call.incoming"
	KindCallDisconnected       Kind = "call.disconnected"
	KindAudioModeChanged       Kind = "audio.mode_changed"
	KindSupportedRoutesChanged Kind = "audio.supported_changed"
	KindBringToForeground      Kind = "ui.bring_to_foreground"
)

// Envelope is one inbound state-change event. Envelopes are immutable once
// constructed, handed to the queue exactly once, and consumed exactly once.
// Only types in this package implement it.
type Envelope interface {
	Kind() Kind
	// Seq is a lexically sortable per-process ID used for log and trace
	// correlation. It carries no ordering guarantee across producers.
	Seq() string

	sealed()
}

type base struct {
	seq string
}

func newBase() base {
	return base{seq: ulid.Make().String()}
}

func (b base) Seq() string { return b.seq }
func (base) sealed()       {}

// CallUpdated carries a delta for a single call.
type CallUpdated struct {
	base
	Call calls.Call
}

func NewCallUpdated(call calls.Call) CallUpdated {
	return CallUpdated{base: newBase(), Call: call}
}

func (CallUpdated) Kind() Kind { return KindCallUpdated }

// CallsUpdated carries a full-state snapshot of every call.
type CallsUpdated struct {
	base
	Calls []calls.Call
}

func NewCallsUpdated(snapshot []calls.Call) CallsUpdated {
	return CallsUpdated{base: newBase(), Calls: snapshot}
}

func (CallsUpdated) Kind() Kind { return KindCallsUpdated }

// IncomingCall announces a ringing call plus the canned text responses the
// user may decline with.
type IncomingCall struct {
	base
	Call          calls.Call
	TextResponses []string
}

func NewIncomingCall(call calls.Call, textResponses []string) IncomingCall {
	return IncomingCall{base: newBase(), Call: call, TextResponses: textResponses}
}

func (IncomingCall) Kind() Kind { return KindIncomingCall }

// CallDisconnected reports that a call ended.
type CallDisconnected struct {
	base
	Call calls.Call
}

func NewCallDisconnected(call calls.Call) CallDisconnected {
	return CallDisconnected{base: newBase(), Call: call}
}

func (CallDisconnected) Kind() Kind { return KindCallDisconnected }

// AudioModeChanged reports the active audio route and mute state.
type AudioModeChanged struct {
	base
	Route audioroute.Route
	Muted bool
}

func NewAudioModeChanged(route audioroute.Route, muted bool) AudioModeChanged {
	return AudioModeChanged{base: newBase(), Route: route, Muted: muted}
}

func (AudioModeChanged) Kind() Kind { return KindAudioModeChanged }

// SupportedRoutesChanged reports the mask of usable audio routes.
type SupportedRoutesChanged struct {
	base
	Mask audioroute.Route
}

func NewSupportedRoutesChanged(mask audioroute.Route) SupportedRoutesChanged {
	return SupportedRoutesChanged{base: newBase(), Mask: mask}
}

func (SupportedRoutesChanged) Kind() Kind { return KindSupportedRoutesChanged }

// BringToForeground asks the UI layer to surface itself. Best effort; it is
// dropped silently when no UI is bound.
type BringToForeground struct {
	base
}

func NewBringToForeground() BringToForeground {
	return BringToForeground{base: newBase()}
}

func (BringToForeground) Kind() Kind { return KindBringToForeground }
