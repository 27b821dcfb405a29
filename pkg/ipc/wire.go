package ipc

import (
	"fmt"
	"time"

	"github.com/odvcencio/dialtone/pkg/audioroute"
	"github.com/odvcencio/dialtone/pkg/calls"
)

// Frame types accepted from the telephony process. Unknown types are
// rejected at the transport edge and never reach the dispatch queue; on the
// stream endpoint they are skipped with a warning so a newer peer does not
// tear down the connection.
const (
	frameCallUpdated      = "call.updated"
	frameCallsUpdated     = "calls.updated"
	frameIncomingCall     = "call.incoming"
	frameCallDisconnected = "call.disconnected"
	frameAudioMode        = "audio.mode"
	frameAudioSupported   = "audio.supported"
	frameForeground       = "ui.foreground"
)

// wireFrame is one JSON-framed event from the telephony process.
type wireFrame struct {
	Type          string     `json:"type"`
	Call          *wireCall  `json:"call,omitempty"`
	Calls         []wireCall `json:"calls,omitempty"`
	TextResponses []string   `json:"textResponses,omitempty"`
	Route         int        `json:"route,omitempty"`
	Muted         bool       `json:"muted,omitempty"`
	Mask          int        `json:"mask"`
}

type wireCall struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`
	State  string `json:"state,omitempty"`
}

func (w wireCall) toCall() (calls.Call, error) {
	if w.ID == "" {
		return calls.Call{}, fmt.Errorf("call id is required")
	}
	call := calls.Call{
		ID:        w.ID,
		Number:    w.Number,
		State:     calls.State(w.State),
		CreatedAt: time.Now(),
	}
	if call.State == "" {
		call.State = calls.StateIdle
	}
	return call, nil
}

// apply converts the frame into the matching notify call. It returns an
// error only for malformed frames; enqueue outcomes never surface here.
func (f wireFrame) apply(n Notifier) error {
	switch f.Type {
	case frameCallUpdated, frameIncomingCall, frameCallDisconnected:
		if f.Call == nil {
			return fmt.Errorf("%s: call payload is required", f.Type)
		}
		call, err := f.Call.toCall()
		if err != nil {
			return fmt.Errorf("%s: %w", f.Type, err)
		}
		switch f.Type {
		case frameCallUpdated:
			n.NotifyCallUpdated(call)
		case frameIncomingCall:
			n.NotifyIncomingCall(call, f.TextResponses)
		case frameCallDisconnected:
			n.NotifyCallDisconnected(call)
		}
		return nil

	case frameCallsUpdated:
		snapshot := make([]calls.Call, 0, len(f.Calls))
		for _, wc := range f.Calls {
			call, err := wc.toCall()
			if err != nil {
				return fmt.Errorf("%s: %w", f.Type, err)
			}
			snapshot = append(snapshot, call)
		}
		n.NotifyCallsUpdated(snapshot)
		return nil

	case frameAudioMode:
		route := audioroute.Route(f.Route)
		if !route.Valid() {
			return fmt.Errorf("%s: route %#x has unknown bits", f.Type, f.Route)
		}
		n.NotifyAudioModeChanged(route, f.Muted)
		return nil

	case frameAudioSupported:
		mask := audioroute.Route(f.Mask)
		if !mask.Valid() {
			return fmt.Errorf("%s: mask %#x has unknown bits", f.Type, f.Mask)
		}
		n.NotifySupportedAudioModeChanged(mask)
		return nil

	case frameForeground:
		n.NotifyBringToForeground()
		return nil

	default:
		return fmt.Errorf("unknown frame type %q", f.Type)
	}
}
