// Package audioroute tracks which audio route the telephony process is using
// and which routes the device currently supports.
package audioroute

import (
	"strings"
	"sync"
)

// Route is a bitmask of audio routes. A current route has exactly one bit
// set; a supported-routes mask may combine several.
type Route int

const (
	RouteEarpiece     Route = 0x1
	RouteBluetooth    Route = 0x2
	RouteWiredHeadset Route = 0x4
	RouteSpeaker      Route = 0x8

	RouteAll = RouteEarpiece | RouteBluetooth | RouteWiredHeadset | RouteSpeaker
)

var routeNames = []struct {
	route Route
	name  string
}{
	{RouteEarpiece, "earpiece"},
	{RouteBluetooth, "bluetooth"},
	{RouteWiredHeadset, "wired_headset"},
	{RouteSpeaker, "speaker"},
}

func (r Route) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	for _, entry := range routeNames {
		if r&entry.route != 0 {
			parts = append(parts, entry.name)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}

// Valid reports whether the mask only contains known route bits.
func (r Route) Valid() bool {
	return r&^RouteAll == 0
}

// Listener observes route changes. Callbacks run on the dispatch goroutine.
type Listener interface {
	OnAudioModeChanged(route Route, muted bool)
	OnSupportedRoutesChanged(mask Route)
}

// Provider is the audio-mode registry. Apply* mutations happen on the single
// dispatch goroutine; the lock guards concurrent readers.
type Provider struct {
	mu        sync.RWMutex
	route     Route
	muted     bool
	supported Route
	listeners []Listener
}

// NewProvider returns a provider that assumes the earpiece until told
// otherwise.
func NewProvider() *Provider {
	return &Provider{route: RouteEarpiece, supported: RouteAll}
}

// AddListener registers a listener for subsequent changes.
func (p *Provider) AddListener(listener Listener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, listener)
	p.mu.Unlock()
}

// ApplyModeChange records the current route and mute state.
func (p *Provider) ApplyModeChange(route Route, muted bool) {
	p.mu.Lock()
	p.route = route
	p.muted = muted
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()

	for _, listener := range listeners {
		listener.OnAudioModeChanged(route, muted)
	}
}

// ApplySupportedMask records which routes the device can currently use, e.g.
// the wired headset bit drops when the headset is unplugged.
func (p *Provider) ApplySupportedMask(mask Route) {
	p.mu.Lock()
	p.supported = mask
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()

	for _, listener := range listeners {
		listener.OnSupportedRoutesChanged(mask)
	}
}

// Route returns the current audio route.
func (p *Provider) Route() Route {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.route
}

// Muted returns the current mute state.
func (p *Provider) Muted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.muted
}

// SupportedRoutes returns the mask of routes the device supports right now.
func (p *Provider) SupportedRoutes() Route {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.supported
}
