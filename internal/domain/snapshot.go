package domain

import (
	"github.com/jkaberg/apcups-hass/internal/nis"
)

// Changed returns true if *cur* differs from *prev* in any reported value.
// CapturedAt is ignored so that an identical reading taken a minute later
// doesn't trigger a transmit.
func Changed(prev, cur *nis.Snapshot) bool {
	if prev == nil && cur == nil {
		return false
	}
	if prev == nil || cur == nil {
		return true
	}
	return prev.Values != cur.Values || prev.Present != cur.Present
}

// PowerEvent describes a change in the UPS input power source.
type PowerEvent string

const (
	PowerNone     PowerEvent = ""
	PowerOnBatt   PowerEvent = "onbattery"
	PowerRestored PowerEvent = "online"
)

// Transition reports whether the UPS switched between line and battery
// power from prev to cur. The first usable snapshot never counts as a
// transition.
func Transition(prev, cur *nis.Snapshot) PowerEvent {
	if prev == nil || cur == nil || !prev.Usable() || !cur.Usable() {
		return PowerNone
	}
	switch {
	case prev.Online() && !cur.Online():
		return PowerOnBatt
	case !prev.Online() && cur.Online():
		return PowerRestored
	}
	return PowerNone
}
