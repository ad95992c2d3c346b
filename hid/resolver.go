package hid

import "github.com/tapstack/corefw/events"

// MapResolver is the simplest concrete KeymapResolver: a flat
// position->binding table ignoring layerStack entirely. Real firmware
// resolves per-layer bindings via a device-tree keymap; this is the
// host-runnable stand-in cmd/kbsim uses to turn a device-config's plain
// (non-tap-hold, non-combo) positions into keypresses.
type MapResolver map[events.Position]events.BehaviorBinding

// Resolve implements KeymapResolver.
func (m MapResolver) Resolve(position events.Position, _ []int) (events.BehaviorBinding, bool) {
	b, ok := m[position]
	return b, ok
}
