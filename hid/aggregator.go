// Package hid describes the engine's opaque external collaborators: the
// downstream HID report aggregator, the upstream matrix scanner, and the
// keymap/layer resolver. Only their contracts live here, no real USB/BLE
// transport, plus a recording fake used by tests and the simulator.
package hid

import "github.com/tapstack/corefw/events"

// Aggregator is the downstream HID report aggregator. Every method is
// expected to be idempotent in effect.
type Aggregator interface {
	RegisterMods(mods events.ModSet)
	UnregisterMods(mods events.ModSet)
	PressKey(usagePage uint8, keycode uint16)
	ReleaseKey(usagePage uint8, keycode uint16)
	MouseMovementSet(dx, dy int8)
	MouseScrollSet(hx, vy int16)
	SendReport(usagePage uint8)
	// ActiveMods reports the modifier bits currently registered. Mod-tap
	// needs it to snapshot the modifiers live at its own-key DOWN; a real
	// aggregator tracks this internally already.
	ActiveMods() events.ModSet
}

// MatrixScanner is the upstream collaborator that emits PositionEvents onto
// the bus. The core never calls it; it is documented here only so the
// simulator has a concrete type to implement.
type MatrixScanner interface {
	Run(emit func(events.PositionEvent)) error
}

// KeymapResolver converts a position plus the active layer stack into a
// BehaviorBinding. The engine treats this as an opaque lookup.
type KeymapResolver interface {
	Resolve(position events.Position, layerStack []int) (events.BehaviorBinding, bool)
}
