package hid

import "github.com/tapstack/corefw/events"

// Invoker maps a BehaviorBinding's discriminator to the Aggregator calls
// that realize it. Tap-hold, mod-tap, and combo/chord all press and release
// resolved bindings through the same Invoker so that adding a new leaf
// behavior never touches the decision engines.
type Invoker struct {
	Agg Aggregator
}

// NewInvoker wraps an Aggregator for behavior dispatch.
func NewInvoker(agg Aggregator) Invoker { return Invoker{Agg: agg} }

// Press realizes the DOWN side of a resolved binding. Mouse and scroll
// bindings carry their deltas packed into Param1 per the bus encoding;
// they are decoded here, at the aggregator boundary.
func (inv Invoker) Press(b events.BehaviorBinding) {
	switch b.BehaviorID {
	case events.BehaviorSendKey:
		inv.Agg.PressKey(uint8(b.Param1), uint16(b.Param2))
	case events.BehaviorRegisterMod:
		inv.Agg.RegisterMods(events.ModSet(b.Param1))
	case events.BehaviorMouseMove:
		dx, dy := events.DecodeMouseMove(b.Param1)
		inv.Agg.MouseMovementSet(clampToInt8(dx), clampToInt8(dy))
	case events.BehaviorScroll:
		hx, vy := events.DecodeScroll(b.Param1)
		inv.Agg.MouseScrollSet(int16(hx), int16(vy))
	}
}

// Release realizes the UP side of a resolved binding. Releasing a mouse
// or scroll binding zeroes the current tick's delta.
func (inv Invoker) Release(b events.BehaviorBinding) {
	switch b.BehaviorID {
	case events.BehaviorSendKey:
		inv.Agg.ReleaseKey(uint8(b.Param1), uint16(b.Param2))
	case events.BehaviorRegisterMod:
		inv.Agg.UnregisterMods(events.ModSet(b.Param1))
	case events.BehaviorMouseMove:
		inv.Agg.MouseMovementSet(0, 0)
	case events.BehaviorScroll:
		inv.Agg.MouseScrollSet(0, 0)
	}
}

func clampToInt8(v int16) int8 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return int8(v)
}
