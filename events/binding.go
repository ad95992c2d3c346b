package events

// BehaviorID names a behavior implementation (tap-hold, mod-tap, combo,
// chord, momentary, toggle-layer, ...). The core only ever treats it as an
// opaque discriminator handed back by the keymap resolver.
type BehaviorID uint16

// BehaviorBinding is an immutable reference to a resolved behavior instance
// plus its two 32-bit parameters.
type BehaviorBinding struct {
	BehaviorID BehaviorID
	Param1     uint32
	Param2     uint32
}
