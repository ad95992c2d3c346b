package events

// BehaviorID constants recognized by the fixed behavior dispatch in
// package hid. A real firmware resolves an arbitrary device-tree-configured
// behavior tree; this module only needs enough concrete leaves to express
// tap, hold, combo, and chord bindings.
const (
	BehaviorNone BehaviorID = iota
	// BehaviorSendKey presses/releases a plain HID keycode.
	// Param1 = usage page, Param2 = keycode.
	BehaviorSendKey
	// BehaviorRegisterMod registers/unregisters a modifier mask for the
	// behavior's duration (the hold side of a mod-tap).
	// Param1 = ModSet bits.
	BehaviorRegisterMod
	// BehaviorMouseMove sets the pointer delta for as long as the binding
	// is held. Param1 = EncodeMouseMove packed horizontal/vertical fields.
	BehaviorMouseMove
	// BehaviorScroll sets the scroll delta for as long as the binding is
	// held. Param1 = EncodeScroll packed horizontal/vertical fields.
	BehaviorScroll
)
