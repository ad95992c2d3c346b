package events

// ModSet is an 8-bit mask of left/right control/shift/alt/gui.
type ModSet uint8

const (
	ModLeftControl ModSet = 1 << iota
	ModLeftShift
	ModLeftAlt
	ModLeftGUI
	ModRightControl
	ModRightShift
	ModRightAlt
	ModRightGUI
)

// Has reports whether all bits in other are set in m.
func (m ModSet) Has(other ModSet) bool { return m&other == other }

// With returns m with other's bits set.
func (m ModSet) With(other ModSet) ModSet { return m | other }

// Without returns m with other's bits cleared.
func (m ModSet) Without(other ModSet) ModSet { return m &^ other }

// KeycodeEvent is a resolved HID usage bound for the aggregator.
type KeycodeEvent struct {
	UsagePage     uint8
	Keycode       uint16
	ImplicitMods  ModSet
	ExplicitMods  ModSet
	Pressed       bool
	TimestampMs   uint64
}

// EffectiveMods is the union of implicit and explicit modifiers that should
// be registered alongside this keycode.
func (k KeycodeEvent) EffectiveMods() ModSet {
	return k.ImplicitMods | k.ExplicitMods
}
