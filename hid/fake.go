package hid

import "github.com/tapstack/corefw/events"

// CallKind discriminates a recorded Fake call, for tests that assert on
// the exact HID call sequence.
type CallKind int

const (
	CallRegisterMods CallKind = iota
	CallUnregisterMods
	CallPressKey
	CallReleaseKey
	CallMouseMovementSet
	CallMouseScrollSet
	CallSendReport
)

// Call is one recorded Fake invocation.
type Call struct {
	Kind       CallKind
	Mods       events.ModSet
	UsagePage  uint8
	Keycode    uint16
	DX, DY     int8
	HX, VY     int16
}

// Fake is an in-memory Aggregator recording every call in order, for unit
// tests and for cmd/kbsim's printed HID trace.
type Fake struct {
	Calls      []Call
	activeMods events.ModSet
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) RegisterMods(mods events.ModSet) {
	f.activeMods |= mods
	f.Calls = append(f.Calls, Call{Kind: CallRegisterMods, Mods: mods})
}

func (f *Fake) UnregisterMods(mods events.ModSet) {
	f.activeMods &^= mods
	f.Calls = append(f.Calls, Call{Kind: CallUnregisterMods, Mods: mods})
}

func (f *Fake) PressKey(usagePage uint8, keycode uint16) {
	f.Calls = append(f.Calls, Call{Kind: CallPressKey, UsagePage: usagePage, Keycode: keycode})
}

func (f *Fake) ReleaseKey(usagePage uint8, keycode uint16) {
	f.Calls = append(f.Calls, Call{Kind: CallReleaseKey, UsagePage: usagePage, Keycode: keycode})
}

func (f *Fake) MouseMovementSet(dx, dy int8) {
	f.Calls = append(f.Calls, Call{Kind: CallMouseMovementSet, DX: dx, DY: dy})
}

func (f *Fake) MouseScrollSet(hx, vy int16) {
	f.Calls = append(f.Calls, Call{Kind: CallMouseScrollSet, HX: hx, VY: vy})
}

func (f *Fake) SendReport(usagePage uint8) {
	f.Calls = append(f.Calls, Call{Kind: CallSendReport, UsagePage: usagePage})
}

func (f *Fake) ActiveMods() events.ModSet { return f.activeMods }
