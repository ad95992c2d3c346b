package taphold

import (
	"github.com/tapstack/corefw/bus"
	"github.com/tapstack/corefw/capture"
	"github.com/tapstack/corefw/events"
	"github.com/tapstack/corefw/hid"
	"github.com/tapstack/corefw/internal/sched"
)

// ModTap is the mod-tap specialization of Engine: its hold side registers
// a modifier (via events.BehaviorRegisterMod)
// rather than an arbitrary behavior, and it credits replayed captured
// keypresses with exactly the modifiers that were live when the mod-tap
// started plus its own hold modifier — never modifiers that happened to
// change in between.
type ModTap struct {
	*Engine
	creditedMods   events.ModSet
	creditedActive bool
}

// NewModTap wraps NewEngine, installing liveMods (a snapshot of the
// aggregator's currently-registered modifiers) and the credited-mods hook.
func NewModTap(
	queue *capture.Queue,
	lookup ConfigLookup,
	invoker hid.Invoker,
	liveMods func() events.ModSet,
	raisePosition func(events.PositionEvent) bus.Result,
	newTimer sched.TimerFactory,
	post sched.Poster,
	yield capture.Yielder,
	log bus.Logger,
) *ModTap {
	e := NewEngine(queue, lookup, invoker, raisePosition, newTimer, post, yield, log)
	e.liveMods = liveMods
	mt := &ModTap{Engine: e}
	e.creditHook = func(mods events.ModSet, active bool) {
		mt.creditedMods = mods
		mt.creditedActive = active
	}
	return mt
}

// CurrentCreditedMods reports the ModSet a replayed captured keypress
// should be stamped with right now, and whether a replay window is
// currently open. The default key-to-HID translator (outside this
// package's scope) consults this while resolving a PositionEvent that
// arrived via capture.Queue.ReleaseAll, so the resulting KeycodeEvent's
// ImplicitMods reflect the mod-tap's start-time snapshot rather than
// whatever is live at replay time.
func (mt *ModTap) CurrentCreditedMods() (events.ModSet, bool) {
	return mt.creditedMods, mt.creditedActive
}
