// Package engine wires the bus, capture queue, tap-hold/mod-tap engine,
// combo/chord matchers, and mouse integrator into one owning value: the
// Engine holds every bounded table, and bus subscribers are methods on it
// rather than free functions over package globals.
//
// Subscriber registration order is load-bearing: combo and chord register
// before tap-hold (a committed combo wins over a tap-hold that would
// otherwise start capturing the same position, because combos act on
// position events upstream), and tap-hold registers before the default
// key-to-HID translator.
package engine

import (
	"context"
	"time"

	"github.com/tapstack/corefw/bus"
	"github.com/tapstack/corefw/capture"
	"github.com/tapstack/corefw/combo"
	"github.com/tapstack/corefw/config"
	"github.com/tapstack/corefw/events"
	"github.com/tapstack/corefw/hid"
	"github.com/tapstack/corefw/internal/sched"
	"github.com/tapstack/corefw/mouse"
	"github.com/tapstack/corefw/taphold"
	"github.com/tapstack/corefw/telemetry"
)

// Engine is the single value owning every stateful behavior component. It
// is not safe for concurrent use; every method (including timer expiry
// callbacks routed through Post) must run on one logical goroutine.
type Engine struct {
	Bus     *bus.Bus
	Queue   *capture.Queue
	TapHold *taphold.ModTap
	Combos  *combo.Matcher
	Chords  *combo.ChordMatcher
	Mouse   *mouse.Accumulator

	invoker      hid.Invoker
	agg          hid.Aggregator
	lookup       hid.KeymapResolver
	layerStack   []int
	telemetry    *telemetry.Bus
	sessionID    string
	tapholdIndex int
	log          bus.Logger
}

// Deps bundles the external collaborators Build needs: the HID aggregator,
// the keymap resolver, the scheduler primitives, and an optional telemetry
// bus and logger.
type Deps struct {
	Aggregator hid.Aggregator
	Resolver   hid.KeymapResolver
	LayerStack []int
	NewTimer   sched.TimerFactory
	Post       sched.Poster
	Yield      capture.Yielder
	Telemetry  *telemetry.Bus
	SessionID  string
	Log        bus.Logger
	QueueDepth int
}

// Build constructs a fully wired Engine from a resolved device config and
// its external collaborators.
func Build(cfg *config.Resolved, deps Deps) (*Engine, error) {
	log := deps.Log
	if log == nil {
		log = bus.NopLogger{}
	}

	queue := capture.NewQueue(deps.QueueDepth)
	invoker := hid.NewInvoker(deps.Aggregator)

	e := &Engine{
		Queue:      queue,
		invoker:    invoker,
		agg:        deps.Aggregator,
		lookup:     deps.Resolver,
		layerStack: deps.LayerStack,
		telemetry:  deps.Telemetry,
		sessionID:  deps.SessionID,
		log:        log,
	}

	e.Bus = bus.New(log, e.defaultPosition, e.defaultKeycode)

	lookupFn := func(pos events.Position) (taphold.Config, bool) {
		c, ok := cfg.TapHolds[pos]
		return c, ok
	}
	// Tap-hold replays its captured events from its own dispatch stage: the
	// combo/chord matchers upstream already adjudicated them once, and the
	// replay may still need to feed the next undecided tap-hold instance.
	tapholdRaise := func(ev events.PositionEvent) bus.Result {
		return e.Bus.RaisePositionFrom(e.tapholdIndex, ev)
	}
	e.TapHold = taphold.NewModTap(queue, lookupFn, invoker, deps.Aggregator.ActiveMods,
		tapholdRaise, deps.NewTimer, deps.Post, deps.Yield, log)
	e.TapHold.SetNotifier(e.onTapHoldDecision)

	combos, err := combo.NewMatcher(cfg.Combos, invoker, e.Bus.RaisePosition, deps.NewTimer, deps.Post, deps.Yield, log)
	if err != nil {
		return nil, err
	}
	e.Combos = combos
	e.Combos.SetNotifier(e.onComboFired)

	chords, err := combo.NewChordMatcher(cfg.Chords, invoker, e.Bus.RaisePosition, deps.NewTimer, deps.Post, deps.Yield, log)
	if err != nil {
		return nil, err
	}
	e.Chords = chords
	e.Chords.SetNotifier(e.onChordFired)

	e.Mouse = mouse.NewAccumulator(cfg.Mouse)

	// Combo/chord register ahead of tap-hold: a combo that commits wins
	// over a tap-hold instance that would otherwise start capturing the
	// same position.
	e.Bus.SubscribePosition(e.Combos.HandlePosition)
	e.Bus.SubscribePosition(e.Chords.HandlePosition)
	e.tapholdIndex = e.Bus.SubscribePosition(e.TapHold.HandlePosition)

	return e, nil
}

// Raise feeds one raw PositionEvent from the matrix scanner into the bus.
func (e *Engine) Raise(ev events.PositionEvent) bus.Result {
	return e.Bus.RaisePosition(ev)
}

// TickMouse advances the mouse integrator to now and reports the
// resulting movement and scroll through the HID aggregator in one report.
func (e *Engine) TickMouse(now time.Time, pointerSpeed, scrollSpeed mouse.Vector2D) {
	dx, dy, hx, vy := e.Mouse.Tick(now, pointerSpeed, scrollSpeed)
	mouse.Report(e.agg, dx, dy, hx, vy)
	e.agg.SendReport(0)
}

// defaultPosition is the key-to-HID translator registered after every
// behavior subscriber: anything that reaches here is a plain keypress with
// no tap-hold/combo/chord bound to its position, resolved via the opaque
// KeymapResolver. Plain keycodes become KeycodeEvents re-raised on the
// bus, so a press replayed while a mod-tap's credited window is open is
// stamped with the modifiers live when that mod-tap started, not whatever
// is registered at replay time.
func (e *Engine) defaultPosition(ev events.PositionEvent) bus.Result {
	if e.lookup == nil {
		return bus.Passed
	}
	binding, ok := e.lookup.Resolve(ev.Position, e.layerStack)
	if !ok {
		return bus.Passed
	}
	if binding.BehaviorID == events.BehaviorSendKey {
		kev := events.KeycodeEvent{
			UsagePage:   uint8(binding.Param1),
			Keycode:     uint16(binding.Param2),
			Pressed:     ev.IsPress(),
			TimestampMs: ev.TimestampMs,
		}
		if mods, replaying := e.TapHold.CurrentCreditedMods(); replaying && kev.Pressed {
			kev.ImplicitMods = mods
		}
		return e.Bus.RaiseKeycode(kev)
	}
	if ev.IsPress() {
		e.invoker.Press(binding)
	} else {
		e.invoker.Release(binding)
	}
	return bus.Handled
}

// defaultKeycode realizes a resolved keycode against the HID aggregator.
// A press carrying implicit modifiers not currently registered (a replay
// under a mod-tap's credited snapshot) registers them for the duration of
// the press only; during such a replay, registered modifiers outside the
// credited set are lifted for the press too. The key goes out with exactly
// the credited set and the aggregator's registered state is left as it was.
func (e *Engine) defaultKeycode(kev events.KeycodeEvent) bus.Result {
	if !kev.Pressed {
		e.agg.ReleaseKey(kev.UsagePage, kev.Keycode)
		return bus.Handled
	}
	active := e.agg.ActiveMods()
	extra := kev.EffectiveMods().Without(active)
	var stray events.ModSet
	if _, replaying := e.TapHold.CurrentCreditedMods(); replaying {
		stray = active.Without(kev.EffectiveMods())
	}
	if stray != 0 {
		e.agg.UnregisterMods(stray)
	}
	if extra != 0 {
		e.agg.RegisterMods(extra)
	}
	e.agg.PressKey(kev.UsagePage, kev.Keycode)
	if extra != 0 {
		e.agg.UnregisterMods(extra)
	}
	if stray != 0 {
		e.agg.RegisterMods(stray)
	}
	return bus.Handled
}

func (e *Engine) onTapHoldDecision(d taphold.Decision) {
	if e.telemetry == nil {
		return
	}
	_ = e.telemetry.NotifyObservers(context.Background(), telemetry.NewTapHoldDecidedEvent(
		e.sessionID, uint16(d.Position), d.Outcome, d.TimestampMs))
}

func (e *Engine) onComboFired(f combo.Fired) {
	if e.telemetry == nil {
		return
	}
	_ = e.telemetry.NotifyObservers(context.Background(), telemetry.NewComboFiredEvent(
		e.sessionID, f.Name, rawPositions(f.Positions), f.TimestampMs))
}

func (e *Engine) onChordFired(f combo.Fired) {
	if e.telemetry == nil {
		return
	}
	_ = e.telemetry.NotifyObservers(context.Background(), telemetry.NewChordFiredEvent(
		e.sessionID, f.Name, rawPositions(f.Positions), f.TimestampMs))
}

func rawPositions(positions []events.Position) []uint16 {
	out := make([]uint16, len(positions))
	for i, p := range positions {
		out[i] = uint16(p)
	}
	return out
}

// Occupancy reports how full each bounded table currently is, for the
// stats reporter and debug endpoint. It never mutates engine state.
type Occupancy struct {
	TapHoldUsed, TapHoldCapacity     int
	CaptureQueueLen, CaptureQueueCap int
	ComboCandidates, ComboPressed    int
	ChordCandidates, ChordPressed    int
	ChordActive                      bool
}

// Snapshot reads current occupancy without mutating anything, safe to call
// from the debug HTTP server or the cron stats job, both of which run
// outside the engine's single logical goroutine.
func (e *Engine) Snapshot() Occupancy {
	used, capacity := e.TapHold.Occupancy()
	comboCandidates, comboPressed := e.Combos.Occupancy()
	chordCandidates, chordPressed, chordActive := e.Chords.Occupancy()
	return Occupancy{
		TapHoldUsed:     used,
		TapHoldCapacity: capacity,
		CaptureQueueLen: e.Queue.Len(),
		CaptureQueueCap: e.Queue.Capacity(),
		ComboCandidates: comboCandidates,
		ComboPressed:    comboPressed,
		ChordCandidates: chordCandidates,
		ChordPressed:    chordPressed,
		ChordActive:     chordActive,
	}
}
