package taphold

import (
	"time"

	"github.com/tapstack/corefw/bus"
	"github.com/tapstack/corefw/capture"
	"github.com/tapstack/corefw/events"
	"github.com/tapstack/corefw/hid"
	"github.com/tapstack/corefw/internal/sched"
)

// MaxSlots bounds the active-tap-hold table. Ten simultaneous dual-function
// keys is already more than two hands can hold down.
const MaxSlots = 10

type state int

const (
	stateUndecided state = iota
	stateDecidedTap
	stateDecidedHold
)

type slot struct {
	used            bool
	position        events.Position
	cfg             Config
	st              state
	startedAtMs     uint64
	timer           sched.Timer
	modTap          bool
	liveModsAtStart events.ModSet
}

// ConfigLookup resolves a position to the tap-hold/mod-tap Config bound
// there by the keymap, if any. The keymap resolver itself stays opaque;
// ConfigLookup is the narrow slice of that contract the tap-hold engine
// actually needs.
type ConfigLookup func(position events.Position) (Config, bool)

// Engine is the tap-hold / mod-tap decision engine. A single instance owns
// the bounded active-tap-hold table and the shared capture queue; there is
// no package-level mutable state.
//
// Engine is not safe for concurrent use from multiple goroutines; callers
// must route every invocation (including timer expiry, via the injected
// sched.Poster) through one logical goroutine.
type Engine struct {
	slots     [MaxSlots]slot
	undecided int // index into slots, -1 when none

	queue   *capture.Queue
	lookup  ConfigLookup
	invoker hid.Invoker

	// liveMods, when non-nil, marks this Engine as a mod-tap variant: it is
	// called at own-key DOWN to snapshot the modifiers live at that moment,
	// so replayed captured keypresses are credited with exactly those.
	liveMods func() events.ModSet
	// creditHook is notified of the credited-mods window around a replay:
	// active=true with the snapshot right before ReleaseAll, then
	// active=false right after. Used by ModTap.CurrentCreditedMods.
	creditHook func(mods events.ModSet, active bool)

	raisePosition func(events.PositionEvent) bus.Result
	newTimer      sched.TimerFactory
	post          sched.Poster
	yield         capture.Yielder

	notify func(Decision)
	log    bus.Logger
}

// Decision is emitted to an optional telemetry hook on every tap/hold
// resolution, for package telemetry to turn into a CloudEvent.
type Decision struct {
	Position    events.Position
	Outcome     string // "tap", "hold", "hold-release"
	TimestampMs uint64
}

// NewEngine builds a tap-hold engine. queue is the shared capture queue;
// lookup resolves positions to tap-hold configs; invoker realizes tap/hold
// bindings against the HID aggregator; raisePosition re-enters the bus for
// replayed captured events (engine.Build passes bus.Bus.RaisePositionFrom
// at tap-hold's own subscriber index); newTimer
// constructs one-shot timers; post serializes timer-expiry callbacks onto
// the engine's logical goroutine; yield paces re-raised events so each one
// settles downstream before the next is released.
func NewEngine(
	queue *capture.Queue,
	lookup ConfigLookup,
	invoker hid.Invoker,
	raisePosition func(events.PositionEvent) bus.Result,
	newTimer sched.TimerFactory,
	post sched.Poster,
	yield capture.Yielder,
	log bus.Logger,
) *Engine {
	if log == nil {
		log = bus.NopLogger{}
	}
	if post == nil {
		post = sched.Inline{}
	}
	return &Engine{
		undecided:     -1,
		queue:         queue,
		lookup:        lookup,
		invoker:       invoker,
		raisePosition: raisePosition,
		newTimer:      newTimer,
		post:          post,
		yield:         yield,
		log:           log,
	}
}

// SetNotifier installs a telemetry callback invoked after every decision.
func (e *Engine) SetNotifier(notify func(Decision)) { e.notify = notify }

func (e *Engine) notifyDecision(pos events.Position, outcome string, ts uint64) {
	if e.notify == nil {
		return
	}
	e.notify(Decision{Position: pos, Outcome: outcome, TimestampMs: ts})
}

func (e *Engine) indexOf(position events.Position) int {
	for i := range e.slots {
		if e.slots[i].used && e.slots[i].position == position {
			return i
		}
	}
	return -1
}

func (e *Engine) allocSlot() (int, error) {
	for i := range e.slots {
		if !e.slots[i].used {
			return i, nil
		}
	}
	return -1, ErrNoFreeSlot
}

func (e *Engine) freeSlot(idx int) {
	e.slots[idx] = slot{}
	if e.undecided == idx {
		e.undecided = -1
	}
}

func (e *Engine) raiseAdapter(ev events.PositionEvent) {
	if e.raisePosition != nil {
		e.raisePosition(ev)
	}
}

// HandlePosition is the bus.PositionSubscriber entry point: it must be
// registered before the default key-to-HID translator so tap-hold always
// sees raw position events first.
func (e *Engine) HandlePosition(ev events.PositionEvent) bus.Result {
	if idx := e.indexOf(ev.Position); idx >= 0 {
		return e.handleOwn(idx, ev)
	}
	// A press on a position that is itself tap-hold bound always starts its
	// own instance (forcing any currently undecided instance to decide
	// first) rather than being folded into the existing instance's
	// other-key handling.
	if ev.IsPress() {
		if cfg, ok := e.lookup(ev.Position); ok {
			return e.begin(ev, cfg)
		}
	}
	if e.undecided >= 0 {
		return e.handleOther(ev)
	}
	return bus.Passed
}

func (e *Engine) begin(ev events.PositionEvent, cfg Config) bus.Result {
	// At most one instance may be undecided: force the current one to
	// decide before this one starts capturing, as if its timer had fired,
	// so its captured events drain first.
	if e.undecided >= 0 {
		e.forceDecide(e.undecided, ev.TimestampMs)
	}

	idx, err := e.allocSlot()
	if err != nil {
		e.log.Error("taphold: dropping press, no free active slot", "position", ev.Position)
		return bus.Handled
	}

	s := &e.slots[idx]
	s.used = true
	s.position = ev.Position
	s.cfg = cfg
	s.st = stateUndecided
	s.startedAtMs = ev.TimestampMs
	if e.liveMods != nil {
		s.modTap = true
		s.liveModsAtStart = e.liveMods()
	}
	e.undecided = idx

	if err := e.queue.NewGeneration(); err != nil {
		e.log.Warn("taphold: capture queue full opening new generation", "position", ev.Position)
	}

	s.timer = e.newTimer()
	s.timer.Start(time.Duration(cfg.TappingTermMs)*time.Millisecond, func() {
		e.post.Post(func() { e.onTimerExpiry(idx) })
	})

	return bus.Handled
}

func (e *Engine) handleOwn(idx int, ev events.PositionEvent) bus.Result {
	s := &e.slots[idx]
	if ev.IsPress() {
		e.log.Warn("taphold: duplicate press for active position", "position", ev.Position)
		return bus.Handled
	}

	switch s.st {
	case stateUndecided:
		// Own-key release while Undecided never captures its own release
		// and always yields DecidedTap, in every flavor — including
		// TapPreferred racing the timer: the release wins.
		s.timer.Stop()
		e.decideTap(idx, ev.TimestampMs)
		return bus.Handled
	case stateDecidedHold:
		e.invoker.Release(s.cfg.Hold)
		e.notifyDecision(s.position, "hold-release", ev.TimestampMs)
		e.freeSlot(idx)
		return bus.Handled
	default:
		e.freeSlot(idx)
		return bus.Handled
	}
}

func (e *Engine) handleOther(ev events.PositionEvent) bus.Result {
	idx := e.undecided
	s := &e.slots[idx]

	if ev.IsPress() {
		switch s.cfg.Flavor {
		case ModPreferred:
			// Other-key DOWN -> DecidedHold: decide now, replay the earlier
			// captures, then let the triggering event itself continue
			// downstream with the modifier already active.
			e.decideHoldAndReplay(idx, ev.TimestampMs)
			return bus.Passed
		default: // Balanced, TapPreferred: remain Undecided, capture.
			if last, ok := e.queue.FindLast(ev.Position); ok && last.State == ev.State {
				e.log.Error("taphold: press already captured in this generation",
					"position", ev.Position, "err", bus.ErrDoubleCapture)
				return bus.Handled
			}
			if err := e.queue.Capture(ev); err != nil {
				e.log.Error("taphold: capture queue full, dropping press", "position", ev.Position)
				return bus.Handled
			}
			return bus.Captured
		}
	}

	// Other-key UP.
	_, hasMatchingDown := e.queue.FindLast(ev.Position)
	if !hasMatchingDown {
		// Other-key UP without a matching DOWN in this generation: pass
		// through regardless of flavor.
		return bus.Passed
	}

	switch s.cfg.Flavor {
	case ModPreferred, Balanced:
		e.decideHoldAndReplay(idx, ev.TimestampMs)
		return bus.Passed
	default: // TapPreferred: remain Undecided, capture.
		if err := e.queue.Capture(ev); err != nil {
			e.log.Error("taphold: capture queue full, dropping release", "position", ev.Position)
			return bus.Handled
		}
		return bus.Captured
	}
}

func (e *Engine) onTimerExpiry(idx int) {
	s := &e.slots[idx]
	if !s.used || s.st != stateUndecided {
		// Cancellation raced expiry; cleanup already happened elsewhere.
		return
	}
	e.decideHoldAndReplay(idx, s.startedAtMs)
}

// forceDecide resolves an undecided instance as if its timer had fired.
func (e *Engine) forceDecide(idx int, ts uint64) {
	s := &e.slots[idx]
	if s.timer != nil {
		s.timer.Stop()
	}
	e.decideHoldAndReplay(idx, ts)
}

func (e *Engine) decideTap(idx int, ts uint64) {
	s := &e.slots[idx]
	// Leave Undecided before replaying: a replayed event re-entering
	// HandlePosition must not be captured by this instance again. It may
	// legitimately start (or feed) the next undecided instance instead.
	s.st = stateDecidedTap
	if e.undecided == idx {
		e.undecided = -1
	}
	pos := s.position

	e.invoker.Press(s.cfg.Tap)
	e.queue.ReleaseAll(e.raiseAdapter, e.yield)
	e.invoker.Release(s.cfg.Tap)
	e.notifyDecision(pos, "tap", ts)
	e.freeSlot(idx)
}

func (e *Engine) decideHoldAndReplay(idx int, ts uint64) {
	s := &e.slots[idx]
	e.invoker.Press(s.cfg.Hold)
	s.st = stateDecidedHold
	if e.undecided == idx {
		e.undecided = -1
	}
	e.notifyDecision(s.position, "hold", ts)

	if s.modTap && e.creditHook != nil {
		e.creditHook(s.liveModsAtStart|holdModBits(s.cfg), true)
		e.queue.ReleaseAll(e.raiseAdapter, e.yield)
		e.creditHook(0, false)
		return
	}
	e.queue.ReleaseAll(e.raiseAdapter, e.yield)
}

func holdModBits(cfg Config) events.ModSet {
	if cfg.Hold.BehaviorID == events.BehaviorRegisterMod {
		return events.ModSet(cfg.Hold.Param1)
	}
	return 0
}

// Occupancy reports how many of the bounded active-tap-hold slots are in
// use, for the stats reporter and debug endpoint.
func (e *Engine) Occupancy() (used, capacity int) {
	for i := range e.slots {
		if e.slots[i].used {
			used++
		}
	}
	return used, len(e.slots)
}
