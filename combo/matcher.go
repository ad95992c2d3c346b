package combo

import (
	"time"

	"github.com/tapstack/corefw/bus"
	"github.com/tapstack/corefw/capture"
	"github.com/tapstack/corefw/events"
	"github.com/tapstack/corefw/hid"
	"github.com/tapstack/corefw/internal/sched"
)

// window holds the recognition state for one in-progress candidate set.
type window struct {
	candidates []*Config
	pressed    []events.Position
	captured   []events.PositionEvent
	exact      *Config
}

func (w *window) reset() {
	w.candidates = nil
	w.pressed = nil
	w.captured = nil
	w.exact = nil
}

func (w *window) empty() bool { return len(w.pressed) == 0 }

// Fired is emitted to an optional telemetry hook when a combo or chord
// commits.
type Fired struct {
	Name        string
	Positions   []events.Position
	TimestampMs uint64
}

// Matcher implements combo candidate-intersection: a run of nearly
// simultaneous position presses is narrowed to the set of combos whose key
// positions are a superset of what's been pressed so far, and the combo
// commits as soon as exactly one candidate remains and its position set is
// fully satisfied.
//
// Matcher is not safe for concurrent use; like taphold.Engine it expects
// every call (including timer expiry) to be serialized onto one logical
// goroutine.
type Matcher struct {
	byPosition map[events.Position][]*Config
	win        window

	invoker       hid.Invoker
	raisePosition func(events.PositionEvent) bus.Result
	newTimer      sched.TimerFactory
	post          sched.Poster
	yield         capture.Yielder

	timer sched.Timer

	active     *Config
	activeHeld map[events.Position]bool

	// draining is set while an abandoned window's captures are re-raised:
	// those events must flow past this matcher to later subscribers, never
	// back into a fresh recognition window.
	draining bool

	notify func(Fired)
	log    bus.Logger
}

// NewMatcher builds a combo matcher over the given set of combo configs.
// raisePosition re-enters the bus for a captured event that a failed or
// timed-out window is abandoning; yield paces those re-raises the same way
// capture.Queue.ReleaseAll does for tap-hold.
func NewMatcher(configs []Config, invoker hid.Invoker, raisePosition func(events.PositionEvent) bus.Result, newTimer sched.TimerFactory, post sched.Poster, yield capture.Yielder, log bus.Logger) (*Matcher, error) {
	if log == nil {
		log = bus.NopLogger{}
	}
	if post == nil {
		post = sched.Inline{}
	}
	if yield == nil {
		yield = capture.NoopYielder{}
	}
	m := &Matcher{
		byPosition:    make(map[events.Position][]*Config),
		invoker:       invoker,
		raisePosition: raisePosition,
		newTimer:      newTimer,
		post:          post,
		yield:         yield,
		log:           log,
	}
	for i := range configs {
		cfg := &configs[i]
		if len(cfg.Positions) > MaxPositions {
			return nil, ErrCandidateTableFull
		}
		for _, p := range cfg.Positions {
			m.byPosition[p] = append(m.byPosition[p], cfg)
		}
	}
	return m, nil
}

// SetNotifier installs a telemetry callback invoked after every commit.
func (m *Matcher) SetNotifier(notify func(Fired)) { m.notify = notify }

func intersect(a, b []*Config) []*Config {
	if a == nil {
		out := make([]*Config, len(b))
		copy(out, b)
		return out
	}
	set := make(map[*Config]bool, len(b))
	for _, c := range b {
		set[c] = true
	}
	var out []*Config
	for _, c := range a {
		if set[c] {
			out = append(out, c)
		}
	}
	return out
}

func findExact(candidates []*Config, pressed []events.Position) *Config {
	pressedSet := positionSet(pressed)
	for _, c := range candidates {
		if setsEqual(pressedSet, c.Positions) {
			return c
		}
	}
	return nil
}

// HandlePosition is the bus.PositionSubscriber entry point. Register it
// ahead of taphold in the subscriber chain: a combo that commits wins over
// a tap-hold instance that would otherwise start capturing the same keys.
func (m *Matcher) HandlePosition(ev events.PositionEvent) bus.Result {
	if m.draining {
		return bus.Passed
	}
	if m.active != nil && m.activeHeld[ev.Position] {
		return m.handleActiveMember(ev)
	}
	if ev.IsPress() {
		return m.handlePress(ev)
	}
	return m.handleReleaseDuringWindow(ev)
}

func (m *Matcher) handlePress(ev events.PositionEvent) bus.Result {
	combosHere := m.byPosition[ev.Position]
	newCandidates := intersect(m.win.candidates, combosHere)

	if len(newCandidates) == 0 {
		prevExact := m.win.exact
		captured := m.win.captured
		m.win.reset()
		m.stopTimer()

		if prevExact != nil {
			// The prior state already matched a combo exactly; this press
			// just isn't part of it. Commit the match, then give the new
			// press a fresh window of its own.
			m.commit(prevExact, ev.TimestampMs)
			return m.handlePress(ev)
		}

		m.drain(captured)
		if len(combosHere) == 0 {
			return bus.Passed
		}
		return m.handlePress(ev)
	}

	m.win.candidates = newCandidates
	m.win.pressed = append(m.win.pressed, ev.Position)
	m.win.captured = append(m.win.captured, ev)
	m.win.exact = findExact(newCandidates, m.win.pressed)

	if len(newCandidates) == 1 && m.win.exact != nil {
		m.stopTimer()
		cfg := m.win.exact
		m.win.reset()
		m.commit(cfg, ev.TimestampMs)
		return bus.Handled
	}

	m.armTimer(newCandidates)
	return bus.Captured
}

func (m *Matcher) armTimer(candidates []*Config) {
	m.stopTimer()
	timeoutMs := candidates[0].TimeoutMs
	for _, c := range candidates[1:] {
		if c.TimeoutMs < timeoutMs {
			timeoutMs = c.TimeoutMs
		}
	}
	m.timer = m.newTimer()
	m.timer.Start(time.Duration(timeoutMs)*time.Millisecond, func() {
		m.post.Post(func() { m.onTimeout() })
	})
}

func (m *Matcher) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Matcher) onTimeout() {
	if m.win.empty() {
		return
	}
	captured := m.win.captured
	m.win.reset()
	m.timer = nil
	m.drain(captured)
}

// handleReleaseDuringWindow: a release that arrives while a window is open
// but no combo has committed aborts the window — the keys released early
// clearly weren't simultaneous enough to form a combo. The captured presses
// are replayed before the release passes through, preserving order.
func (m *Matcher) handleReleaseDuringWindow(ev events.PositionEvent) bus.Result {
	if m.win.empty() {
		return bus.Passed
	}
	captured := m.win.captured
	m.win.reset()
	m.stopTimer()
	m.drain(captured)
	return bus.Passed
}

func (m *Matcher) commit(cfg *Config, ts uint64) {
	m.invoker.Press(cfg.Binding)
	m.active = cfg
	m.activeHeld = make(map[events.Position]bool, len(cfg.Positions))
	for _, p := range cfg.Positions {
		m.activeHeld[p] = true
	}
	m.log.Info("combo: committed", "name", cfg.Name)
	if m.notify != nil {
		m.notify(Fired{Name: cfg.Name, Positions: cfg.Positions, TimestampMs: ts})
	}
}

func (m *Matcher) handleActiveMember(ev events.PositionEvent) bus.Result {
	if ev.IsPress() {
		// Already-held position re-pressed: ignore, still part of the combo.
		return bus.Handled
	}
	delete(m.activeHeld, ev.Position)
	if len(m.activeHeld) == 0 {
		m.invoker.Release(m.active.Binding)
		m.active = nil
		m.activeHeld = nil
	}
	return bus.Handled
}

// Occupancy reports the current recognition window's size, for the stats
// reporter and debug endpoint: how many candidates remain and how many
// positions have been pressed so far in the open window.
func (m *Matcher) Occupancy() (candidates, pressed int) {
	return len(m.win.candidates), len(m.win.pressed)
}

// drain re-raises an abandoned window's captured events in order. While it
// runs, HandlePosition passes everything straight through, so each replayed
// event reaches the subscribers after this matcher (chord, tap-hold, the
// default translator) exactly once.
func (m *Matcher) drain(captured []events.PositionEvent) {
	if m.raisePosition == nil || len(captured) == 0 {
		return
	}
	m.draining = true
	defer func() { m.draining = false }()
	for _, ev := range captured {
		m.raisePosition(ev)
		m.yield.Yield()
	}
}
