package combo

import (
	"time"

	"github.com/tapstack/corefw/bus"
	"github.com/tapstack/corefw/capture"
	"github.com/tapstack/corefw/events"
	"github.com/tapstack/corefw/hid"
	"github.com/tapstack/corefw/internal/sched"
)

// ChordMatcher is the release-after variant of Matcher: it runs the same
// candidate-intersection recognition and commits (presses its binding) the
// instant its position set is fully held, but where a combo releases its
// binding as soon as the last member lifts, a chord arms a release-after
// timer at that point and only releases when the timer elapses. Re-pressing
// a member inside that window cancels the timer and keeps the chord active,
// and unrelated keypresses pass through while the chord binding is held.
type ChordMatcher struct {
	byPosition map[events.Position][]*ChordConfig
	win        chordWindow

	invoker       hid.Invoker
	raisePosition func(events.PositionEvent) bus.Result
	newTimer      sched.TimerFactory
	post          sched.Poster
	yield         capture.Yielder

	timer sched.Timer

	active *ChordConfig
	held   map[events.Position]bool

	draining bool

	notify func(Fired)
	log    bus.Logger
}

type chordWindow struct {
	candidates []*ChordConfig
	pressed    []events.Position
	captured   []events.PositionEvent
	exact      *ChordConfig
}

func (w *chordWindow) reset() {
	w.candidates = nil
	w.pressed = nil
	w.captured = nil
	w.exact = nil
}

func (w *chordWindow) empty() bool { return len(w.pressed) == 0 }

// NewChordMatcher builds a chord matcher over the given set of chord
// configs, mirroring NewMatcher's wiring.
func NewChordMatcher(configs []ChordConfig, invoker hid.Invoker, raisePosition func(events.PositionEvent) bus.Result, newTimer sched.TimerFactory, post sched.Poster, yield capture.Yielder, log bus.Logger) (*ChordMatcher, error) {
	if log == nil {
		log = bus.NopLogger{}
	}
	if post == nil {
		post = sched.Inline{}
	}
	if yield == nil {
		yield = capture.NoopYielder{}
	}
	m := &ChordMatcher{
		byPosition:    make(map[events.Position][]*ChordConfig),
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
func (m *ChordMatcher) SetNotifier(notify func(Fired)) { m.notify = notify }

func intersectChord(a, b []*ChordConfig) []*ChordConfig {
	if a == nil {
		out := make([]*ChordConfig, len(b))
		copy(out, b)
		return out
	}
	set := make(map[*ChordConfig]bool, len(b))
	for _, c := range b {
		set[c] = true
	}
	var out []*ChordConfig
	for _, c := range a {
		if set[c] {
			out = append(out, c)
		}
	}
	return out
}

func findExactChord(candidates []*ChordConfig, pressed []events.Position) *ChordConfig {
	pressedSet := positionSet(pressed)
	for _, c := range candidates {
		if setsEqual(pressedSet, c.Positions) {
			return c
		}
	}
	return nil
}

// HandlePosition is the bus.PositionSubscriber entry point.
func (m *ChordMatcher) HandlePosition(ev events.PositionEvent) bus.Result {
	if m.draining {
		return bus.Passed
	}
	if m.active != nil {
		return m.handleActive(ev)
	}
	if ev.IsPress() {
		return m.handlePress(ev)
	}
	return m.handleReleaseDuringWindow(ev)
}

func (m *ChordMatcher) handlePress(ev events.PositionEvent) bus.Result {
	combosHere := m.byPosition[ev.Position]
	newCandidates := intersectChord(m.win.candidates, combosHere)

	if len(newCandidates) == 0 {
		captured := m.win.captured
		m.win.reset()
		m.drain(captured)
		if len(combosHere) == 0 {
			return bus.Passed
		}
		return m.handlePress(ev)
	}

	m.win.candidates = newCandidates
	m.win.pressed = append(m.win.pressed, ev.Position)
	m.win.captured = append(m.win.captured, ev)
	m.win.exact = findExactChord(newCandidates, m.win.pressed)

	if len(newCandidates) == 1 && m.win.exact != nil {
		cfg := m.win.exact
		m.win.reset()
		m.commit(cfg, ev.TimestampMs)
		return bus.Handled
	}

	return bus.Captured
}

func (m *ChordMatcher) commit(cfg *ChordConfig, ts uint64) {
	m.invoker.Press(cfg.Binding)
	m.active = cfg
	m.held = make(map[events.Position]bool, len(cfg.Positions))
	for _, p := range cfg.Positions {
		m.held[p] = true
	}
	m.log.Info("chord: committed", "name", cfg.Name)
	if m.notify != nil {
		m.notify(Fired{Name: cfg.Name, Positions: cfg.Positions, TimestampMs: ts})
	}
}

// handleActive routes events arriving while the chord binding is held.
// Non-member keys pass through untouched, so normal typing can overlap an
// active chord.
func (m *ChordMatcher) handleActive(ev events.PositionEvent) bus.Result {
	cfg := m.active
	isMember := false
	for _, p := range cfg.Positions {
		if p == ev.Position {
			isMember = true
			break
		}
	}
	if !isMember {
		return bus.Passed
	}

	if ev.IsPress() {
		// A member re-pressed inside the release-after window keeps the
		// chord alive: cancel the pending release.
		m.stopTimer()
		m.held[ev.Position] = true
		return bus.Handled
	}

	delete(m.held, ev.Position)
	if len(m.held) == 0 {
		m.armReleaseAfter(cfg)
	}
	return bus.Handled
}

func (m *ChordMatcher) armReleaseAfter(cfg *ChordConfig) {
	m.stopTimer()
	m.timer = m.newTimer()
	m.timer.Start(time.Duration(cfg.ReleaseAfterMs)*time.Millisecond, func() {
		m.post.Post(func() { m.onReleaseAfterExpiry() })
	})
}

func (m *ChordMatcher) onReleaseAfterExpiry() {
	m.timer = nil
	if m.active == nil {
		return
	}
	if len(m.held) > 0 {
		// A member re-press raced the expiry; the cancel path already kept
		// the chord active, nothing to release.
		return
	}
	m.invoker.Release(m.active.Binding)
	m.log.Info("chord: released", "name", m.active.Name)
	m.active = nil
	m.held = nil
}

func (m *ChordMatcher) handleReleaseDuringWindow(ev events.PositionEvent) bus.Result {
	if m.win.empty() {
		return bus.Passed
	}
	captured := m.win.captured
	m.win.reset()
	m.drain(captured)
	return bus.Passed
}

func (m *ChordMatcher) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Occupancy reports the current recognition window's size and whether a
// chord binding is currently held, for the stats reporter and debug
// endpoint.
func (m *ChordMatcher) Occupancy() (candidates, pressed int, active bool) {
	return len(m.win.candidates), len(m.win.pressed), m.active != nil
}

func (m *ChordMatcher) drain(captured []events.PositionEvent) {
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
