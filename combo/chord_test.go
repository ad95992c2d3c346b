package combo

import (
	"testing"

	"github.com/tapstack/corefw/bus"
	"github.com/tapstack/corefw/capture"
	"github.com/tapstack/corefw/events"
	"github.com/tapstack/corefw/hid"
	"github.com/tapstack/corefw/internal/sched"
)

type chordHarness struct {
	fake   *hid.Fake
	m      *ChordMatcher
	timers []*sched.ManualTimer
}

func newChordHarness(t *testing.T, cfgs []ChordConfig) *chordHarness {
	t.Helper()
	h := &chordHarness{fake: hid.NewFake()}
	newTimer := func() sched.Timer {
		tm := sched.NewManualTimer()
		h.timers = append(h.timers, tm)
		return tm
	}
	var raise func(events.PositionEvent) bus.Result
	m, err := NewChordMatcher(cfgs, hid.NewInvoker(h.fake), func(ev events.PositionEvent) bus.Result {
		return raise(ev)
	}, newTimer, sched.Inline{}, capture.NoopYielder{}, nil)
	if err != nil {
		t.Fatalf("NewChordMatcher: %v", err)
	}
	h.m = m
	raise = m.HandlePosition
	return h
}

// A fully-pressed chord presses its binding immediately; the binding is
// released only after the release-after window elapses following the last
// member's release.
func TestChordPressesOnFullMatchReleasesAfterWindow(t *testing.T) {
	cfg := ChordConfig{Name: "ab", ReleaseAfterMs: 50, Positions: []events.Position{posA, posB}, Binding: esc(0x07, 0x2c)}
	h := newChordHarness(t, []ChordConfig{cfg})

	h.m.HandlePosition(cpress(posA, 0))
	if r := h.m.HandlePosition(cpress(posB, 5)); r != bus.Handled {
		t.Fatalf("full match = %v, want Handled", r)
	}
	if len(h.fake.Calls) != 1 || h.fake.Calls[0].Kind != hid.CallPressKey {
		t.Fatalf("expected binding press on full match, got %v", h.fake.Calls)
	}

	h.m.HandlePosition(crelease(posA, 20))
	h.m.HandlePosition(crelease(posB, 25))
	if len(h.fake.Calls) != 1 {
		t.Fatalf("binding must stay held until the window elapses: %v", h.fake.Calls)
	}
	if len(h.timers) != 1 || !h.timers[0].Running() {
		t.Fatalf("expected release-after timer armed at last member release")
	}

	h.timers[0].Trigger()
	got := kindSeqChord(h.fake.Calls)
	want := []hid.CallKind{hid.CallPressKey, hid.CallReleaseKey}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("chord sequence = %v, want %v", got, want)
	}
}

// Re-pressing a member inside the release-after window cancels the pending
// release: the chord stays active with a single binding press.
func TestChordRepressInsideWindowKeepsActive(t *testing.T) {
	cfg := ChordConfig{Name: "ab", ReleaseAfterMs: 50, Positions: []events.Position{posA, posB}, Binding: esc(0x07, 0x2c)}
	h := newChordHarness(t, []ChordConfig{cfg})

	h.m.HandlePosition(cpress(posA, 0))
	h.m.HandlePosition(cpress(posB, 5))
	h.m.HandlePosition(crelease(posA, 20))
	h.m.HandlePosition(crelease(posB, 25))
	if len(h.timers) != 1 {
		t.Fatalf("expected release-after timer armed")
	}

	if r := h.m.HandlePosition(cpress(posA, 40)); r != bus.Handled {
		t.Fatalf("member re-press = %v, want Handled", r)
	}
	if h.timers[0].Running() {
		t.Fatalf("re-press must cancel the pending release")
	}
	if len(h.fake.Calls) != 1 {
		t.Fatalf("no second binding press on re-press: %v", h.fake.Calls)
	}

	h.m.HandlePosition(crelease(posA, 60))
	if len(h.timers) != 2 {
		t.Fatalf("expected a fresh release-after timer")
	}
	h.timers[1].Trigger()
	got := kindSeqChord(h.fake.Calls)
	if len(got) != 2 || got[1] != hid.CallReleaseKey {
		t.Fatalf("chord sequence = %v, want press then single release", got)
	}
}

// Unrelated keys pass through while the chord binding is held.
func TestChordOverlapsWithNormalKeys(t *testing.T) {
	cfg := ChordConfig{Name: "ab", ReleaseAfterMs: 50, Positions: []events.Position{posA, posB}, Binding: esc(0x07, 0x2c)}
	h := newChordHarness(t, []ChordConfig{cfg})

	h.m.HandlePosition(cpress(posA, 0))
	h.m.HandlePosition(cpress(posB, 5))

	if r := h.m.HandlePosition(cpress(posC, 10)); r != bus.Passed {
		t.Fatalf("non-member press while active = %v, want Passed", r)
	}
	if r := h.m.HandlePosition(crelease(posC, 15)); r != bus.Passed {
		t.Fatalf("non-member release while active = %v, want Passed", r)
	}
}

// A partial chord window broken by a non-member press replays its captures
// in order before the breaking press is considered.
func TestChordAbortReplaysCapturedPress(t *testing.T) {
	cfg := ChordConfig{Name: "ab", ReleaseAfterMs: 50, Positions: []events.Position{posA, posB}, Binding: esc(0x07, 0x2c)}
	h := newChordHarness(t, []ChordConfig{cfg})

	h.m.HandlePosition(cpress(posA, 0))
	if r := h.m.HandlePosition(cpress(posC, 5)); r != bus.Passed {
		t.Fatalf("breaking press = %v, want Passed", r)
	}
	if len(h.fake.Calls) != 0 {
		t.Fatalf("chord must not fire: %v", h.fake.Calls)
	}
	if candidates, pressed, active := h.m.Occupancy(); candidates != 0 || pressed != 0 || active {
		t.Fatalf("window must be cleared after abort")
	}
}

func kindSeqChord(calls []hid.Call) []hid.CallKind {
	out := make([]hid.CallKind, len(calls))
	for i, c := range calls {
		out[i] = c.Kind
	}
	return out
}
