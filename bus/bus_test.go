package bus

import (
	"testing"

	"github.com/tapstack/corefw/events"
)

func posEv(pos events.Position) events.PositionEvent {
	return events.PositionEvent{Position: pos, State: events.Pressed}
}

func TestRaisePositionDispatchesInRegistrationOrder(t *testing.T) {
	var order []string
	b := New(nil, func(events.PositionEvent) Result {
		order = append(order, "default")
		return Handled
	}, nil)
	b.SubscribePosition(func(events.PositionEvent) Result {
		order = append(order, "first")
		return Passed
	})
	b.SubscribePosition(func(events.PositionEvent) Result {
		order = append(order, "second")
		return Passed
	})

	if r := b.RaisePosition(posEv(1)); r != Handled {
		t.Fatalf("result = %v, want Handled from default", r)
	}
	want := []string{"first", "second", "default"}
	if len(order) != 3 || order[0] != want[0] || order[1] != want[1] || order[2] != want[2] {
		t.Fatalf("dispatch order = %v, want %v", order, want)
	}
}

func TestHandledStopsDispatch(t *testing.T) {
	var laterSaw bool
	b := New(nil, func(events.PositionEvent) Result {
		laterSaw = true
		return Passed
	}, nil)
	b.SubscribePosition(func(events.PositionEvent) Result { return Handled })
	b.SubscribePosition(func(events.PositionEvent) Result {
		laterSaw = true
		return Passed
	})

	if r := b.RaisePosition(posEv(1)); r != Handled {
		t.Fatalf("result = %v, want Handled", r)
	}
	if laterSaw {
		t.Fatalf("no subscriber after a Handled outcome may see the event")
	}
}

func TestCapturedStopsDispatch(t *testing.T) {
	var laterSaw bool
	b := New(nil, func(events.PositionEvent) Result {
		laterSaw = true
		return Passed
	}, nil)
	b.SubscribePosition(func(events.PositionEvent) Result { return Captured })

	if r := b.RaisePosition(posEv(1)); r != Captured {
		t.Fatalf("result = %v, want Captured", r)
	}
	if laterSaw {
		t.Fatalf("default handler must not see a captured event")
	}
}

func TestRaisePositionFromSkipsEarlierSubscribers(t *testing.T) {
	var order []string
	b := New(nil, func(events.PositionEvent) Result {
		order = append(order, "default")
		return Handled
	}, nil)
	b.SubscribePosition(func(events.PositionEvent) Result {
		order = append(order, "upstream")
		return Passed
	})
	idx := b.SubscribePosition(func(events.PositionEvent) Result {
		order = append(order, "owner")
		return Passed
	})

	b.RaisePositionFrom(idx, posEv(1))
	want := []string{"owner", "default"}
	if len(order) != 2 || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("dispatch order = %v, want %v", order, want)
	}
}

func TestRaisePositionWithNoDefaultPasses(t *testing.T) {
	b := New(nil, nil, nil)
	if r := b.RaisePosition(posEv(1)); r != Passed {
		t.Fatalf("result = %v, want Passed", r)
	}
}

func TestRaiseKeycodeReachesDefault(t *testing.T) {
	var got events.KeycodeEvent
	b := New(nil, nil, func(ev events.KeycodeEvent) Result {
		got = ev
		return Handled
	})
	ev := events.KeycodeEvent{UsagePage: 7, Keycode: 4, Pressed: true}
	if r := b.RaiseKeycode(ev); r != Handled {
		t.Fatalf("result = %v, want Handled", r)
	}
	if got.Keycode != 4 || !got.Pressed {
		t.Fatalf("default saw %+v", got)
	}
}
