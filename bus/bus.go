// Package bus implements synchronous event dispatch with a capture
// protocol: an ordered list of subscribers per event type, each returning
// Passed, Handled, or Captured. Capturing an event transfers its ownership
// to the subscriber, who must later either re-raise it (re-entering
// dispatch from the start with RaisePosition, or at a given subscriber's
// stage with RaisePositionFrom) or drop it explicitly.
//
// Dispatch is synchronous and single-threaded by construction: Raise always
// runs on the calling goroutine and never itself spawns one.
package bus

import (
	"fmt"
	"sync"

	"github.com/tapstack/corefw/events"
)

// Result is the three-way outcome a Subscriber returns for an event.
type Result int

const (
	// Passed lets the event continue to later subscribers and, after the
	// list, to the default handler.
	Passed Result = iota
	// Handled is terminal: no further subscribers see the event and the
	// record is released.
	Handled
	// Captured means the subscriber has taken ownership; no further
	// subscriber sees it until it is re-raised.
	Captured
)

func (r Result) String() string {
	switch r {
	case Passed:
		return "passed"
	case Handled:
		return "handled"
	case Captured:
		return "captured"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// ErrDoubleCapture names the programming error of capturing an event that
// is already captured. Exactly one subscriber may own a captured event.
// Dispatch stops at the first Captured result, so the bus itself never
// returns this error; taphold logs it when a press is already captured in
// its current generation.
var ErrDoubleCapture = fmt.Errorf("bus: event already captured by an earlier subscriber")

// PositionSubscriber observes raw PositionEvents. Subscribers registered
// earlier see the event first; tap-hold and combo subscribers must register
// before the default key-to-HID translator so they see raw events first.
type PositionSubscriber func(events.PositionEvent) Result

// KeycodeSubscriber observes resolved KeycodeEvents.
type KeycodeSubscriber func(events.KeycodeEvent) Result

// Logger is the minimal structured-logging contract the bus (and every
// other package in this module) logs through. Implementations are expected
// to accept alternating key/value pairs, compatible with log/slog, zap, or
// logrus adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything. Useful as a zero-value default.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// Bus is the shared dispatcher. The zero value is not usable; construct
// with New.
type Bus struct {
	mu             sync.Mutex
	positionSubs   []PositionSubscriber
	keycodeSubs    []KeycodeSubscriber
	defaultPos     PositionSubscriber
	defaultKeycode KeycodeSubscriber
	log            Logger
}

// New constructs an empty Bus. defaultPos/defaultKeycode are invoked after
// every registered subscriber has passed on an event (e.g. the default
// key-to-HID translator); either may be nil.
func New(log Logger, defaultPos PositionSubscriber, defaultKeycode KeycodeSubscriber) *Bus {
	if log == nil {
		log = NopLogger{}
	}
	return &Bus{log: log, defaultPos: defaultPos, defaultKeycode: defaultKeycode}
}

// SubscribePosition registers a subscriber for position events and returns
// its dispatch index. Order of registration is the order of dispatch.
func (b *Bus) SubscribePosition(s PositionSubscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positionSubs = append(b.positionSubs, s)
	return len(b.positionSubs) - 1
}

// SubscribeKeycode registers a subscriber for keycode events.
func (b *Bus) SubscribeKeycode(s KeycodeSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keycodeSubs = append(b.keycodeSubs, s)
}

// RaisePosition dispatches ev synchronously through every registered
// PositionSubscriber in order, then to the default handler if nothing
// handled or captured it. It returns the terminal Result.
func (b *Bus) RaisePosition(ev events.PositionEvent) Result {
	return b.RaisePositionFrom(0, ev)
}

// RaisePositionFrom dispatches ev starting at the subscriber registered
// with index start, skipping everything before it. A subscriber re-raising
// a previously captured event passes its own index, so the replay re-enters
// dispatch at the stage that owned the capture rather than upstream of it —
// an upstream matcher that already let the event through must not see it
// twice.
func (b *Bus) RaisePositionFrom(start int, ev events.PositionEvent) Result {
	b.mu.Lock()
	var subs []PositionSubscriber
	if start < len(b.positionSubs) {
		subs = append(subs, b.positionSubs[start:]...)
	}
	def := b.defaultPos
	b.mu.Unlock()

	for _, s := range subs {
		switch r := s(ev); r {
		case Handled, Captured:
			return r
		case Passed:
			continue
		default:
			b.log.Error("bus: subscriber returned invalid result", "result", int(r))
		}
	}
	if def != nil {
		return def(ev)
	}
	return Passed
}

// RaiseKeycode dispatches ev synchronously through every registered
// KeycodeSubscriber, then to the default handler.
func (b *Bus) RaiseKeycode(ev events.KeycodeEvent) Result {
	b.mu.Lock()
	subs := append([]KeycodeSubscriber(nil), b.keycodeSubs...)
	def := b.defaultKeycode
	b.mu.Unlock()

	for _, s := range subs {
		switch r := s(ev); r {
		case Handled, Captured:
			return r
		case Passed:
			continue
		default:
			b.log.Error("bus: subscriber returned invalid result", "result", int(r))
		}
	}
	if def != nil {
		return def(ev)
	}
	return Passed
}
