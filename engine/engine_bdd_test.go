package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cucumber/godog"

	"github.com/tapstack/corefw/capture"
	"github.com/tapstack/corefw/config"
	"github.com/tapstack/corefw/events"
	"github.com/tapstack/corefw/hid"
	"github.com/tapstack/corefw/internal/sched"
	"github.com/tapstack/corefw/mouse"
	"github.com/tapstack/corefw/telemetry"
)

type engineBDDContext struct {
	fake      *hid.Fake
	eng       *Engine
	timers    []*sched.ManualTimer
	decisions []telemetry.DecisionPayload
	tickDXs   []int8
	tickDYs   []int8
}

func (c *engineBDDContext) reset() {
	c.fake = nil
	c.eng = nil
	c.timers = nil
	c.decisions = nil
	c.tickDXs = nil
	c.tickDYs = nil
}

func (c *engineBDDContext) aDeviceConfiguredWith(doc *godog.DocString) error {
	dir, err := os.MkdirTemp("", "kbdev")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "device.toml")
	if err := os.WriteFile(path, []byte(doc.Content), 0o644); err != nil {
		return err
	}
	resolved, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading device config: %w", err)
	}

	c.fake = hid.NewFake()
	telBus := telemetry.NewBus()
	_ = telBus.RegisterObserver(telemetry.NewFunctionalObserver("bdd", func(_ context.Context, evt cloudevents.Event) error {
		if evt.Type() != telemetry.EventTypeTapHoldDecided {
			return nil
		}
		var payload telemetry.DecisionPayload
		if err := json.Unmarshal(evt.Data(), &payload); err != nil {
			return err
		}
		c.decisions = append(c.decisions, payload)
		return nil
	}))

	newTimer := func() sched.Timer {
		t := sched.NewManualTimer()
		c.timers = append(c.timers, t)
		return t
	}
	c.eng, err = Build(resolved, Deps{
		Aggregator: c.fake,
		Resolver:   resolved.Keymap,
		NewTimer:   newTimer,
		Post:       sched.Inline{},
		Yield:      capture.NoopYielder{},
		Telemetry:  telBus,
		SessionID:  "bdd-session",
	})
	return err
}

func (c *engineBDDContext) positionTransitionsAt(pos int, state string, ts int) error {
	ks := events.Released
	if state == "pressed" {
		ks = events.Pressed
	}
	c.eng.Raise(events.PositionEvent{
		Position:    events.Position(pos),
		State:       ks,
		TimestampMs: uint64(ts),
	})
	return nil
}

func (c *engineBDDContext) thePendingTimerFires() error {
	for _, t := range c.timers {
		if t.Running() {
			t.Trigger()
			return nil
		}
	}
	return fmt.Errorf("no timer is armed")
}

func (c *engineBDDContext) theHIDCallSequenceIs(doc *godog.DocString) error {
	var want []string
	for _, line := range strings.Split(strings.TrimSpace(doc.Content), "\n") {
		want = append(want, strings.TrimSpace(line))
	}
	got := make([]string, 0, len(c.fake.Calls))
	for _, call := range c.fake.Calls {
		got = append(got, describeHIDCall(call))
	}
	if len(got) != len(want) {
		return fmt.Errorf("HID sequence mismatch:\n  got  %v\n  want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("HID call %d: got %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
	return nil
}

func (c *engineBDDContext) aDecisionIsPublished(outcome string, pos int) error {
	for _, d := range c.decisions {
		if d.Outcome == outcome && d.Position == uint16(pos) {
			if d.SessionID != "bdd-session" {
				return fmt.Errorf("decision carries session %q", d.SessionID)
			}
			return nil
		}
	}
	return fmt.Errorf("no %q decision for position %d in %v", outcome, pos, c.decisions)
}

func (c *engineBDDContext) theMouseTicks(n, periodMs, speedX, speedY int) error {
	for i := 1; i <= n; i++ {
		before := len(c.fake.Calls)
		now := time.UnixMilli(int64(i * periodMs))
		c.eng.TickMouse(now, mouse.Vector2D{X: int32(speedX), Y: int32(speedY)}, mouse.Vector2D{})
		for _, call := range c.fake.Calls[before:] {
			if call.Kind == hid.CallMouseMovementSet {
				c.tickDXs = append(c.tickDXs, call.DX)
				c.tickDYs = append(c.tickDYs, call.DY)
			}
		}
	}
	return nil
}

func (c *engineBDDContext) totalPointerMovementIs(wantX, wantY int) error {
	var sumX, sumY int
	for i := range c.tickDXs {
		sumX += int(c.tickDXs[i])
		sumY += int(c.tickDYs[i])
	}
	if sumX != wantX || sumY != wantY {
		return fmt.Errorf("total movement (%d,%d), want (%d,%d)", sumX, sumY, wantX, wantY)
	}
	return nil
}

func (c *engineBDDContext) noTickExceedsOneUnit() error {
	for i := range c.tickDXs {
		if abs8(c.tickDXs[i]) > 1 || abs8(c.tickDYs[i]) > 1 {
			return fmt.Errorf("tick %d reported (%d,%d)", i, c.tickDXs[i], c.tickDYs[i])
		}
	}
	return nil
}

func abs8(v int8) int8 {
	if v < 0 {
		return -v
	}
	return v
}

func describeHIDCall(c hid.Call) string {
	switch c.Kind {
	case hid.CallRegisterMods:
		return fmt.Sprintf("register_mods %d", uint8(c.Mods))
	case hid.CallUnregisterMods:
		return fmt.Sprintf("unregister_mods %d", uint8(c.Mods))
	case hid.CallPressKey:
		return fmt.Sprintf("press_key %d %d", c.UsagePage, c.Keycode)
	case hid.CallReleaseKey:
		return fmt.Sprintf("release_key %d %d", c.UsagePage, c.Keycode)
	case hid.CallMouseMovementSet:
		return fmt.Sprintf("mouse_move %d %d", c.DX, c.DY)
	case hid.CallMouseScrollSet:
		return fmt.Sprintf("mouse_scroll %d %d", c.HX, c.VY)
	case hid.CallSendReport:
		return fmt.Sprintf("send_report %d", c.UsagePage)
	default:
		return "unknown"
	}
}

func TestEngineBDD(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(s *godog.ScenarioContext) {
			ctx := &engineBDDContext{}
			s.Before(func(stdCtx context.Context, _ *godog.Scenario) (context.Context, error) {
				ctx.reset()
				return stdCtx, nil
			})

			s.Given(`^a device configured with:$`, ctx.aDeviceConfiguredWith)
			s.When(`^position (\d+) is (pressed|released) at (\d+) ms$`, ctx.positionTransitionsAt)
			s.When(`^the pending timer fires$`, ctx.thePendingTimerFires)
			s.Then(`^the HID call sequence is:$`, ctx.theHIDCallSequenceIs)
			s.Then(`^a "([^"]+)" decision is published for position (\d+)$`, ctx.aDecisionIsPublished)
			s.When(`^the mouse ticks (\d+) times at (\d+) ms intervals with pointer speed (-?\d+) (-?\d+)$`, ctx.theMouseTicks)
			s.Then(`^the total reported pointer movement is (-?\d+) (-?\d+)$`, ctx.totalPointerMovementIs)
			s.Then(`^no single tick reports more than 1 unit of movement$`, ctx.noTickExceedsOneUnit)
		},
		Options: &godog.Options{
			Format:   "progress",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
