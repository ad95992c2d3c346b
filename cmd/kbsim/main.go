// Command kbsim is a host-runnable simulator harness for the keyboard
// input engine: it loads a device-config file, wires the bus, capture
// queue, tap-hold/mod-tap engine, combo/chord matchers, and mouse
// integrator into one engine.Engine, replays a scripted list of
// timestamped position transitions against it, and prints the resulting
// HID call trace. It also starts the debug HTTP server and the cron stats
// reporter, so the same binary doubles as a manual exerciser for those
// endpoints.
//
// kbsim has exactly one mode of operation (load a script, replay it,
// print the trace) with no subcommands, so flags are parsed with the
// standard library's flag package rather than a CLI framework.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tapstack/corefw/capture"
	"github.com/tapstack/corefw/config"
	"github.com/tapstack/corefw/debugsrv"
	"github.com/tapstack/corefw/engine"
	"github.com/tapstack/corefw/events"
	"github.com/tapstack/corefw/hid"
	"github.com/tapstack/corefw/internal/sched"
	"github.com/tapstack/corefw/mouse"
	"github.com/tapstack/corefw/statsreporter"
	"github.com/tapstack/corefw/telemetry"
)

// scriptStep is one line of a replay script: a matrix position transition
// or a mouse tick at a simulated offset in milliseconds. A "mouse" step
// carries per-millisecond target speeds in thousandths of a unit.
type scriptStep struct {
	Position    uint16 `yaml:"position"`
	State       string `yaml:"state"` // "press", "release", or "mouse"
	TimestampMs uint64 `yaml:"timestamp_ms"`
	PointerX    int32  `yaml:"pointer_x"`
	PointerY    int32  `yaml:"pointer_y"`
	ScrollX     int32  `yaml:"scroll_x"`
	ScrollY     int32  `yaml:"scroll_y"`
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a device-config file (.toml or .yaml)")
		scriptPath = flag.String("script", "", "path to a replay script (.yaml)")
		debugAddr  = flag.String("debug-addr", ":8089", "address for the debug HTTP server, empty to disable")
		statsCron  = flag.String("stats-cron", "*/5 * * * * *", "robfig/cron seconds-schedule for the occupancy stats reporter")
		yieldMs    = flag.Int("yield-ms", 1, "capture-queue re-raise yield interval in milliseconds")
		watch      = flag.Bool("watch", false, "stay up after the replay, hot-reloading the device config on edit")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *configPath == "" || *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "kbsim: -config and -script are required")
		os.Exit(2)
	}

	sessionID := newSessionID()
	log.Info("kbsim starting", "session_id", sessionID, "config", *configPath, "script", *scriptPath)

	resolved, err := config.Load(*configPath)
	if err != nil {
		log.Error("loading device config", "err", err)
		os.Exit(1)
	}

	steps, err := loadScript(*scriptPath)
	if err != nil {
		log.Error("loading replay script", "err", err)
		os.Exit(1)
	}

	fake := hid.NewFake()
	telBus := telemetry.NewBus()
	_ = telBus.RegisterObserver(telemetry.NewFunctionalObserver("kbsim-trace", func(ctx context.Context, evt cloudevents.Event) error {
		log.Info("telemetry", "type", evt.Type(), "data", string(evt.Data()))
		return nil
	}))

	queue := sched.NewQueue()
	defer queue.Close()

	deps := engine.Deps{
		Aggregator: fake,
		Resolver:   resolved.Keymap,
		NewTimer:   sched.NewRealTimer,
		Post:       queue,
		Yield:      capture.RealYielder{Interval: time.Duration(*yieldMs) * time.Millisecond},
		Telemetry:  telBus,
		SessionID:  sessionID,
		Log:        log,
		QueueDepth: capture.DefaultCapacity,
	}

	eng, err := engine.Build(resolved, deps)
	if err != nil {
		log.Error("building engine", "err", err)
		os.Exit(1)
	}

	if *debugAddr != "" {
		srv := debugsrv.New(eng)
		go func() {
			if err := http.ListenAndServe(*debugAddr, srv); err != nil && err != http.ErrServerClosed {
				log.Warn("debug server stopped", "err", err)
			}
		}()
		log.Info("debug server listening", "addr", *debugAddr)
	}

	reporter := statsreporter.NewReporterWithSeconds(eng, log)
	if err := reporter.Start(*statsCron); err != nil {
		log.Error("starting stats reporter", "err", err)
		os.Exit(1)
	}
	defer reporter.Stop()

	replay(eng, queue, steps)

	// Let any in-flight hold timers settle before reading the final trace.
	time.Sleep(50 * time.Millisecond)

	log.Info("replay complete", "hid_calls", len(fake.Calls))
	for i, call := range fake.Calls {
		fmt.Printf("%3d %s\n", i, describeCall(call))
	}

	if *watch {
		watcher, err := config.NewWatcher(*configPath, telBus, log, func(*config.Resolved) {
			log.Info("device config loaded; restart the replay to apply it", "path", *configPath)
		})
		if err != nil {
			log.Error("starting config watcher", "err", err)
			os.Exit(1)
		}
		defer watcher.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		log.Info("watching device config, debug server still up; interrupt to exit")
		watcher.Run(ctx)
	}
}

func replay(eng *engine.Engine, post sched.Poster, steps []scriptStep) {
	var prev uint64
	for _, step := range steps {
		step := step
		if step.TimestampMs > prev {
			time.Sleep(time.Duration(step.TimestampMs-prev) * time.Millisecond)
		}
		prev = step.TimestampMs

		done := make(chan struct{})
		post.Post(func() {
			defer close(done)
			if step.State == "mouse" {
				eng.TickMouse(time.UnixMilli(int64(step.TimestampMs)),
					mouse.Vector2D{X: step.PointerX, Y: step.PointerY},
					mouse.Vector2D{X: step.ScrollX, Y: step.ScrollY})
				return
			}
			state := events.Released
			if step.State == "press" {
				state = events.Pressed
			}
			eng.Raise(events.PositionEvent{Position: events.Position(step.Position), State: state, TimestampMs: step.TimestampMs})
		})
		<-done
	}
}

func loadScript(path string) ([]scriptStep, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kbsim: reading script %s: %w", path, err)
	}
	var steps []scriptStep
	if err := yaml.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("kbsim: parsing script %s: %w", path, err)
	}
	return steps, nil
}

func describeCall(c hid.Call) string {
	switch c.Kind {
	case hid.CallRegisterMods:
		return fmt.Sprintf("register_mods   mods=%v", c.Mods)
	case hid.CallUnregisterMods:
		return fmt.Sprintf("unregister_mods mods=%v", c.Mods)
	case hid.CallPressKey:
		return fmt.Sprintf("press_key       page=%d code=%d", c.UsagePage, c.Keycode)
	case hid.CallReleaseKey:
		return fmt.Sprintf("release_key     page=%d code=%d", c.UsagePage, c.Keycode)
	case hid.CallMouseMovementSet:
		return fmt.Sprintf("mouse_move      dx=%d dy=%d", c.DX, c.DY)
	case hid.CallMouseScrollSet:
		return fmt.Sprintf("mouse_scroll    hx=%d vy=%d", c.HX, c.VY)
	case hid.CallSendReport:
		return fmt.Sprintf("send_report     page=%d", c.UsagePage)
	default:
		return "unknown"
	}
}

// newSessionID mints a time-ordered session identifier, preferring a
// UUIDv7 (so sessions sort by start time) and falling back to v4 if the
// platform's random source rejects v7 generation.
func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
