// Package statsreporter periodically logs engine occupancy: active
// tap-holds, capture-queue depth, and combo/chord candidate-window size.
// One cron-driven, read-only tick — no durable job store, no catch-up
// policy, no worker pool, since a missed stats tick loses nothing but one
// log line.
package statsreporter

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/tapstack/corefw/engine"
)

// Logger is the minimal structured-logging contract Reporter logs through.
type Logger interface {
	Info(msg string, args ...any)
}

// Snapshotter is anything that can report its current occupancy without
// mutating state. engine.Engine satisfies this directly.
type Snapshotter interface {
	Snapshot() engine.Occupancy
}

// Reporter wraps a robfig/cron scheduler driving one periodic occupancy
// log line. It is started and stopped independently of the engine's own
// single logical goroutine: Reporter only ever calls Snapshotter.Snapshot,
// which is read-only by construction.
type Reporter struct {
	cron   *cron.Cron
	engine Snapshotter
	log    Logger
	entry  cron.EntryID
}

// NewReporter builds a Reporter using the standard 5-field cron parser.
// For sub-minute cadences use NewReporterWithSeconds.
func NewReporter(engine Snapshotter, log Logger) *Reporter {
	if log == nil {
		log = nopLogger{}
	}
	return &Reporter{cron: cron.New(), engine: engine, log: log}
}

// NewReporterWithSeconds builds a Reporter using robfig/cron's seconds-field
// parser, for device-config stats cadences finer than one minute.
func NewReporterWithSeconds(engine Snapshotter, log Logger) *Reporter {
	if log == nil {
		log = nopLogger{}
	}
	return &Reporter{cron: cron.New(cron.WithSeconds()), engine: engine, log: log}
}

// Start schedules the occupancy log at schedule and starts the cron
// scheduler's own goroutine.
func (r *Reporter) Start(schedule string) error {
	id, err := r.cron.AddFunc(schedule, r.tick)
	if err != nil {
		return fmt.Errorf("statsreporter: invalid schedule %q: %w", schedule, err)
	}
	r.entry = id
	r.cron.Start()
	return nil
}

func (r *Reporter) tick() {
	s := r.engine.Snapshot()
	r.log.Info("engine occupancy",
		"taphold_used", s.TapHoldUsed, "taphold_capacity", s.TapHoldCapacity,
		"capture_queue_len", s.CaptureQueueLen, "capture_queue_cap", s.CaptureQueueCap,
		"combo_candidates", s.ComboCandidates, "combo_pressed", s.ComboPressed,
		"chord_candidates", s.ChordCandidates, "chord_pressed", s.ChordPressed,
		"chord_active", s.ChordActive,
	)
}

// Stop stops the cron scheduler. A tick already running completes.
func (r *Reporter) Stop() {
	r.cron.Stop()
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any) {}
