// Package sched provides the one-shot-timer and serialized-dispatch
// primitives shared by taphold and combo. All engine mutation
// funnels through one logical goroutine; timers only post work to it.
package sched

import (
	"sync/atomic"
	"time"
)

// Timer is a one-shot timer abstraction. Production code uses RealTimer;
// tests that need deterministic control use ManualTimer.
type Timer interface {
	// Start begins (or restarts) the timer; fire is invoked at most once,
	// after d, unless Stop is called first.
	Start(d time.Duration, fire func())
	// Stop cancels the timer. Returns true if it was running. A
	// cancellation racing with an in-flight expiry is resolved by a flag
	// the expiry handler checks, not by synchronously blocking the expiry
	// goroutine.
	Stop() bool
}

// TimerFactory constructs a fresh Timer, one per behavior instance slot.
type TimerFactory func() Timer

// RealTimer wraps time.AfterFunc with cancelled-flag race handling.
type RealTimer struct {
	t         *time.Timer
	cancelled atomic.Bool
}

// NewRealTimer is a TimerFactory producing real wall-clock timers.
func NewRealTimer() Timer { return &RealTimer{} }

func (r *RealTimer) Start(d time.Duration, fire func()) {
	if r.t != nil {
		r.t.Stop()
	}
	r.cancelled.Store(false)
	r.t = time.AfterFunc(d, func() {
		if r.cancelled.Load() {
			return
		}
		fire()
	})
}

func (r *RealTimer) Stop() bool {
	r.cancelled.Store(true)
	if r.t == nil {
		return false
	}
	return r.t.Stop()
}

// ManualTimer never runs on a real clock; Trigger fires it synchronously.
// Used by unit tests that want to exercise "timer expiry" deterministically.
type ManualTimer struct {
	running bool
	fire    func()
}

func NewManualTimer() *ManualTimer { return &ManualTimer{} }

func (m *ManualTimer) Start(_ time.Duration, fire func()) {
	m.running = true
	m.fire = fire
}

func (m *ManualTimer) Stop() bool {
	was := m.running
	m.running = false
	m.fire = nil
	return was
}

// Trigger fires the timer as if its duration had elapsed. It is a no-op if
// the timer isn't running (already fired or cancelled).
func (m *ManualTimer) Trigger() {
	if !m.running {
		return
	}
	fire := m.fire
	m.running = false
	m.fire = nil
	fire()
}

// Running reports whether the timer is currently armed.
func (m *ManualTimer) Running() bool { return m.running }
