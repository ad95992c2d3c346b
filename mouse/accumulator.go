// Package mouse implements the mouse-tick integrator: a fixed-point
// accumulator that turns a per-axis target speed (thousandths of a unit
// per millisecond) into whole-unit HID movement, without ever losing the
// fractional remainder between ticks, however irregularly the ticks
// arrive.
package mouse

import (
	"math"
	"time"

	"github.com/tapstack/corefw/hid"
)

// TickConfig is the static per-device tuning for the integrator, loaded
// from device config.
type TickConfig struct {
	// TickMs is the nominal interval between Tick calls. It is also the
	// elapsed time credited to the first tick of a fresh session, which
	// has no previous timestamp to diff against.
	TickMs uint16
	// MaxPointerPerTick and MaxScrollPerTick bound the thousandths-of-a-unit
	// contribution a single tick may add to the accumulator, preventing a
	// runaway input (or a huge clock jump) from overflowing it.
	MaxPointerPerTick int32
	MaxScrollPerTick  int32
}

// Vector2D is a signed thousandths-of-a-unit speed or accumulated
// remainder on two axes.
type Vector2D struct {
	X, Y int32
}

// Accumulator integrates per-millisecond target speeds into whole HID
// units. It keeps the previous tick's timestamp and the sub-unit
// remainder per axis, so the reported movement tracks speed * elapsed
// time exactly even when ticks jitter: over any interval the sum of
// reported deltas equals the whole-unit part of the accumulated
// milli-location, independent of how the interval was sliced.
type Accumulator struct {
	previousTickMs uint64
	pointerMilli   Vector2D
	scrollMilli    Vector2D
	cfg            TickConfig
}

// NewAccumulator builds an integrator for the given tick configuration.
func NewAccumulator(cfg TickConfig) *Accumulator {
	return &Accumulator{cfg: cfg}
}

const milliPerUnit = 1000

// Tick advances the integrator to now and returns the whole-unit pointer
// movement and scroll to report for this tick, clamped to the HID pointer
// (signed 8-bit) and scroll (signed 16-bit) report ranges. Unreported
// thousandths are carried into the next call.
//
// A tick with both speeds zero resets all state, so stale fractions and a
// stale timestamp never leak into the next motion as phantom movement.
func (a *Accumulator) Tick(now time.Time, pointerSpeed, scrollSpeed Vector2D) (dx, dy int8, hx, vy int16) {
	if isZero(pointerSpeed) && isZero(scrollSpeed) {
		a.previousTickMs = 0
		a.pointerMilli = Vector2D{}
		a.scrollMilli = Vector2D{}
		return 0, 0, 0, 0
	}

	dt := a.advance(uint64(now.UnixMilli()))

	px, py := integrate(&a.pointerMilli, scale(pointerSpeed, dt, a.cfg.MaxPointerPerTick))
	sx, sy := integrate(&a.scrollMilli, scale(scrollSpeed, dt, a.cfg.MaxScrollPerTick))
	return Clamp8(px), Clamp8(py), Clamp16(sx), Clamp16(sy)
}

// advance computes the elapsed milliseconds since the previous tick and
// records now as the new previous timestamp. A fresh session (or a clock
// that failed to move forward) is credited with one nominal tick period.
func (a *Accumulator) advance(nowMs uint64) int64 {
	dt := int64(a.cfg.TickMs)
	if dt <= 0 {
		dt = 1
	}
	if a.previousTickMs != 0 && nowMs > a.previousTickMs {
		dt = int64(nowMs - a.previousTickMs)
	}
	a.previousTickMs = nowMs
	return dt
}

// scale multiplies a per-millisecond speed by the elapsed time, bounding
// each axis's per-tick contribution.
func scale(speed Vector2D, dt int64, max int32) Vector2D {
	return Vector2D{
		X: boundContribution(int64(speed.X)*dt, max),
		Y: boundContribution(int64(speed.Y)*dt, max),
	}
}

func boundContribution(v int64, max int32) int32 {
	bound := int64(max)
	if max <= 0 {
		// No configured cap: still keep the remainder sum inside int32.
		bound = math.MaxInt32 - milliPerUnit
	}
	if v > bound {
		return int32(bound)
	}
	if v < -bound {
		return int32(-bound)
	}
	return int32(v)
}

// integrate adds one tick's milli-unit contribution to the carried
// remainder and extracts the whole-unit part via divide-then-subtract
// (1999 thousandths yields 1 whole unit and 999 carried, not 1 whole and
// 0 carried), keeping truncation error bounded and stationary.
func integrate(remainder *Vector2D, contrib Vector2D) (wholeX, wholeY int32) {
	remainder.X += contrib.X
	wholeX = remainder.X / milliPerUnit
	remainder.X -= wholeX * milliPerUnit

	remainder.Y += contrib.Y
	wholeY = remainder.Y / milliPerUnit
	remainder.Y -= wholeY * milliPerUnit

	return wholeX, wholeY
}

func isZero(v Vector2D) bool { return v.X == 0 && v.Y == 0 }

// Clamp8 saturates v to the HID pointer report's signed 8-bit range.
func Clamp8(v int32) int8 {
	const lo, hi = -128, 127
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return int8(v)
}

// Clamp16 saturates v to the HID scroll report's signed 16-bit range.
func Clamp16(v int32) int16 {
	const lo, hi = -32768, 32767
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return int16(v)
}

// Report drives an hid.Aggregator with one tick's integrated movement and
// scroll: a single combined mouse report per tick.
func Report(agg hid.Aggregator, dx, dy int8, hx, vy int16) {
	agg.MouseMovementSet(dx, dy)
	agg.MouseScrollSet(hx, vy)
}
