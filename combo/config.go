// Package combo implements the combo and chord matchers: multi-key
// simultaneous-press recognizers that substitute one synthesized binding
// for a set of nearly-simultaneous position presses.
package combo

import "github.com/tapstack/corefw/events"

// MaxPositions bounds a single combo's key set.
const MaxPositions = 4

// Config is a combo's static configuration.
type Config struct {
	Name       string // for logs/telemetry only
	TimeoutMs  uint16
	Positions  []events.Position
	Binding    events.BehaviorBinding
}

// ChordConfig is a chord's static configuration: the same recognition
// inputs as Config but a release-after timer instead of a pre-commit
// timeout.
type ChordConfig struct {
	Name          string
	ReleaseAfterMs uint16
	Positions     []events.Position
	Binding       events.BehaviorBinding
}

func positionSet(positions []events.Position) map[events.Position]struct{} {
	set := make(map[events.Position]struct{}, len(positions))
	for _, p := range positions {
		set[p] = struct{}{}
	}
	return set
}

func setsEqual(a map[events.Position]struct{}, b []events.Position) bool {
	if len(a) != len(b) {
		return false
	}
	for _, p := range b {
		if _, ok := a[p]; !ok {
			return false
		}
	}
	return true
}
