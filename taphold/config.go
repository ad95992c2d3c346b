package taphold

import "github.com/tapstack/corefw/events"

// Flavor selects the transition table a tap-hold instance uses while
// Undecided.
type Flavor int

const (
	ModPreferred Flavor = iota
	Balanced
	TapPreferred
)

func (f Flavor) String() string {
	switch f {
	case ModPreferred:
		return "mod-preferred"
	case Balanced:
		return "balanced"
	case TapPreferred:
		return "tap-preferred"
	default:
		return "unknown"
	}
}

// Config is one tap-hold instance's static configuration.
type Config struct {
	TappingTermMs uint16
	Flavor        Flavor
	Tap           events.BehaviorBinding
	Hold          events.BehaviorBinding
}
