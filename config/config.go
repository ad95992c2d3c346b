// Package config loads per-instance behavior configuration (tap-hold,
// combo, chord, mouse-tick) from a device-config file: something has to
// turn a file on disk into the taphold.Config / combo.Config /
// combo.ChordConfig / mouse.TickConfig values the engine is built from.
//
// A feeder is anything with Feed(interface{}) error; the implementation is
// picked by file extension, one feeder per source format.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tapstack/corefw/combo"
	"github.com/tapstack/corefw/events"
	"github.com/tapstack/corefw/feeders"
	"github.com/tapstack/corefw/hid"
	"github.com/tapstack/corefw/mouse"
	"github.com/tapstack/corefw/taphold"
)

// Feeder is the minimal contract config.Load needs from a feeders.*Feeder.
type Feeder interface {
	Feed(structure interface{}) error
}

// BindingSpec is the on-disk, human-writable form of events.BehaviorBinding:
// symbolic rather than the packed numeric form the bus uses internally.
type BindingSpec struct {
	Behavior string `toml:"behavior" yaml:"behavior"`
	Param1   uint32 `toml:"param1" yaml:"param1"`
	Param2   uint32 `toml:"param2" yaml:"param2"`
}

// Resolve turns a symbolic BindingSpec into an events.BehaviorBinding.
func (b BindingSpec) Resolve() (events.BehaviorBinding, error) {
	switch strings.ToLower(b.Behavior) {
	case "", "none":
		return events.BehaviorBinding{}, nil
	case "send_key", "sendkey":
		return events.BehaviorBinding{BehaviorID: events.BehaviorSendKey, Param1: b.Param1, Param2: b.Param2}, nil
	case "register_mod", "mod":
		return events.BehaviorBinding{BehaviorID: events.BehaviorRegisterMod, Param1: b.Param1, Param2: b.Param2}, nil
	case "mouse_move", "mousemove":
		return events.BehaviorBinding{BehaviorID: events.BehaviorMouseMove, Param1: b.Param1}, nil
	case "scroll":
		return events.BehaviorBinding{BehaviorID: events.BehaviorScroll, Param1: b.Param1}, nil
	default:
		return events.BehaviorBinding{}, fmt.Errorf("config: unknown behavior %q", b.Behavior)
	}
}

// TapHoldSpec is the on-disk form of taphold.Config, keyed by the position
// it is bound to.
type TapHoldSpec struct {
	Position      uint16      `toml:"position" yaml:"position"`
	TappingTermMs uint16      `toml:"tapping_term_ms" yaml:"tapping_term_ms"`
	Flavor        string      `toml:"flavor" yaml:"flavor"`
	Tap           BindingSpec `toml:"tap" yaml:"tap"`
	Hold          BindingSpec `toml:"hold" yaml:"hold"`
}

func (s TapHoldSpec) resolveFlavor() (taphold.Flavor, error) {
	switch strings.ToLower(s.Flavor) {
	case "", "mod-preferred", "mod_preferred":
		return taphold.ModPreferred, nil
	case "balanced":
		return taphold.Balanced, nil
	case "tap-preferred", "tap_preferred":
		return taphold.TapPreferred, nil
	default:
		return 0, fmt.Errorf("config: unknown tap-hold flavor %q", s.Flavor)
	}
}

// ComboSpec is the on-disk form of combo.Config.
type ComboSpec struct {
	Name      string      `toml:"name" yaml:"name"`
	TimeoutMs uint16      `toml:"timeout_ms" yaml:"timeout_ms"`
	Positions []uint16    `toml:"positions" yaml:"positions"`
	Binding   BindingSpec `toml:"binding" yaml:"binding"`
}

// ChordSpec is the on-disk form of combo.ChordConfig.
type ChordSpec struct {
	Name           string      `toml:"name" yaml:"name"`
	ReleaseAfterMs uint16      `toml:"release_after_ms" yaml:"release_after_ms"`
	Positions      []uint16    `toml:"positions" yaml:"positions"`
	Binding        BindingSpec `toml:"binding" yaml:"binding"`
}

// MouseTickSpec is the on-disk form of mouse.TickConfig.
type MouseTickSpec struct {
	TickPeriodMs      uint16 `toml:"tick_period_ms" yaml:"tick_period_ms"`
	MaxPointerPerTick int32  `toml:"max_pointer_per_tick" yaml:"max_pointer_per_tick"`
	MaxScrollPerTick  int32  `toml:"max_scroll_per_tick" yaml:"max_scroll_per_tick"`
}

// KeymapEntrySpec binds a plain (non-tap-hold, non-combo) position to a
// behavior, for the default key-to-HID translator.
type KeymapEntrySpec struct {
	Position uint16      `toml:"position" yaml:"position"`
	Binding  BindingSpec `toml:"binding" yaml:"binding"`
}

// DeviceConfig aggregates every behavior instance's static configuration,
// the on-disk shape this package reads. Field names match the device-config
// file's top-level tables/keys.
type DeviceConfig struct {
	TapHolds []TapHoldSpec     `toml:"tap_hold" yaml:"tap_hold"`
	Combos   []ComboSpec       `toml:"combo" yaml:"combo"`
	Chords   []ChordSpec       `toml:"chord" yaml:"chord"`
	Mouse    MouseTickSpec     `toml:"mouse" yaml:"mouse"`
	Keymap   []KeymapEntrySpec `toml:"keymap" yaml:"keymap"`
}

// Resolved is DeviceConfig translated into the package-native config types
// the engine is built from.
type Resolved struct {
	TapHolds map[events.Position]taphold.Config
	Combos   []combo.Config
	Chords   []combo.ChordConfig
	Mouse    mouse.TickConfig
	Keymap   hid.MapResolver
}

// Resolve validates and translates a DeviceConfig into engine-ready types.
func (c *DeviceConfig) Resolve() (*Resolved, error) {
	r := &Resolved{TapHolds: make(map[events.Position]taphold.Config, len(c.TapHolds))}

	for _, th := range c.TapHolds {
		flavor, err := th.resolveFlavor()
		if err != nil {
			return nil, err
		}
		tap, err := th.Tap.Resolve()
		if err != nil {
			return nil, err
		}
		hold, err := th.Hold.Resolve()
		if err != nil {
			return nil, err
		}
		r.TapHolds[events.Position(th.Position)] = taphold.Config{
			TappingTermMs: th.TappingTermMs,
			Flavor:        flavor,
			Tap:           tap,
			Hold:          hold,
		}
	}

	for _, cs := range c.Combos {
		binding, err := cs.Binding.Resolve()
		if err != nil {
			return nil, err
		}
		if len(cs.Positions) > combo.MaxPositions {
			return nil, combo.ErrCandidateTableFull
		}
		r.Combos = append(r.Combos, combo.Config{
			Name:      cs.Name,
			TimeoutMs: cs.TimeoutMs,
			Positions: toPositions(cs.Positions),
			Binding:   binding,
		})
	}

	for _, ch := range c.Chords {
		binding, err := ch.Binding.Resolve()
		if err != nil {
			return nil, err
		}
		if len(ch.Positions) > combo.MaxPositions {
			return nil, combo.ErrCandidateTableFull
		}
		r.Chords = append(r.Chords, combo.ChordConfig{
			Name:           ch.Name,
			ReleaseAfterMs: ch.ReleaseAfterMs,
			Positions:      toPositions(ch.Positions),
			Binding:        binding,
		})
	}

	r.Mouse = mouse.TickConfig{
		TickMs:            c.Mouse.TickPeriodMs,
		MaxPointerPerTick: c.Mouse.MaxPointerPerTick,
		MaxScrollPerTick:  c.Mouse.MaxScrollPerTick,
	}

	if len(c.Keymap) > 0 {
		r.Keymap = make(hid.MapResolver, len(c.Keymap))
		for _, k := range c.Keymap {
			binding, err := k.Binding.Resolve()
			if err != nil {
				return nil, err
			}
			r.Keymap[events.Position(k.Position)] = binding
		}
	}

	return r, nil
}

func toPositions(raw []uint16) []events.Position {
	out := make([]events.Position, len(raw))
	for i, p := range raw {
		out[i] = events.Position(p)
	}
	return out
}

// feederFor picks a Feeder by file extension rather than sniffing the
// content.
func feederFor(path string) (Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		f := feeders.NewTomlFeeder(path)
		return f, nil
	case ".yaml", ".yml":
		return feeders.NewYamlFeeder(path), nil
	default:
		return nil, fmt.Errorf("config: unsupported device-config extension %q", filepath.Ext(path))
	}
}

// Load reads and resolves a device-config file (TOML or YAML, picked by
// extension) into engine-ready behavior configs.
func Load(path string) (*Resolved, error) {
	feeder, err := feederFor(path)
	if err != nil {
		return nil, err
	}
	var raw DeviceConfig
	if err := feeder.Feed(&raw); err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", path, err)
	}
	return raw.Resolve()
}
