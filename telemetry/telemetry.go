// Package telemetry turns tap-hold, mod-tap, and combo/chord decisions into
// CloudEvents so an external diagnostic tool (or cmd/kbsim's own trace
// printer) can observe the engine without coupling to its internal types.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Event type vocabulary for this module's CloudEvents, in reverse-domain
// notation.
const (
	EventTypeTapHoldDecided = "com.tapstack.taphold.decided"
	EventTypeComboFired     = "com.tapstack.combo.fired"
	EventTypeChordFired     = "com.tapstack.chord.fired"
	EventTypeConfigReloaded = "com.tapstack.config.reloaded"
)

// Source identifies this module as a CloudEvents source.
const Source = "tapstack/corefw"

// Observer is notified of every telemetry event. Implementations should
// return quickly; NotifyObservers does not run them concurrently.
type Observer interface {
	OnEvent(ctx context.Context, event cloudevents.Event) error
	ObserverID() string
}

// Subject is anything that can be observed. *Bus implements it; Engine,
// the simulator, and config.Watcher publish through a *Bus they hold.
type Subject interface {
	RegisterObserver(observer Observer, eventTypes ...string) error
	UnregisterObserver(observer Observer) error
	NotifyObservers(ctx context.Context, event cloudevents.Event) error
}

type registration struct {
	observer   Observer
	eventTypes map[string]struct{} // empty means "all types"
}

// Bus is the concrete Subject: an ordered list of registered observers,
// each optionally filtered to a subset of event types.
type Bus struct {
	mu            sync.Mutex
	registrations []registration
}

// NewBus constructs an empty telemetry bus.
func NewBus() *Bus { return &Bus{} }

// RegisterObserver adds observer, optionally filtered to eventTypes. An
// empty eventTypes means "receive everything".
func (b *Bus) RegisterObserver(observer Observer, eventTypes ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		set[t] = struct{}{}
	}
	b.registrations = append(b.registrations, registration{observer: observer, eventTypes: set})
	return nil
}

// UnregisterObserver removes observer. Idempotent: unregistering an observer
// that was never registered is a no-op.
func (b *Bus) UnregisterObserver(observer Observer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.registrations {
		if r.observer.ObserverID() == observer.ObserverID() {
			b.registrations = append(b.registrations[:i], b.registrations[i+1:]...)
			return nil
		}
	}
	return nil
}

// NotifyObservers delivers event to every registered observer whose filter
// matches, in registration order. The first observer error is returned
// after all observers have run, so one slow/broken subscriber never
// prevents the rest from seeing the event.
func (b *Bus) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	b.mu.Lock()
	regs := append([]registration(nil), b.registrations...)
	b.mu.Unlock()

	var firstErr error
	for _, r := range regs {
		if len(r.eventTypes) > 0 {
			if _, ok := r.eventTypes[event.Type()]; !ok {
				continue
			}
		}
		if err := r.observer.OnEvent(ctx, event); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("telemetry: observer %s: %w", r.observer.ObserverID(), err)
		}
	}
	return firstErr
}

// FunctionalObserver adapts a plain function to the Observer interface, for
// quick ad hoc subscriptions (the simulator's own trace printer, tests).
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver builds an Observer backed by handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) *FunctionalObserver {
	return &FunctionalObserver{id: id, handler: handler}
}

func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

func (f *FunctionalObserver) ObserverID() string { return f.id }

// DecisionPayload is the structured data carried by a taphold.decided
// CloudEvent.
type DecisionPayload struct {
	Position    uint16 `json:"position"`
	Outcome     string `json:"outcome"`
	SessionID   string `json:"sessionId"`
	TimestampMs uint64 `json:"timestampMs"`
}

// NewTapHoldDecidedEvent builds the CloudEvent for one tap-hold/mod-tap
// resolution, tagged with sessionID so a simulator run's telemetry can be
// correlated end to end.
func NewTapHoldDecidedEvent(sessionID string, position uint16, outcome string, timestampMs uint64) cloudevents.Event {
	evt := cloudevents.NewEvent()
	evt.SetID(generateEventID())
	evt.SetSource(Source)
	evt.SetType(EventTypeTapHoldDecided)
	evt.SetTime(time.Now())
	_ = evt.SetData(cloudevents.ApplicationJSON, DecisionPayload{
		Position:    position,
		Outcome:     outcome,
		SessionID:   sessionID,
		TimestampMs: timestampMs,
	})
	return evt
}

// ComboPayload is the structured data carried by combo.fired/chord.fired
// CloudEvents.
type ComboPayload struct {
	Name        string   `json:"name"`
	Positions   []uint16 `json:"positions"`
	SessionID   string   `json:"sessionId"`
	TimestampMs uint64   `json:"timestampMs"`
}

// NewComboFiredEvent builds the CloudEvent for a committed combo.
func NewComboFiredEvent(sessionID, name string, positions []uint16, timestampMs uint64) cloudevents.Event {
	return newComboEvent(EventTypeComboFired, sessionID, name, positions, timestampMs)
}

// NewChordFiredEvent builds the CloudEvent for a committed chord.
func NewChordFiredEvent(sessionID, name string, positions []uint16, timestampMs uint64) cloudevents.Event {
	return newComboEvent(EventTypeChordFired, sessionID, name, positions, timestampMs)
}

func newComboEvent(eventType, sessionID, name string, positions []uint16, timestampMs uint64) cloudevents.Event {
	evt := cloudevents.NewEvent()
	evt.SetID(generateEventID())
	evt.SetSource(Source)
	evt.SetType(eventType)
	evt.SetTime(time.Now())
	_ = evt.SetData(cloudevents.ApplicationJSON, ComboPayload{
		Name:        name,
		Positions:   positions,
		SessionID:   sessionID,
		TimestampMs: timestampMs,
	})
	return evt
}

// ConfigReloadedPayload is carried by a config.reloaded CloudEvent.
type ConfigReloadedPayload struct {
	Path string `json:"path"`
}

// NewConfigReloadedEvent builds the CloudEvent config.Watcher publishes
// after successfully hot-reloading a device-config file.
func NewConfigReloadedEvent(path string) cloudevents.Event {
	evt := cloudevents.NewEvent()
	evt.SetID(generateEventID())
	evt.SetSource(Source)
	evt.SetType(EventTypeConfigReloaded)
	evt.SetTime(time.Now())
	_ = evt.SetData(cloudevents.ApplicationJSON, ConfigReloadedPayload{Path: path})
	return evt
}

// generateEventID mints a CloudEvents ID, preferring a time-ordered UUIDv7
// (so telemetry consumers can sort by ID) and falling back to v4 if the
// platform's random source rejects v7 generation.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
