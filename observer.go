package corobus

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Observer defines the interface for objects that want to be notified of
// runner events. Events use the CloudEvents specification for
// standardization.
type Observer interface {
	// OnEvent is called when an event occurs that the observer is
	// interested in. Observers are invoked synchronously from inside the
	// runner, at the point the event occurs, and must return quickly.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer, used for
	// registration tracking and debugging.
	ObserverID() string
}

// ObserverInfo provides information about a registered observer.
type ObserverInfo struct {
	// ID is the unique identifier of the observer
	ID string `json:"id"`

	// EventTypes are the event types this observer is subscribed to.
	// Empty means all events.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt is when the observer was registered
	RegisteredAt time.Time `json:"registeredAt"`
}

// FunctionalObserver wraps a function as an Observer.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates a new observer that uses the provided
// function to handle events.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent invokes the wrapped handler.
func (o *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return o.handler(ctx, event)
}

// ObserverID returns the observer's identifier.
func (o *FunctionalObserver) ObserverID() string {
	return o.id
}

// observerRegistration holds information about a registered observer.
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// RegisterObserver adds an observer to receive runner events. Observers can
// optionally filter events by type; no types means all events.
func (r *TaskRunner) RegisterObserver(observer Observer, eventTypes ...string) error {
	r.observerMutex.Lock()
	defer r.observerMutex.Unlock()

	eventTypeMap := make(map[string]bool)
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}

	r.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}

	r.logger.Debug("observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer. Idempotent.
func (r *TaskRunner) UnregisterObserver(observer Observer) error {
	r.observerMutex.Lock()
	defer r.observerMutex.Unlock()
	delete(r.observers, observer.ObserverID())
	return nil
}

// GetObservers returns information about currently registered observers.
func (r *TaskRunner) GetObservers() []ObserverInfo {
	r.observerMutex.RLock()
	defer r.observerMutex.RUnlock()

	infos := make([]ObserverInfo, 0, len(r.observers))
	for id, reg := range r.observers {
		types := make([]string, 0, len(reg.eventTypes))
		for t := range reg.eventTypes {
			types = append(types, t)
		}
		infos = append(infos, ObserverInfo{
			ID:           id,
			EventTypes:   types,
			RegisteredAt: reg.registeredAt,
		})
	}
	return infos
}

// NotifyObservers delivers a CloudEvent to every interested observer.
// Delivery is synchronous: the bus is single-threaded and event order must
// follow scheduling order. Observer errors and panics are logged and do not
// disturb the run.
func (r *TaskRunner) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	r.observerMutex.RLock()
	defer r.observerMutex.RUnlock()

	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}

	for _, reg := range r.observers {
		if len(reg.eventTypes) > 0 && !reg.eventTypes[event.Type()] {
			continue
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("observer panicked", "observerID", reg.observer.ObserverID(), "event", event.Type(), "panic", rec)
				}
			}()
			if err := reg.observer.OnEvent(ctx, event); err != nil {
				r.logger.Error("observer error", "observerID", reg.observer.ObserverID(), "event", event.Type(), "error", err)
			}
		}()
	}
	return nil
}

// emitEvent builds and delivers a runner event when event emission is
// enabled and at least one observer is registered.
func (r *TaskRunner) emitEvent(eventType string, data map[string]any) {
	if !r.config.EmitEvents {
		return
	}
	r.observerMutex.RLock()
	empty := len(r.observers) == 0
	r.observerMutex.RUnlock()
	if empty {
		return
	}

	event := cloudevents.NewEvent()
	event.SetID(uuid.New().String())
	event.SetType(eventType)
	event.SetSource(eventSource)
	event.SetTime(time.Now())
	if data != nil {
		if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
			r.logger.Error("failed to encode event data", "event", eventType, "error", err)
		}
	}

	_ = r.NotifyObservers(context.Background(), event)
}
