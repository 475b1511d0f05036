// Package events implements the lifecycle notification bus observable by the
// host application. Observers register explicitly and can be torn down; the
// engine never dispatches through ambient globals.
package events

import (
	"log/slog"
	"sync"

	"github.com/fluxr/airtime-widget/internal/domain"
)

// Name identifies a lifecycle notification.
type Name string

const (
	Opened           Name = "opened"
	Closed           Name = "closed"
	StepChanged      Name = "step-changed"
	ErrorRaised      Name = "error"
	PaymentStarted   Name = "payment-started"
	PaymentSucceeded Name = "payment-succeeded"
	SendSucceeded    Name = "send-succeeded"
)

// Event is a named notification with an optional typed payload.
type Event struct {
	Name    Name
	Payload any
}

// StepChangedPayload accompanies StepChanged.
type StepChangedPayload struct {
	Step int
}

// ErrorPayload accompanies ErrorRaised.
type ErrorPayload struct {
	Code    string
	Message string
}

// PaymentPayload accompanies PaymentStarted and PaymentSucceeded.
type PaymentPayload struct {
	Method    domain.Method
	AmountUsd float64
}

// SendSucceededPayload accompanies SendSucceeded.
type SendSucceededPayload struct {
	Reference string
	AmountUsd float64
	Method    domain.Method
}

// Observer receives every emitted event.
type Observer func(Event)

// Bus fans events out to registered observers.
type Bus struct {
	mu        sync.RWMutex
	observers map[int]Observer
	nextID    int
	log       *slog.Logger
}

// NewBus creates an empty event bus.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}

	return &Bus{
		observers: make(map[int]Observer),
		log:       log,
	}
}

// Subscribe registers an observer and returns its subscription id.
func (b *Bus) Subscribe(obs Observer) int {
	if obs == nil {
		return -1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.observers[id] = obs
	return id
}

// Unsubscribe removes the observer registered under id.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, id)
}

// Emit delivers the event to every registered observer in subscription order
// on the calling goroutine.
func (b *Bus) Emit(event Event) {
	b.mu.RLock()
	observers := make([]Observer, 0, len(b.observers))
	for id := 0; id < b.nextID; id++ {
		if obs, ok := b.observers[id]; ok {
			observers = append(observers, obs)
		}
	}
	b.mu.RUnlock()

	b.log.Debug("event emitted", "name", string(event.Name), "observers", len(observers))

	for _, obs := range observers {
		obs(event)
	}
}
