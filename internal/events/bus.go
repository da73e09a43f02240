package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind names a domain event pushed to live feed subscribers.
type EventKind string

const (
	EventActivityLogged   EventKind = "activity.logged"
	EventActivityDeleted  EventKind = "activity.deleted"
	EventGoalUpdated      EventKind = "goal.updated"
	EventStreakUpdated    EventKind = "streak.updated"
	EventMoodLogged       EventKind = "mood.logged"
	EventCosmeticEquipped EventKind = "cosmetic.equipped"
	EventCosmeticArtReady EventKind = "cosmetic.art_ready"
)

// Event is scoped to one household. Data carries the changed record.
type Event struct {
	Kind        EventKind   `json:"type"`
	HouseholdID string      `json:"householdId"`
	Data        interface{} `json:"data,omitempty"`
	Time        time.Time   `json:"time"`
}

// Publisher is the write side used by services and the outbox worker.
type Publisher interface {
	Publish(evt Event) int
}

// Bus is a lightweight in-process pub-sub keyed by household. Each subscriber
// owns a buffered channel; a slow subscriber drops events instead of blocking
// publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

// NewBus creates a bus whose subscriptions buffer up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

// Publish delivers evt to every subscriber of its household without blocking.
// It returns the number of subscribers that received it.
func (b *Bus) Publish(evt Event) int {
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for s := range b.subs[evt.HouseholdID] {
		select {
		case s.ch <- evt:
			n++
		default:
			s.dropped.Add(1)
		}
	}
	return n
}

// Subscribe registers a subscriber for householdID. Call Close when done.
func (b *Bus) Subscribe(householdID string) *Subscription {
	s := &Subscription{ch: make(chan Event, b.buffer), bus: b, householdID: householdID}
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[householdID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[householdID] = set
	}
	set[s] = struct{}{}
	return s
}

// Subscribers returns the number of live subscriptions for householdID.
func (b *Bus) Subscribers(householdID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[householdID])
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[s.householdID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.householdID)
		}
	}
	close(s.ch)
}

// Subscription is one consumer's view of a household's events.
type Subscription struct {
	ch          chan Event
	bus         *Bus
	householdID string
	once        sync.Once
	dropped     atomic.Int64
}

// C returns the event channel. It is closed by Close.
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped counts events discarded because the buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close unregisters the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() { s.bus.remove(s) })
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) int { return 0 }
