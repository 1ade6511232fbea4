// Package memory implements an in-process publisher for dev mode and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Event is one published message retained by the Publisher.
type Event struct {
	Topic   string
	Payload []byte
}

// Publisher retains published events in memory.
type Publisher struct {
	mu     sync.Mutex
	events []Event
	nextID int
}

// New constructs an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish marshals the payload and appends it to the event log.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.events = append(p.events, Event{Topic: topic, Payload: data})
	return fmt.Sprintf("mem-%d", p.nextID), nil
}

// Events returns a snapshot of everything published so far.
func (p *Publisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
