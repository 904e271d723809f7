package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/erp/settlement/internal/domain/shared"
)

// EventSerializer encodes settlement events as outbox payloads and decodes
// them by event type. Payloads are plain JSON with decimals in string form,
// so amounts survive the relay exactly.
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]func() shared.DomainEvent
}

func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: map[string]func() shared.DomainEvent{}}
}

// Register makes eventType decodable. newEvent must return an empty pointer
// whose EventType() is eventType once decoded.
func (s *EventSerializer) Register(eventType string, newEvent func() shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[eventType] = newEvent
}

var errNilEvent = errors.New("cannot serialize nil event")

func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	if event == nil {
		return nil, errNilEvent
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(data, []byte("null")) {
		return nil, errNilEvent
	}
	return data, nil
}

func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	newEvent, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := newEvent()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if got := event.EventType(); got != eventType {
		return nil, fmt.Errorf("payload carries event type %q, expected %q", got, eventType)
	}
	return event, nil
}

func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[eventType]
	return ok
}

// RegisteredTypes lists the decodable event types in sorted order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.factories))
}
