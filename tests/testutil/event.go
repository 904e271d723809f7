package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
)

// RecordingHandler is a shared.EventHandler that remembers what it handled
type RecordingHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

// NewRecordingHandler subscribes to eventTypes, or to everything when empty
func NewRecordingHandler(eventTypes ...string) *RecordingHandler {
	return &RecordingHandler{eventTypes: eventTypes}
}

// EventTypes returns the subscribed event types
func (h *RecordingHandler) EventTypes() []string {
	return h.eventTypes
}

// Handle records the event and returns the configured error
func (h *RecordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

// Handled returns a copy of the handled events in arrival order
func (h *RecordingHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]shared.DomainEvent, len(h.handled))
	copy(out, h.handled)
	return out
}

// OfType returns the handled events of one type
func (h *RecordingHandler) OfType(eventType string) []shared.DomainEvent {
	var out []shared.DomainEvent
	for _, e := range h.Handled() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of handled events
func (h *RecordingHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// SetError makes later Handle calls fail with err
func (h *RecordingHandler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// WaitForEventCount waits until h has handled at least count events
func WaitForEventCount(t *testing.T, h *RecordingHandler, count int, timeout time.Duration) {
	t.Helper()
	RequireEventually(t, func() bool { return h.Count() >= count }, timeout, 10*time.Millisecond,
		"expected at least %d events", count)
}
