package event

import (
	"maps"
	"slices"

	"github.com/erp/settlement/internal/domain/settlement"
)

// RegisterAllEvents makes every settlement event decodable. The relay
// dead-letters rows whose type is missing here.
func RegisterAllEvents(serializer *EventSerializer) {
	for eventType, newEvent := range settlement.EventFactories() {
		serializer.Register(eventType, newEvent)
	}
}

// SettlementEventTypes lists the event types the settlement engines publish
func SettlementEventTypes() []string {
	return slices.Sorted(maps.Keys(settlement.EventFactories()))
}
