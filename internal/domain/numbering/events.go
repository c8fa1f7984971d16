package numbering

import (
	"github.com/google/uuid"

	"github.com/erp/salesops/internal/domain/shared"
)

const (
	EventTypeNumberDegraded = "DocumentNumberDegraded"
)

// NumberDegradedEvent is raised when a document got a fallback number
type NumberDegradedEvent struct {
	shared.BaseDomainEvent
	Kind   Kind   `json:"kind"`
	Year   int    `json:"year"`
	Number string `json:"number"`
	Reason string `json:"reason"`
}

// NewNumberDegradedEvent creates the event for a document aggregate
func NewNumberDegradedEvent(aggregateType string, documentID uuid.UUID, n Number, reason string) *NumberDegradedEvent {
	return &NumberDegradedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNumberDegraded, aggregateType, documentID),
		Kind:            n.Kind,
		Year:            n.Year,
		Number:          n.Value,
		Reason:          reason,
	}
}
