package core

import (
	"context"
	"time"
)

// Domain event names.
const (
	EventPaymentApplied         = "payment.applied"
	EventFeeCreated             = "fee.created"
	EventPayrollPaid            = "payroll.paid"
	EventResultsCompiled        = "results.compiled"
	EventResultSheetPublished   = "result_sheet.published"
	EventResultSheetUnpublished = "result_sheet.unpublished"
)

type (
	Event struct {
		Name       string      `json:"name"`
		OccurredAt time.Time   `json:"occurred_at"`
		ActorID    int         `json:"actor_id,omitempty"`
		Payload    interface{} `json:"payload"`
	}

	// EventPublisher is any service that can broadcast domain events once their transaction committed.
	EventPublisher interface {
		Publish(ctx context.Context, events ...Event) error
	}
)

func NewEvent(name string, actorID int, payload interface{}) Event {
	return Event{Name: name, OccurredAt: NowFunc().UTC(), ActorID: actorID, Payload: payload}
}

type nopPublisher struct{}

var _ EventPublisher = nopPublisher{}

// NopPublisher drops every event.
func NopPublisher() EventPublisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, ...Event) error { return nil }
