// Package events publishes expense lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
)

// Type names a lifecycle transition.
type Type string

const (
	ExpenseCreated Type = "created"
	ExpenseUpdated Type = "updated"
	ExpenseDeleted Type = "deleted"
)

// Event describes one change to an expense record.
type Event struct {
	Type       Type            `json:"type"`
	ExpenseID  string          `json:"expenseId"`
	UserID     string          `json:"userId"`
	CarID      string          `json:"carId"`
	Category   models.Category `json:"category"`
	Amount     float64         `json:"amount"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// NewExpenseEvent builds an event from the record it concerns.
func NewExpenseEvent(t Type, e models.Expense, at time.Time) Event {
	return Event{
		Type:       t,
		ExpenseID:  e.ID,
		UserID:     e.UserID,
		CarID:      e.CarID,
		Category:   e.Category,
		Amount:     e.Amount,
		OccurredAt: at,
	}
}

// Payload encodes the event as JSON.
func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
