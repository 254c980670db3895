package notify

import (
	"context"
	"time"
)

// Record lifecycle event types.
const (
	EventRecordOpened    = "record.opened"
	EventRecordPromoted  = "record.promoted"
	EventRecordCompleted = "record.completed"
)

// Event describes a maintenance record transition.
type Event struct {
	Type      string    `json:"type"`
	RecordID  string    `json:"record_id"`
	VehicleID string    `json:"vehicle_id"`
	RuleID    string    `json:"rule_id"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// Publisher delivers lifecycle events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
