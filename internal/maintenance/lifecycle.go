package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/looplab/fsm"
	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
)

// Lifecycle events
const (
	EventFlag     = "flag"
	EventComplete = "complete"
)

// Completion carries what the user reports when closing a record.
type Completion struct {
	MileageAtService *int       `json:"mileage_at_service,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Cost             *float64   `json:"cost,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

// Validate rejects impossible completion data.
func (c Completion) Validate() error {
	if c.MileageAtService != nil && *c.MileageAtService < 0 {
		return apperrors.Validation("mileage_at_service must be >= 0")
	}
	if c.Cost != nil && *c.Cost < 0 {
		return apperrors.Validation("cost must be >= 0")
	}
	return nil
}

// Lifecycle drives one record through scheduled -> pending -> completed.
// It is not safe for concurrent use; persistence guards cross-request races.
type Lifecycle struct {
	record *models.MaintenanceRecord
	fsm    *fsm.FSM
}

func NewLifecycle(record *models.MaintenanceRecord) *Lifecycle {
	l := &Lifecycle{record: record}
	l.fsm = fsm.NewFSM(
		string(record.Status),
		fsm.Events{
			{Name: EventFlag, Src: []string{string(models.RecordScheduled)}, Dst: string(models.RecordPending)},
			{Name: EventComplete, Src: []string{string(models.RecordScheduled), string(models.RecordPending)}, Dst: string(models.RecordCompleted)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				l.record.Status = models.RecordStatus(e.Dst)
			},
		},
	)
	return l
}

// Current returns the record's lifecycle state.
func (l *Lifecycle) Current() models.RecordStatus {
	return models.RecordStatus(l.fsm.Current())
}

// Can reports whether event is allowed from the current state.
func (l *Lifecycle) Can(event string) bool {
	return l.fsm.Can(event)
}

// Flag moves a scheduled record to pending once its pair is due or overdue.
func (l *Lifecycle) Flag(ctx context.Context, now time.Time) error {
	if err := l.fire(ctx, EventFlag); err != nil {
		return err
	}
	l.record.UpdatedAt = now
	return nil
}

// Complete closes the record. mileage is the vehicle's odometer, used when the
// completion does not report one; the stamped mileage and date become the next baseline.
func (l *Lifecycle) Complete(ctx context.Context, c Completion, mileage int, now time.Time) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := l.fire(ctx, EventComplete); err != nil {
		return err
	}

	at := now
	if c.CompletedAt != nil && !c.CompletedAt.IsZero() {
		at = *c.CompletedAt
	}
	if c.MileageAtService != nil {
		mileage = *c.MileageAtService
	}
	l.record.MileageAtService = &mileage
	l.record.CompletedAt = &at
	if c.Cost != nil {
		l.record.Cost = *c.Cost
	}
	if notes := strings.TrimSpace(c.Notes); notes != "" {
		if l.record.Notes != "" {
			l.record.Notes += "\n"
		}
		l.record.Notes += notes
	}
	l.record.Open = false
	l.record.UpdatedAt = now
	return nil
}

func (l *Lifecycle) fire(ctx context.Context, event string) error {
	err := l.fsm.Event(ctx, event)
	if err == nil {
		return nil
	}

	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		if l.record.Status == models.RecordCompleted {
			return apperrors.Conflict("maintenance record %s is already completed", l.record.ID.Hex())
		}
		return apperrors.Conflict("cannot %s a %s maintenance record", event, l.record.Status)
	}
	return fmt.Errorf("record %s: %w", event, err)
}
