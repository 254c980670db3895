package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IntervalType selects which dimensions a maintenance rule keys off.
type IntervalType string

const (
	IntervalMileage IntervalType = "mileage"
	IntervalTime    IntervalType = "time"
	IntervalBoth    IntervalType = "both"
)

// UsesMileage reports whether the interval is measured in kilometers.
func (t IntervalType) UsesMileage() bool {
	return t == IntervalMileage || t == IntervalBoth
}

// UsesTime reports whether the interval is measured in days.
func (t IntervalType) UsesTime() bool {
	return t == IntervalTime || t == IntervalBoth
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every priority, lowest first.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// MaintenanceRule defines a recurring maintenance interval for the fleet.
type MaintenanceRule struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name              string             `json:"name" bson:"name" validate:"required,max=120"`
	Category          string             `json:"category" bson:"category" validate:"required,max=60"` // "oil_change", "tire_rotation", "brake_service", "inspection"
	IntervalType      IntervalType       `json:"interval_type" bson:"interval_type" validate:"required,oneof=mileage time both"`
	IntervalMileage   *int               `json:"interval_mileage,omitempty" bson:"interval_mileage,omitempty" validate:"omitempty,gt=0"` // in kilometers
	IntervalDays      *int               `json:"interval_days,omitempty" bson:"interval_days,omitempty" validate:"omitempty,gt=0"`
	Priority          Priority           `json:"priority" bson:"priority" validate:"required,oneof=low medium high critical"`
	EstimatedCost     float64            `json:"estimated_cost" bson:"estimated_cost" validate:"gte=0"`         // in USD
	EstimatedDuration float64            `json:"estimated_duration" bson:"estimated_duration" validate:"gte=0"` // in hours
	IsActive          bool               `json:"is_active" bson:"is_active"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// RecordStatus is the lifecycle state of a maintenance record.
type RecordStatus string

const (
	RecordScheduled RecordStatus = "scheduled"
	RecordPending   RecordStatus = "pending"
	RecordCompleted RecordStatus = "completed"
)

// IsValidRecordStatus checks if a status is valid
func IsValidRecordStatus(s RecordStatus) bool {
	switch s {
	case RecordScheduled, RecordPending, RecordCompleted:
		return true
	default:
		return false
	}
}

// DueInfo is the due-status snapshot taken when a record was opened.
type DueInfo struct {
	Status        string `json:"status" bson:"status"`
	KmRemaining   *int   `json:"km_remaining,omitempty" bson:"km_remaining,omitempty"`
	DaysRemaining *int   `json:"days_remaining,omitempty" bson:"days_remaining,omitempty"`
}

// MaintenanceRecord is one occurrence of maintenance for a vehicle under a rule.
type MaintenanceRecord struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID        string             `json:"vehicle_id" bson:"vehicle_id"`
	RuleID           string             `json:"rule_id" bson:"rule_id"`
	Category         string             `json:"category" bson:"category"`
	Description      string             `json:"description" bson:"description"`
	Priority         Priority           `json:"priority" bson:"priority"`
	ScheduledDate    time.Time          `json:"scheduled_date" bson:"scheduled_date"`
	Status           RecordStatus       `json:"status" bson:"status"`
	Cost             float64            `json:"cost" bson:"cost"` // in USD
	MileageAtService *int               `json:"mileage_at_service,omitempty" bson:"mileage_at_service,omitempty"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Due              *DueInfo           `json:"due,omitempty" bson:"due,omitempty"`
	Notes            string             `json:"notes" bson:"notes"`
	// Open is true until the record completes; the unique open-record index is partial on it.
	Open      bool      `json:"-" bson:"open"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// IsOpen reports whether the record still represents outstanding work.
func (r *MaintenanceRecord) IsOpen() bool {
	return r.Status != RecordCompleted
}
