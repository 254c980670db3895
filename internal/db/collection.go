package db

import (
	"context"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// RuleCollection defines the interface for maintenance rule operations.
type RuleCollection interface {
	InsertRule(ctx context.Context, rule models.MaintenanceRule) (*models.MaintenanceRule, error)
	FindRuleByID(ctx context.Context, id string) (*models.MaintenanceRule, error)
	FindRules(ctx context.Context, activeOnly bool) ([]models.MaintenanceRule, error)
	ListActiveRules(ctx context.Context) ([]models.MaintenanceRule, error)
	UpdateRule(ctx context.Context, id string, rule models.MaintenanceRule) error
	DeleteRule(ctx context.Context, id string) error
}

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	FindVehicles(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, error)
	UpdateMileage(ctx context.Context, id string, mileage int) error
}

// RecordCollection defines the interface for maintenance record operations.
//
// CreateOpenRecord is an atomic create-if-absent: it fails with a conflict when the
// vehicle already has an open record for the rule. CompleteRecord and PromoteRecord are
// conditional on the stored status, so racing callers see exactly one success.
type RecordCollection interface {
	CreateOpenRecord(ctx context.Context, record models.MaintenanceRecord) (*models.MaintenanceRecord, error)
	FindRecordByID(ctx context.Context, id string) (*models.MaintenanceRecord, error)
	FindRecords(ctx context.Context, filter models.RecordFilter) ([]models.MaintenanceRecord, error)
	// OpenRecord returns nil, nil when the pair has no open record.
	OpenRecord(ctx context.Context, vehicleID, ruleID string) (*models.MaintenanceRecord, error)
	// LastCompleted returns nil, nil when the pair was never serviced.
	LastCompleted(ctx context.Context, vehicleID, ruleID string) (*models.MaintenanceRecord, error)
	// LatestCompletions returns the most recent completed record of every (vehicle, rule) pair.
	LatestCompletions(ctx context.Context) ([]models.MaintenanceRecord, error)
	ListOpenRecords(ctx context.Context) ([]models.MaintenanceRecord, error)
	PromoteRecord(ctx context.Context, id string, at time.Time) error
	CompleteRecord(ctx context.Context, record models.MaintenanceRecord) error
}
