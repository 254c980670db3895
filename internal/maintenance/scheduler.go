package maintenance

import (
	"sort"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// VehicleMaintenanceState is the snapshot of one vehicle the fleet pass evaluates.
type VehicleMaintenanceState struct {
	VehicleID      string
	CurrentMileage int
	// Registration is the fallback baseline for rules never serviced on this vehicle.
	Registration Baseline
	// Baselines holds the latest completion per rule id.
	Baselines map[string]Baseline
	// OpenRecords holds the non-completed record per rule id.
	OpenRecords map[string]models.MaintenanceRecord
}

// RuleState returns the evaluator input for ruleID and whether a completion anchors it.
func (v VehicleMaintenanceState) RuleState(ruleID string) (VehicleRuleState, bool) {
	state := VehicleRuleState{
		VehicleID:      v.VehicleID,
		CurrentMileage: v.CurrentMileage,
		Baseline:       v.Registration,
	}
	b, ok := v.Baselines[ruleID]
	if ok {
		state.Baseline = b
	}
	return state, ok
}

// openRecord returns the open record for ruleID if it belongs to the current interval.
func (v VehicleMaintenanceState) openRecord(ruleID string) (models.MaintenanceRecord, bool) {
	rec, ok := v.OpenRecords[ruleID]
	if !ok || !rec.IsOpen() {
		return models.MaintenanceRecord{}, false
	}
	if b, completed := v.Baselines[ruleID]; completed && !rec.CreatedAt.IsZero() && rec.CreatedAt.Before(b.Date) {
		return models.MaintenanceRecord{}, false
	}
	return rec, true
}

// RecordRef points at the existing record that already tracks a pair.
type RecordRef struct {
	ID            string              `json:"id"`
	Status        models.RecordStatus `json:"status"`
	ScheduledDate time.Time           `json:"scheduled_date"`
}

// Alert is a DueStatus enriched with the rule details the dashboard shows.
type Alert struct {
	DueStatus
	RuleName          string          `json:"rule_name"`
	Category          string          `json:"category"`
	Priority          models.Priority `json:"priority"`
	EstimatedCost     float64         `json:"estimated_cost"`
	EstimatedDuration float64         `json:"estimated_duration"`
	CurrentMileage    int             `json:"current_mileage"`
	Record            *RecordRef      `json:"record,omitempty"`
}

// ItemError is a per-vehicle or per-rule failure that was excluded from a fleet pass.
type ItemError struct {
	VehicleID string `json:"vehicle_id,omitempty"`
	RuleID    string `json:"rule_id,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

const (
	ItemInvalidRule    = "invalid_rule"
	ItemInvalidVehicle = "invalid_vehicle"
	ItemNotFound       = "not_found"
)

type StatusCounts struct {
	Pending int `json:"pending"`
	Overdue int `json:"overdue"`
}

// Summary is the dashboard rollup of a fleet pass.
type Summary struct {
	TotalPending   int                              `json:"total_pending"`
	TotalDue       int                              `json:"total_due"`
	TotalUpcoming  int                              `json:"total_upcoming"`
	TotalOverdue   int                              `json:"total_overdue"`
	TotalTracked   int                              `json:"total_tracked"`
	TotalErrors    int                              `json:"total_errors"`
	Anomalies      int                              `json:"anomalies"`
	ByPriority     map[models.Priority]StatusCounts `json:"by_priority"`
	ByCategory     map[string]StatusCounts          `json:"by_category"`
	EstimatedCost  float64                          `json:"estimated_cost"`
	EstimatedHours float64                          `json:"estimated_hours"`
	GeneratedAt    time.Time                        `json:"generated_at"`
}

// FleetReport is the read-side projection of one fleet pass.
type FleetReport struct {
	Pending   []Alert     `json:"pending"`
	Overdue   []Alert     `json:"overdue"`
	Tracked   []Alert     `json:"tracked"`
	Anomalies []DueStatus `json:"anomalies,omitempty"`
	Errors    []ItemError `json:"errors,omitempty"`
	Summary   Summary     `json:"summary"`
}

// Scheduler runs the evaluator over every active rule and vehicle.
type Scheduler struct {
	evaluator *Evaluator
}

func NewScheduler(evaluator *Evaluator) *Scheduler {
	return &Scheduler{evaluator: evaluator}
}

// EvaluateFleet classifies every (active rule, vehicle) pair at now. Invalid rules and
// vehicles are reported in Errors and skipped; the rest of the fleet is still evaluated.
func (s *Scheduler) EvaluateFleet(rules []models.MaintenanceRule, vehicles []VehicleMaintenanceState, now time.Time) FleetReport {
	report := FleetReport{
		Pending: []Alert{},
		Overdue: []Alert{},
		Tracked: []Alert{},
	}

	active := make([]models.MaintenanceRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		if err := ValidateRule(rule); err != nil {
			report.Errors = append(report.Errors, ItemError{
				RuleID:  rule.ID.Hex(),
				Kind:    ItemInvalidRule,
				Message: err.Error(),
			})
			continue
		}
		active = append(active, rule)
	}

	for _, vehicle := range vehicles {
		if msg := invalidVehicle(vehicle); msg != "" {
			report.Errors = append(report.Errors, ItemError{
				VehicleID: vehicle.VehicleID,
				Kind:      ItemInvalidVehicle,
				Message:   msg,
			})
			continue
		}

		for _, rule := range active {
			ruleID := rule.ID.Hex()
			state, _ := vehicle.RuleState(ruleID)
			ds := s.evaluator.Evaluate(rule, state, now)
			if ds.Anomaly != "" {
				report.Anomalies = append(report.Anomalies, ds)
			}

			alert := Alert{
				DueStatus:         ds,
				RuleName:          rule.Name,
				Category:          rule.Category,
				Priority:          rule.Priority,
				EstimatedCost:     rule.EstimatedCost,
				EstimatedDuration: rule.EstimatedDuration,
				CurrentMileage:    vehicle.CurrentMileage,
			}

			if rec, ok := vehicle.openRecord(ruleID); ok {
				alert.Record = &RecordRef{
					ID:            rec.ID.Hex(),
					Status:        rec.Status,
					ScheduledDate: rec.ScheduledDate,
				}
				report.Tracked = append(report.Tracked, alert)
				continue
			}

			switch ds.Status {
			case StatusOverdue:
				report.Overdue = append(report.Overdue, alert)
			case StatusDue, StatusUpcoming:
				report.Pending = append(report.Pending, alert)
			}
		}
	}

	sortAlerts(report.Overdue)
	sortAlerts(report.Pending)
	sortAlerts(report.Tracked)
	report.Summary = summarize(report, now)
	return report
}

func invalidVehicle(v VehicleMaintenanceState) string {
	switch {
	case v.VehicleID == "":
		return "vehicle id is empty"
	case v.CurrentMileage < 0:
		return "current mileage is negative"
	default:
		return ""
	}
}

// sortAlerts orders most urgent first: higher status, then smallest raw remaining in the
// triggering dimension. The remaining fraction only breaks ties and compares km against
// days. Vehicle and rule id keep equal alerts in a stable order.
func sortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if ra, rb := a.Status.rank(), b.Status.rank(); ra != rb {
			return ra > rb
		}
		da, ra := trigger(a.DueStatus)
		db, rb := trigger(b.DueStatus)
		if da == db && ra != rb {
			return ra < rb
		}
		if a.Urgency != b.Urgency {
			return a.Urgency < b.Urgency
		}
		if a.VehicleID != b.VehicleID {
			return a.VehicleID < b.VehicleID
		}
		return a.RuleID < b.RuleID
	})
}

// trigger returns the dimension an alert is ranked on and its raw remaining amount.
func trigger(ds DueStatus) (Dimension, int) {
	switch {
	case ds.TriggeringDimension == DimensionTime && ds.DaysRemaining != nil:
		return DimensionTime, *ds.DaysRemaining
	case ds.KmRemaining != nil:
		return DimensionMileage, *ds.KmRemaining
	case ds.DaysRemaining != nil:
		return DimensionTime, *ds.DaysRemaining
	default:
		return DimensionNone, 0
	}
}

func summarize(report FleetReport, now time.Time) Summary {
	sum := Summary{
		TotalPending: len(report.Pending),
		TotalOverdue: len(report.Overdue),
		TotalTracked: len(report.Tracked),
		TotalErrors:  len(report.Errors),
		Anomalies:    len(report.Anomalies),
		ByPriority:   make(map[models.Priority]StatusCounts, len(models.Priorities)),
		ByCategory:   make(map[string]StatusCounts),
		GeneratedAt:  now,
	}
	for _, p := range models.Priorities {
		sum.ByPriority[p] = StatusCounts{}
	}

	for _, a := range report.Pending {
		if a.Status == StatusDue {
			sum.TotalDue++
		} else {
			sum.TotalUpcoming++
		}
		bumpCounts(sum.ByPriority, a.Priority, false)
		bumpCategory(sum.ByCategory, a.Category, false)
		sum.EstimatedCost += a.EstimatedCost
		sum.EstimatedHours += a.EstimatedDuration
	}
	for _, a := range report.Overdue {
		bumpCounts(sum.ByPriority, a.Priority, true)
		bumpCategory(sum.ByCategory, a.Category, true)
		sum.EstimatedCost += a.EstimatedCost
		sum.EstimatedHours += a.EstimatedDuration
	}
	return sum
}

func bumpCounts(m map[models.Priority]StatusCounts, p models.Priority, overdue bool) {
	c := m[p]
	if overdue {
		c.Overdue++
	} else {
		c.Pending++
	}
	m[p] = c
}

func bumpCategory(m map[string]StatusCounts, category string, overdue bool) {
	c := m[category]
	if overdue {
		c.Overdue++
	} else {
		c.Pending++
	}
	m[category] = c
}
