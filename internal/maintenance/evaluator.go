package maintenance

import (
	"fmt"
	"strings"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Status is the urgency classification of a (rule, vehicle) pair.
type Status string

const (
	StatusOK       Status = "ok"
	StatusUpcoming Status = "upcoming"
	StatusDue      Status = "due"
	StatusOverdue  Status = "overdue"
)

func (s Status) rank() int {
	switch s {
	case StatusUpcoming:
		return 1
	case StatusDue:
		return 2
	case StatusOverdue:
		return 3
	default:
		return 0
	}
}

// Flagged reports whether the status needs attention (due or overdue).
func (s Status) Flagged() bool {
	return s == StatusDue || s == StatusOverdue
}

// Dimension names the interval dimension that decided a classification.
type Dimension string

const (
	DimensionMileage Dimension = "mileage"
	DimensionTime    Dimension = "time"
	DimensionNone    Dimension = "none"
)

// Anomalies reported on a DueStatus. They never change the classification path.
const (
	AnomalyMileageRegression = "mileage_regression"
	AnomalyFutureService     = "service_date_in_future"
)

// Thresholds are the near (due) and look-ahead (upcoming) windows applied to each dimension.
type Thresholds struct {
	DueKm        int `json:"due_km"`
	DueDays      int `json:"due_days"`
	UpcomingKm   int `json:"upcoming_km"`
	UpcomingDays int `json:"upcoming_days"`
}

// DefaultThresholds returns 500 km / 7 days due and 2000 km / 30 days upcoming.
func DefaultThresholds() Thresholds {
	return Thresholds{DueKm: 500, DueDays: 7, UpcomingKm: 2000, UpcomingDays: 30}
}

// Validate checks the windows are non-negative and nested.
func (t Thresholds) Validate() error {
	if t.DueKm < 0 || t.DueDays < 0 || t.UpcomingKm < 0 || t.UpcomingDays < 0 {
		return fmt.Errorf("thresholds must not be negative: %+v", t)
	}
	if t.DueKm > t.UpcomingKm {
		return fmt.Errorf("due km window %d exceeds upcoming window %d", t.DueKm, t.UpcomingKm)
	}
	if t.DueDays > t.UpcomingDays {
		return fmt.Errorf("due days window %d exceeds upcoming window %d", t.DueDays, t.UpcomingDays)
	}
	return nil
}

// Baseline is the mileage and date the current interval is measured from.
type Baseline struct {
	Mileage int       `json:"mileage"`
	Date    time.Time `json:"date"`
}

// VehicleRuleState is the evaluator input for one vehicle under one rule.
type VehicleRuleState struct {
	VehicleID      string
	CurrentMileage int
	Baseline       Baseline
}

// DueStatus is the computed urgency of a rule for a vehicle at an instant.
type DueStatus struct {
	RuleID              string    `json:"rule_id"`
	VehicleID           string    `json:"vehicle_id"`
	KmRemaining         *int      `json:"km_remaining"`
	DaysRemaining       *int      `json:"days_remaining"`
	Status              Status    `json:"status"`
	TriggeringDimension Dimension `json:"triggering_dimension"`
	// Urgency is the remaining fraction of the deciding dimension's interval.
	Urgency float64 `json:"urgency"`
	Anomaly string  `json:"anomaly,omitempty"`
}

// Evaluator classifies rules against vehicle state. It holds no mutable state.
type Evaluator struct {
	thresholds Thresholds
}

func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Thresholds returns the windows the evaluator classifies with.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

type reading struct {
	dim       Dimension
	remaining int
	fraction  float64
	status    Status
}

// Evaluate computes the DueStatus of rule for state at now. The caller filters inactive rules.
func (e *Evaluator) Evaluate(rule models.MaintenanceRule, state VehicleRuleState, now time.Time) DueStatus {
	ds := DueStatus{
		RuleID:              rule.ID.Hex(),
		VehicleID:           state.VehicleID,
		Status:              StatusOK,
		TriggeringDimension: DimensionNone,
	}
	var anomalies []string
	var readings []reading

	if rule.IntervalType.UsesMileage() && rule.IntervalMileage != nil {
		driven := state.CurrentMileage - state.Baseline.Mileage
		if driven < 0 {
			anomalies = append(anomalies, AnomalyMileageRegression)
			driven = 0
		}
		interval := *rule.IntervalMileage
		remaining := interval - driven
		ds.KmRemaining = &remaining
		readings = append(readings, reading{
			dim:       DimensionMileage,
			remaining: remaining,
			fraction:  fraction(remaining, interval),
			status:    classify(remaining, e.thresholds.DueKm, e.thresholds.UpcomingKm),
		})
	}

	if rule.IntervalType.UsesTime() && rule.IntervalDays != nil {
		elapsed := daysBetween(state.Baseline.Date, now)
		if state.Baseline.Date.After(now) {
			anomalies = append(anomalies, AnomalyFutureService)
			elapsed = 0
		}
		interval := *rule.IntervalDays
		remaining := interval - elapsed
		ds.DaysRemaining = &remaining
		readings = append(readings, reading{
			dim:       DimensionTime,
			remaining: remaining,
			fraction:  fraction(remaining, interval),
			status:    classify(remaining, e.thresholds.DueDays, e.thresholds.UpcomingDays),
		})
	}

	if len(readings) > 0 {
		best := readings[0]
		for _, r := range readings[1:] {
			if r.status.rank() > best.status.rank() ||
				(r.status.rank() == best.status.rank() && r.fraction < best.fraction) {
				best = r
			}
		}
		ds.Status = best.status
		ds.Urgency = best.fraction
		if best.status != StatusOK {
			ds.TriggeringDimension = best.dim
		}
	}

	ds.Anomaly = strings.Join(anomalies, ",")
	return ds
}

func classify(remaining, due, upcoming int) Status {
	switch {
	case remaining <= 0:
		return StatusOverdue
	case remaining <= due:
		return StatusDue
	case remaining <= upcoming:
		return StatusUpcoming
	default:
		return StatusOK
	}
}

func fraction(remaining, interval int) float64 {
	if interval <= 0 {
		return 0
	}
	return float64(remaining) / float64(interval)
}

// daysBetween counts whole days elapsed from since to now, flooring partial days.
func daysBetween(since, now time.Time) int {
	d := now.Sub(since)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) < 0 {
		days--
	}
	return days
}
