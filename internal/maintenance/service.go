package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"github.com/zoobzio/clockz"
)

// Service ties the scheduling engine to rule, vehicle and record storage.
// Each call works on a snapshot read at call time; it keeps no state between calls.
type Service struct {
	rules     db.RuleCollection
	vehicles  db.VehicleCollection
	records   db.RecordCollection
	evaluator *Evaluator
	scheduler *Scheduler
	clock     clockz.Clock
	log       logrus.FieldLogger
	publisher notify.Publisher
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets a custom clock for testing.
func WithClock(clock clockz.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func NewService(rules db.RuleCollection, vehicles db.VehicleCollection, records db.RecordCollection, thresholds Thresholds, opts ...Option) *Service {
	evaluator := NewEvaluator(thresholds)
	s := &Service{
		rules:     rules,
		vehicles:  vehicles,
		records:   records,
		evaluator: evaluator,
		scheduler: NewScheduler(evaluator),
		clock:     clockz.RealClock,
		log:       logrus.StandardLogger(),
		publisher: notify.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report runs a fleet-wide pass over a fresh snapshot.
func (s *Service) Report(ctx context.Context) (*FleetReport, error) {
	rules, states, orphans, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	report := s.scheduler.EvaluateFleet(rules, states, s.clock.Now())
	report.Errors = append(report.Errors, orphans...)
	report.Summary.TotalErrors = len(report.Errors)

	for _, item := range report.Errors {
		s.log.WithFields(logrus.Fields{
			"vehicle_id": item.VehicleID,
			"rule_id":    item.RuleID,
			"kind":       item.Kind,
		}).Warn(item.Message)
	}
	for _, ds := range report.Anomalies {
		s.log.WithFields(logrus.Fields{
			"vehicle_id": ds.VehicleID,
			"rule_id":    ds.RuleID,
			"anomaly":    ds.Anomaly,
		}).Warn("Maintenance baseline anomaly clamped")
	}
	return &report, nil
}

// PendingAlerts returns due and upcoming work, soonest first.
func (s *Service) PendingAlerts(ctx context.Context) ([]Alert, error) {
	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	return report.Pending, nil
}

// OverdueAlerts returns overdue work, most overdue first.
func (s *Service) OverdueAlerts(ctx context.Context) ([]Alert, error) {
	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	return report.Overdue, nil
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	return &report.Summary, nil
}

// snapshot loads active rules and builds per-vehicle state. Records whose vehicle no
// longer exists are returned as not-found item errors instead of failing the pass.
func (s *Service) snapshot(ctx context.Context) ([]models.MaintenanceRule, []VehicleMaintenanceState, []ItemError, error) {
	rules, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list active rules: %w", err)
	}
	vehicles, err := s.vehicles.FindVehicles(ctx, models.VehicleFilter{})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list vehicles: %w", err)
	}
	completions, err := s.records.LatestCompletions(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load completions: %w", err)
	}
	open, err := s.records.ListOpenRecords(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load open records: %w", err)
	}

	states := make([]VehicleMaintenanceState, 0, len(vehicles))
	index := make(map[string]int, len(vehicles))
	for i := range vehicles {
		states = append(states, newVehicleState(&vehicles[i]))
		index[vehicles[i].ID.Hex()] = len(states) - 1
	}

	var orphans []ItemError
	seen := make(map[string]bool)
	orphan := func(rec models.MaintenanceRecord) {
		if seen[rec.VehicleID] {
			return
		}
		seen[rec.VehicleID] = true
		orphans = append(orphans, ItemError{
			VehicleID: rec.VehicleID,
			RuleID:    rec.RuleID,
			Kind:      ItemNotFound,
			Message:   fmt.Sprintf("vehicle %s referenced by maintenance records no longer exists", rec.VehicleID),
		})
	}

	for _, rec := range completions {
		i, ok := index[rec.VehicleID]
		if !ok {
			orphan(rec)
			continue
		}
		states[i].Baselines[rec.RuleID] = completionBaseline(rec, states[i].Registration)
	}
	for _, rec := range open {
		i, ok := index[rec.VehicleID]
		if !ok {
			orphan(rec)
			continue
		}
		states[i].OpenRecords[rec.RuleID] = rec
	}
	return rules, states, orphans, nil
}

func newVehicleState(v *models.Vehicle) VehicleMaintenanceState {
	km, date := v.Baseline()
	return VehicleMaintenanceState{
		VehicleID:      v.ID.Hex(),
		CurrentMileage: v.CurrentMileage,
		Registration:   Baseline{Mileage: km, Date: date},
		Baselines:      make(map[string]Baseline),
		OpenRecords:    make(map[string]models.MaintenanceRecord),
	}
}

// completionBaseline anchors the next interval at a completed record.
func completionBaseline(rec models.MaintenanceRecord, fallback Baseline) Baseline {
	b := fallback
	if rec.MileageAtService != nil {
		b.Mileage = *rec.MileageAtService
	}
	switch {
	case rec.CompletedAt != nil:
		b.Date = *rec.CompletedAt
	case !rec.UpdatedAt.IsZero():
		b.Date = rec.UpdatedAt
	}
	return b
}

// VehicleStatus evaluates every active rule for one vehicle, including rules still ok.
func (s *Service) VehicleStatus(ctx context.Context, vehicleID string) ([]Alert, error) {
	vehicle, err := s.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}

	now := s.clock.Now()
	state := newVehicleState(vehicle)
	alerts := make([]Alert, 0, len(rules))
	for _, rule := range rules {
		if err := ValidateRule(rule); err != nil {
			s.log.WithField("rule_id", rule.ID.Hex()).WithError(err).Warn("Skipping invalid maintenance rule")
			continue
		}
		alert, err := s.evaluatePair(ctx, rule, state, now)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	sortAlerts(alerts)
	return alerts, nil
}

// evaluatePair loads the pair's baseline and open record and evaluates it.
func (s *Service) evaluatePair(ctx context.Context, rule models.MaintenanceRule, state VehicleMaintenanceState, now time.Time) (Alert, error) {
	ruleID := rule.ID.Hex()
	last, err := s.records.LastCompleted(ctx, state.VehicleID, ruleID)
	if err != nil {
		return Alert{}, fmt.Errorf("last completed record: %w", err)
	}
	if last != nil {
		state.Baselines[ruleID] = completionBaseline(*last, state.Registration)
	}
	open, err := s.records.OpenRecord(ctx, state.VehicleID, ruleID)
	if err != nil {
		return Alert{}, fmt.Errorf("open record: %w", err)
	}

	ruleState, _ := state.RuleState(ruleID)
	ds := s.evaluator.Evaluate(rule, ruleState, now)
	if ds.Anomaly != "" {
		s.log.WithFields(logrus.Fields{
			"vehicle_id": state.VehicleID,
			"rule_id":    ruleID,
			"anomaly":    ds.Anomaly,
		}).Warn("Maintenance baseline anomaly clamped")
	}

	alert := Alert{
		DueStatus:         ds,
		RuleName:          rule.Name,
		Category:          rule.Category,
		Priority:          rule.Priority,
		EstimatedCost:     rule.EstimatedCost,
		EstimatedDuration: rule.EstimatedDuration,
		CurrentMileage:    state.CurrentMileage,
	}
	if open != nil {
		state.OpenRecords[ruleID] = *open
		if rec, ok := state.openRecord(ruleID); ok {
			alert.Record = &RecordRef{ID: rec.ID.Hex(), Status: rec.Status, ScheduledDate: rec.ScheduledDate}
		}
	}
	return alert, nil
}

// OpenDueResult reports what an explicit open-due pass changed.
type OpenDueResult struct {
	Created  []models.MaintenanceRecord `json:"created"`
	Promoted []string                   `json:"promoted"`
	Skipped  int                        `json:"skipped"`
	Errors   []ItemError                `json:"errors,omitempty"`
}

// OpenDueRecords opens a pending record for every due or overdue pair that has none and
// promotes scheduled records whose pair became due. Pairs claimed concurrently by
// another caller are skipped.
func (s *Service) OpenDueRecords(ctx context.Context) (*OpenDueResult, error) {
	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	byID := make(map[string]models.MaintenanceRule, len(rules))
	for _, r := range rules {
		byID[r.ID.Hex()] = r
	}

	now := s.clock.Now()
	result := &OpenDueResult{Created: []models.MaintenanceRecord{}, Promoted: []string{}}

	flagged := make([]Alert, 0, len(report.Overdue)+len(report.Pending))
	flagged = append(flagged, report.Overdue...)
	flagged = append(flagged, report.Pending...)
	for _, alert := range flagged {
		if !alert.Status.Flagged() {
			continue
		}
		rule, ok := byID[alert.RuleID]
		if !ok {
			result.Skipped++
			continue
		}
		rec, err := s.createOpen(ctx, newPendingRecord(rule, alert.DueStatus, now))
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			result.Skipped++
		case err != nil:
			result.Errors = append(result.Errors, ItemError{VehicleID: alert.VehicleID, RuleID: alert.RuleID, Kind: apperrors.CodeOf(err), Message: err.Error()})
		default:
			result.Created = append(result.Created, *rec)
		}
	}

	for _, alert := range report.Tracked {
		if !alert.Status.Flagged() || alert.Record == nil || alert.Record.Status != models.RecordScheduled {
			continue
		}
		err := s.promote(ctx, alert.Record.ID, now)
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			result.Skipped++
		case err != nil:
			result.Errors = append(result.Errors, ItemError{VehicleID: alert.VehicleID, RuleID: alert.RuleID, Kind: apperrors.CodeOf(err), Message: err.Error()})
		default:
			result.Promoted = append(result.Promoted, alert.Record.ID)
		}
	}

	s.log.WithFields(logrus.Fields{
		"created":  len(result.Created),
		"promoted": len(result.Promoted),
		"skipped":  result.Skipped,
		"errors":   len(result.Errors),
	}).Info("Opened due maintenance records")
	return result, nil
}

func (s *Service) promote(ctx context.Context, recordID string, now time.Time) error {
	rec, err := s.records.FindRecordByID(ctx, recordID)
	if err != nil {
		return err
	}
	if err := NewLifecycle(rec).Flag(ctx, now); err != nil {
		return err
	}
	if err := s.records.PromoteRecord(ctx, recordID, now); err != nil {
		return err
	}
	s.emit(ctx, notify.EventRecordPromoted, rec, now)
	return nil
}

// CreatePendingRecord opens a pending record for one pair. The pair must be due or
// overdue; a second open record for the pair is a conflict.
func (s *Service) CreatePendingRecord(ctx context.Context, vehicleID, ruleID string) (*models.MaintenanceRecord, error) {
	rule, vehicle, err := s.loadPair(ctx, vehicleID, ruleID)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		return nil, apperrors.Validation("maintenance rule %s is inactive", ruleID)
	}

	now := s.clock.Now()
	alert, err := s.evaluatePair(ctx, *rule, newVehicleState(vehicle), now)
	if err != nil {
		return nil, err
	}
	if alert.Record != nil {
		return nil, apperrors.Conflict("vehicle %s already has a %s record for rule %s", vehicleID, alert.Record.Status, ruleID)
	}
	if !alert.Status.Flagged() {
		return nil, apperrors.Validation("maintenance is %s, not due", alert.Status)
	}
	return s.createOpen(ctx, newPendingRecord(*rule, alert.DueStatus, now))
}

// ScheduleRequest is an admin booking maintenance ahead of time.
type ScheduleRequest struct {
	VehicleID     string    `json:"vehicle_id"`
	RuleID        string    `json:"rule_id"`
	ScheduledDate time.Time `json:"scheduled_date"`
	Description   string    `json:"description"`
	Notes         string    `json:"notes"`
}

func (r ScheduleRequest) Validate() error {
	var missing []string
	if r.VehicleID == "" {
		missing = append(missing, "vehicle_id")
	}
	if r.RuleID == "" {
		missing = append(missing, "rule_id")
	}
	if r.ScheduledDate.IsZero() {
		missing = append(missing, "scheduled_date")
	}
	if len(missing) > 0 {
		return apperrors.Validation("%s required", strings.Join(missing, ", "))
	}
	return nil
}

// ScheduleRecord opens a scheduled record. It conflicts with any open record for the pair.
func (s *Service) ScheduleRecord(ctx context.Context, req ScheduleRequest) (*models.MaintenanceRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rule, _, err := s.loadPair(ctx, req.VehicleID, req.RuleID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	description := req.Description
	if description == "" {
		description = rule.Name
	}
	rec := models.MaintenanceRecord{
		VehicleID:     req.VehicleID,
		RuleID:        rule.ID.Hex(),
		Category:      rule.Category,
		Description:   description,
		Priority:      rule.Priority,
		ScheduledDate: req.ScheduledDate,
		Status:        models.RecordScheduled,
		Cost:          rule.EstimatedCost,
		Notes:         req.Notes,
		Open:          true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return s.createOpen(ctx, rec)
}

func (s *Service) loadPair(ctx context.Context, vehicleID, ruleID string) (*models.MaintenanceRule, *models.Vehicle, error) {
	rule, err := s.rules.FindRuleByID(ctx, ruleID)
	if err != nil {
		return nil, nil, err
	}
	vehicle, err := s.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return nil, nil, err
	}
	return rule, vehicle, nil
}

func newPendingRecord(rule models.MaintenanceRule, ds DueStatus, now time.Time) models.MaintenanceRecord {
	return models.MaintenanceRecord{
		VehicleID:     ds.VehicleID,
		RuleID:        rule.ID.Hex(),
		Category:      rule.Category,
		Description:   rule.Name,
		Priority:      rule.Priority,
		ScheduledDate: now,
		Status:        models.RecordPending,
		Cost:          rule.EstimatedCost,
		Due: &models.DueInfo{
			Status:        string(ds.Status),
			KmRemaining:   ds.KmRemaining,
			DaysRemaining: ds.DaysRemaining,
		},
		Open:      true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) createOpen(ctx context.Context, rec models.MaintenanceRecord) (*models.MaintenanceRecord, error) {
	created, err := s.records.CreateOpenRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, notify.EventRecordOpened, created, created.CreatedAt)
	return created, nil
}

// CompleteRecord closes a record and makes it the baseline for the next interval.
// Completing an already completed record is a conflict.
func (s *Service) CompleteRecord(ctx context.Context, recordID string, c Completion) (*models.MaintenanceRecord, error) {
	rec, err := s.records.FindRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.vehicles.FindVehicleByID(ctx, rec.VehicleID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := NewLifecycle(rec).Complete(ctx, c, vehicle.CurrentMileage, now); err != nil {
		return nil, err
	}
	if err := s.records.CompleteRecord(ctx, *rec); err != nil {
		return nil, err
	}

	if serviced := *rec.MileageAtService; serviced > vehicle.CurrentMileage {
		if err := s.vehicles.UpdateMileage(ctx, rec.VehicleID, serviced); err != nil {
			s.log.WithField("vehicle_id", rec.VehicleID).WithError(err).Warn("Failed to advance odometer to service mileage")
		}
	}

	s.log.WithFields(logrus.Fields{
		"record_id":  recordID,
		"vehicle_id": rec.VehicleID,
		"rule_id":    rec.RuleID,
		"mileage":    *rec.MileageAtService,
	}).Info("Maintenance record completed")
	s.emit(ctx, notify.EventRecordCompleted, rec, now)
	return rec, nil
}

// ListRecords returns records matching filter. A driver filter resolves to that driver's vehicles.
func (s *Service) ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.MaintenanceRecord, error) {
	if filter.Status != nil && !models.IsValidRecordStatus(*filter.Status) {
		return nil, apperrors.Validation("unknown record status %q", *filter.Status)
	}
	if r := filter.DateRange; r != nil && !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return nil, apperrors.Validation("date range ends before it starts")
	}
	if filter.DriverID != "" {
		vehicles, err := s.vehicles.FindVehicles(ctx, models.VehicleFilter{DriverID: filter.DriverID})
		if err != nil {
			return nil, fmt.Errorf("list driver vehicles: %w", err)
		}
		if len(vehicles) == 0 {
			return []models.MaintenanceRecord{}, nil
		}
		filter.VehicleIDs = make([]string, 0, len(vehicles))
		for _, v := range vehicles {
			filter.VehicleIDs = append(filter.VehicleIDs, v.ID.Hex())
		}
	}
	return s.records.FindRecords(ctx, filter)
}

func (s *Service) CreateRule(ctx context.Context, rule models.MaintenanceRule) (*models.MaintenanceRule, error) {
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return s.rules.InsertRule(ctx, rule)
}

func (s *Service) GetRule(ctx context.Context, id string) (*models.MaintenanceRule, error) {
	return s.rules.FindRuleByID(ctx, id)
}

func (s *Service) ListRules(ctx context.Context, activeOnly bool) ([]models.MaintenanceRule, error) {
	return s.rules.FindRules(ctx, activeOnly)
}

// UpdateRule replaces a rule's definition. Deactivating keeps the rule and its history.
func (s *Service) UpdateRule(ctx context.Context, id string, rule models.MaintenanceRule) (*models.MaintenanceRule, error) {
	existing, err := s.rules.FindRuleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = s.clock.Now()
	if err := s.rules.UpdateRule(ctx, id, rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, id string) error {
	return s.rules.DeleteRule(ctx, id)
}

// RegisterVehicle adds a vehicle to the registry, defaulting its registration baseline to now.
func (s *Service) RegisterVehicle(ctx context.Context, v models.Vehicle) (*models.Vehicle, error) {
	now := s.clock.Now()
	if v.Type == "" {
		v.Type = "truck"
	}
	if v.Status == "" {
		v.Status = "active"
	}
	if v.RegistrationDate.IsZero() {
		v.RegistrationDate = now
	}
	if v.CurrentMileage == 0 {
		v.CurrentMileage = v.RegistrationMileage
	}
	if err := ValidateVehicle(v); err != nil {
		return nil, err
	}
	v.CreatedAt = now
	v.UpdatedAt = now
	return s.vehicles.InsertVehicle(ctx, v)
}

func (s *Service) ListVehicles(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, error) {
	vehicles, err := s.vehicles.FindVehicles(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(vehicles, func(i, j int) bool { return vehicles[i].Name < vehicles[j].Name })
	return vehicles, nil
}

// UpdateMileage records a new odometer reading. Odometers only move forward; the store
// applies the reading only when it is not below the stored odometer.
func (s *Service) UpdateMileage(ctx context.Context, vehicleID string, mileage int) (*models.Vehicle, error) {
	if mileage < 0 {
		return nil, apperrors.Validation("mileage must not be negative")
	}
	if err := s.vehicles.UpdateMileage(ctx, vehicleID, mileage); err != nil {
		return nil, err
	}
	return s.vehicles.FindVehicleByID(ctx, vehicleID)
}

// AuthorizeVehicle fails with a forbidden error unless the vehicle is assigned to driverID.
func (s *Service) AuthorizeVehicle(ctx context.Context, vehicleID, driverID string) error {
	vehicle, err := s.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if vehicle.DriverID == "" || vehicle.DriverID != driverID {
		return apperrors.Forbidden("vehicle %s is not assigned to you", vehicleID)
	}
	return nil
}

// AuthorizeRecord applies AuthorizeVehicle to the record's vehicle.
func (s *Service) AuthorizeRecord(ctx context.Context, recordID, driverID string) error {
	rec, err := s.records.FindRecordByID(ctx, recordID)
	if err != nil {
		return err
	}
	return s.AuthorizeVehicle(ctx, rec.VehicleID, driverID)
}

func (s *Service) emit(ctx context.Context, eventType string, rec *models.MaintenanceRecord, at time.Time) {
	event := notify.Event{
		Type:      eventType,
		RecordID:  rec.ID.Hex(),
		VehicleID: rec.VehicleID,
		RuleID:    rec.RuleID,
		Category:  rec.Category,
		Status:    string(rec.Status),
		At:        at,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithFields(logrus.Fields{
			"event":     eventType,
			"record_id": event.RecordID,
		}).WithError(err).Warn("Failed to publish maintenance event")
	}
}
