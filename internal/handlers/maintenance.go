package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"github.com/ukydev/fleet-maintenance/pkg/response"
)

// MaintenanceService is the scheduling surface the HTTP layer calls.
type MaintenanceService interface {
	PendingAlerts(ctx context.Context) ([]maintenance.Alert, error)
	OverdueAlerts(ctx context.Context) ([]maintenance.Alert, error)
	Summary(ctx context.Context) (*maintenance.Summary, error)
	VehicleStatus(ctx context.Context, vehicleID string) ([]maintenance.Alert, error)
	OpenDueRecords(ctx context.Context) (*maintenance.OpenDueResult, error)
	CreatePendingRecord(ctx context.Context, vehicleID, ruleID string) (*models.MaintenanceRecord, error)
	ScheduleRecord(ctx context.Context, req maintenance.ScheduleRequest) (*models.MaintenanceRecord, error)
	CompleteRecord(ctx context.Context, id string, c maintenance.Completion) (*models.MaintenanceRecord, error)
	ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.MaintenanceRecord, error)

	CreateRule(ctx context.Context, rule models.MaintenanceRule) (*models.MaintenanceRule, error)
	GetRule(ctx context.Context, id string) (*models.MaintenanceRule, error)
	ListRules(ctx context.Context, activeOnly bool) ([]models.MaintenanceRule, error)
	UpdateRule(ctx context.Context, id string, rule models.MaintenanceRule) (*models.MaintenanceRule, error)
	DeleteRule(ctx context.Context, id string) error

	RegisterVehicle(ctx context.Context, v models.Vehicle) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, error)
	UpdateMileage(ctx context.Context, vehicleID string, mileage int) (*models.Vehicle, error)

	AuthorizeVehicle(ctx context.Context, vehicleID, driverID string) error
	AuthorizeRecord(ctx context.Context, recordID, driverID string) error
}

// MaintenanceHandler serves alerts, the dashboard summary and record lifecycle endpoints.
type MaintenanceHandler struct {
	service MaintenanceService
}

func NewMaintenanceHandler(service MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{service: service}
}

type alertsResponse struct {
	Alerts []maintenance.Alert `json:"alerts"`
	Count  int                 `json:"count"`
}

// PendingAlerts handles GET /api/maintenance/alerts/pending
func (h *MaintenanceHandler) PendingAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.PendingAlerts(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, alertsResponse{Alerts: alerts, Count: len(alerts)})
}

// OverdueAlerts handles GET /api/maintenance/alerts/overdue
func (h *MaintenanceHandler) OverdueAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.OverdueAlerts(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, alertsResponse{Alerts: alerts, Count: len(alerts)})
}

func (h *MaintenanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, summary)
}

// Complete handles PATCH /api/maintenance/{id}/complete. An empty body completes with
// the vehicle's current odometer and the current time.
func (h *MaintenanceHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var completion maintenance.Completion
	if err := decodeJSON(r, &completion, true); err != nil {
		response.Error(w, err)
		return
	}
	id := r.PathValue("id")
	if err := authorizeDriver(r, h.service.AuthorizeRecord, id); err != nil {
		response.Error(w, err)
		return
	}
	record, err := h.service.CompleteRecord(r.Context(), id, completion)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, record)
}

// OpenDue handles POST /api/maintenance/records/open-due
func (h *MaintenanceHandler) OpenDue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.OpenDueRecords(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

type createRecordRequest struct {
	VehicleID     string     `json:"vehicle_id"`
	RuleID        string     `json:"rule_id"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	Description   string     `json:"description,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// CreateRecord handles POST /api/maintenance/records. With a scheduled_date it books the
// work ahead; without one it opens a pending record for a pair that is already due.
func (h *MaintenanceHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := decodeJSON(r, &req, false); err != nil {
		response.Error(w, err)
		return
	}

	var (
		record *models.MaintenanceRecord
		err    error
	)
	if req.ScheduledDate != nil {
		record, err = h.service.ScheduleRecord(r.Context(), maintenance.ScheduleRequest{
			VehicleID:     req.VehicleID,
			RuleID:        req.RuleID,
			ScheduledDate: *req.ScheduledDate,
			Description:   req.Description,
			Notes:         req.Notes,
		})
	} else {
		if req.VehicleID == "" || req.RuleID == "" {
			response.Error(w, apperrors.Validation("vehicle_id and rule_id are required"))
			return
		}
		record, err = h.service.CreatePendingRecord(r.Context(), req.VehicleID, req.RuleID)
	}
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, record)
}

// ListRecords handles GET /api/maintenance/records?status=&vehicle_id=&driver_id=&from=&to=.
// Drivers only see records for their own vehicles.
func (h *MaintenanceHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRecordFilter(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok && claims.Role == models.RoleDriver {
		filter.DriverID = claims.UserID
	}

	records, err := h.service.ListRecords(r.Context(), filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"records": records, "count": len(records)})
}

func parseRecordFilter(r *http.Request) (models.RecordFilter, error) {
	q := r.URL.Query()
	filter := models.RecordFilter{
		VehicleID: q.Get("vehicle_id"),
		DriverID:  q.Get("driver_id"),
	}
	if s := q.Get("status"); s != "" {
		status := models.RecordStatus(s)
		filter.Status = &status
	}

	from, err := parseTime(q.Get("from"), "from")
	if err != nil {
		return filter, err
	}
	to, err := parseTime(q.Get("to"), "to")
	if err != nil {
		return filter, err
	}
	if !from.IsZero() || !to.IsZero() {
		filter.DateRange = &models.DateRange{Start: from, End: to}
	}
	return filter, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(value, name string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperrors.Validation("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", name)
}

// VehicleMaintenance handles GET /api/vehicles/{id}/maintenance
func (h *MaintenanceHandler) VehicleMaintenance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := authorizeDriver(r, h.service.AuthorizeVehicle, id); err != nil {
		response.Error(w, err)
		return
	}
	statuses, err := h.service.VehicleStatus(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, alertsResponse{Alerts: statuses, Count: len(statuses)})
}

// authorizeDriver runs check for driver callers so they only act on their own vehicles.
func authorizeDriver(r *http.Request, check func(ctx context.Context, id, driverID string) error, id string) error {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok || claims.Role != models.RoleDriver {
		return nil
	}
	return check(r.Context(), id, claims.UserID)
}

// decodeJSON decodes the request body into v. allowEmpty accepts an empty body.
func decodeJSON(r *http.Request, v interface{}, allowEmpty bool) error {
	if r.Body == nil {
		if allowEmpty {
			return nil
		}
		return apperrors.Validation("request body is required")
	}
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		if allowEmpty {
			return nil
		}
		return apperrors.Validation("request body is required")
	default:
		return apperrors.Validation("invalid JSON: %v", err)
	}
}

func parseBool(value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, apperrors.Validation("%q is not a boolean", value)
	}
	return b, nil
}
