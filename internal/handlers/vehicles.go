package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"github.com/ukydev/fleet-maintenance/pkg/response"
)

// VehicleHandler serves the vehicle registry and odometer updates.
type VehicleHandler struct {
	service MaintenanceService
}

func NewVehicleHandler(service MaintenanceService) *VehicleHandler {
	return &VehicleHandler{service: service}
}

// List handles GET /api/vehicles?driver_id=&status=. Drivers see only their own vehicles.
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.VehicleFilter{DriverID: q.Get("driver_id"), Status: q.Get("status")}
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok && claims.Role == models.RoleDriver {
		filter.DriverID = claims.UserID
	}

	vehicles, err := h.service.ListVehicles(r.Context(), filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"vehicles": vehicles, "count": len(vehicles)})
}

// Register handles POST /api/vehicles
func (h *VehicleHandler) Register(w http.ResponseWriter, r *http.Request) {
	var vehicle models.Vehicle
	if err := decodeJSON(r, &vehicle, false); err != nil {
		response.Error(w, err)
		return
	}
	created, err := h.service.RegisterVehicle(r.Context(), vehicle)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

type mileageRequest struct {
	Mileage *int `json:"mileage"`
}

// UpdateMileage handles PATCH /api/vehicles/{id}/mileage
func (h *VehicleHandler) UpdateMileage(w http.ResponseWriter, r *http.Request) {
	var req mileageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		response.Error(w, err)
		return
	}
	if req.Mileage == nil {
		response.Error(w, apperrors.Validation("mileage is required"))
		return
	}
	id := r.PathValue("id")
	if err := authorizeDriver(r, h.service.AuthorizeVehicle, id); err != nil {
		response.Error(w, err)
		return
	}
	vehicle, err := h.service.UpdateMileage(r.Context(), id, *req.Mileage)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, vehicle)
}
