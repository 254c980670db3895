package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/pkg/response"
)

// Router holds everything the HTTP surface needs.
type Router struct {
	Maintenance *MaintenanceHandler
	Rules       *RuleHandler
	Vehicles    *VehicleHandler
	Auth        *AuthHandler
	AuthMW      *middleware.AuthMiddleware
}

// Routes registers every endpoint on a method-aware mux. Authentication is applied by
// the caller around the returned handler; role checks are applied per route here.
func (rt *Router) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	admin := rt.AuthMW.RequireRole(models.RoleAdmin)
	can := rt.AuthMW.RequirePermission

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/auth/login", rt.Auth.Login)
	mux.HandleFunc("POST /api/auth/register", rt.Auth.Register)
	mux.HandleFunc("GET /api/auth/profile", rt.Auth.GetProfile)
	mux.Handle("POST /api/users", admin(http.HandlerFunc(rt.Auth.CreateUser)))

	viewMaintenance := can("view_maintenance")
	mux.Handle("GET /api/maintenance/alerts/pending", viewMaintenance(http.HandlerFunc(rt.Maintenance.PendingAlerts)))
	mux.Handle("GET /api/maintenance/alerts/overdue", viewMaintenance(http.HandlerFunc(rt.Maintenance.OverdueAlerts)))
	mux.Handle("GET /api/maintenance/summary", viewMaintenance(http.HandlerFunc(rt.Maintenance.Summary)))
	mux.Handle("GET /api/maintenance/records", viewMaintenance(http.HandlerFunc(rt.Maintenance.ListRecords)))
	mux.Handle("PATCH /api/maintenance/{id}/complete", can("complete_maintenance")(http.HandlerFunc(rt.Maintenance.Complete)))
	mux.Handle("POST /api/maintenance/records", admin(http.HandlerFunc(rt.Maintenance.CreateRecord)))
	mux.Handle("POST /api/maintenance/records/open-due", admin(http.HandlerFunc(rt.Maintenance.OpenDue)))

	mux.Handle("GET /api/maintenance/rules", viewMaintenance(http.HandlerFunc(rt.Rules.List)))
	mux.Handle("GET /api/maintenance/rules/{id}", viewMaintenance(http.HandlerFunc(rt.Rules.Get)))
	mux.Handle("POST /api/maintenance/rules", admin(http.HandlerFunc(rt.Rules.Create)))
	mux.Handle("PUT /api/maintenance/rules/{id}", admin(http.HandlerFunc(rt.Rules.Update)))
	mux.Handle("DELETE /api/maintenance/rules/{id}", admin(http.HandlerFunc(rt.Rules.Delete)))

	mux.Handle("GET /api/vehicles", can("view_vehicles")(http.HandlerFunc(rt.Vehicles.List)))
	mux.Handle("POST /api/vehicles", admin(http.HandlerFunc(rt.Vehicles.Register)))
	mux.Handle("PATCH /api/vehicles/{id}/mileage", can("update_mileage")(http.HandlerFunc(rt.Vehicles.UpdateMileage)))
	mux.Handle("GET /api/vehicles/{id}/maintenance", viewMaintenance(http.HandlerFunc(rt.Maintenance.VehicleMaintenance)))

	return mux
}
