package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestRouter(svc MaintenanceService) (http.Handler, *auth.Service) {
	authService := auth.NewService("router-secret", time.Hour)
	authMW := middleware.NewAuthMiddleware(authService)
	rt := &Router{
		Maintenance: NewMaintenanceHandler(svc),
		Rules:       NewRuleHandler(svc),
		Vehicles:    NewVehicleHandler(svc),
		Auth:        NewAuthHandler(authService, new(MockUserCollection)),
		AuthMW:      authMW,
	}
	return middleware.Chain(rt.Routes(), authMW.Authenticate), authService
}

func bearer(t *testing.T, authService *auth.Service, role models.Role) string {
	t.Helper()
	token, err := authService.GenerateToken(&models.User{ID: primitive.NewObjectID(), Username: string(role), Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(new(MockMaintenanceService))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_Authorization(t *testing.T) {
	svc := new(MockMaintenanceService)
	svc.On("OverdueAlerts", mock.Anything).Return([]maintenance.Alert{}, nil)
	svc.On("OpenDueRecords", mock.Anything).Return(&maintenance.OpenDueResult{}, nil)
	h, authService := newTestRouter(svc)

	tests := []struct {
		name   string
		method string
		path   string
		role   models.Role
		want   int
	}{
		{"no token", http.MethodGet, "/api/maintenance/alerts/overdue", "", http.StatusUnauthorized},
		{"driver reads alerts", http.MethodGet, "/api/maintenance/alerts/overdue", models.RoleDriver, http.StatusOK},
		{"driver cannot open records", http.MethodPost, "/api/maintenance/records/open-due", models.RoleDriver, http.StatusForbidden},
		{"admin opens records", http.MethodPost, "/api/maintenance/records/open-due", models.RoleAdmin, http.StatusOK},
		{"driver cannot delete rules", http.MethodDelete, "/api/maintenance/rules/abc", models.RoleDriver, http.StatusForbidden},
		{"driver cannot register vehicles", http.MethodPost, "/api/vehicles", models.RoleDriver, http.StatusForbidden},
		{"anonymous cannot create users", http.MethodPost, "/api/users", "", http.StatusUnauthorized},
		{"driver cannot create users", http.MethodPost, "/api/users", models.RoleDriver, http.StatusForbidden},
		{"wrong method", http.MethodDelete, "/api/maintenance/summary", models.RoleAdmin, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.role != "" {
				req.Header.Set("Authorization", bearer(t, authService, tt.role))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
