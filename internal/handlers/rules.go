package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/pkg/response"
)

// RuleHandler serves maintenance rule CRUD.
type RuleHandler struct {
	service MaintenanceService
}

func NewRuleHandler(service MaintenanceService) *RuleHandler {
	return &RuleHandler{service: service}
}

// List handles GET /api/maintenance/rules?active=true
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := parseBool(r.URL.Query().Get("active"))
	if err != nil {
		response.Error(w, err)
		return
	}
	rules, err := h.service.ListRules(r.Context(), activeOnly)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"rules": rules, "count": len(rules)})
}

func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.GetRule(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rule)
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rule models.MaintenanceRule
	if err := decodeJSON(r, &rule, false); err != nil {
		response.Error(w, err)
		return
	}
	created, err := h.service.CreateRule(r.Context(), rule)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

// Update replaces a rule; set is_active false to retire it while keeping its history.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var rule models.MaintenanceRule
	if err := decodeJSON(r, &rule, false); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.service.UpdateRule(r.Context(), r.PathValue("id"), rule)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRule(r.Context(), r.PathValue("id")); err != nil {
		response.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
