package users

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/rackbook/pkg/httputil"
	"github.com/platinummonkey/rackbook/pkg/rbac"
)

// Handlers provides HTTP handlers for user administration
type Handlers struct {
	service *Service
}

// NewHandlers creates new user handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers user administration routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	guard := h.service.pipeline.Guard()

	admin := router.PathPrefix("/admin/users").Subrouter()
	admin.Use(guard.RequirePermission(rbac.ListUsers))
	admin.HandleFunc("", h.listUsers).Methods("GET")
	admin.HandleFunc("/{id}", h.getUser).Methods("GET")
	admin.HandleFunc("/{id}/role", h.updateRole).Methods("PUT")
	admin.HandleFunc("/{id}", h.deleteUser).Methods("DELETE")
}

// listUsers handles GET /admin/users
func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// getUser handles GET /admin/users/{id}
func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// updateRole handles PUT /admin/users/{id}/role
func (h *Handlers) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req RoleUpdate
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.UpdateUserRole(r.Context(), id, req.Role)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// deleteUser handles DELETE /admin/users/{id}
func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
