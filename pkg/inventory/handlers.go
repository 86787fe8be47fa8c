package inventory

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/httputil"
	"github.com/platinummonkey/rackbook/pkg/rbac"
)

// Handlers provides HTTP handlers for racks, items and locations
type Handlers struct {
	service *Service
}

// NewHandlers creates new inventory handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers inventory routes. Writes are rejected before the
// body is read when the caller's role is too low.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	guard := h.service.pipeline.Guard()
	gated := func(p rbac.Permission, fn http.HandlerFunc) http.Handler {
		return guard.RequirePermission(p)(fn)
	}

	router.HandleFunc("/dashboard", h.dashboard).Methods("GET")

	router.HandleFunc("/racks", h.listRacks).Methods("GET")
	router.Handle("/racks", gated(rbac.CreateRack, h.createRack)).Methods("POST")
	router.HandleFunc("/racks/qr/{code}", h.getRackByQRCode).Methods("GET")
	router.HandleFunc("/racks/{id}", h.getRack).Methods("GET")
	router.Handle("/racks/{id}", gated(rbac.UpdateRack, h.updateRack)).Methods("PATCH")
	router.Handle("/racks/{id}", gated(rbac.DeleteRack, h.deleteRack)).Methods("DELETE")

	router.HandleFunc("/items", h.listItems).Methods("GET")
	router.Handle("/items", gated(rbac.CreateItem, h.createItem)).Methods("POST")
	router.Handle("/items/{id}", gated(rbac.UpdateItem, h.updateItem)).Methods("PATCH")
	router.Handle("/items/{id}", gated(rbac.DeleteItem, h.deleteItem)).Methods("DELETE")
	router.Handle("/items/{id}/toggle-removed", gated(rbac.ToggleItemRemoved, h.toggleItemRemoved)).Methods("POST")
	router.Handle("/items/{id}/move", gated(rbac.MoveItem, h.moveItem)).Methods("POST")

	router.HandleFunc("/locations", h.listLocations).Methods("GET")
	router.Handle("/locations", gated(rbac.CreateLocation, h.createLocation)).Methods("POST")
	router.Handle("/locations/{id}", gated(rbac.DeleteLocation, h.deleteLocation)).Methods("DELETE")
}

// dashboard handles GET /dashboard
func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, d)
}

// listRacks handles GET /racks
func (h *Handlers) listRacks(w http.ResponseWriter, r *http.Request) {
	racks, err := h.service.ListRacks(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, racks)
}

// createRack handles POST /racks
func (h *Handlers) createRack(w http.ResponseWriter, r *http.Request) {
	var in RackInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	rack, err := h.service.CreateRack(r.Context(), in)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, rack)
}

// getRack handles GET /racks/{id}
func (h *Handlers) getRack(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	rack, err := h.service.GetRack(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, rack)
}

// getRackByQRCode handles GET /racks/qr/{code}
func (h *Handlers) getRackByQRCode(w http.ResponseWriter, r *http.Request) {
	code, ok := httputil.ParsePathStringOrError(w, r, "code")
	if !ok {
		return
	}

	rack, err := h.service.GetRackByQRCode(r.Context(), code)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, rack)
}

// updateRack handles PATCH /racks/{id}
func (h *Handlers) updateRack(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var update RackUpdate
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}

	rack, err := h.service.UpdateRack(r.Context(), id, update)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, rack)
}

// deleteRack handles DELETE /racks/{id}
func (h *Handlers) deleteRack(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteRack(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listItems handles GET /items?q=&showRemoved=
func (h *Handlers) listItems(w http.ResponseWriter, r *http.Request) {
	showRemoved, err := httputil.ParseQueryBool(r, "showRemoved", false)
	if err != nil {
		httputil.WriteServiceError(w, r, errs.Invalid("%s", err.Error()))
		return
	}

	items, err := h.service.ListItems(r.Context(), ItemFilter{
		Query:       httputil.ParseQueryString(r, "q", ""),
		ShowRemoved: showRemoved,
	})
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, items)
}

// createItem handles POST /items
func (h *Handlers) createItem(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	item, err := h.service.CreateItem(r.Context(), in)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, item)
}

// updateItem handles PATCH /items/{id}
func (h *Handlers) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var update ItemUpdate
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}

	item, err := h.service.UpdateItem(r.Context(), id, update)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

// deleteItem handles DELETE /items/{id}
func (h *Handlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// toggleItemRemoved handles POST /items/{id}/toggle-removed
func (h *Handlers) toggleItemRemoved(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	item, err := h.service.ToggleItemRemoved(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

// moveItemRequest is the body of POST /items/{id}/move
type moveItemRequest struct {
	RackID string `json:"rackId"`
}

// moveItem handles POST /items/{id}/move
func (h *Handlers) moveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req moveItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	item, err := h.service.MoveItem(r.Context(), id, req.RackID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

// listLocations handles GET /locations
func (h *Handlers) listLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.ListLocations(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, locations)
}

type createLocationRequest struct {
	Name string `json:"name"`
}

// createLocation handles POST /locations
func (h *Handlers) createLocation(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	loc, err := h.service.CreateLocation(r.Context(), req.Name)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, loc)
}

// deleteLocation handles DELETE /locations/{id}
func (h *Handlers) deleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteLocation(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
