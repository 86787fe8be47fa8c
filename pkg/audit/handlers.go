package audit

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/httputil"
	"github.com/platinummonkey/rackbook/pkg/rbac"
)

// Handlers provides HTTP handlers for audit log API
type Handlers struct {
	service *Service
}

// NewHandlers creates new audit handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers audit log routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	logs := router.PathPrefix("/admin/logs").Subrouter()
	logs.Use(h.service.guard.RequirePermission(rbac.ViewAuditLogs))
	logs.HandleFunc("", h.listEntries).Methods("GET")
	logs.HandleFunc("/export", h.exportEntries).Methods("GET")
	logs.HandleFunc("/stats", h.getStats).Methods("GET")
	logs.HandleFunc("/{id}", h.getEntry).Methods("GET")
}

// listEntries handles GET /admin/logs
func (h *Handlers) listEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*EntryView{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
		"limit":   filter.normalize().Limit,
		"offset":  filter.Offset,
	})
}

// getEntry handles GET /admin/logs/{id}
func (h *Handlers) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, entry)
}

// exportEntries handles GET /admin/logs/export
func (h *Handlers) exportEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if r.URL.Query().Get("limit") == "" {
		filter.Limit = MaxLimit
	}

	format := ExportFormat(httputil.ParseQueryString(r, "format", string(ExportFormatJSON)))

	data, err := h.service.Export(r.Context(), filter, format)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	switch format {
	case ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.csv")
	case ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.json")
	}

	w.Write(data)
}

// getStats handles GET /admin/logs/stats
func (h *Handlers) getStats(w http.ResponseWriter, r *http.Request) {
	startTime, err := parseTime(r, "start_time")
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	endTime, err := parseTime(r, "end_time")
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), startTime, endTime)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

// parseFilter parses search filter from query parameters
func parseFilter(r *http.Request) (SearchFilter, error) {
	query := r.URL.Query()
	filter := SearchFilter{
		UserID: query.Get("user_id"),
		RackID: query.Get("rack_id"),
		ItemID: query.Get("item_id"),
	}

	var err error
	if filter.StartTime, err = parseTime(r, "start_time"); err != nil {
		return filter, err
	}
	if filter.EndTime, err = parseTime(r, "end_time"); err != nil {
		return filter, err
	}

	if actions := query.Get("actions"); actions != "" {
		for _, a := range strings.Split(actions, ",") {
			action := Action(strings.ToUpper(strings.TrimSpace(a)))
			if !action.Valid() {
				return filter, errs.Invalid("unknown audit action %q", a)
			}
			filter.Actions = append(filter.Actions, action)
		}
	}

	if filter.Limit, err = httputil.ParseQueryInt(r, "limit", DefaultLimit); err != nil {
		return filter, errs.Invalid("%s", err.Error())
	}
	if filter.Offset, err = httputil.ParseQueryInt(r, "offset", 0); err != nil {
		return filter, errs.Invalid("%s", err.Error())
	}

	return filter, nil
}

func parseTime(r *http.Request, key string) (*time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errs.Invalid("%s must be RFC3339", key)
	}
	return &t, nil
}
