// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, rack)
//	httputil.WriteCreated(w, item)
//	httputil.WriteServiceError(w, r, err)
//
// WriteServiceError maps the failure kinds from pkg/errs to status codes:
// authentication required 401, insufficient permission and self modification
// 403, not found 404, validation 400, anything else 500 (logged, message hidden).
//
// # Request Parsing
//
//	var req CreateRackRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//
// # Middleware
//
// RequestIDMiddleware assigns a request id and request logger; LoggingMiddleware
// writes one structured line per request.
package httputil
