package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rackbook/pkg/contextkeys"
	"github.com/platinummonkey/rackbook/pkg/errs"
	"github.com/platinummonkey/rackbook/pkg/observability"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.ErrAuthenticationRequired, http.StatusUnauthorized},
		{errors.Wrap(errs.ErrInsufficientPermission, "delete rack"), http.StatusForbidden},
		{errors.Wrap(errs.ErrSelfModificationForbidden, "cannot delete your own account"), http.StatusForbidden},
		{errs.NotFound("item", "i1"), http.StatusNotFound},
		{errs.Invalid("name is required"), http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteServiceError(t *testing.T) {
	t.Run("known kind keeps message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/racks/r1", nil)

		WriteServiceError(rec, req, errors.Wrap(errs.ErrInsufficientPermission, "delete rack"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "delete rack: insufficient permissions", body.Error)
	})

	t.Run("unexpected error is hidden and logged", func(t *testing.T) {
		var logs bytes.Buffer
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/racks", nil)
		req = req.WithContext(observability.WithLogger(req.Context(), observability.NewLogger(observability.InfoLevel, &logs)))

		WriteServiceError(rec, req, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
		assert.Contains(t, logs.String(), "connection refused")
	})
}

func TestParseJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Shelf A-1"}`))
		require.NoError(t, ParseJSON(req, &p))
		assert.Equal(t, "Shelf A-1", p.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","role":"ADMIN"}`))
		assert.Error(t, ParseJSON(req, &p))
	})

	t.Run("writes 400", func(t *testing.T) {
		var p payload
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		assert.False(t, ParseJSONOrError(rec, req, &p))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestParsePathString(t *testing.T) {
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "r1"})
	id, err := ParsePathString(req, "id")
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	_, err = ParsePathString(req, "itemId")
	assert.Error(t, err)
}

func TestParseQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&showRemoved=true&q=cable&bad=x", nil)

	limit, err := ParseQueryInt(req, "limit", 100)
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	offset, err := ParseQueryInt(req, "offset", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, offset)

	_, err = ParseQueryInt(req, "bad", 0)
	assert.Error(t, err)

	show, err := ParseQueryBool(req, "showRemoved", false)
	require.NoError(t, err)
	assert.True(t, show)

	assert.Equal(t, "cable", ParseQueryString(req, "q", ""))
	assert.Equal(t, "none", ParseQueryString(req, "missing", "none"))
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(observability.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
	}))

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("keeps valid incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "6f1c2d1e-8a57-4a8b-9a55-0f1d2b3c4d5e")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "6f1c2d1e-8a57-4a8b-9a55-0f1d2b3c4d5e", seen)
	})

	t.Run("replaces garbage id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "<script>")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, "<script>", seen)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var logs bytes.Buffer
	handler := RequestIDMiddleware(observability.NewLogger(observability.InfoLevel, &logs))(
		LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/items", nil))

	assert.Contains(t, logs.String(), `"status":418`)
	assert.Contains(t, logs.String(), `"path":"/api/items"`)
}
