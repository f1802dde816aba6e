package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate/internal/platform/logger"
	"tollgate/internal/usage"
	"tollgate/internal/usage/store"
	"tollgate/pkg/platform/httputil"
)

const event = `{"license_id":"0190d5c8-1111-7000-8000-000000000001","event_id":"0190d5c8-2222-7000-8000-000000000001",
	"intent":"view","success":true,"budget_before":100,"budget_after":70,"cost":30,"resource_path":"/article/1",
	"requested_at":"2026-05-01T10:00:00Z","resolved_at":"2026-05-01T10:00:01Z"}`

func newRouter(st *store.InMemory) http.Handler {
	r := chi.NewRouter()
	New(usage.NewIntake(st, usage.WithLogger(logger.Discard())), logger.Discard()).Register(r)
	return r
}

func TestHandleSubmit(t *testing.T) {
	st := store.NewInMemory()
	bad := `{"license_id":"nope","event_id":"0190d5c8-2222-7000-8000-000000000002","intent":"scrape",
		"cost":-1,"resource_path":"/x","requested_at":"2026-05-01T10:00:00Z","resolved_at":"2026-05-01T09:00:00Z"}`
	body := `{"events":[` + event + `,` + bad + `,` + event + `]}`

	rec := httptest.NewRecorder()
	newRouter(st).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/usage/consumer", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Accepted)
	fields := map[string]bool{}
	for _, e := range resp.Errors {
		assert.Equal(t, 1, e.Index)
		fields[e.Field] = true
	}
	assert.True(t, fields["license_id"])
	assert.True(t, fields["intent"])
	assert.True(t, fields["cost"])
	assert.True(t, fields["resolved_at"])
	assert.Equal(t, 1, st.Len(), "identical redelivery stored once")
}

func TestHandleSubmitRejects(t *testing.T) {
	tests := []struct {
		name     string
		reporter string
		body     string
		code     string
	}{
		{"unknown reporter", "auditor", `{"events":[` + event + `]}`, "invalid_input"},
		{"empty batch", "consumer", `{"events":[]}`, "validation_error"},
		{"not json", "consumer", `[`, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(store.NewInMemory()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/usage/"+tt.reporter, strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp httputil.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
		})
	}
}

func TestHandleSubmitReporterMismatch(t *testing.T) {
	st := store.NewInMemory()
	mismatched := strings.Replace(event, `{"license_id"`, `{"reporter":"enforcer","license_id"`, 1)
	rec := httptest.NewRecorder()
	newRouter(st).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/usage/consumer",
		strings.NewReader(`{"events":[`+mismatched+`]}`)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Accepted)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "does not match")
}
