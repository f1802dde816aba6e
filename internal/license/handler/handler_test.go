package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate/internal/license"
	"tollgate/internal/platform/logger"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/httputil"
)

type stubService struct {
	got  license.IssueRequest
	resp *license.Issued
	err  error
}

func (s *stubService) Issue(_ context.Context, req license.IssueRequest) (*license.Issued, error) {
	s.got = req
	return s.resp, s.err
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, logger.Discard()).Register(r)
	return r
}

const thumbprint = "kPrK_qmxVWaYVA9wwBF6Iuo3vVzz7TxHCTwXBygrS4k"

func TestHandleIssue(t *testing.T) {
	id, err := domain.NewLicenseID()
	require.NoError(t, err)
	iat := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := &stubService{resp: &license.Issued{
		Token: "header.payload.sig",
		License: &license.License{
			ID: id, IssuerID: "iss", SubjectID: "crawler-7", PublisherID: "pub-news",
			SchemeID: "news-standard", Intents: []domain.Intent{domain.IntentView},
			Budget: 100, IssuedAt: iat, ExpiresAt: iat.Add(time.Hour), Thumbprint: thumbprint,
		},
	}}

	body := `{"subject_id":"crawler-7","publisher_id":"pub-news","scheme_id":"news-standard",
		"intents":["view"],"budget":100,"pop_thumbprint":"` + thumbprint + `","ttl_seconds":600}`
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/licenses", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp IssueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id.String(), resp.LicenseID)
	assert.Equal(t, "header.payload.sig", resp.Token)
	assert.Equal(t, []string{"view"}, resp.Intents)
	assert.Equal(t, 10*time.Minute, svc.got.TTL)
}

func TestHandleIssueValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"not json", `{`, http.StatusBadRequest, string(dErrors.CodeBadRequest)},
		{"unknown field", `{"subject":"x"}`, http.StatusBadRequest, string(dErrors.CodeBadRequest)},
		{"missing intents", `{"subject_id":"a","publisher_id":"p","scheme_id":"s","budget":1,"pop_thumbprint":"` + thumbprint + `"}`, http.StatusBadRequest, string(dErrors.CodeValidation)},
		{"unknown intent", `{"subject_id":"a","publisher_id":"p","scheme_id":"s","intents":["scrape"],"pop_thumbprint":"` + thumbprint + `"}`, http.StatusBadRequest, string(dErrors.CodeValidation)},
		{"no key binding", `{"subject_id":"a","publisher_id":"p","scheme_id":"s","intents":["view"]}`, http.StatusBadRequest, string(dErrors.CodeValidation)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(&stubService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/licenses", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)
			var resp httputil.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
		})
	}
}

func TestHandleIssueServiceError(t *testing.T) {
	svc := &stubService{err: dErrors.New(dErrors.CodeInvalidRequest, "intent train is not priced")}
	body := `{"subject_id":"a","publisher_id":"p","scheme_id":"s","intents":["train"],"pop_thumbprint":"` + thumbprint + `"}`
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/licenses", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_request", resp.Error)
	assert.Equal(t, "intent train is not priced", resp.ErrorDescription)
}
