// Package handler serves signed forensic manifests.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tollgate/internal/manifest"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/httputil"
	"tollgate/pkg/platform/sentinel"
	"tollgate/pkg/requestcontext"
)

// Store is the lookup the handler needs.
type Store interface {
	FindByID(ctx context.Context, id domain.ManifestID) (*manifest.Signed, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts manifest endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/manifests/{id}", h.HandleGet)
}

// Response is the manifest as served to auditors.
type Response struct {
	ID             string     `json:"id"`
	PublisherID    string     `json:"publisher_id"`
	LicenseID      *string    `json:"license_id"`
	ResourceID     string     `json:"resource_id"`
	ContentType    string     `json:"content_type"`
	Digest         string     `json:"digest"`
	Preview        bool       `json:"preview"`
	IssuedAt       time.Time  `json:"issued_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	SignerKID      string     `json:"signer_kid,omitempty"`
	TransformModel string     `json:"transform_model,omitempty"`
	Token          string     `json:"token"`
}

// HandleGet handles GET /v1/manifests/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseManifestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	signed, err := h.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "manifest not found"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to load manifest",
			"request_id", requestcontext.RequestID(ctx),
			"manifest_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(signed))
}

func toResponse(s *manifest.Signed) Response {
	m := s.Manifest
	resp := Response{
		ID:             m.ID.String(),
		PublisherID:    string(m.PublisherID),
		ResourceID:     m.ResourceID,
		ContentType:    string(m.ContentType),
		Digest:         m.Digest,
		Preview:        m.Preview,
		IssuedAt:       m.IssuedAt,
		ExpiresAt:      m.ExpiresAt,
		SignerKID:      m.SignerKID,
		TransformModel: m.TransformModel,
		Token:          s.Token,
	}
	if m.LicenseID != nil {
		lic := m.LicenseID.String()
		resp.LicenseID = &lic
	}
	return resp
}
