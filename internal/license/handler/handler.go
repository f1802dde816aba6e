package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tollgate/internal/license"
	"tollgate/pkg/platform/httputil"
	"tollgate/pkg/requestcontext"
)

// Service defines the issuance operation the handler needs.
type Service interface {
	Issue(ctx context.Context, req license.IssueRequest) (*license.Issued, error)
}

// Handler wires license endpoints to the issuer.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a license handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts license endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/licenses", h.HandleIssue)
}

// HandleIssue handles POST /v1/licenses.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	issued, err := h.service.Issue(ctx, req.toDomain())
	if err != nil {
		h.logger.WarnContext(ctx, "license issuance failed",
			"request_id", requestID,
			"subject_id", req.SubjectID,
			"publisher_id", req.PublisherID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "license request served",
		"request_id", requestID,
		"license_id", issued.License.ID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, fromIssued(issued))
}
