// Package handler exposes batch usage submission over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tollgate/internal/usage"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/httputil"
	"tollgate/pkg/requestcontext"
)

// Service is the intake operation the handler needs.
type Service interface {
	Submit(ctx context.Context, reporter string, reports []usage.Report) (*usage.Result, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts usage endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/usage/{reporter}", h.HandleSubmit)
}

// RegisterReporter mounts the submission endpoint of a single party, so each
// side can be placed behind its own credential.
func (h *Handler) RegisterReporter(r chi.Router, reporter domain.Reporter) {
	r.Post("/v1/usage/"+string(reporter), func(w http.ResponseWriter, r *http.Request) {
		h.submit(w, r, string(reporter))
	})
}

// SubmitRequest is the JSON body of POST /v1/usage/{reporter}.
type SubmitRequest struct {
	Events []usage.Report `json:"events"`
}

// Validate checks the envelope only; events are validated one by one so a
// bad event does not reject its neighbours.
func (r *SubmitRequest) Validate() error {
	if len(r.Events) == 0 {
		return dErrors.New(dErrors.CodeValidation, "events: is required")
	}
	if len(r.Events) > usage.MaxBatchSize {
		return dErrors.Newf(dErrors.CodeValidation, "events: must be at most %d", usage.MaxBatchSize)
	}
	return nil
}

// SubmitResponse reports the accepted count and per-event errors.
type SubmitResponse struct {
	Accepted int                `json:"accepted"`
	Errors   []usage.EventError `json:"errors,omitempty"`
}

// HandleSubmit handles POST /v1/usage/{reporter}.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, chi.URLParam(r, "reporter"))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, reporter string) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Submit(ctx, reporter, req.Events)
	if err != nil {
		h.logger.WarnContext(ctx, "usage submission failed",
			"request_id", requestID,
			"reporter", reporter,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, SubmitResponse{Accepted: res.Accepted, Errors: res.Errors})
}
