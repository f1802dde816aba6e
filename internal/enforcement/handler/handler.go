// Package handler exposes the enforcement engine to the edge proxy over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tollgate/internal/enforcement"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/httputil"
	"tollgate/pkg/requestcontext"
)

// Service is the engine surface the handler needs.
type Service interface {
	Decide(ctx context.Context, req enforcement.Request) (enforcement.Decision, error)
	Complete(ctx context.Context, c enforcement.Completion) (*enforcement.Completed, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts enforcement endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/enforce", h.HandleEnforce)
	r.Post("/v1/reservations/{id}/commit", h.HandleCommit)
	r.Post("/v1/reservations/{id}/release", h.HandleRelease)
}

// HandleEnforce handles POST /v1/enforce. Denials are written with the
// status their reason maps to; a failure to decide is a 5xx.
func (h *Handler) HandleEnforce(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EnforceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	decision, err := h.service.Decide(ctx, req.toDomain())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	switch d := decision.(type) {
	case enforcement.Allow:
		httputil.WriteJSON(w, http.StatusOK, AllowResponse{
			Decision:      "allow",
			ReservationID: d.Reservation.ID.String(),
			LicenseID:     d.LicenseID.String(),
			Intent:        d.Intent.String(),
			Cost:          d.Cost,
			Method:        string(d.Method),
			ToolRequired:  d.ToolRequired(),
			Degraded:      d.Degraded,
			ExpiresAt:     d.Reservation.ExpiresAt,
		})
	case enforcement.Deny:
		h.logger.InfoContext(ctx, "request denied",
			"request_id", requestID,
			"reason", d.Reason.String(),
			"path", req.Path,
		)
		httputil.WriteJSON(w, httputil.StatusFor(dErrors.Code(d.Reason)), DenyResponse{
			Decision: "deny",
			Reason:   d.Reason.String(),
			Detail:   d.Detail,
		})
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "unknown decision"))
	}
}

// HandleCommit handles POST /v1/reservations/{id}/commit.
func (h *Handler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseReservationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CommitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	h.complete(w, r, enforcement.Completion{
		ReservationID:  id,
		Outcome:        enforcement.OutcomeDelivered,
		ToolInvoked:    req.ToolInvoked,
		ContentDigest:  req.ContentDigest,
		ContentType:    req.ContentType,
		Preview:        req.Preview,
		TransformModel: req.TransformModel,
	})
}

// HandleRelease handles POST /v1/reservations/{id}/release.
func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseReservationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReleaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	h.complete(w, r, enforcement.Completion{
		ReservationID: id,
		Outcome:       enforcement.Outcome(req.Outcome),
	})
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request, c enforcement.Completion) {
	ctx := r.Context()
	out, err := h.service.Complete(ctx, c)
	if err != nil {
		h.logger.WarnContext(ctx, "completion failed",
			"request_id", requestcontext.RequestID(ctx),
			"reservation_id", c.ReservationID.String(),
			"outcome", string(c.Outcome),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, completionResponse(out))
}
