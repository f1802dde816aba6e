// Package handler exposes reconciliation runs over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tollgate/internal/reconcile"
	"tollgate/internal/usage"
	"tollgate/pkg/domain"
	"tollgate/pkg/platform/httputil"
	"tollgate/pkg/platform/validation"
	"tollgate/pkg/requestcontext"
)

// Service runs a reconciliation.
type Service interface {
	Run(ctx context.Context, req reconcile.Request) (*reconcile.Report, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts reconciliation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/reconcile", h.HandleReconcile)
}

// RunRequest is the JSON body of POST /v1/reconcile.
type RunRequest struct {
	From      time.Time                  `json:"from" validate:"required"`
	To        time.Time                  `json:"to" validate:"required,gtfield=From"`
	LicenseID *domain.LicenseID          `json:"license_id,omitempty"`
	Budgets   map[domain.LicenseID]int64 `json:"budgets,omitempty" validate:"dive,min=0"`
}

// Validate implements httputil.Validatable.
func (r *RunRequest) Validate() error {
	return validation.Struct(r)
}

// Event is one side of a discrepancy.
type Event = usage.Report

type DiscrepancyResponse struct {
	LicenseID string `json:"license_id"`
	EventID   string `json:"event_id"`
	Cause     string `json:"cause"`
	Reporter  string `json:"reporter,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Enforcer  *Event `json:"enforcer,omitempty"`
	Consumer  *Event `json:"consumer,omitempty"`
}

type OverspendResponse struct {
	LicenseID string `json:"license_id"`
	Budget    int64  `json:"budget"`
	Spent     int64  `json:"spent"`
	Excess    int64  `json:"excess"`
}

type KeyResponse struct {
	LicenseID string `json:"license_id"`
	EventID   string `json:"event_id"`
}

// RunResponse is the report, in deterministic order.
type RunResponse struct {
	AsOf          time.Time             `json:"as_of"`
	Confirmed     int                   `json:"confirmed"`
	Pending       []KeyResponse         `json:"pending"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
	Overspends    []OverspendResponse   `json:"overspends"`
}

func toResponse(rep *reconcile.Report) RunResponse {
	resp := RunResponse{
		AsOf:          rep.AsOf,
		Confirmed:     rep.Confirmed,
		Pending:       make([]KeyResponse, 0, len(rep.Pending)),
		Discrepancies: make([]DiscrepancyResponse, 0, len(rep.Discrepancies)),
		Overspends:    make([]OverspendResponse, 0, len(rep.Overspends)),
	}
	for _, k := range rep.Pending {
		resp.Pending = append(resp.Pending, KeyResponse{LicenseID: k.LicenseID.String(), EventID: k.EventID.String()})
	}
	for _, d := range rep.Discrepancies {
		dr := DiscrepancyResponse{
			LicenseID: d.LicenseID.String(),
			EventID:   d.EventID.String(),
			Cause:     string(d.Cause),
			Reporter:  string(d.Reporter),
			Detail:    d.Detail,
		}
		if d.Enforcer != nil {
			r := usage.ReportFrom(*d.Enforcer)
			dr.Enforcer = &r
		}
		if d.Consumer != nil {
			r := usage.ReportFrom(*d.Consumer)
			dr.Consumer = &r
		}
		resp.Discrepancies = append(resp.Discrepancies, dr)
	}
	for _, o := range rep.Overspends {
		resp.Overspends = append(resp.Overspends, OverspendResponse{
			LicenseID: o.LicenseID.String(),
			Budget:    o.Budget,
			Spent:     o.Spent,
			Excess:    o.Excess,
		})
	}
	return resp
}

// HandleReconcile handles POST /v1/reconcile.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rep, err := h.service.Run(ctx, reconcile.Request{
		From:      req.From.UTC(),
		To:        req.To.UTC(),
		LicenseID: req.LicenseID,
		Budgets:   req.Budgets,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "reconciliation failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(rep))
}
