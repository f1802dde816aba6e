package enforcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tollgate/internal/enforcement/metrics"
	"tollgate/internal/ledger"
	"tollgate/internal/license"
	"tollgate/internal/manifest"
	"tollgate/internal/pop"
	"tollgate/internal/pricing"
	"tollgate/internal/ratelimit/bucket"
	"tollgate/internal/usage"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/audit"
	"tollgate/pkg/platform/sentinel"
	"tollgate/pkg/requestcontext"
)

const (
	defaultMaxTokenBytes = 8 << 10
	defaultPruneInterval = 10 * time.Second
	maxResourcePathBytes = 2048
)

// Engine makes per-request decisions from node-local state.
type Engine struct {
	licenses LicenseVerifier
	proofs   ProofVerifier
	catalog  Catalog
	ledger   Ledger

	limiter  RateLimiter
	fresh    Freshness
	cache    ResourceCache
	signer   ManifestSigner
	usage    UsageQueue
	auditor  audit.Emitter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	failover pricing.FailoverPolicy

	maxTokenBytes int
	pruneInterval time.Duration

	mu      sync.Mutex
	pending map[domain.ReservationID]pending
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithAuditor(a audit.Emitter) Option {
	return func(e *Engine) { e.auditor = a }
}

func WithRateLimiter(l RateLimiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithFreshness supplies the refresh state consulted by the degradation
// check. Without it the node never considers itself degraded.
func WithFreshness(f Freshness) Option {
	return func(e *Engine) { e.fresh = f }
}

func WithResourceCache(c ResourceCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithManifestSigner enables forensic manifests for delivered content.
func WithManifestSigner(s ManifestSigner) Option {
	return func(e *Engine) { e.signer = s }
}

func WithUsageQueue(q UsageQueue) Option {
	return func(e *Engine) { e.usage = q }
}

// WithDefaultFailover sets the policy used for publishers missing from the
// pricing catalog.
func WithDefaultFailover(p pricing.FailoverPolicy) Option {
	return func(e *Engine) { e.failover = p }
}

func WithMaxTokenBytes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTokenBytes = n
		}
	}
}

func WithPruneInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pruneInterval = d
		}
	}
}

// New wires an engine. The four collaborators are required.
func New(licenses LicenseVerifier, proofs ProofVerifier, catalog Catalog, l Ledger, opts ...Option) *Engine {
	e := &Engine{
		licenses:      licenses,
		proofs:        proofs,
		catalog:       catalog,
		ledger:        l,
		logger:        slog.Default(),
		tracer:        otel.Tracer("tollgate/enforcement"),
		failover:      pricing.FailoverPolicy{Mode: domain.FailoverDeny, GracePeriod: 5 * time.Minute},
		maxTokenBytes: defaultMaxTokenBytes,
		pruneInterval: defaultPruneInterval,
		pending:       make(map[domain.ReservationID]pending),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide evaluates one request. A denial is returned as a Deny decision with
// a nil error; a non-nil error means the node could not decide (for example
// the replay cache is down) and the request must not be served.
func (e *Engine) Decide(ctx context.Context, req Request) (Decision, error) {
	ctx, span := e.tracer.Start(ctx, "enforcement.Decide")
	defer span.End()
	start := time.Now()
	now := requestcontext.Now(ctx)

	d, lic, err := e.decide(ctx, req, now)
	e.metrics.ObserveDecideLatency(time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.metrics.IncrementDecision("error", "")
		e.logger.ErrorContext(ctx, "enforcement decision failed",
			"path", req.Path,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}

	switch d := d.(type) {
	case Allow:
		span.SetAttributes(
			attribute.String("decision", "allow"),
			attribute.String("license.id", d.LicenseID.String()),
			attribute.Int64("cost", d.Cost),
		)
		e.metrics.IncrementDecision("allow", "")
	case Deny:
		span.SetAttributes(
			attribute.String("decision", "deny"),
			attribute.String("deny.reason", d.Reason.String()),
		)
		e.metrics.IncrementDecision("deny", d.Reason.String())
		e.emitDenied(ctx, req, lic, d, now)
	}
	return d, nil
}

func (e *Engine) decide(ctx context.Context, req Request, now time.Time) (Decision, *license.License, error) {
	intent, deny := e.parse(req)
	if deny != nil {
		return *deny, nil, nil
	}

	lic, err := e.licenses.Verify(ctx, req.LicenseToken, now)
	if err != nil {
		return denyOrError(err, nil)
	}

	target := pop.Target{Method: req.Method, Scheme: req.Scheme, Host: req.Host, Path: req.Path}
	if _, err := e.proofs.Verify(ctx, req.ProofToken, lic.Thumbprint, target, now); err != nil {
		return denyOrError(err, lic)
	}

	scheme, err := e.catalog.Scheme(lic.SchemeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrUnavailable) {
			return Deny{
				Reason: domain.ReasonIssuerUnreachableDegraded,
				Detail: fmt.Sprintf("pricing scheme %q unavailable", lic.SchemeID),
			}, lic, nil
		}
		return nil, lic, err
	}
	if scheme.PublisherID != lic.PublisherID {
		return Deny{Reason: domain.ReasonIntentNotGranted, Detail: "scheme not offered by the license's publisher"}, lic, nil
	}
	if !lic.Grants(intent) {
		return Deny{Reason: domain.ReasonIntentNotGranted, Detail: fmt.Sprintf("intent %s not granted", intent)}, lic, nil
	}
	price, ok := scheme.Price(intent)
	if !ok {
		return Deny{Reason: domain.ReasonIntentNotGranted, Detail: fmt.Sprintf("intent %s not priced", intent)}, lic, nil
	}
	if !price.PathAllowed(req.Path) {
		return Deny{Reason: domain.ReasonPathRestricted, Detail: fmt.Sprintf("%s not allowed for %s", req.Path, intent)}, lic, nil
	}

	degraded, deny := e.checkDegraded(ctx, lic.PublisherID, req.Path, now)
	if deny != nil {
		return *deny, lic, nil
	}

	charged, deny := e.checkRate(ctx, lic.ID, intent, price.RateLimit, now)
	if deny != nil {
		return *deny, lic, nil
	}

	res, err := e.ledger.Reserve(ctx, ledger.Account{
		LicenseID: lic.ID,
		Budget:    lic.Budget,
		ExpiresAt: lic.ExpiresAt,
	}, price.Cost)
	if err != nil {
		// Only the ledger keeps state for a budget denial.
		if charged {
			e.refundRate(ctx, lic.ID, intent)
		}
		return denyOrError(err, lic)
	}

	e.mu.Lock()
	e.pending[res.ID] = pending{
		licenseID:   lic.ID,
		publisherID: lic.PublisherID,
		intent:      intent,
		path:        req.Path,
		method:      scheme.Method,
		requestedAt: now,
		expiresAt:   res.ExpiresAt,
	}
	e.mu.Unlock()

	return Allow{
		Reservation: *res,
		Cost:        price.Cost,
		Method:      scheme.Method,
		LicenseID:   lic.ID,
		PublisherID: lic.PublisherID,
		Intent:      intent,
		Degraded:    degraded,
	}, lic, nil
}

func (e *Engine) parse(req Request) (domain.Intent, *Deny) {
	malformed := func(detail string) *Deny {
		return &Deny{Reason: domain.ReasonMalformedInput, Detail: detail}
	}
	switch {
	case strings.TrimSpace(req.LicenseToken) == "":
		return "", malformed("license token missing")
	case strings.TrimSpace(req.ProofToken) == "":
		return "", malformed("proof missing")
	case len(req.LicenseToken) > e.maxTokenBytes:
		return "", malformed("license token too large")
	case len(req.ProofToken) > e.maxTokenBytes:
		return "", malformed("proof too large")
	case req.Method == "":
		return "", malformed("method missing")
	case req.Path == "" || len(req.Path) > maxResourcePathBytes:
		return "", malformed("resource path missing or too long")
	}
	intent, err := domain.ParseIntent(req.Intent)
	if err != nil {
		return "", malformed(err.Error())
	}
	return intent, nil
}

// checkDegraded applies the publisher's failover policy when keys or pricing
// have not refreshed within its grace period.
func (e *Engine) checkDegraded(ctx context.Context, publisher domain.PublisherID, resourcePath string, now time.Time) (bool, *Deny) {
	if e.fresh == nil {
		return false, nil
	}
	policy := e.failover
	if p, err := e.catalog.Publisher(publisher); err == nil {
		policy = p.Failover
	}
	if !e.fresh.Stale(now, policy.GracePeriod) {
		return false, nil
	}

	deny := &Deny{
		Reason: domain.ReasonIssuerUnreachableDegraded,
		Detail: fmt.Sprintf("issuer unreachable beyond %s grace, failover %s", policy.GracePeriod, policy.Mode),
	}
	switch policy.Mode {
	case domain.FailoverAllow:
		e.metrics.IncrementDegraded(string(policy.Mode), "allow")
		return true, nil
	case domain.FailoverCacheOnly:
		if e.cache != nil {
			cached, err := e.cache.Contains(ctx, publisher, resourcePath)
			if err != nil {
				e.logger.WarnContext(ctx, "resource cache lookup failed", "path", resourcePath, "error", err)
			}
			if cached {
				e.metrics.IncrementDegraded(string(policy.Mode), "allow")
				return true, nil
			}
		}
		deny.Detail = "issuer unreachable and resource not cached"
	}
	e.metrics.IncrementDegraded(string(policy.Mode), "deny")
	return true, deny
}

// checkRate fails open on limiter errors. charged reports whether a slot
// was taken and must be refunded if the request is refused later.
func (e *Engine) checkRate(ctx context.Context, licenseID domain.LicenseID, intent domain.Intent, rl *pricing.RateLimit, now time.Time) (charged bool, deny *Deny) {
	if e.limiter == nil || rl == nil || rl.Requests <= 0 {
		return false, nil
	}
	res, err := e.limiter.AllowN(ctx, bucket.Key(licenseID.String(), intent.String()), 1, rl.Requests, rl.Window, now)
	if err != nil {
		e.logger.WarnContext(ctx, "rate limiter unavailable, admitting", "license_id", licenseID.String(), "error", err)
		return false, nil
	}
	if !res.Allowed {
		return false, &Deny{
			Reason: domain.ReasonRateLimited,
			Detail: fmt.Sprintf("limit %d per %s, resets %s", res.Limit, rl.Window, res.ResetAt.UTC().Format(time.RFC3339)),
		}
	}
	return true, nil
}

func (e *Engine) refundRate(ctx context.Context, licenseID domain.LicenseID, intent domain.Intent) {
	if err := e.limiter.RefundN(ctx, bucket.Key(licenseID.String(), intent.String()), 1); err != nil {
		e.logger.WarnContext(ctx, "rate limit refund failed", "license_id", licenseID.String(), "error", err)
	}
}

func denyOrError(err error, lic *license.License) (Decision, *license.License, error) {
	if reason, ok := domain.DenyReasonFromError(err); ok {
		return Deny{Reason: reason, Detail: err.Error()}, lic, nil
	}
	return nil, lic, err
}

func (e *Engine) emitDenied(ctx context.Context, req Request, lic *license.License, d Deny, now time.Time) {
	if e.auditor == nil {
		return
	}
	action := audit.EventDecisionDenied
	if d.Reason == domain.ReasonProofReplayed {
		action = audit.EventProofReplayed
	}
	ev := audit.Event{
		Action:    string(action),
		Timestamp: now,
		Decision:  "deny",
		Reason:    d.Reason.String(),
		Detail:    fmt.Sprintf("%s %s: %s", req.Method, req.Path, d.Detail),
		RequestID: requestcontext.RequestID(ctx),
		NodeID:    requestcontext.NodeID(ctx),
	}
	if lic != nil {
		ev.LicenseID = lic.ID.String()
		ev.Subject = string(lic.SubjectID)
		ev.Publisher = string(lic.PublisherID)
	}
	if err := e.auditor.Emit(ctx, ev); err != nil {
		e.logger.WarnContext(ctx, "failed to emit denial audit event", "reason", d.Reason.String(), "error", err)
	}
}

// Complete settles an allowed request. Completing the same reservation twice
// with the same outcome returns the original settlement without side effects.
func (e *Engine) Complete(ctx context.Context, c Completion) (*Completed, error) {
	ctx, span := e.tracer.Start(ctx, "enforcement.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("reservation.id", c.ReservationID.String()),
		attribute.String("outcome", string(c.Outcome)),
	)

	out, err := e.complete(ctx, c)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.metrics.IncrementCompletion("error")
		return nil, err
	}
	return out, nil
}

func (e *Engine) complete(ctx context.Context, c Completion) (*Completed, error) {
	if _, ok := ParseOutcome(string(c.Outcome)); !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unsupported outcome %q", c.Outcome)
	}
	now := requestcontext.Now(ctx)

	e.mu.Lock()
	p, known := e.pending[c.ReservationID]
	e.mu.Unlock()

	if c.Outcome == OutcomeDelivered && known && p.method.ToolRequired() && !c.ToolInvoked {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "delivery requires the transformation tool")
	}

	var (
		s   *ledger.Settlement
		err error
	)
	if c.Outcome == OutcomeDelivered {
		s, err = e.ledger.Commit(ctx, c.ReservationID)
	} else {
		s, err = e.ledger.Release(ctx, c.ReservationID)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrExpired) && known {
			e.forget(c.ReservationID)
			e.report(ctx, p, c.ReservationID, false, c.ToolInvoked, 0, 0, 0, now)
			e.metrics.IncrementCompletion("expired")
		}
		return nil, translateSettleError(err)
	}
	if s.Repeated {
		return &Completed{Reservation: s.Reservation}, nil
	}

	e.forget(c.ReservationID)
	e.metrics.IncrementCompletion(string(c.Outcome))
	if !known {
		e.logger.WarnContext(ctx, "settled reservation with no pending request", "reservation_id", c.ReservationID.String())
		return &Completed{Reservation: s.Reservation}, nil
	}

	delivered := c.Outcome == OutcomeDelivered
	var cost int64
	if delivered {
		cost = s.Reservation.Amount
	}
	e.report(ctx, p, c.ReservationID, delivered, c.ToolInvoked, s.Before, s.After, cost, now)

	out := &Completed{Reservation: s.Reservation}
	if !delivered {
		return out, nil
	}
	if e.cache != nil {
		if err := e.cache.Mark(ctx, p.publisherID, p.path); err != nil {
			e.logger.WarnContext(ctx, "failed to index cached resource", "path", p.path, "error", err)
		}
	}
	if e.signer != nil && c.ContentDigest != "" {
		licenseID := p.licenseID
		signed, err := e.signer.Sign(ctx, manifest.Request{
			PublisherID:    string(p.publisherID),
			LicenseID:      &licenseID,
			ResourceID:     p.path,
			ContentType:    c.ContentType,
			Digest:         c.ContentDigest,
			Preview:        c.Preview,
			IssuedAt:       now,
			TransformModel: c.TransformModel,
		})
		if err != nil {
			e.metrics.IncrementManifestFailure()
			e.logger.ErrorContext(ctx, "manifest signing failed, delivering without manifest",
				"reservation_id", c.ReservationID.String(),
				"error", err,
			)
		} else {
			out.Manifest = signed
		}
	}
	return out, nil
}

func translateSettleError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "reservation not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, "reservation already settled differently")
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.Wrap(err, dErrors.CodeConflict, "reservation expired before commit")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to settle reservation")
}

func (e *Engine) forget(id domain.ReservationID) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}

func (e *Engine) report(ctx context.Context, p pending, id domain.ReservationID, success, tool bool, before, after, cost int64, now time.Time) {
	if e.usage == nil {
		return
	}
	ok := e.usage.Enqueue(usage.Event{
		Reporter:     domain.ReporterEnforcer,
		LicenseID:    p.licenseID,
		EventID:      id,
		Intent:       p.intent,
		ToolInvoked:  tool,
		Success:      success,
		BudgetBefore: before,
		BudgetAfter:  after,
		Cost:         cost,
		ResourcePath: p.path,
		RequestedAt:  p.requestedAt,
		ResolvedAt:   now,
	})
	if !ok {
		e.metrics.IncrementUsageDropped()
		e.logger.WarnContext(ctx, "usage queue full, event dropped", "reservation_id", id.String())
	}
}

// Prune forgets requests whose reservation expired without completion and
// reports them as failed. The ledger sweeper returns their budget.
func (e *Engine) Prune(ctx context.Context, now time.Time) int {
	var abandoned []domain.ReservationID
	var entries []pending
	e.mu.Lock()
	for id, p := range e.pending {
		if !now.Before(p.expiresAt) {
			abandoned = append(abandoned, id)
			entries = append(entries, p)
			delete(e.pending, id)
		}
	}
	e.mu.Unlock()

	for i, id := range abandoned {
		e.report(ctx, entries[i], id, false, false, 0, 0, 0, now)
		e.metrics.IncrementCompletion(string(OutcomeAbandoned))
	}
	if len(abandoned) > 0 {
		e.logger.InfoContext(ctx, "pruned abandoned requests", "count", len(abandoned))
	}
	return len(abandoned)
}

// Pending reports how many allowed requests await completion.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Run prunes abandoned requests until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			e.Prune(ctx, t.UTC())
		}
	}
}
