package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	jwttoken "tollgate/internal/jwt_token"
	"tollgate/internal/keys"
	"tollgate/internal/pricing"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/audit"
	"tollgate/pkg/platform/sentinel"
	"tollgate/pkg/requestcontext"
)

const (
	maxMetadataEntries  = 32
	maxMetadataKeyLen   = 64
	maxMetadataValueLen = 256
)

// SigningKeys yields the active issuer key.
type SigningKeys interface {
	Active(kind keys.Kind) (*keys.SigningKey, error)
}

// SchemeResolver looks up the pricing scheme a license references.
type SchemeResolver interface {
	Scheme(id domain.SchemeID) (*pricing.Scheme, error)
}

// KeyRegistrar records a consumer's PoP key so edge nodes can resolve it by
// thumbprint.
type KeyRegistrar interface {
	Register(ctx context.Context, k *keys.TrustedKey) error
}

// IssueRequest carries everything a license is minted from. Thumbprint and
// ConsumerKey may both be given; they must then agree.
type IssueRequest struct {
	SubjectID   string
	PublisherID string
	SchemeID    string
	Intents     []string
	Budget      int64
	Thumbprint  string
	ConsumerKey *keys.JWK
	Metadata    map[string]string
	// TTL defaults to the service default and is capped at the maximum.
	TTL time.Duration
}

// Service is the issuing authority.
type Service struct {
	issuerID   domain.IssuerID
	signing    SigningKeys
	schemes    SchemeResolver
	registrar  KeyRegistrar
	auditor    audit.Emitter
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	defaultTTL time.Duration
	maxTTL     time.Duration
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Service) { s.auditor = a }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithKeyRegistrar(r KeyRegistrar) Option {
	return func(s *Service) { s.registrar = r }
}

// WithTTL sets the default and maximum license lifetime.
func WithTTL(defaultTTL, maxTTL time.Duration) Option {
	return func(s *Service) {
		s.defaultTTL = defaultTTL
		s.maxTTL = maxTTL
	}
}

// NewService constructs the issuer.
func NewService(issuerID domain.IssuerID, signing SigningKeys, schemes SchemeResolver, opts ...Option) *Service {
	s := &Service{
		issuerID:   issuerID,
		signing:    signing,
		schemes:    schemes,
		logger:     slog.Default(),
		tracer:     otel.Tracer("tollgate/license"),
		defaultTTL: time.Hour,
		maxTTL:     24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue validates the request, assigns an id and signs the license. Every
// failure is terminal and reported as CodeInvalidRequest, except a missing
// signing key which is internal.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	ctx, span := s.tracer.Start(ctx, "license.Issue")
	defer span.End()

	lic, consumerKey, err := s.build(ctx, req)
	if err != nil {
		s.metrics.IncRejected()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("license.id", lic.ID.String()),
		attribute.String("license.publisher", string(lic.PublisherID)),
	)

	key, err := s.signing.Active(keys.KindIssuer)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issuer signing key unavailable")
	}
	token, err := jwttoken.Sign(key, jwttoken.TypeLicense, claimsFor(lic))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign license")
	}

	if consumerKey != nil && s.registrar != nil {
		if err := s.registrar.Register(ctx, consumerKey); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register consumer key")
		}
	}

	s.metrics.IncIssued(lic.PublisherID)
	s.logger.InfoContext(ctx, "license issued",
		"license_id", lic.ID.String(),
		"subject_id", string(lic.SubjectID),
		"publisher_id", string(lic.PublisherID),
		"budget", lic.Budget,
		"expires_at", lic.ExpiresAt,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emitAudit(ctx, lic)
	return &Issued{License: lic, Token: token}, nil
}

func (s *Service) build(ctx context.Context, req IssueRequest) (*License, *keys.TrustedKey, error) {
	subject, err := domain.ParseSubjectID(req.SubjectID)
	if err != nil {
		return nil, nil, invalid(err)
	}
	publisher, err := domain.ParsePublisherID(req.PublisherID)
	if err != nil {
		return nil, nil, invalid(err)
	}
	schemeID, err := domain.ParseSchemeID(req.SchemeID)
	if err != nil {
		return nil, nil, invalid(err)
	}
	if len(req.Intents) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvalidRequest, "at least one intent is required")
	}
	intents, err := domain.ParseIntents(req.Intents)
	if err != nil {
		return nil, nil, invalid(err)
	}
	if req.Budget < 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvalidRequest, "budget must not be negative")
	}
	if err := validateMetadata(req.Metadata); err != nil {
		return nil, nil, err
	}

	scheme, err := s.schemes.Scheme(schemeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.Newf(dErrors.CodeInvalidRequest, "unknown pricing scheme %s", schemeID)
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "pricing catalog unavailable")
	}
	if scheme.PublisherID != publisher {
		return nil, nil, dErrors.Newf(dErrors.CodeInvalidRequest, "scheme %s does not belong to publisher %s", schemeID, publisher)
	}
	for _, in := range intents {
		if _, ok := scheme.Price(in); !ok {
			return nil, nil, dErrors.Newf(dErrors.CodeInvalidRequest, "intent %s is not priced in scheme %s", in, schemeID)
		}
	}

	thumbprint, consumerKey, err := resolveBinding(req, subject)
	if err != nil {
		return nil, nil, err
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	if ttl < time.Second {
		return nil, nil, dErrors.New(dErrors.CodeInvalidRequest, "ttl must be at least one second")
	}

	id, err := domain.NewLicenseID()
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate license id")
	}
	now := truncate(requestcontext.Now(ctx))
	lic := &License{
		ID:          id,
		IssuerID:    s.issuerID,
		SubjectID:   subject,
		PublisherID: publisher,
		SchemeID:    schemeID,
		Intents:     intents,
		Budget:      req.Budget,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl.Truncate(time.Second)),
		Thumbprint:  thumbprint,
		Metadata:    req.Metadata,
	}
	if consumerKey != nil {
		consumerKey.NotAfter = lic.ExpiresAt
	}
	return lic, consumerKey, nil
}

func resolveBinding(req IssueRequest, subject domain.SubjectID) (string, *keys.TrustedKey, error) {
	if req.ConsumerKey == nil {
		if !keys.ValidThumbprint(req.Thumbprint) {
			return "", nil, dErrors.New(dErrors.CodeInvalidRequest, "thumbprint must be a base64url SHA-256 JWK thumbprint")
		}
		return req.Thumbprint, nil, nil
	}
	pub, err := req.ConsumerKey.PublicKey()
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "consumer key is not a supported JWK")
	}
	tk, err := keys.NewTrustedKey("", keys.KindConsumer, string(subject), pub, time.Time{})
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "consumer key is not a supported JWK")
	}
	if req.Thumbprint != "" && req.Thumbprint != tk.Thumbprint {
		return "", nil, dErrors.New(dErrors.CodeInvalidRequest, "thumbprint does not match consumer key")
	}
	return tk.Thumbprint, tk, nil
}

func validateMetadata(meta map[string]string) error {
	if len(meta) > maxMetadataEntries {
		return dErrors.Newf(dErrors.CodeInvalidRequest, "metadata is limited to %d entries", maxMetadataEntries)
	}
	for k, v := range meta {
		if k == "" || len(k) > maxMetadataKeyLen || len(v) > maxMetadataValueLen {
			return dErrors.Newf(dErrors.CodeInvalidRequest, "metadata entry %q exceeds limits", k)
		}
	}
	return nil
}

func invalid(err error) error {
	msg := err.Error()
	var de *dErrors.Error
	if errors.As(err, &de) {
		msg = de.Message
	}
	return dErrors.New(dErrors.CodeInvalidRequest, msg)
}

func (s *Service) emitAudit(ctx context.Context, lic *License) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Action:    string(audit.EventLicenseIssued),
		Timestamp: lic.IssuedAt,
		LicenseID: lic.ID.String(),
		Subject:   string(lic.SubjectID),
		Publisher: string(lic.PublisherID),
		Detail:    fmt.Sprintf("budget=%d scheme=%s", lic.Budget, lic.SchemeID),
		RequestID: requestcontext.RequestID(ctx),
		NodeID:    requestcontext.NodeID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit license audit event", "license_id", lic.ID.String(), "error", err)
	}
}
