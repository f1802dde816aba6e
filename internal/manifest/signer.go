package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	jwttoken "tollgate/internal/jwt_token"
	"tollgate/internal/keys"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/audit"
	"tollgate/pkg/requestcontext"
)

const maxResourceIDLength = 2048

// SigningKeys yields the active manifest key.
type SigningKeys interface {
	Active(kind keys.Kind) (*keys.SigningKey, error)
}

// Request describes the delivery a manifest records. IssuedAt defaults to
// the request time; given timestamps must be UTC.
type Request struct {
	PublisherID    string
	LicenseID      *domain.LicenseID
	ResourceID     string
	ContentType    string
	Digest         string
	Preview        bool
	IssuedAt       time.Time
	ExpiresAt      *time.Time
	TransformModel string
}

// Signer produces forensic manifests.
type Signer struct {
	keys    SigningKeys
	store   Store
	auditor audit.Emitter
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Signer.
type Option func(*Signer)

// WithStore persists every signed manifest.
func WithStore(store Store) Option {
	return func(s *Signer) { s.store = store }
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Signer) { s.auditor = a }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Signer) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Signer) { s.metrics = m }
}

// NewSigner constructs a Signer.
func NewSigner(signing SigningKeys, opts ...Option) *Signer {
	s := &Signer{
		keys:   signing,
		logger: slog.Default(),
		tracer: otel.Tracer("tollgate/manifest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign validates req and signs a manifest with the active manifest key.
// Validation failures carry CodeInvalidInput; a missing key carries
// CodeUnavailable.
func (s *Signer) Sign(ctx context.Context, req Request) (*Signed, error) {
	ctx, span := s.tracer.Start(ctx, "manifest.Sign")
	defer span.End()

	m, err := s.build(ctx, req)
	if err != nil {
		s.metrics.failed("invalid")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	key, err := s.keys.Active(keys.KindManifest)
	if err != nil {
		s.metrics.failed("no_key")
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "manifest signing key unavailable")
	}
	m.SignerKID = key.KID
	span.SetAttributes(attribute.String("manifest.id", m.ID.String()))

	token, err := jwttoken.Sign(key, jwttoken.TypeManifest, claimsFor(m))
	if err != nil {
		s.metrics.failed("sign")
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign manifest")
	}
	signed := &Signed{Manifest: m, Token: token}

	if s.store != nil {
		if err := s.store.Save(ctx, signed); err != nil {
			s.metrics.failed("store")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist manifest")
		}
	}
	s.metrics.signed()
	s.emitAudit(ctx, m)
	return signed, nil
}

func (s *Signer) build(ctx context.Context, req Request) (*Manifest, error) {
	publisher, err := domain.ParsePublisherID(req.PublisherID)
	if err != nil {
		return nil, err
	}
	resource := strings.TrimSpace(req.ResourceID)
	if resource == "" || len(resource) > maxResourceIDLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "resource id must be 1-2048 characters")
	}
	ctype, err := domain.ParseContentType(req.ContentType)
	if err != nil {
		return nil, err
	}
	if _, _, err := ParseDigest(req.Digest); err != nil {
		return nil, err
	}
	issued := req.IssuedAt
	if issued.IsZero() {
		issued = requestcontext.Now(ctx)
	} else if issued.Location() != time.UTC {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issued_at must be UTC")
	}
	issued = utcSeconds(issued)

	var expires *time.Time
	if req.ExpiresAt != nil {
		if req.ExpiresAt.Location() != time.UTC {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "expires_at must be UTC")
		}
		exp := utcSeconds(*req.ExpiresAt)
		if !exp.After(issued) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "expires_at must be after issued_at")
		}
		expires = &exp
	}
	if req.LicenseID != nil && req.LicenseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "license id cannot be nil")
	}

	id, err := domain.NewManifestID()
	if err != nil {
		return nil, fmt.Errorf("new manifest id: %w", err)
	}
	return &Manifest{
		ID:             id,
		PublisherID:    publisher,
		LicenseID:      req.LicenseID,
		ResourceID:     resource,
		ContentType:    ctype,
		Digest:         req.Digest,
		Preview:        req.Preview,
		IssuedAt:       issued,
		ExpiresAt:      expires,
		TransformModel: req.TransformModel,
	}, nil
}

func (s *Signer) emitAudit(ctx context.Context, m *Manifest) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Action:    string(audit.EventManifestSigned),
		Publisher: string(m.PublisherID),
		Detail:    m.ID.String() + " " + m.Digest,
		RequestID: requestcontext.RequestID(ctx),
		NodeID:    requestcontext.NodeID(ctx),
	}
	if m.LicenseID != nil {
		event.LicenseID = m.LicenseID.String()
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit manifest audit event", "error", err, "manifest_id", m.ID.String())
	}
}
