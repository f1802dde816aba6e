// Package pop verifies proof-of-possession assertions: a per-request JWS
// signed by the key a license is bound to, naming the request method and
// target.
package pop

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	jwttoken "tollgate/internal/jwt_token"
	"tollgate/internal/keys"
	dErrors "tollgate/pkg/domain-errors"
)

// DefaultSkew is the clock-skew tolerance and replay window.
const DefaultSkew = 300 * time.Second

const maxProofBytes = 4096

// KeyResolver resolves registered consumer keys by thumbprint.
type KeyResolver interface {
	ResolveThumbprint(ctx context.Context, thumbprint string, now time.Time) (*keys.TrustedKey, error)
}

// ReplayCache records proof ids. Remember returns false for an id already
// recorded whose deadline has not passed.
type ReplayCache interface {
	Remember(ctx context.Context, id string, until, now time.Time) (bool, error)
}

// Target is the inbound request a proof must name. Scheme and Host are
// compared only when both the proof and the request carry them.
type Target struct {
	Method string
	Scheme string
	Host   string
	Path   string
}

// Proof is a verified assertion.
type Proof struct {
	ID       string
	Method   string
	URL      string
	IssuedAt time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Method string `json:"htm"`
	URL    string `json:"htu"`
}

// Verifier checks proofs against local key state and a replay cache.
type Verifier struct {
	keys   KeyResolver
	replay ReplayCache
	skew   time.Duration
}

// NewVerifier constructs a Verifier. skew <= 0 selects DefaultSkew.
func NewVerifier(resolver KeyResolver, replay ReplayCache, skew time.Duration) *Verifier {
	if skew <= 0 {
		skew = DefaultSkew
	}
	return &Verifier{keys: resolver, replay: replay, skew: skew}
}

// Skew returns the configured tolerance.
func (v *Verifier) Skew() time.Duration { return v.skew }

// Verify accepts the proof iff it is signed by the key whose thumbprint the
// license carries, names target, was issued within ±skew of now, and its id
// has not been seen in the replay window. The id is recorded only after
// every other check passes.
func (v *Verifier) Verify(ctx context.Context, token, thumbprint string, target Target, now time.Time) (*Proof, error) {
	if token == "" || len(token) > maxProofBytes {
		return nil, dErrors.New(dErrors.CodeMalformedInput, "proof missing or oversized")
	}
	header, err := jwttoken.PeekHeader(token, jwttoken.TypeProof)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeMalformedInput, "proof is not a pop+jwt")
	}
	if header.KID != "" && header.KID != thumbprint {
		return nil, dErrors.New(dErrors.CodeProofMismatch, "proof key does not match license binding")
	}

	key, err := v.resolveKey(ctx, header, thumbprint, now)
	if err != nil {
		return nil, err
	}

	var c claims
	if err := jwttoken.Verify(token, &c, key.Public, key.Algorithm); err != nil {
		if errors.Is(err, jwttoken.ErrMalformed) {
			return nil, dErrors.New(dErrors.CodeMalformedInput, "proof could not be decoded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeProofMismatch, "proof signature invalid")
	}
	if c.ID == "" || c.IssuedAt == nil {
		return nil, dErrors.New(dErrors.CodeMalformedInput, "proof lacks jti or iat")
	}
	if !MethodMatches(c.Method, target.Method) || !TargetMatches(c.URL, target) {
		return nil, dErrors.New(dErrors.CodeProofMismatch, "proof names a different request")
	}

	iat := c.IssuedAt.UTC()
	if d := now.Sub(iat); d > v.skew || d < -v.skew {
		return nil, dErrors.Newf(dErrors.CodeClockSkewExceeded, "proof issued %s from node clock", d.Round(time.Second))
	}

	fresh, err := v.replay.Remember(ctx, thumbprint+":"+c.ID, iat.Add(v.skew), now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "replay cache unavailable")
	}
	if !fresh {
		return nil, dErrors.New(dErrors.CodeProofReplayed, "proof id already used")
	}
	return &Proof{ID: c.ID, Method: c.Method, URL: c.URL, IssuedAt: iat}, nil
}

// resolveKey prefers the registered key; a key embedded in the proof header
// is accepted only when its thumbprint equals the license binding.
func (v *Verifier) resolveKey(ctx context.Context, header jwttoken.Header, thumbprint string, now time.Time) (*keys.TrustedKey, error) {
	if k, err := v.keys.ResolveThumbprint(ctx, thumbprint, now); err == nil {
		return k, nil
	}
	if header.JWK == nil || header.JWK.Thumbprint() != thumbprint {
		return nil, dErrors.New(dErrors.CodeProofMismatch, "no key registered for license binding")
	}
	pub, err := header.JWK.PublicKey()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProofMismatch, "embedded proof key unusable")
	}
	return keys.NewTrustedKey(thumbprint, keys.KindConsumer, "", pub, time.Time{})
}

// MethodMatches compares HTTP methods case-insensitively.
func MethodMatches(claimed, actual string) bool {
	return claimed != "" && strings.EqualFold(claimed, actual)
}

// TargetMatches compares the proof URL with the inbound request. Paths are
// compared after cleaning; query and fragment are ignored.
func TargetMatches(htu string, t Target) bool {
	u, err := url.Parse(htu)
	if err != nil || u.Path == "" && u.Host == "" {
		return false
	}
	if u.Scheme != "" && t.Scheme != "" && !strings.EqualFold(u.Scheme, t.Scheme) {
		return false
	}
	if u.Host != "" && t.Host != "" && !strings.EqualFold(stripDefaultPort(u.Host), stripDefaultPort(t.Host)) {
		return false
	}
	return cleanPath(u.Path) == cleanPath(t.Path)
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}

func stripDefaultPort(host string) string {
	if h, ok := strings.CutSuffix(host, ":443"); ok {
		return h
	}
	if h, ok := strings.CutSuffix(host, ":80"); ok {
		return h
	}
	return host
}
