// Package enforcement decides, per request at the edge, whether a licensed
// consumer may fetch a resource and what it costs. Every check before the
// ledger reservation uses local state only.
package enforcement

import (
	"time"

	"tollgate/internal/ledger"
	"tollgate/internal/manifest"
	"tollgate/pkg/domain"
)

// Request is one inbound fetch. Scheme and Host are optional; when set
// they must match the proof's target URL.
type Request struct {
	Method       string
	Scheme       string
	Host         string
	Path         string
	LicenseToken string
	ProofToken   string
	Intent       string
}

// Decision is either Allow or Deny.
type Decision interface {
	isDecision()
}

// Allow admits the request. The reservation must be completed with
// Engine.Complete; otherwise it expires and its amount is returned.
type Allow struct {
	Reservation ledger.Reservation
	Cost        int64
	Method      domain.EnforcementMethod
	LicenseID   domain.LicenseID
	PublisherID domain.PublisherID
	Intent      domain.Intent
	// Degraded marks a request admitted under the publisher's failover
	// policy while key or pricing state was stale.
	Degraded bool
}

// ToolRequired reports whether content must pass through the
// transformation tool before delivery.
func (a Allow) ToolRequired() bool {
	return a.Method.ToolRequired()
}

// Deny refuses the request. Every reason is terminal.
type Deny struct {
	Reason domain.DenyReason
	Detail string
}

func (Allow) isDecision() {}
func (Deny) isDecision()  {}

// Outcome is how a served request ended.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
	OutcomeAbandoned Outcome = "abandoned"
)

// ParseOutcome validates an outcome from transport input.
func ParseOutcome(s string) (Outcome, bool) {
	switch o := Outcome(s); o {
	case OutcomeDelivered, OutcomeFailed, OutcomeAbandoned:
		return o, true
	}
	return "", false
}

// Completion reports the end of an allowed request. ContentDigest, when
// set on a delivered request, is recorded in a forensic manifest.
type Completion struct {
	ReservationID  domain.ReservationID
	Outcome        Outcome
	ToolInvoked    bool
	ContentDigest  string
	ContentType    string
	Preview        bool
	TransformModel string
}

// Completed is the result of Complete.
type Completed struct {
	Reservation ledger.Reservation
	// Manifest is nil unless one was requested and signed.
	Manifest *manifest.Signed
}

// pending is what the engine remembers between Decide and Complete.
type pending struct {
	licenseID   domain.LicenseID
	publisherID domain.PublisherID
	intent      domain.Intent
	path        string
	method      domain.EnforcementMethod
	requestedAt time.Time
	expiresAt   time.Time
}
