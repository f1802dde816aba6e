package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with contractual significance between
	// publisher and consumer: issued licenses, signed manifests, settlement
	// discrepancies. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to abuse detection: denied
	// decisions and replayed proofs.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// AuditEvent names an auditable action.
type AuditEvent string

const (
	EventLicenseIssued       AuditEvent = "license_issued"
	EventDecisionDenied      AuditEvent = "decision_denied"
	EventProofReplayed       AuditEvent = "proof_replayed"
	EventManifestSigned      AuditEvent = "manifest_signed"
	EventDiscrepancyDetected AuditEvent = "discrepancy_detected"
	EventOverspendDetected   AuditEvent = "overspend_detected"
	EventReservationExpired  AuditEvent = "reservation_expired"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventLicenseIssued:       CategoryCompliance,
	EventManifestSigned:      CategoryCompliance,
	EventDiscrepancyDetected: CategoryCompliance,
	EventOverspendDetected:   CategoryCompliance,

	EventDecisionDenied: CategorySecurity,
	EventProofReplayed:  CategorySecurity,

	EventReservationExpired: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// LicenseID is empty for events not tied to a license.
	LicenseID string
	Subject   string
	Publisher string
	Decision  string
	Reason    string
	Detail    string
	RequestID string
	NodeID    string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByLicense(ctx context.Context, licenseID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Emitter is the port domain services publish through.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
