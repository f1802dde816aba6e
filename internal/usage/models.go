// Package usage accepts usage events from both parties of a license: the
// enforcing edge and the consuming agent. Events are idempotent by
// (reporter, license id, event id, content).
package usage

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
)

// Event is one party's account of a single request.
type Event struct {
	Reporter     domain.Reporter
	LicenseID    domain.LicenseID
	EventID      domain.ReservationID
	Intent       domain.Intent
	ToolInvoked  bool
	Success      bool
	BudgetBefore int64
	BudgetAfter  int64
	Cost         int64
	ResourcePath string
	RequestedAt  time.Time
	ResolvedAt   time.Time
}

// Key matches the two parties' reports of the same request.
type Key struct {
	LicenseID domain.LicenseID
	EventID   domain.ReservationID
}

func (e Event) Key() Key {
	return Key{LicenseID: e.LicenseID, EventID: e.EventID}
}

// ContentHash identifies the event's content. Redelivery of an identical
// report hashes the same; a conflicting report does not.
func (e Event) ContentHash() string {
	h := sha256.New()
	write := func(s string) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	writeInt := func(v int64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v))
		h.Write(b[:])
	}
	writeBool := func(v bool) {
		if v {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	write(string(e.Reporter))
	write(e.LicenseID.String())
	write(e.EventID.String())
	write(string(e.Intent))
	writeBool(e.ToolInvoked)
	writeBool(e.Success)
	writeInt(e.BudgetBefore)
	writeInt(e.BudgetAfter)
	writeInt(e.Cost)
	write(e.ResourcePath)
	writeInt(e.RequestedAt.UnixNano())
	writeInt(e.ResolvedAt.UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}

// Report is the wire form of an Event, shared by the HTTP intake and the
// Kafka topic.
type Report struct {
	Reporter     string    `json:"reporter,omitempty" validate:"omitempty,reporter"`
	LicenseID    string    `json:"license_id" validate:"required,uuid"`
	EventID      string    `json:"event_id" validate:"required,uuid"`
	Intent       string    `json:"intent" validate:"required,intent"`
	ToolInvoked  bool      `json:"tool_invoked"`
	Success      bool      `json:"success"`
	BudgetBefore int64     `json:"budget_before"`
	BudgetAfter  int64     `json:"budget_after"`
	Cost         int64     `json:"cost" validate:"min=0"`
	ResourcePath string    `json:"resource_path" validate:"required,max=2048"`
	RequestedAt  time.Time `json:"requested_at" validate:"required"`
	ResolvedAt   time.Time `json:"resolved_at" validate:"required,gtefield=RequestedAt"`
}

// ToEvent converts a validated report. reporter overrides an empty
// Reporter field and must agree with a non-empty one.
func (r Report) ToEvent(reporter domain.Reporter) (Event, error) {
	if r.Reporter != "" && domain.Reporter(r.Reporter) != reporter {
		return Event{}, dErrors.Newf(dErrors.CodeInvalidInput, "reporter %q does not match submitting party %q", r.Reporter, reporter)
	}
	licenseID, err := domain.ParseLicenseID(r.LicenseID)
	if err != nil {
		return Event{}, err
	}
	eventID, err := domain.ParseReservationID(r.EventID)
	if err != nil {
		return Event{}, err
	}
	intent, err := domain.ParseIntent(r.Intent)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Reporter:     reporter,
		LicenseID:    licenseID,
		EventID:      eventID,
		Intent:       intent,
		ToolInvoked:  r.ToolInvoked,
		Success:      r.Success,
		BudgetBefore: r.BudgetBefore,
		BudgetAfter:  r.BudgetAfter,
		Cost:         r.Cost,
		ResourcePath: r.ResourcePath,
		RequestedAt:  r.RequestedAt.UTC(),
		ResolvedAt:   r.ResolvedAt.UTC(),
	}, nil
}

// ReportFrom is the inverse of ToEvent.
func ReportFrom(e Event) Report {
	return Report{
		Reporter:     string(e.Reporter),
		LicenseID:    e.LicenseID.String(),
		EventID:      e.EventID.String(),
		Intent:       string(e.Intent),
		ToolInvoked:  e.ToolInvoked,
		Success:      e.Success,
		BudgetBefore: e.BudgetBefore,
		BudgetAfter:  e.BudgetAfter,
		Cost:         e.Cost,
		ResourcePath: e.ResourcePath,
		RequestedAt:  e.RequestedAt,
		ResolvedAt:   e.ResolvedAt,
	}
}

// Sink receives accepted events. Append must be idempotent and must not
// retain the slice.
type Sink interface {
	Append(ctx context.Context, events []Event) error
}

// Query selects one party's events resolved in [From, To).
type Query struct {
	Reporter domain.Reporter
	From     time.Time
	To       time.Time
	// LicenseID narrows to one license when set.
	LicenseID *domain.LicenseID
}

// Matches reports whether e falls within q.
func (q Query) Matches(e Event) bool {
	if e.Reporter != q.Reporter {
		return false
	}
	if q.LicenseID != nil && e.LicenseID != *q.LicenseID {
		return false
	}
	if !q.From.IsZero() && e.ResolvedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !e.ResolvedAt.Before(q.To) {
		return false
	}
	return true
}

// Store persists events and serves reconciliation batches.
type Store interface {
	Sink
	List(ctx context.Context, q Query) ([]Event, error)
}
