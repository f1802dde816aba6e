// Package reconcile matches the enforcing edge's usage reports against the
// consuming agent's and reports where they disagree. It never alters either
// party's record.
package reconcile

import (
	"time"

	"tollgate/internal/usage"
	"tollgate/pkg/domain"
)

// Cause classifies a discrepancy.
type Cause string

const (
	CauseMissingReport  Cause = "missing_report"
	CauseCostMismatch   Cause = "cost_mismatch"
	CauseStatusMismatch Cause = "status_mismatch"
	CauseDuplicate      Cause = "duplicate"
)

// Discrepancy is advisory output for dispute resolution.
type Discrepancy struct {
	LicenseID domain.LicenseID
	EventID   domain.ReservationID
	Cause     Cause
	// Reporter is the party whose report is missing for missing_report, the
	// party that sent conflicting copies for duplicate, and empty otherwise.
	Reporter domain.Reporter
	Enforcer *usage.Event
	Consumer *usage.Event
	Detail   string
}

// Overspend is a license whose confirmed spend exceeds its budget by more
// than the tolerance, typically because several nodes reserved concurrently.
type Overspend struct {
	LicenseID domain.LicenseID
	Budget    int64
	Spent     int64
	Excess    int64
}

// Input is one reconciliation run.
type Input struct {
	Enforcer []usage.Event
	Consumer []usage.Event
	AsOf     time.Time
	// LagWindow is how long a report may wait for its counterpart before it
	// is reported missing.
	LagWindow time.Duration
	// From and To bound which unmatched reports are judged. Batches may be
	// loaded wider than the window so counterparts resolved just outside it
	// still pair up. Zero values are unbounded.
	From time.Time
	To   time.Time
	// Budgets enables the overspend check for the licenses it names.
	Budgets   map[domain.LicenseID]int64
	Tolerance int64
}

// Report is the result of a run. Identical inputs in any order produce an
// identical Report.
type Report struct {
	AsOf          time.Time
	Confirmed     int
	Pending       []usage.Key
	Discrepancies []Discrepancy
	Overspends    []Overspend
}

// Clean reports whether the run found nothing to dispute.
func (r *Report) Clean() bool {
	return len(r.Discrepancies) == 0 && len(r.Overspends) == 0
}
