// Package ledger tracks spend per license on one edge node. Reserve, Commit
// and Release are atomic per license; nodes never coordinate, so overspend
// across nodes is bounded by the overdraft allowance and detected later by
// reconciliation.
package ledger

import (
	"time"

	"tollgate/pkg/domain"
)

// State is the lifecycle position of a reservation.
type State string

const (
	StateReserved  State = "reserved"
	StateCommitted State = "committed"
	StateReleased  State = "released"
)

// Account identifies the license a reservation draws from. Budget and
// ExpiresAt come from the verified license and never change.
type Account struct {
	LicenseID domain.LicenseID
	Budget    int64
	ExpiresAt time.Time
}

// Reservation is a hold on part of a license's budget.
type Reservation struct {
	ID        domain.ReservationID
	LicenseID domain.LicenseID
	Amount    int64
	CreatedAt time.Time
	ExpiresAt time.Time
	State     State
}

// Balance is a point-in-time view of one license's spend on this node.
type Balance struct {
	LicenseID domain.LicenseID
	Budget    int64
	Committed int64
	Reserved  int64
}

// Remaining is budget not yet committed or held.
func (b Balance) Remaining() int64 {
	return b.Budget - b.Committed - b.Reserved
}
