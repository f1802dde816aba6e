package domain

import (
	"errors"

	dErrors "tollgate/pkg/domain-errors"
)

// DenyReason classifies why the edge refused a request. Values mirror the
// enforcement codes in pkg/domain-errors one-to-one.
type DenyReason string

const (
	ReasonMalformedInput            DenyReason = DenyReason(dErrors.CodeMalformedInput)
	ReasonSignatureInvalid          DenyReason = DenyReason(dErrors.CodeSignatureInvalid)
	ReasonTokenExpired              DenyReason = DenyReason(dErrors.CodeTokenExpired)
	ReasonIssuerUnknown             DenyReason = DenyReason(dErrors.CodeIssuerUnknown)
	ReasonProofMismatch             DenyReason = DenyReason(dErrors.CodeProofMismatch)
	ReasonProofReplayed             DenyReason = DenyReason(dErrors.CodeProofReplayed)
	ReasonClockSkewExceeded         DenyReason = DenyReason(dErrors.CodeClockSkewExceeded)
	ReasonIntentNotGranted          DenyReason = DenyReason(dErrors.CodeIntentNotGranted)
	ReasonPathRestricted            DenyReason = DenyReason(dErrors.CodePathRestricted)
	ReasonBudgetExhausted           DenyReason = DenyReason(dErrors.CodeBudgetExhausted)
	ReasonRateLimited               DenyReason = DenyReason(dErrors.CodeRateLimited)
	ReasonIssuerUnreachableDegraded DenyReason = DenyReason(dErrors.CodeIssuerUnreachableDegraded)
)

var denyReasons = map[DenyReason]bool{
	ReasonMalformedInput:            true,
	ReasonSignatureInvalid:          true,
	ReasonTokenExpired:              true,
	ReasonIssuerUnknown:             true,
	ReasonProofMismatch:             true,
	ReasonProofReplayed:             true,
	ReasonClockSkewExceeded:         true,
	ReasonIntentNotGranted:          true,
	ReasonPathRestricted:            true,
	ReasonBudgetExhausted:           true,
	ReasonRateLimited:               true,
	ReasonIssuerUnreachableDegraded: true,
}

// DenyReasonFromError extracts the denial reason carried by err. The second
// return is false when err is not a denial (infrastructure failure, bug).
func DenyReasonFromError(err error) (DenyReason, bool) {
	for err != nil {
		var de *dErrors.Error
		if !errors.As(err, &de) {
			return "", false
		}
		if r := DenyReason(de.Code); denyReasons[r] {
			return r, true
		}
		err = de.Err
	}
	return "", false
}

// IsValid reports whether r belongs to the taxonomy.
func (r DenyReason) IsValid() bool {
	return denyReasons[r]
}

// IsCredentialFailure groups the license-token failures that are reported
// distinctly but treated identically.
func (r DenyReason) IsCredentialFailure() bool {
	switch r {
	case ReasonSignatureInvalid, ReasonTokenExpired, ReasonIssuerUnknown:
		return true
	}
	return false
}

// IsPossessionFailure groups proof-of-possession failures; these may indicate
// key compromise rather than an expired credential.
func (r DenyReason) IsPossessionFailure() bool {
	switch r {
	case ReasonProofMismatch, ReasonProofReplayed, ReasonClockSkewExceeded:
		return true
	}
	return false
}

func (r DenyReason) String() string {
	return string(r)
}
