package domain

import dErrors "tollgate/pkg/domain-errors"

// FailoverMode is the publisher-declared behavior when the issuing authority
// cannot be reached and the edge's cached keys or pricing are stale.
type FailoverMode string

const (
	FailoverDeny      FailoverMode = "deny"
	FailoverAllow     FailoverMode = "allow"
	FailoverCacheOnly FailoverMode = "cache_only"
)

// ParseFailoverMode validates a configured failover mode.
func ParseFailoverMode(s string) (FailoverMode, error) {
	switch m := FailoverMode(s); m {
	case FailoverDeny, FailoverAllow, FailoverCacheOnly:
		return m, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported failover mode %q", s)
}

// EnforcementMethod says how usage of an intent is enforced.
//   - trust: the edge serves content, the consumer's self-report is trusted.
//   - tool_required: the content must pass through a transformation tool.
//   - both: either path is acceptable; the tool is invoked when available.
type EnforcementMethod string

const (
	EnforcementTrust        EnforcementMethod = "trust"
	EnforcementToolRequired EnforcementMethod = "tool_required"
	EnforcementBoth         EnforcementMethod = "both"
)

// ParseEnforcementMethod validates a configured enforcement method. Empty
// defaults to trust.
func ParseEnforcementMethod(s string) (EnforcementMethod, error) {
	switch m := EnforcementMethod(s); m {
	case "":
		return EnforcementTrust, nil
	case EnforcementTrust, EnforcementToolRequired, EnforcementBoth:
		return m, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported enforcement method %q", s)
}

// ToolRequired reports whether a transformation call is mandatory.
func (m EnforcementMethod) ToolRequired() bool {
	return m == EnforcementToolRequired
}

// ToolPermitted reports whether the transformation path may be used.
func (m EnforcementMethod) ToolPermitted() bool {
	return m == EnforcementToolRequired || m == EnforcementBoth
}
