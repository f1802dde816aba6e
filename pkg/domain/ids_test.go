package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tollgate/pkg/domain-errors"
)

// TestParseLicenseID_Invariants validates "ids must be valid, non-nil UUIDs".
func TestParseLicenseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseLicenseID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseLicenseID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts minted id", func(t *testing.T) {
		minted, err := NewLicenseID()
		require.NoError(t, err)
		parsed, err := ParseLicenseID(minted.String())
		require.NoError(t, err)
		assert.Equal(t, minted, parsed)
	})
}

func TestNewLicenseID_SortsByMintOrder(t *testing.T) {
	prev, err := NewLicenseID()
	require.NoError(t, err)
	for range 100 {
		next, err := NewLicenseID()
		require.NoError(t, err)
		assert.Less(t, prev.String(), next.String())
		prev = next
	}
}

func TestTypedIDs_JSONRoundTrip(t *testing.T) {
	id, err := NewReservationID()
	require.NoError(t, err)

	b, err := json.Marshal(map[string]ReservationID{"reservation_id": id})
	require.NoError(t, err)
	assert.Contains(t, string(b), id.String())

	var out map[string]ReservationID
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, id, out["reservation_id"])
}

func TestParseExternalID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace", "pub one", true},
		{"null byte", "pub\x00one", true},
		{"oversized", strings.Repeat("a", 200), true},
		{"zero width space", "pub\u200Bone", true},
		{"plain", "pub:daily-news", false},
		{"urn style", "urn:agent:acme:crawler-7", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errPub := ParsePublisherID(tt.input)
			_, errSub := ParseSubjectID(tt.input)
			_, errIss := ParseIssuerID(tt.input)
			_, errScheme := ParseSchemeID(tt.input)
			if tt.wantErr {
				require.Error(t, errPub)
				require.Error(t, errSub)
				require.Error(t, errIss)
				require.Error(t, errScheme)
				assert.True(t, dErrors.HasCode(errPub, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, errPub)
			require.NoError(t, errSub)
			require.NoError(t, errIss)
			require.NoError(t, errScheme)
		})
	}
}

func TestParseIntents(t *testing.T) {
	t.Run("rejects empty set", func(t *testing.T) {
		_, err := ParseIntents(nil)
		require.Error(t, err)
	})

	t.Run("rejects unknown intent", func(t *testing.T) {
		_, err := ParseIntents([]string{"view", "resell"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("dedupes and sorts", func(t *testing.T) {
		got, err := ParseIntents([]string{"view", "quote", "view"})
		require.NoError(t, err)
		assert.Equal(t, []Intent{IntentQuote, IntentView}, got)
	})
}

func TestDenyReasonFromError(t *testing.T) {
	t.Run("extracts denial code", func(t *testing.T) {
		r, ok := DenyReasonFromError(dErrors.New(dErrors.CodeProofMismatch, "method differs"))
		require.True(t, ok)
		assert.Equal(t, ReasonProofMismatch, r)
		assert.True(t, r.IsPossessionFailure())
	})

	t.Run("finds denial under a generic wrapper", func(t *testing.T) {
		inner := dErrors.New(dErrors.CodeTokenExpired, "expired")
		r, ok := DenyReasonFromError(dErrors.Wrap(inner, dErrors.CodeUnauthorized, "license rejected"))
		require.True(t, ok)
		assert.Equal(t, ReasonTokenExpired, r)
		assert.True(t, r.IsCredentialFailure())
	})

	t.Run("generic codes are not denials", func(t *testing.T) {
		_, ok := DenyReasonFromError(dErrors.New(dErrors.CodeInternal, "db down"))
		assert.False(t, ok)
	})
}

func TestEnforcementMethod(t *testing.T) {
	m, err := ParseEnforcementMethod("")
	require.NoError(t, err)
	assert.Equal(t, EnforcementTrust, m)
	assert.False(t, m.ToolRequired())

	m, err = ParseEnforcementMethod("tool_required")
	require.NoError(t, err)
	assert.True(t, m.ToolRequired())
	assert.True(t, m.ToolPermitted())

	m, err = ParseEnforcementMethod("both")
	require.NoError(t, err)
	assert.False(t, m.ToolRequired())
	assert.True(t, m.ToolPermitted())

	_, err = ParseEnforcementMethod("honor_system")
	require.Error(t, err)
}
