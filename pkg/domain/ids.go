package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "tollgate/pkg/domain-errors"
)

// maxExternalIDLength bounds identifiers minted outside this system
// (publisher, subject, issuer, scheme ids).
const maxExternalIDLength = 128

// LicenseID identifies a license. Minted as UUIDv7 so ids sort by issue time.
type LicenseID uuid.UUID

// ReservationID identifies a budget reservation and doubles as the usage event id.
type ReservationID uuid.UUID

// ManifestID identifies a forensic manifest.
type ManifestID uuid.UUID

// SubjectID identifies the consuming agent a license is granted to.
type SubjectID string

// PublisherID identifies the resource owner.
type PublisherID string

// IssuerID identifies the issuing authority.
type IssuerID string

// SchemeID references a pricing scheme in the publisher's catalog.
type SchemeID string

// NewLicenseID returns a fresh, time-ordered license id.
func NewLicenseID() (LicenseID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return LicenseID{}, err
	}
	return LicenseID(u), nil
}

// NewReservationID returns a fresh, time-ordered reservation id.
func NewReservationID() (ReservationID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return ReservationID{}, err
	}
	return ReservationID(u), nil
}

// NewManifestID returns a fresh, time-ordered manifest id.
func NewManifestID() (ManifestID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return ManifestID{}, err
	}
	return ManifestID(u), nil
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", kind)
	}
	if !utf8.ValidString(s) {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", kind)
	}
	return u, nil
}

// ParseLicenseID parses a license id at a trust boundary.
func ParseLicenseID(s string) (LicenseID, error) {
	u, err := parseUUID(s, "license id")
	return LicenseID(u), err
}

// ParseReservationID parses a reservation id at a trust boundary.
func ParseReservationID(s string) (ReservationID, error) {
	u, err := parseUUID(s, "reservation id")
	return ReservationID(u), err
}

// ParseManifestID parses a manifest id at a trust boundary.
func ParseManifestID(s string) (ManifestID, error) {
	u, err := parseUUID(s, "manifest id")
	return ManifestID(u), err
}

func (id LicenseID) String() string     { return uuid.UUID(id).String() }
func (id ReservationID) String() string { return uuid.UUID(id).String() }
func (id ManifestID) String() string    { return uuid.UUID(id).String() }

func (id LicenseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ReservationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ManifestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed ids appear as strings in JSON payloads and map keys.
func (id LicenseID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *LicenseID) UnmarshalText(b []byte) error {
	parsed, err := ParseLicenseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ReservationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ReservationID) UnmarshalText(b []byte) error {
	parsed, err := ParseReservationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ManifestID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ManifestID) UnmarshalText(b []byte) error {
	parsed, err := ParseManifestID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// validateExternalID enforces the shape shared by externally minted identifiers:
// non-empty, bounded, printable, no whitespace.
func validateExternalID(s, kind string) error {
	if s == "" {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", kind)
	}
	if len(s) > maxExternalIDLength || !utf8.ValidString(s) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || !unicode.IsPrint(r)
	}) >= 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	return nil
}

// ParseSubjectID validates a consumer identifier.
func ParseSubjectID(s string) (SubjectID, error) {
	if err := validateExternalID(s, "subject id"); err != nil {
		return "", err
	}
	return SubjectID(s), nil
}

// ParsePublisherID validates a publisher identifier.
func ParsePublisherID(s string) (PublisherID, error) {
	if err := validateExternalID(s, "publisher id"); err != nil {
		return "", err
	}
	return PublisherID(s), nil
}

// ParseIssuerID validates an issuing authority identifier.
func ParseIssuerID(s string) (IssuerID, error) {
	if err := validateExternalID(s, "issuer id"); err != nil {
		return "", err
	}
	return IssuerID(s), nil
}

// ParseSchemeID validates a pricing scheme reference.
func ParseSchemeID(s string) (SchemeID, error) {
	if err := validateExternalID(s, "scheme id"); err != nil {
		return "", err
	}
	return SchemeID(s), nil
}

func (id SubjectID) String() string   { return string(id) }
func (id PublisherID) String() string { return string(id) }
func (id IssuerID) String() string    { return string(id) }
func (id SchemeID) String() string    { return string(id) }
