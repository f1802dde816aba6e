package domain

import dErrors "tollgate/pkg/domain-errors"

// ContentType classifies a delivered resource for forensic manifests.
type ContentType string

const (
	ContentArticle ContentType = "article"
	ContentImage   ContentType = "image"
	ContentVideo   ContentType = "video"
	ContentAudio   ContentType = "audio"
	ContentDataset ContentType = "dataset"
	ContentCode    ContentType = "code"
	ContentOther   ContentType = "other"
)

var contentTypes = map[ContentType]bool{
	ContentArticle: true,
	ContentImage:   true,
	ContentVideo:   true,
	ContentAudio:   true,
	ContentDataset: true,
	ContentCode:    true,
	ContentOther:   true,
}

// ParseContentType validates a classification. Empty maps to other.
func ParseContentType(s string) (ContentType, error) {
	if s == "" {
		return ContentOther, nil
	}
	c := ContentType(s)
	if !contentTypes[c] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported content type %q", s)
	}
	return c, nil
}

// Reporter identifies which party produced a usage event.
type Reporter string

const (
	ReporterEnforcer Reporter = "enforcer"
	ReporterConsumer Reporter = "consumer"
)

// ParseReporter validates a reporting party.
func ParseReporter(s string) (Reporter, error) {
	switch r := Reporter(s); r {
	case ReporterEnforcer, ReporterConsumer:
		return r, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported reporter %q", s)
}

// Counterpart returns the other party.
func (r Reporter) Counterpart() Reporter {
	if r == ReporterEnforcer {
		return ReporterConsumer
	}
	return ReporterEnforcer
}
