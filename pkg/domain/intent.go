package domain

import (
	"sort"

	dErrors "tollgate/pkg/domain-errors"
)

// Intent is a usage purpose a license can grant.
// Invariant: the value must be one of the supported intents.
//
// Usage: construct via ParseIntent at trust boundaries; direct casting bypasses
// the allowlist.
type Intent string

// Supported intents.
const (
	IntentView      Intent = "view"
	IntentSummarize Intent = "summarize"
	IntentQuote     Intent = "quote"
	IntentIndex     Intent = "index"
	IntentEmbed     Intent = "embed"
	IntentTrain     Intent = "train"
	IntentTransform Intent = "transform"
)

var validIntents = map[Intent]bool{
	IntentView:      true,
	IntentSummarize: true,
	IntentQuote:     true,
	IntentIndex:     true,
	IntentEmbed:     true,
	IntentTrain:     true,
	IntentTransform: true,
}

// ParseIntent constructs an Intent from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseIntent(s string) (Intent, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "intent cannot be empty")
	}
	i := Intent(s)
	if !i.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported intent %q", s)
	}
	return i, nil
}

// ParseIntents parses a non-empty intent set, dropping duplicates. The result
// is sorted so equal sets encode identically.
func ParseIntents(values []string) ([]Intent, error) {
	if len(values) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "intent set cannot be empty")
	}
	seen := make(map[Intent]struct{}, len(values))
	out := make([]Intent, 0, len(values))
	for _, v := range values {
		i, err := ParseIntent(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out, nil
}

// IsValid checks if the intent is one of the supported values.
func (i Intent) IsValid() bool {
	return validIntents[i]
}

func (i Intent) String() string {
	return string(i)
}
