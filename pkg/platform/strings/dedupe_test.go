package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "lowercases and dedupes",
			input:    []string{"View", "view", "VIEW"},
			expected: []string{"view"},
		},
		{
			name:     "trims and removes empty strings",
			input:    []string{"  summarize ", "", "  ", "view"},
			expected: []string{"summarize", "view"},
		},
		{
			name:     "preserves first-seen order",
			input:    []string{"train", "view", "Train", "summarize"},
			expected: []string{"train", "view", "summarize"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}
