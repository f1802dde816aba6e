package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeBudgetExhausted, "no budget left")
		assert.True(t, HasCode(err, CodeBudgetExhausted))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches wrapped code through fmt wrapping", func(t *testing.T) {
		inner := New(CodeProofReplayed, "seen before")
		err := fmt.Errorf("verify proof: %w", inner)
		assert.True(t, HasCode(err, CodeProofReplayed))
	})

	t.Run("matches inner code under a coded wrapper", func(t *testing.T) {
		inner := New(CodeNotFound, "missing")
		err := Wrap(inner, CodeInternal, "lookup failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeNotFound))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestErrorsIsComparesCodes(t *testing.T) {
	err := New(CodeTokenExpired, "token has expired")
	require.ErrorIs(t, err, New(CodeTokenExpired, "any message"))
	assert.NotErrorIs(t, err, New(CodeSignatureInvalid, "token has expired"))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "nothing to wrap"))
}
