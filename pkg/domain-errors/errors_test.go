package domainerrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesInnerCode(t *testing.T) {
	inner := New(CodeConcurrencyConflict, "version mismatch")
	outer := Wrap(inner, CodeInternal, "failed to update claim")

	assert.Equal(t, CodeConcurrencyConflict, CodeOf(outer))
	assert.True(t, HasCode(outer, CodeConcurrencyConflict))
	assert.ErrorIs(t, outer, inner)
}

func TestWithCorrelationID(t *testing.T) {
	t.Run("annotates a domain error", func(t *testing.T) {
		err := New(CodeNotFound, "claim not found")
		annotated := WithCorrelationID(err, "corr-7")

		assert.Equal(t, "corr-7", CorrelationIDOf(annotated))
		assert.Equal(t, CodeNotFound, CodeOf(annotated))
		assert.Equal(t, "claim not found", MessageOf(annotated))
	})

	t.Run("does not mutate the original", func(t *testing.T) {
		err := New(CodeNotFound, "claim not found")
		_ = WithCorrelationID(err, "corr-7")

		assert.Empty(t, CorrelationIDOf(err))
	})

	t.Run("annotates through wrapping", func(t *testing.T) {
		wrapped := Wrap(New(CodeConflict, "duplicate"), CodeInternal, "insert failed")
		annotated := WithCorrelationID(wrapped, "corr-8")

		require.Equal(t, "corr-8", CorrelationIDOf(annotated))
		assert.Equal(t, CodeConflict, CodeOf(annotated))
	})

	t.Run("passes non-domain errors through", func(t *testing.T) {
		plain := fmt.Errorf("disk full")
		assert.Equal(t, plain, WithCorrelationID(plain, "corr-9"))
		assert.Empty(t, CorrelationIDOf(plain))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, WithCorrelationID(nil, "corr-10"))
	})
}
