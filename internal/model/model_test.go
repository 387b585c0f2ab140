package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfidentialityScope(t *testing.T) {
	public := ScopeFor(false)
	assert.True(t, public.Contains(false))
	assert.False(t, public.Contains(true))
	assert.False(t, public.IncludesConfidential())

	full := ScopeFor(true)
	assert.True(t, full.Contains(false))
	assert.True(t, full.Contains(true))
	assert.True(t, full.IncludesConfidential())
}

func TestSequenceCounterLastTouched(t *testing.T) {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	modified := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("fresh counter counts as touched at creation", func(t *testing.T) {
		c := SequenceCounter{CreatedAt: created, ModifiedAt: created}
		assert.Equal(t, created, c.LastTouched())
	})

	t.Run("modified counter reports the modification", func(t *testing.T) {
		c := SequenceCounter{CreatedAt: created, ModifiedAt: modified}
		assert.Equal(t, modified, c.LastTouched())
	})
}

func TestMetadataPredicateIsEmpty(t *testing.T) {
	assert.True(t, MetadataPredicate{Key: "k"}.IsEmpty())
	assert.False(t, MetadataPredicate{MatchesAny: []string{"v"}}.IsEmpty())
	assert.False(t, MetadataPredicate{MatchesAll: []string{"v"}}.IsEmpty())
}
