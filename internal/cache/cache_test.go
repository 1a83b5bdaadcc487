package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

func newTestCache(t *testing.T) *ResultCache {
	t.Helper()
	c, err := New(domain.CacheConfig{MaxItems: 4}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKey_StableForEqualRecords(t *testing.T) {
	a := &domain.PatientRecord{Age: 30, HeartRate: 72, Symptoms: []string{"Fever"}}
	b := &domain.PatientRecord{Age: 30, HeartRate: 72, Symptoms: []string{"Fever"}}

	assert.Equal(t, Key(a), Key(b))
}

func TestKey_DiffersAcrossRecords(t *testing.T) {
	a := &domain.PatientRecord{Age: 30, Symptoms: []string{"Fever"}}
	b := &domain.PatientRecord{Age: 31, Symptoms: []string{"Fever"}}

	assert.NotEqual(t, Key(a), Key(b))
}

func TestResultCache_PutGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	result := &domain.RecommendationResult{
		Recommendations: []domain.Recommendation{{Name: "Acetaminophen (Paracetamol)"}},
	}
	key := Key(&domain.PatientRecord{Age: 30, Symptoms: []string{"Fever"}})

	c.Put(ctx, key, result, domain.SourceLocal)

	got, source, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, domain.SourceLocal, source)
	assert.Equal(t, result, got)
}

func TestResultCache_Miss(t *testing.T) {
	c := newTestCache(t)

	_, _, ok := c.Get(context.Background(), "medai:result:missing")
	assert.False(t, ok)
}

func TestResultCache_EvictsOldest(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		key := Key(&domain.PatientRecord{Age: i, Symptoms: []string{"Fever"}})
		c.Put(ctx, key, &domain.RecommendationResult{}, domain.SourceLocal)
	}

	assert.Equal(t, 4, c.Len())

	// Oldest entry was evicted.
	_, _, ok := c.Get(ctx, Key(&domain.PatientRecord{Age: 0, Symptoms: []string{"Fever"}}))
	assert.False(t, ok)
}
