package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apps-1-2-3/medai-assistant/internal/cache"
	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

type stubPredictor struct {
	result *domain.RecommendationResult
	err    error
	calls  int
}

func (s *stubPredictor) Predict(ctx context.Context, p *domain.PatientRecord) (*domain.RecommendationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRecommend_RemoteSuccess(t *testing.T) {
	remote := &stubPredictor{
		result: &domain.RecommendationResult{
			Recommendations: []domain.Recommendation{{Name: "Remote Drug", Confidence: 0.9}},
			Explanations:    []domain.Explanation{{Feature: "remote", Influence: 100, Direction: domain.POSITIVE}},
		},
	}
	recommender := NewRecommender(quietLogger(), remote, nil)

	patient := &domain.PatientRecord{Age: 30, HeartRate: 72, Symptoms: []string{"Fever"}}
	result, source := recommender.Recommend(context.Background(), patient)

	assert.Equal(t, domain.SourceRemote, source)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "Remote Drug", result.Recommendations[0].Name)
	assert.Equal(t, 1, remote.calls)
}

func TestRecommend_RemoteFailureFallsBackLocal(t *testing.T) {
	remote := &stubPredictor{err: errors.New("connection refused")}
	recommender := NewRecommender(quietLogger(), remote, nil)

	patient := &domain.PatientRecord{Age: 30, HeartRate: 72, Symptoms: []string{"Fever"}}
	result, source := recommender.Recommend(context.Background(), patient)

	assert.Equal(t, domain.SourceLocal, source)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "Acetaminophen (Paracetamol)", result.Recommendations[0].Name)
	assert.Equal(t, 1, remote.calls, "single attempt, no retry")
}

func TestRecommend_NoRemoteUsesLocal(t *testing.T) {
	recommender := NewRecommender(quietLogger(), nil, nil)

	patient := &domain.PatientRecord{Age: 30, HeartRate: 72, Symptoms: []string{"Dizziness"}}
	result, source := recommender.Recommend(context.Background(), patient)

	assert.Equal(t, domain.SourceLocal, source)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "General Supportive Care", result.Recommendations[0].Name)
}

func TestRecommend_LocalExplanationsNormalized(t *testing.T) {
	recommender := NewRecommender(quietLogger(), nil, nil)

	patient := &domain.PatientRecord{Age: 30, HeartRate: 72, Symptoms: []string{"Fever"}}
	result, _ := recommender.Recommend(context.Background(), patient)

	total := 0
	for _, e := range result.Explanations {
		total += e.Influence
	}
	assert.InDelta(t, 100, total, 3)
}

func TestRecommend_LocalInteractionsDetected(t *testing.T) {
	recommender := NewRecommender(quietLogger(), nil, nil)

	patient := &domain.PatientRecord{
		Age:                30,
		HeartRate:          72,
		Symptoms:           []string{"Fever"},
		CurrentMedications: "warfarin",
	}
	result, _ := recommender.Recommend(context.Background(), patient)

	require.Len(t, result.Interactions, 1)
	assert.Equal(t, "Warfarin", result.Interactions[0].Drug1)
}

func TestRecommend_CachesResults(t *testing.T) {
	results, err := cache.New(domain.CacheConfig{MaxItems: 10}, quietLogger())
	require.NoError(t, err)
	defer results.Close()

	remote := &stubPredictor{err: errors.New("down")}
	recommender := NewRecommender(quietLogger(), remote, results)

	patient := &domain.PatientRecord{Age: 30, HeartRate: 72, Symptoms: []string{"Fever"}}

	first, source1 := recommender.Recommend(context.Background(), patient)
	second, source2 := recommender.Recommend(context.Background(), patient)

	assert.Equal(t, domain.SourceLocal, source1)
	assert.Equal(t, domain.SourceLocal, source2)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, remote.calls, "second call served from cache")
	assert.Equal(t, 1, results.Len())
}

func TestInteractionCatalog(t *testing.T) {
	recommender := NewRecommender(quietLogger(), nil, nil)

	catalog := recommender.InteractionCatalog()
	assert.Len(t, catalog, 4)
}
