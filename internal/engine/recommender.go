package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Apps-1-2-3/medai-assistant/internal/cache"
	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

// Predictor is the remote prediction collaborator. Implementations make a
// single attempt; any error is treated as "service unavailable" and the
// local engine takes over.
type Predictor interface {
	Predict(ctx context.Context, p *domain.PatientRecord) (*domain.RecommendationResult, error)
}

// Recommender orchestrates the full recommendation flow: remote delegate
// first (when configured), local rule evaluation as the unconditional
// fallback, interaction detection, and explanation normalization.
type Recommender struct {
	logger   *logrus.Logger
	engine   *RuleEngine
	detector *InteractionDetector
	remote   Predictor          // optional
	results  *cache.ResultCache // optional
}

// NewRecommender creates a recommender. remote and results may be nil, in
// which case the local engine runs directly and results are not cached.
func NewRecommender(logger *logrus.Logger, remote Predictor, results *cache.ResultCache) *Recommender {
	return &Recommender{
		logger:   logger,
		engine:   NewRuleEngine(logger),
		detector: NewInteractionDetector(logger),
		remote:   remote,
		results:  results,
	}
}

// Recommend evaluates a patient record. It is total: it always returns a
// result with at least one recommendation and never an error. The returned
// source reports whether the remote service or the local engine produced
// the result.
func (r *Recommender) Recommend(ctx context.Context, p *domain.PatientRecord) (*domain.RecommendationResult, string) {
	var key string
	if r.results != nil {
		key = cache.Key(p)
		if result, source, ok := r.results.Get(ctx, key); ok {
			return result, source
		}
	}

	if r.remote != nil {
		result, err := r.remote.Predict(ctx, p)
		if err == nil {
			r.store(ctx, key, result, domain.SourceRemote)
			return result, domain.SourceRemote
		}
		// Single attempt, no retry: fall through to the local engine.
		r.logger.WithError(err).Info("Prediction service unavailable, using local rule engine")
	}

	recommendations, explanations := r.engine.Evaluate(p)
	interactions := r.detector.DetectInteractions(p, recommendations)

	result := &domain.RecommendationResult{
		Recommendations: recommendations,
		Explanations:    NormalizeExplanations(explanations),
		Interactions:    interactions,
	}

	r.store(ctx, key, result, domain.SourceLocal)
	return result, domain.SourceLocal
}

// InteractionCatalog exposes the built-in interaction reference rules.
func (r *Recommender) InteractionCatalog() []domain.Interaction {
	return r.detector.CatalogRules()
}

func (r *Recommender) store(ctx context.Context, key string, result *domain.RecommendationResult, source string) {
	if r.results == nil || key == "" {
		return
	}
	r.results.Put(ctx, key, result, source)
}
