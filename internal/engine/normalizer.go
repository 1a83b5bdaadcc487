package engine

import (
	"math"

	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

// NormalizeExplanations rescales raw influence magnitudes so the sequence
// sums to 100; directions are untouched. Rounding is applied independently
// per entry, so the post-normalization sum may drift from 100 by a few
// units. An empty or all-zero sequence is returned unchanged.
func NormalizeExplanations(explanations []domain.Explanation) []domain.Explanation {
	sum := 0
	for _, e := range explanations {
		sum += e.Influence
	}
	if sum <= 0 {
		return explanations
	}

	normalized := make([]domain.Explanation, len(explanations))
	for i, e := range explanations {
		e.Influence = int(math.Round(float64(e.Influence) / float64(sum) * 100))
		normalized[i] = e
	}
	return normalized
}
