package engine

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

// InteractionDetector scans a fixed ordered list of interaction predicates
// against the patient record and the already-produced recommendation list.
// Detection is pure and stateless; every matching predicate fires.
type InteractionDetector struct {
	logger *logrus.Logger
	rules  []interactionRule
}

// interactionRule pairs a predicate with the interaction it emits.
// Predicate order equals output order.
type interactionRule struct {
	Matches func(p *domain.PatientRecord, recs []domain.Recommendation) bool
	Result  domain.Interaction
}

// NewInteractionDetector creates a detector over the built-in catalog.
func NewInteractionDetector(logger *logrus.Logger) *InteractionDetector {
	return &InteractionDetector{
		logger: logger,
		rules: []interactionRule{
			{
				Matches: func(p *domain.PatientRecord, recs []domain.Recommendation) bool {
					return medicationsContain(p, "warfarin") && anyRecommendationContains(recs, "Acetaminophen")
				},
				Result: domain.Interaction{
					Drug1:       "Warfarin",
					Drug2:       "Acetaminophen",
					Severity:    domain.MODERATE,
					Description: "Acetaminophen may enhance the anticoagulant effect of warfarin. Monitor INR closely.",
				},
			},
			{
				Matches: func(p *domain.PatientRecord, recs []domain.Recommendation) bool {
					ssri := medicationsContain(p, "ssri") || medicationsContain(p, "sertraline") || medicationsContain(p, "fluoxetine")
					return ssri && anyRecommendationContains(recs, "Dextromethorphan")
				},
				Result: domain.Interaction{
					Drug1:       "SSRI",
					Drug2:       "Dextromethorphan",
					Severity:    domain.MODERATE,
					Description: "Combining dextromethorphan with SSRIs increases the risk of serotonin syndrome.",
				},
			},
			{
				Matches: func(p *domain.PatientRecord, recs []domain.Recommendation) bool {
					return containsString(p.MedicalHistory, "Liver Disease") && anyRecommendationContains(recs, "Acetaminophen")
				},
				Result: domain.Interaction{
					Drug1:       "Liver Disease",
					Drug2:       "Acetaminophen",
					Severity:    domain.HIGH,
					Description: "Acetaminophen is hepatotoxic at therapeutic doses in patients with liver disease. Reduce dose or avoid.",
				},
			},
			{
				Matches: func(p *domain.PatientRecord, recs []domain.Recommendation) bool {
					return containsString(p.MedicalHistory, "Kidney Disease") &&
						(anyRecommendationContains(recs, "NSAIDs") || anyRecommendationContains(recs, "Ibuprofen"))
				},
				Result: domain.Interaction{
					Drug1:       "Kidney Disease",
					Drug2:       "NSAIDs",
					Severity:    domain.HIGH,
					Description: "NSAIDs can worsen renal function in patients with kidney disease. Avoid.",
				},
			},
		},
	}
}

// DetectInteractions returns every interaction whose predicate matches the
// patient and recommendation list, in catalog order.
func (d *InteractionDetector) DetectInteractions(p *domain.PatientRecord, recs []domain.Recommendation) []domain.Interaction {
	var interactions []domain.Interaction
	for _, r := range d.rules {
		if r.Matches(p, recs) {
			interactions = append(interactions, r.Result)
		}
	}

	if d.logger != nil && len(interactions) > 0 {
		d.logger.WithField("interactions", len(interactions)).Info("Drug interactions flagged")
	}

	return interactions
}

// CatalogRules returns the interactions the built-in catalog can emit, in
// catalog order. Used to seed and serve the drug-interaction reference table.
func (d *InteractionDetector) CatalogRules() []domain.Interaction {
	catalog := make([]domain.Interaction, len(d.rules))
	for i, r := range d.rules {
		catalog[i] = r.Result
	}
	return catalog
}

// medicationsContain reports whether the free-text current medications field
// mentions the given name. Matching is case-insensitive substring
// containment, deliberately loose.
func medicationsContain(p *domain.PatientRecord, name string) bool {
	return strings.Contains(strings.ToLower(p.CurrentMedications), strings.ToLower(name))
}

// anyRecommendationContains reports whether any recommendation name contains
// the given drug name. Substring containment also matches compound names.
func anyRecommendationContains(recs []domain.Recommendation, name string) bool {
	lower := strings.ToLower(name)
	for _, r := range recs {
		if strings.Contains(strings.ToLower(r.Name), lower) {
			return true
		}
	}
	return false
}
