// Package engine implements the deterministic drug recommendation core:
// an ordered rule evaluator, a drug-interaction detector, and an
// explanation normalizer. The engine is pure and stateless; it is safe to
// invoke concurrently and always produces a non-empty recommendation list.
package engine

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

// RuleEngine evaluates a patient record against an ordered, non-exclusive
// rule list. Rule order is load-bearing: later rules inspect the running
// accumulator (recommendations and explanations emitted so far), so rules
// must never be reordered or evaluated in parallel.
type RuleEngine struct {
	logger *logrus.Logger
	rules  []rule
}

// rule is a named evaluation step with side effects on the accumulator.
type rule struct {
	Name  string
	Apply func(p *domain.PatientRecord, f patientFactors, acc *accumulator)
}

// accumulator carries the running output between rule evaluations.
type accumulator struct {
	recommendations []domain.Recommendation
	explanations    []domain.Explanation
	// defaultEligible tracks whether any drug-emitting rule fired;
	// context-only rules (mental health, heart rate, blood type) do not
	// suppress the default recommendation.
	defaultEligible bool
}

// patientFactors holds age- and vitals-derived modifiers consulted by the
// dosage-bearing rules.
type patientFactors struct {
	DoseModifier float64
	Elderly      bool
	Pediatric    bool
	Tachycardic  bool
	Bradycardic  bool
}

// NewRuleEngine creates a new rule engine with the fixed rule ordering.
func NewRuleEngine(logger *logrus.Logger) *RuleEngine {
	e := &RuleEngine{logger: logger}

	e.rules = []rule{
		{"fever_headache", e.ruleFeverHeadache},
		{"cough_sore_throat", e.ruleCoughSoreThroat},
		{"nausea", e.ruleNausea},
		{"critical_symptoms", e.ruleCriticalSymptoms},
		{"mental_health_context", e.ruleMentalHealthContext},
		{"heart_rate_context", e.ruleHeartRateContext},
		{"blood_type_context", e.ruleBloodTypeContext},
		{"default_supportive_care", e.ruleDefaultSupportiveCare},
	}

	return e
}

// Evaluate runs every rule in order against the patient record and returns
// the recommendations and raw (unnormalized) explanations. It is total:
// the recommendation list is never empty.
func (e *RuleEngine) Evaluate(p *domain.PatientRecord) ([]domain.Recommendation, []domain.Explanation) {
	factors := deriveFactors(p)
	acc := &accumulator{}

	for _, r := range e.rules {
		before := len(acc.recommendations)
		r.Apply(p, factors, acc)

		if e.logger != nil && len(acc.recommendations) > before {
			e.logger.WithFields(logrus.Fields{
				"rule":            r.Name,
				"recommendations": len(acc.recommendations),
			}).Debug("Rule emitted recommendation")
		}
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"recommendations": len(acc.recommendations),
			"explanations":    len(acc.explanations),
		}).Info("Completed rule evaluation")
	}

	return acc.recommendations, acc.explanations
}

// deriveFactors computes the age and vitals modifiers consulted by the
// dosage-bearing rules.
func deriveFactors(p *domain.PatientRecord) patientFactors {
	f := patientFactors{DoseModifier: 1.0}
	if p.Age > 65 {
		f.DoseModifier = 0.75
		f.Elderly = true
	} else if p.Age < 18 {
		f.DoseModifier = 0.5
		f.Pediatric = true
	}
	f.Tachycardic = p.HeartRate > 100
	f.Bradycardic = p.HeartRate < 60
	return f
}

// ruleFeverHeadache recommends acetaminophen for fever or headache unless
// the patient reports an aspirin or NSAID allergy.
func (e *RuleEngine) ruleFeverHeadache(p *domain.PatientRecord, f patientFactors, acc *accumulator) {
	hasFever := containsString(p.Symptoms, "Fever")
	hasHeadache := containsString(p.Symptoms, "Headache")
	if !hasFever && !hasHeadache {
		return
	}
	if containsString(p.Allergies, "Aspirin") || containsString(p.Allergies, "NSAIDs") {
		return
	}

	base := int(math.Round(500 * f.DoseModifier))
	frequency := "Every 4-6 hours"
	if f.Elderly {
		frequency = "Every 6-8 hours"
	}
	conditionMatch := "headache"
	if hasFever {
		conditionMatch = "fever"
	}

	acc.recommendations = append(acc.recommendations, domain.Recommendation{
		Name:            "Acetaminophen (Paracetamol)",
		Confidence:      0.92,
		Dosage:          fmt.Sprintf("%d-%dmg", base, base*2),
		Frequency:       frequency,
		Effectiveness:   "Highly Effective",
		SideEffectsRisk: "Low Risk",
		ConditionMatch:  conditionMatch,
	})
	acc.defaultEligible = true

	liverDirection := domain.POSITIVE
	if containsString(p.MedicalHistory, "Liver Disease") {
		liverDirection = domain.NEGATIVE
	}

	acc.explanations = append(acc.explanations,
		domain.Explanation{Feature: "Fever/headache symptom presentation", Influence: 35, Direction: domain.POSITIVE},
		domain.Explanation{Feature: "Liver function considerations", Influence: 20, Direction: liverDirection},
		domain.Explanation{Feature: "No aspirin or NSAID allergy reported", Influence: 15, Direction: domain.POSITIVE},
		domain.Explanation{Feature: "Age-adjusted dosing applied", Influence: 15, Direction: domain.POSITIVE},
	)
}

// ruleCoughSoreThroat recommends an expectorant when a runny nose suggests a
// productive cough, otherwise a dose-adjusted suppressant. Its explanation
// entries are emitted only when this is the sole recommendation produced so
// far; when an earlier rule already fired they are suppressed.
func (e *RuleEngine) ruleCoughSoreThroat(p *domain.PatientRecord, f patientFactors, acc *accumulator) {
	if !containsString(p.Symptoms, "Cough") && !containsString(p.Symptoms, "Sore Throat") {
		return
	}

	conditionMatch := "sore throat"
	if containsString(p.Symptoms, "Cough") {
		conditionMatch = "cough"
	}

	var rec domain.Recommendation
	if containsString(p.Symptoms, "Runny Nose") {
		rec = domain.Recommendation{
			Name:            "Guaifenesin (Expectorant)",
			Confidence:      0.85,
			Dosage:          "200-400mg",
			Frequency:       "Every 4 hours",
			Effectiveness:   "Considerably Effective",
			SideEffectsRisk: "Low Risk",
			ConditionMatch:  conditionMatch,
		}
	} else {
		low := int(math.Round(10 * f.DoseModifier))
		high := int(math.Round(20 * f.DoseModifier))
		rec = domain.Recommendation{
			Name:            "Dextromethorphan (Cough Suppressant)",
			Confidence:      0.85,
			Dosage:          fmt.Sprintf("%d-%dmg", low, high),
			Frequency:       "Every 6-8 hours",
			Effectiveness:   "Considerably Effective",
			SideEffectsRisk: "Mild Risk",
			ConditionMatch:  conditionMatch,
		}
	}

	acc.recommendations = append(acc.recommendations, rec)
	acc.defaultEligible = true

	// Guard inspected after the append: a preceding recommendation from
	// another rule suppresses this rule's explanation entries.
	if len(acc.recommendations) == 1 {
		acc.explanations = append(acc.explanations,
			domain.Explanation{Feature: "Cough/sore throat symptom presentation", Influence: 40, Direction: domain.POSITIVE},
			domain.Explanation{Feature: "Productive vs dry cough assessment", Influence: 25, Direction: domain.POSITIVE},
			domain.Explanation{Feature: "No interacting allergy reported", Influence: 20, Direction: domain.POSITIVE},
		)
	}
}

// ruleNausea recommends an antiemetic. No explanation entries are emitted.
func (e *RuleEngine) ruleNausea(p *domain.PatientRecord, f patientFactors, acc *accumulator) {
	if !containsString(p.Symptoms, "Nausea") {
		return
	}

	dosage := "4-8mg"
	if f.Elderly {
		dosage = "4mg"
	}

	acc.recommendations = append(acc.recommendations, domain.Recommendation{
		Name:            "Ondansetron (Antiemetic)",
		Confidence:      0.78,
		Dosage:          dosage,
		Frequency:       "Every 8 hours as needed",
		Effectiveness:   "Highly Effective",
		SideEffectsRisk: "Mild Risk",
		ConditionMatch:  "nausea",
	})
	acc.defaultEligible = true
}

// ruleCriticalSymptoms escalates chest pain or dyspnea in a patient with
// cardiac or asthmatic history to an immediate physician consultation.
func (e *RuleEngine) ruleCriticalSymptoms(p *domain.PatientRecord, f patientFactors, acc *accumulator) {
	criticalSymptom := containsString(p.Symptoms, "Chest Pain") || containsString(p.Symptoms, "Shortness of Breath")
	riskHistory := containsString(p.MedicalHistory, "Heart Disease") || containsString(p.MedicalHistory, "Asthma")
	if !criticalSymptom || !riskHistory {
		return
	}

	acc.recommendations = append(acc.recommendations, domain.Recommendation{
		Name:            "Physician Consultation Required",
		Confidence:      0.95,
		Dosage:          "N/A",
		Frequency:       "Immediate",
		Effectiveness:   "Varies",
		SideEffectsRisk: "N/A",
		ConditionMatch:  "critical",
	})
	acc.defaultEligible = true

	acc.explanations = append(acc.explanations,
		domain.Explanation{Feature: "Critical symptom reported", Influence: 50, Direction: domain.NEGATIVE},
		domain.Explanation{Feature: "High-risk cardiac/respiratory history", Influence: 30, Direction: domain.NEGATIVE},
		domain.Explanation{Feature: "Early physician escalation", Influence: 20, Direction: domain.POSITIVE},
	)
}

// ruleMentalHealthContext appends context-only explanation entries when a
// mood-disorder history coincides with fatigue or headache. No
// recommendation is emitted.
func (e *RuleEngine) ruleMentalHealthContext(p *domain.PatientRecord, f patientFactors, acc *accumulator) {
	moodHistory := containsString(p.MedicalHistory, "Depression") || containsString(p.MedicalHistory, "Anxiety")
	relatedSymptom := containsString(p.Symptoms, "Fatigue") || containsString(p.Symptoms, "Headache")
	if !moodHistory || !relatedSymptom {
		return
	}

	acc.explanations = append(acc.explanations,
		domain.Explanation{Feature: "Mental health history may amplify somatic symptoms", Influence: 10, Direction: domain.NEGATIVE},
		domain.Explanation{Feature: "Behavioral support options available", Influence: 10, Direction: domain.POSITIVE},
	)
}

// ruleHeartRateContext appends exactly one heart-rate classification entry,
// only when at least one recommendation already exists.
func (e *RuleEngine) ruleHeartRateContext(p *domain.PatientRecord, f patientFactors, acc *accumulator) {
	if len(acc.recommendations) == 0 {
		return
	}

	switch {
	case f.Tachycardic:
		acc.explanations = append(acc.explanations, domain.Explanation{
			Feature:   fmt.Sprintf("Elevated heart rate (%d bpm)", p.HeartRate),
			Influence: 8,
			Direction: domain.NEGATIVE,
		})
	case f.Bradycardic:
		acc.explanations = append(acc.explanations, domain.Explanation{
			Feature:   fmt.Sprintf("Low heart rate (%d bpm)", p.HeartRate),
			Influence: 8,
			Direction: domain.NEGATIVE,
		})
	default:
		acc.explanations = append(acc.explanations, domain.Explanation{
			Feature:   fmt.Sprintf("Normal heart rate (%d bpm)", p.HeartRate),
			Influence: 5,
			Direction: domain.POSITIVE,
		})
	}
}

// ruleBloodTypeContext appends a small positive entry when the blood type is
// on record and at least one recommendation already exists.
func (e *RuleEngine) ruleBloodTypeContext(p *domain.PatientRecord, f patientFactors, acc *accumulator) {
	if p.BloodType == "" || len(acc.recommendations) == 0 {
		return
	}

	acc.explanations = append(acc.explanations, domain.Explanation{
		Feature:   fmt.Sprintf("Blood type %s on record", p.BloodType),
		Influence: 2,
		Direction: domain.POSITIVE,
	})
}

// ruleDefaultSupportiveCare guarantees a non-empty recommendation list when
// no drug-emitting rule fired.
func (e *RuleEngine) ruleDefaultSupportiveCare(p *domain.PatientRecord, f patientFactors, acc *accumulator) {
	if acc.defaultEligible {
		return
	}

	acc.recommendations = append(acc.recommendations, domain.Recommendation{
		Name:            "General Supportive Care",
		Confidence:      0.65,
		Dosage:          "As directed",
		Frequency:       "Per physician instructions",
		Effectiveness:   "Varies",
		SideEffectsRisk: "Low Risk",
		ConditionMatch:  "general",
	})

	acc.explanations = append(acc.explanations,
		domain.Explanation{Feature: "No specific drug indication from symptoms", Influence: 45, Direction: domain.NEGATIVE},
		domain.Explanation{Feature: "Physician consultation recommended", Influence: 40, Direction: domain.POSITIVE},
		domain.Explanation{Feature: "Supportive care appropriate", Influence: 15, Direction: domain.POSITIVE},
	)
}

// containsString reports whether the set contains the exact value.
// Patient fields are canonical form labels, so matching is by identity,
// order-irrelevant.
func containsString(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
