package domain

import (
	"time"
)

// Core Enums and Types

// Gender represents the patient's reported gender
type Gender string

const (
	MALE   Gender = "male"
	FEMALE Gender = "female"
	OTHER  Gender = "other"
)

// Direction indicates whether a factor pushed the recommendation up or down
type Direction string

const (
	POSITIVE Direction = "positive"
	NEGATIVE Direction = "negative"
)

// Severity represents the clinical severity of a drug interaction
type Severity string

const (
	LOW      Severity = "low"
	MODERATE Severity = "moderate"
	HIGH     Severity = "high"
)

// Request/Response Models

// PatientRecord represents a validated patient intake record.
// It is treated as immutable once handed to the engine.
type PatientRecord struct {
	Age                int      `json:"age" binding:"gte=0"`
	Gender             Gender   `json:"gender" binding:"omitempty,oneof=male female other"`
	HeartRate          int      `json:"heartRate"`
	BloodType          string   `json:"bloodType" binding:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies          []string `json:"allergies"`
	MedicalHistory     []string `json:"medicalHistory"`
	Symptoms           []string `json:"symptoms" binding:"required,min=1"`
	CurrentMedications string   `json:"currentMedications"`
}

// Recommendation represents a single drug (or care) recommendation.
// Recommendations are produced fresh per evaluation in rule-trigger order
// and may contain duplicates when multiple rules fire independently.
type Recommendation struct {
	Name            string  `json:"name"`
	Confidence      float64 `json:"confidence"`
	Dosage          string  `json:"dosage"`
	Frequency       string  `json:"frequency"`
	Effectiveness   string  `json:"effectiveness"`
	SideEffectsRisk string  `json:"sideEffectsRisk"`
	ConditionMatch  string  `json:"conditionMatch"`
}

// Explanation represents a single influence factor behind the overall result.
// Influence is a raw magnitude until normalization rescales the full sequence
// to sum to 100.
type Explanation struct {
	Feature   string    `json:"feature"`
	Influence int       `json:"influence"`
	Direction Direction `json:"direction"`
}

// Interaction represents a flagged clinical risk between two entities.
// Drug1/Drug2 may name a drug, a disease, or a drug class depending on the
// rule that produced the interaction.
type Interaction struct {
	Drug1       string   `json:"drug1"`
	Drug2       string   `json:"drug2"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// RecommendationResult is the unit returned to the caller: three ordered
// sequences, constructed per request and never persisted by the engine.
type RecommendationResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	Explanations    []Explanation    `json:"explanations"`
	Interactions    []Interaction    `json:"interactions"`
}

// ConsultationResponse is the API response for a recommendation request.
// ConsultationID is present only when a history store is configured and the
// record was persisted successfully.
type ConsultationResponse struct {
	ConsultationID  string           `json:"consultationId,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	Explanations    []Explanation    `json:"explanations"`
	Interactions    []Interaction    `json:"interactions"`
	Source          string           `json:"source"`
	Timestamp       time.Time        `json:"timestamp"`
}

// Result sources reported to API consumers
const (
	SourceRemote = "shap-service"
	SourceLocal  = "rule-engine"
)
