// Package history provides persistent storage for consultation records:
// the patient intake snapshot together with the recommendation result that
// was returned. The engine itself never touches storage; the API layer
// saves a record after each evaluation.
package history

import (
	"context"
	"io"
	"time"

	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

// Consultation represents one stored consultation: the patient inputs and
// the result sequences, the latter held in JSON columns.
type Consultation struct {
	ID                 string                  `json:"id"`
	PatientAge         int                     `json:"patient_age"`
	PatientGender      string                  `json:"patient_gender"`
	HeartRate          int                     `json:"heart_rate"`
	BloodType          string                  `json:"blood_type,omitempty"`
	Allergies          []string                `json:"allergies"`
	MedicalHistory     []string                `json:"medical_history"`
	Symptoms           []string                `json:"symptoms"`
	CurrentMedications string                  `json:"current_medications,omitempty"`
	Recommendations    []domain.Recommendation `json:"recommendations"`
	Explanations       []domain.Explanation    `json:"explanations"`
	Interactions       []domain.Interaction    `json:"interactions"`
	Source             string                  `json:"source"`
	CreatedAt          time.Time               `json:"created_at"`
}

// Store defines the interface for consultation storage operations.
type Store interface {
	// Save stores a consultation record. A missing ID is assigned.
	Save(ctx context.Context, c *Consultation) error

	// Get retrieves a consultation by ID. Returns (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Consultation, error)

	// List returns consultations newest-first with pagination.
	List(ctx context.Context, limit, offset int) ([]*Consultation, error)

	// Count returns the total number of stored consultations.
	Count(ctx context.Context) (int64, error)

	// Delete removes a consultation by ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes all consultations as a JSON document.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close releases the underlying resources.
	Close() error
}

// ConsultationExport is the JSON export envelope.
type ConsultationExport struct {
	Version       string          `json:"version"`
	ExportedAt    time.Time       `json:"exported_at"`
	Count         int             `json:"count"`
	Consultations []*Consultation `json:"consultations"`
}
