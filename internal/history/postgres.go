package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL consultation store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL consultation store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

const pgSelectColumns = `id, patient_age, patient_gender, heart_rate, blood_type,
	allergies, medical_history, symptoms, current_medications,
	recommendations, explanations, interactions, source, created_at`

// Save stores a consultation record.
func (s *PostgresStore) Save(ctx context.Context, c *Consultation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	cols, err := encodeColumns(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO consultations (
			id, patient_age, patient_gender, heart_rate, blood_type,
			allergies, medical_history, symptoms, current_medications,
			recommendations, explanations, interactions, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = s.db.ExecContext(ctx, query,
		c.ID, c.PatientAge, c.PatientGender, c.HeartRate, c.BloodType,
		cols["allergies"], cols["medical_history"], cols["symptoms"], c.CurrentMedications,
		cols["recommendations"], cols["explanations"], cols["interactions"], c.Source, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save consultation: %w", err)
	}

	return nil
}

// Get retrieves a consultation by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Consultation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+pgSelectColumns+" FROM consultations WHERE id = $1 LIMIT 1", id)

	c, err := scanConsultation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return c, nil
}

// List returns consultations newest-first with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Consultation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+pgSelectColumns+" FROM consultations ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Count returns the total number of consultations.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM consultations").Scan(&count)
	return count, err
}

// Delete removes a consultation by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM consultations WHERE id = $1", id)
	return err
}

// ExportJSON exports all consultations to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list consultations: %w", err)
	}

	export := &ConsultationExport{
		Version:       "1.0",
		ExportedAt:    time.Now(),
		Count:         len(all),
		Consultations: all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
