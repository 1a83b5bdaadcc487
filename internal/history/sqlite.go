package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite consultation store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the consultations table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS consultations (
		id TEXT PRIMARY KEY,
		patient_age INTEGER NOT NULL,
		patient_gender TEXT NOT NULL DEFAULT '',
		heart_rate INTEGER NOT NULL DEFAULT 0,
		blood_type TEXT NOT NULL DEFAULT '',
		allergies TEXT NOT NULL DEFAULT '[]',
		medical_history TEXT NOT NULL DEFAULT '[]',
		symptoms TEXT NOT NULL DEFAULT '[]',
		current_medications TEXT NOT NULL DEFAULT '',
		recommendations TEXT NOT NULL DEFAULT '[]',
		explanations TEXT NOT NULL DEFAULT '[]',
		interactions TEXT NOT NULL DEFAULT '[]',
		source TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_consultations_created_at ON consultations(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanConsultation scans a row into a Consultation, decoding JSON columns.
func scanConsultation(s scanner) (*Consultation, error) {
	c := &Consultation{}
	var allergies, medicalHistory, symptoms, recommendations, explanations, interactions string

	err := s.Scan(
		&c.ID, &c.PatientAge, &c.PatientGender, &c.HeartRate, &c.BloodType,
		&allergies, &medicalHistory, &symptoms, &c.CurrentMedications,
		&recommendations, &explanations, &interactions, &c.Source, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, col := range []struct {
		data string
		dest interface{}
	}{
		{allergies, &c.Allergies},
		{medicalHistory, &c.MedicalHistory},
		{symptoms, &c.Symptoms},
		{recommendations, &c.Recommendations},
		{explanations, &c.Explanations},
		{interactions, &c.Interactions},
	} {
		if err := json.Unmarshal([]byte(col.data), col.dest); err != nil {
			return nil, fmt.Errorf("failed to decode JSON column: %w", err)
		}
	}

	return c, nil
}

// encodeColumns marshals the list fields into their JSON column values.
func encodeColumns(c *Consultation) (map[string]string, error) {
	cols := map[string]interface{}{
		"allergies":       emptyList(c.Allergies),
		"medical_history": emptyList(c.MedicalHistory),
		"symptoms":        emptyList(c.Symptoms),
		"recommendations": c.Recommendations,
		"explanations":    c.Explanations,
		"interactions":    c.Interactions,
	}

	encoded := make(map[string]string, len(cols))
	for name, v := range cols {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		encoded[name] = string(data)
	}
	return encoded, nil
}

func emptyList(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Save stores a consultation record.
func (s *SQLiteStore) Save(ctx context.Context, c *Consultation) error {
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO consultations (
			id, patient_age, patient_gender, heart_rate, blood_type,
			allergies, medical_history, symptoms, current_medications,
			recommendations, explanations, interactions, source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.PatientAge, c.PatientGender, c.HeartRate, c.BloodType,
		cols["allergies"], cols["medical_history"], cols["symptoms"], c.CurrentMedications,
		cols["recommendations"], cols["explanations"], cols["interactions"], c.Source, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	return nil
}

const selectColumns = `id, patient_age, patient_gender, heart_rate, blood_type,
	allergies, medical_history, symptoms, current_medications,
	recommendations, explanations, interactions, source, created_at`

// Get retrieves a consultation by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Consultation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM consultations WHERE id = ? LIMIT 1", id)

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
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Consultation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM consultations ORDER BY created_at DESC LIMIT ? OFFSET ?",
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM consultations").Scan(&count)
	return count, err
}

// Delete removes a consultation by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM consultations WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all consultations to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
