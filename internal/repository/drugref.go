// Package repository provides persistence for the drug reference tables.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

// DrugRecord represents a row in the drug reference table.
type DrugRecord struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DrugClass   string    `json:"drug_class"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// DrugReferenceRepository handles the drugs and drug_interactions
// reference tables.
type DrugReferenceRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewDrugReferenceRepository creates a new drug reference repository
func NewDrugReferenceRepository(db *pgxpool.Pool, logger *logrus.Logger) *DrugReferenceRepository {
	return &DrugReferenceRepository{
		db:  db,
		log: logger,
	}
}

// UpsertDrug inserts or updates a drug reference record by name.
func (r *DrugReferenceRepository) UpsertDrug(ctx context.Context, drug *DrugRecord) error {
	if drug.ID == uuid.Nil {
		drug.ID = uuid.New()
	}

	query := `
		INSERT INTO drugs (id, name, drug_class, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			drug_class = EXCLUDED.drug_class,
			description = EXCLUDED.description`

	_, err := r.db.Exec(ctx, query, drug.ID, drug.Name, drug.DrugClass, drug.Description)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"drug":  drug.Name,
			"error": err,
		}).Error("Failed to upsert drug")
		return fmt.Errorf("upserting drug: %w", err)
	}

	return nil
}

// GetDrugByName retrieves a drug reference record by name.
func (r *DrugReferenceRepository) GetDrugByName(ctx context.Context, name string) (*DrugRecord, error) {
	query := `
		SELECT id, name, drug_class, description, created_at
		FROM drugs
		WHERE name = $1`

	var drug DrugRecord
	err := r.db.QueryRow(ctx, query, name).Scan(
		&drug.ID,
		&drug.Name,
		&drug.DrugClass,
		&drug.Description,
		&drug.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("drug %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting drug: %w", err)
	}

	return &drug, nil
}

// ListDrugs returns all drug reference records ordered by name.
func (r *DrugReferenceRepository) ListDrugs(ctx context.Context) ([]DrugRecord, error) {
	query := `
		SELECT id, name, drug_class, description, created_at
		FROM drugs
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing drugs: %w", err)
	}
	defer rows.Close()

	var drugs []DrugRecord
	for rows.Next() {
		var drug DrugRecord
		if err := rows.Scan(&drug.ID, &drug.Name, &drug.DrugClass, &drug.Description, &drug.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning drug: %w", err)
		}
		drugs = append(drugs, drug)
	}

	return drugs, rows.Err()
}

// ListInteractionRules returns all drug interaction reference records.
func (r *DrugReferenceRepository) ListInteractionRules(ctx context.Context) ([]domain.Interaction, error) {
	query := `
		SELECT drug1, drug2, severity, description
		FROM drug_interactions
		ORDER BY drug1, drug2`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing interaction rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.Interaction
	for rows.Next() {
		var rule domain.Interaction
		if err := rows.Scan(&rule.Drug1, &rule.Drug2, &rule.Severity, &rule.Description); err != nil {
			return nil, fmt.Errorf("scanning interaction rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// SeedInteractionRules upserts the built-in interaction catalog into the
// reference table so reporting tools can query it.
func (r *DrugReferenceRepository) SeedInteractionRules(ctx context.Context, catalog []domain.Interaction) error {
	query := `
		INSERT INTO drug_interactions (id, drug1, drug2, severity, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (drug1, drug2) DO UPDATE SET
			severity = EXCLUDED.severity,
			description = EXCLUDED.description`

	for _, rule := range catalog {
		if _, err := r.db.Exec(ctx, query, uuid.New(), rule.Drug1, rule.Drug2, rule.Severity, rule.Description); err != nil {
			return fmt.Errorf("seeding interaction rule %s/%s: %w", rule.Drug1, rule.Drug2, err)
		}
	}

	r.log.WithField("rules", len(catalog)).Info("Interaction reference rules seeded")
	return nil
}
