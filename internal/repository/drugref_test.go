package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Apps-1-2-3/medai-assistant/internal/database"
	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	testPassword := generateTestPassword()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping: failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	config := domain.DatabaseConfig{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		SSLMode:     "disable",
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	// Run migrations
	databaseURL := "postgres://testuser:" + testPassword + "@" + host + ":" + port.Port() + "/testdb?sslmode=disable"
	migrationRunner, err := database.NewMigrationRunner(databaseURL, "../../migrations", logger)
	if err != nil {
		t.Fatalf("Failed to create migration runner: %v", err)
	}

	if err := migrationRunner.Up(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

func testRepo(db *database.DB) *DrugReferenceRepository {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewDrugReferenceRepository(db.Pool, logger)
}

func TestDrugReferenceRepository_UpsertAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := testRepo(db)
	ctx := context.Background()

	drug := &DrugRecord{
		Name:        "Acetaminophen (Paracetamol)",
		DrugClass:   "Analgesic",
		Description: "Analgesic and antipyretic",
	}

	if err := repo.UpsertDrug(ctx, drug); err != nil {
		t.Fatalf("Failed to upsert drug: %v", err)
	}

	retrieved, err := repo.GetDrugByName(ctx, "Acetaminophen (Paracetamol)")
	if err != nil {
		t.Fatalf("Failed to retrieve drug: %v", err)
	}

	if retrieved.ID != drug.ID {
		t.Errorf("Expected ID %s, got %s", drug.ID, retrieved.ID)
	}
	if retrieved.DrugClass != "Analgesic" {
		t.Errorf("Expected drug class Analgesic, got %s", retrieved.DrugClass)
	}

	// Upsert with the same name updates, not duplicates
	drug.Description = "Updated description"
	if err := repo.UpsertDrug(ctx, drug); err != nil {
		t.Fatalf("Failed to re-upsert drug: %v", err)
	}

	drugs, err := repo.ListDrugs(ctx)
	if err != nil {
		t.Fatalf("Failed to list drugs: %v", err)
	}
	if len(drugs) != 1 {
		t.Errorf("Expected 1 drug, got %d", len(drugs))
	}
	if drugs[0].Description != "Updated description" {
		t.Errorf("Expected updated description, got %s", drugs[0].Description)
	}
}

func TestDrugReferenceRepository_GetDrugByName_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := testRepo(db)

	_, err := repo.GetDrugByName(context.Background(), "Nonexistent Drug")
	if err == nil {
		t.Fatal("Expected error for missing drug")
	}
}

func TestDrugReferenceRepository_SeedAndListInteractionRules(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := testRepo(db)
	ctx := context.Background()

	catalog := []domain.Interaction{
		{Drug1: "Warfarin", Drug2: "Acetaminophen", Severity: domain.MODERATE, Description: "Monitor INR"},
		{Drug1: "Liver Disease", Drug2: "Acetaminophen", Severity: domain.HIGH, Description: "Reduce dose or avoid"},
	}

	if err := repo.SeedInteractionRules(ctx, catalog); err != nil {
		t.Fatalf("Failed to seed interaction rules: %v", err)
	}

	// Seeding twice upserts rather than duplicating
	if err := repo.SeedInteractionRules(ctx, catalog); err != nil {
		t.Fatalf("Failed to re-seed interaction rules: %v", err)
	}

	rules, err := repo.ListInteractionRules(ctx)
	if err != nil {
		t.Fatalf("Failed to list interaction rules: %v", err)
	}
	if len(rules) != 2 {
		t.Errorf("Expected 2 rules, got %d", len(rules))
	}
}
