package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "referral-map/backend/pkg/errors"
)

func TestSplitStatements(t *testing.T) {
	script := `
		// comment only
		CREATE INDEX a IF NOT EXISTS FOR (n:A) ON (n.x);   // trailing

		CREATE INDEX b IF NOT EXISTS FOR (n:B) ON (n.y);
		;
	`
	assert.Equal(t, []string{
		"CREATE INDEX a IF NOT EXISTS FOR (n:A) ON (n.x)",
		"CREATE INDEX b IF NOT EXISTS FOR (n:B) ON (n.y)",
	}, splitStatements(script))
}

func TestSchemaSteps_NotEmpty(t *testing.T) {
	for _, step := range schemaSteps {
		assert.NotEmpty(t, splitStatements(step.query), step.name)
	}
}

func TestRepository_EnsureSchema(t *testing.T) {
	driver := createTestDriver(t)

	repo := NewRepository(driver)
	ctx := context.Background()
	// Running twice must succeed
	for i := 0; i < 2; i++ {
		if err := repo.EnsureSchema(ctx); err != nil {
			t.Fatalf("EnsureSchema failed: %v", err)
		}
	}

	if err := repo.MarkSchemaApplied(ctx); err != nil {
		t.Fatalf("MarkSchemaApplied failed: %v", err)
	}
	applied, err := repo.SchemaApplied(ctx)
	if err != nil {
		t.Fatalf("SchemaApplied failed: %v", err)
	}
	if !applied {
		t.Error("Expected schema to be marked as applied")
	}
}

func TestRepository_SchemaApplied_ReportsStreamErrors(t *testing.T) {
	driver := createTestDriver(t)

	repo := NewRepository(driver)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	applied, err := repo.SchemaApplied(ctx)
	if err == nil {
		t.Fatal("Expected an error for a cancelled context")
	}
	if applied {
		t.Error("A failed check must not report the schema as applied")
	}
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeStore) {
		t.Errorf("Expected store error, got %v", err)
	}
}
