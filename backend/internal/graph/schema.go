package graph

import (
	"context"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "referral-map/backend/pkg/errors"
)

// SchemaVersion identifies the schema created by EnsureSchema
const SchemaVersion = "referral_schema_v1"

type schemaStep struct {
	name  string
	query string
}

var schemaSteps = []schemaStep{
	{
		name: "Create Constraints",
		query: `
			// One node per stored graph
			CREATE CONSTRAINT graph_id_unique IF NOT EXISTS FOR (g:Graph) REQUIRE g.id IS UNIQUE;
		`,
	},
	{
		name: "Create Indexes",
		query: `
			CREATE INDEX institution_name IF NOT EXISTS FOR (i:Institution) ON (i.name);
			CREATE INDEX institution_position IF NOT EXISTS FOR (i:Institution) ON (i.position);
		`,
	},
}

// EnsureSchema creates the constraints and indexes the repository relies
// on. Every statement is idempotent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for i, step := range schemaSteps {
		r.logger.Debug("Applying schema step",
			zap.Int("step", i+1),
			zap.Int("total", len(schemaSteps)),
			zap.String("name", step.name),
		)
		for _, stmt := range splitStatements(step.query) {
			if _, err := session.Run(ctx, stmt, nil); err != nil {
				return apperrors.NewGraphStoreFailed("schema: "+step.name, err)
			}
		}
	}
	return nil
}

// SchemaApplied reports whether the SchemaVersion marker exists
func (r *Repository) SchemaApplied(ctx context.Context) (bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	applied, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (m:Migration {version: $version})
			RETURN m.applied_at AS applied_at
		`, map[string]any{"version": SchemaVersion})
		if err != nil {
			return false, err
		}
		if result.Next(ctx) {
			return true, nil
		}
		// Next is false both at the end and on a streaming failure
		return false, result.Err()
	})
	if err != nil {
		return false, apperrors.NewGraphStoreFailed("schema status", err)
	}
	return applied.(bool), nil
}

// MarkSchemaApplied records the SchemaVersion marker
func (r *Repository) MarkSchemaApplied(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MERGE (m:Migration {version: $version})
			SET m.applied_at = datetime(),
			    m.description = 'Graph id constraint and institution indexes'
		`, map[string]any{"version": SchemaVersion})
		return nil, err
	})
	if err != nil {
		return apperrors.NewGraphStoreFailed("schema mark", err)
	}
	return nil
}

// splitStatements splits a Cypher script into statements, dropping
// line comments
func splitStatements(script string) []string {
	lines := strings.Split(script, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "//"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}

	var statements []string
	for _, part := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
