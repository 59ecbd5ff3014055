package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "referral-map/backend/pkg/errors"
	"referral-map/backend/pkg/logger"
)

// Repository persists referral graphs in Neo4j.
//
// A graph is stored as (:Graph {id})-[:HAS_INSTITUTION]->(:Institution),
// with one (:Institution)-[:REFERS {rows}]->(:Institution) relationship per
// unordered neighbour pair. The legend is kept on the graph node as two
// parallel lists.
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// SaveGraph stores g under id, replacing any previous version
func (r *Repository) SaveGraph(ctx context.Context, id string, g *Graph) error {
	institutions, err := institutionParams(g)
	if err != nil {
		return apperrors.NewGraphStoreFailed("save", err)
	}
	labels, rows := legendParams(g.Legend())

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		steps := []struct {
			query  string
			params map[string]any
		}{
			{
				query: `
					MATCH (g:Graph {id: $id})-[:HAS_INSTITUTION]->(i:Institution)
					DETACH DELETE i
				`,
				params: map[string]any{"id": id},
			},
			{
				query: `
					MERGE (g:Graph {id: $id})
					SET g.legend_labels = $labels,
					    g.legend_rows = $rows,
					    g.updated_at = datetime()
				`,
				params: map[string]any{"id": id, "labels": labels, "rows": rows},
			},
			{
				query: `
					MATCH (g:Graph {id: $id})
					UNWIND $institutions AS inst
					CREATE (g)-[:HAS_INSTITUTION]->(:Institution {
						name: inst.name,
						position: inst.position,
						lat: inst.lat,
						lng: inst.lng,
						geocoding: inst.geocoding
					})
				`,
				params: map[string]any{"id": id, "institutions": institutions},
			},
			{
				query: `
					MATCH (g:Graph {id: $id})
					UNWIND $edges AS e
					MATCH (g)-[:HAS_INSTITUTION]->(a:Institution {name: e.source})
					MATCH (g)-[:HAS_INSTITUTION]->(b:Institution {name: e.target})
					CREATE (a)-[:REFERS {rows: e.rows}]->(b)
				`,
				params: map[string]any{"id": id, "edges": edgeParams(g)},
			},
		}

		for _, step := range steps {
			if _, err := tx.Run(ctx, step.query, step.params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return apperrors.NewGraphStoreFailed("save", err)
	}

	r.logger.Info("Graph saved",
		zap.String("graph_id", id),
		zap.Int("institutions", g.Len()),
	)
	return nil
}

// LoadGraph reads the graph stored under id
func (r *Repository) LoadGraph(ctx context.Context, id string) (*Graph, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	loaded, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		head, err := tx.Run(ctx, `
			MATCH (g:Graph {id: $id})
			RETURN g.legend_labels AS labels, g.legend_rows AS rows
		`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !head.Next(ctx) {
			if err := head.Err(); err != nil {
				return nil, err
			}
			return nil, apperrors.NewGraphNotFound(id)
		}
		legend, err := legendFromRecord(head.Record())
		if err != nil {
			return nil, err
		}

		g := New()
		g.SetLegend(legend)

		nodes, err := tx.Run(ctx, `
			MATCH (g:Graph {id: $id})-[:HAS_INSTITUTION]->(i:Institution)
			RETURN i.name AS name, i.lat AS lat, i.lng AS lng, i.geocoding AS geocoding
			ORDER BY i.position
		`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		nodeRecords, err := nodes.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range nodeRecords {
			inst := g.Ensure(getStringFromRecord(record, "name"))
			lat, hasLat := getOptionalFloat64FromRecord(record, "lat")
			lng, hasLng := getOptionalFloat64FromRecord(record, "lng")
			if hasLat && hasLng {
				inst.Coords = &Coords{Lat: lat, Lng: lng}
			}
			if inst.Geocoding, err = getGeocodingFromRecord(record, "geocoding"); err != nil {
				return nil, fmt.Errorf("failed to decode geocoding of %q: %w", inst.Name, err)
			}
		}

		edges, err := tx.Run(ctx, `
			MATCH (g:Graph {id: $id})-[:HAS_INSTITUTION]->(a:Institution)-[r:REFERS]->(b:Institution)
			RETURN a.name AS source, b.name AS target, r.rows AS rows
		`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		edgeRecords, err := edges.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range edgeRecords {
			from := getStringFromRecord(record, "source")
			to := getStringFromRecord(record, "target")
			if _, ok := g.Get(from); !ok {
				continue
			}
			if _, ok := g.Get(to); !ok {
				continue
			}
			for _, row := range getIntSliceFromRecord(record, "rows") {
				g.Connect(from, to, row)
			}
		}
		return g, nil
	})
	if err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeGraph) {
			return nil, err
		}
		return nil, apperrors.NewGraphStoreFailed("load", err)
	}

	return loaded.(*Graph), nil
}

// ListGraphs returns the ids of all stored graphs
func (r *Repository) ListGraphs(ctx context.Context) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `MATCH (g:Graph) RETURN g.id AS id ORDER BY id`, nil)
	if err != nil {
		return nil, apperrors.NewGraphStoreFailed("list", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, apperrors.NewGraphStoreFailed("list", err)
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, getStringFromRecord(record, "id"))
	}
	return ids, nil
}

// DeleteGraph removes a stored graph and its institutions
func (r *Repository) DeleteGraph(ctx context.Context, id string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (g:Graph {id: $id})
		OPTIONAL MATCH (g)-[:HAS_INSTITUTION]->(i:Institution)
		DETACH DELETE i, g
	`, map[string]any{"id": id})
	if err != nil {
		return apperrors.NewGraphStoreFailed("delete", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return apperrors.NewGraphStoreFailed("delete", err)
	}
	if summary.Counters().NodesDeleted() == 0 {
		return apperrors.NewGraphNotFound(id)
	}

	r.logger.Info("Graph deleted", zap.String("graph_id", id))
	return nil
}

func institutionParams(g *Graph) ([]map[string]any, error) {
	params := make([]map[string]any, 0, g.Len())
	for position, inst := range g.Institutions() {
		p := map[string]any{
			"name":      inst.Name,
			"position":  int64(position),
			"lat":       nil,
			"lng":       nil,
			"geocoding": nil,
		}
		if inst.Coords != nil {
			p["lat"] = inst.Coords.Lat
			p["lng"] = inst.Coords.Lng
		}
		if inst.Geocoding != nil {
			encoded, err := json.Marshal(inst.Geocoding)
			if err != nil {
				return nil, fmt.Errorf("failed to encode geocoding of %q: %w", inst.Name, err)
			}
			p["geocoding"] = string(encoded)
		}
		params = append(params, p)
	}
	return params, nil
}

// edgeParams emits each unordered neighbour pair once, from the
// institution that comes first in iteration order.
func edgeParams(g *Graph) []map[string]any {
	position := make(map[string]int, g.Len())
	for i, name := range g.order {
		position[name] = i
	}

	var edges []map[string]any
	for _, inst := range g.Institutions() {
		for _, neighbour := range inst.NeighbourNames() {
			if position[neighbour] < position[inst.Name] {
				continue
			}
			edges = append(edges, map[string]any{
				"source": inst.Name,
				"target": neighbour,
				"rows":   toInt64s(inst.Neighbours[neighbour].Sorted()),
			})
		}
	}
	if edges == nil {
		edges = []map[string]any{}
	}
	return edges
}

func legendParams(legend Legend) ([]string, []int64) {
	labels := make([]string, len(legend))
	rows := make([]int64, len(legend))
	for i, entry := range legend {
		labels[i] = entry.Label
		rows[i] = int64(entry.RowIndex)
	}
	return labels, rows
}

func legendFromRecord(record *neo4j.Record) (Legend, error) {
	labels := getStringSliceFromRecord(record, "labels")
	rows := getIntSliceFromRecord(record, "rows")
	if len(labels) != len(rows) {
		return nil, fmt.Errorf("legend has %d labels but %d rows", len(labels), len(rows))
	}
	legend := make(Legend, len(labels))
	for i := range labels {
		legend[i] = LegendEntry{Label: labels[i], RowIndex: rows[i]}
	}
	return legend, nil
}
