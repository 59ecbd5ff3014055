package graph

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"referral-map/backend/internal/constants"
	"referral-map/backend/internal/table"
	"referral-map/backend/pkg/logger"
)

// Builder turns referral tables into graphs
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a builder that logs through the global logger
func NewBuilder() *Builder {
	return &Builder{logger: logger.Get()}
}

// NewBuilderWithLogger creates a builder with an explicit logger
func NewBuilderWithLogger(log *zap.Logger) *Builder {
	return &Builder{logger: log}
}

// Build builds the graph of one table. Rows up to and including the
// header are ignored; without a header the graph is empty.
func (b *Builder) Build(rows table.RecordTable) *Graph {
	g := New()

	header := findHeader(rows)
	if header < 0 {
		b.logger.Warn("No header row found, table produced an empty graph",
			zap.Int("rows", len(rows)),
		)
		return g
	}

	legend := Legend{}
	for x := header + 1; x < len(rows); x++ {
		primary := cell(rows, x, constants.PrimaryColumn)
		if primary == "" {
			continue
		}

		legend = append(legend, LegendEntry{
			Label:    fmt.Sprintf("%s%d %s", constants.LegendLabelPrefix, len(legend)+1, primary),
			RowIndex: x,
		})
		g.Ensure(primary)

		for y := constants.FirstSecondaryColumn; y < len(rows[x]); y += constants.SecondaryStride {
			secondary := cell(rows, x, y)
			if secondary == "" {
				continue
			}
			g.Ensure(secondary)
			g.Connect(primary, secondary, x)
		}
	}
	g.SetLegend(legend)

	b.logger.Debug("Graph built from table",
		zap.Int("header_row", header),
		zap.Int("institutions", g.Len()),
		zap.Int("legend_entries", len(legend)),
	)
	return g
}

// BuildFrom decodes r and builds its graph. Decoder failures are
// returned unchanged.
func (b *Builder) BuildFrom(ctx context.Context, dec table.Decoder, r io.Reader) (*Graph, error) {
	rows, err := dec.Decode(ctx, r)
	if err != nil {
		return nil, err
	}
	return b.Build(rows), nil
}

// Build builds a graph with a default builder
func Build(rows table.RecordTable) *Graph {
	return NewBuilder().Build(rows)
}

// findHeader returns the index of the first header row, or -1
func findHeader(rows table.RecordTable) int {
	for x, row := range rows {
		if len(row) < 3 {
			continue
		}
		if strings.ToUpper(strings.TrimSpace(row[0])) == constants.HeaderApplicationID &&
			strings.ToUpper(strings.TrimSpace(row[1])) == constants.HeaderPI &&
			strings.ToUpper(strings.TrimSpace(row[2])) == constants.HeaderHosp {
			return x
		}
	}
	return -1
}

// cell returns the trimmed cell, "" past the end of the row
func cell(rows table.RecordTable, row, col int) string {
	return strings.TrimSpace(rows.Cell(row, col))
}
