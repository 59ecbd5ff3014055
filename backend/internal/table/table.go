// Package table decodes referral spreadsheets into rectangular rows of
// string cells. Quoting and cell typing are the decoders' concern; the
// graph builder only ever sees plain string cells.
package table

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	apperrors "referral-map/backend/pkg/errors"
)

// RecordTable is a sequence of rows, each a sequence of cells. Rows may
// differ in length.
type RecordTable [][]string

// Decoder turns raw file content into a RecordTable. Failures are
// reported as *errors.ErrMalformedTable.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) (RecordTable, error)
}

// DecoderFor picks a decoder from the file extension.
func DecoderFor(filename string) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return CSVDecoder{Source: filename}, nil
	case ".xlsx", ".xlsm":
		return XLSXDecoder{Source: filename}, nil
	default:
		return nil, apperrors.NewUnsupportedTableFormat(filename)
	}
}

// Cell returns row[i], or "" when the row is shorter.
func (t RecordTable) Cell(row, col int) string {
	if row < 0 || row >= len(t) || col < 0 || col >= len(t[row]) {
		return ""
	}
	return t[row][col]
}
