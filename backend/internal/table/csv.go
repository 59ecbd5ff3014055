package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"

	apperrors "referral-map/backend/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVDecoder reads comma separated text. Records may carry any number of
// fields and stray quotes are tolerated.
type CSVDecoder struct {
	Source string
	Comma  rune // defaults to ','
}

// Decode reads every record from r.
func (d CSVDecoder) Decode(ctx context.Context, r io.Reader) (RecordTable, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewMalformedTable(d.source(), err)
	}
	content = bytes.TrimPrefix(content, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if d.Comma != 0 {
		reader.Comma = d.Comma
	}

	var rows RecordTable
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewMalformedTable(d.source(), err)
		}
		rows = append(rows, record)
	}

	return rows, nil
}

func (d CSVDecoder) source() string {
	if d.Source == "" {
		return "csv"
	}
	return d.Source
}
