package table

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	apperrors "referral-map/backend/pkg/errors"
)

// XLSXDecoder reads one worksheet of an Excel workbook.
type XLSXDecoder struct {
	Source string
	Sheet  string // defaults to the first sheet
}

// Decode opens the workbook and returns the rows of the chosen sheet.
// Trailing empty cells are dropped by excelize, so row lengths vary.
func (d XLSXDecoder) Decode(ctx context.Context, r io.Reader) (RecordTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewMalformedTable(d.source(), err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sheet := d.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewMalformedTable(d.source(), fmt.Errorf("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewMalformedTable(d.source(), err)
	}

	return RecordTable(rows), nil
}

func (d XLSXDecoder) source() string {
	if d.Source == "" {
		return "xlsx"
	}
	return d.Source
}
