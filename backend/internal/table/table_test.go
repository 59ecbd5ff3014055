package table

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "referral-map/backend/pkg/errors"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestCSVDecoder_RaggedRowsAndBOM(t *testing.T) {
	input := "\xEF\xBB\xBFAPPLICATION ID,PI,HOSP\n" +
		"A1,Smith,\"Hospital A\",x,\"Hospital B, Annex\"\n" +
		"A2,Jones\n"

	rows, err := CSVDecoder{}.Decode(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "APPLICATION ID", rows[0][0])
	assert.Equal(t, "Hospital B, Annex", rows[1][4])
	assert.Len(t, rows[2], 2)
	assert.Equal(t, "", rows.Cell(2, 2))
}

func TestCSVDecoder_Semicolon(t *testing.T) {
	rows, err := CSVDecoder{Comma: ';'}.Decode(context.Background(), strings.NewReader("a;b;c\n"))
	require.NoError(t, err)
	assert.Equal(t, RecordTable{{"a", "b", "c"}}, rows)
}

func TestCSVDecoder_ReadFailure(t *testing.T) {
	_, err := CSVDecoder{Source: "referrals.csv"}.Decode(context.Background(), failingReader{})

	var malformed *apperrors.ErrMalformedTable
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "referrals.csv", malformed.Source)
}

func TestXLSXDecoder_FirstSheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellStr("Sheet1", "A1", "APPLICATION ID"))
	require.NoError(t, f.SetCellStr("Sheet1", "B1", "PI"))
	require.NoError(t, f.SetCellStr("Sheet1", "C1", "HOSP"))
	require.NoError(t, f.SetCellStr("Sheet1", "C2", "Hospital A"))
	require.NoError(t, f.SetCellStr("Sheet1", "E2", "Hospital B"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := XLSXDecoder{}.Decode(context.Background(), bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"APPLICATION ID", "PI", "HOSP"}, rows[0])
	assert.Equal(t, "Hospital A", rows.Cell(1, 2))
	assert.Equal(t, "Hospital B", rows.Cell(1, 4))
}

func TestXLSXDecoder_NotAWorkbook(t *testing.T) {
	_, err := XLSXDecoder{Source: "bad.xlsx"}.Decode(context.Background(), strings.NewReader("plain text"))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeTable))
}

func TestDecoderFor(t *testing.T) {
	d, err := DecoderFor("Referrals.CSV")
	require.NoError(t, err)
	assert.IsType(t, CSVDecoder{}, d)

	d, err = DecoderFor("referrals.xlsx")
	require.NoError(t, err)
	assert.IsType(t, XLSXDecoder{}, d)

	_, err = DecoderFor("referrals.pdf")
	var unsupported *apperrors.ErrUnsupportedTableFormat
	assert.ErrorAs(t, err, &unsupported)
}
