package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// renderSpreadsheet writes Header/Rows as a table, or Fields as a two-column
// "Campo / Valor" sheet when no table is given.
func renderSpreadsheet(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := doc.Sheet
	if sheet == "" {
		sheet = "Hoja1"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("xlsx: sheet name: %w", err)
	}

	header, rows := doc.Header, doc.Rows
	if len(header) == 0 {
		header = []string{"Campo", "Valor"}
		rows = make([][]string, 0, len(doc.Fields))
		for _, fl := range doc.Fields {
			rows = append(rows, []string{fl.Label, fl.Value})
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(sheet, cell, &vals)
}
