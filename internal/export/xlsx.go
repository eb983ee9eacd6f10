package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const notesColumnWidth = 80

// WriteXLSX writes rows to a single-sheet workbook: no header, row i of the
// slice lands on sheet row i+1.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("creating notes style: %w", err)
	}
	if err := f.SetColStyle(sheet, "E", wrap); err != nil {
		return fmt.Errorf("styling notes column: %w", err)
	}
	if err := f.SetColWidth(sheet, "E", "E", notesColumnWidth); err != nil {
		return fmt.Errorf("sizing notes column: %w", err)
	}

	for i, row := range rows {
		for j, value := range row.Cells() {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("locating cell: %w", err)
			}
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return fmt.Errorf("writing cell %s: %w", cell, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// WriteJSON writes the records as an indented JSON array.
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	return nil
}
