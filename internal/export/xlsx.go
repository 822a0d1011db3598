// Package export renders saved estimates as downloadable XLSX and PDF
// documents.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/wanjohi/buildcalc/internal/estimate"
	"github.com/wanjohi/buildcalc/internal/materials"
)

// Document is one saved estimate prepared for download.
type Document struct {
	Reference string
	Title     string
	CreatedAt time.Time
	Currency  string
	Inputs    []estimate.Input
	Lines     []materials.Line
	Total     float64
	// ShareURL links back to the saved estimate; when set, the PDF carries
	// it as a QR code.
	ShareURL string
}

// FileName returns the download name for the given extension.
func (d Document) FileName(ext string) string {
	return "estimate-" + d.Reference + "." + ext
}

// XLSX renders the document as a spreadsheet: a metadata block, the inputs,
// one row per material line, and a total row.
func (d Document) XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	rows := [][]interface{}{
		{d.Title},
		{"Reference", d.Reference},
		{"Date", d.CreatedAt.Format("2006-01-02")},
		{},
	}
	for _, in := range d.Inputs {
		rows = append(rows, []interface{}{in.Label, in.Value})
	}
	rows = append(rows,
		[]interface{}{},
		[]interface{}{"Material", "Quantity", "Unit", "Price (" + d.Currency + ")", "Cost (" + d.Currency + ")"},
	)
	for _, l := range d.Lines {
		rows = append(rows, []interface{}{l.Name, l.Quantity, l.Unit, l.Price, l.Cost()})
	}
	rows = append(rows,
		[]interface{}{},
		[]interface{}{"Total", "", "", "", d.Total},
	)

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("compute cell for row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
