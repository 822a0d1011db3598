package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/wanjohi/buildcalc/internal/materials"
)

// Page layout constants (A4 portrait in mm).
const (
	pageWidth   = 210.0
	marginLeft  = 15.0
	marginRight = 15.0
	marginTop   = 15.0
	qrSize      = 24.0
)

// PDF renders the document as a printable estimate sheet. When ShareURL is
// set, a QR code linking back to the saved estimate sits in the top right
// corner.
func (d Document) PDF() ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight-qrSize, 10, d.Title, "", 0, "L", false, 0, "")

	if d.ShareURL != "" {
		qrPNG, err := qrcode.Encode(d.ShareURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("generate QR code: %w", err)
		}
		imgName := "qr_" + d.Reference
		pdf.RegisterImageOptionsReader(imgName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))
		pdf.ImageOptions(imgName, pageWidth-marginRight-qrSize, marginTop, qrSize, qrSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.SetXY(marginLeft, marginTop+10)
	meta := d.Reference
	if !d.CreatedAt.IsZero() {
		meta = fmt.Sprintf("%s - %s", d.Reference, d.CreatedAt.Format("2 Jan 2006"))
	}
	pdf.CellFormat(120, 5, meta, "", 0, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	y := marginTop + 24.0

	if len(d.Inputs) > 0 {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetXY(marginLeft, y)
		pdf.CellFormat(100, 6, "Inputs", "", 0, "L", false, 0, "")
		y += 8

		pdf.SetFont("Helvetica", "", 10)
		for _, in := range d.Inputs {
			pdf.SetXY(marginLeft+5, y)
			pdf.CellFormat(60, 5, in.Label, "", 0, "L", false, 0, "")
			pdf.CellFormat(60, 5, in.Value, "", 0, "L", false, 0, "")
			y += 6
		}
		y += 4
	}

	colWidths := []float64{70, 30, 25, 25, 30}
	headers := []string{"Material", "Quantity", "Unit", "Price", "Cost"}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	x := marginLeft
	for i, h := range headers {
		pdf.SetXY(x, y)
		pdf.CellFormat(colWidths[i], 7, h, "1", 0, "C", true, 0, "")
		x += colWidths[i]
	}
	y += 7

	pdf.SetFont("Helvetica", "", 10)
	for i, l := range d.Lines {
		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		row := []string{
			l.Name,
			materials.FormatAmount(l.Quantity),
			l.Unit,
			materials.FormatAmount(l.Price),
			materials.FormatAmount(l.Cost()),
		}
		x = marginLeft
		for j, cell := range row {
			align := "R"
			if j == 0 {
				align = "L"
			}
			pdf.SetXY(x, y)
			pdf.CellFormat(colWidths[j], 6, cell, "1", 0, align, true, 0, "")
			x += colWidths[j]
		}
		y += 6
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(colWidths[0]+colWidths[1]+colWidths[2]+colWidths[3], 7, "Total ("+d.Currency+")", "1", 0, "R", false, 0, "")
	pdf.CellFormat(colWidths[4], 7, materials.FormatAmount(d.Total), "1", 0, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
