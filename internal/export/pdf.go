package export

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
)

// renderPDF lays out a Letter page: title, optional image with caption, the
// labelled fields, free text body and an optional table.
func renderPDF(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	// core fonts are cp1252; translate so accents and ñ survive
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Title ────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(contentW, 8, tr(doc.Title), "", "C", false)
	pdf.Ln(4)

	// ── Image ────────────────────────────────────────────────────────────────
	if doc.ImagePath != "" {
		if _, err := os.Stat(doc.ImagePath); err == nil {
			opts := fpdf.ImageOptions{ReadDpi: true, ImageType: imageType(doc.ImagePath)}
			info := pdf.RegisterImageOptions(doc.ImagePath, opts)
			if pdf.Ok() && info != nil {
				w := 50.0
				h := w * info.Height() / info.Width()
				pdf.ImageOptions(doc.ImagePath, (pageW-w)/2, pdf.GetY(), w, h, false, opts, 0, "")
				pdf.SetY(pdf.GetY() + h + 2)
			}
			if !pdf.Ok() {
				// an unreadable image must not sink the whole document
				pdf.ClearError()
			}
		}
		if doc.Caption != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(contentW, 5, tr(doc.Caption), "", "C", false)
		}
		pdf.Ln(3)
	}

	// ── Fields ───────────────────────────────────────────────────────────────
	labelW := contentW * 0.35
	for _, f := range doc.Fields {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(labelW, 6, tr(f.Label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(contentW-labelW, 6, tr(f.Value), "", "L", false)
	}

	// ── Body ─────────────────────────────────────────────────────────────────
	if strings.TrimSpace(doc.Body) != "" {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(contentW, 6, tr(doc.Body), "", "L", false)
	}

	// ── Table ────────────────────────────────────────────────────────────────
	if len(doc.Header) > 0 {
		pdf.Ln(4)
		colW := contentW / float64(len(doc.Header))
		pdf.SetFont("Helvetica", "B", 9)
		for _, h := range doc.Header {
			pdf.CellFormat(colW, 6, tr(h), "B", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
		for _, row := range doc.Rows {
			for i := range doc.Header {
				v := ""
				if i < len(row) {
					v = row[i]
				}
				pdf.CellFormat(colW, 5, tr(v), "", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

func imageType(path string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".png"):
		return "PNG"
	case strings.HasSuffix(strings.ToLower(path), ".gif"):
		return "GIF"
	default:
		return "JPG"
	}
}
