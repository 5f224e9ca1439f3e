package infra

// pdf.go — import summary report generation using go-pdf/fpdf.
// One page (or more, flowing) with:
//   - Batch header: file name, upload time, final status
//   - Counters: products seen, products changed, products rejected
//   - Rejected-row table (line, product, reason)
//
// The output file is saved to storagePath/import_{batchID}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
)

// ReportLine is one rejected row in the report.
type ReportLine struct {
	Line    int
	Product string
	Reason  string
}

// GenerateImportReportPDF renders the outcome of a finished batch.
// storagePath is the directory where the PDF will be written (created if
// needed). Returns the absolute path to the generated file.
func GenerateImportReportPDF(batch *model.ImportBatch, rejected []ReportLine, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("import_%s.pdf", batch.ID)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Price List Import Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6, batch.FileName, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 6, "Uploaded "+batch.CreatedAt.Format("02 Jan 2006 15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 6, "Status: "+batch.Status, "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// ── Counters ─────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 7, fmt.Sprintf("%d products read, %d changed, %d rejected",
		batch.TotalProducts, batch.ChangedProducts, batch.ErrorCount), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// ── Rejected rows ────────────────────────────────────────────────────────
	if len(rejected) > 0 {
		col1 := contentW * 0.10 // line
		col2 := contentW * 0.40 // product
		col3 := contentW * 0.50 // reason

		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(col1, 6, "Line", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 6, "Product", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 6, "Reason", "B", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		for _, row := range rejected {
			product := row.Product
			if len(product) > 40 {
				product = product[:39] + "…"
			}
			pdf.CellFormat(col1, 5, fmt.Sprintf("%d", row.Line), "", 0, "L", false, 0, "")
			pdf.CellFormat(col2, 5, product, "", 0, "L", false, 0, "")
			pdf.CellFormat(col3, 5, row.Reason, "", 1, "L", false, 0, "")
		}
	} else {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(contentW, 6, "No rows were rejected.", "", 1, "L", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}

	return filePath, nil
}
