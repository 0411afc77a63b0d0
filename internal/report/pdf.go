package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/rrdgate/internal/check"
	"example.com/rrdgate/internal/export"
)

// PDFInput bundles everything a rendered region report needs.
type PDFInput struct {
	Region       string
	GeneratedAt  time.Time
	Snapshot     export.SnapshotDoc
	Acceptance   check.AcceptanceReport
	ManifestHash string
}

// SaveRegionPDF renders a snapshot plus its acceptance findings into a PDF document.
func SaveRegionPDF(in PDFInput, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Datasource Report", false)
	pdf.SetAuthor("rrdctl", false)
	pdf.SetCreator("rrdctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Datasource Report")
	addSummarySection(pdf, in)
	addDatasourceSection(pdf, in.Snapshot.Datasources)
	addFindingsSection(pdf, in.Acceptance.Findings)
	if in.ManifestHash != "" {
		if err := addManifestQR(pdf, in.ManifestHash); err != nil {
			return err
		}
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, in PDFInput) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Region", value: emptyFallback(in.Region, "-")},
		{label: "Generated", value: generated.Format(time.RFC3339)},
		{label: "Producer Timestamp", value: strconv.FormatUint(in.Snapshot.Timestamp, 10)},
		{label: "Datasources", value: strconv.Itoa(len(in.Snapshot.Datasources))},
		{label: "Findings", value: strconv.Itoa(in.Acceptance.Summary.Total)},
		{label: "Overall", value: passLabel(in.Acceptance.Summary.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addDatasourceSection(pdf *gofpdf.Fpdf, rows []export.DatasourceDoc) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Datasources")
	pdf.Ln(9)

	headers := []string{"Name", "Owner", "Type", "Value", "Units", "Min", "Max"}
	widths := []float64{42, 30, 20, 30, 20, 19, 19}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, row := range rows {
		values := []string{
			row.Name,
			row.Owner,
			row.Type,
			valueLabel(row.Value),
			emptyFallback(row.Units, "-"),
			row.Min,
			row.Max,
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, findings []check.Diagnostic) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		pdf.Ln(2)
		return
	}

	for i, d := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, d.RuleId, severityLabel(d.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		meta := findingMetadata(d)
		if meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}

		pdf.Ln(2)
	}
}

func addManifestQR(pdf *gofpdf.Fpdf, hash string) error {
	png, err := ManifestHashToQR(hash, 256)
	if err != nil {
		return err
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Manifest")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 4, "SHA-256: "+hash, "", "L", false)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("manifest-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("manifest-qr", pdf.GetX(), pdf.GetY()+2, 35, 35, false, opts, 0, "")
	return nil
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func severityLabel(sev check.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func valueLabel(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func findingMetadata(d check.Diagnostic) string {
	parts := make([]string, 0, 4)
	if !d.Ts.IsZero() {
		parts = append(parts, d.Ts.Format(time.RFC3339))
	}
	if d.Region != "" {
		parts = append(parts, d.Region)
	}
	if d.Datasource != "" {
		parts = append(parts, "Datasource "+d.Datasource)
	}
	if d.Owner != "" {
		parts = append(parts, "Owner "+d.Owner)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " · ")
}
