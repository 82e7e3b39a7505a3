// Package export renders downloadable citation records for archived runs.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Citation carries everything the printable record needs.
type Citation struct {
	MeshName     string
	VerboseID    string
	Country      string
	State        string
	District     string
	RunID        string
	ArchivedAt   time.Time
	Ark          string
	ResolverBase string
	BoundURL     string
	Commitment   string
	Contributors int
	Images       int
}

// CitationPDF renders the citation record as a PDF document.
func CitationPDF(c Citation) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Citation record %s", c.Ark), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Archival Citation Record", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, c.MeshName, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s, %s, %s", c.District, c.State, c.Country), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"ARK", fmt.Sprintf("ark:/%s", c.Ark)},
		{"Resolver", c.ResolverBase + c.Ark},
		{"Model URL", c.BoundURL},
		{"Site ID", c.VerboseID},
		{"Run", c.RunID},
		{"Archived", c.ArchivedAt.UTC().Format(time.RFC3339)},
		{"Contributors", fmt.Sprintf("%d", c.Contributors)},
		{"Images used", fmt.Sprintf("%d", c.Images)},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, 6, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, row[1], "", "L", false)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, c.Commitment, "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render citation pdf: %w", err)
	}
	return buf.Bytes(), nil
}
