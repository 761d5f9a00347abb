// Package pdf renders nutrition plans into PDF documents: a title, the
// intake profile as a table, the sectioned plan body, and a disclaimer
// footer.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/gricce/fuelqpro-console/internal/questionnaire"
)

const (
	docTitle   = "FuelQ Pro - Plano Nutricional Personalizado"
	disclaimer = "Este plano é uma recomendação geral. Para orientações específicas, consulte um nutricionista."

	sectionPrefix = "🔹"
)

// Render produces the PDF bytes for a profile and its full plan text.
func Render(profile map[string]string, planText string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "Letter", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetMargins(20, 20, 20)
	doc.AddPage()

	// Title
	doc.SetFont("Helvetica", "B", 20)
	doc.SetTextColor(0, 100, 0)
	doc.MultiCell(0, 10, tr(docTitle), "", "L", false)
	doc.Ln(4)

	// Profile table
	writeHeading(doc, tr, "Seu Perfil")
	doc.SetFont("Helvetica", "", 11)
	for _, q := range questionnaire.Steps {
		value, ok := profile[q.Key]
		if !ok {
			continue
		}
		doc.SetTextColor(0, 0, 139)
		doc.SetFillColor(211, 211, 211)
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(70, 8, tr(questionnaire.LabelFor(q.Key)), "1", 0, "L", true, 0, "")
		doc.SetTextColor(0, 0, 0)
		doc.SetFont("Helvetica", "", 11)
		doc.CellFormat(100, 8, tr(value), "1", 1, "L", false, 0, "")
	}
	doc.Ln(8)

	// Plan body: section markers become headings, everything else body text.
	writeHeading(doc, tr, "Seu Plano Nutricional")
	for _, line := range strings.Split(planText, "\n") {
		line = strings.TrimSpace(stripEmoji(line))
		if line == "" {
			continue
		}
		if heading, ok := strings.CutPrefix(line, sectionPrefix); ok {
			doc.Ln(2)
			writeHeading(doc, tr, strings.TrimSpace(heading))
			continue
		}
		doc.SetFont("Helvetica", "", 11)
		doc.SetTextColor(0, 0, 0)
		doc.MultiCell(0, 6, tr(line), "", "L", false)
	}

	// Disclaimer
	doc.Ln(8)
	doc.SetFont("Helvetica", "I", 10)
	doc.SetTextColor(128, 128, 128)
	doc.MultiCell(0, 5, tr(disclaimer), "", "L", false)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeading(doc *fpdf.Fpdf, tr func(string) string, text string) {
	doc.SetFont("Helvetica", "B", 14)
	doc.SetTextColor(0, 100, 0)
	doc.MultiCell(0, 8, tr(text), "", "L", false)
	doc.Ln(1)
}

// stripEmoji drops runes outside the basic multilingual plane; the core
// PDF fonts cannot render them. The section marker is handled before this
// would eat it.
func stripEmoji(s string) string {
	if !strings.ContainsRune(s, '🔹') && !containsAstral(s) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == '🔹' {
			b.WriteString(sectionPrefix)
			continue
		}
		if r > 0xFFFF {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func containsAstral(s string) bool {
	for _, r := range s {
		if r > 0xFFFF {
			return true
		}
	}
	return false
}
