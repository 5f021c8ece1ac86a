package pdfstamp

import (
	"sync"

	"github.com/jung-kurt/gofpdf"
)

const (
	fontFamily = "Helvetica"
	fontStyle  = "B"
)

// FontMetrics measures strings in Helvetica Bold using gofpdf's core font tables.
type FontMetrics struct {
	mu        sync.Mutex
	pdf       *gofpdf.Fpdf
	translate func(string) string
}

// NewFontMetrics prepares a measuring context.
func NewFontMetrics() *FontMetrics {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont(fontFamily, fontStyle, maxFontSize)
	return &FontMetrics{
		pdf:       pdf,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// TextWidth returns the width of text at size points.
func (m *FontMetrics) TextWidth(text string, size float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdf.SetFontSize(size)
	return m.pdf.GetStringWidth(m.translate(text))
}
