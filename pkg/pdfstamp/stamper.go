package pdfstamp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
)

// LastPage selects the final page of the document.
const LastPage = 0

// renderDate is written as both creation and modification date so reapplying
// the same stamps does not depend on the clock.
var renderDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrInvalidPDF is returned when the source bytes cannot be parsed.
var ErrInvalidPDF = errors.New("invalid pdf")

// Stamp places a name inside a box on a page. Page is 1-based; LastPage or an out-of-range
// page resolves to the final page.
type Stamp struct {
	Page int
	Box  Box
	Text string
}

// Stamper renders stamps over an existing PDF.
type Stamper struct {
	metrics *FontMetrics
	color   [3]int
}

// NewStamper builds a stamper drawing dark blue Helvetica Bold.
func NewStamper(metrics *FontMetrics) *Stamper {
	if metrics == nil {
		metrics = NewFontMetrics()
	}
	return &Stamper{metrics: metrics, color: [3]int{0, 32, 96}}
}

// Metrics exposes the font measurement used for layout.
func (s *Stamper) Metrics() Metrics {
	return s.metrics
}

// ResolvePage maps the page sentinel and out-of-range values onto a real 1-based page.
func ResolvePage(page, total int) int {
	if total <= 0 {
		return 1
	}
	if page <= LastPage || page > total {
		return total
	}
	return page
}

// PageCount parses src and returns its number of pages.
func PageCount(src []byte) (n int, err error) {
	defer recoverInvalid(&err)
	if !bytes.HasPrefix(bytes.TrimLeft(src, " \r\n\t"), []byte("%PDF-")) {
		return 0, ErrInvalidPDF
	}
	pdf := gofpdf.New("P", "pt", "A4", "")
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(src))
	importer.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return len(importer.GetPageSizes()), nil
}

// Apply copies every page of src and draws each stamp on its page.
func (s *Stamper) Apply(src []byte, stamps []Stamp) (out []byte, err error) {
	defer recoverInvalid(&err)
	if !bytes.HasPrefix(bytes.TrimLeft(src, " \r\n\t"), []byte("%PDF-")) {
		return nil, ErrInvalidPDF
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetCreationDate(renderDate)
	pdf.SetModificationDate(renderDate)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	translate := pdf.UnicodeTranslatorFromDescriptor("")

	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(src))
	first := importer.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
	sizes := importer.GetPageSizes()
	total := len(sizes)
	if total == 0 {
		return nil, ErrInvalidPDF
	}

	byPage := make(map[int][]Stamp, len(stamps))
	for _, stamp := range stamps {
		page := ResolvePage(stamp.Page, total)
		byPage[page] = append(byPage[page], stamp)
	}

	for page := 1; page <= total; page++ {
		box := sizes[page]["/MediaBox"]
		width, height := box["w"], box["h"]
		tpl := first
		if page > 1 {
			tpl = importer.ImportPageFromStream(pdf, &rs, page, "/MediaBox")
		}
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: width, Ht: height})
		importer.UseImportedTemplate(pdf, tpl, 0, 0, width, height)

		for _, stamp := range byPage[page] {
			s.draw(pdf, translate, height, stamp)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Stamper) draw(pdf *gofpdf.Fpdf, translate func(string) string, pageHeight float64, stamp Stamp) {
	layout := FitText(stamp.Text, stamp.Box, s.metrics)
	if len(layout.Lines) == 0 {
		return
	}
	pdf.SetFont(fontFamily, fontStyle, layout.FontSize)
	pdf.SetTextColor(s.color[0], s.color[1], s.color[2])
	for _, line := range layout.Lines {
		pdf.Text(line.X, pageHeight-line.Baseline, translate(line.Text))
	}
}

// gofpdi reports malformed input by panicking.
func recoverInvalid(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrInvalidPDF, r)
	}
}
