package pdfstamp

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	maxFontSize     = 24.0
	minFontSize     = 8.0
	fontStep        = 0.5
	heightToFont    = 0.35
	usableWidth     = 0.95
	usableHeight    = 0.9
	lineSpacing     = 1.2
	extraLeadingPct = lineSpacing - 1
)

// Box is a rectangle in PDF points with the origin at the bottom-left corner of the page.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the box has a drawable area.
func (b Box) Valid() bool {
	return b.Width > 0 && b.Height > 0 && b.X >= 0 && b.Y >= 0
}

// Line is one rendered row of text. X and Baseline are in page points, bottom-left origin.
type Line struct {
	Text     string
	X        float64
	Baseline float64
	Width    float64
}

// Layout is the deterministic placement of a stamp inside a box.
type Layout struct {
	Lines    []Line
	FontSize float64
}

// Metrics measures text in the stamp font.
type Metrics interface {
	TextWidth(text string, size float64) float64
}

// FitText upper-cases name and fits it inside box, shrinking and wrapping as needed.
// Identical inputs always produce identical output.
func FitText(name string, box Box, metrics Metrics) Layout {
	words := strings.Fields(strings.ToUpper(name))
	size := math.Min(heightToFont*box.Height, maxFontSize)
	if len(words) == 0 || !box.Valid() {
		return Layout{FontSize: size}
	}
	maxWidth := usableWidth * box.Width
	maxBlock := usableHeight * box.Height

	for _, word := range words {
		for metrics.TextWidth(word, size) > maxWidth && size > minFontSize {
			size = math.Max(size-fontStep, minFontSize)
		}
	}

	lines := wrap(words, size, maxWidth, metrics)
	for blockHeight(len(lines), size) > maxBlock && size > minFontSize {
		size = math.Max(size-fontStep, minFontSize)
		lines = wrap(words, size, maxWidth, metrics)
	}
	if blockHeight(len(lines), size) > maxBlock {
		n := float64(len(lines))
		size = math.Min(size, maxBlock/(n+extraLeadingPct*(n-1)))
		lines = wrap(words, size, maxWidth, metrics)
	}
	// A lone rune can still overflow at the minimum size; widths scale linearly with size.
	if widest := widestLine(lines, size, metrics); widest > maxWidth {
		size *= maxWidth / widest
	}

	return place(lines, size, box, metrics)
}

func widestLine(lines []string, size float64, metrics Metrics) float64 {
	widest := 0.0
	for _, line := range lines {
		widest = math.Max(widest, metrics.TextWidth(line, size))
	}
	return widest
}

func blockHeight(n int, size float64) float64 {
	if n == 0 {
		return 0
	}
	return float64(n)*size + float64(n-1)*(lineSpacing*size-size)
}

func wrap(words []string, size, maxWidth float64, metrics Metrics) []string {
	lines := make([]string, 0, len(words))
	current := ""
	for _, word := range words {
		if metrics.TextWidth(word, size) > maxWidth {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			chunks := splitWord(word, size, maxWidth, metrics)
			lines = append(lines, chunks[:len(chunks)-1]...)
			current = chunks[len(chunks)-1]
			continue
		}
		if current == "" {
			current = word
			continue
		}
		candidate := current + " " + word
		if metrics.TextWidth(candidate, size) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// splitWord cuts word at its widest fitting prefix until the rest fits. Each chunk keeps at least one rune.
func splitWord(word string, size, maxWidth float64, metrics Metrics) []string {
	var chunks []string
	rest := word
	for rest != "" && metrics.TextWidth(rest, size) > maxWidth {
		cut := 0
		for i := range rest {
			if i == 0 {
				continue
			}
			if metrics.TextWidth(rest[:i], size) > maxWidth {
				break
			}
			cut = i
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(rest)
		}
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

func place(lines []string, size float64, box Box, metrics Metrics) Layout {
	height := blockHeight(len(lines), size)
	top := box.Y + box.Height/2 + height/2
	out := make([]Line, len(lines))
	for i, text := range lines {
		width := metrics.TextWidth(text, size)
		x := box.X + (box.Width-width)/2
		x = math.Max(box.X, math.Min(x, box.X+box.Width-width))
		out[i] = Line{
			Text:     text,
			X:        x,
			Baseline: top - size - float64(i)*lineSpacing*size,
			Width:    width,
		}
	}
	return Layout{Lines: out, FontSize: size}
}
