package layout

import (
	"regexp"
	"strings"

	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/pricing"
)

// PDFSignals are the structural metrics computed from a PDF's non-blank
// lines. All values except counts are in [0,1].
type PDFSignals struct {
	LineCount         int
	PageCount         int
	Tabularity        float64
	ColumnAlternation float64
	CatalogScore      float64
	HeaderFooterRatio float64
	PriceDensity      float64
	VocabDensity      float64
	Vocabulary        VocabFlags
}

var (
	productStartRe  = regexp.MustCompile(`^(?:[A-Z0-9-]{3,}\s|\d+\.\s)`)
	columnGapRe     = regexp.MustCompile(`\S(?:\s{2,}|\t)\S`)
	twoDecimalRe    = regexp.MustCompile(`\d[.,]\d{2}(?:\s|$)`)
	pageNumberRe    = regexp.MustCompile(`(?i)^\s*(?:page\s+)?\d+(?:\s*(?:of|/)\s*\d+)?\s*$`)
	headerFooterRe  = regexp.MustCompile(`(?i)©|copyright|all rights reserved|https?://|www\.`)
	shortLineLength = 45
)

// ProductStartLine reports whether a line opens a new product locus: an
// upper-case model code of three or more characters, or a numbered entry.
// Shared with the extraction strategies so both sides agree on loci.
func ProductStartLine(line string) bool {
	return productStartRe.MatchString(strings.TrimLeft(line, " "))
}

func computePDFSignals(pdf *content.PDFContent, vocab *vocabMatcher) PDFSignals {
	lines := pdf.Lines
	s := PDFSignals{LineCount: len(lines), PageCount: pdf.PageCount}
	if len(lines) == 0 {
		return s
	}
	n := float64(len(lines))

	tabular := 0
	headerFooter := 0
	priced := 0
	gapLines := 0

	for _, line := range lines {
		if isTabularLine(line) {
			tabular++
		}
		if pageNumberRe.MatchString(line) || headerFooterRe.MatchString(line) {
			headerFooter++
		}
		if len(pricing.FindAll(line)) > 0 {
			priced++
		}
		if columnGapRe.MatchString(line) {
			gapLines++
		}
	}

	s.Tabularity = float64(tabular) / n
	s.HeaderFooterRatio = float64(headerFooter) / n
	s.PriceDensity = float64(priced) / n
	s.ColumnAlternation = alternationScore(lines, float64(gapLines)/n)
	s.CatalogScore = catalogBlockScore(lines)
	s.Vocabulary, s.VocabDensity = vocab.scan(lines)

	return s
}

// isTabularLine detects column-style rows: multiple gap-separated segments,
// or a segment split co-occurring with a two-decimal price.
func isTabularLine(line string) bool {
	gaps := len(columnGapRe.FindAllString(line, -1))
	prices := len(twoDecimalRe.FindAllString(line+" ", -1))
	if gaps >= 2 {
		return true
	}
	return gaps >= 1 && prices >= 1
}

// alternationScore measures multi-column reflow: text extracted from
// side-by-side columns alternates short and long lines, and many lines share
// an internal column gap.
func alternationScore(lines []string, gapRatio float64) float64 {
	if len(lines) < 4 {
		return 0
	}
	alternations := 0
	for i := 1; i < len(lines); i++ {
		prevShort := len(lines[i-1]) < shortLineLength
		curShort := len(lines[i]) < shortLineLength
		if prevShort != curShort {
			alternations++
		}
	}
	score := float64(alternations) / float64(len(lines)-1)
	// Positional alignment: a consistent internal gap strengthens the signal.
	score = score * (0.7 + 0.3*gapRatio)
	if score > 1 {
		score = 1
	}
	return score
}

// catalogBlockScore counts header/description/price triples. A catalog block
// opens with a product-start line, carries at least one long description
// line without a price, and one line with a price.
func catalogBlockScore(lines []string) float64 {
	blocks := 0
	triples := 0

	i := 0
	for i < len(lines) {
		if !ProductStartLine(lines[i]) {
			i++
			continue
		}
		blocks++
		hasDescription := false
		hasPrice := len(pricing.FindAll(lines[i])) > 0

		j := i + 1
		for ; j < len(lines) && !ProductStartLine(lines[j]); j++ {
			priced := len(pricing.FindAll(lines[j])) > 0
			if priced {
				hasPrice = true
			} else if len(strings.TrimSpace(lines[j])) > 30 {
				hasDescription = true
			}
		}
		if hasDescription && hasPrice {
			triples++
		}
		i = j
	}

	if blocks == 0 {
		return 0
	}
	return float64(triples) / float64(blocks)
}
