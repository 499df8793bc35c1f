package template

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/layout"
)

// learningThreshold separates "use as-is" from "derive and keep learning":
// a candidate scoring above it is returned directly, anything lower is
// adaptively cloned.
const learningThreshold = 0.8

// recencyWindow is how long template usage counts toward the recency
// sub-score before decaying to zero.
const recencyWindow = 30 * 24 * time.Hour

// Scoring weights. The weighted sum is clamped to [0,1] before the
// performance bonus is added, so a better historical average always wins
// ties between otherwise identical candidates.
const (
	weightLayout    = 0.30
	weightVocab     = 0.25
	weightColumns   = 0.20
	weightFormat    = 0.15
	weightHistory   = 0.10
	performanceBump = 0.1
)

// Matcher finds, scores and evolves templates. The clock is injectable so
// recency scoring is testable.
type Matcher struct {
	templates TemplateStore
	profiles  ProfileStore
	logger    *slog.Logger
	now       func() time.Time
}

func NewMatcher(templates TemplateStore, profiles ProfileStore, logger *slog.Logger) *Matcher {
	return &Matcher{
		templates: templates,
		profiles:  profiles,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the matcher's clock.
func (m *Matcher) WithClock(now func() time.Time) *Matcher {
	m.now = now
	return m
}

// FindBestTemplate returns a usable template for the supplier and layout,
// never nil on a nil error. With no candidates on record it synthesizes and
// persists a fresh default; with only weak candidates it adaptively clones
// the strongest one, leaving the ancestor untouched.
func (m *Matcher) FindBestTemplate(ctx context.Context, supplierKey string, desc layout.Descriptor) (*Template, error) {
	candidates, err := m.templates.ListCandidates(ctx, supplierKey)
	if err != nil {
		return nil, fmt.Errorf("list templates for %q: %w", supplierKey, err)
	}

	applicable := candidates[:0]
	for _, c := range candidates {
		if c.LayoutType == desc.Type || c.LayoutType == layout.TypeGeneric {
			applicable = append(applicable, c)
		}
	}

	if len(applicable) == 0 {
		fresh := New(supplierKey, desc, m.now())
		if err := m.templates.Create(ctx, fresh); err != nil {
			return nil, fmt.Errorf("persist synthesized template: %w", err)
		}
		m.logger.InfoContext(ctx, "synthesized new template",
			slog.String("supplier", supplierKey),
			slog.String("template", fresh.ID),
			slog.String("layout", string(desc.Type)),
		)
		return fresh, nil
	}

	best := applicable[0]
	bestScore := m.ScoreTemplate(best, desc)
	for _, c := range applicable[1:] {
		if s := m.ScoreTemplate(c, desc); s > bestScore {
			best, bestScore = c, s
		}
	}

	if bestScore > learningThreshold {
		return best, nil
	}

	clone := best.AdaptiveClone(supplierKey, desc, m.now())
	if err := m.templates.Create(ctx, clone); err != nil {
		return nil, fmt.Errorf("persist adaptive clone: %w", err)
	}
	m.logger.InfoContext(ctx, "adaptively cloned template",
		slog.String("supplier", supplierKey),
		slog.String("base", best.ID),
		slog.String("clone", clone.ID),
		slog.Float64("score", bestScore),
	)
	return clone, nil
}

// ScoreTemplate rates how well a template fits a descriptor. The weighted
// sub-scores are clamped to [0,1]; the flat averageScore bonus lands on top
// unclamped.
func (m *Matcher) ScoreTemplate(t *Template, desc layout.Descriptor) float64 {
	weighted := weightLayout*layoutScore(t, desc) +
		weightVocab*vocabScore(t, desc) +
		weightColumns*columnScore(t, desc) +
		weightFormat*formatScore(t, desc) +
		weightHistory*historyScore(t, m.now())

	if weighted < 0 {
		weighted = 0
	}
	if weighted > 1 {
		weighted = 1
	}
	return weighted + t.Performance.AverageScore*performanceBump
}

func layoutScore(t *Template, desc layout.Descriptor) float64 {
	switch {
	case t.LayoutType == desc.Type && t.LayoutSubtype == desc.Subtype:
		return 1.0
	case t.LayoutType == desc.Type:
		return 0.8
	case t.LayoutType == layout.TypeGeneric:
		return 0.5
	default:
		return 0.2
	}
}

// vocabScore compares the template's price-vocabulary fingerprint against
// the document's. Either side missing data scores neutral.
func vocabScore(t *Template, desc layout.Descriptor) float64 {
	if !t.Vocab.Set || desc.PDF == nil {
		return 0.5
	}

	score := 0.0
	if t.Vocab.HasNewRRP == desc.PDF.Vocabulary.NewRRP {
		score += 1.0 / 3
	}
	if t.Vocab.HasOldRRP == desc.PDF.Vocabulary.OldRRP {
		score += 1.0 / 3
	}
	score += (1.0 / 3) * densityRatio(t.Vocab.PriceDensity, desc.PDF.PriceDensity)
	return score
}

// densityRatio compares two densities as min/max; two zeros match
// perfectly.
func densityRatio(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	lo, hi := math.Min(a, b), math.Max(a, b)
	if hi == 0 {
		return 1
	}
	return lo / hi
}

// columnScore compares workbook structure; it only discriminates for
// spreadsheets, everything else is neutral.
func columnScore(t *Template, desc layout.Descriptor) float64 {
	if !t.Shape.Set || desc.Workbook == nil || len(desc.Workbook.Sheets) == 0 {
		return 0.5
	}
	primary := desc.Workbook.Sheets[desc.Workbook.Primary]

	score := 0.0
	if t.Shape.SheetCount == len(desc.Workbook.Sheets) {
		score += 0.25
	}
	if diff := t.Shape.ColumnCount - primary.ColumnCount; diff >= -2 && diff <= 2 {
		score += 0.25
	}
	if t.Shape.HasHeader == (primary.HeaderRow >= 0) {
		score += 0.25
	}
	if math.Abs(t.Shape.DataQuality-primary.DataQuality) < 0.2 {
		score += 0.25
	}
	return score
}

func formatScore(t *Template, desc layout.Descriptor) float64 {
	switch {
	case t.FileFormat == desc.Kind:
		return 1.0
	case t.FileFormat == "" || t.FileFormat == content.KindUnknown:
		return 0.6
	default:
		return 0.3
	}
}

// historyScore blends the template's historical success rate with how
// recently it was used, decaying linearly to zero over the recency window.
func historyScore(t *Template, now time.Time) float64 {
	recency := 0.0
	if !t.Performance.LastUsedAt.IsZero() {
		age := now.Sub(t.Performance.LastUsedAt)
		if age < 0 {
			age = 0
		}
		if age < recencyWindow {
			recency = 1 - float64(age)/float64(recencyWindow)
		}
	}
	return 0.7*t.Performance.SuccessRate() + 0.3*recency
}
