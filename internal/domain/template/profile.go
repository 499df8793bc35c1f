package template

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soundimports/pricelens/internal/domain/layout"
)

// profileAlpha is the exponential-smoothing weight for profile averages:
// recent documents move the average by a tenth of their deviation.
const profileAlpha = 0.1

// SupplierProfile aggregates what we have learned about one supplier's
// documents over time.
type SupplierProfile struct {
	SupplierKey           string              `json:"supplierKey"`
	DocumentCount         int                 `json:"documentCount"`
	AverageConfidence     float64             `json:"averageConfidence"`
	AverageProductCount   float64             `json:"averageProductCount"`
	AverageProcessingTime time.Duration       `json:"averageProcessingTime"`
	TemplateSuccess       map[string]float64  `json:"templateSuccess,omitempty"`
	LayoutCounts          map[layout.Type]int `json:"layoutCounts,omitempty"`
	MethodCounts          map[string]int      `json:"methodCounts,omitempty"`
	Quality               float64             `json:"quality"`
	UpdatedAt             time.Time           `json:"updatedAt"`
}

// NewSupplierProfile returns an empty profile for the supplier.
func NewSupplierProfile(supplierKey string) *SupplierProfile {
	return &SupplierProfile{
		SupplierKey:     supplierKey,
		TemplateSuccess: map[string]float64{},
		LayoutCounts:    map[layout.Type]int{},
		MethodCounts:    map[string]int{},
	}
}

// UpdateProfile folds one run into the supplier's profile: smoothed
// averages, per-template success rate, layout and method histograms and an
// overall quality figure.
func (m *Matcher) UpdateProfile(ctx context.Context, supplierKey, templateID string, desc layout.Descriptor, outcome Outcome) error {
	profile, err := m.profiles.GetProfile(ctx, supplierKey)
	if errors.Is(err, ErrNotFound) {
		profile = NewSupplierProfile(supplierKey)
	} else if err != nil {
		return fmt.Errorf("read profile %q: %w", supplierKey, err)
	}

	profile.fold(templateID, desc, outcome, m.now())

	if err := m.profiles.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("upsert profile %q: %w", supplierKey, err)
	}
	return nil
}

func (p *SupplierProfile) fold(templateID string, desc layout.Descriptor, outcome Outcome, now time.Time) {
	if p.TemplateSuccess == nil {
		p.TemplateSuccess = map[string]float64{}
	}
	if p.LayoutCounts == nil {
		p.LayoutCounts = map[layout.Type]int{}
	}
	if p.MethodCounts == nil {
		p.MethodCounts = map[string]int{}
	}

	first := p.DocumentCount == 0
	p.DocumentCount++

	p.AverageConfidence = smooth(p.AverageConfidence, outcome.Confidence, first)
	p.AverageProductCount = smooth(p.AverageProductCount, float64(outcome.ProductCount), first)
	p.AverageProcessingTime = time.Duration(smooth(
		float64(p.AverageProcessingTime), float64(outcome.ProcessingTime), first))

	success := 0.0
	if outcome.Succeeded {
		success = 1.0
	}
	if prev, seen := p.TemplateSuccess[templateID]; seen {
		p.TemplateSuccess[templateID] = smooth(prev, success, false)
	} else {
		p.TemplateSuccess[templateID] = success
	}

	p.LayoutCounts[desc.Type]++
	if outcome.Method != "" {
		p.MethodCounts[outcome.Method]++
	}

	p.Quality = smooth(p.Quality, outcome.Score, first)
	p.UpdatedAt = now
}

// smooth is α-exponential smoothing; the first observation seeds the
// average directly.
func smooth(avg, x float64, first bool) float64 {
	if first {
		return x
	}
	return (1-profileAlpha)*avg + profileAlpha*x
}
