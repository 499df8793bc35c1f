// Package template persists and matches per-supplier extraction
// configurations. A Template is a versioned value: matching clones, learning
// mutates a fresh copy and bumps the version, and the storage layer enforces
// revision CAS so concurrent updates never overwrite each other blindly.
package template

import (
	"time"

	"github.com/google/uuid"

	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/extraction"
	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/internal/domain/pricing"
)

// GenericSupplier is the supplier key for templates applying to any
// supplier.
const GenericSupplier = "generic"

// Strategy selects how eagerly extraction treats marginal loci.
type Strategy string

const (
	StrategyStandard   Strategy = "standard"
	StrategyAggressive Strategy = "aggressive"
)

// Config is the extraction configuration a template carries.
type Config struct {
	Strategy            Strategy             `json:"strategy"`
	ConfidenceThreshold float64              `json:"confidenceThreshold"`
	MaxProcessingTime   time.Duration        `json:"maxProcessingTime"`
	NameColumn          int                  `json:"nameColumn"`
	PriceColumns        map[pricing.Kind]int `json:"priceColumns,omitempty"`
	PricePairOrder      extraction.PairOrder `json:"pricePairOrder"`
	ColumnPriorities    []pricing.Kind       `json:"columnPriorities,omitempty"`
}

// DefaultConfig returns the configuration new templates start from.
func DefaultConfig() Config {
	return Config{
		Strategy:            StrategyStandard,
		ConfidenceThreshold: 0.7,
		MaxProcessingTime:   30 * time.Second,
		NameColumn:          -1,
		PricePairOrder:      extraction.PairSecondCurrent,
	}
}

// Hints converts the config into extraction hints.
func (c Config) Hints() extraction.Hints {
	h := extraction.DefaultHints()
	h.NameColumn = c.NameColumn
	h.PricePairOrder = c.PricePairOrder
	if len(c.PriceColumns) > 0 {
		h.PriceColumns = make(map[pricing.Kind]int, len(c.PriceColumns))
		for k, v := range c.PriceColumns {
			h.PriceColumns[k] = v
		}
	}
	return h
}

func (c Config) clone() Config {
	out := c
	if c.PriceColumns != nil {
		out.PriceColumns = make(map[pricing.Kind]int, len(c.PriceColumns))
		for k, v := range c.PriceColumns {
			out.PriceColumns[k] = v
		}
	}
	out.ColumnPriorities = append([]pricing.Kind(nil), c.ColumnPriorities...)
	return out
}

// Version is semantic: learning bumps the patch, adaptive cloning resets to
// 1.0.0 on the new template.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v Version) BumpPatch() Version {
	v.Patch++
	return v
}

// Less orders versions for the strictly-increasing invariant.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

// VocabProfile is the price-vocabulary fingerprint a template expects from
// documents it applies to. Set is false on templates that never saw a PDF.
type VocabProfile struct {
	Set          bool    `json:"set"`
	HasNewRRP    bool    `json:"hasNewRrp"`
	HasOldRRP    bool    `json:"hasOldRrp"`
	PriceDensity float64 `json:"priceDensity"`
}

// SheetShape is the workbook-structure fingerprint for spreadsheet
// templates.
type SheetShape struct {
	Set         bool    `json:"set"`
	SheetCount  int     `json:"sheetCount"`
	ColumnCount int     `json:"columnCount"`
	HasHeader   bool    `json:"hasHeader"`
	DataQuality float64 `json:"dataQuality"`
}

// PerformanceStats is the rolling record of how a template has performed.
type PerformanceStats struct {
	UsageCount            int           `json:"usageCount"`
	SuccessCount          int           `json:"successCount"`
	AverageScore          float64       `json:"averageScore"`
	AverageProcessingTime time.Duration `json:"averageProcessingTime"`
	AverageProductCount   float64       `json:"averageProductCount"`
	RecentConfidences     []float64     `json:"recentConfidences,omitempty"`
	LastUsedAt            time.Time     `json:"lastUsedAt"`
}

// SuccessRate is successes over usages; a never-used template rates 0.
func (p PerformanceStats) SuccessRate() float64 {
	if p.UsageCount == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(p.UsageCount)
}

// LearningEvent records one learning pass over the template.
type LearningEvent struct {
	At        time.Time `json:"at"`
	Score     float64   `json:"score"`
	Issues    []string  `json:"issues,omitempty"`
	Mutations []string  `json:"mutations,omitempty"`
}

// Template is a persisted, versioned extraction configuration tuned to one
// (supplier, layout) pair. Values are treated as immutable: every change
// goes through Clone.
type Template struct {
	ID              string           `json:"id"`
	SupplierKey     string           `json:"supplierKey"`
	LayoutType      layout.Type      `json:"layoutType"`
	LayoutSubtype   string           `json:"layoutSubtype"`
	FileFormat      content.Kind     `json:"fileFormat"`
	Config          Config           `json:"config"`
	Version         Version          `json:"version"`
	Vocab           VocabProfile     `json:"vocab"`
	Shape           SheetShape       `json:"shape"`
	Performance     PerformanceStats `json:"performance"`
	LearningHistory []LearningEvent  `json:"learningHistory,omitempty"`
	BaseTemplate    string           `json:"baseTemplate,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`

	// Revision is the storage CAS token; it lives outside the JSON document
	// in stores that keep it as a column.
	Revision int64 `json:"-"`
}

// New synthesizes a template for a (supplier, descriptor) pair from
// defaults, fingerprinting the descriptor so future scoring has something to
// compare against.
func New(supplierKey string, desc layout.Descriptor, now time.Time) *Template {
	t := &Template{
		ID:            uuid.NewString(),
		SupplierKey:   supplierKey,
		LayoutType:    desc.Type,
		LayoutSubtype: desc.Subtype,
		FileFormat:    desc.Kind,
		Config:        DefaultConfig(),
		Version:       Version{Major: 1},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	t.Vocab, t.Shape = fingerprint(desc)
	return t
}

// Clone returns a deep copy sharing nothing mutable with the receiver.
func (t *Template) Clone() *Template {
	out := *t
	out.Config = t.Config.clone()
	out.Performance.RecentConfidences = append([]float64(nil), t.Performance.RecentConfidences...)
	out.LearningHistory = cloneHistory(t.LearningHistory)
	return &out
}

// AdaptiveClone derives a new template from the receiver for a descriptor
// the receiver only loosely matched: fresh identity and version, lineage
// pointer back to the base, config carried over, fingerprints replaced by
// the new descriptor's. The receiver is not touched.
func (t *Template) AdaptiveClone(supplierKey string, desc layout.Descriptor, now time.Time) *Template {
	out := t.Clone()
	out.ID = uuid.NewString()
	out.BaseTemplate = t.ID
	out.SupplierKey = supplierKey
	out.LayoutType = desc.Type
	out.LayoutSubtype = desc.Subtype
	out.FileFormat = desc.Kind
	out.Version = Version{Major: 1}
	out.Performance = PerformanceStats{}
	out.LearningHistory = nil
	out.Revision = 0
	out.CreatedAt = now
	out.UpdatedAt = now
	out.Vocab, out.Shape = fingerprint(desc)
	return out
}

func cloneHistory(events []LearningEvent) []LearningEvent {
	if events == nil {
		return nil
	}
	out := make([]LearningEvent, len(events))
	for i, e := range events {
		out[i] = e
		out[i].Issues = append([]string(nil), e.Issues...)
		out[i].Mutations = append([]string(nil), e.Mutations...)
	}
	return out
}

// fingerprint captures the descriptor's vocabulary and sheet shape for
// later similarity scoring.
func fingerprint(desc layout.Descriptor) (VocabProfile, SheetShape) {
	var vocab VocabProfile
	var shape SheetShape

	if desc.PDF != nil {
		vocab = VocabProfile{
			Set:          true,
			HasNewRRP:    desc.PDF.Vocabulary.NewRRP,
			HasOldRRP:    desc.PDF.Vocabulary.OldRRP,
			PriceDensity: desc.PDF.PriceDensity,
		}
	}
	if desc.Workbook != nil && len(desc.Workbook.Sheets) > 0 {
		primary := desc.Workbook.Sheets[desc.Workbook.Primary]
		shape = SheetShape{
			Set:         true,
			SheetCount:  len(desc.Workbook.Sheets),
			ColumnCount: primary.ColumnCount,
			HasHeader:   primary.HeaderRow >= 0,
			DataQuality: primary.DataQuality,
		}
	}
	return vocab, shape
}
