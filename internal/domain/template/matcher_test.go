package template

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/internal/domain/pricing"
)

var testTime = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func testMatcher(store *MemoryStore) *Matcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMatcher(store, store, logger).WithClock(func() time.Time { return testTime })
}

func tableDescriptor() layout.Descriptor {
	return layout.Descriptor{
		Kind:       content.KindPDF,
		Type:       layout.TypeTable,
		Subtype:    layout.SubtypePriceComparison,
		Confidence: 0.9,
		PDF: &layout.PDFSignals{
			Vocabulary:   layout.VocabFlags{NewRRP: true, OldRRP: true},
			PriceDensity: 0.6,
		},
	}
}

func TestFindBestTemplate_SynthesizesWhenEmpty(t *testing.T) {
	store := NewMemoryStore()
	m := testMatcher(store)
	desc := tableDescriptor()

	got, err := m.FindBestTemplate(context.Background(), "denon", desc)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "denon", got.SupplierKey)
	assert.Equal(t, layout.TypeTable, got.LayoutType)
	assert.Equal(t, layout.SubtypePriceComparison, got.LayoutSubtype)
	assert.Equal(t, Version{Major: 1}, got.Version)
	assert.True(t, got.Vocab.Set)
	assert.True(t, got.Vocab.HasNewRRP)

	persisted, err := store.Get(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ID, persisted.ID)
}

func TestFindBestTemplate_ReturnsStrongCandidate(t *testing.T) {
	store := NewMemoryStore()
	m := testMatcher(store)
	desc := tableDescriptor()

	seed := New("denon", desc, testTime)
	seed.Performance = PerformanceStats{
		UsageCount:   5,
		SuccessCount: 5,
		AverageScore: 0.9,
		LastUsedAt:   testTime,
	}
	require.NoError(t, store.Create(context.Background(), seed))

	got, err := m.FindBestTemplate(context.Background(), "denon", desc)
	require.NoError(t, err)
	assert.Equal(t, seed.ID, got.ID, "a strong candidate is returned as-is")
	assert.Empty(t, got.BaseTemplate)
}

func TestFindBestTemplate_ClonesWeakCandidate(t *testing.T) {
	store := NewMemoryStore()
	m := testMatcher(store)
	desc := tableDescriptor()

	base := New(GenericSupplier, desc, testTime)
	base.LayoutType = layout.TypeGeneric
	base.LayoutSubtype = ""
	base.FileFormat = ""
	base.Vocab = VocabProfile{}
	require.NoError(t, store.Create(context.Background(), base))
	baseVersion := base.Version
	baseConfig := base.Config

	got, err := m.FindBestTemplate(context.Background(), "denon", desc)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.NotEqual(t, base.ID, got.ID)
	assert.Equal(t, base.ID, got.BaseTemplate)
	assert.Equal(t, "denon", got.SupplierKey)
	assert.Equal(t, layout.TypeTable, got.LayoutType)
	assert.Equal(t, Version{Major: 1}, got.Version)

	// The ancestor is untouched by cloning.
	stored, err := store.Get(context.Background(), base.ID)
	require.NoError(t, err)
	assert.Equal(t, baseVersion, stored.Version)
	assert.Equal(t, baseConfig, stored.Config)
	assert.Equal(t, layout.TypeGeneric, stored.LayoutType)
}

func TestAdaptiveClone_NeverMutatesAncestor(t *testing.T) {
	desc := tableDescriptor()
	base := New("denon", desc, testTime)
	base.Config.PriceColumns = map[pricing.Kind]int{pricing.KindRRP: 2}
	base.LearningHistory = []LearningEvent{{At: testTime, Issues: []string{issueLowConfidence}}}

	clone := base.AdaptiveClone("denon", desc, testTime.Add(time.Hour))
	clone.Config.PriceColumns[pricing.KindNewRRP] = 4
	clone.Config.ConfidenceThreshold = 0.1
	clone.Version = clone.Version.BumpPatch()

	assert.Equal(t, map[pricing.Kind]int{pricing.KindRRP: 2}, base.Config.PriceColumns)
	assert.InDelta(t, 0.7, base.Config.ConfidenceThreshold, 1e-9)
	assert.Equal(t, Version{Major: 1}, base.Version)
	assert.Equal(t, base.ID, clone.BaseTemplate)
	assert.Len(t, base.LearningHistory, 1)
	assert.Empty(t, clone.LearningHistory)
}

func TestScoreTemplate_AverageScoreStrictlyIncreases(t *testing.T) {
	m := testMatcher(NewMemoryStore())
	desc := tableDescriptor()

	tmpl := New("denon", desc, testTime)
	prev := -1.0
	for _, avg := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0} {
		tmpl.Performance.AverageScore = avg
		score := m.ScoreTemplate(tmpl, desc)
		assert.Greater(t, score, prev, "averageScore %v must strictly raise the match score", avg)
		prev = score
	}
}

func TestScoreTemplate_SubScores(t *testing.T) {
	m := testMatcher(NewMemoryStore())
	desc := tableDescriptor()

	t.Run("exact layout beats type-only beats generic", func(t *testing.T) {
		exact := New("denon", desc, testTime)

		typeOnly := exact.Clone()
		typeOnly.LayoutSubtype = layout.SubtypeStandardTable

		generic := exact.Clone()
		generic.LayoutType = layout.TypeGeneric

		sExact := m.ScoreTemplate(exact, desc)
		sType := m.ScoreTemplate(typeOnly, desc)
		sGeneric := m.ScoreTemplate(generic, desc)
		assert.Greater(t, sExact, sType)
		assert.Greater(t, sType, sGeneric)
	})

	t.Run("recent usage outranks stale usage", func(t *testing.T) {
		recent := New("denon", desc, testTime)
		recent.Performance = PerformanceStats{UsageCount: 4, SuccessCount: 4, LastUsedAt: testTime.Add(-time.Hour)}

		stale := recent.Clone()
		stale.Performance.LastUsedAt = testTime.Add(-40 * 24 * time.Hour)

		assert.Greater(t, m.ScoreTemplate(recent, desc), m.ScoreTemplate(stale, desc))
	})

	t.Run("vocabulary mismatch is penalized", func(t *testing.T) {
		match := New("denon", desc, testTime)

		mismatch := match.Clone()
		mismatch.Vocab.HasNewRRP = false
		mismatch.Vocab.HasOldRRP = false

		assert.Greater(t, m.ScoreTemplate(match, desc), m.ScoreTemplate(mismatch, desc))
	})

	t.Run("missing vocab data scores neutral", func(t *testing.T) {
		tmpl := New("denon", desc, testTime)
		tmpl.Vocab = VocabProfile{}
		assert.InDelta(t, 0.5, vocabScore(tmpl, desc), 1e-9)
	})
}
