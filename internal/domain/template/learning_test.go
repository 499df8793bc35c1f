package template

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/pkg/metrics"
)

func seedTemplate(t *testing.T, store *MemoryStore) *Template {
	t.Helper()
	tmpl := New("denon", tableDescriptor(), testTime)
	require.NoError(t, store.Create(context.Background(), tmpl))
	return tmpl
}

func TestUpdateTemplate_GoodOutcome(t *testing.T) {
	store := NewMemoryStore()
	m := testMatcher(store)
	tmpl := seedTemplate(t, store)

	outcome := Outcome{
		Score:          0.92,
		Confidence:     0.9,
		ProductCount:   40,
		ProcessingTime: 2 * time.Second,
		Succeeded:      true,
	}
	require.NoError(t, m.UpdateTemplate(context.Background(), tmpl.ID, outcome))

	got, err := store.Get(context.Background(), tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Performance.UsageCount)
	assert.Equal(t, 1, got.Performance.SuccessCount)
	assert.InDelta(t, 0.92, got.Performance.AverageScore, 1e-9)
	assert.InDelta(t, 40, got.Performance.AverageProductCount, 1e-9)
	assert.Equal(t, []float64{0.9}, got.Performance.RecentConfidences)
	assert.Equal(t, testTime, got.Performance.LastUsedAt)
	assert.Equal(t, Version{Major: 1}, got.Version, "good outcomes do not bump the version")
	assert.Empty(t, got.LearningHistory)
}

func TestUpdateTemplate_WeakOutcomeMutates(t *testing.T) {
	store := NewMemoryStore()
	m := testMatcher(store)
	tmpl := seedTemplate(t, store)

	outcome := Outcome{
		Score:          0.4,
		Confidence:     0.5,
		ProductCount:   2,
		ProcessingTime: 45 * time.Second,
		Succeeded:      false,
	}
	mutationsBefore := testutil.ToFloat64(metrics.TemplateMutations.WithLabelValues("denon"))
	require.NoError(t, m.UpdateTemplate(context.Background(), tmpl.ID, outcome))

	got, err := store.Get(context.Background(), tmpl.ID)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, got.Config.ConfidenceThreshold, 1e-9)
	assert.Equal(t, StrategyAggressive, got.Config.Strategy)
	assert.Equal(t, 45*time.Second, got.Config.MaxProcessingTime)
	assert.Equal(t, Version{Major: 1, Patch: 1}, got.Version)

	require.Len(t, got.LearningHistory, 1)
	event := got.LearningHistory[0]
	assert.ElementsMatch(t, []string{issueLowConfidence, issueLowExtraction, issueSlowProcessing}, event.Issues)
	assert.Len(t, event.Mutations, 3)

	mutationsAfter := testutil.ToFloat64(metrics.TemplateMutations.WithLabelValues("denon"))
	assert.InDelta(t, 3, mutationsAfter-mutationsBefore, 1e-9, "each applied mutation is counted")
}

func TestUpdateTemplate_MutationsAreBounded(t *testing.T) {
	store := NewMemoryStore()
	m := testMatcher(store)
	tmpl := seedTemplate(t, store)

	outcome := Outcome{
		Score:          0.3,
		Confidence:     0.4,
		ProductCount:   1,
		ProcessingTime: 50 * time.Second,
	}
	prevVersion := tmpl.Version
	for i := 0; i < 6; i++ {
		require.NoError(t, m.UpdateTemplate(context.Background(), tmpl.ID, outcome))

		got, err := store.Get(context.Background(), tmpl.ID)
		require.NoError(t, err)
		assert.True(t, prevVersion.Less(got.Version) || prevVersion == got.Version)
		prevVersion = got.Version
	}

	got, err := store.Get(context.Background(), tmpl.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Config.ConfidenceThreshold, 1e-9, "confidence threshold floors at 0.5")
	assert.Equal(t, 60*time.Second, got.Config.MaxProcessingTime, "processing time caps at 60s")
	assert.Equal(t, StrategyAggressive, got.Config.Strategy)
	assert.Len(t, got.Performance.RecentConfidences, 6)
}

func TestUpdateTemplate_ConfidenceWindowIsBounded(t *testing.T) {
	store := NewMemoryStore()
	m := testMatcher(store)
	tmpl := seedTemplate(t, store)

	for i := 0; i < 14; i++ {
		outcome := Outcome{Score: 0.9, Confidence: float64(i) / 14, Succeeded: true, ProductCount: 20}
		require.NoError(t, m.UpdateTemplate(context.Background(), tmpl.ID, outcome))
	}

	got, err := store.Get(context.Background(), tmpl.ID)
	require.NoError(t, err)
	assert.Len(t, got.Performance.RecentConfidences, recentConfidenceLimit)
	assert.InDelta(t, 13.0/14, got.Performance.RecentConfidences[recentConfidenceLimit-1], 1e-9)
	assert.Equal(t, 14, got.Performance.UsageCount)
}

// flakyStore forces revision conflicts on the first updates to exercise the
// read-retry loop.
type flakyStore struct {
	*MemoryStore
	conflicts int
}

func (s *flakyStore) Update(ctx context.Context, t *Template) error {
	if s.conflicts > 0 {
		s.conflicts--
		return fmt.Errorf("simulated: %w", ErrTemplateConflict)
	}
	return s.MemoryStore.Update(ctx, t)
}

func TestUpdateTemplate_RetriesOnConflict(t *testing.T) {
	mem := NewMemoryStore()
	store := &flakyStore{MemoryStore: mem, conflicts: 2}
	logger := testMatcher(mem).logger
	m := NewMatcher(store, mem, logger).WithClock(func() time.Time { return testTime })

	tmpl := seedTemplate(t, mem)
	outcome := Outcome{Score: 0.9, Confidence: 0.9, ProductCount: 12, Succeeded: true}

	require.NoError(t, m.UpdateTemplate(context.Background(), tmpl.ID, outcome))

	got, err := mem.Get(context.Background(), tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Performance.UsageCount, "the outcome is applied exactly once")
	assert.Zero(t, store.conflicts)
}

func TestUpdateTemplate_GivesUpAfterRetries(t *testing.T) {
	mem := NewMemoryStore()
	store := &flakyStore{MemoryStore: mem, conflicts: 10}
	logger := testMatcher(mem).logger
	m := NewMatcher(store, mem, logger).WithClock(func() time.Time { return testTime })

	tmpl := seedTemplate(t, mem)
	err := m.UpdateTemplate(context.Background(), tmpl.ID, Outcome{Score: 0.9})
	assert.ErrorIs(t, err, ErrTemplateConflict)
}

func TestUpdateProfile_Smoothing(t *testing.T) {
	store := NewMemoryStore()
	m := testMatcher(store)
	desc := tableDescriptor()

	first := Outcome{Score: 0.8, Confidence: 0.9, ProductCount: 20, Succeeded: true, Method: "table"}
	require.NoError(t, m.UpdateProfile(context.Background(), "denon", "tmpl-1", desc, first))

	p, err := store.GetProfile(context.Background(), "denon")
	require.NoError(t, err)
	assert.Equal(t, 1, p.DocumentCount)
	assert.InDelta(t, 0.9, p.AverageConfidence, 1e-9, "first observation seeds the average")
	assert.InDelta(t, 1.0, p.TemplateSuccess["tmpl-1"], 1e-9)
	assert.Equal(t, 1, p.LayoutCounts[layout.TypeTable])

	second := Outcome{Score: 0.4, Confidence: 0.5, ProductCount: 4, Succeeded: false, Method: "table"}
	require.NoError(t, m.UpdateProfile(context.Background(), "denon", "tmpl-1", desc, second))

	p, err = store.GetProfile(context.Background(), "denon")
	require.NoError(t, err)
	assert.Equal(t, 2, p.DocumentCount)
	assert.InDelta(t, 0.9*0.9+0.1*0.5, p.AverageConfidence, 1e-9)
	assert.InDelta(t, 0.9*1.0+0.1*0.0, p.TemplateSuccess["tmpl-1"], 1e-9)
	assert.Equal(t, 2, p.LayoutCounts[layout.TypeTable])
	assert.Equal(t, 2, p.MethodCounts["table"])
}
