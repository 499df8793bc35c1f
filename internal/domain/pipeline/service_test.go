package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundimports/pricelens/internal/domain/catalog"
	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/extraction"
	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/internal/domain/template"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(store *template.MemoryStore) *Service {
	logger := testLogger()
	return NewService(
		layout.NewClassifier(nil, logger),
		extraction.NewExtractor(logger),
		template.NewMatcher(store, store, logger),
		logger,
	)
}

func comparisonPDF() *content.Document {
	return content.NewPDFDocument("denon-aug.pdf", []string{
		"Model          Old RRP      New RRP",
		"AVR-X1700H     R9,990.00    R8,990.00",
		"AVR-X2800H     R15,990.00   R13,990.00",
		"AVR-X3800H     R24,990.00   R21,990.00",
	}, 1)
}

func TestProcess_EndToEnd(t *testing.T) {
	store := template.NewMemoryStore()
	svc := testService(store)

	report, err := svc.Process(context.Background(), "denon", comparisonPDF())
	require.NoError(t, err)

	assert.Equal(t, "denon", report.SupplierKey)
	assert.Equal(t, layout.TypeTable, report.Descriptor.Type)
	require.NotEmpty(t, report.TemplateID)
	require.Len(t, report.Result.Products, 3)
	assert.Equal(t, "8990.00", report.Result.Products[0].Price.StringFixed(2))
	assert.InDelta(t, 90, report.Result.Confidence, 1e-9)

	tmpl, err := store.Get(context.Background(), report.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.Performance.UsageCount)
	assert.Equal(t, 1, tmpl.Performance.SuccessCount)
	assert.InDelta(t, 0.9, tmpl.Performance.AverageScore, 1e-9)

	profile, err := store.GetProfile(context.Background(), "denon")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.DocumentCount)
	assert.Equal(t, 1, profile.LayoutCounts[layout.TypeTable])
}

func TestProcess_SecondRunReusesTemplate(t *testing.T) {
	store := template.NewMemoryStore()
	svc := testService(store)

	first, err := svc.Process(context.Background(), "denon", comparisonPDF())
	require.NoError(t, err)
	second, err := svc.Process(context.Background(), "denon", comparisonPDF())
	require.NoError(t, err)

	assert.Equal(t, first.TemplateID, second.TemplateID, "a performing template is reused, not cloned")

	tmpl, err := store.Get(context.Background(), first.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, 2, tmpl.Performance.UsageCount)
}

func TestProcess_ValidatorDropsProducts(t *testing.T) {
	store := template.NewMemoryStore()
	svc := testService(store).WithValidator(func(p extraction.ProductCandidate) error {
		if strings.Contains(p.Name, "X2800") {
			return errors.New("discontinued")
		}
		return nil
	})

	report, err := svc.Process(context.Background(), "denon", comparisonPDF())
	require.NoError(t, err)
	require.Len(t, report.Result.Products, 2)
	for _, p := range report.Result.Products {
		assert.NotContains(t, p.Name, "X2800")
	}
}

type stubCatalog struct {
	known bool
	added []extraction.ProductCandidate
}

func (s *stubCatalog) AddProducts(supplierKey string, products []extraction.ProductCandidate) error {
	s.added = append(s.added, products...)
	return nil
}

func (s *stubCatalog) Recognize(supplierKey, name string) (catalog.Match, bool, error) {
	return catalog.Match{Score: 1.5}, s.known, nil
}

func TestProcess_CatalogRecognitionBoost(t *testing.T) {
	store := template.NewMemoryStore()
	cat := &stubCatalog{known: true}
	svc := testService(store).WithCatalog(cat)

	report, err := svc.Process(context.Background(), "denon", comparisonPDF())
	require.NoError(t, err)

	assert.Equal(t, len(report.Result.Products), report.Recognized)
	for _, p := range report.Result.Products {
		assert.InDelta(t, 0.80, p.Confidence, 1e-9, "0.75 pair confidence plus the recognition boost")
	}
	assert.Len(t, cat.added, len(report.Result.Products), "the run is folded back into the catalog")
}

func TestProcess_NilDocument(t *testing.T) {
	store := template.NewMemoryStore()
	svc := testService(store)

	report, err := svc.Process(context.Background(), "denon", nil)
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestProcess_LogsFormattedTopPrice(t *testing.T) {
	store := template.NewMemoryStore()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(
		layout.NewClassifier(nil, logger),
		extraction.NewExtractor(logger),
		template.NewMatcher(store, store, logger),
		logger,
	)

	_, err := svc.Process(context.Background(), "denon", comparisonPDF())
	require.NoError(t, err)

	logged := buf.String()
	assert.Contains(t, logged, "top_price=")
	assert.Contains(t, logged, "8,990.00", "the selected price is currency-formatted")
}

func TestProcess_ExtractionFailureStillRecorded(t *testing.T) {
	store := template.NewMemoryStore()
	svc := testService(store)

	doc := &content.Document{Kind: content.KindUnknown, Name: "mystery.bin"}
	_, err := svc.Process(context.Background(), "denon", doc)
	require.ErrorIs(t, err, extraction.ErrUnsupportedFormat)

	candidates, err := store.ListCandidates(context.Background(), "denon")
	require.NoError(t, err)
	require.Len(t, candidates, 1, "a template was synthesized before extraction failed")
	assert.Equal(t, 1, candidates[0].Performance.UsageCount)
	assert.Zero(t, candidates[0].Performance.SuccessCount)
}
