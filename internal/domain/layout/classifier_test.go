package layout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/pricing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tabularPDF() *content.Document {
	return content.NewPDFDocument("denon.pdf", []string{
		"Model          Old RRP      New RRP",
		"AVR-X1700H     R9,990.00    R8,990.00",
		"AVR-X2800H     R15,990.00   R13,990.00",
		"AVR-X3800H     R24,990.00   R21,990.00",
	}, 1)
}

func catalogPDF() *content.Document {
	return content.NewPDFDocument("catalog.pdf", []string{
		"BS100-MK2 Bookshelf Loudspeaker Pair in Walnut Finish",
		"A two-way bass reflex bookshelf speaker with a woven glass fibre woofer.",
		"Frequency response spans the full audible range with low distortion drivers.",
		"Ideal for stereo listening rooms and as surround channels in larger systems.",
		"RRP: R2,499.00",
		"SW210 Powered Subwoofer with Class D Amplification Module",
		"A sealed cabinet subwoofer with a long-throw driver and adjustable crossover.",
		"The onboard amplifier delivers clean output for film and music duties alike.",
		"Auto-standby switching keeps idle power consumption to an absolute minimum.",
		"RRP: R5,999.00",
	}, 2)
}

func TestClassify_TabularPDF(t *testing.T) {
	c := NewClassifier(nil, testLogger())
	desc := c.Classify(context.Background(), tabularPDF())

	assert.Equal(t, content.KindPDF, desc.Kind)
	assert.Equal(t, TypeTable, desc.Type)
	assert.Equal(t, SubtypePriceComparison, desc.Subtype, "both New and Old RRP vocabulary present")
	assert.Greater(t, desc.Confidence, 0.7)
	require.NotNil(t, desc.PDF)
	assert.True(t, desc.PDF.Vocabulary.NewRRP)
	assert.True(t, desc.PDF.Vocabulary.OldRRP)
}

func TestClassify_CatalogPDF(t *testing.T) {
	c := NewClassifier(nil, testLogger())
	desc := c.Classify(context.Background(), catalogPDF())

	assert.Equal(t, TypeCatalog, desc.Type)
	assert.Equal(t, SubtypeProductBlocks, desc.Subtype)
	assert.Greater(t, desc.Confidence, 0.5)
}

func TestClassify_PriceListFallback(t *testing.T) {
	c := NewClassifier(nil, testLogger())
	doc := content.NewPDFDocument("list.pdf", []string{
		"Bookshelf Speaker BS100 RRP: R2,499.00",
	}, 1)

	desc := c.Classify(context.Background(), doc)
	assert.Equal(t, TypeList, desc.Type)
	assert.Equal(t, SubtypePriceList, desc.Subtype)
}

func TestClassify_UnstructuredDocument(t *testing.T) {
	c := NewClassifier(nil, testLogger())
	doc := content.NewPDFDocument("terms.pdf", []string{
		"Standard terms and conditions of sale",
		"Delivery lead times vary by region",
	}, 1)

	desc := c.Classify(context.Background(), doc)
	assert.Equal(t, TypeDocument, desc.Type)
	assert.Equal(t, SubtypeUnstructured, desc.Subtype)
	assert.GreaterOrEqual(t, desc.Confidence, 0.1)
}

func TestClassify_NeverErrors(t *testing.T) {
	c := NewClassifier(nil, testLogger())

	t.Run("nil document", func(t *testing.T) {
		desc := c.Classify(context.Background(), nil)
		assert.Equal(t, TypeUnknown, desc.Type)
		assert.InDelta(t, 0.1, desc.Confidence, 1e-9)
		assert.ErrorIs(t, desc.Err, ErrUndecodable)
	})

	t.Run("pdf with no lines", func(t *testing.T) {
		doc := content.NewPDFDocument("blank.pdf", []string{"", "  "}, 1)
		desc := c.Classify(context.Background(), doc)
		assert.Equal(t, TypeUnknown, desc.Type)
		assert.InDelta(t, 0.1, desc.Confidence, 1e-9)
		assert.ErrorIs(t, desc.Err, ErrUndecodable)
	})

	t.Run("workbook with no sheets", func(t *testing.T) {
		doc := content.NewWorkbookDocument("empty.xlsx", &content.Workbook{})
		desc := c.Classify(context.Background(), doc)
		assert.Equal(t, TypeUnknown, desc.Type)
		assert.ErrorIs(t, desc.Err, ErrUndecodable)
	})

	t.Run("unknown kind", func(t *testing.T) {
		desc := c.Classify(context.Background(), &content.Document{Kind: content.KindUnknown})
		assert.Equal(t, TypeUnknown, desc.Type)
		assert.ErrorIs(t, desc.Err, ErrUndecodable)
	})
}

func TestClassify_Idempotent(t *testing.T) {
	c := NewClassifier(nil, testLogger())
	doc := tabularPDF()

	first := c.Classify(context.Background(), doc)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(context.Background(), doc))
	}
}

func TestClassify_Spreadsheet(t *testing.T) {
	c := NewClassifier(nil, testLogger())
	wb := &content.Workbook{Sheets: []content.Sheet{{
		Name: "Pricelist",
		Rows: [][]string{
			{"Product", "Old RRP", "New RRP"},
			{"SA-150", "1000", "1250"},
			{"BS100", "2300", "2499"},
		},
	}}}

	desc := c.Classify(context.Background(), content.NewWorkbookDocument("list.xlsx", wb))
	assert.Equal(t, TypeSingleSheet, desc.Type)
	assert.Equal(t, SubtypeMultiPrice, desc.Subtype)
	require.NotNil(t, desc.Workbook)

	primary := desc.Workbook.Sheets[desc.Workbook.Primary]
	assert.Equal(t, 0, primary.HeaderRow)
	require.Len(t, primary.PriceColumns, 2)
	assert.Equal(t, 1, primary.PriceColumns[0].Index)
	assert.Equal(t, pricing.KindOldRRP, primary.PriceColumns[0].Kind)
	assert.Equal(t, 2, primary.PriceColumns[1].Index)
	assert.Equal(t, pricing.KindNewRRP, primary.PriceColumns[1].Kind)
	assert.Contains(t, primary.NameColumns, 0)
	assert.True(t, primary.HasProductData)
}

type stubEnhancer struct {
	err    error
	called int
}

func (s *stubEnhancer) Enhance(_ context.Context, d Descriptor, _ *content.Document) (Descriptor, error) {
	s.called++
	if s.err != nil {
		return d, s.err
	}
	d.Subtype = "enhanced"
	return d, nil
}

func TestClassify_Enhancement(t *testing.T) {
	lowConfidenceDoc := content.NewPDFDocument("terms.pdf", []string{
		"Standard terms and conditions of sale",
		"Delivery lead times vary by region",
	}, 1)

	t.Run("boosts and tags on success", func(t *testing.T) {
		enh := &stubEnhancer{}
		c := NewClassifier(enh, testLogger())

		desc := c.Classify(context.Background(), lowConfidenceDoc)
		assert.Equal(t, 1, enh.called)
		assert.True(t, desc.AIEnhanced)
		assert.Equal(t, "enhanced", desc.Subtype)
		assert.InDelta(t, 0.2, desc.Confidence, 1e-9)
	})

	t.Run("failure is swallowed", func(t *testing.T) {
		enh := &stubEnhancer{err: errors.New("upstream down")}
		c := NewClassifier(enh, testLogger())

		desc := c.Classify(context.Background(), lowConfidenceDoc)
		assert.False(t, desc.AIEnhanced)
		assert.Equal(t, SubtypeUnstructured, desc.Subtype)
	})

	t.Run("not consulted above threshold", func(t *testing.T) {
		enh := &stubEnhancer{}
		c := NewClassifier(enh, testLogger())

		desc := c.Classify(context.Background(), tabularPDF())
		assert.Equal(t, 0, enh.called)
		assert.False(t, desc.AIEnhanced)
	})
}

func TestRateLimitedEnhancer(t *testing.T) {
	inner := &stubEnhancer{}
	limited := NewRateLimitedEnhancer(inner, 0, 1) // one call, then dry

	d := Descriptor{Type: TypeDocument}
	_, err := limited.Enhance(context.Background(), d, nil)
	require.NoError(t, err)

	_, err = limited.Enhance(context.Background(), d, nil)
	assert.ErrorIs(t, err, ErrEnhancerThrottled)
	assert.Equal(t, 1, inner.called)
}
