package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundimports/pricelens/internal/domain/extraction"
	"github.com/soundimports/pricelens/internal/domain/pricing"
)

func candidate(name string, price string) extraction.ProductCandidate {
	return extraction.ProductCandidate{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Currency: "ZAR",
		Kind:     pricing.KindNewRRP,
	}
}

func TestIndex_InMemory(t *testing.T) {
	index, err := NewIndex("")
	require.NoError(t, err)
	defer index.Close()

	err = index.AddProducts("denon", []extraction.ProductCandidate{
		candidate("AVR-X1700H 7.2ch AV Receiver", "8990.00"),
		candidate("AVR-X2800H 7.2ch AV Receiver", "13990.00"),
		candidate("Home Cinema Bundle", "24990.00"),
	})
	require.NoError(t, err)
	err = index.AddProducts("yamaha", []extraction.ProductCandidate{
		candidate("RX-V6A 7.2ch AV Receiver", "10990.00"),
	})
	require.NoError(t, err)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)

	t.Run("recognizes a known name", func(t *testing.T) {
		match, found, err := index.Recognize("denon", "AVR-X1700H 7.2ch AV Receiver")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "AVR-X1700H", match.Document.ModelCode)
		assert.Greater(t, match.Score, 0.0)
	})

	t.Run("tolerates a typo", func(t *testing.T) {
		_, found, err := index.Recognize("denon", "AVR-X1700H AV Reciever")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("scoped to the supplier", func(t *testing.T) {
		_, found, err := index.Recognize("yamaha", "Home Cinema Bundle")
		require.NoError(t, err)
		assert.False(t, found, "denon products are invisible under yamaha")
	})

	t.Run("unknown name", func(t *testing.T) {
		_, found, err := index.Recognize("denon", "Quantum Flux Capacitor")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("known names listing", func(t *testing.T) {
		names, err := index.KnownNames("denon", 10)
		require.NoError(t, err)
		assert.Len(t, names, 3)
		assert.Contains(t, names, "AVR-X1700H 7.2ch AV Receiver")
	})
}

func TestIndex_RepeatRunsUpdateInPlace(t *testing.T) {
	index, err := NewIndex("")
	require.NoError(t, err)
	defer index.Close()

	require.NoError(t, index.AddProducts("denon", []extraction.ProductCandidate{
		candidate("AVR-X1700H 7.2ch AV Receiver", "9990.00"),
	}))
	require.NoError(t, index.AddProducts("denon", []extraction.ProductCandidate{
		candidate("AVR-X1700H 7.2ch AV Receiver", "8990.00"),
	}))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count, "the model code keys the document")

	match, found, err := index.Recognize("denon", "AVR-X1700H")
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 8990.00, match.Document.Price, 1e-9)
}

func TestModelCode(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"AVR-X1700H 7.2ch AV Receiver", "AVR-X1700H"},
		{"KDL40R550 Sony Bravia", "KDL40R550"},
		{"Home Cinema Bundle", ""},
		{"speaker cable 2m", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, modelCode(tt.name), tt.name)
	}
}
