package fixture_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alejandrodnm/stratdesk/internal/adapters/fixture"
	"github.com/alejandrodnm/stratdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
states:
  - symbol: BTCUSDT
    asset_class: CRYPTO
    price: 100
    htf_bias: BULLISH
    trend: {direction: BULLISH, strength: 0.8}
    scenarios:
      - {direction: BULLISH, target: 110, probability: 0.6, label: up}
  - symbol: EURUSD
    price: 1.08
prices:
  BTCUSDT: [100, 101, 99]
candles:
  BTCUSDT:
    - {time: 2026-03-02T10:00:00Z, open: 99, high: 101, low: 98, close: 100, volume: 10}
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	p, err := fixture.Load(writeFile(t, sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "EURUSD"}, p.Symbols())

	st, err := p.FetchState(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, domain.AssetCrypto, st.AssetClass)
	assert.Equal(t, domain.Bullish, st.HTFBias)
	assert.InDelta(t, 0.8, st.Trend.Strength, 1e-9)
	require.Len(t, st.Scenarios, 1)
	require.NotNil(t, st.Scenarios[0].Target)
	assert.Equal(t, 110.0, *st.Scenarios[0].Target)

	require.Len(t, p.Candles("BTCUSDT"), 1)
	assert.Nil(t, p.Candles("EURUSD"))
}

func TestFetchPrices_WalksPath(t *testing.T) {
	p, err := fixture.Load(writeFile(t, sample))
	require.NoError(t, err)
	ctx := context.Background()
	symbols := []string{"BTCUSDT", "EURUSD", "UNKNOWN"}

	var btc []float64
	for i := 0; i < 4; i++ {
		prices, err := p.FetchPrices(ctx, symbols)
		require.NoError(t, err)
		assert.NotContains(t, prices, "UNKNOWN")
		assert.Equal(t, 1.08, prices["EURUSD"], "symbols without path keep the snapshot price")
		btc = append(btc, prices["BTCUSDT"])
	}
	// El último precio se repite al agotar el camino
	assert.Equal(t, []float64{101, 99, 99, 99}, btc)

	// El snapshot refleja el precio actual del camino
	st, err := p.FetchState(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 99.0, st.Price)
}

func TestFetchState_ReturnsCopy(t *testing.T) {
	p, err := fixture.Load(writeFile(t, sample))
	require.NoError(t, err)

	st, err := p.FetchState(context.Background(), "EURUSD")
	require.NoError(t, err)
	st.Price = 2

	again, err := p.FetchState(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.08, again.Price)
}

func TestFetchState_Errors(t *testing.T) {
	p, err := fixture.Load(writeFile(t, sample))
	require.NoError(t, err)

	_, err = p.FetchState(context.Background(), "SOLUSDT")
	assert.ErrorIs(t, err, fixture.ErrUnknownSymbol)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.FetchState(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.FetchPrices(ctx, []string{"BTCUSDT"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		file fixture.File
	}{
		{"missing symbol", fixture.File{States: []domain.MarketState{{Price: 1}}}},
		{"duplicate symbol", fixture.File{States: []domain.MarketState{{Symbol: "A"}, {Symbol: "A"}}}},
		{"prices for unknown symbol", fixture.File{Prices: map[string][]float64{"A": {1}}}},
		{"non-positive price", fixture.File{
			States: []domain.MarketState{{Symbol: "A"}},
			Prices: map[string][]float64{"A": {1, 0}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fixture.New(tt.file)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := fixture.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExampleFixtures(t *testing.T) {
	p, err := fixture.Load(filepath.Join("..", "..", "..", "config", "fixtures.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "EURUSD"}, p.Symbols())
}
