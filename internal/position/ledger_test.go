package position

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type staticOracle struct{ price decimal.Decimal }

func (s staticOracle) CurrentPrice(domain.Commodity) (decimal.Decimal, error) { return s.price, nil }

func TestApplyOpensNewLongPosition(t *testing.T) {
	l := New(staticOracle{price: d("82.00")})
	pos, err := l.Apply("alice", domain.CrudeOil, d("10"), d("80.00"))
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d("10")))
	assert.True(t, pos.AvgPrice.Equal(d("80.00")))
	assert.True(t, pos.UnrealizedPnL.Equal(d("20.00")))
}

func TestApplySameSideWeightsAveragePrice(t *testing.T) {
	l := New(staticOracle{price: d("80.00")})
	_, err := l.Apply("alice", domain.CrudeOil, d("10"), d("80.00"))
	require.NoError(t, err)
	pos, err := l.Apply("alice", domain.CrudeOil, d("10"), d("90.00"))
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d("20")))
	assert.True(t, pos.AvgPrice.Equal(d("85.00")))
}

func TestApplyOppositeSidePartiallyClosesAndRealizes(t *testing.T) {
	l := New(staticOracle{price: d("80.00")})
	_, err := l.Apply("alice", domain.CrudeOil, d("10"), d("80.00"))
	require.NoError(t, err)
	pos, err := l.Apply("alice", domain.CrudeOil, d("-4"), d("90.00"))
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d("6")))
	assert.True(t, pos.AvgPrice.Equal(d("80.00")))
	assert.True(t, pos.RealizedPnL.Equal(d("40.00")))
}

func TestApplyOppositeSideFlipsAndOpensFreshLot(t *testing.T) {
	l := New(staticOracle{price: d("80.00")})
	_, err := l.Apply("alice", domain.CrudeOil, d("10"), d("80.00"))
	require.NoError(t, err)
	pos, err := l.Apply("alice", domain.CrudeOil, d("-15"), d("90.00"))
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d("-5")))
	assert.True(t, pos.AvgPrice.Equal(d("90.00")))
	assert.True(t, pos.RealizedPnL.Equal(d("100.00")))
}

func TestApplyClosingToZeroResetsAvgPrice(t *testing.T) {
	l := New(staticOracle{price: d("80.00")})
	_, err := l.Apply("alice", domain.CrudeOil, d("10"), d("80.00"))
	require.NoError(t, err)
	pos, err := l.Apply("alice", domain.CrudeOil, d("-10"), d("85.00"))
	require.NoError(t, err)
	assert.True(t, pos.Quantity.IsZero())
	assert.True(t, pos.AvgPrice.IsZero())
	assert.True(t, pos.RealizedPnL.Equal(d("50.00")))
}

func TestApplyIgnoresMarketPartySentinel(t *testing.T) {
	l := New(staticOracle{price: d("80.00")})
	pos, err := l.Apply(domain.MarketParty, domain.CrudeOil, d("10"), d("80.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.Position{}, pos)
	_, ok := l.Get(domain.MarketParty, domain.CrudeOil)
	assert.False(t, ok)
}

func TestSummarizeAggregatesAcrossCommodities(t *testing.T) {
	l := New(staticOracle{price: d("80.00")})
	_, err := l.Apply("alice", domain.CrudeOil, d("10"), d("80.00"))
	require.NoError(t, err)
	_, err = l.Apply("alice", domain.NaturalGas, d("5"), d("2.50"))
	require.NoError(t, err)

	summary := l.Summarize("alice")
	assert.Len(t, summary.Positions, 2)
}
