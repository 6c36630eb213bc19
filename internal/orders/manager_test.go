package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/domain"
	"fenrir/internal/eventbus"
	"fenrir/internal/position"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixedOracle struct{ price decimal.Decimal }

func (o fixedOracle) CurrentPrice(domain.Commodity) (decimal.Decimal, error) { return o.price, nil }

func newTestManager() *Manager {
	oracle := fixedOracle{price: d("80.00")}
	ledger := position.New(oracle)
	bus := eventbus.New(nil)
	cfg := Config{MinOrderSize: d("1"), MaxOrderSize: d("100000")}
	return New(cfg, oracle, ledger, bus)
}

func TestPlaceOrderRejectsBelowMinSize(t *testing.T) {
	m := newTestManager()
	_, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("0.1"), LimitPrice: d("80"),
		TimeInForce: domain.GTC,
	})
	assert.ErrorIs(t, err, domain.ErrSizeLimitExceeded)
}

func TestPlaceOrderRejectsUnsupportedCommodity(t *testing.T) {
	m := newTestManager()
	_, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.Commodity("unobtanium"), Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("80"),
		TimeInForce: domain.GTC,
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedCommodity)
}

func TestPlaceOrderRestsWhenNoMatch(t *testing.T) {
	m := newTestManager()
	order, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("75"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Pending, order.Status)

	snap, err := m.GetOrderBookSnapshot(domain.CrudeOil, 10)
	require.NoError(t, err)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Bids[0].Quantity.Equal(d("10")))
}

func TestPlaceOrderMatchesRestingOrder(t *testing.T) {
	m := newTestManager()
	_, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Sell,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("80"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)

	taker, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "bob", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("80"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Filled, taker.Status)

	history := m.GetTradeHistory(TradeHistoryQuery{Limit: 10})
	require.Len(t, history, 1)
	assert.True(t, history[0].Quantity.Equal(d("10")))

	summary := m.GetPortfolioSummary("bob")
	require.Len(t, summary.Positions, 1)
	assert.True(t, summary.Positions[0].Quantity.Equal(d("10")))
}

func TestFOKRejectedWhenInsufficientLiquidity(t *testing.T) {
	m := newTestManager()
	_, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Sell,
		Type: domain.LimitOrder, Quantity: d("5"), LimitPrice: d("80"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)

	_, err = m.PlaceOrder(PlaceOrderRequest{
		UserID: "bob", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("80"),
		TimeInForce: domain.FOK,
	})
	assert.ErrorIs(t, err, domain.ErrRejected)

	snap, err := m.GetOrderBookSnapshot(domain.CrudeOil, 10)
	require.NoError(t, err)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Asks[0].Quantity.Equal(d("5")))
}

func TestIOCPartialFillCancelsResidual(t *testing.T) {
	m := newTestManager()
	_, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Sell,
		Type: domain.LimitOrder, Quantity: d("4"), LimitPrice: d("80"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)

	taker, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "bob", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("80"),
		TimeInForce: domain.IOC,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Cancelled, taker.Status)
	assert.True(t, taker.FilledQuantity.Equal(d("4")))

	snap, err := m.GetOrderBookSnapshot(domain.CrudeOil, 10)
	require.NoError(t, err)
	assert.Empty(t, snap.Bids)
}

func TestModifyOrderPriceChangeLosesPriority(t *testing.T) {
	m := newTestManager()
	order, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("75"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)

	updated, err := m.ModifyOrder(order.ID, ModifyRequest{LimitPrice: d("76")})
	require.NoError(t, err)
	assert.True(t, updated.LimitPrice.Equal(d("76")))

	snap, err := m.GetOrderBookSnapshot(domain.CrudeOil, 10)
	require.NoError(t, err)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Bids[0].Price.Equal(d("76")))
}

func TestModifyOrderRejectsNonRestingOrder(t *testing.T) {
	m := newTestManager()
	_, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Sell,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("80"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)
	filled, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "bob", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("80"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)

	_, err = m.ModifyOrder(filled.ID, ModifyRequest{LimitPrice: d("81")})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestCancelOrderRemovesFromBook(t *testing.T) {
	m := newTestManager()
	order, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("75"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)

	cancelled, err := m.CancelOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Cancelled, cancelled.Status)

	snap, err := m.GetOrderBookSnapshot(domain.CrudeOil, 10)
	require.NoError(t, err)
	assert.Empty(t, snap.Bids)

	_, err = m.CancelOrder(order.ID)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestStopOrderRestsPendingThenPromotes(t *testing.T) {
	m := newTestManager()
	stop, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.StopOrder, Quantity: d("5"), StopPrice: d("85"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Pending, stop.Status)

	pending := m.PendingStops(domain.CrudeOil)
	require.Len(t, pending, 1)
	assert.Equal(t, stop.ID, pending[0].ID)

	_, err = m.PlaceOrder(PlaceOrderRequest{
		UserID: "bob", Commodity: domain.CrudeOil, Side: domain.Sell,
		Type: domain.LimitOrder, Quantity: d("5"), LimitPrice: d("85"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)

	require.NoError(t, m.PromoteStop(domain.CrudeOil, stop.ID))
	assert.Empty(t, m.PendingStops(domain.CrudeOil))

	promoted, err := m.GetOrder(stop.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Filled, promoted.Status)
	assert.Equal(t, domain.MarketOrder, promoted.Type)
}

func TestCancelDayOrdersOnlySweepsDayTIF(t *testing.T) {
	m := newTestManager()
	dayOrder, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("75"),
		TimeInForce: domain.Day,
	})
	require.NoError(t, err)
	gtcOrder, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("74"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)

	cancelled := m.CancelDayOrders()
	require.Len(t, cancelled, 1)
	assert.Equal(t, dayOrder.ID, cancelled[0])

	refreshed, err := m.GetOrder(gtcOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Pending, refreshed.Status)
}

func TestGetTradeHistoryFiltersByUserAndCommodity(t *testing.T) {
	m := newTestManager()
	_, err := m.PlaceOrder(PlaceOrderRequest{
		UserID: "alice", Commodity: domain.CrudeOil, Side: domain.Sell,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("80"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)
	_, err = m.PlaceOrder(PlaceOrderRequest{
		UserID: "bob", Commodity: domain.CrudeOil, Side: domain.Buy,
		Type: domain.LimitOrder, Quantity: d("10"), LimitPrice: d("80"),
		TimeInForce: domain.GTC,
	})
	require.NoError(t, err)

	history := m.GetTradeHistory(TradeHistoryQuery{UserID: "carol", Limit: 10})
	assert.Empty(t, history)

	history = m.GetTradeHistory(TradeHistoryQuery{UserID: "alice", Limit: 10})
	require.Len(t, history, 1)
}
