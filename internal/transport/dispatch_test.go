package transport

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/book"
	"fenrir/internal/domain"
	"fenrir/internal/orders"
	"fenrir/internal/position"
)

type fakeEngine struct {
	placeOrderFn func(orders.PlaceOrderRequest) (domain.Order, error)
	order        domain.Order
	orders       []domain.Order
	snapshot     book.Snapshot
	portfolio    position.PortfolioSummary
	fills        []domain.Fill
	err          error
}

func (e *fakeEngine) PlaceOrder(req orders.PlaceOrderRequest) (domain.Order, error) {
	if e.placeOrderFn != nil {
		return e.placeOrderFn(req)
	}
	return e.order, e.err
}
func (e *fakeEngine) ModifyOrder(string, orders.ModifyRequest) (domain.Order, error) {
	return e.order, e.err
}
func (e *fakeEngine) CancelOrder(string) (domain.Order, error) { return e.order, e.err }
func (e *fakeEngine) GetOrder(string) (domain.Order, error)    { return e.order, e.err }
func (e *fakeEngine) ListUserOrders(string, *domain.OrderStatus) []domain.Order {
	return e.orders
}
func (e *fakeEngine) GetOrderBookSnapshot(domain.Commodity, int) (book.Snapshot, error) {
	return e.snapshot, e.err
}
func (e *fakeEngine) GetPortfolioSummary(string) position.PortfolioSummary   { return e.portfolio }
func (e *fakeEngine) GetTradeHistory(orders.TradeHistoryQuery) []domain.Fill { return e.fills }

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDispatchPlaceOrderParsesEnumsAndCallsEngine(t *testing.T) {
	var captured orders.PlaceOrderRequest
	engine := &fakeEngine{placeOrderFn: func(req orders.PlaceOrderRequest) (domain.Order, error) {
		captured = req
		return domain.Order{ID: "order-1"}, nil
	}}

	payload := rawPayload(t, PlaceOrderPayload{
		UserID: "alice", Commodity: domain.CrudeOil, Side: "buy", Type: "limit",
		Quantity: decimal.RequireFromString("10"), LimitPrice: decimal.RequireFromString("80"),
		TimeInForce: "gtc",
	})

	data, err := dispatch(engine, Request{Type: RequestPlaceOrder, Payload: payload})
	require.NoError(t, err)

	order, ok := data.(domain.Order)
	require.True(t, ok)
	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, domain.Buy, captured.Side)
	assert.Equal(t, domain.LimitOrder, captured.Type)
	assert.Equal(t, domain.GTC, captured.TimeInForce)
}

func TestDispatchPlaceOrderRejectsUnknownSide(t *testing.T) {
	engine := &fakeEngine{}
	payload := rawPayload(t, PlaceOrderPayload{UserID: "alice", Side: "sideways", Type: "limit", TimeInForce: "gtc"})
	_, err := dispatch(engine, Request{Type: RequestPlaceOrder, Payload: payload})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestDispatchUnknownRequestType(t *testing.T) {
	engine := &fakeEngine{}
	_, err := dispatch(engine, Request{Type: RequestType("not_a_real_type")})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestDispatchCancelOrder(t *testing.T) {
	engine := &fakeEngine{order: domain.Order{ID: "order-1", Status: domain.Cancelled}}
	payload := rawPayload(t, OrderIDPayload{OrderID: "order-1"})
	data, err := dispatch(engine, Request{Type: RequestCancelOrder, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, domain.Cancelled, data.(domain.Order).Status)
}

func TestDispatchListOrdersParsesStatusFilter(t *testing.T) {
	engine := &fakeEngine{orders: []domain.Order{{ID: "order-1"}}}
	payload := rawPayload(t, UserIDPayload{UserID: "alice", Status: "filled"})
	data, err := dispatch(engine, Request{Type: RequestListOrders, Payload: payload})
	require.NoError(t, err)
	assert.Len(t, data.([]domain.Order), 1)
}

func TestDispatchListOrdersRejectsUnknownStatus(t *testing.T) {
	engine := &fakeEngine{}
	payload := rawPayload(t, UserIDPayload{UserID: "alice", Status: "not_a_status"})
	_, err := dispatch(engine, Request{Type: RequestListOrders, Payload: payload})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestDispatchTradeHistory(t *testing.T) {
	engine := &fakeEngine{fills: []domain.Fill{{ID: "fill-1"}}}
	payload := rawPayload(t, UserIDPayload{UserID: "alice", Commodity: "crude_oil", Limit: 5})
	data, err := dispatch(engine, Request{Type: RequestTradeHistory, Payload: payload})
	require.NoError(t, err)
	assert.Len(t, data.([]domain.Fill), 1)
}

func TestDispatchPortfolio(t *testing.T) {
	engine := &fakeEngine{portfolio: position.PortfolioSummary{UserID: "alice"}}
	payload := rawPayload(t, UserIDPayload{UserID: "alice"})
	data, err := dispatch(engine, Request{Type: RequestPortfolio, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, "alice", data.(position.PortfolioSummary).UserID)
}

func TestDispatchBookSnapshot(t *testing.T) {
	engine := &fakeEngine{snapshot: book.Snapshot{Commodity: domain.CrudeOil}}
	payload := rawPayload(t, BookSnapshotPayload{Commodity: domain.CrudeOil, Depth: 5})
	data, err := dispatch(engine, Request{Type: RequestBookSnapshot, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, domain.CrudeOil, data.(book.Snapshot).Commodity)
}
