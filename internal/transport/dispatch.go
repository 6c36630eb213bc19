package transport

import (
	"encoding/json"
	"fmt"

	"fenrir/internal/domain"
	"fenrir/internal/orders"
)

func dispatch(engine Engine, req Request) (any, error) {
	switch req.Type {
	case RequestPlaceOrder:
		return dispatchPlaceOrder(engine, req.Payload)
	case RequestModifyOrder:
		return dispatchModifyOrder(engine, req.Payload)
	case RequestCancelOrder:
		return dispatchCancelOrder(engine, req.Payload)
	case RequestGetOrder:
		return dispatchGetOrder(engine, req.Payload)
	case RequestListOrders:
		return dispatchListOrders(engine, req.Payload)
	case RequestBookSnapshot:
		return dispatchBookSnapshot(engine, req.Payload)
	case RequestPortfolio:
		return dispatchPortfolio(engine, req.Payload)
	case RequestTradeHistory:
		return dispatchTradeHistory(engine, req.Payload)
	default:
		return nil, fmt.Errorf("%w: unknown request type %q", domain.ErrInvalidOrder, req.Type)
	}
}

func parseSide(s string) (domain.Side, error) {
	switch s {
	case "buy":
		return domain.Buy, nil
	case "sell":
		return domain.Sell, nil
	default:
		return 0, fmt.Errorf("%w: unknown side %q", domain.ErrInvalidOrder, s)
	}
}

func parseOrderType(s string) (domain.OrderType, error) {
	switch s {
	case "market":
		return domain.MarketOrder, nil
	case "limit":
		return domain.LimitOrder, nil
	case "stop":
		return domain.StopOrder, nil
	case "stop_limit":
		return domain.StopLimitOrder, nil
	default:
		return 0, fmt.Errorf("%w: unknown order type %q", domain.ErrInvalidOrder, s)
	}
}

func parseTIF(s string) (domain.TimeInForce, error) {
	switch s {
	case "day":
		return domain.Day, nil
	case "gtc":
		return domain.GTC, nil
	case "ioc":
		return domain.IOC, nil
	case "fok":
		return domain.FOK, nil
	default:
		return 0, fmt.Errorf("%w: unknown time in force %q", domain.ErrInvalidOrder, s)
	}
}

func parseStatus(s string) (*domain.OrderStatus, error) {
	if s == "" {
		return nil, nil
	}
	statuses := map[string]domain.OrderStatus{
		"pending": domain.Pending, "partial": domain.Partial, "filled": domain.Filled,
		"cancelled": domain.Cancelled, "rejected": domain.Rejected,
	}
	st, ok := statuses[s]
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidOrder, s)
	}
	return &st, nil
}

func dispatchPlaceOrder(engine Engine, raw json.RawMessage) (any, error) {
	var p PlaceOrderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	side, err := parseSide(p.Side)
	if err != nil {
		return nil, err
	}
	orderType, err := parseOrderType(p.Type)
	if err != nil {
		return nil, err
	}
	tif, err := parseTIF(p.TimeInForce)
	if err != nil {
		return nil, err
	}
	return engine.PlaceOrder(orders.PlaceOrderRequest{
		UserID: p.UserID, Commodity: p.Commodity, Side: side, Type: orderType,
		Quantity: p.Quantity, LimitPrice: p.LimitPrice, StopPrice: p.StopPrice, TimeInForce: tif,
	})
}

func dispatchModifyOrder(engine Engine, raw json.RawMessage) (any, error) {
	var p ModifyOrderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return engine.ModifyOrder(p.OrderID, orders.ModifyRequest{Quantity: p.Quantity, LimitPrice: p.LimitPrice})
}

func dispatchCancelOrder(engine Engine, raw json.RawMessage) (any, error) {
	var p OrderIDPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return engine.CancelOrder(p.OrderID)
}

func dispatchGetOrder(engine Engine, raw json.RawMessage) (any, error) {
	var p OrderIDPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return engine.GetOrder(p.OrderID)
}

func dispatchListOrders(engine Engine, raw json.RawMessage) (any, error) {
	var p UserIDPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	status, err := parseStatus(p.Status)
	if err != nil {
		return nil, err
	}
	return engine.ListUserOrders(p.UserID, status), nil
}

func dispatchBookSnapshot(engine Engine, raw json.RawMessage) (any, error) {
	var p BookSnapshotPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return engine.GetOrderBookSnapshot(p.Commodity, p.Depth)
}

func dispatchPortfolio(engine Engine, raw json.RawMessage) (any, error) {
	var p UserIDPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return engine.GetPortfolioSummary(p.UserID), nil
}

func dispatchTradeHistory(engine Engine, raw json.RawMessage) (any, error) {
	var p UserIDPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return engine.GetTradeHistory(orders.TradeHistoryQuery{
		UserID: p.UserID, Commodity: domain.Commodity(p.Commodity), Limit: p.Limit,
	}), nil
}
