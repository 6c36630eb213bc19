// Package transport is a reference TCP adapter in front of the trading
// core (SPEC_FULL.md's "Supplemented Features" #5 — the distilled spec
// deliberately has no wire protocol, per its Non-goals, but a core with no
// way in or out isn't a complete repo).
//
// Grounded on the teacher's internal/net/server.go + internal/worker.go:
// the same tomb-supervised worker pool accepting connections and handing
// each one to a pool worker, but framed as newline-delimited JSON instead
// of the teacher's hand-packed big-endian binary messages — a deliberate
// simplification since the binary wire format is exactly the kind of
// "native exchange protocol" spec.md's Non-goals rule out, and JSON keeps
// the adapter legible as a reference implementation.
package transport

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"fenrir/internal/domain"
)

// RequestType discriminates the envelope's Payload.
type RequestType string

const (
	RequestPlaceOrder   RequestType = "place_order"
	RequestModifyOrder  RequestType = "modify_order"
	RequestCancelOrder  RequestType = "cancel_order"
	RequestGetOrder     RequestType = "get_order"
	RequestListOrders   RequestType = "list_orders"
	RequestBookSnapshot RequestType = "book_snapshot"
	RequestPortfolio    RequestType = "portfolio"
	RequestTradeHistory RequestType = "trade_history"
)

// Request is one line of newline-delimited JSON sent by a client.
type Request struct {
	ID      string          `json:"id"`
	Type    RequestType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Response mirrors Request.ID so clients can correlate asynchronously.
type Response struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// PlaceOrderPayload is the body of a RequestPlaceOrder.
type PlaceOrderPayload struct {
	UserID      string           `json:"userId"`
	Commodity   domain.Commodity `json:"commodity"`
	Side        string           `json:"side"`
	Type        string           `json:"type"`
	Quantity    decimal.Decimal  `json:"quantity"`
	LimitPrice  decimal.Decimal  `json:"limitPrice"`
	StopPrice   decimal.Decimal  `json:"stopPrice"`
	TimeInForce string           `json:"timeInForce"`
}

// ModifyOrderPayload is the body of a RequestModifyOrder.
type ModifyOrderPayload struct {
	OrderID    string          `json:"orderId"`
	Quantity   decimal.Decimal `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limitPrice"`
}

// OrderIDPayload covers cancel/get-order requests.
type OrderIDPayload struct {
	OrderID string `json:"orderId"`
}

// UserIDPayload covers list-orders/portfolio/trade-history requests.
type UserIDPayload struct {
	UserID    string `json:"userId"`
	Commodity string `json:"commodity,omitempty"`
	Status    string `json:"status,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// BookSnapshotPayload covers book-snapshot requests.
type BookSnapshotPayload struct {
	Commodity domain.Commodity `json:"commodity"`
	Depth     int              `json:"depth"`
}
