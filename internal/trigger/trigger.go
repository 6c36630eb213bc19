// Package trigger watches executed trades and promotes stop/stop-limit
// orders once the last trade price crosses their stop price, implementing
// the trigger-mechanism decision recorded in SPEC_FULL.md (the distilled
// spec left this open: spec.md's Design Notes list it as unresolved
// because the order type exists but no trigger rule is implemented).
//
// Grounded on the event-subscriber pattern in internal/eventbus: the
// watcher is just another TradeExecutedHandler registered at startup, the
// same shape the risk/notification/audit collaborators use.
package trigger

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/domain"
	"fenrir/internal/eventbus"
)

// StopBook is the subset of the order manager the watcher needs.
type StopBook interface {
	PendingStops(commodity domain.Commodity) []domain.Order
	PromoteStop(commodity domain.Commodity, orderID string) error
}

// Watcher tracks the last trade price per commodity and fires triggers.
type Watcher struct {
	book StopBook
}

// New builds a Watcher over book. Register it with a bus via Attach.
func New(book StopBook) *Watcher {
	return &Watcher{book: book}
}

// Attach subscribes the watcher to the bus's trade-executed topic.
func (w *Watcher) Attach(bus *eventbus.Bus) {
	bus.OnTradeExecuted(w.onTradeExecuted)
}

// onTradeExecuted checks every pending stop order for commodity against
// the new last trade price and promotes the ones that now trigger.
//
// Trigger rule (SPEC_FULL.md): a buy stop triggers when the last trade
// price rises to or above its stop price; a sell stop triggers when it
// falls to or below its stop price — the common "stop chases the market
// away from the resting side" convention.
func (w *Watcher) onTradeExecuted(f domain.Fill) {
	for _, order := range w.book.PendingStops(f.Commodity) {
		if !triggers(order, f.Price) {
			continue
		}
		if err := w.book.PromoteStop(f.Commodity, order.ID); err != nil {
			log.Error().Err(err).Str("orderId", order.ID).Msg("stop order promotion failed")
		}
	}
}

func triggers(order domain.Order, lastPrice decimal.Decimal) bool {
	if order.Side == domain.Buy {
		return lastPrice.GreaterThanOrEqual(order.StopPrice)
	}
	return lastPrice.LessThanOrEqual(order.StopPrice)
}
