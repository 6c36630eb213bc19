// Package matching implements the matching engine (C3): applying an
// incoming order to a commodity's book and producing Fill records.
//
// Grounded on the teacher's internal/engine/orderbook.go Match/handleMarket/
// handleLimit trio, generalized from float64 to decimal.Decimal prices and
// split out of the Book type so the book stays a pure data structure and
// the matching rules (market residual against the oracle, limit price
// improvement, FOK/IOC post-processing) live in one place per spec.md §4.2.
package matching

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/domain"
)

// PriceOracle is the subset of the Market Price Oracle (C1) the matching
// engine needs: a single current-price read per market fill, per spec.md
// §5 ("avoids calling the oracle while holding the book lock except for a
// single read per market fill").
type PriceOracle interface {
	CurrentPrice(commodity domain.Commodity) (decimal.Decimal, error)
}

// Match applies order (the aggressor) against bk and returns the fills it
// produced. order's Quantity/FilledQuantity/RemainingQuantity/AvgFillPrice
// are mutated in place, as are the resting orders it consumes. order itself
// is never inserted into bk here — the caller (OrderManager) does that for
// any still-resting limit remainder, per spec.md §4.2/§4.3 split of
// responsibility.
func Match(order *domain.Order, bk *book.Book, oracle PriceOracle) ([]domain.Fill, error) {
	switch order.Type {
	case domain.MarketOrder:
		return matchMarket(order, bk, oracle)
	case domain.LimitOrder:
		return matchLimit(order, bk)
	default:
		// Stop / stop-limit never reach here directly; the order manager
		// resubmits them as market/limit once triggered.
		return nil, nil
	}
}

// Fillable reports the total resting quantity order could execute against
// right now without mutating bk, used for the FOK ("fill or kill")
// pre-check: a FOK order is only admitted if this is >= order.Quantity
// (spec.md §4.2).
func Fillable(order *domain.Order, bk *book.Book) decimal.Decimal {
	return bk.AvailableQuantity(order.Side, func(levelPrice decimal.Decimal) bool {
		return crosses(order, levelPrice)
	})
}

func crosses(order *domain.Order, levelPrice decimal.Decimal) bool {
	if order.Side == domain.Buy {
		return order.LimitPrice.GreaterThanOrEqual(levelPrice)
	}
	return order.LimitPrice.LessThanOrEqual(levelPrice)
}

func matchLimit(order *domain.Order, bk *book.Book) ([]domain.Fill, error) {
	var fills []domain.Fill
	opposite := bk.OppositeSide(order.Side)

	for order.RemainingQuantity.IsPositive() {
		level, ok := opposite.MinMut()
		if !ok || !crosses(order, level.Price) {
			break
		}
		levelFills, consumedIDs, exhausted := consumeLevel(order, level)
		fills = append(fills, levelFills...)
		bk.ReleaseConsumed(consumedIDs)
		if exhausted {
			bk.DeleteLevel(order.Side, level)
		}
		if len(levelFills) == 0 {
			// Nothing could be consumed at this level (shouldn't happen
			// given the cross check above) — avoid spinning forever.
			break
		}
	}
	recomputeAvg(order, fills)
	return fills, nil
}

func matchMarket(order *domain.Order, bk *book.Book, oracle PriceOracle) ([]domain.Fill, error) {
	var fills []domain.Fill
	opposite := bk.OppositeSide(order.Side)

	for order.RemainingQuantity.IsPositive() {
		level, ok := opposite.MinMut()
		if !ok {
			break
		}
		levelFills, consumedIDs, exhausted := consumeLevel(order, level)
		fills = append(fills, levelFills...)
		bk.ReleaseConsumed(consumedIDs)
		if exhausted {
			bk.DeleteLevel(order.Side, level)
		}
		if len(levelFills) == 0 {
			break
		}
	}

	if order.RemainingQuantity.IsPositive() {
		price, err := oracle.CurrentPrice(order.Commodity)
		if err != nil {
			return fills, err
		}
		qty := order.RemainingQuantity
		fill := domain.Fill{
			ID:             uuid.NewString(),
			Commodity:      order.Commodity,
			Quantity:       qty,
			Price:          price,
			AggressorSide:  order.Side,
			AggressorOrder: order.ID,
			PassiveOrder:   "",
			AggressorUser:  order.UserID,
			PassiveUser:    domain.MarketParty,
			Timestamp:      time.Now().UTC(),
		}
		order.FilledQuantity = order.FilledQuantity.Add(qty)
		order.RemainingQuantity = decimal.Zero
		order.FillIDs = append(order.FillIDs, fill.ID)
		fills = append(fills, fill)
	}

	recomputeAvg(order, fills)
	return fills, nil
}

// consumeLevel matches order (the aggressor) against the FIFO queue of
// resting orders at level, earliest arrival first, per spec.md §4.2's
// tie-break rule. Returns the fills produced, the ids of resting orders
// that filled completely and were spliced out of level.Orders (the caller
// must release these from the book's id index), and whether the level is
// now fully exhausted.
func consumeLevel(order *domain.Order, level *book.PriceLevel) ([]domain.Fill, []string, bool) {
	var fills []domain.Fill
	var consumedIDs []string
	idx := 0
	for idx < len(level.Orders) && order.RemainingQuantity.IsPositive() {
		resting := level.Orders[idx]
		matchQty := decimal.Min(order.RemainingQuantity, resting.RemainingQuantity)
		if matchQty.IsZero() {
			idx++
			continue
		}

		resting.FilledQuantity = resting.FilledQuantity.Add(matchQty)
		resting.RemainingQuantity = resting.RemainingQuantity.Sub(matchQty)
		order.FilledQuantity = order.FilledQuantity.Add(matchQty)
		order.RemainingQuantity = order.RemainingQuantity.Sub(matchQty)

		fill := domain.Fill{
			ID:             uuid.NewString(),
			Commodity:      order.Commodity,
			Quantity:       matchQty,
			Price:          level.Price,
			AggressorSide:  order.Side,
			AggressorOrder: order.ID,
			PassiveOrder:   resting.ID,
			AggressorUser:  order.UserID,
			PassiveUser:    resting.UserID,
			Timestamp:      time.Now().UTC(),
		}
		order.FillIDs = append(order.FillIDs, fill.ID)
		resting.FillIDs = append(resting.FillIDs, fill.ID)
		fills = append(fills, fill)

		if resting.RemainingQuantity.IsZero() {
			resting.Status = domain.Filled
			consumedIDs = append(consumedIDs, resting.ID)
			idx++
		} else {
			resting.Status = domain.Partial
		}
	}
	if idx > 0 {
		level.Orders = level.Orders[idx:]
	}
	return fills, consumedIDs, len(level.Orders) == 0
}

// recomputeAvg sets order.AvgFillPrice to the quantity-weighted mean of its
// fills across this call (callers accumulate across multiple Match calls by
// re-deriving from FillIDs if needed; within one call this is exact because
// order.FilledQuantity only grows here).
func recomputeAvg(order *domain.Order, newFills []domain.Fill) {
	if len(newFills) == 0 {
		return
	}
	priorQty := order.FilledQuantity
	for _, f := range newFills {
		priorQty = priorQty.Sub(f.Quantity)
	}
	priorValue := order.AvgFillPrice.Mul(priorQty)
	for _, f := range newFills {
		priorValue = priorValue.Add(f.Price.Mul(f.Quantity))
	}
	if order.FilledQuantity.IsPositive() {
		order.AvgFillPrice = priorValue.Div(order.FilledQuantity)
	}
	if order.RemainingQuantity.IsZero() {
		order.Status = domain.Filled
	} else if order.FilledQuantity.IsPositive() {
		order.Status = domain.Partial
	}
}
