// Package position implements the Position Ledger (C4): per-(user,
// commodity) net position with weighted-average cost and realized/
// unrealized P&L, per spec.md §3 and §4.4.
package position

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fenrir/internal/domain"
)

// Oracle is the subset of the Market Price Oracle the ledger needs to mark
// a position to market.
type Oracle interface {
	CurrentPrice(commodity domain.Commodity) (decimal.Decimal, error)
}

type key struct {
	user      string
	commodity domain.Commodity
}

// Ledger is the sole writer of Position state (spec.md §4.4). Safe for
// concurrent use across commodities; callers updating a single commodity's
// positions are expected to already hold that commodity's lock (see
// internal/orders), matching the "typically by the same lock as the
// commodity book" note in spec.md §5.
type Ledger struct {
	oracle Oracle

	mu        sync.RWMutex
	positions map[key]*domain.Position
}

// New builds an empty ledger.
func New(oracle Oracle) *Ledger {
	return &Ledger{
		oracle:    oracle,
		positions: make(map[key]*domain.Position),
	}
}

// Apply folds a signed fill quantity at price into the user's position for
// commodity, per the weighted-average/realized-P&L rules of spec.md §3.
// signedQty is positive for a buy fill, negative for a sell fill (§4.4
// sign convention). Returns the position's state after the update.
func (l *Ledger) Apply(userID string, commodity domain.Commodity, signedQty, price decimal.Decimal) (domain.Position, error) {
	if userID == domain.MarketParty {
		// The synthetic market counterparty never holds a position
		// (spec.md §9).
		return domain.Position{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{user: userID, commodity: commodity}
	pos, ok := l.positions[k]
	if !ok {
		pos = &domain.Position{UserID: userID, Commodity: commodity}
		l.positions[k] = pos
	}

	if err := apply(pos, signedQty, price); err != nil {
		return domain.Position{}, err
	}
	pos.UpdatedAt = time.Now().UTC()

	if l.oracle != nil {
		if mark, err := l.oracle.CurrentPrice(commodity); err == nil {
			pos.UnrealizedPnL = unrealized(*pos, mark)
		}
	}
	return *pos, nil
}

// apply mutates pos in place per the invariants in spec.md §3:
//   - same-side increment: avgPrice becomes the quantity-weighted mean
//   - opposite-side fill: realized P&L on the closed portion, and if the
//     fill overshoots the existing quantity, the excess opens a fresh
//     position on the other side at the fill price.
func apply(pos *domain.Position, signedQty, price decimal.Decimal) error {
	if signedQty.IsZero() {
		return nil
	}

	switch {
	case pos.Quantity.IsZero():
		pos.Quantity = signedQty
		pos.AvgPrice = price

	case sameSign(pos.Quantity, signedQty):
		totalQty := pos.Quantity.Add(signedQty)
		totalValue := pos.AvgPrice.Mul(pos.Quantity.Abs()).Add(price.Mul(signedQty.Abs()))
		pos.AvgPrice = totalValue.Div(totalQty.Abs())
		pos.Quantity = totalQty

	default:
		// Opposite-side fill: it closes existing exposure, and realizes
		// P&L on whichever is smaller in magnitude.
		closing := decimal.Min(pos.Quantity.Abs(), signedQty.Abs())
		priorSign := sign(pos.Quantity)
		realized := closing.Mul(price.Sub(pos.AvgPrice)).Mul(decimal.NewFromInt(priorSign))
		pos.RealizedPnL = pos.RealizedPnL.Add(realized)

		remaining := pos.Quantity.Add(signedQty)
		switch {
		case remaining.IsZero():
			pos.Quantity = decimal.Zero
			pos.AvgPrice = decimal.Zero
		case sign(remaining) == priorSign:
			// Partially closed; the open lot's cost basis is unchanged.
			pos.Quantity = remaining
		default:
			// Fully closed and flipped: the excess opens a fresh position
			// on the other side at the fill price (spec.md §3).
			pos.Quantity = remaining
			pos.AvgPrice = price
		}
	}
	return nil
}

func sign(d decimal.Decimal) int64 {
	switch {
	case d.IsPositive():
		return 1
	case d.IsNegative():
		return -1
	default:
		return 0
	}
}

func sameSign(a, b decimal.Decimal) bool {
	return sign(a) == sign(b)
}

func unrealized(pos domain.Position, mark decimal.Decimal) decimal.Decimal {
	return pos.Quantity.Mul(mark.Sub(pos.AvgPrice))
}

// Get returns the current position for (user, commodity), recomputing
// UnrealizedPnL against the oracle on every read per spec.md §4.4.
func (l *Ledger) Get(userID string, commodity domain.Commodity) (domain.Position, bool) {
	l.mu.RLock()
	pos, ok := l.positions[key{user: userID, commodity: commodity}]
	var snapshot domain.Position
	if ok {
		snapshot = *pos
	}
	l.mu.RUnlock()
	if !ok {
		return domain.Position{}, false
	}
	if l.oracle != nil {
		if mark, err := l.oracle.CurrentPrice(commodity); err == nil {
			snapshot.UnrealizedPnL = unrealized(snapshot, mark)
		}
	}
	return snapshot, true
}

// ListByUser returns every commodity position the user holds, each with a
// freshly recomputed UnrealizedPnL.
func (l *Ledger) ListByUser(userID string) []domain.Position {
	l.mu.RLock()
	var keys []key
	for k := range l.positions {
		if k.user == userID {
			keys = append(keys, k)
		}
	}
	l.mu.RUnlock()

	out := make([]domain.Position, 0, len(keys))
	for _, k := range keys {
		if pos, ok := l.Get(k.user, k.commodity); ok {
			out = append(out, pos)
		}
	}
	return out
}

// PortfolioSummary is GetPortfolioSummary's return shape (spec.md §4.3,
// detailed in SPEC_FULL.md's supplemented-features section).
type PortfolioSummary struct {
	UserID        string
	Positions     []domain.Position
	TotalRealized decimal.Decimal
	TotalPnL      decimal.Decimal
}

// Summarize builds a PortfolioSummary for userID.
func (l *Ledger) Summarize(userID string) PortfolioSummary {
	positions := l.ListByUser(userID)
	summary := PortfolioSummary{UserID: userID, Positions: positions}
	for _, p := range positions {
		summary.TotalRealized = summary.TotalRealized.Add(p.RealizedPnL)
		summary.TotalPnL = summary.TotalPnL.Add(p.RealizedPnL).Add(p.UnrealizedPnL)
	}
	return summary
}

// String renders a position for logs, matching the teacher's habit of
// giving domain records a readable String().
func (l *Ledger) String() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fmt.Sprintf("ledger: %d positions tracked", len(l.positions))
}
