// Package orders implements the Order Manager (C5): validation, lifecycle
// ownership, and the glue that drives the matching engine (C3) and the
// position ledger (C4) and emits events on the bus (C6), per spec.md §4.3.
//
// Concurrency model (spec.md §5): every order/book mutation for a
// commodity is serialized behind that commodity's lock, built once at
// startup for the fixed commodity set so no lock is ever created lazily
// under contention. A fill touches exactly one commodity's book and the
// positions of the two users on either side of it, so this single lock
// covers the whole critical section spec.md calls out ("a fill and both
// order updates are a single critical section").
package orders

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/domain"
	"fenrir/internal/eventbus"
	"fenrir/internal/matching"
	"fenrir/internal/position"
)

// Config carries the enumerated configuration from spec.md §6.
type Config struct {
	MinOrderSize decimal.Decimal
	MaxOrderSize decimal.Decimal
}

// Manager is the C5 Order Manager handle. Constructed once at startup,
// torn down on shutdown — no package-level mutable state (spec.md §9,
// "Ambient process-global state" note).
type Manager struct {
	cfg    Config
	oracle matching.PriceOracle
	ledger *position.Ledger
	bus    *eventbus.Bus

	locks map[domain.Commodity]*sync.Mutex
	books map[domain.Commodity]*book.Book

	ordersMu     sync.RWMutex
	orders       map[string]*domain.Order
	ordersByUser map[string][]string

	fillsMu sync.RWMutex
	fills   []domain.Fill

	pendingStopsMu sync.Mutex
	pendingStops   map[domain.Commodity]map[string]*domain.Order
}

// New constructs a Manager covering every supported commodity.
func New(cfg Config, oracle matching.PriceOracle, ledger *position.Ledger, bus *eventbus.Bus) *Manager {
	m := &Manager{
		cfg:          cfg,
		oracle:       oracle,
		ledger:       ledger,
		bus:          bus,
		locks:        make(map[domain.Commodity]*sync.Mutex),
		books:        make(map[domain.Commodity]*book.Book),
		orders:       make(map[string]*domain.Order),
		ordersByUser: make(map[string][]string),
		pendingStops: make(map[domain.Commodity]map[string]*domain.Order),
	}
	for _, c := range domain.SupportedCommodities {
		m.locks[c] = &sync.Mutex{}
		m.books[c] = book.New(c)
		m.pendingStops[c] = make(map[string]*domain.Order)
	}
	return m
}

func (m *Manager) lockFor(c domain.Commodity) *sync.Mutex {
	return m.locks[c]
}

// PlaceOrderRequest is the inbound PlaceOrder payload (spec.md §6).
type PlaceOrderRequest struct {
	UserID      string
	Commodity   domain.Commodity
	Side        domain.Side
	Type        domain.OrderType
	Quantity    decimal.Decimal
	LimitPrice  decimal.Decimal
	StopPrice   decimal.Decimal
	TimeInForce domain.TimeInForce
}

func (m *Manager) validate(req PlaceOrderRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: missing userId", domain.ErrInvalidOrder)
	}
	if !req.Commodity.IsSupported() {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedCommodity, req.Commodity)
	}
	if req.Side != domain.Buy && req.Side != domain.Sell {
		return fmt.Errorf("%w: unsupported side", domain.ErrInvalidOrder)
	}
	switch req.Type {
	case domain.MarketOrder, domain.LimitOrder, domain.StopOrder, domain.StopLimitOrder:
	default:
		return fmt.Errorf("%w: unsupported order type", domain.ErrInvalidOrder)
	}
	switch req.TimeInForce {
	case domain.Day, domain.GTC, domain.IOC, domain.FOK:
	default:
		return fmt.Errorf("%w: unsupported time in force", domain.ErrInvalidOrder)
	}
	if req.Quantity.LessThan(m.cfg.MinOrderSize) || req.Quantity.GreaterThan(m.cfg.MaxOrderSize) {
		return fmt.Errorf("%w: quantity %s outside [%s, %s]", domain.ErrSizeLimitExceeded,
			req.Quantity, m.cfg.MinOrderSize, m.cfg.MaxOrderSize)
	}
	if (req.Type == domain.LimitOrder || req.Type == domain.StopLimitOrder) && !req.LimitPrice.IsPositive() {
		return fmt.Errorf("%w: limit price must be positive", domain.ErrInvalidOrder)
	}
	if (req.Type == domain.StopOrder || req.Type == domain.StopLimitOrder) && !req.StopPrice.IsPositive() {
		return fmt.Errorf("%w: stop price must be positive", domain.ErrInvalidOrder)
	}
	return nil
}

// PlaceOrder validates and admits a new order, driving the matching engine
// and position ledger, and publishing OrderPlaced plus any TradeExecuted
// events (spec.md §4.3).
func (m *Manager) PlaceOrder(req PlaceOrderRequest) (domain.Order, error) {
	if err := m.validate(req); err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:                uuid.NewString(),
		UserID:            req.UserID,
		Commodity:         req.Commodity,
		Side:              req.Side,
		Type:              req.Type,
		Quantity:          req.Quantity,
		LimitPrice:        req.LimitPrice,
		StopPrice:         req.StopPrice,
		TimeInForce:       req.TimeInForce,
		CreatedAt:         now,
		UpdatedAt:         now,
		Status:            domain.Pending,
		RemainingQuantity: req.Quantity,
	}

	lock := m.lockFor(req.Commodity)
	lock.Lock()
	result, err := m.admit(order)
	lock.Unlock()
	if err != nil {
		return domain.Order{}, err
	}

	m.storeOrder(order)
	m.bus.PublishOrderPlaced(order.Clone())
	for _, f := range result.fills {
		m.recordFill(f)
		m.bus.PublishTradeExecuted(f)
	}
	return order.Clone(), nil
}

type admitResult struct {
	fills []domain.Fill
}

// admit runs the validated order through matching/TIF handling while the
// caller holds the commodity lock. Any programming-invariant violation
// panics here and is recovered by the deferred handler below, converting
// it into "operation aborted, nothing applied" (spec.md §4.3, §7): since
// everything up to that point only mutated data reachable from this
// function's locals and the book/position structures this order touches,
// and since the panic happens before storeOrder/Publish run, no caller
// ever observes a half-applied order.
func (m *Manager) admit(order *domain.Order) (res admitResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("orderId", order.ID).Msg("order admission aborted")
			res = admitResult{}
			err = fmt.Errorf("internal error admitting order %s", order.ID)
		}
	}()

	bk := m.books[order.Commodity]

	if order.Type == domain.StopOrder || order.Type == domain.StopLimitOrder {
		m.pendingStopsMu.Lock()
		m.pendingStops[order.Commodity][order.ID] = order
		m.pendingStopsMu.Unlock()
		return admitResult{}, nil
	}

	if order.TimeInForce == domain.FOK && order.Type == domain.LimitOrder {
		available := matching.Fillable(order, bk)
		if available.LessThan(order.Quantity) {
			return admitResult{}, domain.ErrRejected
		}
	}

	fills, matchErr := matching.Match(order, bk, m.oracle)
	if matchErr != nil && len(fills) == 0 {
		return admitResult{}, matchErr
	}

	for _, f := range fills {
		m.applyFillToPositions(f)
	}

	m.finalizeAfterMatch(order, bk)
	return admitResult{fills: fills}, nil
}

// finalizeAfterMatch applies the TIF post-conditions (spec.md §4.2) and
// reinserts a still-resting limit remainder into the book.
func (m *Manager) finalizeAfterMatch(order *domain.Order, bk *book.Book) {
	if order.RemainingQuantity.IsZero() {
		order.Status = domain.Filled
		return
	}

	switch order.TimeInForce {
	case domain.IOC, domain.FOK:
		// Any unfilled residual is cancelled immediately; FOK only
		// reaches here already guaranteed fully fillable, so this path is
		// IOC's "partial fill then immediate cancel of residual".
		order.Status = domain.Cancelled
		return
	}

	if order.Type == domain.LimitOrder {
		if order.FilledQuantity.IsPositive() {
			order.Status = domain.Partial
		} else {
			order.Status = domain.Pending
		}
		bk.Insert(order)
		return
	}

	// A market order that still has a remainder here means the oracle
	// itself failed to price the residual (domain.ErrNoLiquidity); market
	// orders never rest, so the remainder is simply foregone.
	if order.FilledQuantity.IsPositive() {
		order.Status = domain.Partial
	} else {
		order.Status = domain.Cancelled
	}
}

func (m *Manager) applyFillToPositions(f domain.Fill) {
	aggressorSign := decimal.NewFromInt(f.AggressorSide.Sign())
	if _, err := m.ledger.Apply(f.AggressorUser, f.Commodity, f.Quantity.Mul(aggressorSign), f.Price); err != nil {
		panic(err)
	}
	if f.PassiveUser != domain.MarketParty {
		if _, err := m.ledger.Apply(f.PassiveUser, f.Commodity, f.Quantity.Mul(aggressorSign.Neg()), f.Price); err != nil {
			panic(err)
		}
	}
}

func (m *Manager) storeOrder(order *domain.Order) {
	m.ordersMu.Lock()
	defer m.ordersMu.Unlock()
	m.orders[order.ID] = order
	m.ordersByUser[order.UserID] = append(m.ordersByUser[order.UserID], order.ID)
}

// ModifyRequest carries the fields a caller may change on a resting order.
// Zero values mean "leave unchanged".
type ModifyRequest struct {
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal
}

// ModifyOrder changes a resting limit order's quantity and/or price.
// Per SPEC_FULL.md's modify-semantics decision: a price change, or a
// quantity increase, resets the order to the back of its price level's
// queue (loses time priority); a quantity decrease alone keeps the
// order's existing queue position.
func (m *Manager) ModifyOrder(id string, req ModifyRequest) (domain.Order, error) {
	m.ordersMu.RLock()
	order, ok := m.orders[id]
	m.ordersMu.RUnlock()
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}

	lock := m.lockFor(order.Commodity)
	lock.Lock()
	defer lock.Unlock()

	if !order.Status.IsResting() {
		return domain.Order{}, domain.ErrIllegalTransition
	}
	if order.Type != domain.LimitOrder {
		return domain.Order{}, fmt.Errorf("%w: only resting limit orders can be modified", domain.ErrIllegalTransition)
	}

	before := order.Clone()
	bk := m.books[order.Commodity]

	newQty := order.Quantity
	if !req.Quantity.IsZero() {
		newQty = req.Quantity
	}
	if newQty.LessThan(m.cfg.MinOrderSize) || newQty.GreaterThan(m.cfg.MaxOrderSize) {
		return domain.Order{}, fmt.Errorf("%w: quantity %s outside [%s, %s]", domain.ErrSizeLimitExceeded,
			newQty, m.cfg.MinOrderSize, m.cfg.MaxOrderSize)
	}
	if newQty.LessThanOrEqual(order.FilledQuantity) {
		return domain.Order{}, fmt.Errorf("%w: quantity must exceed filled amount", domain.ErrInvalidOrder)
	}

	newPrice := order.LimitPrice
	if !req.LimitPrice.IsZero() {
		newPrice = req.LimitPrice
	}
	if !newPrice.IsPositive() {
		return domain.Order{}, fmt.Errorf("%w: limit price must be positive", domain.ErrInvalidOrder)
	}

	priceChanged := !newPrice.Equal(order.LimitPrice)
	qtyIncreased := newQty.GreaterThan(order.Quantity)
	losesPriority := priceChanged || qtyIncreased

	if losesPriority {
		bk.Remove(order.ID)
	}

	order.Quantity = newQty
	order.LimitPrice = newPrice
	order.RemainingQuantity = newQty.Sub(order.FilledQuantity)
	order.UpdatedAt = time.Now().UTC()

	if losesPriority {
		bk.Insert(order)
	}

	m.bus.PublishOrderModified(before, order.Clone())
	return order.Clone(), nil
}

// CancelOrder removes a resting order from its book (or from the pending
// stop watch list) and marks it cancelled. Idempotent on an already
// terminal order only in the sense that it reports ErrIllegalTransition,
// matching spec.md §4.1's "cancel is a no-op on an absent id" note for the
// book itself while still surfacing a clear error for a bad API call.
func (m *Manager) CancelOrder(id string) (domain.Order, error) {
	m.ordersMu.RLock()
	order, ok := m.orders[id]
	m.ordersMu.RUnlock()
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}

	lock := m.lockFor(order.Commodity)
	lock.Lock()
	defer lock.Unlock()

	if order.Status.IsTerminal() {
		return domain.Order{}, domain.ErrIllegalTransition
	}

	if order.Type == domain.StopOrder || order.Type == domain.StopLimitOrder {
		m.pendingStopsMu.Lock()
		delete(m.pendingStops[order.Commodity], order.ID)
		m.pendingStopsMu.Unlock()
	} else {
		m.books[order.Commodity].Remove(order.ID)
	}

	order.Status = domain.Cancelled
	order.UpdatedAt = time.Now().UTC()

	m.bus.PublishOrderCancelled(order.Clone())
	return order.Clone(), nil
}

// PendingStops returns the stop/stop-limit orders currently waiting on a
// trigger for commodity (used by internal/trigger).
func (m *Manager) PendingStops(commodity domain.Commodity) []domain.Order {
	m.pendingStopsMu.Lock()
	defer m.pendingStopsMu.Unlock()
	out := make([]domain.Order, 0, len(m.pendingStops[commodity]))
	for _, o := range m.pendingStops[commodity] {
		out = append(out, o.Clone())
	}
	return out
}

// PromoteStop fires a triggered stop/stop-limit order: it leaves the
// pending-stop list and runs through the same matching/position/publish
// pipeline as a freshly placed market or limit order, per SPEC_FULL.md's
// stop-trigger decision. It does not re-publish OrderPlaced — the order
// was already announced when it was first admitted as a stop order.
func (m *Manager) PromoteStop(commodity domain.Commodity, orderID string) error {
	lock := m.lockFor(commodity)
	lock.Lock()
	defer lock.Unlock()

	m.pendingStopsMu.Lock()
	order, ok := m.pendingStops[commodity][orderID]
	if ok {
		delete(m.pendingStops[commodity], orderID)
	}
	m.pendingStopsMu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	if order.Type == domain.StopOrder {
		order.Type = domain.MarketOrder
	} else {
		order.Type = domain.LimitOrder
	}
	order.UpdatedAt = time.Now().UTC()

	bk := m.books[commodity]
	fills, err := matching.Match(order, bk, m.oracle)
	if err != nil && len(fills) == 0 {
		order.Status = domain.Rejected
		return err
	}
	for _, f := range fills {
		m.applyFillToPositions(f)
		m.recordFill(f)
		m.bus.PublishTradeExecuted(f)
	}
	m.finalizeAfterMatch(order, bk)
	return nil
}

// CancelDayOrders cancels every resting order whose time-in-force is Day,
// for the session-close sweep (spec.md §4.2, the "day" TIF's expiry at
// session close). Returns the ids cancelled.
func (m *Manager) CancelDayOrders() []string {
	m.ordersMu.RLock()
	var targets []*domain.Order
	for _, o := range m.orders {
		if o.TimeInForce == domain.Day && o.Status.IsResting() {
			targets = append(targets, o)
		}
	}
	m.ordersMu.RUnlock()

	cancelled := make([]string, 0, len(targets))
	for _, o := range targets {
		if _, err := m.CancelOrder(o.ID); err != nil {
			log.Warn().Err(err).Str("orderId", o.ID).Msg("day-order sweep failed to cancel order")
			continue
		}
		cancelled = append(cancelled, o.ID)
	}
	return cancelled
}

// GetOrder returns a snapshot copy of an order.
func (m *Manager) GetOrder(id string) (domain.Order, error) {
	m.ordersMu.RLock()
	defer m.ordersMu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o.Clone(), nil
}

// ListUserOrders returns every order for userID, optionally filtered by
// status.
func (m *Manager) ListUserOrders(userID string, status *domain.OrderStatus) []domain.Order {
	m.ordersMu.RLock()
	defer m.ordersMu.RUnlock()
	ids := m.ordersByUser[userID]
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		o := m.orders[id]
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, o.Clone())
	}
	return out
}

// GetOrderBookSnapshot returns an aggregated snapshot of a commodity's book.
func (m *Manager) GetOrderBookSnapshot(commodity domain.Commodity, depth int) (book.Snapshot, error) {
	if !commodity.IsSupported() {
		return book.Snapshot{}, domain.ErrUnsupportedCommodity
	}
	lock := m.lockFor(commodity)
	lock.Lock()
	defer lock.Unlock()
	return m.books[commodity].Snapshot(depth), nil
}

// GetPortfolioSummary returns the user's positions and aggregate P&L.
func (m *Manager) GetPortfolioSummary(userID string) position.PortfolioSummary {
	return m.ledger.Summarize(userID)
}

// recordFill appends to the in-memory trade history (used by the matching
// path after a successful admit, and readable via GetTradeHistory).
func (m *Manager) recordFill(f domain.Fill) {
	m.fillsMu.Lock()
	m.fills = append(m.fills, f)
	m.fillsMu.Unlock()
}

// TradeHistoryQuery filters GetTradeHistory.
type TradeHistoryQuery struct {
	UserID    string           // empty = any user
	Commodity domain.Commodity // empty = any commodity
	Limit     int
}

// GetTradeHistory returns the most recent fills matching the query, newest
// first.
func (m *Manager) GetTradeHistory(q TradeHistoryQuery) []domain.Fill {
	m.fillsMu.RLock()
	defer m.fillsMu.RUnlock()

	out := make([]domain.Fill, 0, q.Limit)
	for i := len(m.fills) - 1; i >= 0 && (q.Limit <= 0 || len(out) < q.Limit); i-- {
		f := m.fills[i]
		if q.UserID != "" && f.AggressorUser != q.UserID && f.PassiveUser != q.UserID {
			continue
		}
		if q.Commodity != "" && f.Commodity != q.Commodity {
			continue
		}
		out = append(out, f)
	}
	return out
}
