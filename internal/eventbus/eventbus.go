// Package eventbus implements the typed topic pub/sub layer (C6) that
// decouples the matching engine from risk, notification and audit
// collaborators (spec.md §4.5).
//
// Grounded on the teacher's internal/worker.go WorkerPool: one supervised
// dispatcher goroutine, backed by gopkg.in/tomb.v2 the same way the teacher
// supervises its connection-handling workers, draining a single buffered
// channel so Publish never waits on subscriber work. Re-expressed from the
// source system's stringly-typed on(event, any) emitter into four fixed,
// typed topics per the "Event-emitter pattern" note in spec.md §9 — but all
// four still funnel through one channel and one goroutine, not one per
// topic, because spec.md §4.5 and testable property #6 require that a
// subscriber observe a given order id's OrderPlaced -> OrderModified* ->
// OrderCancelled|TradeExecuted events in that order. Four independent
// per-topic channels would preserve enqueue order but not drain order
// across topics; one channel tagged by kind preserves both.
package eventbus

import (
	"context"

	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"

	"fenrir/internal/domain"
)

// OrderModifiedEvent bundles the before/after order state.
type OrderModifiedEvent struct {
	Old domain.Order
	New domain.Order
}

// Handler functions. Subscribers register once at startup (spec.md §4.5:
// "no dynamic on(string, any) surface").
type (
	OrderPlacedHandler    func(domain.Order)
	TradeExecutedHandler  func(domain.Fill)
	OrderCancelledHandler func(domain.Order)
	OrderModifiedHandler  func(OrderModifiedEvent)
)

const queueDepth = 4096

// topicKind tags a queued event so the single dispatcher goroutine knows
// which handler slice to fan out to.
type topicKind int

const (
	kindOrderPlaced topicKind = iota
	kindTradeExecuted
	kindOrderCancelled
	kindOrderModified
)

// busEvent is the tagged union queued on Bus.events. Only the field
// matching kind is populated.
type busEvent struct {
	kind           topicKind
	orderPlaced    domain.Order
	tradeExecuted  domain.Fill
	orderCancelled domain.Order
	orderModified  OrderModifiedEvent
}

// Bus is the four-topic event bus. Ordering guarantee: a subscriber
// observes events for a given order id in publish order across all four
// topics, because every Publish* call enqueues onto one FIFO channel
// drained by exactly one dispatcher goroutine (spec.md §4.5, §5, testable
// property #6).
type Bus struct {
	t *tomb.Tomb

	events chan busEvent

	orderPlacedHandlers    []OrderPlacedHandler
	tradeExecutedHandlers  []TradeExecutedHandler
	orderCancelledHandlers []OrderCancelledHandler
	orderModifiedHandlers  []OrderModifiedHandler

	metrics Metrics
}

// Metrics lets callers observe bus throughput without the bus importing a
// concrete metrics backend (see internal/metrics for the prometheus-backed
// implementation).
type Metrics interface {
	ObservePublished(topic string)
}

type noopMetrics struct{}

func (noopMetrics) ObservePublished(string) {}

// New constructs a Bus. Handlers must be registered with On* before Run is
// called; the bus does not support dynamic registration afterwards.
func New(metrics Metrics) *Bus {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Bus{
		events:  make(chan busEvent, queueDepth),
		metrics: metrics,
	}
}

func (b *Bus) OnOrderPlaced(h OrderPlacedHandler) {
	b.orderPlacedHandlers = append(b.orderPlacedHandlers, h)
}
func (b *Bus) OnTradeExecuted(h TradeExecutedHandler) {
	b.tradeExecutedHandlers = append(b.tradeExecutedHandlers, h)
}
func (b *Bus) OnOrderCancelled(h OrderCancelledHandler) {
	b.orderCancelledHandlers = append(b.orderCancelledHandlers, h)
}
func (b *Bus) OnOrderModified(h OrderModifiedHandler) {
	b.orderModifiedHandlers = append(b.orderModifiedHandlers, h)
}

// Run starts the single dispatcher goroutine under a tomb supervisor bound
// to ctx. Call Stop (or cancel ctx) to drain and shut down.
func (b *Bus) Run(ctx context.Context) {
	b.t, ctx = tomb.WithContext(ctx)
	b.t.Go(func() error { return b.dispatch() })
}

// Stop signals all dispatchers to drain and exit, and waits for them.
func (b *Bus) Stop() error {
	if b.t == nil {
		return nil
	}
	b.t.Kill(nil)
	return b.t.Wait()
}

// PublishOrderPlaced is fire-and-forget: it enqueues and returns without
// waiting on subscriber handlers (spec.md §4.5).
func (b *Bus) PublishOrderPlaced(o domain.Order) {
	b.metrics.ObservePublished("order_placed")
	b.events <- busEvent{kind: kindOrderPlaced, orderPlaced: o}
}

func (b *Bus) PublishTradeExecuted(f domain.Fill) {
	b.metrics.ObservePublished("trade_executed")
	b.events <- busEvent{kind: kindTradeExecuted, tradeExecuted: f}
}

func (b *Bus) PublishOrderCancelled(o domain.Order) {
	b.metrics.ObservePublished("order_cancelled")
	b.events <- busEvent{kind: kindOrderCancelled, orderCancelled: o}
}

func (b *Bus) PublishOrderModified(old, new_ domain.Order) {
	b.metrics.ObservePublished("order_modified")
	b.events <- busEvent{kind: kindOrderModified, orderModified: OrderModifiedEvent{Old: old, New: new_}}
}

func (b *Bus) dispatch() error {
	for {
		select {
		case <-b.t.Dying():
			return b.drain()
		case ev := <-b.events:
			b.invoke(ev)
		}
	}
}

func (b *Bus) drain() error {
	for {
		select {
		case ev := <-b.events:
			b.invoke(ev)
		default:
			return nil
		}
	}
}

// invoke fans ev out to the handler slice for its topic, preserving the
// single-goroutine drain order that gives subscribers a consistent view of
// any one order's lifecycle across topics.
func (b *Bus) invoke(ev busEvent) {
	switch ev.kind {
	case kindOrderPlaced:
		for _, h := range b.orderPlacedHandlers {
			safeCall(func() { h(ev.orderPlaced) }, "order_placed", ev.orderPlaced.ID)
		}
	case kindTradeExecuted:
		for _, h := range b.tradeExecutedHandlers {
			safeCall(func() { h(ev.tradeExecuted) }, "trade_executed", ev.tradeExecuted.ID)
		}
	case kindOrderCancelled:
		for _, h := range b.orderCancelledHandlers {
			safeCall(func() { h(ev.orderCancelled) }, "order_cancelled", ev.orderCancelled.ID)
		}
	case kindOrderModified:
		for _, h := range b.orderModifiedHandlers {
			safeCall(func() { h(ev.orderModified) }, "order_modified", ev.orderModified.New.ID)
		}
	}
}

// safeCall runs a subscriber handler and contains any panic/log-worthy
// failure so one bad subscriber never affects another or the publisher
// (spec.md §4.5: "subscribers log and swallow").
func safeCall(fn func(), topic, orderID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("topic", topic).
				Str("orderId", orderID).
				Msg("event subscriber panicked")
		}
	}()
	fn()
}
