// Package metrics exposes the core's counters via
// github.com/prometheus/client_golang, grounded on VictorVVedtion-perp-dex's
// use of the same library for its matching/orderbook keeper metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the core's counters/gauges behind one struct so
// cmd/server can register them once and every component takes a narrow
// interface (eventbus.Metrics, risk alert counters) instead of depending on
// prometheus directly.
type Registry struct {
	EventsPublished *prometheus.CounterVec
	OrdersPlaced    *prometheus.CounterVec
	TradesExecuted  prometheus.Counter
	RiskAlerts      *prometheus.CounterVec
	BookDepth       *prometheus.GaugeVec
}

// NewRegistry builds and registers the core's metrics against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading_core",
			Name:      "events_published_total",
			Help:      "Events published on the event bus, by topic.",
		}, []string{"topic"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading_core",
			Name:      "orders_placed_total",
			Help:      "Orders accepted by PlaceOrder, by commodity and side.",
		}, []string{"commodity", "side"}),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading_core",
			Name:      "trades_executed_total",
			Help:      "Fills produced by the matching engine.",
		}),
		RiskAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading_core",
			Name:      "risk_alerts_total",
			Help:      "Risk alerts raised by the orchestrator, by severity.",
		}, []string{"severity"}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trading_core",
			Name:      "book_depth",
			Help:      "Resting order count on a commodity's book, by side.",
		}, []string{"commodity", "side"}),
	}
	reg.MustRegister(m.EventsPublished, m.OrdersPlaced, m.TradesExecuted, m.RiskAlerts, m.BookDepth)
	return m
}

// ObservePublished implements eventbus.Metrics.
func (m *Registry) ObservePublished(topic string) {
	m.EventsPublished.WithLabelValues(topic).Inc()
}
