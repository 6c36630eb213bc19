package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestObservePublishedIncrementsCounterByTopic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.ObservePublished("order_placed")
	m.ObservePublished("order_placed")
	m.ObservePublished("trade_executed")

	var metric dto.Metric
	require.NoError(t, m.EventsPublished.WithLabelValues("order_placed").Write(&metric))
	require.Equal(t, float64(2), metric.GetCounter().GetValue())

	metric = dto.Metric{}
	require.NoError(t, m.EventsPublished.WithLabelValues("trade_executed").Write(&metric))
	require.Equal(t, float64(1), metric.GetCounter().GetValue())
}

func TestNewRegistryRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)
	require.NotNil(t, m.OrdersPlaced)
	require.NotNil(t, m.TradesExecuted)
	require.NotNil(t, m.RiskAlerts)
	require.NotNil(t, m.BookDepth)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
