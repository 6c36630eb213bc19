package eventbus

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/domain"
)

func TestPublishOrderPlacedInvokesHandler(t *testing.T) {
	bus := New(nil)
	var mu sync.Mutex
	var got domain.Order

	done := make(chan struct{})
	bus.OnOrderPlaced(func(o domain.Order) {
		mu.Lock()
		got = o
		mu.Unlock()
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Run(ctx)
	defer bus.Stop()

	bus.PublishOrderPlaced(domain.Order{ID: "order-1"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "order-1", got.ID)
}

func TestOrderingPreservedPerTopic(t *testing.T) {
	bus := New(nil)
	var mu sync.Mutex
	var seen []string

	const n = 50
	done := make(chan struct{})
	bus.OnTradeExecuted(func(f domain.Fill) {
		mu.Lock()
		seen = append(seen, f.ID)
		if len(seen) == n {
			close(done)
		}
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Run(ctx)
	defer bus.Stop()

	for i := 0; i < n; i++ {
		bus.PublishTradeExecuted(domain.Fill{ID: strconv.Itoa(i)})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all events observed")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, n)
	for i, id := range seen {
		assert.Equal(t, strconv.Itoa(i), id)
	}
}

func TestOrderingPreservedAcrossTopics(t *testing.T) {
	bus := New(nil)
	var mu sync.Mutex
	var seen []string

	done := make(chan struct{})
	bus.OnOrderPlaced(func(o domain.Order) {
		mu.Lock()
		seen = append(seen, "placed:"+o.ID)
		mu.Unlock()
	})
	bus.OnOrderModified(func(ev OrderModifiedEvent) {
		mu.Lock()
		seen = append(seen, "modified:"+ev.New.ID)
		mu.Unlock()
	})
	bus.OnTradeExecuted(func(f domain.Fill) {
		mu.Lock()
		seen = append(seen, "traded:"+f.ID)
		if len(seen) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Run(ctx)
	defer bus.Stop()

	// A given order id's life cycle must surface in publish order even
	// though each event is a different topic: OrderPlaced -> OrderModified
	// -> TradeExecuted.
	bus.PublishOrderPlaced(domain.Order{ID: "order-1"})
	bus.PublishOrderModified(domain.Order{ID: "order-1"}, domain.Order{ID: "order-1"})
	bus.PublishTradeExecuted(domain.Fill{ID: "order-1"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all cross-topic events observed")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"placed:order-1", "modified:order-1", "traded:order-1"}, seen)
}

func TestPanickingSubscriberDoesNotStopDispatch(t *testing.T) {
	bus := New(nil)
	done := make(chan struct{})

	bus.OnOrderCancelled(func(domain.Order) {
		panic("boom")
	})
	bus.OnOrderCancelled(func(domain.Order) {
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Run(ctx)
	defer bus.Stop()

	bus.PublishOrderCancelled(domain.Order{ID: "order-1"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second subscriber was never reached")
	}
}
