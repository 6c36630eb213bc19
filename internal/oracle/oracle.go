// Package oracle implements the Market Price Oracle (C1): a pluggable
// source of the current reference price per commodity.
//
// The core only requires a deterministic pure-function stub for tests
// (spec.md §4.8); StaticOracle below is that stub, grounded on the
// "basePrice(commodity) × (1 ± jitter)" formula the spec names verbatim.
// LiveOracle is the pluggable production-shaped alternative, backed by a
// websocket feed the way 0xtitan6-polymarket-mm and web3guy0-polybot read
// their market data, with a golang.org/x/sync/singleflight-coalesced,
// short-TTL cache so concurrent matching-engine reads for the same
// commodity collapse into one read (spec.md §5: "a cached last-seen price
// is acceptable").
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fenrir/internal/domain"
)

// Oracle is the C1 contract (spec.md §6): price(commodity) -> decimal.
type Oracle interface {
	CurrentPrice(commodity domain.Commodity) (decimal.Decimal, error)
}

// basePrices anchors the deterministic stub; arbitrary but stable so tests
// are reproducible.
var basePrices = map[domain.Commodity]decimal.Decimal{
	domain.CrudeOil:              decimal.NewFromFloat(80.00),
	domain.NaturalGas:            decimal.NewFromFloat(2.75),
	domain.HeatingOil:            decimal.NewFromFloat(2.95),
	domain.Gasoline:              decimal.NewFromFloat(2.45),
	domain.RenewableCertificates: decimal.NewFromFloat(15.00),
	domain.CarbonCredits:         decimal.NewFromFloat(65.00),
}

// jitterFunc lets tests pin the jitter to zero; production wiring uses
// defaultJitter.
type jitterFunc func(commodity domain.Commodity, tick int64) float64

func defaultJitter(commodity domain.Commodity, tick int64) float64 {
	// A small deterministic oscillation keyed off the tick counter so
	// repeated calls within the same process are stable but not flat.
	phase := float64(tick) + float64(len(commodity))
	return 0.002 * math.Sin(phase)
}

// StaticOracle is the deterministic test/dev stub spec.md §4.8 requires.
type StaticOracle struct {
	mu     sync.Mutex
	tick   int64
	jitter jitterFunc
}

// NewStaticOracle builds the default deterministic oracle.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{jitter: defaultJitter}
}

// NewFixedOracle builds a StaticOracle with jitter disabled, for tests that
// need an exact, unchanging price.
func NewFixedOracle() *StaticOracle {
	return &StaticOracle{jitter: func(domain.Commodity, int64) float64 { return 0 }}
}

func (o *StaticOracle) CurrentPrice(commodity domain.Commodity) (decimal.Decimal, error) {
	base, ok := basePrices[commodity]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrUnsupportedCommodity, commodity)
	}
	o.mu.Lock()
	o.tick++
	tick := o.tick
	o.mu.Unlock()

	factor := decimal.NewFromFloat(1 + o.jitter(commodity, tick))
	return base.Mul(factor).Round(4), nil
}

// cacheTTL bounds how stale a cached live-feed price may be before the next
// reader forces a refresh.
const cacheTTL = 500 * time.Millisecond

type cacheEntry struct {
	price   decimal.Decimal
	fetched time.Time
}

// LiveOracle reads prices pushed over a websocket feed and serves reads
// from a short-TTL cache, coalescing concurrent misses with singleflight so
// a burst of market orders on the same commodity triggers one upstream
// read, not one per order.
type LiveOracle struct {
	dialURL string

	mu    sync.RWMutex
	cache map[domain.Commodity]cacheEntry

	group singleflight.Group
	conn  *websocket.Conn
}

// NewLiveOracle dials a websocket feed expected to push
// {"commodity": "...", "price": "..."} ticks.
func NewLiveOracle(ctx context.Context, dialURL string) (*LiveOracle, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial price feed: %w", err)
	}
	lo := &LiveOracle{
		dialURL: dialURL,
		cache:   make(map[domain.Commodity]cacheEntry),
		conn:    conn,
	}
	go lo.readLoop()
	return lo, nil
}

type tick struct {
	Commodity domain.Commodity `json:"commodity"`
	Price     string           `json:"price"`
}

func (lo *LiveOracle) readLoop() {
	for {
		_, payload, err := lo.conn.ReadMessage()
		if err != nil {
			log.Error().Err(err).Str("feed", lo.dialURL).Msg("price feed read failed")
			return
		}
		var t tick
		if err := json.Unmarshal(payload, &t); err != nil {
			log.Warn().Err(err).Msg("price feed sent malformed tick")
			continue
		}
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			log.Warn().Err(err).Str("raw", t.Price).Msg("price feed sent malformed price")
			continue
		}
		lo.mu.Lock()
		lo.cache[t.Commodity] = cacheEntry{price: price, fetched: time.Now()}
		lo.mu.Unlock()
	}
}

// CurrentPrice returns the most recent cached tick for commodity, waiting
// (via singleflight) for a fresh one if the cache is empty or stale.
func (lo *LiveOracle) CurrentPrice(commodity domain.Commodity) (decimal.Decimal, error) {
	lo.mu.RLock()
	entry, ok := lo.cache[commodity]
	lo.mu.RUnlock()
	if ok && time.Since(entry.fetched) < cacheTTL {
		return entry.price, nil
	}

	v, err, _ := lo.group.Do(string(commodity), func() (interface{}, error) {
		lo.mu.RLock()
		entry, ok := lo.cache[commodity]
		lo.mu.RUnlock()
		if ok {
			return entry.price, nil
		}
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrNoLiquidity, commodity)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

// Close releases the underlying websocket connection.
func (lo *LiveOracle) Close() error {
	return lo.conn.Close()
}
