// Package domain holds the shared types of the trading core: commodities,
// orders, fills, positions and the error kinds the core surfaces to callers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Commodity identifies one of the fixed set of tradable instruments. Each
// commodity owns an independent order book.
type Commodity string

const (
	CrudeOil              Commodity = "crude_oil"
	NaturalGas            Commodity = "natural_gas"
	HeatingOil            Commodity = "heating_oil"
	Gasoline              Commodity = "gasoline"
	RenewableCertificates Commodity = "renewable_certificates"
	CarbonCredits         Commodity = "carbon_credits"
)

// SupportedCommodities is the fixed, closed set from spec.md §3.
var SupportedCommodities = []Commodity{
	CrudeOil, NaturalGas, HeatingOil, Gasoline, RenewableCertificates, CarbonCredits,
}

// IsSupported reports whether c is one of SupportedCommodities.
func (c Commodity) IsSupported() bool {
	for _, s := range SupportedCommodities {
		if s == c {
			return true
		}
	}
	return false
}

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Sign returns +1 for Buy and -1 for Sell, matching the position-ledger
// convention in spec.md §4.4.
func (s Side) Sign() int64 {
	if s == Buy {
		return 1
	}
	return -1
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType is one of the four supported order types.
type OrderType int

const (
	MarketOrder OrderType = iota
	LimitOrder
	StopOrder
	StopLimitOrder
)

func (t OrderType) String() string {
	switch t {
	case MarketOrder:
		return "market"
	case LimitOrder:
		return "limit"
	case StopOrder:
		return "stop"
	case StopLimitOrder:
		return "stop_limit"
	default:
		return "unknown"
	}
}

// IsResting reports whether this order type can sit on the book while
// pending (limit orders only; stop/stop-limit rest in the trigger watcher
// instead, market orders never rest).
func (t OrderType) IsResting() bool {
	return t == LimitOrder
}

// TimeInForce is one of the four supported TIF modes.
type TimeInForce int

const (
	Day TimeInForce = iota
	GTC
	IOC
	FOK
)

func (t TimeInForce) String() string {
	switch t {
	case Day:
		return "day"
	case GTC:
		return "gtc"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	default:
		return "unknown"
	}
}

// OrderStatus is the order lifecycle state, per spec.md §3 invariants.
type OrderStatus int

const (
	Pending OrderStatus = iota
	Partial
	Filled
	Cancelled
	Rejected
)

func (s OrderStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Partial:
		return "partial"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// IsResting reports whether an order in this status still occupies a book
// slot (spec.md §3: "a limit order is on the book only while status ∈
// {pending, partial}").
func (s OrderStatus) IsResting() bool {
	return s == Pending || s == Partial
}

// IsTerminal reports whether the order can no longer be mutated.
func (s OrderStatus) IsTerminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// MarketParty is the sentinel owner used for fills against the oracle
// price when a market order exhausts the book (spec.md §3, §9).
const MarketParty = "market"

// Order is the core's order record. Every field mutates only through the
// OrderManager, never directly.
type Order struct {
	ID                string
	UserID            string
	Commodity         Commodity
	Side              Side
	Type              OrderType
	Quantity          decimal.Decimal
	LimitPrice        decimal.Decimal // zero value when not applicable
	StopPrice         decimal.Decimal // zero value when not applicable
	TimeInForce       TimeInForce
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Status            OrderStatus
	FilledQuantity    decimal.Decimal
	RemainingQuantity decimal.Decimal
	AvgFillPrice      decimal.Decimal
	FillIDs           []string
}

// Clone returns a deep-enough copy safe to hand to callers outside the
// per-commodity critical section (FillIDs is copied, not aliased).
func (o Order) Clone() Order {
	out := o
	out.FillIDs = append([]string(nil), o.FillIDs...)
	return out
}

// Fill (a.k.a. Trade) records one matched transaction. Immutable once
// published (spec.md §3).
type Fill struct {
	ID             string
	Commodity      Commodity
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	AggressorSide  Side
	AggressorOrder string
	PassiveOrder   string // "" when the passive side is the synthetic market maker
	AggressorUser  string
	PassiveUser    string // domain.MarketParty when synthetic
	Timestamp      time.Time
}

// Value is quantity × price.
func (f Fill) Value() decimal.Decimal {
	return f.Quantity.Mul(f.Price)
}

// Position is the per-(user, commodity) net position.
type Position struct {
	UserID        string
	Commodity     Commodity
	Quantity      decimal.Decimal // signed: positive long, negative short
	AvgPrice      decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	UpdatedAt     time.Time
}

// NotificationChannel is a delivery channel for UserPreferences.
type NotificationChannel string

const (
	ChannelEmail    NotificationChannel = "email"
	ChannelSMS      NotificationChannel = "sms"
	ChannelTelegram NotificationChannel = "telegram"
)

// UserPreferences holds per-user notification routing (spec.md §3, §6).
type UserPreferences struct {
	UserID             string
	Channels           []NotificationChannel
	Contacts           map[NotificationChannel]string
	TradeNotifications bool
	RiskAlerts         bool
	MarginCalls        bool
	ComplianceAlerts   bool
	DailyReports       bool
	MarketOpening      bool
}
