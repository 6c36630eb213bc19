// Package orchestration implements the Integration Orchestrator (C7):
// the only component that subscribes to every event-bus topic and fans
// out to the risk, notification and audit collaborators (spec.md §4.6).
//
// Grounded on golang.org/x/sync/errgroup as used by other_examples'
// alanyoungcy-polymarketbot (internal/app's mode runners) and
// pysel-sqs-bot (its order-book-filler ingest plugin), both of which fan a
// batch of independent calls out via errgroup.WithContext and join before
// continuing. Each event here dispatches to its collaborators
// concurrently, one goroutine per collaborator call, joined before the
// handler returns so the event bus's single ordered dispatcher goroutine
// still processes events one at a time.
package orchestration

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fenrir/internal/collab"
	"fenrir/internal/domain"
	"fenrir/internal/eventbus"
	"fenrir/internal/position"
)

// Orchestrator wires the event bus to the outbound collaborators.
type Orchestrator struct {
	notify    collab.NotificationSink
	audit     collab.AuditSink
	risk      collab.RiskEvaluator
	prefs     collab.PreferenceStore
	positions *position.Ledger
}

// New builds an Orchestrator. Any collaborator may be nil to skip that
// fan-out leg (useful for tests that only care about, say, audit).
func New(notify collab.NotificationSink, audit collab.AuditSink, risk collab.RiskEvaluator, prefs collab.PreferenceStore, positions *position.Ledger) *Orchestrator {
	return &Orchestrator{notify: notify, audit: audit, risk: risk, prefs: prefs, positions: positions}
}

// Attach registers the orchestrator's handlers on every bus topic.
func (o *Orchestrator) Attach(bus *eventbus.Bus) {
	bus.OnOrderPlaced(o.onOrderPlaced)
	bus.OnTradeExecuted(o.onTradeExecuted)
	bus.OnOrderCancelled(o.onOrderCancelled)
	bus.OnOrderModified(o.onOrderModified)
}

func (o *Orchestrator) preferencesFor(userID string) domain.UserPreferences {
	if o.prefs == nil {
		return domain.UserPreferences{}
	}
	if p, ok := o.prefs.Get(userID); ok {
		return p
	}
	return domain.UserPreferences{UserID: userID}
}

func (o *Orchestrator) onOrderPlaced(order domain.Order) {
	g := new(errgroup.Group)
	g.Go(func() error {
		o.recordAudit(order.UserID, "order_placed", map[string]any{
			"orderId": order.ID, "commodity": order.Commodity, "side": order.Side.String(),
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("order placed fan-out failed")
	}
}

func (o *Orchestrator) onOrderCancelled(order domain.Order) {
	g := new(errgroup.Group)
	g.Go(func() error {
		o.recordAudit(order.UserID, "order_cancelled", map[string]any{"orderId": order.ID})
		return nil
	})
	g.Go(func() error {
		prefs := o.preferencesFor(order.UserID)
		if prefs.TradeNotifications {
			o.notifyUser(order.UserID, "order_cancelled", map[string]any{"orderId": order.ID}, prefs)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("order cancelled fan-out failed")
	}
}

func (o *Orchestrator) onOrderModified(ev eventbus.OrderModifiedEvent) {
	g := new(errgroup.Group)
	g.Go(func() error {
		o.recordAudit(ev.New.UserID, "order_modified", map[string]any{
			"orderId": ev.New.ID, "oldQuantity": ev.Old.Quantity.String(), "newQuantity": ev.New.Quantity.String(),
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("order modified fan-out failed")
	}
}

// onTradeExecuted is the busiest leg: every fill touches two users'
// positions (or one, for a synthetic market-party fill), each of which may
// need a notification and a risk re-assessment, per spec.md §4.6's
// "the trade-executed path drives the risk evaluator" note.
func (o *Orchestrator) onTradeExecuted(f domain.Fill) {
	ctx := context.Background()
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.recordAudit(f.AggressorUser, "trade_executed", map[string]any{
			"fillId": f.ID, "commodity": f.Commodity, "quantity": f.Quantity.String(), "price": f.Price.String(),
		})
		return nil
	})

	users := []string{f.AggressorUser}
	if f.PassiveUser != domain.MarketParty {
		users = append(users, f.PassiveUser)
	}
	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			o.notifyTrade(userID, f)
			return nil
		})
		g.Go(func() error {
			o.assessRisk(userID)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("trade executed fan-out failed")
	}
}

func (o *Orchestrator) notifyTrade(userID string, f domain.Fill) {
	prefs := o.preferencesFor(userID)
	if !prefs.TradeNotifications {
		return
	}
	o.notifyUser(userID, "trade_executed", map[string]any{
		"fillId": f.ID, "commodity": f.Commodity, "quantity": f.Quantity.String(), "price": f.Price.String(),
	}, prefs)
}

// assessRisk re-evaluates userID's portfolio and routes any alerts:
// margin-call-severity findings go out even when general risk alerts are
// muted, matching spec.md §6's "margin calls bypass the general risk
// alert preference" note.
func (o *Orchestrator) assessRisk(userID string) {
	if o.risk == nil {
		return
	}
	summary := o.positions.Summarize(userID)
	portfolio := collab.Portfolio{UserID: userID, Positions: summary.Positions}
	alerts := o.risk.Assess(portfolio)
	if len(alerts) == 0 {
		return
	}

	prefs := o.preferencesFor(userID)
	for _, alert := range alerts {
		if alert.Severity != collab.SeverityHigh && alert.Severity != collab.SeverityCritical {
			// spec.md §4.6: only high/critical alerts are ever routed to a
			// user; low/medium findings are recorded by the evaluator's
			// caller (if at all) but never reach notification.
			continue
		}
		isMarginCall := alert.Severity == collab.SeverityCritical
		if isMarginCall && !prefs.MarginCalls {
			continue
		}
		if !isMarginCall && !prefs.RiskAlerts {
			continue
		}
		kind := "risk_alert"
		if isMarginCall {
			kind = "margin_call"
		}
		o.notifyUser(userID, kind, map[string]any{
			"type": alert.Type, "severity": alert.Severity, "message": alert.Message,
			"currentValue": alert.CurrentValue, "limit": alert.Limit,
		}, prefs)
		o.recordAudit(userID, kind, map[string]any{"type": alert.Type, "severity": alert.Severity})
	}
}

func (o *Orchestrator) notifyUser(userID, kind string, payload map[string]any, prefs domain.UserPreferences) {
	if o.notify == nil {
		return
	}
	o.notify.Notify(userID, kind, payload, prefs)
}

func (o *Orchestrator) recordAudit(userID, action string, details map[string]any) {
	if o.audit == nil {
		return
	}
	o.audit.Record(collab.AuditRecord{UserID: userID, Action: action, Details: details, Timestamp: time.Now().UTC()})
}
