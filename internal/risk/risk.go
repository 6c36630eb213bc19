// Package risk implements the core half of the Risk Evaluator (C8):
// spec.md §4.7 says the core exposes only the collab.RiskEvaluator
// interface and leaves the rule set pluggable. PositionLimitEvaluator is
// the one concrete ruleset the core ships (SPEC_FULL.md "Supplemented
// Features" #2) so the integration orchestrator has something real to
// exercise end to end.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fenrir/internal/collab"
)

// Config bounds the ruleset's thresholds.
type Config struct {
	MaxPositionSize       decimal.Decimal
	ConcentrationFraction decimal.Decimal // e.g. 0.6 => single-commodity exposure over 60% of total is flagged
}

// PositionLimitEvaluator flags two conditions:
//  1. any single position's absolute quantity exceeds MaxPositionSize
//     (high severity; critical once it exceeds 1.5x the limit).
//  2. a single commodity makes up more than ConcentrationFraction of the
//     user's total absolute exposure across commodities (medium severity).
type PositionLimitEvaluator struct {
	cfg Config
}

// New builds a PositionLimitEvaluator.
func New(cfg Config) *PositionLimitEvaluator {
	return &PositionLimitEvaluator{cfg: cfg}
}

func (e *PositionLimitEvaluator) Assess(portfolio collab.Portfolio) []collab.Alert {
	var alerts []collab.Alert

	totalExposure := decimal.Zero
	for _, p := range portfolio.Positions {
		totalExposure = totalExposure.Add(p.Quantity.Abs())
	}

	for _, p := range portfolio.Positions {
		exposure := p.Quantity.Abs()
		if exposure.GreaterThan(e.cfg.MaxPositionSize) {
			severity := collab.SeverityHigh
			if exposure.GreaterThan(e.cfg.MaxPositionSize.Mul(decimal.NewFromFloat(1.5))) {
				severity = collab.SeverityCritical
			}
			limit, _ := e.cfg.MaxPositionSize.Float64()
			current, _ := exposure.Float64()
			alerts = append(alerts, collab.Alert{
				Type:         "position_limit",
				Severity:     severity,
				Message:      fmt.Sprintf("%s position %s exceeds the configured maximum", p.Commodity, exposure.String()),
				CurrentValue: current,
				Limit:        limit,
			})
		}

		if totalExposure.IsPositive() && e.cfg.ConcentrationFraction.IsPositive() {
			fraction := exposure.Div(totalExposure)
			if fraction.GreaterThan(e.cfg.ConcentrationFraction) {
				limitF, _ := e.cfg.ConcentrationFraction.Float64()
				currentF, _ := fraction.Float64()
				alerts = append(alerts, collab.Alert{
					Type:         "concentration",
					Severity:     collab.SeverityMedium,
					Message:      fmt.Sprintf("%s is %.1f%% of total exposure", p.Commodity, currentF*100),
					CurrentValue: currentF,
					Limit:        limitF,
				})
			}
		}
	}
	return alerts
}
