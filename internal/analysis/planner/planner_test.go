package planner

import (
	"math"
	"testing"

	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/pkg/models"
)

func result(signal models.Signal, change, confidence float64) models.AnalysisResult {
	return models.AnalysisResult{
		Signal:     signal,
		Confidence: confidence,
		Snapshot:   models.AssetSnapshot{PriceChange24h: change},
	}
}

func newPlanner() *Planner {
	return NewPlanner(config.Default().Trading)
}

var tolerances = []RiskTolerance{VeryLow, Low, Medium, High, VeryHigh}

func TestPlanBuyOrdering(t *testing.T) {
	p := newPlanner()

	for _, tol := range tolerances {
		for _, change := range []float64{0, 0.8, 4, -7, 25} {
			for _, signal := range []models.Signal{models.SignalBuy, models.SignalStrongBuy} {
				plan := p.Plan(result(signal, change, 70), 130, tol)
				if !plan.Actionable || plan.Direction != models.Bullish {
					t.Fatalf("%s/%s: план должен быть исполняемым и бычьим: %+v", signal, tol, plan)
				}
				if !(plan.StopLoss < plan.EntryPrice && plan.EntryPrice < plan.TakeProfit) {
					t.Errorf("%s/%s/%v: нарушен порядок stop < entry < target: %+v", signal, tol, change, plan)
				}
				if plan.StopLoss >= 130 || plan.TakeProfit <= 130 {
					t.Errorf("%s/%s/%v: стоп и цель должны охватывать цену: %+v", signal, tol, change, plan)
				}
			}
		}
	}
}

func TestPlanSellOrdering(t *testing.T) {
	p := newPlanner()

	for _, tol := range tolerances {
		for _, change := range []float64{0, -3, 12} {
			for _, signal := range []models.Signal{models.SignalSell, models.SignalStrongSell} {
				plan := p.Plan(result(signal, change, 90), 1.2345, tol)
				if !plan.Actionable || plan.Direction != models.Bearish {
					t.Fatalf("%s/%s: план должен быть исполняемым и медвежьим: %+v", signal, tol, plan)
				}
				if !(plan.TakeProfit < plan.EntryPrice && plan.EntryPrice < plan.StopLoss) {
					t.Errorf("%s/%s/%v: нарушен порядок target < entry < stop: %+v", signal, tol, change, plan)
				}
			}
		}
	}
}

func TestPlanValues(t *testing.T) {
	plan := newPlanner().Plan(result(models.SignalBuy, 4, 70), 100, Medium)

	// sl = clamp(4·0.5, 1, 5) = 2%, RR 1.5, tp = 3%
	checks := map[string][2]float64{
		"entry":  {plan.EntryPrice, 99.5},
		"stop":   {plan.StopLoss, 98},
		"target": {plan.TakeProfit, 103},
		"sl%":    {plan.StopLossPct, 2},
		"tp%":    {plan.TakeProfitPct, 3},
		"rr":     {plan.RiskRewardRatio, 1.5},
		"risk":   {plan.RiskAmount, 100},
		"size":   {plan.PositionSize, 50},
	}
	for name, c := range checks {
		if math.Abs(c[0]-c[1]) > 1e-9 {
			t.Errorf("%s = %v, ожидалось %v", name, c[0], c[1])
		}
	}

	strong := newPlanner().Plan(result(models.SignalStrongBuy, 4, 90), 100, Medium)
	if strong.RiskRewardRatio != 2 || math.Abs(strong.TakeProfit-104) > 1e-9 {
		t.Errorf("при высокой уверенности ожидался RR 2 и цель 104: %+v", strong)
	}
}

func TestPlanRoundsPrices(t *testing.T) {
	cfg := config.Default().Trading
	cfg.PricePrecision = 2
	plan := NewPlanner(cfg).Plan(result(models.SignalSell, 0, 50), 33.333, Medium)

	for _, v := range []float64{plan.EntryPrice, plan.StopLoss, plan.TakeProfit} {
		if math.Abs(v*100-math.Round(v*100)) > 1e-6 {
			t.Errorf("цена %v не округлена до 2 знаков", v)
		}
	}
}

func TestPlanNonActionable(t *testing.T) {
	p := newPlanner()

	for _, signal := range []models.Signal{models.SignalHold, models.SignalWait} {
		plan := p.Plan(result(signal, 3, 90), 130, High)
		if plan.Actionable || plan.Direction != models.Flat || plan.PositionSize != 0 || plan.EntryPrice != 130 {
			t.Errorf("%s: ожидался неисполняемый план, получено %+v", signal, plan)
		}
	}

	if plan := p.Plan(result(models.SignalBuy, 3, 90), 0, High); plan.Actionable {
		t.Errorf("нулевая цена должна давать неисполняемый план: %+v", plan)
	}
}

func TestStopLossPct(t *testing.T) {
	tests := []struct {
		change float64
		tol    RiskTolerance
		want   float64
	}{
		{0, Medium, 1},
		{6, Medium, 3},
		{30, Medium, 5},
		{30, VeryHigh, 10},
		{0, VeryLow, 0.75},
		{4, VeryLow, 1},
		{-4, High, 3},
	}

	for _, tt := range tests {
		if got := StopLossPct(tt.change, tt.tol); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("StopLossPct(%v, %s) = %v, ожидалось %v", tt.change, tt.tol, got, tt.want)
		}
	}
}

func TestParseRiskTolerance(t *testing.T) {
	tests := map[string]RiskTolerance{
		"very_low":  VeryLow,
		"Very Low":  VeryLow,
		"very-high": VeryHigh,
		" HIGH ":    High,
		"low":       Low,
		"":          Medium,
		"reckless":  Medium,
	}

	for in, want := range tests {
		if got := ParseRiskTolerance(in); got != want {
			t.Errorf("ParseRiskTolerance(%q) = %q, ожидалось %q", in, got, want)
		}
	}
}
