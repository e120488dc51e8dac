// Package planner переводит сигнал анализа в параметры сделки:
// вход, стоп, цель и размер позиции.
package planner

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/pkg/models"
)

// RiskTolerance уровень терпимости к риску
type RiskTolerance string

const (
	VeryLow  RiskTolerance = "very_low"
	Low      RiskTolerance = "low"
	Medium   RiskTolerance = "medium"
	High     RiskTolerance = "high"
	VeryHigh RiskTolerance = "very_high"
)

var toleranceMultipliers = map[RiskTolerance]float64{
	VeryLow:  0.5,
	Low:      0.75,
	Medium:   1.0,
	High:     1.5,
	VeryHigh: 2.0,
}

const (
	minStopPct = 1.0
	maxStopPct = 5.0
	// стоп всегда дальше смещения входа (0.5%)
	stopFloorPct = 0.75

	buyEntryFactor  = 0.995
	sellEntryFactor = 1.005

	highConfidence    = 85.0
	highConfidenceRR  = 2.0
	defaultRiskReward = 1.5
)

var hundred = decimal.NewFromInt(100)

// ParseRiskTolerance разбирает уровень риска; неизвестное значение дает Medium
func ParseRiskTolerance(s string) RiskTolerance {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if _, ok := toleranceMultipliers[RiskTolerance(key)]; ok {
		return RiskTolerance(key)
	}
	return Medium
}

// Multiplier возвращает множитель стопа для уровня риска
func (r RiskTolerance) Multiplier() float64 {
	if m, ok := toleranceMultipliers[r]; ok {
		return m
	}
	return toleranceMultipliers[Medium]
}

// Planner рассчитывает параметры сделки
type Planner struct {
	config config.TradingConfig
}

// NewPlanner создает планировщик сделок
func NewPlanner(cfg config.TradingConfig) *Planner {
	if cfg.AccountSize <= 0 {
		cfg.AccountSize = 10000
	}
	if cfg.RiskPerTrade <= 0 || cfg.RiskPerTrade >= 1 {
		cfg.RiskPerTrade = 0.01
	}
	if cfg.PricePrecision <= 0 {
		cfg.PricePrecision = 6
	}
	if cfg.SizePrecision <= 0 {
		cfg.SizePrecision = 6
	}
	return &Planner{config: cfg}
}

// Plan строит план сделки для результата анализа и текущей цены.
// HOLD, WAIT и неположительная цена дают неисполняемый план.
func (p *Planner) Plan(result models.AnalysisResult, price float64, tolerance RiskTolerance) models.TradePlan {
	buy, sell := result.Signal.IsBuy(), result.Signal.IsSell()
	if (!buy && !sell) || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return models.TradePlan{
			Direction:  models.Flat,
			EntryPrice: price,
		}
	}

	slPct := StopLossPct(result.Snapshot.PriceChange24h, tolerance)
	rr := RiskReward(result.Confidence)
	tpPct := slPct * rr

	dPrice := decimal.NewFromFloat(price)
	slFrac := decimal.NewFromFloat(slPct).Div(hundred)
	tpFrac := decimal.NewFromFloat(tpPct).Div(hundred)
	one := decimal.NewFromInt(1)

	plan := models.TradePlan{
		Actionable:      true,
		StopLossPct:     slPct,
		TakeProfitPct:   tpPct,
		RiskRewardRatio: rr,
	}

	var entry, stop, target decimal.Decimal
	if buy {
		plan.Direction = models.Bullish
		entry = dPrice.Mul(decimal.NewFromFloat(buyEntryFactor))
		stop = dPrice.Mul(one.Sub(slFrac))
		target = dPrice.Mul(one.Add(tpFrac))
	} else {
		plan.Direction = models.Bearish
		entry = dPrice.Mul(decimal.NewFromFloat(sellEntryFactor))
		stop = dPrice.Mul(one.Add(slFrac))
		target = dPrice.Mul(one.Sub(tpFrac))
	}

	prec := p.config.PricePrecision
	plan.EntryPrice = entry.Round(prec).InexactFloat64()
	plan.StopLoss = stop.Round(prec).InexactFloat64()
	plan.TakeProfit = target.Round(prec).InexactFloat64()

	risk := decimal.NewFromFloat(p.config.AccountSize).Mul(decimal.NewFromFloat(p.config.RiskPerTrade))
	plan.RiskAmount = risk.Round(2).InexactFloat64()

	distance := dPrice.Sub(stop).Abs()
	if distance.IsPositive() {
		plan.PositionSize = risk.Div(distance).Round(p.config.SizePrecision).InexactFloat64()
	}

	return plan
}

// StopLossPct процент стопа: половина суточного движения в пределах 1-5%,
// умноженная на множитель риска
func StopLossPct(change24h float64, tolerance RiskTolerance) float64 {
	volatility := math.Abs(change24h)
	if math.IsNaN(volatility) {
		volatility = 0
	}
	base := math.Max(minStopPct, math.Min(maxStopPct, volatility*0.5))
	return math.Max(stopFloorPct, base*tolerance.Multiplier())
}

// RiskReward соотношение прибыли к риску
func RiskReward(confidence float64) float64 {
	if confidence >= highConfidence {
		return highConfidenceRR
	}
	return defaultRiskReward
}
