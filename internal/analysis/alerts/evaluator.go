// Package alerts проверяет пользовательские правила алертов на результатах анализа.
// Состояние правил (время последнего срабатывания, счетчик) хранит вызывающая сторона:
// Evaluate возвращает обновленную копию правила и не меняет входное.
package alerts

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skalibog/ictpro/pkg/models"
)

// DefaultTolerance допуск сравнения ≈
const DefaultTolerance = 0.01

// Метрики, доступные в условиях
const (
	MetricPrice            = "price"
	MetricChange24h        = "change24h"
	MetricRSI              = "rsi"
	MetricMACD             = "macd"
	MetricMACDSignal       = "macd_signal"
	MetricEMA50            = "ema50"
	MetricEMA200           = "ema200"
	MetricVolume           = "volume"
	MetricConfidence       = "confidence"
	MetricCombinedScore    = "combined_score"
	MetricTechnicalScore   = "technical_score"
	MetricFundamentalScore = "fundamental_score"
	MetricRiskLevel        = "risk_level"
)

var metrics = map[string]func(r models.AnalysisResult) float64{
	MetricPrice:            func(r models.AnalysisResult) float64 { return r.Snapshot.Price },
	MetricChange24h:        func(r models.AnalysisResult) float64 { return r.Snapshot.PriceChange24h },
	MetricRSI:              func(r models.AnalysisResult) float64 { return r.Indicators.RSI },
	MetricMACD:             func(r models.AnalysisResult) float64 { return r.Indicators.MACD },
	MetricMACDSignal:       func(r models.AnalysisResult) float64 { return r.Indicators.MACDSignal },
	MetricEMA50:            func(r models.AnalysisResult) float64 { return r.Indicators.EMA50 },
	MetricEMA200:           func(r models.AnalysisResult) float64 { return r.Indicators.EMA200 },
	MetricVolume:           func(r models.AnalysisResult) float64 { return r.Snapshot.Volume },
	MetricConfidence:       func(r models.AnalysisResult) float64 { return r.Confidence },
	MetricCombinedScore:    func(r models.AnalysisResult) float64 { return r.CombinedScore },
	MetricTechnicalScore:   func(r models.AnalysisResult) float64 { return r.TechnicalScore },
	MetricFundamentalScore: func(r models.AnalysisResult) float64 { return r.FundamentalScore },
	MetricRiskLevel:        func(r models.AnalysisResult) float64 { return float64(r.RiskLevel) },
}

// Metric возвращает значение метрики результата
func Metric(r models.AnalysisResult, name string) (float64, bool) {
	get, ok := metrics[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, false
	}
	return get(r), true
}

// Evaluation итог проверки одного правила
type Evaluation struct {
	Fired bool
	Rule  models.AlertRule
	Event *models.AlertEvent
}

// Evaluator проверяет правила алертов
type Evaluator struct {
	tolerance float64
}

// NewEvaluator создает проверяющего с допуском для ≈
func NewEvaluator(tolerance float64) *Evaluator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Evaluator{tolerance: tolerance}
}

// Evaluate проверяет правило. Правило срабатывает, когда оно активно, все условия
// выполнены и с последнего срабатывания прошло не меньше CooldownMinutes.
func (e *Evaluator) Evaluate(rule models.AlertRule, result models.AnalysisResult, now time.Time) Evaluation {
	out := Evaluation{Rule: copyRule(rule)}

	if !rule.Active || len(rule.Conditions) == 0 {
		return out
	}
	if !rule.LastTriggeredAt.IsZero() &&
		now.Sub(rule.LastTriggeredAt) < time.Duration(rule.CooldownMinutes)*time.Minute {
		return out
	}

	values := make(map[string]float64, len(rule.Conditions))
	for _, cond := range rule.Conditions {
		value, ok := Metric(result, cond.Metric)
		if !ok || !e.compare(value, cond.Comparator, cond.Threshold) {
			return out
		}
		values[cond.Metric] = value
	}

	out.Fired = true
	out.Rule.LastTriggeredAt = now
	out.Rule.TriggerCount++
	out.Event = &models.AlertEvent{
		ID:          uuid.New().String(),
		RuleID:      rule.ID,
		Symbol:      rule.Symbol,
		Channels:    append([]string(nil), rule.Channels...),
		TriggeredAt: now,
		Values:      values,
		Message:     describe(rule),
	}
	return out
}

// EvaluateAll проверяет правила на результатах с тем же символом.
// Правила без результата возвращаются без изменений.
func (e *Evaluator) EvaluateAll(rules []models.AlertRule, results []models.AnalysisResult, now time.Time) []Evaluation {
	bySymbol := make(map[string]models.AnalysisResult, len(results))
	for _, r := range results {
		bySymbol[strings.ToUpper(r.Snapshot.Symbol)] = r
	}

	evaluations := make([]Evaluation, 0, len(rules))
	for _, rule := range rules {
		result, ok := bySymbol[strings.ToUpper(rule.Symbol)]
		if !ok {
			evaluations = append(evaluations, Evaluation{Rule: copyRule(rule)})
			continue
		}
		evaluations = append(evaluations, e.Evaluate(rule, result, now))
	}
	return evaluations
}

// Fired отбирает сработавшие события
func Fired(evaluations []Evaluation) []models.AlertEvent {
	var events []models.AlertEvent
	for _, ev := range evaluations {
		if ev.Fired && ev.Event != nil {
			events = append(events, *ev.Event)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Symbol < events[j].Symbol })
	return events
}

func (e *Evaluator) compare(value float64, cmp models.Comparator, threshold float64) bool {
	if math.IsNaN(value) || math.IsNaN(threshold) {
		return false
	}
	switch normalize(cmp) {
	case models.GreaterOrEqual:
		return value >= threshold
	case models.LessOrEqual:
		return value <= threshold
	case models.Greater:
		return value > threshold
	case models.Less:
		return value < threshold
	case models.Approx:
		return math.Abs(value-threshold) <= e.tolerance
	}
	return false
}

func normalize(cmp models.Comparator) models.Comparator {
	switch strings.ToLower(strings.TrimSpace(string(cmp))) {
	case "≥":
		return models.GreaterOrEqual
	case "≤":
		return models.LessOrEqual
	case "~=", "approx", "≈":
		return models.Approx
	}
	return models.Comparator(strings.TrimSpace(string(cmp)))
}

func copyRule(rule models.AlertRule) models.AlertRule {
	rule.Conditions = append([]models.AlertCondition(nil), rule.Conditions...)
	rule.Channels = append([]string(nil), rule.Channels...)
	return rule
}

func describe(rule models.AlertRule) string {
	parts := make([]string, len(rule.Conditions))
	for i, c := range rule.Conditions {
		parts[i] = fmt.Sprintf("%s %s %g", c.Metric, c.Comparator, c.Threshold)
	}
	return fmt.Sprintf("%s: %s", rule.Symbol, strings.Join(parts, " и "))
}
