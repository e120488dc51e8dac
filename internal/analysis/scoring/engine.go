// Package scoring сводит индикаторы, паттерны и сессию в итоговую оценку актива:
// оценки ICT концепций, фундаментальную оценку, тренд, сигнал, риск и уверенность.
// Все функции детерминированы и не имеют состояния.
package scoring

import (
	"fmt"
	"math"

	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/pkg/models"
)

// Engine вычисляет AnalysisResult
type Engine struct {
	config config.ScoringConfig
}

// NewEngine создает движок оценки
func NewEngine(cfg config.ScoringConfig) *Engine {
	if cfg.TechnicalWeight <= 0 && cfg.FundamentalWeight <= 0 {
		cfg.TechnicalWeight = 0.6
		cfg.FundamentalWeight = 0.4
	}
	return &Engine{config: cfg}
}

// Analyze оценивает актив. Ошибка возвращается только для неизвестного класса актива.
func (e *Engine) Analyze(snap models.AssetSnapshot, ind models.IndicatorSnapshot,
	win models.SessionWindow, class models.AssetClass) (models.AnalysisResult, error) {

	strategy, ok := strategies[class]
	if !ok {
		return models.AnalysisResult{}, fmt.Errorf("оценка %s: %w: %q", snap.Symbol, models.ErrInvalidAssetClass, class)
	}

	snap.Class = class
	if snap.Price <= 0 {
		snap.Price = ind.LastClose
	}

	concepts := ScoreConcepts(snap, ind, win, strategy.boosts)
	technical := TechnicalScore(concepts)
	fundamental := strategy.fundamentals(snap, ind)
	combined := e.Combine(technical, fundamental)

	trend := ClassifyTrend(combined, snap.PriceChange24h, ind.RSI)
	signal := ClassifySignal(combined, win.Priority, trend)

	return models.AnalysisResult{
		TechnicalScore:   technical,
		FundamentalScore: fundamental,
		CombinedScore:    combined,
		Trend:            trend,
		Signal:           signal,
		RiskLevel:        RiskLevel(snap.PriceChange24h, win.Priority),
		Confidence:       Confidence(combined, ind.RSI, win.Priority, snap.PriceChange24h, trend),
		Concepts:         concepts,
		Snapshot:         snap,
		Indicators:       ind,
		Session:          win,
	}, nil
}

// Combine смешивает техническую и фундаментальную оценки
func (e *Engine) Combine(technical, fundamental float64) float64 {
	return clamp(e.config.TechnicalWeight*technical+e.config.FundamentalWeight*fundamental, 0, 100)
}

// TechnicalScore среднее оценок концепций
func TechnicalScore(concepts []models.ConceptScore) float64 {
	if len(concepts) == 0 {
		return 0
	}
	var sum float64
	for _, c := range concepts {
		sum += c.Score
	}
	return sum / float64(len(concepts))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
