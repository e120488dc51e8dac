package volumedelta

import (
	"math"

	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/pkg/models"
)

const averageWindow = 30

// Analyzer реализует анализатор дельты объемов
type Analyzer struct {
	config config.VolumeDeltaConfig
}

// NewAnalyzer создает новый анализатор дельты объемов
func NewAnalyzer(cfg config.VolumeDeltaConfig) *Analyzer {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 20
	}
	if cfg.SignificanceThreshold <= 0 {
		cfg.SignificanceThreshold = 2.0
	}
	return &Analyzer{
		config: cfg,
	}
}

// Pressure возвращает давление объема от -1 до 1 по последним Lookback свечам.
// Свечи упорядочены от старых к новым; более свежие свечи весят больше.
func (a *Analyzer) Pressure(candles []models.Candle) float64 {
	var cumulativeDelta float64
	var totalVolume float64

	for i := 0; i < a.config.Lookback && i < len(candles); i++ {
		candle := candles[len(candles)-1-i]

		// Бычья свеча дает положительную дельту, медвежья - отрицательную, доджи - ноль
		var delta float64
		switch {
		case candle.Bullish():
			delta = candle.Volume
		case candle.Bearish():
			delta = -candle.Volume
		}

		weight := 1.0 - (float64(i) / float64(a.config.Lookback))

		cumulativeDelta += delta * weight
		totalVolume += math.Abs(candle.Volume) * weight
	}

	if totalVolume == 0 {
		return 0
	}

	return math.Max(math.Min(cumulativeDelta/totalVolume, 1), -1)
}

// Impulses считает свечи последнего Lookback, объем которых превышает
// средний в SignificanceThreshold раз. Знак суммы показывает направление импульсов.
func (a *Analyzer) Impulses(candles []models.Candle) (bullish, bearish int) {
	if len(candles) == 0 {
		return 0, 0
	}

	window := averageWindow
	if window > len(candles) {
		window = len(candles)
	}

	var total float64
	for _, c := range candles[len(candles)-window:] {
		total += c.Volume
	}
	avgVolume := total / float64(window)
	if avgVolume <= 0 {
		return 0, 0
	}

	for i := 0; i < a.config.Lookback && i < len(candles); i++ {
		candle := candles[len(candles)-1-i]
		if candle.Volume/avgVolume < a.config.SignificanceThreshold {
			continue
		}
		switch {
		case candle.Bullish():
			bullish++
		case candle.Bearish():
			bearish++
		}
	}

	return bullish, bearish
}

// NetImpulses возвращает разницу бычьих и медвежьих импульсов
func (a *Analyzer) NetImpulses(candles []models.Candle) int {
	bullish, bearish := a.Impulses(candles)
	return bullish - bearish
}
