// Package structure ищет на свечах структурные паттерны ICT: ордер-блоки,
// разрывы справедливой стоимости (FVG) и уровни поддержки/сопротивления.
// Все методы только читают входное окно.
package structure

import (
	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/pkg/models"
)

const (
	minPatternCandles = 3
)

// Analyzer реализует поиск паттернов
type Analyzer struct {
	config config.StructureConfig
}

// NewAnalyzer создает новый анализатор структуры
func NewAnalyzer(cfg config.StructureConfig) *Analyzer {
	if cfg.MaxOrderBlocks <= 0 {
		cfg.MaxOrderBlocks = 5
	}
	if cfg.MaxGaps <= 0 {
		cfg.MaxGaps = 5
	}
	if cfg.SwingWidth <= 0 {
		cfg.SwingWidth = 2
	}
	if cfg.MaxLevels <= 0 {
		cfg.MaxLevels = 3
	}
	return &Analyzer{config: cfg}
}

// Detect выполняет все детекторы и находит экстремумы окна
func (a *Analyzer) Detect(candles []models.Candle) models.Structure {
	st := models.Structure{
		OrderBlocks:   a.OrderBlocks(candles),
		FairValueGaps: a.FairValueGaps(candles),
		Levels:        a.SupportResistance(candles),
	}

	if len(candles) == 0 {
		return st
	}

	highIdx, lowIdx := 0, 0
	for i, c := range candles {
		if c.High > candles[highIdx].High {
			highIdx = i
		}
		if c.Low < candles[lowIdx].Low {
			lowIdx = i
		}
	}
	st.SwingHigh = candles[highIdx].High
	st.SwingLow = candles[lowIdx].Low
	st.SwingHighFirst = highIdx < lowIdx

	return st
}

// OrderBlocks ищет последнюю контртрендовую свечу перед подтвержденным движением.
// Бычий блок: свеча i-1 медвежья, свеча i бычья, свеча i+1 закрылась выше закрытия i.
// Медвежий блок - зеркально. Возвращает не более MaxOrderBlocks последних блоков.
func (a *Analyzer) OrderBlocks(candles []models.Candle) []models.OrderBlock {
	n := len(candles)
	if n < minPatternCandles {
		return nil
	}

	var blocks []models.OrderBlock

	for i := 2; i <= n-2; i++ {
		prev, cur, next := candles[i-1], candles[i], candles[i+1]

		var direction models.Direction
		switch {
		case prev.Bearish() && cur.Bullish() && next.Close > cur.Close:
			direction = models.Bullish
		case prev.Bullish() && cur.Bearish() && next.Close < cur.Close:
			direction = models.Bearish
		default:
			continue
		}

		blocks = append(blocks, models.OrderBlock{
			Direction: direction,
			Index:     i - 1,
			High:      prev.High,
			Low:       prev.Low,
			Timestamp: prev.Timestamp,
		})
	}

	return lastN(blocks, a.config.MaxOrderBlocks)
}

// FairValueGaps ищет разрывы из трех свечей вокруг средней свечи i.
// Бычий FVG: минимум свечи i+1 выше максимума свечи i-1; медвежий - зеркально.
func (a *Analyzer) FairValueGaps(candles []models.Candle) []models.FairValueGap {
	n := len(candles)
	if n < minPatternCandles {
		return nil
	}

	var gaps []models.FairValueGap

	for i := 1; i <= n-2; i++ {
		before, middle, after := candles[i-1], candles[i], candles[i+1]

		if after.Low > before.High {
			gaps = append(gaps, models.FairValueGap{
				Direction: models.Bullish,
				Index:     i,
				Top:       after.Low,
				Bottom:    before.High,
				Timestamp: middle.Timestamp,
			})
			continue
		}

		if after.High < before.Low {
			gaps = append(gaps, models.FairValueGap{
				Direction: models.Bearish,
				Index:     i,
				Top:       before.Low,
				Bottom:    after.High,
				Timestamp: middle.Timestamp,
			})
		}
	}

	return lastN(gaps, a.config.MaxGaps)
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	out := make([]T, n)
	copy(out, items[len(items)-n:])
	return out
}
