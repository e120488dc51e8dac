package structure

import (
	"sort"

	"github.com/skalibog/ictpro/pkg/models"
)

// SupportResistance находит локальные экстремумы: максимум строго выше
// SwingWidth соседей с каждой стороны - сопротивление, минимум строго ниже - поддержка.
// Сопротивления возвращаются от высшего, поддержки - от низшей.
func (a *Analyzer) SupportResistance(candles []models.Candle) models.SupportResistanceLevels {
	w := a.config.SwingWidth
	n := len(candles)
	if n < 2*w+1 {
		return models.SupportResistanceLevels{}
	}

	highs := make(map[float64]struct{})
	lows := make(map[float64]struct{})

	for i := w; i < n-w; i++ {
		isHigh, isLow := true, true
		for j := i - w; j <= i+w; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs[candles[i].High] = struct{}{}
		}
		if isLow {
			lows[candles[i].Low] = struct{}{}
		}
	}

	resistance := keys(highs)
	sort.Sort(sort.Reverse(sort.Float64Slice(resistance)))

	support := keys(lows)
	sort.Float64s(support)

	return models.SupportResistanceLevels{
		Support:    firstN(support, a.config.MaxLevels),
		Resistance: firstN(resistance, a.config.MaxLevels),
	}
}

func keys(set map[float64]struct{}) []float64 {
	out := make([]float64, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func firstN(items []float64, n int) []float64 {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
