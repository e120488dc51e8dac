// Package correlation считает попарную корреляцию доходностей инструментов
package correlation

import (
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/skalibog/ictpro/internal/analysis/technical"
	"github.com/skalibog/ictpro/pkg/models"
)

const minSamples = 3

// Pair корреляция двух инструментов
type Pair struct {
	A, B        string
	Coefficient float64
	Samples     int
}

// Matrix считает корреляцию Пирсона процентных доходностей по общим временным меткам.
// Используются последние period доходностей; пары с меньшей историей пропускаются.
func Matrix(series map[string][]models.Candle, period int) []Pair {
	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var pairs []Pair
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			a, b := symbols[i], symbols[j]
			coef, n, ok := Coefficient(series[a], series[b], period)
			if !ok {
				continue
			}
			pairs = append(pairs, Pair{A: a, B: b, Coefficient: coef, Samples: n})
		}
	}
	return pairs
}

// Coefficient корреляция двух серий свечей
func Coefficient(a, b []models.Candle, period int) (float64, int, bool) {
	closesA, closesB := align(a, b)

	ra := technical.PercentReturns(closesA)
	rb := technical.PercentReturns(closesB)

	n := len(ra)
	if period > 0 && n > period {
		ra, rb = ra[n-period:], rb[n-period:]
		n = period
	}
	if n < minSamples {
		return 0, n, false
	}

	out := talib.Correl(ra, rb, n)
	coef := out[len(out)-1]
	if math.IsNaN(coef) || math.IsInf(coef, 0) {
		return 0, n, false
	}
	return math.Max(-1, math.Min(1, coef)), n, true
}

// align оставляет закрытия с общими временными метками в хронологическом порядке
func align(a, b []models.Candle) ([]float64, []float64) {
	byTime := make(map[time.Time]float64, len(b))
	for _, c := range b {
		byTime[c.Timestamp.UTC()] = c.Close
	}

	var closesA, closesB []float64
	for _, c := range a {
		if v, ok := byTime[c.Timestamp.UTC()]; ok {
			closesA = append(closesA, c.Close)
			closesB = append(closesB, v)
		}
	}
	return closesA, closesB
}
