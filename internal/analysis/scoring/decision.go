package scoring

import (
	"math"

	"github.com/skalibog/ictpro/pkg/models"
)

// ClassifyTrend определяет тренд по итоговой оценке, изменению за 24ч и RSI
func ClassifyTrend(combined, change24h, rsi float64) models.Trend {
	switch {
	case combined > 80 && change24h > 2 && rsi < 70:
		return models.TrendStrongBullish
	case combined > 80 && change24h < -2 && rsi > 30:
		return models.TrendStrongBearish
	case combined > 75 && change24h > 0:
		return models.TrendBullish
	case combined > 75 && change24h < 0:
		return models.TrendBearish
	case combined > 50:
		return models.TrendNeutral
	default:
		return models.TrendWeak
	}
}

// ClassifySignal определяет сигнал по итоговой оценке, приоритету сессии и тренду
func ClassifySignal(combined float64, priority int, trend models.Trend) models.Signal {
	switch {
	case combined >= 85 && priority >= 4 && trend.IsBullish():
		return models.SignalStrongBuy
	case combined >= 75 && trend.IsBullish():
		return models.SignalBuy
	case combined >= 85 && priority >= 4 && trend.IsBearish():
		return models.SignalStrongSell
	case combined >= 75 && trend.IsBearish():
		return models.SignalSell
	case combined >= 60:
		return models.SignalHold
	default:
		return models.SignalWait
	}
}

// RiskLevel уровень риска от 1 до 10
func RiskLevel(change24h float64, priority int) int {
	move := math.Abs(change24h)
	if math.IsNaN(move) {
		move = 0
	}
	// Больше 20% движения уровень не меняет
	level := int(math.Floor(math.Min(move, 20)/2)) + (10 - priority)
	if level < 1 {
		return 1
	}
	if level > 10 {
		return 10
	}
	return level
}

// Confidence уверенность в процентах: среднее четырех нормированных факторов
func Confidence(combined, rsi float64, priority int, change24h float64, trend models.Trend) float64 {
	momentum := 0.5
	if trend.IsStrong() {
		momentum = clamp(math.Abs(change24h)/5, 0, 1)
	}

	factors := []float64{
		clamp(combined/100, 0, 1),
		clamp((100-math.Abs(rsi-50))/100, 0, 1),
		clamp(float64(priority)/5, 0, 1),
		momentum,
	}

	var sum float64
	for _, f := range factors {
		sum += f
	}
	return clamp(100*sum/float64(len(factors)), 0, 100)
}
