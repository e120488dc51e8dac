package technical

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/pkg/models"
)

// NeutralRSI значение RSI при недостатке истории
const NeutralRSI = 50.0

// Analyzer реализует анализатор технических индикаторов
type Analyzer struct {
	config config.TechnicalConfig
}

// NewAnalyzer создает новый анализатор технических индикаторов
func NewAnalyzer(cfg config.TechnicalConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Compute рассчитывает снимок индикаторов по окну свечей.
// Ошибка возвращается только для пустой серии.
func (a *Analyzer) Compute(candles []models.Candle) (models.IndicatorSnapshot, error) {
	if len(candles) == 0 {
		return models.IndicatorSnapshot{}, fmt.Errorf("ошибка расчета индикаторов: %w", models.ErrEmptyCandles)
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))

	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	macd, signal := MACD(closes, a.config.MACDFast, a.config.MACDSlow, a.config.MACDSignal)
	ema20, ema50, ema200 := EMAs(closes)

	return models.IndicatorSnapshot{
		RSI:        RSI(closes, a.config.RSIPeriod),
		MACD:       macd,
		MACDSignal: signal,
		MACDHist:   macd - signal,
		EMA20:      ema20,
		EMA50:      ema50,
		EMA200:     ema200,
		ATR:        ATR(highs, lows, closes, a.config.ATRPeriod),
		Volatility: Volatility(closes, a.config.VolatilityPeriod),
		LastClose:  closes[len(closes)-1],
	}, nil
}

// RSI рассчитывает RSI по средним приросту и снижению за последние period разниц.
// Нужно period+1 закрытий, иначе возвращается нейтральное 50. Окно без движения тоже дает 50.
func RSI(closes []float64, period int) float64 {
	if period < 2 || len(closes) < period+1 {
		return NeutralRSI
	}

	window := closes[len(closes)-period-1:]
	gains := make([]float64, period)
	losses := make([]float64, period)
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	avgGain := talib.Sma(gains, period)[period-1]
	avgLoss := talib.Sma(losses, period)[period-1]

	switch {
	case avgGain == 0 && avgLoss == 0:
		return NeutralRSI
	case avgLoss == 0:
		return 100
	}

	rsi := 100 - 100/(1+avgGain/avgLoss)
	return math.Max(0, math.Min(100, rsi))
}

// MACD возвращает последние значения линии MACD и сигнальной линии.
// При истории короче slow возвращает (0, 0).
func MACD(closes []float64, fast, slow, signal int) (float64, float64) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow {
		return 0, 0
	}

	// Сигнальная EMA строится только по действительным значениям MACD, без нулевого префикса talib.Macd
	fastEMA := talib.Ema(closes, fast)
	slowEMA := talib.Ema(closes, slow)

	line := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		line = append(line, fastEMA[i]-slowEMA[i])
	}

	span := signal
	if len(line) < span {
		span = len(line)
	}
	signalLine := EMA(line, span)

	return line[len(line)-1], signalLine
}

// EMA возвращает последнее значение экспоненциальной средней.
// При истории короче span сглаживает по всей доступной истории.
func EMA(values []float64, span int) float64 {
	if len(values) == 0 {
		return 0
	}
	if span <= 0 || len(values) < span {
		span = len(values)
	}
	if span == 1 {
		return values[len(values)-1]
	}

	ema := talib.Ema(values, span)
	return ema[len(ema)-1]
}

// EMAs возвращает EMA20, EMA50 и EMA200. Более длинная средняя при нехватке
// истории деградирует до более короткой: EMA200 -> EMA50 -> EMA20.
func EMAs(closes []float64) (ema20, ema50, ema200 float64) {
	ema20 = EMA(closes, 20)

	ema50 = ema20
	if len(closes) >= 50 {
		ema50 = EMA(closes, 50)
	}

	ema200 = ema50
	if len(closes) >= 200 {
		ema200 = EMA(closes, 200)
	}

	return ema20, ema50, ema200
}

// ATR рассчитывает средний истинный диапазон; 0 при недостатке истории
func ATR(highs, lows, closes []float64, period int) float64 {
	if period <= 0 || len(closes) <= period {
		return 0
	}

	atr := talib.Atr(highs, lows, closes, period)
	return atr[len(atr)-1]
}

// Volatility рассчитывает стандартное отклонение процентных доходностей
// за последние period баров (или за всю историю, если она короче)
func Volatility(closes []float64, period int) float64 {
	returns := PercentReturns(closes)
	if len(returns) < 2 {
		return 0
	}
	if period <= 1 || len(returns) < period {
		period = len(returns)
	}

	std := talib.StdDev(returns, period, 1.0)
	last := std[len(std)-1]
	if math.IsNaN(last) {
		return 0
	}
	return last
}

// PercentReturns переводит цены закрытия в процентные изменения
func PercentReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (closes[i]-prev)/prev*100)
	}
	return returns
}
