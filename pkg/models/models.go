package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyCandles возвращается, когда анализировать нечего
	ErrEmptyCandles = errors.New("пустая серия свечей")
	// ErrUnorderedCandles возвращается для серии с нарушенным порядком или дублями времени
	ErrUnorderedCandles = errors.New("свечи не упорядочены строго по времени")
	// ErrInvalidAssetClass возвращается для класса актива вне {Stock, Crypto, Forex}
	ErrInvalidAssetClass = errors.New("неизвестный класс актива")
)

// Candle представляет свечу
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Bullish сообщает, закрылась ли свеча выше открытия
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish сообщает, закрылась ли свеча ниже открытия
func (c Candle) Bearish() bool { return c.Close < c.Open }

// ValidateCandles проверяет, что серия не пуста и упорядочена по времени
func ValidateCandles(candles []Candle) error {
	if len(candles) == 0 {
		return ErrEmptyCandles
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("%w: индекс %d (%s) после %s", ErrUnorderedCandles, i,
				candles[i].Timestamp.Format(time.RFC3339), candles[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes возвращает цены закрытия серии
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// AssetClass класс торгуемого инструмента
type AssetClass string

const (
	Stock  AssetClass = "Stock"
	Crypto AssetClass = "Crypto"
	Forex  AssetClass = "Forex"
)

// ParseAssetClass разбирает строковое имя класса актива
func ParseAssetClass(s string) (AssetClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock", "stocks", "equity":
		return Stock, nil
	case "crypto", "cryptocurrency":
		return Crypto, nil
	case "forex", "fx", "currency":
		return Forex, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAssetClass, s)
}

// Valid сообщает, входит ли класс в поддерживаемый набор
func (c AssetClass) Valid() bool {
	return c == Stock || c == Crypto || c == Forex
}

// Direction направление паттерна или сделки
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Flat    Direction = "flat"
)

// IndicatorSnapshot содержит последние значения индикаторов
type IndicatorSnapshot struct {
	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	EMA20      float64
	EMA50      float64
	EMA200     float64
	ATR        float64
	// Volatility - стандартное отклонение процентных доходностей
	Volatility float64
	LastClose  float64
}

// OrderBlock последняя контртрендовая свеча перед подтвержденным движением
type OrderBlock struct {
	Direction Direction
	Index     int
	High      float64
	Low       float64
	Timestamp time.Time
}

// FairValueGap незаполненный ценовой разрыв из трех свечей
type FairValueGap struct {
	Direction Direction
	Index     int
	Top       float64
	Bottom    float64
	Timestamp time.Time
}

// SupportResistanceLevels уровни поддержки (по возрастанию) и сопротивления (по убыванию)
type SupportResistanceLevels struct {
	Support    []float64
	Resistance []float64
}

// Structure результаты поиска паттернов на окне свечей
type Structure struct {
	OrderBlocks   []OrderBlock
	FairValueGaps []FairValueGap
	Levels        SupportResistanceLevels
	SwingHigh     float64
	SwingLow      float64
	// SwingHighFirst true, если максимум окна сформирован раньше минимума (нисходящая нога)
	SwingHighFirst bool
}

// SessionWindow торговая сессия (kill zone)
type SessionWindow struct {
	Name        string
	Start       time.Duration // смещение от полуночи
	End         time.Duration
	Multiplier  float64
	Priority    int
	Active      bool
	Description string
}

// AssetSnapshot рыночный срез инструмента
type AssetSnapshot struct {
	Symbol         string
	Name           string
	Class          AssetClass
	Price          float64
	PriceChange24h float64
	Volume         float64
	// VolumePressure знаковое давление объема в диапазоне -1..1
	VolumePressure float64
	// VolumeImpulses разница бычьих и медвежьих свечей с аномальным объемом
	VolumeImpulses int
	Fundamentals   map[string]float64
	Structure      Structure
}

// Trend метка тренда
type Trend string

const (
	TrendStrongBullish Trend = "strong bullish"
	TrendBullish       Trend = "bullish"
	TrendNeutral       Trend = "neutral"
	TrendBearish       Trend = "bearish"
	TrendStrongBearish Trend = "strong bearish"
	TrendWeak          Trend = "weak"
)

// IsBullish сообщает, бычий ли тренд
func (t Trend) IsBullish() bool { return t == TrendBullish || t == TrendStrongBullish }

// IsBearish сообщает, медвежий ли тренд
func (t Trend) IsBearish() bool { return t == TrendBearish || t == TrendStrongBearish }

// IsStrong сообщает, сильный ли тренд
func (t Trend) IsStrong() bool { return t == TrendStrongBullish || t == TrendStrongBearish }

// Signal торговый сигнал
type Signal string

const (
	SignalStrongBuy  Signal = "STRONG BUY"
	SignalBuy        Signal = "BUY"
	SignalHold       Signal = "HOLD"
	SignalWait       Signal = "WAIT"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG SELL"
)

// IsBuy сообщает, относится ли сигнал к покупкам
func (s Signal) IsBuy() bool { return s == SignalBuy || s == SignalStrongBuy }

// IsSell сообщает, относится ли сигнал к продажам
func (s Signal) IsSell() bool { return s == SignalSell || s == SignalStrongSell }

// Concept имя ICT концепции
type Concept string

const (
	ConceptMarketStructure   Concept = "Market Structure"
	ConceptOrderBlocks       Concept = "Order Blocks"
	ConceptFairValueGaps     Concept = "Fair Value Gaps"
	ConceptLiquidity         Concept = "Liquidity"
	ConceptOptimalTradeEntry Concept = "Optimal Trade Entry"
	ConceptKillZones         Concept = "Kill Zones"
)

// ConceptScore оценка одной концепции
type ConceptScore struct {
	Concept   Concept
	Score     float64
	MaxWeight float64
}

// AnalysisResult результат анализа актива
type AnalysisResult struct {
	TechnicalScore   float64
	FundamentalScore float64
	CombinedScore    float64
	Trend            Trend
	Signal           Signal
	RiskLevel        int
	Confidence       float64
	Concepts         []ConceptScore
	Snapshot         AssetSnapshot
	Indicators       IndicatorSnapshot
	Session          SessionWindow
	AnalyzedAt       time.Time
}

// ConceptScoreOf возвращает оценку концепции по имени
func (r AnalysisResult) ConceptScoreOf(c Concept) (float64, bool) {
	for _, cs := range r.Concepts {
		if cs.Concept == c {
			return cs.Score, true
		}
	}
	return 0, false
}

// TradePlan параметры сделки
type TradePlan struct {
	Direction       Direction
	Actionable      bool
	EntryPrice      float64
	StopLoss        float64
	TakeProfit      float64
	StopLossPct     float64
	TakeProfitPct   float64
	RiskRewardRatio float64
	PositionSize    float64
	RiskAmount      float64
}

// Comparator оператор сравнения в условии алерта
type Comparator string

const (
	GreaterOrEqual Comparator = ">="
	LessOrEqual    Comparator = "<="
	Greater        Comparator = ">"
	Less           Comparator = "<"
	Approx         Comparator = "≈"
)

// AlertCondition одно пороговое условие
type AlertCondition struct {
	Metric     string     `yaml:"metric"`
	Comparator Comparator `yaml:"comparator"`
	Threshold  float64    `yaml:"threshold"`
}

// AlertRule пользовательское правило алерта; состояние хранит вызывающая сторона
type AlertRule struct {
	ID              string           `yaml:"id"`
	Symbol          string           `yaml:"symbol"`
	Conditions      []AlertCondition `yaml:"conditions"`
	Channels        []string         `yaml:"channels"`
	CooldownMinutes int              `yaml:"cooldown_minutes"`
	LastTriggeredAt time.Time        `yaml:"last_triggered_at"`
	TriggerCount    int              `yaml:"trigger_count"`
	Active          bool             `yaml:"active"`
}

// AlertEvent сработавший алерт
type AlertEvent struct {
	ID          string
	RuleID      string
	Symbol      string
	Channels    []string
	TriggeredAt time.Time
	Values      map[string]float64
	Message     string
}
