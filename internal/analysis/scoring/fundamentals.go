package scoring

import (
	"math"

	"github.com/skalibog/ictpro/pkg/models"
)

// Ключи фундаментальных показателей
const (
	KeyPE            = "pe"
	KeyROE           = "roe"
	KeyDebtEquity    = "debtEquity"
	KeyDividendYield = "dividendYield"
	KeyMarketCap     = "marketCap"
	KeyVolume24h     = "volume24h"
	KeySentiment     = "sentiment"
	KeyVolume        = "volume"
	KeyVolatility    = "volatility"
)

// classStrategy набор правил оценки для класса актива
type classStrategy struct {
	boosts       map[models.Concept]float64
	fundamentals func(snap models.AssetSnapshot, ind models.IndicatorSnapshot) float64
}

var strategies = map[models.AssetClass]classStrategy{
	models.Stock: {
		boosts: map[models.Concept]float64{
			models.ConceptOrderBlocks:     1.2,
			models.ConceptMarketStructure: 1.2,
		},
		fundamentals: stockFundamentals,
	},
	models.Crypto: {
		boosts: map[models.Concept]float64{
			models.ConceptLiquidity:     1.2,
			models.ConceptFairValueGaps: 1.2,
		},
		fundamentals: cryptoFundamentals,
	},
	models.Forex: {
		boosts: map[models.Concept]float64{
			models.ConceptKillZones:         1.25,
			models.ConceptOptimalTradeEntry: 1.15,
		},
		fundamentals: forexFundamentals,
	},
}

// FundamentalScore считает фундаментальную оценку для класса актива
func FundamentalScore(class models.AssetClass, snap models.AssetSnapshot, ind models.IndicatorSnapshot) (float64, bool) {
	strategy, ok := strategies[class]
	if !ok {
		return 0, false
	}
	return strategy.fundamentals(snap, ind), true
}

// field возвращает конечное значение показателя
func field(f map[string]float64, key string) (float64, bool) {
	v, ok := f[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func stockFundamentals(snap models.AssetSnapshot, _ models.IndicatorSnapshot) float64 {
	f := snap.Fundamentals

	var pe, roe, de, div float64
	if v, ok := field(f, KeyPE); ok && v > 0 {
		pe = clamp(100-4*math.Abs(v-20), 0, 100)
	}
	if v, ok := field(f, KeyROE); ok {
		roe = clamp(v*16/3, 0, 100)
	}
	if v, ok := field(f, KeyDebtEquity); ok && v >= 0 {
		if v <= 2 {
			de = clamp(100-10*v, 0, 100)
		} else {
			de = math.Max(0, 80-30*(v-2))
		}
	}
	if v, ok := field(f, KeyDividendYield); ok && v > 0 {
		div = clamp(40+15*v, 0, 100)
	}

	return clamp(0.3*pe+0.3*roe+0.2*de+0.2*div, 0, 100)
}

func cryptoFundamentals(snap models.AssetSnapshot, _ models.IndicatorSnapshot) float64 {
	f := snap.Fundamentals

	var capScore, volScore, liq, sentiment float64
	marketCap, hasCap := field(f, KeyMarketCap)
	volume, hasVol := field(f, KeyVolume24h)

	if hasCap && marketCap > 0 {
		capScore = clamp(20*(math.Log10(marketCap)-6), 0, 100)
	}
	if hasVol && volume > 0 {
		volScore = clamp(20*(math.Log10(volume)-5), 0, 100)
	}
	if hasCap && hasVol && marketCap > 0 && volume > 0 {
		liq = clamp(1000*volume/marketCap, 0, 100)
	}
	if v, ok := field(f, KeySentiment); ok {
		sentiment = clamp(v, 0, 100)
	}

	return clamp(0.3*capScore+0.25*volScore+0.25*liq+0.2*sentiment, 0, 100)
}

func forexFundamentals(snap models.AssetSnapshot, ind models.IndicatorSnapshot) float64 {
	f := snap.Fundamentals

	neutrality := clamp(100-2*math.Abs(ind.RSI-50), 0, 100)

	volume, ok := field(f, KeyVolume)
	if !ok {
		volume = snap.Volume
	}
	var volScore float64
	if volume > 0 {
		volScore = clamp(20*(math.Log10(volume)-3), 0, 100)
	}

	volatility, ok := field(f, KeyVolatility)
	if !ok {
		volatility = ind.Volatility
	}
	volatilityScore := clamp(100-50*math.Abs(volatility-1), 0, 100)

	return clamp(0.4*neutrality+0.3*volScore+0.3*volatilityScore, 0, 100)
}
