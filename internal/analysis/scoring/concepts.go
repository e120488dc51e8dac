package scoring

import (
	"math"

	"github.com/skalibog/ictpro/pkg/models"
)

type conceptInput struct {
	snap models.AssetSnapshot
	ind  models.IndicatorSnapshot
}

type conceptDef struct {
	concept   models.Concept
	maxWeight float64
	// sessional оценка умножается на множитель активной сессии
	sessional bool
	raw       func(in conceptInput, win models.SessionWindow) float64
}

const maxImpulses = 3

// catalogue фиксированный порядок концепций
var catalogue = []conceptDef{
	{models.ConceptMarketStructure, 100, false, marketStructure},
	{models.ConceptOrderBlocks, 95, false, orderBlocks},
	{models.ConceptFairValueGaps, 90, false, fairValueGaps},
	{models.ConceptLiquidity, 95, false, liquidity},
	{models.ConceptOptimalTradeEntry, 90, true, optimalTradeEntry},
	{models.ConceptKillZones, 100, true, killZones},
}

// ScoreConcepts считает оценки всех концепций каталога: сырая оценка,
// усиление по классу актива, множитель сессии, ограничение весом концепции.
func ScoreConcepts(snap models.AssetSnapshot, ind models.IndicatorSnapshot,
	win models.SessionWindow, boosts map[models.Concept]float64) []models.ConceptScore {

	in := conceptInput{snap: snap, ind: ind}
	scores := make([]models.ConceptScore, 0, len(catalogue))

	for _, def := range catalogue {
		score := def.raw(in, win)
		if boost, ok := boosts[def.concept]; ok {
			score *= boost
		}
		if def.sessional && win.Multiplier > 0 {
			score *= win.Multiplier
		}
		score = math.Min(score, def.maxWeight)

		scores = append(scores, models.ConceptScore{
			Concept:   def.concept,
			Score:     clamp(score, 0, 100),
			MaxWeight: def.maxWeight,
		})
	}

	return scores
}

// marketStructure оценивает согласованность цены, EMA и MACD
func marketStructure(in conceptInput, _ models.SessionWindow) float64 {
	price := in.snap.Price
	tol := 1e-9 * math.Abs(price)

	var bull, bear int
	vote := func(a, b float64) {
		switch {
		case a-b > tol:
			bull++
		case b-a > tol:
			bear++
		}
	}

	vote(price, in.ind.EMA20)
	vote(price, in.ind.EMA50)
	vote(in.ind.EMA20, in.ind.EMA50)
	vote(in.ind.MACD, 0)
	vote(in.ind.MACD, in.ind.MACDSignal)

	aligned := bull
	if bear > aligned {
		aligned = bear
	}

	score := 40 + 12*float64(aligned)
	if in.ind.RSI > 60 || in.ind.RSI < 40 {
		score += 10
	}
	return score
}

func orderBlocks(in conceptInput, _ models.SessionWindow) float64 {
	blocks := in.snap.Structure.OrderBlocks
	score := 50 + 10*float64(len(blocks))

	if len(blocks) > 0 {
		latest := blocks[len(blocks)-1]
		price := in.snap.Price
		if price >= latest.Low*0.99 && price <= latest.High*1.01 {
			score += 10
		}
	}
	return score
}

func fairValueGaps(in conceptInput, _ models.SessionWindow) float64 {
	return 50 + 10*float64(len(in.snap.Structure.FairValueGaps))
}

func liquidity(in conceptInput, _ models.SessionWindow) float64 {
	score := 50 + 30*math.Abs(clamp(in.snap.VolumePressure, -1, 1))

	// Каждый импульс объема добавляет 5, не больше трех
	impulses := in.snap.VolumeImpulses
	if impulses < 0 {
		impulses = -impulses
	}
	score += 5 * float64(min(impulses, maxImpulses))

	levels := in.snap.Structure.Levels
	if len(levels.Support) > 0 && len(levels.Resistance) > 0 {
		score += 20
	}
	return score
}

// optimalTradeEntry оценивает откат цены внутри диапазона ноги.
// Откат меряется от экстремума, которым нога закончилась.
func optimalTradeEntry(in conceptInput, _ models.SessionWindow) float64 {
	st := in.snap.Structure
	rng := st.SwingHigh - st.SwingLow
	if rng <= 0 {
		return 50
	}

	var r float64
	if st.SwingHighFirst {
		r = (in.snap.Price - st.SwingLow) / rng
	} else {
		r = (st.SwingHigh - in.snap.Price) / rng
	}

	switch {
	case r >= 0.62 && r <= 0.79:
		return 95
	case (r >= 0.5 && r < 0.62) || (r > 0.79 && r <= 0.886):
		return 75
	default:
		return 55
	}
}

func killZones(_ conceptInput, win models.SessionWindow) float64 {
	return 50 + 10*float64(win.Priority)
}
