// Package backtest прогоняет анализ по истории свечей и симулирует сделки по планам
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/skalibog/ictpro/internal/analysis/aggregator"
	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/pkg/models"
)

// Причины закрытия сделки
const (
	ExitStop   = "stop"
	ExitTarget = "target"
	ExitEnd    = "end"
)

// Trade смоделированная сделка
type Trade struct {
	Direction  models.Direction
	Signal     models.Signal
	EntryTime  time.Time
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	ExitTime   time.Time
	ExitPrice  float64
	Reason     string
	ReturnPct  float64
}

// Result итог прогона
type Result struct {
	Symbol         string
	Bars           int
	Trades         []Trade
	Wins           int
	WinRate        float64
	TotalReturnPct float64
	MaxDrawdownPct float64
}

// Run прогоняет анализ по свечам in.Candles. Начиная с бара Warmup, на каждом баре
// анализируется окно из последних Window свечей; позиция открывается по закрытию бара
// на сигналах покупки или продажи и закрывается по стопу (проверяется первым), цели
// или в конце данных.
func Run(ctx context.Context, analyzer *aggregator.Analyzer, in aggregator.AssetInput, cfg config.BacktestConfig) (Result, error) {
	if err := models.ValidateCandles(in.Candles); err != nil {
		return Result{}, fmt.Errorf("бэктест %s: %w", in.Symbol, err)
	}
	if cfg.Warmup <= 0 {
		cfg.Warmup = 30
	}
	if cfg.Window < cfg.Warmup {
		cfg.Window = cfg.Warmup
	}

	candles := in.Candles
	res := Result{Symbol: in.Symbol, Bars: len(candles)}

	var open *Trade
	for i := cfg.Warmup - 1; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("бэктест %s прерван: %w", in.Symbol, err)
		}

		bar := candles[i]
		if open != nil {
			if closed, ok := exit(*open, bar); ok {
				res.Trades = append(res.Trades, closed)
				open = nil
			}
		}
		if open != nil || i == len(candles)-1 {
			continue
		}

		from := i + 1 - cfg.Window
		if from < 0 {
			from = 0
		}
		window := in
		window.Candles = candles[from : i+1]

		report, err := analyzer.AnalyzeAsset(ctx, window, bar.Timestamp)
		if err != nil {
			return res, err
		}
		if !report.Plan.Actionable {
			continue
		}

		open = &Trade{
			Direction:  report.Plan.Direction,
			Signal:     report.Result.Signal,
			EntryTime:  bar.Timestamp,
			EntryPrice: bar.Close,
			StopLoss:   report.Plan.StopLoss,
			TakeProfit: report.Plan.TakeProfit,
		}
	}

	if open != nil {
		last := candles[len(candles)-1]
		res.Trades = append(res.Trades, closeTrade(*open, last.Timestamp, last.Close, ExitEnd))
	}

	summarize(&res)
	return res, nil
}

// exit проверяет, задел ли бар стоп или цель открытой сделки
func exit(t Trade, bar models.Candle) (Trade, bool) {
	if !bar.Timestamp.After(t.EntryTime) {
		return t, false
	}

	if t.Direction == models.Bullish {
		if bar.Low <= t.StopLoss {
			return closeTrade(t, bar.Timestamp, t.StopLoss, ExitStop), true
		}
		if bar.High >= t.TakeProfit {
			return closeTrade(t, bar.Timestamp, t.TakeProfit, ExitTarget), true
		}
		return t, false
	}

	if bar.High >= t.StopLoss {
		return closeTrade(t, bar.Timestamp, t.StopLoss, ExitStop), true
	}
	if bar.Low <= t.TakeProfit {
		return closeTrade(t, bar.Timestamp, t.TakeProfit, ExitTarget), true
	}
	return t, false
}

func closeTrade(t Trade, at time.Time, price float64, reason string) Trade {
	t.ExitTime = at
	t.ExitPrice = price
	t.Reason = reason
	if t.EntryPrice > 0 {
		t.ReturnPct = (price - t.EntryPrice) / t.EntryPrice * 100
		if t.Direction == models.Bearish {
			t.ReturnPct = -t.ReturnPct
		}
	}
	return t
}

// summarize считает долю прибыльных сделок, сложную доходность и максимальную просадку
func summarize(res *Result) {
	equity, peak := 1.0, 1.0
	for _, t := range res.Trades {
		if t.ReturnPct > 0 {
			res.Wins++
		}
		equity *= 1 + t.ReturnPct/100
		peak = math.Max(peak, equity)
		if dd := (peak - equity) / peak * 100; dd > res.MaxDrawdownPct {
			res.MaxDrawdownPct = dd
		}
	}

	if len(res.Trades) > 0 {
		res.WinRate = float64(res.Wins) / float64(len(res.Trades)) * 100
	}
	res.TotalReturnPct = (equity - 1) * 100
}
