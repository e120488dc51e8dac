package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skalibog/ictpro/internal/analysis/alerts"
	"github.com/skalibog/ictpro/internal/analysis/planner"
	"github.com/skalibog/ictpro/internal/analysis/scoring"
	"github.com/skalibog/ictpro/internal/analysis/session"
	"github.com/skalibog/ictpro/internal/analysis/structure"
	"github.com/skalibog/ictpro/internal/analysis/technical"
	"github.com/skalibog/ictpro/internal/analysis/volumedelta"
	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/pkg/logger"
	"github.com/skalibog/ictpro/pkg/models"
)

// Journal сохраняет результаты анализа
type Journal interface {
	SaveAnalysis(ctx context.Context, result models.AnalysisResult, plan models.TradePlan) error
}

// AssetInput данные одного инструмента для анализа
type AssetInput struct {
	Symbol       string
	Name         string
	Class        models.AssetClass
	Candles      []models.Candle
	Fundamentals map[string]float64
}

// Report результат анализа инструмента вместе с планом сделки
type Report struct {
	Result models.AnalysisResult
	Plan   models.TradePlan
}

// Analyzer объединяет все аналитические компоненты
type Analyzer struct {
	config          *config.Config
	journal         Journal
	clock           *session.Clock
	technicalAnal   *technical.Analyzer
	structureAnal   *structure.Analyzer
	volumeDeltaAnal *volumedelta.Analyzer
	engine          *scoring.Engine
	planner         *planner.Planner
	evaluator       *alerts.Evaluator
	tolerance       planner.RiskTolerance
}

// NewAnalyzer создает новый анализатор. journal может быть nil.
func NewAnalyzer(cfg *config.Config, journal Journal) (*Analyzer, error) {
	windows, err := cfg.SessionWindows()
	if err != nil {
		return nil, fmt.Errorf("ошибка каталога сессий: %w", err)
	}

	return &Analyzer{
		config:          cfg,
		journal:         journal,
		clock:           session.NewClock(windows, cfg.SessionLocation()),
		technicalAnal:   technical.NewAnalyzer(cfg.Analysis.Technical),
		structureAnal:   structure.NewAnalyzer(cfg.Analysis.Structure),
		volumeDeltaAnal: volumedelta.NewAnalyzer(cfg.Analysis.VolumeDelta),
		engine:          scoring.NewEngine(cfg.Analysis.Scoring),
		planner:         planner.NewPlanner(cfg.Trading),
		evaluator:       alerts.NewEvaluator(cfg.Alerts.Tolerance),
		tolerance:       planner.ParseRiskTolerance(cfg.Trading.RiskTolerance),
	}, nil
}

// Clock возвращает часы сессий анализатора
func (a *Analyzer) Clock() *session.Clock {
	return a.clock
}

// AnalyzeAsset анализирует один инструмент на момент now
func (a *Analyzer) AnalyzeAsset(ctx context.Context, in AssetInput, now time.Time) (Report, error) {
	if err := models.ValidateCandles(in.Candles); err != nil {
		return Report{}, fmt.Errorf("анализ %s: %w", in.Symbol, err)
	}
	if !in.Class.Valid() {
		return Report{}, fmt.Errorf("анализ %s: %w: %q", in.Symbol, models.ErrInvalidAssetClass, in.Class)
	}

	indicators, err := a.technicalAnal.Compute(in.Candles)
	if err != nil {
		return Report{}, fmt.Errorf("анализ %s: %w", in.Symbol, err)
	}

	last := in.Candles[len(in.Candles)-1]
	snapshot := models.AssetSnapshot{
		Symbol:         in.Symbol,
		Name:           in.Name,
		Class:          in.Class,
		Price:          last.Close,
		PriceChange24h: PriceChange24h(in.Candles),
		Volume:         last.Volume,
		VolumePressure: a.volumeDeltaAnal.Pressure(in.Candles),
		VolumeImpulses: a.volumeDeltaAnal.NetImpulses(in.Candles),
		Fundamentals:   in.Fundamentals,
		Structure:      a.structureAnal.Detect(in.Candles),
	}

	win := a.clock.Classify(now)

	result, err := a.engine.Analyze(snapshot, indicators, win, in.Class)
	if err != nil {
		return Report{}, err
	}
	result.AnalyzedAt = now

	plan := a.planner.Plan(result, snapshot.Price, a.tolerance)

	logger.Debug("Анализ завершен",
		zap.String("symbol", in.Symbol),
		zap.String("session", win.Name),
		zap.Float64("combined", result.CombinedScore),
		zap.String("signal", string(result.Signal)))

	if a.journal != nil {
		if err := a.journal.SaveAnalysis(ctx, result, plan); err != nil {
			logger.Warn("Предупреждение: не удалось сохранить анализ", zap.String("symbol", in.Symbol), zap.Error(err))
		}
	}

	return Report{Result: result, Plan: plan}, nil
}

// Scan анализирует список инструментов параллельно, не более Workers одновременно.
// Отчеты возвращаются в порядке входа; ошибки отдельных инструментов не прерывают сканирование.
func (a *Analyzer) Scan(ctx context.Context, inputs []AssetInput, now time.Time) ([]Report, []error) {
	slots := make([]*Report, len(inputs))
	var errs []error
	var mutex sync.Mutex

	var g errgroup.Group
	g.SetLimit(a.config.Analysis.Workers)

	for i, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		i, in := i, in

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			report, err := a.AnalyzeAsset(ctx, in, now)

			mutex.Lock()
			defer mutex.Unlock()
			if err != nil {
				logger.Warn("Ошибка анализа инструмента", zap.String("symbol", in.Symbol), zap.Error(err))
				errs = append(errs, err)
				return nil
			}
			slots[i] = &report
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, fmt.Errorf("сканирование прервано: %w", err))
	}

	reports := make([]Report, 0, len(inputs))
	for _, r := range slots {
		if r != nil {
			reports = append(reports, *r)
		}
	}

	logger.Info("Сканирование завершено",
		zap.Int("assets", len(inputs)),
		zap.Int("reports", len(reports)),
		zap.Int("errors", len(errs)))

	return reports, errs
}

// Alerts проверяет правила на отчетах сканирования
func (a *Analyzer) Alerts(reports []Report, rules []models.AlertRule, now time.Time) []alerts.Evaluation {
	results := make([]models.AnalysisResult, len(reports))
	for i, r := range reports {
		results[i] = r.Result
	}
	return a.evaluator.EvaluateAll(rules, results, now)
}

// PriceChange24h изменение цены в процентах: последняя свеча против свечи,
// открытой не менее чем за 24 часа до нее, либо против предыдущей свечи.
func PriceChange24h(candles []models.Candle) float64 {
	n := len(candles)
	if n < 2 {
		return 0
	}

	last := candles[n-1]
	ref := candles[n-2]
	cutoff := last.Timestamp.Add(-24 * time.Hour)
	for i := n - 2; i >= 0; i-- {
		if !candles[i].Timestamp.After(cutoff) {
			ref = candles[i]
			break
		}
	}

	if ref.Close <= 0 {
		return 0
	}
	return (last.Close - ref.Close) / ref.Close * 100
}

// IsInputError сообщает, вызвана ли ошибка некорректными входными данными
func IsInputError(err error) bool {
	return errors.Is(err, models.ErrEmptyCandles) ||
		errors.Is(err, models.ErrUnorderedCandles) ||
		errors.Is(err, models.ErrInvalidAssetClass)
}
