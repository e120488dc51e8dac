package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skalibog/ictpro/internal/analysis/aggregator"
	"github.com/skalibog/ictpro/internal/analysis/alerts"
	"github.com/skalibog/ictpro/internal/analysis/backtest"
	"github.com/skalibog/ictpro/internal/analysis/correlation"
	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/internal/marketdata"
	"github.com/skalibog/ictpro/internal/storage"
	"github.com/skalibog/ictpro/internal/ui"
	"github.com/skalibog/ictpro/pkg/logger"
	"github.com/skalibog/ictpro/pkg/models"
)

func newScanCmd() *cobra.Command {
	var (
		at      string
		details bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Проанализировать все инструменты из watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			now, err := parseNow(at)
			if err != nil {
				return err
			}

			inputs, loadErrs := loadWatchlist(cfg.Watchlist, "")
			logAssetErrors(loadErrs)
			if len(inputs) == 0 && len(loadErrs) > 0 {
				return fmt.Errorf("ни один инструмент не загружен: %w", loadErrs[0])
			}

			var (
				journal aggregator.Journal
				store   *storage.InfluxDBStorage
			)
			rules := cfg.Alerts.Rules
			if cfg.Storage.Enabled {
				store, err = storage.NewInfluxDBStorage(ctx, cfg.Storage)
				if err != nil {
					return fmt.Errorf("ошибка инициализации хранилища: %w", err)
				}
				defer store.Close()
				journal = store

				// Срабатывания прошлых запусков, чтобы cooldown действовал между ними
				states, err := store.GetAlertStates(ctx)
				if err != nil {
					logger.Warn("Состояние алертов не загружено", zap.Error(err))
				} else {
					rules = storage.RestoreAlertStates(rules, states)
				}
			}

			analyzer, err := aggregator.NewAnalyzer(cfg, journal)
			if err != nil {
				return err
			}

			reports, errs := analyzer.Scan(ctx, inputs, now)
			logAssetErrors(errs)
			if len(reports) == 0 && len(errs) > 0 {
				return fmt.Errorf("ни один инструмент не проанализирован: %w", errs[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.RenderScan(reports, now))
			if details {
				for _, r := range reports {
					fmt.Fprintln(out, ui.RenderConcepts(r))
				}
			}

			evaluations := analyzer.Alerts(reports, rules, now)
			events := alerts.Fired(evaluations)
			if rendered := ui.RenderAlerts(events); rendered != "" {
				fmt.Fprintln(out, rendered)
			}
			for _, ev := range evaluations {
				if !ev.Fired || ev.Event == nil {
					continue
				}
				logger.Info("Сработал алерт",
					zap.String("id", ev.Event.ID),
					zap.String("rule", ev.Rule.ID),
					zap.String("symbol", ev.Event.Symbol),
					zap.Strings("channels", ev.Event.Channels))
				if store != nil {
					if err := store.SaveAlert(ctx, ev.Rule, *ev.Event); err != nil {
						logger.Warn("Срабатывание алерта не сохранено", zap.Error(err))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "момент анализа в RFC3339 (по умолчанию текущее время)")
	cmd.Flags().BoolVar(&details, "details", false, "показать оценки концепций")
	return cmd
}

func newSessionCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Показать текущую и следующую торговые сессии",
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseNow(at)
			if err != nil {
				return err
			}

			analyzer, err := aggregator.NewAnalyzer(cfg, nil)
			if err != nil {
				return err
			}

			clock := analyzer.Clock()
			current := clock.Classify(now)
			next, start, ok := clock.Next(now)
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderSession(current, next, start, ok, clock.Windows()))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "момент в RFC3339 (по умолчанию текущее время)")
	return cmd
}

func newCorrelateCmd() *cobra.Command {
	var period int

	cmd := &cobra.Command{
		Use:   "correlate [symbol...]",
		Short: "Корреляция доходностей инструментов из watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, errs := loadWatchlist(cfg.Watchlist, "", args...)
			logAssetErrors(errs)

			series := make(map[string][]models.Candle, len(inputs))
			for _, in := range inputs {
				series[in.Symbol] = in.Candles
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderCorrelation(correlation.Matrix(series, period)))
			return nil
		},
	}

	cmd.Flags().IntVar(&period, "period", 30, "число последних доходностей")
	return cmd
}

func newBacktestCmd() *cobra.Command {
	var candlesPath string

	cmd := &cobra.Command{
		Use:   "backtest <symbol>",
		Short: "Прогнать сигналы инструмента по истории свечей",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, errs := loadWatchlist(cfg.Watchlist, candlesPath, args[0])
			if len(errs) > 0 {
				return errs[0]
			}
			if len(inputs) == 0 {
				return fmt.Errorf("инструмент %s не найден в watchlist", args[0])
			}

			analyzer, err := aggregator.NewAnalyzer(cfg, nil)
			if err != nil {
				return err
			}

			res, err := backtest.Run(cmd.Context(), analyzer, inputs[0], cfg.Analysis.Backtest)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderBacktest(res))
			return nil
		},
	}

	cmd.Flags().StringVar(&candlesPath, "candles", "", "CSV со свечами вместо файла из watchlist")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <symbol>",
		Short: "Показать журнал сигналов из InfluxDB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.Storage.Enabled {
				return fmt.Errorf("журнал отключен: storage.enabled = false")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, err := storage.NewInfluxDBStorage(ctx, cfg.Storage)
			if err != nil {
				return fmt.Errorf("ошибка инициализации хранилища: %w", err)
			}
			defer store.Close()

			symbol := strings.ToUpper(args[0])
			records, err := store.GetSignalHistory(ctx, symbol, limit)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderHistory(symbol, records))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "число последних записей")
	return cmd
}

// loadWatchlist читает свечи инструментов. Если symbols заданы, выбираются только они;
// override подменяет путь к CSV для единственного выбранного инструмента.
// Инструмент, который не удалось загрузить, пропускается, его ошибка возвращается в errs.
func loadWatchlist(assets []config.AssetConfig, override string, symbols ...string) (inputs []aggregator.AssetInput, errs []error) {
	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[strings.ToUpper(s)] = true
	}

	for _, asset := range assets {
		if len(wanted) > 0 && !wanted[strings.ToUpper(asset.Symbol)] {
			continue
		}

		class, err := models.ParseAssetClass(asset.Class)
		if err != nil {
			errs = append(errs, fmt.Errorf("инструмент %s: %w", asset.Symbol, err))
			continue
		}

		path := asset.Candles
		if override != "" {
			path = override
		} else if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(configPath), path)
		}
		if path == "" {
			errs = append(errs, fmt.Errorf("инструмент %s: не указан файл свечей: %w", asset.Symbol, models.ErrEmptyCandles))
			continue
		}

		candles, err := marketdata.LoadCSV(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("инструмент %s: %w", asset.Symbol, err))
			continue
		}

		inputs = append(inputs, aggregator.AssetInput{
			Symbol:       asset.Symbol,
			Name:         asset.Name,
			Class:        class,
			Candles:      candles,
			Fundamentals: asset.Fundamentals,
		})
	}
	return inputs, errs
}

// logAssetErrors пишет в лог ошибки отдельных инструментов.
// Ошибки входных данных только предупреждают: инструмент пропускается.
func logAssetErrors(errs []error) {
	for _, err := range errs {
		if aggregator.IsInputError(err) {
			logger.Warn("Инструмент пропущен", zap.Error(err))
			continue
		}
		logger.Error("Ошибка анализа инструмента", zap.Error(err))
	}
}

func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("неверный формат --at: %w", err)
	}
	return t, nil
}
