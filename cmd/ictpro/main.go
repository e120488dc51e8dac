package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/pkg/logger"
)

const tokenEnv = "ICTPRO_INFLUX_TOKEN"

var (
	configPath string
	cfg        *config.Config
)

func main() {
	// Переменные окружения из .env необязательны
	_ = godotenv.Load()

	// Создаем контекст, отменяемый по сигналам завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ictpro",
		Short:         "Анализ рынка по концепциям ICT",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.GetLogger().Sync()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "путь к файлу конфигурации")

	root.AddCommand(
		newScanCmd(),
		newSessionCmd(),
		newCorrelateCmd(),
		newBacktestCmd(),
		newHistoryCmd(),
	)
	return root
}

// setup загружает конфигурацию и инициализирует логгер
func setup() error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("файл конфигурации не найден: %s", configPath)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if token := os.Getenv(tokenEnv); token != "" {
		loaded.Storage.Token = token
	}
	cfg = loaded

	if err := logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Console:    cfg.Log.Console,
	}); err != nil {
		return fmt.Errorf("ошибка инициализации логгера: %w", err)
	}

	logger.Debug("Конфигурация загружена",
		zap.String("path", configPath),
		zap.Int("watchlist", len(cfg.Watchlist)))
	return nil
}
