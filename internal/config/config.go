package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skalibog/ictpro/pkg/models"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Log       LogConfig      `yaml:"log"`
	Analysis  AnalysisConfig `yaml:"analysis"`
	Sessions  SessionsConfig `yaml:"sessions"`
	Trading   TradingConfig  `yaml:"trading"`
	Alerts    AlertsConfig   `yaml:"alerts"`
	Storage   StorageConfig  `yaml:"storage"`
	Watchlist []AssetConfig  `yaml:"watchlist"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Console    bool   `yaml:"console"`
}

// AnalysisConfig содержит настройки аналитических модулей
type AnalysisConfig struct {
	Workers     int               `yaml:"workers"`
	Technical   TechnicalConfig   `yaml:"technical"`
	Structure   StructureConfig   `yaml:"structure"`
	VolumeDelta VolumeDeltaConfig `yaml:"volume_delta"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Backtest    BacktestConfig    `yaml:"backtest"`
}

// TechnicalConfig настройки технического анализа
type TechnicalConfig struct {
	RSIPeriod        int `yaml:"rsi_period"`
	MACDFast         int `yaml:"macd_fast"`
	MACDSlow         int `yaml:"macd_slow"`
	MACDSignal       int `yaml:"macd_signal"`
	ATRPeriod        int `yaml:"atr_period"`
	VolatilityPeriod int `yaml:"volatility_period"`
}

// StructureConfig настройки поиска паттернов
type StructureConfig struct {
	MaxOrderBlocks int `yaml:"max_order_blocks"`
	MaxGaps        int `yaml:"max_gaps"`
	SwingWidth     int `yaml:"swing_width"`
	MaxLevels      int `yaml:"max_levels"`
}

// VolumeDeltaConfig настройки анализа дельты объемов
type VolumeDeltaConfig struct {
	Lookback              int     `yaml:"lookback"`
	SignificanceThreshold float64 `yaml:"significance_threshold"`
}

// ScoringConfig веса итоговой оценки
type ScoringConfig struct {
	TechnicalWeight   float64 `yaml:"technical_weight"`
	FundamentalWeight float64 `yaml:"fundamental_weight"`
}

// BacktestConfig настройки прогона истории
type BacktestConfig struct {
	Warmup int `yaml:"warmup"`
	Window int `yaml:"window"`
}

// SessionsConfig каталог торговых сессий
type SessionsConfig struct {
	Location string          `yaml:"location"`
	Windows  []SessionConfig `yaml:"windows"`
}

// SessionConfig описание одной сессии
type SessionConfig struct {
	Name        string  `yaml:"name"`
	Start       string  `yaml:"start"`
	End         string  `yaml:"end"`
	Multiplier  float64 `yaml:"multiplier"`
	Priority    int     `yaml:"priority"`
	Description string  `yaml:"description"`
}

// TradingConfig содержит настройки риска
type TradingConfig struct {
	AccountSize    float64 `yaml:"account_size"`
	RiskPerTrade   float64 `yaml:"risk_per_trade"`
	RiskTolerance  string  `yaml:"risk_tolerance"`
	PricePrecision int32   `yaml:"price_precision"`
	SizePrecision  int32   `yaml:"size_precision"`
}

// AlertsConfig правила алертов
type AlertsConfig struct {
	Tolerance float64            `yaml:"tolerance"`
	Rules     []models.AlertRule `yaml:"rules"`
}

// StorageConfig настройки журнала результатов
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// AssetConfig инструмент из списка наблюдения
type AssetConfig struct {
	Symbol       string             `yaml:"symbol"`
	Name         string             `yaml:"name"`
	Class        string             `yaml:"class"`
	Candles      string             `yaml:"candles"`
	Fundamentals map[string]float64 `yaml:"fundamentals"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults заполняет незаданные поля значениями по умолчанию
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 10
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 30
	}

	a := &c.Analysis
	if a.Workers <= 0 {
		a.Workers = 4
	}
	if a.Technical.RSIPeriod == 0 {
		a.Technical.RSIPeriod = 14
	}
	if a.Technical.MACDFast == 0 {
		a.Technical.MACDFast = 12
	}
	if a.Technical.MACDSlow == 0 {
		a.Technical.MACDSlow = 26
	}
	if a.Technical.MACDSignal == 0 {
		a.Technical.MACDSignal = 9
	}
	if a.Technical.ATRPeriod == 0 {
		a.Technical.ATRPeriod = 14
	}
	if a.Technical.VolatilityPeriod == 0 {
		a.Technical.VolatilityPeriod = 20
	}
	if a.Structure.MaxOrderBlocks == 0 {
		a.Structure.MaxOrderBlocks = 5
	}
	if a.Structure.MaxGaps == 0 {
		a.Structure.MaxGaps = 5
	}
	if a.Structure.SwingWidth == 0 {
		a.Structure.SwingWidth = 2
	}
	if a.Structure.MaxLevels == 0 {
		a.Structure.MaxLevels = 3
	}
	if a.VolumeDelta.Lookback == 0 {
		a.VolumeDelta.Lookback = 20
	}
	if a.VolumeDelta.SignificanceThreshold == 0 {
		a.VolumeDelta.SignificanceThreshold = 2.0
	}
	if a.Scoring.TechnicalWeight == 0 && a.Scoring.FundamentalWeight == 0 {
		a.Scoring.TechnicalWeight = 0.6
		a.Scoring.FundamentalWeight = 0.4
	}
	if a.Backtest.Warmup == 0 {
		a.Backtest.Warmup = 30
	}
	if a.Backtest.Window == 0 {
		a.Backtest.Window = 200
	}

	if c.Sessions.Location == "" {
		c.Sessions.Location = "UTC"
	}
	if len(c.Sessions.Windows) == 0 {
		c.Sessions.Windows = DefaultSessions()
	}

	if c.Trading.AccountSize == 0 {
		c.Trading.AccountSize = 10000
	}
	if c.Trading.RiskPerTrade == 0 {
		c.Trading.RiskPerTrade = 0.01
	}
	if c.Trading.RiskTolerance == "" {
		c.Trading.RiskTolerance = "medium"
	}
	if c.Trading.PricePrecision == 0 {
		c.Trading.PricePrecision = 6
	}
	if c.Trading.SizePrecision == 0 {
		c.Trading.SizePrecision = 6
	}

	if c.Alerts.Tolerance == 0 {
		c.Alerts.Tolerance = 0.01
	}
	for i := range c.Alerts.Rules {
		if c.Alerts.Rules[i].ID == "" {
			c.Alerts.Rules[i].ID = uuid.NewString()
		}
	}

	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "ictpro"
	}
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Sessions.Location); err != nil {
		return fmt.Errorf("неизвестная временная зона сессий %q: %w", c.Sessions.Location, err)
	}
	for _, w := range c.Sessions.Windows {
		if _, err := ParseClock(w.Start); err != nil {
			return fmt.Errorf("сессия %q: %w", w.Name, err)
		}
		if _, err := ParseClock(w.End); err != nil {
			return fmt.Errorf("сессия %q: %w", w.Name, err)
		}
		if w.Multiplier <= 0 {
			return fmt.Errorf("сессия %q: множитель должен быть больше нуля", w.Name)
		}
	}
	if c.Analysis.Technical.MACDFast >= c.Analysis.Technical.MACDSlow {
		return fmt.Errorf("macd_fast (%d) должен быть меньше macd_slow (%d)",
			c.Analysis.Technical.MACDFast, c.Analysis.Technical.MACDSlow)
	}
	if c.Trading.RiskPerTrade <= 0 || c.Trading.RiskPerTrade >= 1 {
		return fmt.Errorf("risk_per_trade должен быть в интервале (0, 1): %v", c.Trading.RiskPerTrade)
	}
	for _, asset := range c.Watchlist {
		if asset.Symbol == "" {
			return fmt.Errorf("инструмент без символа в watchlist")
		}
		if _, err := models.ParseAssetClass(asset.Class); err != nil {
			return fmt.Errorf("инструмент %s: %w", asset.Symbol, err)
		}
	}
	if c.Storage.Enabled && c.Storage.URL == "" {
		return fmt.Errorf("storage.url обязателен при включенном журнале")
	}
	return nil
}

// DefaultSessions каталог kill zone по умолчанию (UTC)
func DefaultSessions() []SessionConfig {
	return []SessionConfig{
		{Name: "Asian Kill Zone", Start: "00:00", End: "03:00", Multiplier: 1.1, Priority: 2,
			Description: "Азиатская сессия: формирование диапазона"},
		{Name: "London Kill Zone", Start: "07:00", End: "10:00", Multiplier: 1.4, Priority: 4,
			Description: "Открытие Лондона: снятие азиатской ликвидности"},
		{Name: "New York Kill Zone", Start: "12:00", End: "15:00", Multiplier: 1.3, Priority: 4,
			Description: "Открытие Нью-Йорка: пересечение с Лондоном"},
		{Name: "NY AM Silver Bullet", Start: "14:00", End: "15:00", Multiplier: 1.5, Priority: 5,
			Description: "Окно silver bullet утренней сессии Нью-Йорка"},
		{Name: "London Close", Start: "15:00", End: "17:00", Multiplier: 1.2, Priority: 3,
			Description: "Закрытие Лондона: фиксация и откаты"},
	}
}

// ParseClock разбирает время суток "HH:MM" в смещение от полуночи
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("неверное время %q, ожидается HH:MM: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// SessionWindows переводит конфигурацию сессий в модели
func (c *Config) SessionWindows() ([]models.SessionWindow, error) {
	windows := make([]models.SessionWindow, 0, len(c.Sessions.Windows))
	for _, w := range c.Sessions.Windows {
		start, err := ParseClock(w.Start)
		if err != nil {
			return nil, fmt.Errorf("сессия %q: %w", w.Name, err)
		}
		end, err := ParseClock(w.End)
		if err != nil {
			return nil, fmt.Errorf("сессия %q: %w", w.Name, err)
		}
		windows = append(windows, models.SessionWindow{
			Name:        w.Name,
			Start:       start,
			End:         end,
			Multiplier:  w.Multiplier,
			Priority:    w.Priority,
			Description: w.Description,
		})
	}
	return windows, nil
}

// SessionLocation возвращает временную зону сессий
func (c *Config) SessionLocation() *time.Location {
	loc, err := time.LoadLocation(c.Sessions.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
