package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skalibog/ictpro/pkg/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
watchlist:
  - symbol: RELIANCE.NS
    class: stock
    candles: data/reliance.csv
    fundamentals:
      pe: 24
      roe: 9.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Analysis.Technical.RSIPeriod != 14 {
		t.Errorf("rsi_period: ожидалось 14, получено %d", cfg.Analysis.Technical.RSIPeriod)
	}
	if cfg.Analysis.Structure.MaxOrderBlocks != 5 || cfg.Analysis.Structure.MaxGaps != 5 {
		t.Errorf("лимиты паттернов по умолчанию должны быть 5, получено %+v", cfg.Analysis.Structure)
	}
	if cfg.Trading.RiskPerTrade != 0.01 || cfg.Trading.AccountSize != 10000 {
		t.Errorf("неожиданные параметры риска: %+v", cfg.Trading)
	}
	if len(cfg.Sessions.Windows) != len(DefaultSessions()) {
		t.Errorf("ожидался каталог сессий по умолчанию, получено %d окон", len(cfg.Sessions.Windows))
	}
	if got := cfg.Watchlist[0].Fundamentals["pe"]; got != 24 {
		t.Errorf("pe: ожидалось 24, получено %v", got)
	}
}

func TestLoadRejectsInvalidAssetClass(t *testing.T) {
	path := writeConfig(t, `
watchlist:
  - symbol: GOLD
    class: commodity
`)

	_, err := Load(path)
	if !errors.Is(err, models.ErrInvalidAssetClass) {
		t.Fatalf("ожидалась ErrInvalidAssetClass, получено %v", err)
	}
}

func TestLoadRejectsBadSessionClock(t *testing.T) {
	path := writeConfig(t, `
sessions:
  windows:
    - name: broken
      start: "25:00"
      end: "26:00"
      multiplier: 1.0
`)

	if _, err := Load(path); err == nil {
		t.Fatal("ожидалась ошибка для неверного времени сессии")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("ожидалась ошибка для отсутствующего файла")
	}
}

func TestSessionWindows(t *testing.T) {
	cfg := Default()
	cfg.Sessions.Windows = []SessionConfig{
		{Name: "Late", Start: "22:30", End: "01:15", Multiplier: 1.2, Priority: 3},
	}

	windows, err := cfg.SessionWindows()
	if err != nil {
		t.Fatalf("SessionWindows: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("ожидалось 1 окно, получено %d", len(windows))
	}
	w := windows[0]
	if w.Start != 22*time.Hour+30*time.Minute || w.End != time.Hour+15*time.Minute {
		t.Errorf("неверные границы окна: %v - %v", w.Start, w.End)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00", 0, false},
		{"07:30", 7*time.Hour + 30*time.Minute, false},
		{" 23:59 ", 23*time.Hour + 59*time.Minute, false},
		{"7", 0, true},
		{"24:00", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %v, ожидалось %v", tt.in, got, tt.want)
		}
	}
}

func TestAlertRuleIDs(t *testing.T) {
	path := writeConfig(t, `alerts:
  rules:
    - id: rsi-hot
      symbol: BTC
    - symbol: ETH
    - symbol: SOL
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rules := cfg.Alerts.Rules
	if rules[0].ID != "rsi-hot" {
		t.Errorf("заданный id перезаписан: %q", rules[0].ID)
	}
	if rules[1].ID == "" || rules[2].ID == "" || rules[1].ID == rules[2].ID {
		t.Errorf("правила без id должны получить уникальные id: %q, %q", rules[1].ID, rules[2].ID)
	}
}
