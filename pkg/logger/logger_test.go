package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestDefaultLoggerIsNoop(t *testing.T) {
	// До Init вызовы не должны паниковать и ничего не пишут
	Info("ping", zap.String("k", "v"))
	Debug("ping")
	Warn("ping")
	Error("ping")
}

func TestInitWritesJSONFile(t *testing.T) {
	defer Set(nil)

	path := filepath.Join(t.TempDir(), "logs", "ictpro.log")
	if err := Init(Options{Level: "debug", File: path, MaxSizeMB: 1}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	Info("анализ завершен", zap.String("symbol", "BTCUSDT"))
	_ = GetLogger().Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("файл логов не создан: %v", err)
	}
	if !strings.Contains(string(data), `"symbol":"BTCUSDT"`) {
		t.Errorf("ожидалось поле symbol в JSON логе, получено: %s", data)
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init(Options{Level: "loud"}); err == nil {
		t.Fatal("ожидалась ошибка для неизвестного уровня")
	}
}
