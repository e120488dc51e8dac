package marketdata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skalibog/ictpro/pkg/models"
)

func TestReadCSV(t *testing.T) {
	data := `Date,Open,High,Low,Close,Volume
2024-01-03,102,104,101,103,1500
2024-01-01,100,101,99,100.5,1000
2024-01-02,100.5,103,100,102,1200
`
	candles, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("ожидалось 3 свечи, получено %d", len(candles))
	}
	if err := models.ValidateCandles(candles); err != nil {
		t.Errorf("свечи должны быть упорядочены: %v", err)
	}

	first := candles[0]
	if !first.Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || first.Close != 100.5 || first.Volume != 1000 {
		t.Errorf("неверная первая свеча: %+v", first)
	}
}

func TestReadCSVUnixAndNoVolume(t *testing.T) {
	data := "timestamp,o,h,l,c\n1704067200000,1,2,0.5,1.5\n1704070800,1.5,2,1,1.8\n"

	candles, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if !candles[0].Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("миллисекунды разобраны неверно: %s", candles[0].Timestamp)
	}
	if !candles[1].Timestamp.Equal(time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)) {
		t.Errorf("секунды разобраны неверно: %s", candles[1].Timestamp)
	}
	if candles[1].Volume != 0 {
		t.Errorf("объем без колонки должен быть 0: %v", candles[1].Volume)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"пустой файл", "", models.ErrEmptyCandles},
		{"только заголовок", "date,open,high,low,close\n", models.ErrEmptyCandles},
		{"нет колонки close", "date,open,high,low\n2024-01-01,1,2,0,\n", ErrMissingColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("ожидалась %v, получено %v", tt.want, err)
			}
		})
	}

	if _, err := ReadCSV(strings.NewReader("date,open,high,low,close\nвчера,1,2,0,1\n")); err == nil {
		t.Error("ожидалась ошибка разбора времени")
	}
	if _, err := ReadCSV(strings.NewReader("date,open,high,low,close\n2024-01-01,1,x,0,1\n")); err == nil {
		t.Error("ожидалась ошибка разбора числа")
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eurusd.csv")
	content := "time,open,high,low,close,volume\n2024-05-01 07:00:00,1.07,1.072,1.069,1.071,5000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	candles, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(candles) != 1 || candles[0].Timestamp.Hour() != 7 {
		t.Errorf("неверный результат: %+v", candles)
	}

	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ожидалась ошибка отсутствия файла, получено %v", err)
	}
}
