// Package marketdata загружает историю свечей из CSV файлов
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/skalibog/ictpro/pkg/models"
)

// ErrMissingColumn возвращается, если в заголовке нет обязательной колонки
var ErrMissingColumn = errors.New("отсутствует колонка")

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var columnAliases = map[string][]string{
	"time":   {"timestamp", "time", "date", "datetime", "open_time"},
	"open":   {"open", "o"},
	"high":   {"high", "h"},
	"low":    {"low", "l"},
	"close":  {"close", "c", "adj_close"},
	"volume": {"volume", "vol", "v"},
}

// LoadCSV читает свечи из файла
func LoadCSV(path string) ([]models.Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла свечей: %w", err)
	}
	defer file.Close()

	candles, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return candles, nil
}

// ReadCSV читает свечи с заголовком. Колонка объема необязательна.
// Результат отсортирован по времени от старых к новым.
func ReadCSV(r io.Reader) ([]models.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, models.ErrEmptyCandles
		}
		return nil, fmt.Errorf("ошибка чтения заголовка: %w", err)
	}

	index, err := columns(header)
	if err != nil {
		return nil, err
	}

	var candles []models.Candle
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("строка %d: %w", line, err)
		}

		candle, err := parseRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("строка %d: %w", line, err)
		}
		candles = append(candles, candle)
	}

	if len(candles) == 0 {
		return nil, models.ErrEmptyCandles
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

func columns(header []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(h))] = i
	}

	index := make(map[string]int, len(columnAliases))
	for column, aliases := range columnAliases {
		for _, alias := range aliases {
			if pos, ok := positions[alias]; ok {
				index[column] = pos
				break
			}
		}
		if _, ok := index[column]; !ok && column != "volume" {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, column)
		}
	}
	return index, nil
}

func parseRow(row []string, index map[string]int) (models.Candle, error) {
	field := func(column string) (string, bool) {
		pos, ok := index[column]
		if !ok || pos >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[pos]), true
	}

	raw, _ := field("time")
	ts, err := ParseTime(raw)
	if err != nil {
		return models.Candle{}, err
	}

	candle := models.Candle{Timestamp: ts}
	targets := []struct {
		column string
		dst    *float64
	}{
		{"open", &candle.Open},
		{"high", &candle.High},
		{"low", &candle.Low},
		{"close", &candle.Close},
		{"volume", &candle.Volume},
	}
	for _, t := range targets {
		s, ok := field(t.column)
		if !ok || s == "" {
			if t.column == "volume" {
				continue
			}
			return models.Candle{}, fmt.Errorf("%w %q", ErrMissingColumn, t.column)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("колонка %s: %w", t.column, err)
		}
		*t.dst = v
	}

	return candle, nil
}

// ParseTime разбирает время свечи: RFC3339, дату с временем или unix секунды/миллисекунды
func ParseTime(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("неизвестный формат времени %q", s)
}
