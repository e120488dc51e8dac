package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/skalibog/ictpro/pkg/models"
)

func TestAnalysisPoint(t *testing.T) {
	at := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)
	result := models.AnalysisResult{
		CombinedScore: 78.3,
		Signal:        models.SignalBuy,
		Trend:         models.TrendBullish,
		RiskLevel:     10,
		Concepts:      []models.ConceptScore{{Concept: models.ConceptFairValueGaps, Score: 90, MaxWeight: 90}},
		Snapshot:      models.AssetSnapshot{Symbol: "AAPL", Class: models.Stock, Price: 130},
		Session:       models.SessionWindow{Name: "London"},
		AnalyzedAt:    at,
	}
	plan := models.TradePlan{Actionable: true, StopLoss: 128.7, TakeProfit: 131.95}

	p := analysisPoint(result, plan)

	if p.Name() != measurementAnalysis {
		t.Errorf("измерение = %q", p.Name())
	}
	if !p.Time().Equal(at) {
		t.Errorf("время точки = %s", p.Time())
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["symbol"] != "AAPL" || tags["class"] != "Stock" {
		t.Errorf("теги = %v", tags)
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["signal"] != "BUY" || fields["session"] != "London" {
		t.Errorf("строковые поля = %v", fields)
	}
	if fields["concept_fair_value_gaps"] != 90.0 {
		t.Errorf("поле концепции = %v", fields["concept_fair_value_gaps"])
	}
	if fields["stop_loss"] != 128.7 {
		t.Errorf("stop_loss = %v", fields["stop_loss"])
	}
}

func TestAnalysisPointSkipsPlanWhenNotActionable(t *testing.T) {
	p := analysisPoint(models.AnalysisResult{Signal: models.SignalWait}, models.TradePlan{})
	for _, f := range p.FieldList() {
		if f.Key == "stop_loss" || f.Key == "entry" {
			t.Errorf("поле %s не должно записываться для неисполняемого плана", f.Key)
		}
	}
}

func TestQueries(t *testing.T) {
	q := historyQuery("ictpro", "BTCUSDT", 10)
	for _, want := range []string{`from(bucket: "ictpro")`, `r._measurement == "analysis"`, `r.symbol == "BTCUSDT"`, `limit(n: 10)`} {
		if !strings.Contains(q, want) {
			t.Errorf("запрос истории не содержит %s:\n%s", want, q)
		}
	}

	q = alertStatesQuery("ictpro")
	for _, want := range []string{`r._measurement == "alerts"`, `group(columns: ["rule_id"])`, `last()`} {
		if !strings.Contains(q, want) {
			t.Errorf("запрос алертов не содержит %s:\n%s", want, q)
		}
	}
}

func TestQueryEscapesSymbol(t *testing.T) {
	q := historyQuery("ictpro", `BTC") |> drop(columns: ["_value"]) //`, 5)
	if !strings.Contains(q, `r.symbol == "BTC\") |> drop(columns: [\"_value\"]) //")`) {
		t.Errorf("символ не экранирован:\n%s", q)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"EURUSD", `"EURUSD"`},
		{`a\b`, `"a\\b"`},
		{"${x}", `"\${x}"`},
		{"a\nb", `"a\nb"`},
	}
	for _, tt := range tests {
		if got := fluxString(tt.in); got != tt.want {
			t.Errorf("fluxString(%q) = %s, ожидалось %s", tt.in, got, tt.want)
		}
	}
}

func TestAlertPoint(t *testing.T) {
	at := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	rule := models.AlertRule{ID: "btc-strong", TriggerCount: 3}
	event := models.AlertEvent{ID: "e1", Symbol: "BTCUSDT", Channels: []string{"telegram", "email"}, TriggeredAt: at}

	p := alertPoint(rule, event)
	if p.Name() != measurementAlerts || !p.Time().Equal(at) {
		t.Errorf("точка алерта: %s в %s", p.Name(), p.Time())
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["trigger_count"] != int64(3) || fields["channels"] != "telegram,email" {
		t.Errorf("поля алерта = %v", fields)
	}
}

func TestRestoreAlertStates(t *testing.T) {
	old := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)

	rules := []models.AlertRule{
		{ID: "a"},
		{ID: "b", LastTriggeredAt: recent, TriggerCount: 9},
		{ID: "c"},
	}
	states := map[string]AlertState{
		"a": {RuleID: "a", LastTriggeredAt: recent, TriggerCount: 2},
		"b": {RuleID: "b", LastTriggeredAt: old, TriggerCount: 4},
	}

	got := RestoreAlertStates(rules, states)
	if !got[0].LastTriggeredAt.Equal(recent) || got[0].TriggerCount != 2 {
		t.Errorf("правило a не восстановлено: %+v", got[0])
	}
	if !got[1].LastTriggeredAt.Equal(recent) || got[1].TriggerCount != 9 {
		t.Errorf("более свежее состояние правила b перезаписано: %+v", got[1])
	}
	if !got[2].LastTriggeredAt.IsZero() {
		t.Errorf("правило c без журнала изменено: %+v", got[2])
	}
	if !rules[0].LastTriggeredAt.IsZero() {
		t.Error("исходные правила не должны меняться")
	}
}

func TestFloatValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
	}{
		{1.5, 1.5},
		{int64(7), 7},
		{uint64(3), 3},
		{"x", 0},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := floatValue(tt.in); got != tt.want {
			t.Errorf("floatValue(%v) = %v, ожидалось %v", tt.in, got, tt.want)
		}
	}
}
