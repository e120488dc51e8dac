package alerts

import (
	"reflect"
	"testing"
	"time"

	"github.com/skalibog/ictpro/pkg/models"
)

var now = time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)

func sample() models.AnalysisResult {
	return models.AnalysisResult{
		CombinedScore: 82,
		Confidence:    74,
		RiskLevel:     6,
		Snapshot:      models.AssetSnapshot{Symbol: "BTCUSDT", Price: 65000.004, Volume: 1200},
		Indicators:    models.IndicatorSnapshot{RSI: 71.5, MACD: 12, EMA50: 64000},
	}
}

func rule(conds ...models.AlertCondition) models.AlertRule {
	return models.AlertRule{
		ID:              "r1",
		Symbol:          "BTCUSDT",
		Conditions:      conds,
		Channels:        []string{"telegram"},
		CooldownMinutes: 60,
		Active:          true,
	}
}

func TestEvaluateFires(t *testing.T) {
	r := rule(
		models.AlertCondition{Metric: MetricRSI, Comparator: models.Greater, Threshold: 70},
		models.AlertCondition{Metric: MetricCombinedScore, Comparator: models.GreaterOrEqual, Threshold: 82},
	)

	ev := NewEvaluator(DefaultTolerance).Evaluate(r, sample(), now)
	if !ev.Fired || ev.Event == nil {
		t.Fatalf("правило должно сработать: %+v", ev)
	}
	if !ev.Rule.LastTriggeredAt.Equal(now) || ev.Rule.TriggerCount != 1 {
		t.Errorf("состояние правила не обновлено: %+v", ev.Rule)
	}
	if ev.Event.ID == "" || ev.Event.RuleID != "r1" || ev.Event.Symbol != "BTCUSDT" {
		t.Errorf("неверное событие: %+v", ev.Event)
	}
	if ev.Event.Values[MetricRSI] != 71.5 {
		t.Errorf("значения метрик не сохранены: %v", ev.Event.Values)
	}
	if !r.LastTriggeredAt.IsZero() || r.TriggerCount != 0 {
		t.Error("входное правило изменено")
	}
}

func TestEvaluateRequiresAllConditions(t *testing.T) {
	r := rule(
		models.AlertCondition{Metric: MetricRSI, Comparator: models.Greater, Threshold: 70},
		models.AlertCondition{Metric: MetricVolume, Comparator: models.Less, Threshold: 1000},
	)

	if ev := NewEvaluator(DefaultTolerance).Evaluate(r, sample(), now); ev.Fired {
		t.Error("правило не должно срабатывать, если одно из условий ложно")
	}
}

func TestEvaluateCooldown(t *testing.T) {
	e := NewEvaluator(DefaultTolerance)
	r := rule(models.AlertCondition{Metric: MetricRSI, Comparator: models.GreaterOrEqual, Threshold: 50})

	first := e.Evaluate(r, sample(), now)
	if !first.Fired {
		t.Fatal("первое срабатывание ожидалось")
	}

	second := e.Evaluate(first.Rule, sample(), now.Add(59*time.Minute))
	if second.Fired {
		t.Error("правило сработало внутри периода охлаждения")
	}
	if second.Rule.TriggerCount != 1 {
		t.Errorf("счетчик не должен меняться: %d", second.Rule.TriggerCount)
	}

	third := e.Evaluate(first.Rule, sample(), now.Add(60*time.Minute))
	if !third.Fired || third.Rule.TriggerCount != 2 {
		t.Errorf("после охлаждения правило должно сработать снова: %+v", third.Rule)
	}
}

func TestEvaluateInactiveAndEmpty(t *testing.T) {
	e := NewEvaluator(DefaultTolerance)

	inactive := rule(models.AlertCondition{Metric: MetricRSI, Comparator: models.Greater, Threshold: 0})
	inactive.Active = false
	if ev := e.Evaluate(inactive, sample(), now); ev.Fired {
		t.Error("неактивное правило сработало")
	}

	if ev := e.Evaluate(rule(), sample(), now); ev.Fired {
		t.Error("правило без условий сработало")
	}
}

func TestComparators(t *testing.T) {
	tests := []struct {
		metric    string
		cmp       models.Comparator
		threshold float64
		want      bool
	}{
		{MetricPrice, models.Approx, 65000, true},
		{MetricPrice, "~=", 65000.01, true},
		{MetricPrice, "approx", 65000.02, false},
		{MetricRiskLevel, models.LessOrEqual, 6, true},
		{MetricRiskLevel, models.Less, 6, false},
		{MetricEMA50, models.Greater, 64000, false},
		{MetricEMA50, models.GreaterOrEqual, 64000, true},
		{MetricConfidence, "≥", 74, true},
		{"Confidence", models.Less, 75, true},
		{"open_interest", models.Greater, 0, false},
		{MetricRSI, "!=", 0, false},
	}

	e := NewEvaluator(DefaultTolerance)
	for _, tt := range tests {
		r := rule(models.AlertCondition{Metric: tt.metric, Comparator: tt.cmp, Threshold: tt.threshold})
		if got := e.Evaluate(r, sample(), now).Fired; got != tt.want {
			t.Errorf("%s %s %v: Fired = %v, ожидалось %v", tt.metric, tt.cmp, tt.threshold, got, tt.want)
		}
	}
}

func TestEvaluateAll(t *testing.T) {
	eth := sample()
	eth.Snapshot.Symbol = "ETHUSDT"
	eth.Indicators.RSI = 40

	rules := []models.AlertRule{
		rule(models.AlertCondition{Metric: MetricRSI, Comparator: models.Greater, Threshold: 70}),
		{ID: "r2", Symbol: "ethusdt", Active: true, Conditions: []models.AlertCondition{{Metric: MetricRSI, Comparator: models.Greater, Threshold: 70}}},
		{ID: "r3", Symbol: "SOLUSDT", Active: true, Conditions: []models.AlertCondition{{Metric: MetricRSI, Comparator: models.Greater, Threshold: 0}}},
	}

	evals := NewEvaluator(0).EvaluateAll(rules, []models.AnalysisResult{sample(), eth}, now)
	if len(evals) != len(rules) {
		t.Fatalf("ожидалось %d результатов, получено %d", len(rules), len(evals))
	}

	fired := []bool{evals[0].Fired, evals[1].Fired, evals[2].Fired}
	if !reflect.DeepEqual(fired, []bool{true, false, false}) {
		t.Errorf("срабатывания = %v", fired)
	}

	events := Fired(evals)
	if len(events) != 1 || events[0].Symbol != "BTCUSDT" {
		t.Errorf("Fired() = %+v", events)
	}
}
