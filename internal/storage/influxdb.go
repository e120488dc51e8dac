// internal/storage/influxdb.go
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/skalibog/ictpro/internal/config"
	"github.com/skalibog/ictpro/pkg/models"
)

const (
	measurementAnalysis = "analysis"
	measurementAlerts   = "alerts"
)

// Storage журнал результатов анализа и состояния алертов
type Storage interface {
	SaveAnalysis(ctx context.Context, result models.AnalysisResult, plan models.TradePlan) error
	GetSignalHistory(ctx context.Context, symbol string, limit int) ([]SignalRecord, error)

	SaveAlert(ctx context.Context, rule models.AlertRule, event models.AlertEvent) error
	GetAlertStates(ctx context.Context) (map[string]AlertState, error)

	Close()
}

// SignalRecord запись журнала сигналов
type SignalRecord struct {
	Symbol        string
	Timestamp     time.Time
	Signal        models.Signal
	Trend         models.Trend
	Session       string
	Price         float64
	CombinedScore float64
	Confidence    float64
	RiskLevel     int
	StopLoss      float64
	TakeProfit    float64
}

// AlertState последнее сохраненное срабатывание правила
type AlertState struct {
	RuleID          string
	LastTriggeredAt time.Time
	TriggerCount    int
}

var _ Storage = (*InfluxDBStorage)(nil)

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(ctx context.Context, cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveAnalysis сохраняет результат анализа и план сделки
func (s *InfluxDBStorage) SaveAnalysis(ctx context.Context, result models.AnalysisResult, plan models.TradePlan) error {
	if err := s.writeAPI.WritePoint(ctx, analysisPoint(result, plan)); err != nil {
		return fmt.Errorf("ошибка записи анализа %s: %w", result.Snapshot.Symbol, err)
	}
	return nil
}

// GetSignalHistory получает историю сигналов, начиная с последнего
func (s *InfluxDBStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]SignalRecord, error) {
	query := historyQuery(s.bucket, symbol, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории сигналов: %w", err)
	}

	var records []SignalRecord
	for result.Next() {
		record := result.Record()

		signal, _ := record.ValueByKey("signal").(string)
		trend, _ := record.ValueByKey("trend").(string)
		session, _ := record.ValueByKey("session").(string)

		records = append(records, SignalRecord{
			Symbol:        symbol,
			Timestamp:     record.Time(),
			Signal:        models.Signal(signal),
			Trend:         models.Trend(trend),
			Session:       session,
			Price:         floatValue(record.ValueByKey("price")),
			CombinedScore: floatValue(record.ValueByKey("combined_score")),
			Confidence:    floatValue(record.ValueByKey("confidence")),
			RiskLevel:     int(floatValue(record.ValueByKey("risk_level"))),
			StopLoss:      floatValue(record.ValueByKey("stop_loss")),
			TakeProfit:    floatValue(record.ValueByKey("take_profit")),
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return records, nil
}

// SaveAlert сохраняет срабатывание правила вместе с его счетчиком
func (s *InfluxDBStorage) SaveAlert(ctx context.Context, rule models.AlertRule, event models.AlertEvent) error {
	if err := s.writeAPI.WritePoint(ctx, alertPoint(rule, event)); err != nil {
		return fmt.Errorf("ошибка записи алерта %s: %w", rule.ID, err)
	}
	return nil
}

// GetAlertStates возвращает последнее срабатывание каждого правила за 30 дней
func (s *InfluxDBStorage) GetAlertStates(ctx context.Context) (map[string]AlertState, error) {
	result, err := s.queryAPI.Query(ctx, alertStatesQuery(s.bucket))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса состояния алертов: %w", err)
	}

	states := make(map[string]AlertState)
	for result.Next() {
		record := result.Record()

		id, _ := record.ValueByKey("rule_id").(string)
		if id == "" {
			continue
		}
		states[id] = AlertState{
			RuleID:          id,
			LastTriggeredAt: record.Time(),
			TriggerCount:    int(floatValue(record.Value())),
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return states, nil
}

// RestoreAlertStates переносит сохраненные срабатывания в правила.
// Состояние из конфигурации остается, если оно свежее журнала.
func RestoreAlertStates(rules []models.AlertRule, states map[string]AlertState) []models.AlertRule {
	restored := make([]models.AlertRule, len(rules))
	copy(restored, rules)

	for i, rule := range restored {
		state, ok := states[rule.ID]
		if !ok || !state.LastTriggeredAt.After(rule.LastTriggeredAt) {
			continue
		}
		restored[i].LastTriggeredAt = state.LastTriggeredAt
		if state.TriggerCount > rule.TriggerCount {
			restored[i].TriggerCount = state.TriggerCount
		}
	}
	return restored
}

func alertPoint(rule models.AlertRule, event models.AlertEvent) *write.Point {
	return influxdb2.NewPoint(
		measurementAlerts,
		map[string]string{
			"rule_id": rule.ID,
			"symbol":  event.Symbol,
		},
		map[string]interface{}{
			"trigger_count": rule.TriggerCount,
			"message":       event.Message,
			"channels":      strings.Join(event.Channels, ","),
			"event_id":      event.ID,
		},
		event.TriggeredAt,
	)
}

func analysisPoint(result models.AnalysisResult, plan models.TradePlan) *write.Point {
	fields := map[string]interface{}{
		"signal":            string(result.Signal),
		"trend":             string(result.Trend),
		"session":           result.Session.Name,
		"price":             result.Snapshot.Price,
		"change24h":         result.Snapshot.PriceChange24h,
		"technical_score":   result.TechnicalScore,
		"fundamental_score": result.FundamentalScore,
		"combined_score":    result.CombinedScore,
		"confidence":        result.Confidence,
		"risk_level":        result.RiskLevel,
		"rsi":               result.Indicators.RSI,
		"macd":              result.Indicators.MACD,
	}
	for _, c := range result.Concepts {
		fields[conceptField(c.Concept)] = c.Score
	}
	if plan.Actionable {
		fields["entry"] = plan.EntryPrice
		fields["stop_loss"] = plan.StopLoss
		fields["take_profit"] = plan.TakeProfit
		fields["position_size"] = plan.PositionSize
	}

	ts := result.AnalyzedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return influxdb2.NewPoint(
		measurementAnalysis,
		map[string]string{
			"symbol": result.Snapshot.Symbol,
			"class":  string(result.Snapshot.Class),
		},
		fields,
		ts,
	)
}

// conceptField превращает имя концепции в имя поля: "Fair Value Gaps" -> "concept_fair_value_gaps"
func conceptField(c models.Concept) string {
	return "concept_" + strings.ReplaceAll(strings.ToLower(string(c)), " ", "_")
}

func historyQuery(bucket, symbol string, limit int) string {
	return fmt.Sprintf(`
		from(bucket: %s)
			|> range(start: -30d)
			|> filter(fn: (r) => r._measurement == %s)
			|> filter(fn: (r) => r.symbol == %s)
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, fluxString(bucket), fluxString(measurementAnalysis), fluxString(symbol), limit)
}

func alertStatesQuery(bucket string) string {
	return fmt.Sprintf(`
		from(bucket: %s)
			|> range(start: -30d)
			|> filter(fn: (r) => r._measurement == %s and r._field == "trigger_count")
			|> group(columns: ["rule_id"])
			|> last()
	`, fluxString(bucket), fluxString(measurementAlerts))
}

var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// fluxString оформляет значение как строковый литерал Flux
func fluxString(v string) string {
	return `"` + fluxEscaper.Replace(v) + `"`
}

func floatValue(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	}
	return 0
}
