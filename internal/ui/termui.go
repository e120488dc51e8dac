package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/skalibog/ictpro/internal/analysis/aggregator"
	"github.com/skalibog/ictpro/internal/analysis/backtest"
	"github.com/skalibog/ictpro/internal/analysis/correlation"
	"github.com/skalibog/ictpro/internal/storage"
	"github.com/skalibog/ictpro/pkg/models"
)

// Стили
var (
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Italic(true)
)

// RenderScan отрисовывает таблицу сигналов сканирования
func RenderScan(reports []aggregator.Report, at time.Time) string {
	title := titleStyle.Render("ICT PRO - анализ рынка")

	if len(reports) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, sectionStyle.Render("Нет данных для отображения"))
	}

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		res := r.Result
		rows = append(rows, []string{
			res.Snapshot.Symbol,
			string(res.Snapshot.Class),
			formatPrice(res.Snapshot.Price),
			fmt.Sprintf("%+.2f%%", res.Snapshot.PriceChange24h),
			fmt.Sprintf("%.1f", res.Indicators.RSI),
			fmt.Sprintf("%.1f", res.CombinedScore),
			string(res.Trend),
			string(res.Signal),
			fmt.Sprintf("%.0f%%", res.Confidence),
			fmt.Sprintf("%d/10", res.RiskLevel),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(secondaryColor)).
		Headers("Символ", "Класс", "Цена", "24ч", "RSI", "Оценка", "Тренд", "Сигнал", "Увер.", "Риск").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 7 && row >= 0 && row < len(rows) {
				return signalStyle(models.Signal(rows[row][col]))
			}
			return lipgloss.NewStyle()
		})

	footer := footerStyle.Render(fmt.Sprintf("Сессия: %s  Время: %s",
		reports[0].Result.Session.Name, at.UTC().Format(time.RFC3339)))

	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render(), renderPlans(reports), footer)
}

// renderPlans выводит исполняемые планы сделок
func renderPlans(reports []aggregator.Report) string {
	content := strings.Builder{}
	for _, r := range reports {
		p := r.Plan
		if !p.Actionable {
			continue
		}
		fmt.Fprintf(&content, "%s %s: вход %s, стоп %s (%.2f%%), цель %s (%.2f%%), RR %.1f, объем %g\n",
			signalStyle(r.Result.Signal).Render(string(r.Result.Signal)),
			r.Result.Snapshot.Symbol,
			formatPrice(p.EntryPrice),
			formatPrice(p.StopLoss), p.StopLossPct,
			formatPrice(p.TakeProfit), p.TakeProfitPct,
			p.RiskRewardRatio, p.PositionSize)
	}
	if content.Len() == 0 {
		return sectionStyle.Render("Планы сделок: нет исполняемых сигналов")
	}
	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("ПЛАНЫ СДЕЛОК"),
		strings.TrimRight(content.String(), "\n"),
	))
}

// RenderConcepts детализирует оценки концепций одного отчета
func RenderConcepts(r aggregator.Report) string {
	content := strings.Builder{}
	for _, c := range r.Result.Concepts {
		fmt.Fprintf(&content, "%-20s %5.1f / %.0f\n", c.Concept, c.Score, c.MaxWeight)
	}
	fmt.Fprintf(&content, "Техническая %.1f, фундаментальная %.1f", r.Result.TechnicalScore, r.Result.FundamentalScore)

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(r.Result.Snapshot.Symbol),
		content.String(),
	))
}

// RenderAlerts выводит сработавшие алерты
func RenderAlerts(events []models.AlertEvent) string {
	if len(events) == 0 {
		return ""
	}
	content := strings.Builder{}
	for _, e := range events {
		line := fmt.Sprintf("[%s] %s -> %s", e.TriggeredAt.UTC().Format("15:04"), e.Message, strings.Join(e.Channels, ","))
		content.WriteString(lipgloss.NewStyle().Foreground(warningColor).Render(line) + "\n")
	}
	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("АЛЕРТЫ"),
		strings.TrimRight(content.String(), "\n"),
	))
}

// RenderSession выводит текущую и следующую сессии
func RenderSession(current models.SessionWindow, next models.SessionWindow, nextStart time.Time, hasNext bool, catalogue []models.SessionWindow) string {
	content := strings.Builder{}

	state := "вне сессий"
	if current.Active {
		state = lipgloss.NewStyle().Foreground(successColor).Render("активна")
	}
	fmt.Fprintf(&content, "Текущая: %s (%s), множитель %.2f, приоритет %d\n",
		current.Name, state, current.Multiplier, current.Priority)
	if hasNext {
		fmt.Fprintf(&content, "Следующая: %s в %s\n", next.Name, nextStart.Format("2006-01-02 15:04 MST"))
	}

	content.WriteString("\n")
	for _, w := range catalogue {
		fmt.Fprintf(&content, "%-22s %s-%s  x%.2f  p%d\n", w.Name, clock(w.Start), clock(w.End), w.Multiplier, w.Priority)
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("СЕССИИ"),
		strings.TrimRight(content.String(), "\n"),
	))
}

// RenderCorrelation выводит корреляции пар
func RenderCorrelation(pairs []correlation.Pair) string {
	if len(pairs) == 0 {
		return sectionStyle.Render("Недостаточно общей истории для корреляции")
	}

	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p.A, p.B, fmt.Sprintf("%+.3f", p.Coefficient), fmt.Sprintf("%d", p.Samples)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(secondaryColor)).
		Headers("A", "B", "Корреляция", "Доходностей").
		Rows(rows...)

	return t.Render()
}

// RenderBacktest выводит итог прогона по истории
func RenderBacktest(res backtest.Result) string {
	content := strings.Builder{}
	fmt.Fprintf(&content, "Баров: %d, сделок: %d, прибыльных: %d (%.1f%%)\n",
		res.Bars, len(res.Trades), res.Wins, res.WinRate)
	fmt.Fprintf(&content, "Доходность: %+.2f%%, макс. просадка: %.2f%%\n", res.TotalReturnPct, res.MaxDrawdownPct)

	for _, t := range res.Trades {
		style := lipgloss.NewStyle().Foreground(successColor)
		if t.ReturnPct < 0 {
			style = lipgloss.NewStyle().Foreground(errorColor)
		}
		content.WriteString(style.Render(fmt.Sprintf("%s %-7s %s -> %s  %s @ %s  %+.2f%% (%s)",
			t.EntryTime.Format("2006-01-02"), t.Direction, formatPrice(t.EntryPrice),
			formatPrice(t.ExitPrice), t.Reason, t.ExitTime.Format("2006-01-02"), t.ReturnPct, t.Signal)) + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("БЭКТЕСТ "+res.Symbol),
		strings.TrimRight(content.String(), "\n"),
	))
}

// RenderHistory выводит журнал сигналов
func RenderHistory(symbol string, records []storage.SignalRecord) string {
	if len(records) == 0 {
		return sectionStyle.Render(fmt.Sprintf("История сигналов %s пуста", symbol))
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Timestamp.UTC().Format("2006-01-02 15:04"),
			string(r.Signal),
			string(r.Trend),
			formatPrice(r.Price),
			fmt.Sprintf("%.1f", r.CombinedScore),
			r.Session,
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(secondaryColor)).
		Headers("Время", "Сигнал", "Тренд", "Цена", "Оценка", "Сессия").
		Rows(rows...).
		Render()
}

func signalStyle(signal models.Signal) lipgloss.Style {
	switch signal {
	case models.SignalStrongBuy:
		return lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case models.SignalBuy:
		return lipgloss.NewStyle().Foreground(successColor)
	case models.SignalStrongSell:
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	case models.SignalSell:
		return lipgloss.NewStyle().Foreground(errorColor)
	default:
		return lipgloss.NewStyle().Foreground(warningColor)
	}
}

func formatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.6f", p)
	}
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
