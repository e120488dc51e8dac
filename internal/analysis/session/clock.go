// Package session классифицирует время суток по торговым сессиям (kill zones).
package session

import (
	"time"

	"github.com/skalibog/ictpro/pkg/models"
)

const day = 24 * time.Hour

// OffHours окно по умолчанию, когда ни одна сессия не активна
var OffHours = models.SessionWindow{
	Name:        "Off Hours",
	Start:       0,
	End:         0,
	Multiplier:  1.0,
	Priority:    0,
	Active:      false,
	Description: "Вне kill zone: обычная активность рынка",
}

// Clock сопоставляет время с каталогом сессий
type Clock struct {
	windows  []models.SessionWindow
	location *time.Location
}

// NewClock создает часы сессий. Окна интерпретируются во временной зоне loc (nil - UTC).
func NewClock(windows []models.SessionWindow, loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	ws := make([]models.SessionWindow, len(windows))
	copy(ws, windows)
	return &Clock{windows: ws, location: loc}
}

// Windows возвращает копию каталога
func (c *Clock) Windows() []models.SessionWindow {
	ws := make([]models.SessionWindow, len(c.windows))
	copy(ws, c.windows)
	return ws
}

// Classify возвращает единственное окно, содержащее t. При пересечении выигрывает
// больший приоритет, при равном приоритете - окно, стоящее раньше в каталоге.
func (c *Clock) Classify(t time.Time) models.SessionWindow {
	offset := sinceMidnight(t.In(c.location))

	best := -1
	for i, w := range c.windows {
		if !contains(w, offset) {
			continue
		}
		if best < 0 || w.Priority > c.windows[best].Priority {
			best = i
		}
	}

	if best < 0 {
		return OffHours
	}

	w := c.windows[best]
	w.Active = true
	return w
}

// Next возвращает ближайшее окно, начинающееся строго после t, и момент его начала
func (c *Clock) Next(t time.Time) (models.SessionWindow, time.Time, bool) {
	if len(c.windows) == 0 {
		return OffHours, time.Time{}, false
	}

	local := t.In(c.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.location)

	var (
		next   models.SessionWindow
		nextAt time.Time
		found  bool
	)
	for _, w := range c.windows {
		start := midnight.Add(w.Start)
		if !start.After(local) {
			start = midnight.AddDate(0, 0, 1).Add(w.Start)
		}
		if !found || start.Before(nextAt) || (start.Equal(nextAt) && w.Priority > next.Priority) {
			next, nextAt, found = w, start, true
		}
	}
	next.Active = false
	return next, nextAt, found
}

// contains проверяет [start, end); окна с start > end переходят через полночь,
// start == end означает весь день
func contains(w models.SessionWindow, offset time.Duration) bool {
	start, end := w.Start%day, w.End%day
	switch {
	case start == end:
		return true
	case start < end:
		return offset >= start && offset < end
	default:
		return offset >= start || offset < end
	}
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
