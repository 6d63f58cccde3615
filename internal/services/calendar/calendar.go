// Package calendar answers weekend, payday and special-date questions for a
// configured retail calendar. Day-of-week numbering is Monday=0 .. Sunday=6.
package calendar

import (
	"time"

	"MarketPulse/pkg/config"
)

type Calendar struct {
	weekend          [7]bool
	paydays          []config.DayRange
	paydayMultiplier float64
	special          map[string]float64
}

func New(cfg config.CalendarConfig) *Calendar {
	c := &Calendar{
		paydays:          cfg.PaydayRanges,
		paydayMultiplier: cfg.PaydayMultiplier,
		special:          cfg.SpecialDates,
	}
	for _, d := range cfg.WeekendDays {
		if d >= 0 && d < 7 {
			c.weekend[d] = true
		}
	}
	if c.paydayMultiplier <= 0 {
		c.paydayMultiplier = 1
	}
	return c
}

// Weekday converts time.Weekday (Sunday=0) to Monday=0 numbering.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func (c *Calendar) IsWeekendDay(dow int) bool {
	return dow >= 0 && dow < 7 && c.weekend[dow]
}

func (c *Calendar) IsWeekend(t time.Time) bool {
	return c.weekend[Weekday(t)]
}

// IsPayday reports whether day-of-month falls into any payday range.
func (c *Calendar) IsPayday(t time.Time) bool {
	dom := t.Day()
	for _, r := range c.paydays {
		if dom >= r.From && dom <= r.To {
			return true
		}
	}
	return false
}

func (c *Calendar) PaydayFactor(t time.Time) float64 {
	if c.IsPayday(t) {
		return c.paydayMultiplier
	}
	return 1
}

func (c *Calendar) PaydayMultiplier() float64 { return c.paydayMultiplier }

// SpecialFactor returns the configured boost for the date's MM-DD, or 1.
func (c *Calendar) SpecialFactor(t time.Time) float64 {
	if len(c.special) == 0 {
		return 1
	}
	if f, ok := c.special[t.Format("01-02")]; ok && f > 0 {
		return f
	}
	return 1
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
