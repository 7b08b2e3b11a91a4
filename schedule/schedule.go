// Package schedule holds the booking clock rules: when an unanswered job
// expires, which hours count as night, and when deferred pushes go out.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultNightStartHour = 22
	DefaultNightEndHour   = 7
	// DefaultBusinessHours fires at 07:00 every day.
	DefaultBusinessHours = "0 0 7 * * *"
)

// Config configures a Calendar. Zero values fall back to the defaults.
type Config struct {
	Location       *time.Location
	NightStartHour int
	NightEndHour   int
	BusinessHours  string
}

// Calendar evaluates time rules in a fixed location.
type Calendar struct {
	loc        *time.Location
	nightStart int
	nightEnd   int
	business   cron.Schedule
}

func New(cfg Config) (*Calendar, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	start, end := cfg.NightStartHour, cfg.NightEndHour
	if start == 0 && end == 0 {
		start, end = DefaultNightStartHour, DefaultNightEndHour
	}
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return nil, fmt.Errorf("schedule: night hours out of range: %d-%d", start, end)
	}

	expr := cfg.BusinessHours
	if expr == "" {
		expr = DefaultBusinessHours
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour |
		cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	business, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid business hours expression: %w", err)
	}

	return &Calendar{loc: loc, nightStart: start, nightEnd: end, business: business}, nil
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// WillExpireAt is the instant an unanswered job stops being offered.
func (c *Calendar) WillExpireAt(due, reference time.Time) time.Time {
	return WillExpireAt(due, reference)
}

// WillExpireAt scales the answer window to the lead time between reference
// and due:
//   - within 90 minutes: at due
//   - within 24 hours: 90 minutes after reference
//   - within 72 hours: 16 hours after reference
//   - otherwise: 48 hours before due
func WillExpireAt(due, reference time.Time) time.Time {
	lead := due.Sub(reference)
	switch {
	case lead <= 90*time.Minute:
		return due
	case lead <= 24*time.Hour:
		return reference.Add(90 * time.Minute)
	case lead <= 72*time.Hour:
		return reference.Add(16 * time.Hour)
	default:
		return due.Add(-48 * time.Hour)
	}
}

// IsNightTime reports whether t falls inside the night window. The window may
// wrap midnight.
func (c *Calendar) IsNightTime(t time.Time) bool {
	h := t.In(c.loc).Hour()
	if c.nightStart == c.nightEnd {
		return false
	}
	if c.nightStart < c.nightEnd {
		return h >= c.nightStart && h < c.nightEnd
	}
	return h >= c.nightStart || h < c.nightEnd
}

// NextBusinessTime is the next business-hours trigger after t.
func (c *Calendar) NextBusinessTime(t time.Time) time.Time {
	return c.business.Next(t.In(c.loc))
}

// NextBusinessTimeString renders NextBusinessTime in the form push gateways
// accept for scheduled delivery.
func (c *Calendar) NextBusinessTimeString(t time.Time) string {
	return c.NextBusinessTime(t).Format("2006-01-02 15:04:05 GMT-0700")
}
