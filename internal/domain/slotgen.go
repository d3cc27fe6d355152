package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrInvalidTimeRange = errors.New("invalid time range")

func invalidTimeRange(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidTimeRange, msg)
}

// ClockTime is a day-local wall-clock value.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "15:04" values.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, invalidTimeRange("clock value must be HH:MM")
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// RecurringSlotConfig describes a doctor's recurring availability:
// a date range, a daily window, the weekdays it applies to, and the
// slot length the window is partitioned into.
type RecurringSlotConfig struct {
	StartDate       time.Time // civil date, inclusive; time-of-day ignored
	EndDate         time.Time // civil date, inclusive
	DayStart        ClockTime
	DayEnd          ClockTime
	Weekdays        []time.Weekday // Sunday = 0
	DurationMinutes int
	Location        *time.Location // nil means UTC
}

func (cfg RecurringSlotConfig) validate() error {
	if cfg.DurationMinutes <= 0 {
		return invalidTimeRange("duration must be positive")
	}
	if !cfg.DayStart.valid() || !cfg.DayEnd.valid() {
		return invalidTimeRange("invalid clock value")
	}
	if cfg.DayStart.minutes() >= cfg.DayEnd.minutes() {
		return invalidTimeRange("day window end must be after start")
	}
	if cfg.StartDate.IsZero() || cfg.EndDate.IsZero() {
		return invalidTimeRange("start and end dates are required")
	}
	if len(cfg.Weekdays) == 0 {
		return invalidTimeRange("at least one weekday is required")
	}
	for _, wd := range cfg.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return invalidTimeRange("invalid weekday")
		}
	}
	return nil
}

// GenerateSlots expands cfg into discrete slot candidates. For each day
// in [StartDate, EndDate] whose weekday is selected, the daily window is
// partitioned into consecutive intervals of exactly DurationMinutes; a
// trailing remainder shorter than the duration is discarded. Candidates
// that do not start strictly after now are dropped and counted in
// rejected rather than failing the batch. Output is sorted, non
// overlapping, and deterministic for a fixed cfg and now.
func GenerateSlots(cfg RecurringSlotConfig, now time.Time) ([]SlotInput, int, error) {
	if err := cfg.validate(); err != nil {
		return nil, 0, err
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	startDay := civilDate(cfg.StartDate, loc)
	endDay := civilDate(cfg.EndDate, loc)
	if startDay.After(endDay) {
		return nil, 0, invalidTimeRange("end date must not be before start date")
	}

	wanted := make(map[time.Weekday]struct{}, len(cfg.Weekdays))
	for _, wd := range cfg.Weekdays {
		wanted[wd] = struct{}{}
	}

	duration := time.Duration(cfg.DurationMinutes) * time.Minute

	out := make([]SlotInput, 0, 16)
	rejected := 0

	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		if _, ok := wanted[day.Weekday()]; !ok {
			continue
		}

		cur := time.Date(day.Year(), day.Month(), day.Day(), cfg.DayStart.Hour, cfg.DayStart.Minute, 0, 0, loc)
		windowEnd := time.Date(day.Year(), day.Month(), day.Day(), cfg.DayEnd.Hour, cfg.DayEnd.Minute, 0, 0, loc)

		for {
			next := cur.Add(duration)
			if next.After(windowEnd) {
				break
			}
			if cur.After(now) {
				out = append(out, SlotInput{StartTime: cur.UTC(), EndTime: next.UTC()})
			} else {
				rejected++
			}
			cur = next
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })

	return out, rejected, nil
}

func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
