package domain

import (
	"errors"
	"testing"
	"time"
)

func baseConfig() RecurringSlotConfig {
	return RecurringSlotConfig{
		StartDate:       time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), // Monday
		EndDate:         time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		DayStart:        ClockTime{Hour: 9},
		DayEnd:          ClockTime{Hour: 10},
		Weekdays:        []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		DurationMinutes: 30,
	}
}

func TestGenerateSlots_Validation(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*RecurringSlotConfig)
	}{
		{
			name:   "zero duration",
			mutate: func(c *RecurringSlotConfig) { c.DurationMinutes = 0 },
		},
		{
			name:   "negative duration",
			mutate: func(c *RecurringSlotConfig) { c.DurationMinutes = -15 },
		},
		{
			name:   "day window inverted",
			mutate: func(c *RecurringSlotConfig) { c.DayStart, c.DayEnd = c.DayEnd, c.DayStart },
		},
		{
			name:   "day window empty",
			mutate: func(c *RecurringSlotConfig) { c.DayEnd = c.DayStart },
		},
		{
			name:   "date range inverted",
			mutate: func(c *RecurringSlotConfig) { c.StartDate, c.EndDate = c.EndDate, c.StartDate },
		},
		{
			name:   "no weekdays",
			mutate: func(c *RecurringSlotConfig) { c.Weekdays = nil },
		},
		{
			name:   "weekday out of range",
			mutate: func(c *RecurringSlotConfig) { c.Weekdays = []time.Weekday{time.Weekday(7)} },
		},
		{
			name:   "invalid clock value",
			mutate: func(c *RecurringSlotConfig) { c.DayStart = ClockTime{Hour: 24} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			_, _, err := GenerateSlots(cfg, now)
			if !errors.Is(err, ErrInvalidTimeRange) {
				t.Fatalf("error = %v, want ErrInvalidTimeRange", err)
			}
		})
	}
}

func TestGenerateSlots_WeekOfThirtyMinuteSlots(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	slots, rejected, err := GenerateSlots(baseConfig(), now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if rejected != 0 {
		t.Fatalf("rejected = %d, want 0", rejected)
	}
	if len(slots) != 10 {
		t.Fatalf("len(slots) = %d, want 10", len(slots))
	}

	for i, s := range slots {
		if !s.StartTime.Before(s.EndTime) {
			t.Fatalf("slot %d: start %v not before end %v", i, s.StartTime, s.EndTime)
		}
		if got := s.EndTime.Sub(s.StartTime); got != 30*time.Minute {
			t.Fatalf("slot %d: duration = %v, want 30m", i, got)
		}
		if i > 0 && slots[i-1].EndTime.After(s.StartTime) {
			t.Fatalf("slot %d overlaps previous: %v > %v", i, slots[i-1].EndTime, s.StartTime)
		}
	}

	first := slots[0]
	if !first.StartTime.Equal(time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("first start = %v, want 2025-01-06T09:00Z", first.StartTime)
	}
}

func TestGenerateSlots_Deterministic(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a, _, err := GenerateSlots(baseConfig(), now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	b, _, err := GenerateSlots(baseConfig(), now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].StartTime.Equal(b[i].StartTime) || !a[i].EndTime.Equal(b[i].EndTime) {
			t.Fatalf("slot %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerateSlots_DiscardsPartialTrailingSlot(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cfg := baseConfig()
	cfg.EndDate = cfg.StartDate
	cfg.Weekdays = []time.Weekday{time.Monday}
	cfg.DayEnd = ClockTime{Hour: 10, Minute: 15} // 75 minute window, 30 minute slots

	slots, _, err := GenerateSlots(cfg, now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("len(slots) = %d, want 2 (trailing 15m discarded)", len(slots))
	}
	last := slots[len(slots)-1]
	if !last.EndTime.Equal(time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("last end = %v, want 10:00", last.EndTime)
	}
}

func TestGenerateSlots_RejectsPastCandidates(t *testing.T) {
	// Generation time sits mid-window on the Monday: 09:00 and 09:30
	// candidates are already past, 10:00+ are kept.
	now := time.Date(2025, 1, 6, 9, 45, 0, 0, time.UTC)

	cfg := baseConfig()
	cfg.EndDate = cfg.StartDate
	cfg.Weekdays = []time.Weekday{time.Monday}
	cfg.DayEnd = ClockTime{Hour: 11}

	slots, rejected, err := GenerateSlots(cfg, now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if rejected != 2 {
		t.Fatalf("rejected = %d, want 2", rejected)
	}
	if len(slots) != 2 {
		t.Fatalf("len(slots) = %d, want 2", len(slots))
	}
	if !slots[0].StartTime.After(now) {
		t.Fatalf("first kept slot %v not after now %v", slots[0].StartTime, now)
	}
}

func TestGenerateSlots_SkipsUnselectedWeekdays(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cfg := baseConfig()
	cfg.EndDate = time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC) // through Sunday
	cfg.Weekdays = []time.Weekday{time.Saturday, time.Sunday}

	slots, _, err := GenerateSlots(cfg, now)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("len(slots) = %d, want 4", len(slots))
	}
	for _, s := range slots {
		wd := s.StartTime.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			t.Fatalf("slot on %v, want weekend only", wd)
		}
	}
}

func TestParseClockTime(t *testing.T) {
	c, err := ParseClockTime("09:30")
	if err != nil {
		t.Fatalf("ParseClockTime error: %v", err)
	}
	if c.Hour != 9 || c.Minute != 30 {
		t.Fatalf("parsed = %+v, want 09:30", c)
	}

	if _, err := ParseClockTime("9am"); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("error = %v, want ErrInvalidTimeRange", err)
	}
}
