package domain

import (
	"testing"
	"time"
)

func TestJoinPolicy_Decide(t *testing.T) {
	slotStart := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	policy := JoinPolicy{Window: 5 * time.Minute}

	tests := []struct {
		name        string
		now         time.Time
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "exactly at start",
			now:         slotStart,
			wantAllowed: true,
		},
		{
			name:        "at window lower edge",
			now:         slotStart.Add(-5 * time.Minute),
			wantAllowed: true,
		},
		{
			name:        "at window upper edge",
			now:         slotStart.Add(5 * time.Minute),
			wantAllowed: true,
		},
		{
			name:       "one second too early",
			now:        slotStart.Add(-5*time.Minute - time.Second),
			wantReason: "consultation starts in 6 minutes",
		},
		{
			name:       "half an hour early",
			now:        slotStart.Add(-30 * time.Minute),
			wantReason: "consultation starts in 30 minutes",
		},
		{
			name:       "one second past the window",
			now:        slotStart.Add(5*time.Minute + time.Second),
			wantReason: "consultation has ended",
		},
		{
			name:       "long after",
			now:        slotStart.Add(2 * time.Hour),
			wantReason: "consultation has ended",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.Decide(tt.now, slotStart)
			if d.Allowed != tt.wantAllowed {
				t.Fatalf("allowed = %v, want %v", d.Allowed, tt.wantAllowed)
			}
			if d.Reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", d.Reason, tt.wantReason)
			}
			if want := slotStart.Sub(tt.now); d.UntilStart != want {
				t.Fatalf("untilStart = %v, want %v", d.UntilStart, want)
			}
		})
	}
}

func TestJoinPolicy_ZeroWindowUsesDefault(t *testing.T) {
	slotStart := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	d := JoinPolicy{}.Decide(slotStart.Add(-4*time.Minute), slotStart)
	if !d.Allowed {
		t.Fatalf("expected default 5 minute window to allow joining 4 minutes early")
	}
}

func TestCeilMinutes(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{time.Minute, 1},
		{time.Minute + time.Second, 2},
		{10 * time.Minute, 10},
		{9*time.Minute + 59*time.Second, 10},
	}
	for _, tt := range tests {
		if got := ceilMinutes(tt.d); got != tt.want {
			t.Fatalf("ceilMinutes(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}
