package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAbbreviate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"950", "950"},
		{"950.50", "950.5"},
		{"1200", "1.2K"},
		{"1000", "1K"},
		{"15300", "15.3K"},
		{"3400000", "3.4M"},
		{"2100000000", "2.1B"},
		{"-1500", "-1.5K"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Abbreviate(dec(tt.in), 2); got != tt.want {
				t.Errorf("Abbreviate(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAverage(t *testing.T) {
	t.Run("empty series", func(t *testing.T) {
		if got := Average(nil); !got.IsZero() {
			t.Errorf("Average(nil) = %s, want 0", got)
		}
	})

	t.Run("mean of values", func(t *testing.T) {
		points := []RawDataPoint{
			{Value: decimal.NewFromInt(3)},
			{Value: decimal.NewFromInt(5)},
		}
		if got := Average(points); !got.Equal(decimal.NewFromInt(4)) {
			t.Errorf("Average() = %s, want 4", got)
		}
	})
}

func TestMonthlyGoal(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		store := NewStore(nil, "USD", nil)
		got := store.MonthlyGoal(Downloads, decimal.NewFromInt(100), QueryOptions{})
		if !got.Current.IsZero() || !got.Estimate.IsZero() {
			t.Errorf("MonthlyGoal() = %+v, want zero progress", got)
		}
	})

	t.Run("projects trailing average over remaining days", func(t *testing.T) {
		// 10 downloads/day for the first 10 days of a 30-day month.
		var entries []Entry
		for i := 0; i < 10; i++ {
			entries = append(entries, entry(10, "0", NewDate(2026, 9, 10).AddDays(-i), Download))
		}
		store := NewStore(entries, "USD", nil)

		got := store.MonthlyGoal(Downloads, decimal.NewFromInt(300), QueryOptions{})
		if !got.Current.Equal(decimal.NewFromInt(100)) {
			t.Errorf("Current = %s, want 100", got.Current)
		}
		// 100 so far + 10/day over the 20 remaining September days.
		if !got.Estimate.Equal(decimal.NewFromInt(300)) {
			t.Errorf("Estimate = %s, want 300", got.Estimate)
		}
	})
}
