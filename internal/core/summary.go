package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// KeyedValue is an aggregate keyed by country code or device category.
type KeyedValue struct {
	Key   string
	Value decimal.Decimal
}

// GoalProgress is a compact monthly-goal summary for one metric.
type GoalProgress struct {
	Metric   Metric
	Goal     decimal.Decimal
	Current  decimal.Decimal
	Estimate decimal.Decimal
}

// Sum totals the values of a series.
func Sum(points []RawDataPoint) decimal.Decimal {
	total := decimal.Zero
	for _, p := range points {
		total = total.Add(p.Value)
	}
	return total
}

// Average is the mean daily value of a series, zero for an empty one.
func Average(points []RawDataPoint) decimal.Decimal {
	if len(points) == 0 {
		return decimal.Zero
	}
	return Sum(points).Div(decimal.NewFromInt(int64(len(points))))
}

// WeeklyAverage is the mean daily value over the trailing seven days.
func (s *Store) WeeklyAverage(m Metric, apps []App, opts QueryOptions) decimal.Decimal {
	return Average(s.RawData(m, 7, apps, opts))
}

// MonthlyGoal reports month-to-date progress toward a goal plus a
// month-end estimate. The current month is the month of the latest
// reporting date; the estimate projects the trailing 7-day average over
// the remaining days of that month.
func (s *Store) MonthlyGoal(m Metric, goal decimal.Decimal, opts QueryOptions) GoalProgress {
	progress := GoalProgress{Metric: m, Goal: goal, Current: decimal.Zero, Estimate: decimal.Zero}
	if s.IsEmpty() {
		return progress
	}

	latest := s.LatestReportingDate()
	elapsed := latest.Day()
	for _, p := range s.RawData(m, elapsed, nil, opts) {
		progress.Current = progress.Current.Add(p.Value)
	}

	daysInMonth := NewDate(latest.Year(), int(latest.Month()), 1).AddDate(0, 1, -1).Day()
	remaining := daysInMonth - elapsed
	perDay := Average(s.RawData(m, 7, nil, opts))
	progress.Estimate = progress.Current.Add(perDay.Mul(decimal.NewFromInt(int64(remaining))))
	return progress
}

// sortedByValue flattens a sum map into tuples ordered descending by
// value, ties broken by key for determinism.
func sortedByValue(sums map[string]decimal.Decimal) []KeyedValue {
	out := make([]KeyedValue, 0, len(sums))
	for k, v := range sums {
		out = append(out, KeyedValue{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Value.Equal(out[j].Value) {
			return out[i].Value.GreaterThan(out[j].Value)
		}
		return out[i].Key < out[j].Key
	})
	return out
}
