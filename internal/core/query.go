package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	Downloads   Metric = "downloads"
	Proceeds    Metric = "proceeds"
	Updates     Metric = "updates"
	Purchases   Metric = "iap"
	ReDownloads Metric = "redownloads"
	RestoredPurchases Metric = "restored-iap"
)

// Metric identifies a derived series the engine can produce.
type Metric string

// Metrics lists every metric kind in display order.
func Metrics() []Metric {
	return []Metric{Downloads, Proceeds, Updates, Purchases, ReDownloads, RestoredPurchases}
}

func (m Metric) Validate() error {
	if _, ok := metricSpecs[m]; !ok {
		return ErrInvalidMetric
	}
	return nil
}

// QueryOptions are external configuration inputs consumed by the engine.
type QueryOptions struct {
	// IncludeRedownloads folds re-downloads into the downloads metric.
	IncludeRedownloads bool
}

// metricSpec centralizes per-metric filtering and reduction so the
// grouping logic lives in one place instead of per call site.
type metricSpec struct {
	match  func(Entry, QueryOptions) bool
	reduce func(Entry) decimal.Decimal
}

func unitsOf(e Entry) decimal.Decimal {
	return decimal.NewFromInt(int64(e.Units))
}

func proceedsOf(e Entry) decimal.Decimal {
	return e.Proceeds.Mul(decimal.NewFromInt(int64(e.Units)))
}

var metricSpecs = map[Metric]metricSpec{
	Downloads: {
		match: func(e Entry, opts QueryOptions) bool {
			if opts.IncludeRedownloads {
				return e.Type == Download || e.Type == ReDownload
			}
			return e.Type == Download
		},
		reduce: unitsOf,
	},
	Proceeds: {
		match: func(e Entry, _ QueryOptions) bool {
			return e.Proceeds.IsPositive()
		},
		reduce: proceedsOf,
	},
	Updates: {
		match: func(e Entry, _ QueryOptions) bool { return e.Type == Update },
		reduce: unitsOf,
	},
	Purchases: {
		match: func(e Entry, _ QueryOptions) bool { return e.Type == IAP },
		reduce: unitsOf,
	},
	ReDownloads: {
		match: func(e Entry, _ QueryOptions) bool { return e.Type == ReDownload },
		reduce: unitsOf,
	},
	RestoredPurchases: {
		match: func(e Entry, _ QueryOptions) bool { return e.Type == RestoredIAP },
		reduce: unitsOf,
	},
}

// EntriesForMetric restricts the store to the trailing lastNDays calendar
// days ending at the latest reporting date, optionally to the given apps,
// then filters by the metric's transaction kind.
func (s *Store) EntriesForMetric(m Metric, lastNDays int, apps []App, opts QueryOptions) []Entry {
	spec, ok := metricSpecs[m]
	if !ok {
		return nil
	}
	entries := filterApps(s.lastDays(s.entries, lastNDays), apps)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if spec.match(e, opts) {
			out = append(out, e)
		}
	}
	return out
}

// RawData groups the filtered entries by day and reduces them to one point
// per calendar day in the window, zero-filling days with no matching
// entries. The result always has exactly lastNDays points, newest first.
func (s *Store) RawData(m Metric, lastNDays int, apps []App, opts QueryOptions) []RawDataPoint {
	if lastNDays <= 0 {
		return nil
	}
	spec, ok := metricSpecs[m]
	if !ok {
		return nil
	}

	sums := make(map[Date]decimal.Decimal)
	for _, e := range s.EntriesForMetric(m, lastNDays, apps, opts) {
		sums[e.Date] = sums[e.Date].Add(spec.reduce(e))
	}

	latest := s.LatestReportingDate()
	points := make([]RawDataPoint, 0, lastNDays)
	for i := 0; i < lastNDays; i++ {
		day := latest.AddDays(-i)
		points = append(points, RawDataPoint{Value: sums[day], Date: day})
	}
	return points
}

// LastRawData is the single most recent day's aggregate. For an empty
// store it falls back to a zero value at the current instant rather than
// failing.
func (s *Store) LastRawData(m Metric, apps []App, opts QueryOptions) RawDataPoint {
	if s.IsEmpty() {
		return RawDataPoint{Value: decimal.Zero, Date: DateOf(time.Now())}
	}
	points := s.RawData(m, 1, apps, opts)
	if len(points) == 0 {
		return RawDataPoint{Value: decimal.Zero, Date: DateOf(time.Now())}
	}
	return points[0]
}

// Countries aggregates the metric per country code over the window. Only
// countries present in the filtered data appear; there is no zero-fill
// across the full code space.
func (s *Store) Countries(m Metric, lastNDays int, apps []App, opts QueryOptions) []KeyedValue {
	return s.breakdown(m, lastNDays, apps, opts, func(e Entry) string { return e.CountryCode })
}

// Devices aggregates the metric per device/platform category over the
// window, analogous to Countries.
func (s *Store) Devices(m Metric, lastNDays int, apps []App, opts QueryOptions) []KeyedValue {
	return s.breakdown(m, lastNDays, apps, opts, func(e Entry) string { return e.Device })
}

func (s *Store) breakdown(m Metric, lastNDays int, apps []App, opts QueryOptions, key func(Entry) string) []KeyedValue {
	spec, ok := metricSpecs[m]
	if !ok {
		return nil
	}
	sums := make(map[string]decimal.Decimal)
	for _, e := range s.EntriesForMetric(m, lastNDays, apps, opts) {
		k := key(e)
		sums[k] = sums[k].Add(spec.reduce(e))
	}
	return sortedByValue(sums)
}

// changeWindow is the comparison span used by Change: the trailing 15 days
// against the 15 days before them.
const changeWindow = 15

// Change compares the trailing 15 days against the preceding 15 and
// returns the percentage difference formatted to one decimal digit.
// Returns ChangeUnavailable when there is no prior data to compare
// against; a zero denominator never raises.
func (s *Store) Change(m Metric, opts QueryOptions) string {
	latest := Sum(s.RawData(m, changeWindow, nil, opts))
	previous := Sum(s.RawData(m, 2*changeWindow, nil, opts)).Sub(latest)
	if previous.IsZero() {
		return ChangeUnavailable
	}
	change := latest.Div(previous).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
	return change.StringFixed(1)
}

// ChangeUnavailable is the sentinel Change returns when the previous
// window sums to zero.
const ChangeUnavailable = "-"
