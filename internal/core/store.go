package core

import "sort"

// Store is an immutable snapshot of sales data: the ordered transaction
// entries, the known apps, and the currency every proceeds value is
// denominated in. A store is replaced wholesale on refresh or currency
// change, never mutated in place.
type Store struct {
	entries  []Entry
	apps     []App
	currency string
}

// NewStore builds a snapshot. Apps are ordered by descending matching-entry
// count once here, so display lists never re-derive the ordering per query.
func NewStore(entries []Entry, currency string, apps []App) *Store {
	type ranked struct {
		app   App
		count int
	}
	byCount := make([]ranked, len(apps))
	for i, app := range apps {
		byCount[i] = ranked{app: app, count: len(filterApps(entries, []App{app}))}
	}
	sort.SliceStable(byCount, func(i, j int) bool {
		return byCount[i].count > byCount[j].count
	})
	sorted := make([]App, len(byCount))
	for i, r := range byCount {
		sorted[i] = r.app
	}
	return &Store{
		entries:  append([]Entry(nil), entries...),
		apps:     sorted,
		currency: currency,
	}
}

// Entries returns the raw transaction records.
func (s *Store) Entries() []Entry {
	return s.entries
}

// Apps returns the known apps, ordered by descending entry count.
func (s *Store) Apps() []App {
	return s.apps
}

// Currency is the display currency all proceeds are expressed in.
func (s *Store) Currency() string {
	return s.currency
}

// IsEmpty reports whether the store holds no entries at all.
func (s *Store) IsEmpty() bool {
	return len(s.entries) == 0
}

// LatestReportingDate is the maximum date across all entries. Report
// availability lags real time, so windows anchor here rather than at today.
// Returns DistantPast for an empty store.
func (s *Store) LatestReportingDate() Date {
	latest := DistantPast
	for _, e := range s.entries {
		if e.Date.After(latest) {
			latest = e.Date
		}
	}
	return latest
}

// filterApps restricts entries to those matching any of the given apps.
// An empty app list means no filter, not no data.
func filterApps(entries []Entry, apps []App) []Entry {
	if len(apps) == 0 {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		for _, app := range apps {
			if e.Matches(app) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// lastDays restricts entries to the trailing n calendar days ending at the
// store's latest reporting date.
func (s *Store) lastDays(entries []Entry, n int) []Entry {
	if n <= 0 {
		return nil
	}
	latest := s.LatestReportingDate()
	cutoff := latest.AddDays(-(n - 1))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Date.Before(cutoff) && !e.Date.After(latest) {
			out = append(out, e)
		}
	}
	return out
}
