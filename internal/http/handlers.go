package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"appsales/internal/core"
	"appsales/internal/fetch"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 365
)

type errorPayload struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type statusResponse struct {
	State     string        `json:"state"`
	KeyID     string        `json:"key_id,omitempty"`
	Currency  string        `json:"currency"`
	FetchedAt *time.Time    `json:"fetched_at,omitempty"`
	Entries   int           `json:"entries"`
	Apps      []core.App    `json:"apps,omitempty"`
	Error     *errorPayload `json:"error,omitempty"`
}

type metricSummary struct {
	Metric        string `json:"metric"`
	Today         string `json:"today"`
	Last30Days    string `json:"last_30_days"`
	Display       string `json:"display"`
	WeeklyAverage string `json:"weekly_average"`
	Change        string `json:"change"`
	Goal          string `json:"goal,omitempty"`
	GoalEstimate  string `json:"goal_estimate,omitempty"`
	GoalCurrent   string `json:"goal_current,omitempty"`
}

type seriesPoint struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, fe *fetch.Error) {
	writeJSON(w, status, map[string]*errorPayload{"error": {
		Kind:        string(fe.Kind),
		Title:       fe.Title(),
		Description: fe.Description(),
	}})
}

// store returns the displayed snapshot, or replies 503 and nil when
// nothing has been loaded yet.
func (s *Server) store(w http.ResponseWriter) *core.Store {
	store := s.provider.Data()
	if store == nil {
		fe := s.provider.Err()
		if fe == nil {
			fe = fetch.NewError(fetch.KindNoDataAvailable, "")
		}
		s.writeError(w, http.StatusServiceUnavailable, fe)
		return nil
	}
	return store
}

// metricParam reads and validates the metric query parameter.
func (s *Server) metricParam(w http.ResponseWriter, r *http.Request) (core.Metric, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("metric"))
	if raw == "" {
		raw = string(core.Downloads)
	}
	m := core.Metric(raw)
	if err := m.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest,
			fetch.NewError(fetch.KindUnhandled, fmt.Sprintf("unknown metric %q, must be one of %v", raw, core.Metrics())))
		return "", false
	}
	return m, true
}

// daysParam reads the window length, clamped to [1, 365].
func daysParam(r *http.Request) int {
	v := strings.TrimSpace(r.URL.Query().Get("days"))
	if v == "" {
		return defaultWindowDays
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 1 {
		return defaultWindowDays
	}
	if days > maxWindowDays {
		return maxWindowDays
	}
	return days
}

// appsParam resolves the apps filter against the snapshot's app list,
// matching on ID or SKU. Unknown names are ignored, an empty filter
// means all apps.
func appsParam(r *http.Request, store *core.Store) []core.App {
	raw := strings.TrimSpace(r.URL.Query().Get("apps"))
	if raw == "" {
		return nil
	}
	wanted := strings.Split(raw, ",")
	var apps []core.App
	for _, a := range store.Apps() {
		for _, w := range wanted {
			w = strings.TrimSpace(w)
			if w != "" && (a.ID == w || a.SKU == w) {
				apps = append(apps, a)
				break
			}
		}
	}
	return apps
}

// cached serves an aggregation response from the per-snapshot cache or
// computes and stores it.
func (s *Server) cached(w http.ResponseWriter, key string, compute func() any) {
	if body, ok := s.respCache.Get(key); ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	body, err := json.Marshal(compute())
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	body = append(body, '\n')
	s.respCache.Set(key, body)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) cacheKey(endpoint string, m core.Metric, days int, r *http.Request) string {
	return fmt.Sprintf("%s/%d/%s/%d/%s",
		endpoint, s.provider.FetchedAt().Unix(), m, days, r.URL.Query().Get("apps"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:    string(s.provider.State()),
		KeyID:    s.provider.KeyID(),
		Currency: s.provider.Currency(),
	}
	if store := s.provider.Data(); store != nil {
		resp.Entries = len(store.Entries())
		resp.Apps = store.Apps()
		fetchedAt := s.provider.FetchedAt()
		resp.FetchedAt = &fetchedAt
	}
	if fe := s.provider.Err(); fe != nil {
		resp.Error = &errorPayload{
			Kind:        string(fe.Kind),
			Title:       fe.Title(),
			Description: fe.Description(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	store := s.store(w)
	if store == nil {
		return
	}
	apps := appsParam(r, store)

	summaries := make([]metricSummary, 0, len(core.Metrics()))
	for _, m := range core.Metrics() {
		last30 := core.Sum(store.RawData(m, defaultWindowDays, apps, s.opts))
		sum := metricSummary{
			Metric:        string(m),
			Today:         store.LastRawData(m, apps, s.opts).Value.String(),
			Last30Days:    last30.String(),
			Display:       core.Abbreviate(last30, 1),
			WeeklyAverage: store.WeeklyAverage(m, apps, s.opts).String(),
			Change:        store.Change(m, s.opts),
		}
		if goal, ok := s.goals[m]; ok {
			progress := store.MonthlyGoal(m, goal, s.opts)
			sum.Goal = progress.Goal.String()
			sum.GoalCurrent = progress.Current.String()
			sum.GoalEstimate = progress.Estimate.String()
		}
		summaries = append(summaries, sum)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"currency": store.Currency(),
		"metrics":  summaries,
	})
}

func (s *Server) handleRawData(w http.ResponseWriter, r *http.Request) {
	store := s.store(w)
	if store == nil {
		return
	}
	m, ok := s.metricParam(w, r)
	if !ok {
		return
	}
	days := daysParam(r)

	s.cached(w, s.cacheKey("rawdata", m, days, r), func() any {
		points := store.RawData(m, days, appsParam(r, store), s.opts)
		out := make([]seriesPoint, 0, len(points))
		for _, p := range points {
			out = append(out, seriesPoint{Date: p.Date.String(), Value: p.Value.String()})
		}
		return map[string]any{
			"metric": string(m),
			"days":   days,
			"points": out,
		}
	})
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	s.handleBreakdown(w, r, "countries", func(store *core.Store, m core.Metric, days int, apps []core.App) []core.KeyedValue {
		return store.Countries(m, days, apps, s.opts)
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	s.handleBreakdown(w, r, "devices", func(store *core.Store, m core.Metric, days int, apps []core.App) []core.KeyedValue {
		return store.Devices(m, days, apps, s.opts)
	})
}

type breakdownFunc func(*core.Store, core.Metric, int, []core.App) []core.KeyedValue

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request, endpoint string, breakdown breakdownFunc) {
	store := s.store(w)
	if store == nil {
		return
	}
	m, ok := s.metricParam(w, r)
	if !ok {
		return
	}
	days := daysParam(r)

	s.cached(w, s.cacheKey(endpoint, m, days, r), func() any {
		values := breakdown(store, m, days, appsParam(r, store))
		type row struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		rows := make([]row, 0, len(values))
		for _, v := range values {
			rows = append(rows, row{Key: v.Key, Value: v.Value.String()})
		}
		return map[string]any{
			"metric":  string(m),
			"days":    days,
			endpoint:  rows,
		}
	})
}

func (s *Server) handleChange(w http.ResponseWriter, r *http.Request) {
	store := s.store(w)
	if store == nil {
		return
	}
	m, ok := s.metricParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"metric": string(m),
		"change": store.Change(m, s.opts),
	})
}

// handleRefresh triggers a synchronous refresh. The displayed snapshot
// survives a failed refresh, so a failure still reports what is being
// served.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := s.provider.Refresh(r.Context(), false); err != nil {
		fe := fetch.Classify(err)
		status := http.StatusBadGateway
		if fe.Kind == fetch.KindInvalidCredentials || fe.Kind == fetch.KindWrongPermissions {
			status = http.StatusUnauthorized
		}
		s.writeError(w, status, fe)
		return
	}

	store := s.provider.Data()
	entries := 0
	if store != nil {
		entries = len(store.Entries())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   string(s.provider.State()),
		"entries": entries,
	})
}
