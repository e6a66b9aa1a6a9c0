package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"appsales/internal/core"
	"appsales/internal/fetch"
)

// stubFetcher returns a canned store or error per credential and counts
// calls. An optional gate blocks the first call until released.
type stubFetcher struct {
	mu     sync.Mutex
	stores map[string]*core.Store
	err    error
	gate   chan struct{}
	gated  bool
	calls  atomic.Int64
}

func (f *stubFetcher) Fetch(ctx context.Context, key fetch.Key, currency string, useMemoization bool) (*core.Store, error) {
	f.calls.Add(1)

	f.mu.Lock()
	gate := f.gate
	block := f.gated
	f.gated = false
	err := f.err
	store := f.stores[key.ID]
	f.mu.Unlock()

	if block && gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fetch.NewError(fetch.KindNoDataAvailable, "")
	}
	return store, nil
}

func (f *stubFetcher) failWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// memRepo is an in-memory snapshot repository.
type memRepo struct {
	mu        sync.Mutex
	snapshots map[string]*core.Store
	saved     atomic.Int64
}

func newMemRepo() *memRepo {
	return &memRepo{snapshots: make(map[string]*core.Store)}
}

func (r *memRepo) LoadSnapshot(ctx context.Context, keyID string) (*core.Store, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.snapshots[keyID]
	if !ok {
		return nil, time.Time{}, errors.New("no snapshot")
	}
	return store, time.Now().Add(-time.Hour), nil
}

func (r *memRepo) SaveSnapshot(ctx context.Context, keyID string, store *core.Store, fetchedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[keyID] = store
	r.saved.Add(1)
	return nil
}

func storeWithEntries(n int, currency string) *core.Store {
	entries := make([]core.Entry, n)
	date := core.NewDate(2026, 8, 20)
	for i := range entries {
		entries[i] = core.Entry{
			AppTitle:    "App",
			Units:       1,
			Proceeds:    decimal.Zero,
			Date:        date.AddDays(-i),
			CountryCode: "US",
			Device:      "iPhone",
			Type:        core.Download,
		}
	}
	return core.NewStore(entries, currency, nil)
}

func testKey(id string) fetch.Key {
	return fetch.Key{ID: id, Name: "test", IssuerID: "iss", KeyID: "kid", PrivateKey: "pem", VendorNumber: "1"}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSelectKey_RefreshesInBackground(t *testing.T) {
	fetcher := &stubFetcher{stores: map[string]*core.Store{"k1": storeWithEntries(3, "USD")}}
	repo := newMemRepo()
	p := New(fetcher, repo, nil, "USD")

	if err := p.SelectKey(context.Background(), testKey("k1")); err != nil {
		t.Fatalf("SelectKey() error = %v", err)
	}

	waitFor(t, func() bool { return p.State() == StateFresh })

	if got := len(p.Data().Entries()); got != 3 {
		t.Errorf("displayed %d entries, want 3", got)
	}
	if p.Err() != nil {
		t.Errorf("Err() = %v, want nil", p.Err())
	}
	waitFor(t, func() bool { return repo.saved.Load() == 1 })
}

func TestSelectKey_ServesSnapshotBeforeRefresh(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &stubFetcher{
		stores: map[string]*core.Store{"k1": storeWithEntries(5, "USD")},
		gate:   gate,
		gated:  true,
	}
	repo := newMemRepo()
	repo.snapshots["k1"] = storeWithEntries(2, "USD")
	p := New(fetcher, repo, nil, "USD")

	if err := p.SelectKey(context.Background(), testKey("k1")); err != nil {
		t.Fatalf("SelectKey() error = %v", err)
	}

	// The cached snapshot is visible immediately while the fetch blocks.
	if got := len(p.Data().Entries()); got != 2 {
		t.Errorf("displayed %d entries before refresh, want 2", got)
	}

	close(gate)
	waitFor(t, func() bool { return p.State() == StateFresh })
	if got := len(p.Data().Entries()); got != 5 {
		t.Errorf("displayed %d entries after refresh, want 5", got)
	}
}

func TestRefreshFailure_KeepsLastGoodData(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.failWith(fetch.NewError(fetch.KindExceededLimit, ""))
	repo := newMemRepo()
	repo.snapshots["k1"] = storeWithEntries(100, "USD")
	p := New(fetcher, repo, nil, "USD")

	_ = p.SelectKey(context.Background(), testKey("k1"))
	waitFor(t, func() bool { return p.Err() != nil })

	if got := len(p.Data().Entries()); got != 100 {
		t.Errorf("displayed %d entries after failed refresh, want 100", got)
	}
	if p.Err().Kind != fetch.KindExceededLimit {
		t.Errorf("Err().Kind = %s, want exceeded_limit", p.Err().Kind)
	}
	if p.State() != StateCached {
		t.Errorf("State() = %s, want cached", p.State())
	}
}

func TestRefreshFailure_WithoutDataIsErrored(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.failWith(fetch.NewError(fetch.KindInvalidCredentials, ""))
	p := New(fetcher, newMemRepo(), nil, "USD")

	_ = p.SelectKey(context.Background(), testKey("k1"))
	waitFor(t, func() bool { return p.State() == StateErrored })

	if p.Data() != nil {
		t.Error("Data() should be nil when nothing was ever displayed")
	}
	if p.Err().Kind != fetch.KindInvalidCredentials {
		t.Errorf("Err().Kind = %s, want invalid_credentials", p.Err().Kind)
	}
}

func TestSelectKey_NoCredential(t *testing.T) {
	p := New(&stubFetcher{}, newMemRepo(), nil, "USD")

	err := p.SelectKey(context.Background(), fetch.Key{})
	if err == nil {
		t.Fatal("SelectKey() with zero key should return an error")
	}
	var fe *fetch.Error
	if !errors.As(err, &fe) || fe.Kind != fetch.KindUnknown {
		t.Errorf("error = %v, want kind unknown", err)
	}
	if p.State() != StateEmpty {
		t.Errorf("State() = %s, want empty", p.State())
	}
}

func TestSwitchDiscardsStaleRefresh(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &stubFetcher{
		stores: map[string]*core.Store{
			"old": storeWithEntries(1, "USD"),
			"new": storeWithEntries(9, "USD"),
		},
		gate:  gate,
		gated: true,
	}
	p := New(fetcher, newMemRepo(), nil, "USD")

	// First refresh blocks inside the fetcher.
	_ = p.SelectKey(context.Background(), testKey("old"))
	waitFor(t, func() bool { return fetcher.calls.Load() == 1 })

	// Switching credentials must abandon the in-flight result.
	_ = p.SelectKey(context.Background(), testKey("new"))
	waitFor(t, func() bool {
		s := p.Data()
		return s != nil && len(s.Entries()) == 9
	})

	close(gate)
	time.Sleep(50 * time.Millisecond)

	if got := len(p.Data().Entries()); got != 9 {
		t.Errorf("stale refresh overwrote displayed data: %d entries, want 9", got)
	}
}

func TestRefresh_Coalesced(t *testing.T) {
	fetcher := &stubFetcher{stores: map[string]*core.Store{"k1": storeWithEntries(1, "USD")}}
	p := New(fetcher, newMemRepo(), nil, "USD")

	_ = p.SelectKey(context.Background(), testKey("k1"))
	waitFor(t, func() bool { return p.State() == StateFresh })

	gate := make(chan struct{})
	fetcher.mu.Lock()
	fetcher.gate = gate
	fetcher.gated = true
	fetcher.mu.Unlock()
	fetcher.calls.Store(0)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Refresh(context.Background(), false)
		}()
	}
	waitFor(t, func() bool { return fetcher.calls.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("concurrent refreshes hit the fetcher %d times, want 1", got)
	}
}

func TestSubscribe_NotifiesOnStateChange(t *testing.T) {
	fetcher := &stubFetcher{stores: map[string]*core.Store{"k1": storeWithEntries(1, "USD")}}
	p := New(fetcher, newMemRepo(), nil, "USD")
	ch := p.Subscribe()

	_ = p.SelectKey(context.Background(), testKey("k1"))

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after SelectKey")
	}
}

func TestSetCurrency_TriggersRefresh(t *testing.T) {
	fetcher := &stubFetcher{stores: map[string]*core.Store{"k1": storeWithEntries(1, "USD")}}
	p := New(fetcher, newMemRepo(), nil, "USD")

	_ = p.SelectKey(context.Background(), testKey("k1"))
	waitFor(t, func() bool { return p.State() == StateFresh })

	fetcher.mu.Lock()
	fetcher.stores["k1"] = storeWithEntries(1, "EUR")
	fetcher.mu.Unlock()

	if err := p.SetCurrency(context.Background(), "EUR"); err != nil {
		t.Fatalf("SetCurrency() error = %v", err)
	}
	waitFor(t, func() bool {
		s := p.Data()
		return s != nil && s.Currency() == "EUR"
	})
	if p.Currency() != "EUR" {
		t.Errorf("Currency() = %s, want EUR", p.Currency())
	}
}
