package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"appsales/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "appsales.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func snapshotFixture() *core.Store {
	entries := []core.Entry{
		{
			AppTitle:    "My App",
			AppSKU:      "my-app",
			AppID:       "1000001",
			Units:       3,
			Proceeds:    decimal.RequireFromString("1.99"),
			Date:        core.NewDate(2026, 8, 19),
			CountryCode: "US",
			Device:      "iPhone",
			Type:        core.Download,
		},
		{
			AppTitle:    "My App",
			AppSKU:      "my-app",
			AppID:       "1000001",
			Units:       1,
			Proceeds:    decimal.Zero,
			Date:        core.NewDate(2026, 8, 18),
			CountryCode: "DE",
			Device:      "iPad",
			Type:        core.Update,
		},
	}
	apps := []core.App{{ID: "1000001", Name: "My App", SKU: "my-app", Version: "2.1"}}
	return core.NewStore(entries, "USD", apps)
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fetchedAt := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)

	if err := repo.SaveSnapshot(ctx, "key-1", snapshotFixture(), fetchedAt); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	store, gotFetched, err := repo.LoadSnapshot(ctx, "key-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if !gotFetched.Equal(fetchedAt) {
		t.Errorf("fetched at = %s, want %s", gotFetched, fetchedAt)
	}
	if store.Currency() != "USD" {
		t.Errorf("Currency() = %q, want USD", store.Currency())
	}
	if len(store.Entries()) != 2 {
		t.Fatalf("loaded %d entries, want 2", len(store.Entries()))
	}

	e := store.Entries()[0]
	if e.AppTitle != "My App" || e.Units != 3 || !e.Proceeds.Equal(decimal.RequireFromString("1.99")) {
		t.Errorf("entry = %+v", e)
	}
	if !e.Date.Equal(core.NewDate(2026, 8, 19)) {
		t.Errorf("date = %s, want 2026-08-19", e.Date)
	}
	if e.Type != core.Download {
		t.Errorf("type = %s, want download", e.Type)
	}

	if len(store.Apps()) != 1 || store.Apps()[0].SKU != "my-app" {
		t.Errorf("apps = %+v", store.Apps())
	}
}

func TestSaveSnapshot_OverwritesPrevious(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveSnapshot(ctx, "key-1", snapshotFixture(), time.Now()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	replacement := core.NewStore([]core.Entry{{
		AppTitle:    "My App",
		Units:       9,
		Proceeds:    decimal.Zero,
		Date:        core.NewDate(2026, 8, 20),
		CountryCode: "SE",
		Device:      "Desktop",
		Type:        core.Download,
	}}, "EUR", nil)
	if err := repo.SaveSnapshot(ctx, "key-1", replacement, time.Now()); err != nil {
		t.Fatalf("SaveSnapshot() replacement error = %v", err)
	}

	store, _, err := repo.LoadSnapshot(ctx, "key-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(store.Entries()) != 1 || store.Currency() != "EUR" {
		t.Errorf("snapshot was not replaced wholesale: %d entries, currency %s",
			len(store.Entries()), store.Currency())
	}
}

func TestLoadSnapshot_Missing(t *testing.T) {
	repo := newTestRepo(t)

	_, _, err := repo.LoadSnapshot(context.Background(), "nobody")
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("LoadSnapshot() error = %v, want ErrNoSnapshot", err)
	}
}

func TestCountRecords(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if n, err := repo.CountRecords(ctx, "key-1"); err != nil || n != 0 {
		t.Errorf("CountRecords() = (%d, %v), want (0, nil)", n, err)
	}

	if err := repo.SaveSnapshot(ctx, "key-1", snapshotFixture(), time.Now()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if n, _ := repo.CountRecords(ctx, "key-1"); n != 2 {
		t.Errorf("CountRecords() = %d, want 2", n)
	}
}

func TestClearSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveSnapshot(ctx, "key-1", snapshotFixture(), time.Now()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if err := repo.ClearSnapshot(ctx, "key-1"); err != nil {
		t.Fatalf("ClearSnapshot() error = %v", err)
	}

	if _, _, err := repo.LoadSnapshot(ctx, "key-1"); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("LoadSnapshot() after clear = %v, want ErrNoSnapshot", err)
	}
	if n, _ := repo.CountRecords(ctx, "key-1"); n != 0 {
		t.Errorf("CountRecords() after clear = %d, want 0 (cascade delete)", n)
	}

	// Clearing again is a no-op.
	if err := repo.ClearSnapshot(ctx, "key-1"); err != nil {
		t.Errorf("ClearSnapshot() on empty = %v, want nil", err)
	}
}

func TestSnapshotRoundTrip_KeysAreIsolated(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveSnapshot(ctx, "key-a", snapshotFixture(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveSnapshot(ctx, "key-b", core.NewStore(nil, "EUR", nil), time.Now()); err != nil {
		t.Fatal(err)
	}

	a, _, err := repo.LoadSnapshot(ctx, "key-a")
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := repo.LoadSnapshot(ctx, "key-b")
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Entries()) != 2 || len(b.Entries()) != 0 {
		t.Errorf("snapshots bleed across credentials: a=%d b=%d", len(a.Entries()), len(b.Entries()))
	}
}
