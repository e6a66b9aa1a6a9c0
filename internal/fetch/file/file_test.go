package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"appsales/internal/core"
	"appsales/internal/currency"
	"appsales/internal/fetch"
)

const reportHeader = "SKU\tTitle\tVersion\tProduct Type Identifier\tUnits\tDeveloper Proceeds\tBegin Date\tCountry Code\tApple Identifier\tDevice\n"

func writeReport(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testKey() fetch.Key {
	return fetch.Key{ID: "key-1", KeyID: "ABC", IssuerID: "iss", PrivateKey: "pem"}
}

func TestFetch_MergesReportFiles(t *testing.T) {
	dir := t.TempDir()
	writeReport(t, dir, "day1.tsv", reportHeader+
		"my-app\tMy App\t1.0\t1\t2\t0.00\t08/18/2026\tUS\t1\tiPhone\n")
	writeReport(t, dir, "day2.tsv", reportHeader+
		"my-app\tMy App\t1.0\t1\t4\t0.00\t08/19/2026\tUS\t1\tiPhone\n")
	writeReport(t, dir, "notes.md", "ignored")

	f := New(dir, currency.New())
	store, err := f.Fetch(context.Background(), testKey(), "USD", false)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(store.Entries()) != 2 {
		t.Fatalf("store holds %d entries, want 2", len(store.Entries()))
	}
	if !store.LatestReportingDate().Equal(core.NewDate(2026, 8, 19)) {
		t.Errorf("latest reporting date = %s, want 2026-08-19", store.LatestReportingDate())
	}
	if len(store.Apps()) != 1 {
		t.Errorf("store holds %d apps, want 1 (deduplicated)", len(store.Apps()))
	}
}

func TestFetch_EmptyDirectory(t *testing.T) {
	f := New(t.TempDir(), currency.New())

	_, err := f.Fetch(context.Background(), testKey(), "USD", false)
	var fe *fetch.Error
	if !errors.As(err, &fe) || fe.Kind != fetch.KindNoDataAvailable {
		t.Errorf("Fetch() error = %v, want no_data_available", err)
	}
}

func TestFetch_MissingDirectory(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "nope"), currency.New())

	_, err := f.Fetch(context.Background(), testKey(), "USD", false)
	var fe *fetch.Error
	if !errors.As(err, &fe) || fe.Kind != fetch.KindUnhandled {
		t.Errorf("Fetch() error = %v, want unhandled", err)
	}
}

func TestFetch_ConvertsCurrency(t *testing.T) {
	dir := t.TempDir()
	writeReport(t, dir, "day1.tsv", reportHeader+
		"my-app.pro\tMy App\t1.0\tIA1\t1\t10.00\t08/19/2026\tUS\t2\tiPhone\n")

	conv := currency.New()
	conv.SetRate("USD", "EUR", decimal.RequireFromString("0.9"))

	f := New(dir, conv)
	store, err := f.Fetch(context.Background(), testKey(), "EUR", false)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if store.Currency() != "EUR" {
		t.Errorf("Currency() = %q, want EUR", store.Currency())
	}
	if got := store.Entries()[0].Proceeds.String(); got != "9" {
		t.Errorf("proceeds = %s, want 9", got)
	}
}
