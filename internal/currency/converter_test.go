package currency

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"appsales/internal/core"
)

func testStore(proceeds string, currency string) *core.Store {
	p := decimal.RequireFromString(proceeds)
	entries := []core.Entry{{
		AppTitle:    "TestApp",
		Units:       2,
		Proceeds:    p,
		Date:        core.NewDate(2026, 8, 20),
		CountryCode: "US",
		Device:      "iPhone",
		Type:        core.Download,
	}}
	return core.NewStore(entries, currency, []core.App{core.MockApp})
}

func TestConvert_KnownRate(t *testing.T) {
	conv := New()
	conv.SetRate("USD", "EUR", decimal.RequireFromString("0.9"))

	store := testStore("10.0", "USD")
	got := conv.Convert(context.Background(), store, "EUR")

	if got.Currency() != "EUR" {
		t.Errorf("Currency() = %q, want EUR", got.Currency())
	}
	e := got.Entries()[0]
	if !e.Proceeds.Equal(decimal.RequireFromString("9.0")) {
		t.Errorf("proceeds = %s, want 9.0", e.Proceeds)
	}
	if e.Units != 2 || !e.Date.Equal(core.NewDate(2026, 8, 20)) {
		t.Error("conversion must leave unit counts and dates unchanged")
	}
	// The source store must be untouched.
	if !store.Entries()[0].Proceeds.Equal(decimal.RequireFromString("10.0")) {
		t.Error("Convert mutated the source store")
	}
}

func TestConvert_SameCurrencyIsIdentity(t *testing.T) {
	conv := New()
	store := testStore("10.0", "USD")

	once := conv.Convert(context.Background(), store, "EUR")
	twice := conv.Convert(context.Background(), once, "EUR")

	if !once.Entries()[0].Proceeds.Equal(twice.Entries()[0].Proceeds) {
		t.Errorf("converting twice to the same currency changed proceeds: %s vs %s",
			once.Entries()[0].Proceeds, twice.Entries()[0].Proceeds)
	}
}

func TestConvert_MissingRateDegradesToZero(t *testing.T) {
	conv := &Converter{rates: map[pair]decimal.Decimal{}}
	store := testStore("10.0", "USD")

	got := conv.Convert(context.Background(), store, "XXX")

	if !got.Entries()[0].Proceeds.IsZero() {
		t.Errorf("proceeds = %s, want 0 for unresolved rate", got.Entries()[0].Proceeds)
	}
	if got.Currency() != "XXX" {
		t.Errorf("Currency() = %q, want XXX", got.Currency())
	}
}

func TestRate(t *testing.T) {
	conv := New()

	tests := []struct {
		name   string
		from   string
		to     string
		wantOK bool
	}{
		{"identity", "EUR", "EUR", true},
		{"direct", "USD", "EUR", true},
		{"inverse", "EUR", "USD", true},
		{"cross via USD", "EUR", "GBP", true},
		{"unknown", "USD", "XXX", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ok := conv.Rate(tt.from, tt.to)
			if ok != tt.wantOK {
				t.Fatalf("Rate(%s, %s) ok = %v, want %v", tt.from, tt.to, ok, tt.wantOK)
			}
			if ok && !rate.IsPositive() {
				t.Errorf("Rate(%s, %s) = %s, want positive", tt.from, tt.to, rate)
			}
		})
	}
}

func TestRate_InverseRoundTrips(t *testing.T) {
	conv := New()
	fwd, _ := conv.Rate("USD", "EUR")
	back, _ := conv.Rate("EUR", "USD")

	product := fwd.Mul(back)
	tolerance := decimal.RequireFromString("0.0001")
	if product.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(tolerance) {
		t.Errorf("forward*inverse = %s, want ~1", product)
	}
}
