// Package currency re-denominates a snapshot's proceeds into a requested
// display currency.
package currency

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"appsales/internal/core"
)

// Converter resolves conversion rates keyed by (from, to) and produces
// converted snapshots. Rate resolution tries, in order: identity, a direct
// entry, the inverse of the reverse entry, and a cross rate through USD.
type Converter struct {
	mu    sync.RWMutex
	rates map[pair]decimal.Decimal
}

type pair struct {
	from string
	to   string
}

// New creates a converter seeded with the built-in rate table.
func New() *Converter {
	c := &Converter{rates: make(map[pair]decimal.Decimal, len(seedRates))}
	for p, r := range seedRates {
		c.rates[p] = r
	}
	return c
}

// SetRate registers or overrides the rate from one currency to another.
func (c *Converter) SetRate(from, to string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[pair{from: from, to: to}] = rate
}

// Rate resolves the conversion rate between two currencies. The boolean
// reports whether a rate could be resolved.
func (c *Converter) Rate(from, to string) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if r, ok := c.rates[pair{from: from, to: to}]; ok {
		return r, true
	}
	if r, ok := c.rates[pair{from: to, to: from}]; ok && !r.IsZero() {
		return decimal.NewFromInt(1).DivRound(r, rateScale), true
	}
	// Cross through USD.
	toUSD, ok1 := c.rateLocked(from, "USD")
	fromUSD, ok2 := c.rateLocked("USD", to)
	if ok1 && ok2 {
		return toUSD.Mul(fromUSD), true
	}
	return decimal.Zero, false
}

// rateScale bounds division precision when inverting a rate.
const rateScale = 8

func (c *Converter) rateLocked(from, to string) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}
	if r, ok := c.rates[pair{from: from, to: to}]; ok {
		return r, true
	}
	if r, ok := c.rates[pair{from: to, to: from}]; ok && !r.IsZero() {
		return decimal.NewFromInt(1).DivRound(r, rateScale), true
	}
	return decimal.Zero, false
}

// Convert re-expresses every entry's proceeds in the target currency and
// returns a new store. Apps and non-monetary entry fields carry over
// unchanged. An entry whose rate cannot be resolved degrades to zero
// proceeds rather than failing the whole conversion; the miss count is
// logged so a partial conversion does not pass silently.
func (c *Converter) Convert(ctx context.Context, store *core.Store, target string) *core.Store {
	if store.Currency() == target {
		return store
	}

	rate, resolved := c.Rate(store.Currency(), target)

	misses := 0
	entries := store.Entries()
	converted := make([]core.Entry, len(entries))
	for i, e := range entries {
		if !resolved {
			misses++
			e.Proceeds = decimal.Zero
		} else {
			e.Proceeds = e.Proceeds.Mul(rate)
		}
		converted[i] = e
	}

	if misses > 0 {
		slog.WarnContext(ctx, "Currency conversion degraded entries to zero proceeds",
			"from", store.Currency(),
			"to", target,
			"missed", misses)
	}

	return core.NewStore(converted, target, store.Apps())
}
