// Package memory is an in-process fetcher backed by generated sample
// data. It stands in for the remote report feed during development and
// in tests, including the feed's response memoization behavior.
package memory

import (
	"context"
	"sync"
	"time"

	"appsales/internal/cache"
	"appsales/internal/core"
	"appsales/internal/currency"
	"appsales/internal/fetch"
)

const (
	memoTTL      = 5 * time.Minute
	memoCapacity = 16
	mockDays     = 371
)

type Fetcher struct {
	mu        sync.Mutex
	store     *core.Store
	nextErr   error
	fetches   int
	converter *currency.Converter
	memo      *cache.LRUCache[*core.Store]
}

// New creates a fetcher serving a deterministic year of sample data.
func New(converter *currency.Converter) *Fetcher {
	return &Fetcher{
		store:     core.MockStore(mockDays, 1),
		converter: converter,
		memo:      cache.NewLRUCache[*core.Store](memoCapacity, memoTTL),
	}
}

// SetStore replaces the snapshot served by subsequent fetches.
func (f *Fetcher) SetStore(s *core.Store) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store = s
	f.memo = cache.NewLRUCache[*core.Store](memoCapacity, memoTTL)
}

// FailWith makes every subsequent fetch return err until cleared with nil.
func (f *Fetcher) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextErr = err
}

// Fetches reports how many non-memoized fetches have been served.
func (f *Fetcher) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// Fetch implements fetch.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, key fetch.Key, targetCurrency string, useMemoization bool) (*core.Store, error) {
	if key.IsZero() {
		return nil, fetch.NewError(fetch.KindInvalidCredentials, "no credential")
	}

	memoKey := key.ID + "/" + targetCurrency
	if useMemoization {
		if s, ok := f.memo.Get(memoKey); ok {
			return s, nil
		}
	}

	f.mu.Lock()
	err := f.nextErr
	src := f.store
	if err == nil {
		f.fetches++
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := src
	if f.converter != nil {
		out = f.converter.Convert(ctx, src, targetCurrency)
	}
	f.memo.Set(memoKey, out)
	return out, nil
}
