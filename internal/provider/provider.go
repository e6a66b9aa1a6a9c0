// Package provider owns the currently displayed entry store. It serves a
// persisted snapshot immediately, refreshes it in the background, and
// keeps last-good data visible when a refresh fails.
package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"appsales/internal/amqp"
	"appsales/internal/core"
	"appsales/internal/fetch"
)

const (
	StateEmpty      State = "empty"
	StateCached     State = "cached"
	StateRefreshing State = "refreshing"
	StateFresh      State = "fresh"
	StateErrored    State = "errored"
)

// State describes what the provider is currently serving.
type State string

// Repository persists the last successful snapshot per credential.
type Repository interface {
	LoadSnapshot(ctx context.Context, keyID string) (*core.Store, time.Time, error)
	SaveSnapshot(ctx context.Context, keyID string, store *core.Store, fetchedAt time.Time) error
}

// Notifier publishes refresh lifecycle events. May be nil.
type Notifier interface {
	PublishRefreshEvent(ctx context.Context, event *amqp.RefreshEvent) error
}

// Provider is the single writer of the displayed store reference. Reads
// return the last committed snapshot without ever waiting on a refresh
// in flight.
type Provider struct {
	fetcher  fetch.Fetcher
	repo     Repository
	notifier Notifier

	group singleflight.Group

	mu        sync.RWMutex
	epoch     uint64
	key       fetch.Key
	currency  string
	store     *core.Store
	fetchedAt time.Time
	state     State
	lastErr   *fetch.Error
	subs      []chan struct{}
}

func New(fetcher fetch.Fetcher, repo Repository, notifier Notifier, currency string) *Provider {
	return &Provider{
		fetcher:  fetcher,
		repo:     repo,
		notifier: notifier,
		currency: currency,
		state:    StateEmpty,
	}
}

// SelectKey switches the active credential. The current state is
// discarded, a persisted snapshot for the new credential is served if
// one exists, and a background refresh starts. A zero key leaves the
// provider empty with a "no credentials" error.
func (p *Provider) SelectKey(ctx context.Context, key fetch.Key) error {
	p.mu.Lock()
	p.epoch++
	p.key = key
	return p.resetLocked(ctx)
}

// SetCurrency switches the display currency. Like SelectKey it discards
// the current state, reloads the snapshot and refreshes in the new
// currency.
func (p *Provider) SetCurrency(ctx context.Context, code string) error {
	p.mu.Lock()
	p.epoch++
	p.currency = code
	return p.resetLocked(ctx)
}

// resetLocked rebuilds the displayed state for the current key and
// currency. Called with p.mu held; releases it before notifying.
func (p *Provider) resetLocked(ctx context.Context) error {
	p.store = nil
	p.fetchedAt = time.Time{}
	p.lastErr = nil
	p.state = StateEmpty

	if p.key.IsZero() {
		p.lastErr = fetch.NewError(fetch.KindUnknown, "no credentials selected")
		err := p.lastErr
		p.notifyLocked()
		p.mu.Unlock()
		return err
	}

	if p.repo != nil {
		store, fetchedAt, err := p.repo.LoadSnapshot(ctx, p.key.ID)
		if err == nil {
			p.store = store
			p.fetchedAt = fetchedAt
			p.state = StateCached
			slog.InfoContext(ctx, "Serving cached snapshot",
				"key_id", p.key.ID,
				"entries", len(store.Entries()),
				"fetched_at", fetchedAt)
		}
	}
	p.notifyLocked()
	p.mu.Unlock()

	go func() {
		if err := p.Refresh(context.WithoutCancel(ctx), true); err != nil {
			slog.Warn("Background refresh failed", "error", err)
		}
	}()

	return nil
}

// Refresh fetches a new snapshot and commits it if the credential and
// currency have not changed in the meantime. Concurrent calls for the
// same credential and currency share one fetch.
func (p *Provider) Refresh(ctx context.Context, useMemoization bool) error {
	p.mu.Lock()
	key := p.key
	currency := p.currency
	epoch := p.epoch
	if key.IsZero() {
		p.lastErr = fetch.NewError(fetch.KindUnknown, "no credentials selected")
		err := p.lastErr
		p.notifyLocked()
		p.mu.Unlock()
		return err
	}
	p.state = StateRefreshing
	p.notifyLocked()
	p.mu.Unlock()

	_, err, _ := p.group.Do(key.ID+"/"+currency, func() (any, error) {
		store, err := p.fetcher.Fetch(ctx, key, currency, useMemoization)
		if err != nil {
			p.commitFailure(ctx, epoch, key, currency, err)
			return nil, err
		}
		p.commitSuccess(ctx, epoch, key, currency, store)
		return store, nil
	})
	return err
}

func (p *Provider) commitSuccess(ctx context.Context, epoch uint64, key fetch.Key, currency string, store *core.Store) {
	fetchedAt := time.Now()

	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		slog.InfoContext(ctx, "Discarding stale refresh result", "key_id", key.ID)
		return
	}
	p.store = store
	p.fetchedAt = fetchedAt
	p.state = StateFresh
	p.lastErr = nil
	p.notifyLocked()
	p.mu.Unlock()

	if p.repo != nil {
		if err := p.repo.SaveSnapshot(ctx, key.ID, store, fetchedAt); err != nil {
			slog.WarnContext(ctx, "Failed to persist snapshot", "key_id", key.ID, "error", err)
		}
	}
	p.publish(ctx, amqp.NewRefreshCompleted(key.ID, currency, len(store.Entries())))

	slog.InfoContext(ctx, "Refresh completed",
		"key_id", key.ID,
		"currency", currency,
		"entries", len(store.Entries()))
}

func (p *Provider) commitFailure(ctx context.Context, epoch uint64, key fetch.Key, currency string, err error) {
	classified := fetch.Classify(err)

	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		return
	}
	p.lastErr = classified
	if p.store == nil {
		p.state = StateErrored
	} else {
		// Last-good data stays visible next to the error.
		p.state = StateCached
	}
	p.notifyLocked()
	p.mu.Unlock()

	p.publish(ctx, amqp.NewRefreshFailed(key.ID, currency, classified.Error()))

	slog.WarnContext(ctx, "Refresh failed",
		"key_id", key.ID,
		"kind", string(classified.Kind),
		"error", classified)
}

func (p *Provider) publish(ctx context.Context, event *amqp.RefreshEvent) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishRefreshEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "Failed to publish refresh event", "error", err)
	}
}

// Data returns the displayed store, or nil when nothing has been loaded.
func (p *Provider) Data() *core.Store {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store
}

// Err returns the most recent fetch error, or nil.
func (p *Provider) Err() *fetch.Error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// FetchedAt returns when the displayed snapshot was fetched. Zero when
// nothing is displayed.
func (p *Provider) FetchedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fetchedAt
}

func (p *Provider) Currency() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currency
}

func (p *Provider) KeyID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.key.ID
}

// Subscribe returns a channel that receives a signal after every state
// change. Signals are coalesced, subscribers that lag see at most one
// pending signal.
func (p *Provider) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// notifyLocked signals all subscribers without blocking. Called with
// p.mu held.
func (p *Provider) notifyLocked() {
	for _, ch := range p.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
