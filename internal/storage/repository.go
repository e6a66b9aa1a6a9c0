// Package storage persists snapshots per credential so the engine can
// serve last-known data immediately on startup while a refresh runs.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"appsales/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when no snapshot exists for the credential.
var ErrNoSnapshot = errors.New("no snapshot for credential")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSnapshot overwrites the stored snapshot for the credential in one
// transaction. A reader either sees the previous snapshot or the new one,
// never a mix.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, keyID string, store *core.Store, fetchedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE key_id = ?`, keyID); err != nil {
		return fmt.Errorf("delete previous snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (key_id, currency, fetched_at) VALUES (?, ?, ?)`,
		keyID, store.Currency(), fetchedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	insertEntry, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_entries
			(key_id, app_title, app_sku, app_id, units, proceeds, date, country_code, device, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer insertEntry.Close()

	for _, e := range store.Entries() {
		if _, err := insertEntry.ExecContext(ctx,
			keyID, e.AppTitle, e.AppSKU, e.AppID, e.Units,
			e.Proceeds.String(), e.Date.String(), e.CountryCode, e.Device, string(e.Type)); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	insertApp, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_apps (key_id, app_id, name, sku, version, icon_url)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare app insert: %w", err)
	}
	defer insertApp.Close()

	for _, a := range store.Apps() {
		if _, err := insertApp.ExecContext(ctx,
			keyID, a.ID, a.Name, a.SKU, a.Version, a.IconURL); err != nil {
			return fmt.Errorf("insert app: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot persisted",
		"key_id", keyID,
		"entries", len(store.Entries()),
		"currency", store.Currency())

	return nil
}

// LoadSnapshot reads the stored snapshot for the credential. Returns
// ErrNoSnapshot when none exists.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context, keyID string) (*core.Store, time.Time, error) {
	var (
		currency string
		fetched  string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT currency, fetched_at FROM snapshots WHERE key_id = ?`, keyID).
		Scan(&currency, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load snapshot header: %w", err)
	}
	fetchedAt, err := time.Parse(time.RFC3339, fetched)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse stored fetch time %q: %w", fetched, err)
	}

	entries, err := r.loadEntries(ctx, keyID)
	if err != nil {
		return nil, time.Time{}, err
	}
	apps, err := r.loadApps(ctx, keyID)
	if err != nil {
		return nil, time.Time{}, err
	}

	return core.NewStore(entries, currency, apps), fetchedAt, nil
}

func (r *SQLiteRepository) loadEntries(ctx context.Context, keyID string) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT app_title, app_sku, app_id, units, proceeds, date, country_code, device, type
		FROM snapshot_entries WHERE key_id = ? ORDER BY id`, keyID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var (
			e        core.Entry
			proceeds string
			date     string
			typ      string
		)
		if err := rows.Scan(&e.AppTitle, &e.AppSKU, &e.AppID, &e.Units,
			&proceeds, &date, &e.CountryCode, &e.Device, &typ); err != nil {
			return nil, fmt.Errorf("scan snapshot entry: %w", err)
		}
		e.Proceeds, err = decimal.NewFromString(proceeds)
		if err != nil {
			return nil, fmt.Errorf("parse stored proceeds %q: %w", proceeds, err)
		}
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		e.Date = core.DateOf(day)
		e.Type = core.EntryType(typ)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) loadApps(ctx context.Context, keyID string) ([]core.App, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT app_id, name, sku, version, icon_url
		FROM snapshot_apps WHERE key_id = ? ORDER BY id`, keyID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot apps: %w", err)
	}
	defer rows.Close()

	var apps []core.App
	for rows.Next() {
		var a core.App
		if err := rows.Scan(&a.ID, &a.Name, &a.SKU, &a.Version, &a.IconURL); err != nil {
			return nil, fmt.Errorf("scan snapshot app: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// CountRecords returns how many entries the stored snapshot holds, zero
// when no snapshot exists.
func (r *SQLiteRepository) CountRecords(ctx context.Context, keyID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshot_entries WHERE key_id = ?`, keyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshot entries: %w", err)
	}
	return n, nil
}

// ClearSnapshot removes the stored snapshot for the credential. Clearing
// an absent snapshot is not an error.
func (r *SQLiteRepository) ClearSnapshot(ctx context.Context, keyID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key_id = ?`, keyID); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	slog.InfoContext(ctx, "Snapshot cleared", "key_id", keyID)
	return nil
}
