// Package file is a fetcher that replays sales reports previously
// downloaded to disk. It lets the engine run offline against the same
// TSV files the reporting API serves.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"appsales/internal/core"
	"appsales/internal/currency"
	"appsales/internal/fetch"
	"appsales/internal/fetch/report"
)

// baseCurrency is the denomination reports on disk are assumed to use.
const baseCurrency = "USD"

type Fetcher struct {
	dir       string
	converter *currency.Converter
}

func New(dir string, converter *currency.Converter) *Fetcher {
	return &Fetcher{dir: dir, converter: converter}
}

// Fetch implements fetch.Fetcher by parsing every report file under the
// configured directory into a single snapshot. Memoization is a no-op
// here: local reads are cheap and the directory may change between calls.
func (f *Fetcher) Fetch(ctx context.Context, key fetch.Key, targetCurrency string, _ bool) (*core.Store, error) {
	if key.IsZero() {
		return nil, fetch.NewError(fetch.KindInvalidCredentials, "no credential")
	}

	paths, err := f.reportPaths()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fetch.NewError(fetch.KindNoDataAvailable, fmt.Sprintf("no report files under %s", f.dir))
	}

	var entries []core.Entry
	appsBySKU := make(map[string]core.App)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileEntries, fileApps, err := parseFile(path)
		if err != nil {
			return nil, fetch.NewError(fetch.KindUnhandled, err.Error())
		}
		entries = append(entries, fileEntries...)
		for _, app := range fileApps {
			key := app.SKU
			if key == "" {
				key = app.Name
			}
			if _, seen := appsBySKU[key]; !seen {
				appsBySKU[key] = app
			}
		}
	}

	apps := make([]core.App, 0, len(appsBySKU))
	for _, app := range appsBySKU {
		apps = append(apps, app)
	}

	store := core.NewStore(entries, baseCurrency, apps)
	if f.converter != nil {
		store = f.converter.Convert(ctx, store, targetCurrency)
	}
	return store, nil
}

func (f *Fetcher) reportPaths() ([]string, error) {
	items, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fetch.NewError(fetch.KindUnhandled, fmt.Sprintf("read report directory: %v", err))
	}
	var paths []string
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(item.Name())) {
		case ".tsv", ".txt":
			paths = append(paths, filepath.Join(f.dir, item.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func parseFile(path string) ([]core.Entry, []core.App, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open report %s: %w", path, err)
	}
	defer fh.Close()

	entries, apps, err := report.Parse(fh)
	if err != nil {
		return nil, nil, fmt.Errorf("parse report %s: %w", filepath.Base(path), err)
	}
	return entries, apps, nil
}
