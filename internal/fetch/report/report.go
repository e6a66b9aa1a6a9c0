// Package report parses App Store Connect daily sales report rows
// (tab-separated values) into transaction entries.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"appsales/internal/core"
)

// Column headers present in daily sales reports. Reports occasionally gain
// trailing columns, so rows are addressed by header name, never by index.
const (
	colSKU         = "SKU"
	colTitle       = "Title"
	colVersion     = "Version"
	colProductType = "Product Type Identifier"
	colUnits       = "Units"
	colProceeds    = "Developer Proceeds"
	colBeginDate   = "Begin Date"
	colCountry     = "Country Code"
	colAppleID     = "Apple Identifier"
	colDevice      = "Device"
)

// productTypes maps the report's product type identifier onto the entry
// kind. The re-download and restored purchase identifiers carry a GB
// suffix on pre-2020 reports, hence the prefix match in kindOf.
var productTypes = map[string]core.EntryType{
	"1":   core.Download,
	"1F":  core.Download,
	"1T":  core.Download,
	"F1":  core.Download,
	"7":   core.Update,
	"7F":  core.Update,
	"7T":  core.Update,
	"F7":  core.Update,
	"IA1": core.IAP,
	"IA9": core.IAP,
	"IAY": core.IAP,
	"FI1": core.IAP,
	"3":   core.ReDownload,
	"3F":  core.ReDownload,
	"IAC": core.RestoredIAP,
}

func kindOf(productType string) (core.EntryType, bool) {
	if t, ok := productTypes[productType]; ok {
		return t, true
	}
	return "", false
}

// Parse reads one TSV report and returns its entries plus the apps it
// mentions. Rows with an unrecognized product type are skipped, not
// failed: reports mix in row kinds this engine does not aggregate.
func Parse(r io.Reader) ([]core.Entry, []core.App, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read report header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colSKU, colTitle, colProductType, colUnits, colProceeds, colBeginDate, colCountry} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("report is missing column %q", required)
		}
	}

	var entries []core.Entry
	apps := make(map[string]core.App)
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read report row %d: %w", line, err)
		}
		line++

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		kind, ok := kindOf(field(colProductType))
		if !ok {
			continue
		}

		units, err := strconv.Atoi(field(colUnits))
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: parse units %q: %w", line, field(colUnits), err)
		}
		proceeds, err := decimal.NewFromString(field(colProceeds))
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: parse proceeds %q: %w", line, field(colProceeds), err)
		}
		date, err := parseReportDate(field(colBeginDate))
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", line, err)
		}

		e := core.Entry{
			AppTitle:    field(colTitle),
			AppSKU:      field(colSKU),
			AppID:       field(colAppleID),
			Units:       units,
			Proceeds:    proceeds,
			Date:        date,
			CountryCode: field(colCountry),
			Device:      field(colDevice),
			Type:        kind,
		}
		entries = append(entries, e)

		if kind == core.Download || kind == core.Update {
			key := e.AppSKU
			if key == "" {
				key = e.AppTitle
			}
			if _, seen := apps[key]; !seen {
				apps[key] = core.App{
					ID:      e.AppID,
					Name:    e.AppTitle,
					SKU:     e.AppSKU,
					Version: field(colVersion),
				}
			}
		}
	}

	out := make([]core.App, 0, len(apps))
	for _, a := range apps {
		out = append(out, a)
	}
	return entries, out, nil
}

// parseReportDate accepts both date layouts Apple has shipped in sales
// reports.
func parseReportDate(s string) (core.Date, error) {
	for _, layout := range []string{"01/02/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, fmt.Errorf("parse report date %q", s)
}
