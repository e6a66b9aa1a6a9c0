package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Download    EntryType = "download"
	Update      EntryType = "update"
	IAP         EntryType = "iap"
	ReDownload  EntryType = "redownload"
	RestoredIAP EntryType = "restored-iap"
)

type (
	// EntryType is the transaction kind reported per sales report row.
	EntryType string

	// Date is a calendar day with no time component, always UTC.
	Date struct {
		time.Time
	}

	// Entry is a single ingested transaction record. Entries are immutable
	// facts; proceeds are denominated in the owning store's display currency.
	Entry struct {
		AppTitle    string
		AppSKU      string
		AppID       string
		Units       int
		Proceeds    decimal.Decimal
		Date        Date
		CountryCode string
		Device      string
		Type        EntryType
	}

	// App is a catalog entry, related to entries by title/SKU/identifier.
	App struct {
		ID      string
		Name    string
		SKU     string
		Version string
		IconURL string
	}

	// RawDataPoint is the atomic unit of every derived time series.
	RawDataPoint struct {
		Value decimal.Decimal
		Date  Date
	}
)

var (
	ErrInvalidUnits    = errors.New("invalid unit count")
	ErrInvalidProceeds = errors.New("invalid proceeds amount")
	ErrInvalidCountry  = errors.New("invalid country code")
	ErrInvalidType     = errors.New("invalid entry type")
	ErrInvalidMetric   = errors.New("invalid metric")
	ErrEmptyAppTitle   = errors.New("empty app title")
)

// DistantPast is the sentinel latest reporting date of an empty store.
var DistantPast = Date{Time: time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to day granularity in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), int(u.Month()), u.Day())
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is a later day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Equal reports whether d and other are the same day.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// String formats the date as YYYY-MM-DD, the report row format.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (t EntryType) Validate() error {
	switch t {
	case Download, Update, IAP, ReDownload, RestoredIAP:
		return nil
	default:
		return ErrInvalidType
	}
}

func (e Entry) Validate() error {
	if len(strings.TrimSpace(e.AppTitle)) == 0 {
		return ErrEmptyAppTitle
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Units < 0 {
		return ErrInvalidUnits
	}
	if e.Proceeds.IsNegative() {
		return ErrInvalidProceeds
	}
	if len(e.CountryCode) != 2 {
		return ErrInvalidCountry
	}
	return e.Type.Validate()
}

// Matches reports whether the entry belongs to the given app. Matching
// follows identifier first, then SKU, then title, since older reports do
// not carry the numeric identifier.
func (e Entry) Matches(app App) bool {
	if app.ID != "" && e.AppID != "" {
		return e.AppID == app.ID
	}
	if app.SKU != "" && e.AppSKU != "" {
		return e.AppSKU == app.SKU
	}
	return e.AppTitle == app.Name
}
