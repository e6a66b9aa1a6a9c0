package core

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

var (
	mockCountries = []string{"US", "DE", "ES", "GB", "IN", "CA", "SE", "NZ"}
	mockDevices   = []string{"Desktop", "iPhone", "iPad"}
	mockTypes     = []EntryType{Download, Update, IAP, ReDownload, RestoredIAP}
)

// MockApp is the catalog entry every mock entry belongs to.
var MockApp = App{
	ID:      "1",
	Name:    "TestApp",
	SKU:     "TestApp",
	Version: "1.2.0",
}

// MockStore generates a deterministic snapshot covering the given number
// of trailing days, ending yesterday. Used by the memory fetcher, examples
// and tests.
func MockStore(days int, seed int64) *Store {
	rng := rand.New(rand.NewSource(seed))
	latest := DateOf(time.Now()).AddDays(-1)

	var entries []Entry
	for i := 0; i < days; i++ {
		day := latest.AddDays(-i)
		rows := 10 + rng.Intn(21)
		for r := 0; r < rows; r++ {
			entries = append(entries, Entry{
				AppTitle:    MockApp.Name,
				AppSKU:      MockApp.SKU,
				AppID:       MockApp.ID,
				Units:       1 + rng.Intn(10),
				Proceeds:    decimal.NewFromFloat(rng.Float64() * 5).Round(2),
				Date:        day,
				CountryCode: mockCountries[rng.Intn(len(mockCountries))],
				Device:      mockDevices[rng.Intn(len(mockDevices))],
				Type:        mockTypes[rng.Intn(len(mockTypes))],
			})
		}
	}
	return NewStore(entries, "USD", []App{MockApp})
}
