package currency

import "github.com/shopspring/decimal"

// Supported lists the display currencies exposed to configuration.
var Supported = []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD", "CHF", "SEK", "NZD", "INR"}

// IsSupported reports whether code is a known display currency.
func IsSupported(code string) bool {
	for _, c := range Supported {
		if c == code {
			return true
		}
	}
	return false
}

// seedRates is the built-in table, expressed as USD to target. Reverse
// and cross-currency lookups are derived at resolution time.
var seedRates = map[pair]decimal.Decimal{
	{from: "USD", to: "EUR"}: decimal.RequireFromString("0.92"),
	{from: "USD", to: "GBP"}: decimal.RequireFromString("0.79"),
	{from: "USD", to: "JPY"}: decimal.RequireFromString("147.2"),
	{from: "USD", to: "CAD"}: decimal.RequireFromString("1.36"),
	{from: "USD", to: "AUD"}: decimal.RequireFromString("1.52"),
	{from: "USD", to: "CHF"}: decimal.RequireFromString("0.88"),
	{from: "USD", to: "SEK"}: decimal.RequireFromString("10.45"),
	{from: "USD", to: "NZD"}: decimal.RequireFromString("1.63"),
	{from: "USD", to: "INR"}: decimal.RequireFromString("83.1"),
}
