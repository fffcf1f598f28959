package card

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currencies Stripe charges in whole units.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

func exponent(currency string) int32 {
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// toMinor converts a major-unit amount into Stripe's integer amount.
func toMinor(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(exponent(currency)).Round(0).IntPart()
}

func fromMinor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -exponent(currency))
}
