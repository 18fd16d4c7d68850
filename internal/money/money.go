// Package money holds integer minor-unit amounts. No floating point anywhere.
package money

import (
	"fmt"
	"math"
	"math/bits"
	"strings"
)

// Amount is a value in the smallest currency unit (cents, sen, rupiah).
type Amount int64

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10000

// DefaultCurrency is the single currency the marketplace settles in.
const DefaultCurrency = "idr"

// MulBps returns a*bps/10000 rounded toward zero.
func (a Amount) MulBps(bps int64) Amount {
	return a.Prorate(Amount(bps), BpsDenominator)
}

// Percent returns a*p/100 rounded toward zero.
func (a Amount) Percent(p int64) Amount {
	return a.Prorate(Amount(p), 100)
}

// Prorate returns a*num/den rounded toward zero. The product is taken in 128
// bits, so only a quotient outside int64 panics. den must be positive.
func (a Amount) Prorate(num, den Amount) Amount {
	if den <= 0 {
		panic("money: non-positive denominator")
	}
	hi, lo := bits.Mul64(magnitude(int64(a)), magnitude(int64(num)))
	if hi >= uint64(den) {
		panic("money: prorate overflows int64")
	}
	q, _ := bits.Div64(hi, lo, uint64(den))
	if (a < 0) != (num < 0) {
		if q > math.MaxInt64+1 {
			panic("money: prorate overflows int64")
		}
		return Amount(-int64(q))
	}
	if q > math.MaxInt64 {
		panic("money: prorate overflows int64")
	}
	return Amount(q)
}

func magnitude(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}

func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

func Max(a, b Amount) Amount {
	if a > b {
		return a
	}
	return b
}

// Sum adds amounts.
func Sum(xs ...Amount) Amount {
	var t Amount
	for _, x := range xs {
		t += x
	}
	return t
}

// Format renders the amount in major units with the currency symbol.
func Format(a Amount, currency string) string {
	cur := strings.ToLower(currency)
	sym := symbol(cur)
	neg := ""
	if a < 0 {
		neg = "-"
		a = -a
	}
	decimals := decimalsFor(cur)
	if decimals == 0 {
		return fmt.Sprintf("%s%s%d", neg, sym, int64(a))
	}
	div := int64(1)
	for i := 0; i < decimals; i++ {
		div *= 10
	}
	return fmt.Sprintf("%s%s%d.%0*d", neg, sym, int64(a)/div, decimals, int64(a)%div)
}

// zero-decimal currencies per ISO 4217 as used by card processors.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true,
	"jpy": true, "kmf": true, "krw": true, "mga": true,
	"pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

func decimalsFor(cur string) int {
	if zeroDecimal[cur] {
		return 0
	}
	return 2
}

func symbol(cur string) string {
	switch cur {
	case "idr":
		return "Rp"
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	case "jpy":
		return "¥"
	case "sgd":
		return "S$"
	default:
		return strings.ToUpper(cur) + " "
	}
}
