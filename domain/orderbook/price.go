package orderbook

import "github.com/shopspring/decimal"

// Price is an integer number of ticks. Book state never holds a floating
// point price.
type Price int64

// TickScale is the number of fractional decimal digits represented by one
// tick, e.g. 2 for cent ticks.
type TickScale int32

// DefaultScale matches the two-decimal quotes of the source feed.
const DefaultScale TickScale = 2

// FromDecimal rounds d to the nearest tick, ties away from zero.
func (s TickScale) FromDecimal(d decimal.Decimal) Price {
	return Price(d.Shift(int32(s)).Round(0).IntPart())
}

// ToDecimal is the inverse scaling. Display only.
func (s TickScale) ToDecimal(p Price) decimal.Decimal {
	return decimal.New(int64(p), -int32(s))
}

// Format renders p with exactly s fractional digits.
func (s TickScale) Format(p Price) string {
	return s.ToDecimal(p).StringFixed(int32(s))
}

// Quantity is stored as received; the only operation on it is the zero test.
type Quantity float64

// zeroTolerance is float64 machine epsilon. In practice only an exact zero
// (or a negative value) passes the test.
const zeroTolerance = 0x1p-52

// IsZero reports whether q removes its level.
func (q Quantity) IsZero() bool {
	return float64(q) <= zeroTolerance
}

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Level is the book state at one price.
type Level struct {
	Price Price
	Qty   Quantity
}
