package market

import "strings"

// Direction is a signal direction.
type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionNeutral Direction = "neutral"
)

// Side is a trade side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order returns the side in the exchange's wire casing.
func (s Side) Order() string {
	return strings.ToUpper(string(s))
}

// Opposite returns the closing side for a position opened on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// SideFor maps a non-neutral signal direction to the entry side.
func SideFor(d Direction) Side {
	if d == DirectionShort {
		return SideSell
	}
	return SideBuy
}
