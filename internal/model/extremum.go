package model

import "time"

// Direction is the trend direction of a price leg.
type Direction int

const (
	Down Direction = -1
	Up   Direction = 1
)

func (d Direction) String() string {
	if d == Up {
		return "UP"
	}
	return "DOWN"
}

// ExtremumKind tells whether a confirmed pivot is a local high or a local low.
type ExtremumKind int8

const (
	KindLow ExtremumKind = iota
	KindHigh
)

func (k ExtremumKind) String() string {
	if k == KindHigh {
		return "HIGH"
	}
	return "LOW"
}

// Extremum is one confirmed local pivot produced by the zigzag extractor.
// Within a single extractor's output, consecutive extrema strictly alternate
// between highs and lows and their indices are strictly increasing. The slice
// holding them is owned by the extractor that produced it; consumers must
// treat entries as read-only.
type Extremum struct {
	Index   int          `json:"index"` // bar index
	Price   int64        `json:"price"` // cents
	Kind    ExtremumKind `json:"kind"`
	OpenTS  time.Time    `json:"open_ts"`
	CloseTS time.Time    `json:"close_ts"`
}

// Wave is a derived leg between two pivots. It is never stored; build one on
// the fly when length or duration is needed.
type Wave struct {
	Start Extremum
	End   Extremum
}

// Length returns the directional length in cents, signed by the trend
// direction: positive when the leg advances with the trend.
func (w Wave) Length(dir Direction) int64 {
	return int64(dir) * (w.End.Price - w.Start.Price)
}

// Duration returns the leg duration measured close-to-close.
func (w Wave) Duration() time.Duration {
	return w.End.CloseTS.Sub(w.Start.CloseTS)
}
