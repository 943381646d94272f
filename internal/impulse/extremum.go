// Package impulse implements five-wave impulse detection over price bars: a
// streaming zigzag extremum extractor, a recursive multi-scale pattern
// classifier, and a per-instrument setup state machine that arms, confirms
// and resolves trade entries.
//
// The package does no I/O. Hosts feed bar indices in strictly increasing
// order and consume the tagged per-bar events.
package impulse

import (
	"time"

	"wavescan/internal/model"
)

// Finder is the streaming zigzag extremum extractor. It tracks the current
// extremum, the trend direction and the series of confirmed pivots.
//
// Feeding the same bar sequence at the same deviation always reproduces the
// same pivot series. The per-bar step is O(1) amortized, cheap enough to run
// on every tick against a forming bar.
type Finder struct {
	src       model.BarSource
	deviation float64 // percent, > 0
	dir       model.Direction
	series    []model.Extremum
	started   bool
}

// NewFinder creates a streaming extremum finder over src. deviationPct is the
// minimum retracement (percent of the current extremum price) required to
// confirm a reversal.
func NewFinder(src model.BarSource, deviationPct float64) *Finder {
	return &Finder{src: src, deviation: deviationPct}
}

// Extrema returns the confirmed pivot series. The slice is owned by the
// Finder; callers must treat it as read-only.
func (f *Finder) Extrema() []model.Extremum { return f.series }

// Direction returns the current trend direction.
func (f *Finder) Direction() model.Direction { return f.dir }

// Update advances the zigzag by one bar. If price continues in the trend
// direction past the tracked extremum, the extremum moves forward (the last
// entry is replaced). If price retraces past the deviation threshold
// price × (1 ± dev/100), a pivot of the opposite kind is confirmed and the
// trend flips. Anything else is a no-op.
func (f *Finder) Update(index int) {
	high, low := f.src.High(index), f.src.Low(index)

	if !f.started {
		f.dir = model.Up
		f.series = append(f.series, f.pivot(index, high, model.KindHigh))
		f.started = true
		return
	}

	last := &f.series[len(f.series)-1]
	switch f.dir {
	case model.Up:
		if last.Kind != model.KindHigh {
			// First bar after a seeded low: open the new up leg.
			f.series = append(f.series, f.pivot(index, high, model.KindHigh))
			return
		}
		if high >= last.Price {
			*last = f.pivot(index, high, model.KindHigh) // move
		} else if float64(low) <= threshold(last.Price, -f.deviation) {
			f.series = append(f.series, f.pivot(index, low, model.KindLow)) // flip
			f.dir = model.Down
		}
	case model.Down:
		if last.Kind != model.KindLow {
			f.series = append(f.series, f.pivot(index, low, model.KindLow))
			return
		}
		if low <= last.Price {
			*last = f.pivot(index, low, model.KindLow)
		} else if float64(high) >= threshold(last.Price, f.deviation) {
			f.series = append(f.series, f.pivot(index, high, model.KindHigh))
			f.dir = model.Up
		}
	}
}

func (f *Finder) pivot(index int, price int64, kind model.ExtremumKind) model.Extremum {
	return model.Extremum{
		Index:   index,
		Price:   price,
		Kind:    kind,
		OpenTS:  f.src.OpenTime(index),
		CloseTS: f.src.CloseTime(index),
	}
}

// threshold returns price × (1 + pct/100); pct is negative for a downward
// retracement level.
func threshold(price int64, pct float64) float64 {
	return float64(price) * (1 + pct/100)
}

// finderSnap captures a Finder's full state for the per-bar failure boundary.
type finderSnap struct {
	dir     model.Direction
	started bool
	series  []model.Extremum
}

func (f *Finder) snapshot() finderSnap {
	return finderSnap{
		dir:     f.dir,
		started: f.started,
		series:  append([]model.Extremum(nil), f.series...),
	}
}

func (f *Finder) restore(s finderSnap) {
	f.dir = s.dir
	f.started = s.started
	f.series = s.series
}

// FindExtrema replays the zigzag over bars (startIdx, endIdx] at the given
// deviation, seeded with an explicit first pivot and trend direction. It is a
// pure function of its arguments and shares no state with any streaming
// Finder, so nested classifier calls at different scales never interfere.
// buf, when non-nil, is reused as the backing array for the result.
func FindExtrema(src model.BarSource, startIdx, endIdx int, deviationPct float64,
	seed model.Extremum, dir model.Direction, buf []model.Extremum) []model.Extremum {

	f := Finder{
		src:       src,
		deviation: deviationPct,
		dir:       dir,
		started:   true,
		series:    append(buf[:0], seed),
	}
	for i := startIdx + 1; i <= endIdx; i++ {
		f.Update(i)
	}
	return f.series
}

// FindExtremaBetween is the time-bounded batch form of FindExtrema, resolving
// both bounds through the source's time→index lookup.
func FindExtremaBetween(src model.BarSource, startTS, endTS time.Time, deviationPct float64,
	seed model.Extremum, dir model.Direction) []model.Extremum {

	start := src.IndexOfTime(startTS)
	end := src.IndexOfTime(endTS)
	if start < 0 || end < start {
		return nil
	}
	return FindExtrema(src, start, end, deviationPct, seed, dir, nil)
}
