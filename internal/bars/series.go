// Package bars provides the in-memory bar container the detection core reads
// from. A Series is owned by the host and threaded into the finders, so state
// stays explicit and per-instrument processing trivially parallelizes.
package bars

import (
	"sort"
	"time"

	"wavescan/internal/model"
)

// Series is an append-only sequence of bars for one instrument and timeframe.
// Not safe for concurrent use: each instrument is processed by a single
// goroutine.
type Series struct {
	bars []model.Bar
}

var _ model.BarSource = (*Series)(nil)

// New creates a Series with the given initial capacity.
func New(capacity int) *Series {
	return &Series{bars: make([]model.Bar, 0, capacity)}
}

// Append adds a bar to the end of the series and returns its index.
// Bars must be appended in strictly increasing time order.
func (s *Series) Append(b model.Bar) int {
	s.bars = append(s.bars, b)
	return len(s.bars) - 1
}

// Bar returns the full bar at index i.
func (s *Series) Bar(i int) model.Bar { return s.bars[i] }

// Last returns the most recent bar and true, or a zero bar and false when the
// series is empty.
func (s *Series) Last() (model.Bar, bool) {
	if len(s.bars) == 0 {
		return model.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

func (s *Series) Len() int             { return len(s.bars) }
func (s *Series) High(i int) int64     { return s.bars[i].High }
func (s *Series) Low(i int) int64      { return s.bars[i].Low }
func (s *Series) OpenTime(i int) time.Time  { return s.bars[i].OpenTS }
func (s *Series) CloseTime(i int) time.Time { return s.bars[i].CloseTS }

// IndexOfTime returns the index of the last bar whose open time is not after
// ts, or -1 if the series is empty or ts precedes the first bar.
func (s *Series) IndexOfTime(ts time.Time) int {
	n := sort.Search(len(s.bars), func(i int) bool {
		return s.bars[i].OpenTS.After(ts)
	})
	return n - 1
}
