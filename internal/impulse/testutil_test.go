package impulse

import (
	"time"

	"wavescan/internal/bars"
	"wavescan/internal/model"
)

var testBase = time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)

// leg describes one linear price move for synthetic paths.
type leg struct {
	to   int64
	bars int
}

// pathPrices interpolates a bar-by-bar price path through successive legs,
// starting from start. Each leg contributes exactly leg.bars bars and lands
// on leg.to precisely.
func pathPrices(start int64, legs ...leg) []int64 {
	prices := []int64{start}
	cur := start
	for _, l := range legs {
		delta := l.to - cur
		for i := 1; i <= l.bars; i++ {
			prices = append(prices, cur+delta*int64(i)/int64(l.bars))
		}
		cur = l.to
	}
	return prices
}

// flatSeries builds a one-minute series of flat bars (O=H=L=C) from a price
// path, in cents.
func flatSeries(prices []int64) *bars.Series {
	s := bars.New(len(prices))
	for i, p := range prices {
		open := testBase.Add(time.Duration(i) * time.Minute)
		s.Append(model.Bar{
			Token: "2885", Exchange: "NSE", TF: 60,
			OpenTS: open, CloseTS: open.Add(time.Minute),
			Open: p, High: p, Low: p, Close: p, Volume: 100,
		})
	}
	return s
}

// pivotAt builds the extremum at a known bar of a flat series.
func pivotAt(s *bars.Series, idx int, kind model.ExtremumKind) model.Extremum {
	b := s.Bar(idx)
	return model.Extremum{Index: idx, Price: b.High, Kind: kind, OpenTS: b.OpenTS, CloseTS: b.CloseTS}
}

// fiveWavePath is the canonical bullish impulse used across the tests:
// a confirmed origin low at bar 1 (10000), then five waves ending at
// bar 25 (38500). Wave pivots land on bars 5, 9, 17, 20 and 25.
func fiveWavePath() []int64 {
	return pathPrices(11000,
		leg{10000, 1}, // origin low
		leg{20000, 4}, // wave 1
		leg{16200, 4}, // wave 2
		leg{32300, 8}, // wave 3
		leg{28500, 3}, // wave 4
		leg{38500, 5}, // wave 5
	)
}

const (
	fwOrigin   = 1  // bar index of the origin low (10000)
	fwWave5End = 25 // bar index of the wave-5 high (38500)
)
