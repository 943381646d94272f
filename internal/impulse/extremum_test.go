package impulse

import (
	"reflect"
	"testing"
	"time"

	"wavescan/internal/model"
)

func TestFinder_MoveThenFlip(t *testing.T) {
	s := flatSeries([]int64{10000, 10500, 11000, 10400})
	f := NewFinder(s, 5)
	for i := 0; i < s.Len(); i++ {
		f.Update(i)
	}

	ext := f.Extrema()
	if len(ext) != 2 {
		t.Fatalf("expected 2 pivots, got %d: %v", len(ext), ext)
	}
	if ext[0].Kind != model.KindHigh || ext[0].Price != 11000 || ext[0].Index != 2 {
		t.Fatalf("high pivot should have moved to bar 2 @ 11000, got %+v", ext[0])
	}
	if ext[1].Kind != model.KindLow || ext[1].Price != 10400 || ext[1].Index != 3 {
		t.Fatalf("flip should confirm low at bar 3 @ 10400, got %+v", ext[1])
	}
	if f.Direction() != model.Down {
		t.Fatalf("direction should be Down after flip, got %v", f.Direction())
	}
}

func TestFinder_ThresholdBoundary(t *testing.T) {
	// Threshold is price × (1 − dev/100) = 9500 exactly; a touch counts.
	s := flatSeries([]int64{10000, 9500})
	f := NewFinder(s, 5)
	f.Update(0)
	f.Update(1)
	if got := len(f.Extrema()); got != 2 {
		t.Fatalf("low exactly at threshold must flip, got %d pivots", got)
	}

	// One cent above the threshold must not.
	s2 := flatSeries([]int64{10000, 9501})
	f2 := NewFinder(s2, 5)
	f2.Update(0)
	f2.Update(1)
	if got := len(f2.Extrema()); got != 1 {
		t.Fatalf("retrace short of threshold must be a no-op, got %d pivots", got)
	}
}

func TestFinder_SmallRetraceIsNoOp(t *testing.T) {
	s := flatSeries([]int64{10000, 10500, 10300, 10700, 11000})
	f := NewFinder(s, 5)
	for i := 0; i < s.Len(); i++ {
		f.Update(i)
	}
	ext := f.Extrema()
	if len(ext) != 1 {
		t.Fatalf("expected single moving high, got %v", ext)
	}
	if ext[0].Price != 11000 || ext[0].Index != 4 {
		t.Fatalf("high should track the running extreme, got %+v", ext[0])
	}
}

func TestFinder_AlternationAndIncreasingIndices(t *testing.T) {
	s := flatSeries(fiveWavePath())
	f := NewFinder(s, 5)
	for i := 0; i < s.Len(); i++ {
		f.Update(i)
	}

	ext := f.Extrema()
	if len(ext) < 4 {
		t.Fatalf("expected a multi-pivot series, got %v", ext)
	}
	for i := 1; i < len(ext); i++ {
		if ext[i].Kind == ext[i-1].Kind {
			t.Fatalf("pivots %d and %d have the same kind: %v", i-1, i, ext)
		}
		if ext[i].Index <= ext[i-1].Index {
			t.Fatalf("pivot indices must strictly increase: %v", ext)
		}
	}
}

func TestFinder_FiveWavePivots(t *testing.T) {
	s := flatSeries(fiveWavePath())
	f := NewFinder(s, 5)
	for i := 0; i < s.Len(); i++ {
		f.Update(i)
	}

	want := []struct {
		price int64
		kind  model.ExtremumKind
	}{
		{11000, model.KindHigh},
		{10000, model.KindLow},
		{20000, model.KindHigh},
		{16200, model.KindLow},
		{32300, model.KindHigh},
		{28500, model.KindLow},
		{38500, model.KindHigh},
	}
	ext := f.Extrema()
	if len(ext) != len(want) {
		t.Fatalf("expected %d pivots, got %d: %v", len(want), len(ext), ext)
	}
	for i, w := range want {
		if ext[i].Price != w.price || ext[i].Kind != w.kind {
			t.Fatalf("pivot %d: want %d/%v, got %+v", i, w.price, w.kind, ext[i])
		}
	}
}

func TestFinder_Deterministic(t *testing.T) {
	s := flatSeries(fiveWavePath())
	f1 := NewFinder(s, 5)
	f2 := NewFinder(s, 5)
	for i := 0; i < s.Len(); i++ {
		f1.Update(i)
		f2.Update(i)
	}
	if !reflect.DeepEqual(f1.Extrema(), f2.Extrema()) {
		t.Fatalf("same bars, same deviation must give same pivots:\n%v\n%v", f1.Extrema(), f2.Extrema())
	}
}

func TestFindExtrema_MatchesStreaming(t *testing.T) {
	s := flatSeries(fiveWavePath())
	f := NewFinder(s, 5)
	for i := 0; i < s.Len(); i++ {
		f.Update(i)
	}

	seed := pivotAt(s, 0, model.KindHigh)
	batch := FindExtrema(s, 0, s.Len()-1, 5, seed, model.Up, nil)
	if !reflect.DeepEqual(batch, f.Extrema()) {
		t.Fatalf("batch replay must match streaming:\nbatch  %v\nstream %v", batch, f.Extrema())
	}
}

func TestFindExtrema_ReusesBuffer(t *testing.T) {
	s := flatSeries(fiveWavePath())
	seed := pivotAt(s, 0, model.KindHigh)

	buf := make([]model.Extremum, 0, 32)
	out := FindExtrema(s, 0, s.Len()-1, 5, seed, model.Up, buf)
	if len(out) == 0 || &out[0] != &buf[:1][0] {
		t.Fatal("result should reuse the provided backing array")
	}
}

func TestFindExtremaBetween(t *testing.T) {
	s := flatSeries(fiveWavePath())
	seed := pivotAt(s, 0, model.KindHigh)

	full := FindExtrema(s, 0, s.Len()-1, 5, seed, model.Up, nil)
	byTime := FindExtremaBetween(s, testBase, testBase.Add(time.Duration(s.Len()-1)*time.Minute), 5, seed, model.Up)
	if !reflect.DeepEqual(full, byTime) {
		t.Fatalf("time-bounded form disagrees with index form:\n%v\n%v", full, byTime)
	}

	if got := FindExtremaBetween(s, testBase.Add(-time.Hour), testBase.Add(-time.Minute), 5, seed, model.Up); got != nil {
		t.Fatalf("out-of-range bounds should return nil, got %v", got)
	}
}
