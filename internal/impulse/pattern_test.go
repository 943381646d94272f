package impulse

import (
	"testing"

	"wavescan/internal/model"
)

func newTestClassifier(t *testing.T, src model.BarSource, cfg ClassifierConfig) *Classifier {
	t.Helper()
	c, err := NewClassifier(src, cfg)
	if err != nil {
		t.Fatalf("classifier config rejected: %v", err)
	}
	return c
}

func singleDevConfig() ClassifierConfig {
	return ClassifierConfig{
		Deviation:              5,
		DeviationFloor:         5,
		DeviationStep:          1,
		CorrectionAllowancePct: 300,
	}
}

func TestClassifier_ConfigValidation(t *testing.T) {
	s := flatSeries([]int64{10000, 10100})
	cases := []ClassifierConfig{
		{Deviation: 0, DeviationFloor: 1, DeviationStep: 1, CorrectionAllowancePct: 300},
		{Deviation: 5, DeviationFloor: 0, DeviationStep: 1, CorrectionAllowancePct: 300},
		{Deviation: 5, DeviationFloor: 6, DeviationStep: 1, CorrectionAllowancePct: 300},
		{Deviation: 5, DeviationFloor: 5, DeviationStep: 0, CorrectionAllowancePct: 300},
		{Deviation: 5, DeviationFloor: 5, DeviationStep: 1, CorrectionAllowancePct: 0.5},
	}
	for i, cfg := range cases {
		if _, err := NewClassifier(s, cfg); err == nil {
			t.Errorf("case %d: invalid config %+v accepted", i, cfg)
		}
	}
}

func TestClassifier_AcceptsFiveWaveImpulse(t *testing.T) {
	s := flatSeries(fiveWavePath())
	c := newTestClassifier(t, s, singleDevConfig())

	start := pivotAt(s, fwOrigin, model.KindLow)
	end := pivotAt(s, fwWave5End, model.KindHigh)

	ok, ext := c.IsImpulse(start, end, false)
	if !ok {
		t.Fatal("canonical five-wave path must classify as impulse")
	}
	if len(ext) != 6 {
		t.Fatalf("expected 6 confirmed pivots, got %v", ext)
	}
	if ext[0].Price != 10000 || ext[5].Price != 38500 {
		t.Fatalf("pivots must span origin to wave-5 end, got %v", ext)
	}
}

func TestClassifier_ZigzagNeverImpulse(t *testing.T) {
	path := pathPrices(11000,
		leg{10000, 1},
		leg{20000, 3},
		leg{14000, 3},
		leg{22000, 3},
	)
	s := flatSeries(path)

	// Scan a range of deviations: a three-wave shape must fail at all of them.
	c := newTestClassifier(t, s, ClassifierConfig{
		Deviation:              10,
		DeviationFloor:         2,
		DeviationStep:          2,
		CorrectionAllowancePct: 300,
	})

	start := pivotAt(s, 1, model.KindLow)
	end := pivotAt(s, 10, model.KindHigh)
	if ok, _ := c.IsImpulse(start, end, false); ok {
		t.Fatal("zigzag classified as impulse")
	}
	if ok, _ := c.IsImpulse(start, end, true); ok {
		t.Fatal("allowSimple must not admit a three-wave shape")
	}
}

func TestClassifier_OverlapRejected(t *testing.T) {
	// Wave 4 (19000) closes back into wave-1 territory (20000 top).
	path := pathPrices(11000,
		leg{10000, 1},
		leg{20000, 4},
		leg{16200, 4},
		leg{25000, 4},
		leg{19000, 3},
		leg{30000, 4},
	)
	s := flatSeries(path)
	c := newTestClassifier(t, s, singleDevConfig())

	start := pivotAt(s, 1, model.KindLow)
	end := pivotAt(s, 20, model.KindHigh)
	if ok, _ := c.IsImpulse(start, end, false); ok {
		t.Fatal("overlapping wave 4 classified as impulse")
	}
}

func TestClassifier_DurationHarmony(t *testing.T) {
	// Wave 2 takes 8 bars, wave 4 a single bar: ratio 12.5%.
	path := pathPrices(11000,
		leg{10000, 1},
		leg{20000, 4},
		leg{16200, 8},
		leg{32300, 8},
		leg{28500, 1},
		leg{38500, 5},
	)
	s := flatSeries(path)
	start := pivotAt(s, 1, model.KindLow)
	end := pivotAt(s, 27, model.KindHigh)

	strict := singleDevConfig() // allowance 300 → band [33.3%, 300%]
	if ok, _ := newTestClassifier(t, s, strict).IsImpulse(start, end, false); ok {
		t.Fatal("corrections out of duration harmony classified as impulse")
	}

	loose := singleDevConfig()
	loose.CorrectionAllowancePct = 800 // band [12.5%, 800%], boundary inclusive
	if ok, _ := newTestClassifier(t, s, loose).IsImpulse(start, end, false); !ok {
		t.Fatal("ratio exactly at the band edge must pass")
	}
}

func TestClassifier_ThirdWaveShortest(t *testing.T) {
	// l1=10000, l3=5800, l5=6500: wave 3 strictly shortest.
	path := pathPrices(11000,
		leg{10000, 1},
		leg{20000, 4},
		leg{16200, 4},
		leg{22000, 4},
		leg{20500, 4},
		leg{27000, 4},
	)
	s := flatSeries(path)
	start := pivotAt(s, 1, model.KindLow)
	end := pivotAt(s, 21, model.KindHigh)

	if ok, _ := newTestClassifier(t, s, singleDevConfig()).IsImpulse(start, end, false); ok {
		t.Fatal("shortest third wave classified as impulse under the default rule")
	}

	relaxed := singleDevConfig()
	relaxed.AllowShortestThird = true
	if ok, _ := newTestClassifier(t, s, relaxed).IsImpulse(start, end, false); !ok {
		t.Fatal("AllowShortestThird must disable the third-wave rule")
	}
}

func TestClassifier_DegenerateMove(t *testing.T) {
	s := flatSeries(pathPrices(10000, leg{15000, 4}))
	c := newTestClassifier(t, s, singleDevConfig())

	start := pivotAt(s, 0, model.KindLow)
	end := pivotAt(s, 4, model.KindHigh)

	if ok, _ := c.IsImpulse(start, end, true); !ok {
		t.Fatal("plain directional move must pass with allowSimple")
	}
	if ok, _ := c.IsImpulse(start, end, false); ok {
		t.Fatal("plain directional move must fail at the top level")
	}
}

func TestClassifier_RejectsDegenerateInterval(t *testing.T) {
	s := flatSeries(fiveWavePath())
	c := newTestClassifier(t, s, singleDevConfig())

	p := pivotAt(s, 5, model.KindHigh)
	if ok, _ := c.IsImpulse(p, p, true); ok {
		t.Fatal("zero-length interval classified as impulse")
	}

	flat := pivotAt(s, 5, model.KindLow)
	flat.Index = 9
	flat.Price = p.Price
	if ok, _ := c.IsImpulse(p, flat, true); ok {
		t.Fatal("flat interval classified as impulse")
	}
}

func TestClassifier_ScanTerminates(t *testing.T) {
	// A step that doesn't divide the deviation range evenly must still stop.
	s := flatSeries(fiveWavePath())
	c := newTestClassifier(t, s, ClassifierConfig{
		Deviation:              10,
		DeviationFloor:         1,
		DeviationStep:          3,
		CorrectionAllowancePct: 300,
	})
	start := pivotAt(s, fwOrigin, model.KindLow)
	end := pivotAt(s, fwWave5End, model.KindHigh)
	// Result is irrelevant; the call returning at all is the property.
	c.IsImpulse(start, end, false)
}

func TestClassifier_PureAcrossCalls(t *testing.T) {
	s := flatSeries(fiveWavePath())
	c := newTestClassifier(t, s, singleDevConfig())

	start := pivotAt(s, fwOrigin, model.KindLow)
	end := pivotAt(s, fwWave5End, model.KindHigh)

	ok1, ext1 := c.IsImpulse(start, end, false)
	ok2, ext2 := c.IsImpulse(start, end, false)
	if ok1 != ok2 || len(ext1) != len(ext2) {
		t.Fatalf("repeated classification diverged: %v/%v vs %v/%v", ok1, ext1, ok2, ext2)
	}
}
