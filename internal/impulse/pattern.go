package impulse

import (
	"fmt"

	"wavescan/internal/model"
)

// ClassifierConfig controls the multi-scale impulse validation.
type ClassifierConfig struct {
	// Deviation is the retracement percent the scan starts from.
	Deviation float64

	// DeviationFloor bounds the scan from below; reaching it without a
	// successful classification is failure, not an error.
	DeviationFloor float64

	// DeviationStep is the decrement between scanned deviations.
	DeviationStep float64

	// CorrectionAllowancePct bounds the wave-4/wave-2 duration ratio: the
	// ratio (as a percentage) must lie within [100·100/a, a] where a is this
	// value. Values below 100 leave an empty band and reject every structure.
	CorrectionAllowancePct float64

	// AllowShortestThird disables the "third wave is rarely shortest" rule.
	// When false (the default), a structure whose third wave is strictly
	// shorter than both the first and the fifth is rejected.
	AllowShortestThird bool
}

func (c *ClassifierConfig) validate() error {
	if c.Deviation <= 0 {
		return fmt.Errorf("impulse: deviation must be > 0, got %v", c.Deviation)
	}
	if c.DeviationFloor <= 0 || c.DeviationFloor > c.Deviation {
		return fmt.Errorf("impulse: deviation floor must be in (0, %v], got %v", c.Deviation, c.DeviationFloor)
	}
	if c.DeviationStep <= 0 {
		return fmt.Errorf("impulse: deviation step must be > 0, got %v", c.DeviationStep)
	}
	if c.CorrectionAllowancePct < 1 {
		return fmt.Errorf("impulse: correction allowance must be >= 1, got %v", c.CorrectionAllowancePct)
	}
	return nil
}

// Classifier decides whether the move between two pivots is a valid five-wave
// impulse, re-extracting extrema over the interval at a descending sequence
// of deviations and accepting the first one that validates.
//
// Classification is a pure function of (interval, deviation, config): the
// Classifier mutates no instance state, so recursive sub-wave calls are safe.
type Classifier struct {
	src model.BarSource
	cfg ClassifierConfig
}

// NewClassifier creates a classifier over src. The config is validated here;
// it is not reconfigurable afterwards.
func NewClassifier(src model.BarSource, cfg ClassifierConfig) (*Classifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Classifier{src: src, cfg: cfg}, nil
}

// IsImpulse reports whether the move from start to end is a valid impulse.
// allowSimple admits an unsubdivided directional move (two pivots) as a
// degenerate impulse, wanted for sub-waves but not for top-level candidates.
// On success the six confirmed pivots are returned for diagnostics.
func (c *Classifier) IsImpulse(start, end model.Extremum, allowSimple bool) (bool, []model.Extremum) {
	return c.scan(start, end, c.cfg.Deviation, allowSimple)
}

// scan walks deviations from fromDev down to the floor. Each recursion into a
// sub-wave starts one step finer and covers a strictly shorter interval, so
// the search always terminates.
func (c *Classifier) scan(start, end model.Extremum, fromDev float64, allowSimple bool) (bool, []model.Extremum) {
	for dev := fromDev; dev >= c.cfg.DeviationFloor; dev -= c.cfg.DeviationStep {
		if ok, ext := c.classifyAt(start, end, dev, allowSimple); ok {
			return true, ext
		}
	}
	return false, nil
}

// classifyAt runs the full rule set at one fixed deviation.
func (c *Classifier) classifyAt(start, end model.Extremum, dev float64, allowSimple bool) (bool, []model.Extremum) {
	if end.Index <= start.Index || end.Price == start.Price {
		return false, nil
	}

	dir := model.Up
	seedKind := model.KindLow
	if end.Price < start.Price {
		dir = model.Down
		seedKind = model.KindHigh
	}
	seed := start
	seed.Kind = seedKind

	ext := FindExtrema(c.src, start.Index, end.Index, dev, seed, dir, nil)

	// The replay must terminate exactly on the candidate's end pivot; a
	// mismatch means the interval is still mid-correction at this scale.
	last := ext[len(ext)-1]
	if last.Index != end.Index || last.Price != end.Price {
		return false, nil
	}

	switch n := len(ext); {
	case n == 2:
		// Plain directional move with no internal subdivision.
		return allowSimple, ext
	case n == 4:
		// Three-wave zigzag, never an impulse.
		return false, nil
	case n != 6:
		// Extra subdivision at this scale; the caller's scan moves on.
		return false, nil
	}

	if !c.validGeometry(ext, dir) {
		return false, nil
	}

	// Waves 1, 3 and 5 must themselves be impulses or plain moves, checked
	// one scale finer (clamped at the floor).
	subDev := dev - c.cfg.DeviationStep
	if subDev < c.cfg.DeviationFloor {
		subDev = c.cfg.DeviationFloor
	}
	for _, w := range [3][2]int{{0, 1}, {2, 3}, {4, 5}} {
		ws, we := ext[w[0]], ext[w[1]]
		if we.Index-ws.Index <= 1 {
			continue // single-leg bars cannot subdivide
		}
		if ok, _ := c.scan(ws, we, subDev, true); !ok {
			return false, nil
		}
	}
	return true, ext
}

// validGeometry applies the fixed-shape impulse rules to six pivots
// (origin plus five wave ends).
func (c *Classifier) validGeometry(ext []model.Extremum, dir model.Direction) bool {
	// Overlap rule: wave 4 must not close back into wave-1 territory.
	if dir == model.Up {
		if ext[4].Price <= ext[1].Price {
			return false
		}
	} else {
		if ext[4].Price >= ext[1].Price {
			return false
		}
	}

	// Motive waves need strictly positive directional length.
	l1 := model.Wave{Start: ext[0], End: ext[1]}.Length(dir)
	l3 := model.Wave{Start: ext[2], End: ext[3]}.Length(dir)
	l5 := model.Wave{Start: ext[4], End: ext[5]}.Length(dir)
	if l1 <= 0 || l3 <= 0 || l5 <= 0 {
		return false
	}

	// Duration harmony between the two corrections.
	d2 := model.Wave{Start: ext[1], End: ext[2]}.Duration()
	d4 := model.Wave{Start: ext[3], End: ext[4]}.Duration()
	if d2 <= 0 || d4 <= 0 {
		return false
	}
	ratioPct := 100 * float64(d4) / float64(d2)
	a := c.cfg.CorrectionAllowancePct
	if ratioPct < 100*100/a || ratioPct > a {
		return false
	}

	// Third wave is rarely the shortest.
	if !c.cfg.AllowShortestThird && l3 < l1 && l3 < l5 {
		return false
	}
	return true
}
