package impulse

import (
	"fmt"

	"wavescan/internal/model"
)

// SetupFinderConfig is the per-instrument detection configuration. Validated
// at construction, not reconfigurable mid-stream.
type SetupFinderConfig struct {
	// DeviationPct is the top-level zigzag sensitivity (percent, > 0).
	DeviationPct float64

	// MinorDeviationPct is where the classifier's deviation scan starts.
	// Zero defaults to DeviationPct.
	MinorDeviationPct float64

	// DeviationFloorPct bounds the classifier scan. Zero defaults to
	// MinorDeviationPct (single-deviation validation).
	DeviationFloorPct float64

	// DeviationStepPct is the scan decrement. Zero defaults to 1.
	DeviationStepPct float64

	// CorrectionAllowancePct bounds the wave-2/wave-4 duration ratio (>= 1).
	CorrectionAllowancePct float64

	// StopAllowancePct / TakeAllowancePct shrink the stop-loss and
	// take-profit levels by a fraction of the trigger-to-extreme distance so
	// resolution tolerates noise around the exact pivot prices. Optional.
	StopAllowancePct float64
	TakeAllowancePct float64

	// AllowShortestThird relaxes the third-wave rule, see ClassifierConfig.
	AllowShortestThird bool
}

func (c *SetupFinderConfig) normalize() error {
	if c.DeviationPct <= 0 {
		return fmt.Errorf("impulse: deviation must be > 0, got %v", c.DeviationPct)
	}
	if c.CorrectionAllowancePct < 1 {
		return fmt.Errorf("impulse: correction allowance must be >= 1, got %v", c.CorrectionAllowancePct)
	}
	if c.MinorDeviationPct == 0 {
		c.MinorDeviationPct = c.DeviationPct
	}
	if c.MinorDeviationPct < 0 {
		return fmt.Errorf("impulse: minor deviation must be > 0, got %v", c.MinorDeviationPct)
	}
	if c.DeviationFloorPct == 0 {
		c.DeviationFloorPct = c.MinorDeviationPct
	}
	if c.DeviationStepPct == 0 {
		c.DeviationStepPct = 1
	}
	if c.StopAllowancePct < 0 || c.TakeAllowancePct < 0 {
		return fmt.Errorf("impulse: allowances must be >= 0")
	}
	return nil
}

// EventKind tags the per-bar result of a SetupFinder.
type EventKind int

const (
	EventEnter EventKind = iota + 1
	EventTakeProfit
	EventStopLoss
)

func (k EventKind) String() string {
	switch k {
	case EventEnter:
		return "ENTER"
	case EventTakeProfit:
		return "TAKE_PROFIT"
	case EventStopLoss:
		return "STOP_LOSS"
	}
	return "NONE"
}

// Event is the tagged result of one ProcessBar call. A nil *Event means "no
// signal on this bar". TakeProfit and StopLoss are populated on ENTER events.
type Event struct {
	Kind       EventKind
	Price      int64 // the event's own level, in cents
	Index      int   // bar index the event fired on
	Direction  model.Direction
	TakeProfit model.PriceLevel
	StopLoss   model.PriceLevel
	StartIndex int // bounds of the confirmed impulse
	EndIndex   int
}

type setupKey struct {
	start, end int
}

// SetupFinder is the bar-driven state machine for one instrument and
// timeframe: it advances the zigzag, proposes impulse candidates from recent
// pivots, confirms them through the Classifier, and arms/resolves at most one
// setup at a time. Purely sequential: exactly one ProcessBar call per new
// bar, in order.
type SetupFinder struct {
	src        model.BarSource
	cfg        SetupFinderConfig
	finder     *Finder
	classifier *Classifier
	setup      *model.Setup
	used       map[setupKey]struct{}
}

// NewSetupFinder creates a setup finder over src with the given config.
func NewSetupFinder(src model.BarSource, cfg SetupFinderConfig) (*SetupFinder, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(src, ClassifierConfig{
		Deviation:              cfg.MinorDeviationPct,
		DeviationFloor:         cfg.DeviationFloorPct,
		DeviationStep:          cfg.DeviationStepPct,
		CorrectionAllowancePct: cfg.CorrectionAllowancePct,
		AllowShortestThird:     cfg.AllowShortestThird,
	})
	if err != nil {
		return nil, err
	}
	return &SetupFinder{
		src:        src,
		cfg:        cfg,
		finder:     NewFinder(src, cfg.DeviationPct),
		classifier: classifier,
		used:       make(map[setupKey]struct{}),
	}, nil
}

// Setup returns the active armed setup, or nil while searching.
func (s *SetupFinder) Setup() *model.Setup { return s.setup }

// Extrema exposes the top-level pivot series (read-only) for diagnostics.
func (s *SetupFinder) Extrema() []model.Extremum { return s.finder.Extrema() }

// ProcessBar consumes the bar at index and returns the resulting event, if
// any. Any failure while processing one bar is caught here, the finder state
// is rolled back to what it was before the call, and the bar reports no
// signal, so feeding subsequent bars is always safe.
func (s *SetupFinder) ProcessBar(index int) (ev *Event, err error) {
	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			ev = nil
			err = fmt.Errorf("impulse: bar %d: %v", index, r)
		}
	}()

	s.finder.Update(index)
	if s.setup != nil {
		return s.resolve(index), nil
	}
	return s.search(index), nil
}

type sfSnap struct {
	finder finderSnap
	setup  *model.Setup
	used   map[setupKey]struct{}
}

func (s *SetupFinder) snapshot() sfSnap {
	snap := sfSnap{finder: s.finder.snapshot(), used: make(map[setupKey]struct{}, len(s.used))}
	if s.setup != nil {
		cp := *s.setup
		snap.setup = &cp
	}
	for k := range s.used {
		snap.used[k] = struct{}{}
	}
	return snap
}

func (s *SetupFinder) restore(snap sfSnap) {
	s.finder.restore(snap.finder)
	s.setup = snap.setup
	s.used = snap.used
}

// resolve checks an armed setup against the bar at index. Both levels can be
// struck within a single bar; without intrabar data the conservative reading
// is that the stop was hit first, so stop-loss wins ties.
func (s *SetupFinder) resolve(index int) *Event {
	st := s.setup
	high, low := s.src.High(index), s.src.Low(index)

	var hitTake, hitStop bool
	if st.Direction == model.Up {
		hitTake = high >= st.TakeProfit.Price
		hitStop = low <= st.StopLoss.Price
	} else {
		hitTake = low <= st.TakeProfit.Price
		hitStop = high >= st.StopLoss.Price
	}

	switch {
	case hitStop:
		ev := &Event{
			Kind:       EventStopLoss,
			Price:      st.StopLoss.Price,
			Index:      index,
			Direction:  st.Direction,
			StartIndex: st.StartIndex,
			EndIndex:   st.EndIndex,
		}
		s.setup = nil
		return ev
	case hitTake:
		ev := &Event{
			Kind:       EventTakeProfit,
			Price:      st.TakeProfit.Price,
			Index:      index,
			Direction:  st.Direction,
			StartIndex: st.StartIndex,
			EndIndex:   st.EndIndex,
		}
		s.setup = nil
		return ev
	}
	return nil
}

// search proposes impulse candidates from the confirmed pivots, newest end
// first, and for each end walks start pivots of the opposite kind backward,
// so a fresh retracement can arm the full five-wave move behind it. The first
// candidate that survives every check arms the setup.
func (s *SetupFinder) search(index int) *Event {
	ext := s.finder.Extrema()
	if len(ext) < 2 {
		return nil // insufficient history
	}
	high, low := s.src.High(index), s.src.Low(index)

	for e := len(ext) - 1; e >= 1; e-- {
		for st := e - 1; st >= 0; st -= 2 {
			if ev := s.tryCandidate(ext, st, e, index, high, low); ev != nil {
				return ev
			}
		}
	}
	return nil
}

// tryCandidate runs the full acceptance pipeline for the candidate impulse
// (ext[st] → ext[e]) against the bar at index. Returns the ENTER event when
// the candidate arms, nil otherwise.
func (s *SetupFinder) tryCandidate(ext []model.Extremum, st, e, index int, high, low int64) *Event {
	start, end := ext[st], ext[e]
	if start.Kind == end.Kind || start.Price == end.Price {
		return nil
	}
	dir := model.Up
	if end.Price < start.Price {
		dir = model.Down
	}

	// An impulse that already produced a signal never re-arms.
	if _, ok := s.used[setupKey{start.Index, end.Index}]; ok {
		return nil
	}

	// If anything since the end pivot has left the candidate's range, the
	// take-profit or stop-loss side has effectively fired already.
	lo, hi := start.Price, end.Price
	if lo > hi {
		lo, hi = hi, lo
	}
	for _, p := range ext[e+1:] {
		if p.Price > hi || p.Price < lo {
			return nil
		}
	}
	if high > hi || low < lo {
		return nil
	}

	// The candidate must be an initial move, not the continuation of an
	// older trend.
	if !initialMove(ext, st, e, dir) {
		return nil
	}

	// Trigger band: the bar must have retraced through the 50% level without
	// taking out the origin.
	trig := start.Price + (end.Price-start.Price)/2
	if dir == model.Up {
		if low > trig || low <= start.Price {
			return nil
		}
	} else {
		if high < trig || high >= start.Price {
			return nil
		}
	}

	// Structure confirmation; degenerate two-pivot moves don't qualify at
	// the top level.
	ok, _ := s.classifier.IsImpulse(start, end, false)
	if !ok {
		return nil
	}

	take, stop := s.levels(start, end, trig, dir)
	s.used[setupKey{start.Index, end.Index}] = struct{}{}
	s.setup = &model.Setup{
		StartIndex:   start.Index,
		StartPrice:   start.Price,
		EndIndex:     end.Index,
		EndPrice:     end.Price,
		TriggerLevel: trig,
		TriggerIndex: index,
		Direction:    dir,
		TakeProfit:   take,
		StopLoss:     stop,
	}
	return &Event{
		Kind:       EventEnter,
		Price:      trig,
		Index:      index,
		Direction:  dir,
		TakeProfit: take,
		StopLoss:   stop,
		StartIndex: start.Index,
		EndIndex:   end.Index,
	}
}

// levels derives the resolution levels, pulled toward the trigger by the
// configured allowance fractions of the trigger-to-extreme distances.
func (s *SetupFinder) levels(start, end model.Extremum, trig int64, dir model.Direction) (take, stop model.PriceLevel) {
	takeDist := end.Price - trig
	stopDist := trig - start.Price
	if dir == model.Down {
		takeDist = trig - end.Price
		stopDist = start.Price - trig
	}
	takeOff := allowanceOf(s.cfg.TakeAllowancePct, takeDist)
	stopOff := allowanceOf(s.cfg.StopAllowancePct, stopDist)

	if dir == model.Up {
		take = model.PriceLevel{Price: end.Price - takeOff, Index: end.Index}
		stop = model.PriceLevel{Price: start.Price + stopOff, Index: start.Index}
	} else {
		take = model.PriceLevel{Price: end.Price + takeOff, Index: end.Index}
		stop = model.PriceLevel{Price: start.Price - stopOff, Index: start.Index}
	}
	return take, stop
}

func allowanceOf(pct float64, dist int64) int64 {
	return int64(pct / 100 * float64(dist))
}

// initialMove walks backward through the pivots before the candidate. A prior
// pivot beyond the candidate's start (against the trend) means this move
// continues an older one, unless the path first cleared the candidate's end.
func initialMove(ext []model.Extremum, st, e int, dir model.Direction) bool {
	start, end := ext[st], ext[e]
	for i := st - 1; i >= 0; i-- {
		p := ext[i]
		if dir == model.Up {
			if p.Price > end.Price {
				return true
			}
			if p.Price < start.Price {
				return false
			}
		} else {
			if p.Price < end.Price {
				return true
			}
			if p.Price > start.Price {
				return false
			}
		}
	}
	return true
}
