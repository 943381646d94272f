// Package scan hosts the live impulse scanner: it wires bar intake, the
// per-instrument detection state machines and the signal outputs.
package scan

import (
	"fmt"
	"os"

	"wavescan/internal/impulse"
	"wavescan/internal/model"

	"gopkg.in/yaml.v3"
)

// InstrumentConfig is one entry of the instruments YAML file: the instrument
// identity plus its detection parameters.
type InstrumentConfig struct {
	Token    string `yaml:"token"`
	Exchange string `yaml:"exchange"`
	TF       int    `yaml:"tf"`

	DeviationPct           float64 `yaml:"deviation_pct"`
	MinorDeviationPct      float64 `yaml:"minor_deviation_pct"`
	DeviationFloorPct      float64 `yaml:"deviation_floor_pct"`
	DeviationStepPct       float64 `yaml:"deviation_step_pct"`
	CorrectionAllowancePct float64 `yaml:"correction_allowance_pct"`
	StopAllowancePct       float64 `yaml:"stop_allowance_pct"`
	TakeAllowancePct       float64 `yaml:"take_allowance_pct"`
	AllowShortestThird     bool    `yaml:"allow_shortest_third"`
}

// Instrument returns the identity part of the entry.
func (ic *InstrumentConfig) Instrument() model.Instrument {
	return model.Instrument{
		Token:    ic.Token,
		Exchange: ic.Exchange,
		TF:       ic.TF,
	}
}

// FinderConfig maps the YAML entry onto the detection configuration.
func (ic *InstrumentConfig) FinderConfig() impulse.SetupFinderConfig {
	return impulse.SetupFinderConfig{
		DeviationPct:           ic.DeviationPct,
		MinorDeviationPct:      ic.MinorDeviationPct,
		DeviationFloorPct:      ic.DeviationFloorPct,
		DeviationStepPct:       ic.DeviationStepPct,
		CorrectionAllowancePct: ic.CorrectionAllowancePct,
		StopAllowancePct:       ic.StopAllowancePct,
		TakeAllowancePct:       ic.TakeAllowancePct,
		AllowShortestThird:     ic.AllowShortestThird,
	}
}

type instrumentsFile struct {
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// LoadInstruments reads and validates the instruments YAML file.
func LoadInstruments(path string) ([]InstrumentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments: %w", err)
	}

	var f instrumentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instruments: %w", err)
	}
	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("instruments file %s: no instruments", path)
	}

	seen := make(map[string]struct{}, len(f.Instruments))
	for i := range f.Instruments {
		ic := &f.Instruments[i]
		if err := ic.validate(); err != nil {
			return nil, fmt.Errorf("instrument %d (%s:%s): %w", i, ic.Exchange, ic.Token, err)
		}
		key := fmt.Sprintf("%s:%s:%d", ic.Exchange, ic.Token, ic.TF)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate instrument %s", key)
		}
		seen[key] = struct{}{}
	}
	return f.Instruments, nil
}

func (ic *InstrumentConfig) validate() error {
	if ic.Token == "" || ic.Exchange == "" {
		return fmt.Errorf("token and exchange are required")
	}
	if ic.TF <= 0 {
		return fmt.Errorf("tf must be positive, got %d", ic.TF)
	}
	if ic.DeviationPct <= 0 {
		return fmt.Errorf("deviation_pct must be positive, got %g", ic.DeviationPct)
	}
	if ic.MinorDeviationPct < 0 || ic.DeviationFloorPct < 0 || ic.DeviationStepPct < 0 {
		return fmt.Errorf("deviation parameters must not be negative")
	}
	if ic.DeviationFloorPct > ic.DeviationPct {
		return fmt.Errorf("deviation_floor_pct %g exceeds deviation_pct %g", ic.DeviationFloorPct, ic.DeviationPct)
	}
	if ic.CorrectionAllowancePct < 1 {
		return fmt.Errorf("correction_allowance_pct must be >= 1, got %g", ic.CorrectionAllowancePct)
	}
	if ic.StopAllowancePct < 0 || ic.StopAllowancePct >= 100 {
		return fmt.Errorf("stop_allowance_pct must be in [0,100), got %g", ic.StopAllowancePct)
	}
	if ic.TakeAllowancePct < 0 || ic.TakeAllowancePct >= 100 {
		return fmt.Errorf("take_allowance_pct must be in [0,100), got %g", ic.TakeAllowancePct)
	}
	return nil
}
