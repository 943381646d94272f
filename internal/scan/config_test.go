package scan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeInstruments(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadInstruments(t *testing.T) {
	path := writeInstruments(t, `
instruments:
  - token: "2885"
    exchange: NSE
    tf: 60
    deviation_pct: 5
    correction_allowance_pct: 300
  - token: "11536"
    exchange: NSE
    tf: 300
    deviation_pct: 3
    minor_deviation_pct: 2
    deviation_floor_pct: 1
    deviation_step_pct: 0.5
    correction_allowance_pct: 200
    stop_allowance_pct: 2
    take_allowance_pct: 5
    allow_shortest_third: true
`)
	got, err := LoadInstruments(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(got))
	}

	first := got[0]
	inst := first.Instrument()
	if inst.Key() != "NSE:2885" || inst.TF != 60 {
		t.Fatalf("instrument identity wrong: %+v", inst)
	}
	fc := first.FinderConfig()
	if fc.DeviationPct != 5 || fc.CorrectionAllowancePct != 300 {
		t.Fatalf("finder config not carried through: %+v", fc)
	}

	second := got[1]
	if !second.AllowShortestThird || second.StopAllowancePct != 2 || second.TakeAllowancePct != 5 {
		t.Fatalf("optional fields not parsed: %+v", second)
	}
}

func TestLoadInstruments_Errors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty file", "", "no instruments"},
		{"bad yaml", "instruments: [", "parse instruments"},
		{"missing token", `
instruments:
  - exchange: NSE
    tf: 60
    deviation_pct: 5
    correction_allowance_pct: 300
`, "token and exchange"},
		{"zero tf", `
instruments:
  - token: "2885"
    exchange: NSE
    deviation_pct: 5
    correction_allowance_pct: 300
`, "tf must be positive"},
		{"zero deviation", `
instruments:
  - token: "2885"
    exchange: NSE
    tf: 60
    correction_allowance_pct: 300
`, "deviation_pct must be positive"},
		{"floor above deviation", `
instruments:
  - token: "2885"
    exchange: NSE
    tf: 60
    deviation_pct: 2
    deviation_floor_pct: 3
    correction_allowance_pct: 300
`, "deviation_floor_pct"},
		{"allowance below one", `
instruments:
  - token: "2885"
    exchange: NSE
    tf: 60
    deviation_pct: 5
    correction_allowance_pct: 0.5
`, "correction_allowance_pct"},
		{"stop allowance out of range", `
instruments:
  - token: "2885"
    exchange: NSE
    tf: 60
    deviation_pct: 5
    correction_allowance_pct: 300
    stop_allowance_pct: 100
`, "stop_allowance_pct"},
		{"duplicate instrument", `
instruments:
  - token: "2885"
    exchange: NSE
    tf: 60
    deviation_pct: 5
    correction_allowance_pct: 300
  - token: "2885"
    exchange: NSE
    tf: 60
    deviation_pct: 3
    correction_allowance_pct: 200
`, "duplicate instrument"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeInstruments(t, tc.body)
			_, err := LoadInstruments(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}

	if _, err := LoadInstruments(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file must error")
	}
}
