// Package replay provides a bar replayer that reads historical data from
// SQLite and emits it at configurable speed for backtesting.
package replay

import (
	"context"
	"log"
	"sort"
	"time"

	"wavescan/internal/model"
	sqlitestore "wavescan/internal/store/sqlite"
)

// Replayer reads historical bars from SQLite and replays them
// at a configurable speed multiplier.
type Replayer struct {
	reader *sqlitestore.Reader
}

// New creates a Replayer backed by a SQLite reader.
func New(reader *sqlitestore.Reader) *Replayer {
	return &Replayer{reader: reader}
}

// Run replays all bars for the given instruments, emitting them into outCh.
// speed controls the playback rate: 1.0 = real-time, 10.0 = 10x, 0 = as fast as possible.
// fromTS filters bars to those opened after this Unix timestamp (0 = all).
func (r *Replayer) Run(ctx context.Context, instruments []model.Instrument, fromTS int64, speed float64, outCh chan<- model.Bar) error {
	// Collect all bars across instruments, sorted by open time
	var allBars []model.Bar
	for _, inst := range instruments {
		bars, err := r.reader.ReadBars(inst.Exchange, inst.Token, inst.TF, fromTS)
		if err != nil {
			return err
		}
		allBars = append(allBars, bars...)
	}

	if len(allBars) == 0 {
		log.Println("[replay] no bars found in SQLite")
		return nil
	}

	// Bars from different instruments may be interleaved in time
	sort.SliceStable(allBars, func(i, j int) bool {
		return allBars[i].OpenTS.Before(allBars[j].OpenTS)
	})

	log.Printf("[replay] loaded %d bars across %d instruments, speed=%.1fx", len(allBars), len(instruments), speed)

	var prevTS time.Time
	emitted := 0

	for _, b := range allBars {
		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d bars", emitted)
			return ctx.Err()
		default:
		}

		// Simulate time gaps between bars
		if speed > 0 && !prevTS.IsZero() {
			gap := b.OpenTS.Sub(prevTS)
			if gap > 0 {
				scaledGap := time.Duration(float64(gap) / speed)
				// Cap max sleep to avoid very long waits
				if scaledGap > 5*time.Second {
					scaledGap = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(scaledGap):
				}
			}
		}
		prevTS = b.OpenTS

		outCh <- b
		emitted++
	}

	log.Printf("[replay] completed: %d bars replayed", emitted)
	return nil
}
