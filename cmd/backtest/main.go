// cmd/backtest replays historical bar data from SQLite through a SetupFinder
// to validate detection parameters without live market data.
//
// Usage:
//
//	go run ./cmd/backtest --db=data/bars.db --instruments=instruments.yaml --speed=0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"wavescan/internal/bars"
	"wavescan/internal/impulse"
	"wavescan/internal/model"
	"wavescan/internal/replay"
	"wavescan/internal/scan"
	sqlitestore "wavescan/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from (0=all)")
	dbPath := flag.String("db", "data/bars.db", "Path to SQLite bars database")
	instFile := flag.String("instruments", "instruments.yaml", "Path to instruments YAML")
	flag.Parse()

	instruments, err := scan.LoadInstruments(*instFile)
	if err != nil {
		log.Fatalf("[backtest] instruments load failed: %v", err)
	}

	// Open SQLite
	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	// Build one series + finder per instrument
	type state struct {
		series *bars.Series
		finder *impulse.SetupFinder
	}
	states := make(map[string]*state, len(instruments))
	universe := make([]model.Instrument, 0, len(instruments))
	for _, ic := range instruments {
		series := bars.New(4096)
		finder, err := impulse.NewSetupFinder(series, ic.FinderConfig())
		if err != nil {
			log.Fatalf("[backtest] finder init for %s:%s failed: %v", ic.Exchange, ic.Token, err)
		}
		key := fmt.Sprintf("%s:%s:%d", ic.Exchange, ic.Token, ic.TF)
		states[key] = &state{series: series, finder: finder}
		universe = append(universe, ic.Instrument())
	}

	// Setup context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Create replayer
	replayer := replay.New(reader)
	barCh := make(chan model.Bar, 10000)

	// Replay in background
	go func() {
		if err := replayer.Run(ctx, universe, *fromTS, *speed, barCh); err != nil && ctx.Err() == nil {
			log.Printf("[backtest] replay error: %v", err)
		}
		close(barCh)
	}()

	// Process bars through the finders
	processed := 0
	failures := 0
	counts := map[impulse.EventKind]int{}
	for bar := range barCh {
		key := fmt.Sprintf("%s:%s:%d", bar.Exchange, bar.Token, bar.TF)
		st, ok := states[key]
		if !ok {
			continue
		}
		index := st.series.Append(bar)
		processed++

		ev, err := st.finder.ProcessBar(index)
		if err != nil {
			failures++
			log.Printf("[backtest] %s bar %d failed: %v", key, index, err)
			continue
		}
		if ev == nil {
			continue
		}
		counts[ev.Kind]++
		switch ev.Kind {
		case impulse.EventEnter:
			fmt.Printf("  [%s] ENTER %s @ %d (bar %d) take=%d stop=%d\n",
				bar.CloseTS.Format("15:04:05"), key, ev.Price, ev.Index,
				ev.TakeProfit.Price, ev.StopLoss.Price)
		default:
			fmt.Printf("  [%s] %s %s @ %d (bar %d)\n",
				bar.CloseTS.Format("15:04:05"), ev.Kind, key, ev.Price, ev.Index)
		}
	}

	// Print summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Bars processed:    %-16d ║\n", processed)
	fmt.Printf("║  Entries:           %-16d ║\n", counts[impulse.EventEnter])
	fmt.Printf("║  Take profits:      %-16d ║\n", counts[impulse.EventTakeProfit])
	fmt.Printf("║  Stop losses:       %-16d ║\n", counts[impulse.EventStopLoss])
	fmt.Printf("║  Failed bars:       %-16d ║\n", failures)
	fmt.Println("╚══════════════════════════════════════╝")
}
