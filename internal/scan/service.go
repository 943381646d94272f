package scan

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"wavescan/config"
	"wavescan/internal/bars"
	"wavescan/internal/feed"
	"wavescan/internal/impulse"
	"wavescan/internal/logger"
	"wavescan/internal/markethours"
	"wavescan/internal/metrics"
	"wavescan/internal/model"
	"wavescan/internal/notification"
	"wavescan/internal/ringbuf"
	redisstore "wavescan/internal/store/redis"
	sqlitestore "wavescan/internal/store/sqlite"
)

// instrumentState is the per-instrument detection state: the bar series and
// the setup finder reading from it. Touched only by the process loop.
type instrumentState struct {
	cfg    InstrumentConfig
	series *bars.Series
	finder *impulse.SetupFinder

	lastOpenTS time.Time // in-order fence
}

func stateKey(exchange, token string, tf int) string {
	return fmt.Sprintf("%s:%s:%d", exchange, token, tf)
}

// Service is the top-level orchestrator for the live scanner.
// It wires bar intake, the per-instrument finders, and the signal outputs.
type Service struct {
	cfg         *config.Config
	instruments []InstrumentConfig

	states map[string]*instrumentState

	redisReader *redisstore.Reader
	redisWriter *redisstore.Writer
	barWriter   *sqlitestore.Writer
	journal     *sqlitestore.Journal
	backfill    *feed.Backfill
	notifier    notification.Notifier
	webhook     *notification.WebhookNotifier
	prom        *metrics.Metrics

	streams   []string
	barCh     chan model.Bar
	persistCh chan model.Bar
}

// New creates a Service from the given configuration. It connects to Redis
// and SQLite and builds one SetupFinder per instrument.
func New(cfg *config.Config, instruments []InstrumentConfig) (*Service, error) {
	svc := &Service{
		cfg:         cfg,
		instruments: instruments,
		states:      make(map[string]*instrumentState, len(instruments)),
		prom:        metrics.NewMetrics(),
		barCh:       make(chan model.Bar, 5000),
		persistCh:   make(chan model.Bar, 5000),
	}

	for _, ic := range instruments {
		series := bars.New(4096)
		finder, err := impulse.NewSetupFinder(series, ic.FinderConfig())
		if err != nil {
			return nil, fmt.Errorf("scan: instrument %s:%s: %w", ic.Exchange, ic.Token, err)
		}
		key := stateKey(ic.Exchange, ic.Token, ic.TF)
		svc.states[key] = &instrumentState{cfg: ic, series: series, finder: finder}
		svc.streams = append(svc.streams, redisstore.BarStream(ic.TF, ic.Exchange, ic.Token))
	}

	// ---- Connect to Redis ----
	var err error
	if cfg.FeedMode == "redis" {
		svc.redisReader, err = redisstore.NewReader(redisstore.ReaderConfig{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			ConsumerGroup: cfg.ConsumerGroup,
			ConsumerName:  cfg.ConsumerName,
		})
		if err != nil {
			return nil, err
		}
	}

	svc.redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		if svc.redisReader != nil {
			svc.redisReader.Close()
		}
		return nil, err
	}

	// ---- Open SQLite ----
	os.MkdirAll("data", 0o755)
	svc.barWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Printf("[scan] WARNING: sqlite writer init failed: %v (bars will not be persisted)", err)
	}
	svc.journal, err = sqlitestore.NewJournal(cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("scan: journal: %w", err)
	}

	if cfg.BackfillURL != "" {
		svc.backfill = feed.NewBackfill(feed.BackfillConfig{BaseURL: cfg.BackfillURL})
	}

	svc.notifier, svc.webhook = buildNotifiers(cfg)
	return svc, nil
}

// buildNotifiers assembles the human-facing notifier chain. The webhook is
// kept aside so it can receive the structured signal, not just the rendered
// alert.
func buildNotifiers(cfg *config.Config) (notification.Notifier, *notification.WebhookNotifier) {
	var webhook *notification.WebhookNotifier
	if cfg.WebhookURL != "" {
		webhook = notification.NewWebhookNotifier(cfg.WebhookURL)
	}

	var backends []notification.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if len(backends) == 0 {
		return notification.NewLogNotifier(), webhook
	}
	return notification.NewMultiNotifier(backends...), webhook
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	log.Println("[scan] starting impulse scanner...")

	// ---- Warm up from REST history ----
	svc.warmup(ctx)

	// ---- Start intake ----
	switch cfg.FeedMode {
	case "redis":
		svc.catchUp(ctx)
		if err := svc.redisReader.EnsureConsumerGroup(ctx, svc.streams); err != nil {
			log.Printf("[scan] WARNING: consumer group setup: %v", err)
		}
		if err := svc.redisReader.RecoverPending(ctx, svc.streams, svc.barCh); err != nil {
			log.Printf("[scan] pending recovery error: %v", err)
		}
		go func() {
			if err := svc.redisReader.ConsumeBars(ctx, svc.streams, svc.barCh); err != nil && ctx.Err() == nil {
				log.Printf("[scan] consumer error: %v", err)
			}
		}()
	case "ws":
		if err := svc.startWSFeed(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("scan: unknown feed mode %q", cfg.FeedMode)
	}

	// ---- Start subsystems ----
	if svc.barWriter != nil {
		go svc.barWriter.Run(ctx, svc.persistCh)
	}
	go svc.processLoop(ctx)
	svc.prom.StartServer(ctx, cfg.MetricsAddr, svc.healthChecks())

	// ---- Startup banner ----
	log.Println("[scan] ╔════════════════════════════════════════════════════════╗")
	log.Println("[scan] ║  Impulse Scanner Active                                ║")
	log.Println("[scan] ║                                                        ║")
	log.Printf("[scan] ║  [%s feed] → [SetupFinder] → [journal+publish]    ║", cfg.FeedMode)
	log.Printf("[scan] ║  Instruments: %d                                       ║", len(svc.instruments))
	log.Println("[scan] ╚════════════════════════════════════════════════════════╝")
	log.Printf("[scan] %s", markethours.StatusString(time.Now()))
	log.Println("[scan] ✅ all systems running. Press Ctrl+C to stop.")

	<-ctx.Done()

	svc.shutdown()
	return nil
}

// startWSFeed starts the WebSocket reader pushing into an SPSC ring and a
// drain goroutine feeding the process loop. The ring isolates the read loop
// from slow bar processing without locks.
func (svc *Service) startWSFeed(ctx context.Context) error {
	ing, err := feed.NewWS(feed.WSConfig{URL: svc.cfg.FeedWSURL})
	if err != nil {
		return fmt.Errorf("scan: ws feed: %w", err)
	}
	ing.OnReconnect = func() {
		svc.prom.FeedReconnects.Inc()
	}

	ring := ringbuf.New(8192)
	ringCh := make(chan model.Bar, 1)
	go func() {
		if err := ing.Start(ctx, ringCh); err != nil && ctx.Err() == nil {
			log.Printf("[scan] ws feed error: %v", err)
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-ringCh:
				if !ring.Push(b) {
					svc.prom.BarsDropped.Inc()
				}
			}
		}
	}()
	go func() {
		for {
			b, ok := ring.Pop()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Millisecond):
				}
				continue
			}
			select {
			case svc.barCh <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// catchUp replays stream entries published while the scanner was down,
// starting after the stream ID matching the last persisted bar. Runs before
// live consumption so the process loop sees one ordered stream; the in-order
// fence drops any overlap with backfilled history.
func (svc *Service) catchUp(ctx context.Context) {
	if svc.redisReader == nil || svc.barWriter == nil {
		return
	}
	for _, st := range svc.orderedStates() {
		stream := redisstore.BarStream(st.cfg.TF, st.cfg.Exchange, st.cfg.Token)
		startID := "0"
		if last, err := svc.barWriter.GetLastTimestamp(st.cfg.Exchange, st.cfg.Token, st.cfg.TF); err == nil && last > 0 {
			startID = fmt.Sprintf("%d-0", last*1000) // stream IDs carry ms timestamps
		}

		replayCh := make(chan model.Bar, 256)
		done := make(chan struct{})
		go func() {
			for b := range replayCh {
				svc.processBar(ctx, b)
			}
			close(done)
		}()
		if _, err := svc.redisReader.ReplayFromID(ctx, stream, startID, replayCh); err != nil {
			log.Printf("[scan] stream catch-up %s: %v", stream, err)
		}
		close(replayCh)
		<-done
	}
}

// warmup pre-loads history via the REST backfill endpoint so setups can arm
// from the first live bar.
func (svc *Service) warmup(ctx context.Context) {
	if svc.backfill == nil {
		return
	}
	for _, st := range svc.orderedStates() {
		after := time.Time{}
		if svc.barWriter != nil {
			if last, err := svc.barWriter.GetLastTimestamp(st.cfg.Exchange, st.cfg.Token, st.cfg.TF); err == nil && last > 0 {
				after = time.Unix(last, 0).UTC()
			}
		}
		hist, err := svc.backfill.FetchBars(ctx, st.cfg.Instrument(), after)
		if err != nil {
			log.Printf("[scan] backfill %s:%s failed: %v", st.cfg.Exchange, st.cfg.Token, err)
			continue
		}
		for _, b := range hist {
			svc.processBar(ctx, b)
		}
	}
}

// orderedStates returns instrument states in config order for deterministic
// warmup and shutdown logging.
func (svc *Service) orderedStates() []*instrumentState {
	out := make([]*instrumentState, 0, len(svc.states))
	for _, ic := range svc.instruments {
		out = append(out, svc.states[stateKey(ic.Exchange, ic.Token, ic.TF)])
	}
	return out
}

// processLoop consumes bars strictly in order on a single goroutine.
func (svc *Service) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-svc.barCh:
			if !ok {
				return
			}
			svc.processBar(ctx, bar)
		}
	}
}

// processBar routes one finalized bar to its instrument state, advances the
// finder, and emits any resulting signal.
func (svc *Service) processBar(ctx context.Context, bar model.Bar) {
	st, ok := svc.states[stateKey(bar.Exchange, bar.Token, bar.TF)]
	if !ok {
		return // not in our universe
	}
	if svc.cfg.SessionOnly && !markethours.IsMarketOpen(bar.OpenTS) {
		svc.prom.BarsDropped.Inc()
		return
	}
	if !st.lastOpenTS.IsZero() && !bar.OpenTS.After(st.lastOpenTS) {
		return // duplicate or out-of-order delivery
	}
	st.lastOpenTS = bar.OpenTS

	start := time.Now()
	index := st.series.Append(bar)
	svc.prom.BarsTotal.Inc()
	if svc.barWriter != nil {
		select {
		case svc.persistCh <- bar:
		default:
			log.Printf("[scan] persist channel full, dropping bar %s", bar.Key())
		}
	}

	ev, err := st.finder.ProcessBar(index)
	svc.prom.BarProcessDur.Observe(time.Since(start).Seconds())
	svc.prom.PivotsTracked.WithLabelValues(bar.Key()).Set(float64(len(st.finder.Extrema())))
	if err != nil {
		svc.prom.BarFailures.Inc()
		log.Printf("[scan] %s bar %d failed: %v", bar.Key(), index, err)
		return
	}
	if ev == nil {
		return
	}

	switch ev.Kind {
	case impulse.EventEnter:
		svc.prom.ActiveSetups.Inc()
	case impulse.EventTakeProfit, impulse.EventStopLoss:
		svc.prom.ActiveSetups.Dec()
	}

	sig := svc.toSignal(st, ev)
	svc.emit(ctx, sig)
}

// toSignal converts a finder event into the host-facing signal record.
func (svc *Service) toSignal(st *instrumentState, ev *impulse.Event) model.Signal {
	sig := model.Signal{
		Kind:       model.SignalKind(ev.Kind.String()),
		Token:      st.cfg.Token,
		Exchange:   st.cfg.Exchange,
		TF:         st.cfg.TF,
		Price:      ev.Price,
		Index:      ev.Index,
		TS:         st.series.Bar(ev.Index).CloseTS,
		Direction:  ev.Direction,
		StartIndex: ev.StartIndex,
		EndIndex:   ev.EndIndex,
	}
	if ev.Kind == impulse.EventEnter {
		tp, sl := ev.TakeProfit, ev.StopLoss
		sig.TakeProfit = &tp
		sig.StopLoss = &sl
	}
	return sig
}

// emit journals, publishes and notifies one signal. Output failures are
// logged and never stall bar processing.
func (svc *Service) emit(ctx context.Context, sig model.Signal) {
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(sig.Key(), sig.TS))
	svc.prom.SignalsTotal.WithLabelValues(string(sig.Kind)).Inc()
	slog.Info("signal emitted", append([]any{
		slog.String("kind", string(sig.Kind)),
		slog.String("instrument", sig.Key()),
		slog.Int64("price", sig.Price),
		slog.Int("bar", sig.Index),
	}, logger.LogWithTrace(ctx)...)...)

	if err := svc.journal.RecordSignal(sig); err != nil {
		log.Printf("[scan] journal error: %v", err)
	}
	if err := svc.redisWriter.PublishSignal(ctx, sig); err != nil {
		log.Printf("[scan] publish error: %v", err)
	}

	nctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	alert := notification.SignalAlert(sig)
	if err := svc.notifier.Send(nctx, alert); err != nil {
		log.Printf("[scan] notify error: %v", err)
	}
	if svc.webhook != nil {
		if err := svc.webhook.SendSignal(nctx, alert, sig); err != nil {
			log.Printf("[scan] webhook error: %v", err)
		}
	}
}

func (svc *Service) healthChecks() []metrics.HealthCheck {
	checks := []metrics.HealthCheck{
		{Name: "redis", Check: func(ctx context.Context) error {
			return svc.redisWriter.Client().Ping(ctx).Err()
		}},
		{Name: "journal", Check: func(ctx context.Context) error {
			return svc.journal.DB().PingContext(ctx)
		}},
	}
	if svc.barWriter != nil {
		checks = append(checks, metrics.HealthCheck{Name: "sqlite", Check: func(ctx context.Context) error {
			return svc.barWriter.DB().PingContext(ctx)
		}})
	}
	return checks
}

// shutdown closes connections.
func (svc *Service) shutdown() {
	log.Println("[scan] shutdown signal received...")

	if svc.redisReader != nil {
		svc.redisReader.Close()
	}
	svc.redisWriter.Close()
	if svc.barWriter != nil {
		svc.barWriter.Close()
	}
	svc.journal.Close()

	log.Println("[scan] shutdown complete.")
}
