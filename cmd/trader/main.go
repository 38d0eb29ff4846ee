// Command trader runs the full pipeline: a cron-scheduled pre-market
// analysis pass over the symbol universe, the live price monitor, and
// the status/metrics HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"tritrend/config"
	"tritrend/internal/api"
	"tritrend/internal/broker"
	"tritrend/internal/indicator"
	"tritrend/internal/logger"
	"tritrend/internal/markethours"
	"tritrend/internal/marketdata"
	"tritrend/internal/metrics"
	"tritrend/internal/model"
	"tritrend/internal/notification"
	"tritrend/internal/portfolio"
	"tritrend/internal/premarket"
	redisstore "tritrend/internal/store/redis"
	sqlitestore "tritrend/internal/store/sqlite"
	"tritrend/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[trader] config: %v", err)
	}

	slogger := logger.Init(cfg.Service, logger.ParseLevel(cfg.LogLevel))
	slogger.Info("starting", "universe", cfg.Analyzer.Universe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()

	// ---- Stores ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	store, err := sqlitestore.New(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[trader] sqlite init failed: %v", err)
	}
	defer store.Close()

	recorders := []premarket.Recorder{timedRecorder{store, prom.SQLiteCommitDur}}
	redisWriter, err := redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		slogger.Warn("redis unavailable, continuing without snapshots", "error", err)
	} else {
		defer redisWriter.Close()
		recorders = append(recorders, timedRecorder{redisWriter, prom.RedisWriteDur})
	}
	recorder := multiRecorder(recorders)

	// ---- Notifications ----
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.AlertWebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.AlertWebhookURL))
	}
	notify := notification.NewMulti(backends...)

	// ---- Broker ----
	gw := broker.Connect(ctx, broker.Config{
		PersonalID: cfg.FubonPersonalID,
		Password:   cfg.FubonPassword,
		CertPath:   cfg.FubonCertPath,
		CertPass:   cfg.FubonCertPass,
		TOTPSecret: cfg.FubonTOTPSecret,
		Logger:     slogger,
	})
	health.SetBroker(true, gw.Simulated())
	if gw.Simulated() && cfg.FubonPersonalID != "" {
		notify.Send(ctx, notification.BrokerDegraded("login failed, orders will be simulated"))
	}

	// ---- Portfolio and risk ----
	pf := portfolio.New()
	if positions, err := gw.Positions(ctx); err == nil && len(positions) > 0 {
		pf.Replace(positions)
		slogger.Info("restored positions from broker", "count", len(positions))
	}
	rm := portfolio.NewRiskManager(cfg.Limits, pf, slogger)

	// ---- Pipeline ----
	source := marketdata.NewFinMind(marketdata.FinMindConfig{
		Token:  cfg.FinMindToken,
		Logger: slogger,
	})
	monitor := premarket.NewMonitor(cfg.MonitorConfig(), gw, rm, pf, recorder, prom, slogger)
	monitor.SetNotifier(notify)
	analyzer := premarket.NewAnalyzer(cfg.Analyzer, premarket.Deps{
		Source:     source,
		Indicators: indicator.NewEngine(cfg.Indicator),
		Strategies: strategy.NewDefaultEngine(slogger, cfg.Strategies),
		Risk:       rm,
		Gateway:    gw,
		Monitor:    monitor,
		Recorder:   recorder,
		Metrics:    prom,
		Notify:     notify,
		Logger:     slogger,
	})

	// ---- Live quote feed (optional) ----
	if cfg.FubonWSURL != "" {
		feed := broker.NewQuoteFeed(cfg.FubonWSURL, cfg.FubonTOTPSecret, slogger)
		feed.OnQuote = func(q broker.Quote) {
			pf.UpdatePrice(q.Symbol, q.Price)
		}
		if err := feed.Subscribe(cfg.Analyzer.Universe...); err != nil {
			slogger.Warn("quote subscribe failed", "error", err)
		}
		go feed.Run(ctx)
	}

	// ---- HTTP: metrics, health, status API ----
	apiMux := api.NewRouter(api.Deps{
		Store:     store,
		Portfolio: pf,
		Monitor:   monitor,
		Risk:      rm,
		Logger:    slogger,
	})
	srv := metrics.NewServer(cfg.MetricsAddr, health, apiMux)
	srv.Start()

	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), store.DB(), 30*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 30*time.Second)
	}

	runAnalysis := func() {
		now := time.Now().In(markethours.Taipei)
		if !markethours.IsTradingDay(now) {
			slogger.Info("skipping analysis, not a trading day")
			return
		}
		prom.MarketState.Set(marketStateValue(now))
		passCtx, passCancel := context.WithTimeout(ctx, 30*time.Minute)
		defer passCancel()
		signals, err := analyzer.Run(passCtx)
		if err != nil {
			slogger.Error("analysis pass failed", "error", err)
			return
		}
		health.SetLastAnalysis(time.Now())
		slogger.Info("analysis dispatched", "signals", len(signals), "armed", monitor.Len())
	}

	// ---- Daily schedule (Taipei time) ----
	sched := cron.New(cron.WithLocation(markethours.Taipei))
	if _, err := sched.AddFunc(cfg.Schedule.ResetCron, rm.ResetDaily); err != nil {
		log.Fatalf("[trader] bad reset cron %q: %v", cfg.Schedule.ResetCron, err)
	}
	if _, err := sched.AddFunc(cfg.Schedule.PreMarketCron, runAnalysis); err != nil {
		log.Fatalf("[trader] bad pre-market cron %q: %v", cfg.Schedule.PreMarketCron, err)
	}
	sched.Start()

	monitor.Start(ctx)

	// Joining mid pre-market window: run a pass now instead of waiting
	// a full day.
	if markethours.IsPreMarket(time.Now().In(markethours.Taipei)) {
		go runAnalysis()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slogger.Info("shutting down")

	cancel()
	sched.Stop()
	monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Stop(shutdownCtx)
	slogger.Info("stopped")
}

func marketStateValue(now time.Time) float64 {
	switch {
	case markethours.IsMarketOpen(now):
		return 2
	case markethours.IsPreMarket(now):
		return 1
	default:
		return 0
	}
}

// multiRecorder fans persistence across SQLite and Redis; a failure in
// one sink never hides the other's.
type multiRecorder []premarket.Recorder

func (m multiRecorder) SaveBars(ctx context.Context, bars []model.Bar) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.SaveBars(ctx, bars))
	}
	return errors.Join(errs...)
}

func (m multiRecorder) SaveIndicators(ctx context.Context, series []model.IndicatorBar) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.SaveIndicators(ctx, series))
	}
	return errors.Join(errs...)
}

func (m multiRecorder) SaveSignal(ctx context.Context, sig *model.Signal) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.SaveSignal(ctx, sig))
	}
	return errors.Join(errs...)
}

// timedRecorder reports each sink's commit latency to prometheus.
type timedRecorder struct {
	inner premarket.Recorder
	obs   interface{ Observe(float64) }
}

func (t timedRecorder) SaveBars(ctx context.Context, bars []model.Bar) error {
	start := time.Now()
	err := t.inner.SaveBars(ctx, bars)
	t.obs.Observe(time.Since(start).Seconds())
	return err
}

func (t timedRecorder) SaveIndicators(ctx context.Context, series []model.IndicatorBar) error {
	start := time.Now()
	err := t.inner.SaveIndicators(ctx, series)
	t.obs.Observe(time.Since(start).Seconds())
	return err
}

func (t timedRecorder) SaveSignal(ctx context.Context, sig *model.Signal) error {
	start := time.Now()
	err := t.inner.SaveSignal(ctx, sig)
	t.obs.Observe(time.Since(start).Seconds())
	return err
}
