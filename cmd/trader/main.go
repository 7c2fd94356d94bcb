package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"sync"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"goalbot/internal/bus"
	"goalbot/internal/exchange"
	"goalbot/internal/feed"
	"goalbot/internal/journal"
	"goalbot/internal/ledger"
	"goalbot/internal/obs"
	"goalbot/internal/ops"
	"goalbot/internal/router"
	"goalbot/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 30*time.Second, "Config reload interval (0=disable)")
	envPath := flag.String("env", ".env", "Path to dotenv file (optional)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disabled)")
	statsInterval := flag.Duration("stats-interval", 60*time.Second, "Stats report interval")
	shutdownGrace := flag.Duration("shutdown-grace", 10*time.Second, "Grace period for closing positions on shutdown")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		logs.Warnf("dotenv load failed: %v", err)
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("config load failed: %v", err)
		os.Exit(1)
	}

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "goalbot",
			ServerAddress:   *pyroscopeAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Errorf("pyroscope start failed: %v", err)
			os.Exit(1)
		}
		defer func() { _ = profiler.Stop() }()
	}

	metrics := obs.NewMetrics()

	var store *ledger.Store
	if loaded.Store.Enabled {
		store, err = ledger.NewStore(ledger.StoreOption{
			Host:     loaded.Store.Host,
			Port:     loaded.Store.Port,
			User:     loaded.Store.User,
			Password: loaded.PGPassword,
			Database: loaded.Store.Database,
			SSLMode:  loaded.Store.SSLMode,
		})
		if err != nil {
			logs.Errorf("trade store open failed: %v", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	sink, err := journal.NewWriter(journal.Config{Dir: loaded.JournalDir})
	if err != nil {
		logs.Errorf("journal open failed: %v", err)
		os.Exit(1)
	}
	defer sink.Close()

	led := ledger.New(loaded.Risk, metrics, store)
	if store != nil {
		dayStart := time.Now().UTC().Truncate(24 * time.Hour)
		if realized, err := store.RealizedSince(dayStart); err != nil {
			logs.Errorf("restore realized pnl failed: %v", err)
		} else if realized != 0 {
			led.SeedRealized(realized)
			logs.Infof("restored daily realized pnl: %.2f", realized)
		}
	}

	venues := exchange.NewRouter()
	for _, spec := range loaded.Venues {
		switch loaded.Mode {
		case ops.ModeLive:
			venues.Register(spec.ID, exchange.NewLiveClient(spec.BaseURL, loaded.VenueAPIKey))
		default:
			venues.Register(spec.ID, exchange.NewSimClient())
		}
	}
	logs.Infof("trading mode: %s", loaded.Mode)

	queue := bus.NewQueue(loaded.QueueSize)
	rtr := router.New(loaded.Router, queue, metrics, sink)

	deps := strategy.Deps{
		Ledger:   led,
		Venues:   venues,
		Registry: loaded.Registry,
		Journal:  sink,
	}
	momentum := strategy.NewMomentum(deps, loaded.Momentum)
	compression := strategy.NewCompression(deps, loaded.Compression, strategy.NewLeadConfidence())
	rtr.Register(momentum)
	rtr.Register(compression)

	for _, mc := range loaded.Matches {
		rtr.RegisterMatch(mc)
	}

	var push feed.PushSource
	if loaded.FeedPushURL != "" {
		push = feed.NewWSSource(loaded.FeedPushURL, loaded.FeedAPIKey, loaded.Feed.Leagues)
	}
	var poll feed.PollSource
	if loaded.FeedPollURL != "" {
		poll = feed.NewHTTPPollSource(loaded.FeedPollURL, loaded.FeedAPIKey)
	}
	connector := feed.NewConnector(loaded.Feed, push, poll, queue, metrics)

	var discovery *feed.Discovery
	if loaded.FeedPollURL != "" {
		discovery = feed.NewDiscovery(loaded.FeedPollURL, loaded.FeedAPIKey, loaded.Discovery, rtr.RegisterMatch)
	}

	var metricsSrv *http.Server
	if loaded.MetricsAddr != "" {
		metricsSrv = obs.Serve(loaded.MetricsAddr)
		logs.Infof("metrics listening on %s", loaded.MetricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	if *configPath != "" && *configReload > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watchConfig(ctx, *configPath, *configReload, rtr)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := connector.Run(ctx); err != nil && ctx.Err() == nil {
			logs.Errorf("connector stopped: %v", err)
		}
	}()

	if discovery != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			discovery.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		rtr.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		momentum.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		reportStats(ctx, *statsInterval, metrics, led)
	}()

	<-sys.Shutdown()
	logs.Info("shutting down")

	cancel()
	wg.Wait()
	queue.Close()

	graceCtx, graceCancel := context.WithTimeout(context.Background(), *shutdownGrace)
	momentum.CloseAll(graceCtx)
	compression.CloseAll(graceCtx)
	graceCancel()

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	summary := led.Snapshot()
	logs.Infof("session done: open=%d realized=%.2f halted=%t", summary.Open, summary.RealizedPnL, summary.Halted)
}

// watchConfig reloads the config periodically and registers any fixtures
// added since startup. Risk limits and strategy tuning stay fixed for the
// life of the process.
func watchConfig(ctx context.Context, path string, interval time.Duration, rtr *router.Router) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Errorf("config stat failed: %v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := ops.Load(path)
			if err != nil {
				logs.Errorf("config reload failed: %v", err)
				continue
			}
			for _, mc := range loaded.Matches {
				rtr.RegisterMatch(mc)
			}
			lastMod = info.ModTime()
			logs.Infof("config reloaded: %s (%d fixtures)", path, len(loaded.Matches))
		}
	}
}

func reportStats(ctx context.Context, interval time.Duration, metrics *obs.Metrics, led *ledger.Ledger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := metrics.Snapshot()
			summary := led.Snapshot()
			logs.Infof("stats: goals push=%d poll=%d dups=%d drops=%d allows=%d open=%d exposure=%.2f pnl=%.2f halted=%t",
				snap.GoalsPush, snap.GoalsPoll, snap.DuplicatesDropped, snap.QueueDrops,
				snap.AuthorizeAllows, summary.Open, summary.ExposureUSD, summary.RealizedPnL, summary.Halted)
		}
	}
}
