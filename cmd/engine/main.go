package main

import (
	"context"
	"flag"
	"log"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"golang.org/x/sync/errgroup"

	"main/internal/clock"
	"main/internal/core"
	"main/internal/exec"
	"main/internal/feed"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/predictor"
	"main/internal/risk"
	"main/internal/store"
	"main/internal/strategy"
)

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	snapshotInterval := flag.Duration("snapshot-interval", time.Minute, "Risk snapshot persistence interval")
	metricsInterval := flag.Duration("metrics-interval", 30*time.Second, "Metrics report interval (0=disable)")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("missing -config")
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if !loaded.Features.DryRun {
		log.Fatal("live trading connector not configured, set features.dryRun")
	}

	if loaded.Features.Profiling {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "hft/engine",
			ServerAddress:   loaded.Profiler.ServerAddress,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.System()
	metrics := obs.NewMetrics()
	riskEngine := buildRiskEngine(loaded, clk)
	strategyEngine := buildStrategyEngine(loaded)

	var engine *core.Engine
	dryRun := exec.NewDryRun(clk, func(report model.ExecutionReport) {
		_ = engine.Publish(report)
	})
	engine = core.New(strategyEngine, riskEngine, dryRun, metrics, clk, loaded.Engine.QueueCapacity)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		engine.Run(ctx)
		return nil
	})

	if loaded.Feed.URL != "" {
		marketFeed := feed.New(ctx, feed.Config{
			URL:      loaded.Feed.URL,
			Exchange: loaded.Feed.Exchange,
			Symbols:  loaded.Feed.Symbols,
		}, engine.Publish)
		defer marketFeed.Close()

		group.Go(func() error {
			return marketFeed.Start(ctx)
		})
	} else {
		logs.Info("no feed url configured, engine consumes published events only")
	}

	if loaded.Features.PersistSnapshots {
		snapshots, err := store.Open(store.Option{
			Host:     loaded.Store.Host,
			Port:     loaded.Store.Port,
			User:     loaded.Store.User,
			Password: loaded.Store.Password,
			Database: loaded.Store.Database,
			SSLMode:  loaded.Store.SSLMode,
		})
		if err != nil {
			log.Fatalf("store open failed: %v", err)
		}
		defer func() { _ = snapshots.Close() }()

		group.Go(func() error {
			return persistSnapshots(ctx, snapshots, riskEngine, *snapshotInterval)
		})
	}

	if *metricsInterval > 0 {
		group.Go(func() error {
			reportMetrics(ctx, metrics, *metricsInterval)
			return nil
		})
	}

	group.Go(func() error {
		select {
		case <-sys.Shutdown():
			logs.Info("shutdown signal received")
		case <-ctx.Done():
		}

		engine.Close()
		cancel()
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("engine stopped: %v", err)
	}
}

func buildRiskEngine(loaded ops.Loaded, clk clock.Clock) *risk.Engine {
	engine := risk.NewEngine(loaded.Engine.QuoteAssets...)

	for _, b := range loaded.Risk.Balances {
		engine.SetBalance(b.Asset, b.Total, b.Used)
	}
	for symbol, max := range loaded.Risk.MaxPosition {
		engine.SetMaxPosition(symbol, max)
	}
	for symbol, max := range loaded.Risk.MaxDailyLoss {
		engine.SetMaxDailyLoss(symbol, max)
	}

	engine.AddRule(risk.NewPositionSizeRule())
	if len(loaded.Risk.MinFreeBalance) > 0 {
		engine.AddRule(risk.NewBalanceRule(loaded.Risk.MinFreeBalance))
	}
	if loaded.Risk.MaxTotalExposure != nil {
		engine.AddRule(risk.NewTotalExposureRule(*loaded.Risk.MaxTotalExposure))
	}
	if len(loaded.Risk.MaxDailyLoss) > 0 {
		engine.AddRule(risk.NewDailyLossRule())
	}
	if roc := loaded.Risk.RateOfChange; roc != nil {
		engine.AddRule(risk.NewRateOfChangeLimitRule(roc.MaxChange, roc.Window, clk))
	}

	return engine
}

func buildStrategyEngine(loaded ops.Loaded) *strategy.Engine {
	switch loaded.Strategy.Name {
	case "market_making":
		mm := loaded.Strategy.MarketMaking
		strat := strategy.NewMarketMakingStrategy(strategy.MarketMakingConfig{
			Symbol:                   mm.Symbol,
			Exchange:                 mm.Exchange,
			TargetSpread:             mm.TargetSpread,
			OrderSize:                mm.OrderSize,
			MaxPosition:              mm.MaxPosition,
			MaxLevels:                mm.MaxLevels,
			PredictionWeight:         mm.PredictionWeight,
			PredictionHorizonSeconds: float64(mm.PredictionHorizonSeconds),
		})
		engine := strategy.NewEngine(strat, loaded.Engine.Cooldown, clock.System())

		if mm.PredictionWeight.IsPositive() {
			state := engine.State(mm.Symbol)
			state.AttachPredictor(predictor.NewLinearRegressionPredictor(256, 8))
			state.AttachFlow(predictor.NewTradeFlowIndicator(10*time.Second, 5))
		}

		return engine
	case "arbitrage":
		arb := loaded.Strategy.Arbitrage
		strat := strategy.NewArbitrageStrategy(strategy.ArbitrageConfig{
			Symbol:    arb.Symbol,
			MinProfit: arb.MinProfit,
			OrderSize: arb.OrderSize,
		})

		return strategy.NewEngine(strat, loaded.Engine.Cooldown, clock.System())
	default:
		log.Fatalf("unknown strategy: %s", loaded.Strategy.Name)
		return nil
	}
}

func persistSnapshots(ctx context.Context, snapshots *store.Store, riskEngine *risk.Engine, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return snapshots.SaveSnapshot(context.Background(), riskEngine.Snapshot())
		case <-ticker.C:
			if err := snapshots.SaveSnapshot(ctx, riskEngine.Snapshot()); err != nil {
				logs.Errorf("persist snapshot, err: %+v", err)
			}
		}
	}
}

func reportMetrics(ctx context.Context, metrics *obs.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := metrics.Snapshot()
			logs.Infof("events=%v signals=%d accepted=%d submitted=%d drops=%d violations=%v latency(avg)=%s",
				snap.EventCounts, snap.SignalsEmitted, snap.OrdersAccepted,
				snap.OrdersSubmitted, snap.QueueDrops, snap.ViolationCounts,
				snap.EventLatency.Avg)
		}
	}
}
