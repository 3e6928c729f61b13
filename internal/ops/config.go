// Package ops loads and resolves the engine's runtime configuration.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
)

// FileConfig mirrors the JSON config layout. Every numeric trading value is a
// decimal string so precision survives the config file.
type FileConfig struct {
	Engine   EngineConfig       `json:"engine"`
	Feed     FeedConfig         `json:"feed"`
	Risk     RiskConfig         `json:"risk"`
	Strategy StrategyConfig     `json:"strategy"`
	Store    StoreConfig        `json:"store"`
	Profiler ProfilerConfig     `json:"profiler"`
	Features FeatureFlagsConfig `json:"features"`
}

// EngineConfig tunes the event pipeline.
type EngineConfig struct {
	QueueCapacity int      `json:"queueCapacity"`
	CooldownMs    int64    `json:"cooldownMs"`
	QuoteAssets   []string `json:"quoteAssets"`
}

// FeedConfig points the market-data adapter at a venue stream.
type FeedConfig struct {
	URL      string   `json:"url"`
	Exchange string   `json:"exchange"`
	Symbols  []string `json:"symbols"`
}

// RiskConfig declares limits and the seed account state.
type RiskConfig struct {
	MaxPosition      map[string]string `json:"maxPosition"`
	MaxDailyLoss     map[string]string `json:"maxDailyLoss"`
	MinFreeBalance   map[string]string `json:"minFreeBalance"`
	MaxTotalExposure string            `json:"maxTotalExposure"`
	RateOfChange     *RateOfChangeSpec `json:"rateOfChange"`
	Balances         []BalanceSpec     `json:"balances"`
}

// RateOfChangeSpec bounds position velocity.
type RateOfChangeSpec struct {
	MaxChange string `json:"maxChange"`
	WindowMs  int64  `json:"windowMs"`
}

// BalanceSpec seeds one asset balance.
type BalanceSpec struct {
	Asset string `json:"asset"`
	Total string `json:"total"`
	Used  string `json:"used"`
}

// StrategyConfig selects and tunes the strategy.
type StrategyConfig struct {
	Name         string             `json:"name"`
	MarketMaking *MarketMakingSpec  `json:"marketMaking"`
	Arbitrage    *ArbitrageSpec     `json:"arbitrage"`
}

// MarketMakingSpec configures the quoting strategy.
type MarketMakingSpec struct {
	Symbol                   string `json:"symbol"`
	Exchange                 string `json:"exchange"`
	TargetSpread             string `json:"targetSpread"`
	OrderSize                string `json:"orderSize"`
	MaxPosition              string `json:"maxPosition"`
	MaxLevels                int    `json:"maxLevels"`
	PredictionWeight         string `json:"predictionWeight"`
	PredictionHorizonSeconds int    `json:"predictionHorizonSeconds"`
}

// ArbitrageSpec configures the cross-venue strategy.
type ArbitrageSpec struct {
	Symbol    string `json:"symbol"`
	MinProfit string `json:"minProfit"`
	OrderSize string `json:"orderSize"`
}

// StoreConfig describes the postgres snapshot sink.
type StoreConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// ProfilerConfig enables continuous profiling.
type ProfilerConfig struct {
	ServerAddress string `json:"serverAddress"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	DryRun           *bool `json:"dryRun"`
	PersistSnapshots *bool `json:"persistSnapshots"`
	Profiling        *bool `json:"profiling"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	DryRun           bool
	PersistSnapshots bool
	Profiling        bool
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Engine   Engine
	Feed     Feed
	Risk     Risk
	Strategy Strategy
	Store    StoreConfig
	Profiler ProfilerConfig
	Features FeatureFlags
}

// Engine holds the resolved pipeline settings.
type Engine struct {
	QueueCapacity int
	Cooldown      time.Duration
	QuoteAssets   []string
}

// Feed holds the resolved market-data settings.
type Feed struct {
	URL      string
	Exchange model.Exchange
	Symbols  []model.Symbol
}

// Risk holds the resolved limits and seed balances.
type Risk struct {
	MaxPosition      map[model.Symbol]decimal.Decimal
	MaxDailyLoss     map[model.Symbol]decimal.Decimal
	MinFreeBalance   map[string]decimal.Decimal
	MaxTotalExposure *decimal.Decimal
	RateOfChange     *RateOfChange
	Balances         []Balance
}

// RateOfChange holds the resolved position velocity bound.
type RateOfChange struct {
	MaxChange decimal.Decimal
	Window    time.Duration
}

// Balance is a resolved seed balance.
type Balance struct {
	Asset string
	Total decimal.Decimal
	Used  decimal.Decimal
}

// Strategy holds the resolved strategy selection.
type Strategy struct {
	Name         string
	MarketMaking *MarketMaking
	Arbitrage    *Arbitrage
}

// MarketMaking holds resolved quoting parameters.
type MarketMaking struct {
	Symbol                   model.Symbol
	Exchange                 model.Exchange
	TargetSpread             decimal.Decimal
	OrderSize                decimal.Decimal
	MaxPosition              decimal.Decimal
	MaxLevels                int
	PredictionWeight         decimal.Decimal
	PredictionHorizonSeconds int
}

// Arbitrage holds resolved cross-venue parameters.
type Arbitrage struct {
	Symbol    model.Symbol
	MinProfit decimal.Decimal
	OrderSize decimal.Decimal
}

const (
	defaultQueueCapacity = 1024
	defaultCooldown      = 500 * time.Millisecond
)

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}

	return Parse(data)
}

// Parse resolves raw JSON config bytes.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}

	engine, err := resolveEngine(cfg.Engine)
	if err != nil {
		return Loaded{}, err
	}
	feed, err := resolveFeed(cfg.Feed)
	if err != nil {
		return Loaded{}, err
	}
	riskCfg, err := resolveRisk(cfg.Risk)
	if err != nil {
		return Loaded{}, err
	}
	strat, err := resolveStrategy(cfg.Strategy)
	if err != nil {
		return Loaded{}, err
	}

	return Loaded{
		Engine:   engine,
		Feed:     feed,
		Risk:     riskCfg,
		Strategy: strat,
		Store:    cfg.Store,
		Profiler: cfg.Profiler,
		Features: resolveFeatures(cfg.Features),
	}, nil
}

func resolveEngine(cfg EngineConfig) (Engine, error) {
	engine := Engine{
		QueueCapacity: cfg.QueueCapacity,
		Cooldown:      time.Duration(cfg.CooldownMs) * time.Millisecond,
		QuoteAssets:   cfg.QuoteAssets,
	}
	if engine.QueueCapacity < 0 {
		return Engine{}, fmt.Errorf("queueCapacity must be >= 0")
	}
	if engine.QueueCapacity == 0 {
		engine.QueueCapacity = defaultQueueCapacity
	}
	if cfg.CooldownMs < 0 {
		return Engine{}, fmt.Errorf("cooldownMs must be >= 0")
	}
	if cfg.CooldownMs == 0 {
		engine.Cooldown = defaultCooldown
	}

	return engine, nil
}

func resolveFeed(cfg FeedConfig) (Feed, error) {
	feed := Feed{
		URL:      cfg.URL,
		Exchange: model.Exchange(cfg.Exchange),
	}
	for _, s := range cfg.Symbols {
		if s == "" {
			return Feed{}, fmt.Errorf("feed symbol is empty")
		}
		feed.Symbols = append(feed.Symbols, model.Symbol(s))
	}

	return feed, nil
}

func resolveRisk(cfg RiskConfig) (Risk, error) {
	resolved := Risk{
		MaxPosition:    make(map[model.Symbol]decimal.Decimal, len(cfg.MaxPosition)),
		MaxDailyLoss:   make(map[model.Symbol]decimal.Decimal, len(cfg.MaxDailyLoss)),
		MinFreeBalance: make(map[string]decimal.Decimal, len(cfg.MinFreeBalance)),
	}

	for symbol, raw := range cfg.MaxPosition {
		d, err := parsePositiveDecimal("maxPosition."+symbol, raw)
		if err != nil {
			return Risk{}, err
		}
		resolved.MaxPosition[model.Symbol(symbol)] = d
	}
	for symbol, raw := range cfg.MaxDailyLoss {
		d, err := parsePositiveDecimal("maxDailyLoss."+symbol, raw)
		if err != nil {
			return Risk{}, err
		}
		resolved.MaxDailyLoss[model.Symbol(symbol)] = d
	}
	for asset, raw := range cfg.MinFreeBalance {
		d, err := parseNonNegativeDecimal("minFreeBalance."+asset, raw)
		if err != nil {
			return Risk{}, err
		}
		resolved.MinFreeBalance[asset] = d
	}

	if cfg.MaxTotalExposure != "" {
		d, err := parsePositiveDecimal("maxTotalExposure", cfg.MaxTotalExposure)
		if err != nil {
			return Risk{}, err
		}
		resolved.MaxTotalExposure = &d
	}

	if cfg.RateOfChange != nil {
		d, err := parsePositiveDecimal("rateOfChange.maxChange", cfg.RateOfChange.MaxChange)
		if err != nil {
			return Risk{}, err
		}
		if cfg.RateOfChange.WindowMs <= 0 {
			return Risk{}, fmt.Errorf("rateOfChange.windowMs must be > 0")
		}
		resolved.RateOfChange = &RateOfChange{
			MaxChange: d,
			Window:    time.Duration(cfg.RateOfChange.WindowMs) * time.Millisecond,
		}
	}

	for _, b := range cfg.Balances {
		if b.Asset == "" {
			return Risk{}, fmt.Errorf("balance asset is empty")
		}
		total, err := parseNonNegativeDecimal("balance "+b.Asset+" total", b.Total)
		if err != nil {
			return Risk{}, err
		}
		used := decimal.Zero
		if b.Used != "" {
			used, err = parseNonNegativeDecimal("balance "+b.Asset+" used", b.Used)
			if err != nil {
				return Risk{}, err
			}
		}
		resolved.Balances = append(resolved.Balances, Balance{Asset: b.Asset, Total: total, Used: used})
	}

	return resolved, nil
}

func resolveStrategy(cfg StrategyConfig) (Strategy, error) {
	resolved := Strategy{Name: cfg.Name}

	switch cfg.Name {
	case "market_making":
		if cfg.MarketMaking == nil {
			return Strategy{}, fmt.Errorf("marketMaking section is required")
		}
		mm, err := resolveMarketMaking(*cfg.MarketMaking)
		if err != nil {
			return Strategy{}, err
		}
		resolved.MarketMaking = &mm
	case "arbitrage":
		if cfg.Arbitrage == nil {
			return Strategy{}, fmt.Errorf("arbitrage section is required")
		}
		arb, err := resolveArbitrage(*cfg.Arbitrage)
		if err != nil {
			return Strategy{}, err
		}
		resolved.Arbitrage = &arb
	case "":
		return Strategy{}, fmt.Errorf("strategy name is empty")
	default:
		return Strategy{}, fmt.Errorf("unknown strategy: %s", cfg.Name)
	}

	return resolved, nil
}

func resolveMarketMaking(cfg MarketMakingSpec) (MarketMaking, error) {
	if cfg.Symbol == "" {
		return MarketMaking{}, fmt.Errorf("marketMaking.symbol is empty")
	}
	if cfg.Exchange == "" {
		return MarketMaking{}, fmt.Errorf("marketMaking.exchange is empty")
	}

	spread, err := parsePositiveDecimal("marketMaking.targetSpread", cfg.TargetSpread)
	if err != nil {
		return MarketMaking{}, err
	}
	size, err := parsePositiveDecimal("marketMaking.orderSize", cfg.OrderSize)
	if err != nil {
		return MarketMaking{}, err
	}
	maxPos, err := parsePositiveDecimal("marketMaking.maxPosition", cfg.MaxPosition)
	if err != nil {
		return MarketMaking{}, err
	}

	weight := decimal.Zero
	if cfg.PredictionWeight != "" {
		weight, err = parseNonNegativeDecimal("marketMaking.predictionWeight", cfg.PredictionWeight)
		if err != nil {
			return MarketMaking{}, err
		}
		if weight.GreaterThan(decimal.NewFromInt(1)) {
			return MarketMaking{}, fmt.Errorf("marketMaking.predictionWeight must be <= 1")
		}
	}

	levels := cfg.MaxLevels
	if levels < 1 {
		levels = 1
	}

	return MarketMaking{
		Symbol:                   model.Symbol(cfg.Symbol),
		Exchange:                 model.Exchange(cfg.Exchange),
		TargetSpread:             spread,
		OrderSize:                size,
		MaxPosition:              maxPos,
		MaxLevels:                levels,
		PredictionWeight:         weight,
		PredictionHorizonSeconds: cfg.PredictionHorizonSeconds,
	}, nil
}

func resolveArbitrage(cfg ArbitrageSpec) (Arbitrage, error) {
	if cfg.Symbol == "" {
		return Arbitrage{}, fmt.Errorf("arbitrage.symbol is empty")
	}

	profit, err := parsePositiveDecimal("arbitrage.minProfit", cfg.MinProfit)
	if err != nil {
		return Arbitrage{}, err
	}
	size, err := parsePositiveDecimal("arbitrage.orderSize", cfg.OrderSize)
	if err != nil {
		return Arbitrage{}, err
	}

	return Arbitrage{
		Symbol:    model.Symbol(cfg.Symbol),
		MinProfit: profit,
		OrderSize: size,
	}, nil
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	features := FeatureFlags{DryRun: true}
	if cfg.DryRun != nil {
		features.DryRun = *cfg.DryRun
	}
	if cfg.PersistSnapshots != nil {
		features.PersistSnapshots = *cfg.PersistSnapshots
	}
	if cfg.Profiling != nil {
		features.Profiling = *cfg.Profiling
	}

	return features
}

func parsePositiveDecimal(field, raw string) (decimal.Decimal, error) {
	d, err := parseNonNegativeDecimal(field, raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%s must be > 0", field)
	}

	return d, nil
}

func parseNonNegativeDecimal(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is empty", field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s is not a decimal: %w", field, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%s must be >= 0", field)
	}

	return d, nil
}
