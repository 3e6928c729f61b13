package core

import (
	"context"
	"sync"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/clock"
	"main/internal/errors"
	"main/internal/exec"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/strategy"
)

// markPricer is the optional executor surface for venues simulated in
// process. Live connectors do not implement it.
type markPricer interface {
	SetMarkPrice(model.Symbol, model.Price)
}

// Engine is the single-threaded event pipeline. Feed adapters publish events
// into its queue; the run loop folds them into strategy state, routes the
// produced intents through the risk chain, and hands accepted intents to the
// execution connector. Execution reports re-enter through the same queue so
// risk and strategy observe them in arrival order with market data.
type Engine struct {
	queue    *bus.Queue
	strategy *strategy.Engine
	risk     *risk.Engine
	executor exec.Executor
	metrics  *obs.Metrics
	clk      clock.Clock

	mu        sync.Mutex
	submitted map[string]model.NewOrder
	deferred  []model.ExecutionReport

	ctx context.Context
}

func New(strat *strategy.Engine, riskEngine *risk.Engine, executor exec.Executor, metrics *obs.Metrics, clk clock.Clock, queueCapacity int) *Engine {
	return &Engine{
		queue:     bus.NewQueue(queueCapacity),
		strategy:  strat,
		risk:      riskEngine,
		executor:  executor,
		metrics:   metrics,
		clk:       clk,
		submitted: make(map[string]model.NewOrder),
		ctx:       context.Background(),
	}
}

// Publish enqueues an event for the run loop. Safe for concurrent use. A full
// queue drops market data and returns bus.ErrQueueFull; execution reports are
// never dropped, because a lost terminal report would leak the risk engine's
// pending-order tracking. Reports that miss the queue are parked and drained
// by the run loop ahead of later market data.
func (e *Engine) Publish(event model.Event) error {
	err := e.queue.TryPublish(event)
	if err == nil {
		return nil
	}

	if report, ok := event.(model.ExecutionReport); ok && errors.Is(err, bus.ErrQueueFull) {
		e.mu.Lock()
		e.deferred = append(e.deferred, report)
		e.mu.Unlock()

		return nil
	}

	e.metrics.ObserveQueueDrop()
	logs.Infof("dropped %s event for %s: %v", event.Kind(), event.EventSymbol(), err)

	return err
}

// Run consumes the queue until the context is cancelled or Close is called.
func (e *Engine) Run(ctx context.Context) {
	e.ctx = ctx
	e.queue.Run(ctx, func(event model.Event) {
		e.handle(event)

		for _, report := range e.takeDeferred() {
			e.handle(report)
		}
	})
}

func (e *Engine) takeDeferred() []model.ExecutionReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	reports := e.deferred
	e.deferred = nil

	return reports
}

// Close stops the queue; Run drains what was already enqueued and returns.
func (e *Engine) Close() {
	e.queue.Close()
}

// Metrics exposes pipeline counters for periodic reporting.
func (e *Engine) Metrics() *obs.Metrics {
	return e.metrics
}

// Risk exposes the risk engine for state seeding and snapshots.
func (e *Engine) Risk() *risk.Engine {
	return e.risk
}

func (e *Engine) handle(event model.Event) {
	start := e.clk.Now()
	e.metrics.ObserveEvent(event.Kind())

	switch ev := event.(type) {
	case model.ExecutionReport:
		e.risk.ApplyExecutionReport(ev)
		e.strategy.ProcessEvent(ev)
		e.forgetTerminal(ev)
		e.metrics.ObserveEventLatency(e.clk.Now().Sub(start))

		return
	case model.Trade:
		if mp, ok := e.executor.(markPricer); ok {
			mp.SetMarkPrice(ev.Symbol, ev.Price)
		}
	}

	signals := e.strategy.ProcessEvent(event)
	if len(signals) > 0 {
		e.metrics.ObserveSignals(len(signals))
	}

	for _, signal := range signals {
		e.apply(signal)
	}

	e.metrics.ObserveEventLatency(e.clk.Now().Sub(start))
}

func (e *Engine) apply(signal model.Signal) {
	switch s := signal.(type) {
	case model.PlaceOrder:
		e.placeOrder(s.Order)
	case model.CancelOrder:
		if err := e.executor.Cancel(e.ctx, s.OrderID, s.Symbol, s.Exchange); err != nil {
			logs.Errorf("cancel %s failed: %v", s.OrderID, err)
		}
	case model.CancelAllOrders:
		if err := e.executor.CancelAll(e.ctx, s.Symbol, s.Exchange); err != nil {
			logs.Errorf("cancel all %s@%s failed: %v", s.Symbol, s.Exchange, err)
		}
	case model.UpdateOrder:
		e.amendOrder(s)
	case model.Arbitrage:
		e.placeArbitrage(s)
	case model.Custom:
		logs.Infof("custom signal %s: %v", s.Name, s.Metadata)
	default:
		logs.Errorf("unhandled signal kind %d", signal.SignalKind())
	}
}

// placeOrder runs the intent through the risk chain and submits it when every
// rule passes. Rejection is terminal for the intent, not for the pipeline.
func (e *Engine) placeOrder(order model.NewOrder) bool {
	riskStart := e.clk.Now()
	violation := e.risk.CheckOrder(order)
	e.metrics.ObserveRiskEvalLatency(e.clk.Now().Sub(riskStart))

	if violation != nil {
		e.metrics.ObserveViolation(violation.Rule)
		logs.Infof("rejected %s %s %s: %s (%s)",
			order.Side, order.Symbol, order.Size, violation.Message, violation.Rule)

		return false
	}

	e.metrics.ObserveOrderAccepted()
	e.risk.RegisterOrder(order)
	e.remember(order)

	if err := e.executor.Submit(e.ctx, order); err != nil {
		logs.Errorf("submit %s failed: %v", order.ClientOrderID, err)
		e.forget(order.ClientOrderID)

		return false
	}

	e.metrics.ObserveOrderSubmitted()

	return true
}

// amendOrder cancels the resting order and resubmits it with the amended
// price and size under a fresh client order id. Reusing the old id would let
// the queued Cancelled report evict the replacement's risk registration, so
// the replacement must not share it.
func (e *Engine) amendOrder(update model.UpdateOrder) {
	e.mu.Lock()
	order, ok := e.submitted[update.OrderID]
	e.mu.Unlock()

	if !ok {
		logs.Errorf("amend for unknown order %s", update.OrderID)

		return
	}

	if update.Price != nil {
		order.Price = update.Price
	}

	if update.Size != nil {
		order.Size = *update.Size
	}

	if err := e.executor.Cancel(e.ctx, update.OrderID, order.Symbol, order.Exchange); err != nil {
		logs.Errorf("amend cancel %s failed: %v", update.OrderID, err)

		return
	}

	e.placeOrder(order.Reissued())
}

// placeArbitrage submits both legs only when both pass risk. A one-leg fill
// is an open directional position, which defeats the point of the trade.
func (e *Engine) placeArbitrage(s model.Arbitrage) {
	buy := model.LimitBuy(s.Symbol, s.BuyExchange, s.BuyPrice, s.Size)
	buy.TimeInForce = enum.TimeInForceIOC
	sell := model.LimitSell(s.Symbol, s.SellExchange, s.SellPrice, s.Size)
	sell.TimeInForce = enum.TimeInForceIOC

	for _, leg := range []model.NewOrder{buy, sell} {
		riskStart := e.clk.Now()
		violation := e.risk.CheckOrder(leg)
		e.metrics.ObserveRiskEvalLatency(e.clk.Now().Sub(riskStart))

		if violation != nil {
			e.metrics.ObserveViolation(violation.Rule)
			logs.Infof("arbitrage leg rejected %s %s: %s (%s)",
				leg.Side, leg.Exchange, violation.Message, violation.Rule)

			return
		}
	}

	logs.Infof("arbitrage %s buy %s@%s sell %s@%s size %s profit %s",
		s.Symbol, s.BuyPrice, s.BuyExchange, s.SellPrice, s.SellExchange, s.Size, s.ExpectedProfit)

	for _, leg := range []model.NewOrder{buy, sell} {
		e.metrics.ObserveOrderAccepted()
		e.risk.RegisterOrder(leg)
		e.remember(leg)

		if err := e.executor.Submit(e.ctx, leg); err != nil {
			logs.Errorf("arbitrage submit %s failed: %v", leg.ClientOrderID, err)
			e.forget(leg.ClientOrderID)

			continue
		}

		e.metrics.ObserveOrderSubmitted()
	}
}

func (e *Engine) remember(order model.NewOrder) {
	e.mu.Lock()
	e.submitted[order.ClientOrderID] = order
	e.mu.Unlock()
}

func (e *Engine) forget(clientOrderID string) {
	e.mu.Lock()
	delete(e.submitted, clientOrderID)
	e.mu.Unlock()
}

func (e *Engine) forgetTerminal(report model.ExecutionReport) {
	if report.Status.IsTerminal() {
		e.forget(report.ClientOrderID)
	}
}
