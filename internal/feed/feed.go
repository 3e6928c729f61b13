// Package feed streams venue market data over websocket and publishes it as
// engine events.
package feed

import (
	"context"
	"strconv"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/errors"
	"main/internal/model"
)

// Config selects the stream endpoint and the instruments to follow.
type Config struct {
	URL      string
	Exchange model.Exchange
	Symbols  []model.Symbol

	// Depth is the number of book levels to request; zero means venue
	// default.
	Depth int
}

// Publisher receives every decoded event, in arrival order.
type Publisher func(model.Event) error

// Feed owns one websocket session and the per-symbol subscriptions on it.
type Feed struct {
	cfg     Config
	wss     *ws.WebSocket
	publish Publisher
}

func New(ctx context.Context, cfg Config, publish Publisher) *Feed {
	return &Feed{
		cfg:     cfg,
		wss:     ws.New(ctx, cfg.URL),
		publish: publish,
	}
}

func (f *Feed) Close() {
	f.wss.Close()
}

// Start connects, subscribes every configured symbol and begins decoding.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	for _, symbol := range f.cfg.Symbols {
		if err := f.subscribeDepth(ctx, symbol); err != nil {
			return errors.Wrapf(err, "subscribe depth %s", symbol)
		}

		if err := f.subscribeTrades(ctx, symbol); err != nil {
			return errors.Wrapf(err, "subscribe trades %s", symbol)
		}
	}

	f.observe(ctx)

	return nil
}

func (f *Feed) subscribeDepth(ctx context.Context, symbol model.Symbol) error {
	depth := f.cfg.Depth
	if depth <= 0 {
		depth = 50
	}

	return f.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			if err := client.WriteJSON(map[string]any{
				"id":     wsMethodDepthID,
				"method": "depth.subscribe",
				"params": []any{string(symbol), depth, strconv.FormatFloat(0.00000001, 'f', 8, 64)},
			}); err != nil {
				return errors.Wrap(err, "write subscribe depth payload")
			}

			return nil
		},
		Waiter: waitSubscribeAck(wsMethodDepthID),
	})
}

func (f *Feed) subscribeTrades(ctx context.Context, symbol model.Symbol) error {
	return f.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			if err := client.WriteJSON(map[string]any{
				"id":     wsMethodTradeID,
				"method": "trades.subscribe",
				"params": []any{string(symbol)},
			}); err != nil {
				return errors.Wrap(err, "write subscribe trades payload")
			}

			return nil
		},
		Waiter: waitSubscribeAck(wsMethodTradeID),
	})
}

func waitSubscribeAck(id int) func(context.Context, ws.Message) (bool, error) {
	return func(ctx context.Context, m ws.Message) (bool, error) {
		resp, ok := ws.ReadMessage[subscribeResponse](m)
		if !ok {
			return false, nil
		}

		return ackResult(id, resp)
	}
}

// ackResult matches a subscribe response against the request id. A matched
// failure response aborts the wait instead of riding out the context.
func ackResult(id int, resp subscribeResponse) (bool, error) {
	if resp.ID != id {
		return false, nil
	}

	if resp.Error != nil {
		return false, errors.Wrapf(ErrSubscribeFailure,
			"id %d code %d: %s", id, resp.Error.Code, resp.Error.Message)
	}

	if resp.Result.Status != "success" {
		return false, errors.Wrapf(ErrSubscribeFailure,
			"id %d status %q", id, resp.Result.Status)
	}

	return true, nil
}

func (f *Feed) observe(ctx context.Context) {
	ch, cancel := f.wss.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[streamResponse](m)
				if !ok {
					continue
				}

				switch resp.Method {
				case methodDepthUpdate:
					f.handleDepth(resp)
				case methodTradeUpdate:
					f.handleTrades(resp)
				}
			}
		}
	}()
}

func (f *Feed) handleDepth(resp streamResponse) {
	var full bool
	if err := resp.Unmarshal(0, &full); err != nil {
		logs.Errorf("unmarshal depth full, err: %+v", err)
		return
	}

	var payload depthPayload
	if err := resp.Unmarshal(1, &payload); err != nil {
		logs.Errorf("unmarshal depth payload, err: %+v", err)
		return
	}

	var market string
	if err := resp.Unmarshal(2, &market); err != nil {
		logs.Errorf("unmarshal depth market, err: %+v", err)
		return
	}

	event, err := depthEvent(model.Symbol(market), f.cfg.Exchange, full, payload)
	if err != nil {
		logs.Errorf("decode depth %s, err: %+v", market, err)
		return
	}

	if err := f.publish(event); err != nil {
		logs.Errorf("publish depth %s, err: %+v", market, err)
	}
}

func (f *Feed) handleTrades(resp streamResponse) {
	var market string
	if err := resp.Unmarshal(0, &market); err != nil {
		logs.Errorf("unmarshal trades market, err: %+v", err)
		return
	}

	var trades []tradePayload
	if err := resp.Unmarshal(1, &trades); err != nil {
		logs.Errorf("unmarshal trades payload, err: %+v", err)
		return
	}

	for _, t := range trades {
		event, err := tradeEvent(model.Symbol(market), f.cfg.Exchange, t)
		if err != nil {
			logs.Errorf("decode trade %s, err: %+v", market, err)
			continue
		}

		if err := f.publish(event); err != nil {
			logs.Errorf("publish trade %s, err: %+v", market, err)
		}
	}
}

func depthEvent(symbol model.Symbol, exchange model.Exchange, full bool, payload depthPayload) (model.Event, error) {
	if full {
		bids, err := levelsFromRows(payload.Bids, false)
		if err != nil {
			return nil, errors.Wrap(err, "snapshot bids")
		}

		asks, err := levelsFromRows(payload.Asks, false)
		if err != nil {
			return nil, errors.Wrap(err, "snapshot asks")
		}

		return model.OrderBookSnapshot{
			Symbol:    symbol,
			Exchange:  exchange,
			Bids:      bids,
			Asks:      asks,
			Timestamp: payload.Time,
		}, nil
	}

	bids, err := levelsFromRows(payload.Bids, true)
	if err != nil {
		return nil, errors.Wrap(err, "delta bids")
	}

	asks, err := levelsFromRows(payload.Asks, true)
	if err != nil {
		return nil, errors.Wrap(err, "delta asks")
	}

	return model.OrderBookDelta{
		Symbol:    symbol,
		Exchange:  exchange,
		Bids:      bids,
		Asks:      asks,
		Timestamp: payload.Time,
	}, nil
}

func tradeEvent(symbol model.Symbol, exchange model.Exchange, t tradePayload) (model.Event, error) {
	price, err := model.NewPrice(t.Price.String())
	if err != nil {
		return nil, errors.Wrap(err, "trade price")
	}

	size, err := model.NewSize(t.Amount.String())
	if err != nil {
		return nil, errors.Wrap(err, "trade size")
	}

	return model.Trade{
		Symbol:    symbol,
		Exchange:  exchange,
		Price:     price,
		Size:      size,
		Side:      sideFromType(t.Type),
		Timestamp: t.Time,
		TradeID:   strconv.FormatInt(t.ID, 10),
	}, nil
}
