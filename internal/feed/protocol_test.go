package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

const depthFrame = `{
	"method": "depth.update",
	"params": [
		true,
		{"asks": [["101.5", "2"], ["102", "1"]], "bids": [["100", "3"]], "time": 1700000000000},
		"BTCUSDT"
	]
}`

const deltaFrame = `{
	"method": "depth.update",
	"params": [
		false,
		{"asks": [["101.5", "0"]], "bids": [["100", "4"]], "time": 1700000000500},
		"BTCUSDT"
	]
}`

func decodeFrame(t *testing.T, raw string) streamResponse {
	t.Helper()

	var resp streamResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	return resp
}

func TestDepthSnapshotFrame(t *testing.T) {
	resp := decodeFrame(t, depthFrame)

	var full bool
	require.NoError(t, resp.Unmarshal(0, &full))
	require.True(t, full)

	var payload depthPayload
	require.NoError(t, resp.Unmarshal(1, &payload))

	var market string
	require.NoError(t, resp.Unmarshal(2, &market))
	assert.Equal(t, "BTCUSDT", market)

	event, err := depthEvent(model.Symbol(market), "binance", full, payload)
	require.NoError(t, err)

	snap, ok := event.(model.OrderBookSnapshot)
	require.True(t, ok)
	assert.Equal(t, model.Symbol("BTCUSDT"), snap.Symbol)
	assert.Equal(t, int64(1700000000000), snap.Timestamp)
	require.Len(t, snap.Asks, 2)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Asks[0].Price.Equal(model.RequirePrice("101.5")))
	assert.True(t, snap.Bids[0].Size.Equal(model.RequireSize("3")))
}

func TestDepthDeltaFrameZeroSizeRemoves(t *testing.T) {
	resp := decodeFrame(t, deltaFrame)

	var full bool
	require.NoError(t, resp.Unmarshal(0, &full))
	require.False(t, full)

	var payload depthPayload
	require.NoError(t, resp.Unmarshal(1, &payload))

	event, err := depthEvent("BTCUSDT", "binance", full, payload)
	require.NoError(t, err)

	delta, ok := event.(model.OrderBookDelta)
	require.True(t, ok)
	require.Len(t, delta.Asks, 1)
	assert.True(t, delta.Asks[0].Size.IsZero())
	require.Len(t, delta.Bids, 1)
	assert.True(t, delta.Bids[0].Size.Equal(model.RequireSize("4")))
}

func TestSnapshotRejectsZeroSize(t *testing.T) {
	resp := decodeFrame(t, deltaFrame)

	var payload depthPayload
	require.NoError(t, resp.Unmarshal(1, &payload))

	_, err := depthEvent("BTCUSDT", "binance", true, payload)
	assert.Error(t, err)
}

func TestUnmarshalOutOfRange(t *testing.T) {
	resp := decodeFrame(t, depthFrame)

	var v any
	assert.ErrorIs(t, resp.Unmarshal(3, &v), ErrIndexOutOfRange)
}

func TestTradeFrame(t *testing.T) {
	raw := `{
		"method": "trades.update",
		"params": ["BTCUSDT", [{"id": 42, "time": 1700000001000, "price": "100.5", "amount": "0.25", "type": "sell"}]]
	}`
	resp := decodeFrame(t, raw)

	var market string
	require.NoError(t, resp.Unmarshal(0, &market))

	var trades []tradePayload
	require.NoError(t, resp.Unmarshal(1, &trades))
	require.Len(t, trades, 1)

	event, err := tradeEvent(model.Symbol(market), "binance", trades[0])
	require.NoError(t, err)

	trade, ok := event.(model.Trade)
	require.True(t, ok)
	assert.Equal(t, enum.SideSell, trade.Side)
	assert.Equal(t, "42", trade.TradeID)
	assert.True(t, trade.Price.Equal(model.RequirePrice("100.5")))
	assert.True(t, trade.Size.Equal(model.RequireSize("0.25")))
}

func TestMalformedLevelRow(t *testing.T) {
	raw := `{
		"method": "depth.update",
		"params": [true, {"asks": [["101.5"]], "bids": [], "time": 1}, "BTCUSDT"]
	}`
	resp := decodeFrame(t, raw)

	var payload depthPayload
	require.NoError(t, resp.Unmarshal(1, &payload))

	_, err := depthEvent("BTCUSDT", "binance", true, payload)
	assert.ErrorIs(t, err, ErrBadLevel)
}

func TestSubscribeAckResult(t *testing.T) {
	decode := func(raw string) subscribeResponse {
		var resp subscribeResponse
		require.NoError(t, json.Unmarshal([]byte(raw), &resp))

		return resp
	}

	done, err := ackResult(2, decode(`{"id": 2, "result": {"status": "success"}}`))
	require.NoError(t, err)
	assert.True(t, done)

	// Another request's response keeps waiting.
	done, err = ackResult(3, decode(`{"id": 2, "result": {"status": "success"}}`))
	require.NoError(t, err)
	assert.False(t, done)

	// A matched error response fails fast instead of waiting out the context.
	done, err = ackResult(2, decode(`{"id": 2, "error": {"code": 1, "message": "invalid market"}}`))
	assert.False(t, done)
	assert.ErrorIs(t, err, ErrSubscribeFailure)

	_, err = ackResult(2, decode(`{"id": 2, "result": {"status": "error"}}`))
	assert.ErrorIs(t, err, ErrSubscribeFailure)
}
