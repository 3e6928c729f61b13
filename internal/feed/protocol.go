package feed

import (
	"encoding/json"

	sdecimal "github.com/shopspring/decimal"
	"github.com/yanun0323/decimal"

	"main/internal/errors"
	"main/internal/model"
	"main/internal/model/enum"
)

const (
	wsMethodDepthID = 2
	wsMethodTradeID = 3

	methodDepthUpdate = "depth.update"
	methodTradeUpdate = "trades.update"
)

var (
	ErrIndexOutOfRange  = errors.New("params index out of range")
	ErrBadLevel         = errors.New("level row must be [price, size]")
	ErrSubscribeFailure = errors.New("venue rejected subscription")
)

type subscribeResponse struct {
	ID int `json:"id"`

	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`

	Result struct {
		Status string `json:"status"`
	} `json:"result"`
}

type streamResponse struct {
	ID     any               `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func (r streamResponse) Unmarshal(index int, p any) error {
	if index >= len(r.Params) {
		return ErrIndexOutOfRange
	}

	if err := json.Unmarshal(r.Params[index], p); err != nil {
		return errors.Wrap(err, "unmarshal param")
	}

	return nil
}

// depthPayload is the venue's book frame. Rows are [price, size]; a zero size
// removes the level in incremental frames.
type depthPayload struct {
	Asks [][]decimal.Decimal `json:"asks"`
	Bids [][]decimal.Decimal `json:"bids"`
	Time int64               `json:"time"`
}

type tradePayload struct {
	ID     int64           `json:"id"`
	Time   int64           `json:"time"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
}

func levelsFromRows(rows [][]decimal.Decimal, allowZero bool) ([]model.Level, error) {
	levels := make([]model.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, ErrBadLevel
		}

		price, err := model.NewPrice(row[0].String())
		if err != nil {
			return nil, errors.Wrap(err, "level price")
		}

		quantity, err := sdecimal.NewFromString(row[1].String())
		if err != nil {
			return nil, errors.Wrap(err, "level size")
		}

		if quantity.IsZero() {
			if !allowZero {
				return nil, errors.Wrap(model.ErrNonPositive, "snapshot level size")
			}

			levels = append(levels, model.RemoveLevel(price))
			continue
		}

		size, err := model.SizeFromDecimal(quantity)
		if err != nil {
			return nil, errors.Wrap(err, "level size")
		}

		levels = append(levels, model.Level{Price: price, Size: size})
	}

	return levels, nil
}

func sideFromType(t string) enum.Side {
	if t == "sell" {
		return enum.SideSell
	}

	return enum.SideBuy
}
