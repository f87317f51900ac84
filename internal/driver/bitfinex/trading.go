package bitfinex

import (
	"context"
	"fmt"
	"time"

	"github.com/lilwiggy/ex-act/pkg/errors"
)

// candleRow is venue C's [MTS, OPEN, CLOSE, HIGH, LOW, VOLUME] shape.
type candleRow [6]float64

func (rc *RESTClient) FetchCandles(ctx context.Context, interval, symbol string, limit int) ([]candleRow, error) {
	path := fmt.Sprintf(ECandles, interval, symbol)
	_ = limit
	var out []candleRow
	if err := rc.getPublic(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// tickerRow is venue C's trading-pair ticker: [BID, BID_SIZE, ASK,
// ASK_SIZE, DAILY_CHANGE, DAILY_CHANGE_RELATIVE, LAST_PRICE, VOLUME,
// HIGH, LOW].
type tickerRow [10]float64

func (rc *RESTClient) FetchTicker(ctx context.Context, symbol string) (*tickerRow, error) {
	path := fmt.Sprintf(ETicker, symbol)
	var out tickerRow
	if err := rc.getPublic(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// orderNewRequest mirrors venue C's order/submit body.
type orderNewRequest struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
	Price  string `json:"price,omitempty"`
	CID    int64  `json:"cid,omitempty"`
}

// orderNewResult is venue C's notify envelope:
// [MTS, TYPE, MESSAGE_ID, null, [ORDER], CODE, STATUS, TEXT].
type orderNewResult struct {
	MTS       int64
	OrderRows [][]any
	Status    string
	Text      string
}

func (rc *RESTClient) SubmitOrder(ctx context.Context, req orderNewRequest) (*orderNewResult, error) {
	var raw []any
	if err := rc.postSigned(ctx, EAuthOrderNew, req, &raw); err != nil {
		return nil, err
	}
	if len(raw) < 8 {
		return nil, errors.NewExchangeError("bitfinex", "submitOrder", "malformed notify envelope", nil)
	}
	result := &orderNewResult{}
	if v, ok := raw[0].(float64); ok {
		result.MTS = int64(v)
	}
	if rows, ok := raw[4].([]any); ok {
		result.OrderRows = [][]any{rows}
	}
	if v, ok := raw[6].(string); ok {
		result.Status = v
	}
	if v, ok := raw[7].(string); ok {
		result.Text = v
	}
	return result, nil
}

// FetchOrderRow returns the raw order array for orderID, searching open
// orders first and falling back to order history — venue C confirms a
// fill only asynchronously, so callers must poll this until the status
// field reports EXECUTED or CANCELED.
func (rc *RESTClient) FetchOrderRow(ctx context.Context, symbol string, orderID int64) ([]any, error) {
	var active [][]any
	if err := rc.postSigned(ctx, EAuthOrdersActive, map[string]any{}, &active); err != nil {
		return nil, err
	}
	for _, row := range active {
		if id, ok := row[0].(float64); ok && int64(id) == orderID {
			return row, nil
		}
	}

	path := fmt.Sprintf(EAuthOrdersHist, symbol)
	var hist [][]any
	if err := rc.postSigned(ctx, path, map[string]any{}, &hist); err != nil {
		return nil, err
	}
	for _, row := range hist {
		if id, ok := row[0].(float64); ok && int64(id) == orderID {
			return row, nil
		}
	}
	return nil, errors.NewNotFoundError("bitfinex order", fmt.Sprintf("%d", orderID))
}

// PollUntilVisible polls FetchOrderRow until the order appears or the
// deadline passes, absorbing the propagation delay between an order/new
// ack and the order becoming queryable.
func (rc *RESTClient) PollUntilVisible(ctx context.Context, symbol string, orderID int64, timeout time.Duration) ([]any, error) {
	deadline := time.Now().Add(timeout)
	for {
		row, err := rc.FetchOrderRow(ctx, symbol, orderID)
		if err == nil {
			return row, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (rc *RESTClient) SubmitCancel(ctx context.Context, orderID int64) ([]any, error) {
	var raw []any
	if err := rc.postSigned(ctx, EAuthOrderCancel, map[string]any{"id": orderID}, &raw); err != nil {
		return nil, err
	}
	if len(raw) < 5 {
		return nil, errors.NewExchangeError("bitfinex", "cancelOrder", "malformed notify envelope", nil)
	}
	if rows, ok := raw[4].([]any); ok {
		return rows, nil
	}
	return nil, errors.NewExchangeError("bitfinex", "cancelOrder", "order row missing from cancel ack", nil)
}

func (rc *RESTClient) FetchActiveOrders(ctx context.Context, symbol string) ([][]any, error) {
	var out [][]any
	body := map[string]any{}
	if symbol != "" {
		body["symbol"] = symbol
	}
	if err := rc.postSigned(ctx, EAuthOrdersActive, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// walletRow is [WALLET_TYPE, CURRENCY, BALANCE, UNSETTLED_INTEREST, AVAILABLE_BALANCE].
type walletRow [5]any

func (rc *RESTClient) FetchWallets(ctx context.Context) ([]walletRow, error) {
	var raw [][]any
	if err := rc.postSigned(ctx, EAuthWallets, map[string]any{}, &raw); err != nil {
		return nil, err
	}
	out := make([]walletRow, 0, len(raw))
	for _, r := range raw {
		var w walletRow
		for i := 0; i < len(r) && i < 5; i++ {
			w[i] = r[i]
		}
		out = append(out, w)
	}
	return out, nil
}

func (rc *RESTClient) FetchTrades(ctx context.Context, symbol string) ([][]any, error) {
	path := fmt.Sprintf(EAuthTrades, symbol)
	var out [][]any
	if err := rc.postSigned(ctx, path, map[string]any{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
