package huobi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lilwiggy/ex-act/pkg/errors"
)

type klineRow struct {
	ID     int64   `json:"id"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Amount float64 `json:"amount"`
	Vol    float64 `json:"vol"`
	Count  int64   `json:"count"`
}

func (rc *RESTClient) FetchKlines(ctx context.Context, symbol, period string, size int) ([]klineRow, error) {
	params := url.Values{"symbol": {strings.ToLower(symbol)}, "period": {period}}
	if size > 0 {
		params.Set("size", strconv.Itoa(size))
	}
	var env envelope
	if err := rc.getPublic(ctx, EKline, params, &env); err != nil {
		return nil, err
	}
	var out []klineRow
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type tickerDetail struct {
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Amount float64 `json:"amount"`
	Vol    float64 `json:"vol"`
	Bid    [2]float64 `json:"bid"`
	Ask    [2]float64 `json:"ask"`
	Ts     int64   `json:"ts"`
}

func (rc *RESTClient) FetchTickerDetail(ctx context.Context, symbol string) (*tickerDetail, error) {
	params := url.Values{"symbol": {strings.ToLower(symbol)}}
	var env envelope
	if err := rc.getPublic(ctx, ETickerDetail, params, &env); err != nil {
		return nil, err
	}
	var out tickerDetail
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type tradeTick struct {
	Data []struct {
		Price   float64 `json:"price"`
		Amount  float64 `json:"amount"`
		TS      int64   `json:"ts"`
		Direction string `json:"direction"`
	} `json:"data"`
}

func (rc *RESTClient) FetchLastTrade(ctx context.Context, symbol string) (*tradeTick, error) {
	params := url.Values{"symbol": {strings.ToLower(symbol)}}
	var env envelope
	if err := rc.getPublic(ctx, ETrade, params, &env); err != nil {
		return nil, err
	}
	var out tradeTick
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceOrder submits a new order and returns the venue-assigned order id
// as an int64, parsed from the string Huobi returns directly in `data`
// (not an object).
func (rc *RESTClient) PlaceOrder(ctx context.Context, accountID int64, symbol, orderType, amount, price, clientOrderID string) (int64, error) {
	body := map[string]any{
		"account-id": strconv.FormatInt(accountID, 10),
		"symbol":     strings.ToLower(symbol),
		"type":       orderType,
		"amount":     amount,
		"source":     "spot-api",
	}
	if price != "" {
		body["price"] = price
	}
	if clientOrderID != "" {
		body["client-order-id"] = clientOrderID
	}

	var env envelope
	if err := rc.postSigned(ctx, EOrderPlace, body, &env); err != nil {
		return 0, err
	}
	var idStr string
	if err := json.Unmarshal(env.Data, &idStr); err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("huobi: unexpected order id %q", idStr)
	}
	return id, nil
}

type orderDetail struct {
	ID              int64  `json:"id"`
	Symbol          string `json:"symbol"`
	AccountID       int64  `json:"account-id"`
	Amount          string `json:"amount"`
	Price           string `json:"price"`
	CreatedAt       int64  `json:"created-at"`
	Type            string `json:"type"`
	FieldAmount     string `json:"field-amount"`
	FieldCashAmount string `json:"field-cash-amount"`
	FieldFees       string `json:"field-fees"`
	FinishedAt      int64  `json:"finished-at"`
	Source          string `json:"source"`
	State           string `json:"state"`
	ClientOrderID   string `json:"client-order-id"`
}

func (rc *RESTClient) FetchOrderDetail(ctx context.Context, orderID int64) (*orderDetail, error) {
	path := fmt.Sprintf(EOrderDetail, orderID)
	var env envelope
	if err := rc.getSigned(ctx, path, nil, &env); err != nil {
		return nil, err
	}
	var out orderDetail
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitCancel requests cancellation; Huobi confirms asynchronously over
// the private WSS channel, so callers poll FetchOrderDetail afterward.
func (rc *RESTClient) SubmitCancel(ctx context.Context, orderID int64) error {
	path := fmt.Sprintf(EOrderCancel, orderID)
	var env envelope
	return rc.postSigned(ctx, path, nil, &env)
}

type batchCancelResult struct {
	Success []string `json:"success"`
	Failed  []struct {
		OrderID   string `json:"order-id"`
		ErrMsg    string `json:"err-msg"`
	} `json:"failed"`
}

func (rc *RESTClient) BatchCancel(ctx context.Context, orderIDs []string) (*batchCancelResult, error) {
	body := map[string]any{"order-ids": orderIDs}
	var env envelope
	if err := rc.postSigned(ctx, EBatchCancel, body, &env); err != nil {
		return nil, err
	}
	var out batchCancelResult
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (rc *RESTClient) FetchOpenOrders(ctx context.Context, accountID int64, symbol string) ([]orderDetail, error) {
	params := url.Values{
		"account-id": {strconv.FormatInt(accountID, 10)},
		"symbol":     {strings.ToLower(symbol)},
	}
	var env envelope
	if err := rc.getSigned(ctx, EOpenOrders, params, &env); err != nil {
		return nil, err
	}
	var out []orderDetail
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type matchResult struct {
	ID           int64  `json:"id"`
	OrderID      int64  `json:"order-id"`
	MatchID      int64  `json:"match-id"`
	Price        string `json:"price"`
	FilledAmount string `json:"filled-amount"`
	FilledFees   string `json:"filled-fees"`
	CreatedAt    int64  `json:"created-at"`
	Type         string `json:"type"`
	Source       string `json:"source"`
}

func (rc *RESTClient) FetchMatchResults(ctx context.Context, orderID int64) ([]matchResult, error) {
	path := fmt.Sprintf(EMatchResults, orderID)
	var env envelope
	if err := rc.getSigned(ctx, path, nil, &env); err != nil {
		return nil, err
	}
	var out []matchResult
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type balanceEntry struct {
	Currency string `json:"currency"`
	Type     string `json:"type"` // "trade" or "frozen"
	Balance  string `json:"balance"`
}

func (rc *RESTClient) FetchAccountBalance(ctx context.Context, accountID int64) ([]balanceEntry, error) {
	path := fmt.Sprintf(EAccountBalance, accountID)
	var env envelope
	if err := rc.getSigned(ctx, path, nil, &env); err != nil {
		return nil, err
	}
	var wrapper struct {
		List []balanceEntry `json:"list"`
	}
	if err := json.Unmarshal(env.Data, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.List, nil
}

// errOrderNotFound is not returned by any code path; CancelOrder's poll
// loop returns the last FetchOrder result when its budget runs out.
var errOrderNotFound = errors.NewNotFoundError("huobi order", "")
