package ftx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lilwiggy/ex-act/pkg/errors"
)

type candleRow struct {
	StartTime string  `json:"startTime"`
	Time      float64 `json:"time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (rc *RESTClient) FetchCandles(ctx context.Context, market string, resolutionSeconds int) ([]candleRow, error) {
	path := fmt.Sprintf(ECandles, market)
	var out []candleRow
	if err := rc.getPublic(ctx, fmt.Sprintf("%s?resolution=%d", path, resolutionSeconds), &out); err != nil {
		return nil, err
	}
	return out, nil
}

type marketTicker struct {
	Name string  `json:"name"`
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Last float64 `json:"last"`
}

func (rc *RESTClient) FetchMarket(ctx context.Context, market string) (*marketTicker, error) {
	path := fmt.Sprintf(EMarket, market)
	var out marketTicker
	if err := rc.getPublic(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type orderParams struct {
	Market   string  `json:"market"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Type     string  `json:"type"`
	Size     float64 `json:"size"`
	ClientID *string `json:"clientId"`
}

type orderResult struct {
	ID        int64  `json:"id"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	FilledSize float64 `json:"filledSize"`
	RemainingSize float64 `json:"remainingSize"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	ClientID  string `json:"clientId"`
}

// PlaceOrder makes up to MaxCreateOrderAttempts attempts on rate-limit
// errors, backing off with jitter proportional to the attempt count.
func (rc *RESTClient) PlaceOrder(ctx context.Context, params orderParams) (*orderResult, error) {
	var lastErr error
	for attempt := 0; attempt < MaxCreateOrderAttempts; attempt++ {
		resp, err := rc.doSigned(ctx, "POST", EOrders, nil, params)
		if err == nil {
			var out orderResult
			if uerr := unmarshalResult(resp, &out); uerr != nil {
				return nil, uerr
			}
			return &out, nil
		}
		if _, ok := err.(*errors.RateLimitError); !ok {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(randomJitter(attempt + 1)):
		}
	}
	return nil, lastErr
}

func (rc *RESTClient) FetchOrder(ctx context.Context, orderID int64) (*orderResult, error) {
	path := fmt.Sprintf(EOrderByID, orderID)
	resp, err := rc.doSigned(ctx, "GET", path, nil, nil)
	if err != nil {
		return nil, err
	}
	var out orderResult
	if err := unmarshalResult(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (rc *RESTClient) CancelOrder(ctx context.Context, orderID int64) error {
	path := fmt.Sprintf(EOrderByID, orderID)
	_, err := rc.doSigned(ctx, "DELETE", path, nil, nil)
	return err
}

func (rc *RESTClient) FetchOpenOrders(ctx context.Context, market string) ([]orderResult, error) {
	query := map[string]string{}
	if market != "" {
		query["market"] = market
	}
	resp, err := rc.doSigned(ctx, "GET", EOrdersOpen, query, nil)
	if err != nil {
		return nil, err
	}
	var out []orderResult
	if err := unmarshalResult(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type fillResult struct {
	ID      int64   `json:"id"`
	Market  string  `json:"market"`
	OrderID int64   `json:"orderId"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Side    string  `json:"side"`
	Time    string  `json:"time"`
	Fee     float64 `json:"fee"`
	FeeCurrency string `json:"feeCurrency"`
}

func (rc *RESTClient) FetchFills(ctx context.Context, market string) ([]fillResult, error) {
	query := map[string]string{}
	if market != "" {
		query["market"] = market
	}
	resp, err := rc.doSigned(ctx, "GET", EFills, query, nil)
	if err != nil {
		return nil, err
	}
	var out []fillResult
	if err := unmarshalResult(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type balanceEntry struct {
	Coin  string  `json:"coin"`
	Free  float64 `json:"free"`
	Total float64 `json:"total"`
}

func (rc *RESTClient) FetchBalances(ctx context.Context) ([]balanceEntry, error) {
	resp, err := rc.doSigned(ctx, "GET", EBalances, nil, nil)
	if err != nil {
		return nil, err
	}
	var out []balanceEntry
	if err := unmarshalResult(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func unmarshalResult(resp *apiResponse, out any) error {
	if resp == nil {
		return errors.NewExchangeError("ftx", "unmarshal", "nil response", nil)
	}
	if len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}

func parseTimeRFC3339(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
