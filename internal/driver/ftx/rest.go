package ftx

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/lilwiggy/ex-act/internal/ratelimit"
	"github.com/lilwiggy/ex-act/internal/signer"
	"github.com/lilwiggy/ex-act/pkg/errors"
	"github.com/lilwiggy/ex-act/pkg/venue"
	"resty.dev/v3"
)

// RESTClient speaks venue D's dialect: every signed request hashes
// "<timestampMs><METHOD><path><body>" with HMAC-SHA256 hex into the
// FTX-SIGN header alongside FTX-KEY/FTX-TS.
type RESTClient struct {
	client      *resty.Client
	apiKey      string
	apiSecret   string
	rateLimiter *ratelimit.WeightedLimiter
}

func NewRESTClient(apiKey, apiSecret string) *RESTClient {
	client := resty.New().SetBaseURL(BaseRestURL)
	client.SetHeader("Content-Type", "application/json")
	return &RESTClient{
		client:      client,
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		rateLimiter: ratelimit.NewWeightedLimiter(ratelimit.DefaultMaxWeight),
	}
}

func (rc *RESTClient) Close() { rc.client.Close() }

type apiResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Result  json.RawMessage `json:"result"`
}

func (rc *RESTClient) sign(ts, method, path string, body []byte) string {
	payload := ts + method + path + string(body)
	return signer.Sign(venue.D, []byte(rc.apiSecret), []byte(payload))
}

func (rc *RESTClient) doSigned(ctx context.Context, method, path string, query map[string]string, body any) (*apiResponse, error) {
	if err := rc.rateLimiter.Wait(ctx, 1); err != nil {
		return nil, err
	}
	var payload []byte
	var err error
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sig := rc.sign(ts, method, path, payload)

	req := rc.client.R().SetContext(ctx).
		SetHeader("FTX-KEY", rc.apiKey).
		SetHeader("FTX-SIGN", sig).
		SetHeader("FTX-TS", ts)
	for k, v := range query {
		req.SetQueryParam(k, v)
	}
	if payload != nil {
		req.SetBody(payload)
	}

	var resp *resty.Response
	switch strings.ToUpper(method) {
	case "GET":
		resp, err = req.Get(path)
	case "POST":
		resp, err = req.Post(path)
	case "DELETE":
		resp, err = req.Delete(path)
	default:
		return nil, fmt.Errorf("ftx: unsupported method %s", method)
	}
	if err != nil {
		return nil, errors.NewConnectionError("ftx", path, err.Error(), true)
	}

	var out apiResponse
	if err := json.Unmarshal(resp.Bytes(), &out); err != nil {
		return nil, errors.NewExchangeError("ftx", path, "malformed response", err)
	}
	if resp.StatusCode() == 429 {
		return nil, errors.NewRateLimitError("ftx", time.Second, 1)
	}
	if !out.Success {
		return nil, errors.NewExchangeError("ftx", path, out.Error, nil)
	}
	return &out, nil
}

func (rc *RESTClient) getPublic(ctx context.Context, path string, out any) error {
	if err := rc.rateLimiter.Wait(ctx, 1); err != nil {
		return err
	}
	resp, err := rc.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return errors.NewConnectionError("ftx", path, err.Error(), true)
	}
	var env apiResponse
	if err := json.Unmarshal(resp.Bytes(), &env); err != nil {
		return err
	}
	if !env.Success {
		return errors.NewExchangeError("ftx", path, env.Error, nil)
	}
	return json.Unmarshal(env.Result, out)
}

type marketInfo struct {
	Name           string      `json:"name"`
	BaseCurrency   string      `json:"baseCurrency"`
	QuoteCurrency  string      `json:"quoteCurrency"`
	PriceIncrement json.Number `json:"priceIncrement"`
	SizeIncrement  json.Number `json:"sizeIncrement"`
	Enabled        bool        `json:"enabled"`
}

func (rc *RESTClient) FetchMarkets(ctx context.Context) ([]marketInfo, error) {
	var out []marketInfo
	if err := rc.getPublic(ctx, EMarkets, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type depthResult struct {
	Bids [][2]float64 `json:"bids"`
	Asks [][2]float64 `json:"asks"`
}

func (rc *RESTClient) FetchOrderBook(ctx context.Context, market string, depth int) (*depthResult, error) {
	path := fmt.Sprintf(EOrderBook, market)
	if depth <= 0 {
		depth = 20
	}
	var raw struct {
		Bids [][2]float64 `json:"bids"`
		Asks [][2]float64 `json:"asks"`
	}
	if err := rc.getPublic(ctx, fmt.Sprintf("%s?depth=%d", path, depth), &raw); err != nil {
		return nil, err
	}
	return &depthResult{Bids: raw.Bids, Asks: raw.Asks}, nil
}

func randomJitter(attempt int) time.Duration {
	return time.Duration(float64(time.Second) * 0.1 * float64(attempt) * (0.5 + rand.Float64()))
}
