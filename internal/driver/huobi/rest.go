package huobi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lilwiggy/ex-act/internal/ratelimit"
	"github.com/lilwiggy/ex-act/internal/signer"
	"github.com/lilwiggy/ex-act/pkg/errors"
	"github.com/lilwiggy/ex-act/pkg/venue"
	"resty.dev/v3"
)

// RESTClient speaks Huobi's "Signature Version 2" REST dialect: every
// signed request carries AccessKeyId/SignatureMethod/SignatureVersion/
// Timestamp as query parameters, and the signature covers
// "METHOD\nHOST\nPATH\n<sorted query string>".
type RESTClient struct {
	client      *resty.Client
	apiKey      string
	apiSecret   string
	rateLimiter *ratelimit.WeightedLimiter
}

func NewRESTClient(apiKey, apiSecret string, testnet bool) *RESTClient {
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

// sign computes the query string for a signed request, including the
// trailing Signature parameter.
func (rc *RESTClient) sign(method, path string, params url.Values) url.Values {
	params.Set("AccessKeyId", rc.apiKey)
	params.Set("SignatureMethod", "HmacSHA256")
	params.Set("SignatureVersion", "2")
	params.Set("Timestamp", time.Now().UTC().Format("2006-01-02T15:04:05"))

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(params.Get(k)))
	}

	payload := fmt.Sprintf("%s\n%s\n%s\n%s", method, SignatureHost, path, sb.String())
	sig := signer.Sign(venue.B, []byte(rc.apiSecret), []byte(payload))
	params.Set("Signature", sig)
	return params
}

func (rc *RESTClient) getSigned(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if err := rc.rateLimiter.Wait(ctx, 1); err != nil {
		return err
	}
	signed := rc.sign("GET", path, params)
	resp, err := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(signed).SetResult(out).Get(path)
	if err != nil {
		return errors.NewConnectionError("huobi", path, err.Error(), true)
	}
	return rc.checkEnvelope(resp)
}

func (rc *RESTClient) postSigned(ctx context.Context, path string, body map[string]any, out any) error {
	if err := rc.rateLimiter.Wait(ctx, 1); err != nil {
		return err
	}
	signed := rc.sign("POST", path, url.Values{})
	resp, err := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(signed).SetBody(body).SetResult(out).Post(path)
	if err != nil {
		return errors.NewConnectionError("huobi", path, err.Error(), true)
	}
	return rc.checkEnvelope(resp)
}

func (rc *RESTClient) getPublic(ctx context.Context, path string, params url.Values, out any) error {
	if err := rc.rateLimiter.Wait(ctx, 1); err != nil {
		return err
	}
	resp, err := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(params).SetResult(out).Get(path)
	if err != nil {
		return errors.NewConnectionError("huobi", path, err.Error(), true)
	}
	return rc.checkEnvelope(resp)
}

// envelope mirrors Huobi's { status, "err-code", "err-msg", data } shape.
type envelope struct {
	Status  string          `json:"status"`
	ErrCode string          `json:"err-code"`
	ErrMsg  string          `json:"err-msg"`
	Data    json.RawMessage `json:"data"`
}

func (rc *RESTClient) checkEnvelope(resp *resty.Response) error {
	if !resp.IsSuccess() {
		return errors.NewConnectionError("huobi", resp.Request.URL, fmt.Sprintf("HTTP %d", resp.StatusCode()), false)
	}
	return nil
}

// --- wire shapes ---

type symbolEntry struct {
	BaseCurrency     string `json:"base-currency"`
	QuoteCurrency    string `json:"quote-currency"`
	PricePrecision   int    `json:"price-precision"`
	AmountPrecision  int    `json:"amount-precision"`
	SymbolPartition  string `json:"symbol-partition"`
	Symbol           string `json:"symbol"`
	State            string `json:"state"`
	MinOrderAmt      string `json:"min-order-amt"`
	MaxOrderAmt      string `json:"max-order-amt"`
	MinOrderValue    string `json:"min-order-value"`
}

func (rc *RESTClient) FetchServerTime(ctx context.Context) (int64, error) {
	var env envelope
	if err := rc.getPublic(ctx, EPing, nil, &env); err != nil {
		return 0, err
	}
	var ts int64
	if err := json.Unmarshal(env.Data, &ts); err != nil {
		return 0, err
	}
	return ts, nil
}

func (rc *RESTClient) FetchSymbols(ctx context.Context) ([]symbolEntry, error) {
	var env envelope
	if err := rc.getPublic(ctx, ECommonSymbols, nil, &env); err != nil {
		return nil, err
	}
	var out []symbolEntry
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type accountEntry struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	State string `json:"state"`
}

// ResolveSpotAccountID finds and caches this account's spot sub-account.
func (rc *RESTClient) ResolveSpotAccountID(ctx context.Context) (int64, error) {
	var env envelope
	if err := rc.getSigned(ctx, EAccounts, nil, &env); err != nil {
		return 0, err
	}
	var accounts []accountEntry
	if err := json.Unmarshal(env.Data, &accounts); err != nil {
		return 0, err
	}
	for _, a := range accounts {
		if a.Type == "spot" {
			return a.ID, nil
		}
	}
	return 0, errors.NewNotFoundError("huobi account", "spot")
}

type depthResult struct {
	Ts  int64 `json:"ts"`
	Tick struct {
		Bids [][2]float64 `json:"bids"`
		Asks [][2]float64 `json:"asks"`
		Ts   int64        `json:"ts"`
	} `json:"tick"`
}

func (rc *RESTClient) FetchDepth(ctx context.Context, symbol string, depth int) (*depthResult, error) {
	params := url.Values{"symbol": {strings.ToLower(symbol)}, "type": {"step0"}}
	_ = depth
	var env envelope
	if err := rc.getPublic(ctx, EDepth, params, &env); err != nil {
		return nil, err
	}
	var out depthResult
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
