package bitfinex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lilwiggy/ex-act/internal/ratelimit"
	"github.com/lilwiggy/ex-act/internal/signer"
	internalsync "github.com/lilwiggy/ex-act/internal/sync"
	"github.com/lilwiggy/ex-act/pkg/errors"
	"github.com/lilwiggy/ex-act/pkg/venue"
	"resty.dev/v3"
)

// RESTClient speaks venue C's auth dialect: every private request signs
// "/api/v2<path><nonce><body>" with HMAC-SHA384 hex and carries the
// result in the bfx-signature header alongside bfx-apikey/bfx-nonce.
type RESTClient struct {
	client      *resty.Client
	apiKey      string
	apiSecret   string
	rateLimiter *ratelimit.WeightedLimiter
	nonce       *internalsync.NonceGenerator

	accountID int64
}

func NewRESTClient(apiKey, apiSecret string) *RESTClient {
	client := resty.New().SetBaseURL(BaseRestURL)
	client.SetHeader("Content-Type", "application/json")
	return &RESTClient{
		client:      client,
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		rateLimiter: ratelimit.NewWeightedLimiter(ratelimit.DefaultMaxWeight),
		nonce:       internalsync.NewNonceGenerator(),
	}
}

func (rc *RESTClient) Close() { rc.client.Close() }

func (rc *RESTClient) nextNonce() string {
	return strconv.FormatInt(rc.nonce.GenerateInt64(), 10)
}

func (rc *RESTClient) postSigned(ctx context.Context, path string, body any, out any) error {
	if err := rc.rateLimiter.Wait(ctx, 1); err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	nonce := rc.nextNonce()
	toSign := "/api/v2" + path + nonce + string(payload)
	sig := signer.Sign(venue.C, []byte(rc.apiSecret), []byte(toSign))

	resp, err := rc.client.R().SetContext(ctx).
		SetHeader("bfx-apikey", rc.apiKey).
		SetHeader("bfx-nonce", nonce).
		SetHeader("bfx-signature", sig).
		SetBody(payload).
		SetResult(out).
		Post(path)
	if err != nil {
		return errors.NewConnectionError("bitfinex", path, err.Error(), true)
	}
	if !resp.IsSuccess() {
		return errors.NewConnectionError("bitfinex", path, fmt.Sprintf("HTTP %d", resp.StatusCode()), false)
	}
	return nil
}

func (rc *RESTClient) getPublic(ctx context.Context, path string, out any) error {
	if err := rc.rateLimiter.Wait(ctx, 1); err != nil {
		return err
	}
	resp, err := rc.client.R().SetContext(ctx).SetResult(out).Get(path)
	if err != nil {
		return errors.NewConnectionError("bitfinex", path, err.Error(), true)
	}
	if !resp.IsSuccess() {
		return errors.NewConnectionError("bitfinex", path, fmt.Sprintf("HTTP %d", resp.StatusCode()), false)
	}
	return nil
}

// ResolveSpotAccountID fetches and caches the user id used to scope
// order and wallet endpoints; venue C requires this before any trading
// call can be made.
func (rc *RESTClient) ResolveSpotAccountID(ctx context.Context) (int64, error) {
	var info []json.RawMessage
	if err := rc.postSigned(ctx, EAuthAccountID, []any{}, &info); err != nil {
		return 0, err
	}
	if len(info) == 0 {
		return 0, errors.NewNotFoundError("bitfinex account", "user-id")
	}
	var id int64
	if err := json.Unmarshal(info[0], &id); err != nil {
		return 0, err
	}
	rc.accountID = id
	return id, nil
}

func (rc *RESTClient) FetchServerTime(ctx context.Context) (int64, error) {
	var status []any
	if err := rc.getPublic(ctx, EAuthPing, &status); err != nil {
		return 0, err
	}
	return time.Now().UnixMilli(), nil
}

type symbolSpec struct {
	Pair         string
	PricePrec    int
	AmountPrec   int
	MinOrderSize string
	MaxOrderSize string
}

// FetchSymbols decodes the nested [[["tBTCUSD",[...]],...]] shape venue C
// returns for pair configuration.
func (rc *RESTClient) FetchSymbols(ctx context.Context) ([]symbolSpec, error) {
	var raw [][]any
	if err := rc.getPublic(ctx, ESymbolDetails, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]symbolSpec, 0, len(raw[0]))
	for _, entry := range raw[0] {
		pair, ok := entry.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		name, _ := pair[0].(string)
		details, _ := pair[1].([]any)
		spec := symbolSpec{Pair: "t" + name, PricePrec: 5, AmountPrec: 8}
		if len(details) > 3 {
			if v, ok := details[3].(string); ok {
				spec.MinOrderSize = v
			}
		}
		if len(details) > 4 {
			if v, ok := details[4].(string); ok {
				spec.MaxOrderSize = v
			}
		}
		out = append(out, spec)
	}
	return out, nil
}

type bookLevel struct {
	Price  float64
	Count  int64
	Amount float64
}

func (rc *RESTClient) FetchBook(ctx context.Context, symbol string) ([]bookLevel, error) {
	path := fmt.Sprintf(EBook, symbol)
	var rows [][3]float64
	if err := rc.getPublic(ctx, path, &rows); err != nil {
		return nil, err
	}
	out := make([]bookLevel, len(rows))
	for i, r := range rows {
		out[i] = bookLevel{Price: r[0], Count: int64(r[1]), Amount: r[2]}
	}
	return out, nil
}
