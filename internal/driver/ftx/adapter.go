package ftx

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lilwiggy/ex-act/internal/circuit"
	"github.com/lilwiggy/ex-act/internal/metrics"
	"github.com/lilwiggy/ex-act/internal/signer"
	internalsync "github.com/lilwiggy/ex-act/internal/sync"
	"github.com/lilwiggy/ex-act/pkg/domain"
	"github.com/lilwiggy/ex-act/pkg/errors"
	"github.com/lilwiggy/ex-act/pkg/venue"
)

// Adapter implements venue.Adapter for venue D.
type Adapter struct {
	rest      *RESTClient
	ws        *WSClient
	user      *userWSClient
	apiKey    string
	apiSecret string

	mu      sync.RWMutex
	symbols map[string]*domain.SymbolInfo

	marketMu        sync.Mutex
	marketListeners map[string]map[string]venue.EmitFunc
	userMu          sync.Mutex
	userListeners   map[string]venue.EmitFunc

	clock   *internalsync.ClockSync
	breaker *circuit.Breaker
}

func NewAdapter(apiKey, apiSecret string) *Adapter {
	a := &Adapter{
		rest:            NewRESTClient(apiKey, apiSecret),
		apiKey:          apiKey,
		apiSecret:       apiSecret,
		symbols:         make(map[string]*domain.SymbolInfo),
		marketListeners: make(map[string]map[string]venue.EmitFunc),
		userListeners:   make(map[string]venue.EmitFunc),
	}
	a.ws = NewWSClient(a.dispatchMarket)
	a.user = newUserWSClient(a.handleOrderFrame)
	breakerCfg := circuit.DefaultConfig()
	breakerCfg.OnStateChange = func(from, to circuit.State) {
		metrics.CircuitBreakerState.WithLabelValues("ftx").Set(float64(to))
	}
	a.breaker = circuit.NewBreaker("ftx", breakerCfg)
	cfg := internalsync.DefaultClockConfig()
	cfg.TimeProvider = func(ctx context.Context) (int64, error) { return a.FetchServerTime(ctx) }
	a.clock = internalsync.NewClockSync("ftx", cfg)
	return a
}

func (a *Adapter) Tag() venue.Tag { return venue.D }

func (a *Adapter) Load(ctx context.Context) error {
	markets, err := a.rest.FetchMarkets(ctx)
	if err != nil {
		return errors.NewExchangeError("ftx", "load", "failed to fetch markets", err)
	}
	a.mu.Lock()
	for _, m := range markets {
		if !m.Enabled {
			continue
		}
		canon := domain.FormatSymbol(m.BaseCurrency, m.QuoteCurrency)
		a.symbols[m.Name] = &domain.SymbolInfo{
			Exchange:       "ftx",
			Symbol:         canon,
			BaseAsset:      strings.ToUpper(m.BaseCurrency),
			QuoteAsset:     strings.ToUpper(m.QuoteCurrency),
			ExchangeSymbol: m.Name,
			Status:         "TRADING",
			// parsed from the native decimal string the wire sends, never
			// routed through float64.
			PriceStep:    decimalFromJSONNumber(m.PriceIncrement),
			QuantityStep: decimalFromJSONNumber(m.SizeIncrement),
		}
	}
	a.mu.Unlock()
	if err := a.clock.Start(); err != nil {
		log.Warn().Err(err).Str("exchange", "ftx").Msg("clock sync did not start")
	}
	return nil
}

func decimalFromJSONNumber(n json.Number) domain.Decimal {
	if n == "" {
		return nil
	}
	d, err := domain.NewDecimal(n.String())
	if err != nil {
		return nil
	}
	return d
}

func (a *Adapter) nativeSymbol(symbol string) string { return domain.ExchangeSymbol(symbol) }

func (a *Adapter) FetchServerTime(ctx context.Context) (int64, error) {
	return time.Now().UnixMilli(), nil
}

func (a *Adapter) FetchExchangeInfoSymbol(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if info, ok := a.symbols[a.nativeSymbol(symbol)]; ok {
		return info, nil
	}
	return nil, errors.NewNotFoundError("symbol", symbol)
}

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBookTop, error) {
	d, err := a.rest.FetchOrderBook(ctx, a.nativeSymbol(symbol), limit)
	if err != nil {
		return nil, err
	}
	top := &domain.OrderBookTop{
		LastUpdateID: time.Now().UnixMilli(),
		Bids:         levelsFromPairs(d.Bids),
		Asks:         levelsFromPairs(d.Asks),
	}
	if len(top.Bids) > 5 {
		top.Bids = top.Bids[:5]
	}
	if len(top.Asks) > 5 {
		top.Asks = top.Asks[:5]
	}
	return top, nil
}

func (a *Adapter) FetchKlines(ctx context.Context, symbol, interval string, limit int, start, end int64) ([]domain.Kline, error) {
	resolution := resolutionSeconds(interval)
	rows, err := a.rest.FetchCandles(ctx, a.nativeSymbol(symbol), resolution)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Kline, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Kline{
			Exchange: "ftx",
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.UnixMilli(int64(r.Time)),
			Open:     domain.NewDecimalFromFloat64(r.Open),
			High:     domain.NewDecimalFromFloat64(r.High),
			Low:      domain.NewDecimalFromFloat64(r.Low),
			Close:    domain.NewDecimalFromFloat64(r.Close),
			Volume:   domain.NewDecimalFromFloat64(r.Volume),
			IsClosed: true,
		})
	}
	return out, nil
}

func resolutionSeconds(interval string) int {
	switch interval {
	case "1m":
		return 60
	case "5m":
		return 300
	case "15m":
		return 900
	case "1h":
		return 3600
	case "4h":
		return 14400
	case "1d":
		return 86400
	default:
		return 60
	}
}

func (a *Adapter) FetchAveragePrice(ctx context.Context, symbol string) (domain.Decimal, error) {
	t, err := a.rest.FetchMarket(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return domain.NewDecimalFromFloat64((t.Bid + t.Ask) / 2), nil
}

func (a *Adapter) FetchTickerPriceChangeStatistics(ctx context.Context, symbol string) (*domain.Ticker, error) {
	t, err := a.rest.FetchMarket(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return &domain.Ticker{
		Exchange:  "ftx",
		Symbol:    symbol,
		BidPrice:  domain.NewDecimalFromFloat64(t.Bid),
		AskPrice:  domain.NewDecimalFromFloat64(t.Ask),
		LastPrice: domain.NewDecimalFromFloat64(t.Last),
		Timestamp: time.Now(),
	}, nil
}

func (a *Adapter) FetchSymbolPriceTicker(ctx context.Context, symbol string) (domain.Decimal, error) {
	t, err := a.rest.FetchMarket(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return domain.NewDecimalFromFloat64(t.Last), nil
}

// CreateOrder relies on RESTClient.PlaceOrder's internal bounded-retry
// loop to absorb rate-limit rejections under load.
func (a *Adapter) CreateOrder(ctx context.Context, req venue.OrderRequest) (*domain.Order, error) {
	price := 0.0
	if req.Price != nil {
		price, _ = domain.Float64(req.Price)
	}
	size, _ := domain.Float64(req.Quantity)

	var clientID *string
	if req.NewClientOrderID != "" {
		clientID = &req.NewClientOrderID
	}

	raw, err := a.breaker.ExecuteWithResult(func() (any, error) {
		return a.rest.PlaceOrder(ctx, orderParams{
			Market:   a.nativeSymbol(req.Symbol),
			Side:     strings.ToLower(string(req.Side)),
			Price:    price,
			Type:     strings.ToLower(string(req.Type)),
			Size:     size,
			ClientID: clientID,
		})
	})
	if err != nil {
		return nil, err
	}
	result := raw.(*orderResult)

	order := orderResultToDomain(req.Symbol, result)
	if order.Status != domain.OrderStatusNew {
		return a.FetchOrder(ctx, req.Symbol, order.OrderID, "")
	}
	return order, nil
}

func orderResultToDomain(symbol string, r *orderResult) *domain.Order {
	return &domain.Order{
		Exchange:   "ftx",
		Symbol:     symbol,
		OrderID:    r.ID,
		ClientOrderID: r.ClientID,
		Price:      domain.NewDecimalFromFloat64(r.Price),
		OrigQty:    domain.NewDecimalFromFloat64(r.Size),
		ExecQty:    domain.NewDecimalFromFloat64(r.FilledSize),
		Status:     mapOrderStatus(r.Status, r.FilledSize, r.Size),
		Side:       mapSide(r.Side),
		Type:       mapOrderType(r.Type),
		Time:       parseTimeRFC3339(r.CreatedAt),
		IsWorking:  r.Status == "new" || r.Status == "open",
	}
}

func mapOrderStatus(status string, filled, size float64) domain.OrderStatus {
	switch status {
	case "new", "open":
		if filled > 0 && filled < size {
			return domain.OrderStatusPartiallyFilled
		}
		return domain.OrderStatusNew
	case "closed":
		if filled >= size && size > 0 {
			return domain.OrderStatusFilled
		}
		return domain.OrderStatusCanceled
	default:
		return domain.OrderStatusRejected
	}
}

func mapSide(s string) domain.OrderSide {
	if strings.EqualFold(s, "sell") {
		return domain.OrderSideSell
	}
	return domain.OrderSideBuy
}

func mapOrderType(t string) domain.OrderType {
	if strings.EqualFold(t, "market") {
		return domain.OrderTypeMarket
	}
	return domain.OrderTypeLimit
}

func (a *Adapter) FetchOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	r, err := a.rest.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return orderResultToDomain(symbol, r), nil
}

func (a *Adapter) CancelOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	if err := a.rest.CancelOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return a.FetchOrder(ctx, symbol, orderID, origClientOrderID)
}

func (a *Adapter) CancelAllOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	open, err := a.rest.FetchOpenOrders(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(open))
	for _, o := range open {
		if err := a.rest.CancelOrder(ctx, o.ID); err != nil {
			continue
		}
		out = append(out, *orderResultToDomain(symbol, &o))
	}
	return out, nil
}

func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	open, err := a.rest.FetchOpenOrders(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(open))
	for i := range open {
		out = append(out, *orderResultToDomain(symbol, &open[i]))
	}
	return out, nil
}

func (a *Adapter) FetchAccountInformation(ctx context.Context) ([]domain.Balance, error) {
	balances, err := a.rest.FetchBalances(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Balance, 0, len(balances))
	for _, b := range balances {
		out = append(out, domain.Balance{
			Exchange:  "ftx",
			Asset:     strings.ToUpper(b.Coin),
			Free:      domain.NewDecimalFromFloat64(b.Free),
			Locked:    domain.Sub(domain.NewDecimalFromFloat64(b.Total), domain.NewDecimalFromFloat64(b.Free)),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (a *Adapter) FetchFundingWallet(ctx context.Context, asset string) ([]domain.Balance, error) {
	return a.FetchAccountInformation(ctx)
}

func (a *Adapter) FetchAccountTradeList(ctx context.Context, symbol string, startTime int64, limit int) ([]domain.Trade, error) {
	fills, err := a.rest.FetchFills(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(fills) > limit {
		fills = fills[len(fills)-limit:]
	}
	return fillsToDomain(symbol, fills), nil
}

func (a *Adapter) FetchOrderTradeList(ctx context.Context, symbol string, orderID int64) ([]domain.Trade, error) {
	fills, err := a.rest.FetchFills(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	filtered := make([]fillResult, 0, len(fills))
	for _, f := range fills {
		if f.OrderID == orderID {
			filtered = append(filtered, f)
		}
	}
	return fillsToDomain(symbol, filtered), nil
}

func fillsToDomain(symbol string, fills []fillResult) []domain.Trade {
	out := make([]domain.Trade, 0, len(fills))
	for _, f := range fills {
		out = append(out, domain.Trade{
			Exchange:        "ftx",
			Symbol:          symbol,
			ID:              f.ID,
			OrderID:         f.OrderID,
			Price:           domain.NewDecimalFromFloat64(f.Price),
			Quantity:        domain.NewDecimalFromFloat64(f.Size),
			Side:            mapSide(f.Side),
			Commission:      domain.NewDecimalFromFloat64(f.Fee),
			CommissionAsset: f.FeeCurrency,
			Timestamp:       parseTimeRFC3339(f.Time),
		})
	}
	return out
}

func (a *Adapter) StartMarketEventsListener(ctx context.Context, tradeID string, symbol string, channels []string, emit venue.EmitFunc) error {
	a.marketMu.Lock()
	if a.marketListeners[tradeID] == nil {
		a.marketListeners[tradeID] = make(map[string]venue.EmitFunc)
	}
	a.marketListeners[tradeID][symbol] = emit
	a.marketMu.Unlock()

	if err := a.ws.Connect(ctx); err != nil {
		return err
	}
	native := a.nativeSymbol(symbol)
	for _, ch := range channels {
		if err := a.ws.Subscribe(ch, native); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) StartUserEventsListener(ctx context.Context, tradeID string, symbol string, emit venue.EmitFunc) error {
	a.userMu.Lock()
	first := len(a.userListeners) == 0
	a.userListeners[tradeID] = emit
	a.userMu.Unlock()

	if first {
		signFn := func(ts string) string {
			return signPayload(a.apiSecret, ts+"websocket_login")
		}
		if err := a.user.Connect(ctx, a.apiKey, a.apiSecret, signFn); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) StopEventsListener(tradeID string) error {
	a.marketMu.Lock()
	delete(a.marketListeners, tradeID)
	a.marketMu.Unlock()

	a.userMu.Lock()
	delete(a.userListeners, tradeID)
	empty := len(a.userListeners) == 0
	a.userMu.Unlock()

	if empty {
		return a.user.Close()
	}
	return nil
}

func (a *Adapter) Close() error {
	a.clock.Stop()
	a.ws.Close()
	a.user.Close()
	a.rest.Close()
	return nil
}

func (a *Adapter) dispatchMarket(symbol, eventKey string, data any) {
	a.marketMu.Lock()
	defer a.marketMu.Unlock()
	for _, bySymbol := range a.marketListeners {
		if emit, ok := bySymbol[symbol]; ok {
			emit(eventKey, data)
		}
	}
}

func (a *Adapter) handleOrderFrame(raw json.RawMessage) {
	var frame struct {
		ID         int64   `json:"id"`
		Market     string  `json:"market"`
		Side       string  `json:"side"`
		Type       string  `json:"type"`
		Status     string  `json:"status"`
		Price      float64 `json:"price"`
		Size       float64 `json:"size"`
		FilledSize float64 `json:"filledSize"`
		ClientID   string  `json:"clientId"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}
	order := orderResultToDomain(frame.Market, &orderResult{
		ID: frame.ID, Market: frame.Market, Side: frame.Side, Type: frame.Type,
		Price: frame.Price, Size: frame.Size, FilledSize: frame.FilledSize,
		Status: frame.Status, ClientID: frame.ClientID,
	})

	a.userMu.Lock()
	defer a.userMu.Unlock()
	for _, emit := range a.userListeners {
		emit("executionReport", &domain.ExecutionReport{
			Order:         *order,
			ExecutionType: strings.ToUpper(frame.Status),
		})
	}
}

// signPayload signs the websocket login challenge through the shared
// per-venue signer rather than hand-rolling HMAC here.
func signPayload(secret, payload string) string {
	return signer.Sign(venue.D, []byte(secret), []byte(payload))
}
