package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lilwiggy/ex-act/internal/circuit"
	"github.com/lilwiggy/ex-act/internal/metrics"
	internalsync "github.com/lilwiggy/ex-act/internal/sync"
	"github.com/lilwiggy/ex-act/pkg/domain"
	"github.com/lilwiggy/ex-act/pkg/errors"
	"github.com/lilwiggy/ex-act/pkg/venue"
)

// Adapter wraps the existing RESTClient/WSClient pair to satisfy
// venue.Adapter for the reference venue. It is the only adapter whose
// wire format equals the canonical domain model, so its parsing layer is
// mostly type conversion rather than translation.
type Adapter struct {
	rest *RESTClient
	ws   *WSClient

	mu      sync.RWMutex
	symbols map[string]*domain.SymbolInfo

	marketMu        sync.Mutex
	marketListeners map[string]map[string]venue.EmitFunc // tradeId -> symbol -> emit
	userMu          sync.Mutex
	userListeners   map[string]venue.EmitFunc // tradeId -> emit

	listenKey   string
	keepAliveCh chan struct{}

	clock   *internalsync.ClockSync
	breaker *circuit.Breaker
}

// NewAdapter builds the reference venue adapter from account credentials.
// It takes no endpoint overrides: the REST/WS clients use the production
// or testnet URLs baked into them, selected by testnet.
func NewAdapter(apiKey, apiSecret string, testnet bool) (*Adapter, error) {
	rest, err := NewRESTClient(Config{
		APIKey:    apiKey,
		APISecret: apiSecret,
		Testnet:   testnet,
	})
	if err != nil {
		return nil, err
	}

	ws := NewWSClient(WSConfig{Testnet: testnet})

	a := &Adapter{
		rest:            rest,
		ws:              ws,
		symbols:         make(map[string]*domain.SymbolInfo),
		marketListeners: make(map[string]map[string]venue.EmitFunc),
		userListeners:   make(map[string]venue.EmitFunc),
	}

	ws.OnTicker(a.dispatchTicker)
	ws.OnOrderBook(a.dispatchOrderBook)
	ws.OnTrade(a.dispatchTrade)
	ws.OnKline(a.dispatchKline)
	ws.OnOrder(a.dispatchOrder)
	ws.OnBalance(a.dispatchBalance)

	breakerCfg := circuit.DefaultConfig()
	breakerCfg.OnStateChange = func(from, to circuit.State) {
		metrics.CircuitBreakerState.WithLabelValues("reference").Set(float64(to))
	}
	a.breaker = circuit.NewBreaker("reference", breakerCfg)
	cfg := internalsync.DefaultClockConfig()
	cfg.TimeProvider = func(ctx context.Context) (int64, error) { return a.rest.GetServerTime(ctx) }
	a.clock = internalsync.NewClockSync("reference", cfg)

	return a, nil
}

func (a *Adapter) Tag() venue.Tag { return venue.Reference }

func (a *Adapter) Load(ctx context.Context) error {
	info, err := a.rest.GetExchangeInfo(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range info.Symbols {
		s := info.Symbols[i]
		sym := &domain.SymbolInfo{
			Exchange:            "reference",
			Symbol:              domain.NormalizeSymbol(s.Symbol),
			BaseAsset:           s.BaseAsset,
			QuoteAsset:          s.QuoteAsset,
			ExchangeSymbol:      s.Symbol,
			Status:              s.Status,
			BaseAssetPrecision:  s.BaseAssetPrecision,
			QuoteAssetPrecision: s.QuoteAssetPrecision,
		}
		applyFilters(sym, s.Filters)
		a.symbols[s.Symbol] = sym
	}
	if err := a.clock.Start(); err != nil {
		log.Warn().Err(err).Str("exchange", "reference").Msg("clock sync did not start")
	}
	return nil
}

// applyFilters fills the mandatory PRICE_FILTER/LOT_SIZE/MIN_NOTIONAL
// fields on sym from exchangeInfo's raw per-symbol filter list. Values
// are parsed from their native decimal strings, never through a
// float64 hop.
func applyFilters(sym *domain.SymbolInfo, filters []map[string]any) {
	for _, f := range filters {
		filterType, _ := f["filterType"].(string)
		switch filterType {
		case "PRICE_FILTER":
			sym.MinPrice = filterDecimal(f, "minPrice")
			sym.MaxPrice = filterDecimal(f, "maxPrice")
			sym.PriceStep = filterDecimal(f, "tickSize")
		case "LOT_SIZE":
			sym.MinQuantity = filterDecimal(f, "minQty")
			sym.MaxQuantity = filterDecimal(f, "maxQty")
			sym.QuantityStep = filterDecimal(f, "stepSize")
		case "MIN_NOTIONAL", "NOTIONAL":
			sym.MinNotional = filterDecimal(f, "minNotional")
		}
	}
}

func filterDecimal(f map[string]any, key string) domain.Decimal {
	s, ok := f[key].(string)
	if !ok || s == "" {
		return nil
	}
	d, err := domain.NewDecimal(s)
	if err != nil {
		return nil
	}
	return d
}

func (a *Adapter) symbolInfo(symbol string) (*domain.SymbolInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	info, ok := a.symbols[symbol]
	return info, ok
}

func (a *Adapter) FetchServerTime(ctx context.Context) (int64, error) {
	return a.rest.GetServerTime(ctx)
}

func (a *Adapter) FetchExchangeInfoSymbol(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	if info, ok := a.symbolInfo(symbol); ok {
		return info, nil
	}
	return nil, errors.NewNotFoundError("symbol", symbol)
}

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBookTop, error) {
	raw, err := a.rest.GetDepth(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	return &domain.OrderBookTop{
		LastUpdateID: raw.LastUpdateID,
		Bids:         convertLevels(raw.Bids),
		Asks:         convertLevels(raw.Asks),
	}, nil
}

func convertLevels(raw [][]string) []domain.OrderBookLevel {
	out := make([]domain.OrderBookLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) != 2 {
			continue
		}
		price, _ := domain.NewDecimal(lvl[0])
		qty, _ := domain.NewDecimal(lvl[1])
		out = append(out, domain.OrderBookLevel{Price: price, Quantity: qty})
	}
	return out
}

func (a *Adapter) FetchKlines(ctx context.Context, symbol, interval string, limit int, start, end int64) ([]domain.Kline, error) {
	raws, err := a.rest.GetKlines(ctx, symbol, interval, limit, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Kline, 0, len(raws))
	for _, r := range raws {
		out = append(out, rawKlineToDomain(symbol, interval, r))
	}
	return out, nil
}

func rawKlineToDomain(symbol, interval string, r RawKline) domain.Kline {
	str := func(i int) string {
		s, _ := r[i].(string)
		return s
	}
	num := func(i int) float64 {
		f, _ := r[i].(float64)
		return f
	}
	dec := func(i int) domain.Decimal {
		d, err := domain.NewDecimal(str(i))
		if err != nil {
			return domain.Zero()
		}
		return d
	}
	return domain.Kline{
		Exchange:             "reference",
		Symbol:               symbol,
		Interval:             interval,
		OpenTime:             time.UnixMilli(int64(num(0))),
		Open:                 dec(1),
		High:                 dec(2),
		Low:                  dec(3),
		Close:                dec(4),
		Volume:               dec(5),
		CloseTime:            time.UnixMilli(int64(num(6))),
		QuoteVolume:          dec(7),
		TradeCount:           int64(num(8)),
		TakerBuyVolume:       dec(9),
		TakerBuyQuoteVolume:  dec(10),
		IsClosed:             true,
	}
}

func (a *Adapter) FetchAveragePrice(ctx context.Context, symbol string) (domain.Decimal, error) {
	return a.rest.GetAvgPrice(ctx, symbol)
}

func (a *Adapter) FetchTickerPriceChangeStatistics(ctx context.Context, symbol string) (*domain.Ticker, error) {
	raw, err := a.rest.GetTicker24h(ctx, symbol)
	if err != nil {
		return nil, err
	}
	dec := func(s string) domain.Decimal {
		d, err := domain.NewDecimal(s)
		if err != nil {
			return domain.Zero()
		}
		return d
	}
	return &domain.Ticker{
		Exchange:           "reference",
		Symbol:             raw.Symbol,
		BidPrice:           dec(raw.BidPrice),
		BidQuantity:        dec(raw.BidQty),
		AskPrice:           dec(raw.AskPrice),
		AskQuantity:        dec(raw.AskQty),
		LastPrice:          dec(raw.LastPrice),
		HighPrice:          dec(raw.HighPrice),
		LowPrice:           dec(raw.LowPrice),
		Volume:             dec(raw.Volume),
		QuoteVolume:        dec(raw.QuoteVolume),
		PriceChange:        dec(raw.PriceChange),
		PriceChangePercent: dec(raw.PriceChangePercent),
		OpenPrice:          dec(raw.OpenPrice),
		Timestamp:          time.UnixMilli(raw.CloseTime),
	}, nil
}

func (a *Adapter) FetchSymbolPriceTicker(ctx context.Context, symbol string) (domain.Decimal, error) {
	return a.rest.GetSymbolPriceTicker(ctx, symbol)
}

func (a *Adapter) CreateOrder(ctx context.Context, req venue.OrderRequest) (*domain.Order, error) {
	p := CreateOrderParams{
		Symbol:           req.Symbol,
		Side:             string(req.Side),
		Type:             string(req.Type),
		TimeInForce:      req.TimeInForce,
		NewClientOrderID: req.NewClientOrderID,
		Test:             req.Test,
	}
	symbol, haveSymbol := a.symbolInfo(req.Symbol)
	if req.Quantity != nil {
		qty := req.Quantity
		if haveSymbol {
			qty = domain.RefineQuantity(qty, symbol.QuantityStep)
		}
		p.Quantity = domain.String(qty)
	}
	if req.QuoteOrderQty != nil {
		p.QuoteOrderQty = domain.String(req.QuoteOrderQty)
	}
	if req.Price != nil {
		price := req.Price
		if haveSymbol {
			price = domain.RefinePrice(price, symbol.PriceStep)
		}
		p.Price = domain.String(price)
	}
	if req.StopPrice != nil {
		p.StopPrice = domain.String(req.StopPrice)
	}
	if req.IcebergQty != nil {
		p.IcebergQty = domain.String(req.IcebergQty)
	}
	result, err := a.breaker.ExecuteWithResult(func() (any, error) {
		return a.rest.CreateOrder(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Order), nil
}

func (a *Adapter) FetchOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	return a.rest.GetOrder(ctx, symbol, orderID, origClientOrderID)
}

func (a *Adapter) CancelOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	return a.rest.CancelOrder(ctx, symbol, orderID, origClientOrderID)
}

func (a *Adapter) CancelAllOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return a.rest.CancelAllOpenOrders(ctx, symbol)
}

func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return a.rest.GetOpenOrders(ctx, symbol)
}

func (a *Adapter) FetchAccountInformation(ctx context.Context) ([]domain.Balance, error) {
	acct, err := a.rest.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Balance, 0, len(acct.Balances))
	for _, b := range acct.Balances {
		out = append(out, domain.Balance{
			Exchange: "reference",
			Asset:    b.Asset,
			Free:     b.Free,
			Locked:   b.Locked,
		})
	}
	return out, nil
}

func (a *Adapter) FetchFundingWallet(ctx context.Context, asset string) ([]domain.Balance, error) {
	// The reference venue exposes funding balances through the same
	// spot account endpoint; this venue has no separate funding wallet.
	balances, err := a.FetchAccountInformation(ctx)
	if err != nil {
		return nil, err
	}
	if asset == "" {
		return balances, nil
	}
	for _, b := range balances {
		if strings.EqualFold(b.Asset, asset) {
			return []domain.Balance{b}, nil
		}
	}
	return nil, nil
}

func (a *Adapter) FetchAccountTradeList(ctx context.Context, symbol string, startTime int64, limit int) ([]domain.Trade, error) {
	return a.rest.GetMyTrades(ctx, symbol, 0, startTime, limit)
}

func (a *Adapter) FetchOrderTradeList(ctx context.Context, symbol string, orderID int64) ([]domain.Trade, error) {
	return a.rest.GetMyTrades(ctx, symbol, orderID, 0, 0)
}

func (a *Adapter) StartUserEventsListener(ctx context.Context, tradeID string, symbol string, emit venue.EmitFunc) error {
	a.userMu.Lock()
	a.userListeners[tradeID] = emit
	first := len(a.userListeners) == 1
	a.userMu.Unlock()

	if first {
		listenKey, err := a.rest.GetListenKey(ctx)
		if err != nil {
			return err
		}
		a.listenKey = listenKey
		if err := a.ws.Subscribe(listenKey); err != nil {
			return err
		}
		if !a.ws.IsConnected() {
			if err := a.ws.Connect(); err != nil {
				return err
			}
		}
		a.keepAliveCh = make(chan struct{})
		go a.keepAliveLoop(a.keepAliveCh)
	}
	return nil
}

func (a *Adapter) keepAliveLoop(stop chan struct{}) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = a.rest.KeepAliveListenKey(context.Background(), a.listenKey)
		case <-stop:
			return
		}
	}
}

func (a *Adapter) StartMarketEventsListener(ctx context.Context, tradeID string, symbol string, channels []string, emit venue.EmitFunc) error {
	a.marketMu.Lock()
	if a.marketListeners[tradeID] == nil {
		a.marketListeners[tradeID] = make(map[string]venue.EmitFunc)
	}
	a.marketListeners[tradeID][symbol] = emit
	a.marketMu.Unlock()

	lower := strings.ToLower(symbol)
	for _, ch := range channels {
		if err := a.ws.Subscribe(fmt.Sprintf("%s@%s", lower, ch)); err != nil {
			return err
		}
	}
	if !a.ws.IsConnected() {
		if err := a.ws.Connect(); err != nil {
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

	if empty && a.keepAliveCh != nil {
		close(a.keepAliveCh)
		a.keepAliveCh = nil
		if a.listenKey != "" {
			_ = a.ws.Unsubscribe(a.listenKey)
			a.listenKey = ""
		}
	}
	return nil
}

func (a *Adapter) Close() error {
	a.clock.Stop()
	a.ws.Close()
	a.rest.Close()
	return nil
}

func (a *Adapter) dispatchTicker(t *domain.Ticker) {
	a.marketMu.Lock()
	defer a.marketMu.Unlock()
	for _, bySymbol := range a.marketListeners {
		if emit, ok := bySymbol[t.Symbol]; ok {
			emit("ticker", t)
		}
	}
}

func (a *Adapter) dispatchOrderBook(ob *domain.OrderBook) {
	a.marketMu.Lock()
	defer a.marketMu.Unlock()
	for _, bySymbol := range a.marketListeners {
		if emit, ok := bySymbol[ob.Symbol]; ok {
			emit("depth", ob)
		}
	}
}

func (a *Adapter) dispatchTrade(t *domain.Trade) {
	a.marketMu.Lock()
	defer a.marketMu.Unlock()
	for _, bySymbol := range a.marketListeners {
		if emit, ok := bySymbol[t.Symbol]; ok {
			emit("trade", t)
		}
	}
}

func (a *Adapter) dispatchKline(k *domain.Kline) {
	a.marketMu.Lock()
	defer a.marketMu.Unlock()
	for _, bySymbol := range a.marketListeners {
		if emit, ok := bySymbol[k.Symbol]; ok {
			emit("kline", &domain.Candle{Kline: *k})
		}
	}
}

func (a *Adapter) dispatchOrder(o *domain.Order) {
	a.userMu.Lock()
	defer a.userMu.Unlock()
	for _, emit := range a.userListeners {
		emit("executionReport", o)
	}
}

// dispatchBalance fans a balance snapshot/delta out as one *domain.Balance
// per asset, matching the "balance" event key OnFundsUpdate subscribes to.
func (a *Adapter) dispatchBalance(position *domain.OutboundAccountPosition) {
	a.userMu.Lock()
	defer a.userMu.Unlock()
	for i := range position.Balances {
		bal := position.Balances[i]
		for _, emit := range a.userListeners {
			emit("balance", &bal)
		}
	}
}
