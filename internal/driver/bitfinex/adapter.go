package bitfinex

import (
	"context"
	"fmt"
	"strconv"
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

// Adapter implements venue.Adapter for venue C.
type Adapter struct {
	rest      *RESTClient
	ws        *WSClient
	user      *userStream
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
	a.user = newUserStream(a.handleOrderRow)
	breakerCfg := circuit.DefaultConfig()
	breakerCfg.OnStateChange = func(from, to circuit.State) {
		metrics.CircuitBreakerState.WithLabelValues("bitfinex").Set(float64(to))
	}
	a.breaker = circuit.NewBreaker("bitfinex", breakerCfg)
	cfg := internalsync.DefaultClockConfig()
	cfg.TimeProvider = func(ctx context.Context) (int64, error) { return a.rest.FetchServerTime(ctx) }
	a.clock = internalsync.NewClockSync("bitfinex", cfg)
	return a
}

func (a *Adapter) Tag() venue.Tag { return venue.C }

// Load resolves the spot-account id and populates the symbol table, per
// venue C's literal requirement that account scoping happen up front.
func (a *Adapter) Load(ctx context.Context) error {
	if _, err := a.rest.ResolveSpotAccountID(ctx); err != nil {
		return err
	}

	specs, err := a.rest.FetchSymbols(ctx)
	if err != nil {
		return errors.NewExchangeError("bitfinex", "load", "failed to fetch symbols", err)
	}
	a.mu.Lock()
	for _, s := range specs {
		canon, err := domain.ParseVenueCSymbol(s.Pair)
		if err != nil {
			continue
		}
		base, quote, _ := domain.ParseSymbol(canon)
		a.symbols[s.Pair] = &domain.SymbolInfo{
			Exchange:            "bitfinex",
			Symbol:              canon,
			BaseAsset:           base,
			QuoteAsset:          quote,
			ExchangeSymbol:      s.Pair,
			Status:              "TRADING",
			BaseAssetPrecision:  s.AmountPrec,
			QuoteAssetPrecision: s.PricePrec,
			// venue C publishes price precision as significant digits, not a
			// fixed tick size, so PriceStep/QuantityStep are left unset here
			// rather than faked from it; min/max order size are real limits.
			MinQuantity: decimalOrNil(s.MinOrderSize),
			MaxQuantity: decimalOrNil(s.MaxOrderSize),
		}
	}
	a.mu.Unlock()
	if err := a.clock.Start(); err != nil {
		log.Warn().Err(err).Str("exchange", "bitfinex").Msg("clock sync did not start")
	}
	return nil
}

func decimalOrNil(s string) domain.Decimal {
	if s == "" {
		return nil
	}
	d, err := domain.NewDecimal(s)
	if err != nil {
		return nil
	}
	return d
}

func (a *Adapter) nativeSymbol(symbol string) string { return domain.SymbolToVenueC(symbol) }

func (a *Adapter) FetchServerTime(ctx context.Context) (int64, error) {
	return a.rest.FetchServerTime(ctx)
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
	levels, err := a.rest.FetchBook(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	top := &domain.OrderBookTop{LastUpdateID: time.Now().UnixMilli()}
	for _, l := range levels {
		lvl := domain.OrderBookLevel{Price: domain.NewDecimalFromFloat64(l.Price), Quantity: domain.NewDecimalFromFloat64(l.Amount)}
		if l.Amount > 0 {
			top.Bids = append(top.Bids, lvl)
		} else {
			lvl.Quantity = domain.Abs(lvl.Quantity)
			top.Asks = append(top.Asks, lvl)
		}
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
	rows, err := a.rest.FetchCandles(ctx, interval, a.nativeSymbol(symbol), limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Kline, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Kline{
			Exchange: "bitfinex",
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.UnixMilli(int64(r[0])),
			Open:     domain.NewDecimalFromFloat64(r[1]),
			Close:    domain.NewDecimalFromFloat64(r[2]),
			High:     domain.NewDecimalFromFloat64(r[3]),
			Low:      domain.NewDecimalFromFloat64(r[4]),
			Volume:   domain.NewDecimalFromFloat64(r[5]),
			IsClosed: true,
		})
	}
	return out, nil
}

func (a *Adapter) FetchAveragePrice(ctx context.Context, symbol string) (domain.Decimal, error) {
	t, err := a.rest.FetchTicker(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return domain.NewDecimalFromFloat64((t[8] + t[9]) / 2), nil
}

func (a *Adapter) FetchTickerPriceChangeStatistics(ctx context.Context, symbol string) (*domain.Ticker, error) {
	t, err := a.rest.FetchTicker(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return &domain.Ticker{
		Exchange:    "bitfinex",
		Symbol:      symbol,
		BidPrice:    domain.NewDecimalFromFloat64(t[0]),
		BidQuantity: domain.NewDecimalFromFloat64(t[1]),
		AskPrice:    domain.NewDecimalFromFloat64(t[2]),
		AskQuantity: domain.NewDecimalFromFloat64(t[3]),
		LastPrice:   domain.NewDecimalFromFloat64(t[6]),
		Volume:      domain.NewDecimalFromFloat64(t[7]),
		HighPrice:   domain.NewDecimalFromFloat64(t[8]),
		LowPrice:    domain.NewDecimalFromFloat64(t[9]),
		Timestamp:   time.Now(),
	}, nil
}

func (a *Adapter) FetchSymbolPriceTicker(ctx context.Context, symbol string) (domain.Decimal, error) {
	t, err := a.rest.FetchTicker(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return domain.NewDecimalFromFloat64(t[6]), nil
}

// CreateOrder submits the order then polls until the venue reports it
// queryable, since venue C's ack does not guarantee immediate visibility
// in the active-orders/history endpoints.
func (a *Adapter) CreateOrder(ctx context.Context, req venue.OrderRequest) (*domain.Order, error) {
	orderType := strings.ToUpper(string(req.Type))
	// venue C encodes side via amount sign, not a separate field
	amount := domain.String(req.Quantity)
	if req.Side == domain.OrderSideSell {
		amount = "-" + amount
	}

	nr := orderNewRequest{
		Type:   orderType,
		Symbol: a.nativeSymbol(req.Symbol),
		Amount: amount,
	}
	if req.Price != nil {
		nr.Price = domain.String(req.Price)
	}
	if req.NewClientOrderID != "" {
		if cid, err := strconv.ParseInt(req.NewClientOrderID, 10, 64); err == nil {
			nr.CID = cid
		}
	}

	raw, err := a.breaker.ExecuteWithResult(func() (any, error) {
		return a.rest.SubmitOrder(ctx, nr)
	})
	if err != nil {
		return nil, err
	}
	result := raw.(*orderNewResult)
	if result.Status != "SUCCESS" && result.Status != "" {
		return nil, errors.NewExchangeError("bitfinex", "createOrder", result.Text, nil)
	}
	if len(result.OrderRows) == 0 || len(result.OrderRows[0]) == 0 {
		return nil, errors.NewExchangeError("bitfinex", "createOrder", "no order row in notify", nil)
	}
	orderID, ok := result.OrderRows[0][0].(float64)
	if !ok {
		return nil, errors.NewExchangeError("bitfinex", "createOrder", "unexpected order id shape", nil)
	}

	row, err := a.rest.PollUntilVisible(ctx, a.nativeSymbol(req.Symbol), int64(orderID), 5*time.Second)
	if err != nil {
		return nil, err
	}
	return orderRowToDomain(req.Symbol, row), nil
}

func orderRowToDomain(symbol string, row []any) *domain.Order {
	f := func(i int) float64 {
		if i >= len(row) {
			return 0
		}
		v, _ := row[i].(float64)
		return v
	}
	s := func(i int) string {
		if i >= len(row) {
			return ""
		}
		v, _ := row[i].(string)
		return v
	}
	amount := f(6)
	origAmount := f(7)
	side := domain.OrderSideBuy
	if origAmount < 0 {
		side = domain.OrderSideSell
		origAmount = -origAmount
		amount = -amount
	}
	status := mapOrderStatus(s(13))
	return &domain.Order{
		Exchange:   "bitfinex",
		Symbol:     symbol,
		OrderID:    int64(f(0)),
		Price:      domain.NewDecimalFromFloat64(f(16)),
		OrigQty:    domain.NewDecimalFromFloat64(origAmount),
		ExecQty:    domain.Sub(domain.NewDecimalFromFloat64(origAmount), domain.NewDecimalFromFloat64(amount)),
		Status:     status,
		Side:       side,
		Type:       mapOrderType(s(8)),
		Time:       time.UnixMilli(int64(f(4))),
		UpdateTime: time.UnixMilli(int64(f(5))),
		IsWorking:  status == domain.OrderStatusNew || status == domain.OrderStatusPartiallyFilled,
	}
}

func mapOrderStatus(raw string) domain.OrderStatus {
	switch {
	case strings.HasPrefix(raw, "EXECUTED"):
		return domain.OrderStatusFilled
	case strings.HasPrefix(raw, "PARTIALLY FILLED"):
		return domain.OrderStatusPartiallyFilled
	case strings.HasPrefix(raw, "CANCELED"):
		return domain.OrderStatusCanceled
	case raw == "ACTIVE":
		return domain.OrderStatusNew
	default:
		return domain.OrderStatusRejected
	}
}

func mapOrderType(raw string) domain.OrderType {
	if strings.Contains(raw, "MARKET") {
		return domain.OrderTypeMarket
	}
	return domain.OrderTypeLimit
}

func (a *Adapter) FetchOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	row, err := a.rest.FetchOrderRow(ctx, a.nativeSymbol(symbol), orderID)
	if err != nil {
		return nil, err
	}
	return orderRowToDomain(symbol, row), nil
}

func (a *Adapter) CancelOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	row, err := a.rest.SubmitCancel(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order := orderRowToDomain(symbol, row)
	deadline := time.Now().Add(5 * time.Second)
	for order.Status != domain.OrderStatusCanceled && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		if fetched, err := a.FetchOrder(ctx, symbol, orderID, origClientOrderID); err == nil {
			order = fetched
		}
	}
	return order, nil
}

func (a *Adapter) CancelAllOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	rows, err := a.rest.FetchActiveOrders(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		id, _ := row[0].(float64)
		cancelled, err := a.rest.SubmitCancel(ctx, int64(id))
		if err != nil {
			continue
		}
		out = append(out, *orderRowToDomain(symbol, cancelled))
	}
	return out, nil
}

func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	rows, err := a.rest.FetchActiveOrders(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, *orderRowToDomain(symbol, row))
	}
	return out, nil
}

func (a *Adapter) FetchAccountInformation(ctx context.Context) ([]domain.Balance, error) {
	wallets, err := a.rest.FetchWallets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Balance, 0, len(wallets))
	for _, w := range wallets {
		walletType, _ := w[0].(string)
		if walletType != "exchange" {
			continue
		}
		asset, _ := w[1].(string)
		balance, _ := w[2].(float64)
		avail, _ := w[4].(float64)
		out = append(out, domain.Balance{
			Exchange:  "bitfinex",
			Asset:     strings.ToUpper(asset),
			Free:      domain.NewDecimalFromFloat64(avail),
			Locked:    domain.Sub(domain.NewDecimalFromFloat64(balance), domain.NewDecimalFromFloat64(avail)),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (a *Adapter) FetchFundingWallet(ctx context.Context, asset string) ([]domain.Balance, error) {
	wallets, err := a.rest.FetchWallets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Balance, 0)
	for _, w := range wallets {
		walletType, _ := w[0].(string)
		if walletType != "funding" {
			continue
		}
		wAsset, _ := w[1].(string)
		if asset != "" && !strings.EqualFold(wAsset, asset) {
			continue
		}
		balance, _ := w[2].(float64)
		avail, _ := w[4].(float64)
		out = append(out, domain.Balance{
			Exchange:  "bitfinex",
			Asset:     strings.ToUpper(wAsset),
			Free:      domain.NewDecimalFromFloat64(avail),
			Locked:    domain.Sub(domain.NewDecimalFromFloat64(balance), domain.NewDecimalFromFloat64(avail)),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (a *Adapter) FetchAccountTradeList(ctx context.Context, symbol string, startTime int64, limit int) ([]domain.Trade, error) {
	rows, err := a.rest.FetchTrades(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return tradesFromRows(symbol, rows), nil
}

func (a *Adapter) FetchOrderTradeList(ctx context.Context, symbol string, orderID int64) ([]domain.Trade, error) {
	rows, err := a.rest.FetchTrades(ctx, a.nativeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	all := tradesFromRows(symbol, rows)
	out := make([]domain.Trade, 0, len(all))
	for i, row := range rows {
		if oid, ok := row[3].(float64); ok && int64(oid) == orderID {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// tradesFromRows decodes [ID, SYMBOL, MTS, ORDER_ID, EXEC_AMOUNT,
// EXEC_PRICE, ORDER_TYPE, ORDER_PRICE, MAKER, FEE, FEE_CURRENCY] rows.
func tradesFromRows(symbol string, rows [][]any) []domain.Trade {
	out := make([]domain.Trade, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		id, _ := row[0].(float64)
		mts, _ := row[2].(float64)
		orderID, _ := row[3].(float64)
		execAmount, _ := row[4].(float64)
		execPrice, _ := row[5].(float64)
		side := domain.OrderSideBuy
		if execAmount < 0 {
			side = domain.OrderSideSell
			execAmount = -execAmount
		}
		out = append(out, domain.Trade{
			Exchange:  "bitfinex",
			Symbol:    symbol,
			ID:        int64(id),
			OrderID:   int64(orderID),
			Price:     domain.NewDecimalFromFloat64(execPrice),
			Quantity:  domain.NewDecimalFromFloat64(execAmount),
			Side:      side,
			Timestamp: time.UnixMilli(int64(mts)),
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
		extra := map[string]any{}
		if ch == "candles" {
			extra["key"] = fmt.Sprintf("trade:1m:%s", native)
		}
		if err := a.ws.Subscribe(ch, native, extra); err != nil {
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
		nonceFn := func() string { return strconv.FormatInt(time.Now().UnixNano(), 10) }
		if err := a.user.Authenticate(ctx, a.apiKey, a.apiSecret, nonceFn); err != nil {
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

func (a *Adapter) handleOrderRow(eventType string, row []any) {
	if len(row) < 4 {
		return
	}
	symbolNative, _ := row[3].(string)
	symbol, err := domain.ParseVenueCSymbol(symbolNative)
	if err != nil {
		symbol = symbolNative
	}
	order := orderRowToDomain(symbol, row)

	a.userMu.Lock()
	defer a.userMu.Unlock()
	for _, emit := range a.userListeners {
		emit("executionReport", &domain.ExecutionReport{
			Order:         *order,
			ExecutionType: eventType,
		})
	}
}
