package huobi

import (
	"context"
	"encoding/json"
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

// pendingOrder tracks one order between the moment CreateOrder sends the
// REST request and the moment the venue confirms an order id, absorbing
// any private-stream frames that arrive in between.
type pendingOrder struct {
	origQty domain.Decimal
	execQty domain.Decimal
	cancelled bool
	buffered []json.RawMessage
}

// Adapter implements venue.Adapter for venue B.
type Adapter struct {
	rest *RESTClient
	ws   *WSClient
	user *userWSClient

	accountID int64

	mu      sync.RWMutex
	symbols map[string]*domain.SymbolInfo

	pendingMu sync.Mutex
	pending   map[string]*pendingOrder // keyed by client order id
	byOrderID map[int64]*pendingOrder

	marketMu        sync.Mutex
	marketListeners map[string]map[string]venue.EmitFunc // tradeId -> symbol -> emit
	userMu          sync.Mutex
	userListeners   map[string]venue.EmitFunc

	clock   *internalsync.ClockSync
	breaker *circuit.Breaker
}

func NewAdapter(apiKey, apiSecret string, testnet bool) *Adapter {
	a := &Adapter{
		rest:            NewRESTClient(apiKey, apiSecret, testnet),
		symbols:         make(map[string]*domain.SymbolInfo),
		pending:         make(map[string]*pendingOrder),
		byOrderID:       make(map[int64]*pendingOrder),
		marketListeners: make(map[string]map[string]venue.EmitFunc),
		userListeners:   make(map[string]venue.EmitFunc),
	}
	a.ws = NewWSClient(a.dispatchMarket)
	a.user = newUserWSClient(a.handleOrderFrame)
	breakerCfg := circuit.DefaultConfig()
	breakerCfg.OnStateChange = func(from, to circuit.State) {
		metrics.CircuitBreakerState.WithLabelValues("huobi").Set(float64(to))
	}
	a.breaker = circuit.NewBreaker("huobi", breakerCfg)
	cfg := internalsync.DefaultClockConfig()
	cfg.TimeProvider = func(ctx context.Context) (int64, error) { return a.rest.FetchServerTime(ctx) }
	a.clock = internalsync.NewClockSync("huobi", cfg)
	return a
}

func (a *Adapter) Tag() venue.Tag { return venue.B }

func (a *Adapter) Load(ctx context.Context) error {
	entries, err := a.rest.FetchSymbols(ctx)
	if err != nil {
		return errors.NewExchangeError("huobi", "load", "failed to fetch symbols", err)
	}
	a.mu.Lock()
	for _, e := range entries {
		canon := domain.FormatSymbol(e.BaseCurrency, e.QuoteCurrency)
		a.symbols[strings.ToUpper(e.Symbol)] = &domain.SymbolInfo{
			Exchange:            "huobi",
			Symbol:              canon,
			BaseAsset:           strings.ToUpper(e.BaseCurrency),
			QuoteAsset:          strings.ToUpper(e.QuoteCurrency),
			ExchangeSymbol:      domain.SymbolToSlash(canon),
			Status:              e.State,
			BaseAssetPrecision:  e.AmountPrecision,
			QuoteAssetPrecision: e.PricePrecision,
			QuantityStep:        stepFromPrecision(e.AmountPrecision),
			PriceStep:           stepFromPrecision(e.PricePrecision),
			MinQuantity:         decimalOrNil(e.MinOrderAmt),
			MaxQuantity:         decimalOrNil(e.MaxOrderAmt),
			MinNotional:         decimalOrNil(e.MinOrderValue),
		}
	}
	a.mu.Unlock()

	id, err := a.rest.ResolveSpotAccountID(ctx)
	if err != nil {
		return err
	}
	a.accountID = id
	if err := a.clock.Start(); err != nil {
		log.Warn().Err(err).Str("exchange", "huobi").Msg("clock sync did not start")
	}
	return nil
}

// stepFromPrecision builds a step size from a decimal-places count, since
// venue B's symbol listing reports precision rather than an explicit
// tick/step size (e.g. precision=4 -> "0.0001").
func stepFromPrecision(precision int) domain.Decimal {
	if precision <= 0 {
		return domain.One()
	}
	return domain.MustDecimal("0." + strings.Repeat("0", precision-1) + "1")
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

func (a *Adapter) symbolInfo(symbol string) (*domain.SymbolInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	info, ok := a.symbols[strings.ToUpper(domain.ExchangeSymbol(symbol))]
	return info, ok
}

func (a *Adapter) FetchServerTime(ctx context.Context) (int64, error) {
	return a.rest.FetchServerTime(ctx)
}

func (a *Adapter) FetchExchangeInfoSymbol(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	if info, ok := a.symbolInfo(symbol); ok {
		return info, nil
	}
	return nil, errors.NewNotFoundError("symbol", symbol)
}

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBookTop, error) {
	d, err := a.rest.FetchDepth(ctx, domain.ExchangeSymbol(symbol), limit)
	if err != nil {
		return nil, err
	}
	top := &domain.OrderBookTop{
		LastUpdateID: d.Tick.Ts,
		Bids:         levelsFromPairs(d.Tick.Bids),
		Asks:         levelsFromPairs(d.Tick.Asks),
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
	rows, err := a.rest.FetchKlines(ctx, domain.ExchangeSymbol(symbol), interval, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Kline, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Kline{
			Exchange:   "huobi",
			Symbol:     symbol,
			Interval:   interval,
			OpenTime:   time.Unix(r.ID, 0),
			Open:       domain.NewDecimalFromFloat64(r.Open),
			High:       domain.NewDecimalFromFloat64(r.High),
			Low:        domain.NewDecimalFromFloat64(r.Low),
			Close:      domain.NewDecimalFromFloat64(r.Close),
			Volume:     domain.NewDecimalFromFloat64(r.Amount),
			TradeCount: r.Count,
			IsClosed:   true,
		})
	}
	return out, nil
}

func (a *Adapter) FetchAveragePrice(ctx context.Context, symbol string) (domain.Decimal, error) {
	t, err := a.rest.FetchTickerDetail(ctx, domain.ExchangeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return domain.NewDecimalFromFloat64((t.High + t.Low) / 2), nil
}

func (a *Adapter) FetchTickerPriceChangeStatistics(ctx context.Context, symbol string) (*domain.Ticker, error) {
	t, err := a.rest.FetchTickerDetail(ctx, domain.ExchangeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	return &domain.Ticker{
		Exchange:    "huobi",
		Symbol:      symbol,
		LastPrice:   domain.NewDecimalFromFloat64(t.Close),
		OpenPrice:   domain.NewDecimalFromFloat64(t.Open),
		HighPrice:   domain.NewDecimalFromFloat64(t.High),
		LowPrice:    domain.NewDecimalFromFloat64(t.Low),
		Volume:      domain.NewDecimalFromFloat64(t.Amount),
		BidPrice:    domain.NewDecimalFromFloat64(t.Bid[0]),
		BidQuantity: domain.NewDecimalFromFloat64(t.Bid[1]),
		AskPrice:    domain.NewDecimalFromFloat64(t.Ask[0]),
		AskQuantity: domain.NewDecimalFromFloat64(t.Ask[1]),
		Timestamp:   time.UnixMilli(t.Ts),
	}, nil
}

func (a *Adapter) FetchSymbolPriceTicker(ctx context.Context, symbol string) (domain.Decimal, error) {
	t, err := a.rest.FetchLastTrade(ctx, domain.ExchangeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	if len(t.Data) == 0 {
		return domain.Zero(), nil
	}
	return domain.NewDecimalFromFloat64(t.Data[0].Price), nil
}

// CreateOrder registers pre-placement bookkeeping before the REST call
// returns, so any executionReport-equivalent frame that races the
// response gets buffered under the client order id instead of dropped.
func (a *Adapter) CreateOrder(ctx context.Context, req venue.OrderRequest) (*domain.Order, error) {
	cid := req.NewClientOrderID
	if cid == "" {
		cid = fmt.Sprintf("gw-%d", time.Now().UnixNano())
	}

	qty, price := req.Quantity, req.Price
	if symbol, ok := a.symbolInfo(req.Symbol); ok {
		qty = domain.RefineQuantity(qty, symbol.QuantityStep)
		price = domain.RefinePrice(price, symbol.PriceStep)
	}

	entry := &pendingOrder{origQty: qty, execQty: domain.Zero()}
	a.pendingMu.Lock()
	a.pending[cid] = entry
	a.pendingMu.Unlock()

	orderType := strings.ToLower(string(req.Side)) + "-" + strings.ToLower(string(req.Type))
	amount := ""
	if qty != nil {
		amount = domain.String(qty)
	}
	priceStr := ""
	if price != nil {
		priceStr = domain.String(price)
	}

	result, err := a.breaker.ExecuteWithResult(func() (any, error) {
		return a.rest.PlaceOrder(ctx, a.accountID, domain.ExchangeSymbol(req.Symbol), orderType, amount, priceStr, cid)
	})
	if err != nil {
		a.pendingMu.Lock()
		delete(a.pending, cid)
		a.pendingMu.Unlock()
		return nil, err
	}
	orderID := result.(int64)

	a.pendingMu.Lock()
	a.byOrderID[orderID] = entry
	buffered := entry.buffered
	entry.buffered = nil
	a.pendingMu.Unlock()

	for _, raw := range buffered {
		a.applyOrderFrame(orderID, raw)
	}

	return a.FetchOrder(ctx, req.Symbol, orderID, "")
}

func (a *Adapter) FetchOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	d, err := a.rest.FetchOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return orderDetailToDomain(symbol, d), nil
}

func orderDetailToDomain(symbol string, d *orderDetail) *domain.Order {
	dec := func(s string) domain.Decimal {
		if s == "" {
			return domain.Zero()
		}
		v, err := domain.NewDecimal(s)
		if err != nil {
			return domain.Zero()
		}
		return v
	}
	side := domain.OrderSideBuy
	typ := domain.OrderTypeLimit
	parts := strings.SplitN(d.Type, "-", 2)
	if len(parts) == 2 {
		if parts[0] == "sell" {
			side = domain.OrderSideSell
		}
		if strings.Contains(parts[1], "market") {
			typ = domain.OrderTypeMarket
		}
	}
	return &domain.Order{
		Exchange:      "huobi",
		Symbol:        symbol,
		OrderID:       d.ID,
		OrderListID:   -1,
		ClientOrderID: d.ClientOrderID,
		Price:         dec(d.Price),
		OrigQty:       dec(d.Amount),
		ExecQty:       dec(d.FieldAmount),
		CumQuote:      dec(d.FieldCashAmount),
		Status:        mapOrderState(d.State),
		Type:          typ,
		Side:          side,
		Time:          time.UnixMilli(d.CreatedAt),
		UpdateTime:    time.UnixMilli(d.FinishedAt),
		IsWorking:     d.State == "submitted" || d.State == "partial-filled",
	}
}

func mapOrderState(state string) domain.OrderStatus {
	switch state {
	case "submitted":
		return domain.OrderStatusNew
	case "partial-filled":
		return domain.OrderStatusPartiallyFilled
	case "filled":
		return domain.OrderStatusFilled
	case "cancelled", "partial-canceled":
		return domain.OrderStatusCanceled
	case "created":
		return domain.OrderStatusNew
	default:
		return domain.OrderStatusRejected
	}
}

func (a *Adapter) CancelOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	if err := a.rest.SubmitCancel(ctx, orderID); err != nil {
		return nil, err
	}
	a.pendingMu.Lock()
	if e, ok := a.byOrderID[orderID]; ok {
		e.cancelled = true
	}
	a.pendingMu.Unlock()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		order, err := a.FetchOrder(ctx, symbol, orderID, "")
		if err == nil && order.Status == domain.OrderStatusCanceled {
			return order, nil
		}
		time.Sleep(time.Second)
	}
	return a.FetchOrder(ctx, symbol, orderID, "")
}

func (a *Adapter) CancelAllOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	open, err := a.rest.FetchOpenOrders(ctx, a.accountID, domain.ExchangeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(open))
	for _, o := range open {
		ids = append(ids, strconv.FormatInt(o.ID, 10))
	}
	if len(ids) == 0 {
		return nil, nil
	}
	result, err := a.rest.BatchCancel(ctx, ids)
	if err != nil {
		return nil, err
	}
	success := make(map[string]struct{}, len(result.Success))
	for _, id := range result.Success {
		success[id] = struct{}{}
	}
	out := make([]domain.Order, 0, len(open))
	for _, o := range open {
		if _, ok := success[strconv.FormatInt(o.ID, 10)]; ok {
			out = append(out, *orderDetailToDomain(symbol, &o))
		}
	}
	return out, nil
}

func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	open, err := a.rest.FetchOpenOrders(ctx, a.accountID, domain.ExchangeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(open))
	for i := range open {
		out = append(out, *orderDetailToDomain(symbol, &open[i]))
	}
	return out, nil
}

func (a *Adapter) FetchAccountInformation(ctx context.Context) ([]domain.Balance, error) {
	entries, err := a.rest.FetchAccountBalance(ctx, a.accountID)
	if err != nil {
		return nil, err
	}
	byAsset := make(map[string]*domain.Balance)
	for _, e := range entries {
		asset := strings.ToUpper(e.Currency)
		b, ok := byAsset[asset]
		if !ok {
			b = &domain.Balance{Exchange: "huobi", Asset: asset, Free: domain.Zero(), Locked: domain.Zero()}
			byAsset[asset] = b
		}
		amt, err := domain.NewDecimal(e.Balance)
		if err != nil {
			continue
		}
		if e.Type == "trade" {
			b.Free = amt
		} else {
			b.Locked = amt
		}
	}
	out := make([]domain.Balance, 0, len(byAsset))
	for _, b := range byAsset {
		out = append(out, *b)
	}
	return out, nil
}

func (a *Adapter) FetchFundingWallet(ctx context.Context, asset string) ([]domain.Balance, error) {
	return a.FetchAccountInformation(ctx)
}

func (a *Adapter) FetchAccountTradeList(ctx context.Context, symbol string, startTime int64, limit int) ([]domain.Trade, error) {
	return nil, errors.NewExchangeError("huobi", "fetchAccountTradeList", "not available without an order id on this venue", nil)
}

func (a *Adapter) FetchOrderTradeList(ctx context.Context, symbol string, orderID int64) ([]domain.Trade, error) {
	matches, err := a.rest.FetchMatchResults(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Trade, 0, len(matches))
	for _, m := range matches {
		price, _ := domain.NewDecimal(m.Price)
		qty, _ := domain.NewDecimal(m.FilledAmount)
		out = append(out, domain.Trade{
			Exchange:  "huobi",
			Symbol:    symbol,
			ID:        m.MatchID,
			OrderID:   m.OrderID,
			Price:     price,
			Quantity:  qty,
			Timestamp: time.UnixMilli(m.CreatedAt),
		})
	}
	return out, nil
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
	lower := strings.ToLower(domain.ExchangeSymbol(symbol))
	for _, ch := range channels {
		if err := a.ws.Subscribe(fmt.Sprintf("market.%s.%s", lower, ch)); err != nil {
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
		if err := a.user.Connect(ctx, map[string]string{
			"accessKey":        a.rest.apiKey,
			"signatureMethod":  "HmacSHA256",
			"signatureVersion": "2.1",
		}); err != nil {
			return err
		}
		if err := a.user.Subscribe(a.accountID); err != nil {
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

// handleOrderFrame routes a private order-update frame either to the
// live pending-order buffer (race with CreateOrder) or straight to
// subscribers when the order id is already known.
func (a *Adapter) handleOrderFrame(raw json.RawMessage) {
	var frame struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}

	a.pendingMu.Lock()
	entry, known := a.byOrderID[frame.OrderID]
	if !known && frame.ClientOrderID != "" {
		if e, ok := a.pending[frame.ClientOrderID]; ok {
			e.buffered = append(e.buffered, raw)
			a.pendingMu.Unlock()
			return
		}
	}
	a.pendingMu.Unlock()

	if known && entry.cancelled {
		// cancellation confirmed by a push frame; nothing further to buffer
	}
	a.applyOrderFrame(frame.OrderID, raw)
}

func (a *Adapter) applyOrderFrame(orderID int64, raw json.RawMessage) {
	var frame struct {
		Symbol        string `json:"symbol"`
		OrderStatus   string `json:"orderStatus"`
		Type          string `json:"type"`
		ClientOrderID string `json:"clientOrderId"`
		EventType     string `json:"eventType"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}

	a.userMu.Lock()
	defer a.userMu.Unlock()
	for _, emit := range a.userListeners {
		emit("executionReport", &domain.ExecutionReport{
			Order: domain.Order{
				Exchange:      "huobi",
				Symbol:        frame.Symbol,
				OrderID:       orderID,
				ClientOrderID: frame.ClientOrderID,
				Status:        mapOrderState(frame.OrderStatus),
			},
			ExecutionType: frame.EventType,
		})
	}
}
