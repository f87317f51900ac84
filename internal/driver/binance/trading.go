package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/lilwiggy/ex-act/pkg/domain"
)

// RawOrder mirrors the exchange's order response shape (POST /api/v3/order,
// GET /api/v3/order, DELETE /api/v3/order, GET /api/v3/openOrders,
// GET /api/v3/allOrders).
type RawOrder struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	OrderListID         int64  `json:"orderListId"`
	ClientOrderID       string `json:"clientOrderId"`
	Price               string `json:"price"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	TimeInForce         string `json:"timeInForce"`
	Type                string `json:"type"`
	Side                string `json:"side"`
	StopPrice           string `json:"stopPrice"`
	IcebergQty          string `json:"icebergQty"`
	Time                int64  `json:"time"`
	UpdateTime          int64  `json:"updateTime"`
	IsWorking           bool   `json:"isWorking"`
	OrigQuoteOrderQty   string `json:"origQuoteOrderQty"`
}

// ToOrder converts the wire shape to the canonical domain.Order.
func (r *RawOrder) ToOrder() *domain.Order {
	dec := func(s string) domain.Decimal {
		if s == "" {
			return domain.Zero()
		}
		d, err := domain.NewDecimal(s)
		if err != nil {
			return domain.Zero()
		}
		return d
	}
	return &domain.Order{
		Exchange:          exchange,
		Symbol:            r.Symbol,
		OrderID:           r.OrderID,
		OrderListID:       r.OrderListID,
		ClientOrderID:     r.ClientOrderID,
		Price:             dec(r.Price),
		OrigQty:           dec(r.OrigQty),
		ExecQty:           dec(r.ExecutedQty),
		CumQuote:          dec(r.CummulativeQuoteQty),
		Status:            domain.OrderStatus(r.Status),
		TimeInForce:       r.TimeInForce,
		Type:              domain.OrderType(r.Type),
		Side:              domain.OrderSide(r.Side),
		StopPrice:         dec(r.StopPrice),
		IcebergQty:        dec(r.IcebergQty),
		Time:              time.UnixMilli(r.Time),
		UpdateTime:        time.UnixMilli(r.UpdateTime),
		IsWorking:         r.IsWorking,
		OrigQuoteOrderQty: dec(r.OrigQuoteOrderQty),
	}
}

// CreateOrderParams carries the fields a new-order call accepts; zero
// values are omitted from the signed query.
type CreateOrderParams struct {
	Symbol           string
	Side             string
	Type             string
	TimeInForce      string
	Quantity         string
	QuoteOrderQty    string
	Price            string
	NewClientOrderID string
	StopPrice        string
	IcebergQty       string
	RecvWindow       int64
	Test             bool
}

func (rc *RESTClient) CreateOrder(ctx context.Context, p CreateOrderParams) (*domain.Order, error) {
	q := url.Values{}
	q.Set("symbol", p.Symbol)
	q.Set("side", p.Side)
	q.Set("type", p.Type)
	if p.TimeInForce != "" {
		q.Set("timeInForce", p.TimeInForce)
	}
	if p.Quantity != "" {
		q.Set("quantity", p.Quantity)
	}
	if p.QuoteOrderQty != "" {
		q.Set("quoteOrderQty", p.QuoteOrderQty)
	}
	if p.Price != "" {
		q.Set("price", p.Price)
	}
	if p.NewClientOrderID != "" {
		q.Set("newClientOrderId", p.NewClientOrderID)
	}
	if p.StopPrice != "" {
		q.Set("stopPrice", p.StopPrice)
	}
	if p.IcebergQty != "" {
		q.Set("icebergQty", p.IcebergQty)
	}

	endpoint := ENewOrder
	if p.Test {
		endpoint = ENewOrder + "/test"
	}

	var raw RawOrder
	resp, err := rc.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q).
		SetResult(&raw).
		Post(endpoint)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	return raw.ToOrder(), nil
}

func (rc *RESTClient) GetOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	q := url.Values{"symbol": {symbol}}
	if orderID > 0 {
		q.Set("orderId", strconv.FormatInt(orderID, 10))
	}
	if origClientOrderID != "" {
		q.Set("origClientOrderId", origClientOrderID)
	}

	var raw RawOrder
	resp, err := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(q).SetResult(&raw).Get(EQueryOrder)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	return raw.ToOrder(), nil
}

func (rc *RESTClient) CancelOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	q := url.Values{"symbol": {symbol}}
	if orderID > 0 {
		q.Set("orderId", strconv.FormatInt(orderID, 10))
	}
	if origClientOrderID != "" {
		q.Set("origClientOrderId", origClientOrderID)
	}

	var raw RawOrder
	resp, err := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(q).SetResult(&raw).Delete(ECancelOrder)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	return raw.ToOrder(), nil
}

func (rc *RESTClient) CancelAllOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	q := url.Values{"symbol": {symbol}}

	var raws []RawOrder
	resp, err := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(q).SetResult(&raws).Delete(ECancelAllOpenOrders)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	out := make([]domain.Order, 0, len(raws))
	for i := range raws {
		out = append(out, *raws[i].ToOrder())
	}
	return out, nil
}

func (rc *RESTClient) GetOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}

	var raws []RawOrder
	resp, err := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(q).SetResult(&raws).Get(EOpenOrders)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	out := make([]domain.Order, 0, len(raws))
	for i := range raws {
		out = append(out, *raws[i].ToOrder())
	}
	return out, nil
}

// RawTrade mirrors GET /api/v3/myTrades.
type RawTrade struct {
	ID              int64  `json:"id"`
	OrderID         int64  `json:"orderId"`
	OrderListID     int64  `json:"orderListId"`
	Symbol          string `json:"symbol"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	QuoteQty        string `json:"quoteQty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
	IsMaker         bool   `json:"isMaker"`
	IsBestMatch     bool   `json:"isBestMatch"`
}

func (r *RawTrade) ToTrade() domain.Trade {
	dec := func(s string) domain.Decimal {
		d, err := domain.NewDecimal(s)
		if err != nil {
			return domain.Zero()
		}
		return d
	}
	side := domain.OrderSideSell
	if r.IsBuyer {
		side = domain.OrderSideBuy
	}
	return domain.Trade{
		Exchange:        exchange,
		Symbol:          r.Symbol,
		ID:              r.ID,
		OrderID:         r.OrderID,
		OrderListID:     r.OrderListID,
		Price:           dec(r.Price),
		Quantity:        dec(r.Qty),
		QuoteQuantity:   dec(r.QuoteQty),
		Commission:      dec(r.Commission),
		CommissionAsset: r.CommissionAsset,
		Side:            side,
		IsBuyer:         r.IsBuyer,
		IsMaker:         r.IsMaker,
		IsBestMatch:     r.IsBestMatch,
		Timestamp:       time.UnixMilli(r.Time),
	}
}

const (
	EMyTrades = "/api/v3/myTrades"
	EAvgPrice = "/api/v3/avgPrice"
	EKlines   = "/api/v3/klines"
)

func (rc *RESTClient) GetMyTrades(ctx context.Context, symbol string, orderID, startTime int64, limit int) ([]domain.Trade, error) {
	q := url.Values{"symbol": {symbol}}
	if orderID > 0 {
		q.Set("orderId", strconv.FormatInt(orderID, 10))
	}
	if startTime > 0 {
		q.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var raws []RawTrade
	resp, err := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(q).SetResult(&raws).Get(EMyTrades)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	out := make([]domain.Trade, 0, len(raws))
	for _, r := range raws {
		out = append(out, r.ToTrade())
	}
	return out, nil
}

// RawDepth mirrors GET /api/v3/depth.
type RawDepth struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (rc *RESTClient) GetDepth(ctx context.Context, symbol string, limit int) (*RawDepth, error) {
	q := url.Values{"symbol": {symbol}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var raw RawDepth
	resp, err := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(q).SetResult(&raw).Get(EDepth)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	return &raw, nil
}

// RawKline mirrors GET /api/v3/klines: a 12-element heterogeneous array.
type RawKline [12]any

func (rc *RESTClient) GetKlines(ctx context.Context, symbol, interval string, limit int, startTime, endTime int64) ([]RawKline, error) {
	q := url.Values{"symbol": {symbol}, "interval": {interval}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if startTime > 0 {
		q.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		q.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	var raws []RawKline
	resp, err := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(q).SetResult(&raws).Get(EKlines)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	return raws, nil
}

func (rc *RESTClient) GetAvgPrice(ctx context.Context, symbol string) (domain.Decimal, error) {
	var result struct {
		Price string `json:"price"`
	}
	resp, err := rc.client.R().SetContext(ctx).SetQueryParam("symbol", symbol).SetResult(&result).Get(EAvgPrice)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	return domain.NewDecimal(result.Price)
}

// RawTicker24h mirrors GET /api/v3/ticker/24hr.
type RawTicker24h struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	BidPrice           string `json:"bidPrice"`
	BidQty             string `json:"bidQty"`
	AskPrice           string `json:"askPrice"`
	AskQty             string `json:"askQty"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	CloseTime          int64  `json:"closeTime"`
}

func (rc *RESTClient) GetTicker24h(ctx context.Context, symbol string) (*RawTicker24h, error) {
	var raw RawTicker24h
	resp, err := rc.client.R().SetContext(ctx).SetQueryParam("symbol", symbol).SetResult(&raw).Get(ETicker)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	return &raw, nil
}

func (rc *RESTClient) GetSymbolPriceTicker(ctx context.Context, symbol string) (domain.Decimal, error) {
	var result struct {
		Price string `json:"price"`
	}
	resp, err := rc.client.R().SetContext(ctx).SetQueryParam("symbol", symbol).SetResult(&result).Get(ETickerPrice)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rc.handleErrorResponse(resp)
	}
	return domain.NewDecimal(result.Price)
}

// GetListenKey creates a user data stream listen key.
func (rc *RESTClient) GetListenKey(ctx context.Context) (string, error) {
	var result struct {
		ListenKey string `json:"listenKey"`
	}
	resp, err := rc.client.R().SetContext(ctx).SetResult(&result).Post(EListenKey)
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", rc.handleErrorResponse(resp)
	}
	if result.ListenKey == "" {
		return "", fmt.Errorf("binance: empty listen key")
	}
	return result.ListenKey, nil
}

// KeepAliveListenKey pings the user data stream to prevent expiry.
func (rc *RESTClient) KeepAliveListenKey(ctx context.Context, listenKey string) error {
	resp, err := rc.client.R().SetContext(ctx).SetQueryParam("listenKey", listenKey).Put(EListenKey)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return rc.handleErrorResponse(resp)
	}
	return nil
}
