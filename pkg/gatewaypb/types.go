package gatewaypb

// OrderMessage is the canonical order shape returned by every
// order-bearing RPC; decimals travel as strings to keep the wire format
// codec-agnostic.
type OrderMessage struct {
	Exchange          string `json:"exchange"`
	Symbol            string `json:"symbol"`
	OrderID           int64  `json:"orderId"`
	OrderListID       int64  `json:"orderListId"`
	ClientOrderID     string `json:"clientOrderId,omitempty"`
	Price             string `json:"price,omitempty"`
	OrigQty           string `json:"origQty"`
	ExecutedQty       string `json:"executedQty"`
	CumulativeQuoteQty string `json:"cummulativeQuoteQty,omitempty"`
	Status            string `json:"status"`
	TimeInForce       string `json:"timeInForce,omitempty"`
	Type              string `json:"type"`
	Side              string `json:"side"`
	StopPrice         string `json:"stopPrice,omitempty"`
	Time              int64  `json:"time"`
	UpdateTime        int64  `json:"updateTime"`
	IsWorking         bool   `json:"isWorking"`
}

type BalanceMessage struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type SymbolInfoMessage struct {
	Symbol              string `json:"symbol"`
	BaseAsset           string `json:"baseAsset"`
	QuoteAsset          string `json:"quoteAsset"`
	Status              string `json:"status"`
	BaseAssetPrecision  int32  `json:"baseAssetPrecision"`
	QuoteAssetPrecision int32  `json:"quoteAssetPrecision"`
	MinQuantity         string `json:"minQty,omitempty"`
	MaxQuantity         string `json:"maxQty,omitempty"`
	QuantityStep        string `json:"stepSize,omitempty"`
	MinPrice            string `json:"minPrice,omitempty"`
	MaxPrice            string `json:"maxPrice,omitempty"`
	PriceStep           string `json:"tickSize,omitempty"`
	MinNotional         string `json:"minNotional,omitempty"`
}

type OrderBookLevelMessage struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type KlineMessage struct {
	OpenTime  int64  `json:"openTime"`
	CloseTime int64  `json:"closeTime"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	IsClosed  bool   `json:"isClosed"`
}

type TradeMessage struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"orderId"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	Side      string `json:"side"`
	Timestamp int64  `json:"timestamp"`
}

type TickerMessage struct {
	Symbol             string `json:"symbol"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	LastPrice          string `json:"lastPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	OpenPrice          string `json:"openPrice"`
	Timestamp          int64  `json:"timestamp"`
}

// --- unary RPC request/reply pairs, matching spec.md's table exactly ---

type OpenClientConnectionRequest struct {
	AccountName string `json:"accountName"`
	TradeID     string `json:"tradeId"`
	RateLimiter int32  `json:"rateLimiter"`
}

type OpenClientConnectionReply struct {
	ClientID   string `json:"clientId"`
	SrvVersion string `json:"srvVersion"`
	Exchange   string `json:"exchange"`
}

type FetchServerTimeRequest struct {
	ClientID string `json:"clientId"`
}

type FetchServerTimeReply struct {
	ServerTime int64 `json:"serverTime"`
}

type ResetRateLimitRequest struct {
	ClientID    string `json:"clientId"`
	RateLimiter int32  `json:"rateLimiter"`
}

type ResetRateLimitReply struct {
	Success bool `json:"success"`
}

type FetchOpenOrdersRequest struct {
	ClientID string `json:"clientId"`
	Symbol   string `json:"symbol"`
}

type FetchOpenOrdersReply struct {
	Orders      []*OrderMessage `json:"orders"`
	RateLimiter int32           `json:"rateLimiter"`
}

type FetchOrderRequest struct {
	ClientID         string `json:"clientId"`
	Symbol           string `json:"symbol"`
	OrderID          int64  `json:"orderId"`
	TradeID          string `json:"tradeId"`
	FilledUpdateCall bool   `json:"filledUpdateCall"`
}

type FetchOrderReply struct {
	Order *OrderMessage `json:"order"`
}

type CancelAllOrdersRequest struct {
	ClientID string `json:"clientId"`
	Symbol   string `json:"symbol"`
}

type CancelAllOrdersReply struct {
	Orders []*OrderMessage `json:"orders"`
}

type FetchExchangeInfoSymbolRequest struct {
	ClientID string `json:"clientId"`
	Symbol   string `json:"symbol"`
}

type FetchExchangeInfoSymbolReply struct {
	Info *SymbolInfoMessage `json:"info"`
}

type FetchAccountInformationRequest struct {
	ClientID string `json:"clientId"`
}

type FetchAccountInformationReply struct {
	Balances []*BalanceMessage `json:"balances"`
}

type FetchFundingWalletRequest struct {
	ClientID         string `json:"clientId"`
	Asset            string `json:"asset,omitempty"`
	NeedBtcValuation bool   `json:"needBtcValuation,omitempty"`
}

type FetchFundingWalletReply struct {
	Balances []*BalanceMessage `json:"balances"`
}

type FetchOrderBookRequest struct {
	ClientID string `json:"clientId"`
	Symbol   string `json:"symbol"`
}

type FetchOrderBookReply struct {
	Bids         []*OrderBookLevelMessage `json:"bids"`
	Asks         []*OrderBookLevelMessage `json:"asks"`
	LastUpdateID int64                    `json:"lastUpdateId"`
}

type FetchSymbolPriceTickerRequest struct {
	ClientID string `json:"clientId"`
	Symbol   string `json:"symbol"`
}

type FetchSymbolPriceTickerReply struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type FetchTickerPriceChangeStatisticsRequest struct {
	ClientID string `json:"clientId"`
	Symbol   string `json:"symbol"`
}

type FetchTickerPriceChangeStatisticsReply struct {
	Ticker *TickerMessage `json:"ticker"`
}

type FetchKlinesRequest struct {
	ClientID string `json:"clientId"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Limit    int32  `json:"limit"`
}

type FetchKlinesReply struct {
	Klines []*KlineMessage `json:"klines"`
}

type FetchAccountTradeListRequest struct {
	ClientID  string `json:"clientId"`
	Symbol    string `json:"symbol"`
	StartTime int64  `json:"startTime"`
	Limit     int32  `json:"limit"`
}

type FetchAccountTradeListReply struct {
	Trades []*TradeMessage `json:"trades"`
}

type CreateLimitOrderRequest struct {
	ClientID         string `json:"clientId"`
	Symbol           string `json:"symbol"`
	BuySide          bool   `json:"buySide"`
	Quantity         string `json:"quantity"`
	Price            string `json:"price"`
	NewClientOrderID string `json:"newClientOrderId,omitempty"`
}

type CreateLimitOrderReply struct {
	Order *OrderMessage `json:"order"`
}

type CancelOrderRequest struct {
	ClientID string `json:"clientId"`
	Symbol   string `json:"symbol"`
	OrderID  int64  `json:"orderId"`
}

type CancelOrderReply struct {
	Order *OrderMessage `json:"order"`
}

type StartStreamRequest struct {
	ClientID          string `json:"clientId"`
	TradeID           string `json:"tradeId"`
	MarketStreamCount int32  `json:"marketStreamCount"`
}

type StartStreamReply struct {
	Success bool `json:"success"`
}

type StopStreamRequest struct {
	ClientID string `json:"clientId"`
	TradeID  string `json:"tradeId"`
	Symbol   string `json:"symbol"`
}

type StopStreamReply struct {
	Success bool `json:"success"`
}

// --- server-streaming RPC requests and their frame types ---

type OnKlinesUpdateRequest struct {
	ClientID string   `json:"clientId"`
	TradeID  string   `json:"tradeId"`
	Symbol   string   `json:"symbol"`
	Interval []string `json:"interval"`
}

type KlineFrame struct {
	Symbol string        `json:"symbol"`
	Kline  *KlineMessage `json:"kline"`
}

type OnTickerUpdateRequest struct {
	ClientID string `json:"clientId"`
	TradeID  string `json:"tradeId"`
	Symbol   string `json:"symbol"`
}

type TickerFrame struct {
	Ticker *TickerMessage `json:"ticker"`
}

type OnOrderBookUpdateRequest struct {
	ClientID string `json:"clientId"`
	TradeID  string `json:"tradeId"`
	Symbol   string `json:"symbol"`
}

type OrderBookFrame struct {
	Symbol       string                   `json:"symbol"`
	Bids         []*OrderBookLevelMessage `json:"bids"`
	Asks         []*OrderBookLevelMessage `json:"asks"`
	LastUpdateID int64                    `json:"lastUpdateId"`
}

type OnFundsUpdateRequest struct {
	ClientID   string `json:"clientId"`
	TradeID    string `json:"tradeId"`
	Symbol     string `json:"symbol"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
}

type FundsFrame struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type OnOrderUpdateRequest struct {
	ClientID string `json:"clientId"`
	TradeID  string `json:"tradeId"`
	Symbol   string `json:"symbol"`
}

type OrderUpdateFrame struct {
	Order *OrderMessage `json:"order"`
}
