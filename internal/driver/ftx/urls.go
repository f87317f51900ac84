// Package ftx implements venue D: HMAC-SHA256 hex signing, a
// checksum-verified order book maintained from partial/update frames,
// and bounded-retry order placement under rate limiting.
package ftx

const (
	BaseRestURL = "https://api.venued.example"
	BaseWSURL   = "wss://stream.venued.example/ws"
)

const (
	EMarkets     = "/markets"
	EMarket      = "/markets/%s"
	EOrderBook   = "/markets/%s/orderbook"
	ECandles     = "/markets/%s/candles"
	EOrders      = "/orders"
	EOrderByID   = "/orders/%d"
	EOrdersOpen  = "/orders"
	EFills       = "/fills"
	EBalances    = "/wallet/balances"
	EAllBalances = "/wallet/all_balances"
)

// MaxCreateOrderAttempts bounds the retry loop around order creation
// when the venue reports it is rate limiting the caller.
const MaxCreateOrderAttempts = 10
