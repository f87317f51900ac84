// Package huobi implements venue B: <BASE>/<QUOTE> symbol form,
// HMAC-SHA256 raw-to-base64 signing, and pre-placement order bookkeeping
// to absorb executionReport frames that race the create-order response.
package huobi

const (
	BaseRestURL = "https://api.huobi.pro"
	BaseWSURL   = "wss://api.huobi.pro/ws"
	BaseWSAuthURL = "wss://api.huobi.pro/ws/v2"
)

const (
	EPing         = "/v1/common/timestamp"
	ECommonSymbols = "/v1/common/symbols"
	EAccounts     = "/v1/account/accounts"
	EDepth        = "/market/depth"
	EKline        = "/market/history/kline"
	ETickerDetail = "/market/detail/merged"
	ETrade        = "/market/trade"
	EOrderPlace   = "/v1/order/orders/place"
	EOrderDetail  = "/v1/order/orders/%d"
	EOrderCancel  = "/v1/order/orders/%d/submitcancel"
	EBatchCancel  = "/v1/order/orders/batchcancel"
	EOpenOrders   = "/v1/order/openOrders"
	EMatchResults = "/v1/order/orders/%d/matchresults"
	EAccountBalance = "/v1/account/accounts/%d/balance"
)

// SignatureHost is the host component of Huobi's canonical
// string-to-sign (method\nhost\npath\nquery).
const SignatureHost = "api.huobi.pro"
