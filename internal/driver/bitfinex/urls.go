// Package bitfinex implements venue C: t<BASE><QUOTE>/t<BASE>:<QUOTE>
// symbol form, HMAC-SHA384 hex signing, spot-account-id resolution at
// Load(), gzip-framed WSS with a control-code dispatch table, and
// order placement/cancellation that polls the order until it is
// visible/canceled.
package bitfinex

const (
	BaseRestURL = "https://api.venuec.example/v2"
	BaseWSURL   = "wss://stream.venuec.example/ws/v2"
)

const (
	EAuthPing      = "/platform/status"
	ESymbolDetails = "/conf/pub:info:pair"
	EBook          = "/book/%s/P0"
	ECandles       = "/candles/trade:%s:%s/hist"
	ETicker        = "/ticker/%s"
	EAuthOrderNew  = "/auth/w/order/submit"
	EAuthOrderCancel = "/auth/w/order/cancel"
	EAuthOrdersActive = "/auth/r/orders"
	EAuthOrdersHist   = "/auth/r/orders/%s/hist"
	EAuthWallets   = "/auth/r/wallets"
	EAuthTrades    = "/auth/r/trades/%s/hist"
	EAuthAccountID = "/auth/r/info/user"
)

// controlCode enumerates the WSS control frames this venue's gzip
// channel dispatches on before falling through to data frames.
type controlCode int

const (
	controlHeartbeat controlCode = iota
	controlSubscribed
	controlUnsubscribed
	controlAuth
	controlError
	controlData
)
