package venue

import (
	"context"

	"github.com/lilwiggy/ex-act/pkg/domain"
)

// OrderRequest carries every field a createOrder call may need across all
// four venues; adapters read only the fields relevant to the order type
// and their own venue quirks.
type OrderRequest struct {
	Symbol          string
	Side            domain.OrderSide
	Type            domain.OrderType
	Quantity        domain.Decimal
	QuoteOrderQty   domain.Decimal
	Price           domain.Decimal
	StopPrice       domain.Decimal
	IcebergQty      domain.Decimal
	TimeInForce     string
	NewClientOrderID string
	RecvWindowMs    int64
	Test            bool
}

// Adapter is the capability set every venue implements. The gateway and
// session layers hold a value of this interface rather than switching on
// a venue tag string — see the "Dynamic, venue-tagged dispatch" design
// note.
type Adapter interface {
	// Tag returns which venue this adapter speaks to.
	Tag() Tag

	// Load fetches exchangeInfo, populates the symbol table, and (venues B
	// and C) resolves and caches the spot-account id. Fatal on failure.
	Load(ctx context.Context) error

	FetchServerTime(ctx context.Context) (int64, error)
	FetchExchangeInfoSymbol(ctx context.Context, symbol string) (*domain.SymbolInfo, error)
	FetchOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBookTop, error)
	FetchKlines(ctx context.Context, symbol, interval string, limit int, start, end int64) ([]domain.Kline, error)
	FetchAveragePrice(ctx context.Context, symbol string) (domain.Decimal, error)
	FetchTickerPriceChangeStatistics(ctx context.Context, symbol string) (*domain.Ticker, error)
	FetchSymbolPriceTicker(ctx context.Context, symbol string) (domain.Decimal, error)

	CreateOrder(ctx context.Context, req OrderRequest) (*domain.Order, error)
	FetchOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error)
	CancelAllOrders(ctx context.Context, symbol string) ([]domain.Order, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error)

	FetchAccountInformation(ctx context.Context) ([]domain.Balance, error)
	FetchFundingWallet(ctx context.Context, asset string) ([]domain.Balance, error)
	FetchAccountTradeList(ctx context.Context, symbol string, startTime int64, limit int) ([]domain.Trade, error)
	FetchOrderTradeList(ctx context.Context, symbol string, orderID int64) ([]domain.Trade, error)

	// StartUserEventsListener and StartMarketEventsListener begin a
	// private/public WSS stream for tradeId, forwarding decoded frames to
	// the emit callback; StopEventsListener tears the stream down.
	StartUserEventsListener(ctx context.Context, tradeID string, symbol string, emit EmitFunc) error
	StartMarketEventsListener(ctx context.Context, tradeID string, symbol string, channels []string, emit EmitFunc) error
	StopEventsListener(tradeID string) error

	// Close releases all sockets and HTTP connections held by the adapter.
	Close() error
}

// EmitFunc is how a venue's WebSocket decode loop hands a canonical event
// to its owner (normally the session's event bus). It must never block.
type EmitFunc func(eventKey string, data any)
