package session

import (
	"context"
	"testing"
	"time"

	"github.com/lilwiggy/ex-act/pkg/domain"
	"github.com/lilwiggy/ex-act/pkg/venue"
)

// stubAdapter is a no-op venue.Adapter used to exercise Session without a
// real exchange connection.
type stubAdapter struct {
	closed  bool
	stopped []string
}

func (s *stubAdapter) Tag() venue.Tag                          { return venue.Tag("stub") }
func (s *stubAdapter) Load(ctx context.Context) error           { return nil }
func (s *stubAdapter) FetchServerTime(ctx context.Context) (int64, error) {
	return time.Now().UnixMilli(), nil
}
func (s *stubAdapter) FetchExchangeInfoSymbol(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	return nil, nil
}
func (s *stubAdapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBookTop, error) {
	return nil, nil
}
func (s *stubAdapter) FetchKlines(ctx context.Context, symbol, interval string, limit int, start, end int64) ([]domain.Kline, error) {
	return nil, nil
}
func (s *stubAdapter) FetchAveragePrice(ctx context.Context, symbol string) (domain.Decimal, error) {
	return nil, nil
}
func (s *stubAdapter) FetchTickerPriceChangeStatistics(ctx context.Context, symbol string) (*domain.Ticker, error) {
	return nil, nil
}
func (s *stubAdapter) FetchSymbolPriceTicker(ctx context.Context, symbol string) (domain.Decimal, error) {
	return nil, nil
}
func (s *stubAdapter) CreateOrder(ctx context.Context, req venue.OrderRequest) (*domain.Order, error) {
	return nil, nil
}
func (s *stubAdapter) FetchOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	return nil, nil
}
func (s *stubAdapter) CancelOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	return nil, nil
}
func (s *stubAdapter) CancelAllOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return nil, nil
}
func (s *stubAdapter) FetchOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return nil, nil
}
func (s *stubAdapter) FetchAccountInformation(ctx context.Context) ([]domain.Balance, error) {
	return nil, nil
}
func (s *stubAdapter) FetchFundingWallet(ctx context.Context, asset string) ([]domain.Balance, error) {
	return nil, nil
}
func (s *stubAdapter) FetchAccountTradeList(ctx context.Context, symbol string, startTime int64, limit int) ([]domain.Trade, error) {
	return nil, nil
}
func (s *stubAdapter) FetchOrderTradeList(ctx context.Context, symbol string, orderID int64) ([]domain.Trade, error) {
	return nil, nil
}
func (s *stubAdapter) StartUserEventsListener(ctx context.Context, tradeID, symbol string, emit venue.EmitFunc) error {
	return nil
}
func (s *stubAdapter) StartMarketEventsListener(ctx context.Context, tradeID, symbol string, channels []string, emit venue.EmitFunc) error {
	return nil
}
func (s *stubAdapter) StopEventsListener(tradeID string) error {
	s.stopped = append(s.stopped, tradeID)
	return nil
}
func (s *stubAdapter) Close() error {
	s.closed = true
	return nil
}

func newTestSession() *Session {
	return New("sess-1", "acct-1", venue.Tag("stub"), &stubAdapter{})
}

func TestRateLimitLatchHoldsFor30Seconds(t *testing.T) {
	s := newTestSession()

	s.MarkRateLimited()
	if s.ResetRateLimit() {
		t.Fatal("ResetRateLimit() = true immediately after MarkRateLimited, want false (latch not yet expired)")
	}

	// simulate the latch having been set 31 seconds ago.
	s.rateLimitReachedAt.Store(time.Now().Add(-31 * time.Second).UnixMilli())
	if !s.ResetRateLimit() {
		t.Fatal("ResetRateLimit() = false after the 30s window elapsed, want true")
	}
	if !s.ResetRateLimit() {
		t.Fatal("ResetRateLimit() on an already-clear latch should report success")
	}
}

func TestRateLimiterWeightRoundTrips(t *testing.T) {
	s := newTestSession()
	s.SetRateLimiterWeight(42)
	if got := s.RateLimiterWeight(); got != 42 {
		t.Fatalf("RateLimiterWeight() = %d, want 42", got)
	}
}

func TestStopTradeIDStopsSubscriptionsAndListener(t *testing.T) {
	s := newTestSession()
	sub := s.RegisterStream("trade-1", "ticker", 4)

	s.StopTradeID("trade-1")

	select {
	case v, ok := <-sub.Queue:
		if !ok {
			t.Fatal("subscription queue closed instead of receiving the stop sentinel")
		}
		str, isStr := v.(string)
		if !isStr || str != sub.StopSentinel {
			t.Fatalf("expected stop sentinel %q, got %v", sub.StopSentinel, v)
		}
	default:
		t.Fatal("expected the stop sentinel to be queued synchronously by StopTradeID")
	}

	adapter := s.Adapter.(*stubAdapter)
	if len(adapter.stopped) != 1 || adapter.stopped[0] != "trade-1" {
		t.Fatalf("StopEventsListener called with %v, want [trade-1]", adapter.stopped)
	}
	if !s.QueueEmpty("trade-1") {
		t.Fatal("QueueEmpty(trade-1) = false after StopTradeID tore down its subscriptions")
	}
}

func TestCloseStopsOrdersActorAndClosesAdapter(t *testing.T) {
	s := newTestSession()
	if err := s.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
	if !s.Adapter.(*stubAdapter).closed {
		t.Fatal("Close() did not close the underlying adapter")
	}
}
