package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lilwiggy/ex-act/internal/config"
	"github.com/lilwiggy/ex-act/pkg/domain"
	domainerrors "github.com/lilwiggy/ex-act/pkg/errors"
	"github.com/lilwiggy/ex-act/pkg/gatewaypb"
	"github.com/lilwiggy/ex-act/pkg/session"
	"github.com/lilwiggy/ex-act/pkg/venue"
)

// stubAdapter is a minimal venue.Adapter used to exercise the gateway
// façade without a real exchange connection.
type stubAdapter struct{}

func (stubAdapter) Tag() venue.Tag                          { return venue.Tag("stub") }
func (stubAdapter) Load(ctx context.Context) error           { return nil }
func (stubAdapter) FetchServerTime(ctx context.Context) (int64, error) {
	return 42, nil
}
func (stubAdapter) FetchExchangeInfoSymbol(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	return nil, nil
}
func (stubAdapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBookTop, error) {
	return &domain.OrderBookTop{}, nil
}
func (stubAdapter) FetchKlines(ctx context.Context, symbol, interval string, limit int, start, end int64) ([]domain.Kline, error) {
	return nil, nil
}
func (stubAdapter) FetchAveragePrice(ctx context.Context, symbol string) (domain.Decimal, error) {
	return nil, nil
}
func (stubAdapter) FetchTickerPriceChangeStatistics(ctx context.Context, symbol string) (*domain.Ticker, error) {
	return nil, nil
}
func (stubAdapter) FetchSymbolPriceTicker(ctx context.Context, symbol string) (domain.Decimal, error) {
	return nil, nil
}
func (stubAdapter) CreateOrder(ctx context.Context, req venue.OrderRequest) (*domain.Order, error) {
	return nil, nil
}
func (stubAdapter) FetchOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	return nil, nil
}
func (stubAdapter) CancelOrder(ctx context.Context, symbol string, orderID int64, origClientOrderID string) (*domain.Order, error) {
	return nil, nil
}
func (stubAdapter) CancelAllOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return nil, nil
}
func (stubAdapter) FetchOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	return nil, nil
}
func (stubAdapter) FetchAccountInformation(ctx context.Context) ([]domain.Balance, error) {
	return nil, nil
}
func (stubAdapter) FetchFundingWallet(ctx context.Context, asset string) ([]domain.Balance, error) {
	return nil, nil
}
func (stubAdapter) FetchAccountTradeList(ctx context.Context, symbol string, startTime int64, limit int) ([]domain.Trade, error) {
	return nil, nil
}
func (stubAdapter) FetchOrderTradeList(ctx context.Context, symbol string, orderID int64) ([]domain.Trade, error) {
	return nil, nil
}
func (stubAdapter) StartUserEventsListener(ctx context.Context, tradeID, symbol string, emit venue.EmitFunc) error {
	return nil
}
func (stubAdapter) StartMarketEventsListener(ctx context.Context, tradeID, symbol string, channels []string, emit venue.EmitFunc) error {
	return nil
}
func (stubAdapter) StopEventsListener(tradeID string) error { return nil }
func (stubAdapter) Close() error                            { return nil }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := config.Config{
		Accounts: []config.Account{{Name: "acct-1", Exchange: "stub"}},
		Endpoints: map[string]config.Endpoints{
			"stub": {},
		},
	}
	registry := session.NewRegistry(cfg, func(account config.Account, endpoints config.Endpoints) (venue.Adapter, error) {
		return stubAdapter{}, nil
	})
	sess, err := registry.OpenClientConnection(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("OpenClientConnection failed: %v", err)
	}
	return NewServer(registry), sess.ID
}

func TestOpenClientConnectionRoundTripsRateLimiterWeight(t *testing.T) {
	srv, _ := newTestServer(t)
	reply, err := srv.OpenClientConnection(context.Background(), &gatewaypb.OpenClientConnectionRequest{
		AccountName: "acct-1",
		RateLimiter: 7,
	})
	if err != nil {
		t.Fatalf("OpenClientConnection returned error: %v", err)
	}
	if reply.SrvVersion != ServerVersion {
		t.Fatalf("SrvVersion = %q, want %q", reply.SrvVersion, ServerVersion)
	}
	if reply.ClientID == "" {
		t.Fatal("expected a non-empty ClientID")
	}
	sess, err := srv.registry.Get(reply.ClientID)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", reply.ClientID, err)
	}
	if got := sess.RateLimiterWeight(); got != 7 {
		t.Fatalf("RateLimiterWeight() = %d, want 7", got)
	}
}

func TestFetchServerTimeUnknownClientIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := srv.FetchServerTime(context.Background(), &gatewaypb.FetchServerTimeRequest{ClientID: "does-not-exist"})
	if err == nil {
		t.Fatal("expected an error for an unknown clientID")
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.NotFound {
		t.Fatalf("expected codes.NotFound, got %v", err)
	}
}

func TestStartStreamReturnsOnceStreamCountSatisfied(t *testing.T) {
	srv, clientID := newTestServer(t)
	sess, err := srv.registry.Get(clientID)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", clientID, err)
	}
	sess.RegisterStream("trade-1", "ticker", 4)

	reply, err := srv.StartStream(context.Background(), &gatewaypb.StartStreamRequest{
		ClientID:          clientID,
		TradeID:           "trade-1",
		MarketStreamCount: 1,
	})
	if err != nil {
		t.Fatalf("StartStream returned error: %v", err)
	}
	if !reply.Success {
		t.Fatal("expected StartStream to report success once the stream count was satisfied")
	}
}

func TestStartStreamReturnsDeadlineExceededOnContextCancel(t *testing.T) {
	srv, clientID := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := srv.StartStream(ctx, &gatewaypb.StartStreamRequest{
		ClientID:          clientID,
		TradeID:           "trade-never-registered",
		MarketStreamCount: 1,
	})
	if err == nil {
		t.Fatal("expected StartStream to return an error once its context expired")
	}
	if st, ok := status.FromError(err); !ok || st.Code() != codes.DeadlineExceeded {
		t.Fatalf("expected codes.DeadlineExceeded, got %v", err)
	}
}

func TestToStatusMapsDomainErrorsOntoGRPCCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"not found", domainerrors.NewNotFoundError("session", "x"), codes.NotFound},
		{"validation", domainerrors.NewValidationError("qty", "x", "bad"), codes.InvalidArgument},
		{"rate limit", domainerrors.NewRateLimitError("stub", time.Second, 10), codes.ResourceExhausted},
		{"circuit open", domainerrors.NewCircuitBreakerError("stub", "open", "tripped", 5, time.Second), codes.Unavailable},
		{"context deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"context canceled", context.Canceled, codes.Canceled},
		{"unmapped", errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := toStatus(tc.err)
			st, ok := status.FromError(got)
			if !ok {
				t.Fatalf("toStatus(%v) did not produce a gRPC status", tc.err)
			}
			if st.Code() != tc.want {
				t.Fatalf("toStatus(%v) code = %v, want %v", tc.err, st.Code(), tc.want)
			}
		})
	}
}
