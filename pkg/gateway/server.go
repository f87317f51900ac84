// Package gateway implements the Martin RPC façade: it adapts the
// gatewaypb.MartinServer interface onto a session.Registry, translating
// domain types to wire messages and venue errors to gRPC status codes.
package gateway

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/lilwiggy/ex-act/internal/metrics"
	"github.com/lilwiggy/ex-act/pkg/domain"
	"github.com/lilwiggy/ex-act/pkg/errors"
	"github.com/lilwiggy/ex-act/pkg/gatewaypb"
	"github.com/lilwiggy/ex-act/pkg/session"
	"github.com/lilwiggy/ex-act/pkg/venue"
)

// MetricsInterceptor records every unary RPC's outcome under
// gatewayd_rpc_calls_total; install with grpc.UnaryInterceptor when
// building the server.
func MetricsInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	metrics.ObserveRPC(info.FullMethod, err)
	return resp, err
}

// afterHeartbeat returns a channel that fires once after session.HEARTBEAT,
// the shared poll resolution for StartStream/StopStream busy-waits.
func afterHeartbeat() <-chan time.Time {
	return time.After(session.HEARTBEAT)
}

// ServerVersion is reported back on every OpenClientConnection reply.
const ServerVersion = "1.0.0"

// Server implements gatewaypb.MartinServer against a session.Registry.
type Server struct {
	registry *session.Registry
}

// NewServer builds a gateway bound to registry.
func NewServer(registry *session.Registry) *Server {
	return &Server{registry: registry}
}

func (s *Server) session(clientID string) (*session.Session, error) {
	sess, err := s.registry.Get(clientID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Server) OpenClientConnection(ctx context.Context, req *gatewaypb.OpenClientConnectionRequest) (*gatewaypb.OpenClientConnectionReply, error) {
	sess, err := s.registry.OpenClientConnection(ctx, req.AccountName)
	if err != nil {
		return nil, toStatus(err)
	}
	sess.SetRateLimiterWeight(req.RateLimiter)
	return &gatewaypb.OpenClientConnectionReply{
		ClientID:   sess.ID,
		SrvVersion: ServerVersion,
		Exchange:   string(sess.VenueTag),
	}, nil
}

func (s *Server) FetchServerTime(ctx context.Context, req *gatewaypb.FetchServerTimeRequest) (*gatewaypb.FetchServerTimeReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	t, err := sess.Adapter.FetchServerTime(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &gatewaypb.FetchServerTimeReply{ServerTime: t}, nil
}

func (s *Server) ResetRateLimit(ctx context.Context, req *gatewaypb.ResetRateLimitRequest) (*gatewaypb.ResetRateLimitReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	ok := sess.ResetRateLimit()
	if ok {
		sess.SetRateLimiterWeight(req.RateLimiter)
	}
	return &gatewaypb.ResetRateLimitReply{Success: ok}, nil
}

func (s *Server) FetchOpenOrders(ctx context.Context, req *gatewaypb.FetchOpenOrdersRequest) (*gatewaypb.FetchOpenOrdersReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	orders, err := sess.Adapter.FetchOpenOrders(ctx, req.Symbol)
	if err != nil {
		return nil, toStatus(err)
	}
	openIDs := make([]int64, len(orders))
	for i, o := range orders {
		openIDs[i] = o.OrderID
	}
	sess.ActiveOrdersClear(openIDs)
	return &gatewaypb.FetchOpenOrdersReply{
		Orders:      ordersToWire(orders),
		RateLimiter: sess.RateLimiterWeight(),
	}, nil
}

// FetchOrder reads a single order; when req.FilledUpdateCall is set, a
// freshly-filled order is pushed onto the "executionReport" bus so any
// live OnOrderUpdate stream observes the fill even if its own WSS frame
// was missed.
func (s *Server) FetchOrder(ctx context.Context, req *gatewaypb.FetchOrderRequest) (*gatewaypb.FetchOrderReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	order, err := sess.Adapter.FetchOrder(ctx, req.Symbol, req.OrderID, "")
	if err != nil {
		return nil, toStatus(err)
	}
	if req.FilledUpdateCall && order != nil && order.IsFilled() {
		sess.Bus().Fire("executionReport", order)
	}
	return &gatewaypb.FetchOrderReply{Order: orderToWire(order)}, nil
}

func (s *Server) CancelAllOrders(ctx context.Context, req *gatewaypb.CancelAllOrdersRequest) (*gatewaypb.CancelAllOrdersReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	orders, err := sess.Adapter.CancelAllOrders(ctx, req.Symbol)
	if err != nil {
		return nil, toStatus(err)
	}
	for _, o := range orders {
		sess.Orders().MarkCancelled(o.OrderID)
	}
	return &gatewaypb.CancelAllOrdersReply{Orders: ordersToWire(orders)}, nil
}

func (s *Server) FetchExchangeInfoSymbol(ctx context.Context, req *gatewaypb.FetchExchangeInfoSymbolRequest) (*gatewaypb.FetchExchangeInfoSymbolReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	info, err := sess.Adapter.FetchExchangeInfoSymbol(ctx, req.Symbol)
	if err != nil {
		return nil, toStatus(err)
	}
	return &gatewaypb.FetchExchangeInfoSymbolReply{Info: symbolInfoToWire(info)}, nil
}

func (s *Server) FetchAccountInformation(ctx context.Context, req *gatewaypb.FetchAccountInformationRequest) (*gatewaypb.FetchAccountInformationReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	balances, err := sess.Adapter.FetchAccountInformation(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &gatewaypb.FetchAccountInformationReply{Balances: balancesToWire(balances)}, nil
}

func (s *Server) FetchFundingWallet(ctx context.Context, req *gatewaypb.FetchFundingWalletRequest) (*gatewaypb.FetchFundingWalletReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	balances, err := sess.Adapter.FetchFundingWallet(ctx, req.Asset)
	if err != nil {
		return nil, toStatus(err)
	}
	return &gatewaypb.FetchFundingWalletReply{Balances: balancesToWire(balances)}, nil
}

func (s *Server) FetchOrderBook(ctx context.Context, req *gatewaypb.FetchOrderBookRequest) (*gatewaypb.FetchOrderBookReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	ob, err := sess.Adapter.FetchOrderBook(ctx, req.Symbol, 5)
	if err != nil {
		return nil, toStatus(err)
	}
	return orderBookToWire(ob), nil
}

func (s *Server) FetchSymbolPriceTicker(ctx context.Context, req *gatewaypb.FetchSymbolPriceTickerRequest) (*gatewaypb.FetchSymbolPriceTickerReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	price, err := sess.Adapter.FetchSymbolPriceTicker(ctx, req.Symbol)
	if err != nil {
		return nil, toStatus(err)
	}
	return &gatewaypb.FetchSymbolPriceTickerReply{Symbol: req.Symbol, Price: decStr(price)}, nil
}

func (s *Server) FetchTickerPriceChangeStatistics(ctx context.Context, req *gatewaypb.FetchTickerPriceChangeStatisticsRequest) (*gatewaypb.FetchTickerPriceChangeStatisticsReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	ticker, err := sess.Adapter.FetchTickerPriceChangeStatistics(ctx, req.Symbol)
	if err != nil {
		return nil, toStatus(err)
	}
	return &gatewaypb.FetchTickerPriceChangeStatisticsReply{Ticker: tickerToWire(ticker)}, nil
}

func (s *Server) FetchKlines(ctx context.Context, req *gatewaypb.FetchKlinesRequest) (*gatewaypb.FetchKlinesReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	limit := int(req.Limit)
	if limit <= 0 {
		limit = 500
	}
	klines, err := sess.Adapter.FetchKlines(ctx, req.Symbol, req.Interval, limit, 0, 0)
	if err != nil {
		return nil, toStatus(err)
	}
	return &gatewaypb.FetchKlinesReply{Klines: klinesToWire(klines)}, nil
}

func (s *Server) FetchAccountTradeList(ctx context.Context, req *gatewaypb.FetchAccountTradeListRequest) (*gatewaypb.FetchAccountTradeListReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	limit := int(req.Limit)
	if limit <= 0 {
		limit = 500
	}
	trades, err := sess.Adapter.FetchAccountTradeList(ctx, req.Symbol, req.StartTime, limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &gatewaypb.FetchAccountTradeListReply{Trades: tradesToWire(trades)}, nil
}

func (s *Server) CreateLimitOrder(ctx context.Context, req *gatewaypb.CreateLimitOrderRequest) (*gatewaypb.CreateLimitOrderReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	qty, err := domain.NewDecimal(req.Quantity)
	if err != nil {
		return nil, toStatus(errors.NewValidationError("quantity", req.Quantity, "not a valid decimal"))
	}
	price, err := domain.NewDecimal(req.Price)
	if err != nil {
		return nil, toStatus(errors.NewValidationError("price", req.Price, "not a valid decimal"))
	}
	side := domain.OrderSideSell
	if req.BuySide {
		side = domain.OrderSideBuy
	}
	order, err := sess.Adapter.CreateOrder(ctx, venue.OrderRequest{
		Symbol:           req.Symbol,
		Side:             side,
		Type:             domain.OrderTypeLimit,
		Quantity:         qty,
		Price:            price,
		TimeInForce:      "GTC",
		NewClientOrderID: req.NewClientOrderID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	sess.Orders().Put(order.OrderID, &session.ActiveOrderEntry{
		OrigQty: order.OrigQty,
		ExecQty: order.ExecQty,
	})
	return &gatewaypb.CreateLimitOrderReply{Order: orderToWire(order)}, nil
}

func (s *Server) CancelOrder(ctx context.Context, req *gatewaypb.CancelOrderRequest) (*gatewaypb.CancelOrderReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	order, err := sess.Adapter.CancelOrder(ctx, req.Symbol, req.OrderID, "")
	if err != nil {
		return nil, toStatus(err)
	}
	sess.Orders().MarkCancelled(req.OrderID)
	return &gatewaypb.CancelOrderReply{Order: orderToWire(order)}, nil
}

// StartStream busy-waits at session.HEARTBEAT resolution until tradeID
// has registered at least marketStreamCount market streams, matching
// the façade's synchronous "all requested streams are live" contract.
func (s *Server) StartStream(ctx context.Context, req *gatewaypb.StartStreamRequest) (*gatewaypb.StartStreamReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	ticker := ctx.Done()
	for {
		if sess.MarketStreamCount(req.TradeID) >= int(req.MarketStreamCount) {
			return &gatewaypb.StartStreamReply{Success: true}, nil
		}
		select {
		case <-ticker:
			return nil, toStatus(ctx.Err())
		case <-afterHeartbeat():
		}
	}
}

func (s *Server) StopStream(ctx context.Context, req *gatewaypb.StopStreamRequest) (*gatewaypb.StopStreamReply, error) {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	sess.StopTradeID(req.TradeID)
	for !sess.QueueEmpty(req.TradeID) {
		select {
		case <-ctx.Done():
			return nil, toStatus(ctx.Err())
		case <-afterHeartbeat():
		}
	}
	return &gatewaypb.StopStreamReply{Success: true}, nil
}
