package gatewaypb

import (
	"context"

	"google.golang.org/grpc"
)

// MartinServer is the hand-written equivalent of what protoc-gen-go-grpc
// would emit from a martin.proto. One method per row of spec.md §6.
type MartinServer interface {
	OpenClientConnection(context.Context, *OpenClientConnectionRequest) (*OpenClientConnectionReply, error)
	FetchServerTime(context.Context, *FetchServerTimeRequest) (*FetchServerTimeReply, error)
	ResetRateLimit(context.Context, *ResetRateLimitRequest) (*ResetRateLimitReply, error)
	FetchOpenOrders(context.Context, *FetchOpenOrdersRequest) (*FetchOpenOrdersReply, error)
	FetchOrder(context.Context, *FetchOrderRequest) (*FetchOrderReply, error)
	CancelAllOrders(context.Context, *CancelAllOrdersRequest) (*CancelAllOrdersReply, error)
	FetchExchangeInfoSymbol(context.Context, *FetchExchangeInfoSymbolRequest) (*FetchExchangeInfoSymbolReply, error)
	FetchAccountInformation(context.Context, *FetchAccountInformationRequest) (*FetchAccountInformationReply, error)
	FetchFundingWallet(context.Context, *FetchFundingWalletRequest) (*FetchFundingWalletReply, error)
	FetchOrderBook(context.Context, *FetchOrderBookRequest) (*FetchOrderBookReply, error)
	FetchSymbolPriceTicker(context.Context, *FetchSymbolPriceTickerRequest) (*FetchSymbolPriceTickerReply, error)
	FetchTickerPriceChangeStatistics(context.Context, *FetchTickerPriceChangeStatisticsRequest) (*FetchTickerPriceChangeStatisticsReply, error)
	FetchKlines(context.Context, *FetchKlinesRequest) (*FetchKlinesReply, error)
	FetchAccountTradeList(context.Context, *FetchAccountTradeListRequest) (*FetchAccountTradeListReply, error)
	CreateLimitOrder(context.Context, *CreateLimitOrderRequest) (*CreateLimitOrderReply, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderReply, error)
	StartStream(context.Context, *StartStreamRequest) (*StartStreamReply, error)
	StopStream(context.Context, *StopStreamRequest) (*StopStreamReply, error)

	OnKlinesUpdate(*OnKlinesUpdateRequest, Martin_OnKlinesUpdateServer) error
	OnTickerUpdate(*OnTickerUpdateRequest, Martin_OnTickerUpdateServer) error
	OnOrderBookUpdate(*OnOrderBookUpdateRequest, Martin_OnOrderBookUpdateServer) error
	OnFundsUpdate(*OnFundsUpdateRequest, Martin_OnFundsUpdateServer) error
	OnOrderUpdate(*OnOrderUpdateRequest, Martin_OnOrderUpdateServer) error
}

type Martin_OnKlinesUpdateServer interface {
	Send(*KlineFrame) error
	grpc.ServerStream
}

type martinOnKlinesUpdateServer struct{ grpc.ServerStream }

func (s *martinOnKlinesUpdateServer) Send(f *KlineFrame) error { return s.SendMsg(f) }

type Martin_OnTickerUpdateServer interface {
	Send(*TickerFrame) error
	grpc.ServerStream
}

type martinOnTickerUpdateServer struct{ grpc.ServerStream }

func (s *martinOnTickerUpdateServer) Send(f *TickerFrame) error { return s.SendMsg(f) }

type Martin_OnOrderBookUpdateServer interface {
	Send(*OrderBookFrame) error
	grpc.ServerStream
}

type martinOnOrderBookUpdateServer struct{ grpc.ServerStream }

func (s *martinOnOrderBookUpdateServer) Send(f *OrderBookFrame) error { return s.SendMsg(f) }

type Martin_OnFundsUpdateServer interface {
	Send(*FundsFrame) error
	grpc.ServerStream
}

type martinOnFundsUpdateServer struct{ grpc.ServerStream }

func (s *martinOnFundsUpdateServer) Send(f *FundsFrame) error { return s.SendMsg(f) }

type Martin_OnOrderUpdateServer interface {
	Send(*OrderUpdateFrame) error
	grpc.ServerStream
}

type martinOnOrderUpdateServer struct{ grpc.ServerStream }

func (s *martinOnOrderUpdateServer) Send(f *OrderUpdateFrame) error { return s.SendMsg(f) }

func RegisterMartinServer(s grpc.ServiceRegistrar, srv MartinServer) {
	s.RegisterService(&martinServiceDesc, srv)
}

func unaryHandler[Req any, Reply any](methodName string, call func(MartinServer, context.Context, *Req) (*Reply, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MartinServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/martin.Martin/" + methodName}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MartinServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var martinServiceDesc = grpc.ServiceDesc{
	ServiceName: "martin.Martin",
	HandlerType: (*MartinServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OpenClientConnection", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("OpenClientConnection", MartinServer.OpenClientConnection)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchServerTime", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchServerTime", MartinServer.FetchServerTime)(srv, ctx, dec, i)
		}},
		{MethodName: "ResetRateLimit", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("ResetRateLimit", MartinServer.ResetRateLimit)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchOpenOrders", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchOpenOrders", MartinServer.FetchOpenOrders)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchOrder", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchOrder", MartinServer.FetchOrder)(srv, ctx, dec, i)
		}},
		{MethodName: "CancelAllOrders", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("CancelAllOrders", MartinServer.CancelAllOrders)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchExchangeInfoSymbol", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchExchangeInfoSymbol", MartinServer.FetchExchangeInfoSymbol)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchAccountInformation", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchAccountInformation", MartinServer.FetchAccountInformation)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchFundingWallet", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchFundingWallet", MartinServer.FetchFundingWallet)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchOrderBook", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchOrderBook", MartinServer.FetchOrderBook)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchSymbolPriceTicker", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchSymbolPriceTicker", MartinServer.FetchSymbolPriceTicker)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchTickerPriceChangeStatistics", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchTickerPriceChangeStatistics", MartinServer.FetchTickerPriceChangeStatistics)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchKlines", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchKlines", MartinServer.FetchKlines)(srv, ctx, dec, i)
		}},
		{MethodName: "FetchAccountTradeList", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("FetchAccountTradeList", MartinServer.FetchAccountTradeList)(srv, ctx, dec, i)
		}},
		{MethodName: "CreateLimitOrder", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("CreateLimitOrder", MartinServer.CreateLimitOrder)(srv, ctx, dec, i)
		}},
		{MethodName: "CancelOrder", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("CancelOrder", MartinServer.CancelOrder)(srv, ctx, dec, i)
		}},
		{MethodName: "StartStream", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("StartStream", MartinServer.StartStream)(srv, ctx, dec, i)
		}},
		{MethodName: "StopStream", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return unaryHandler("StopStream", MartinServer.StopStream)(srv, ctx, dec, i)
		}},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "OnKlinesUpdate", ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(OnKlinesUpdateRequest)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(MartinServer).OnKlinesUpdate(req, &martinOnKlinesUpdateServer{stream})
			},
		},
		{
			StreamName: "OnTickerUpdate", ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(OnTickerUpdateRequest)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(MartinServer).OnTickerUpdate(req, &martinOnTickerUpdateServer{stream})
			},
		},
		{
			StreamName: "OnOrderBookUpdate", ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(OnOrderBookUpdateRequest)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(MartinServer).OnOrderBookUpdate(req, &martinOnOrderBookUpdateServer{stream})
			},
		},
		{
			StreamName: "OnFundsUpdate", ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(OnFundsUpdateRequest)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(MartinServer).OnFundsUpdate(req, &martinOnFundsUpdateServer{stream})
			},
		},
		{
			StreamName: "OnOrderUpdate", ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(OnOrderUpdateRequest)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(MartinServer).OnOrderUpdate(req, &martinOnOrderUpdateServer{stream})
			},
		},
	},
	Metadata: "martin.proto",
}
