package gateway

import (
	"fmt"

	"github.com/lilwiggy/ex-act/internal/metrics"
	"github.com/lilwiggy/ex-act/pkg/domain"
	"github.com/lilwiggy/ex-act/pkg/gatewaypb"
	"github.com/lilwiggy/ex-act/pkg/session"
)

// marketStreamCapacity is the bounded queue depth for every
// server-streaming RPC except order book updates, which arrive far more
// frequently and get a wider buffer (spec's literal queue-capacity
// table).
const (
	marketStreamCapacity    = 50
	orderBookStreamCapacity = 500
)

// busForward is the emit callback every StartMarketEventsListener/
// StartUserEventsListener call is given: it simply republishes onto the
// session's event bus, where RegisterStream's subscriber picks it up.
func busForward(sess *session.Session) func(eventKey string, event any) {
	return func(eventKey string, event any) {
		sess.Bus().Fire(eventKey, event)
	}
}

// recordQueueDepth publishes a subscription's current backlog so
// operators can see a stream approaching its overflow threshold.
func recordQueueDepth(sess *session.Session, tradeID, eventKey string, depth int) {
	metrics.StreamQueueDepth.WithLabelValues(string(sess.VenueTag), tradeID, eventKey).Set(float64(depth))
}

func (s *Server) OnKlinesUpdate(req *gatewaypb.OnKlinesUpdateRequest, stream gatewaypb.Martin_OnKlinesUpdateServer) error {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return toStatus(err)
	}

	sub := sess.RegisterStream(req.TradeID, "kline", marketStreamCapacity)
	channels := make([]string, len(req.Interval))
	for i, interval := range req.Interval {
		channels[i] = fmt.Sprintf("kline_%s", interval)
	}
	if err := sess.Adapter.StartMarketEventsListener(stream.Context(), req.TradeID, req.Symbol, channels, busForward(sess)); err != nil {
		return toStatus(err)
	}

	for event := range sub.Queue {
		recordQueueDepth(sess, req.TradeID, "kline", len(sub.Queue))
		if v, stop := event.(string); stop && v == sub.StopSentinel {
			return nil
		}
		candle, ok := event.(*domain.Candle)
		if !ok {
			continue
		}
		frame := &gatewaypb.KlineFrame{Symbol: req.Symbol, Kline: klineToWire(&candle.Kline)}
		if err := stream.Send(frame); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) OnTickerUpdate(req *gatewaypb.OnTickerUpdateRequest, stream gatewaypb.Martin_OnTickerUpdateServer) error {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return toStatus(err)
	}

	sub := sess.RegisterStream(req.TradeID, "ticker", marketStreamCapacity)
	if err := sess.Adapter.StartMarketEventsListener(stream.Context(), req.TradeID, req.Symbol, []string{"ticker"}, busForward(sess)); err != nil {
		return toStatus(err)
	}

	for event := range sub.Queue {
		recordQueueDepth(sess, req.TradeID, "ticker", len(sub.Queue))
		if v, stop := event.(string); stop && v == sub.StopSentinel {
			return nil
		}
		ticker, ok := event.(*domain.Ticker)
		if !ok {
			continue
		}
		if err := stream.Send(&gatewaypb.TickerFrame{Ticker: tickerToWire(ticker)}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) OnOrderBookUpdate(req *gatewaypb.OnOrderBookUpdateRequest, stream gatewaypb.Martin_OnOrderBookUpdateServer) error {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return toStatus(err)
	}

	sub := sess.RegisterStream(req.TradeID, "depth", orderBookStreamCapacity)
	if err := sess.Adapter.StartMarketEventsListener(stream.Context(), req.TradeID, req.Symbol, []string{"depth"}, busForward(sess)); err != nil {
		return toStatus(err)
	}

	for event := range sub.Queue {
		recordQueueDepth(sess, req.TradeID, "depth", len(sub.Queue))
		if v, stop := event.(string); stop && v == sub.StopSentinel {
			return nil
		}
		ob, ok := event.(*domain.OrderBook)
		if !ok {
			continue
		}
		frame := &gatewaypb.OrderBookFrame{
			Symbol:       req.Symbol,
			Bids:         levelsToWire(ob.Bids),
			Asks:         levelsToWire(ob.Asks),
			LastUpdateID: ob.LastUpdateID,
		}
		if err := stream.Send(frame); err != nil {
			return err
		}
	}
	return nil
}

// OnFundsUpdate registers the balance-delta stream's queue and adapter
// listeners, filtering frames to the requested asset pair.
func (s *Server) OnFundsUpdate(req *gatewaypb.OnFundsUpdateRequest, stream gatewaypb.Martin_OnFundsUpdateServer) error {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return toStatus(err)
	}

	sub := sess.RegisterStream(req.TradeID, "balance", marketStreamCapacity)
	if err := sess.Adapter.StartUserEventsListener(stream.Context(), req.TradeID, req.Symbol, busForward(sess)); err != nil {
		return toStatus(err)
	}

	for event := range sub.Queue {
		recordQueueDepth(sess, req.TradeID, "balance", len(sub.Queue))
		if v, stop := event.(string); stop && v == sub.StopSentinel {
			return nil
		}
		bal, ok := event.(*domain.Balance)
		if !ok {
			continue
		}
		if req.BaseAsset != "" && req.QuoteAsset != "" &&
			bal.Asset != req.BaseAsset && bal.Asset != req.QuoteAsset {
			continue
		}
		frame := &gatewaypb.FundsFrame{Asset: bal.Asset, Free: decStr(bal.Free), Locked: decStr(bal.Locked)}
		if err := stream.Send(frame); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) OnOrderUpdate(req *gatewaypb.OnOrderUpdateRequest, stream gatewaypb.Martin_OnOrderUpdateServer) error {
	sess, err := s.session(req.ClientID)
	if err != nil {
		return toStatus(err)
	}

	sub := sess.RegisterStream(req.TradeID, "executionReport", marketStreamCapacity)
	if err := sess.Adapter.StartUserEventsListener(stream.Context(), req.TradeID, req.Symbol, busForward(sess)); err != nil {
		return toStatus(err)
	}

	for event := range sub.Queue {
		recordQueueDepth(sess, req.TradeID, "executionReport", len(sub.Queue))
		if v, stop := event.(string); stop && v == sub.StopSentinel {
			return nil
		}
		order := executionReportOrder(event)
		if order == nil {
			continue
		}
		if report, ok := event.(*domain.ExecutionReport); ok {
			sess.Orders().UpdateFromExecutionReport(report)
		}
		if err := stream.Send(&gatewaypb.OrderUpdateFrame{Order: orderToWire(order)}); err != nil {
			return err
		}
	}
	return nil
}
