package gateway

import (
	"github.com/lilwiggy/ex-act/pkg/domain"
	"github.com/lilwiggy/ex-act/pkg/gatewaypb"
)

// decStr renders a possibly-nil domain.Decimal as a wire string; a nil
// decimal means the field was never populated rather than zero.
func decStr(d domain.Decimal) string {
	if d == nil {
		return ""
	}
	return domain.String(d)
}

func orderToWire(o *domain.Order) *gatewaypb.OrderMessage {
	if o == nil {
		return nil
	}
	return &gatewaypb.OrderMessage{
		Exchange:           o.Exchange,
		Symbol:             o.Symbol,
		OrderID:            o.OrderID,
		OrderListID:        o.OrderListID,
		ClientOrderID:      o.ClientOrderID,
		Price:              decStr(o.Price),
		OrigQty:            decStr(o.OrigQty),
		ExecutedQty:        decStr(o.ExecQty),
		CumulativeQuoteQty: decStr(o.CumQuote),
		Status:             string(o.Status),
		TimeInForce:        o.TimeInForce,
		Type:               string(o.Type),
		Side:               string(o.Side),
		StopPrice:          decStr(o.StopPrice),
		Time:               o.Time.UnixMilli(),
		UpdateTime:         o.UpdateTime.UnixMilli(),
		IsWorking:          o.IsWorking,
	}
}

func ordersToWire(os []domain.Order) []*gatewaypb.OrderMessage {
	out := make([]*gatewaypb.OrderMessage, len(os))
	for i := range os {
		out[i] = orderToWire(&os[i])
	}
	return out
}

// executionReportOrder extracts the embedded *domain.Order from either
// shape an adapter may emit under the "executionReport" key: the
// reference venue dispatches a raw *domain.Order, the others a
// *domain.ExecutionReport (which embeds Order).
func executionReportOrder(event any) *domain.Order {
	switch v := event.(type) {
	case *domain.Order:
		return v
	case *domain.ExecutionReport:
		return &v.Order
	default:
		return nil
	}
}

func balancesToWire(bs []domain.Balance) []*gatewaypb.BalanceMessage {
	out := make([]*gatewaypb.BalanceMessage, len(bs))
	for i, b := range bs {
		out[i] = &gatewaypb.BalanceMessage{
			Asset:  b.Asset,
			Free:   decStr(b.Free),
			Locked: decStr(b.Locked),
		}
	}
	return out
}

func symbolInfoToWire(s *domain.SymbolInfo) *gatewaypb.SymbolInfoMessage {
	if s == nil {
		return nil
	}
	return &gatewaypb.SymbolInfoMessage{
		Symbol:              s.Symbol,
		BaseAsset:           s.BaseAsset,
		QuoteAsset:          s.QuoteAsset,
		Status:              s.Status,
		BaseAssetPrecision:  int32(s.BaseAssetPrecision),
		QuoteAssetPrecision: int32(s.QuoteAssetPrecision),
		MinQuantity:         decStr(s.MinQuantity),
		MaxQuantity:         decStr(s.MaxQuantity),
		QuantityStep:        decStr(s.QuantityStep),
		MinPrice:            decStr(s.MinPrice),
		MaxPrice:            decStr(s.MaxPrice),
		PriceStep:           decStr(s.PriceStep),
		MinNotional:         decStr(s.MinNotional),
	}
}

func orderBookToWire(ob *domain.OrderBookTop) *gatewaypb.FetchOrderBookReply {
	reply := &gatewaypb.FetchOrderBookReply{LastUpdateID: ob.LastUpdateID}
	reply.Bids = levelsToWire(ob.Bids)
	reply.Asks = levelsToWire(ob.Asks)
	return reply
}

func levelsToWire(levels []domain.OrderBookLevel) []*gatewaypb.OrderBookLevelMessage {
	out := make([]*gatewaypb.OrderBookLevelMessage, len(levels))
	for i, l := range levels {
		out[i] = &gatewaypb.OrderBookLevelMessage{Price: decStr(l.Price), Quantity: decStr(l.Quantity)}
	}
	return out
}

func tickerToWire(t *domain.Ticker) *gatewaypb.TickerMessage {
	if t == nil {
		return nil
	}
	return &gatewaypb.TickerMessage{
		Symbol:             t.Symbol,
		BidPrice:           decStr(t.BidPrice),
		AskPrice:           decStr(t.AskPrice),
		LastPrice:          decStr(t.LastPrice),
		HighPrice:          decStr(t.HighPrice),
		LowPrice:           decStr(t.LowPrice),
		Volume:             decStr(t.Volume),
		QuoteVolume:        decStr(t.QuoteVolume),
		PriceChange:        decStr(t.PriceChange),
		PriceChangePercent: decStr(t.PriceChangePercent),
		OpenPrice:          decStr(t.OpenPrice),
		Timestamp:          t.Timestamp.UnixMilli(),
	}
}

func klineToWire(k *domain.Kline) *gatewaypb.KlineMessage {
	return &gatewaypb.KlineMessage{
		OpenTime:  k.OpenTime.UnixMilli(),
		CloseTime: k.CloseTime.UnixMilli(),
		Open:      decStr(k.Open),
		High:      decStr(k.High),
		Low:       decStr(k.Low),
		Close:     decStr(k.Close),
		Volume:    decStr(k.Volume),
		IsClosed:  true,
	}
}

func klinesToWire(ks []domain.Kline) []*gatewaypb.KlineMessage {
	out := make([]*gatewaypb.KlineMessage, len(ks))
	for i := range ks {
		out[i] = klineToWire(&ks[i])
	}
	return out
}

func tradesToWire(ts []domain.Trade) []*gatewaypb.TradeMessage {
	out := make([]*gatewaypb.TradeMessage, len(ts))
	for i, t := range ts {
		out[i] = &gatewaypb.TradeMessage{
			ID:        t.ID,
			OrderID:   t.OrderID,
			Price:     decStr(t.Price),
			Quantity:  decStr(t.Quantity),
			Side:      string(t.Side),
			Timestamp: t.Timestamp.UnixMilli(),
		}
	}
	return out
}
