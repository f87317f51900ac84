package huobi

import (
	"encoding/json"
	"testing"

	"github.com/lilwiggy/ex-act/pkg/domain"
	"github.com/lilwiggy/ex-act/pkg/venue"
)

// TestOrderFrameBufferedWhileOrderIDUnknown exercises the race between
// CreateOrder's REST round trip and a private-stream frame that arrives
// before the order id is known: the frame must be buffered under the
// client order id rather than dropped, then delivered once the order id
// is registered.
func TestOrderFrameBufferedWhileOrderIDUnknown(t *testing.T) {
	a := NewAdapter("key", "secret", true)

	const cid = "gw-race-1"
	entry := &pendingOrder{origQty: domain.NewDecimalFromInt(1), execQty: domain.Zero()}
	a.pendingMu.Lock()
	a.pending[cid] = entry
	a.pendingMu.Unlock()

	raw, _ := json.Marshal(map[string]any{
		"orderId":       int64(555),
		"clientOrderId": cid,
		"symbol":        "btcusdt",
		"orderStatus":   "filled",
	})

	var delivered []*domain.ExecutionReport
	a.userMu.Lock()
	a.userListeners["trade-1"] = venue.EmitFunc(func(eventKey string, data any) {
		if report, ok := data.(*domain.ExecutionReport); ok {
			delivered = append(delivered, report)
		}
	})
	a.userMu.Unlock()

	a.handleOrderFrame(raw)
	if len(delivered) != 0 {
		t.Fatalf("handleOrderFrame dispatched before the order id was known, got %d deliveries", len(delivered))
	}

	a.pendingMu.Lock()
	if len(entry.buffered) != 1 {
		a.pendingMu.Unlock()
		t.Fatalf("expected the frame to be buffered on the pending entry, got %d", len(entry.buffered))
	}
	a.pendingMu.Unlock()

	// CreateOrder's post-placement step: register the order id and drain.
	a.pendingMu.Lock()
	a.byOrderID[555] = entry
	buffered := entry.buffered
	entry.buffered = nil
	a.pendingMu.Unlock()
	for _, r := range buffered {
		a.applyOrderFrame(555, r)
	}

	if len(delivered) != 1 {
		t.Fatalf("expected 1 delivery after draining the buffer, got %d", len(delivered))
	}
	if delivered[0].Order.OrderID != 555 {
		t.Fatalf("delivered order id = %d, want 555", delivered[0].Order.OrderID)
	}

	// once the order id is known, subsequent frames dispatch immediately.
	raw2, _ := json.Marshal(map[string]any{
		"orderId":     int64(555),
		"orderStatus": "filled",
	})
	a.handleOrderFrame(raw2)
	if len(delivered) != 2 {
		t.Fatalf("expected immediate dispatch once the order id is known, got %d deliveries", len(delivered))
	}
}

func TestKlineDedupeDropsStaleOpenTime(t *testing.T) {
	var emitted []*domain.Candle
	c := NewWSClient(func(symbol, eventKey string, data any) {
		if candle, ok := data.(*domain.Candle); ok {
			emitted = append(emitted, candle)
		}
	})

	newer, _ := json.Marshal(map[string]any{"id": int64(200), "open": 1.0, "close": 11.0, "low": 9.0, "high": 12.0, "amount": 10.0, "count": 5})
	older, _ := json.Marshal(map[string]any{"id": int64(100), "open": 2.0, "close": 21.0, "low": 19.0, "high": 22.0, "amount": 20.0, "count": 3})

	c.handleKline("BTCUSDT", "1min", newer)
	c.handleKline("BTCUSDT", "1min", older)

	if len(emitted) != 1 {
		t.Fatalf("expected the stale (older open-time) candle to be dropped, got %d emissions", len(emitted))
	}
	if domain.Cmp(emitted[0].Close, domain.NewDecimalFromInt(11)) != 0 {
		t.Fatalf("expected the newer candle's close=11 to survive, got %s", domain.String(emitted[0].Close))
	}
}
