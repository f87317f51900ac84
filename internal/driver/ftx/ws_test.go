package ftx

import (
	"encoding/json"
	"testing"

	"github.com/lilwiggy/ex-act/internal/orderbook"
	"github.com/lilwiggy/ex-act/pkg/domain"
)

func TestOrderBookChecksumMismatchResubscribes(t *testing.T) {
	var emitted int
	c := NewWSClient(func(market, eventKey string, data any) { emitted++ })

	bids := []domain.OrderBookLevel{{Price: domain.NewDecimalFromFloat64(100.0), Quantity: domain.NewDecimalFromFloat64(1)}}
	asks := []domain.OrderBookLevel{{Price: domain.NewDecimalFromFloat64(101.0), Quantity: domain.NewDecimalFromFloat64(1)}}
	reference := orderbook.NewFromSnapshot("BTC/USD", 0, bids, asks)
	goodChecksum := orderbook.Checksum(reference)

	partial, _ := json.Marshal(map[string]any{
		"channel": "orderbook",
		"market":  "BTC/USD",
		"type":    "partial",
		"data": map[string]any{
			"bids":     [][2]float64{{100.0, 1}},
			"asks":     [][2]float64{{101.0, 1}},
			"checksum": goodChecksum,
			"time":     1.0,
		},
	})
	dispatchFrame(t, c, partial)

	if emitted != 1 {
		t.Fatalf("expected 1 emission after a matching-checksum partial, got %d", emitted)
	}
	if _, ok := c.books["BTC/USD"]; !ok {
		t.Fatal("expected the book to survive a matching checksum")
	}

	badUpdate, _ := json.Marshal(map[string]any{
		"channel": "orderbook",
		"market":  "BTC/USD",
		"type":    "update",
		"data": map[string]any{
			"bids":     [][2]float64{{99.0, 5}},
			"asks":     [][2]float64{},
			"checksum": goodChecksum + 1, // deliberately wrong
			"time":     2.0,
		},
	})
	dispatchFrame(t, c, badUpdate)

	if emitted != 1 {
		t.Fatalf("expected no new emission after a checksum mismatch, got %d total", emitted)
	}
	if _, ok := c.books["BTC/USD"]; ok {
		t.Fatal("expected the book to be dropped and resubscribed after a checksum mismatch")
	}
}

// dispatchFrame mirrors OnMessage's channel/type switch without requiring a
// live gws.Message, which can't be constructed outside the library.
func dispatchFrame(t *testing.T, c *WSClient, raw []byte) {
	t.Helper()
	var frame struct {
		Channel string          `json:"channel"`
		Market  string          `json:"market"`
		Type    string          `json:"type"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("failed to unmarshal test frame: %v", err)
	}
	c.handleOrderBook(frame.Market, frame.Type, frame.Data)
}
