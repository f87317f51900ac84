package orderbook

import (
	"testing"

	"github.com/lilwiggy/ex-act/pkg/domain"
)

func level(price, qty string) domain.OrderBookLevel {
	return domain.OrderBookLevel{Price: domain.MustDecimal(price), Quantity: domain.MustDecimal(qty)}
}

func TestTop5TruncatesAndOrders(t *testing.T) {
	bids := []domain.OrderBookLevel{
		level("100.0", "1"), level("99.5", "1"), level("101.0", "1"),
		level("98.0", "1"), level("102.0", "1"), level("97.0", "1"),
	}
	asks := []domain.OrderBookLevel{
		level("103.0", "1"), level("104.0", "1"), level("102.5", "1"),
		level("105.0", "1"), level("106.0", "1"), level("107.0", "1"),
	}
	b := NewFromSnapshot("BTCUSDT", 1, bids, asks)

	top := b.Top5()
	if len(top.Bids) != 5 || len(top.Asks) != 5 {
		t.Fatalf("Top5() returned %d bids / %d asks, want 5/5", len(top.Bids), len(top.Asks))
	}
	if domain.String(top.Bids[0].Price) != "102.0" {
		t.Fatalf("best bid = %s, want 102.0 (highest first)", domain.String(top.Bids[0].Price))
	}
	if domain.String(top.Asks[0].Price) != "102.5" {
		t.Fatalf("best ask = %s, want 102.5 (lowest first)", domain.String(top.Asks[0].Price))
	}
	// the 6th-best level on each side must be dropped.
	for _, bid := range top.Bids {
		if domain.String(bid.Price) == "97.0" {
			t.Fatalf("Top5 bids included a 6th-ranked level: %v", top.Bids)
		}
	}
}

func TestApplyVenueBDeltaUpsertsAndRemoves(t *testing.T) {
	b := NewFromSnapshot("BTCUSDT", 1, nil, nil)

	b.ApplyVenueBDelta(domain.MustDecimal("100.0"), 1, domain.MustDecimal("2.5"))
	b.ApplyVenueBDelta(domain.MustDecimal("101.0"), 1, domain.MustDecimal("-1.5"))

	top := b.Top5()
	if len(top.Bids) != 1 || domain.String(top.Bids[0].Quantity) != "2.5" {
		t.Fatalf("expected one bid of qty 2.5, got %v", top.Bids)
	}
	if len(top.Asks) != 1 || domain.String(top.Asks[0].Quantity) != "1.5" {
		t.Fatalf("expected one ask of qty 1.5 (abs of -1.5), got %v", top.Asks)
	}

	b.ApplyVenueBDelta(domain.MustDecimal("100.0"), 0, nil)
	top = b.Top5()
	if len(top.Bids) != 0 {
		t.Fatalf("count==0 delta should remove the level, got %v", top.Bids)
	}
}

func TestReseedReplacesBookWholesale(t *testing.T) {
	b := NewFromSnapshot("BTCUSDT", 1, []domain.OrderBookLevel{level("1.0", "1")}, nil)
	b.Reseed(2, []domain.OrderBookLevel{level("2.0", "1")}, []domain.OrderBookLevel{level("3.0", "1")})

	top := b.Top5()
	if top.LastUpdateID != 2 {
		t.Fatalf("LastUpdateID = %d, want 2", top.LastUpdateID)
	}
	if len(top.Bids) != 1 || domain.String(top.Bids[0].Price) != "2.0" {
		t.Fatalf("Reseed did not replace bids, got %v", top.Bids)
	}
}

func TestVerifyChecksumMatchesRecomputation(t *testing.T) {
	b := NewFromSnapshot("BTCUSDT", 1, []domain.OrderBookLevel{level("100.0", "1")}, []domain.OrderBookLevel{level("101.0", "1")})

	want := Checksum(b)
	if !b.VerifyChecksum(want) {
		t.Fatalf("VerifyChecksum(%d) = false, want true for the book's own checksum", want)
	}
	if b.VerifyChecksum(want + 1) {
		t.Fatalf("VerifyChecksum(%d) = true, want false for a mismatched checksum", want+1)
	}
}
