// Package orderbook maintains top-of-book state reconstructed from venue
// delta streams. One Book instance per (session, symbol).
package orderbook

import (
	"sort"
	"sync"

	"github.com/lilwiggy/ex-act/pkg/domain"
)

// Side distinguishes bid/ask levels so both sides can share one update path.
type Side int

const (
	Bid Side = iota
	Ask
)

type level struct {
	price domain.Decimal
	qty   domain.Decimal
}

// Book holds bids descending by price and asks ascending by price, keyed
// by price so delta application is a map lookup instead of a linear scan.
type Book struct {
	mu           sync.RWMutex
	symbol       string
	lastUpdateID int64
	bids         map[string]level // keyed by price string
	asks         map[string]level
}

// NewFromSnapshot seeds a Book from a REST/WS snapshot.
func NewFromSnapshot(symbol string, lastUpdateID int64, bids, asks []domain.OrderBookLevel) *Book {
	b := &Book{
		symbol:       symbol,
		lastUpdateID: lastUpdateID,
		bids:         make(map[string]level, len(bids)),
		asks:         make(map[string]level, len(asks)),
	}
	for _, l := range bids {
		b.bids[domain.String(l.Price)] = level{l.Price, l.Quantity}
	}
	for _, l := range asks {
		b.asks[domain.String(l.Price)] = level{l.Price, l.Quantity}
	}
	return b
}

// Upsert inserts or replaces a level; a zero quantity removes the level.
func (b *Book) Upsert(side Side, price, qty domain.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upsertLocked(side, price, qty)
}

func (b *Book) upsertLocked(side Side, price, qty domain.Decimal) {
	m := b.bids
	if side == Ask {
		m = b.asks
	}
	key := domain.String(price)
	if domain.IsZero(qty) {
		delete(m, key)
		return
	}
	m[key] = level{price, qty}
}

// ApplyVenueBDelta applies a venue B per-level record [price, count,
// amount]: count==0 removes the level; otherwise a positive amount
// upserts a bid and a negative amount upserts an ask at its absolute
// value.
func (b *Book) ApplyVenueBDelta(price domain.Decimal, count int64, amount domain.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if count == 0 {
		key := domain.String(price)
		delete(b.bids, key)
		delete(b.asks, key)
		return
	}
	if domain.IsPositive(amount) {
		b.upsertLocked(Bid, price, amount)
	} else {
		b.upsertLocked(Ask, price, domain.Abs(amount))
	}
}

// Reseed replaces the book wholesale, used for venue D's "partial" event.
func (b *Book) Reseed(lastUpdateID int64, bids, asks []domain.OrderBookLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastUpdateID = lastUpdateID
	b.bids = make(map[string]level, len(bids))
	b.asks = make(map[string]level, len(asks))
	for _, l := range bids {
		b.bids[domain.String(l.Price)] = level{l.Price, l.Quantity}
	}
	for _, l := range asks {
		b.asks[domain.String(l.Price)] = level{l.Price, l.Quantity}
	}
}

// SetLastUpdateID records the most recent delta's update id.
func (b *Book) SetLastUpdateID(id int64) {
	b.mu.Lock()
	b.lastUpdateID = id
	b.mu.Unlock()
}

// Top5 returns the best 5 bids (descending) and asks (ascending).
func (b *Book) Top5() *domain.OrderBookTop {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bids := sortedLevels(b.bids, true)
	asks := sortedLevels(b.asks, false)

	return &domain.OrderBookTop{
		LastUpdateID: b.lastUpdateID,
		Bids:         toLevels(bids, 5),
		Asks:         toLevels(asks, 5),
	}
}

func sortedLevels(m map[string]level, descending bool) []level {
	out := make([]level, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		cmp := domain.Cmp(out[i].price, out[j].price)
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
	return out
}

func toLevels(levels []level, n int) []domain.OrderBookLevel {
	if len(levels) > n {
		levels = levels[:n]
	}
	out := make([]domain.OrderBookLevel, len(levels))
	for i, l := range levels {
		out[i] = domain.OrderBookLevel{Price: l.price, Quantity: l.qty}
	}
	return out
}

// VerifyChecksum compares a venue-supplied checksum against a running
// hash over the top-N levels (venue D). The exact algorithm is
// venue-specified and not given in this spec; this computes a
// CRC32 over "price:qty" pairs interleaved bid/ask as a concrete,
// swappable default — see DESIGN.md's Open Question note.
func (b *Book) VerifyChecksum(want int32) bool {
	return Checksum(b) == want
}
