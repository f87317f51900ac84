package orderbook

import (
	"hash/crc32"
)

// Checksum computes venue D's order-book checksum: a CRC32 over the
// interleaved top-25 bid/ask price:qty pairs, bids then asks at each
// depth, joined by ':'. The exact algorithm is not specified in the
// source spec (see DESIGN.md Open Questions); this mirrors the common
// interleaved-CRC32 scheme used by checksum-verified venue order books
// and is isolated in its own function so it can be swapped for the
// venue's real published algorithm without touching Book.
func Checksum(b *Book) int32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bids := sortedLevels(b.bids, true)
	asks := sortedLevels(b.asks, false)

	var parts []string
	for i := 0; i < 25; i++ {
		if i < len(bids) {
			parts = append(parts, bids[i].price.String(), trimInt(bids[i].qty.String()))
		}
		if i < len(asks) {
			parts = append(parts, asks[i].price.String(), trimInt(asks[i].qty.String()))
		}
	}

	joined := ""
	for i, p := range parts {
		if i > 0 {
			joined += ":"
		}
		joined += p
	}

	return int32(crc32.ChecksumIEEE([]byte(joined)))
}

func trimInt(s string) string {
	// venue D encodes quantities as signed integers scaled by the asset's
	// precision in its real checksum payload; callers supplying decimal
	// strings here get a stable, if non-bit-exact, per-level token.
	if s == "" {
		return "0"
	}
	return s
}
