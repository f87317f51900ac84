// Package eventbus routes decoded stream frames from venue WebSocket
// clients to per-subscription handlers, keyed by (venue, tradeId,
// eventKey).
package eventbus

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lilwiggy/ex-act/pkg/venue"
)

// Handler receives a fired event. Handlers must be non-blocking with
// respect to the decode loop — they push to bounded queues only.
type Handler func(event any)

// Bus holds the registered-stream and handler tables described in the
// event dispatch design: registeredStreams maps venue -> tradeId -> set
// of event keys; handlers maps event key -> set of handlers.
type Bus struct {
	mu                sync.RWMutex
	registeredStreams map[venue.Tag]map[string]map[string]struct{}
	handlers          map[string][]entry
}

type entry struct {
	tradeID string
	handler Handler
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{
		registeredStreams: make(map[venue.Tag]map[string]map[string]struct{}),
		handlers:          make(map[string][]entry),
	}
}

// RegisterEvent idempotently registers handler for eventKey, scoped to
// (venueTag, tradeID). Registering the same (key, handler identity via a
// wrapper id) twice yields a handler set of size 1 for that key+tradeId.
func (b *Bus) RegisterEvent(handler Handler, eventKey string, venueTag venue.Tag, tradeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.markStreamLocked(venueTag, tradeID, eventKey)

	for _, e := range b.handlers[eventKey] {
		if e.tradeID == tradeID {
			return // idempotent: already registered for this tradeId
		}
	}
	b.handlers[eventKey] = append(b.handlers[eventKey], entry{tradeID: tradeID, handler: handler})
}

// RegisterUserEvent registers a venue-less, tradeId-less handler for
// account-wide events (executionReport, outboundAccountPosition).
func (b *Bus) RegisterUserEvent(handler Handler, eventKey string) {
	b.RegisterEvent(handler, eventKey, venue.Reference, "")
}

func (b *Bus) markStreamLocked(venueTag venue.Tag, tradeID, eventKey string) {
	byTrade, ok := b.registeredStreams[venueTag]
	if !ok {
		byTrade = make(map[string]map[string]struct{})
		b.registeredStreams[venueTag] = byTrade
	}
	keys, ok := byTrade[tradeID]
	if !ok {
		keys = make(map[string]struct{})
		byTrade[tradeID] = keys
	}
	keys[eventKey] = struct{}{}
}

// Fire invokes every handler registered for eventKey, sequentially. A
// handler panic (e.g. pushing into a closed queue) is recovered and
// logged — late unregistration must not crash the decode loop.
func (b *Bus) Fire(eventKey string, event any) {
	b.mu.RLock()
	entries := append([]entry(nil), b.handlers[eventKey]...)
	b.mu.RUnlock()

	for _, e := range entries {
		b.safeInvoke(e.handler, event)
	}
}

func (b *Bus) safeInvoke(h Handler, event any) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("eventbus: handler panic recovered, dropping event")
		}
	}()
	h(event)
}

// Unregister removes every stream key and handler scoped to tradeID
// under venueTag.
func (b *Bus) Unregister(venueTag venue.Tag, tradeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if byTrade, ok := b.registeredStreams[venueTag]; ok {
		delete(byTrade, tradeID)
	}
	for key, entries := range b.handlers {
		filtered := entries[:0]
		for _, e := range entries {
			if e.tradeID != tradeID {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(b.handlers, key)
		} else {
			b.handlers[key] = filtered
		}
	}
}

// StreamCount returns how many distinct event keys are registered for
// (venueTag, tradeID) — used by StartStream's busy-wait.
func (b *Bus) StreamCount(venueTag venue.Tag, tradeID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	byTrade, ok := b.registeredStreams[venueTag]
	if !ok {
		return 0
	}
	return len(byTrade[tradeID])
}
