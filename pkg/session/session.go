// Package session implements the session registry and RPC façade
// backing store: one Session per (account, venue) connection, tracking
// symbols, rate limits, active orders, and stream subscriptions.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lilwiggy/ex-act/internal/metrics"
	"github.com/lilwiggy/ex-act/pkg/domain"
	"github.com/lilwiggy/ex-act/pkg/errors"
	"github.com/lilwiggy/ex-act/pkg/eventbus"
	"github.com/lilwiggy/ex-act/pkg/venue"
)

// HEARTBEAT is the coarse poll interval for shutdown quiescence checks.
const HEARTBEAT = 1 * time.Second

// STATUS_TIMEOUT is the polling budget for post-create/post-cancel
// confirmation loops.
const STATUS_TIMEOUT = 5 * time.Second

// Session is a single authenticated connection to one venue for one
// account. It owns the symbol table, active-orders actor, per-tradeId
// subscription sets, and the event bus feeding server-streaming RPCs.
type Session struct {
	ID          string
	AccountName string
	VenueTag    venue.Tag
	SubAccount  string
	Adapter     venue.Adapter

	mu               sync.RWMutex
	loaded           bool
	symbols          map[string]*domain.SymbolInfo
	highestPrecision int

	orders *ordersActor

	bus *eventbus.Bus

	streamsMu    sync.Mutex
	streamQueues map[string]map[*Subscription]struct{} // tradeId -> subscriptions
	dataStreams  map[string]map[string]struct{}        // tradeId -> stream ids

	wssMu     sync.Mutex
	wssBuffer map[int64][]any // orderId -> buffered raw trade frames

	rateLimitReachedAt atomic.Int64
	rateLimiterWeight  atomic.Int32
}

// New creates a Session; it does not call Load — callers invoke Load
// once on first open per account.
func New(id, accountName string, tag venue.Tag, adapter venue.Adapter) *Session {
	return &Session{
		ID:           id,
		AccountName:  accountName,
		VenueTag:     tag,
		Adapter:      adapter,
		symbols:      make(map[string]*domain.SymbolInfo),
		orders:       newOrdersActor(),
		bus:          eventbus.New(),
		streamQueues: make(map[string]map[*Subscription]struct{}),
		dataStreams:  make(map[string]map[string]struct{}),
		wssBuffer:    make(map[int64][]any),
	}
}

// Load fetches exchangeInfo and populates the symbol table and computed
// precision. Fails fatally if venue info cannot be obtained.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	if err := s.Adapter.Load(ctx); err != nil {
		return errors.NewExchangeError(string(s.VenueTag), "load", "failed to load exchange info", err)
	}
	s.loaded = true
	log.Info().Str("session", s.ID).Str("venue", string(s.VenueTag)).Msg("session loaded")
	return nil
}

// IsLoaded reports whether Load has completed.
func (s *Session) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Bus returns the session's event bus.
func (s *Session) Bus() *eventbus.Bus { return s.bus }

// Orders exposes the active-orders actor; pkg/gateway records placed
// orders in it after CreateOrder returns and reconciles fills and cancels.
func (s *Session) Orders() *ordersActor { return s.orders }

// BufferTradeFrame stashes a raw WSS trade frame that arrived before its
// parent order was known (race at placement), keyed by orderId.
func (s *Session) BufferTradeFrame(orderID int64, frame any) {
	s.wssMu.Lock()
	defer s.wssMu.Unlock()
	s.wssBuffer[orderID] = append(s.wssBuffer[orderID], frame)
}

// DrainTradeFrames returns and clears every buffered frame for orderID.
func (s *Session) DrainTradeFrames(orderID int64) []any {
	s.wssMu.Lock()
	defer s.wssMu.Unlock()
	frames := s.wssBuffer[orderID]
	delete(s.wssBuffer, orderID)
	return frames
}

// RegisterStream adds eventKey to tradeId's registered stream set and
// returns a Subscription with the given queue capacity.
func (s *Session) RegisterStream(tradeID, eventKey string, capacity int) *Subscription {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()

	sub := NewSubscription(tradeID, eventKey, capacity)
	if s.streamQueues[tradeID] == nil {
		s.streamQueues[tradeID] = make(map[*Subscription]struct{})
	}
	s.streamQueues[tradeID][sub] = struct{}{}

	if s.dataStreams[tradeID] == nil {
		s.dataStreams[tradeID] = make(map[string]struct{})
	}
	s.dataStreams[tradeID][eventKey] = struct{}{}

	s.bus.RegisterEvent(func(event any) {
		if !sub.Put(event) {
			log.Error().Str("tradeId", tradeID).Str("eventKey", eventKey).
				Msg("subscription queue overflow, tearing down tradeId")
			go s.StopTradeID(tradeID)
		}
	}, eventKey, s.VenueTag, tradeID)

	return sub
}

// MarketStreamCount returns the number of registered market streams for
// tradeID, used by StartStream's busy-wait.
func (s *Session) MarketStreamCount(tradeID string) int {
	return s.bus.StreamCount(s.VenueTag, tradeID)
}

// StopTradeID tears down every subscription, handler, and listener
// belonging to tradeID: it pushes the stop sentinel into every queue,
// unregisters the bus entries, and stops the adapter's listeners for
// this tradeId. Called both on explicit StopStream and on queue
// overflow (back-pressure by disconnect).
func (s *Session) StopTradeID(tradeID string) {
	s.streamsMu.Lock()
	subs := s.streamQueues[tradeID]
	delete(s.streamQueues, tradeID)
	delete(s.dataStreams, tradeID)
	s.streamsMu.Unlock()

	for sub := range subs {
		sub.Stop()
	}

	s.bus.Unregister(s.VenueTag, tradeID)

	if err := s.Adapter.StopEventsListener(tradeID); err != nil {
		log.Warn().Err(err).Str("tradeId", tradeID).Msg("error stopping venue listeners")
	}
}

// QueueEmpty reports whether every subscription queue for tradeID has
// been drained, used by StopStream's wait-until-empty step.
func (s *Session) QueueEmpty(tradeID string) bool {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	for sub := range s.streamQueues[tradeID] {
		if len(sub.Queue) > 0 {
			return false
		}
	}
	return true
}

// ActiveOrdersClear runs the garbage-collection sweep described in the
// venue client design: entries missing from openIDs get a 30-minute
// grace window before being dropped.
func (s *Session) ActiveOrdersClear(openIDs []int64) {
	set := make(map[int64]struct{}, len(openIDs))
	for _, id := range openIDs {
		set[id] = struct{}{}
	}
	s.orders.Clear(set, time.Now())
}

// MarkRateLimited records that this session just hit a rate limit, for
// ResetRateLimit's 30-second minimum latch.
func (s *Session) MarkRateLimited() {
	s.rateLimitReachedAt.Store(time.Now().UnixMilli())
	metrics.RateLimitLatched.WithLabelValues(s.ID).Set(1)
}

// ResetRateLimit clears the rate-limit latch if at least 30 seconds have
// elapsed since it was set; returns whether the reset succeeded.
func (s *Session) ResetRateLimit() bool {
	at := s.rateLimitReachedAt.Load()
	if at == 0 {
		return true
	}
	if time.Since(time.UnixMilli(at)) < 30*time.Second {
		return false
	}
	s.rateLimitReachedAt.Store(0)
	metrics.RateLimitLatched.WithLabelValues(s.ID).Set(0)
	return true
}

// SetRateLimiterWeight records the caller-declared rate-limiter budget
// from OpenClientConnection/ResetRateLimit, echoed back by reads that
// report a RateLimiter value.
func (s *Session) SetRateLimiterWeight(weight int32) {
	s.rateLimiterWeight.Store(weight)
}

// RateLimiterWeight returns the last weight recorded by SetRateLimiterWeight.
func (s *Session) RateLimiterWeight() int32 {
	return s.rateLimiterWeight.Load()
}

// Close releases the session's adapter and background actor.
func (s *Session) Close() error {
	s.orders.stop()
	return s.Adapter.Close()
}
