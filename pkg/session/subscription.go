package session

// Subscription is a bounded delivery queue for one (tradeId, eventKey)
// pair. Producers never block: Put does a non-blocking send and reports
// overflow so the caller can tear down the owning tradeId.
type Subscription struct {
	TradeID      string
	EventKey     string
	StopSentinel string
	Queue        chan any
}

// NewSubscription allocates a subscription with the given queue capacity
// (50 for most streams, 500 for order book per the façade design).
func NewSubscription(tradeID, eventKey string, capacity int) *Subscription {
	return &Subscription{
		TradeID:      tradeID,
		EventKey:     eventKey,
		StopSentinel: tradeID,
		Queue:        make(chan any, capacity),
	}
}

// Put performs a non-blocking send. It returns false on overflow, which
// the caller must treat as fatal for this tradeId's streams.
func (s *Subscription) Put(event any) bool {
	select {
	case s.Queue <- event:
		return true
	default:
		return false
	}
}

// Stop pushes the stop sentinel into the queue so a blocked consumer
// drains it and observes the end of stream.
func (s *Subscription) Stop() {
	select {
	case s.Queue <- s.StopSentinel:
	default:
		// Queue is already full or closed; the consumer will see the
		// teardown via context cancellation instead.
	}
}
