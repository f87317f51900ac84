package session

import (
	"time"

	"github.com/lilwiggy/ex-act/pkg/domain"
)

// ActiveOrderEntry tracks one in-flight order so the private WSS decode
// loop and the venue client can reconcile fills without a lock — both
// only ever touch it through the owning ordersActor goroutine.
type ActiveOrderEntry struct {
	OrigQty    domain.Decimal
	ExecQty    domain.Decimal
	FilledTime time.Time
	LastEvent  *domain.ExecutionReport
	Cancelled  bool
}

// ordersActor owns the activeOrders map for one session. It replaces the
// cooperative runtime's implicit serialization: the venue client and the
// private WSS handler both submit closures that run on this one
// goroutine, so no lock is needed even once both run on separate OS
// threads.
type ordersActor struct {
	cmds chan func(map[int64]*ActiveOrderEntry)
	done chan struct{}
}

func newOrdersActor() *ordersActor {
	a := &ordersActor{
		cmds: make(chan func(map[int64]*ActiveOrderEntry), 64),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *ordersActor) run() {
	orders := make(map[int64]*ActiveOrderEntry)
	for {
		select {
		case fn := <-a.cmds:
			fn(orders)
		case <-a.done:
			return
		}
	}
}

// exec submits fn to the owning goroutine and blocks until it completes.
func (a *ordersActor) exec(fn func(map[int64]*ActiveOrderEntry)) {
	reply := make(chan struct{})
	a.cmds <- func(m map[int64]*ActiveOrderEntry) {
		fn(m)
		close(reply)
	}
	<-reply
}

func (a *ordersActor) stop() {
	close(a.done)
}

// Put registers an entry for an order that CreateOrder has just placed.
func (a *ordersActor) Put(orderID int64, e *ActiveOrderEntry) {
	a.exec(func(m map[int64]*ActiveOrderEntry) {
		m[orderID] = e
	})
}

// Get returns a copy of the entry and whether it exists.
func (a *ordersActor) Get(orderID int64) (ActiveOrderEntry, bool) {
	var out ActiveOrderEntry
	var ok bool
	a.exec(func(m map[int64]*ActiveOrderEntry) {
		if e, found := m[orderID]; found {
			out, ok = *e, true
		}
	})
	return out, ok
}

// MarkCancelled sets Cancelled=true for orderID, if present.
func (a *ordersActor) MarkCancelled(orderID int64) {
	a.exec(func(m map[int64]*ActiveOrderEntry) {
		if e, ok := m[orderID]; ok {
			e.Cancelled = true
		}
	})
}

// UpdateFromExecutionReport applies an execution-report event to the
// tracked entry, latching LastEvent when executedQty reaches origQty.
func (a *ordersActor) UpdateFromExecutionReport(report *domain.ExecutionReport) {
	a.exec(func(m map[int64]*ActiveOrderEntry) {
		e, ok := m[report.Order.OrderID]
		if !ok {
			e = &ActiveOrderEntry{OrigQty: report.Order.OrigQty}
			m[report.Order.OrderID] = e
		}
		e.ExecQty = report.Order.ExecQty
		if domain.Cmp(e.ExecQty, e.OrigQty) >= 0 {
			e.LastEvent = report
		}
	})
}

// Clear runs spec's activeOrdersClear: entries no longer present in
// openIDs receive FilledTime = now + 30m (a grace window absorbing late
// WSS frames); entries whose FilledTime has passed are garbage
// collected.
func (a *ordersActor) Clear(openIDs map[int64]struct{}, now time.Time) {
	a.exec(func(m map[int64]*ActiveOrderEntry) {
		for id, e := range m {
			if _, open := openIDs[id]; !open {
				if e.FilledTime.IsZero() {
					e.FilledTime = now.Add(30 * time.Minute)
				}
			}
			if !e.FilledTime.IsZero() && now.After(e.FilledTime) {
				delete(m, id)
			}
		}
	})
}
