package engine

import (
	"container/list"

	"github.com/shopspring/decimal"

	"microstructurex/internal/model"
)

// PriceLevel is the FIFO queue of resting orders at a single price on a
// single side, plus a cached sum of their remaining quantities. It is the
// unit stored in the book's two-sided price index (see orderbook.go).
//
// The queue is a container/list.List of *model.Order so that removing an
// arbitrary order (on cancel) is O(1) given the *list.Element handle kept
// in the book's order-id index — no scan of the level is required. This
// mirrors the intrusive prev/next design in ejyy-femto_go's PriceLevel,
// expressed with the standard library's doubly linked list instead of a
// hand-rolled index-based one.
type PriceLevel struct {
	Price     decimal.Decimal
	orders    *list.List
	aggregate decimal.Decimal
}

// newPriceLevel constructs an empty level at price.
func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		Price:     price,
		orders:    list.New(),
		aggregate: decimal.Zero,
	}
}

// searchKey builds a zero-queue PriceLevel carrying only a price, suitable
// for btree lookups whose comparator only inspects Price.
func searchKey(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{Price: price}
}

// append pushes order onto the back of the FIFO queue (least time priority)
// and returns the list element so the caller can store it for O(1) removal.
func (l *PriceLevel) append(o *model.Order) *list.Element {
	e := l.orders.PushBack(o)
	l.aggregate = l.aggregate.Add(o.Remaining)
	return e
}

// remove excises order at element e from the queue in O(1).
func (l *PriceLevel) remove(e *list.Element) {
	o := e.Value.(*model.Order)
	l.orders.Remove(e)
	l.aggregate = l.aggregate.Sub(o.Remaining)
}

// front returns the oldest (highest time priority) order on the level, or
// nil if the level is empty.
func (l *PriceLevel) front() *list.Element {
	return l.orders.Front()
}

// isEmpty reports whether the level currently holds no orders.
func (l *PriceLevel) isEmpty() bool {
	return l.orders.Len() == 0
}

// Aggregate returns the cached sum of remaining quantities on the level.
func (l *PriceLevel) Aggregate() decimal.Decimal {
	return l.aggregate
}

// adjustAggregate adjusts the cached aggregate directly when an order's
// remaining quantity changes in place (a partial fill or a quantity-only
// modify) without removing it from the queue.
func (l *PriceLevel) adjustAggregate(delta decimal.Decimal) {
	l.aggregate = l.aggregate.Add(delta)
}

// Orders returns the resting orders in FIFO order, oldest first. Callers
// must treat the result as read-only; it is used by tests that assert on
// queue contents (snapshots read Aggregate instead).
func (l *PriceLevel) Orders() []*model.Order {
	out := make([]*model.Order, 0, l.orders.Len())
	for e := l.orders.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*model.Order))
	}
	return out
}
