package strategy

import (
	"github.com/shopspring/decimal"

	"microstructurex/internal/model"
)

// TWAP splits the parent order into NumSlices equal child orders spaced
// Duration/NumSlices seconds apart, each sent as IOC so an unfilled slice
// never lingers on the book.
type TWAP struct {
	Base

	Duration    float64
	NumSlices   int
	Aggression  float64 // 0 = passive limit, 1 = aggressive market
	sliceQty    decimal.Decimal
	sliceGap    float64
	startTime   *float64
	nextSlice   float64
	slicesSent  int
	orderCount  int
}

// NewTWAP constructs a TWAP strategy. aggression above 0.8 sends market
// orders; otherwise each slice prices inside the spread proportionally to
// aggression.
func NewTWAP(targetQuantity decimal.Decimal, side model.Side, symbol string, duration float64, numSlices int, aggression float64) *TWAP {
	if numSlices <= 0 {
		numSlices = 1
	}
	return &TWAP{
		Base:       NewBase(targetQuantity, side, symbol),
		Duration:   duration,
		NumSlices:  numSlices,
		Aggression: aggression,
		sliceQty:   targetQuantity.Div(decimal.NewFromInt(int64(numSlices))),
		sliceGap:   duration / float64(numSlices),
	}
}

// GenerateOrders emits the next equal-sized slice once its scheduled time
// has arrived, or nothing if ahead of schedule, exhausted, or complete.
func (s *TWAP) GenerateOrders(snapshot model.Snapshot, elapsedSeconds float64) []*model.Order {
	if s.startTime == nil {
		t := elapsedSeconds
		s.startTime = &t
	}
	relative := elapsedSeconds - *s.startTime

	if relative < s.nextSlice || s.slicesSent >= s.NumSlices {
		return nil
	}
	if s.IsComplete() {
		return nil
	}

	s.orderCount++
	id := childOrderID("TWAP", s.Symbol, s.orderCount)

	price, hasPrice, typ := quoteAt(s.Side, s.Aggression, snapshot)

	sliceQty := decimalMin(s.sliceQty, s.RemainingQuantity())
	order, err := model.NewOrder(id, nowNanos(), s.Side, typ, price, hasPrice, sliceQty, "TWAP_STRATEGY", model.IOC)
	if err != nil {
		return nil
	}

	s.recordChild(&order)
	s.slicesSent++
	s.nextSlice += s.sliceGap

	return []*model.Order{&order}
}
