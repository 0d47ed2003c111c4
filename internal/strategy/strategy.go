// Package strategy implements execution strategies that slice a parent
// order into child orders over time: TWAP, VWAP, POV, and a passive
// posting strategy, expressed as Go interfaces and value types using
// decimal.Decimal throughout.
package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"microstructurex/internal/model"
)

// Strategy is the common surface every execution strategy satisfies. It
// mirrors the original ExecutionStrategy abstract base: GenerateOrders is
// the abstract hook, the rest are derived observables.
type Strategy interface {
	// GenerateOrders inspects the current book snapshot and an elapsed-time
	// reading in seconds, and returns zero or more child orders to submit.
	// Strategies measure their schedule from the reading seen on their
	// first call.
	GenerateOrders(snapshot model.Snapshot, elapsedSeconds float64) []*model.Order

	// UpdateExecution records a fill against the parent order's progress.
	UpdateExecution(fillPrice, fillQuantity decimal.Decimal)

	IsComplete() bool
	AveragePrice() (decimal.Decimal, bool)
	RemainingQuantity() decimal.Decimal
	ExecutedQuantity() decimal.Decimal
	ChildOrders() []*model.Order

	// Target and ExecutionSide expose the parent order's static parameters,
	// needed by callers (the backtester) that only hold a Strategy and must
	// report on it without knowing the concrete strategy type.
	Target() decimal.Decimal
	ExecutionSide() model.Side
}

// Repriceable is implemented by strategies (currently only Posting) that
// keep a single resting order alive and replace it in place rather than
// layering new child orders. The backtester uses this to cancel the
// previous order before submitting a reprice, so no duplicate quantity
// ever rests simultaneously.
type Repriceable interface {
	// PreviousActiveOrderID returns the id of the most recently generated
	// order, if any: the order that should be cancelled before whatever the
	// next GenerateOrders call returns is submitted.
	PreviousActiveOrderID() (string, bool)
}

// Base implements the bookkeeping every strategy shares: executed
// quantity, realized cost, and the child-order log. Concrete strategies
// embed Base and implement GenerateOrders.
type Base struct {
	TargetQuantity decimal.Decimal
	Side           model.Side
	Symbol         string

	executedQuantity decimal.Decimal
	totalCost        decimal.Decimal
	childOrders      []*model.Order
}

// NewBase constructs the shared strategy bookkeeping.
func NewBase(targetQuantity decimal.Decimal, side model.Side, symbol string) Base {
	return Base{
		TargetQuantity:   targetQuantity,
		Side:             side,
		Symbol:           symbol,
		executedQuantity: decimal.Zero,
		totalCost:        decimal.Zero,
	}
}

// UpdateExecution folds a fill into executed quantity and cumulative cost.
func (b *Base) UpdateExecution(fillPrice, fillQuantity decimal.Decimal) {
	b.executedQuantity = b.executedQuantity.Add(fillQuantity)
	b.totalCost = b.totalCost.Add(fillPrice.Mul(fillQuantity))
}

// IsComplete reports whether the target quantity has been fully executed.
func (b *Base) IsComplete() bool {
	return b.executedQuantity.GreaterThanOrEqual(b.TargetQuantity)
}

// AveragePrice returns the volume-weighted average fill price, if any
// quantity has executed yet.
func (b *Base) AveragePrice() (decimal.Decimal, bool) {
	if b.executedQuantity.IsPositive() {
		return b.totalCost.Div(b.executedQuantity), true
	}
	return decimal.Zero, false
}

// RemainingQuantity is TargetQuantity minus ExecutedQuantity.
func (b *Base) RemainingQuantity() decimal.Decimal {
	return b.TargetQuantity.Sub(b.executedQuantity)
}

// ExecutedQuantity returns cumulative filled quantity.
func (b *Base) ExecutedQuantity() decimal.Decimal {
	return b.executedQuantity
}

// ChildOrders returns every order generated so far, oldest first.
func (b *Base) ChildOrders() []*model.Order {
	return b.childOrders
}

// Target returns the parent order's total target quantity.
func (b *Base) Target() decimal.Decimal { return b.TargetQuantity }

// ExecutionSide returns the parent order's side.
func (b *Base) ExecutionSide() model.Side { return b.Side }

func (b *Base) recordChild(o *model.Order) {
	b.childOrders = append(b.childOrders, o)
}

var minimumLotDefault = decimal.NewFromFloat(0.01)

func decimalMin(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// quoteAt derives a child order's type and (for limit orders) price from
// an aggression level, matching every strategy's shared logic: above 0.8
// aggression submits a market order; otherwise a limit order is placed a
// fraction of the way across the spread. A snapshot with either side empty
// has no mid, so such a snapshot gets a limit price of a fixed 100.
func quoteAt(side model.Side, aggression float64, snapshot model.Snapshot) (price decimal.Decimal, hasPrice bool, typ model.Type) {
	if aggression > 0.8 {
		return decimal.Zero, false, model.Market
	}

	bestBid, bidOK := snapshot.BestBid()
	bestAsk, askOK := snapshot.BestAsk()
	frac := decimal.NewFromFloat(aggression)

	if bidOK && askOK {
		spread := bestAsk.Sub(bestBid)
		if side == model.Buy {
			price = bestBid.Add(spread.Mul(frac))
		} else {
			price = bestAsk.Sub(spread.Mul(frac))
		}
		return price, true, model.Limit
	}

	if mid, ok := snapshot.Mid(); ok {
		return mid, true, model.Limit
	}
	return decimal.NewFromInt(100), true, model.Limit
}

func nowNanos() int64 {
	return time.Now().UnixNano()
}

func childOrderID(prefix, symbol string, counter int) string {
	return fmt.Sprintf("%s_%s_%d", prefix, symbol, counter)
}
