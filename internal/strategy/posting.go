package strategy

import (
	"math"

	"github.com/shopspring/decimal"

	"microstructurex/internal/model"
)

// Posting rests a single GTC limit order inside the spread to capture
// rebate-like price improvement, and posts a replacement once the mid
// price differs from the last posted price by more than RepriceThreshold
// (as a fraction of that price). It implements Repriceable so the
// caller driving the strategy can cancel the previous resting order before
// submitting the new one — Posting itself never emits a cancel.
type Posting struct {
	Base

	SpreadFraction   float64 // 0 = join best, 0.5 = mid, 1 = opposite best
	MaxOrderSize     decimal.Decimal
	HasMaxOrderSize  bool
	RepriceThreshold float64 // fractional mid-to-last-post distance that triggers a reprice

	activeOrderID  string
	hasActiveOrder bool
	lastPostPrice  decimal.Decimal
	hasLastPost    bool
	orderCount     int
}

// NewPosting constructs a posting strategy with no order size cap, so a
// single order carries the full remaining quantity until WithMaxOrderSize
// sets one.
func NewPosting(targetQuantity decimal.Decimal, side model.Side, symbol string, spreadFraction, repriceThreshold float64) *Posting {
	return &Posting{
		Base:             NewBase(targetQuantity, side, symbol),
		SpreadFraction:   spreadFraction,
		RepriceThreshold: repriceThreshold,
	}
}

// WithMaxOrderSize caps each resting order at size, returning the
// strategy for chaining.
func (s *Posting) WithMaxOrderSize(size decimal.Decimal) *Posting {
	s.MaxOrderSize = size
	s.HasMaxOrderSize = true
	return s
}

// PreviousActiveOrderID implements Repriceable: it returns the id of the
// order most recently generated, which the caller must cancel before
// submitting whatever GenerateOrders returns next.
func (s *Posting) PreviousActiveOrderID() (string, bool) {
	return s.activeOrderID, s.hasActiveOrder
}

// GenerateOrders posts a fresh limit order when none is active, or
// reprices the existing one once the mid price is further than
// RepriceThreshold from the last post price (as a fraction of that price).
func (s *Posting) GenerateOrders(snapshot model.Snapshot, elapsedSeconds float64) []*model.Order {
	if s.IsComplete() {
		return nil
	}

	shouldReprice := false
	if s.hasActiveOrder && s.hasLastPost {
		if mid, ok := snapshot.Mid(); ok {
			move := mid.Sub(s.lastPostPrice).Div(s.lastPostPrice)
			moveF, _ := move.Float64()
			if math.Abs(moveF) > s.RepriceThreshold {
				shouldReprice = true
			}
		}
	}

	if s.hasActiveOrder && !shouldReprice {
		return nil
	}

	bestBid, bidOK := snapshot.BestBid()
	bestAsk, askOK := snapshot.BestAsk()
	if !bidOK || !askOK {
		return nil
	}

	spread := bestAsk.Sub(bestBid)
	frac := decimal.NewFromFloat(s.SpreadFraction)

	var targetPrice decimal.Decimal
	if s.Side == model.Buy {
		targetPrice = bestBid.Add(spread.Mul(frac))
	} else {
		targetPrice = bestAsk.Sub(spread.Mul(frac))
	}

	remaining := s.RemainingQuantity()
	orderSize := remaining
	if s.HasMaxOrderSize {
		orderSize = decimalMin(s.MaxOrderSize, remaining)
	}

	s.orderCount++
	id := childOrderID("POST", s.Symbol, s.orderCount)
	order, err := model.NewOrder(id, nowNanos(), s.Side, model.Limit, targetPrice, true, orderSize, "POSTING_STRATEGY", model.GTC)
	if err != nil {
		return nil
	}

	s.activeOrderID = order.ID
	s.hasActiveOrder = true
	s.lastPostPrice = targetPrice
	s.hasLastPost = true
	s.recordChild(&order)

	return []*model.Order{&order}
}
