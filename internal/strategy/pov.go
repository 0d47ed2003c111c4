package strategy

import (
	"github.com/shopspring/decimal"

	"microstructurex/internal/model"
)

// POV (percentage of volume) targets a fixed participation rate relative
// to market volume traded since the last check, rather than a fixed time
// schedule.
type POV struct {
	Base

	TargetParticipation float64 // fraction of market volume delta to take, e.g. 0.1
	Duration            float64
	Aggression          float64
	CheckInterval       float64
	MinimumLot          decimal.Decimal

	startTime       *float64
	lastCheck       float64
	lastMarketVol   decimal.Decimal
	orderCount      int
}

// NewPOV constructs a POV strategy with the original's default 5-second
// check interval and 0.01 minimum lot.
func NewPOV(targetQuantity decimal.Decimal, side model.Side, symbol string, targetParticipation, duration, aggression float64) *POV {
	return &POV{
		Base:                NewBase(targetQuantity, side, symbol),
		TargetParticipation: targetParticipation,
		Duration:            duration,
		Aggression:          aggression,
		CheckInterval:       5.0,
		MinimumLot:          minimumLotDefault,
		lastMarketVol:       decimal.Zero,
	}
}

// estimateMarketVolume sums the top five levels on each side of the book
// as a stand-in for traded market volume, matching the original's
// simplified depth-based fallback when no external volume series feeds
// the strategy.
func estimateMarketVolume(snapshot model.Snapshot) decimal.Decimal {
	total := decimal.Zero
	for i, lvl := range snapshot.Bids {
		if i >= 5 {
			break
		}
		total = total.Add(lvl.Qty)
	}
	for i, lvl := range snapshot.Asks {
		if i >= 5 {
			break
		}
		total = total.Add(lvl.Qty)
	}
	return total
}

// GenerateOrders is the Strategy-interface entry point; it estimates
// market volume from book depth. Callers that track an actual traded
// volume series should use GenerateOrdersWithMarketVolume instead.
func (s *POV) GenerateOrders(snapshot model.Snapshot, elapsedSeconds float64) []*model.Order {
	return s.GenerateOrdersWithMarketVolume(snapshot, elapsedSeconds, estimateMarketVolume(snapshot))
}

// GenerateOrdersWithMarketVolume checks participation against an
// explicitly supplied cumulative market volume figure (e.g. tracked by a
// backtester from actual trade prints) instead of the depth-based
// estimate.
func (s *POV) GenerateOrdersWithMarketVolume(snapshot model.Snapshot, elapsedSeconds float64, currentMarketVolume decimal.Decimal) []*model.Order {
	if s.startTime == nil {
		t := elapsedSeconds
		s.startTime = &t
	}
	relative := elapsedSeconds - *s.startTime

	if relative < s.lastCheck+s.CheckInterval {
		return nil
	}
	if s.IsComplete() || relative >= s.Duration {
		return nil
	}

	volumeDelta := currentMarketVolume.Sub(s.lastMarketVol)
	s.lastMarketVol = currentMarketVolume

	if !volumeDelta.IsPositive() {
		s.lastCheck = relative
		return nil
	}

	targetSlice := volumeDelta.Mul(decimal.NewFromFloat(s.TargetParticipation))
	sliceQty := decimalMin(targetSlice, s.RemainingQuantity())
	if sliceQty.LessThan(s.MinimumLot) {
		s.lastCheck = relative
		return nil
	}

	s.orderCount++
	id := childOrderID("POV", s.Symbol, s.orderCount)
	price, hasPrice, typ := quoteAt(s.Side, s.Aggression, snapshot)

	order, err := model.NewOrder(id, nowNanos(), s.Side, typ, price, hasPrice, sliceQty, "POV_STRATEGY", model.IOC)
	if err != nil {
		return nil
	}

	s.recordChild(&order)
	s.lastCheck = relative

	return []*model.Order{&order}
}
