package strategy

import (
	"sort"

	"github.com/shopspring/decimal"

	"microstructurex/internal/model"
)

// ProfilePoint is one (time percentage, volume percentage) anchor of a
// VWAP volume profile: VolPct of total target quantity is expected to
// trade between this anchor's TimePct and the next anchor's, spread
// linearly over that interval. The last anchor's VolPct is not used.
type ProfilePoint struct {
	TimePct float64
	VolPct  float64
}

// defaultVolumeProfile is the original strategy's U-shaped intraday
// profile: heavier participation in the first and last tenths of the
// window, lightest at the midpoint.
var defaultVolumeProfile = []ProfilePoint{
	{0.0, 0.15},
	{0.1, 0.15},
	{0.2, 0.10},
	{0.3, 0.08},
	{0.4, 0.07},
	{0.5, 0.06},
	{0.6, 0.07},
	{0.7, 0.08},
	{0.8, 0.10},
	{0.9, 0.14},
	{1.0, 0.00},
}

// VWAP schedules child orders so cumulative executed quantity tracks a
// volume profile over Duration seconds, checking every CheckInterval
// seconds and sending one IOC slice to cover any shortfall.
type VWAP struct {
	Base

	Duration      float64
	Aggression    float64
	CheckInterval float64
	MinimumLot    decimal.Decimal
	Profile       []ProfilePoint

	startTime        *float64
	lastCheck        float64
	orderCount       int
}

// NewVWAP constructs a VWAP strategy. A nil profile uses the default
// U-shape; a supplied profile is copied and sorted by TimePct ascending,
// and must span [0,1].
func NewVWAP(targetQuantity decimal.Decimal, side model.Side, symbol string, duration float64, profile []ProfilePoint, aggression float64) *VWAP {
	p := profile
	if p == nil {
		p = defaultVolumeProfile
	} else {
		sorted := make([]ProfilePoint, len(p))
		copy(sorted, p)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimePct < sorted[j].TimePct })
		p = sorted
	}
	return &VWAP{
		Base:          NewBase(targetQuantity, side, symbol),
		Duration:      duration,
		Aggression:    aggression,
		CheckInterval: 5.0,
		MinimumLot:    minimumLotDefault,
		Profile:       p,
	}
}

// targetVolumeAtTime interpolates the profile to find the cumulative
// quantity (target quantity times the profile's cumulative fraction) that
// should have traded by timePct (0..1),
// the same piecewise-linear walk as the original's
// _get_target_volume_at_time.
func (s *VWAP) targetVolumeAtTime(timePct float64) decimal.Decimal {
	cumulative := 0.0
	for i := 0; i < len(s.Profile)-1; i++ {
		t1, t2 := s.Profile[i].TimePct, s.Profile[i+1].TimePct
		switch {
		case timePct >= t2:
			cumulative += s.Profile[i].VolPct
		case timePct >= t1:
			intervalPct := (timePct - t1) / (t2 - t1)
			cumulative += s.Profile[i].VolPct * intervalPct
			goto done
		default:
			goto done
		}
	}
done:
	return s.TargetQuantity.Mul(decimal.NewFromFloat(cumulative))
}

// GenerateOrders checks whether executed quantity has fallen behind the
// volume profile's schedule and, if so, emits one slice to close the gap.
func (s *VWAP) GenerateOrders(snapshot model.Snapshot, elapsedSeconds float64) []*model.Order {
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

	timePct := relative / s.Duration
	if timePct > 1.0 {
		timePct = 1.0
	}
	targetCumulative := s.targetVolumeAtTime(timePct)
	shortfall := targetCumulative.Sub(s.ExecutedQuantity())
	if !shortfall.IsPositive() {
		s.lastCheck = relative
		return nil
	}

	sliceQty := decimalMin(shortfall, s.RemainingQuantity())
	if sliceQty.LessThan(s.MinimumLot) {
		return nil
	}

	s.orderCount++
	id := childOrderID("VWAP", s.Symbol, s.orderCount)
	price, hasPrice, typ := quoteAt(s.Side, s.Aggression, snapshot)

	order, err := model.NewOrder(id, nowNanos(), s.Side, typ, price, hasPrice, sliceQty, "VWAP_STRATEGY", model.IOC)
	if err != nil {
		return nil
	}

	s.recordChild(&order)
	s.lastCheck = relative

	return []*model.Order{&order}
}
