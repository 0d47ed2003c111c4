package backtest

import (
	"math"
	"sort"

	"microstructurex/internal/model"
)

// MicrostructureMetrics summarizes book behavior over a run: spread,
// depth, order-flow imbalance, trade, and return statistics. Mean/median/
// stddev are computed directly on plain float64 slices rather than
// through a numerics library, since none is in play here.
type MicrostructureMetrics struct {
	MeanSpread      float64
	MedianSpread    float64
	SpreadVolatility float64

	MeanDepthBid   float64
	MeanDepthAsk   float64
	DepthImbalance float64

	OrderFlowImbalance float64
	BuyVolume          float64
	SellVolume         float64

	NumTrades   int
	TotalVolume float64
	VWAP        float64
	HasVWAP     bool

	ReturnsMean        float64
	ReturnsStd         float64
	RealizedVolatility float64
}

// ComputeMetrics derives a MicrostructureMetrics from a run's recorded
// snapshots and trades.
func ComputeMetrics(snapshots []model.Snapshot, trades []model.Trade) MicrostructureMetrics {
	var m MicrostructureMetrics

	spreads := make([]float64, 0, len(snapshots))
	for _, s := range snapshots {
		if spread, ok := s.Spread(); ok {
			f, _ := spread.Float64()
			spreads = append(spreads, f)
		}
	}
	m.MeanSpread = mean(spreads)
	m.MedianSpread = median(spreads)
	m.SpreadVolatility = stddev(spreads)

	var bidDepths, askDepths []float64
	var ofis []float64
	for _, s := range snapshots {
		if len(s.Bids) > 0 {
			bidDepths = append(bidDepths, topDepth(s.Bids))
		}
		if len(s.Asks) > 0 {
			askDepths = append(askDepths, topDepth(s.Asks))
		}
		if len(s.Bids) > 0 && len(s.Asks) > 0 {
			bidVol, _ := s.Bids[0].Qty.Float64()
			askVol, _ := s.Asks[0].Qty.Float64()
			total := bidVol + askVol
			if total > 0 {
				ofis = append(ofis, (bidVol-askVol)/total)
			}
		}
	}
	m.MeanDepthBid = mean(bidDepths)
	m.MeanDepthAsk = mean(askDepths)
	totalDepth := m.MeanDepthBid + m.MeanDepthAsk
	if totalDepth > 0 {
		m.DepthImbalance = (m.MeanDepthBid - m.MeanDepthAsk) / totalDepth
	}
	m.OrderFlowImbalance = mean(ofis)

	var buyVol, sellVol, totalVol, totalCost float64
	for _, t := range trades {
		qty, _ := t.Quantity.Float64()
		price, _ := t.Price.Float64()
		totalVol += qty
		totalCost += price * qty
		if t.AggressorSide == model.Buy {
			buyVol += qty
		} else {
			sellVol += qty
		}
	}
	m.BuyVolume = buyVol
	m.SellVolume = sellVol
	m.NumTrades = len(trades)
	m.TotalVolume = totalVol
	if len(trades) > 0 && totalVol > 0 {
		m.VWAP = totalCost / totalVol
		m.HasVWAP = true
	}

	midPrices := make([]float64, 0, len(snapshots))
	for _, s := range snapshots {
		if mid, ok := s.Mid(); ok {
			f, _ := mid.Float64()
			midPrices = append(midPrices, f)
		}
	}
	if len(midPrices) > 1 {
		returns := logReturns(midPrices)
		m.ReturnsMean = mean(returns)
		m.ReturnsStd = stddev(returns)
		m.RealizedVolatility = m.ReturnsStd * math.Sqrt(float64(len(returns)))
	}

	return m
}

func topDepth(levels []model.Level) float64 {
	total := 0.0
	for i, lvl := range levels {
		if i >= 5 {
			break
		}
		f, _ := lvl.Qty.Float64()
		total += f
	}
	return total
}

func logReturns(prices []float64) []float64 {
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			continue
		}
		out = append(out, math.Log(prices[i])-math.Log(prices[i-1]))
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stddev is the population standard deviation (ddof=0).
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
