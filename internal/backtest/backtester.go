// Package backtest scores an execution strategy against synthetic or
// replayed order flow, driving the strategy's child orders into the book
// tick-by-tick and reporting fill/slippage/market statistics. It is
// grounded on the original Backtester/BacktestResults and
// MetricsCalculator, reworked around this module's engine.Book,
// replay.Driver, and strategy.Strategy types.
package backtest

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"microstructurex/internal/engine"
	"microstructurex/internal/generator"
	"microstructurex/internal/model"
	"microstructurex/internal/replay"
	"microstructurex/internal/strategy"
)

// Results mirrors the original BacktestResults dataclass.
type Results struct {
	TargetQuantity   float64
	ExecutedQuantity float64
	FillRate         float64
	VWAP             float64
	HasVWAP          bool

	ArrivalPrice    float64
	HasArrivalPrice bool
	TotalSlippage   float64
	SlippageBps     float64

	NumChildOrders int
	NumFills       int
	ExecutionTime  time.Duration

	MeanSpread         float64
	RealizedVolatility float64
	Metrics            MicrostructureMetrics
}

// Backtester replays a generator's stream into a book tick-by-tick,
// letting a strategy generate child orders on every snapshot.
type Backtester struct {
	book *engine.Book
	log  zerolog.Logger

	snapshots       []model.Snapshot
	strategyTrades  []model.Trade
	arrivalSnapshot model.Snapshot
	hasArrival      bool
}

// NewBacktester constructs a Backtester over book.
func NewBacktester(book *engine.Book) *Backtester {
	return &Backtester{
		book: book,
		log:  log.With().Str("component", "backtest").Str("symbol", book.Symbol).Logger(),
	}
}

// Run replays gen's stream tick-by-tick (its length is the generator's
// configured duration), letting strat generate child orders on every
// snapshot, and returns the scored results once the stream is exhausted.
func (b *Backtester) Run(ctx context.Context, gen *generator.Generator, strat strategy.Strategy, snapshotInterval time.Duration) (Results, error) {
	b.snapshots = nil
	b.strategyTrades = nil
	b.hasArrival = false

	wallStart := time.Now()
	driver := replay.NewDriver(b.book, 0) // tick-by-tick, matching the original's speed_multiplier=0

	driver.OnSnapshot(func(snap model.Snapshot) {
		b.snapshots = append(b.snapshots, snap)
		if !b.hasArrival {
			b.arrivalSnapshot = snap
			b.hasArrival = true
		}

		elapsed := time.Since(wallStart).Seconds()
		b.step(strat, snap, elapsed)
	})

	_, err := driver.Run(ctx, gen, snapshotInterval)
	if err != nil {
		return Results{}, err
	}

	return b.computeResults(strat, time.Since(wallStart)), nil
}

// step lets strat react to one snapshot: a Repriceable strategy's
// previously-active order is cancelled before any newly generated order
// is submitted, so no duplicate resting quantity ever appears on the
// book.
func (b *Backtester) step(strat strategy.Strategy, snap model.Snapshot, elapsed float64) {
	var prevID string
	var hasPrev bool
	if rep, ok := strat.(strategy.Repriceable); ok {
		prevID, hasPrev = rep.PreviousActiveOrderID()
	}

	orders := strat.GenerateOrders(snap, elapsed)
	if len(orders) == 0 {
		return
	}

	if hasPrev {
		b.book.CancelOrder(prevID)
	}

	for _, order := range orders {
		trades, err := b.book.AddOrder(order)
		if err != nil {
			b.log.Warn().Err(err).Str("order_id", order.ID).Msg("child order rejected during backtest")
			continue
		}
		for _, tr := range trades {
			if tr.BuyOrderID == order.ID || tr.SellOrderID == order.ID {
				strat.UpdateExecution(tr.Price, tr.Quantity)
				b.strategyTrades = append(b.strategyTrades, tr)
			}
		}
	}
}

func (b *Backtester) computeResults(strat strategy.Strategy, executionTime time.Duration) Results {
	targetF, _ := strat.Target().Float64()
	executedF, _ := strat.ExecutedQuantity().Float64()

	var fillRate float64
	if targetF > 0 {
		fillRate = executedF / targetF
	}

	var vwap float64
	var hasVWAP bool
	if executedF > 0 {
		var totalCost decimal.Decimal
		for _, t := range b.strategyTrades {
			totalCost = totalCost.Add(t.Price.Mul(t.Quantity))
		}
		totalCostF, _ := totalCost.Float64()
		vwap = totalCostF / executedF
		hasVWAP = true
	}

	var arrivalPrice float64
	var hasArrivalPrice bool
	if b.hasArrival {
		if mid, ok := b.arrivalSnapshot.Mid(); ok {
			arrivalPrice, _ = mid.Float64()
			hasArrivalPrice = true
		}
	}

	var slippage, slippageBps float64
	if hasArrivalPrice && hasVWAP && arrivalPrice != 0 {
		if strat.ExecutionSide() == model.Buy {
			slippage = vwap - arrivalPrice
		} else {
			slippage = arrivalPrice - vwap
		}
		slippageBps = (slippage / arrivalPrice) * 10000
	}

	var metrics MicrostructureMetrics
	if len(b.snapshots) > 10 {
		metrics = ComputeMetrics(b.snapshots, b.book.Trades())
	}

	return Results{
		TargetQuantity:     targetF,
		ExecutedQuantity:   executedF,
		FillRate:           fillRate,
		VWAP:               vwap,
		HasVWAP:            hasVWAP,
		ArrivalPrice:       arrivalPrice,
		HasArrivalPrice:    hasArrivalPrice,
		TotalSlippage:      slippage,
		SlippageBps:        slippageBps,
		NumChildOrders:     len(strat.ChildOrders()),
		NumFills:           len(b.strategyTrades),
		ExecutionTime:      executionTime,
		MeanSpread:         metrics.MeanSpread,
		RealizedVolatility: metrics.RealizedVolatility,
		Metrics:            metrics,
	}
}
