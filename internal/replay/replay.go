// Package replay drives a generator.Generator's event stream into an
// engine.Book, in one of three timing modes (tick-by-tick, real-time,
// accelerated/decelerated), and notifies registered listeners as orders,
// trades, and periodic snapshots occur. A *tomb.Tomb carries the stop
// signal instead of a bare done channel, the same way internal/server.go
// and internal/worker.go stop their worker pool.
package replay

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/shopspring/decimal"

	"microstructurex/internal/engine"
	"microstructurex/internal/generator"
	"microstructurex/internal/model"
)

// OrderListener is invoked whenever a new-order event is processed, with
// the resulting trades (nil/empty if the order rested or was rejected).
type OrderListener func(order *model.Order, trades []model.Trade)

// TradeListener is invoked once per trade produced by the book.
type TradeListener func(trade model.Trade)

// SnapshotListener is invoked on each periodic snapshot emission.
type SnapshotListener func(snap model.Snapshot)

// Summary reports end-of-run counters, mirroring the dict the original
// replay_synthetic returned.
type Summary struct {
	OrdersProcessed  int
	CancelsProcessed int
	TotalTrades      int
	TotalVolume      decimal.Decimal
	FinalMid         decimal.Decimal
	HasFinalMid      bool
	FinalSpread      decimal.Decimal
	HasFinalSpread   bool
}

// Driver replays a single generator stream into a single book. Speed
// selects the timing mode:
//
//	Speed == 0:  tick-by-tick — events are applied back-to-back with no
//	             wall-clock delay, as fast as the book can process them.
//	Speed == 1:  real-time — an event timestamped T nanoseconds after the
//	             stream's start is applied T nanoseconds after Run began.
//	Speed  > 0, != 1: accelerated (Speed > 1) or decelerated (0 < Speed < 1)
//	             relative to real-time.
type Driver struct {
	book  *engine.Book
	speed float64

	orderListeners    []OrderListener
	tradeListeners    []TradeListener
	snapshotListeners []SnapshotListener

	t   *tomb.Tomb
	log zerolog.Logger
}

// NewDriver constructs a Driver over book, with the given speed multiplier.
func NewDriver(book *engine.Book, speed float64) *Driver {
	return &Driver{
		book:  book,
		speed: speed,
		log:   log.With().Str("component", "replay").Str("symbol", book.Symbol).Logger(),
	}
}

// OnOrder registers a callback fired for every processed new-order event.
func (d *Driver) OnOrder(l OrderListener) { d.orderListeners = append(d.orderListeners, l) }

// OnTrade registers a callback fired for every trade produced.
func (d *Driver) OnTrade(l TradeListener) { d.tradeListeners = append(d.tradeListeners, l) }

// OnSnapshot registers a callback fired on each periodic snapshot.
func (d *Driver) OnSnapshot(l SnapshotListener) {
	d.snapshotListeners = append(d.snapshotListeners, l)
}

// Stop requests cooperative shutdown. Run returns as soon as the
// in-progress wait (if any) is interrupted; it is safe to call Stop from a
// different goroutine than the one running Run.
func (d *Driver) Stop() {
	if d.t != nil {
		d.t.Kill(nil)
	}
}

// Run replays gen's stream into the book until the stream is exhausted or
// Stop is called, emitting a snapshot at most once per snapshotInterval of
// simulated time. It blocks until the replay finishes.
func (d *Driver) Run(ctx context.Context, gen *generator.Generator, snapshotInterval time.Duration) (Summary, error) {
	t, ctx := tomb.WithContext(ctx)
	d.t = t

	var summary Summary
	t.Go(func() error {
		summary = d.loop(gen, snapshotInterval)
		return nil
	})

	err := t.Wait()
	return summary, err
}

func (d *Driver) loop(gen *generator.Generator, snapshotInterval time.Duration) Summary {
	var summary Summary
	wallStart := time.Now()
	var lastSnapshotElapsed time.Duration

	for {
		select {
		case <-d.t.Dying():
			d.log.Info().Msg("replay stopped before stream exhausted")
			return d.finalize(summary)
		default:
		}

		evt, ok := gen.Next()
		if !ok {
			break
		}

		if d.speed > 0 {
			eventElapsed := time.Duration(evt.Timestamp)
			wallElapsed := time.Since(wallStart)
			wait := time.Duration(float64(eventElapsed-wallElapsed) / d.speed)
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-d.t.Dying():
					return d.finalize(summary)
				}
			}
		}

		switch evt.Kind {
		case generator.NewOrderEvent:
			trades, err := d.book.AddOrder(evt.Order)
			if err != nil {
				d.log.Warn().Err(err).Str("order_id", evt.Order.ID).Msg("order rejected during replay")
			}
			summary.OrdersProcessed++
			for _, l := range d.orderListeners {
				l(evt.Order, trades)
			}
			for _, tr := range trades {
				for _, l := range d.tradeListeners {
					l(tr)
				}
			}
		case generator.CancelEvent:
			d.book.CancelOrder(evt.CancelOrderID)
			summary.CancelsProcessed++
		}

		if snapshotInterval > 0 {
			elapsed := time.Duration(evt.Timestamp)
			if elapsed-lastSnapshotElapsed >= snapshotInterval {
				snap := d.book.GetSnapshot(10)
				for _, l := range d.snapshotListeners {
					l(snap)
				}
				lastSnapshotElapsed = elapsed
			}
		}
	}

	return d.finalize(summary)
}

func (d *Driver) finalize(summary Summary) Summary {
	summary.TotalTrades = int(d.book.TotalTrades())
	summary.TotalVolume = d.book.TotalVolume()
	if mid, ok := d.book.Mid(); ok {
		summary.FinalMid = mid
		summary.HasFinalMid = true
	}
	if spread, ok := d.book.Spread(); ok {
		summary.FinalSpread = spread
		summary.HasFinalSpread = true
	}
	return summary
}
