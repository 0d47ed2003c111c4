// Package engine implements the limit order book matching engine: a
// two-sided, price-time-priority FIFO book with O(1) cancel by id.
package engine

import (
	"container/list"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"microstructurex/internal/model"
)

var (
	// ErrDuplicateOrderID is returned by AddOrder when the order id is
	// already live in the book's id index.
	ErrDuplicateOrderID = errors.New("engine: order id already resting")
	// ErrInvariantViolated marks a fatal, unrecoverable consistency
	// failure (crossed book). It is never recoverable: AddOrder panics
	// with it rather than returning it.
	ErrInvariantViolated = errors.New("engine: book invariant violated")
)

// resting back-references a live order to its queue position, so it can be
// excised from its level in O(1) without scanning — the id index entry
// doubles as that handle.
type resting struct {
	order *model.Order
	level *PriceLevel
	elem  *list.Element
	side  model.Side
}

type priceLevels = btree.BTreeG[*PriceLevel]

// Book is a single-symbol limit order book. It owns every resting order's
// storage: an order referenced by the id index is also referenced by
// exactly one PriceLevel, and by nothing else.
type Book struct {
	Symbol string

	bids *priceLevels // best (highest) price first
	asks *priceLevels // best (lowest) price first

	index map[string]*resting

	trades         []model.Trade
	lastTradePrice decimal.Decimal
	hasLastTrade   bool

	totalOrdersReceived uint64
	totalTrades         uint64
	totalVolume         decimal.Decimal

	log zerolog.Logger
}

// NewBook constructs an empty book for symbol.
func NewBook(symbol string) *Book {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price)
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price)
	})
	return &Book{
		Symbol:      symbol,
		bids:        bids,
		asks:        asks,
		index:       make(map[string]*resting),
		trades:      make([]model.Trade, 0),
		totalVolume: decimal.Zero,
		log:         log.With().Str("component", "engine").Str("symbol", symbol).Logger(),
	}
}

// SetLogger overrides the book's logger (defaults to the global zerolog
// logger tagged with the book's symbol).
func (b *Book) SetLogger(l zerolog.Logger) { b.log = l }

func (b *Book) sideTrees(side model.Side) (own, opposite *priceLevels) {
	if side == model.Buy {
		return b.bids, b.asks
	}
	return b.asks, b.bids
}

// AddOrder accepts a new order, attempts immediate matching under
// price-time priority, applies the order's time-in-force policy, and if
// any residual remains and TIF permits, rests it on the book. Returns the
// ordered list of trades this call generated.
func (b *Book) AddOrder(o *model.Order) ([]model.Trade, error) {
	if _, exists := b.index[o.ID]; exists {
		return nil, ErrDuplicateOrderID
	}
	b.totalOrdersReceived++

	var trades []model.Trade

	if o.Type == model.Market {
		trades = b.sweep(o, nil)
		if o.Remaining.Sign() > 0 {
			o.Status = model.Cancelled
		}
	} else {
		if o.TimeInForce == model.FOK && !b.canFullyFill(o) {
			o.Status = model.Rejected
			return nil, nil
		}

		limit := o.Price
		trades = b.sweep(o, &limit)

		switch o.TimeInForce {
		case model.IOC:
			if o.Remaining.Sign() > 0 {
				o.Status = model.Cancelled
			}
		default: // GTC, FOK
			if o.Remaining.Sign() > 0 {
				b.rest(o)
			}
		}
	}

	b.recordTrades(trades)
	if err := b.assertNoCrossedBook(); err != nil {
		panic(err)
	}
	return trades, nil
}

// canFullyFill walks the opposite side read-only (price-eligible levels
// only) and reports whether the order's full remaining quantity could be
// matched. This is how FOK is proven fillable before any state mutates —
// the alternative (match then roll back) is unsound once passive orders
// have already had their remaining quantity decremented.
func (b *Book) canFullyFill(o *model.Order) bool {
	_, opposite := b.sideTrees(o.Side)
	need := o.Remaining
	available := decimal.Zero

	opposite.Scan(func(level *PriceLevel) bool {
		if o.IsBuy() && level.Price.GreaterThan(o.Price) {
			return false
		}
		if !o.IsBuy() && level.Price.LessThan(o.Price) {
			return false
		}
		available = available.Add(level.Aggregate())
		return available.LessThan(need)
	})
	return available.GreaterThanOrEqual(need)
}

// sweep executes the matching loop: while the
// order has remaining quantity and the opposite side is non-empty and
// price-eligible (limit == nil means "any price", i.e. a market order),
// fill against the head of the best opposite level at the *passive*
// order's price, in strict FIFO order within that level.
func (b *Book) sweep(o *model.Order, limit *decimal.Decimal) []model.Trade {
	_, opposite := b.sideTrees(o.Side)
	var trades []model.Trade

	for o.Remaining.Sign() > 0 {
		level, ok := opposite.Min()
		if !ok {
			break
		}
		if limit != nil {
			if o.IsBuy() && level.Price.GreaterThan(*limit) {
				break
			}
			if !o.IsBuy() && level.Price.LessThan(*limit) {
				break
			}
		}

		for o.Remaining.Sign() > 0 {
			e := level.front()
			if e == nil {
				break
			}
			passive := e.Value.(*model.Order)

			fillQty := o.Remaining
			if passive.Remaining.LessThan(fillQty) {
				fillQty = passive.Remaining
			}

			trade := b.buildTrade(o, passive, fillQty)
			trades = append(trades, trade)

			o.Fill(fillQty)
			passive.Fill(fillQty)
			level.adjustAggregate(fillQty.Neg())

			if passive.Remaining.IsZero() {
				level.remove(e)
				delete(b.index, passive.ID)
			}
		}

		if level.isEmpty() {
			opposite.Delete(level)
		}
	}
	return trades
}

func (b *Book) buildTrade(aggressor, passive *model.Order, qty decimal.Decimal) model.Trade {
	buyID, sellID := aggressor.ID, passive.ID
	if !aggressor.IsBuy() {
		buyID, sellID = passive.ID, aggressor.ID
	}
	return model.Trade{
		ID:            uuid.New().String(),
		Timestamp:     aggressor.Timestamp,
		BuyOrderID:    buyID,
		SellOrderID:   sellID,
		Price:         passive.Price, // passive sets price: price-time priority
		Quantity:      qty,
		AggressorSide: aggressor.Side,
	}
}

// rest inserts order onto its side of the book, creating the price level
// if needed, and registers it in the id index.
func (b *Book) rest(o *model.Order) {
	if o.Remaining.Equal(o.Quantity) {
		o.Status = model.New
	} else {
		o.Status = model.PartialFill
	}

	own, _ := b.sideTrees(o.Side)
	level, ok := own.Get(searchKey(o.Price))
	if !ok {
		level = newPriceLevel(o.Price)
		own.Set(level)
	}
	elem := level.append(o)
	b.index[o.ID] = &resting{order: o, level: level, elem: elem, side: o.Side}
}

// CancelOrder removes order_id if it is currently resting. Returns false
// (not an error) for an unknown or already-terminal id, satisfying
// idempotence: a second cancel of the same id is a no-op.
func (b *Book) CancelOrder(orderID string) bool {
	r, ok := b.index[orderID]
	if !ok {
		return false
	}
	r.level.remove(r.elem)
	delete(b.index, orderID)
	if r.level.isEmpty() {
		own, _ := b.sideTrees(r.side)
		own.Delete(r.level)
	}
	r.order.Status = model.Cancelled
	return true
}

// ModifyOrder changes an order's quantity while it is still unmatched
// (status == NEW). It preserves time priority unconditionally — the
// order's queue position does not move, even on a quantity increase (see
// the chosen reference semantics).
func (b *Book) ModifyOrder(orderID string, newQuantity decimal.Decimal) bool {
	r, ok := b.index[orderID]
	if !ok || r.order.Status != model.New {
		return false
	}
	if newQuantity.Sign() <= 0 {
		return false
	}
	delta := newQuantity.Sub(r.order.Remaining)
	r.order.Quantity = newQuantity
	r.order.Remaining = newQuantity
	r.level.adjustAggregate(delta)
	return true
}

// GetSnapshot aggregates the top `levels` price levels per side, best
// first, as an immutable value copy. Reads never mutate the book.
func (b *Book) GetSnapshot(levels int) model.Snapshot {
	bids := b.topLevels(b.bids, levels)
	asks := b.topLevels(b.asks, levels)
	return model.NewSnapshot(0, bids, asks, b.lastTradePrice, b.hasLastTrade)
}

func (b *Book) topLevels(tree *priceLevels, n int) []model.Level {
	out := make([]model.Level, 0, n)
	tree.Scan(func(level *PriceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, model.Level{Price: level.Price, Qty: level.Aggregate()})
		return true
	})
	return out
}

// BestBid returns the current best bid price, if the bid side is non-empty.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	level, ok := b.bids.Min()
	if !ok {
		return decimal.Zero, false
	}
	return level.Price, true
}

// BestAsk returns the current best ask price, if the ask side is non-empty.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return decimal.Zero, false
	}
	return level.Price, true
}

// Spread returns best_ask - best_bid; undefined unless both sides are populated.
func (b *Book) Spread() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// Mid returns (best_ask + best_bid) / 2; undefined unless both sides are populated.
func (b *Book) Mid() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return ask.Add(bid).Div(decimal.NewFromInt(2)), true
}

// LastTradePrice returns the price of the most recent trade, if any.
func (b *Book) LastTradePrice() (decimal.Decimal, bool) {
	return b.lastTradePrice, b.hasLastTrade
}

// TotalOrdersReceived is the running count of orders passed to AddOrder.
func (b *Book) TotalOrdersReceived() uint64 { return b.totalOrdersReceived }

// TotalTrades is the running count of trades executed.
func (b *Book) TotalTrades() uint64 { return b.totalTrades }

// TotalVolume is the running sum of traded quantity.
func (b *Book) TotalVolume() decimal.Decimal { return b.totalVolume }

// Trades returns the append-only trade history. Callers must not mutate
// the returned slice's elements in place; it is exposed for metrics
// computation (internal/backtest).
func (b *Book) Trades() []model.Trade { return b.trades }

func (b *Book) recordTrades(trades []model.Trade) {
	for _, t := range trades {
		b.totalTrades++
		b.totalVolume = b.totalVolume.Add(t.Quantity)
		b.lastTradePrice = t.Price
		b.hasLastTrade = true
		b.trades = append(b.trades, t)
	}
}

// assertNoCrossedBook is the fatal internal-invariant check required by
// best_bid < best_ask must hold whenever both exist. Matching
// always runs to quiescence within a single AddOrder call, so this should
// never trip; if it does, the implementation has a bug and must abort
// rather than serve a crossed book to callers.
func (b *Book) assertNoCrossedBook() error {
	bid, bidOK := b.BestBid()
	ask, askOK := b.BestAsk()
	if bidOK && askOK && !bid.LessThan(ask) {
		b.log.Error().Str("best_bid", bid.String()).Str("best_ask", ask.String()).Msg("crossed book detected")
		return ErrInvariantViolated
	}
	return nil
}
