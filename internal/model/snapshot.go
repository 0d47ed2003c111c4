package model

import "github.com/shopspring/decimal"

// Level is a single (price, aggregate remaining quantity) pair as it
// appears in a Snapshot.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Snapshot is a point-in-time, read-only view of the book: up to N best
// bid levels (decreasing price) and up to N best ask levels (increasing
// price), plus the last trade price if one has occurred. Snapshot is a
// value copy — mutating the book after taking one must never alter it.
type Snapshot struct {
	Timestamp      int64
	Bids           []Level
	Asks           []Level
	LastTradePrice decimal.Decimal
	hasLastTrade   bool
}

// NewSnapshot builds a snapshot, copying the level slices so the result
// shares no backing array with the book.
func NewSnapshot(timestamp int64, bids, asks []Level, lastTradePrice decimal.Decimal, hasLastTrade bool) Snapshot {
	bidsCopy := make([]Level, len(bids))
	copy(bidsCopy, bids)
	asksCopy := make([]Level, len(asks))
	copy(asksCopy, asks)
	return Snapshot{
		Timestamp:      timestamp,
		Bids:           bidsCopy,
		Asks:           asksCopy,
		LastTradePrice: lastTradePrice,
		hasLastTrade:   hasLastTrade,
	}
}

// HasLastTrade reports whether LastTradePrice is meaningful.
func (s Snapshot) HasLastTrade() bool { return s.hasLastTrade }

// BestBid returns the best bid price, if any.
func (s Snapshot) BestBid() (decimal.Decimal, bool) {
	if len(s.Bids) == 0 {
		return decimal.Zero, false
	}
	return s.Bids[0].Price, true
}

// BestAsk returns the best ask price, if any.
func (s Snapshot) BestAsk() (decimal.Decimal, bool) {
	if len(s.Asks) == 0 {
		return decimal.Zero, false
	}
	return s.Asks[0].Price, true
}

// Spread returns best_ask - best_bid; undefined if either side is empty.
func (s Snapshot) Spread() (decimal.Decimal, bool) {
	bid, ok := s.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := s.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// Mid returns (best_ask + best_bid) / 2; undefined if either side is empty.
func (s Snapshot) Mid() (decimal.Decimal, bool) {
	bid, ok := s.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := s.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return ask.Add(bid).Div(decimal.NewFromInt(2)), true
}
