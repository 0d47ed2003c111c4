// Package model holds the value types shared by the matching engine,
// replay driver, strategies and backtester: orders, trades and snapshots.
package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is which side of the book an order rests or aggresses on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Type distinguishes limit orders (which may rest) from market orders
// (which never do).
type Type int

const (
	Limit Type = iota
	Market
)

func (t Type) String() string {
	if t == Limit {
		return "LIMIT"
	}
	return "MARKET"
}

// TimeInForce controls what happens to an order's unfilled residual.
type TimeInForce int

const (
	// GTC rests the residual on the book until cancelled.
	GTC TimeInForce = iota
	// IOC fills what it can immediately and cancels the rest.
	IOC
	// FOK fills completely or not at all.
	FOK
)

func (f TimeInForce) String() string {
	switch f {
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	default:
		return "GTC"
	}
}

// Status is an order's lifecycle state. It progresses monotonically:
// NEW -> PARTIAL_FILL -> FILLED, NEW/PARTIAL_FILL -> CANCELLED, NEW -> REJECTED.
type Status int

const (
	New Status = iota
	PartialFill
	Filled
	Cancelled
	Rejected
)

func (s Status) String() string {
	switch s {
	case PartialFill:
		return "PARTIAL_FILL"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	default:
		return "NEW"
	}
}

var (
	// ErrMissingPrice is returned when a LIMIT order is constructed without a price.
	ErrMissingPrice = errors.New("model: limit order requires a price")
	// ErrUnexpectedPrice is returned when a MARKET order is constructed with a price.
	ErrUnexpectedPrice = errors.New("model: market order must not carry a price")
	// ErrNonPositiveQuantity is returned when quantity is zero or negative.
	ErrNonPositiveQuantity = errors.New("model: order quantity must be positive")
	// ErrNegativeRemaining is returned when remaining quantity is negative.
	ErrNegativeRemaining = errors.New("model: remaining quantity cannot be negative")
)

// Order is a single resting or transient order. Construct with NewOrder so
// that validation failures surface before the book ever sees the order, per
// the error taxonomy: an Order the book accepts is always well-formed.
type Order struct {
	ID            string
	Timestamp     int64 // nanoseconds, monotonic
	Side          Side
	Type          Type
	Price         decimal.Decimal // zero value unused when Type == Market
	hasPrice      bool
	Quantity      decimal.Decimal // original quantity
	Remaining     decimal.Decimal
	Owner         string
	TimeInForce   TimeInForce
	Status        Status
}

// NewOrder validates and constructs an order. LIMIT requires a positive
// price; MARKET must not carry one. Quantity must be positive.
func NewOrder(id string, timestamp int64, side Side, typ Type, price decimal.Decimal, hasPrice bool, quantity decimal.Decimal, owner string, tif TimeInForce) (Order, error) {
	if typ == Limit {
		if !hasPrice || price.Sign() <= 0 {
			return Order{}, ErrMissingPrice
		}
	} else if hasPrice {
		return Order{}, ErrUnexpectedPrice
	}
	if quantity.Sign() <= 0 {
		return Order{}, ErrNonPositiveQuantity
	}

	return Order{
		ID:          id,
		Timestamp:   timestamp,
		Side:        side,
		Type:        typ,
		Price:       price,
		hasPrice:    hasPrice,
		Quantity:    quantity,
		Remaining:   quantity,
		Owner:       owner,
		TimeInForce: tif,
		Status:      New,
	}, nil
}

// HasPrice reports whether the order carries a limit price.
func (o *Order) HasPrice() bool { return o.hasPrice }

// IsBuy reports whether the order is a buy order.
func (o *Order) IsBuy() bool { return o.Side == Buy }

// IsLimit reports whether the order is a limit order.
func (o *Order) IsLimit() bool { return o.Type == Limit }

// Filled reports the quantity already executed.
func (o *Order) Filled() decimal.Decimal {
	return o.Quantity.Sub(o.Remaining)
}

// IsDone reports whether the order cannot trade further.
func (o *Order) IsDone() bool {
	switch o.Status {
	case Filled, Cancelled, Rejected:
		return true
	default:
		return false
	}
}

// Fill reduces the remaining quantity by qty and advances status. qty must
// not exceed Remaining; callers (the matching engine) are expected to
// enforce this invariant rather than have Fill silently clamp it.
func (o *Order) Fill(qty decimal.Decimal) {
	if qty.GreaterThan(o.Remaining) {
		panic(fmt.Sprintf("model: fill quantity %s exceeds remaining %s for order %s", qty, o.Remaining, o.ID))
	}
	o.Remaining = o.Remaining.Sub(qty)
	if o.Remaining.IsZero() {
		o.Status = Filled
	} else if o.Status == New {
		o.Status = PartialFill
	}
}

func (o Order) String() string {
	price := "-"
	if o.hasPrice {
		price = o.Price.String()
	}
	return fmt.Sprintf(
		"Order{id=%s side=%s type=%s price=%s qty=%s/%s owner=%s tif=%s status=%s}",
		o.ID, o.Side, o.Type, price, o.Remaining, o.Quantity, o.Owner, o.TimeInForce, o.Status,
	)
}
