package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Trade is an immutable record of a single execution between a resting
// (passive) order and an aggressing order. Execution price always equals
// the resting order's limit price — price-time priority guarantees the
// passive side sets the price.
type Trade struct {
	ID            string
	Timestamp     int64
	BuyOrderID    string
	SellOrderID   string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	AggressorSide Side
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{id=%s buy=%s sell=%s price=%s qty=%s aggressor=%s}",
		t.ID, t.BuyOrderID, t.SellOrderID, t.Price, t.Quantity, t.AggressorSide,
	)
}
