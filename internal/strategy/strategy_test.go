package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructurex/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testSnapshot(bid, ask string) model.Snapshot {
	return model.NewSnapshot(
		0,
		[]model.Level{{Price: dec(bid), Qty: dec("100")}},
		[]model.Level{{Price: dec(ask), Qty: dec("100")}},
		decimal.Zero,
		false,
	)
}

func TestTWAP_SlicesAtRegularIntervals(t *testing.T) {
	twap := NewTWAP(dec("100"), model.Buy, "TEST", 10.0, 5, 0.5)
	snap := testSnapshot("99", "101")

	first := twap.GenerateOrders(snap, 0.0)
	require.Len(t, first, 1)
	assert.True(t, first[0].Quantity.Equal(dec("20")))

	assert.Empty(t, twap.GenerateOrders(snap, 1.0), "before next slice interval, no order")

	second := twap.GenerateOrders(snap, 2.0)
	require.Len(t, second, 1)
}

func TestTWAP_StopsAfterAllSlicesSent(t *testing.T) {
	twap := NewTWAP(dec("100"), model.Buy, "TEST", 10.0, 2, 0.5)
	snap := testSnapshot("99", "101")

	require.Len(t, twap.GenerateOrders(snap, 0.0), 1)
	require.Len(t, twap.GenerateOrders(snap, 5.0), 1)
	assert.Empty(t, twap.GenerateOrders(snap, 10.0))
}

func TestTWAP_AggressiveSlicesAreMarketOrders(t *testing.T) {
	twap := NewTWAP(dec("100"), model.Buy, "TEST", 10.0, 1, 0.9)
	snap := testSnapshot("99", "101")

	orders := twap.GenerateOrders(snap, 0.0)
	require.Len(t, orders, 1)
	assert.False(t, orders[0].IsLimit())
	assert.False(t, orders[0].HasPrice())
}

func TestVWAP_DefaultProfileFrontLoadsExecution(t *testing.T) {
	vwap := NewVWAP(dec("1000"), model.Buy, "TEST", 100.0, nil, 0.5)
	snap := testSnapshot("99", "101")

	assert.Empty(t, vwap.GenerateOrders(snap, 0.0), "no check has elapsed yet")

	orders := vwap.GenerateOrders(snap, 5.0)
	require.Len(t, orders, 1, "the U-shaped profile front-loads volume, so the first check should trade")
	assert.True(t, orders[0].Quantity.GreaterThan(decimal.Zero))
}

func TestVWAP_NoOrderWhenOnSchedule(t *testing.T) {
	vwap := NewVWAP(dec("1000"), model.Buy, "TEST", 100.0, nil, 0.5)
	snap := testSnapshot("99", "101")

	assert.Empty(t, vwap.GenerateOrders(snap, 0.0))
	orders := vwap.GenerateOrders(snap, 5.0)
	require.Len(t, orders, 1)
	vwap.UpdateExecution(dec("100"), orders[0].Quantity)

	// Immediately on schedule: no further order until the next check interval
	// AND a shortfall reappears.
	assert.Empty(t, vwap.GenerateOrders(snap, 6.0))
}

func TestPOV_ParticipatesInVolumeDelta(t *testing.T) {
	pov := NewPOV(dec("1000"), model.Buy, "TEST", 0.5, 60.0, 0.5)
	snap := testSnapshot("99", "101")

	assert.Empty(t, pov.GenerateOrdersWithMarketVolume(snap, 0.0, dec("0")))
	orders := pov.GenerateOrdersWithMarketVolume(snap, 5.0, dec("100"))
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Quantity.Equal(dec("50")))
}

func TestPOV_SkipsBelowMinimumLot(t *testing.T) {
	pov := NewPOV(dec("1000"), model.Buy, "TEST", 0.0001, 60.0, 0.5)
	snap := testSnapshot("99", "101")

	assert.Empty(t, pov.GenerateOrdersWithMarketVolume(snap, 0.0, dec("0")))
	orders := pov.GenerateOrdersWithMarketVolume(snap, 5.0, dec("1"))
	assert.Empty(t, orders)
}

func TestPosting_PostsInsideSpreadAndTracksRepriceTarget(t *testing.T) {
	posting := NewPosting(dec("100"), model.Buy, "TEST", 0.3, 0.01)
	snap := testSnapshot("99", "101")

	orders := posting.GenerateOrders(snap, 0.0)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Price.Equal(dec("99.6")))

	id, ok := posting.PreviousActiveOrderID()
	require.True(t, ok)
	assert.Equal(t, orders[0].ID, id)

	// Unchanged market: mid 100 is about 0.4% from the posted 99.6, inside
	// the 1% threshold, so no reprice.
	assert.Empty(t, posting.GenerateOrders(snap, 1.0))
}

func TestPosting_RepricesOnLargeMidMove(t *testing.T) {
	posting := NewPosting(dec("100"), model.Buy, "TEST", 0.3, 0.0001)
	snap := testSnapshot("99", "101")
	require.Len(t, posting.GenerateOrders(snap, 0.0), 1)

	moved := testSnapshot("110", "112")
	orders := posting.GenerateOrders(moved, 1.0)
	require.Len(t, orders, 1, "a large mid move past the reprice threshold should produce a new post")
}

func TestPosting_CompleteStrategyStopsPosting(t *testing.T) {
	posting := NewPosting(dec("100"), model.Buy, "TEST", 0.3, 0.0001)
	posting.UpdateExecution(dec("100"), dec("100"))
	snap := testSnapshot("99", "101")

	assert.True(t, posting.IsComplete())
	assert.Empty(t, posting.GenerateOrders(snap, 0.0))
}

// S6 — TWAP slicing: target 1000, duration 60s, 10 slices, aggression 0.5.
// A snapshot with bid=99.5/ask=100.5 is available at every scheduled slice
// time; exactly 10 child orders should be emitted, each qty=100, each
// priced at the mid (100.0).
func TestTWAP_S6_EqualSlicesAtMidPrice(t *testing.T) {
	twap := NewTWAP(dec("1000"), model.Buy, "TEST", 60.0, 10, 0.5)
	snap := testSnapshot("99.5", "100.5")

	var allOrders []*model.Order
	for i := 0; i < 10; i++ {
		elapsed := float64(i * 6)
		orders := twap.GenerateOrders(snap, elapsed)
		require.Len(t, orders, 1, "slice %d should fire exactly once", i)
		allOrders = append(allOrders, orders...)
	}

	require.Len(t, allOrders, 10)
	for _, o := range allOrders {
		assert.True(t, o.Quantity.Equal(dec("100")), "each slice should be qty=100")
		assert.True(t, o.Price.Equal(dec("100.0")), "each slice should price at the mid")
	}
	assert.Empty(t, twap.GenerateOrders(snap, 60.0), "no 11th slice after all ten have fired")
}
