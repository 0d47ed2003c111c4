package format

import (
	"bytes"
	"strings"
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

func TestSnapshot_CSVRoundTripPreservesExactValues(t *testing.T) {
	snap := model.NewSnapshot(
		123456789,
		[]model.Level{{Price: dec("99.99"), Qty: dec("10.5")}, {Price: dec("99.98"), Qty: dec("20")}},
		[]model.Level{{Price: dec("100.01"), Qty: dec("7.25")}},
		dec("100.00"),
		true,
	)

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, snap, DefaultLevels))

	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)

	assert.Equal(t, snap.Timestamp, decoded.Timestamp)
	assert.Equal(t, snap.HasLastTrade(), decoded.HasLastTrade())
	assert.True(t, snap.LastTradePrice.Equal(decoded.LastTradePrice))
	require.Len(t, decoded.Bids, len(snap.Bids))
	for i := range snap.Bids {
		assert.True(t, snap.Bids[i].Price.Equal(decoded.Bids[i].Price))
		assert.True(t, snap.Bids[i].Qty.Equal(decoded.Bids[i].Qty))
	}
	require.Len(t, decoded.Asks, len(snap.Asks))
	for i := range snap.Asks {
		assert.True(t, snap.Asks[i].Price.Equal(decoded.Asks[i].Price))
		assert.True(t, snap.Asks[i].Qty.Equal(decoded.Asks[i].Qty))
	}
}

func TestSnapshot_CSVRoundTripWithNoLastTrade(t *testing.T) {
	snap := model.NewSnapshot(1, nil, nil, decimal.Zero, false)

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, snap, DefaultLevels))

	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	assert.False(t, decoded.HasLastTrade())
	assert.Empty(t, decoded.Bids)
	assert.Empty(t, decoded.Asks)
}

func TestSnapshot_CSVMatchesNamedColumnSchema(t *testing.T) {
	snap := model.NewSnapshot(
		42,
		[]model.Level{{Price: dec("99.5"), Qty: dec("10")}},
		[]model.Level{{Price: dec("100.5"), Qty: dec("5")}},
		dec("100"),
		true,
	)

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, snap, 2))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2, "exactly one header row and one data row")

	wantHeader := "timestamp,bid_price_1,bid_size_1,bid_price_2,bid_size_2," +
		"ask_price_1,ask_size_1,ask_price_2,ask_size_2,last_trade_price"
	assert.Equal(t, wantHeader, lines[0])

	wantRow := "42,99.5,10,,,100.5,5,,,100"
	assert.Equal(t, wantRow, lines[1])
}

func TestTrades_CSVHeaderUsesTradeIDColumnName(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeTrades(&buf, []model.Trade{
		{ID: "T1", Timestamp: 1, BuyOrderID: "B1", SellOrderID: "S1", Price: dec("1"), Quantity: dec("1"), AggressorSide: model.Buy},
	}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "trade_id,timestamp,buy_order_id,sell_order_id,price,quantity,aggressor_side", lines[0])
}

func TestTrades_CSVRoundTrip(t *testing.T) {
	trades := []model.Trade{
		{ID: "T1", Timestamp: 1, BuyOrderID: "B1", SellOrderID: "S1", Price: dec("100.5"), Quantity: dec("10"), AggressorSide: model.Buy},
		{ID: "T2", Timestamp: 2, BuyOrderID: "B2", SellOrderID: "S2", Price: dec("99.25"), Quantity: dec("3.333"), AggressorSide: model.Sell},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeTrades(&buf, trades))

	decoded, err := DecodeTrades(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range trades {
		assert.Equal(t, trades[i].ID, decoded[i].ID)
		assert.Equal(t, trades[i].BuyOrderID, decoded[i].BuyOrderID)
		assert.Equal(t, trades[i].SellOrderID, decoded[i].SellOrderID)
		assert.True(t, trades[i].Price.Equal(decoded[i].Price))
		assert.True(t, trades[i].Quantity.Equal(decoded[i].Quantity))
		assert.Equal(t, trades[i].AggressorSide, decoded[i].AggressorSide)
	}
}
