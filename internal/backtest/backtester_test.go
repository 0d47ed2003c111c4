package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructurex/internal/engine"
	"microstructurex/internal/generator"
	"microstructurex/internal/model"
	"microstructurex/internal/strategy"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBacktester_TWAPExecutesAgainstSyntheticFlow(t *testing.T) {
	book := engine.NewBook("TEST")
	// Seed the book so the strategy always has a market to trade into.
	seedOrder, err := model.NewOrder("SEED-BUY", 0, model.Buy, model.Limit, dec("99"), true, dec("1000000"), "seed", model.GTC)
	require.NoError(t, err)
	_, err = book.AddOrder(&seedOrder)
	require.NoError(t, err)
	seedAsk, err := model.NewOrder("SEED-SELL", 0, model.Sell, model.Limit, dec("101"), true, dec("1000000"), "seed", model.GTC)
	require.NoError(t, err)
	_, err = book.AddOrder(&seedAsk)
	require.NoError(t, err)

	cfg := generator.DefaultConfig("TEST")
	cfg.Seed = 21
	gen := generator.New(cfg, 3.0)

	twap := strategy.NewTWAP(dec("100"), model.Buy, "TEST", 3.0, 5, 0.9)
	bt := NewBacktester(book)

	results, err := bt.Run(context.Background(), gen, twap, 200*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 100.0, results.TargetQuantity)
	assert.Greater(t, results.NumChildOrders, 0)
	assert.GreaterOrEqual(t, results.FillRate, 0.0)
	assert.LessOrEqual(t, results.FillRate, 1.01)
}

func TestBacktester_PostingCancelsPreviousOrderOnReprice(t *testing.T) {
	book := engine.NewBook("TEST")
	seedSell, err := model.NewOrder("SEED-SELL", 0, model.Sell, model.Limit, dec("101"), true, dec("5"), "seed", model.GTC)
	require.NoError(t, err)
	_, err = book.AddOrder(&seedSell)
	require.NoError(t, err)
	seedBuy, err := model.NewOrder("SEED-BUY", 0, model.Buy, model.Limit, dec("99"), true, dec("5"), "seed", model.GTC)
	require.NoError(t, err)
	_, err = book.AddOrder(&seedBuy)
	require.NoError(t, err)

	posting := strategy.NewPosting(dec("1000"), model.Buy, "TEST", 0.1, 0.0001)
	bt := NewBacktester(book)

	cfg := generator.DefaultConfig("TEST")
	cfg.Seed = 2
	cfg.Volatility = 0.3 // force large mid swings so reprice triggers
	gen := generator.New(cfg, 2.0)

	results, err := bt.Run(context.Background(), gen, posting, 100*time.Millisecond)
	require.NoError(t, err)

	// Posting never over-rests: at most one of its own child orders should
	// remain live in the book's index at the end of the run.
	live := 0
	for _, o := range posting.ChildOrders() {
		if book.CancelOrder(o.ID) {
			live++
		}
	}
	assert.LessOrEqual(t, live, 1)
	assert.GreaterOrEqual(t, results.NumChildOrders, 0)
}
