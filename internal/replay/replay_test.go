package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructurex/internal/engine"
	"microstructurex/internal/generator"
	"microstructurex/internal/model"
)

func TestDriver_TickByTick_ProcessesWholeStream(t *testing.T) {
	book := engine.NewBook("TEST")
	cfg := generator.DefaultConfig("TEST")
	cfg.Seed = 5
	gen := generator.New(cfg, 1.0)
	wantEvents := len(gen.Collect())
	require.Greater(t, wantEvents, 0)

	gen = generator.New(cfg, 1.0) // fresh generator, same seed: identical stream
	driver := NewDriver(book, 0)

	var ordersSeen, tradesSeen int
	driver.OnOrder(func(o *model.Order, trades []model.Trade) { ordersSeen++ })
	driver.OnTrade(func(trade model.Trade) { tradesSeen++ })

	summary, err := driver.Run(context.Background(), gen, 100*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, ordersSeen, summary.OrdersProcessed)
	assert.Equal(t, tradesSeen, summary.TotalTrades)
	assert.Equal(t, wantEvents, summary.OrdersProcessed+summary.CancelsProcessed)
}

func TestDriver_SnapshotListenerFiresPeriodically(t *testing.T) {
	book := engine.NewBook("TEST")
	cfg := generator.DefaultConfig("TEST")
	cfg.Seed = 9
	gen := generator.New(cfg, 2.0)
	driver := NewDriver(book, 0)

	var snapshots int
	driver.OnSnapshot(func(snap model.Snapshot) { snapshots++ })

	_, err := driver.Run(context.Background(), gen, 200*time.Millisecond)
	require.NoError(t, err)
	assert.Greater(t, snapshots, 0)
}

func TestDriver_StopInterruptsRealTimeReplay(t *testing.T) {
	book := engine.NewBook("TEST")
	cfg := generator.DefaultConfig("TEST")
	cfg.Seed = 13
	cfg.ArrivalRate = 1.0
	gen := generator.New(cfg, 30.0) // long stream at real-time pace
	driver := NewDriver(book, 1.0)

	done := make(chan struct{})
	go func() {
		driver.Run(context.Background(), gen, time.Second)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	driver.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt a real-time replay in time")
	}
}
