// Package format implements two narrow CSV wire schemas — a Snapshot
// round-trip and a Trade round-trip — using encoding/csv with
// decimal.Decimal.String() for every numeric field so values survive the
// trip exactly. This is deliberately not a general historical-data
// loader: no LOBSTER message-file reader, directory walker, or Parquet
// support lives here.
package format

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"microstructurex/internal/model"
)

// DefaultLevels is the number of bid/ask levels padded into a snapshot row
// when a caller has no more specific level count in mind.
const DefaultLevels = 10

func snapshotHeader(levels int) []string {
	header := []string{"timestamp"}
	for i := 1; i <= levels; i++ {
		header = append(header, fmt.Sprintf("bid_price_%d", i), fmt.Sprintf("bid_size_%d", i))
	}
	for i := 1; i <= levels; i++ {
		header = append(header, fmt.Sprintf("ask_price_%d", i), fmt.Sprintf("ask_size_%d", i))
	}
	return append(header, "last_trade_price")
}

// EncodeSnapshot writes snap to w as a single CSV row:
//
//	timestamp, bid_price_1, bid_size_1, …, bid_price_N, bid_size_N,
//	ask_price_1, ask_size_1, …, ask_price_N, ask_size_N, last_trade_price
//
// where N is levels. A side with fewer than levels price levels is
// padded with empty columns; empty last_trade_price means no trade yet.
func EncodeSnapshot(w io.Writer, snap model.Snapshot, levels int) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(snapshotHeader(levels)); err != nil {
		return fmt.Errorf("format: write snapshot header: %w", err)
	}

	row := make([]string, 0, 1+4*levels+1)
	row = append(row, strconv.FormatInt(snap.Timestamp, 10))
	row = appendLevels(row, snap.Bids, levels)
	row = appendLevels(row, snap.Asks, levels)

	lastTrade := ""
	if snap.HasLastTrade() {
		lastTrade = snap.LastTradePrice.String()
	}
	row = append(row, lastTrade)

	if err := cw.Write(row); err != nil {
		return fmt.Errorf("format: write snapshot row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

func appendLevels(row []string, side []model.Level, levels int) []string {
	for i := 0; i < levels; i++ {
		if i < len(side) {
			row = append(row, side[i].Price.String(), side[i].Qty.String())
		} else {
			row = append(row, "", "")
		}
	}
	return row
}

// DecodeSnapshot reads a snapshot previously written by EncodeSnapshot.
// The level count N is inferred from the header row's column count.
func DecodeSnapshot(r io.Reader) (model.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("format: read snapshot csv: %w", err)
	}
	if len(records) < 2 {
		return model.Snapshot{}, fmt.Errorf("format: missing snapshot header or row")
	}

	header, row := records[0], records[1]
	if len(header) != len(row) {
		return model.Snapshot{}, fmt.Errorf("format: snapshot row column count mismatch")
	}
	levels := (len(header) - 2) / 4

	timestamp, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("format: parse snapshot timestamp: %w", err)
	}

	bids, col, err := parseLevels(row, 1, levels)
	if err != nil {
		return model.Snapshot{}, err
	}
	asks, col, err := parseLevels(row, col, levels)
	if err != nil {
		return model.Snapshot{}, err
	}

	var lastTradePrice decimal.Decimal
	hasLastTrade := false
	if last := row[col]; last != "" {
		lastTradePrice, err = decimal.NewFromString(last)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("format: parse last trade price: %w", err)
		}
		hasLastTrade = true
	}

	return model.NewSnapshot(timestamp, bids, asks, lastTradePrice, hasLastTrade), nil
}

func parseLevels(row []string, col, levels int) ([]model.Level, int, error) {
	var out []model.Level
	for i := 0; i < levels; i++ {
		priceStr, qtyStr := row[col], row[col+1]
		col += 2
		if priceStr == "" {
			continue
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, col, fmt.Errorf("format: parse level price: %w", err)
		}
		qty, err := decimal.NewFromString(qtyStr)
		if err != nil {
			return nil, col, fmt.Errorf("format: parse level qty: %w", err)
		}
		out = append(out, model.Level{Price: price, Qty: qty})
	}
	return out, col, nil
}

var tradeHeader = []string{"trade_id", "timestamp", "buy_order_id", "sell_order_id", "price", "quantity", "aggressor_side"}

// EncodeTrades writes trades to w as CSV, one row per trade plus a header.
func EncodeTrades(w io.Writer, trades []model.Trade) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(tradeHeader); err != nil {
		return fmt.Errorf("format: write trade header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			t.ID,
			strconv.FormatInt(t.Timestamp, 10),
			t.BuyOrderID,
			t.SellOrderID,
			t.Price.String(),
			t.Quantity.String(),
			t.AggressorSide.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("format: write trade row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// DecodeTrades reads trades previously written by EncodeTrades.
func DecodeTrades(r io.Reader) ([]model.Trade, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("format: read trade csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	trades := make([]model.Trade, 0, len(records)-1)
	for _, row := range records[1:] {
		if len(row) != len(tradeHeader) {
			return nil, fmt.Errorf("format: malformed trade row %v", row)
		}
		timestamp, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("format: parse trade timestamp: %w", err)
		}
		price, err := decimal.NewFromString(row[4])
		if err != nil {
			return nil, fmt.Errorf("format: parse trade price: %w", err)
		}
		qty, err := decimal.NewFromString(row[5])
		if err != nil {
			return nil, fmt.Errorf("format: parse trade quantity: %w", err)
		}
		side, err := parseSide(row[6])
		if err != nil {
			return nil, err
		}
		trades = append(trades, model.Trade{
			ID:            row[0],
			Timestamp:     timestamp,
			BuyOrderID:    row[2],
			SellOrderID:   row[3],
			Price:         price,
			Quantity:      qty,
			AggressorSide: side,
		})
	}
	return trades, nil
}

func parseSide(s string) (model.Side, error) {
	switch s {
	case "BUY":
		return model.Buy, nil
	case "SELL":
		return model.Sell, nil
	default:
		return 0, fmt.Errorf("format: unknown side %q", s)
	}
}
