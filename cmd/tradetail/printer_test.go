package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/messaging"
)

func TestPrinter(t *testing.T) {
	inst := core.NewInstrument(
		core.Asset{Symbol: "BTC", Decimals: 3},
		core.Asset{Symbol: "USDT", Decimals: 2},
	)
	var out bytes.Buffer
	p := NewPrinter(&out, inst, false)

	require.NoError(t, p.Handle(&messaging.ExecutionReport{
		Type: messaging.ReportPlace, OrderID: 1, Side: "BUY",
		Price: 10050, Quantity: 1000, Remaining: 1000, Rested: true, Sequence: 1,
	}))
	require.NoError(t, p.Handle(&messaging.ExecutionReport{
		Type: messaging.ReportPlace, OrderID: 2, Side: "SELL",
		Price: 10000, Quantity: 400, Sequence: 2,
		Trades: []messaging.Trade{{Sequence: 3, MakerID: 1, TakerID: 2, Price: 10050, Quantity: 400}},
	}))
	require.NoError(t, p.Handle(&messaging.ExecutionReport{
		Type: messaging.ReportCancel, OrderID: 1, Side: "BUY",
		Price: 10050, Quantity: 600, Sequence: 3,
	}))
	require.NoError(t, p.Handle(&messaging.ExecutionReport{
		Type: messaging.ReportPlace, OrderID: 9, Side: "BUY", Price: 1, Quantity: 1, Rested: true, Remaining: 1, Sequence: 2,
	}))

	text := out.String()
	assert.Contains(t, text, "[1] BUY #1 1.000 BTC @ 100.50 USDT, rested 1.000 BTC")
	assert.Contains(t, text, "[2] SELL #2 0.400 BTC @ 100.00 USDT, filled")
	assert.Contains(t, text, "trade [3] 0.400 BTC @ 100.50 USDT (maker: 1, taker: 2)")
	assert.Contains(t, text, "[3] BUY CANCEL #1 0.600 BTC @ 100.50 USDT")
	assert.Contains(t, text, "reordered seq 2 arrived after seq 3")
}
