package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScenariosRunClean(t *testing.T) {
	script, err := ParseScript(defaultScenarios)
	require.NoError(t, err)
	require.Len(t, script.Scenarios, 5)
	assert.Equal(t, "BTC/USDT", script.BookInstrument().String())

	var out bytes.Buffer
	n := NewNarrator(&out, script.BookInstrument(), false)
	require.NoError(t, n.RunAll(context.Background(), script))

	text := out.String()
	assert.Contains(t, text, "=== Limit Order Book Demo ===")
	assert.Contains(t, text, "1. Basic Matching:")
	assert.Contains(t, text, "Trade: 0.010000 BTC @ 100.00 USDT (maker: 1, taker: 2)")
	// price-time priority: order 2 before order 3, then order 1 at the worse price
	assert.Contains(t, text, "(maker: 2, taker: 4)\n  Trade: 0.010000 BTC @ 100.00 USDT (maker: 3, taker: 4)\n  Trade: 0.005000 BTC @ 99.00 USDT (maker: 1, taker: 4)")
	assert.Contains(t, text, "Cancel 3 rejected as expected")
	assert.NotContains(t, text, "!!")
}

func TestExpectationFailuresAreReported(t *testing.T) {
	script, err := ParseScript([]byte(`
instrument: {base: BTC, base_decimals: 3, quote: USD, quote_decimals: 2}
scenarios:
  - name: Wrong
    steps:
      - {action: buy, price: "10", quantity: "1", id: 1, expect_trades: 1}
      - {action: cancel, id: 9}
      - {action: dance}
`))
	require.NoError(t, err)

	var out bytes.Buffer
	err = NewNarrator(&out, script.BookInstrument(), false).RunAll(context.Background(), script)
	require.Error(t, err)
	assert.ErrorContains(t, err, "expected 1 trades, got 0")
	assert.ErrorContains(t, err, "order not found")
	assert.ErrorContains(t, err, `unknown action "dance"`)
}

func TestParseScriptRejectsEmpty(t *testing.T) {
	_, err := ParseScript([]byte("scenarios: []"))
	assert.Error(t, err)

	_, err = ParseScript([]byte("scenarios: ["))
	assert.Error(t, err)
}
