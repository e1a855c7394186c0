package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"--log-level", "error"}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestPlaceOrder(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		code   int
		stdout string
		stderr string
	}{
		{"buy no match", []string{"place-order", "buy", "100", "10", "1"}, 0, "Order placed. No trades executed.", ""},
		{"sell no match", []string{"place-order", "sell", "100", "10", "1"}, 0, "Order placed. No trades executed.", ""},
		{"large numbers", []string{"place-order", "buy", "1000000000", "1000000000", "1000000000"}, 0, "Order placed. No trades executed.", ""},
		{"upper case side", []string{"place-order", "BUY", "100", "10", "1"}, 2, "", "invalid value"},
		{"invalid side", []string{"place-order", "invalid", "100", "10", "1"}, 2, "", "error"},
		{"invalid price", []string{"place-order", "buy", "not_a_number", "10", "1"}, 1, "", "Error placing order"},
		{"invalid quantity", []string{"place-order", "buy", "100", "not_a_number", "1"}, 1, "", "Error placing order"},
		{"negative price", []string{"place-order", "buy", "-100", "10", "1"}, 1, "", "Error placing order"},
		{"zero quantity", []string{"place-order", "buy", "100", "0", "1"}, 1, "", "invalid quantity"},
		{"zero price", []string{"place-order", "buy", "0", "10", "1"}, 1, "", "invalid price"},
		{"invalid id", []string{"place-order", "buy", "100", "10", "x"}, 2, "", "error"},
		{"price out of range", []string{"place-order", "buy", "100000000000000000000", "1", "1"}, 1, "", "Error placing order"},
		{"missing arguments", []string{"place-order", "buy"}, 2, "", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, "", tt.args...)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stdout, tt.stdout)
			assert.Contains(t, stderr, tt.stderr)
		})
	}
}

func TestBestOnEmptyBook(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "best-buy")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "No buy orders")

	code, stdout, _ = runCLI(t, "", "best-sell")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "No sell orders")
}

func TestUsageAndUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "", "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, "A limit order book CLI")
	assert.Contains(t, stderr, "place-order")
	assert.Contains(t, stderr, "best-sell")

	code, _, stderr = runCLI(t, "", "unknown")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unrecognized subcommand")

	code, _, _ = runCLI(t, "", "--version")
	assert.Equal(t, 2, code)
}

func TestInteractiveByDefault(t *testing.T) {
	code, stdout, _ := runCLI(t, "buy 100 1\nbest\nquit\n", "--no-color")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "=== Order Book Interactive CLI ===")
	assert.Contains(t, stdout, "Best BUY:  1.00000000 BTC @ 100.00 USDT")
	assert.Contains(t, stdout, "Goodbye!")
}
