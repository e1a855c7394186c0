package units

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/limitbook/pkg/core"
)

var btcUSDT = core.NewInstrument(
	core.Asset{Symbol: "BTC", Decimals: 8},
	core.Asset{Symbol: "USDT", Decimals: 2},
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		decimals uint8
		want     int64
		wantErr  error
	}{
		{"whole", "100", 2, 10000, nil},
		{"fraction", "100.5", 2, 10050, nil},
		{"truncates", "0.0015", 3, 1, nil},
		{"zero decimals", "42.99", 0, 42, nil},
		{"satoshi", "0.00000001", 8, 1, nil},
		{"negative", "-1", 2, 0, ErrNegativeAmount},
		{"too large", "92233720368547758.08", 2, 0, ErrOutOfRange},
		{"max", "92233720368547758.07", 2, math.MaxInt64, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.in), tt.decimals)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, decimal.RequireFromString("100.5").Equal(FromMinorUnits(10050, 2)))
	assert.True(t, decimal.RequireFromString("0.00000001").Equal(FromMinorUnits(1, 8)))
	assert.True(t, decimal.NewFromInt(7).Equal(FromMinorUnits(7, 0)))
}

func TestParse(t *testing.T) {
	p, err := ParsePrice("100.50", btcUSDT)
	require.NoError(t, err)
	assert.Equal(t, core.Price(10050), p)

	q, err := ParseQuantity("0.001", btcUSDT)
	require.NoError(t, err)
	assert.Equal(t, core.Quantity(100000), q)

	_, err = ParsePrice("abc", btcUSDT)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseQuantity("-0.5", btcUSDT)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "100.50 USDT", FormatPrice(10050, btcUSDT))
	assert.Equal(t, "0.00100000 BTC", FormatQuantity(100000, btcUSDT))
	assert.Equal(t, "0.00 USDT", FormatPrice(0, btcUSDT))
	assert.Equal(t, "5 XYZ", Format(5, core.Asset{Symbol: "XYZ"}))
}
