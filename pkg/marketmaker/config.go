package marketmaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/erain9/limitbook/pkg/core"
)

// Config holds the quoting parameters. Prices and sizes are in minor units.
type Config struct {
	// Quoting
	NumLevels         int
	BaseSpreadPercent float64
	PriceStepPercent  float64
	OrderSize         core.Quantity

	// Loop
	UpdateInterval time.Duration
	OrdersPerSec   float64

	// Identity. Quote ids are allocated upward from IDBase.
	MarketMakerID string
	IDBase        core.OrderID
}

// DefaultConfig returns the configuration LoadConfig starts from
func DefaultConfig() Config {
	return Config{
		NumLevels:         3,
		BaseSpreadPercent: 0.1,
		PriceStepPercent:  0.05,
		OrderSize:         1_000_000,
		UpdateInterval:    time.Second,
		OrdersPerSec:      1000,
		MarketMakerID:     "mm-01",
		IDBase:            1 << 48,
	}
}

// LoadConfig reads LIMITBOOK_MM_* environment variables over the defaults
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LIMITBOOK_MM")

	def := DefaultConfig()
	v.SetDefault("NUM_LEVELS", def.NumLevels)
	v.SetDefault("BASE_SPREAD_PERCENT", def.BaseSpreadPercent)
	v.SetDefault("PRICE_STEP_PERCENT", def.PriceStepPercent)
	v.SetDefault("ORDER_SIZE", int64(def.OrderSize))
	v.SetDefault("UPDATE_INTERVAL", def.UpdateInterval)
	v.SetDefault("ORDERS_PER_SEC", def.OrdersPerSec)
	v.SetDefault("ID", def.MarketMakerID)
	v.SetDefault("ID_BASE", uint64(def.IDBase))

	v.AutomaticEnv()

	cfg := &Config{
		NumLevels:         v.GetInt("NUM_LEVELS"),
		BaseSpreadPercent: v.GetFloat64("BASE_SPREAD_PERCENT"),
		PriceStepPercent:  v.GetFloat64("PRICE_STEP_PERCENT"),
		OrderSize:         core.Quantity(v.GetInt64("ORDER_SIZE")),
		UpdateInterval:    v.GetDuration("UPDATE_INTERVAL"),
		OrdersPerSec:      v.GetFloat64("ORDERS_PER_SEC"),
		MarketMakerID:     v.GetString("ID"),
		IDBase:            core.OrderID(v.GetUint64("ID_BASE")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field
func (c *Config) Validate() error {
	var errs []error
	if c.NumLevels <= 0 {
		errs = append(errs, errors.New("NUM_LEVELS must be positive"))
	}
	if c.BaseSpreadPercent <= 0 {
		errs = append(errs, errors.New("BASE_SPREAD_PERCENT must be positive"))
	}
	if c.PriceStepPercent <= 0 {
		errs = append(errs, errors.New("PRICE_STEP_PERCENT must be positive"))
	}
	if c.OrderSize <= 0 {
		errs = append(errs, errors.New("ORDER_SIZE must be positive"))
	}
	if c.UpdateInterval <= 0 {
		errs = append(errs, errors.New("UPDATE_INTERVAL must be positive"))
	}
	if c.OrdersPerSec <= 0 {
		errs = append(errs, errors.New("ORDERS_PER_SEC must be positive"))
	}
	if c.MarketMakerID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	return errors.Join(errs...)
}
