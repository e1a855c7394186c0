package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/erain9/limitbook/pkg/core"
)

// EnvPrefix is prepended to every environment override, e.g. LIMITBOOK_LOG_LEVEL
const EnvPrefix = "LIMITBOOK"

// Publisher drivers
const (
	DriverNone    = "none"
	DriverKafkaGo = "kafka-go"
	DriverSarama  = "sarama"
)

// Config represents the application configuration
type Config struct {
	Instrument struct {
		Base          string `mapstructure:"base"`
		BaseDecimals  uint8  `mapstructure:"base_decimals"`
		Quote         string `mapstructure:"quote"`
		QuoteDecimals uint8  `mapstructure:"quote_decimals"`
	} `mapstructure:"instrument"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Engine struct {
		CheckInvariants bool `mapstructure:"check_invariants"`
		QueueSize       int  `mapstructure:"queue_size"`
	} `mapstructure:"engine"`

	Publisher struct {
		Driver  string   `mapstructure:"driver"`
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"publisher"`

	Telemetry struct {
		Enabled     bool   `mapstructure:"enabled"`
		Endpoint    string `mapstructure:"endpoint"`
		ServiceName string `mapstructure:"service_name"`
	} `mapstructure:"telemetry"`

	CLI struct {
		DepthLevels int `mapstructure:"depth_levels"`
	} `mapstructure:"cli"`
}

// BookInstrument builds the engine's instrument descriptor
func (c *Config) BookInstrument() core.Instrument {
	return core.NewInstrument(
		core.Asset{Symbol: c.Instrument.Base, Decimals: c.Instrument.BaseDecimals},
		core.Asset{Symbol: c.Instrument.Quote, Decimals: c.Instrument.QuoteDecimals},
	)
}

// PrettyLogs reports whether human readable console logging was requested
func (c *Config) PrettyLogs() bool {
	return c.Log.Format != "json"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("instrument.base", "BTC")
	v.SetDefault("instrument.base_decimals", 8)
	v.SetDefault("instrument.quote", "USDT")
	v.SetDefault("instrument.quote_decimals", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "pretty")
	v.SetDefault("engine.check_invariants", false)
	v.SetDefault("engine.queue_size", 1024)
	v.SetDefault("publisher.driver", DriverNone)
	v.SetDefault("publisher.brokers", []string{"localhost:9092"})
	v.SetDefault("publisher.topic", "execution-reports")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "limitbook")
	v.SetDefault("cli.depth_levels", 5)
}

// NewFlagSet declares the flags understood by Load. Commands may add their
// own flags to the returned set before calling LoadFlags.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to config file (YAML)")
	fs.String("base", "BTC", "Base asset symbol")
	fs.Uint8("base-decimals", 8, "Base asset decimals")
	fs.String("quote", "USDT", "Quote asset symbol")
	fs.Uint8("quote-decimals", 2, "Quote asset decimals")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "pretty", "Log format: json, pretty")
	fs.String("publisher", DriverNone, "Execution report publisher: none, kafka-go, sarama")
	fs.StringSlice("brokers", []string{"localhost:9092"}, "Kafka broker addresses")
	fs.String("topic", "execution-reports", "Kafka topic for execution reports")
	fs.Bool("check-invariants", false, "Verify book invariants after every mutation")
	fs.Bool("telemetry", false, "Export traces and metrics over OTLP")
	return fs
}

var flagKeys = map[string]string{
	"base":             "instrument.base",
	"base-decimals":    "instrument.base_decimals",
	"quote":            "instrument.quote",
	"quote-decimals":   "instrument.quote_decimals",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"publisher":        "publisher.driver",
	"brokers":          "publisher.brokers",
	"topic":            "publisher.topic",
	"check-invariants": "engine.check_invariants",
	"telemetry":        "telemetry.enabled",
}

// Load parses args with the default flag set and resolves the configuration
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("limitbook")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	return LoadFlags(fs)
}

// LoadFlags resolves the configuration from defaults, an optional YAML
// file, LIMITBOOK_* environment variables and parsed flags, in increasing
// order of precedence.
func LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the resolved configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Instrument.Base == "" || c.Instrument.Quote == "" {
		errs = append(errs, errors.New("instrument base and quote must not be empty"))
	}
	if c.Instrument.BaseDecimals > 18 || c.Instrument.QuoteDecimals > 18 {
		errs = append(errs, errors.New("instrument decimals must be at most 18"))
	}
	if c.Engine.QueueSize <= 0 {
		errs = append(errs, errors.New("engine.queue_size must be positive"))
	}
	switch c.Publisher.Driver {
	case DriverNone:
	case DriverKafkaGo, DriverSarama:
		if len(c.Publisher.Brokers) == 0 {
			errs = append(errs, errors.New("publisher.brokers must not be empty"))
		}
		if c.Publisher.Topic == "" {
			errs = append(errs, errors.New("publisher.topic must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown publisher.driver %q", c.Publisher.Driver))
	}
	switch c.Log.Format {
	case "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint must be set when telemetry is enabled"))
	}
	return errors.Join(errs...)
}
