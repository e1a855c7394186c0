// Command lobcli is an order book shell. Without arguments it starts an
// interactive session; place-order, best-buy and best-sell run one command
// against a fresh book and exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/erain9/limitbook/config"
	"github.com/erain9/limitbook/pkg/cli"
	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/logging"
	"github.com/erain9/limitbook/pkg/otel"
	"github.com/erain9/limitbook/pkg/server"
	"github.com/erain9/limitbook/pkg/units"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func usage(fs *pflag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `A limit order book CLI

Usage:
  lobcli [flags]                                  start interactive mode
  lobcli [flags] interactive                      start interactive mode
  lobcli [flags] place-order <side> <price> <quantity> <id>
  lobcli [flags] best-buy
  lobcli [flags] best-sell

Flags:
%s`, fs.FlagUsages())
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := config.NewFlagSet("lobcli")
	fs.SetInterspersed(false)
	fs.SetOutput(stderr)
	fs.Bool("no-color", false, "Disable colored output")
	fs.Usage = func() { usage(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.LoadFlags(fs)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.PrettyLogs(), Output: stderr})

	shutdown, err := otel.Init(otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		Endpoint:         cfg.Telemetry.Endpoint,
		CollectorEnabled: cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize telemetry")
		return 1
	}
	defer shutdown()

	svc, err := server.NewFromConfig(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create order book")
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close report sender")
		}
	}()

	rest := fs.Args()
	if len(rest) == 0 || rest[0] == "interactive" {
		noColor, _ := fs.GetBool("no-color")
		shell := cli.NewShell(svc, stdout, cli.WithDepthLevels(cfg.CLI.DepthLevels), cli.WithColor(!noColor))
		if err := shell.Run(ctx, stdin); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	switch rest[0] {
	case "place-order":
		return placeOrder(ctx, svc, rest[1:], stdout, stderr)
	case "best-buy":
		printBest(svc, core.Buy, stdout)
		return 0
	case "best-sell":
		printBest(svc, core.Sell, stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "error: unrecognized subcommand %q\n\n", rest[0])
		usage(fs, stderr)
		return 2
	}
}

func placeOrder(ctx context.Context, svc *server.BookService, args []string, stdout, stderr io.Writer) int {
	if len(args) != 4 {
		fmt.Fprintln(stderr, "error: place-order requires <side> <price> <quantity> <id>")
		return 2
	}
	side, err := parseSide(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "error: invalid value %q for <side>: %v\n", args[0], err)
		return 2
	}
	id, err := strconv.ParseUint(args[3], 10, 64)
	if err != nil {
		fmt.Fprintf(stderr, "error: invalid value %q for <id>\n", args[3])
		return 2
	}

	inst := svc.Instrument()
	trades, err := func() ([]core.Trade, error) {
		price, err := units.ParsePrice(args[1], inst)
		if err != nil {
			return nil, fmt.Errorf("invalid price: %w", err)
		}
		quantity, err := units.ParseQuantity(args[2], inst)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity: %w", err)
		}
		return svc.PlaceOrder(ctx, side, price, quantity, core.OrderID(id))
	}()
	if err != nil {
		fmt.Fprintf(stderr, "Error placing order: %v\n", err)
		return 1
	}

	if len(trades) == 0 {
		fmt.Fprintln(stdout, "Order placed. No trades executed.")
		return 0
	}
	fmt.Fprintln(stdout, "Order executed! Trades:")
	for _, t := range trades {
		fmt.Fprintf(stdout, "Trade: %s @ %s (maker: %d, taker: %d)\n",
			units.FormatQuantity(t.Quantity, inst), units.FormatPrice(t.Price, inst), t.MakerID, t.TakerID)
	}
	return 0
}

// parseSide only accepts the lower case spelling
func parseSide(s string) (core.Side, error) {
	switch s {
	case "buy":
		return core.Buy, nil
	case "sell":
		return core.Sell, nil
	}
	return 0, errors.New("possible values: buy, sell")
}

func printBest(svc *server.BookService, side core.Side, stdout io.Writer) {
	inst := svc.Instrument()
	best, ok := svc.BestSell()
	label := "sell"
	if side == core.Buy {
		best, ok = svc.BestBuy()
		label = "buy"
	}
	if !ok {
		fmt.Fprintf(stdout, "No %s orders\n", label)
		return
	}
	fmt.Fprintf(stdout, "Best %s: %s @ %s\n", label,
		units.FormatQuantity(best.Quantity, inst), units.FormatPrice(best.Price, inst))
}
