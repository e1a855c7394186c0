package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/server"
	"github.com/erain9/limitbook/pkg/units"
)

//go:embed scenarios.yaml
var defaultScenarios []byte

// Script is a set of scenarios sharing one instrument
type Script struct {
	Instrument struct {
		Base          string `yaml:"base"`
		BaseDecimals  uint8  `yaml:"base_decimals"`
		Quote         string `yaml:"quote"`
		QuoteDecimals uint8  `yaml:"quote_decimals"`
	} `yaml:"instrument"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario runs against its own fresh book
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is one action. ExpectTrades, when set, is checked against the number
// of trades a placement produced.
type Step struct {
	Action       string       `yaml:"action"`
	Price        string       `yaml:"price"`
	Quantity     string       `yaml:"quantity"`
	ID           core.OrderID `yaml:"id"`
	Text         string       `yaml:"text"`
	ExpectTrades *int         `yaml:"expect_trades"`
	ExpectError  bool         `yaml:"expect_error"`
}

// ParseScript decodes a YAML scenario script
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	if len(s.Scenarios) == 0 {
		return nil, errors.New("script has no scenarios")
	}
	return &s, nil
}

// BookInstrument returns the script's instrument
func (s *Script) BookInstrument() core.Instrument {
	return core.NewInstrument(
		core.Asset{Symbol: s.Instrument.Base, Decimals: s.Instrument.BaseDecimals},
		core.Asset{Symbol: s.Instrument.Quote, Decimals: s.Instrument.QuoteDecimals},
	)
}

// Narrator prints scenarios step by step
type Narrator struct {
	out        io.Writer
	instrument core.Instrument
	opts       []server.Option

	title *color.Color
	buy   *color.Color
	sell  *color.Color
	trade *color.Color
	fail  *color.Color
}

// NewNarrator creates a narrator. opts are applied to every scenario's book.
func NewNarrator(out io.Writer, instrument core.Instrument, colored bool, opts ...server.Option) *Narrator {
	n := &Narrator{
		out:        out,
		instrument: instrument,
		opts:       opts,
		title:      color.New(color.FgCyan, color.Bold),
		buy:        color.New(color.FgGreen),
		sell:       color.New(color.FgRed),
		trade:      color.New(color.FgYellow),
		fail:       color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{n.title, n.buy, n.sell, n.trade, n.fail} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return n
}

// RunAll runs every scenario and returns the joined expectation failures
func (n *Narrator) RunAll(ctx context.Context, script *Script) error {
	fmt.Fprintf(n.out, "=== Limit Order Book Demo ===\n\n")
	fmt.Fprintf(n.out, "Instrument details: %s\n", n.instrument)

	var errs []error
	for i, sc := range script.Scenarios {
		if err := n.Run(ctx, i+1, sc); err != nil {
			errs = append(errs, fmt.Errorf("scenario %q: %w", sc.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run narrates one scenario against a fresh book
func (n *Narrator) Run(ctx context.Context, number int, sc Scenario) error {
	svc := server.NewBookService(n.instrument, n.opts...)
	defer svc.Close()

	heading := fmt.Sprintf("%d. %s:", number, sc.Name)
	rule := make([]byte, len(heading))
	for i := range rule {
		rule[i] = '-'
	}
	fmt.Fprintf(n.out, "\n%s\n%s\n%s\n", rule, n.title.Sprint(heading), rule)
	if sc.Description != "" {
		fmt.Fprintf(n.out, "%s\n", sc.Description)
	}

	var errs []error
	for i, step := range sc.Steps {
		if err := n.step(ctx, svc, step); err != nil {
			fmt.Fprintf(n.out, "%s %v\n", n.fail.Sprint("!!"), err)
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

func (n *Narrator) step(ctx context.Context, svc *server.BookService, step Step) error {
	switch step.Action {
	case "buy", "sell":
		return n.place(ctx, svc, step)
	case "cancel":
		err := svc.CancelOrder(ctx, step.ID)
		switch {
		case err != nil && step.ExpectError:
			fmt.Fprintf(n.out, "Cancel %d rejected as expected: %v\n", step.ID, err)
			return nil
		case err != nil:
			return err
		case step.ExpectError:
			return fmt.Errorf("cancel %d: expected an error", step.ID)
		}
		fmt.Fprintf(n.out, "Cancelled order %d\n", step.ID)
		return nil
	case "show":
		n.printBook(svc)
		return nil
	case "note":
		fmt.Fprintf(n.out, "\n%s\n", step.Text)
		return nil
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func (n *Narrator) place(ctx context.Context, svc *server.BookService, step Step) error {
	side, err := core.ParseSide(step.Action)
	if err != nil {
		return err
	}
	price, err := units.ParsePrice(step.Price, n.instrument)
	if err != nil {
		return fmt.Errorf("price %q: %w", step.Price, err)
	}
	quantity, err := units.ParseQuantity(step.Quantity, n.instrument)
	if err != nil {
		return fmt.Errorf("quantity %q: %w", step.Quantity, err)
	}

	label := n.buy.Sprint("BUY ")
	if side == core.Sell {
		label = n.sell.Sprint("SELL")
	}
	fmt.Fprintf(n.out, "%s #%d %s @ %s\n", label, step.ID,
		units.FormatQuantity(quantity, n.instrument), units.FormatPrice(price, n.instrument))

	trades, err := svc.PlaceOrder(ctx, side, price, quantity, step.ID)
	switch {
	case err != nil && step.ExpectError:
		fmt.Fprintf(n.out, "Rejected as expected: %v\n", err)
		return nil
	case err != nil:
		return err
	case step.ExpectError:
		return fmt.Errorf("order %d: expected an error", step.ID)
	}

	n.printTrades(trades)
	if step.ExpectTrades != nil && *step.ExpectTrades != len(trades) {
		return fmt.Errorf("order %d: expected %d trades, got %d", step.ID, *step.ExpectTrades, len(trades))
	}
	return nil
}

func (n *Narrator) printTrades(trades []core.Trade) {
	if len(trades) == 0 {
		fmt.Fprintf(n.out, "--No trades executed\n")
		return
	}
	fmt.Fprintf(n.out, "--Trades executed:\n")
	for _, t := range trades {
		fmt.Fprintf(n.out, "  %s %s @ %s (maker: %d, taker: %d)\n",
			n.trade.Sprint("Trade:"),
			units.FormatQuantity(t.Quantity, n.instrument),
			units.FormatPrice(t.Price, n.instrument),
			t.MakerID, t.TakerID)
	}
}

func (n *Narrator) printBook(svc *server.BookService) {
	snap := svc.Snapshot(10)
	fmt.Fprintf(n.out, "\n--Order book state:\n")
	if len(snap.Asks) == 0 && len(snap.Bids) == 0 {
		fmt.Fprintf(n.out, "  (empty)\n")
		return
	}
	for i := len(snap.Asks) - 1; i >= 0; i-- {
		l := snap.Asks[i]
		fmt.Fprintf(n.out, "  %s %s @ %s\n", n.sell.Sprint("ASK"),
			units.FormatQuantity(l.Quantity, n.instrument), units.FormatPrice(l.Price, n.instrument))
	}
	if spread, ok := snap.Spread(); ok {
		fmt.Fprintf(n.out, "  --- spread %s ---\n", units.FormatPrice(spread, n.instrument))
	}
	for _, l := range snap.Bids {
		fmt.Fprintf(n.out, "  %s %s @ %s\n", n.buy.Sprint("BID"),
			units.FormatQuantity(l.Quantity, n.instrument), units.FormatPrice(l.Price, n.instrument))
	}
}
