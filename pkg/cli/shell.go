// Package cli implements the interactive order book shell. It converts
// decimal input to minor units, calls the book service and renders the
// results; it holds no matching logic of its own.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/server"
	"github.com/erain9/limitbook/pkg/units"
)

// DefaultDepthLevels is used by depth when no level count is given
const DefaultDepthLevels = 5

// bookStateLevels is the depth shown by the book command
const bookStateLevels = 3

// Shell is a line oriented front end over one BookService
type Shell struct {
	svc    *server.BookService
	out    io.Writer
	depth  int
	nextID core.OrderID

	green  *color.Color
	red    *color.Color
	cyan   *color.Color
	yellow *color.Color
}

// Option configures a Shell
type Option func(*Shell)

// WithDepthLevels sets the default level count for depth
func WithDepthLevels(n int) Option {
	return func(s *Shell) {
		if n > 0 {
			s.depth = n
		}
	}
}

// WithColor enables or disables ANSI colors
func WithColor(enabled bool) Option {
	return func(s *Shell) {
		for _, c := range []*color.Color{s.green, s.red, s.cyan, s.yellow} {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// NewShell creates a shell writing to out
func NewShell(svc *server.BookService, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		svc:    svc,
		out:    out,
		depth:  DefaultDepthLevels,
		nextID: 1,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		cyan:   color.New(color.FgCyan),
		yellow: color.New(color.FgYellow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads commands from in until quit, end of input or ctx is done
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	s.printf("=== Order Book Interactive CLI ===\n")
	s.printf("Type 'help' for available commands, 'quit' to exit\n\n")
	s.printf("Instrument: %s\n\n", s.svc.Instrument())

	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.printf("> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("error reading input: %w", err)
			}
			s.printf("\n")
			return nil
		}
		if quit := s.Execute(ctx, scanner.Text()); quit {
			s.printf("Goodbye!\n")
			return nil
		}
	}
}

// Execute runs one command line and reports whether the shell should exit
func (s *Shell) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit", "q":
		return true
	case "buy":
		err = s.place(ctx, core.Buy, args)
	case "sell":
		err = s.place(ctx, core.Sell, args)
	case "cancel":
		err = s.cancel(ctx, args)
	case "order":
		err = s.order(args)
	case "book", "state", "b":
		s.printBookState()
	case "best":
		s.printBest()
	case "depth":
		err = s.depthCommand(args)
	case "clear":
		s.svc.Reset(ctx)
		s.nextID = 1
		s.printf("Order book cleared.\n")
	case "help", "h":
		s.printHelp()
	default:
		err = fmt.Errorf("unknown command %q, type 'help' for available commands", fields[0])
	}

	if err != nil {
		s.printf("%s %v\n", s.red.Sprint("Error:"), err)
	}
	return false
}

var errUsage = errors.New("usage")

func (s *Shell) place(ctx context.Context, side core.Side, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: %s <price> <quantity> [id]", errUsage, strings.ToLower(side.String()))
	}

	inst := s.svc.Instrument()
	price, err := units.ParsePrice(args[0], inst)
	if err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}
	quantity, err := units.ParseQuantity(args[1], inst)
	if err != nil {
		return fmt.Errorf("invalid quantity: %w", err)
	}

	var id core.OrderID
	if len(args) == 3 {
		if id, err = parseID(args[2]); err != nil {
			return err
		}
	} else {
		id = s.allocateID()
	}

	trades, err := s.svc.PlaceOrder(ctx, side, price, quantity, id)
	if err != nil {
		return err
	}

	if len(trades) == 0 {
		s.printf("%s Order %d placed. No trades executed.\n", s.green.Sprint("OK"), id)
	} else {
		s.printf("%s Order %d executed! Trades:\n", s.yellow.Sprint("FILL"), id)
		for _, t := range trades {
			s.printf("  Trade: %s @ %s (maker: %d, taker: %d)\n",
				units.FormatQuantity(t.Quantity, inst),
				units.FormatPrice(t.Price, inst),
				t.MakerID, t.TakerID)
		}
	}
	s.printSummary()
	return nil
}

// allocateID returns the next automatic id that is not resting in the book
func (s *Shell) allocateID() core.OrderID {
	for {
		id := s.nextID
		s.nextID++
		if _, live := s.svc.Order(id); !live {
			return id
		}
	}
}

func (s *Shell) cancel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: cancel <id>", errUsage)
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := s.svc.CancelOrder(ctx, id); err != nil {
		return err
	}
	s.printf("Order %d cancelled.\n", id)
	s.printSummary()
	return nil
}

func (s *Shell) order(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: order <id>", errUsage)
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	o, ok := s.svc.Order(id)
	if !ok {
		return fmt.Errorf("order %d: %w", id, core.ErrOrderNotFound)
	}
	inst := s.svc.Instrument()
	s.printf("Order %d: %s %s @ %s (seq %d)\n",
		o.ID(), s.sideLabel(o.Side()),
		units.FormatQuantity(o.Quantity(), inst),
		units.FormatPrice(o.Price(), inst),
		o.Sequence())
	return nil
}

func (s *Shell) depthCommand(args []string) error {
	levels := s.depth
	if len(args) > 1 {
		return fmt.Errorf("%w: depth [levels]", errUsage)
	}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid level count %q", args[0])
		}
		levels = n
	}
	s.printDepth(levels)
	return nil
}

func (s *Shell) printBookState() {
	snap := s.svc.Snapshot(bookStateLevels)
	s.printf("\n%s\n", s.cyan.Sprint("Order Book State:"))
	s.printf("  Resting orders: %d, last sequence: %d\n", snap.Orders, snap.Sequence)
	s.printBest()
	s.printDepth(bookStateLevels)
	s.printf("\n")
}

func (s *Shell) printBest() {
	snap := s.svc.Snapshot(1)
	inst := s.svc.Instrument()
	bid, okBid := snap.BestBid()
	ask, okAsk := snap.BestAsk()

	if !okBid && !okAsk {
		s.printf("  Order book is empty\n")
		return
	}
	if okBid {
		s.printf("  Best BUY:  %s @ %s\n", units.FormatQuantity(bid.Quantity, inst), units.FormatPrice(bid.Price, inst))
	} else {
		s.printf("  Best BUY:  None\n")
	}
	if okAsk {
		s.printf("  Best SELL: %s @ %s\n", units.FormatQuantity(ask.Quantity, inst), units.FormatPrice(ask.Price, inst))
	} else {
		s.printf("  Best SELL: None\n")
	}
	if spread, ok := snap.Spread(); ok {
		s.printf("  Spread:    %s\n", units.FormatPrice(spread, inst))
	}
}

// printDepth renders asks highest first above bids highest first
func (s *Shell) printDepth(levels int) {
	bids, asks := s.svc.Depth(levels)
	if len(bids) == 0 && len(asks) == 0 {
		return
	}
	inst := s.svc.Instrument()

	s.printf("  Market Depth:\n")
	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "\t%s\t%s\t%s\t\n", s.cyan.Sprint("Side"), s.cyan.Sprint("Price"), s.cyan.Sprint("Quantity"))
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "\t%s\t%s\t%s\t\n", s.red.Sprint("ASK"),
			units.FormatPrice(asks[i].Price, inst), units.FormatQuantity(asks[i].Quantity, inst))
	}
	if len(asks) > 0 && len(bids) > 0 {
		fmt.Fprintf(w, "\t%s\t%s\t%s\t\n", "---", "---", "---")
	}
	for _, l := range bids {
		fmt.Fprintf(w, "\t%s\t%s\t%s\t\n", s.green.Sprint("BID"),
			units.FormatPrice(l.Price, inst), units.FormatQuantity(l.Quantity, inst))
	}
	_ = w.Flush()
}

// printSummary is the one line top of book shown after each mutation
func (s *Shell) printSummary() {
	snap := s.svc.Snapshot(1)
	inst := s.svc.Instrument()
	bid, okBid := snap.BestBid()
	ask, okAsk := snap.BestAsk()

	level := func(l core.PriceQuantity) string {
		return units.FormatQuantity(l.Quantity, inst) + " @ " + units.FormatPrice(l.Price, inst)
	}

	switch {
	case okBid && okAsk:
		spread, _ := snap.Spread()
		s.printf("Best: %s | %s | Spread: %s\n", level(bid), level(ask), units.FormatPrice(spread, inst))
	case okBid:
		s.printf("Best: %s | No asks\n", level(bid))
	case okAsk:
		s.printf("Best: No bids | %s\n", level(ask))
	default:
		s.printf("Order book is empty\n")
	}
}

func (s *Shell) printHelp() {
	s.printf("%s\n", s.cyan.Sprint("Available Commands:"))
	s.printf(`  buy <price> <quantity> [id]    - Place a buy order (e.g., buy 100.50 0.001)
  sell <price> <quantity> [id]   - Place a sell order (e.g., sell 100.25 0.0015)
  cancel <id>                    - Cancel a resting order
  order <id>                     - Show a resting order
  book | state | b               - Show current order book state
  best                           - Show best bid and ask prices
  depth [levels]                 - Show market depth (default: %d levels)
  clear                          - Clear the order book
  help | h                       - Show this help message
  quit | exit | q                - Exit the CLI

Prices and quantities use decimal format. IDs are auto-generated if not provided.
`, s.depth)
}

func (s *Shell) sideLabel(side core.Side) string {
	if side == core.Buy {
		return s.green.Sprint(side.String())
	}
	return s.red.Sprint(side.String())
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func parseID(s string) (core.OrderID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order id %q", s)
	}
	return core.OrderID(id), nil
}
