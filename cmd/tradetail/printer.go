package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/messaging"
	"github.com/erain9/limitbook/pkg/units"
)

// Printer renders execution reports as they arrive
type Printer struct {
	mu         sync.Mutex
	out        io.Writer
	instrument core.Instrument
	lastSeq    uint64

	buy   *color.Color
	sell  *color.Color
	trade *color.Color
	warn  *color.Color
}

// NewPrinter creates a printer formatting amounts for instrument
func NewPrinter(out io.Writer, instrument core.Instrument, colored bool) *Printer {
	p := &Printer{
		out:        out,
		instrument: instrument,
		buy:        color.New(color.FgGreen),
		sell:       color.New(color.FgRed),
		trade:      color.New(color.FgYellow),
		warn:       color.New(color.FgMagenta),
	}
	for _, c := range []*color.Color{p.buy, p.sell, p.trade, p.warn} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Handle prints one report. Reports are published outside the book lock, so
// a report may arrive after a later one; those are flagged.
func (p *Printer) Handle(r *messaging.ExecutionReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.Sequence < p.lastSeq {
		fmt.Fprintf(p.out, "%s seq %d arrived after seq %d\n", p.warn.Sprint("reordered"), r.Sequence, p.lastSeq)
	} else {
		p.lastSeq = r.Sequence
	}

	side := p.sell.Sprint(r.Side)
	if r.Side == core.Buy.String() {
		side = p.buy.Sprint(r.Side)
	}
	price := units.FormatPrice(core.Price(r.Price), p.instrument)

	switch r.Type {
	case messaging.ReportCancel:
		fmt.Fprintf(p.out, "[%d] %s CANCEL #%d %s @ %s\n", r.Sequence, side, r.OrderID,
			units.FormatQuantity(core.Quantity(r.Quantity), p.instrument), price)
	default:
		status := "filled"
		if r.Rested {
			status = "rested " + units.FormatQuantity(core.Quantity(r.Remaining), p.instrument)
		}
		fmt.Fprintf(p.out, "[%d] %s #%d %s @ %s, %s\n", r.Sequence, side, r.OrderID,
			units.FormatQuantity(core.Quantity(r.Quantity), p.instrument), price, status)
	}

	for _, t := range r.Trades {
		fmt.Fprintf(p.out, "    %s [%d] %s @ %s (maker: %d, taker: %d)\n",
			p.trade.Sprint("trade"), t.Sequence,
			units.FormatQuantity(core.Quantity(t.Quantity), p.instrument),
			units.FormatPrice(core.Price(t.Price), p.instrument),
			t.MakerID, t.TakerID)
	}
	return nil
}
