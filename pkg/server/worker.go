package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/logging"
	"github.com/erain9/limitbook/pkg/otel"
)

// ErrWorkerStopped is returned for commands submitted after Stop or after
// Run has returned
var ErrWorkerStopped = errors.New("worker stopped")

// CommandKind selects the book operation a Command performs
type CommandKind int

// Command kinds
const (
	CommandPlace CommandKind = iota
	CommandCancel
)

// String returns the command name used in logs and metrics
func (k CommandKind) String() string {
	switch k {
	case CommandPlace:
		return "place"
	case CommandCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Command is one serialized mutation
type Command struct {
	Kind     CommandKind
	Side     core.Side
	Price    core.Price
	Quantity core.Quantity
	ID       core.OrderID
}

// PlaceCommand builds a place command
func PlaceCommand(side core.Side, price core.Price, quantity core.Quantity, id core.OrderID) Command {
	return Command{Kind: CommandPlace, Side: side, Price: price, Quantity: quantity, ID: id}
}

// CancelCommand builds a cancel command
func CancelCommand(id core.OrderID) Command {
	return Command{Kind: CommandCancel, ID: id}
}

// Result is the outcome of one command
type Result struct {
	Trades []core.Trade
	Err    error
}

type request struct {
	ctx   context.Context
	cmd   Command
	reply chan Result
}

// Worker is the single goroutine applying commands to a BookService in
// submission order
type Worker struct {
	service *BookService
	queue   chan request
	metrics *otel.CommandMetrics

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// NewWorker creates a worker with a bounded queue. metrics may be nil.
func NewWorker(service *BookService, queueSize int, metrics *otel.CommandMetrics) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Worker{
		service: service,
		queue:   make(chan request, queueSize),
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Submit enqueues cmd and waits for its result. The returned error is set
// when the command never ran; book errors are reported in Result.Err.
func (w *Worker) Submit(ctx context.Context, cmd Command) (Result, error) {
	req := request{ctx: ctx, cmd: cmd, reply: make(chan Result, 1)}

	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		return Result{}, ErrWorkerStopped
	}
	select {
	case w.queue <- req:
		w.metrics.AddQueued(ctx, 1)
	case <-ctx.Done():
		w.mu.RUnlock()
		return Result{}, ctx.Err()
	case <-w.done:
		w.mu.RUnlock()
		return Result{}, ErrWorkerStopped
	}
	w.mu.RUnlock()

	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-w.done:
		// Run may have answered just before exiting
		select {
		case res := <-req.reply:
			return res, nil
		default:
			return Result{}, ErrWorkerStopped
		}
	}
}

// PlaceOrder is Submit for a place command
func (w *Worker) PlaceOrder(ctx context.Context, side core.Side, price core.Price, quantity core.Quantity, id core.OrderID) ([]core.Trade, error) {
	res, err := w.Submit(ctx, PlaceCommand(side, price, quantity, id))
	if err != nil {
		return nil, err
	}
	return res.Trades, res.Err
}

// CancelOrder is Submit for a cancel command
func (w *Worker) CancelOrder(ctx context.Context, id core.OrderID) error {
	res, err := w.Submit(ctx, CancelCommand(id))
	if err != nil {
		return err
	}
	return res.Err
}

// Run applies queued commands one at a time until Stop is called and the
// queue is drained, or ctx ends. It must be called once.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	logger := logging.FromContext(ctx)
	logger.Info().Int("queue_size", cap(w.queue)).Msg("Worker started")

	for {
		select {
		case req, ok := <-w.queue:
			if !ok {
				logger.Info().Msg("Worker stopped")
				return nil
			}
			w.metrics.AddQueued(ctx, -1)
			req.reply <- w.apply(req)
		case <-ctx.Done():
			logger.Info().Msg("Worker context done")
			return ctx.Err()
		}
	}
}

func (w *Worker) apply(req request) Result {
	if err := req.ctx.Err(); err != nil {
		return Result{Err: err}
	}

	ctx, span := otel.StartOrderSpan(req.ctx, otel.SpanWorkerCommand,
		attribute.String(otel.AttributeCommand, req.cmd.Kind.String()),
	)
	start := time.Now()

	var res Result
	switch req.cmd.Kind {
	case CommandPlace:
		res.Trades, res.Err = w.service.PlaceOrder(ctx, req.cmd.Side, req.cmd.Price, req.cmd.Quantity, req.cmd.ID)
	case CommandCancel:
		res.Err = w.service.CancelOrder(ctx, req.cmd.ID)
	default:
		res.Err = fmt.Errorf("unknown command kind %d", req.cmd.Kind)
	}

	w.metrics.RecordCommand(ctx, req.cmd.Kind.String(), time.Since(start), res.Err)
	logging.LogCommand(ctx, req.cmd.Kind.String(), start, res.Err)
	otel.EndSpan(span, res.Err)
	return res
}

// Stop closes the queue. Commands already queued still run.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.queue)
}

// Done is closed when Run returns
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
