package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MessageSender publishes execution reports. The core package never sees
// it; the service layer hands reports to whichever driver is configured.
type MessageSender interface {
	SendReport(ctx context.Context, report *ExecutionReport) error
	Close() error
}

// ReportType names the book operation a report describes
type ReportType string

// Report types
const (
	ReportPlace  ReportType = "place"
	ReportCancel ReportType = "cancel"
)

// ExecutionReport is the message published after every accepted place or
// cancel. Amounts are minor units.
type ExecutionReport struct {
	Type      ReportType `json:"type"`
	OrderID   uint64     `json:"orderID"`
	Side      string     `json:"side"`
	Price     int64      `json:"price"`
	Quantity  int64      `json:"quantity"`
	Remaining int64      `json:"remaining"`
	Rested    bool       `json:"rested"`
	Sequence  uint64     `json:"sequence"`
	Trades    []Trade    `json:"trades,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Trade represents a single trade execution
type Trade struct {
	Sequence uint64 `json:"sequence"`
	MakerID  uint64 `json:"makerID"`
	TakerID  uint64 `json:"takerID"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

// Executed returns the total traded quantity of the report
func (r *ExecutionReport) Executed() int64 {
	var total int64
	for _, t := range r.Trades {
		total += t.Quantity
	}
	return total
}

// Encode serializes a report for the wire
func Encode(report *ExecutionReport) ([]byte, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution report: %w", err)
	}
	return data, nil
}

// Decode is the inverse of Encode
func Decode(data []byte) (*ExecutionReport, error) {
	report := &ExecutionReport{}
	if err := json.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution report: %w", err)
	}
	return report, nil
}
