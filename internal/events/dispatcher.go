package events

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/rudolf-ledger/internal/logging"
)

// Sink receives the notifications of one committed call, in emission order
type Sink interface {
	Name() string
	Handle(ctx context.Context, evs []Event) error
}

// Dispatcher fans notifications out to every registered sink. A failing
// sink does not prevent delivery to the others.
type Dispatcher struct {
	sinks  []Sink
	logger *logging.Logger
}

// NewDispatcher creates a dispatcher over sinks
func NewDispatcher(logger *logging.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Register adds a sink
func (d *Dispatcher) Register(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Sinks returns the registered sink names
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch delivers evs to every sink and returns the combined error
func (d *Dispatcher) Dispatch(ctx context.Context, evs []Event) error {
	if len(evs) == 0 {
		return nil
	}

	var err error
	for _, s := range d.sinks {
		if sinkErr := s.Handle(ctx, evs); sinkErr != nil {
			d.logger.WithFields(map[string]interface{}{
				"sink":   s.Name(),
				"events": len(evs),
			}).ErrorWithErr("Event dispatch failed", sinkErr)
			err = multierr.Append(err, fmt.Errorf("sink %s: %w", s.Name(), sinkErr))
		}
	}
	return err
}

// LogSink writes every notification to the logger at debug level
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a log sink
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name implements Sink
func (s *LogSink) Name() string { return "log" }

// Handle implements Sink
func (s *LogSink) Handle(_ context.Context, evs []Event) error {
	for _, e := range evs {
		fields := map[string]interface{}{
			"event_id":   e.ID.String(),
			"kind":       string(e.Kind),
			"block_time": e.BlockTime,
		}
		if e.From != nil {
			fields["from"] = e.From.Hex()
		}
		if e.To != nil {
			fields["to"] = e.To.Hex()
		}
		if e.Account != nil {
			fields["account"] = e.Account.Hex()
		}
		if e.Amount != "" {
			fields["amount"] = e.Amount
		}
		if e.SnapshotID != 0 {
			fields["snapshot_id"] = e.SnapshotID
		}
		if e.Year != 0 {
			fields["year"] = e.Year
		}
		s.logger.WithFields(fields).Debug("Token event")
	}
	return nil
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, evs []Event) error
}

// Name implements Sink
func (f SinkFunc) Name() string { return f.SinkName }

// Handle implements Sink
func (f SinkFunc) Handle(ctx context.Context, evs []Event) error { return f.Fn(ctx, evs) }
