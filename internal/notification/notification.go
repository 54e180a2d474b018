package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kharcha-app/kharcha/internal/domain"
)

// Notifier receives materialized ledger events after their unit of work commits.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

// LoggerNotifier writes events to the structured logger for the audit trail.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Notify writes the event to the structured logger.
func (n *LoggerNotifier) Notify(_ context.Context, event domain.Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("ledger event",
		slog.String("kind", string(event.Kind)),
		slog.String("owner_id", event.OwnerID),
		slog.String("caller_id", event.CallerID),
		slog.String("correlation_id", string(event.CorrelationID)),
		slog.String("net_delta", event.NetDelta().StringFixed(2)),
		slog.Int("wallets", len(event.Deltas)),
	)
	return nil
}

// Recorder keeps every event in memory. Used by tests and local tooling.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// Notify appends the event.
func (r *Recorder) Notify(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Deliver hands event to n and logs, rather than returns, a delivery failure:
// the ledger change has already committed.
func Deliver(ctx context.Context, n Notifier, logger *slog.Logger, event domain.Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, event); err != nil && logger != nil {
		logger.Warn("notify failed", slog.String("kind", string(event.Kind)), slog.String("correlation_id", string(event.CorrelationID)), slog.Any("error", err))
	}
}
