package coordinator

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring the Orchestrator.
type Option func(*Orchestrator) error

// WithLogHandler sets a custom slog handler for the orchestrator and for
// the per-transaction log collectors.
func WithLogHandler(handler slog.Handler) Option {
	return func(o *Orchestrator) error {
		if handler != nil {
			o.handler = handler
			o.logger = slog.New(handler).WithGroup("coordinator.Orchestrator")
		}
		return nil
	}
}

// WithNotifier sets the notifier that receives terminal outcomes.
func WithNotifier(notifier Notifier) Option {
	return func(o *Orchestrator) error {
		o.notifier = notifier
		return nil
	}
}

// WithVoteTimeout bounds how long the orchestrator waits for votes before
// unilaterally rolling a transaction back. Zero disables the deadline.
func WithVoteTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) error {
		if timeout > 0 {
			o.voteTimeout = timeout
		}
		return nil
	}
}
