package participant

import "log/slog"

// RunnerOption is a functional option for configuring a participant Runner.
type RunnerOption func(*Runner) error

// WithLogHandler sets a custom slog handler for the participant.
func WithLogHandler(handler slog.Handler) RunnerOption {
	return func(r *Runner) error {
		if handler != nil {
			r.logger = slog.New(handler).WithGroup("participant." + r.name)
		}
		return nil
	}
}

// WithMailboxSize sets the mailbox buffer size.
func WithMailboxSize(size int) RunnerOption {
	return func(r *Runner) error {
		if size > 0 {
			r.mailbox = make(chan Request, size)
		}
		return nil
	}
}
