package coordinator

import "log/slog"

// RunnerOption is a functional option for configuring the Runner.
type RunnerOption func(*Runner) error

// WithRunnerLogHandler sets a custom slog handler for the Runner instance.
func WithRunnerLogHandler(handler slog.Handler) RunnerOption {
	return func(r *Runner) error {
		if handler != nil {
			r.logger = slog.New(handler).WithGroup("coordinator.Runner")
		}
		return nil
	}
}
