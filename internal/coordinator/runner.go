package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/umbralabs/twophase/internal/coordinator/finitestate"
)

const (
	// shutdownTimeout is the maximum time to wait for in-flight
	// transactions to complete during shutdown.
	shutdownTimeout = 2 * time.Minute
)

// Interface guards
var (
	_ supervisor.Runnable  = (*Runner)(nil)
	_ supervisor.Stateable = (*Runner)(nil)
)

// Runner owns the command siphon for a Processor. Commands are pulled from
// the siphon one at a time, which enforces the single-writer discipline the
// state machine requires even when many producers send commands.
type Runner struct {
	// Command siphon channel for receiving coordinator commands
	cmdSiphon chan Command

	// Processor that applies the commands
	processor Processor

	// State management
	fsm finitestate.Machine

	// Context management
	ctx    context.Context
	cancel context.CancelFunc

	// Options
	logger *slog.Logger
}

// NewRunner creates a new coordinator runner with the siphon pattern.
func NewRunner(processor Processor, opts ...RunnerOption) (*Runner, error) {
	if processor == nil {
		return nil, errors.New("processor cannot be nil")
	}

	r := &Runner{
		processor: processor,
		logger:    slog.Default().WithGroup("coordinator.Runner"),
		// this should almost always be unbuffered
		cmdSiphon: make(chan Command),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Create FSM
	fsmLogger := r.logger.WithGroup("fsm")
	machine, err := finitestate.New(fsmLogger.Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create FSM: %w", err)
	}
	r.fsm = machine

	return r, nil
}

// GetCommandSiphon returns the command siphon for sending commands. The
// channel is unbuffered, so sends block until the runner is ready.
func (r *Runner) GetCommandSiphon() chan<- Command {
	return r.cmdSiphon
}

// Run implements the supervisor.Runnable interface.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.logger.WithGroup("Run")
	logger.Debug("Starting coordinator")

	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting: %w", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	r.ctx = runCtx
	r.cancel = runCancel
	defer runCancel()

	// Transition to running - we're ready to receive on the siphon
	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running: %w", err)
	}

	logger.Debug("Coordinator ready")

	for {
		select {
		case <-runCtx.Done():
			logger.Debug("Run context cancelled")

			// Create fresh context for graceful shutdown since runCtx is canceled
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return r.shutdown(shutdownCtx) //nolint:contextcheck
		case cmd, ok := <-r.cmdSiphon:
			if !ok {
				logger.Debug("Command siphon closed")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return r.shutdown(shutdownCtx) //nolint:contextcheck
			}
			r.processCommand(runCtx, cmd)
		}
	}
}

// Stop signals the coordinator to stop.
func (r *Runner) Stop() {
	r.logger.Debug("Stop called")
	if r.cancel != nil {
		r.cancel()
	}
}

// processCommand applies one command and reports the result to the sender
// when a result channel was provided.
func (r *Runner) processCommand(ctx context.Context, cmd Command) {
	logger := r.logger.WithGroup("processCommand")

	txID, err := r.processor.Apply(ctx, cmd)
	if err != nil {
		logger.Error("Failed to apply command",
			"kind", cmd.Kind, "id", txID, "error", err)
	} else {
		logger.Debug("Applied command", "kind", cmd.Kind, "id", txID)
	}

	if cmd.Result != nil {
		select {
		case cmd.Result <- CommandResult{TxID: txID, Err: err}:
		case <-ctx.Done():
		}
	}
}

// shutdown performs graceful shutdown of the coordinator.
func (r *Runner) shutdown(ctx context.Context) error {
	logger := r.logger.WithGroup("shutdown")
	logger.Debug("Coordinator shutting down")

	if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
		logger.Error("Failed to transition to stopping", "error", err)
	}

	// Wait for in-flight transactions to complete before shutting down
	logger.Debug("Waiting for in-flight transactions to complete")

	if err := r.processor.WaitForCompletion(ctx); err != nil {
		logger.Error("Failed to wait for transaction completion during shutdown", "error", err)
		return err
	}
	logger.Debug("Transaction completion wait finished")

	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		logger.Error("Failed to transition to stopped", "error", err)
	}

	return nil
}

// GetState returns the current lifecycle state.
func (r *Runner) GetState() string {
	return r.fsm.GetState()
}

// IsRunning reports whether the runner is in the running state.
func (r *Runner) IsRunning() bool {
	return r.fsm.GetState() == finitestate.StatusRunning
}

// GetStateChan returns a channel that emits lifecycle states.
func (r *Runner) GetStateChan(ctx context.Context) <-chan string {
	return r.fsm.GetStateChan(ctx)
}

// String returns the name of this runnable component.
func (r *Runner) String() string {
	return "coordinator.Runner"
}
