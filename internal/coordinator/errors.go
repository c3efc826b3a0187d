package coordinator

import "errors"

var (
	// ErrTransactionNotFound indicates the command referenced a transaction
	// the coordinator is not tracking.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrUnknownCommand indicates a command with an unrecognized kind.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrShuttingDown indicates the runner is no longer accepting commands.
	ErrShuttingDown = errors.New("coordinator is shutting down")
)
