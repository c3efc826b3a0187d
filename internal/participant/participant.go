// Package participant implements an in-process two-phase-commit
// participant: it stages writes per transaction, votes on prepare requests,
// and applies or discards the staged writes on the coordinator's decision.
//
// Each participant owns a mailbox and processes one request at a time from
// its own goroutine; all communication with the coordinator is explicit
// message passing.
package participant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-supervisor/supervisor"
)

// Interface guard
var _ supervisor.Runnable = (*Runner)(nil)

// Op is one staged key/value write.
type Op struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RequestKind identifies a coordinator request delivered to a participant.
type RequestKind string

const (
	RequestPrepare  RequestKind = "prepare"
	RequestCommit   RequestKind = "commit"
	RequestRollback RequestKind = "rollback"
)

// Request is one coordinator request in the participant's mailbox.
type Request struct {
	Kind RequestKind
	TxID uuid.UUID
}

// Replies carries the participant's votes and acknowledgments back to the
// coordinator. The coordinator orchestrator satisfies this directly.
type Replies interface {
	VoteCommit(ctx context.Context, txID uuid.UUID, participant string) error
	VoteAbort(ctx context.Context, txID uuid.UUID, participant string) error
	AckCommitted(ctx context.Context, txID uuid.UUID, participant string) error
	AckRolledBack(ctx context.Context, txID uuid.UUID, participant string) error
}

// VotePolicy decides how the participant votes on a prepare request. A nil
// return votes commit; an error votes abort with that reason.
type VotePolicy func(txID uuid.UUID, staged []Op) error

// AlwaysCommit votes commit unconditionally.
func AlwaysCommit(uuid.UUID, []Op) error {
	return nil
}

// AlwaysAbort votes abort unconditionally.
func AlwaysAbort(uuid.UUID, []Op) error {
	return errors.New("participant refuses to commit")
}

// Runner is one participant: a named mailbox-driven worker over a staged
// write buffer and a committed store.
type Runner struct {
	name    string
	mailbox chan Request
	replies Replies
	policy  VotePolicy
	store   *Store
	logger  *slog.Logger

	// staged holds per-transaction writes awaiting the global decision.
	mu     sync.Mutex
	staged map[uuid.UUID][]Op

	cancel context.CancelFunc
}

// NewRunner creates a participant with the given name, reply channel and
// vote policy.
func NewRunner(name string, replies Replies, policy VotePolicy, opts ...RunnerOption) (*Runner, error) {
	if name == "" {
		return nil, errors.New("participant name required")
	}
	if replies == nil {
		return nil, errors.New("replies cannot be nil")
	}
	if policy == nil {
		policy = AlwaysCommit
	}

	r := &Runner{
		name:    name,
		mailbox: make(chan Request, 16),
		replies: replies,
		policy:  policy,
		store:   NewStore(),
		staged:  make(map[uuid.UUID][]Op),
		logger:  slog.Default().WithGroup("participant." + name),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return r, nil
}

// Name returns the participant's name, which is its identity in the
// coordinator's participant set.
func (r *Runner) Name() string {
	return r.name
}

// Store returns the participant's committed state.
func (r *Runner) Store() *Store {
	return r.store
}

// Mailbox returns the channel coordinator requests are delivered on.
func (r *Runner) Mailbox() chan<- Request {
	return r.mailbox
}

// Stage buffers writes for the transaction. They stay invisible until the
// coordinator's commit request applies them.
func (r *Runner) Stage(txID uuid.UUID, ops []Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged[txID] = append(r.staged[txID], ops...)
}

// Run implements the supervisor.Runnable interface: it processes mailbox
// requests one at a time until the context is done.
func (r *Runner) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	defer cancel()

	r.logger.Debug("Participant ready")

	for {
		select {
		case <-runCtx.Done():
			r.logger.Debug("Participant stopping")
			return nil
		case req := <-r.mailbox:
			r.handle(runCtx, req)
		}
	}
}

// Stop signals the participant to stop.
func (r *Runner) Stop() {
	r.logger.Debug("Stop called")
	if r.cancel != nil {
		r.cancel()
	}
}

// String returns the name of this runnable component.
func (r *Runner) String() string {
	return "participant." + r.name
}

func (r *Runner) handle(ctx context.Context, req Request) {
	logger := r.logger.With("id", req.TxID)

	switch req.Kind {
	case RequestPrepare:
		r.mu.Lock()
		staged := r.staged[req.TxID]
		r.mu.Unlock()

		if err := r.policy(req.TxID, staged); err != nil {
			logger.Info("Voting abort", "reason", err)
			if err := r.replies.VoteAbort(ctx, req.TxID, r.name); err != nil {
				logger.Error("Failed to deliver abort vote", "error", err)
			}
			return
		}
		logger.Debug("Voting commit", "stagedOps", len(staged))
		if err := r.replies.VoteCommit(ctx, req.TxID, r.name); err != nil {
			logger.Error("Failed to deliver commit vote", "error", err)
		}

	case RequestCommit:
		r.mu.Lock()
		staged, ok := r.staged[req.TxID]
		delete(r.staged, req.TxID)
		r.mu.Unlock()

		// A duplicate commit request finds nothing staged; the ack is
		// still sent so the coordinator can stop waiting.
		if ok {
			r.store.Apply(staged)
			logger.Info("Applied staged writes", "ops", len(staged))
		}
		if err := r.replies.AckCommitted(ctx, req.TxID, r.name); err != nil {
			logger.Error("Failed to deliver commit acknowledgment", "error", err)
		}

	case RequestRollback:
		r.mu.Lock()
		staged := r.staged[req.TxID]
		delete(r.staged, req.TxID)
		r.mu.Unlock()

		if len(staged) > 0 {
			logger.Info("Discarded staged writes", "ops", len(staged))
		}
		if err := r.replies.AckRolledBack(ctx, req.TxID, r.name); err != nil {
			logger.Error("Failed to deliver rollback acknowledgment", "error", err)
		}

	default:
		logger.Error("Unknown request kind", "kind", req.Kind)
	}
}
