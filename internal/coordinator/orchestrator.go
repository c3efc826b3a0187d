// Package coordinator embeds the twopc state machine inside a coordinator:
// it owns one transaction per in-flight two-phase commit, persists a record
// after every applied transition, and derives the protocol requests that
// must be sent from NextAction. Because only persisted plain data is needed
// to resume, the coordinator can crash and recover without an event log.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-loglater"
	"github.com/umbralabs/twophase/internal/coordinator/txstore"
	"github.com/umbralabs/twophase/internal/twopc"
)

// DefaultCompletionPollInterval is how often WaitForCompletion re-checks
// for in-flight transactions.
const DefaultCompletionPollInterval = 10 * time.Millisecond

// Interface guard
var _ Processor = (*Orchestrator)(nil)

// tracked pairs a state machine value with its per-transaction logging.
type tracked struct {
	id     uuid.UUID
	client string
	tx     twopc.Transaction[string]

	// Logging with history tracking
	logger    *slog.Logger
	collector *loglater.LogCollector

	createdAt time.Time
	voteTimer *time.Timer
}

// Orchestrator drives two-phase-commit transactions. All event application
// is serialized under one mutex: each transition reads the entire prior
// transaction value, so the state machine requires a single writer.
type Orchestrator struct {
	store     txstore.Store
	messenger Messenger
	notifier  Notifier

	mu       sync.Mutex
	inflight map[uuid.UUID]*tracked

	logger  *slog.Logger
	handler slog.Handler

	// voteTimeout, when positive, bounds how long the orchestrator waits
	// for votes before unilaterally rolling the transaction back.
	voteTimeout time.Duration
}

// NewOrchestrator creates an orchestrator that persists records to store
// and delivers protocol requests through messenger.
func NewOrchestrator(
	store txstore.Store,
	messenger Messenger,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("record store cannot be nil")
	}
	if messenger == nil {
		return nil, errors.New("messenger cannot be nil")
	}

	o := &Orchestrator{
		store:     store,
		messenger: messenger,
		inflight:  make(map[uuid.UUID]*tracked),
		logger:    slog.Default().WithGroup("coordinator.Orchestrator"),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if o.handler == nil {
		o.handler = o.logger.Handler()
	}

	return o, nil
}

// Apply routes a command to the matching operation. Implements Processor.
func (o *Orchestrator) Apply(ctx context.Context, cmd Command) (uuid.UUID, error) {
	switch cmd.Kind {
	case CmdBegin:
		return o.Begin(ctx, cmd.Client, cmd.Participants)
	case CmdAddParticipant:
		return cmd.TxID, o.AddParticipant(ctx, cmd.TxID, cmd.Participant)
	case CmdRequestCommit:
		return cmd.TxID, o.RequestCommit(ctx, cmd.TxID)
	case CmdVoteCommit:
		return cmd.TxID, o.VoteCommit(ctx, cmd.TxID, cmd.Participant)
	case CmdVoteAbort:
		return cmd.TxID, o.VoteAbort(ctx, cmd.TxID, cmd.Participant)
	case CmdAckCommitted:
		return cmd.TxID, o.AckCommitted(ctx, cmd.TxID, cmd.Participant)
	case CmdAckRolledBack:
		return cmd.TxID, o.AckRolledBack(ctx, cmd.TxID, cmd.Participant)
	default:
		return cmd.TxID, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
}

// Begin starts tracking a new transaction with the given initial
// participants and returns its assigned ID.
func (o *Orchestrator) Begin(
	ctx context.Context,
	client string,
	participants []string,
) (uuid.UUID, error) {
	txID := uuid.Must(uuid.NewV6())

	// Per-transaction logger with a loglater history collector, so the
	// full lifecycle of one transaction can be played back later.
	collector := loglater.NewLogCollector(o.handler)
	logger := slog.New(collector).With("id", txID, "client", client)

	tr := &tracked{
		id:        txID,
		client:    client,
		tx:        twopc.New(participants, txID, client),
		logger:    logger,
		collector: collector,
		createdAt: time.Now(),
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.persistLocked(tr); err != nil {
		return uuid.Nil, err
	}
	o.inflight[txID] = tr

	tr.logger.Info("Transaction created", "participants", tr.tx.Participants())
	return txID, nil
}

// AddParticipant enlists a participant in a still-interactive transaction.
func (o *Orchestrator) AddParticipant(ctx context.Context, txID uuid.UUID, participant string) error {
	return o.applyEvent(ctx, txID, "AddParticipant", func(tx twopc.Transaction[string]) (twopc.Transaction[string], error) {
		return tx.AddParticipant(participant)
	})
}

// RequestCommit ends the interactive phase: the transaction enters voting
// and prepare requests go out to every participant.
func (o *Orchestrator) RequestCommit(ctx context.Context, txID uuid.UUID) error {
	return o.applyEvent(ctx, txID, "RequestCommit", func(tx twopc.Transaction[string]) (twopc.Transaction[string], error) {
		return tx.Prepare()
	})
}

// VoteCommit records a participant's commit vote.
func (o *Orchestrator) VoteCommit(ctx context.Context, txID uuid.UUID, participant string) error {
	return o.applyEvent(ctx, txID, "VoteCommit", func(tx twopc.Transaction[string]) (twopc.Transaction[string], error) {
		return tx.Prepared(participant)
	})
}

// VoteAbort records a participant's abort vote.
func (o *Orchestrator) VoteAbort(ctx context.Context, txID uuid.UUID, participant string) error {
	return o.applyEvent(ctx, txID, "VoteAbort", func(tx twopc.Transaction[string]) (twopc.Transaction[string], error) {
		return tx.Aborted(participant)
	})
}

// AckCommitted records a participant's commit acknowledgment.
func (o *Orchestrator) AckCommitted(ctx context.Context, txID uuid.UUID, participant string) error {
	return o.applyEvent(ctx, txID, "AckCommitted", func(tx twopc.Transaction[string]) (twopc.Transaction[string], error) {
		return tx.Committed(participant)
	})
}

// AckRolledBack records a participant's rollback acknowledgment.
func (o *Orchestrator) AckRolledBack(ctx context.Context, txID uuid.UUID, participant string) error {
	return o.applyEvent(ctx, txID, "AckRolledBack", func(tx twopc.Transaction[string]) (twopc.Transaction[string], error) {
		return tx.RolledBack(participant)
	})
}

// applyEvent applies one state machine transition under the single-writer
// lock, persists the new value, and dispatches protocol requests when the
// phase changed.
func (o *Orchestrator) applyEvent(
	ctx context.Context,
	txID uuid.UUID,
	op string,
	fn func(twopc.Transaction[string]) (twopc.Transaction[string], error),
) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	tr, ok := o.inflight[txID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, txID)
	}

	prevPhase := tr.tx.Phase()
	next, err := fn(tr.tx)
	if err != nil {
		if errors.Is(err, twopc.ErrInconsistentVote) {
			// A participant voted twice with conflicting outcomes. That is
			// a broken safety invariant, not a recoverable protocol event:
			// surface it loudly and abort the transaction.
			tr.logger.Error("Participant broke the vote-exactly-once contract",
				"op", op, "error", err)
			o.rollBackUnilaterallyLocked(ctx, tr, "inconsistent vote")
		}
		return err
	}

	tr.tx = next
	if err := o.persistLocked(tr); err != nil {
		return err
	}

	tr.logger.Debug("Applied event", "op", op, "phase", tr.tx.Phase())

	if tr.tx.Phase() != prevPhase {
		o.phaseChangedLocked(ctx, tr)
	}
	return nil
}

// phaseChangedLocked reacts to a phase transition: it re-dispatches the
// outstanding requests, manages the vote deadline, and on a terminal phase
// notifies the client and stops tracking the transaction.
func (o *Orchestrator) phaseChangedLocked(ctx context.Context, tr *tracked) {
	if tr.voteTimer != nil {
		tr.voteTimer.Stop()
		tr.voteTimer = nil
	}

	o.dispatchLocked(ctx, tr)

	switch tr.tx.Phase() {
	case twopc.PhaseVoting:
		if o.voteTimeout > 0 {
			txID := tr.id
			tr.voteTimer = time.AfterFunc(o.voteTimeout, func() {
				o.voteDeadlineExpired(txID)
			})
		}

	case twopc.PhaseCommitted, twopc.PhaseAborted:
		outcome := OutcomeAborted
		if tr.tx.Phase() == twopc.PhaseCommitted {
			outcome = OutcomeCommitted
		}
		tr.logger.Info("Transaction completed",
			"outcome", outcome,
			"duration", time.Since(tr.createdAt))
		delete(o.inflight, tr.id)

		if o.notifier != nil {
			// Notification is fire-and-forget so a slow client cannot
			// stall event application.
			go o.notifier.NotifyOutcome(ctx, tr.id, tr.client, outcome)
		}
	}
}

// dispatchLocked sends the protocol requests NextAction says are
// outstanding. Send failures are logged, not returned: delivery is
// at-least-once and recovery re-sends whatever is still outstanding.
func (o *Orchestrator) dispatchLocked(ctx context.Context, tr *tracked) {
	action := tr.tx.NextAction()

	var send func(context.Context, uuid.UUID, string) error
	switch action.Kind {
	case twopc.ActionVote:
		send = o.messenger.SendPrepare
	case twopc.ActionCommit:
		send = o.messenger.SendCommit
	case twopc.ActionRollBack:
		send = o.messenger.SendRollback
	default:
		return
	}

	// Deterministic ordering for reproducibility and testing.
	awaiting := append([]string(nil), action.Awaiting...)
	sort.Strings(awaiting)

	for _, participant := range awaiting {
		if err := send(ctx, tr.id, participant); err != nil {
			tr.logger.Error("Failed to send protocol request",
				"action", action.Kind, "participant", participant, "error", err)
		}
	}
}

// rollBackUnilaterallyLocked drives a voting transaction to rolling_back by
// recording an abort on behalf of a still-awaiting participant. This is the
// coordinator's own decision (vote deadline expired, or a safety violation
// was detected), made before that participant voted.
func (o *Orchestrator) rollBackUnilaterallyLocked(ctx context.Context, tr *tracked, reason string) {
	if tr.tx.Phase() != twopc.PhaseVoting {
		return
	}

	awaiting := tr.tx.Awaiting()
	if len(awaiting) == 0 {
		return
	}
	sort.Strings(awaiting)

	tr.logger.Warn("Rolling back unilaterally", "reason", reason, "onBehalfOf", awaiting[0])

	next, err := tr.tx.Aborted(awaiting[0])
	if err != nil {
		tr.logger.Error("Failed to roll back unilaterally", "error", err)
		return
	}
	tr.tx = next

	if err := o.persistLocked(tr); err != nil {
		tr.logger.Error("Failed to persist unilateral rollback", "error", err)
	}
	o.phaseChangedLocked(ctx, tr)
}

// voteDeadlineExpired fires when a transaction stayed in voting past the
// configured deadline.
func (o *Orchestrator) voteDeadlineExpired(txID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	tr, ok := o.inflight[txID]
	if !ok || tr.tx.Phase() != twopc.PhaseVoting {
		return
	}
	o.rollBackUnilaterallyLocked(context.Background(), tr, "vote deadline expired")
}

// persistLocked saves the current record for the transaction.
func (o *Orchestrator) persistLocked(tr *tracked) error {
	rec := txstore.Record{
		ID:        tr.id,
		Client:    tr.client,
		Snapshot:  tr.tx.Snapshot(),
		UpdatedAt: time.Now(),
	}
	if err := o.store.Save(rec); err != nil {
		return fmt.Errorf("failed to persist transaction %s: %w", tr.id, err)
	}
	return nil
}

// Recover reloads persisted records, restores the non-terminal ones, and
// re-sends exactly the requests NextAction derives as outstanding. No event
// replay is needed: the snapshot alone determines the remaining work.
func (o *Orchestrator) Recover(ctx context.Context) error {
	records, err := o.store.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	recovered := 0
	for _, rec := range records {
		if rec.Terminal() {
			continue
		}
		if _, tracked := o.inflight[rec.ID]; tracked {
			continue
		}

		tx, err := twopc.Restore(rec.Snapshot, rec.ID, rec.Client)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", rec.ID, err))
			continue
		}

		collector := loglater.NewLogCollector(o.handler)
		logger := slog.New(collector).With("id", rec.ID, "client", rec.Client)

		tr := &tracked{
			id:        rec.ID,
			client:    rec.Client,
			tx:        tx,
			logger:    logger,
			collector: collector,
			createdAt: rec.UpdatedAt,
		}
		o.inflight[rec.ID] = tr
		recovered++

		tr.logger.Info("Recovered transaction", "phase", tx.Phase())
		o.dispatchLocked(ctx, tr)

		if tx.Phase() == twopc.PhaseVoting && o.voteTimeout > 0 {
			txID := rec.ID
			tr.voteTimer = time.AfterFunc(o.voteTimeout, func() {
				o.voteDeadlineExpired(txID)
			})
		}
	}

	o.logger.Info("Recovery finished", "recovered", recovered, "records", len(records))
	return errors.Join(errs...)
}

// Status returns a diagnostic view of a transaction, checking in-flight
// state first and falling back to the persisted record.
func (o *Orchestrator) Status(txID uuid.UUID) (map[string]any, error) {
	o.mu.Lock()
	if tr, ok := o.inflight[txID]; ok {
		status := map[string]any{
			"id":           tr.id.String(),
			"client":       tr.client,
			"phase":        tr.tx.Phase(),
			"participants": tr.tx.Participants(),
			"awaiting":     tr.tx.Awaiting(),
			"createdAt":    tr.createdAt,
		}
		o.mu.Unlock()
		return status, nil
	}
	o.mu.Unlock()

	rec, ok, err := o.store.Load(txID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txID)
	}
	return map[string]any{
		"id":           rec.ID.String(),
		"client":       rec.Client,
		"phase":        rec.Snapshot.Phase,
		"participants": rec.Snapshot.Participants,
		"awaiting":     rec.Snapshot.Awaiting,
		"updatedAt":    rec.UpdatedAt,
	}, nil
}

// InflightCount returns the number of transactions still being tracked.
func (o *Orchestrator) InflightCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

// PlaybackLogs plays back the captured log history of an in-flight
// transaction to the given handler.
func (o *Orchestrator) PlaybackLogs(txID uuid.UUID, handler slog.Handler) error {
	o.mu.Lock()
	tr, ok := o.inflight[txID]
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, txID)
	}
	return tr.collector.PlayLogs(handler)
}

// WaitForCompletion blocks until no transactions are in flight or the
// context is done.
func (o *Orchestrator) WaitForCompletion(ctx context.Context) error {
	ticker := time.NewTicker(DefaultCompletionPollInterval)
	defer ticker.Stop()

	for {
		if o.InflightCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Continue waiting
		}
	}
}
