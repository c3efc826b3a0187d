package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/umbralabs/twophase/internal/coordinator"
	"github.com/umbralabs/twophase/internal/coordinator/txstore"
	"github.com/umbralabs/twophase/internal/fancy"
	"github.com/umbralabs/twophase/internal/participant"
	"github.com/umbralabs/twophase/internal/scenario"
	"github.com/umbralabs/twophase/internal/twopc"
	"github.com/urfave/cli/v3"
)

var demoCmd = &cli.Command{
	Name:  "demo",
	Usage: "Run a two-phase commit scenario end to end",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "scenario",
			Usage:   "Path to a TOML scenario file (built-in scenario when omitted)",
			Aliases: []string{"s"},
		},
		&cli.StringFlag{
			Name:  "state-dir",
			Usage: "Directory for persisted transaction records (in-memory when omitted)",
		},
		&cli.DurationFlag{
			Name:  "vote-timeout",
			Usage: "How long the coordinator waits for votes before rolling back",
			Value: 10 * time.Second,
		},
	},
	Action: runDemo,
}

func runDemo(ctx context.Context, cmd *cli.Command) error {
	handler, err := setupLogger(cmd)
	if err != nil {
		return cli.Exit(err, 1)
	}
	logger := slog.Default()

	scn := scenario.Default()
	if path := cmd.String("scenario"); path != "" {
		scn, err = scenario.LoadFile(path)
		if err != nil {
			return cli.Exit(err, 1)
		}
	}

	var store txstore.Store = txstore.NewMemoryStore(txstore.WithLogHandler(handler))
	if dir := cmd.String("state-dir"); dir != "" {
		fileStore, err := txstore.NewFileStore(dir, handler)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to open state dir: %w", err), 1)
		}
		store = fileStore
	}

	router := newMailboxRouter()
	outcomes := make(chan coordinator.Outcome, 1)

	orch, err := coordinator.NewOrchestrator(
		store,
		router,
		coordinator.WithLogHandler(handler),
		coordinator.WithNotifier(outcomeRelay(outcomes)),
		coordinator.WithVoteTimeout(cmd.Duration("vote-timeout")),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create orchestrator: %w", err), 1)
	}

	runner, err := coordinator.NewRunner(orch, coordinator.WithRunnerLogHandler(handler))
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create coordinator runner: %w", err), 1)
	}

	replies := &siphonReplies{siphon: runner.GetCommandSiphon()}

	runnables := []supervisor.Runnable{runner}
	workers := make(map[string]*participant.Runner, len(scn.Participants))
	for _, p := range scn.Participants {
		policy := participant.AlwaysCommit
		if p.Vote == scenario.VoteAbort {
			policy = participant.AlwaysAbort
		}

		worker, err := participant.NewRunner(p.Name, replies, policy,
			participant.WithLogHandler(handler))
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to create participant %s: %w", p.Name, err), 1)
		}
		router.register(p.Name, worker.Mailbox())
		workers[p.Name] = worker
		runnables = append(runnables, worker)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	super, err := supervisor.New(
		supervisor.WithRunnables(runnables...),
		supervisor.WithLogHandler(handler),
		supervisor.WithContext(runCtx),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create supervisor: %w", err), 1)
	}

	superErr := make(chan error, 1)
	go func() {
		superErr <- super.Run()
	}()

	if err := waitUntilRunning(runCtx, runner); err != nil {
		return cli.Exit(err, 1)
	}

	// Resume anything a previous run left unfinished before starting the
	// scenario's own transaction.
	if err := orch.Recover(runCtx); err != nil {
		logger.Warn("Recovery reported errors", "error", err)
	}

	txID, err := driveScenario(runCtx, runner.GetCommandSiphon(), scn, workers)
	if err != nil {
		cancel()
		<-superErr
		return cli.Exit(err, 1)
	}

	var outcome coordinator.Outcome
	select {
	case outcome = <-outcomes:
	case <-time.After(time.Minute):
		cancel()
		<-superErr
		return cli.Exit(errors.New("timed out waiting for transaction outcome"), 1)
	case <-runCtx.Done():
		<-superErr
		return cli.Exit(runCtx.Err(), 1)
	}

	logger.Info("Transaction finished", "id", txID, "outcome", outcome)
	printResults(orch, txID, scn, workers)

	cancel()
	if err := <-superErr; err != nil {
		return cli.Exit(fmt.Errorf("supervisor exited with error: %w", err), 1)
	}
	return nil
}

// driveScenario walks one transaction through the coordinator: begin, stage
// each participant's writes, then request the commit.
func driveScenario(
	ctx context.Context,
	siphon chan<- coordinator.Command,
	scn scenario.Scenario,
	workers map[string]*participant.Runner,
) (uuid.UUID, error) {
	txID, err := sendCommand(ctx, siphon, coordinator.Command{
		Kind:   coordinator.CmdBegin,
		Client: scn.Client,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, p := range scn.Participants {
		ops := make([]participant.Op, 0, len(p.Writes))
		for _, w := range p.Writes {
			ops = append(ops, participant.Op{Key: w.Key, Value: w.Value})
		}
		workers[p.Name].Stage(txID, ops)

		if _, err := sendCommand(ctx, siphon, coordinator.Command{
			Kind:        coordinator.CmdAddParticipant,
			TxID:        txID,
			Participant: p.Name,
		}); err != nil {
			return txID, fmt.Errorf("failed to enlist %s: %w", p.Name, err)
		}
	}

	if _, err := sendCommand(ctx, siphon, coordinator.Command{
		Kind: coordinator.CmdRequestCommit,
		TxID: txID,
	}); err != nil {
		return txID, fmt.Errorf("failed to request commit: %w", err)
	}
	return txID, nil
}

// sendCommand submits one command through the siphon and waits for its result.
func sendCommand(
	ctx context.Context,
	siphon chan<- coordinator.Command,
	cmd coordinator.Command,
) (uuid.UUID, error) {
	result := make(chan coordinator.CommandResult, 1)
	cmd.Result = result

	select {
	case siphon <- cmd:
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}

	select {
	case res := <-result:
		return res.TxID, res.Err
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

// waitUntilRunning blocks until the coordinator runner reports running.
func waitUntilRunning(ctx context.Context, runner *coordinator.Runner) error {
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if runner.IsRunning() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return errors.New("coordinator runner did not reach running state")
		case <-ticker.C:
		}
	}
}

// printResults renders the final transaction record and each participant's
// committed state as styled trees.
func printResults(
	orch *coordinator.Orchestrator,
	txID uuid.UUID,
	scn scenario.Scenario,
	workers map[string]*participant.Runner,
) {
	status, err := orch.Status(txID)
	if err == nil {
		phase, _ := status["phase"].(twopc.Phase)
		participants, _ := status["participants"].([]string)
		awaiting, _ := status["awaiting"].([]string)
		client, _ := status["client"].(string)

		fmt.Println(fancy.TransactionTree(
			txID.String(), client, string(phase), participants, awaiting))
	}

	for _, p := range scn.Participants {
		items := workers[p.Name].Store().Items()
		kvs := make([][2]string, 0, len(items))
		for _, item := range items {
			kvs = append(kvs, [2]string{item.Key, item.Value})
		}
		fmt.Println(fancy.StoreTree(p.Name, kvs))
	}
}
