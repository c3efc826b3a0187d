package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/umbralabs/twophase/internal/coordinator"
	"github.com/umbralabs/twophase/internal/participant"
)

// Interface guards
var (
	_ coordinator.Messenger = (*mailboxRouter)(nil)
	_ participant.Replies   = (*siphonReplies)(nil)
	_ coordinator.Notifier  = (outcomeRelay)(nil)
)

// mailboxRouter delivers coordinator requests to in-process participants by
// name. Delivery is asynchronous: requests land in the participant's mailbox
// and replies come back later as coordinator commands.
type mailboxRouter struct {
	mu        sync.RWMutex
	mailboxes map[string]chan<- participant.Request
}

func newMailboxRouter() *mailboxRouter {
	return &mailboxRouter{
		mailboxes: make(map[string]chan<- participant.Request),
	}
}

func (m *mailboxRouter) register(name string, mailbox chan<- participant.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mailboxes[name] = mailbox
}

func (m *mailboxRouter) deliver(ctx context.Context, name string, req participant.Request) error {
	m.mu.RLock()
	mailbox, ok := m.mailboxes[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no mailbox registered for participant %q", name)
	}

	select {
	case mailbox <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mailboxRouter) SendPrepare(ctx context.Context, txID uuid.UUID, name string) error {
	return m.deliver(ctx, name, participant.Request{Kind: participant.RequestPrepare, TxID: txID})
}

func (m *mailboxRouter) SendCommit(ctx context.Context, txID uuid.UUID, name string) error {
	return m.deliver(ctx, name, participant.Request{Kind: participant.RequestCommit, TxID: txID})
}

func (m *mailboxRouter) SendRollback(ctx context.Context, txID uuid.UUID, name string) error {
	return m.deliver(ctx, name, participant.Request{Kind: participant.RequestRollback, TxID: txID})
}

// siphonReplies turns participant votes and acknowledgments into coordinator
// commands on the runner's siphon.
type siphonReplies struct {
	siphon chan<- coordinator.Command
}

func (s *siphonReplies) submit(ctx context.Context, cmd coordinator.Command) error {
	select {
	case s.siphon <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *siphonReplies) VoteCommit(ctx context.Context, txID uuid.UUID, name string) error {
	return s.submit(ctx, coordinator.Command{
		Kind: coordinator.CmdVoteCommit, TxID: txID, Participant: name,
	})
}

func (s *siphonReplies) VoteAbort(ctx context.Context, txID uuid.UUID, name string) error {
	return s.submit(ctx, coordinator.Command{
		Kind: coordinator.CmdVoteAbort, TxID: txID, Participant: name,
	})
}

func (s *siphonReplies) AckCommitted(ctx context.Context, txID uuid.UUID, name string) error {
	return s.submit(ctx, coordinator.Command{
		Kind: coordinator.CmdAckCommitted, TxID: txID, Participant: name,
	})
}

func (s *siphonReplies) AckRolledBack(ctx context.Context, txID uuid.UUID, name string) error {
	return s.submit(ctx, coordinator.Command{
		Kind: coordinator.CmdAckRolledBack, TxID: txID, Participant: name,
	})
}

// outcomeRelay forwards the transaction outcome to the demo's wait channel.
type outcomeRelay chan<- coordinator.Outcome

func (r outcomeRelay) NotifyOutcome(
	_ context.Context,
	_ uuid.UUID,
	_ string,
	outcome coordinator.Outcome,
) {
	select {
	case r <- outcome:
	default:
	}
}
