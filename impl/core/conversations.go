package core

import (
	"AgentDesk/entity"
	"AgentDesk/internal/conversation"
	"AgentDesk/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ListConversations loads and groups the documents of one agent in a date
// window. Unread counts are relative to the calling operator's receipts.
func (c *Core) ListConversations(ctx context.Context, op *entity.Operator, agentName string, from, to time.Time) ([]entity.Conversation, error) {
	agent, err := c.agentByName(ctx, op, agentName)
	if err != nil {
		return nil, err
	}
	if err = c.requireStore(); err != nil {
		return nil, err
	}
	if !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: to is before from", entity.ErrValidation)
	}

	raw, err := c.store.FindDocuments(ctx, agentName, from, to)
	if err != nil {
		return nil, err
	}
	conversations := conversation.Group(conversation.Within(conversation.NormalizeAll(raw), from, to))

	receipts := map[string]time.Time{}
	if agent != nil && c.repo != nil {
		receipts, err = c.repo.GetReadReceipts(ctx, agent.ID, op.Username)
		if err != nil {
			c.log.Error("failed to get read receipts",
				slog.String("agent_name", agentName),
				slog.String("username", op.Username),
				sl.Err(err),
			)
			receipts = map[string]time.Time{}
		}
	}
	for i := range conversations {
		conversations[i].Unread = unread(conversations[i], receipts)
	}
	return conversations, nil
}

// unread counts user messages newer than the reader's last read time; a
// conversation without a receipt is entirely unread.
func unread(conv entity.Conversation, receipts map[string]time.Time) int {
	readAt, ok := receipts[entity.ReceiptKey(conv.UserID, conv.PhoneNumberID)]
	n := 0
	for _, m := range conv.Messages {
		if m.Direction != entity.DirectionUser {
			continue
		}
		if !ok || m.Timestamp.After(readAt) {
			n++
		}
	}
	return n
}

// CheckUpdates reports the conversations touched after the checkpoint. The
// returned checkpoint never moves backwards.
func (c *Core) CheckUpdates(ctx context.Context, op *entity.Operator, agentName string, since time.Time) (*entity.UpdateSet, error) {
	if _, err := c.agentByName(ctx, op, agentName); err != nil {
		return nil, err
	}
	if err := c.requireStore(); err != nil {
		return nil, err
	}

	raw, err := c.store.FindDocumentsSince(ctx, agentName, since)
	if err != nil {
		return nil, err
	}
	// The store window is coarse across datetime layouts; the parsed
	// datetime decides.
	ids, patches, latest := conversation.Changes(conversation.After(conversation.NormalizeAll(raw), since))

	checkpoint := since
	if latest.After(since) {
		checkpoint = latest
	}
	return &entity.UpdateSet{
		Ok:                   true,
		UpdatedConversations: ids,
		NewMessages:          patches,
		LastCheckTimestamp:   checkpoint,
	}, nil
}

func (c *Core) ListReports(ctx context.Context, op *entity.Operator, agentName string, limit int) ([]entity.Report, error) {
	if _, err := c.agentByName(ctx, op, agentName); err != nil {
		return nil, err
	}
	if err := c.requireStore(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return c.store.ListReports(ctx, agentName, limit)
}

func (c *Core) GetReport(ctx context.Context, op *entity.Operator, id string) (*entity.Report, error) {
	if err := c.requireStore(); err != nil {
		return nil, err
	}
	report, err := c.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("report %s: %w", id, entity.ErrNotFound)
	}
	if _, err = c.agentByName(ctx, op, report.AgentName); err != nil {
		return nil, err
	}
	return report, nil
}
