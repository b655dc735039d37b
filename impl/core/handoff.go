package core

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/metrics"
	"context"
	"fmt"
	"log/slog"
)

// TakeConversation pauses the automation for one conversation. Concurrent
// takes are not arbitrated: the last one to reach storage wins.
func (c *Core) TakeConversation(ctx context.Context, op *entity.Operator, req *entity.TakeRequest) (*entity.HandoffLock, error) {
	agent, err := c.agentFor(ctx, op, req.AgentID)
	if err != nil {
		return nil, err
	}
	if !agent.OutboundReady() {
		return nil, fmt.Errorf("%w: %w", entity.ErrValidation, entity.ErrNotReady)
	}

	lock, err := c.repo.TakeConversation(ctx, req.ConversationKey, req.TakenBy)
	if err != nil {
		return nil, err
	}
	metrics.HandoffActions.WithLabelValues("take").Inc()
	c.log.Info("conversation taken",
		slog.String("agent_id", req.AgentID),
		slog.String("user_id", req.UserID),
		slog.String("taken_by", req.TakenBy),
	)

	if c.wsHub != nil {
		c.wsHub.BroadcastLock(agent.ClientID, *lock)
	}
	return lock, nil
}

func (c *Core) ReleaseConversation(ctx context.Context, op *entity.Operator, req *entity.ReleaseRequest) (*entity.HandoffLock, error) {
	agent, err := c.agentFor(ctx, op, req.AgentID)
	if err != nil {
		return nil, err
	}
	if err = c.repo.ReleaseConversation(ctx, req.ConversationKey); err != nil {
		return nil, err
	}
	metrics.HandoffActions.WithLabelValues("release").Inc()
	c.log.Info("conversation released",
		slog.String("agent_id", req.AgentID),
		slog.String("user_id", req.UserID),
		slog.String("by", op.Username),
	)

	lock := entity.HandoffLock{ConversationKey: req.ConversationKey}
	if c.wsHub != nil {
		c.wsHub.BroadcastLock(agent.ClientID, lock)
	}
	return &lock, nil
}

func (c *Core) GetHandoffLock(ctx context.Context, op *entity.Operator, key entity.ConversationKey) (*entity.HandoffLock, error) {
	if _, err := c.agentFor(ctx, op, key.AgentID); err != nil {
		return nil, err
	}
	return c.repo.GetHandoffLock(ctx, key)
}

func (c *Core) ListTakenConversations(ctx context.Context, op *entity.Operator, agentID string) ([]entity.HandoffLock, error) {
	if _, err := c.agentFor(ctx, op, agentID); err != nil {
		return nil, err
	}
	return c.repo.ListTakenConversations(ctx, agentID)
}

// MarkRead resets the unread counter of one reader; repeating it is harmless.
func (c *Core) MarkRead(ctx context.Context, op *entity.Operator, req *entity.MarkReadRequest) (*entity.ReadReceipt, error) {
	agent, err := c.agentFor(ctx, op, req.AgentID)
	if err != nil {
		return nil, err
	}
	receipt, err := c.repo.MarkRead(ctx, *req)
	if err != nil {
		return nil, err
	}
	if c.wsHub != nil {
		c.wsHub.BroadcastReadReceipt(agent.ClientID, *receipt)
	}
	return receipt, nil
}
