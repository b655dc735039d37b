package core

import (
	"AgentDesk/entity"
	"context"
	"fmt"
)

func (c *Core) agentFor(ctx context.Context, op *entity.Operator, agentID string) (*entity.Agent, error) {
	if c.repo == nil {
		return nil, fmt.Errorf("%w: repository", entity.ErrDisabled)
	}
	agent, err := c.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, entity.ErrNotFound)
	}
	if !op.CanAccess(agent.ClientID) {
		return nil, entity.ErrForbidden
	}
	return agent, nil
}

// agentByName resolves the agent that owns documents tagged with name.
// Admins may browse names that have no registered agent; the result is
// then nil without error.
func (c *Core) agentByName(ctx context.Context, op *entity.Operator, name string) (*entity.Agent, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: agent_name is required", entity.ErrValidation)
	}
	if c.repo == nil {
		if op.IsAdmin() {
			return nil, nil
		}
		return nil, entity.ErrForbidden
	}
	agent, err := c.repo.GetAgentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		if op.IsAdmin() {
			return nil, nil
		}
		return nil, fmt.Errorf("agent %s: %w", name, entity.ErrNotFound)
	}
	if !op.CanAccess(agent.ClientID) {
		return nil, entity.ErrForbidden
	}
	return agent, nil
}

func (c *Core) requireStore() error {
	if c.store == nil {
		return fmt.Errorf("%w: conversation store", entity.ErrDisabled)
	}
	return nil
}

func clientOf(agent *entity.Agent) string {
	if agent == nil {
		return ""
	}
	return agent.ClientID
}
