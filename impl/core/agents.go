package core

import (
	"AgentDesk/entity"
	"AgentDesk/internal/service/workflow"
	"context"
	"fmt"
)

// maskedToken is what Agent.Public leaves in place of a token; clients
// that echo an agent back must not overwrite the stored one with it.
const maskedToken = "***"

func (c *Core) ListClients(ctx context.Context, op *entity.Operator) ([]entity.Client, error) {
	scope := op.ClientID
	if op.IsAdmin() {
		scope = ""
	}
	return c.repo.ListClients(ctx, scope)
}

func (c *Core) GetClient(ctx context.Context, op *entity.Operator, id string) (*entity.Client, error) {
	if !op.CanAccess(id) {
		return nil, entity.ErrForbidden
	}
	client, err := c.repo.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("client %s: %w", id, entity.ErrNotFound)
	}
	return client, nil
}

// CreateClient, UpdateClient and DeleteClient are admin only.
func (c *Core) CreateClient(ctx context.Context, op *entity.Operator, client *entity.Client) (*entity.Client, error) {
	if !op.IsAdmin() {
		return nil, entity.ErrForbidden
	}
	return c.repo.CreateClient(ctx, client)
}

func (c *Core) UpdateClient(ctx context.Context, op *entity.Operator, client *entity.Client) (*entity.Client, error) {
	if !op.IsAdmin() {
		return nil, entity.ErrForbidden
	}
	updated, err := c.repo.UpdateClient(ctx, client)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("client %s: %w", client.ID, entity.ErrNotFound)
	}
	return updated, nil
}

func (c *Core) DeleteClient(ctx context.Context, op *entity.Operator, id string) error {
	if !op.IsAdmin() {
		return entity.ErrForbidden
	}
	ok, err := c.repo.DeleteClient(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("client %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

// ListAgents returns agents without credentials. Operators always get their
// own tenant; admins may filter by clientID or list everything.
func (c *Core) ListAgents(ctx context.Context, op *entity.Operator, clientID string) ([]entity.Agent, error) {
	scope := op.ClientID
	if op.IsAdmin() {
		scope = clientID
	}
	agents, err := c.repo.ListAgents(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Agent, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Public())
	}
	return out, nil
}

func (c *Core) GetAgent(ctx context.Context, op *entity.Operator, id string) (*entity.Agent, error) {
	agent, err := c.agentFor(ctx, op, id)
	if err != nil {
		return nil, err
	}
	public := agent.Public()
	return &public, nil
}

func (c *Core) CreateAgent(ctx context.Context, op *entity.Operator, agent *entity.Agent) (*entity.Agent, error) {
	if !op.CanAccess(agent.ClientID) {
		return nil, entity.ErrForbidden
	}
	created, err := c.repo.CreateAgent(ctx, agent)
	if err != nil {
		return nil, err
	}
	public := created.Public()
	return &public, nil
}

// UpdateAgent replaces the agent's fields. An empty access token keeps the
// stored one, and only admins may move an agent to another tenant.
func (c *Core) UpdateAgent(ctx context.Context, op *entity.Operator, id string, agent *entity.Agent) (*entity.Agent, error) {
	existing, err := c.agentFor(ctx, op, id)
	if err != nil {
		return nil, err
	}
	agent.ID = id
	if agent.WhatsApp.AccessToken == maskedToken {
		agent.WhatsApp.AccessToken = ""
	}
	if !op.IsAdmin() {
		agent.ClientID = existing.ClientID
	}
	updated, err := c.repo.UpdateAgent(ctx, agent)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("agent %s: %w", id, entity.ErrNotFound)
	}
	public := updated.Public()
	return &public, nil
}

func (c *Core) DeleteAgent(ctx context.Context, op *entity.Operator, id string) error {
	if _, err := c.agentFor(ctx, op, id); err != nil {
		return err
	}
	ok, err := c.repo.DeleteAgent(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("agent %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

func (c *Core) ListAgentExecutions(ctx context.Context, op *entity.Operator, agentID string, opts workflow.ListOptions) (*entity.ExecutionPage, error) {
	agent, err := c.agentFor(ctx, op, agentID)
	if err != nil {
		return nil, err
	}
	if c.workflow == nil {
		return nil, fmt.Errorf("%w: workflow engine", entity.ErrDisabled)
	}
	if agent.WorkflowID == "" {
		return nil, fmt.Errorf("%w: agent has no workflow id", entity.ErrValidation)
	}
	opts.WorkflowID = agent.WorkflowID
	return c.workflow.ListExecutions(ctx, opts)
}

// GetAgentExecution refuses executions of workflows other than the agent's.
func (c *Core) GetAgentExecution(ctx context.Context, op *entity.Operator, agentID, executionID string) (*entity.Execution, error) {
	agent, err := c.agentFor(ctx, op, agentID)
	if err != nil {
		return nil, err
	}
	if c.workflow == nil {
		return nil, fmt.Errorf("%w: workflow engine", entity.ErrDisabled)
	}
	ex, err := c.workflow.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if agent.WorkflowID == "" || ex.WorkflowID != agent.WorkflowID {
		return nil, fmt.Errorf("execution %s: %w", executionID, entity.ErrNotFound)
	}
	return ex, nil
}
