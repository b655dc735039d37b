package agent

import (
	"AgentDesk/entity"
	"AgentDesk/internal/service/workflow"
	"context"
)

type Core interface {
	ListAgents(ctx context.Context, op *entity.Operator, clientID string) ([]entity.Agent, error)
	GetAgent(ctx context.Context, op *entity.Operator, id string) (*entity.Agent, error)
	CreateAgent(ctx context.Context, op *entity.Operator, agent *entity.Agent) (*entity.Agent, error)
	UpdateAgent(ctx context.Context, op *entity.Operator, id string, agent *entity.Agent) (*entity.Agent, error)
	DeleteAgent(ctx context.Context, op *entity.Operator, id string) error
	ListAgentExecutions(ctx context.Context, op *entity.Operator, agentID string, opts workflow.ListOptions) (*entity.ExecutionPage, error)
	GetAgentExecution(ctx context.Context, op *entity.Operator, agentID, executionID string) (*entity.Execution, error)
}
