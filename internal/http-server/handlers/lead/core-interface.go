package lead

import (
	"AgentDesk/entity"
	"context"
)

type Core interface {
	RunLeads(ctx context.Context) ([]entity.LeadRunResult, error)
	RunAgentLeads(ctx context.Context, op *entity.Operator, agentID string) (*entity.LeadRunResult, error)
	ListLeadLogs(ctx context.Context, op *entity.Operator, agentID string, limit int) ([]entity.LeadLog, error)
}
