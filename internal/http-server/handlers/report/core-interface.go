package report

import (
	"AgentDesk/entity"
	"context"
)

type Core interface {
	ListReports(ctx context.Context, op *entity.Operator, agentName string, limit int) ([]entity.Report, error)
	GetReport(ctx context.Context, op *entity.Operator, id string) (*entity.Report, error)
}
