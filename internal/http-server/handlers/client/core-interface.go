package client

import (
	"AgentDesk/entity"
	"context"
)

type Core interface {
	ListClients(ctx context.Context, op *entity.Operator) ([]entity.Client, error)
	GetClient(ctx context.Context, op *entity.Operator, id string) (*entity.Client, error)
	CreateClient(ctx context.Context, op *entity.Operator, client *entity.Client) (*entity.Client, error)
	UpdateClient(ctx context.Context, op *entity.Operator, client *entity.Client) (*entity.Client, error)
	DeleteClient(ctx context.Context, op *entity.Operator, id string) error
}
