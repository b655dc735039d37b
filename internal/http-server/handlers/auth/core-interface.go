package auth

import (
	"AgentDesk/entity"
	"context"
)

type Core interface {
	Login(ctx context.Context, username, password string) (*entity.Session, error)
	Logout(ctx context.Context, token string) error
}
