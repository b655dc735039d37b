package core

import (
	"AgentDesk/entity"
	"context"
	"fmt"
)

type AuthService interface {
	Login(ctx context.Context, username, password string) (*entity.Session, error)
	AuthenticateByToken(ctx context.Context, token string) (*entity.Operator, error)
	Logout(ctx context.Context, token string) error
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) Login(ctx context.Context, username, password string) (*entity.Session, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth: %w", entity.ErrDisabled)
	}
	return c.auth.Login(ctx, username, password)
}

func (c *Core) AuthenticateByToken(ctx context.Context, token string) (*entity.Operator, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth: %w", entity.ErrDisabled)
	}
	return c.auth.AuthenticateByToken(ctx, token)
}

func (c *Core) Logout(ctx context.Context, token string) error {
	if c.auth == nil {
		return fmt.Errorf("auth: %w", entity.ErrDisabled)
	}
	return c.auth.Logout(ctx, token)
}
