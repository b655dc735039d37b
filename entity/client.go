package entity

import (
	"AgentDesk/internal/lib/validate"
	"net/http"
	"time"
)

// Client is a tenant owning a set of agents.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required,max=200"`
	Email     string    `json:"email" validate:"omitempty,email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) Bind(_ *http.Request) error {
	return validate.Struct(c)
}
