package entity

import (
	"AgentDesk/internal/lib/validate"
	"net/http"
	"time"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Operator is a console user. Admins see every tenant, operators only their own.
type Operator struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
}

func (o *Operator) IsAdmin() bool {
	return o != nil && o.Role == RoleAdmin
}

// CanAccess reports whether the operator may act on the tenant's data.
func (o *Operator) CanAccess(clientID string) bool {
	if o == nil {
		return false
	}
	return o.IsAdmin() || o.ClientID == clientID
}

type Session struct {
	Token     string    `json:"token"`
	Operator  Operator  `json:"operator"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=1"`
}

func (l *LoginRequest) Bind(_ *http.Request) error {
	return validate.Struct(l)
}
