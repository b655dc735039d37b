package cont

import (
	"AgentDesk/entity"
	"context"
	"errors"
)

type ctxKey string

const userDataKey ctxKey = "userData"

func PutUser(c context.Context, user *entity.Operator) context.Context {
	return context.WithValue(c, userDataKey, user)
}

func GetUser(c context.Context) (*entity.Operator, error) {
	user, ok := c.Value(userDataKey).(*entity.Operator)
	if !ok || user == nil {
		return nil, errors.New("no operator in request context")
	}
	return user, nil
}
