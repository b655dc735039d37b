// Package inbox is the operator side of the console: the state of one
// agent's inbox, the polling loop keeping it fresh and the handoff actions.
package inbox

import (
	"AgentDesk/entity"
	"context"
	"errors"
	"time"
)

// ErrPrecondition marks an action refused locally, before any network call.
var ErrPrecondition = errors.New("action precondition not met")

// API is the backend as seen by the inbox.
type API interface {
	ListConversations(ctx context.Context, agentName string, from, to time.Time) ([]entity.Conversation, error)
	CheckUpdates(ctx context.Context, agentName string, since time.Time) (*entity.UpdateSet, error)
	GetLock(ctx context.Context, key entity.ConversationKey) (*entity.HandoffLock, error)
	Take(ctx context.Context, req entity.TakeRequest) (*entity.HandoffLock, error)
	Release(ctx context.Context, req entity.ReleaseRequest) error
	MarkRead(ctx context.Context, req entity.MarkReadRequest) error
	Send(ctx context.Context, req entity.SendRequest) (*entity.SendResult, error)
}
