package conversation

import (
	"AgentDesk/entity"
	"context"
	"time"
)

type Core interface {
	ListConversations(ctx context.Context, op *entity.Operator, agentName string, from, to time.Time) ([]entity.Conversation, error)
	CheckUpdates(ctx context.Context, op *entity.Operator, agentName string, since time.Time) (*entity.UpdateSet, error)
	TakeConversation(ctx context.Context, op *entity.Operator, req *entity.TakeRequest) (*entity.HandoffLock, error)
	ReleaseConversation(ctx context.Context, op *entity.Operator, req *entity.ReleaseRequest) (*entity.HandoffLock, error)
	GetHandoffLock(ctx context.Context, op *entity.Operator, key entity.ConversationKey) (*entity.HandoffLock, error)
	ListTakenConversations(ctx context.Context, op *entity.Operator, agentID string) ([]entity.HandoffLock, error)
	MarkRead(ctx context.Context, op *entity.Operator, req *entity.MarkReadRequest) (*entity.ReadReceipt, error)
}
