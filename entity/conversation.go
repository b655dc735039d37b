package entity

import "time"

const (
	ConversationActive  = "active"
	ConversationWaiting = "waiting"
	ConversationClosed  = "closed"
)

// PreviewLength is the maximum number of runes kept in LastMessage.
const PreviewLength = 50

// Conversation is a thread with one counterpart, identified by its group key.
type Conversation struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	PhoneNumberID   string    `json:"phone_number_id"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	Unread          int       `json:"unread"`
	Status          string    `json:"status"`
	Messages        []Message `json:"messages"`
}

// ConversationPatch is the incremental preview update of one conversation.
type ConversationPatch struct {
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
}

// UpdateSet is the answer to "what changed since the checkpoint".
type UpdateSet struct {
	Ok                   bool                         `json:"ok"`
	Error                string                       `json:"error,omitempty"`
	UpdatedConversations []string                     `json:"updatedConversations"`
	NewMessages          map[string]ConversationPatch `json:"newMessages"`
	LastCheckTimestamp   time.Time                    `json:"lastCheckTimestamp"`
}
