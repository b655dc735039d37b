package inbox

import (
	"AgentDesk/entity"
	"AgentDesk/internal/conversation"
	"AgentDesk/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingMessage is a locally sent message that has not been merged into
// its conversation yet.
type PendingMessage struct {
	ConversationID string
	Message        entity.Message
}

// Session is the inbox of one operator. State changes happen under mu;
// network calls run without it and their results are dropped when the
// selection changed meanwhile (generation mismatch).
type Session struct {
	api      API
	operator string
	log      *slog.Logger
	now      func() time.Time
	poller   *Poller

	mu            sync.Mutex
	generation    uint64
	agent         *entity.Agent
	conversations []entity.Conversation
	fresh         map[string]bool
	selected      string
	lock          *entity.HandoffLock
	pending       []PendingMessage
	compose       string
	checkpoint    time.Time
}

// NewSession binds the inbox to an operator identifier used as taken_by,
// read_by and sent_by.
func NewSession(api API, operator string, interval time.Duration, log *slog.Logger) *Session {
	s := &Session{
		api:      api,
		operator: operator,
		log:      log.With(sl.Module("inbox"), slog.String("operator", operator)),
		now:      time.Now,
		fresh:    make(map[string]bool),
	}
	s.poller = NewPoller(s, interval, log)
	return s
}

func (s *Session) Poller() *Poller {
	return s.poller
}

// SelectAgent rebuilds the conversation list of agent. The checkpoint is the
// moment the load started.
func (s *Session) SelectAgent(ctx context.Context, agent entity.Agent, from, to time.Time) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.agent = &agent
	s.conversations = nil
	s.fresh = make(map[string]bool)
	s.selected = ""
	s.lock = nil
	s.pending = nil
	s.compose = ""
	s.checkpoint = time.Time{}
	s.mu.Unlock()

	loadedAt := s.now().UTC()
	conversations, err := s.api.ListConversations(ctx, agent.Name, from, to)
	if err != nil {
		s.log.Error("load conversations", slog.String("agent", agent.Name), sl.Err(err))
		s.mu.Lock()
		if gen == s.generation {
			s.agent = nil
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.log.Debug("stale conversation load dropped", slog.String("agent", agent.Name))
		return nil
	}
	s.conversations = conversations
	s.checkpoint = loadedAt
	s.log.Info("agent selected",
		slog.String("agent", agent.Name),
		slog.Int("conversations", len(conversations)),
	)
	return nil
}

// ClearAgent drops the selection and stops polling.
func (s *Session) ClearAgent() {
	s.mu.Lock()
	s.generation++
	s.agent = nil
	s.conversations = nil
	s.fresh = make(map[string]bool)
	s.selected = ""
	s.lock = nil
	s.pending = nil
	s.compose = ""
	s.checkpoint = time.Time{}
	s.mu.Unlock()

	s.poller.Stop()
}

// PollOnce runs one polling round and returns the number of patched
// conversations. Without a selected agent it does nothing.
func (s *Session) PollOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	// without a loaded baseline there is nothing to diff against
	if s.agent == nil || s.checkpoint.IsZero() {
		s.mu.Unlock()
		return 0, nil
	}
	gen := s.generation
	agentName := s.agent.Name
	since := s.checkpoint
	s.mu.Unlock()

	updates, err := s.api.CheckUpdates(ctx, agentName, since)
	if err != nil {
		s.log.Warn("check updates", slog.String("agent", agentName), sl.Err(err))
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return 0, nil
	}

	// iterate oldest first so the most recent change ends up in front
	patched := 0
	for i := len(updates.UpdatedConversations) - 1; i >= 0; i-- {
		id := updates.UpdatedConversations[i]
		patch, ok := updates.NewMessages[id]
		if !ok {
			continue
		}
		s.patch(id, patch)
		if id != s.selected {
			s.fresh[id] = true
		}
		patched++
	}
	if updates.LastCheckTimestamp.After(s.checkpoint) {
		s.checkpoint = updates.LastCheckTimestamp
	}
	return patched, nil
}

// patch moves the conversation to the front with the new preview; an id
// not loaded yet gets a placeholder built from its group key.
func (s *Session) patch(id string, p entity.ConversationPatch) {
	idx := s.index(id)
	var conv entity.Conversation
	if idx >= 0 {
		conv = s.conversations[idx]
		s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	} else {
		conv = Placeholder(id)
	}
	conv.LastMessage = p.LastMessage
	conv.LastMessageTime = p.LastMessageTime
	if id != s.selected {
		conv.Unread++
	}
	s.conversations = append([]entity.Conversation{conv}, s.conversations...)
}

// Placeholder derives user and phone ids from a group key.
func Placeholder(id string) entity.Conversation {
	conv := entity.Conversation{ID: id, Status: entity.ConversationActive}
	switch {
	case strings.HasPrefix(id, "phone_"):
		rest := strings.TrimPrefix(id, "phone_")
		if phone, user, ok := strings.Cut(rest, "_user_"); ok {
			conv.PhoneNumberID, conv.UserID = phone, user
		} else {
			conv.PhoneNumberID = rest
		}
	case strings.HasPrefix(id, "user_"):
		conv.UserID = strings.TrimPrefix(id, "user_")
	}
	return conv
}

func (s *Session) index(id string) int {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) key(conv entity.Conversation) entity.ConversationKey {
	return entity.ConversationKey{
		AgentID:       s.agent.ID,
		UserID:        conv.UserID,
		PhoneNumberID: conv.PhoneNumberID,
	}
}

// Select opens a conversation: clears its new flag, reads the lock from the
// server and marks it read.
func (s *Session) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.index(id)
	if s.agent == nil || idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: conversation %s is not loaded", ErrPrecondition, id)
	}
	gen := s.generation
	s.selected = id
	s.lock = nil
	s.compose = ""
	delete(s.fresh, id)
	conv := s.conversations[idx]
	key := s.key(conv)
	s.mu.Unlock()

	lock, err := s.api.GetLock(ctx, key)
	if err != nil {
		s.log.Warn("get lock", slog.String("conversation", id), sl.Err(err))
	}

	var readErr error
	if conv.UserID != "" {
		last := conv.LastMessageTime
		readErr = s.api.MarkRead(ctx, entity.MarkReadRequest{
			AgentID:             key.AgentID,
			UserID:              key.UserID,
			PhoneNumberID:       key.PhoneNumberID,
			LastMessageDatetime: &last,
			ReadBy:              s.operator,
		})
		if readErr != nil {
			s.log.Warn("mark read", slog.String("conversation", id), sl.Err(readErr))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.selected != id {
		return nil
	}
	if lock != nil {
		s.lock = lock
	}
	if readErr == nil {
		if i := s.index(id); i >= 0 {
			s.conversations[i].Unread = 0
		}
	}
	return nil
}

// Take asks the server for the selected conversation and then re-reads the
// lock instead of assuming the result.
func (s *Session) Take(ctx context.Context) error {
	s.mu.Lock()
	if s.operator == "" || s.agent == nil || !s.agent.OutboundReady() {
		s.mu.Unlock()
		err := fmt.Errorf("%w: operator or agent messaging not configured", ErrPrecondition)
		s.log.Error("take refused", sl.Err(err))
		return err
	}
	idx := s.index(s.selected)
	if idx < 0 {
		s.mu.Unlock()
		err := fmt.Errorf("%w: no conversation selected", ErrPrecondition)
		s.log.Error("take refused", sl.Err(err))
		return err
	}
	gen := s.generation
	id := s.selected
	key := s.key(s.conversations[idx])
	s.mu.Unlock()

	if _, err := s.api.Take(ctx, entity.TakeRequest{ConversationKey: key, TakenBy: s.operator}); err != nil {
		s.log.Error("take conversation", slog.String("conversation", id), sl.Err(err))
		return err
	}
	lock, err := s.api.GetLock(ctx, key)
	if err != nil {
		s.log.Error("refresh lock", slog.String("conversation", id), sl.Err(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation && s.selected == id {
		s.lock = lock
	}
	return nil
}

// Release hands the selected conversation back. On failure the local state
// is left as it was.
func (s *Session) Release(ctx context.Context) error {
	s.mu.Lock()
	idx := s.index(s.selected)
	if s.agent == nil || idx < 0 {
		s.mu.Unlock()
		err := fmt.Errorf("%w: no conversation selected", ErrPrecondition)
		s.log.Error("release refused", sl.Err(err))
		return err
	}
	gen := s.generation
	id := s.selected
	key := s.key(s.conversations[idx])
	s.mu.Unlock()

	if err := s.api.Release(ctx, entity.ReleaseRequest{ConversationKey: key}); err != nil {
		s.log.Error("release conversation", slog.String("conversation", id), sl.Err(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil
	}
	if s.selected == id {
		s.lock = &entity.HandoffLock{ConversationKey: key}
		s.compose = ""
	}
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.ConversationID != id {
			kept = append(kept, p)
		}
	}
	s.pending = kept
	return nil
}

func (s *Session) SetCompose(text string) {
	s.mu.Lock()
	s.compose = text
	s.mu.Unlock()
}

// Send dispatches the compose text of the selected, taken conversation.
// The returned message carries the final status, sent or error.
func (s *Session) Send(ctx context.Context) (*entity.Message, error) {
	s.mu.Lock()
	text := strings.TrimSpace(s.compose)
	idx := s.index(s.selected)
	if s.agent == nil || idx < 0 || s.lock == nil || !s.lock.IsTaken || text == "" {
		s.mu.Unlock()
		err := fmt.Errorf("%w: select and take a conversation and type a message", ErrPrecondition)
		s.log.Error("send refused", sl.Err(err))
		return nil, err
	}
	gen := s.generation
	id := s.selected
	conv := s.conversations[idx]
	req := entity.SendRequest{
		AgentID:       s.agent.ID,
		PhoneNumber:   conv.UserID,
		MessageType:   entity.MessageTypeText,
		Message:       text,
		UserID:        conv.UserID,
		PhoneNumberID: conv.PhoneNumberID,
		SentBy:        s.operator,
	}
	localID := "local-" + uuid.NewString()
	s.pending = append(s.pending, PendingMessage{
		ConversationID: id,
		Message: entity.Message{
			ID:        localID,
			Direction: entity.DirectionAgent,
			Text:      text,
			Timestamp: s.now().UTC(),
			Status:    entity.StatusSending,
		},
	})
	s.compose = ""
	s.mu.Unlock()

	result, err := s.api.Send(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil, err
	}
	pi := s.pendingIndex(localID)
	if pi < 0 {
		// released while the request was in flight
		return nil, err
	}
	if err != nil {
		s.pending[pi].Message.Status = entity.StatusError
		msg := s.pending[pi].Message
		s.log.Error("send message", slog.String("conversation", id), sl.Err(err))
		return &msg, err
	}

	msg := s.pending[pi].Message
	msg.Status = entity.StatusSent
	if result != nil && result.MessageID != "" {
		msg.ID = result.MessageID
	}
	s.pending = append(s.pending[:pi], s.pending[pi+1:]...)
	if ci := s.index(id); ci >= 0 {
		c := &s.conversations[ci]
		c.Messages = append(c.Messages, msg)
		c.LastMessage = conversation.Preview(msg.Text)
		c.LastMessageTime = msg.Timestamp
	}
	if now := s.now().UTC(); now.After(s.checkpoint) {
		s.checkpoint = now
	}
	return &msg, nil
}

func (s *Session) pendingIndex(localID string) int {
	for i := range s.pending {
		if s.pending[i].Message.ID == localID {
			return i
		}
	}
	return -1
}

// Snapshot is a copy of the session state for rendering.
type Snapshot struct {
	Agent         *entity.Agent
	Conversations []entity.Conversation
	Fresh         map[string]bool
	Selected      string
	Lock          *entity.HandoffLock
	Pending       []PendingMessage
	Compose       string
	Checkpoint    time.Time
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Conversations: make([]entity.Conversation, len(s.conversations)),
		Fresh:         make(map[string]bool, len(s.fresh)),
		Selected:      s.selected,
		Pending:       append([]PendingMessage(nil), s.pending...),
		Compose:       s.compose,
		Checkpoint:    s.checkpoint,
	}
	copy(snap.Conversations, s.conversations)
	for i := range snap.Conversations {
		snap.Conversations[i].Messages = append([]entity.Message(nil), s.conversations[i].Messages...)
	}
	for k, v := range s.fresh {
		snap.Fresh[k] = v
	}
	if s.agent != nil {
		a := *s.agent
		snap.Agent = &a
	}
	if s.lock != nil {
		l := *s.lock
		snap.Lock = &l
	}
	return snap
}
