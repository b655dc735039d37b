package inbox

import (
	"AgentDesk/entity"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu            sync.Mutex
	calls         map[string]int
	conversations []entity.Conversation
	listErr       error
	updates       *entity.UpdateSet
	checkErr      error
	onCheck       func()
	lock          *entity.HandoffLock
	takeErr       error
	releaseErr    error
	sendErr       error
	sent          []entity.SendRequest
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: map[string]int{}}
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAPI) ListConversations(_ context.Context, _ string, _, _ time.Time) ([]entity.Conversation, error) {
	f.count("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]entity.Conversation, len(f.conversations))
	copy(out, f.conversations)
	return out, nil
}

func (f *fakeAPI) CheckUpdates(_ context.Context, _ string, since time.Time) (*entity.UpdateSet, error) {
	f.count("check")
	if f.onCheck != nil {
		f.onCheck()
	}
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	if f.updates == nil {
		return &entity.UpdateSet{Ok: true, LastCheckTimestamp: since}, nil
	}
	return f.updates, nil
}

func (f *fakeAPI) GetLock(_ context.Context, key entity.ConversationKey) (*entity.HandoffLock, error) {
	f.count("lock")
	if f.lock != nil {
		return f.lock, nil
	}
	return &entity.HandoffLock{ConversationKey: key}, nil
}

func (f *fakeAPI) Take(_ context.Context, req entity.TakeRequest) (*entity.HandoffLock, error) {
	f.count("take")
	if f.takeErr != nil {
		return nil, f.takeErr
	}
	by := req.TakenBy
	f.lock = &entity.HandoffLock{ConversationKey: req.ConversationKey, IsTaken: true, TakenBy: &by, TakenAt: &t0}
	return f.lock, nil
}

func (f *fakeAPI) Release(_ context.Context, req entity.ReleaseRequest) error {
	f.count("release")
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.lock = &entity.HandoffLock{ConversationKey: req.ConversationKey}
	return nil
}

func (f *fakeAPI) MarkRead(_ context.Context, _ entity.MarkReadRequest) error {
	f.count("read")
	return nil
}

func (f *fakeAPI) Send(_ context.Context, req entity.SendRequest) (*entity.SendResult, error) {
	f.count("send")
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &entity.SendResult{MessageID: "wamid.42"}, nil
}

func readyAgent() entity.Agent {
	return entity.Agent{
		ID:       "a1",
		ClientID: "c1",
		Name:     "sales-bot",
		WhatsApp: entity.WhatsAppConfig{PhoneNumberID: "P1", AccessToken: "***"},
	}
}

func twoConversations() []entity.Conversation {
	return []entity.Conversation{
		{ID: "phone_P1_user_U2", UserID: "U2", PhoneNumberID: "P1", LastMessage: "later", LastMessageTime: t0.Add(-time.Minute), Unread: 1},
		{ID: "phone_P1_user_U1", UserID: "U1", PhoneNumberID: "P1", LastMessage: "hola", LastMessageTime: t0.Add(-time.Hour)},
	}
}

func newSession(t *testing.T, api *fakeAPI) *Session {
	t.Helper()
	s := NewSession(api, "ann", time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return t0 }
	return s
}

func selected(t *testing.T, api *fakeAPI, agent entity.Agent) *Session {
	t.Helper()
	api.conversations = twoConversations()
	s := newSession(t, api)
	require.NoError(t, s.SelectAgent(context.Background(), agent, time.Time{}, time.Time{}))
	return s
}

func TestPollOnce_NoAgentNoCall(t *testing.T) {
	api := newFakeAPI()
	s := newSession(t, api)

	n, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, api.total())
}

func TestSelectAgent_SetsCheckpoint(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())

	snap := s.Snapshot()
	assert.Equal(t, t0, snap.Checkpoint)
	assert.Len(t, snap.Conversations, 2)
	assert.Equal(t, 1, api.calls["list"])
}

func TestSelectAgent_FailedLoadClearsAgent(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	api.listErr = errors.New("connection refused")

	other := readyAgent()
	other.Name = "support"
	err := s.SelectAgent(context.Background(), other, time.Time{}, time.Time{})
	assert.Error(t, err)

	snap := s.Snapshot()
	assert.Nil(t, snap.Agent)
	assert.Empty(t, snap.Conversations)
	assert.True(t, snap.Checkpoint.IsZero())

	n, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, api.calls["check"])
}

func TestPollOnce_NothingNewKeepsState(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	before := s.Snapshot()

	n, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, before, s.Snapshot())
}

func TestPollOnce_PatchesAndAdvances(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	next := t0.Add(30 * time.Second)
	api.updates = &entity.UpdateSet{
		Ok:                   true,
		UpdatedConversations: []string{"phone_P1_user_U1", "phone_P9_user_U9"},
		NewMessages: map[string]entity.ConversationPatch{
			"phone_P1_user_U1": {LastMessage: "new text", LastMessageTime: next},
			"phone_P9_user_U9": {LastMessage: "first", LastMessageTime: next.Add(-time.Second)},
		},
		LastCheckTimestamp: next,
	}

	n, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap := s.Snapshot()
	require.Len(t, snap.Conversations, 3)
	assert.Equal(t, "phone_P1_user_U1", snap.Conversations[0].ID)
	assert.Equal(t, "new text", snap.Conversations[0].LastMessage)
	assert.Equal(t, "phone_P9_user_U9", snap.Conversations[1].ID)
	assert.Equal(t, "U9", snap.Conversations[1].UserID)
	assert.True(t, snap.Fresh["phone_P1_user_U1"])
	assert.True(t, snap.Fresh["phone_P9_user_U9"])
	assert.Equal(t, next, snap.Checkpoint)
}

func TestPollOnce_CheckpointNeverMovesBack(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	api.updates = &entity.UpdateSet{Ok: true, LastCheckTimestamp: t0.Add(-time.Hour)}

	_, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, t0, s.Snapshot().Checkpoint)
}

func TestPollOnce_FailureKeepsCheckpoint(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	api.checkErr = errors.New("connection refused")

	_, err := s.PollOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, t0, s.Snapshot().Checkpoint)
}

func TestPollOnce_StaleResponseDropped(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	api.updates = &entity.UpdateSet{
		Ok:                   true,
		UpdatedConversations: []string{"phone_P1_user_U1"},
		NewMessages:          map[string]entity.ConversationPatch{"phone_P1_user_U1": {LastMessage: "x", LastMessageTime: t0.Add(time.Minute)}},
		LastCheckTimestamp:   t0.Add(time.Minute),
	}
	api.onCheck = s.ClearAgent

	n, err := s.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	snap := s.Snapshot()
	assert.Nil(t, snap.Agent)
	assert.Empty(t, snap.Conversations)
	assert.True(t, snap.Checkpoint.IsZero())
}

func TestSelect_ReadsLockAndMarksRead(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())

	require.NoError(t, s.Select(context.Background(), "phone_P1_user_U2"))
	snap := s.Snapshot()
	assert.Equal(t, "phone_P1_user_U2", snap.Selected)
	require.NotNil(t, snap.Lock)
	assert.False(t, snap.Lock.IsTaken)
	assert.Equal(t, 0, snap.Conversations[0].Unread)
	assert.Equal(t, 1, api.calls["lock"])
	assert.Equal(t, 1, api.calls["read"])
}

func TestSend_WithoutTakeDoesNothing(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	require.NoError(t, s.Select(context.Background(), "phone_P1_user_U1"))
	s.SetCompose("hello")
	calls := api.total()
	before := s.Snapshot()

	msg, err := s.Send(context.Background())
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Nil(t, msg)
	assert.Equal(t, calls, api.total())
	assert.Equal(t, before, s.Snapshot())
}

func TestSend_BlankComposeRefused(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	require.NoError(t, s.Select(context.Background(), "phone_P1_user_U1"))
	require.NoError(t, s.Take(context.Background()))
	s.SetCompose("   ")

	_, err := s.Send(context.Background())
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Zero(t, api.calls["send"])
}

func TestTake_RefusedLocally(t *testing.T) {
	api := newFakeAPI()
	agent := readyAgent()
	agent.WhatsApp.AccessToken = ""
	s := selected(t, api, agent)
	require.NoError(t, s.Select(context.Background(), "phone_P1_user_U1"))
	calls := api.total()

	assert.ErrorIs(t, s.Take(context.Background()), ErrPrecondition)
	assert.Equal(t, calls, api.total())

	api2 := newFakeAPI()
	api2.conversations = twoConversations()
	s2 := NewSession(api2, "", time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s2.SelectAgent(context.Background(), readyAgent(), time.Time{}, time.Time{}))
	require.NoError(t, s2.Select(context.Background(), "phone_P1_user_U1"))
	assert.ErrorIs(t, s2.Take(context.Background()), ErrPrecondition)
	assert.Zero(t, api2.calls["take"])
}

func TestTake_RefreshesLockFromServer(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	require.NoError(t, s.Select(context.Background(), "phone_P1_user_U1"))

	require.NoError(t, s.Take(context.Background()))
	assert.Equal(t, 1, api.calls["take"])
	assert.Equal(t, 2, api.calls["lock"])
	lock := s.Snapshot().Lock
	require.NotNil(t, lock)
	assert.True(t, lock.IsTaken)
	assert.Equal(t, "ann", *lock.TakenBy)
}

func TestTake_FailureLeavesLock(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	require.NoError(t, s.Select(context.Background(), "phone_P1_user_U1"))
	api.takeErr = errors.New("backend down")

	assert.Error(t, s.Take(context.Background()))
	assert.False(t, s.Snapshot().Lock.IsTaken)
}

func TestSend_Success(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	require.NoError(t, s.Select(context.Background(), "phone_P1_user_U1"))
	require.NoError(t, s.Take(context.Background()))
	later := t0.Add(5 * time.Second)
	s.now = func() time.Time { return later }
	s.SetCompose("  on my way  ")

	msg, err := s.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wamid.42", msg.ID)
	assert.Equal(t, entity.StatusSent, msg.Status)

	require.Len(t, api.sent, 1)
	req := api.sent[0]
	assert.Equal(t, "on my way", req.Message)
	assert.Equal(t, "U1", req.UserID)
	assert.Equal(t, "U1", req.PhoneNumber)
	assert.Equal(t, "P1", req.PhoneNumberID)
	assert.Equal(t, "ann", req.SentBy)

	snap := s.Snapshot()
	assert.Empty(t, snap.Pending)
	assert.Empty(t, snap.Compose)
	assert.Equal(t, later, snap.Checkpoint)
	conv := snap.Conversations[1]
	assert.Equal(t, "phone_P1_user_U1", conv.ID)
	assert.Equal(t, "on my way", conv.LastMessage)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "wamid.42", conv.Messages[0].ID)
}

func TestSend_FailureKeepsPendingAsError(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	require.NoError(t, s.Select(context.Background(), "phone_P1_user_U1"))
	require.NoError(t, s.Take(context.Background()))
	api.sendErr = errors.New("network unreachable")
	s.SetCompose("hello")

	msg, err := s.Send(context.Background())
	require.Error(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, entity.StatusError, msg.Status)

	snap := s.Snapshot()
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, entity.StatusError, snap.Pending[0].Message.Status)
	assert.Regexp(t, `^local-[0-9a-f-]{36}$`, snap.Pending[0].Message.ID)
	assert.Equal(t, "hola", snap.Conversations[1].LastMessage)
	assert.Equal(t, t0, snap.Checkpoint)
}

func TestRelease_ClearsLocalState(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	require.NoError(t, s.Select(context.Background(), "phone_P1_user_U1"))
	require.NoError(t, s.Take(context.Background()))
	api.sendErr = errors.New("fail")
	s.SetCompose("first")
	_, _ = s.Send(context.Background())
	s.SetCompose("draft")

	require.NoError(t, s.Release(context.Background()))
	snap := s.Snapshot()
	assert.False(t, snap.Lock.IsTaken)
	assert.Empty(t, snap.Compose)
	assert.Empty(t, snap.Pending)
}

func TestRelease_FailureLeavesState(t *testing.T) {
	api := newFakeAPI()
	s := selected(t, api, readyAgent())
	require.NoError(t, s.Select(context.Background(), "phone_P1_user_U1"))
	require.NoError(t, s.Take(context.Background()))
	s.SetCompose("draft")
	api.releaseErr = errors.New("timeout")
	before := s.Snapshot()

	assert.Error(t, s.Release(context.Background()))
	assert.Equal(t, before, s.Snapshot())
}

func TestPlaceholder(t *testing.T) {
	c := Placeholder("phone_P1_user_U1")
	assert.Equal(t, "P1", c.PhoneNumberID)
	assert.Equal(t, "U1", c.UserID)

	c = Placeholder("phone_P2")
	assert.Equal(t, "P2", c.PhoneNumberID)
	assert.Empty(t, c.UserID)

	c = Placeholder("user_U3")
	assert.Equal(t, "U3", c.UserID)

	c = Placeholder("session_S")
	assert.Empty(t, c.UserID)
	assert.Equal(t, entity.ConversationActive, c.Status)
}
