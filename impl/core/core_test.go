package core

import (
	"AgentDesk/entity"
	"AgentDesk/internal/conversation"
	"AgentDesk/internal/service/whatsapp"
	"AgentDesk/internal/ws"
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

// memRepo keeps just enough state for the core flows; methods the tests do
// not reach fall through to the nil embedded interface.
type memRepo struct {
	Repository
	mu       sync.Mutex
	agents   map[string]*entity.Agent
	locks    map[entity.ConversationKey]*entity.HandoffLock
	receipts map[string]time.Time
	unread   []entity.ConversationKey
	leadLogs map[string]*entity.LeadLog
	updates  []entity.LeadLog
}

func newMemRepo(agents ...*entity.Agent) *memRepo {
	r := &memRepo{
		agents:   map[string]*entity.Agent{},
		locks:    map[entity.ConversationKey]*entity.HandoffLock{},
		receipts: map[string]time.Time{},
		leadLogs: map[string]*entity.LeadLog{},
	}
	for _, a := range agents {
		r.agents[a.ID] = a
	}
	return r
}

func (r *memRepo) GetAgent(_ context.Context, id string) (*entity.Agent, error) {
	if a, ok := r.agents[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (r *memRepo) GetAgentByName(_ context.Context, name string) (*entity.Agent, error) {
	for _, a := range r.agents {
		if a.Name == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) GetAgentByPhoneNumberID(_ context.Context, id string) (*entity.Agent, error) {
	for _, a := range r.agents {
		if a.WhatsApp.PhoneNumberID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListAgents(_ context.Context, clientID string) ([]entity.Agent, error) {
	var out []entity.Agent
	for _, a := range r.agents {
		if clientID == "" || a.ClientID == clientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) ListLeadAgents(_ context.Context) ([]entity.Agent, error) {
	var out []entity.Agent
	for _, a := range r.agents {
		if a.Ads.FormID != "" {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) TakeConversation(_ context.Context, key entity.ConversationKey, takenBy string) (*entity.HandoffLock, error) {
	now := time.Now()
	lock := &entity.HandoffLock{ConversationKey: key, IsTaken: true, TakenBy: &takenBy, TakenAt: &now}
	r.locks[key] = lock
	return lock, nil
}

func (r *memRepo) ReleaseConversation(_ context.Context, key entity.ConversationKey) error {
	if _, ok := r.locks[key]; ok {
		r.locks[key] = &entity.HandoffLock{ConversationKey: key}
	}
	return nil
}

func (r *memRepo) GetHandoffLock(_ context.Context, key entity.ConversationKey) (*entity.HandoffLock, error) {
	if l, ok := r.locks[key]; ok {
		return l, nil
	}
	return &entity.HandoffLock{ConversationKey: key}, nil
}

func (r *memRepo) MarkRead(_ context.Context, req entity.MarkReadRequest) (*entity.ReadReceipt, error) {
	now := time.Now()
	r.receipts[entity.ReceiptKey(req.UserID, req.PhoneNumberID)] = now
	return &entity.ReadReceipt{AgentID: req.AgentID, UserID: req.UserID, ReadBy: req.ReadBy, LastReadDatetime: now}, nil
}

func (r *memRepo) GetReadReceipts(_ context.Context, _, _ string) (map[string]time.Time, error) {
	return r.receipts, nil
}

func (r *memRepo) IncrementUnread(_ context.Context, key entity.ConversationKey, _ time.Time) error {
	r.unread = append(r.unread, key)
	return nil
}

func (r *memRepo) ClaimLead(_ context.Context, leadID, agentID string) (*entity.LeadLog, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.leadLogs[leadID]; ok {
		cp := *l
		return &cp, false, nil
	}
	l := &entity.LeadLog{LeadID: leadID, AgentID: agentID, Status: entity.LeadReceived}
	r.leadLogs[leadID] = l
	return l, true, nil
}

func (r *memRepo) UpdateLeadLog(_ context.Context, log entity.LeadLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, log)
	cp := log
	r.leadLogs[log.LeadID] = &cp
	return nil
}

type memStore struct {
	docs     []map[string]interface{}
	since    []map[string]interface{}
	inserted []entity.StoredDocument
	reports  []entity.Report
}

func (s *memStore) FindDocuments(_ context.Context, _ string, _, _ time.Time) ([]map[string]interface{}, error) {
	return s.docs, nil
}

func (s *memStore) FindDocumentsSince(_ context.Context, _ string, _ time.Time) ([]map[string]interface{}, error) {
	return s.since, nil
}

func (s *memStore) InsertDocument(_ context.Context, doc entity.StoredDocument) error {
	s.inserted = append(s.inserted, doc)
	return nil
}

func (s *memStore) ListReports(_ context.Context, agentName string, limit int) ([]entity.Report, error) {
	var out []entity.Report
	for _, r := range s.reports {
		if r.AgentName == agentName && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) GetReport(_ context.Context, id string) (*entity.Report, error) {
	for i := range s.reports {
		if s.reports[i].ID == id {
			r := s.reports[i]
			return &r, nil
		}
	}
	return nil, nil
}

type recordingHub struct {
	messages []ws.MessageEvent
	locks    []entity.HandoffLock
	receipts []entity.ReadReceipt
	statuses []ws.StatusEvent
}

func (h *recordingHub) BroadcastMessage(_ string, e ws.MessageEvent) { h.messages = append(h.messages, e) }
func (h *recordingHub) BroadcastLock(_ string, l entity.HandoffLock) { h.locks = append(h.locks, l) }
func (h *recordingHub) BroadcastReadReceipt(_ string, r entity.ReadReceipt) { h.receipts = append(h.receipts, r) }
func (h *recordingHub) BroadcastStatus(_ string, s ws.StatusEvent) { h.statuses = append(h.statuses, s) }

type fakeMessenger struct {
	id    string
	err   error
	calls int
}

func (m *fakeMessenger) Send(_ context.Context, _ entity.WhatsAppConfig, _ entity.SendRequest) (string, error) {
	m.calls++
	return m.id, m.err
}

var (
	operator = &entity.Operator{Username: "ann", ClientID: "c1", Role: entity.RoleOperator}
	stranger = &entity.Operator{Username: "eve", ClientID: "c2", Role: entity.RoleOperator}
	admin    = &entity.Operator{Username: "root", Role: entity.RoleAdmin}
)

func readyAgent() *entity.Agent {
	return &entity.Agent{
		ID:       "a1",
		ClientID: "c1",
		Name:     "sales-bot",
		WhatsApp: entity.WhatsAppConfig{PhoneNumberID: "P1", AccessToken: "tok"},
	}
}

type fixture struct {
	core      *Core
	repo      *memRepo
	store     *memStore
	hub       *recordingHub
	messenger *fakeMessenger
}

func newFixture(agents ...*entity.Agent) *fixture {
	f := &fixture{
		repo:      newMemRepo(agents...),
		store:     &memStore{},
		hub:       &recordingHub{},
		messenger: &fakeMessenger{id: "wamid.1"},
	}
	f.core = New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.core.SetRepository(f.repo)
	f.core.SetConversationStore(f.store)
	f.core.SetBroadcaster(f.hub)
	f.core.SetMessenger(f.messenger)
	return f
}

func key() entity.ConversationKey {
	return entity.ConversationKey{AgentID: "a1", UserID: "U1", PhoneNumberID: "P1"}
}

func TestTake_LastWriterWins(t *testing.T) {
	f := newFixture(readyAgent())
	ctx := context.Background()

	_, err := f.core.TakeConversation(ctx, operator, &entity.TakeRequest{ConversationKey: key(), TakenBy: "ann"})
	require.NoError(t, err)
	_, err = f.core.TakeConversation(ctx, admin, &entity.TakeRequest{ConversationKey: key(), TakenBy: "root"})
	require.NoError(t, err)

	lock, err := f.core.GetHandoffLock(ctx, operator, key())
	require.NoError(t, err)
	assert.True(t, lock.IsTaken)
	assert.Equal(t, "root", *lock.TakenBy)
	assert.Len(t, f.hub.locks, 2)
}

func TestTake_Refusals(t *testing.T) {
	notReady := readyAgent()
	notReady.WhatsApp.AccessToken = ""
	f := newFixture(notReady)
	ctx := context.Background()

	_, err := f.core.TakeConversation(ctx, operator, &entity.TakeRequest{ConversationKey: key(), TakenBy: "ann"})
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.ErrorIs(t, err, entity.ErrNotReady)

	_, err = f.core.TakeConversation(ctx, stranger, &entity.TakeRequest{ConversationKey: key(), TakenBy: "eve"})
	assert.ErrorIs(t, err, entity.ErrForbidden)

	k := key()
	k.AgentID = "missing"
	_, err = f.core.TakeConversation(ctx, admin, &entity.TakeRequest{ConversationKey: k, TakenBy: "root"})
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Empty(t, f.hub.locks)
}

func TestRelease(t *testing.T) {
	f := newFixture(readyAgent())
	ctx := context.Background()
	_, err := f.core.TakeConversation(ctx, operator, &entity.TakeRequest{ConversationKey: key(), TakenBy: "ann"})
	require.NoError(t, err)

	lock, err := f.core.ReleaseConversation(ctx, operator, &entity.ReleaseRequest{ConversationKey: key()})
	require.NoError(t, err)
	assert.False(t, lock.IsTaken)
	assert.Nil(t, lock.TakenBy)

	stored, _ := f.core.GetHandoffLock(ctx, operator, key())
	assert.False(t, stored.IsTaken)
}

func TestSendWhatsApp(t *testing.T) {
	f := newFixture(readyAgent())
	ctx := context.Background()
	req := &entity.SendRequest{AgentID: "a1", PhoneNumber: "U1", UserID: "U1", MessageType: "text", Message: "hi there"}

	_, err := f.core.SendWhatsApp(ctx, operator, req)
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.Zero(t, f.messenger.calls)

	_, err = f.core.TakeConversation(ctx, operator, &entity.TakeRequest{ConversationKey: key(), TakenBy: "ann"})
	require.NoError(t, err)

	res, err := f.core.SendWhatsApp(ctx, operator, req)
	require.NoError(t, err)
	assert.Equal(t, "wamid.1", res.MessageID)

	require.Len(t, f.store.inserted, 1)
	doc := f.store.inserted[0]
	assert.Equal(t, "sales-bot", doc.AgentName)
	assert.Equal(t, "hi there", doc.AIText)
	assert.Equal(t, "operator", doc.Sender)
	assert.Equal(t, "P1", doc.PhoneNumberID)

	require.Len(t, f.hub.messages, 1)
	assert.Equal(t, "phone_P1_user_U1", f.hub.messages[0].ConversationID)
	assert.Equal(t, entity.DirectionAgent, f.hub.messages[0].Message.Direction)
}

func TestSendWhatsApp_ConversationWithoutPhoneID(t *testing.T) {
	f := newFixture(readyAgent())
	ctx := context.Background()
	userOnly := entity.ConversationKey{AgentID: "a1", UserID: "U7"}

	_, err := f.core.TakeConversation(ctx, operator, &entity.TakeRequest{ConversationKey: userOnly, TakenBy: "ann"})
	require.NoError(t, err)

	req := &entity.SendRequest{AgentID: "a1", PhoneNumber: "U7", UserID: "U7", MessageType: "text", Message: "on it"}
	res, err := f.core.SendWhatsApp(ctx, operator, req)
	require.NoError(t, err)
	assert.Equal(t, "wamid.1", res.MessageID)
	assert.Equal(t, 1, f.messenger.calls)

	require.Len(t, f.store.inserted, 1)
	assert.Empty(t, f.store.inserted[0].PhoneNumberID)
	require.Len(t, f.hub.messages, 1)
	assert.Equal(t, "user_U7", f.hub.messages[0].ConversationID)

	_, err = f.core.ReleaseConversation(ctx, operator, &entity.ReleaseRequest{ConversationKey: userOnly})
	require.NoError(t, err)
	_, err = f.core.SendWhatsApp(ctx, operator, &entity.SendRequest{AgentID: "a1", PhoneNumber: "U7", UserID: "U7", MessageType: "text", Message: "again"})
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.Equal(t, 1, f.messenger.calls)
}

func TestSendWhatsApp_BridgeFailure(t *testing.T) {
	f := newFixture(readyAgent())
	f.messenger.err = errors.New("graph down")
	req := &entity.SendRequest{AgentID: "a1", PhoneNumber: "U1", MessageType: "text", Message: "x"}

	_, err := f.core.SendWhatsApp(context.Background(), operator, req)
	assert.ErrorContains(t, err, "graph down")
	assert.Empty(t, f.store.inserted)
	assert.Empty(t, f.hub.messages)
}

func TestOnInbound(t *testing.T) {
	f := newFixture(readyAgent())
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	f.core.OnInbound(context.Background(), whatsapp.InboundMessage{
		PhoneNumberID: "P1", From: "U9", MessageID: "wamid.in", Text: "hello", Timestamp: ts,
	})
	f.core.OnInbound(context.Background(), whatsapp.InboundMessage{PhoneNumberID: "P-unknown", From: "U9", Text: "lost"})

	require.Len(t, f.store.inserted, 1)
	doc := f.store.inserted[0]
	assert.Equal(t, "hello", doc.HumanText)
	assert.Equal(t, "U9", doc.UserID)
	assert.Equal(t, conversation.FormatTime(ts), doc.Datetime)

	assert.Equal(t, []entity.ConversationKey{{AgentID: "a1", UserID: "U9", PhoneNumberID: "P1"}}, f.repo.unread)
	require.Len(t, f.hub.messages, 1)
	assert.Equal(t, entity.DirectionUser, f.hub.messages[0].Message.Direction)
}

func TestListConversations_Unread(t *testing.T) {
	f := newFixture(readyAgent())
	f.store.docs = []map[string]interface{}{
		{"phone_number_id": "P1", "user_id": "U1", "message-Human": "one", "datetime": "2025-03-01T10:00:00Z"},
		{"phone_number_id": "P1", "user_id": "U1", "message-Human": "two", "datetime": "2025-03-01T10:05:00Z"},
		{"phone_number_id": "P1", "user_id": "U2", "message-Human": "other", "datetime": "2025-03-01T09:00:00Z"},
	}
	f.repo.receipts[entity.ReceiptKey("U1", "P1")] = time.Date(2025, 3, 1, 10, 1, 0, 0, time.UTC)

	got, err := f.core.ListConversations(context.Background(), operator, "sales-bot", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "phone_P1_user_U1", got[0].ID)
	assert.Equal(t, 1, got[0].Unread)
	assert.Equal(t, 1, got[1].Unread)

	_, err = f.core.ListConversations(context.Background(), stranger, "sales-bot", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, entity.ErrForbidden)
}

func TestCheckUpdates_CheckpointMonotonic(t *testing.T) {
	f := newFixture(readyAgent())
	since := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	set, err := f.core.CheckUpdates(context.Background(), operator, "sales-bot", since)
	require.NoError(t, err)
	assert.Empty(t, set.UpdatedConversations)
	assert.Equal(t, since, set.LastCheckTimestamp)

	f.store.since = []map[string]interface{}{
		{"phone_number_id": "P1", "user_id": "U1", "message-Human": "new", "datetime": "2025-03-01T12:00:05Z"},
	}
	set, err = f.core.CheckUpdates(context.Background(), operator, "sales-bot", since)
	require.NoError(t, err)
	assert.Equal(t, []string{"phone_P1_user_U1"}, set.UpdatedConversations)
	assert.Equal(t, "new", set.NewMessages["phone_P1_user_U1"].LastMessage)
	assert.Equal(t, since.Add(5*time.Second), set.LastCheckTimestamp)
}

func TestCheckUpdates_MixedDatetimeLayouts(t *testing.T) {
	f := newFixture(readyAgent())
	since := time.Date(2025, 3, 1, 11, 30, 0, 0, time.UTC)

	// 13:00+02:00 is 11:00 UTC and sorts after the checkpoint as a string;
	// the space separated row sorts before it but is newer.
	f.store.since = []map[string]interface{}{
		{"phone_number_id": "P1", "user_id": "U1", "message-Human": "old", "datetime": "2025-03-01T13:00:00+02:00"},
		{"phone_number_id": "P1", "user_id": "U2", "message-Human": "new", "datetime": "2025-03-01 12:00:05"},
	}
	set, err := f.core.CheckUpdates(context.Background(), operator, "sales-bot", since)
	require.NoError(t, err)
	assert.Equal(t, []string{"phone_P1_user_U2"}, set.UpdatedConversations)
	assert.NotContains(t, set.NewMessages, "phone_P1_user_U1")
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 5, 0, time.UTC), set.LastCheckTimestamp)

	f.store.since = f.store.since[:1]
	set, err = f.core.CheckUpdates(context.Background(), operator, "sales-bot", since)
	require.NoError(t, err)
	assert.Empty(t, set.UpdatedConversations)
	assert.Equal(t, since, set.LastCheckTimestamp)
}

func TestListConversations_WindowOnParsedDatetime(t *testing.T) {
	f := newFixture(readyAgent())
	f.store.docs = []map[string]interface{}{
		{"phone_number_id": "P1", "user_id": "U1", "message-Human": "inside", "datetime": "2025-03-01 10:00:00"},
		{"phone_number_id": "P1", "user_id": "U2", "message-Human": "outside", "datetime": "2025-03-02T01:00:00+03:00"},
		{"phone_number_id": "P1", "user_id": "U3", "message-Human": "unix", "datetime": int64(1740823200)},
	}
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC)

	got, err := f.core.ListConversations(context.Background(), operator, "sales-bot", from, to)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"phone_P1_user_U1", "phone_P1_user_U3"}, ids)
}

func TestMarkRead_Broadcasts(t *testing.T) {
	f := newFixture(readyAgent())
	_, err := f.core.MarkRead(context.Background(), operator, &entity.MarkReadRequest{AgentID: "a1", UserID: "U1", ReadBy: "ann"})
	require.NoError(t, err)
	require.Len(t, f.hub.receipts, 1)
	assert.Zero(t, f.hub.receipts[0].UnreadCount)
}

func TestAgents_Scoping(t *testing.T) {
	other := &entity.Agent{ID: "a2", ClientID: "c2", Name: "other"}
	f := newFixture(readyAgent(), other)
	ctx := context.Background()

	list, err := f.core.ListAgents(ctx, operator, "c2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a1", list[0].ID)
	assert.Equal(t, "***", list[0].WhatsApp.AccessToken)

	all, err := f.core.ListAgents(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.core.GetAgent(ctx, operator, "a2")
	assert.ErrorIs(t, err, entity.ErrForbidden)

	_, err = f.core.CreateAgent(ctx, operator, &entity.Agent{ClientID: "c2", Name: "x"})
	assert.ErrorIs(t, err, entity.ErrForbidden)

	_, err = f.core.CreateClient(ctx, operator, &entity.Client{Name: "x"})
	assert.ErrorIs(t, err, entity.ErrForbidden)
}

func TestReports_Scoping(t *testing.T) {
	other := &entity.Agent{ID: "a2", ClientID: "c2", Name: "other"}
	f := newFixture(readyAgent(), other)
	f.store.reports = []entity.Report{
		{ID: "r1", AgentName: "sales-bot", Title: "daily"},
		{ID: "r2", AgentName: "other", Title: "weekly"},
	}
	ctx := context.Background()

	list, err := f.core.ListReports(ctx, operator, "sales-bot", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "r1", list[0].ID)

	_, err = f.core.ListReports(ctx, operator, "other", 10)
	assert.ErrorIs(t, err, entity.ErrForbidden)

	_, err = f.core.GetReport(ctx, operator, "r2")
	assert.ErrorIs(t, err, entity.ErrForbidden)

	_, err = f.core.GetReport(ctx, operator, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	r, err := f.core.GetReport(ctx, admin, "r2")
	require.NoError(t, err)
	assert.Equal(t, "weekly", r.Title)
}
