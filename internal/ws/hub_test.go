package ws

import (
	"AgentDesk/entity"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth map[string]*entity.Operator

func (f fakeAuth) AuthenticateByToken(_ context.Context, token string) (*entity.Operator, error) {
	if op, ok := f[token]; ok {
		return op, nil
	}
	return nil, errors.New("unknown token")
}

type markReadRecorder struct {
	calls chan *entity.MarkReadRequest
}

func (m *markReadRecorder) MarkRead(_ context.Context, _ *entity.Operator, req *entity.MarkReadRequest) (*entity.ReadReceipt, error) {
	m.calls <- req
	return &entity.ReadReceipt{}, nil
}

func startHub(t *testing.T) (*Hub, string) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	auth := fakeAuth{
		"tok-a":     {Username: "ann", ClientID: "c1", Role: entity.RoleOperator},
		"tok-b":     {Username: "bob", ClientID: "c2", Role: entity.RoleOperator},
		"tok-admin": {Username: "root", Role: entity.RoleAdmin},
	}
	srv := httptest.NewServer(ServeWs(hub, auth))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, token string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWs_RejectsBadToken(t *testing.T) {
	_, url := startHub(t)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestBroadcast_ScopedByTenant(t *testing.T) {
	hub, url := startHub(t)
	ann := dial(t, url, "tok-a")
	bob := dial(t, url, "tok-b")
	admin := dial(t, url, "tok-admin")
	waitClients(t, hub, 3)

	hub.BroadcastLock("c1", entity.HandoffLock{
		ConversationKey: entity.ConversationKey{AgentID: "a1", UserID: "u1"},
		IsTaken:         true,
	})

	for _, conn := range []*websocket.Conn{ann, admin} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev struct {
			Type string             `json:"type"`
			Data entity.HandoffLock `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, EventLockChanged, ev.Type)
		assert.True(t, ev.Data.IsTaken)
		assert.Equal(t, "u1", ev.Data.UserID)
	}

	_ = bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err)
}

func TestClientMarkRead(t *testing.T) {
	hub, url := startHub(t)
	rec := &markReadRecorder{calls: make(chan *entity.MarkReadRequest, 1)}
	hub.SetHandler(rec)

	conn := dial(t, url, "tok-a")
	waitClients(t, hub, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"mark_read","data":{"agent_id":"a1","user_id":"u1","phone_number_id":"p1"}}`)))

	select {
	case req := <-rec.calls:
		assert.Equal(t, "a1", req.AgentID)
		assert.Equal(t, "ann", req.ReadBy)
	case <-time.After(2 * time.Second):
		t.Fatal("mark_read not dispatched")
	}
}
