package cli

import (
	"AgentDesk/entity"
	"AgentDesk/internal/inbox"
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	calls    []string
	snap     inbox.Snapshot
	compose  string
	from, to time.Time
	err      error
}

func (f *fakeSession) SelectAgent(_ context.Context, agent entity.Agent, from, to time.Time) error {
	f.calls = append(f.calls, "agent:"+agent.Name)
	f.from, f.to = from, to
	f.snap.Agent = &agent
	return f.err
}

func (f *fakeSession) PollOnce(context.Context) (int, error) {
	f.calls = append(f.calls, "poll")
	return 0, f.err
}

func (f *fakeSession) Select(_ context.Context, id string) error {
	f.calls = append(f.calls, "select:"+id)
	f.snap.Selected = id
	return f.err
}

func (f *fakeSession) Take(context.Context) error {
	f.calls = append(f.calls, "take")
	by := "ann"
	f.snap.Lock = &entity.HandoffLock{IsTaken: true, TakenBy: &by}
	return f.err
}

func (f *fakeSession) Release(context.Context) error {
	f.calls = append(f.calls, "release")
	f.snap.Lock = &entity.HandoffLock{}
	return f.err
}

func (f *fakeSession) SetCompose(text string) { f.compose = text }

func (f *fakeSession) Send(context.Context) (*entity.Message, error) {
	f.calls = append(f.calls, "send:"+f.compose)
	if f.err != nil {
		return nil, f.err
	}
	return &entity.Message{Text: f.compose, Status: entity.StatusSent}, nil
}

func (f *fakeSession) Snapshot() inbox.Snapshot { return f.snap }

func newConsole() (*console, *fakeSession, *bytes.Buffer) {
	out := &bytes.Buffer{}
	fs := &fakeSession{snap: inbox.Snapshot{
		Agent: &entity.Agent{Name: "sales-bot"},
		Conversations: []entity.Conversation{
			{ID: "phone_P1_user_U2", LastMessage: "later"},
			{ID: "phone_P1_user_U1", LastMessage: "hola"},
		},
		Fresh: map[string]bool{"phone_P1_user_U2": true},
	}}
	c := &console{
		session:  fs,
		agents:   []entity.Agent{{Name: "sales-bot"}, {Name: "Support"}},
		out:      out,
		daysBack: 7,
		now:      func() time.Time { return time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC) },
	}
	return c, fs, out
}

func TestConsole_OpenByPosition(t *testing.T) {
	c, fs, _ := newConsole()

	quit, err := c.exec(context.Background(), "open 2\n")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, []string{"select:phone_P1_user_U1"}, fs.calls)
}

func TestConsole_OpenOutOfRange(t *testing.T) {
	c, fs, _ := newConsole()

	_, err := c.exec(context.Background(), "open 3")
	assert.Error(t, err)
	assert.Empty(t, fs.calls)

	_, err = c.exec(context.Background(), "open")
	assert.Error(t, err)
}

func TestConsole_TakeSayRelease(t *testing.T) {
	c, fs, out := newConsole()
	ctx := context.Background()

	_, err := c.exec(ctx, "take")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "taken by ann")

	_, err = c.exec(ctx, "say  hello there ")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[sent] hello there")

	_, err = c.exec(ctx, "release")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "agent is answering")

	assert.Equal(t, []string{"take", "send:hello there", "release"}, fs.calls)
}

func TestConsole_SessionErrorSurfaces(t *testing.T) {
	c, fs, _ := newConsole()
	fs.err = fmt.Errorf("%w: not taken", inbox.ErrPrecondition)

	_, err := c.exec(context.Background(), "say hi")
	assert.ErrorIs(t, err, inbox.ErrPrecondition)
}

func TestConsole_SwitchAgent(t *testing.T) {
	c, fs, _ := newConsole()

	_, err := c.exec(context.Background(), "agent support")
	require.NoError(t, err)
	assert.Equal(t, []string{"agent:Support"}, fs.calls)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), fs.from)

	_, err = c.exec(context.Background(), "agent nobody")
	assert.Error(t, err)
}

func TestConsole_ListMarksFresh(t *testing.T) {
	c, _, out := newConsole()

	_, err := c.exec(context.Background(), "ls")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "sales-bot: 2 conversation(s)")
	assert.Contains(t, out.String(), "*   1. phone_P1_user_U2")
}

func TestConsole_QuitAndUnknown(t *testing.T) {
	c, _, _ := newConsole()

	quit, err := c.exec(context.Background(), "quit")
	require.NoError(t, err)
	assert.True(t, quit)

	quit, err = c.exec(context.Background(), "dance")
	assert.Error(t, err)
	assert.False(t, quit)

	quit, err = c.exec(context.Background(), "   ")
	assert.NoError(t, err)
	assert.False(t, quit)
}
