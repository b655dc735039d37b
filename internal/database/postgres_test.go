package repository

import (
	"AgentDesk/entity"
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a scratch database in TEST_DATABASE_URL and are skipped
// without one.
func testPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewPostgres(ctx, url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(db.Close)
	return db
}

func testKey() entity.ConversationKey {
	return entity.ConversationKey{
		AgentID:       "agent-" + uuid.NewString(),
		UserID:        "380501234567",
		PhoneNumberID: "P1",
	}
}

func TestTakeConversation_LastWriterWins(t *testing.T) {
	db := testPostgres(t)
	ctx := context.Background()
	key := testKey()

	first, err := db.TakeConversation(ctx, key, "alice")
	require.NoError(t, err)
	assert.True(t, first.IsTaken)

	second, err := db.TakeConversation(ctx, key, "bob")
	require.NoError(t, err)
	require.NotNil(t, second.TakenBy)
	assert.Equal(t, "bob", *second.TakenBy)

	lock, err := db.GetHandoffLock(ctx, key)
	require.NoError(t, err)
	assert.True(t, lock.IsTaken)
	require.NotNil(t, lock.TakenBy)
	assert.Equal(t, "bob", *lock.TakenBy)
}

func TestReleaseConversation_KeepsRow(t *testing.T) {
	db := testPostgres(t)
	ctx := context.Background()
	key := testKey()

	_, err := db.TakeConversation(ctx, key, "alice")
	require.NoError(t, err)
	require.NoError(t, db.ReleaseConversation(ctx, key))

	lock, err := db.GetHandoffLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, lock.IsTaken)
	assert.Nil(t, lock.TakenBy)
	assert.Nil(t, lock.TakenAt)

	// releasing an absent row is not an error
	require.NoError(t, db.ReleaseConversation(ctx, testKey()))
}

func TestGetHandoffLock_Absent(t *testing.T) {
	db := testPostgres(t)
	key := testKey()

	lock, err := db.GetHandoffLock(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, lock.IsTaken)
	assert.Equal(t, key, lock.ConversationKey)
}

func TestMarkRead_ResetsUnread(t *testing.T) {
	db := testPostgres(t)
	ctx := context.Background()
	key := testKey()
	msgTime := time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond)

	req := entity.MarkReadRequest{
		AgentID:             key.AgentID,
		UserID:              key.UserID,
		PhoneNumberID:       key.PhoneNumberID,
		LastMessageDatetime: &msgTime,
		ReadBy:              "alice",
	}
	_, err := db.MarkRead(ctx, req)
	require.NoError(t, err)

	require.NoError(t, db.IncrementUnread(ctx, key, time.Now()))
	require.NoError(t, db.IncrementUnread(ctx, key, time.Now()))
	r, err := db.GetReadReceipt(ctx, key, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, r.UnreadCount)

	earlier := msgTime.Add(-time.Hour)
	req.LastMessageDatetime = &earlier
	r, err = db.MarkRead(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, r.UnreadCount)
	require.NotNil(t, r.LastMessageDatetime)
	assert.False(t, r.LastMessageDatetime.Before(msgTime))
}

func TestClaimLead_OnlyOnce(t *testing.T) {
	db := testPostgres(t)
	ctx := context.Background()
	leadID := "lead-" + uuid.NewString()

	l, inserted, err := db.ClaimLead(ctx, leadID, "agent")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, entity.LeadReceived, l.Status)

	require.NoError(t, db.UpdateLeadLog(ctx, entity.LeadLog{LeadID: leadID, Status: entity.LeadSynced, Step: "crm", CrmID: "00Q1"}))

	l, inserted, err = db.ClaimLead(ctx, leadID, "agent")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, entity.LeadSynced, l.Status)
	assert.Equal(t, "00Q1", l.CrmID)
}
