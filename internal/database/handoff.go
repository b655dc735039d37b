package repository

import (
	"AgentDesk/entity"
	"context"
	"fmt"
)

const lockColumns = `agent_id, user_id, phone_number_id, is_taken, taken_by, taken_at`

func scanLock(row interface{ Scan(...any) error }) (*entity.HandoffLock, error) {
	l := &entity.HandoffLock{}
	err := row.Scan(&l.AgentID, &l.UserID, &l.PhoneNumberID, &l.IsTaken, &l.TakenBy, &l.TakenAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// TakeConversation upserts the lock row. The unique key on the triple is the
// only guard: a second operator overwrites the first.
func (p *Postgres) TakeConversation(ctx context.Context, key entity.ConversationKey, takenBy string) (*entity.HandoffLock, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO conversation_takeover (agent_id, user_id, phone_number_id, is_taken, taken_by, taken_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, now(), now())
		ON CONFLICT (agent_id, user_id, phone_number_id) DO UPDATE SET
			is_taken = TRUE,
			taken_by = EXCLUDED.taken_by,
			taken_at = EXCLUDED.taken_at,
			updated_at = now()
		RETURNING `+lockColumns,
		key.AgentID, key.UserID, key.PhoneNumberID, takenBy)
	l, err := scanLock(row)
	if err != nil {
		return nil, fmt.Errorf("postgres take conversation: %w", err)
	}
	return l, nil
}

// ReleaseConversation clears the lock fields and keeps the row.
func (p *Postgres) ReleaseConversation(ctx context.Context, key entity.ConversationKey) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE conversation_takeover
		SET is_taken = FALSE, taken_by = NULL, taken_at = NULL, updated_at = now()
		WHERE agent_id = $1 AND user_id = $2 AND phone_number_id = $3`,
		key.AgentID, key.UserID, key.PhoneNumberID)
	if err != nil {
		return fmt.Errorf("postgres release conversation: %w", err)
	}
	return nil
}

// GetHandoffLock returns the lock of the triple, not-taken when no row exists.
func (p *Postgres) GetHandoffLock(ctx context.Context, key entity.ConversationKey) (*entity.HandoffLock, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+lockColumns+` FROM conversation_takeover
		WHERE agent_id = $1 AND user_id = $2 AND phone_number_id = $3`,
		key.AgentID, key.UserID, key.PhoneNumberID)
	l, err := scanLock(row)
	if err != nil {
		if err = noRows(err); err != nil {
			return nil, fmt.Errorf("postgres get lock: %w", err)
		}
		return &entity.HandoffLock{ConversationKey: key}, nil
	}
	return l, nil
}

// ListTakenConversations returns the locks currently held for one agent.
func (p *Postgres) ListTakenConversations(ctx context.Context, agentID string) ([]entity.HandoffLock, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+lockColumns+` FROM conversation_takeover
		WHERE agent_id = $1 AND is_taken`, agentID)
	if err != nil {
		return nil, fmt.Errorf("postgres list locks: %w", err)
	}
	defer rows.Close()

	var locks []entity.HandoffLock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres scan lock: %w", err)
		}
		locks = append(locks, *l)
	}
	return locks, rows.Err()
}
