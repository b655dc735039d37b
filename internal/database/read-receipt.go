package repository

import (
	"AgentDesk/entity"
	"context"
	"fmt"
	"time"
)

const createReadReceipts = `
CREATE TABLE IF NOT EXISTS conversation_read_status (
	id                     BIGSERIAL PRIMARY KEY,
	agent_id               TEXT NOT NULL,
	user_id                TEXT NOT NULL,
	phone_number_id        TEXT NOT NULL DEFAULT '',
	read_by                TEXT NOT NULL,
	last_read_datetime     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_message_datetime  TIMESTAMPTZ,
	unread_count           INTEGER NOT NULL DEFAULT 0,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (agent_id, user_id, phone_number_id, read_by)
)`

const receiptColumns = `id, agent_id, user_id, phone_number_id, read_by,
	last_read_datetime, last_message_datetime, unread_count, created_at, updated_at`

func scanReceipt(row interface{ Scan(...any) error }) (*entity.ReadReceipt, error) {
	r := &entity.ReadReceipt{}
	err := row.Scan(
		&r.ID,
		&r.AgentID,
		&r.UserID,
		&r.PhoneNumberID,
		&r.ReadBy,
		&r.LastReadDatetime,
		&r.LastMessageDatetime,
		&r.UnreadCount,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ensureReadReceipts provisions the table on first use. A failed attempt is
// retried on the next call.
func (p *Postgres) ensureReadReceipts(ctx context.Context) error {
	p.receiptsMu.Lock()
	defer p.receiptsMu.Unlock()
	if p.receiptsReady {
		return nil
	}
	if _, err := p.pool.Exec(ctx, createReadReceipts); err != nil {
		return fmt.Errorf("postgres create read receipts: %w", err)
	}
	p.receiptsReady = true
	return nil
}

// MarkRead upserts the receipt; the unread counter always ends at zero and
// the last message datetime never moves back.
func (p *Postgres) MarkRead(ctx context.Context, req entity.MarkReadRequest) (*entity.ReadReceipt, error) {
	if err := p.ensureReadReceipts(ctx); err != nil {
		return nil, err
	}
	row := p.pool.QueryRow(ctx, `
		INSERT INTO conversation_read_status
			(agent_id, user_id, phone_number_id, read_by, last_read_datetime, last_message_datetime, unread_count)
		VALUES ($1, $2, $3, $4, now(), $5, 0)
		ON CONFLICT (agent_id, user_id, phone_number_id, read_by) DO UPDATE SET
			last_read_datetime = now(),
			last_message_datetime = GREATEST(conversation_read_status.last_message_datetime, EXCLUDED.last_message_datetime),
			unread_count = 0,
			updated_at = now()
		RETURNING `+receiptColumns,
		req.AgentID, req.UserID, req.PhoneNumberID, req.ReadBy, req.LastMessageDatetime)
	r, err := scanReceipt(row)
	if err != nil {
		return nil, fmt.Errorf("postgres mark read: %w", err)
	}
	return r, nil
}

// GetReadReceipts returns the receipts of one reader for one agent, keyed
// by "user_id|phone_number_id".
func (p *Postgres) GetReadReceipts(ctx context.Context, agentID, readBy string) (map[string]time.Time, error) {
	if err := p.ensureReadReceipts(ctx); err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, `
		SELECT user_id, phone_number_id, last_read_datetime
		FROM conversation_read_status
		WHERE agent_id = $1 AND read_by = $2`, agentID, readBy)
	if err != nil {
		return nil, fmt.Errorf("postgres get read receipts: %w", err)
	}
	defer rows.Close()

	receipts := make(map[string]time.Time)
	for rows.Next() {
		var userID, phoneID string
		var readAt time.Time
		if err := rows.Scan(&userID, &phoneID, &readAt); err != nil {
			return nil, fmt.Errorf("postgres scan read receipt: %w", err)
		}
		receipts[entity.ReceiptKey(userID, phoneID)] = readAt
	}
	return receipts, rows.Err()
}

// IncrementUnread bumps the counters of every reader of a conversation when a
// new inbound message arrives.
func (p *Postgres) IncrementUnread(ctx context.Context, key entity.ConversationKey, messageTime time.Time) error {
	if err := p.ensureReadReceipts(ctx); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `
		UPDATE conversation_read_status
		SET unread_count = unread_count + 1,
			last_message_datetime = GREATEST(last_message_datetime, $4),
			updated_at = now()
		WHERE agent_id = $1 AND user_id = $2 AND phone_number_id = $3`,
		key.AgentID, key.UserID, key.PhoneNumberID, messageTime)
	if err != nil {
		return fmt.Errorf("postgres increment unread: %w", err)
	}
	return nil
}

func (p *Postgres) GetReadReceipt(ctx context.Context, key entity.ConversationKey, readBy string) (*entity.ReadReceipt, error) {
	if err := p.ensureReadReceipts(ctx); err != nil {
		return nil, err
	}
	row := p.pool.QueryRow(ctx, `
		SELECT `+receiptColumns+` FROM conversation_read_status
		WHERE agent_id = $1 AND user_id = $2 AND phone_number_id = $3 AND read_by = $4`,
		key.AgentID, key.UserID, key.PhoneNumberID, readBy)
	r, err := scanReceipt(row)
	if err != nil {
		return nil, noRows(err)
	}
	return r, nil
}
