package repository

import (
	"AgentDesk/entity"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetOperatorCredentials returns the operator and its password hash.
func (p *Postgres) GetOperatorCredentials(ctx context.Context, username string) (*entity.Operator, string, error) {
	o := &entity.Operator{}
	var hash string
	err := p.pool.QueryRow(ctx, `
		SELECT id, username, name, client_id, role, password_hash
		FROM operators WHERE username = $1`, username).
		Scan(&o.ID, &o.Username, &o.Name, &o.ClientID, &o.Role, &hash)
	if err != nil {
		if err = noRows(err); err != nil {
			return nil, "", fmt.Errorf("postgres get operator: %w", err)
		}
		return nil, "", nil
	}
	return o, hash, nil
}

func (p *Postgres) CreateOperator(ctx context.Context, operator *entity.Operator, passwordHash string) (*entity.Operator, error) {
	o := &entity.Operator{}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO operators (id, username, name, password_hash, client_id, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO UPDATE SET
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			client_id = EXCLUDED.client_id,
			role = EXCLUDED.role
		RETURNING id, username, name, client_id, role`,
		uuid.NewString(), operator.Username, operator.Name, passwordHash, operator.ClientID, operator.Role).
		Scan(&o.ID, &o.Username, &o.Name, &o.ClientID, &o.Role)
	if err != nil {
		return nil, fmt.Errorf("postgres upsert operator: %w", err)
	}
	return o, nil
}

func (p *Postgres) CreateSession(ctx context.Context, operatorID string, ttl time.Duration) (string, time.Time, error) {
	token := uuid.NewString()
	expires := time.Now().Add(ttl).UTC()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (token, operator_id, expires_at) VALUES ($1, $2, $3)`,
		token, operatorID, expires)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("postgres create session: %w", err)
	}
	return token, expires, nil
}

// GetSessionOperator resolves a live token, nil when unknown or expired.
func (p *Postgres) GetSessionOperator(ctx context.Context, token string) (*entity.Operator, time.Time, error) {
	o := &entity.Operator{}
	var expires time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT o.id, o.username, o.name, o.client_id, o.role, s.expires_at
		FROM sessions s JOIN operators o ON o.id = s.operator_id
		WHERE s.token = $1 AND s.expires_at > now()`, token).
		Scan(&o.ID, &o.Username, &o.Name, &o.ClientID, &o.Role, &expires)
	if err != nil {
		if err = noRows(err); err != nil {
			return nil, time.Time{}, fmt.Errorf("postgres get session: %w", err)
		}
		return nil, time.Time{}, nil
	}
	return o, expires, nil
}

func (p *Postgres) DeleteSession(ctx context.Context, token string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("postgres delete session: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("postgres delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
