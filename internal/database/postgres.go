package repository

import (
	"AgentDesk/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the relational store: tenants, agents, operators, handoff
// locks, read receipts and the lead processing log.
type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger

	receiptsMu    sync.Mutex
	receiptsReady bool
}

func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Postgres{
		pool: pool,
		log:  logger.With(sl.Module("postgres")),
	}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS clients (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	email       TEXT NOT NULL DEFAULT '',
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agents (
	id                   TEXT PRIMARY KEY,
	client_id            TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	name                 TEXT NOT NULL UNIQUE,
	description          TEXT NOT NULL DEFAULT '',
	workflow_id          TEXT NOT NULL DEFAULT '',
	wa_phone_number_id   TEXT NOT NULL DEFAULT '',
	wa_business_id       TEXT NOT NULL DEFAULT '',
	wa_access_token      TEXT NOT NULL DEFAULT '',
	ads_form_id          TEXT NOT NULL DEFAULT '',
	active               BOOLEAN NOT NULL DEFAULT TRUE,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS agents_phone_idx ON agents (wa_phone_number_id);

CREATE TABLE IF NOT EXISTS operators (
	id             TEXT PRIMARY KEY,
	username       TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL DEFAULT '',
	password_hash  TEXT NOT NULL,
	client_id      TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL DEFAULT 'operator',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sessions (
	token        TEXT PRIMARY KEY,
	operator_id  TEXT NOT NULL REFERENCES operators(id) ON DELETE CASCADE,
	expires_at   TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversation_takeover (
	id               BIGSERIAL PRIMARY KEY,
	agent_id         TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	phone_number_id  TEXT NOT NULL DEFAULT '',
	is_taken         BOOLEAN NOT NULL DEFAULT FALSE,
	taken_by         TEXT,
	taken_at         TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (agent_id, user_id, phone_number_id)
);

CREATE TABLE IF NOT EXISTS lead_processing_log (
	lead_id     TEXT PRIMARY KEY,
	agent_id    TEXT NOT NULL,
	status      TEXT NOT NULL,
	step        TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	crm_id      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS lead_log_agent_idx ON lead_processing_log (agent_id, updated_at DESC);
`

// Migrate creates the tables the console owns. The read-receipt table is
// not here: it is provisioned on first use.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// noRows maps pgx.ErrNoRows to nil so callers see (nil, nil) for "absent".
func noRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
