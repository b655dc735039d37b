package repository

import (
	"AgentDesk/entity"
	"context"
	"fmt"

	"github.com/google/uuid"
)

const clientColumns = `id, name, email, active, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (*entity.Client, error) {
	c := &entity.Client{}
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Postgres) CreateClient(ctx context.Context, client *entity.Client) (*entity.Client, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO clients (id, name, email, active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+clientColumns,
		uuid.NewString(), client.Name, client.Email, client.Active)
	c, err := scanClient(row)
	if err != nil {
		return nil, fmt.Errorf("postgres insert client: %w", err)
	}
	return c, nil
}

func (p *Postgres) GetClient(ctx context.Context, id string) (*entity.Client, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if err != nil {
		return nil, noRows(err)
	}
	return c, nil
}

// ListClients returns every tenant when clientID is empty, otherwise just that one.
func (p *Postgres) ListClients(ctx context.Context, clientID string) ([]entity.Client, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE $1 = '' OR id = $1
		ORDER BY name`, clientID)
	if err != nil {
		return nil, fmt.Errorf("postgres list clients: %w", err)
	}
	defer rows.Close()

	var clients []entity.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

func (p *Postgres) UpdateClient(ctx context.Context, client *entity.Client) (*entity.Client, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE clients SET name = $2, email = $3, active = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+clientColumns,
		client.ID, client.Name, client.Email, client.Active)
	c, err := scanClient(row)
	if err != nil {
		return nil, noRows(err)
	}
	return c, nil
}

func (p *Postgres) DeleteClient(ctx context.Context, id string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("postgres delete client: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
