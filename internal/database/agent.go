package repository

import (
	"AgentDesk/entity"
	"context"
	"fmt"

	"github.com/google/uuid"
)

const agentColumns = `id, client_id, name, description, workflow_id,
	wa_phone_number_id, wa_business_id, wa_access_token, ads_form_id,
	active, created_at, updated_at`

func scanAgent(row interface{ Scan(...any) error }) (*entity.Agent, error) {
	a := &entity.Agent{}
	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.Name,
		&a.Description,
		&a.WorkflowID,
		&a.WhatsApp.PhoneNumberID,
		&a.WhatsApp.BusinessAccountID,
		&a.WhatsApp.AccessToken,
		&a.Ads.FormID,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (p *Postgres) CreateAgent(ctx context.Context, agent *entity.Agent) (*entity.Agent, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO agents (id, client_id, name, description, workflow_id,
			wa_phone_number_id, wa_business_id, wa_access_token, ads_form_id, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+agentColumns,
		uuid.NewString(),
		agent.ClientID,
		agent.Name,
		agent.Description,
		agent.WorkflowID,
		agent.WhatsApp.PhoneNumberID,
		agent.WhatsApp.BusinessAccountID,
		agent.WhatsApp.AccessToken,
		agent.Ads.FormID,
		agent.Active,
	)
	a, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("postgres insert agent: %w", err)
	}
	return a, nil
}

// UpdateAgent keeps the stored access token when the update carries none.
func (p *Postgres) UpdateAgent(ctx context.Context, agent *entity.Agent) (*entity.Agent, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE agents SET
			client_id = $2,
			name = $3,
			description = $4,
			workflow_id = $5,
			wa_phone_number_id = $6,
			wa_business_id = $7,
			wa_access_token = COALESCE(NULLIF($8, ''), wa_access_token),
			ads_form_id = $9,
			active = $10,
			updated_at = now()
		WHERE id = $1
		RETURNING `+agentColumns,
		agent.ID,
		agent.ClientID,
		agent.Name,
		agent.Description,
		agent.WorkflowID,
		agent.WhatsApp.PhoneNumberID,
		agent.WhatsApp.BusinessAccountID,
		agent.WhatsApp.AccessToken,
		agent.Ads.FormID,
		agent.Active,
	)
	a, err := scanAgent(row)
	if err != nil {
		return nil, noRows(err)
	}
	return a, nil
}

func (p *Postgres) GetAgent(ctx context.Context, id string) (*entity.Agent, error) {
	return p.getAgentBy(ctx, "id", id)
}

func (p *Postgres) GetAgentByName(ctx context.Context, name string) (*entity.Agent, error) {
	return p.getAgentBy(ctx, "name", name)
}

func (p *Postgres) GetAgentByPhoneNumberID(ctx context.Context, phoneNumberID string) (*entity.Agent, error) {
	return p.getAgentBy(ctx, "wa_phone_number_id", phoneNumberID)
}

// getAgentBy is only called with column names from this file.
func (p *Postgres) getAgentBy(ctx context.Context, column, value string) (*entity.Agent, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE `+column+` = $1 LIMIT 1`, value)
	a, err := scanAgent(row)
	if err != nil {
		return nil, noRows(err)
	}
	return a, nil
}

// ListAgents returns the agents of one tenant, or of all tenants when clientID is empty.
func (p *Postgres) ListAgents(ctx context.Context, clientID string) ([]entity.Agent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+agentColumns+` FROM agents
		WHERE $1 = '' OR client_id = $1
		ORDER BY name`, clientID)
	if err != nil {
		return nil, fmt.Errorf("postgres list agents: %w", err)
	}
	defer rows.Close()

	var agents []entity.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// ListLeadAgents returns active agents with an ads form configured.
func (p *Postgres) ListLeadAgents(ctx context.Context) ([]entity.Agent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+agentColumns+` FROM agents
		WHERE active AND ads_form_id <> ''
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres list lead agents: %w", err)
	}
	defer rows.Close()

	var agents []entity.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func (p *Postgres) DeleteAgent(ctx context.Context, id string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("postgres delete agent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
