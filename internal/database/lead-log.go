package repository

import (
	"AgentDesk/entity"
	"context"
	"fmt"
)

const leadLogColumns = `lead_id, agent_id, status, step, error, crm_id, created_at, updated_at`

func scanLeadLog(row interface{ Scan(...any) error }) (*entity.LeadLog, error) {
	l := &entity.LeadLog{}
	err := row.Scan(&l.LeadID, &l.AgentID, &l.Status, &l.Step, &l.Error, &l.CrmID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ClaimLead tries to insert the log row of a lead. When the row already
// exists it returns the stored row and false.
func (p *Postgres) ClaimLead(ctx context.Context, leadID, agentID string) (*entity.LeadLog, bool, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO lead_processing_log (lead_id, agent_id, status, step)
		VALUES ($1, $2, $3, 'fetch')
		ON CONFLICT (lead_id) DO NOTHING
		RETURNING `+leadLogColumns,
		leadID, agentID, entity.LeadReceived)
	l, err := scanLeadLog(row)
	if err == nil {
		return l, true, nil
	}
	if err = noRows(err); err != nil {
		return nil, false, fmt.Errorf("postgres claim lead: %w", err)
	}

	row = p.pool.QueryRow(ctx, `SELECT `+leadLogColumns+` FROM lead_processing_log WHERE lead_id = $1`, leadID)
	l, err = scanLeadLog(row)
	if err != nil {
		return nil, false, fmt.Errorf("postgres read lead log: %w", err)
	}
	return l, false, nil
}

func (p *Postgres) UpdateLeadLog(ctx context.Context, log entity.LeadLog) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE lead_processing_log
		SET status = $2, step = $3, error = $4, crm_id = $5, updated_at = now()
		WHERE lead_id = $1`,
		log.LeadID, log.Status, log.Step, log.Error, log.CrmID)
	if err != nil {
		return fmt.Errorf("postgres update lead log: %w", err)
	}
	return nil
}

func (p *Postgres) ListLeadLogs(ctx context.Context, agentID string, limit int) ([]entity.LeadLog, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+leadLogColumns+` FROM lead_processing_log
		WHERE $1 = '' OR agent_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres list lead logs: %w", err)
	}
	defer rows.Close()

	var logs []entity.LeadLog
	for rows.Next() {
		l, err := scanLeadLog(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres scan lead log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}
