package entity

import "time"

const (
	LeadReceived = "received"
	LeadEnriched = "enriched"
	LeadSynced   = "synced"
	LeadFailed   = "failed"
)

// Lead is one form submission fetched from the ads platform.
type Lead struct {
	ID          string            `json:"id"`
	FormID      string            `json:"form_id"`
	CreatedTime time.Time         `json:"created_time"`
	Fields      map[string]string `json:"fields"`
}

func (l *Lead) Field(names ...string) string {
	for _, n := range names {
		if v := l.Fields[n]; v != "" {
			return v
		}
	}
	return ""
}

// Enrichment is what the LLM step adds to a lead.
type Enrichment struct {
	Summary  string `json:"summary"`
	Score    int    `json:"score"`
	Segment  string `json:"segment"`
	Language string `json:"language"`
}

// LeadLog is the processing status row of one lead.
type LeadLog struct {
	LeadID    string    `json:"lead_id"`
	AgentID   string    `json:"agent_id"`
	Status    string    `json:"status"`
	Step      string    `json:"step"`
	Error     string    `json:"error,omitempty"`
	CrmID     string    `json:"crm_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeadRunResult summarises one pipeline pass over an agent's leads.
type LeadRunResult struct {
	AgentID string `json:"agent_id"`
	Fetched int    `json:"fetched"`
	Skipped int    `json:"skipped"`
	Synced  int    `json:"synced"`
	Failed  int    `json:"failed"`
}
