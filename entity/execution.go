package entity

import (
	"encoding/json"
	"time"
)

// Execution is one run of an automation workflow.
type Execution struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflowId"`
	Status     string          `json:"status"`
	Mode       string          `json:"mode"`
	Finished   bool            `json:"finished"`
	StartedAt  time.Time       `json:"startedAt"`
	StoppedAt  *time.Time      `json:"stoppedAt,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type ExecutionPage struct {
	Data       []Execution `json:"data"`
	NextCursor string      `json:"nextCursor,omitempty"`
}
