package entity

import "time"

type Report struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	AgentName string    `json:"agent_name" bson:"agent_name"`
	Title     string    `json:"title" bson:"title"`
	Body      string    `json:"body" bson:"body"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
