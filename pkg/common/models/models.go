package models

import "time"

// Event is the envelope published to the run lifecycle topic.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // run_started, task_scored, run_completed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// AgentResponse is one collected agent answer for a task, before scoring.
type AgentResponse struct {
	TaskID      string                 `json:"task_id"`
	Response    map[string]interface{} `json:"response"`
	Turns       int                    `json:"turns"`
	TimeSeconds float64                `json:"time_seconds"`
	TimedOut    bool                   `json:"timed_out,omitempty"`
	Error       string                 `json:"error,omitempty"`
}
