package model

import "time"

// CheckpointTrigger distinguishes automatic from caller-requested snapshots
type CheckpointTrigger string

const (
	TriggerAuto   CheckpointTrigger = "auto"
	TriggerManual CheckpointTrigger = "manual"
)

// CheckpointState is the mutable session state captured by a snapshot
type CheckpointState struct {
	Conversation []ConversationTurn     `json:"conversation,omitempty"`
	Tasks        []string               `json:"tasks,omitempty"`
	Agents       []string               `json:"agents,omitempty"`
	Memory       map[string]interface{} `json:"memory,omitempty"`
}

// ConversationTurn is one message in the session conversation
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Checkpoint is an immutable snapshot of session state
type Checkpoint struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Trigger   CheckpointTrigger `json:"trigger"`
	Label     string            `json:"label,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	State     CheckpointState   `json:"state"`
}
