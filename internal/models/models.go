// Package models defines the core domain types for drover.
package models

import (
	"encoding/json"
	"time"
)

// CommandType selects the executor a command is dispatched to.
type CommandType string

const (
	CommandTypeDelay       CommandType = "DELAY"
	CommandTypeHTTPGetJSON CommandType = "HTTP_GET_JSON"
)

// CommandStatus represents the lifecycle state of a command.
type CommandStatus string

const (
	CommandStatusPending   CommandStatus = "pending"
	CommandStatusRunning   CommandStatus = "running"
	CommandStatusCompleted CommandStatus = "completed"
	CommandStatusFailed    CommandStatus = "failed"
)

// Command is the unit of work handed from the coordinator to agents.
// Payload and Result shapes are determined by Type and are opaque to the
// coordination layer; Result is set exactly once, on completion.
type Command struct {
	ID         string          `json:"id"`
	Type       CommandType     `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     CommandStatus   `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	AgentID    string          `json:"agent_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	AssignedAt *time.Time      `json:"assigned_at,omitempty"`
}

// Eligible reports whether the command can be handed to an agent.
// Failed commands re-enter the assignment pool alongside pending ones.
func (c *Command) Eligible() bool {
	return c.Status == CommandStatusPending || c.Status == CommandStatusFailed
}

// DelayPayload is the payload shape for DELAY commands.
type DelayPayload struct {
	Ms int `json:"ms"`
}

// DelayResult is the result shape for DELAY commands.
type DelayResult struct {
	OK     bool `json:"ok"`
	TookMs int  `json:"took_ms"`
}

// HTTPGetPayload is the payload shape for HTTP_GET_JSON commands.
type HTTPGetPayload struct {
	URL string `json:"url"`
}

// HTTPGetResult is the result shape for HTTP_GET_JSON commands. Bodies are
// truncated at 100KB; Truncated records whether the cut happened.
type HTTPGetResult struct {
	Status    int  `json:"status"`
	Bytes     int  `json:"bytes"`
	Truncated bool `json:"truncated"`
}

// ExecutionRecord is an agent-local journal row marking a command as
// executed on that agent. Written once, never updated or deleted.
type ExecutionRecord struct {
	CommandID  string    `json:"command_id"`
	ExecutedAt time.Time `json:"executed_at"`
}

// AuditEvent is an append-only record of a lifecycle mutation.
type AuditEvent struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	CommandID  string    `json:"command_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
