package session

import (
	"encoding/json"
	"time"
)

// ToolCallStatus tracks the approval lifecycle of a companion tool call.
type ToolCallStatus string

const (
	ToolCallPending  ToolCallStatus = "pending"
	ToolCallApproved ToolCallStatus = "approved"
	ToolCallRejected ToolCallStatus = "rejected"
)

// ToolCall records a tool invocation requested by the companion model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Status    ToolCallStatus  `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}
