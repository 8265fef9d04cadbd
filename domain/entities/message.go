package entities

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ChamberMessage is one utterance in a chamber transcript.
// Content stays mutable while IsStreaming is true; finalizing a message
// freezes it. Messages are appended in strict chronological order.
type ChamberMessage struct {
	ID          string      `json:"id" bson:"_id"`
	ChamberID   string      `json:"chamber_id" bson:"chamber_id"`
	Role        MessageRole `json:"role" bson:"role"`
	AgentID     string      `json:"agent_id,omitempty" bson:"agent_id,omitempty"`
	AgentName   string      `json:"agent_name,omitempty" bson:"agent_name,omitempty"`
	Content     string      `json:"content" bson:"content"`
	IsStreaming bool        `json:"is_streaming" bson:"is_streaming"`
	Timestamp   time.Time   `json:"timestamp" bson:"timestamp"`
}

// NewUserMessage creates a finalized user utterance.
func NewUserMessage(chamberID, content string) ChamberMessage {
	return ChamberMessage{
		ID:        uuid.NewString(),
		ChamberID: chamberID,
		Role:      MessageRoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAgentMessage creates an agent message in streaming state with empty
// content; the turn fills it in as generation progresses.
func NewAgentMessage(chamberID, agentID, agentName string) ChamberMessage {
	return ChamberMessage{
		ID:          uuid.NewString(),
		ChamberID:   chamberID,
		Role:        MessageRoleAssistant,
		AgentID:     agentID,
		AgentName:   agentName,
		IsStreaming: true,
		Timestamp:   time.Now(),
	}
}

// Finalize freezes the message with its full content.
func (m *ChamberMessage) Finalize(content string) {
	m.Content = content
	m.IsStreaming = false
}
