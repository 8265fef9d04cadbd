package voice

import (
	"time"

	"go.uber.org/zap"
)

// EventType classifies a voice event.
type EventType string

const (
	EventSessionState     EventType = "session_state"
	EventRoundStarted     EventType = "round_started"
	EventRoundCompleted   EventType = "round_completed"
	EventRoundInterrupted EventType = "round_interrupted"
	EventTurnStarted      EventType = "turn_started"
	EventTurnUpdated      EventType = "turn_updated"
	EventTurnCompleted    EventType = "turn_completed"
	EventTurnInterrupted  EventType = "turn_interrupted"
	EventTurnSkipped      EventType = "turn_skipped"
	EventUserMessage      EventType = "user_message"
	EventEchoRejected     EventType = "echo_rejected"
)

// Event is one entry in the ordered voice event stream. The presentation
// layer subscribes to the stream instead of being invoked directly.
type Event struct {
	Type      EventType    `json:"type"`
	ChamberID string       `json:"chamber_id,omitempty"`
	MessageID string       `json:"message_id,omitempty"`
	AgentID   string       `json:"agent_id,omitempty"`
	AgentName string       `json:"agent_name,omitempty"`
	Content   string       `json:"content,omitempty"`
	State     SessionState `json:"state,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// EventBus fans voice events out to a single subscriber channel.
// Emission never blocks the round; when the subscriber lags, events are
// dropped with a warning.
type EventBus struct {
	events chan Event
	logger *zap.Logger
}

// NewEventBus creates an event bus with a buffered stream.
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		events: make(chan Event, 100),
		logger: logger,
	}
}

// Emit publishes an event without blocking.
func (b *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case b.events <- event:
	default:
		b.logger.Warn("Event channel full, dropping event", zap.String("type", string(event.Type)))
	}
}

// Events returns the subscriber channel.
func (b *EventBus) Events() <-chan Event {
	return b.events
}
