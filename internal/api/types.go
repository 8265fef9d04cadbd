package api

import (
	"time"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/usecase/voice"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// TokenRequest asks for a client token for the API and event stream.
type TokenRequest struct {
	ClientID string `json:"client_id" validate:"required"`
}

// TokenResponse carries the issued token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// RegisterAgentRequest registers a conversational agent.
type RegisterAgentRequest struct {
	Name            string `json:"name" validate:"required"`
	SystemPrompt    string `json:"system_prompt,omitempty"`
	PreferredEngine string `json:"preferred_engine,omitempty"`
	LocalModelID    string `json:"local_model_id,omitempty"`
	CloudVoiceID    string `json:"cloud_voice_id,omitempty"`
	SystemVoiceID   string `json:"system_voice_id,omitempty"`
}

// ChamberRequest creates or updates a chamber. Fields left out of an
// update keep their current value; the pointer distinguishes an omitted
// cap from an explicit zero (everyone responds).
type ChamberRequest struct {
	Name                 string   `json:"name" validate:"required"`
	AgentIDs             []string `json:"agent_ids" validate:"required"`
	Style                string   `json:"style"`
	MaxResponsesPerRound *int     `json:"max_responses_per_round,omitempty"`
}

// PostMessageRequest is a typed user message to a chamber.
type PostMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// ActivateRequest powers chamber voice on.
type ActivateRequest struct {
	ChamberID     string `json:"chamber_id" validate:"required"`
	ActiveAgentID string `json:"active_agent_id,omitempty"`
	ChamberMode   bool   `json:"chamber_mode"`
}

// MuteRequest toggles the microphone or speaker.
type MuteRequest struct {
	Muted bool `json:"muted"`
}

// AutoListenRequest toggles the automatic return to listening after a
// round.
type AutoListenRequest struct {
	Enabled bool `json:"enabled"`
}

// VoiceStateResponse is a snapshot of the live voice session.
type VoiceStateResponse struct {
	State             voice.SessionState `json:"state"`
	Active            bool               `json:"active"`
	ChamberMode       bool               `json:"chamber_mode"`
	ActiveChamberID   string             `json:"active_chamber_id,omitempty"`
	ActiveAgentID     string             `json:"active_agent_id,omitempty"`
	RespondingAgentID string             `json:"responding_agent_id,omitempty"`
	LiveTranscript    string             `json:"live_transcript,omitempty"`
	MicMuted          bool               `json:"mic_muted"`
	SpeakerMuted      bool               `json:"speaker_muted"`
	AutoListen        bool               `json:"auto_listen"`
	Levels            []float32          `json:"levels,omitempty"`
}

// TranscriptResponse wraps a chamber transcript page.
type TranscriptResponse struct {
	ChamberID string                    `json:"chamber_id"`
	Messages  []entities.ChamberMessage `json:"messages"`
}
