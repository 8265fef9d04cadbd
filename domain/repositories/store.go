package repositories

import (
	"context"

	"github.com/voxhall/voxhall/domain/entities"
)

// AgentVoiceConfig is an agent's configured voice preference as stored.
// LocalModelID empty means no local voice model is registered for the
// agent; CloudCredential reports whether a cloud TTS API key is present.
type AgentVoiceConfig struct {
	PreferredEngine entities.VoiceEngine `json:"preferred_engine"`
	LocalModelID    string               `json:"local_model_id,omitempty"`
	CloudVoiceID    string               `json:"cloud_voice_id,omitempty"`
	SystemVoiceID   string               `json:"system_voice_id,omitempty"`
	CloudCredential bool                 `json:"-"`
}

// AgentConfig is the stored configuration of one conversational agent.
type AgentConfig struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	Voice        AgentVoiceConfig `json:"voice"`
}

// ChamberStore supplies chamber membership and per-agent configuration.
// The voice core only reads from it; mutation happens through the
// control plane.
type ChamberStore interface {
	Chamber(ctx context.Context, id string) (*entities.Chamber, error)
	Agent(ctx context.Context, id string) (*AgentConfig, error)

	CreateChamber(ctx context.Context, chamber *entities.Chamber) error
	UpdateChamber(ctx context.Context, chamber *entities.Chamber) error
	DeleteChamber(ctx context.Context, id string) error
}
