package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

func TestResolvePreferredLocalEngine(t *testing.T) {
	r := NewProfileResolver(zap.NewNop())

	profile := r.Resolve("agent-1", repositories.AgentVoiceConfig{
		PreferredEngine: entities.VoiceEngineLocal,
		LocalModelID:    "en_US-amy-medium",
	})

	assert.Equal(t, entities.VoiceEngineLocal, profile.Engine)
	assert.Equal(t, entities.VoiceEngineLocal, profile.PreferredEngine)
	assert.Equal(t, "en_US-amy-medium", profile.LocalModelID)
	assert.Equal(t, DefaultCloudVoiceID, profile.CloudVoiceID,
		"cloud voice identity must be usable even when local is primary")
}

func TestResolveFallsBackToCloudWithCredential(t *testing.T) {
	r := NewProfileResolver(zap.NewNop())

	profile := r.Resolve("agent-1", repositories.AgentVoiceConfig{
		PreferredEngine: entities.VoiceEngineLocal,
		CloudCredential: true,
	})

	assert.Equal(t, entities.VoiceEngineCloud, profile.Engine)
	assert.Equal(t, entities.VoiceEngineLocal, profile.PreferredEngine)
	assert.NotEmpty(t, profile.CloudVoiceID)
	assert.Equal(t, DefaultCloudVoiceID, profile.CloudVoiceID)
}

func TestResolveFallsBackToSystemWithoutCredential(t *testing.T) {
	r := NewProfileResolver(zap.NewNop())

	profile := r.Resolve("agent-1", repositories.AgentVoiceConfig{
		PreferredEngine: entities.VoiceEngineLocal,
	})

	assert.Equal(t, entities.VoiceEngineSystem, profile.Engine)
}

func TestResolveCloudPreferenceWithoutCredential(t *testing.T) {
	r := NewProfileResolver(zap.NewNop())

	profile := r.Resolve("agent-1", repositories.AgentVoiceConfig{
		PreferredEngine: entities.VoiceEngineCloud,
		CloudVoiceID:    "custom-voice",
	})

	assert.Equal(t, entities.VoiceEngineSystem, profile.Engine)
	assert.Equal(t, "custom-voice", profile.CloudVoiceID)
}

func TestResolveDefaultsToLocalPreference(t *testing.T) {
	r := NewProfileResolver(zap.NewNop())

	profile := r.Resolve("agent-1", repositories.AgentVoiceConfig{
		LocalModelID: "model",
	})

	assert.Equal(t, entities.VoiceEngineLocal, profile.PreferredEngine)
	assert.Equal(t, entities.VoiceEngineLocal, profile.Engine)
}

func TestResolveKeepsConfiguredCloudVoice(t *testing.T) {
	r := NewProfileResolver(zap.NewNop())

	profile := r.Resolve("agent-1", repositories.AgentVoiceConfig{
		PreferredEngine: entities.VoiceEngineCloud,
		CloudCredential: true,
		CloudVoiceID:    "XB0fDUnXU5powFXDhCwa",
	})

	assert.Equal(t, entities.VoiceEngineCloud, profile.Engine)
	assert.Equal(t, "XB0fDUnXU5powFXDhCwa", profile.CloudVoiceID)
}
