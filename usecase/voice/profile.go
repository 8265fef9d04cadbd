package voice

import (
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

// DefaultCloudVoiceID is the cloud voice used when an agent has none
// configured, so a runtime fallback to the cloud engine always finds a
// usable voice identity.
const DefaultCloudVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel

// ProfileResolver resolves which synthesis engine and voice identity to
// use for an agent. Resolution is synchronous and side-effect-free apart
// from a diagnostic log entry on fallback.
type ProfileResolver struct {
	logger *zap.Logger
}

// NewProfileResolver creates a profile resolver.
func NewProfileResolver(logger *zap.Logger) *ProfileResolver {
	return &ProfileResolver{logger: logger}
}

// Resolve returns the synthesis profile for an agent. The preferred
// engine wins when usable; a local preference without a registered local
// model falls back to cloud TTS when a credential is configured, else to
// the system voice. When nothing is usable the profile still names
// system-tts and synthesis failure, if any, is the synthesizer's to
// handle.
func (r *ProfileResolver) Resolve(agentID string, cfg repositories.AgentVoiceConfig) entities.VoiceProfile {
	preferred := cfg.PreferredEngine
	if preferred == "" {
		preferred = entities.VoiceEngineLocal
	}

	engine := preferred
	switch {
	case preferred == entities.VoiceEngineLocal && cfg.LocalModelID == "":
		if cfg.CloudCredential {
			engine = entities.VoiceEngineCloud
		} else {
			engine = entities.VoiceEngineSystem
		}
	case preferred == entities.VoiceEngineCloud && !cfg.CloudCredential:
		engine = entities.VoiceEngineSystem
	}

	if engine != preferred {
		r.logger.Info("Voice engine fallback",
			zap.String("agentID", agentID),
			zap.String("preferred", string(preferred)),
			zap.String("resolved", string(engine)))
	}

	cloudVoiceID := cfg.CloudVoiceID
	if cloudVoiceID == "" {
		cloudVoiceID = DefaultCloudVoiceID
	}

	return entities.VoiceProfile{
		Engine:          engine,
		PreferredEngine: preferred,
		LocalModelID:    cfg.LocalModelID,
		CloudVoiceID:    cloudVoiceID,
		SystemVoiceID:   cfg.SystemVoiceID,
	}
}
