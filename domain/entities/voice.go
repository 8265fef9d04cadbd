package entities

// VoiceEngine identifies a speech synthesis backend.
type VoiceEngine string

const (
	// VoiceEngineLocal is an on-device voice model server.
	VoiceEngineLocal VoiceEngine = "local-voice"
	// VoiceEngineCloud is a hosted TTS API.
	VoiceEngineCloud VoiceEngine = "cloud-tts"
	// VoiceEngineSystem is the operating system's speech facility.
	VoiceEngineSystem VoiceEngine = "system-tts"
)

// VoiceProfile is the resolved per-agent synthesis configuration.
// Engine is the engine actually selected after fallback; PreferredEngine
// is what the agent was configured with. CloudVoiceID is always populated
// so a runtime fallback to the cloud engine never lacks a voice identity.
type VoiceProfile struct {
	Engine          VoiceEngine `json:"engine"`
	PreferredEngine VoiceEngine `json:"preferred_engine"`
	LocalModelID    string      `json:"local_model_id,omitempty"`
	CloudVoiceID    string      `json:"cloud_voice_id"`
	SystemVoiceID   string      `json:"system_voice_id,omitempty"`
}
