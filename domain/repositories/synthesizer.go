package repositories

import (
	"context"

	"github.com/voxhall/voxhall/domain/entities"
)

// SpeechSynthesizer abstracts text-to-speech playback on the shared
// speaker device. Speak begins playback and returns; callers poll
// IsSpeaking to learn when the audio has drained.
type SpeechSynthesizer interface {
	// Speak begins synthesizing and playing text with the given profile.
	// Returns an error only when playback could not start at all.
	Speak(ctx context.Context, text string, profile entities.VoiceProfile) error
	// IsSpeaking reports whether audio is currently being emitted.
	IsSpeaking() bool
	// Stop halts synthesis and playback immediately. Safe when idle.
	Stop()
	// Levels returns recent output level samples for visualization.
	Levels() []float32
}
