package repositories

import "context"

// SpeechRecognizer abstracts streaming speech recognition.
// Implementations emit finalized transcript strings on the Transcripts
// channel for as long as the recognizer is started. The microphone stays
// hot while agents speak, so callers must run every finalized transcript
// through the feedback filter before acting on it.
type SpeechRecognizer interface {
	// Start begins streaming transcription. It returns an error if the
	// microphone or recognition backend cannot be activated; no partial
	// state is exposed on failure.
	Start(ctx context.Context) error
	// Stop ends streaming transcription. Safe to call when not listening.
	Stop() error
	// IsListening reports whether transcription is currently active.
	IsListening() bool
	// Transcripts returns the channel of finalized transcripts.
	Transcripts() <-chan string
}
