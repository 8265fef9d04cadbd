package recognizer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/repositories"
)

// MockRecognizer is a scripted recognizer for development without a
// microphone or cloud credentials. Transcripts are injected through
// EmitTranscript (e.g. from a debug endpoint).
type MockRecognizer struct {
	logger *zap.Logger

	mu        sync.Mutex
	listening bool
	out       chan string
}

var _ repositories.SpeechRecognizer = (*MockRecognizer)(nil)

// NewMockRecognizer creates a scripted recognizer.
func NewMockRecognizer(logger *zap.Logger) *MockRecognizer {
	return &MockRecognizer{
		logger: logger,
		out:    make(chan string, 8),
	}
}

func (m *MockRecognizer) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listening = true
	m.logger.Info("Mock recognition started")
	return nil
}

func (m *MockRecognizer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listening = false
	m.logger.Info("Mock recognition stopped")
	return nil
}

func (m *MockRecognizer) IsListening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

func (m *MockRecognizer) Transcripts() <-chan string {
	return m.out
}

// EmitTranscript injects a finalized transcript as if it had been
// recognized. Dropped when the recognizer is stopped.
func (m *MockRecognizer) EmitTranscript(text string) {
	m.mu.Lock()
	listening := m.listening
	m.mu.Unlock()

	if !listening {
		m.logger.Debug("Dropping injected transcript, not listening")
		return
	}
	select {
	case m.out <- text:
	default:
		m.logger.Warn("Transcript channel full, dropping injected transcript")
	}
}
