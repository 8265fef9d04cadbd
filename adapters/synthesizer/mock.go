package synthesizer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

// wordsPerSecond approximates spoken pacing for the simulated timer.
const wordsPerSecond = 2.5

// MockSynthesizer simulates playback without producing audio. Each
// utterance "speaks" for a duration proportional to its length, which
// keeps turn pacing realistic in demo mode.
type MockSynthesizer struct {
	logger *zap.Logger

	mu       sync.Mutex
	speaking bool
	timer    *time.Timer
}

var _ repositories.SpeechSynthesizer = (*MockSynthesizer)(nil)

// NewMockSynthesizer creates a simulated synthesizer.
func NewMockSynthesizer(logger *zap.Logger) *MockSynthesizer {
	return &MockSynthesizer{logger: logger}
}

// Speak marks the synthesizer as speaking for a text-proportional
// duration.
func (m *MockSynthesizer) Speak(ctx context.Context, text string, profile entities.VoiceProfile) error {
	words := 1
	for _, r := range text {
		if r == ' ' {
			words++
		}
	}
	duration := time.Duration(float64(words) / wordsPerSecond * float64(time.Second))

	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.speaking = true
	m.timer = time.AfterFunc(duration, func() {
		m.mu.Lock()
		m.speaking = false
		m.mu.Unlock()
	})
	m.mu.Unlock()

	m.logger.Debug("Simulated playback",
		zap.String("engine", string(profile.Engine)),
		zap.Duration("duration", duration))
	return nil
}

// IsSpeaking reports whether the simulated utterance is still playing.
func (m *MockSynthesizer) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// Stop ends the simulated utterance immediately.
func (m *MockSynthesizer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.speaking = false
}

// Levels returns synthetic output levels, non-zero while speaking.
func (m *MockSynthesizer) Levels() []float32 {
	m.mu.Lock()
	speaking := m.speaking
	m.mu.Unlock()

	levels := make([]float32, 8)
	if speaking {
		for i := range levels {
			levels[i] = 0.2 + rand.Float32()*0.6
		}
	}
	return levels
}
