package synthesizer

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

// levelWindow bounds the rolling output level buffer.
const levelWindow = 64

// Backend produces a stream of PCM chunks for one utterance. The
// channel closes when synthesis is complete; cancelling ctx abandons
// the stream.
type Backend interface {
	Synthesize(ctx context.Context, text string, profile entities.VoiceProfile) (<-chan []byte, error)
}

// Output plays raw PCM chunks on the speaker device. Play blocks until
// the chunk stream closes or ctx is cancelled; Stop kills playback
// immediately.
type Output interface {
	Play(ctx context.Context, chunks <-chan []byte) error
	Stop()
}

// Router implements SpeechSynthesizer by dispatching each VoiceProfile
// to its engine backend and owning the shared speaker. At most one
// utterance plays at a time; starting a new one stops the previous.
type Router struct {
	cloud  Backend
	local  Backend
	system Backend
	output Output
	logger *zap.Logger

	mu       sync.Mutex
	speaking bool
	cancel   context.CancelFunc
	levels   []float32
}

var _ repositories.SpeechSynthesizer = (*Router)(nil)

// NewRouter creates a synthesizer router. Backends may be nil when an
// engine is not configured; speaking through a missing engine fails at
// Speak time and the caller's fallback applies.
func NewRouter(cloud, local, system Backend, output Output, logger *zap.Logger) *Router {
	return &Router{
		cloud:  cloud,
		local:  local,
		system: system,
		output: output,
		logger: logger,
	}
}

// Speak begins playback of text with the profile's engine. Returns an
// error only when synthesis could not start.
func (r *Router) Speak(ctx context.Context, text string, profile entities.VoiceProfile) error {
	backend, err := r.backendFor(profile.Engine)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.speaking && r.cancel != nil {
		// The speaker is exclusively held; a new utterance evicts the
		// old one.
		r.cancel()
		r.output.Stop()
	}
	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.speaking = true
	r.mu.Unlock()

	chunks, err := backend.Synthesize(playCtx, text, profile)
	if err != nil {
		cancel()
		r.markDone()
		return fmt.Errorf("synthesis failed to start: %w", err)
	}

	go func() {
		defer cancel()
		defer r.markDone()
		if err := r.output.Play(playCtx, r.meter(playCtx, chunks)); err != nil && playCtx.Err() == nil {
			r.logger.Warn("Playback failed", zap.Error(err))
		}
	}()

	r.logger.Debug("Playback started",
		zap.String("engine", string(profile.Engine)),
		zap.Int("chars", len(text)))
	return nil
}

// IsSpeaking reports whether audio is currently being emitted.
func (r *Router) IsSpeaking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speaking
}

// Stop halts synthesis and playback immediately.
func (r *Router) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.speaking = false
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.output.Stop()
}

// Levels returns a copy of recent output level samples.
func (r *Router) Levels() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float32, len(r.levels))
	copy(out, r.levels)
	return out
}

func (r *Router) backendFor(engine entities.VoiceEngine) (Backend, error) {
	var b Backend
	switch engine {
	case entities.VoiceEngineCloud:
		b = r.cloud
	case entities.VoiceEngineLocal:
		b = r.local
	case entities.VoiceEngineSystem:
		b = r.system
	default:
		return nil, fmt.Errorf("unknown voice engine: %s", engine)
	}
	if b == nil {
		return nil, fmt.Errorf("voice engine %s is not configured", engine)
	}
	return b, nil
}

func (r *Router) markDone() {
	r.mu.Lock()
	r.speaking = false
	r.cancel = nil
	r.mu.Unlock()
}

// meter passes chunks through while sampling their loudness into the
// rolling level buffer. Cancelling ctx unblocks the pass-through when
// playback has been stopped and nothing drains out.
func (r *Router) meter(ctx context.Context, in <-chan []byte) <-chan []byte {
	out := make(chan []byte, 4)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-in:
				if !ok {
					return
				}
				r.pushLevel(pcm16RMS(chunk))
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *Router) pushLevel(level float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, level)
	if len(r.levels) > levelWindow {
		r.levels = r.levels[len(r.levels)-levelWindow:]
	}
}

// pcm16RMS computes the normalized RMS of little-endian 16-bit PCM.
func pcm16RMS(chunk []byte) float32 {
	if len(chunk) < 2 {
		return 0
	}
	var sum float64
	n := len(chunk) / 2
	for i := 0; i < n; i++ {
		sample := int16(chunk[2*i]) | int16(chunk[2*i+1])<<8
		v := float64(sample) / 32768.0
		sum += v * v
	}
	return float32(math.Sqrt(sum / float64(n)))
}
