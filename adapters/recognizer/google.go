package recognizer

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/repositories"
)

// AudioSource supplies microphone audio frames to the recognizer.
// ReadChunk blocks until the next frame is available or ctx is
// cancelled.
type AudioSource interface {
	ReadChunk(ctx context.Context) ([]byte, error)
	Close() error
}

// GoogleConfig configures the Google Cloud streaming recognizer.
type GoogleConfig struct {
	SampleRate int    // e.g. 16000
	Language   string // e.g. "en-US"
}

// GoogleRecognizer implements SpeechRecognizer on top of Google Cloud
// Speech streaming recognition. It stays hot for the lifetime of a
// Start/Stop cycle and emits only finalized transcripts.
type GoogleRecognizer struct {
	source AudioSource
	config GoogleConfig
	logger *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	listening bool

	out chan string
}

var _ repositories.SpeechRecognizer = (*GoogleRecognizer)(nil)

// NewGoogleRecognizer creates a recognizer over the given audio source.
func NewGoogleRecognizer(source AudioSource, config GoogleConfig, logger *zap.Logger) *GoogleRecognizer {
	if config.SampleRate == 0 {
		config.SampleRate = 16000
	}
	if config.Language == "" {
		config.Language = "en-US"
	}
	return &GoogleRecognizer{
		source: source,
		config: config,
		logger: logger,
		out:    make(chan string, 8),
	}
}

// Start opens the streaming recognition session and begins pumping
// microphone audio. On any setup failure the recognizer stays stopped
// and the error is returned.
func (g *GoogleRecognizer) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.listening {
		return nil
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create speech client: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	stream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		client.Close()
		return fmt.Errorf("failed to open streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(g.config.SampleRate),
					LanguageCode:    g.config.Language,
				},
				InterimResults: false,
			},
		},
	}); err != nil {
		cancel()
		stream.CloseSend()
		client.Close()
		return fmt.Errorf("failed to send streaming config: %w", err)
	}

	g.cancel = cancel
	g.listening = true

	go g.pumpAudio(streamCtx, stream)
	go g.receiveResults(streamCtx, client, stream)

	g.logger.Info("Streaming recognition started",
		zap.Int("sampleRate", g.config.SampleRate),
		zap.String("language", g.config.Language))
	return nil
}

// Stop ends the streaming session. Safe when not listening.
func (g *GoogleRecognizer) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.listening {
		return nil
	}
	g.cancel()
	g.cancel = nil
	g.listening = false
	g.logger.Info("Streaming recognition stopped")
	return nil
}

// IsListening reports whether a streaming session is active.
func (g *GoogleRecognizer) IsListening() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listening
}

// Transcripts returns the finalized transcript channel. The channel
// persists across Start/Stop cycles.
func (g *GoogleRecognizer) Transcripts() <-chan string {
	return g.out
}

func (g *GoogleRecognizer) pumpAudio(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient) {
	for {
		chunk, err := g.source.ReadChunk(ctx)
		if err != nil {
			if ctx.Err() == nil {
				g.logger.Error("Audio source failed", zap.Error(err))
				g.markStopped()
			}
			stream.CloseSend()
			return
		}
		if len(chunk) == 0 {
			continue
		}
		if err := stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: chunk,
			},
		}); err != nil {
			if ctx.Err() == nil {
				g.logger.Error("Failed to send audio to recognizer", zap.Error(err))
				g.markStopped()
			}
			return
		}
	}
}

func (g *GoogleRecognizer) receiveResults(ctx context.Context, client *speech.Client, stream speechpb.Speech_StreamingRecognizeClient) {
	defer client.Close()

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				g.logger.Error("Recognition stream failed", zap.Error(err))
				g.markStopped()
			}
			return
		}
		for _, result := range resp.Results {
			if !result.IsFinal || len(result.Alternatives) == 0 {
				continue
			}
			transcript := result.Alternatives[0].Transcript
			select {
			case g.out <- transcript:
			default:
				g.logger.Warn("Transcript channel full, dropping transcript")
			}
		}
	}
}

func (g *GoogleRecognizer) markStopped() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.listening = false
}
