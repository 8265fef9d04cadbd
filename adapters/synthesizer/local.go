package synthesizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
)

const localChunkSize = 2048

// LocalBackend streams PCM audio from an on-device model server. Each
// utterance names its model through the speaker's VoiceProfile, so one
// server can host several downloaded voices.
type LocalBackend struct {
	serverURL string
	client    *http.Client
	logger    *zap.Logger
}

var _ Backend = (*LocalBackend)(nil)

type localSynthesisRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// NewLocalBackend creates a backend that talks to a local voice server,
// typically on loopback.
func NewLocalBackend(serverURL string, logger *zap.Logger) (*LocalBackend, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("local voice server URL is required")
	}
	return &LocalBackend{
		serverURL: strings.TrimRight(serverURL, "/"),
		// Local synthesis is bounded by model load time, not network.
		client: &http.Client{Timeout: 120 * time.Second},
		logger: logger,
	}, nil
}

// Synthesize requests audio for text from the local server and streams
// the response body.
func (l *LocalBackend) Synthesize(ctx context.Context, text string, profile entities.VoiceProfile) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if profile.LocalModelID == "" {
		return nil, fmt.Errorf("voice profile has no local model")
	}

	requestBody, err := json.Marshal(localSynthesisRequest{
		Text:  text,
		Model: profile.LocalModelID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := l.serverURL + "/synthesize"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/pcm")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("local voice server unreachable: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("local voice server returned %d: %s", resp.StatusCode, string(errorBody))
	}

	audioChan := make(chan []byte, 10)
	go func() {
		defer close(audioChan)
		defer resp.Body.Close()

		buffer := make([]byte, localChunkSize)
		for {
			n, err := resp.Body.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				select {
				case audioChan <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					l.logger.Error("Error reading local synthesis stream", zap.Error(err))
				}
				return
			}
		}
	}()

	l.logger.Debug("Local synthesis started",
		zap.String("model", profile.LocalModelID),
		zap.Int("chars", len(text)))
	return audioChan, nil
}
