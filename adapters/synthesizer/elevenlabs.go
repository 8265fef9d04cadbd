package synthesizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
)

const (
	elevenLabsBaseURL   = "https://api.elevenlabs.io/v1"
	elevenLabsModelID   = "eleven_multilingual_v2"
	elevenLabsChunkSize = 1024
	elevenLabsFormat    = "pcm_24000"
	elevenLabsStability = 0.5
	elevenLabsClarity   = 0.75
)

// ElevenLabsConfig configures the cloud synthesis backend.
// Required fields:
// - APIKey: Your Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL: base URL for the Eleven Labs API
// - ModelID: synthesis model (default: "eleven_multilingual_v2")
// - ChunkSize: size of streamed audio chunks (default: 1024)
// - Stability: voice stability between 0 and 1 (default: 0.5)
// - Clarity: voice clarity/similarity boost between 0 and 1 (default: 0.75)
type ElevenLabsConfig struct {
	APIKey     string
	APIBaseURL string
	ModelID    string
	ChunkSize  int
	Stability  float64
	Clarity    float64
}

// ElevenLabsBackend streams PCM audio from the Eleven Labs API. The
// voice is chosen per utterance from the speaker's VoiceProfile rather
// than fixed at construction, so every chamber agent can sound
// different through one backend.
type ElevenLabsBackend struct {
	apiKey     string
	apiBaseURL string
	modelID    string
	chunkSize  int
	stability  float64
	clarity    float64
	client     *http.Client
	logger     *zap.Logger
}

var _ Backend = (*ElevenLabsBackend)(nil)

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type elevenLabsRequest struct {
	Text                   string                  `json:"text"`
	ModelID                string                  `json:"model_id"`
	VoiceSettings          elevenLabsVoiceSettings `json:"voice_settings"`
	ApplyTextNormalization string                  `json:"apply_text_normalization,omitempty"`
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig.
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

// NewElevenLabsBackend creates a cloud synthesis backend.
func NewElevenLabsBackend(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsBackend, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = elevenLabsBaseURL
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = elevenLabsModelID
	}
	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = elevenLabsChunkSize
	}
	stability := config.Stability
	if stability == 0 {
		stability = elevenLabsStability
	}
	clarity := config.Clarity
	if clarity == 0 {
		clarity = elevenLabsClarity
	}

	return &ElevenLabsBackend{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		modelID:    modelID,
		chunkSize:  chunkSize,
		stability:  stability,
		clarity:    clarity,
		client:     &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

// Synthesize streams PCM audio for text using the profile's cloud
// voice. The returned channel closes when the stream ends; cancelling
// ctx abandons it mid-flight.
func (e *ElevenLabsBackend) Synthesize(ctx context.Context, text string, profile entities.VoiceProfile) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	voiceID := profile.CloudVoiceID
	if voiceID == "" {
		return nil, fmt.Errorf("voice profile has no cloud voice ID")
	}

	request := elevenLabsRequest{
		Text:                   text,
		ModelID:                e.modelID,
		ApplyTextNormalization: "auto",
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			UseSpeakerBoost: true,
		},
	}
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, voiceID, elevenLabsFormat)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/pcm")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	audioChan := make(chan []byte, 10)

	go func() {
		defer close(audioChan)

		resp, err := e.client.Do(httpReq)
		if err != nil {
			if ctx.Err() == nil {
				e.logger.Error("Failed to execute HTTP request", zap.Error(err))
			}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errorBody, _ := io.ReadAll(resp.Body)
			e.logger.Error("Eleven Labs API returned error",
				zap.Int("statusCode", resp.StatusCode),
				zap.String("response", string(errorBody)))
			return
		}

		buffer := make([]byte, e.chunkSize)
		totalBytes := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			n, err := resp.Body.Read(buffer)
			if n > 0 {
				totalBytes += n
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				select {
				case audioChan <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				e.logger.Debug("Finished streaming audio",
					zap.String("voiceID", voiceID),
					zap.Int("totalBytes", totalBytes))
				return
			}
			if err != nil {
				e.logger.Error("Error reading response body", zap.Error(err))
				return
			}
		}
	}()

	return audioChan, nil
}

// NewElevenLabsConfigFromEnv builds an ElevenLabsConfig from
// environment variables.
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:     os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL: os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		ModelID:    os.Getenv("ELEVEN_LABS_MODEL_ID"),
	}
	if chunkSizeStr := os.Getenv("ELEVEN_LABS_CHUNK_SIZE"); chunkSizeStr != "" {
		if chunkSize, err := strconv.Atoi(chunkSizeStr); err == nil && chunkSize > 0 {
			config.ChunkSize = chunkSize
		}
	}
	if stabilityStr := os.Getenv("ELEVEN_LABS_STABILITY"); stabilityStr != "" {
		if stability, err := strconv.ParseFloat(stabilityStr, 64); err == nil && stability >= 0 && stability <= 1 {
			config.Stability = stability
		}
	}
	if clarityStr := os.Getenv("ELEVEN_LABS_CLARITY"); clarityStr != "" {
		if clarity, err := strconv.ParseFloat(clarityStr, 64); err == nil && clarity >= 0 && clarity <= 1 {
			config.Clarity = clarity
		}
	}
	return config
}
