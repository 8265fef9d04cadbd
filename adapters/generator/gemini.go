package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.8
	defaultMaxTokens   = 512
)

// GeminiConfig configures the Gemini response generator.
type GeminiConfig struct {
	APIKey      string  // Required
	Model       string  // Optional, defaults to gemini-2.0-flash
	Temperature float32 // Optional, 0..1
	MaxTokens   int     // Optional cap on reply length
}

// GeminiGenerator implements ResponseGenerator with Google's Gemini API.
// Each agent speaks with its own persona prompt looked up from the
// chamber store.
type GeminiGenerator struct {
	client      *genai.Client
	store       repositories.ChamberStore
	logger      *zap.Logger
	model       string
	temperature float32
	maxTokens   int
}

var _ repositories.ResponseGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, config GeminiConfig, store repositories.ChamberStore, logger *zap.Logger) (*GeminiGenerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
	}
	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return &GeminiGenerator{
		client:      client,
		store:       store,
		logger:      logger,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Generate produces one agent's reply to the user utterance plus the
// round-local context.
func (g *GeminiGenerator) Generate(ctx context.Context, agentID, utterance string, history []entities.ChamberMessage) (string, error) {
	agent, err := g.store.Agent(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("failed to load agent config: %w", err)
	}

	contents := g.buildContents(agent, utterance, history)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxTokens),
	}

	start := time.Now()
	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generation failed for agent %s: %w", agentID, err)
	}
	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated for agent %s", agentID)
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response for agent %s", agentID)
	}

	g.logger.Info("Agent response generated",
		zap.String("agentID", agentID),
		zap.Int("length", text.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return text.String(), nil
}

// buildContents converts the persona prompt, chamber history, and the
// current utterance into Gemini conversation turns.
func (g *GeminiGenerator) buildContents(agent *repositories.AgentConfig, utterance string, history []entities.ChamberMessage) []*genai.Content {
	contents := []*genai.Content{
		genai.NewContentFromText(g.personaPrompt(agent), genai.RoleUser),
	}
	for _, msg := range history {
		var role genai.Role
		text := msg.Content
		switch msg.Role {
		case entities.MessageRoleAssistant:
			role = genai.RoleModel
			// Keep speaker attribution so agents can address each other.
			text = fmt.Sprintf("%s: %s", msg.AgentName, msg.Content)
		default:
			role = genai.RoleUser
		}
		if msg.Content == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}
	return append(contents, genai.NewContentFromText(utterance, genai.RoleUser))
}

// personaPrompt builds the agent's system instruction. The agent speaks
// aloud, so replies should stay short and conversational.
func (g *GeminiGenerator) personaPrompt(agent *repositories.AgentConfig) string {
	var b strings.Builder
	if agent.SystemPrompt != "" {
		b.WriteString(agent.SystemPrompt)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "You are %s, one of several assistants in a spoken group conversation. ", agent.Name)
	b.WriteString("Your reply will be read aloud by a speech synthesizer: answer in a few short sentences, ")
	b.WriteString("with no markdown, lists, or stage directions.")
	return b.String()
}
