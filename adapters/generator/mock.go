package generator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

// MockGenerator is a canned generator for development without an API
// key. It answers after a short artificial delay so the thinking state
// is visible in the UI.
type MockGenerator struct {
	store  repositories.ChamberStore
	logger *zap.Logger
	delay  time.Duration
}

var _ repositories.ResponseGenerator = (*MockGenerator)(nil)

// NewMockGenerator creates a canned generator.
func NewMockGenerator(store repositories.ChamberStore, logger *zap.Logger) *MockGenerator {
	return &MockGenerator{
		store:  store,
		logger: logger,
		delay:  300 * time.Millisecond,
	}
}

func (m *MockGenerator) Generate(ctx context.Context, agentID, utterance string, history []entities.ChamberMessage) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.delay):
	}

	name := agentID
	if agent, err := m.store.Agent(ctx, agentID); err == nil {
		name = agent.Name
	}

	m.logger.Debug("Mock response generated", zap.String("agentID", agentID))
	return fmt.Sprintf("This is %s. You said: %q. That gives me something to think about.", name, utterance), nil
}
