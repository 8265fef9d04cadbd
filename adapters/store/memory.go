package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

// ErrNotFound is returned when a chamber or agent does not exist.
var ErrNotFound = errors.New("not found")

// MemoryStore is an in-memory implementation of ChamberStore, suitable
// as a simple production storage backend for a single-process deployment.
type MemoryStore struct {
	mu       sync.RWMutex
	chambers map[string]*entities.Chamber
	agents   map[string]*repositories.AgentConfig
}

var _ repositories.ChamberStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory chamber store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chambers: make(map[string]*entities.Chamber),
		agents:   make(map[string]*repositories.AgentConfig),
	}
}

// Chamber returns a copy of the chamber with the given id.
func (m *MemoryStore) Chamber(ctx context.Context, id string) (*entities.Chamber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.chambers[id]
	if !exists {
		return nil, fmt.Errorf("chamber %s: %w", id, ErrNotFound)
	}
	out := *c
	out.AgentIDs = append([]string(nil), c.AgentIDs...)
	return &out, nil
}

// Agent returns the stored configuration for an agent.
func (m *MemoryStore) Agent(ctx context.Context, id string) (*repositories.AgentConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, exists := m.agents[id]
	if !exists {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	out := *a
	return &out, nil
}

// RegisterAgent stores an agent configuration, generating an id when
// missing.
func (m *MemoryStore) RegisterAgent(agent *repositories.AgentConfig) error {
	if agent == nil {
		return errors.New("agent cannot be nil")
	}
	if agent.Name == "" {
		return errors.New("agent name is required")
	}
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *agent
	m.agents[agent.ID] = &stored
	return nil
}

// CreateChamber stores a new chamber after validating its membership
// against registered agents.
func (m *MemoryStore) CreateChamber(ctx context.Context, chamber *entities.Chamber) error {
	if chamber == nil {
		return errors.New("chamber cannot be nil")
	}
	if err := chamber.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.chambers[chamber.ID]; exists {
		return fmt.Errorf("chamber %s already exists", chamber.ID)
	}
	for _, agentID := range chamber.AgentIDs {
		if _, known := m.agents[agentID]; !known {
			return fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
		}
	}

	stored := *chamber
	stored.AgentIDs = append([]string(nil), chamber.AgentIDs...)
	m.chambers[chamber.ID] = &stored
	return nil
}

// UpdateChamber replaces the stored chamber settings. Membership is
// validated against registered agents the same way creation is.
func (m *MemoryStore) UpdateChamber(ctx context.Context, chamber *entities.Chamber) error {
	if chamber == nil {
		return errors.New("chamber cannot be nil")
	}
	if err := chamber.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.chambers[chamber.ID]; !exists {
		return fmt.Errorf("chamber %s: %w", chamber.ID, ErrNotFound)
	}
	for _, agentID := range chamber.AgentIDs {
		if _, known := m.agents[agentID]; !known {
			return fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
		}
	}
	stored := *chamber
	stored.AgentIDs = append([]string(nil), chamber.AgentIDs...)
	m.chambers[chamber.ID] = &stored
	return nil
}

// DeleteChamber removes a chamber. Callers are responsible for
// interrupting any round bound to it first.
func (m *MemoryStore) DeleteChamber(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.chambers[id]; !exists {
		return fmt.Errorf("chamber %s: %w", id, ErrNotFound)
	}
	delete(m.chambers, id)
	return nil
}
