package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

func registerAgents(t *testing.T, s *MemoryStore, names ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(names))
	for _, name := range names {
		agent := &repositories.AgentConfig{Name: name}
		require.NoError(t, s.RegisterAgent(agent))
		ids = append(ids, agent.ID)
	}
	return ids
}

func TestCreateChamberRequiresRegisteredAgents(t *testing.T) {
	s := NewMemoryStore()
	ids := registerAgents(t, s, "Ada")

	chamber, err := entities.NewChamber("study", ids, entities.DiscussionStyleRoundRobin, 0)
	require.NoError(t, err)
	require.NoError(t, s.CreateChamber(context.Background(), chamber))

	ghost, err := entities.NewChamber("ghost", []string{"missing"}, entities.DiscussionStyleRoundRobin, 0)
	require.NoError(t, err)
	err = s.CreateChamber(context.Background(), ghost)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateChamberRequiresRegisteredAgents(t *testing.T) {
	s := NewMemoryStore()
	ids := registerAgents(t, s, "Ada", "Brahms")

	chamber, err := entities.NewChamber("study", ids, entities.DiscussionStyleRoundRobin, 0)
	require.NoError(t, err)
	require.NoError(t, s.CreateChamber(context.Background(), chamber))

	chamber.AgentIDs = []string{ids[0], "missing"}
	err = s.UpdateChamber(context.Background(), chamber)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := s.Chamber(context.Background(), chamber.ID)
	require.NoError(t, err)
	assert.Equal(t, ids, stored.AgentIDs)
}

func TestUpdateChamberUnknownID(t *testing.T) {
	s := NewMemoryStore()
	ids := registerAgents(t, s, "Ada")

	chamber, err := entities.NewChamber("study", ids, entities.DiscussionStyleRoundRobin, 0)
	require.NoError(t, err)
	err = s.UpdateChamber(context.Background(), chamber)
	assert.ErrorIs(t, err, ErrNotFound)
}
