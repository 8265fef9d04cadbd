package entities

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// DiscussionStyle governs speaker selection order within a round.
type DiscussionStyle string

const (
	// DiscussionStyleRoundRobin rotates the starting speaker each round.
	DiscussionStyleRoundRobin DiscussionStyle = "round_robin"
	// DiscussionStyleFreeform shuffles speaker order each round.
	DiscussionStyleFreeform DiscussionStyle = "freeform"
)

// Chamber is a named room binding a fixed ordered list of agents and the
// turn policy applied when a round of responses runs against it.
type Chamber struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	AgentIDs             []string        `json:"agent_ids"`
	Style                DiscussionStyle `json:"discussion_style"`
	MaxResponsesPerRound int             `json:"max_responses_per_round"`
}

// NewChamber creates a chamber from an ordered agent list.
// A chamber needs at least two distinct agents; zero cap means every
// agent responds every round.
func NewChamber(name string, agentIDs []string, style DiscussionStyle, maxResponses int) (*Chamber, error) {
	c := &Chamber{
		ID:                   uuid.NewString(),
		Name:                 name,
		AgentIDs:             agentIDs,
		Style:                style,
		MaxResponsesPerRound: maxResponses,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the chamber invariants.
func (c *Chamber) Validate() error {
	if c.Name == "" {
		return errors.New("chamber name is required")
	}
	if len(c.AgentIDs) < 2 {
		return errors.New("chamber requires at least 2 agents")
	}
	seen := make(map[string]struct{}, len(c.AgentIDs))
	for _, id := range c.AgentIDs {
		if id == "" {
			return errors.New("agent id cannot be empty")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate agent in chamber: %s", id)
		}
		seen[id] = struct{}{}
	}
	if c.Style != DiscussionStyleRoundRobin && c.Style != DiscussionStyleFreeform {
		return fmt.Errorf("unknown discussion style: %s", c.Style)
	}
	if c.MaxResponsesPerRound < 0 {
		return errors.New("max responses per round cannot be negative")
	}
	if c.MaxResponsesPerRound > len(c.AgentIDs) {
		return fmt.Errorf("max responses per round (%d) exceeds agent count (%d)",
			c.MaxResponsesPerRound, len(c.AgentIDs))
	}
	return nil
}

// SpeakerBudget returns how many agents respond in one round.
func (c *Chamber) SpeakerBudget() int {
	if c.MaxResponsesPerRound == 0 {
		return len(c.AgentIDs)
	}
	return c.MaxResponsesPerRound
}
