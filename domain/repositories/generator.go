package repositories

import (
	"context"

	"github.com/voxhall/voxhall/domain/entities"
)

// ResponseGenerator abstracts the text generation backend.
type ResponseGenerator interface {
	// Generate produces one agent's reply to the user utterance given the
	// round-local context (prior turns of the same round plus recent
	// chamber history). Cancelling ctx abandons the request.
	Generate(ctx context.Context, agentID string, utterance string, history []entities.ChamberMessage) (string, error)
}
