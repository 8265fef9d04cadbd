package repositories

import (
	"context"

	"github.com/voxhall/voxhall/domain/entities"
)

// TranscriptSink receives chamber messages as turns progress. The sink
// owns persistence and export; the voice core only appends in strict
// chronological order, updates streaming content, and finalizes.
type TranscriptSink interface {
	Append(ctx context.Context, msg entities.ChamberMessage) error
	UpdateContent(ctx context.Context, messageID string, content string) error
	Finalize(ctx context.Context, messageID string, content string) error
	Recent(ctx context.Context, chamberID string, limit int) ([]entities.ChamberMessage, error)
}
