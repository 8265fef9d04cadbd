package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

// ErrMessageNotFound is returned when updating a message the sink never
// saw.
var ErrMessageNotFound = errors.New("message not found")

// MemorySink keeps chamber transcripts in memory in strict append order.
type MemorySink struct {
	mu       sync.RWMutex
	messages map[string][]entities.ChamberMessage // chamberID -> ordered transcript
	index    map[string]int                       // messageID -> position in its chamber
	chamber  map[string]string                    // messageID -> chamberID
}

var _ repositories.TranscriptSink = (*MemorySink)(nil)

// NewMemorySink creates an empty in-memory transcript sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		messages: make(map[string][]entities.ChamberMessage),
		index:    make(map[string]int),
		chamber:  make(map[string]string),
	}
}

// Append adds a message to the end of its chamber's transcript.
func (s *MemorySink) Append(ctx context.Context, msg entities.ChamberMessage) error {
	if msg.ID == "" || msg.ChamberID == "" {
		return errors.New("message id and chamber id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[msg.ID]; exists {
		return fmt.Errorf("message %s already appended", msg.ID)
	}
	s.index[msg.ID] = len(s.messages[msg.ChamberID])
	s.chamber[msg.ID] = msg.ChamberID
	s.messages[msg.ChamberID] = append(s.messages[msg.ChamberID], msg)
	return nil
}

// UpdateContent replaces the content of a still-streaming message.
func (s *MemorySink) UpdateContent(ctx context.Context, messageID string, content string) error {
	return s.mutate(messageID, func(m *entities.ChamberMessage) {
		m.Content = content
	})
}

// Finalize freezes a message with its full content.
func (s *MemorySink) Finalize(ctx context.Context, messageID string, content string) error {
	return s.mutate(messageID, func(m *entities.ChamberMessage) {
		m.Finalize(content)
	})
}

// Recent returns up to limit messages for a chamber in chronological
// order, ending with the newest.
func (s *MemorySink) Recent(ctx context.Context, chamberID string, limit int) ([]entities.ChamberMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[chamberID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]entities.ChamberMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Drop discards a chamber's transcript, e.g. when the chamber is
// deleted.
func (s *MemorySink) Drop(ctx context.Context, chamberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.messages[chamberID] {
		delete(s.index, msg.ID)
		delete(s.chamber, msg.ID)
	}
	delete(s.messages, chamberID)
	return nil
}

func (s *MemorySink) mutate(messageID string, fn func(*entities.ChamberMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chamberID, exists := s.chamber[messageID]
	if !exists {
		return fmt.Errorf("message %s: %w", messageID, ErrMessageNotFound)
	}
	pos := s.index[messageID]
	fn(&s.messages[chamberID][pos])
	return nil
}
