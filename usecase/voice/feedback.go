package voice

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// shortTranscriptLength is the length at or below which a transcript
	// is always accepted; too short for reliable echo matching.
	shortTranscriptLength = 10
	// echoPrefixLength is how much of the candidate is matched against
	// recent agent output.
	echoPrefixLength = 20
	// echoWindowSize is how many recent agent messages are checked.
	echoWindowSize = 5
)

// FeedbackFilter classifies a freshly finalized transcript as genuine
// user input or as the system's own synthesized voice bleeding back into
// the microphone. The mic stays hot while agents speak to support
// barge-in, so without this check the system would re-transcribe its own
// speech and loop. The prefix heuristic is a placeholder policy: false
// negatives on user speech that echoes agent phrasing are an accepted
// failure mode.
type FeedbackFilter struct {
	logger *zap.Logger
}

// NewFeedbackFilter creates a feedback filter.
func NewFeedbackFilter(logger *zap.Logger) *FeedbackFilter {
	return &FeedbackFilter{logger: logger}
}

// Accept reports whether the candidate transcript should start a new
// turn. recentAgentMessages holds the most recent agent-authored message
// contents, most recent first; only the first echoWindowSize entries are
// consulted.
func (f *FeedbackFilter) Accept(candidate string, recentAgentMessages []string) bool {
	if utf8.RuneCountInString(candidate) <= shortTranscriptLength {
		return true
	}

	// Lengths count runes, not bytes, so multibyte speech is never cut
	// mid-character.
	prefix := strings.ToLower(candidate)
	if runes := []rune(prefix); len(runes) > echoPrefixLength {
		prefix = string(runes[:echoPrefixLength])
	}

	window := recentAgentMessages
	if len(window) > echoWindowSize {
		window = window[:echoWindowSize]
	}

	for _, msg := range window {
		if strings.Contains(strings.ToLower(msg), prefix) {
			f.logger.Info("Transcript rejected as echo of agent speech",
				zap.String("prefix", prefix),
				zap.Int("transcriptLength", len(candidate)))
			return false
		}
	}
	return true
}
