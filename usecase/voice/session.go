package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/repositories"
)

// SessionState is the session-wide voice mode.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateListening SessionState = "listening"
	StateThinking  SessionState = "thinking"
	StateSpeaking  SessionState = "speaking"
)

// levelBufferSize bounds the rolling audio level buffer.
const levelBufferSize = 64

// Session is the single source of truth for session mode and the
// active-agent/active-chamber binding. One instance exists per running
// application; callers hold a reference and mutate it only through the
// transition methods below. State is not persisted and resets to Idle on
// restart.
type Session struct {
	mu sync.Mutex

	state           SessionState
	active          bool
	chamberMode     bool
	activeChamberID string
	activeAgentID   string
	micMuted        bool
	speakerMuted    bool
	autoListen      bool

	respondingAgentID string
	liveTranscript    string

	levels []float32

	recognizer repositories.SpeechRecognizer
	bus        *EventBus
	logger     *zap.Logger
}

// NewSession creates an inactive session in the Idle state.
func NewSession(recognizer repositories.SpeechRecognizer, bus *EventBus, logger *zap.Logger) *Session {
	return &Session{
		state:      StateIdle,
		autoListen: true,
		recognizer: recognizer,
		bus:        bus,
		logger:     logger,
	}
}

// Activate powers voice on for a chamber and begins streaming
// transcription. If the recognizer cannot start, the session stays Idle
// and no partial state is exposed. activeAgentID is the agent the mic
// activation is nominally bound to (first chamber member in chamber mode).
func (s *Session) Activate(ctx context.Context, chamberID, activeAgentID string, chamberMode bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil
	}
	if !s.micMuted {
		if err := s.recognizer.Start(ctx); err != nil {
			s.logger.Error("Voice activation failed", zap.Error(err))
			return fmt.Errorf("failed to start recognizer: %w", err)
		}
	}

	s.active = true
	s.chamberMode = chamberMode
	s.activeChamberID = chamberID
	s.activeAgentID = activeAgentID
	if s.micMuted {
		s.setStateLocked(StateIdle)
	} else {
		s.setStateLocked(StateListening)
	}

	s.logger.Info("Voice session activated",
		zap.String("chamberID", chamberID),
		zap.String("activeAgentID", activeAgentID),
		zap.Bool("chamberMode", chamberMode))
	return nil
}

// Deactivate powers voice off and returns the session to Idle.
func (s *Session) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.recognizer.Stop(); err != nil {
		s.logger.Warn("Recognizer stop failed during deactivation", zap.Error(err))
	}
	s.active = false
	s.chamberMode = false
	s.activeChamberID = ""
	s.activeAgentID = ""
	s.respondingAgentID = ""
	s.liveTranscript = ""
	s.setStateLocked(StateIdle)
	s.logger.Info("Voice session deactivated")
}

// BeginThinking marks an accepted transcript as handed to the
// orchestrator.
func (s *Session) BeginThinking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(StateThinking)
}

// BeginSpeaking marks an agent response as being voiced and records the
// agent holding the floor.
func (s *Session) BeginSpeaking(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respondingAgentID = agentID
	s.setStateLocked(StateSpeaking)
}

// ClearRespondingAgent clears the currently-speaking indicator without
// leaving the Speaking state.
func (s *Session) ClearRespondingAgent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respondingAgentID = ""
}

// ResumeListening schedules a transition back to Listening after the
// settle delay. The conditions (still active, mic not muted) are
// re-checked when the delay fires, so a power-off or mute in between
// wins.
func (s *Session) ResumeListening(settle time.Duration) {
	time.AfterFunc(settle, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.active || s.micMuted || s.state == StateListening {
			return
		}
		if !s.recognizer.IsListening() {
			if err := s.recognizer.Start(context.Background()); err != nil {
				s.logger.Error("Failed to resume listening", zap.Error(err))
				return
			}
		}
		s.setStateLocked(StateListening)
	})
}

// SetMicMuted toggles the microphone. Unmuting while voice is active
// resumes listening; muting while listening drops the session to Idle
// (still powered) until unmuted.
func (s *Session) SetMicMuted(ctx context.Context, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.micMuted = muted
	if muted {
		if err := s.recognizer.Stop(); err != nil {
			s.logger.Warn("Recognizer stop failed on mute", zap.Error(err))
		}
		if s.state == StateListening {
			s.setStateLocked(StateIdle)
		}
		return nil
	}
	if s.active && s.state == StateIdle {
		if err := s.recognizer.Start(ctx); err != nil {
			s.logger.Error("Failed to start recognizer on unmute", zap.Error(err))
			return fmt.Errorf("failed to start recognizer: %w", err)
		}
		s.setStateLocked(StateListening)
	}
	return nil
}

// SetSpeakerMuted toggles speaker output. Muted turns still advance; they
// just produce no audio.
func (s *Session) SetSpeakerMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speakerMuted = muted
}

// SetAutoListen controls whether finishing a round resumes listening.
func (s *Session) SetAutoListen(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoListen = v
}

// SetLiveTranscript records the in-progress user transcript for display.
func (s *Session) SetLiveTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveTranscript = text
}

// ClearLiveTranscript drops the live transcript.
func (s *Session) ClearLiveTranscript() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveTranscript = ""
}

// PushLevel appends an audio level sample to the rolling buffer.
func (s *Session) PushLevel(level float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = append(s.levels, level)
	if len(s.levels) > levelBufferSize {
		s.levels = s.levels[len(s.levels)-levelBufferSize:]
	}
}

// Levels returns a copy of the rolling audio level buffer.
func (s *Session) Levels() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, len(s.levels))
	copy(out, s.levels)
	return out
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) ChamberMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chamberMode
}

func (s *Session) ActiveChamberID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChamberID
}

func (s *Session) ActiveAgentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeAgentID
}

func (s *Session) RespondingAgentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.respondingAgentID
}

func (s *Session) LiveTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveTranscript
}

func (s *Session) MicMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.micMuted
}

func (s *Session) SpeakerMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speakerMuted
}

func (s *Session) AutoListen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoListen
}

// setStateLocked applies a state change and emits the transition event.
// Callers hold s.mu.
func (s *Session) setStateLocked(state SessionState) {
	if s.state == state {
		return
	}
	s.logger.Debug("Session state transition",
		zap.String("from", string(s.state)),
		zap.String("to", string(state)))
	s.state = state
	s.bus.Emit(Event{
		Type:      EventSessionState,
		ChamberID: s.activeChamberID,
		State:     state,
	})
}
