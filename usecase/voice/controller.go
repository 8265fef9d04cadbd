package voice

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

const (
	// settleResumeDelay is the pause before listening resumes after a
	// round finishes normally, letting the synthesized tail clear the
	// microphone.
	settleResumeDelay = time.Second
	// settleBargeInDelay is the much shorter pause used after the user
	// interrupts an agent mid-speech.
	settleBargeInDelay = 200 * time.Millisecond
)

// roundHandle is the single live round: a running task plus its
// interruption flag. It is replaced, never reused; cancellation is
// awaited before a replacement becomes active.
type roundHandle struct {
	id          string
	chamberID   string
	cancel      context.CancelFunc
	done        chan struct{}
	interrupted atomic.Bool
}

// Controller owns the one in-flight round and the barge-in semantics
// around it. Starting a new round always cancels and joins any prior
// round first, so two rounds never interleave writes to session state or
// the transcript.
type Controller struct {
	session      *Session
	orchestrator *Orchestrator
	synthesizer  repositories.SpeechSynthesizer
	recognizer   repositories.SpeechRecognizer
	store        repositories.ChamberStore
	sink         repositories.TranscriptSink
	feedback     *FeedbackFilter
	bus          *EventBus
	logger       *zap.Logger

	// opMu serializes StartRound/Interrupt/Pause so two callers can
	// never race to install or tear down the live round.
	opMu sync.Mutex

	mu    sync.Mutex
	round *roundHandle

	resumeDelay  time.Duration
	bargeInDelay time.Duration
}

// NewController creates a barge-in controller.
func NewController(
	session *Session,
	orchestrator *Orchestrator,
	synthesizer repositories.SpeechSynthesizer,
	recognizer repositories.SpeechRecognizer,
	store repositories.ChamberStore,
	sink repositories.TranscriptSink,
	feedback *FeedbackFilter,
	bus *EventBus,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		session:      session,
		orchestrator: orchestrator,
		synthesizer:  synthesizer,
		recognizer:   recognizer,
		store:        store,
		sink:         sink,
		feedback:     feedback,
		bus:          bus,
		logger:       logger,
		resumeDelay:  settleResumeDelay,
		bargeInDelay: settleBargeInDelay,
	}
}

// Run pumps finalized transcripts from the recognizer into the feedback
// filter and round pipeline until ctx is cancelled. Intended to run as a
// goroutine owned by the process.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case transcript, ok := <-c.recognizer.Transcripts():
			if !ok {
				return
			}
			if !c.session.IsActive() {
				continue
			}
			chamberID := c.session.ActiveChamberID()
			if chamberID == "" {
				continue
			}
			chamber, err := c.store.Chamber(ctx, chamberID)
			if err != nil {
				c.logger.Warn("Active chamber not found, dropping transcript",
					zap.String("chamberID", chamberID), zap.Error(err))
				continue
			}
			c.HandleTranscript(ctx, chamber, transcript)
		}
	}
}

// HandleTranscript runs a finalized transcript through the anti-feedback
// filter and, when accepted, starts a new round against the chamber. A
// rejected transcript is logged and discarded with no state transition.
// Returns whether the transcript was accepted.
func (c *Controller) HandleTranscript(ctx context.Context, chamber *entities.Chamber, transcript string) bool {
	if !c.feedback.Accept(transcript, c.recentAgentContents(ctx, chamber.ID)) {
		c.bus.Emit(Event{
			Type:      EventEchoRejected,
			ChamberID: chamber.ID,
			Content:   transcript,
		})
		return false
	}
	c.StartRound(ctx, chamber, transcript)
	return true
}

// StartRound cancels any round in flight, waits for it to unwind, clears
// transient state, and spawns a new round. It returns as soon as the new
// round is running.
func (c *Controller) StartRound(ctx context.Context, chamber *entities.Chamber, utterance string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	prev := c.round
	c.round = nil
	c.mu.Unlock()

	if prev != nil {
		c.logger.Info("Superseding in-flight round", zap.String("roundID", prev.id))
		c.synthesizer.Stop()
		prev.cancel()
		<-prev.done
	}

	roundCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &roundHandle{
		id:        uuid.NewString(),
		chamberID: chamber.ID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	c.mu.Lock()
	c.round = h
	c.mu.Unlock()

	c.session.ClearRespondingAgent()
	c.session.SetLiveTranscript(utterance)
	c.session.BeginThinking()

	go c.runRound(roundCtx, h, chamber, utterance)
}

// runRound executes the round task and applies the completion policy.
func (c *Controller) runRound(ctx context.Context, h *roundHandle, chamber *entities.Chamber, utterance string) {
	err := c.orchestrator.RunRound(ctx, chamber, utterance, c.speakTurn)

	c.mu.Lock()
	live := c.round == h
	if live {
		c.round = nil
	}
	c.mu.Unlock()
	close(h.done)

	if !live {
		// Superseded or interrupted; the replacement (or Interrupt)
		// owns the session state now.
		return
	}
	if err != nil || h.interrupted.Load() {
		return
	}

	// Normal completion: resume listening after the settle delay so the
	// tail of synthesized audio does not re-trigger recognition.
	if c.session.AutoListen() && c.session.IsActive() && !c.session.MicMuted() {
		c.session.ResumeListening(c.resumeDelay)
	}
}

// speakTurn is the TurnFunc wired into the orchestrator: it begins
// synthesis on the shared speaker. Muted speaker output skips audio
// entirely; the turn still advances.
func (c *Controller) speakTurn(ctx context.Context, turn Turn) error {
	if c.session.SpeakerMuted() {
		return nil
	}
	return c.synthesizer.Speak(ctx, turn.Text, turn.Profile)
}

// Interrupt handles barge-in: it stops synthesis immediately, cancels
// the round task, clears the speaking indicator, re-enables auto-listen,
// and schedules the short-settle return to listening. Calling it with no
// active round is a no-op.
func (c *Controller) Interrupt() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	h := c.round
	c.round = nil
	c.mu.Unlock()

	if h == nil {
		return
	}

	c.logger.Info("Round interrupted by user", zap.String("roundID", h.id))
	h.interrupted.Store(true)
	c.synthesizer.Stop()
	h.cancel()
	<-h.done

	c.session.ClearRespondingAgent()
	c.session.ClearLiveTranscript()
	c.session.SetAutoListen(true)

	if c.session.IsActive() && !c.session.MicMuted() {
		c.session.ResumeListening(c.bargeInDelay)
	}
}

// Pause is the stronger variant used when the user powers chamber voice
// off: interrupt whatever is in flight, then deactivate the session
// entirely instead of returning to listening.
func (c *Controller) Pause() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	h := c.round
	c.round = nil
	c.mu.Unlock()

	if h != nil {
		c.logger.Info("Round paused", zap.String("roundID", h.id))
		h.interrupted.Store(true)
		c.synthesizer.Stop()
		h.cancel()
		<-h.done
	}

	c.session.ClearRespondingAgent()
	c.session.Deactivate()
}

// InterruptChamber interrupts the live round only when it is bound to
// the given chamber, e.g. because the chamber was deleted.
func (c *Controller) InterruptChamber(chamberID string) {
	c.mu.Lock()
	bound := c.round != nil && c.round.chamberID == chamberID
	c.mu.Unlock()
	if bound {
		c.Interrupt()
	}
	c.orchestrator.ForgetChamber(chamberID)
}

// ActiveRoundChamberID returns the chamber the live round is bound to,
// or empty when idle.
func (c *Controller) ActiveRoundChamberID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.round == nil {
		return ""
	}
	return c.round.chamberID
}

// recentAgentContents returns the most recent agent-authored message
// contents for the chamber, newest first, sized for the feedback window.
func (c *Controller) recentAgentContents(ctx context.Context, chamberID string) []string {
	msgs, err := c.sink.Recent(ctx, chamberID, historyDepth)
	if err != nil {
		c.logger.Warn("Failed to load recent messages for echo check", zap.Error(err))
		return nil
	}
	var out []string
	for i := len(msgs) - 1; i >= 0 && len(out) < echoWindowSize; i-- {
		if msgs[i].Role == entities.MessageRoleAssistant {
			out = append(out, msgs[i].Content)
		}
	}
	return out
}
