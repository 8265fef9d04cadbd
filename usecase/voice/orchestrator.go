package voice

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

const (
	// synthPollInterval is how often synthesis completion is checked.
	synthPollInterval = 100 * time.Millisecond
	// synthWaitCeiling bounds the wait on a stuck synthesis backend;
	// past it the turn counts as complete.
	synthWaitCeiling = 60 * time.Second
	// historyDepth is how much chamber history feeds generation.
	historyDepth = 20
)

// Turn is one agent's generate-then-speak step, handed to the TurnFunc
// once the response text and voice profile are known.
type Turn struct {
	MessageID string
	AgentID   string
	AgentName string
	Text      string
	Profile   entities.VoiceProfile
}

// TurnFunc begins voicing a turn. The orchestrator then blocks until the
// synthesizer reports playback finished, the round is interrupted, or
// the wait ceiling elapses. Returning an error means playback could not
// start; the turn is then treated as instantly spoken.
type TurnFunc func(ctx context.Context, turn Turn) error

// Orchestrator drives one full round of turn-taking against a chamber:
// it selects speakers, requests their responses, resolves voices, and
// waits (cancelably) for each turn to be spoken before advancing. Turns
// are strictly sequential; only one agent holds the floor at a time.
type Orchestrator struct {
	store       repositories.ChamberStore
	generator   repositories.ResponseGenerator
	synthesizer repositories.SpeechSynthesizer
	sink        repositories.TranscriptSink
	resolver    *ProfileResolver
	session     *Session
	bus         *EventBus
	logger      *zap.Logger

	mu       sync.Mutex
	rotation map[string]int // per-chamber starting speaker offset

	pollInterval time.Duration
	waitCeiling  time.Duration
}

// NewOrchestrator creates a turn orchestrator.
func NewOrchestrator(
	store repositories.ChamberStore,
	generator repositories.ResponseGenerator,
	synthesizer repositories.SpeechSynthesizer,
	sink repositories.TranscriptSink,
	resolver *ProfileResolver,
	session *Session,
	bus *EventBus,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:        store,
		generator:    generator,
		synthesizer:  synthesizer,
		sink:         sink,
		resolver:     resolver,
		session:      session,
		bus:          bus,
		logger:       logger,
		rotation:     make(map[string]int),
		pollInterval: synthPollInterval,
		waitCeiling:  synthWaitCeiling,
	}
}

// RunRound processes one user utterance against a chamber. A single
// failing speaker is skipped, not fatal; cancellation of ctx abandons
// the remaining speaker list immediately. The function returns ctx.Err()
// when the round was interrupted and nil on normal completion.
func (o *Orchestrator) RunRound(ctx context.Context, chamber *entities.Chamber, utterance string, onTurn TurnFunc) error {
	speakers := o.selectSpeakers(chamber)
	o.logger.Info("Round started",
		zap.String("chamberID", chamber.ID),
		zap.Strings("speakers", speakers))
	o.bus.Emit(Event{Type: EventRoundStarted, ChamberID: chamber.ID, Content: utterance})

	history, err := o.sink.Recent(ctx, chamber.ID, historyDepth)
	if err != nil {
		o.logger.Warn("Failed to load chamber history", zap.Error(err))
	}

	userMsg := entities.NewUserMessage(chamber.ID, utterance)
	if err := o.sink.Append(ctx, userMsg); err != nil {
		o.logger.Warn("Failed to append user message", zap.Error(err))
	}
	o.bus.Emit(Event{
		Type:      EventUserMessage,
		ChamberID: chamber.ID,
		MessageID: userMsg.ID,
		Content:   utterance,
	})

	roundContext := append(history, userMsg)

	interrupted := false
	for _, agentID := range speakers {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		agent, err := o.store.Agent(ctx, agentID)
		if err != nil {
			o.logger.Warn("Unknown agent, skipping turn",
				zap.String("agentID", agentID), zap.Error(err))
			o.bus.Emit(Event{Type: EventTurnSkipped, ChamberID: chamber.ID, AgentID: agentID})
			continue
		}

		text, err := o.generator.Generate(ctx, agentID, utterance, roundContext)
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		if err != nil {
			o.logger.Warn("Generation failed, skipping speaker",
				zap.String("agentID", agentID), zap.Error(err))
			o.bus.Emit(Event{
				Type: EventTurnSkipped, ChamberID: chamber.ID,
				AgentID: agentID, AgentName: agent.Name,
			})
			continue
		}

		msg := entities.NewAgentMessage(chamber.ID, agentID, agent.Name)
		if err := o.sink.Append(ctx, msg); err != nil {
			o.logger.Warn("Failed to append agent message", zap.Error(err))
		}
		o.bus.Emit(Event{
			Type: EventTurnStarted, ChamberID: chamber.ID,
			MessageID: msg.ID, AgentID: agentID, AgentName: agent.Name,
		})

		profile := o.resolver.Resolve(agentID, agent.Voice)
		o.session.BeginSpeaking(agentID)

		o.bus.Emit(Event{
			Type: EventTurnUpdated, ChamberID: chamber.ID,
			MessageID: msg.ID, AgentID: agentID, AgentName: agent.Name,
			Content: text,
		})
		if err := o.sink.Finalize(ctx, msg.ID, text); err != nil {
			o.logger.Warn("Failed to finalize agent message", zap.Error(err))
		}
		msg.Finalize(text)
		roundContext = append(roundContext, msg)

		turn := Turn{
			MessageID: msg.ID,
			AgentID:   agentID,
			AgentName: agent.Name,
			Text:      text,
			Profile:   profile,
		}
		if err := onTurn(ctx, turn); err != nil {
			o.logger.Warn("Synthesis failed to start, treating turn as spoken",
				zap.String("agentID", agentID), zap.Error(err))
		} else if !o.waitForSynthesis(ctx) {
			interrupted = true
		}

		if interrupted {
			o.bus.Emit(Event{
				Type: EventTurnInterrupted, ChamberID: chamber.ID,
				MessageID: msg.ID, AgentID: agentID, AgentName: agent.Name,
			})
			break
		}
		o.bus.Emit(Event{
			Type: EventTurnCompleted, ChamberID: chamber.ID,
			MessageID: msg.ID, AgentID: agentID, AgentName: agent.Name,
		})
		o.session.ClearRespondingAgent()
	}

	o.session.ClearRespondingAgent()
	o.session.ClearLiveTranscript()

	if interrupted || ctx.Err() != nil {
		o.logger.Info("Round interrupted", zap.String("chamberID", chamber.ID))
		o.bus.Emit(Event{Type: EventRoundInterrupted, ChamberID: chamber.ID})
		return ctx.Err()
	}
	o.logger.Info("Round completed", zap.String("chamberID", chamber.ID))
	o.bus.Emit(Event{Type: EventRoundCompleted, ChamberID: chamber.ID})
	return nil
}

// selectSpeakers determines the ordered speaker list for one round.
// Round-robin rotates the starting speaker each round and caps the round
// at the speaker budget; freeform shuffles the order, under the same cap.
func (o *Orchestrator) selectSpeakers(c *entities.Chamber) []string {
	n := len(c.AgentIDs)
	if n == 0 {
		return nil
	}
	budget := c.SpeakerBudget()

	if c.Style == entities.DiscussionStyleFreeform {
		perm := rand.Perm(n)
		out := make([]string, 0, budget)
		for _, idx := range perm[:budget] {
			out = append(out, c.AgentIDs[idx])
		}
		return out
	}

	o.mu.Lock()
	start := o.rotation[c.ID] % n
	advance := 1
	if budget < n {
		// Capped rounds hand the floor to the uncovered agents next.
		advance = budget
	}
	o.rotation[c.ID] = (start + advance) % n
	o.mu.Unlock()

	out := make([]string, 0, budget)
	for i := 0; i < budget; i++ {
		out = append(out, c.AgentIDs[(start+i)%n])
	}
	return out
}

// ForgetChamber drops rotation state for a deleted chamber.
func (o *Orchestrator) ForgetChamber(chamberID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.rotation, chamberID)
}

// waitForSynthesis blocks until playback drains, the round is cancelled,
// or the wait ceiling elapses. Returns false only on cancellation.
func (o *Orchestrator) waitForSynthesis(ctx context.Context) bool {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	ceiling := time.NewTimer(o.waitCeiling)
	defer ceiling.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ceiling.C:
			o.logger.Warn("Synthesis wait ceiling reached, treating turn as complete")
			return true
		case <-ticker.C:
			if !o.synthesizer.IsSpeaking() {
				return true
			}
		}
	}
}
