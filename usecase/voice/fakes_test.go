package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/adapters/sink"
	"github.com/voxhall/voxhall/adapters/store"
	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

type fakeRecognizer struct {
	mu        sync.Mutex
	listening bool
	failStart bool
	out       chan string
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{out: make(chan string, 8)}
}

func (f *fakeRecognizer) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStart {
		return errors.New("microphone unavailable")
	}
	f.listening = true
	return nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening = false
	return nil
}

func (f *fakeRecognizer) IsListening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listening
}

func (f *fakeRecognizer) Transcripts() <-chan string {
	return f.out
}

// fakeGenerator replies with "<agentID>: <utterance>" after an optional
// delay, honoring cancellation.
type fakeGenerator struct {
	mu    sync.Mutex
	delay time.Duration
	fail  map[string]error // agentID -> forced error
	calls []string
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{fail: make(map[string]error)}
}

func (f *fakeGenerator) Generate(ctx context.Context, agentID, utterance string, history []entities.ChamberMessage) (string, error) {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, forced := f.fail[agentID]; forced {
		return "", err
	}
	f.calls = append(f.calls, agentID)
	return fmt.Sprintf("%s: %s", agentID, utterance), nil
}

func (f *fakeGenerator) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeSynthesizer tracks playback state. With manual set, playback runs
// until Stop; otherwise it drains after speakDur.
type fakeSynthesizer struct {
	mu        sync.Mutex
	speaking  bool
	manual    bool
	speakDur  time.Duration
	failSpeak bool
	spoken    []string
	stops     int
}

func newFakeSynthesizer() *fakeSynthesizer {
	return &fakeSynthesizer{speakDur: 10 * time.Millisecond}
}

func (f *fakeSynthesizer) Speak(ctx context.Context, text string, profile entities.VoiceProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSpeak {
		return errors.New("no audio device")
	}
	f.speaking = true
	f.spoken = append(f.spoken, text)
	if !f.manual {
		time.AfterFunc(f.speakDur, func() {
			f.mu.Lock()
			f.speaking = false
			f.mu.Unlock()
		})
	}
	return nil
}

func (f *fakeSynthesizer) IsSpeaking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speaking
}

func (f *fakeSynthesizer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = false
	f.stops++
}

func (f *fakeSynthesizer) Levels() []float32 { return nil }

func (f *fakeSynthesizer) spokenList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

// rig wires a full voice core against fakes and the in-memory adapters.
type rig struct {
	session    *Session
	orch       *Orchestrator
	ctrl       *Controller
	recognizer *fakeRecognizer
	generator  *fakeGenerator
	synth      *fakeSynthesizer
	chambers   *store.MemoryStore
	transcript *sink.MemorySink
	bus        *EventBus
}

func newRig(t *testing.T) *rig {
	t.Helper()
	logger := zap.NewNop()

	bus := NewEventBus(logger)
	recognizer := newFakeRecognizer()
	generator := newFakeGenerator()
	synth := newFakeSynthesizer()
	chambers := store.NewMemoryStore()
	transcript := sink.NewMemorySink()

	session := NewSession(recognizer, bus, logger)
	orch := NewOrchestrator(chambers, generator, synth, transcript,
		NewProfileResolver(logger), session, bus, logger)
	orch.pollInterval = 2 * time.Millisecond
	orch.waitCeiling = time.Second

	ctrl := NewController(session, orch, synth, recognizer, chambers, transcript,
		NewFeedbackFilter(logger), bus, logger)
	ctrl.resumeDelay = 5 * time.Millisecond
	ctrl.bargeInDelay = time.Millisecond

	return &rig{
		session:    session,
		orch:       orch,
		ctrl:       ctrl,
		recognizer: recognizer,
		generator:  generator,
		synth:      synth,
		chambers:   chambers,
		transcript: transcript,
		bus:        bus,
	}
}

// chamber registers the named agents and creates a chamber over them.
func (r *rig) chamber(t *testing.T, style entities.DiscussionStyle, maxResponses int, agentIDs ...string) *entities.Chamber {
	t.Helper()
	for _, id := range agentIDs {
		err := r.chambers.RegisterAgent(&repositories.AgentConfig{
			ID:   id,
			Name: "Agent " + id,
			Voice: repositories.AgentVoiceConfig{
				PreferredEngine: entities.VoiceEngineLocal,
				LocalModelID:    "model-" + id,
			},
		})
		if err != nil {
			t.Fatalf("register agent %s: %v", id, err)
		}
	}
	c, err := entities.NewChamber("test chamber", agentIDs, style, maxResponses)
	if err != nil {
		t.Fatalf("new chamber: %v", err)
	}
	if err := r.chambers.CreateChamber(context.Background(), c); err != nil {
		t.Fatalf("create chamber: %v", err)
	}
	return c
}

// waitEvent drains the bus until an event of the given type arrives.
func (r *rig) waitEvent(t *testing.T, typ EventType, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-r.bus.Events():
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", typ)
			return Event{}
		}
	}
}

// waitUntil polls cond until it holds or the timeout elapses.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
