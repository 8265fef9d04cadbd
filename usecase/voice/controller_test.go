package voice

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/voxhall/domain/entities"
)

func (c *Controller) liveRound() *roundHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}

func TestInterruptWithNoRoundIsNoOp(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.session.Activate(context.Background(), "chamber-1", "alpha", true))
	before := r.session.State()

	r.ctrl.Interrupt()

	assert.Equal(t, before, r.session.State(), "session state unchanged")
	assert.Equal(t, 0, r.synth.stops)
}

func TestChamberRoundEndToEnd(t *testing.T) {
	r := newRig(t)
	chamber := r.chamber(t, entities.DiscussionStyleRoundRobin, 0, "alpha", "bravo")
	require.NoError(t, r.session.Activate(context.Background(), chamber.ID, "alpha", true))

	accepted := r.ctrl.HandleTranscript(context.Background(), chamber, "hello everyone")
	require.True(t, accepted)

	r.waitEvent(t, EventRoundCompleted, 2*time.Second)

	assert.Equal(t, []string{"alpha", "bravo"}, r.generator.callList())
	assert.Equal(t, []string{"alpha: hello everyone", "bravo: hello everyone"}, r.synth.spokenList())
	assert.Empty(t, r.session.RespondingAgentID())
	assert.True(t, r.session.AutoListen())
	assert.Nil(t, r.ctrl.liveRound())

	// Auto-listen resumes after the settle delay.
	waitUntil(t, time.Second, func() bool {
		return r.session.State() == StateListening
	})
}

func TestInterruptMidSynthesis(t *testing.T) {
	r := newRig(t)
	chamber := r.chamber(t, entities.DiscussionStyleRoundRobin, 0, "alpha", "bravo")
	require.NoError(t, r.session.Activate(context.Background(), chamber.ID, "alpha", true))
	r.synth.manual = true

	r.ctrl.StartRound(context.Background(), chamber, "tell me a long story")
	waitUntil(t, time.Second, r.synth.IsSpeaking)
	assert.Equal(t, "alpha", r.session.RespondingAgentID())

	r.ctrl.Interrupt()

	assert.False(t, r.synth.IsSpeaking(), "synthesis stopped immediately")
	assert.Nil(t, r.ctrl.liveRound(), "round task cancelled")
	assert.Empty(t, r.session.RespondingAgentID())
	assert.Equal(t, []string{"alpha"}, r.generator.callList(), "no call reaches the second agent")
	assert.True(t, r.session.AutoListen())

	// Barge-in resumes listening after the short settle delay.
	waitUntil(t, time.Second, func() bool {
		return r.session.State() == StateListening
	})
}

func TestNewRoundSupersedesInFlightRound(t *testing.T) {
	r := newRig(t)
	chamber := r.chamber(t, entities.DiscussionStyleRoundRobin, 0, "alpha", "bravo")
	require.NoError(t, r.session.Activate(context.Background(), chamber.ID, "alpha", true))
	r.generator.delay = 50 * time.Millisecond

	r.ctrl.StartRound(context.Background(), chamber, "first question")
	time.Sleep(5 * time.Millisecond) // round one is inside generation
	r.ctrl.StartRound(context.Background(), chamber, "second question")

	r.waitEvent(t, EventRoundCompleted, 2*time.Second)

	assert.Nil(t, r.ctrl.liveRound(), "exactly one live round at any time, none after completion")
	for _, spoken := range r.synth.spokenList() {
		assert.Contains(t, spoken, "second question",
			"superseded round must not reach the speaker")
	}

	msgs, err := r.transcript.Recent(context.Background(), chamber.ID, 0)
	require.NoError(t, err)
	for _, m := range msgs {
		if m.Role == entities.MessageRoleAssistant {
			assert.True(t, strings.HasSuffix(m.Content, "second question"),
				"stale turns must not reach the transcript sink")
		}
	}
}

func TestPausePowersVoiceOff(t *testing.T) {
	r := newRig(t)
	chamber := r.chamber(t, entities.DiscussionStyleRoundRobin, 0, "alpha", "bravo")
	require.NoError(t, r.session.Activate(context.Background(), chamber.ID, "alpha", true))
	r.synth.manual = true

	r.ctrl.StartRound(context.Background(), chamber, "keep talking please")
	waitUntil(t, time.Second, r.synth.IsSpeaking)

	r.ctrl.Pause()

	assert.False(t, r.synth.IsSpeaking())
	assert.Nil(t, r.ctrl.liveRound())
	assert.False(t, r.session.IsActive())
	assert.Equal(t, StateIdle, r.session.State())

	// No resume after a pause.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateIdle, r.session.State())
}

func TestHandleTranscriptRejectsEcho(t *testing.T) {
	r := newRig(t)
	chamber := r.chamber(t, entities.DiscussionStyleRoundRobin, 0, "alpha", "bravo")
	require.NoError(t, r.session.Activate(context.Background(), chamber.ID, "alpha", true))

	echoed := entities.NewAgentMessage(chamber.ID, "alpha", "Agent alpha")
	require.NoError(t, r.transcript.Append(context.Background(), echoed))
	require.NoError(t, r.transcript.Finalize(context.Background(), echoed.ID,
		"the quarterly numbers look very strong this time"))

	accepted := r.ctrl.HandleTranscript(context.Background(), chamber,
		"the quarterly numbers look strong")

	assert.False(t, accepted)
	assert.Nil(t, r.ctrl.liveRound(), "rejected transcript produces no round")
	assert.Equal(t, StateListening, r.session.State(), "no state transition on rejection")
	ev := r.waitEvent(t, EventEchoRejected, time.Second)
	assert.Equal(t, chamber.ID, ev.ChamberID)
}

func TestDeletingChamberInterruptsBoundRound(t *testing.T) {
	r := newRig(t)
	chamber := r.chamber(t, entities.DiscussionStyleRoundRobin, 0, "alpha", "bravo")
	require.NoError(t, r.session.Activate(context.Background(), chamber.ID, "alpha", true))
	r.synth.manual = true

	r.ctrl.StartRound(context.Background(), chamber, "we were mid discussion")
	waitUntil(t, time.Second, r.synth.IsSpeaking)

	r.ctrl.InterruptChamber(chamber.ID)

	assert.Nil(t, r.ctrl.liveRound())
	assert.False(t, r.synth.IsSpeaking())
}

func TestInterruptChamberIgnoresOtherChambers(t *testing.T) {
	r := newRig(t)
	chamber := r.chamber(t, entities.DiscussionStyleRoundRobin, 0, "alpha", "bravo")
	require.NoError(t, r.session.Activate(context.Background(), chamber.ID, "alpha", true))
	r.synth.manual = true

	r.ctrl.StartRound(context.Background(), chamber, "still going strong here")
	waitUntil(t, time.Second, r.synth.IsSpeaking)

	r.ctrl.InterruptChamber("some-other-chamber")

	assert.NotNil(t, r.ctrl.liveRound(), "unrelated chamber deletion leaves the round running")
	r.ctrl.Pause()
}

func TestTranscriptPumpDrivesRounds(t *testing.T) {
	r := newRig(t)
	chamber := r.chamber(t, entities.DiscussionStyleRoundRobin, 0, "alpha", "bravo")
	require.NoError(t, r.session.Activate(context.Background(), chamber.ID, "alpha", true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.ctrl.Run(ctx)

	r.recognizer.out <- "what do you two make of this"

	r.waitEvent(t, EventRoundCompleted, 2*time.Second)
	assert.Equal(t, []string{"alpha", "bravo"}, r.generator.callList())
}
