package voice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivationStartsListening(t *testing.T) {
	r := newRig(t)

	err := r.session.Activate(context.Background(), "chamber-1", "alpha", true)
	require.NoError(t, err)

	assert.Equal(t, StateListening, r.session.State())
	assert.True(t, r.session.IsActive())
	assert.True(t, r.session.ChamberMode())
	assert.Equal(t, "chamber-1", r.session.ActiveChamberID())
	assert.Equal(t, "alpha", r.session.ActiveAgentID())
	assert.True(t, r.recognizer.IsListening())
}

func TestActivationFailureLeavesSessionIdle(t *testing.T) {
	r := newRig(t)
	r.recognizer.failStart = true

	err := r.session.Activate(context.Background(), "chamber-1", "alpha", true)
	require.Error(t, err)

	assert.Equal(t, StateIdle, r.session.State())
	assert.False(t, r.session.IsActive())
	assert.Empty(t, r.session.ActiveChamberID())
}

func TestDeactivateReturnsToIdle(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.session.Activate(context.Background(), "chamber-1", "alpha", true))

	r.session.Deactivate()

	assert.Equal(t, StateIdle, r.session.State())
	assert.False(t, r.session.IsActive())
	assert.False(t, r.recognizer.IsListening())
	assert.Empty(t, r.session.RespondingAgentID())
}

func TestMuteAndUnmuteMicrophone(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.session.Activate(context.Background(), "chamber-1", "alpha", true))

	require.NoError(t, r.session.SetMicMuted(context.Background(), true))
	assert.Equal(t, StateIdle, r.session.State())
	assert.True(t, r.session.IsActive(), "muting does not power voice off")
	assert.False(t, r.recognizer.IsListening())

	require.NoError(t, r.session.SetMicMuted(context.Background(), false))
	assert.Equal(t, StateListening, r.session.State())
	assert.True(t, r.recognizer.IsListening())
}

func TestSpeakingTransitions(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.session.Activate(context.Background(), "chamber-1", "alpha", true))

	r.session.BeginThinking()
	assert.Equal(t, StateThinking, r.session.State())

	r.session.BeginSpeaking("bravo")
	assert.Equal(t, StateSpeaking, r.session.State())
	assert.Equal(t, "bravo", r.session.RespondingAgentID())

	r.session.ClearRespondingAgent()
	assert.Equal(t, StateSpeaking, r.session.State(), "clearing the agent keeps the speaking state")
	assert.Empty(t, r.session.RespondingAgentID())
}

func TestResumeListeningAfterSettleDelay(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.session.Activate(context.Background(), "chamber-1", "alpha", true))
	r.session.BeginThinking()
	r.session.BeginSpeaking("alpha")

	r.session.ResumeListening(2 * time.Millisecond)

	waitUntil(t, time.Second, func() bool {
		return r.session.State() == StateListening
	})
}

func TestResumeListeningSkippedWhenDeactivated(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.session.Activate(context.Background(), "chamber-1", "alpha", true))
	r.session.BeginSpeaking("alpha")

	r.session.ResumeListening(5 * time.Millisecond)
	r.session.Deactivate()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateIdle, r.session.State(), "power-off wins over a pending resume")
}

func TestResumeListeningSkippedWhenMuted(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.session.Activate(context.Background(), "chamber-1", "alpha", true))
	r.session.BeginSpeaking("alpha")
	require.NoError(t, r.session.SetMicMuted(context.Background(), true))

	r.session.ResumeListening(5 * time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.NotEqual(t, StateListening, r.session.State())
}

func TestLevelBufferIsBounded(t *testing.T) {
	r := newRig(t)

	for i := 0; i < levelBufferSize*2; i++ {
		r.session.PushLevel(float32(i))
	}

	levels := r.session.Levels()
	assert.Len(t, levels, levelBufferSize)
	assert.Equal(t, float32(levelBufferSize*2-1), levels[len(levels)-1])
}
