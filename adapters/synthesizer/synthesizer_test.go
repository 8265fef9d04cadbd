package synthesizer

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
)

type stubBackend struct {
	chunks [][]byte
	err    error
	calls  int
}

func (s *stubBackend) Synthesize(ctx context.Context, text string, profile entities.VoiceProfile) (<-chan []byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan []byte, len(s.chunks))
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

type stubOutput struct {
	played  int
	stopped int
	block   chan struct{}
}

func (s *stubOutput) Play(ctx context.Context, chunks <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-chunks:
			if !ok {
				if s.block != nil {
					select {
					case <-s.block:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				return nil
			}
			s.played++
		}
	}
}

func (s *stubOutput) Stop() { s.stopped++ }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
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

func TestRouterSpeaksAndCompletes(t *testing.T) {
	backend := &stubBackend{chunks: [][]byte{{0, 0, 0, 64}, {0, 0, 0, 32}}}
	output := &stubOutput{}
	router := NewRouter(backend, nil, nil, output, zap.NewNop())

	profile := entities.VoiceProfile{Engine: entities.VoiceEngineCloud, CloudVoiceID: "v1"}
	require.NoError(t, router.Speak(context.Background(), "hello there", profile))
	assert.True(t, router.IsSpeaking())

	waitFor(t, time.Second, func() bool { return !router.IsSpeaking() })
	assert.Equal(t, 2, output.played)
	assert.NotEmpty(t, router.Levels())
}

func TestRouterStopHaltsPlayback(t *testing.T) {
	backend := &stubBackend{chunks: [][]byte{{0, 0}}}
	output := &stubOutput{block: make(chan struct{})}
	router := NewRouter(backend, nil, nil, output, zap.NewNop())

	profile := entities.VoiceProfile{Engine: entities.VoiceEngineCloud, CloudVoiceID: "v1"}
	require.NoError(t, router.Speak(context.Background(), "long speech", profile))
	require.True(t, router.IsSpeaking())

	router.Stop()
	assert.False(t, router.IsSpeaking())
	assert.Equal(t, 1, output.stopped)
}

func TestRouterRoutesByEngine(t *testing.T) {
	cloud := &stubBackend{chunks: [][]byte{{1, 1}}}
	local := &stubBackend{chunks: [][]byte{{2, 2}}}
	router := NewRouter(cloud, local, nil, &stubOutput{}, zap.NewNop())

	profile := entities.VoiceProfile{Engine: entities.VoiceEngineLocal, LocalModelID: "m1"}
	require.NoError(t, router.Speak(context.Background(), "hi", profile))
	waitFor(t, time.Second, func() bool { return !router.IsSpeaking() })

	assert.Equal(t, 1, local.calls)
	assert.Zero(t, cloud.calls)
}

func TestRouterStopReleasesMeterGoroutines(t *testing.T) {
	chunks := make([][]byte, 32)
	for i := range chunks {
		chunks[i] = []byte{0, 1, 0, 1}
	}
	profile := entities.VoiceProfile{Engine: entities.VoiceEngineCloud, CloudVoiceID: "v1"}

	baseline := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		backend := &stubBackend{chunks: chunks}
		output := &stubOutput{block: make(chan struct{})}
		router := NewRouter(backend, nil, nil, output, zap.NewNop())

		require.NoError(t, router.Speak(context.Background(), "interrupted speech", profile))
		router.Stop()
	}

	waitFor(t, time.Second, func() bool {
		return runtime.NumGoroutine() <= baseline+2
	})
}

func TestRouterUnconfiguredEngineFails(t *testing.T) {
	router := NewRouter(&stubBackend{}, nil, nil, &stubOutput{}, zap.NewNop())

	profile := entities.VoiceProfile{Engine: entities.VoiceEngineSystem}
	err := router.Speak(context.Background(), "hi", profile)
	require.Error(t, err)
	assert.False(t, router.IsSpeaking())
}
