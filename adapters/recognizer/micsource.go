package recognizer

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

const micChunkSize = 3200 // 100ms of 16kHz 16-bit mono

// CommandSource captures microphone audio by running an external
// recorder process and reading raw PCM from its stdout.
type CommandSource struct {
	name   string
	args   []string
	logger *zap.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

var _ AudioSource = (*CommandSource)(nil)

// NewCommandSource creates a microphone source over an explicit
// recorder command. The command must write 16-bit little-endian PCM at
// 16kHz mono to stdout.
func NewCommandSource(name string, args []string, logger *zap.Logger) *CommandSource {
	return &CommandSource{name: name, args: args, logger: logger}
}

// NewDefaultMicSource picks a recorder for the current platform.
func NewDefaultMicSource(logger *zap.Logger) *CommandSource {
	if runtime.GOOS == "darwin" {
		return NewCommandSource("sox",
			[]string{"-d", "-t", "raw", "-b", "16", "-e", "signed", "-r", "16000", "-c", "1", "-"},
			logger)
	}
	return NewCommandSource("arecord",
		[]string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "raw"},
		logger)
}

// ReadChunk returns the next captured audio frame, starting the
// recorder process on first use.
func (s *CommandSource) ReadChunk(ctx context.Context) ([]byte, error) {
	stdout, err := s.ensureStarted()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, micChunkSize)
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := io.ReadAtLeast(stdout, buf, 1)
		ch <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("microphone read failed: %w", r.err)
		}
		return buf[:r.n], nil
	}
}

// Close stops the recorder process.
func (s *CommandSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}
	if s.stdout != nil {
		s.stdout.Close()
	}
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	err := s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
	if err != nil {
		s.logger.Debug("Recorder process exited", zap.Error(err))
	}
	return nil
}

func (s *CommandSource) ensureStarted() (io.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return s.stdout, nil
	}

	cmd := exec.Command(s.name, s.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder %s: %w", s.name, err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.logger.Info("Microphone capture started", zap.String("recorder", s.name))
	return stdout, nil
}
