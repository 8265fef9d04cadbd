package synthesizer

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/domain/entities"
)

const systemChunkSize = 2048

// SystemBackend shells out to the operating system's speech command and
// streams the raw audio it writes to stdout. It is the last rung of the
// engine ladder and needs no credentials or downloads.
type SystemBackend struct {
	logger *zap.Logger
}

var _ Backend = (*SystemBackend)(nil)

// NewSystemBackend creates a backend over the platform speech command.
func NewSystemBackend(logger *zap.Logger) *SystemBackend {
	return &SystemBackend{logger: logger}
}

// Synthesize runs the platform speech command for text and streams its
// stdout. Killing the process on ctx cancellation is handled by
// exec.CommandContext.
func (s *SystemBackend) Synthesize(ctx context.Context, text string, profile entities.VoiceProfile) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	cmd := s.command(ctx, text, profile.SystemVoiceID)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open speech command stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start speech command: %w", err)
	}

	audioChan := make(chan []byte, 10)
	go func() {
		defer close(audioChan)
		defer func() {
			if err := cmd.Wait(); err != nil && ctx.Err() == nil {
				s.logger.Warn("Speech command exited with error", zap.Error(err))
			}
		}()

		buffer := make([]byte, systemChunkSize)
		for {
			n, err := stdout.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				select {
				case audioChan <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("Error reading speech command output", zap.Error(err))
				}
				return
			}
		}
	}()

	return audioChan, nil
}

func (s *SystemBackend) command(ctx context.Context, text, voice string) *exec.Cmd {
	if runtime.GOOS == "darwin" {
		args := []string{"--output-file=-", "--data-format=LEI16@24000"}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		args = append(args, text)
		return exec.CommandContext(ctx, "say", args...)
	}

	args := []string{"--stdout"}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, text)
	return exec.CommandContext(ctx, "espeak-ng", args...)
}
