package synthesizer

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// CommandOutput plays PCM chunks by piping them to an external audio
// player process. One process per utterance; Stop kills it.
type CommandOutput struct {
	name   string
	args   []string
	logger *zap.Logger

	mu     sync.Mutex
	active *exec.Cmd
}

var _ Output = (*CommandOutput)(nil)

// NewCommandOutput creates an output over an explicit player command.
// The command must accept 16-bit little-endian PCM at 24kHz on stdin.
func NewCommandOutput(name string, args []string, logger *zap.Logger) *CommandOutput {
	return &CommandOutput{name: name, args: args, logger: logger}
}

// NewDefaultOutput picks a player for the current platform.
func NewDefaultOutput(logger *zap.Logger) *CommandOutput {
	if runtime.GOOS == "darwin" {
		return NewCommandOutput("ffplay",
			[]string{"-f", "s16le", "-ar", "24000", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"},
			logger)
	}
	return NewCommandOutput("aplay",
		[]string{"-q", "-f", "S16_LE", "-r", "24000", "-c", "1"},
		logger)
}

// Play feeds chunks to the player's stdin until the stream closes or
// ctx is cancelled.
func (o *CommandOutput) Play(ctx context.Context, chunks <-chan []byte) error {
	cmd := exec.CommandContext(ctx, o.name, o.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}

	o.mu.Lock()
	o.active = cmd
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		if o.active == cmd {
			o.active = nil
		}
		o.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			stdin.Close()
			cmd.Wait()
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				stdin.Close()
				if err := cmd.Wait(); err != nil && ctx.Err() == nil {
					return fmt.Errorf("player exited with error: %w", err)
				}
				return nil
			}
			if _, err := stdin.Write(chunk); err != nil {
				stdin.Close()
				cmd.Wait()
				return fmt.Errorf("failed to write audio to player: %w", err)
			}
		}
	}
}

// Stop kills the active player process, if any.
func (o *CommandOutput) Stop() {
	o.mu.Lock()
	cmd := o.active
	o.active = nil
	o.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			o.logger.Debug("Failed to kill player process", zap.Error(err))
		}
	}
}

// DiscardOutput drains chunks without playing them. Useful on headless
// hosts where transcripts are the only observable surface.
type DiscardOutput struct{}

var _ Output = (*DiscardOutput)(nil)

// NewDiscardOutput creates an output that swallows audio.
func NewDiscardOutput() *DiscardOutput { return &DiscardOutput{} }

func (*DiscardOutput) Play(ctx context.Context, chunks <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-chunks:
			if !ok {
				return nil
			}
		}
	}
}

func (*DiscardOutput) Stop() {}
