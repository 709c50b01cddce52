// Package notify delivers one-shot user-visible messages.
package notify

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// Notifier displays a one-shot user-visible message.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Log writes notifications to the log. Used as the fallback when no desktop
// notifier is configured.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a log-backed notifier.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "notifier").Logger()}
}

// Notify logs the message at warn level so it stands out from routine ticks.
func (n *Log) Notify(ctx context.Context, title, body string) error {
	n.logger.Warn().Str("title", title).Msg(body)
	return nil
}

// Command shells out to a desktop notification tool, e.g.
// notify-send. Title and body are appended to the configured argv.
type Command struct {
	argv   []string
	logger zerolog.Logger
}

// NewCommand creates a command-backed notifier from argv.
func NewCommand(argv []string, logger zerolog.Logger) (*Command, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("notify: empty command")
	}

	return &Command{
		argv:   argv,
		logger: logger.With().Str("component", "notifier").Logger(),
	}, nil
}

// Notify runs the configured command with title and body appended.
func (n *Command) Notify(ctx context.Context, title, body string) error {
	args := append(append([]string{}, n.argv[1:]...), title, body)

	cmd := exec.CommandContext(ctx, n.argv[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify command failed: %w (output: %s)", err, out)
	}

	n.logger.Debug().Str("title", title).Msg("Notification delivered")

	return nil
}
