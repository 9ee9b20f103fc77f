// Package notify delivers user-facing alerts raised by the guardian.
// The engine only ever talks to the Notifier interface; wiring decides
// whether alerts reach a terminal, a log, or nothing at all.
package notify

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/types"
)

// Notifier shows an alert to the user.
type Notifier interface {
	Show(ctx context.Context, title, body string, priority types.Priority) error
}

// LogNotifier writes alerts to a structured log. It is the default
// delivery channel for headless runs.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a Notifier backed by the given logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Show(_ context.Context, title, body string, priority types.Priority) error {
	n.logger.Warn("guardian alert",
		zap.String("title", title),
		zap.String("body", body),
		zap.String("priority", string(priority)))
	return nil
}

// NopNotifier drops every alert. Used in tests and in sandboxed runs,
// where nothing may escape the simulation.
type NopNotifier struct{}

func (NopNotifier) Show(context.Context, string, string, types.Priority) error {
	return nil
}

// ConsoleNotifier prints alerts to the terminal. Used when the engine
// runs in the foreground and the operator is watching.
type ConsoleNotifier struct{}

func (ConsoleNotifier) Show(_ context.Context, title, body string, priority types.Priority) error {
	glyph := color.New(color.FgYellow).Sprint("⚠")
	if priority == types.PriorityCritical {
		glyph = color.New(color.FgRed, color.Bold).Sprint("⚠")
	}
	fmt.Printf("\n%s %s\n  %s\n\n", glyph, color.New(color.Bold).Sprint(title), body)
	return nil
}

// Scheduler mirrors the platform notification scheduler that mission
// reminders ultimately land on. The engine computes what should be
// scheduled; the embedding application supplies the platform binding.
type Scheduler interface {
	Schedule(ctx context.Context, id int32, title, body string) error
	Cancel(ctx context.Context, id int32) error
}

// LogScheduler records scheduling decisions in a structured log. It is
// the default binding for headless runs, where no platform scheduler
// exists.
type LogScheduler struct {
	logger *zap.Logger
}

// NewLogScheduler returns a Scheduler backed by the given logger.
func NewLogScheduler(logger *zap.Logger) *LogScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogScheduler{logger: logger}
}

func (s *LogScheduler) Schedule(_ context.Context, id int32, title, body string) error {
	s.logger.Info("schedule notification",
		zap.Int32("id", id),
		zap.String("title", title),
		zap.String("body", body))
	return nil
}

func (s *LogScheduler) Cancel(_ context.Context, id int32) error {
	s.logger.Info("cancel notification", zap.Int32("id", id))
	return nil
}
