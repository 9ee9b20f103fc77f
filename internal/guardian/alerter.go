package guardian

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/questlog/mechanicum/internal/notify"
	"github.com/questlog/mechanicum/internal/types"
)

// Alerter decides which sweep findings the user actually sees. Two
// rules: only high and critical issues may surface, and each issue
// category alerts at most once per cooldown window. Everything else
// stays in the logs and the event feed.
type Alerter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	notifier notify.Notifier
	cooldown time.Duration
	logger   *zap.Logger
}

// NewAlerter creates an alerter that delivers through notifier with the
// given per-category cooldown.
func NewAlerter(notifier notify.Notifier, cooldown time.Duration, logger *zap.Logger) *Alerter {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{
		limiters: make(map[string]*rate.Limiter),
		notifier: notifier,
		cooldown: cooldown,
		logger:   logger,
	}
}

// Alert delivers one alert for the issue category if its priority and
// the cooldown window allow it. Returns true when the alert was shown.
func (a *Alerter) Alert(ctx context.Context, issue string, priority types.Priority, body string) bool {
	if priority.Rank() < types.PriorityHigh.Rank() {
		return false
	}

	a.mu.Lock()
	limiter, ok := a.limiters[issue]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(a.cooldown), 1)
		a.limiters[issue] = limiter
	}
	a.mu.Unlock()

	if !limiter.Allow() {
		a.logger.Debug("alert suppressed by cooldown",
			zap.String("issue", issue),
			zap.Duration("cooldown", a.cooldown))
		return false
	}

	if err := a.notifier.Show(ctx, issue, body, priority); err != nil {
		a.logger.Warn("failed to deliver alert",
			zap.String("issue", issue),
			zap.Error(err))
		return false
	}
	return true
}
