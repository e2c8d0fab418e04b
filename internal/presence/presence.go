// Package presence keeps the bot's "Watching N verified hackers" status in
// step with the number of verified hackers.
package presence

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/winhacks/hackbot/internal/events"
)

// Counter reports how many hackers are verified.
type Counter interface {
	CountVerifiedHackers(ctx context.Context) (int, error)
}

// Setter changes the bot's presence.
type Setter interface {
	SetPresence(status, watching string) error
}

// Text is the activity shown for n verified hackers.
func Text(n int) string {
	switch n {
	case 0:
		return "nobody 😦"
	case 1:
		return "1 verified hacker"
	default:
		return fmt.Sprintf("%d verified hackers", n)
	}
}

// Updater refreshes the presence. Refreshes are serialized so a slow
// count cannot overwrite a newer one.
type Updater struct {
	counter Counter
	setter  Setter
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewUpdater creates an Updater.
func NewUpdater(counter Counter, setter Setter, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{counter: counter, setter: setter, logger: logger}
}

// Refresh recounts verified hackers and updates the presence.
func (u *Updater) Refresh(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	n, err := u.counter.CountVerifiedHackers(ctx)
	if err != nil {
		return fmt.Errorf("count verified hackers: %w", err)
	}
	if err := u.setter.SetPresence("online", Text(n)); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	u.logger.Debug("presence updated", zap.Int("verified", n))
	return nil
}

// Invisible hides the bot, used on shutdown.
func (u *Updater) Invisible() error {
	return u.setter.SetPresence("invisible", "")
}

// Subscribe refreshes the presence on every verification change.
func (u *Updater) Subscribe(bus *events.Bus) {
	h := func(ctx context.Context, e events.Event) {
		if err := u.Refresh(ctx); err != nil {
			u.logger.Warn("refresh presence", zap.String("kind", string(e.Kind)), zap.Error(err))
		}
	}
	bus.Subscribe(events.UserVerified, h)
	bus.Subscribe(events.UserUnverified, h)
}
