// Package events fans out verification changes to interested listeners,
// locally and, when Redis is configured, to other bot instances.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind names an event.
type Kind string

const (
	UserVerified   Kind = "user_verified"
	UserUnverified Kind = "user_unverified"
)

// Event is a verification change for one guild member.
type Event struct {
	Kind    Kind      `json:"kind"`
	GuildID string    `json:"guild_id"`
	UserID  string    `json:"user_id"`
	At      time.Time `json:"at"`
}

// Handler reacts to an event. Handlers run on their own goroutine.
type Handler func(ctx context.Context, e Event)

// Publisher forwards events beyond this process.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Bus dispatches events to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	remote   Publisher

	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: map[Kind][]Handler{}, logger: logger}
}

// Subscribe registers h for kind.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// SetRemote makes Publish also forward events to p.
func (b *Bus) SetRemote(p Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remote = p
}

// Publish delivers e locally and forwards it to the remote publisher, if any.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.Deliver(ctx, e)

	b.mu.RLock()
	remote := b.remote
	b.mu.RUnlock()
	if remote == nil {
		return
	}
	if err := remote.Publish(ctx, e); err != nil {
		b.logger.Warn("forward event", zap.String("kind", string(e.Kind)), zap.Error(err))
	}
}

// Deliver runs the local handlers for e without forwarding it.
func (b *Bus) Deliver(ctx context.Context, e Event) {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[e.Kind]...)
	b.mu.RUnlock()

	// Handlers outlive the interaction that triggered them.
	ctx = context.WithoutCancel(ctx)
	for _, h := range hs {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panic", zap.String("kind", string(e.Kind)), zap.Any("panic", r))
				}
			}()
			h(ctx, e)
		}(h)
	}
}

// Wait blocks until every running handler returns.
func (b *Bus) Wait() {
	b.wg.Wait()
}
