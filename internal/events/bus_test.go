package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func TestPublishRunsMatchingHandlers(t *testing.T) {
	bus := NewBus(nil)
	var verified, unverified atomic.Int32
	bus.Subscribe(UserVerified, func(ctx context.Context, e Event) { verified.Add(1) })
	bus.Subscribe(UserVerified, func(ctx context.Context, e Event) { verified.Add(1) })
	bus.Subscribe(UserUnverified, func(ctx context.Context, e Event) { unverified.Add(1) })

	bus.Publish(context.Background(), Event{Kind: UserVerified, UserID: "1"})
	bus.Wait()

	assert.EqualValues(t, 2, verified.Load())
	assert.EqualValues(t, 0, unverified.Load())
}

func TestHandlersSurviveCancelledContext(t *testing.T) {
	bus := NewBus(nil)
	var got error
	bus.Subscribe(UserVerified, func(ctx context.Context, e Event) { got = ctx.Err() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, Event{Kind: UserVerified})
	bus.Wait()
	assert.NoError(t, got)
}

func TestHandlerPanicIsContained(t *testing.T) {
	bus := NewBus(nil)
	var ran atomic.Bool
	bus.Subscribe(UserUnverified, func(ctx context.Context, e Event) { panic("boom") })
	bus.Subscribe(UserUnverified, func(ctx context.Context, e Event) { ran.Store(true) })

	bus.Publish(context.Background(), Event{Kind: UserUnverified})
	bus.Wait()
	assert.True(t, ran.Load())
}

func TestPublishForwardsButDeliverDoesNot(t *testing.T) {
	bus := NewBus(nil)
	remote := &recordingPublisher{err: errors.New("redis down")}
	bus.SetRemote(remote)

	bus.Publish(context.Background(), Event{Kind: UserVerified, UserID: "1"})
	bus.Deliver(context.Background(), Event{Kind: UserVerified, UserID: "2"})
	bus.Wait()

	require.Len(t, remote.events, 1)
	assert.Equal(t, "1", remote.events[0].UserID)
	assert.False(t, remote.events[0].At.IsZero())
}

func TestBridgeDecodeSkipsOwnEvents(t *testing.T) {
	b := NewRedisBridge(nil, nil)
	own, err := json.Marshal(redisPayload{Origin: b.origin, Event: Event{Kind: UserVerified}})
	require.NoError(t, err)
	other, err := json.Marshal(redisPayload{Origin: "elsewhere", Event: Event{Kind: UserUnverified, UserID: "9"}})
	require.NoError(t, err)

	_, remote := b.decode(string(own))
	assert.False(t, remote)

	e, remote := b.decode(string(other))
	assert.True(t, remote)
	assert.Equal(t, UserUnverified, e.Kind)
	assert.Equal(t, "9", e.UserID)

	_, remote = b.decode("not json")
	assert.False(t, remote)
}
