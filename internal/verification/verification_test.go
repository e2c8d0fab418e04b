package verification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winhacks/hackbot/internal/discord/discordtest"
	"github.com/winhacks/hackbot/internal/events"
	"github.com/winhacks/hackbot/internal/models"
	"github.com/winhacks/hackbot/internal/roster"
	"github.com/winhacks/hackbot/internal/store"
	"github.com/winhacks/hackbot/internal/store/storetest"
)

type fixture struct {
	svc      *Service
	store    *storetest.Store
	platform *discordtest.Platform
	bus      *events.Bus
	events   chan events.Event
	roster   map[string]roster.Registrant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    storetest.New(),
		platform: discordtest.New("owner"),
		bus:      events.NewBus(nil),
		events:   make(chan events.Event, 16),
		roster: map[string]roster.Registrant{
			"ada@example.com":  {FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
			"bob@example.com":  {FirstName: "Bob", LastName: "Builder", Email: "bob@example.com"},
			"long@example.com": {FirstName: strings.Repeat("A", 20), LastName: strings.Repeat("B", 12), Email: "long@example.com"},
		},
	}
	f.platform.Roles["Verified"] = "role-verified"
	lookup := roster.LookupFunc(func(ctx context.Context, email string) (*roster.Registrant, error) {
		if r, ok := f.roster[email]; ok {
			return &r, nil
		}
		return nil, nil
	})
	record := func(ctx context.Context, e events.Event) { f.events <- e }
	f.bus.Subscribe(events.UserVerified, record)
	f.bus.Subscribe(events.UserUnverified, record)
	f.svc = NewService(f.store, lookup, f.platform, f.bus, Config{GuildID: "guild", RoleName: "Verified"}, nil)
	return f
}

func (f *fixture) nextEvent(t *testing.T) events.Event {
	t.Helper()
	f.bus.Wait()
	select {
	case e := <-f.events:
		return e
	default:
		t.Fatal("no event published")
		return events.Event{}
	}
}

func TestVerifySuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Verify(ctx, "1", "  Ada@Example.com ")
	require.NoError(t, err)
	assert.False(t, res.IsOwner)
	assert.Equal(t, "ada@example.com", res.Hacker.Email)

	h, err := f.store.GetHacker(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.True(t, h.Verified)
	assert.True(t, f.platform.HasRole("1", "role-verified"))
	assert.Equal(t, "Ada Lovelace", f.platform.Nicks["1"])

	e := f.nextEvent(t)
	assert.Equal(t, events.UserVerified, e.Kind)
	assert.Equal(t, "1", e.UserID)
}

func TestVerifyTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Verify(ctx, "1", "ada@example.com")
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, "1", "ada@example.com")
	require.ErrorIs(t, err, ErrAlreadyVerified)

	_, err = f.svc.Verify(ctx, "1", "bob@example.com")
	require.ErrorIs(t, err, ErrVerifiedWithOtherEmail)

	_, err = f.svc.Verify(ctx, "2", "ada@example.com")
	require.ErrorIs(t, err, ErrEmailInUse)

	n, err := f.store.CountVerifiedHackers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVerifyRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, "1", "not-an-email")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = f.svc.Verify(ctx, "1", "nobody@example.com")
	require.ErrorIs(t, err, ErrNotRegistered)

	_, err = f.svc.Verify(ctx, "1", "long@example.com")
	require.ErrorIs(t, err, ErrNameTooLong)

	h, err := f.store.GetHacker(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.False(t, f.platform.HasRole("1", "role-verified"))
}

func TestVerifyMissingRoleFails(t *testing.T) {
	f := newFixture(t)
	delete(f.platform.Roles, "Verified")

	_, err := f.svc.Verify(context.Background(), "1", "ada@example.com")
	require.Error(t, err)
	for _, sentinel := range []error{ErrInvalidEmail, ErrNotRegistered, ErrAlreadyVerified} {
		assert.False(t, errors.Is(err, sentinel))
	}
	h, err := f.store.GetHacker(context.Background(), "1")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestVerifyRevokesRoleWhenSaveFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.Fail("UpsertHacker", store.ErrConflict)
	_, err := f.svc.Verify(ctx, "1", "ada@example.com")
	require.ErrorIs(t, err, ErrEmailInUse)
	assert.False(t, f.platform.HasRole("1", "role-verified"))

	f.store.Fail("UpsertHacker", errors.New("connection reset"))
	f.platform.Fail["RemoveRole"] = errors.New("discord unavailable")
	_, err = f.svc.Verify(ctx, "1", "ada@example.com")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmailInUse))
	assert.True(t, f.platform.HasRole("1", "role-verified"))

	h, err := f.store.GetHacker(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestVerifyOwnerIsNotRenamed(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Verify(context.Background(), "owner", "ada@example.com")
	require.NoError(t, err)
	assert.True(t, res.IsOwner)
	assert.Empty(t, f.platform.Renamed)
}

func TestVerifyUnverifyRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, "1", "ada@example.com")
	require.NoError(t, err)
	_, err = f.svc.Unverify(ctx, "1")
	require.NoError(t, err)

	h, err := f.store.GetHacker(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.False(t, h.Verified)
	assert.False(t, f.platform.HasRole("1", "role-verified"))
	_, renamed := f.platform.Nicks["1"]
	assert.False(t, renamed)

	// Someone else may now claim the email, but here the same member does.
	_, err = f.svc.Verify(ctx, "1", "ada@example.com")
	require.NoError(t, err)
	h, err = f.store.GetHacker(ctx, "1")
	require.NoError(t, err)
	assert.True(t, h.Verified)
}

func TestUnverifyRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Unverify(ctx, "1")
	require.ErrorIs(t, err, ErrNotVerified)

	_, err = f.svc.Verify(ctx, "1", "ada@example.com")
	require.NoError(t, err)
	_, err = f.store.CreateCategory(ctx, "cat")
	require.NoError(t, err)
	require.NoError(t, f.store.CreateTeam(ctx, &models.Team{StdName: "alpha", CategoryID: "cat"}))
	team := "alpha"
	require.NoError(t, f.store.SetHackerTeam(ctx, "1", &team))

	_, err = f.svc.Unverify(ctx, "1")
	require.ErrorIs(t, err, ErrInTeam)
}

func TestForget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Forget(ctx, "stranger"))

	_, err := f.svc.Verify(ctx, "1", "ada@example.com")
	require.NoError(t, err)
	f.nextEvent(t)

	require.NoError(t, f.svc.Forget(ctx, "1"))
	h, err := f.store.GetHacker(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Equal(t, events.UserUnverified, f.nextEvent(t).Kind)
}
