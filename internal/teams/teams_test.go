package teams

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winhacks/hackbot/internal/discord/discordtest"
	"github.com/winhacks/hackbot/internal/models"
	"github.com/winhacks/hackbot/internal/store/storetest"
)

func TestNaming(t *testing.T) {
	cases := []struct {
		raw   string
		clean string
		std   string
		valid bool
	}{
		{"Code Ninjas", "Code Ninjas", "code-ninjas", true},
		{"  Code   Ninjas ", "Code Ninjas", "code-ninjas", true},
		{"team-42", "team-42", "team-42", true},
		{"a--b", "a--b", "a--b", false},
		{"-lead", "-lead", "-lead", false},
		{"emoji 🚀", "emoji 🚀", "emoji-🚀", false},
		{"under_score", "under_score", "under_score", false},
		{"   ", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			clean := CleanName(tc.raw)
			assert.Equal(t, tc.clean, clean)
			assert.Equal(t, tc.std, StdName(clean))
			assert.Equal(t, tc.valid, ValidName(clean, 32))
		})
	}

	assert.False(t, ValidName(strings.Repeat("a", 33), 32))
	assert.True(t, ValidName(strings.Repeat("a", 32), 32))
}

func TestInviteButtonRoundTrip(t *testing.T) {
	b := InviteButton{Action: Accept, InviteeID: "123", TeamStdName: "code-ninjas"}
	assert.Equal(t, "invite;accept;123;code-ninjas", b.ID())

	got, err := ParseInviteButton(b.ID())
	require.NoError(t, err)
	assert.Equal(t, b, got)

	for _, bad := range []string{
		"", "invite", "invite;accept;123", "invite;accept;123;a;b",
		"other;accept;123;team", "invite;maybe;123;team", "invite;decline;;team", "invite;decline;123;",
	} {
		_, err := ParseInviteButton(bad)
		assert.ErrorIs(t, err, ErrMalformedInvite, bad)
	}
}

type fixture struct {
	svc      *Service
	store    *storetest.Store
	platform *discordtest.Platform
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	f := &fixture{store: storetest.New(), platform: discordtest.New("owner")}
	f.platform.Roles["Organizer"] = "role-organizer"
	f.svc = NewService(f.store, f.platform, Config{
		GuildID:          "guild",
		MaxTeamSize:      3,
		MaxNameLength:    32,
		TeamsPerCategory: 2,
		CategoryBaseName: "Teams",
		ModeratorRoles:   []string{"Organizer", "Missing"},
		EventName:        "WinHacks",
	}, nil)
	f.svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	for _, id := range users {
		f.verify(t, id)
	}
	return f
}

func (f *fixture) verify(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.store.UpsertHacker(context.Background(), &models.Hacker{
		DiscordID: id, FirstName: "User", LastName: id, Email: id + "@example.com",
	}))
	f.platform.Members[id] = "User " + id
}

func (f *fixture) create(t *testing.T, userID, name string) *models.Team {
	t.Helper()
	res, err := f.svc.Create(context.Background(), userID, name)
	require.NoError(t, err)
	return res.Team
}

func TestCreate(t *testing.T) {
	f := newFixture(t, "1")
	ctx := context.Background()

	res, err := f.svc.Create(ctx, "1", "  Code   Ninjas ")
	require.NoError(t, err)
	assert.Equal(t, "code-ninjas", res.Team.StdName)
	assert.Equal(t, "Code Ninjas", res.Team.DisplayName)
	assert.Equal(t, 2, res.Remaining)

	text := f.platform.Channels[res.Team.TextChannelID]
	voice := f.platform.Channels[res.Team.VoiceChannelID]
	require.NotNil(t, text)
	require.NotNil(t, voice)
	assert.Equal(t, "code-ninjas", text.Name)
	assert.Equal(t, "code-ninjas-voice", voice.Name)
	assert.Equal(t, res.Team.CategoryID, text.ParentID)
	assert.Equal(t, "Teams 1", f.platform.Channels[res.Team.CategoryID].Name)
	assert.True(t, f.platform.CanAccess(text.ID, "1"))
	assert.True(t, f.platform.CanAccess(voice.ID, "1"))

	ows := f.platform.Specs[text.ID].Overwrites
	require.Len(t, ows, 3)
	assert.Equal(t, "guild", ows[0].ID)
	assert.True(t, ows[0].Deny)
	assert.Equal(t, "role-organizer", ows[2].ID)

	h, err := f.store.GetHacker(ctx, "1")
	require.NoError(t, err)
	require.True(t, h.InTeam())
	assert.Equal(t, "code-ninjas", *h.TeamStdName)
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t, "1", "2")
	ctx := context.Background()
	f.create(t, "1", "Code Ninjas")

	_, err := f.svc.Create(ctx, "2", "Code  Ninjas")
	assert.ErrorIs(t, err, ErrNameTaken)
	_, err = f.svc.Create(ctx, "2", "code ninjas")
	assert.ErrorIs(t, err, ErrNameTaken)
	_, err = f.svc.Create(ctx, "2", "bad_name!")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = f.svc.Create(ctx, "1", "Second Team")
	assert.ErrorIs(t, err, ErrAlreadyInTeam)
	_, err = f.svc.Create(ctx, "stranger", "Third Team")
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestCreateFillsCategories(t *testing.T) {
	f := newFixture(t, "1", "2", "3")
	a := f.create(t, "1", "Alpha")
	b := f.create(t, "2", "Bravo")
	c := f.create(t, "3", "Charlie")

	assert.Equal(t, a.CategoryID, b.CategoryID)
	assert.NotEqual(t, a.CategoryID, c.CategoryID)
	assert.Equal(t, "Teams 2", f.platform.Channels[c.CategoryID].Name)

	cats, err := f.store.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, 2, cats[0].TeamCount)
	assert.Equal(t, 1, cats[1].TeamCount)
}

func TestCreateChannelFailureSavesNothing(t *testing.T) {
	f := newFixture(t, "1")
	ctx := context.Background()
	f.platform.Fail["CreateVoiceChannel"] = errors.New("discord down")

	_, err := f.svc.Create(ctx, "1", "Alpha")
	require.Error(t, err)

	team, err := f.store.GetTeam(ctx, "alpha")
	require.NoError(t, err)
	assert.Nil(t, team)
	h, err := f.store.GetHacker(ctx, "1")
	require.NoError(t, err)
	assert.False(t, h.InTeam())
}

func TestCreateRollsBackLink(t *testing.T) {
	f := newFixture(t, "1")
	ctx := context.Background()
	f.store.Fail("SetHackerTeam", errors.New("db down"))

	_, err := f.svc.Create(ctx, "1", "Alpha")
	require.Error(t, err)

	team, err := f.store.GetTeam(ctx, "alpha")
	require.NoError(t, err)
	assert.Nil(t, team)
}

func TestInvite(t *testing.T) {
	f := newFixture(t, "1", "2")
	ctx := context.Background()
	team := f.create(t, "1", "Alpha")

	res, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviterName: "Ada", InviteeID: "2", ChannelID: "elsewhere"})
	require.NoError(t, err)
	assert.False(t, res.InTeamChannel)
	assert.Equal(t, "User 2", res.InviteeName)

	require.Len(t, f.platform.DMs, 1)
	dm := f.platform.DMs[0]
	assert.Equal(t, "2", dm.UserID)
	require.Len(t, dm.Message.Components, 1)
	assert.Contains(t, dm.Message.Embeds[0].Description, "Team Alpha")
	assert.Len(t, f.platform.MessagesTo(team.TextChannelID), 1)

	inv, err := f.store.GetInvite(ctx, "2", "alpha")
	require.NoError(t, err)
	require.NotNil(t, inv)

	// Re-inviting refreshes the DM but keeps one invite.
	res, err = f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "2", ChannelID: team.TextChannelID})
	require.NoError(t, err)
	assert.True(t, res.InTeamChannel)
	assert.Len(t, f.platform.DMs, 2)
	assert.Len(t, f.platform.MessagesTo(team.TextChannelID), 1)
	invites, err := f.store.ListHackerInvites(ctx, "2")
	require.NoError(t, err)
	assert.Len(t, invites, 1)
}

func TestInviteRejections(t *testing.T) {
	f := newFixture(t, "1", "2", "3")
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "2"})
	assert.ErrorIs(t, err, ErrNotInTeam)

	f.create(t, "1", "Alpha")
	_, err = f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "1"})
	assert.ErrorIs(t, err, ErrSelfInvite)
	_, err = f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "stranger"})
	assert.ErrorIs(t, err, ErrInviteeNotVerified)

	f.platform.NoDM["3"] = true
	_, err = f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "3"})
	assert.ErrorIs(t, err, ErrDMUndeliverable)

	f.store.Fail("UpsertInvite", errors.New("db down"))
	_, err = f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "2"})
	assert.ErrorIs(t, err, ErrInviteNotSaved)
}

func TestInviteAlreadyMemberAndFull(t *testing.T) {
	f := newFixture(t, "1", "2", "3", "4")
	ctx := context.Background()
	f.create(t, "1", "Alpha")
	for _, id := range []string{"2", "3"} {
		_, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: id})
		require.NoError(t, err)
		_, err = f.svc.Respond(ctx, id, InviteButton{Action: Accept, InviteeID: id, TeamStdName: "alpha"}.ID())
		require.NoError(t, err)
	}

	dms := len(f.platform.DMs)
	_, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "4"})
	assert.ErrorIs(t, err, ErrTeamFull)
	inv, err := f.store.GetInvite(ctx, "4", "alpha")
	require.NoError(t, err)
	assert.Nil(t, inv)
	assert.Len(t, f.platform.DMs, dms)
	for _, dm := range f.platform.DMs {
		assert.NotEqual(t, "4", dm.UserID)
	}

	_, err = f.svc.Leave(ctx, "3")
	require.NoError(t, err)
	_, err = f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "2"})
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestAccept(t *testing.T) {
	f := newFixture(t, "1", "2")
	ctx := context.Background()
	team := f.create(t, "1", "Alpha")
	_, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "2"})
	require.NoError(t, err)

	res, err := f.svc.Respond(ctx, "2", InviteButton{Action: Accept, InviteeID: "2", TeamStdName: "alpha"}.ID())
	require.NoError(t, err)
	assert.Equal(t, Accept, res.Action)
	assert.Equal(t, "alpha", res.Team.StdName)
	assert.Equal(t, int64(1700000000), res.At.Unix())

	assert.True(t, f.platform.CanAccess(team.TextChannelID, "2"))
	assert.True(t, f.platform.CanAccess(team.VoiceChannelID, "2"))
	inv, err := f.store.GetInvite(ctx, "2", "alpha")
	require.NoError(t, err)
	assert.Nil(t, inv)

	members, err := f.store.ListTeamMembers(ctx, "alpha")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	msgs := f.platform.MessagesTo(team.TextChannelID)
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1].Embeds[0].Description, "<@2>")
	assert.Equal(t, []string{"alpha"}, f.store.Locks())
}

func TestAcceptLockFailureLinksNobody(t *testing.T) {
	f := newFixture(t, "1", "2")
	ctx := context.Background()
	team := f.create(t, "1", "Alpha")
	_, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "2"})
	require.NoError(t, err)
	f.store.Fail("LockTeam", errors.New("lock timeout"))

	_, err = f.svc.Respond(ctx, "2", InviteButton{Action: Accept, InviteeID: "2", TeamStdName: "alpha"}.ID())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTeamFull))

	h, err := f.store.GetHacker(ctx, "2")
	require.NoError(t, err)
	assert.False(t, h.InTeam())
	inv, err := f.store.GetInvite(ctx, "2", "alpha")
	require.NoError(t, err)
	assert.NotNil(t, inv)
	assert.False(t, f.platform.CanAccess(team.TextChannelID, "2"))
}

func TestAcceptRejections(t *testing.T) {
	f := newFixture(t, "1", "2", "3")
	ctx := context.Background()
	f.create(t, "1", "Alpha")
	_, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "2"})
	require.NoError(t, err)
	id := InviteButton{Action: Accept, InviteeID: "2", TeamStdName: "alpha"}.ID()

	_, err = f.svc.Respond(ctx, "2", "invite;accept;2")
	assert.ErrorIs(t, err, ErrMalformedInvite)
	_, err = f.svc.Respond(ctx, "stranger", id)
	assert.ErrorIs(t, err, ErrNotVerified)
	_, err = f.svc.Respond(ctx, "3", id)
	assert.ErrorIs(t, err, ErrWrongUser)

	f.create(t, "2", "Bravo")
	res, err := f.svc.Respond(ctx, "2", id)
	assert.ErrorIs(t, err, ErrAlreadyInTeam)
	require.NotNil(t, res)
	assert.Equal(t, "bravo", res.Team.StdName)
}

func TestAcceptTeamDeleted(t *testing.T) {
	f := newFixture(t, "1", "2")
	ctx := context.Background()
	f.create(t, "1", "Alpha")
	_, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "2"})
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteTeam(ctx, "alpha"))

	_, err = f.svc.Respond(ctx, "2", InviteButton{Action: Accept, InviteeID: "2", TeamStdName: "alpha"}.ID())
	assert.ErrorIs(t, err, ErrTeamDeleted)
}

func TestAcceptWhenFull(t *testing.T) {
	f := newFixture(t, "1", "2", "3", "4")
	ctx := context.Background()
	f.create(t, "1", "Alpha")
	for _, id := range []string{"2", "3", "4"} {
		_, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: id})
		require.NoError(t, err)
	}
	for _, id := range []string{"2", "3"} {
		_, err := f.svc.Respond(ctx, id, InviteButton{Action: Accept, InviteeID: id, TeamStdName: "alpha"}.ID())
		require.NoError(t, err)
	}

	_, err := f.svc.Respond(ctx, "4", InviteButton{Action: Accept, InviteeID: "4", TeamStdName: "alpha"}.ID())
	assert.ErrorIs(t, err, ErrTeamFull)

	h, err := f.store.GetHacker(ctx, "4")
	require.NoError(t, err)
	assert.False(t, h.InTeam())
	inv, err := f.store.GetInvite(ctx, "4", "alpha")
	require.NoError(t, err)
	assert.NotNil(t, inv)
}

func TestDecline(t *testing.T) {
	f := newFixture(t, "1", "2")
	ctx := context.Background()
	team := f.create(t, "1", "Alpha")
	_, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "2", ChannelID: team.TextChannelID})
	require.NoError(t, err)

	res, err := f.svc.Respond(ctx, "2", InviteButton{Action: Decline, InviteeID: "2", TeamStdName: "alpha"}.ID())
	require.NoError(t, err)
	assert.Equal(t, Decline, res.Action)

	inv, err := f.store.GetInvite(ctx, "2", "alpha")
	require.NoError(t, err)
	assert.Nil(t, inv)
	h, err := f.store.GetHacker(ctx, "2")
	require.NoError(t, err)
	assert.False(t, h.InTeam())

	msgs := f.platform.MessagesTo(team.TextChannelID)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Embeds[0].Description, "declined")
}

func TestLeave(t *testing.T) {
	f := newFixture(t, "1", "2")
	ctx := context.Background()
	team := f.create(t, "1", "Alpha")
	_, err := f.svc.Invite(ctx, InviteRequest{InviterID: "1", InviteeID: "2", ChannelID: team.TextChannelID})
	require.NoError(t, err)
	_, err = f.svc.Respond(ctx, "2", InviteButton{Action: Accept, InviteeID: "2", TeamStdName: "alpha"}.ID())
	require.NoError(t, err)

	res, err := f.svc.Leave(ctx, "2")
	require.NoError(t, err)
	assert.False(t, res.Abandoned)
	assert.False(t, f.platform.CanAccess(team.TextChannelID, "2"))
	assert.False(t, f.platform.CanAccess(team.VoiceChannelID, "2"))

	res, err = f.svc.Leave(ctx, "1")
	require.NoError(t, err)
	assert.True(t, res.Abandoned)

	msgs := f.platform.MessagesTo(team.TextChannelID)
	assert.Contains(t, msgs[len(msgs)-1].Embeds[0].Description, "abandoned")

	// The empty team and its channels are kept.
	kept, err := f.store.GetTeam(ctx, "alpha")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	_, err = f.svc.Leave(ctx, "1")
	assert.ErrorIs(t, err, ErrNotInTeam)
	assert.Equal(t, []string{"alpha", "alpha", "alpha"}, f.store.Locks())
}

func TestLeaveLockFailureKeepsMember(t *testing.T) {
	f := newFixture(t, "1")
	ctx := context.Background()
	team := f.create(t, "1", "Alpha")
	f.store.Fail("LockTeam", errors.New("lock timeout"))

	_, err := f.svc.Leave(ctx, "1")
	require.Error(t, err)

	h, err := f.store.GetHacker(ctx, "1")
	require.NoError(t, err)
	assert.True(t, h.InTeam())
	assert.True(t, f.platform.CanAccess(team.TextChannelID, "1"))
}

func TestLeaveRollsBackWhenRevokeFails(t *testing.T) {
	f := newFixture(t, "1")
	ctx := context.Background()
	f.create(t, "1", "Alpha")
	f.platform.Fail["RevokeMember"] = errors.New("discord down")

	_, err := f.svc.Leave(ctx, "1")
	require.Error(t, err)

	h, err := f.store.GetHacker(ctx, "1")
	require.NoError(t, err)
	assert.True(t, h.InTeam())
}

func TestLeaveNoticeFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, "1")
	ctx := context.Background()
	f.create(t, "1", "Alpha")
	f.platform.Fail["SendMessage"] = errors.New("discord down")

	res, err := f.svc.Leave(ctx, "1")
	require.NoError(t, err)
	assert.True(t, res.Abandoned)
}

func TestInfo(t *testing.T) {
	f := newFixture(t, "1", "2")
	ctx := context.Background()

	_, err := f.svc.Info(ctx, "1")
	assert.ErrorIs(t, err, ErrNotInTeam)

	f.create(t, "1", "Alpha")
	info, err := f.svc.Info(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", info.Team.DisplayName)
	require.Len(t, info.Members, 1)
	assert.Equal(t, "1", info.Members[0].DiscordID)
}
