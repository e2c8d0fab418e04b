package discord_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winhacks/hackbot/internal/discord"
	"github.com/winhacks/hackbot/internal/discord/discordtest"
	"github.com/winhacks/hackbot/pkg/response"
)

func TestReplyWithoutDefer(t *testing.T) {
	r := &discordtest.Responder{}
	in := discord.NewInteraction(discordtest.Command("1", "g", "c", "about"), r)

	require.NoError(t, in.Reply(context.Background(), response.Success(response.Options{Message: "ok"})))
	require.Len(t, r.Responses, 1)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, r.Responses[0].Type)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.Responses[0].Data.Flags)
	assert.True(t, in.Replied())
}

func TestReplyAfterDeferEditsPlaceholder(t *testing.T) {
	ctx := context.Background()
	r := &discordtest.Responder{}
	in := discord.NewInteraction(discordtest.Command("1", "g", "c", "verify"), r)

	require.NoError(t, in.Defer(ctx, true))
	assert.False(t, in.Replied())
	require.NoError(t, in.Reply(ctx, response.Error(response.Options{Title: "Nope"})))

	require.Len(t, r.Responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, r.Responses[0].Type)
	require.Len(t, r.Edits, 1)
	embeds, ephemeral := r.Final()
	assert.True(t, ephemeral)
	assert.Equal(t, ":x: Nope", embeds[0].Title)
	assert.Equal(t, 1, r.Answers())
}

func TestSecondReplyIsRejected(t *testing.T) {
	ctx := context.Background()
	r := &discordtest.Responder{}
	in := discord.NewInteraction(discordtest.Command("1", "g", "c", "ping"), r)

	require.NoError(t, in.Reply(ctx, response.Generic()))
	err := in.Reply(ctx, response.Generic())
	require.ErrorIs(t, err, discord.ErrAlreadyReplied)
	require.ErrorIs(t, in.Update(ctx, response.Generic()), discord.ErrAlreadyReplied)
	assert.Equal(t, 1, r.Answers())
}

func TestFailedReplyCanBeRetried(t *testing.T) {
	ctx := context.Background()
	r := &discordtest.Responder{Err: errors.New("rate limited")}
	in := discord.NewInteraction(discordtest.Command("1", "g", "c", "ping"), r)

	require.Error(t, in.Reply(ctx, response.Generic()))
	assert.False(t, in.Replied())
	r.Err = nil
	require.NoError(t, in.Reply(ctx, response.Generic()))
}

func TestUpdateClearsComponents(t *testing.T) {
	r := &discordtest.Responder{}
	in := discord.NewInteraction(discordtest.Button("1", "invite;accept;1;team"), r)

	require.NoError(t, in.Update(context.Background(), response.Success(response.Options{})))
	require.Len(t, r.Responses, 1)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, r.Responses[0].Type)
	assert.NotNil(t, r.Responses[0].Data.Components)
	assert.Empty(t, r.Responses[0].Data.Components)
}

func TestOptions(t *testing.T) {
	i := discordtest.Command("7", "g", "c", "team",
		discordtest.Sub("invite", discordtest.User("user", "99")))
	in := discord.NewInteraction(i, &discordtest.Responder{})

	assert.Equal(t, "team", in.CommandName())
	assert.Equal(t, "invite", in.Subcommand())
	assert.Equal(t, "99", in.UserOption("user"))
	assert.Equal(t, "7", in.UserID())
	assert.True(t, in.InGuild())
	assert.Equal(t, "", in.CustomID())

	_, ok := in.StringOption("user")
	assert.False(t, ok)

	ping := discord.NewInteraction(discordtest.Command("7", "", "c", "ping",
		discordtest.Bool("detailed", true)), &discordtest.Responder{})
	detailed, ok := ping.BoolOption("detailed")
	assert.True(t, ok)
	assert.True(t, detailed)
	_, ok = ping.BoolOption("ephemeral")
	assert.False(t, ok)
	assert.False(t, ping.InGuild())
	assert.Equal(t, "7", ping.UserID())
	assert.Equal(t, "", ping.Subcommand())
}

func TestButtonCustomID(t *testing.T) {
	in := discord.NewInteraction(discordtest.Button("3", "invite;decline;3;team"), &discordtest.Responder{})
	assert.Equal(t, "invite;decline;3;team", in.CustomID())
	assert.Equal(t, "", in.CommandName())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Nick", discord.DisplayName(&discordgo.Member{Nick: "Nick", User: &discordgo.User{Username: "u"}}))
	assert.Equal(t, "Global", discord.DisplayName(&discordgo.Member{User: &discordgo.User{Username: "u", GlobalName: "Global"}}))
	assert.Equal(t, "u", discord.DisplayName(&discordgo.Member{User: &discordgo.User{Username: "u"}}))
	assert.Equal(t, "", discord.DisplayName(nil))
}
