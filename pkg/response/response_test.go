package response

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorDefaults(t *testing.T) {
	m := Generic()
	assert.True(t, m.Ephemeral)
	assert.Equal(t, ":x: Error", m.Title())
	assert.NotEmpty(t, m.Text())
	assert.Equal(t, discordgo.MessageFlagsEphemeral, m.Flags())
}

func TestTripleOverrides(t *testing.T) {
	m := Error(Options{Emote: ":fire:", Title: "Already Verified", Message: "no need", Public: true})
	assert.False(t, m.Ephemeral)
	assert.Equal(t, ":fire: Already Verified", m.Title())
	assert.Equal(t, "no need", m.Text())
	assert.Equal(t, discordgo.MessageFlags(0), m.Flags())
}

func TestSuccessDefaults(t *testing.T) {
	m := Success(Options{Message: "done"})
	assert.True(t, m.Ephemeral)
	assert.Equal(t, ":white_check_mark: Success", m.Title())
}

func TestPrivatePublicCopy(t *testing.T) {
	base := Embeds(Embed())
	priv := base.Private()
	assert.False(t, base.Ephemeral)
	assert.True(t, priv.Ephemeral)
	assert.False(t, priv.Public().Ephemeral)
}

func TestEditClearsComponents(t *testing.T) {
	edit := Success(Options{}).Edit()
	require.NotNil(t, edit.Components)
	assert.Empty(t, *edit.Components)
	require.NotNil(t, edit.Embeds)
	assert.Len(t, *edit.Embeds, 1)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "<@1>", UserMention("1"))
	assert.Equal(t, "<#2>", ChannelMention("2"))
	assert.Equal(t, "[a](b)", Hyperlink("a", "b"))
	assert.Equal(t, "**x**", Bold("x"))
	assert.Equal(t, "<t:5>", Timestamp(5))
}
