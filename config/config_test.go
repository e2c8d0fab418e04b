package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
teams:
  max_team_size: 5
  moderator_roles: ["Mentor", "Organizer"]
bot_info:
  event_name: WinHacks
socials:
  - display_name: Twitch
    link: https://twitch.tv/example
  - display_name: Instagram
    link: https://instagram.com/example
`), 0o600))

	t.Setenv("TEAMS_MAX_SIZE", "3")
	t.Setenv("DISCORD_GUILD_ID", "42")
	t.Setenv("SHEETS_PRIVATE_KEY", `-----BEGIN-----\nabc\n-----END-----`)

	cfg := Default()
	require.NoError(t, cfg.ParseFile(path))
	require.NoError(t, cfg.ParseEnv())
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Teams.MaxTeamSize, "env wins over file")
	assert.Equal(t, []string{"Mentor", "Organizer"}, cfg.Teams.ModeratorRoles)
	assert.Equal(t, 32, cfg.Teams.MaxNameLength, "defaults survive")
	assert.Equal(t, "WinHacks", cfg.Bot.EventName)
	assert.Equal(t, "42", cfg.Discord.Guild())
	assert.Equal(t, "-----BEGIN-----\nabc\n-----END-----", cfg.Sheets.PrivateKey)
	require.Len(t, cfg.Socials, 2)

	tw, ok := cfg.Twitch()
	require.True(t, ok)
	assert.Equal(t, "https://twitch.tv/example", tw.Link)
}

func TestParseEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.NoError(t, Default().ParseFile(path))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Teams.MaxTeamSize = 0
	cfg.Discord.DevMode = true
	cfg.Socials = []Social{{DisplayName: "Twitch"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_team_size")
	assert.Contains(t, err.Error(), "dev_guild_id")
	assert.Contains(t, err.Error(), "socials[0]")
}

func TestGuildInDevMode(t *testing.T) {
	c := DiscordConfig{GuildID: "prod", DevGuildID: "dev"}
	assert.Equal(t, "prod", c.Guild())
	c.DevMode = true
	assert.Equal(t, "dev", c.Guild())
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "1", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:1/d?sslmode=disable", c.DSN())
	c.URL = "postgres://x"
	assert.Equal(t, "postgres://x", c.DSN())
}

func TestNoTwitch(t *testing.T) {
	cfg := Default()
	cfg.Socials = []Social{{DisplayName: "Instagram", Link: "x"}}
	_, ok := cfg.Twitch()
	assert.False(t, ok)
}
