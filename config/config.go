package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration loaded from defaults, an optional
// YAML file and the environment (in that order of precedence).
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AWS      AWSConfig      `yaml:"aws"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Verify   VerifyConfig   `yaml:"verify"`
	Teams    TeamsConfig    `yaml:"teams"`
	Bot      BotInfo        `yaml:"bot_info"`
	Socials  []Social       `yaml:"socials"`
	Ops      OpsConfig      `yaml:"ops"`
	Log      LogConfig      `yaml:"log"`
}

// DiscordConfig holds bot credentials and the guild the bot serves.
type DiscordConfig struct {
	Token         string `yaml:"-" env:"TOKEN"`
	ApplicationID string `yaml:"application_id" env:"APPLICATION_ID"`
	GuildID       string `yaml:"guild_id" env:"GUILD_ID"`
	DevGuildID    string `yaml:"dev_guild_id" env:"DEV_GUILD_ID"`
	// DevMode routes everything to DevGuildID and relaxes a few guards
	// (e.g. inviting yourself).
	DevMode bool `yaml:"dev_mode" env:"DEV_MODE"`
}

// Guild returns the guild id the bot should act on.
func (c DiscordConfig) Guild() string {
	if c.DevMode && c.DevGuildID != "" {
		return c.DevGuildID
	}
	return c.GuildID
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"` // if set, used as-is
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     string `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"-" env:"DB_PASSWORD"`
	DBName   string `yaml:"name" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
// If URL is set it is used as-is; otherwise it is built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis connection settings. An empty Addr disables the
// cross-instance event bridge.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"-" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// AWSConfig locates an optional CSV export of the registration roster.
type AWSConfig struct {
	Region          string `yaml:"region" env:"REGION"`
	AccessKeyID     string `yaml:"-" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"SECRET_ACCESS_KEY"`
	RosterBucket    string `yaml:"roster_bucket" env:"S3_ROSTER_BUCKET"`
	RosterKey       string `yaml:"roster_key" env:"S3_ROSTER_KEY"`
}

// SheetsConfig holds the service account and layout of the registration
// spreadsheet.
type SheetsConfig struct {
	ClientEmail     string   `yaml:"client_email" env:"CLIENT_EMAIL"`
	PrivateKey      string   `yaml:"-" env:"PRIVATE_KEY"`
	Scopes          []string `yaml:"scopes" env:"SCOPES" envSeparator:","`
	SpreadsheetID   string   `yaml:"spreadsheet_id" env:"SPREADSHEET_ID"`
	SheetName       string   `yaml:"sheet_name" env:"SHEET_NAME"`
	EmailColumn     string   `yaml:"email_column" env:"EMAIL_COLUMN"`
	FirstNameColumn string   `yaml:"first_name_column" env:"FIRST_NAME_COLUMN"`
	LastNameColumn  string   `yaml:"last_name_column" env:"LAST_NAME_COLUMN"`
	CacheSize       int      `yaml:"cache_size" env:"CACHE_SIZE"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds" env:"CACHE_TTL_SECONDS"`
}

// Enabled reports whether enough is configured to talk to the Sheets API.
func (c SheetsConfig) Enabled() bool {
	return c.ClientEmail != "" && c.PrivateKey != "" && c.SpreadsheetID != ""
}

// VerifyConfig controls /verify.
type VerifyConfig struct {
	RoleName        string `yaml:"verified_role_name" env:"ROLE_NAME"`
	ChannelID       string `yaml:"channel_id" env:"CHANNEL_ID"`
	RegistrationURL string `yaml:"registration_url" env:"REGISTRATION_URL"`
}

// TeamsConfig bounds team formation.
type TeamsConfig struct {
	MaxTeamSize      int      `yaml:"max_team_size" env:"MAX_SIZE"`
	MaxNameLength    int      `yaml:"max_name_length" env:"MAX_NAME_LENGTH"`
	TeamsPerCategory int      `yaml:"teams_per_category" env:"PER_CATEGORY"`
	CategoryBaseName string   `yaml:"category_base_name" env:"CATEGORY_BASE_NAME"`
	ModeratorRoles   []string `yaml:"moderator_roles" env:"MODERATOR_ROLES" envSeparator:","`
}

// BotInfo is the branding shown by informational commands.
type BotInfo struct {
	Name        string `yaml:"name" env:"NAME"`
	Description string `yaml:"description" env:"DESCRIPTION"`
	TitleURL    string `yaml:"title_url" env:"TITLE_URL"`
	Thumbnail   string `yaml:"thumbnail" env:"THUMBNAIL"`
	EventName   string `yaml:"event_name" env:"EVENT_NAME"`
	ScheduleURL string `yaml:"schedule_url" env:"SCHEDULE_URL"`
	InviteURL   string `yaml:"invite_url" env:"INVITE_URL"`
}

// Social is one link listed by /socials.
type Social struct {
	DisplayName string `yaml:"display_name"`
	Link        string `yaml:"link"`
}

// OpsConfig holds the health/metrics listener.
type OpsConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "hackbot",
			SSLMode: "disable",
		},
		AWS: AWSConfig{Region: "us-east-1"},
		Sheets: SheetsConfig{
			Scopes:          []string{"https://www.googleapis.com/auth/spreadsheets.readonly"},
			SheetName:       "Sheet1",
			EmailColumn:     "A",
			FirstNameColumn: "B",
			LastNameColumn:  "C",
			CacheSize:       512,
			CacheTTLSeconds: 60,
		},
		Teams: TeamsConfig{
			MaxTeamSize:      4,
			MaxNameLength:    32,
			TeamsPerCategory: 20,
			CategoryBaseName: "Teams",
		},
		Bot: BotInfo{
			Name:      "Hackathon Bot",
			EventName: "the hackathon",
		},
		Ops: OpsConfig{Addr: ":8080"},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from an optional .env file, an optional YAML file
// named by BOT_CONFIG_FILE and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := Default()
	if path := os.Getenv("BOT_CONFIG_FILE"); path != "" {
		if err := cfg.ParseFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ParseEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseFile overlays the YAML file at path onto c.
func (c *Config) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close() // nolint: errcheck

	if err := yaml.NewDecoder(f).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ParseEnv overlays environment variables onto c.
func (c *Config) ParseEnv() error {
	sections := []struct {
		prefix string
		target any
	}{
		{"DISCORD_", &c.Discord},
		{"", &c.Database},
		{"REDIS_", &c.Redis},
		{"AWS_", &c.AWS},
		{"SHEETS_", &c.Sheets},
		{"VERIFY_", &c.Verify},
		{"TEAMS_", &c.Teams},
		{"BOT_", &c.Bot},
		{"OPS_", &c.Ops},
		{"LOG_", &c.Log},
	}
	for _, s := range sections {
		if err := env.ParseWithOptions(s.target, env.Options{Prefix: s.prefix}); err != nil {
			return fmt.Errorf("parse environment variables: %w", err)
		}
	}
	// Private keys pasted into .env files usually carry literal "\n".
	c.Sheets.PrivateKey = strings.ReplaceAll(c.Sheets.PrivateKey, `\n`, "\n")
	return nil
}

// Validate checks the limits the workflows rely on.
func (c *Config) Validate() error {
	var errs []error
	if c.Teams.MaxTeamSize < 1 {
		errs = append(errs, errors.New("teams.max_team_size must be at least 1"))
	}
	if c.Teams.MaxNameLength < 1 {
		errs = append(errs, errors.New("teams.max_name_length must be at least 1"))
	}
	if c.Teams.TeamsPerCategory < 1 {
		errs = append(errs, errors.New("teams.teams_per_category must be at least 1"))
	}
	if c.Discord.DevMode && c.Discord.DevGuildID == "" {
		errs = append(errs, errors.New("discord.dev_guild_id is required in dev mode"))
	}
	for i, s := range c.Socials {
		if s.DisplayName == "" || s.Link == "" {
			errs = append(errs, fmt.Errorf("socials[%d] needs display_name and link", i))
		}
	}
	return errors.Join(errs...)
}

// Twitch returns the social entry pointing at the event stream, if any.
func (c *Config) Twitch() (Social, bool) {
	for _, s := range c.Socials {
		switch strings.ToLower(s.DisplayName) {
		case "twitch", "twitchtv", "twitch.tv":
			return s, true
		}
	}
	return Social{}, false
}
