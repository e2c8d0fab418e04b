package commands

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/winhacks/hackbot/config"
	"github.com/winhacks/hackbot/internal/models"
	"github.com/winhacks/hackbot/internal/teams"
	"github.com/winhacks/hackbot/internal/verification"
)

// Gateway reports the websocket heartbeat latency.
type Gateway interface {
	HeartbeatLatency() time.Duration
}

// HackerLookup reads a member's record and pending invites for /profile.
type HackerLookup interface {
	GetHacker(ctx context.Context, discordID string) (*models.Hacker, error)
	ListHackerInvites(ctx context.Context, discordID string) ([]*models.Invite, error)
}

// Deps are the services the handlers call into.
type Deps struct {
	Verification *verification.Service
	Teams        *teams.Service
	Hackers      HackerLookup
	Gateway      Gateway
}

// Handlers implements every slash command and button.
type Handlers struct {
	cfg     *config.Config
	deps    Deps
	logger  *zap.Logger
	started time.Time
	host    func(ctx context.Context) (*HostStats, error)
}

// NewHandlers creates the handlers. Uptime is measured from this call.
func NewHandlers(cfg *config.Config, deps Deps, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		started: time.Now(),
		host:    hostStats,
	}
}

// Registry returns every command and button the bot serves.
func (h *Handlers) Registry() *Registry {
	return &Registry{
		Commands: map[string]*Command{
			"about":    {Definition: aboutDefinition, Handle: h.about},
			"apply":    {Definition: applyDefinition, Handle: h.apply},
			"ping":     {Definition: pingDefinition, Handle: h.ping},
			"profile":  {Definition: profileDefinition, Handle: h.profile},
			"schedule": {Definition: scheduleDefinition(h.cfg.Bot.EventName), Handle: h.schedule},
			"socials":  {Definition: socialsDefinition(h.cfg.Bot.EventName), Handle: h.socials},
			"stream":   {Definition: streamDefinition(h.cfg.Bot.EventName), Handle: h.stream},
			"team":     {Definition: teamDefinition, Handle: h.team},
			"verify":   {Definition: verifyDefinition, Defer: DeferEphemeral, Handle: h.verify},
			"unverify": {Definition: unverifyDefinition, Defer: DeferEphemeral, Handle: h.unverify},
		},
		Buttons: map[string]HandlerFunc{
			teams.InvitePrefix: h.inviteButton,
		},
	}
}
