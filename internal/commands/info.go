package commands

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/winhacks/hackbot/internal/discord"
	"github.com/winhacks/hackbot/pkg/response"
)

var aboutDefinition = &discordgo.ApplicationCommand{
	Name:        "about",
	Description: "See information about the bot and its developer.",
}

func (h *Handlers) about(ctx context.Context, in *discord.Interaction) error {
	bot := h.cfg.Bot
	e := response.Embed()
	e.Title = bot.Name
	e.Description = bot.Description
	if bot.TitleURL != "" {
		e.URL = bot.TitleURL
	} else if bot.Thumbnail != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: bot.Thumbnail}
	}
	return in.Reply(ctx, response.Embeds(e))
}

var applyDefinition = &discordgo.ApplicationCommand{
	Name:        "apply",
	Description: "Instructions for how to apply.",
}

func (h *Handlers) apply(ctx context.Context, in *discord.Interaction) error {
	v := h.cfg.Verify
	register := "To apply, first register"
	if v.RegistrationURL != "" {
		register += " " + response.Hyperlink("online", v.RegistrationURL)
	}
	verify := "use `/verify` to verify your Discord account"
	if v.ChannelID != "" {
		verify = fmt.Sprintf("head over to %s and %s", response.ChannelMention(v.ChannelID), verify)
	}

	e := response.Embed()
	e.Title = ":question: How to Apply"
	e.Description = fmt.Sprintf("Welcome to %s!\n\n%s. Then %s.", h.cfg.Bot.EventName, register, verify)
	return in.Reply(ctx, response.Embeds(e).Private())
}

var pingDefinition = &discordgo.ApplicationCommand{
	Name:        "ping",
	Description: "Ping. Pong?",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "detailed",
			Description: "Show extended statistics",
		},
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "ephemeral",
			Description: "When false, statistics will be visible to everyone",
		},
	},
}

// HostStats is the machine load shown by /ping detailed.
type HostStats struct {
	CPUPercent float64
	MemUsed    uint64
	MemTotal   uint64
}

func hostStats(ctx context.Context) (*HostStats, error) {
	pct, err := cpu.PercentWithContext(ctx, 250*time.Millisecond, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	s := &HostStats{MemUsed: vm.Used, MemTotal: vm.Total}
	if len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	return s, nil
}

func (h *Handlers) ping(ctx context.Context, in *discord.Interaction) error {
	e := response.Embed()
	e.Title = "Pong!"

	latency := "unknown"
	if h.deps.Gateway != nil {
		latency = fmt.Sprintf("%dms", h.deps.Gateway.HeartbeatLatency().Milliseconds())
	}
	e.Fields = []*discordgo.MessageEmbedField{
		{Name: "Ping", Value: latency, Inline: true},
		{Name: "Uptime", Value: formatUptime(time.Since(h.started)), Inline: true},
	}

	if detailed, _ := in.BoolOption("detailed"); detailed {
		stats, err := h.host(ctx)
		if err != nil {
			return err
		}
		e.Fields = append(e.Fields,
			&discordgo.MessageEmbedField{Name: "CPU Usage", Value: fmt.Sprintf("%.0f%%", math.Ceil(stats.CPUPercent)), Inline: true},
			&discordgo.MessageEmbedField{
				Name:   "Memory Usage",
				Value:  fmt.Sprintf("%s of %s", humanize.Bytes(stats.MemUsed), humanize.Bytes(stats.MemTotal)),
				Inline: true,
			},
		)
	}

	msg := response.Embeds(e).Private()
	if ephemeral, ok := in.BoolOption("ephemeral"); ok && !ephemeral {
		msg = msg.Public()
	}
	return in.Reply(ctx, msg)
}

// formatUptime renders d as "1d, 2h, 3m, 4s", leaving out zero units.
func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	units := []struct {
		size   time.Duration
		suffix string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	}
	var parts []string
	for _, u := range units {
		if n := d / u.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
			d -= n * u.size
		}
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, ", ")
}

var profileDefinition = &discordgo.ApplicationCommand{
	Name:        "profile",
	Description: "View hacker profile",
}

func (h *Handlers) profile(ctx context.Context, in *discord.Interaction) error {
	hacker, err := h.deps.Hackers.GetHacker(ctx, in.UserID())
	if err != nil {
		return err
	}
	verified, team := ":x:", "No Team"
	if hacker != nil && hacker.Verified {
		verified = ":white_check_mark:"
	}
	if hacker != nil && hacker.Team != nil {
		team = hacker.Team.DisplayName
	}

	lines := []string{
		response.Bold("Verified") + ": " + verified,
		response.Bold("Team") + ": " + team,
	}
	if hacker != nil && hacker.Team == nil {
		invites, err := h.deps.Hackers.ListHackerInvites(ctx, hacker.DiscordID)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(invites))
		for _, inv := range invites {
			if inv.Team != nil {
				names = append(names, inv.Team.DisplayName)
			}
		}
		if len(names) > 0 {
			lines = append(lines, response.Bold("Pending Invites")+": "+strings.Join(names, ", "))
		}
	}

	e := response.Embed()
	e.Title = "Profile of " + in.DisplayName()
	e.Description = strings.Join(lines, "\n")
	return in.Reply(ctx, response.Embeds(e))
}

func scheduleDefinition(event string) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "schedule",
		Description: fmt.Sprintf("See the %s schedule", event),
	}
}

func (h *Handlers) schedule(ctx context.Context, in *discord.Interaction) error {
	url := h.cfg.Bot.ScheduleURL
	if url == "" {
		return in.Reply(ctx, response.Error(response.Options{
			Emote:   ":face_with_monocle:",
			Title:   "No Schedule",
			Message: "The schedule hasn't been published yet. Check back soon.",
		}))
	}
	e := response.Embed()
	e.Title = ":calendar: Check Out Our Schedule!"
	e.URL = url
	e.Description = "Head to our website to see all of our events and workshops! " + url
	return in.Reply(ctx, response.Embeds(e))
}

func socialsDefinition(event string) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "socials",
		Description: fmt.Sprintf("View the %s socials.", event),
	}
}

func (h *Handlers) socials(ctx context.Context, in *discord.Interaction) error {
	if !in.InGuild() {
		return in.Reply(ctx, notInGuild())
	}
	if len(h.cfg.Socials) == 0 {
		return in.Reply(ctx, response.Error(response.Options{
			Emote:   ":face_with_monocle:",
			Title:   "No Socials",
			Message: "There are no socials. It's not you, it's me.",
		}))
	}

	lines := make([]string, 0, len(h.cfg.Socials))
	for _, s := range h.cfg.Socials {
		lines = append(lines, response.Hyperlink(s.DisplayName, s.Link))
	}
	e := response.Embed()
	e.Title = ":computer: Socials"
	e.Description = strings.Join(lines, "\n")
	if h.cfg.Bot.Thumbnail != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: h.cfg.Bot.Thumbnail}
	}
	return in.Reply(ctx, response.Embeds(e))
}

func streamDefinition(event string) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "stream",
		Description: fmt.Sprintf("Links the %s stream", event),
	}
}

func (h *Handlers) stream(ctx context.Context, in *discord.Interaction) error {
	twitch, ok := h.cfg.Twitch()
	if !ok {
		return in.Reply(ctx, response.Generic())
	}
	e := response.Embed()
	e.Title = ":red_circle: Join Us Live On Twitch!"
	e.Description = fmt.Sprintf("Join us live on our Twitch channel, which can be found at %s.", twitch.Link)
	return in.Reply(ctx, response.Embeds(e))
}
