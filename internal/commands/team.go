package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/winhacks/hackbot/internal/discord"
	"github.com/winhacks/hackbot/internal/teams"
	"github.com/winhacks/hackbot/pkg/response"
)

const dmHelpURL = "https://support.discord.com/hc/articles/217916488-Blocking-Privacy-Settings"

var teamDefinition = &discordgo.ApplicationCommand{
	Name:        "team",
	Description: "Create, join and manage your team.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "create",
			Description: "Create a new team.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Name of the team to create",
					Required:    true,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "invite",
			Description: "Invite a user to your team.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user to invite",
					Required:    true,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "info",
			Description: "See information about the team you're currently in.",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "leave",
			Description: "Leave your current team.",
		},
	},
}

func (h *Handlers) team(ctx context.Context, in *discord.Interaction) error {
	if !in.InGuild() {
		return in.Reply(ctx, notInGuild())
	}
	switch in.Subcommand() {
	case "create":
		return h.teamCreate(ctx, in)
	case "invite":
		return h.teamInvite(ctx, in)
	case "info":
		return h.teamInfo(ctx, in)
	case "leave":
		return h.teamLeave(ctx, in)
	}
	return fmt.Errorf("unknown team subcommand %q", in.Subcommand())
}

// teamFailure maps the preconditions shared by the team subcommands.
func (h *Handlers) teamFailure(err error) *response.Message {
	switch {
	case errors.Is(err, teams.ErrInvalidName):
		return invalidTeamName(h.cfg.Teams.MaxNameLength)
	case errors.Is(err, teams.ErrNameTaken):
		return nameTaken()
	case errors.Is(err, teams.ErrNotVerified):
		return notVerified(h.cfg.Verify.ChannelID)
	case errors.Is(err, teams.ErrAlreadyInTeam):
		return alreadyInTeam()
	case errors.Is(err, teams.ErrNotInTeam):
		return notInTeam()
	case errors.Is(err, teams.ErrTeamFull):
		return teamFull(h.cfg.Teams.MaxTeamSize)
	}
	return nil
}

func (h *Handlers) teamCreate(ctx context.Context, in *discord.Interaction) error {
	// Channel creation regularly takes longer than the acknowledgement window.
	if err := in.Defer(ctx, true); err != nil {
		return err
	}
	name, _ := in.StringOption("name")

	res, err := h.deps.Teams.Create(ctx, in.UserID(), name)
	if err != nil {
		if msg := h.teamFailure(err); msg != nil {
			return in.Reply(ctx, msg)
		}
		return err
	}
	return in.Reply(ctx, response.Success(response.Options{
		Message: fmt.Sprintf("Team %s has been created. Your channels are %s and %s. Invite up to %d others with `/team invite`.",
			res.Team.DisplayName,
			response.ChannelMention(res.Team.TextChannelID),
			response.ChannelMention(res.Team.VoiceChannelID),
			res.Remaining),
	}))
}

func (h *Handlers) teamInvite(ctx context.Context, in *discord.Interaction) error {
	invitee := in.UserOption("user")
	res, err := h.deps.Teams.Invite(ctx, teams.InviteRequest{
		InviterID:   in.UserID(),
		InviterName: in.DisplayName(),
		InviteeID:   invitee,
		ChannelID:   in.ChannelID,
	})
	mention := response.UserMention(invitee)
	switch {
	case errors.Is(err, teams.ErrSelfInvite):
		return in.Reply(ctx, response.Error(response.Options{
			Emote:   ":thinking:",
			Title:   "You're Already In Your Team",
			Message: "You tried to invite yourself to your own team. Sadly, cloning hasn't been invented yet.",
		}))
	case errors.Is(err, teams.ErrInviteeNotVerified):
		return in.Reply(ctx, response.Error(response.Options{
			Title:   "User Not Verified",
			Message: "You can only invite verified users to your team. Ask them to verify first with `/verify`.",
		}))
	case errors.Is(err, teams.ErrAlreadyMember):
		return in.Reply(ctx, response.Error(response.Options{
			Emote:   ":thinking:",
			Title:   "Member Already In Your Team",
			Message: mention + " is already a member of your team.",
		}))
	case errors.Is(err, teams.ErrInviteNotSaved):
		h.logger.Error("save invite", zap.Error(err))
		return in.Reply(ctx, response.Error(response.Options{
			Title:   "Failed to Invite",
			Message: fmt.Sprintf("Something went wrong while inviting %s. Please try again in about a minute.", mention),
		}))
	case errors.Is(err, teams.ErrDMUndeliverable):
		return in.Reply(ctx, response.Error(response.Options{
			Title: "Unable to DM",
			Message: fmt.Sprintf("It seems %s doesn't allow DMs from this server. Please ask them to %s and then re-invite them.",
				mention, response.Hyperlink("enable direct messages", dmHelpURL)),
		}))
	case err != nil:
		if msg := h.teamFailure(err); msg != nil {
			return in.Reply(ctx, msg)
		}
		return err
	}

	msg := teams.InviteSent(res.InviteeName)
	if !res.InTeamChannel {
		msg = msg.Private()
	}
	return in.Reply(ctx, msg)
}

func (h *Handlers) teamInfo(ctx context.Context, in *discord.Interaction) error {
	info, err := h.deps.Teams.Info(ctx, in.UserID())
	if err != nil {
		if msg := h.teamFailure(err); msg != nil {
			return in.Reply(ctx, msg)
		}
		return err
	}

	members := make([]string, 0, len(info.Members))
	for _, m := range info.Members {
		members = append(members, response.UserMention(m.DiscordID))
	}
	e := response.Embed()
	e.Title = info.Team.DisplayName
	e.Fields = []*discordgo.MessageEmbedField{
		{Name: "Team Members:", Value: strings.Join(members, "\n")},
		{Name: "Team Channels", Value: response.ChannelMention(info.Team.TextChannelID) + "\n" +
			response.ChannelMention(info.Team.VoiceChannelID)},
	}
	return in.Reply(ctx, response.Embeds(e))
}

func (h *Handlers) teamLeave(ctx context.Context, in *discord.Interaction) error {
	res, err := h.deps.Teams.Leave(ctx, in.UserID())
	if err != nil {
		if msg := h.teamFailure(err); msg != nil {
			return in.Reply(ctx, msg)
		}
		return err
	}
	return in.Reply(ctx, response.Success(response.Options{
		Message: fmt.Sprintf("You left Team %s successfully.", res.Team.DisplayName),
	}))
}
