package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/winhacks/hackbot/internal/discord"
	"github.com/winhacks/hackbot/internal/teams"
	"github.com/winhacks/hackbot/pkg/response"
)

// inviteButton answers Accept/Decline on an invite DM. Outcomes that settle
// the invite replace the DM so its buttons disappear; the rest reply
// privately and leave the invite usable.
func (h *Handlers) inviteButton(ctx context.Context, in *discord.Interaction) error {
	res, err := h.deps.Teams.Respond(ctx, in.UserID(), in.CustomID())
	switch {
	case errors.Is(err, teams.ErrMalformedInvite):
		return in.Update(ctx, response.Error(response.Options{
			Title:   "Oops!",
			Message: "This invite is malformed. Ask for a new invite.",
		}))
	case errors.Is(err, teams.ErrNotVerified):
		server := h.cfg.Bot.EventName + " Discord server"
		if url := h.cfg.Bot.InviteURL; url != "" {
			server = response.Hyperlink(server, url)
		}
		return in.Reply(ctx, response.Error(response.Options{
			Title:   "Not Verified",
			Message: fmt.Sprintf("Only verified users can join teams. You need to join the %s and use `/verify your-email`.", server),
		}))
	case errors.Is(err, teams.ErrWrongUser):
		return in.Reply(ctx, response.Error(response.Options{
			Title:   "Not Your Invite",
			Message: "This invite was sent to someone else.",
		}))
	case errors.Is(err, teams.ErrAlreadyInTeam):
		msg := "You're already a member of a team."
		if res != nil && res.Team != nil {
			msg = fmt.Sprintf("You're already a member of %s.", res.Team.DisplayName)
		}
		return in.Reply(ctx, response.Error(response.Options{Title: "Already on a team", Message: msg}))
	case errors.Is(err, teams.ErrTeamFull):
		return in.Reply(ctx, teamFull(h.cfg.Teams.MaxTeamSize))
	case errors.Is(err, teams.ErrTeamDeleted):
		return in.Update(ctx, response.Error(response.Options{
			Title:   "Team Deleted",
			Message: "It appears the team this invite is for was deleted.",
		}))
	case err != nil:
		return err
	}

	if res.Action == teams.Accept {
		return in.Update(ctx, teams.Accepted(res.Team, res.At))
	}
	return in.Update(ctx, teams.Declined(res.Team, res.At))
}
