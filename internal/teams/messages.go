package teams

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/winhacks/hackbot/internal/models"
	"github.com/winhacks/hackbot/pkg/response"
)

// InviteMessage is the DM offering invitee a place on team.
func InviteMessage(team *models.Team, inviteeID, inviterName, eventName string) *response.Message {
	e := response.Embed()
	e.Title = ":partying_face: You've Been Invited"
	e.Description = fmt.Sprintf("You've been invited to join Team %s for %s by %s.", team.DisplayName, eventName, inviterName)

	button := func(a InviteAction) string {
		return InviteButton{Action: a, InviteeID: inviteeID, TeamStdName: team.StdName}.ID()
	}
	m := response.Embeds(e)
	m.Components = []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Decline", Style: discordgo.SecondaryButton, CustomID: button(Decline)},
			discordgo.Button{Label: "Accept", Style: discordgo.PrimaryButton, CustomID: button(Accept)},
		}},
	}
	return m
}

// InviteSent confirms an invite to the team.
func InviteSent(inviteeName string) *response.Message {
	e := response.Embed()
	e.Title = ":white_check_mark: Invite Sent"
	e.Description = inviteeName + " has been invited."
	return response.Embeds(e)
}

// JoinNotice is posted in the team channel when someone accepts.
func JoinNotice(userID string) *response.Message {
	return response.Success(response.Options{
		Emote:   ":partying_face:",
		Title:   "Member Joined",
		Message: response.UserMention(userID) + " has joined the team!",
		Public:  true,
	})
}

// DeclineNotice is posted in the team channel when someone declines.
func DeclineNotice(userID string) *response.Message {
	return response.Success(response.Options{
		Emote:   ":frowning:",
		Title:   "Invite Declined",
		Message: response.UserMention(userID) + " declined the invite.",
		Public:  true,
	})
}

// LeaveNotice is posted in the team channel when a member leaves.
func LeaveNotice(userID string, abandoned bool) *response.Message {
	msg := response.UserMention(userID) + " has left the team."
	if abandoned {
		msg += " **This team is now abandoned.**"
	}
	return response.Success(response.Options{
		Emote:   ":frowning:",
		Title:   "Member Left",
		Message: msg,
		Public:  true,
	})
}

// Accepted replaces the invite DM after joining.
func Accepted(team *models.Team, at time.Time) *response.Message {
	return response.Success(response.Options{
		Emote:   ":partying_face:",
		Message: fmt.Sprintf("You joined %s %s.", team.DisplayName, response.Timestamp(at.Unix())),
		Public:  true,
	})
}

// Declined replaces the invite DM after declining.
func Declined(team *models.Team, at time.Time) *response.Message {
	return response.Success(response.Options{
		Emote:   ":partying_face:",
		Message: fmt.Sprintf("You declined to join %s %s.", team.DisplayName, response.Timestamp(at.Unix())),
		Public:  true,
	})
}
