package commands

import (
	"fmt"

	"github.com/winhacks/hackbot/pkg/response"
)

func notInGuild() *response.Message {
	return response.Error(response.Options{
		Title:   "Not in a Server",
		Message: "This command must be used inside a server.",
	})
}

func notVerified(verifyChannelID string) *response.Message {
	msg := "You must verify first with `/verify`."
	if verifyChannelID != "" {
		msg = fmt.Sprintf("You must verify first. Head over to %s to verify!", response.ChannelMention(verifyChannelID))
	}
	return response.Error(response.Options{Title: "Not Verified", Message: msg})
}

func invalidTeamName(maxLen int) *response.Message {
	return response.Error(response.Options{
		Title: "Invalid Team Name",
		Message: fmt.Sprintf("Team names must be at most %d characters, consist only of spaces, hyphens and "+
			"English alphanumeric characters, and not already be taken.", maxLen),
	})
}

func nameTaken() *response.Message {
	return response.Error(response.Options{Title: "Name Taken", Message: "That name is already taken, sorry."})
}

func alreadyInTeam() *response.Message {
	return response.Error(response.Options{
		Title:   "Already in a Team",
		Message: "You're already in a team. You can leave your team with `/team leave`.",
	})
}

func notInTeam() *response.Message {
	return response.Error(response.Options{
		Title:   "Not in a Team",
		Message: "You're not in a team yet. Ask your team leader for an invite, or create your own with `/team create`.",
	})
}

func teamFull(max int) *response.Message {
	return response.Error(response.Options{
		Title:   "Team Full",
		Message: fmt.Sprintf("Teams can only have up to %d members.", max),
	})
}
