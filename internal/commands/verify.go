package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/winhacks/hackbot/internal/discord"
	"github.com/winhacks/hackbot/internal/verification"
	"github.com/winhacks/hackbot/pkg/response"
)

var verifyDefinition = &discordgo.ApplicationCommand{
	Name:        "verify",
	Description: "Verify yourself.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "email",
			Description: "The email you registered with",
			Required:    true,
		},
	},
}

func (h *Handlers) verify(ctx context.Context, in *discord.Interaction) error {
	if !in.InGuild() {
		return in.Reply(ctx, notInGuild())
	}
	email, _ := in.StringOption("email")

	res, err := h.deps.Verification.Verify(ctx, in.UserID(), email)
	if err != nil {
		if msg := h.verifyFailure(err); msg != nil {
			return in.Reply(ctx, msg)
		}
		return err
	}

	msg := "You are now verified."
	if res.IsOwner {
		msg = "You are now verified. As the server owner, you'll need to change your nickname to your real name manually."
	}
	return in.Reply(ctx, response.Success(response.Options{Message: msg}))
}

func (h *Handlers) verifyFailure(err error) *response.Message {
	switch {
	case errors.Is(err, verification.ErrInvalidEmail):
		return response.Error(response.Options{
			Title:   "Invalid Email",
			Message: "That doesn't appear to be a valid email address.",
		})
	case errors.Is(err, verification.ErrVerifiedWithOtherEmail):
		return response.Error(response.Options{
			Emote: ":confused:",
			Title: "Already Verified With Other Email",
			Message: "You already verified with another email address. If you want to change your email, " +
				"use `/unverify` first, then `/verify` again with the new email.",
		})
	case errors.Is(err, verification.ErrAlreadyVerified):
		return response.Error(response.Options{
			Emote:   ":fire:",
			Title:   "Already Verified",
			Message: "You're already verified, no need to verify again.",
		})
	case errors.Is(err, verification.ErrEmailInUse):
		return response.Error(response.Options{
			Emote: ":fire:",
			Title: "Email Already Used",
			Message: "It looks like someone is already registered with that email. " +
				"If this is a mistake, please reach out to an organizer.",
		})
	case errors.Is(err, verification.ErrNotRegistered):
		msg := "I couldn't verify that email address."
		if url := h.cfg.Verify.RegistrationURL; url != "" {
			msg += " If you haven't registered, you can " + response.Hyperlink("register here", url) + "."
		}
		return response.Error(response.Options{Title: "Verification Failed", Message: msg})
	case errors.Is(err, verification.ErrNameTooLong):
		return response.Error(response.Options{
			Message: fmt.Sprintf("Discord requires your name be %d characters or less. "+
				"Please re-register with a shorter version of your real name and try again.", verification.MaxNicknameLength),
		})
	}
	return nil
}

var unverifyDefinition = &discordgo.ApplicationCommand{
	Name:        "unverify",
	Description: "Unverify yourself. You'll need to /verify again.",
}

func (h *Handlers) unverify(ctx context.Context, in *discord.Interaction) error {
	if !in.InGuild() {
		return in.Reply(ctx, notInGuild())
	}

	_, err := h.deps.Verification.Unverify(ctx, in.UserID())
	switch {
	case errors.Is(err, verification.ErrNotVerified):
		return in.Reply(ctx, response.Error(response.Options{
			Title:   "Not Verified",
			Message: "You're not verified yet. Did you mean to use `/verify`?",
		}))
	case errors.Is(err, verification.ErrInTeam):
		return in.Reply(ctx, response.Error(response.Options{
			Title:   "Already In A Team",
			Message: "You cannot unverify while in a team. Use `/team leave` first.",
		}))
	case err != nil:
		return err
	}
	return in.Reply(ctx, response.Success(response.Options{Message: "You're no longer verified."}))
}
