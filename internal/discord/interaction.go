package discord

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/winhacks/hackbot/pkg/response"
)

// ErrAlreadyReplied is returned when a handler tries to answer an
// interaction a second time.
var ErrAlreadyReplied = errors.New("discord: interaction already replied")

// Responder is the part of *discordgo.Session used to answer interactions.
type Responder interface {
	InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, e *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type ackState int

const (
	unacked ackState = iota
	deferred
	replied
)

// Interaction is an incoming slash command or button press. It tracks what
// has been sent so that Reply always lands as the single final answer:
// a fresh response, or an edit of a deferred one.
type Interaction struct {
	*discordgo.Interaction

	r     Responder
	mu    sync.Mutex
	state ackState
}

// NewInteraction wraps i.
func NewInteraction(i *discordgo.Interaction, r Responder) *Interaction {
	return &Interaction{Interaction: i, r: r}
}

// Defer acknowledges the interaction with a "thinking" placeholder. The
// final reply inherits the placeholder's visibility.
func (in *Interaction) Defer(ctx context.Context, ephemeral bool) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state != unacked {
		return nil
	}
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := in.r.InteractionRespond(in.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	in.state = deferred
	return nil
}

// Reply sends the final answer.
func (in *Interaction) Reply(ctx context.Context, msg *response.Message) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	switch in.state {
	case replied:
		return ErrAlreadyReplied
	case deferred:
		if _, err := in.r.InteractionResponseEdit(in.Interaction, msg.Edit(), discordgo.WithContext(ctx)); err != nil {
			return err
		}
	default:
		err := in.r.InteractionRespond(in.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: msg.Data(),
		}, discordgo.WithContext(ctx))
		if err != nil {
			return err
		}
	}
	in.state = replied
	return nil
}

// Update replaces the message a button is attached to. It only applies to
// component interactions that have not been answered.
func (in *Interaction) Update(ctx context.Context, msg *response.Message) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state == replied {
		return ErrAlreadyReplied
	}
	data := msg.Data()
	if data.Components == nil {
		data.Components = []discordgo.MessageComponent{}
	}
	err := in.r.InteractionRespond(in.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	in.state = replied
	return nil
}

// Replied reports whether a final answer has been sent.
func (in *Interaction) Replied() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state == replied
}

// UserID is the invoking user, in a guild or a DM.
func (in *Interaction) UserID() string {
	if in.Member != nil && in.Member.User != nil {
		return in.Member.User.ID
	}
	if in.User != nil {
		return in.User.ID
	}
	return ""
}

// InGuild reports whether the interaction happened inside a server.
func (in *Interaction) InGuild() bool {
	return in.GuildID != ""
}

// DisplayName is the invoking member's name in the guild, or their user
// name outside one.
func (in *Interaction) DisplayName() string {
	if in.Member != nil {
		return DisplayName(in.Member)
	}
	if in.User != nil {
		if in.User.GlobalName != "" {
			return in.User.GlobalName
		}
		return in.User.Username
	}
	return ""
}

// CommandName is the slash command's name, or "" for other interactions.
func (in *Interaction) CommandName() string {
	if in.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	return in.ApplicationCommandData().Name
}

// CustomID is the pressed button's id, or "" for other interactions.
func (in *Interaction) CustomID() string {
	if in.Type != discordgo.InteractionMessageComponent {
		return ""
	}
	return in.MessageComponentData().CustomID
}

// Subcommand returns the invoked subcommand name, if any.
func (in *Interaction) Subcommand() string {
	if in.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	for _, o := range in.ApplicationCommandData().Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			return o.Name
		}
	}
	return ""
}

// option finds a leaf option, descending into a subcommand.
func (in *Interaction) option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	if in.Type != discordgo.InteractionApplicationCommand {
		return nil
	}
	opts := in.ApplicationCommandData().Options
	for len(opts) == 1 && (opts[0].Type == discordgo.ApplicationCommandOptionSubCommand ||
		opts[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup) {
		opts = opts[0].Options
	}
	for _, o := range opts {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// StringOption returns a string option and whether it was supplied.
func (in *Interaction) StringOption(name string) (string, bool) {
	o := in.option(name)
	if o == nil || o.Type != discordgo.ApplicationCommandOptionString {
		return "", false
	}
	return o.StringValue(), true
}

// BoolOption returns a boolean option and whether it was supplied.
func (in *Interaction) BoolOption(name string) (bool, bool) {
	o := in.option(name)
	if o == nil || o.Type != discordgo.ApplicationCommandOptionBoolean {
		return false, false
	}
	return o.BoolValue(), true
}

// UserOption returns the id of a user option, or "".
func (in *Interaction) UserOption(name string) string {
	o := in.option(name)
	if o == nil || o.Type != discordgo.ApplicationCommandOptionUser {
		return ""
	}
	return o.UserValue(nil).ID
}
