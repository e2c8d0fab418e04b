package response

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Color is the accent used on every embed the bot sends.
const Color = 0x2f3136

// Message is one outward reply: either an interaction response or a plain
// channel/DM message. The zero value is public; helpers for failures and
// confirmations default to ephemeral.
type Message struct {
	Ephemeral  bool
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// Options describe a title/emote/message triple.
type Options struct {
	Emote   string
	Title   string
	Message string
	// Public makes the reply visible to everyone in the channel.
	Public bool
}

// Embed returns an embed with the bot's standard styling.
func Embed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Color: Color}
}

// Embeds wraps embeds in a public message.
func Embeds(embeds ...*discordgo.MessageEmbed) *Message {
	return &Message{Embeds: embeds}
}

// Success builds a confirmation.
func Success(o Options) *Message {
	return triple(o, ":white_check_mark:", "Success", "")
}

// Error builds a failure reply. Without a message it is the generic
// "something went wrong" reply used for unexpected faults.
func Error(o Options) *Message {
	return triple(o, ":x:", "Error", "Something went wrong. Please try again in a minute, or contact an organizer if it keeps happening.")
}

// Generic is the reply for internal faults whose detail is only logged.
func Generic() *Message {
	return Error(Options{})
}

func triple(o Options, emote, title, message string) *Message {
	if o.Emote == "" {
		o.Emote = emote
	}
	if o.Title == "" {
		o.Title = title
	}
	if o.Message == "" {
		o.Message = message
	}
	e := Embed()
	e.Title = strings.TrimSpace(o.Emote + " " + o.Title)
	e.Description = o.Message
	return &Message{Ephemeral: !o.Public, Embeds: []*discordgo.MessageEmbed{e}}
}

// Private returns a copy of m that only the invoking user can see.
func (m *Message) Private() *Message {
	c := *m
	c.Ephemeral = true
	return &c
}

// Public returns a copy of m visible to the whole channel.
func (m *Message) Public() *Message {
	c := *m
	c.Ephemeral = false
	return &c
}

// Flags returns the interaction flags for m.
func (m *Message) Flags() discordgo.MessageFlags {
	if m.Ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

// Send converts m for ChannelMessageSendComplex.
func (m *Message) Send() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    m.Content,
		Embeds:     m.Embeds,
		Components: m.Components,
	}
}

// Data converts m for an interaction response.
func (m *Message) Data() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Content:    m.Content,
		Embeds:     m.Embeds,
		Components: m.Components,
		Flags:      m.Flags(),
	}
}

// Edit converts m for editing a deferred or already sent interaction
// response. Components are always set so stale buttons disappear.
func (m *Message) Edit() *discordgo.WebhookEdit {
	content := m.Content
	embeds := m.Embeds
	components := m.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}
}

// Title returns the title of the first embed, mostly useful in tests and logs.
func (m *Message) Title() string {
	if len(m.Embeds) == 0 {
		return ""
	}
	return m.Embeds[0].Title
}

// Text returns the description of the first embed.
func (m *Message) Text() string {
	if len(m.Embeds) == 0 {
		return m.Content
	}
	return m.Embeds[0].Description
}

// UserMention formats a user mention.
func UserMention(id string) string { return "<@" + id + ">" }

// ChannelMention formats a channel mention.
func ChannelMention(id string) string { return "<#" + id + ">" }

// Hyperlink formats a masked link.
func Hyperlink(text, url string) string { return fmt.Sprintf("[%s](%s)", text, url) }

// Bold formats bold text.
func Bold(s string) string { return "**" + s + "**" }

// Timestamp formats a dynamic timestamp rendered in the reader's timezone.
func Timestamp(unix int64) string { return fmt.Sprintf("<t:%d>", unix) }
