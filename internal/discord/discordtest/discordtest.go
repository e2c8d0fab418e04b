// Package discordtest provides in-memory doubles for the discord package.
package discordtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/winhacks/hackbot/internal/discord"
)

// Sent is a message delivered to a channel or DM.
type Sent struct {
	ChannelID string
	UserID    string
	Message   *discordgo.MessageSend
}

// Platform is a fake discord.Platform backed by maps. Errors set in Fail
// are returned by the named method.
type Platform struct {
	mu sync.Mutex

	OwnerID  string
	Roles    map[string]string          // name -> id
	Members  map[string]string          // user id -> display name
	Nicks    map[string]string          // user id -> nickname
	RoleSets map[string]map[string]bool // user id -> role ids
	Channels map[string]*discord.Channel
	Perms    map[string]map[string]bool // channel id -> granted member ids
	Specs    map[string]discord.ChannelSpec
	NoDM     map[string]bool
	Fail     map[string]error

	Messages []Sent
	DMs      []Sent
	Presence string
	Status   string
	Created  []string
	Revoked  []string
	Granted  []string
	Renamed  []string

	nextID    int
	presences int
}

var _ discord.Platform = (*Platform)(nil)

// New returns an empty fake owned by ownerID.
func New(ownerID string) *Platform {
	return &Platform{
		OwnerID:  ownerID,
		Roles:    map[string]string{},
		Members:  map[string]string{},
		Nicks:    map[string]string{},
		RoleSets: map[string]map[string]bool{},
		Channels: map[string]*discord.Channel{},
		Perms:    map[string]map[string]bool{},
		Specs:    map[string]discord.ChannelSpec{},
		NoDM:     map[string]bool{},
		Fail:     map[string]error{},
	}
}

func (p *Platform) id(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s-%d", prefix, p.nextID)
}

func (p *Platform) GuildOwnerID(ctx context.Context, guildID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.OwnerID, p.Fail["GuildOwnerID"]
}

func (p *Platform) RoleIDByName(ctx context.Context, guildID, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["RoleIDByName"]; err != nil {
		return "", err
	}
	return p.Roles[name], nil
}

func (p *Platform) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["AddRole"]; err != nil {
		return err
	}
	if p.RoleSets[userID] == nil {
		p.RoleSets[userID] = map[string]bool{}
	}
	p.RoleSets[userID][roleID] = true
	return nil
}

func (p *Platform) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["RemoveRole"]; err != nil {
		return err
	}
	delete(p.RoleSets[userID], roleID)
	return nil
}

// HasRole reports whether userID holds roleID.
func (p *Platform) HasRole(userID, roleID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.RoleSets[userID][roleID]
}

func (p *Platform) SetNickname(ctx context.Context, guildID, userID, nickname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["SetNickname"]; err != nil {
		return err
	}
	p.Renamed = append(p.Renamed, userID)
	if nickname == "" {
		delete(p.Nicks, userID)
		return nil
	}
	p.Nicks[userID] = nickname
	return nil
}

func (p *Platform) MemberDisplayName(ctx context.Context, guildID, userID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["MemberDisplayName"]; err != nil {
		return "", err
	}
	if n, ok := p.Nicks[userID]; ok {
		return n, nil
	}
	if n, ok := p.Members[userID]; ok {
		return n, nil
	}
	return userID, nil
}

func (p *Platform) CreateCategory(ctx context.Context, guildID, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["CreateCategory"]; err != nil {
		return "", err
	}
	id := p.id("category")
	p.Channels[id] = &discord.Channel{ID: id, Name: name}
	p.Created = append(p.Created, id)
	return id, nil
}

func (p *Platform) CreateChannel(ctx context.Context, guildID string, spec discord.ChannelSpec) (*discord.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["CreateChannel"]; err != nil {
		return nil, err
	}
	if spec.Kind == discord.VoiceChannel {
		if err := p.Fail["CreateVoiceChannel"]; err != nil {
			return nil, err
		}
	}
	id := p.id("channel")
	ch := &discord.Channel{ID: id, Name: spec.Name, ParentID: spec.ParentID}
	p.Channels[id] = ch
	p.Specs[id] = spec
	p.Perms[id] = map[string]bool{}
	for _, o := range spec.Overwrites {
		if !o.Role && !o.Deny {
			p.Perms[id][o.ID] = true
		}
	}
	p.Created = append(p.Created, id)
	c := *ch
	return &c, nil
}

func (p *Platform) Channel(ctx context.Context, channelID string) (*discord.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["Channel"]; err != nil {
		return nil, err
	}
	ch, ok := p.Channels[channelID]
	if !ok {
		return nil, discord.ErrUnknownChannel
	}
	c := *ch
	return &c, nil
}

func (p *Platform) GrantMember(ctx context.Context, channelID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["GrantMember"]; err != nil {
		return err
	}
	if p.Perms[channelID] == nil {
		p.Perms[channelID] = map[string]bool{}
	}
	p.Perms[channelID][userID] = true
	p.Granted = append(p.Granted, channelID+"/"+userID)
	return nil
}

func (p *Platform) RevokeMember(ctx context.Context, channelID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["RevokeMember"]; err != nil {
		return err
	}
	delete(p.Perms[channelID], userID)
	p.Revoked = append(p.Revoked, channelID+"/"+userID)
	return nil
}

// CanAccess reports whether userID has a member overwrite on channelID.
func (p *Platform) CanAccess(channelID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Perms[channelID][userID]
}

func (p *Platform) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["SendMessage"]; err != nil {
		return err
	}
	p.Messages = append(p.Messages, Sent{ChannelID: channelID, Message: msg})
	return nil
}

func (p *Platform) SendDirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NoDM[userID] {
		return discord.ErrCannotDM
	}
	if err := p.Fail["SendDirectMessage"]; err != nil {
		return err
	}
	p.DMs = append(p.DMs, Sent{UserID: userID, Message: msg})
	return nil
}

func (p *Platform) SetPresence(status, watching string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["SetPresence"]; err != nil {
		return err
	}
	p.Status = status
	p.Presence = watching
	p.presences++
	return nil
}

// PresenceUpdates returns how many times SetPresence succeeded.
func (p *Platform) PresenceUpdates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presences
}

// MessagesTo returns messages posted to channelID.
func (p *Platform) MessagesTo(channelID string) []*discordgo.MessageSend {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*discordgo.MessageSend
	for _, m := range p.Messages {
		if m.ChannelID == channelID {
			out = append(out, m.Message)
		}
	}
	return out
}

// Responder is a fake discord.Responder that records every call.
type Responder struct {
	mu        sync.Mutex
	Responses []*discordgo.InteractionResponse
	Edits     []*discordgo.WebhookEdit
	Err       error
}

var _ discord.Responder = (*Responder)(nil)

func (r *Responder) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Responses = append(r.Responses, resp)
	return nil
}

func (r *Responder) InteractionResponseEdit(i *discordgo.Interaction, e *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.Edits = append(r.Edits, e)
	return &discordgo.Message{}, nil
}

// Final returns the embeds of the last visible answer and whether it is
// ephemeral. Deferred placeholders are skipped.
func (r *Responder) Final() (embeds []*discordgo.MessageEmbed, ephemeral bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ephemeral = false
	for _, resp := range r.Responses {
		if resp.Type == discordgo.InteractionResponseDeferredChannelMessageWithSource {
			ephemeral = resp.Data != nil && resp.Data.Flags&discordgo.MessageFlagsEphemeral != 0
			continue
		}
		if resp.Data != nil {
			embeds = resp.Data.Embeds
			ephemeral = resp.Data.Flags&discordgo.MessageFlagsEphemeral != 0
		}
	}
	if n := len(r.Edits); n > 0 && r.Edits[n-1].Embeds != nil {
		embeds = *r.Edits[n-1].Embeds
	}
	return embeds, ephemeral
}

// Answers counts final answers: direct responses plus edits of a deferral.
func (r *Responder) Answers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.Edits)
	for _, resp := range r.Responses {
		if resp.Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
			n++
		}
	}
	return n
}

// Command builds a slash command interaction for tests.
func Command(userID, guildID, channelID, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	i := &discordgo.Interaction{
		ID:        "interaction-" + name,
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: channelID,
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: opts,
		},
	}
	setUser(i, userID)
	return i
}

// Button builds a component interaction for tests.
func Button(userID, customID string) *discordgo.Interaction {
	i := &discordgo.Interaction{
		ID:   "interaction-button",
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{
			CustomID:      customID,
			ComponentType: discordgo.ButtonComponent,
		},
	}
	setUser(i, userID)
	return i
}

func setUser(i *discordgo.Interaction, userID string) {
	u := &discordgo.User{ID: userID, Username: "user" + userID}
	if i.GuildID != "" {
		i.Member = &discordgo.Member{User: u}
		return
	}
	i.User = u
}

// Sub builds a subcommand option.
func Sub(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts,
	}
}

// String builds a string option.
func String(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value,
	}
}

// Bool builds a boolean option.
func Bool(name string, value bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: value,
	}
}

// User builds a user option.
func User(name, userID string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionUser, Value: userID,
	}
}
