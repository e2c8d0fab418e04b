// Package discord adapts discordgo to the narrow set of operations the bot
// performs on the guild, and wraps interactions so every one receives
// exactly one reply.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ErrUnknownChannel is returned when a referenced channel no longer exists.
var ErrUnknownChannel = errors.New("discord: unknown channel")

// ErrCannotDM is returned when a user does not accept direct messages from
// the bot.
var ErrCannotDM = errors.New("discord: cannot send messages to this user")

// MemberPerms is the permission set team members and moderators receive on
// their team channels, and that @everyone is denied.
const MemberPerms = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionVoiceConnect |
	discordgo.PermissionVoiceSpeak

// ChannelKind distinguishes the channel types the bot creates.
type ChannelKind int

const (
	TextChannel ChannelKind = iota
	VoiceChannel
)

// Overwrite grants (or denies) MemberPerms to a role or member.
type Overwrite struct {
	ID   string
	Role bool
	Deny bool
}

// ChannelSpec describes a channel to create.
type ChannelSpec struct {
	Name       string
	Kind       ChannelKind
	ParentID   string
	Overwrites []Overwrite
}

// Channel is the subset of a guild channel the bot reads.
type Channel struct {
	ID       string
	Name     string
	ParentID string
}

// Platform is everything the workflows need from the chat platform. The
// production implementation is Client; tests use discordtest.Platform.
type Platform interface {
	GuildOwnerID(ctx context.Context, guildID string) (string, error)
	// RoleIDByName returns "" when no role has that name.
	RoleIDByName(ctx context.Context, guildID, name string) (string, error)
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	// SetNickname sets a member's nickname; "" resets it.
	SetNickname(ctx context.Context, guildID, userID, nickname string) error
	MemberDisplayName(ctx context.Context, guildID, userID string) (string, error)

	CreateCategory(ctx context.Context, guildID, name string) (string, error)
	CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (*Channel, error)
	// Channel resolves a channel by id, returning ErrUnknownChannel if it
	// was deleted.
	Channel(ctx context.Context, channelID string) (*Channel, error)
	GrantMember(ctx context.Context, channelID, userID string) error
	RevokeMember(ctx context.Context, channelID, userID string) error

	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error
	// SendDirectMessage returns ErrCannotDM when the user has DMs disabled.
	SendDirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) error

	// SetPresence updates the bot's status; an empty watching text clears
	// the activity.
	SetPresence(status, watching string) error
}

// Client implements Platform over a discordgo session.
type Client struct {
	s *discordgo.Session
}

var _ Platform = (*Client)(nil)

// NewClient wraps s.
func NewClient(s *discordgo.Session) *Client {
	return &Client{s: s}
}

func (c *Client) GuildOwnerID(ctx context.Context, guildID string) (string, error) {
	if c.s.State != nil {
		if g, err := c.s.State.Guild(guildID); err == nil && g.OwnerID != "" {
			return g.OwnerID, nil
		}
	}
	g, err := c.s.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("get guild: %w", err)
	}
	return g.OwnerID, nil
}

func (c *Client) RoleIDByName(ctx context.Context, guildID, name string) (string, error) {
	roles, err := c.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("list roles: %w", err)
	}
	for _, r := range roles {
		if r.Name == name {
			return r.ID, nil
		}
	}
	return "", nil
}

func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.s.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (c *Client) SetNickname(ctx context.Context, guildID, userID, nickname string) error {
	return c.s.GuildMemberNickname(guildID, userID, nickname, discordgo.WithContext(ctx))
}

func (c *Client) MemberDisplayName(ctx context.Context, guildID, userID string) (string, error) {
	m, err := c.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("get member: %w", err)
	}
	return DisplayName(m), nil
}

// DisplayName is the name a member is shown under in the guild.
func DisplayName(m *discordgo.Member) string {
	switch {
	case m == nil:
		return ""
	case m.Nick != "":
		return m.Nick
	case m.User == nil:
		return ""
	case m.User.GlobalName != "":
		return m.User.GlobalName
	default:
		return m.User.Username
	}
}

func (c *Client) CreateCategory(ctx context.Context, guildID, name string) (string, error) {
	ch, err := c.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildCategory,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}
	return ch.ID, nil
}

func (c *Client) CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (*Channel, error) {
	typ := discordgo.ChannelTypeGuildText
	if spec.Kind == VoiceChannel {
		typ = discordgo.ChannelTypeGuildVoice
	}
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(spec.Overwrites))
	for _, o := range spec.Overwrites {
		overwrites = append(overwrites, permissionOverwrite(o))
	}
	ch, err := c.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 typ,
		ParentID:             spec.ParentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create channel %s: %w", spec.Name, err)
	}
	return &Channel{ID: ch.ID, Name: ch.Name, ParentID: ch.ParentID}, nil
}

func permissionOverwrite(o Overwrite) *discordgo.PermissionOverwrite {
	po := &discordgo.PermissionOverwrite{ID: o.ID, Type: discordgo.PermissionOverwriteTypeMember}
	if o.Role {
		po.Type = discordgo.PermissionOverwriteTypeRole
	}
	if o.Deny {
		po.Deny = MemberPerms
	} else {
		po.Allow = MemberPerms
	}
	return po
}

func (c *Client) Channel(ctx context.Context, channelID string) (*Channel, error) {
	ch, err := c.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		if restCode(err) == discordgo.ErrCodeUnknownChannel || restStatus(err) == http.StatusNotFound {
			return nil, ErrUnknownChannel
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &Channel{ID: ch.ID, Name: ch.Name, ParentID: ch.ParentID}, nil
}

func (c *Client) GrantMember(ctx context.Context, channelID, userID string) error {
	return c.s.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
		MemberPerms, 0, discordgo.WithContext(ctx))
}

func (c *Client) RevokeMember(ctx context.Context, channelID, userID string) error {
	return c.s.ChannelPermissionDelete(channelID, userID, discordgo.WithContext(ctx))
}

func (c *Client) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	_, err := c.s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	return err
}

func (c *Client) SendDirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	dm, err := c.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm: %w", err)
	}
	if _, err := c.s.ChannelMessageSendComplex(dm.ID, msg, discordgo.WithContext(ctx)); err != nil {
		if restCode(err) == discordgo.ErrCodeCannotSendMessagesToThisUser {
			return ErrCannotDM
		}
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

func (c *Client) SetPresence(status, watching string) error {
	data := discordgo.UpdateStatusData{Status: status, Activities: []*discordgo.Activity{}}
	if watching != "" {
		data.Activities = append(data.Activities, &discordgo.Activity{
			Name: watching,
			Type: discordgo.ActivityTypeWatching,
		})
	}
	return c.s.UpdateStatusComplex(data)
}

func restCode(err error) int {
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Message != nil {
		return re.Message.Code
	}
	return 0
}

func restStatus(err error) int {
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}
