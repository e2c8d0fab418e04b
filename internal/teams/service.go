// Package teams implements team formation: creating a team with its
// private channels, inviting members by DM, answering invites and leaving.
//
// Database changes that span several statements run in one transaction.
// Discord side effects cannot be rolled back; they run before or after the
// transaction and failures are logged with the ids needed to clean up.
package teams

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/winhacks/hackbot/internal/discord"
	"github.com/winhacks/hackbot/internal/models"
	"github.com/winhacks/hackbot/internal/store"
)

var (
	ErrInvalidName        = errors.New("invalid team name")
	ErrNameTaken          = errors.New("team name taken")
	ErrNotVerified        = errors.New("not verified")
	ErrAlreadyInTeam      = errors.New("already in a team")
	ErrNotInTeam          = errors.New("not in a team")
	ErrSelfInvite         = errors.New("cannot invite yourself")
	ErrTeamFull           = errors.New("team is full")
	ErrInviteeNotVerified = errors.New("invitee not verified")
	ErrAlreadyMember      = errors.New("invitee already a member")
	ErrInviteNotSaved     = errors.New("invite could not be saved")
	ErrDMUndeliverable    = errors.New("invite DM could not be delivered")
	ErrWrongUser          = errors.New("invite belongs to another user")
	ErrTeamDeleted        = errors.New("team no longer exists")
)

// Config bounds team formation.
type Config struct {
	GuildID          string
	MaxTeamSize      int
	MaxNameLength    int
	TeamsPerCategory int
	CategoryBaseName string
	ModeratorRoles   []string
	EventName        string
	// DevMode allows inviting yourself.
	DevMode bool
}

// Service runs the team workflows.
type Service struct {
	store    store.Store
	platform discord.Platform
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a team service.
func NewService(st store.Store, platform discord.Platform, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, platform: platform, cfg: cfg, logger: logger, now: time.Now}
}

// CreateResult describes a new team.
type CreateResult struct {
	Team *models.Team
	// Remaining is how many more members can be invited.
	Remaining int
}

// Create makes a team named rawName led by userID, with a private text and
// voice channel pair.
func (s *Service) Create(ctx context.Context, userID, rawName string) (*CreateResult, error) {
	name := CleanName(rawName)
	if !ValidName(name, s.cfg.MaxNameLength) {
		return nil, ErrInvalidName
	}
	std := StdName(name)

	existing, err := s.store.GetTeam(ctx, std)
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	if existing != nil {
		return nil, ErrNameTaken
	}

	h, err := s.store.GetHacker(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get hacker: %w", err)
	}
	if h == nil || !h.Verified {
		return nil, ErrNotVerified
	}
	if h.InTeam() {
		return nil, ErrAlreadyInTeam
	}

	categoryID, err := s.openCategory(ctx)
	if err != nil {
		return nil, err
	}
	text, voice, err := s.createChannels(ctx, std, categoryID, userID)
	if err != nil {
		return nil, err
	}

	team := &models.Team{
		StdName:        std,
		DisplayName:    name,
		CategoryID:     categoryID,
		TextChannelID:  text.ID,
		VoiceChannelID: voice.ID,
	}
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateTeam(ctx, team); err != nil {
			return fmt.Errorf("create team: %w", err)
		}
		if err := tx.SetHackerTeam(ctx, userID, &team.StdName); err != nil {
			return fmt.Errorf("link creator: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("team not saved, channels orphaned",
			zap.String("team", std),
			zap.String("text_channel_id", text.ID),
			zap.String("voice_channel_id", voice.ID),
			zap.Bool("name_conflict", errors.Is(err, store.ErrConflict)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("team created", zap.String("team", std), zap.String("user_id", userID), zap.String("category_id", categoryID))
	return &CreateResult{Team: team, Remaining: s.cfg.MaxTeamSize - 1}, nil
}

// openCategory returns the oldest category with room for another team,
// creating "<base> N" when all are full.
func (s *Service) openCategory(ctx context.Context) (string, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return "", fmt.Errorf("list categories: %w", err)
	}
	for _, c := range cats {
		if c.TeamCount < s.cfg.TeamsPerCategory {
			return c.CategoryID, nil
		}
	}

	name := fmt.Sprintf("%s %d", s.cfg.CategoryBaseName, len(cats)+1)
	id, err := s.platform.CreateCategory(ctx, s.cfg.GuildID, name)
	if err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}
	if _, err := s.store.CreateCategory(ctx, id); err != nil {
		s.logger.Error("category not saved, channel orphaned", zap.String("category_id", id), zap.Error(err))
		return "", fmt.Errorf("save category: %w", err)
	}
	s.logger.Info("category created", zap.String("category_id", id), zap.String("name", name))
	return id, nil
}

func (s *Service) createChannels(ctx context.Context, std, categoryID, userID string) (text, voice *discord.Channel, err error) {
	overwrites := s.overwrites(ctx, std, userID)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		text, err = s.platform.CreateChannel(gctx, s.cfg.GuildID, discord.ChannelSpec{
			Name: std, Kind: discord.TextChannel, ParentID: categoryID, Overwrites: overwrites,
		})
		return err
	})
	g.Go(func() error {
		var err error
		voice, err = s.platform.CreateChannel(gctx, s.cfg.GuildID, discord.ChannelSpec{
			Name: std + "-voice", Kind: discord.VoiceChannel, ParentID: categoryID, Overwrites: overwrites,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		fields := []zap.Field{zap.String("team", std), zap.Error(err)}
		if text != nil {
			fields = append(fields, zap.String("text_channel_id", text.ID))
		}
		if voice != nil {
			fields = append(fields, zap.String("voice_channel_id", voice.ID))
		}
		s.logger.Error("create team channels", fields...)
		return nil, nil, fmt.Errorf("create team channels: %w", err)
	}
	return text, voice, nil
}

// overwrites hides team channels from @everyone and opens them to the
// creator and moderator roles. The @everyone role shares the guild's id.
func (s *Service) overwrites(ctx context.Context, std, userID string) []discord.Overwrite {
	ows := []discord.Overwrite{
		{ID: s.cfg.GuildID, Role: true, Deny: true},
		{ID: userID},
	}
	for _, name := range s.cfg.ModeratorRoles {
		id, err := s.platform.RoleIDByName(ctx, s.cfg.GuildID, name)
		if err != nil || id == "" {
			s.logger.Warn("moderator role not found, skipping",
				zap.String("role", name), zap.String("team", std), zap.Error(err))
			continue
		}
		ows = append(ows, discord.Overwrite{ID: id, Role: true})
	}
	return ows
}

// InviteRequest is a /team invite call.
type InviteRequest struct {
	InviterID   string
	InviterName string
	InviteeID   string
	// ChannelID is where the command was used.
	ChannelID string
}

// InviteResult describes a delivered invite.
type InviteResult struct {
	Team        *models.Team
	InviteeName string
	// InTeamChannel is set when the command ran in the team's text channel,
	// where the confirmation should be public.
	InTeamChannel bool
}

// Invite offers the inviter's team to the invitee by DM.
func (s *Service) Invite(ctx context.Context, req InviteRequest) (*InviteResult, error) {
	team, err := s.store.GetHackerTeam(ctx, req.InviterID)
	if err != nil {
		return nil, fmt.Errorf("get inviter team: %w", err)
	}
	if team == nil {
		return nil, ErrNotInTeam
	}
	if req.InviterID == req.InviteeID && !s.cfg.DevMode {
		return nil, ErrSelfInvite
	}

	members, err := s.store.ListTeamMembers(ctx, team.StdName)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if len(members) >= s.cfg.MaxTeamSize {
		return nil, ErrTeamFull
	}

	invitee, err := s.store.GetHacker(ctx, req.InviteeID)
	if err != nil {
		return nil, fmt.Errorf("get invitee: %w", err)
	}
	if invitee == nil || !invitee.Verified {
		return nil, ErrInviteeNotVerified
	}
	for _, m := range members {
		if m.DiscordID == req.InviteeID {
			return nil, ErrAlreadyMember
		}
	}

	if _, err := s.store.UpsertInvite(ctx, req.InviteeID, team.StdName); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInviteNotSaved, err)
	}

	dm := InviteMessage(team, req.InviteeID, req.InviterName, s.cfg.EventName)
	if err := s.platform.SendDirectMessage(ctx, req.InviteeID, dm.Send()); err != nil {
		s.logger.Info("invite dm failed", zap.String("invitee_id", req.InviteeID), zap.Error(err))
		return nil, ErrDMUndeliverable
	}

	name, err := s.platform.MemberDisplayName(ctx, s.cfg.GuildID, req.InviteeID)
	if err != nil {
		name = invitee.FullName()
	}
	res := &InviteResult{Team: team, InviteeName: name, InTeamChannel: req.ChannelID == team.TextChannelID}
	if !res.InTeamChannel {
		if err := s.platform.SendMessage(ctx, team.TextChannelID, InviteSent(name).Send()); err != nil {
			s.logger.Warn("post invite notice", zap.String("team", team.StdName), zap.Error(err))
		}
	}
	s.logger.Info("invite sent", zap.String("team", team.StdName), zap.String("invitee_id", req.InviteeID))
	return res, nil
}

// RespondResult describes an answered invite. Team is also set alongside
// ErrAlreadyInTeam, naming the team the user is already on.
type RespondResult struct {
	Action InviteAction
	Team   *models.Team
	At     time.Time
}

// Respond handles a press of an invite button by userID.
func (s *Service) Respond(ctx context.Context, userID, customID string) (*RespondResult, error) {
	b, err := ParseInviteButton(customID)
	if err != nil {
		return nil, err
	}

	h, err := s.store.GetHacker(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get hacker: %w", err)
	}
	if h == nil || !h.Verified {
		return nil, ErrNotVerified
	}
	if b.InviteeID != userID {
		return nil, ErrWrongUser
	}

	if b.Action == Accept {
		current, err := s.store.GetHackerTeam(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("get hacker team: %w", err)
		}
		if current != nil {
			return &RespondResult{Action: b.Action, Team: current}, ErrAlreadyInTeam
		}
	}

	inv, err := s.store.GetInvite(ctx, b.InviteeID, b.TeamStdName)
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	if inv == nil || inv.Team == nil {
		return nil, ErrTeamDeleted
	}

	if b.Action == Accept {
		return s.accept(ctx, userID, inv)
	}
	return s.decline(ctx, userID, inv)
}

func (s *Service) accept(ctx context.Context, userID string, inv *models.Invite) (*RespondResult, error) {
	team := inv.Team
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.LockTeam(ctx, team.StdName); err != nil {
			return fmt.Errorf("lock team: %w", err)
		}
		members, err := tx.ListTeamMembers(ctx, team.StdName)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		if len(members) >= s.cfg.MaxTeamSize {
			return ErrTeamFull
		}
		if err := tx.DeleteInvite(ctx, inv.InviteeID, inv.TeamStdName); err != nil {
			return fmt.Errorf("delete invite: %w", err)
		}
		if err := tx.SetHackerTeam(ctx, userID, &team.StdName); err != nil {
			return fmt.Errorf("link member: %w", err)
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrTeamFull):
		return nil, ErrTeamFull
	case errors.Is(err, store.ErrNotFound):
		// The team or invite vanished between lookup and commit.
		return nil, ErrTeamDeleted
	case err != nil:
		return nil, err
	}

	for _, ch := range []string{team.TextChannelID, team.VoiceChannelID} {
		if err := s.platform.GrantMember(ctx, ch, userID); err != nil {
			s.logger.Error("grant team channel", zap.String("team", team.StdName),
				zap.String("channel_id", ch), zap.String("user_id", userID), zap.Error(err))
		}
	}
	if err := s.platform.SendMessage(ctx, team.TextChannelID, JoinNotice(userID).Send()); err != nil {
		s.logger.Warn("post join notice", zap.String("team", team.StdName), zap.Error(err))
	}
	s.logger.Info("invite accepted", zap.String("team", team.StdName), zap.String("user_id", userID))
	return &RespondResult{Action: Accept, Team: team, At: s.now()}, nil
}

func (s *Service) decline(ctx context.Context, userID string, inv *models.Invite) (*RespondResult, error) {
	team := inv.Team
	if err := s.platform.SendMessage(ctx, team.TextChannelID, DeclineNotice(userID).Send()); err != nil {
		s.logger.Warn("post decline notice", zap.String("team", team.StdName), zap.Error(err))
	}
	if err := s.store.DeleteInvite(ctx, inv.InviteeID, inv.TeamStdName); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("delete invite: %w", err)
	}
	s.logger.Info("invite declined", zap.String("team", team.StdName), zap.String("user_id", userID))
	return &RespondResult{Action: Decline, Team: team, At: s.now()}, nil
}

// LeaveResult describes a departure.
type LeaveResult struct {
	Team *models.Team
	// Abandoned is set when nobody is left on the team. Empty teams and
	// their channels are kept.
	Abandoned bool
}

// Leave removes userID from their team and revokes their channel access.
func (s *Service) Leave(ctx context.Context, userID string) (*LeaveResult, error) {
	team, err := s.store.GetHackerTeam(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get hacker team: %w", err)
	}
	if team == nil {
		return nil, ErrNotInTeam
	}

	var remaining int
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.LockTeam(ctx, team.StdName); err != nil {
			return fmt.Errorf("lock team: %w", err)
		}
		if err := tx.SetHackerTeam(ctx, userID, nil); err != nil {
			return fmt.Errorf("unlink member: %w", err)
		}
		text, err := s.platform.Channel(ctx, team.TextChannelID)
		if err != nil {
			return fmt.Errorf("get text channel: %w", err)
		}
		voice, err := s.platform.Channel(ctx, team.VoiceChannelID)
		if err != nil {
			return fmt.Errorf("get voice channel: %w", err)
		}
		for _, ch := range []*discord.Channel{text, voice} {
			if err := s.platform.RevokeMember(ctx, ch.ID, userID); err != nil {
				return fmt.Errorf("revoke %s: %w", ch.ID, err)
			}
		}
		members, err := tx.ListTeamMembers(ctx, team.StdName)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		remaining = len(members)
		return nil
	})
	if err != nil {
		s.logger.Error("leave team", zap.String("team", team.StdName), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	res := &LeaveResult{Team: team, Abandoned: remaining == 0}
	if err := s.platform.SendMessage(ctx, team.TextChannelID, LeaveNotice(userID, res.Abandoned).Send()); err != nil {
		s.logger.Warn("post leave notice", zap.String("team", team.StdName), zap.Error(err))
	}
	s.logger.Info("member left team", zap.String("team", team.StdName), zap.String("user_id", userID),
		zap.Int("remaining", remaining))
	return res, nil
}

// Info is a team and its members.
type Info struct {
	Team    *models.Team
	Members []*models.Hacker
}

// Info returns the caller's team.
func (s *Service) Info(ctx context.Context, userID string) (*Info, error) {
	team, err := s.store.GetHackerTeam(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get hacker team: %w", err)
	}
	if team == nil {
		return nil, ErrNotInTeam
	}
	members, err := s.store.ListTeamMembers(ctx, team.StdName)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return &Info{Team: team, Members: members}, nil
}
