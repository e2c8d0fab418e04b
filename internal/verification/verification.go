// Package verification binds guild members to registrants of the event.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/winhacks/hackbot/internal/discord"
	"github.com/winhacks/hackbot/internal/events"
	"github.com/winhacks/hackbot/internal/models"
	"github.com/winhacks/hackbot/internal/roster"
	"github.com/winhacks/hackbot/internal/store"
)

// MaxNicknameLength is the longest nickname Discord accepts.
const MaxNicknameLength = 32

var (
	ErrInvalidEmail           = errors.New("invalid email")
	ErrVerifiedWithOtherEmail = errors.New("already verified with another email")
	ErrAlreadyVerified        = errors.New("already verified")
	ErrEmailInUse             = errors.New("email verified by another member")
	ErrNotRegistered          = errors.New("email not in roster")
	ErrNameTooLong            = errors.New("registered name too long for a nickname")
	ErrNotVerified            = errors.New("not verified")
	ErrInTeam                 = errors.New("member is in a team")
)

// Config controls verification side effects.
type Config struct {
	GuildID string
	// RoleName is the role granted on verification; empty disables it.
	RoleName string
}

// Service runs verification workflows.
type Service struct {
	store    store.Store
	roster   roster.Lookup
	platform discord.Platform
	bus      *events.Bus
	validate *validator.Validate
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a verification service.
func NewService(st store.Store, lookup roster.Lookup, platform discord.Platform, bus *events.Bus, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    st,
		roster:   lookup,
		platform: platform,
		bus:      bus,
		validate: validator.New(),
		cfg:      cfg,
		logger:   logger,
	}
}

// Result describes a completed verification change.
type Result struct {
	Hacker *models.Hacker
	// IsOwner is set for the guild owner, whose nickname the bot cannot
	// change.
	IsOwner bool
}

// Verify checks email against the roster and marks userID verified.
func (s *Service) Verify(ctx context.Context, userID, email string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	existing, err := s.store.GetHacker(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get hacker: %w", err)
	}
	if existing != nil && existing.Verified {
		if existing.Email != email {
			return nil, ErrVerifiedWithOtherEmail
		}
		return nil, ErrAlreadyVerified
	}

	taken, err := s.store.IsEmailVerified(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailInUse
	}

	reg, err := s.roster.Find(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("roster lookup: %w", err)
	}
	if reg == nil {
		return nil, ErrNotRegistered
	}

	h := &models.Hacker{DiscordID: userID, FirstName: reg.FirstName, LastName: reg.LastName, Email: email}
	nickname := h.FullName()
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return nil, ErrNameTooLong
	}

	var roleID string
	if s.cfg.RoleName != "" {
		if roleID, err = s.role(ctx); err != nil {
			return nil, err
		}
		if err := s.platform.AddRole(ctx, s.cfg.GuildID, userID, roleID); err != nil {
			return nil, fmt.Errorf("grant verified role: %w", err)
		}
	}

	if err := s.store.UpsertHacker(ctx, h); err != nil {
		if roleID != "" {
			s.revokeRole(ctx, userID, roleID)
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("upsert hacker: %w", err)
	}

	owner := s.isOwner(ctx, userID)
	if !owner {
		if err := s.platform.SetNickname(ctx, s.cfg.GuildID, userID, nickname); err != nil {
			s.logger.Warn("rename verified member", zap.String("user_id", userID), zap.Error(err))
		}
	} else {
		s.logger.Warn("guild owner verified, nickname must be changed manually", zap.String("user_id", userID))
	}

	s.bus.Publish(ctx, events.Event{Kind: events.UserVerified, GuildID: s.cfg.GuildID, UserID: userID})
	s.logger.Info("verified member", zap.String("user_id", userID), zap.String("email", email))
	return &Result{Hacker: h, IsOwner: owner}, nil
}

// Unverify reverses Verify. Members must leave their team first.
func (s *Service) Unverify(ctx context.Context, userID string) (*Result, error) {
	h, err := s.store.GetHacker(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get hacker: %w", err)
	}
	if h == nil || !h.Verified {
		return nil, ErrNotVerified
	}
	if h.InTeam() {
		return nil, ErrInTeam
	}

	if s.cfg.RoleName != "" {
		roleID, err := s.role(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.platform.RemoveRole(ctx, s.cfg.GuildID, userID, roleID); err != nil {
			return nil, fmt.Errorf("remove verified role: %w", err)
		}
	}

	owner := s.isOwner(ctx, userID)
	if !owner {
		if err := s.platform.SetNickname(ctx, s.cfg.GuildID, userID, ""); err != nil {
			s.logger.Warn("reset nickname", zap.String("user_id", userID), zap.Error(err))
		}
	}

	if err := s.store.UnverifyHacker(ctx, userID); err != nil {
		return nil, fmt.Errorf("unverify hacker: %w", err)
	}
	h.Verified = false
	h.VerifiedAt = nil

	s.bus.Publish(ctx, events.Event{Kind: events.UserUnverified, GuildID: s.cfg.GuildID, UserID: userID})
	s.logger.Info("unverified member", zap.String("user_id", userID))
	return &Result{Hacker: h, IsOwner: owner}, nil
}

// Forget drops the record of a member who left the guild.
func (s *Service) Forget(ctx context.Context, userID string) error {
	h, err := s.store.GetHacker(ctx, userID)
	if err != nil {
		return fmt.Errorf("get hacker: %w", err)
	}
	if h == nil {
		s.logger.Info("member left", zap.String("user_id", userID))
		return nil
	}
	if err := s.store.DeleteHacker(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete hacker: %w", err)
	}
	s.logger.Info("member left and was unverified", zap.String("user_id", userID))
	if h.Verified {
		s.bus.Publish(ctx, events.Event{Kind: events.UserUnverified, GuildID: s.cfg.GuildID, UserID: userID})
	}
	return nil
}

// revokeRole takes back a role granted by a verification that failed to
// persist. Failure leaves the member with the role, so it is logged loudly.
func (s *Service) revokeRole(ctx context.Context, userID, roleID string) {
	if err := s.platform.RemoveRole(ctx, s.cfg.GuildID, userID, roleID); err != nil {
		s.logger.Error("revoke verified role after failed save",
			zap.String("user_id", userID), zap.String("role_id", roleID), zap.Error(err))
		return
	}
	s.logger.Info("revoked verified role after failed save", zap.String("user_id", userID))
}

func (s *Service) role(ctx context.Context) (string, error) {
	id, err := s.platform.RoleIDByName(ctx, s.cfg.GuildID, s.cfg.RoleName)
	if err != nil {
		return "", fmt.Errorf("find role %q: %w", s.cfg.RoleName, err)
	}
	if id == "" {
		return "", fmt.Errorf("role %q not found", s.cfg.RoleName)
	}
	return id, nil
}

// isOwner treats a failed owner lookup as "not the owner"; the rename that
// follows fails harmlessly for the real owner.
func (s *Service) isOwner(ctx context.Context, userID string) bool {
	owner, err := s.platform.GuildOwnerID(ctx, s.cfg.GuildID)
	if err != nil {
		s.logger.Warn("get guild owner", zap.Error(err))
		return false
	}
	return owner == userID
}
