// Package store defines the persistence contract for hackers, teams,
// invites and channel categories.
//
// Lookups return (nil, nil) when the record does not exist. Mutations that
// target a missing record return ErrNotFound; unique conflicts return
// ErrConflict.
package store

import (
	"context"
	"errors"

	"github.com/winhacks/hackbot/internal/models"
)

var (
	// ErrNotFound is returned by mutations whose target row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("store: conflict")
)

// HackerStore persists hackers.
type HackerStore interface {
	CountVerifiedHackers(ctx context.Context) (int, error)
	// GetHacker returns the hacker with their team joined, verified or not.
	GetHacker(ctx context.Context, discordID string) (*models.Hacker, error)
	// UpsertHacker creates or refreshes h and marks it verified.
	UpsertHacker(ctx context.Context, h *models.Hacker) error
	UnverifyHacker(ctx context.Context, discordID string) error
	DeleteHacker(ctx context.Context, discordID string) error
	// IsEmailVerified reports whether a verified hacker already uses email.
	IsEmailVerified(ctx context.Context, email string) (bool, error)
	SetHackerTeam(ctx context.Context, discordID string, teamStdName *string) error
}

// TeamStore persists teams and their categories.
type TeamStore interface {
	GetTeam(ctx context.Context, stdName string) (*models.Team, error)
	GetHackerTeam(ctx context.Context, discordID string) (*models.Team, error)
	ListTeamMembers(ctx context.Context, stdName string) ([]*models.Hacker, error)
	// LockTeam holds the team's row until the surrounding transaction ends,
	// serializing membership changes. A missing team yields ErrNotFound.
	LockTeam(ctx context.Context, stdName string) error
	CreateTeam(ctx context.Context, t *models.Team) error
	// DeleteTeam removes a team, cascading its invites and unlinking its
	// members. No bot command deletes teams; moderators remove them by hand
	// and tests use it to stage a vanished team.
	DeleteTeam(ctx context.Context, stdName string) error

	CreateCategory(ctx context.Context, categoryID string) (*models.Category, error)
	// ListCategories returns every category with its current team count,
	// oldest first.
	ListCategories(ctx context.Context) ([]*models.Category, error)
}

// InviteStore persists pending invites.
type InviteStore interface {
	// UpsertInvite creates the invite if it does not exist; re-inviting is
	// not an error.
	UpsertInvite(ctx context.Context, inviteeID, teamStdName string) (*models.Invite, error)
	// GetInvite returns the invite with its team joined.
	GetInvite(ctx context.Context, inviteeID, teamStdName string) (*models.Invite, error)
	DeleteInvite(ctx context.Context, inviteeID, teamStdName string) error
	// ListHackerInvites returns a member's pending invites with their teams
	// joined, newest first.
	ListHackerInvites(ctx context.Context, discordID string) ([]*models.Invite, error)
}

// Store is the full persistence layer.
type Store interface {
	HackerStore
	TeamStore
	InviteStore

	// Transaction runs fn against a Store bound to a single transaction.
	// It commits only if fn returns nil and rolls back on error or panic.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
