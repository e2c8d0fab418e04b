package postgres

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/winhacks/hackbot/internal/models"
)

var hackerColumns = []string{
	"h.discord_id", "h.first_name", "h.last_name", "h.email", "h.team_std_name",
	"h.verified", "h.verified_at", "h.created_at", "h.updated_at",
	"t.std_name", "t.display_name", "t.category_id", "t.text_channel_id", "t.voice_channel_id", "t.created_at",
}

func selectHackers() sq.SelectBuilder {
	return psql.Select(hackerColumns...).
		From("hackers h").
		LeftJoin("teams t ON t.std_name = h.team_std_name")
}

// scanHacker scans a row produced by selectHackers.
func scanHacker(row pgx.Row) (*models.Hacker, error) {
	var (
		h                                  models.Hacker
		stdName, display, cat, text, voice *string
		teamCreated                        *time.Time
	)
	err := row.Scan(&h.DiscordID, &h.FirstName, &h.LastName, &h.Email, &h.TeamStdName,
		&h.Verified, &h.VerifiedAt, &h.CreatedAt, &h.UpdatedAt,
		&stdName, &display, &cat, &text, &voice, &teamCreated)
	if err != nil {
		return nil, err
	}
	if stdName != nil {
		h.Team = &models.Team{
			StdName:        *stdName,
			DisplayName:    deref(display),
			CategoryID:     deref(cat),
			TextChannelID:  deref(text),
			VoiceChannelID: deref(voice),
		}
		if teamCreated != nil {
			h.Team.CreatedAt = *teamCreated
		}
	}
	return &h, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CountVerifiedHackers returns how many hackers are currently verified.
func (s *Store) CountVerifiedHackers(ctx context.Context) (int, error) {
	var n int
	_, err := s.row(ctx, psql.Select("COUNT(*)").From("hackers").Where(sq.Eq{"verified": true}), &n)
	return n, err
}

// GetHacker returns a hacker by Discord id, or nil if unknown.
func (s *Store) GetHacker(ctx context.Context, discordID string) (*models.Hacker, error) {
	sql, args, err := selectHackers().Where(sq.Eq{"h.discord_id": discordID}).ToSql()
	if err != nil {
		return nil, err
	}
	h, err := scanHacker(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return h, err
}

func upsertHackerQuery(h *models.Hacker) sq.InsertBuilder {
	return psql.Insert("hackers").
		Columns("discord_id", "first_name", "last_name", "email", "verified", "verified_at").
		Values(h.DiscordID, h.FirstName, h.LastName, h.Email, true, sq.Expr("NOW()")).
		Suffix(`ON CONFLICT (discord_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			verified = TRUE,
			verified_at = NOW(),
			updated_at = NOW()
		RETURNING team_std_name, verified_at, created_at, updated_at`)
}

// UpsertHacker inserts or refreshes a hacker and marks them verified.
func (s *Store) UpsertHacker(ctx context.Context, h *models.Hacker) error {
	if _, err := s.row(ctx, upsertHackerQuery(h), &h.TeamStdName, &h.VerifiedAt, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return err
	}
	h.Verified = true
	return nil
}

// UnverifyHacker flags a hacker as no longer verified, keeping the row.
func (s *Store) UnverifyHacker(ctx context.Context, discordID string) error {
	return affected(s.exec(ctx, psql.Update("hackers").
		Set("verified", false).
		Set("verified_at", nil).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"discord_id": discordID})))
}

// DeleteHacker removes a hacker entirely.
func (s *Store) DeleteHacker(ctx context.Context, discordID string) error {
	return affected(s.exec(ctx, psql.Delete("hackers").Where(sq.Eq{"discord_id": discordID})))
}

// IsEmailVerified reports whether a verified hacker uses email.
func (s *Store) IsEmailVerified(ctx context.Context, email string) (bool, error) {
	q := psql.Select("1").
		Prefix("SELECT EXISTS (").
		From("hackers").
		Where(sq.Eq{"email": email, "verified": true}).
		Suffix(")")
	var exists bool
	_, err := s.row(ctx, q, &exists)
	return exists, err
}

// SetHackerTeam links a hacker to a team, or unlinks them when teamStdName
// is nil.
func (s *Store) SetHackerTeam(ctx context.Context, discordID string, teamStdName *string) error {
	return affected(s.exec(ctx, psql.Update("hackers").
		Set("team_std_name", teamStdName).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"discord_id": discordID})))
}
