package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/winhacks/hackbot/internal/models"
	"github.com/winhacks/hackbot/internal/store"
)

var teamColumns = []string{"t.std_name", "t.display_name", "t.category_id", "t.text_channel_id", "t.voice_channel_id", "t.created_at"}

func teamDest(t *models.Team) []any {
	return []any{&t.StdName, &t.DisplayName, &t.CategoryID, &t.TextChannelID, &t.VoiceChannelID, &t.CreatedAt}
}

// GetTeam returns a team by standardized name, or nil.
func (s *Store) GetTeam(ctx context.Context, stdName string) (*models.Team, error) {
	var t models.Team
	ok, err := s.row(ctx, psql.Select(teamColumns...).From("teams t").Where(sq.Eq{"t.std_name": stdName}), teamDest(&t)...)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

// GetHackerTeam returns the team a hacker belongs to, or nil.
func (s *Store) GetHackerTeam(ctx context.Context, discordID string) (*models.Team, error) {
	q := psql.Select(teamColumns...).
		From("teams t").
		Join("hackers h ON h.team_std_name = t.std_name").
		Where(sq.Eq{"h.discord_id": discordID})
	var t models.Team
	ok, err := s.row(ctx, q, teamDest(&t)...)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

// ListTeamMembers returns the hackers linked to a team, earliest first.
func (s *Store) ListTeamMembers(ctx context.Context, stdName string) ([]*models.Hacker, error) {
	rows, err := s.query(ctx, selectHackers().Where(sq.Eq{"h.team_std_name": stdName}).OrderBy("h.created_at", "h.discord_id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Hacker
	for rows.Next() {
		h, err := scanHacker(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

func lockTeamQuery(stdName string) sq.SelectBuilder {
	return psql.Select("std_name").From("teams").Where(sq.Eq{"std_name": stdName}).Suffix("FOR UPDATE")
}

// LockTeam takes a row lock on the team for the rest of the transaction.
func (s *Store) LockTeam(ctx context.Context, stdName string) error {
	var name string
	ok, err := s.row(ctx, lockTeamQuery(stdName), &name)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// CreateTeam inserts t. A taken name yields store.ErrConflict.
func (s *Store) CreateTeam(ctx context.Context, t *models.Team) error {
	q := psql.Insert("teams").
		Columns("std_name", "display_name", "category_id", "text_channel_id", "voice_channel_id").
		Values(t.StdName, t.DisplayName, t.CategoryID, t.TextChannelID, t.VoiceChannelID).
		Suffix("RETURNING created_at")
	_, err := s.row(ctx, q, &t.CreatedAt)
	return err
}

// DeleteTeam removes a team; its invites cascade and members are unlinked.
func (s *Store) DeleteTeam(ctx context.Context, stdName string) error {
	return affected(s.exec(ctx, psql.Delete("teams").Where(sq.Eq{"std_name": stdName})))
}

// CreateCategory records a Discord category that can host team channels.
func (s *Store) CreateCategory(ctx context.Context, categoryID string) (*models.Category, error) {
	c := &models.Category{CategoryID: categoryID}
	q := psql.Insert("discord_categories").Columns("category_id").Values(categoryID).Suffix("RETURNING created_at")
	if _, err := s.row(ctx, q, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func listCategoriesQuery() sq.SelectBuilder {
	return psql.Select("c.category_id", "c.created_at", "COUNT(t.std_name)").
		From("discord_categories c").
		LeftJoin("teams t ON t.category_id = c.category_id").
		GroupBy("c.category_id", "c.created_at").
		OrderBy("c.created_at", "c.category_id")
}

// ListCategories returns all categories with their team counts.
func (s *Store) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := s.query(ctx, listCategoriesQuery())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.CategoryID, &c.CreatedAt, &c.TeamCount); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
