package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/winhacks/hackbot/internal/models"
)

func upsertInviteQuery(inviteeID, teamStdName string) sq.InsertBuilder {
	// DO UPDATE rather than DO NOTHING so RETURNING yields the existing row.
	return psql.Insert("invites").
		Columns("invitee_id", "team_std_name").
		Values(inviteeID, teamStdName).
		Suffix("ON CONFLICT (invitee_id, team_std_name) DO UPDATE SET invitee_id = EXCLUDED.invitee_id RETURNING created_at")
}

// UpsertInvite creates the invite unless it already exists. An unknown team
// yields store.ErrNotFound.
func (s *Store) UpsertInvite(ctx context.Context, inviteeID, teamStdName string) (*models.Invite, error) {
	inv := &models.Invite{InviteeID: inviteeID, TeamStdName: teamStdName}
	if _, err := s.row(ctx, upsertInviteQuery(inviteeID, teamStdName), &inv.CreatedAt); err != nil {
		return nil, err
	}
	return inv, nil
}

func selectInvites() sq.SelectBuilder {
	return psql.Select("i.invitee_id", "i.team_std_name", "i.created_at",
		"t.std_name", "t.display_name", "t.category_id", "t.text_channel_id", "t.voice_channel_id", "t.created_at").
		From("invites i").
		Join("teams t ON t.std_name = i.team_std_name")
}

type inviteRow struct {
	inv  models.Invite
	team models.Team
}

func (r *inviteRow) dest() []any {
	return append([]any{&r.inv.InviteeID, &r.inv.TeamStdName, &r.inv.CreatedAt}, teamDest(&r.team)...)
}

func (r *inviteRow) invite() *models.Invite {
	inv := r.inv
	team := r.team
	inv.Team = &team
	return &inv
}

// GetInvite returns an invite with its team, or nil if either is gone.
func (s *Store) GetInvite(ctx context.Context, inviteeID, teamStdName string) (*models.Invite, error) {
	var r inviteRow
	ok, err := s.row(ctx, selectInvites().Where(sq.Eq{"i.invitee_id": inviteeID, "i.team_std_name": teamStdName}), r.dest()...)
	if err != nil || !ok {
		return nil, err
	}
	return r.invite(), nil
}

// DeleteInvite consumes an invite.
func (s *Store) DeleteInvite(ctx context.Context, inviteeID, teamStdName string) error {
	return affected(s.exec(ctx, psql.Delete("invites").Where(sq.Eq{"invitee_id": inviteeID, "team_std_name": teamStdName})))
}

// ListHackerInvites returns a user's pending invites, newest first.
func (s *Store) ListHackerInvites(ctx context.Context, discordID string) ([]*models.Invite, error) {
	rows, err := s.query(ctx, selectInvites().Where(sq.Eq{"i.invitee_id": discordID}).OrderBy("i.created_at DESC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Invite
	for rows.Next() {
		var r inviteRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		list = append(list, r.invite())
	}
	return list, rows.Err()
}
