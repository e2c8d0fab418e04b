package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winhacks/hackbot/internal/models"
	"github.com/winhacks/hackbot/internal/store"
)

func TestUpsertHackerQuery(t *testing.T) {
	sql, args, err := upsertHackerQuery(&models.Hacker{
		DiscordID: "42", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
	}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO hackers (discord_id,first_name,last_name,email,verified,verified_at) VALUES ($1,$2,$3,$4,$5,NOW())")
	assert.Contains(t, sql, "ON CONFLICT (discord_id) DO UPDATE SET")
	assert.Contains(t, sql, "RETURNING team_std_name, verified_at, created_at, updated_at")
	assert.Equal(t, []any{"42", "Ada", "Lovelace", "ada@example.com", true}, args)
}

func TestUpsertInviteQuery(t *testing.T) {
	sql, args, err := upsertInviteQuery("7", "code-ninjas").ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO invites (invitee_id,team_std_name) VALUES ($1,$2) "+
			"ON CONFLICT (invitee_id, team_std_name) DO UPDATE SET invitee_id = EXCLUDED.invitee_id RETURNING created_at",
		sql)
	assert.Equal(t, []any{"7", "code-ninjas"}, args)
}

func TestListCategoriesQuery(t *testing.T) {
	sql, args, err := listCategoriesQuery().ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT c.category_id, c.created_at, COUNT(t.std_name) FROM discord_categories c "+
			"LEFT JOIN teams t ON t.category_id = c.category_id "+
			"GROUP BY c.category_id, c.created_at ORDER BY c.created_at, c.category_id",
		sql)
	assert.Empty(t, args)
}

func TestLockTeamQuery(t *testing.T) {
	sql, args, err := lockTeamQuery("code-ninjas").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT std_name FROM teams WHERE std_name = $1 FOR UPDATE", sql)
	assert.Equal(t, []any{"code-ninjas"}, args)
}

func TestSelectHackersJoinsTeam(t *testing.T) {
	sql, _, err := selectHackers().ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM hackers h LEFT JOIN teams t ON t.std_name = h.team_std_name")
	assert.Len(t, hackerColumns, 15)
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))

	unique := &pgconn.PgError{Code: "23505"}
	assert.ErrorIs(t, mapErr(unique), store.ErrConflict)

	fk := &pgconn.PgError{Code: "23503"}
	assert.ErrorIs(t, mapErr(fk), store.ErrNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapErr(other))
}

func TestAffected(t *testing.T) {
	require.ErrorIs(t, affected(pgconn.NewCommandTag("UPDATE 0"), nil), store.ErrNotFound)
	require.NoError(t, affected(pgconn.NewCommandTag("DELETE 1"), nil))

	boom := errors.New("boom")
	require.ErrorIs(t, affected(pgconn.CommandTag{}, boom), boom)
}
