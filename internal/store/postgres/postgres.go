// Package postgres implements store.Store on PostgreSQL with pgx and
// squirrel-built queries.
package postgres

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/winhacks/hackbot/internal/store"
	"github.com/winhacks/hackbot/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the PostgreSQL store. The zero value is not usable; use New.
type Store struct {
	db database.Querier
	// pool is nil when the Store is bound to a transaction.
	pool database.Beginner
}

var _ store.Store = (*Store)(nil)

// New creates a store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// Transaction implements store.Store. Nested calls reuse the outer
// transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) exec(ctx context.Context, q sq.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	tag, err := s.db.Exec(ctx, sql, args...)
	return tag, mapErr(err)
}

func (s *Store) query(ctx context.Context, q sq.SelectBuilder) (pgx.Rows, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return s.db.Query(ctx, sql, args...)
}

// row runs q and scans the single result into dest. It returns false when
// no row matched.
func (s *Store) row(ctx context.Context, q sq.Sqlizer, dest ...any) (bool, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return false, err
	}
	err = s.db.QueryRow(ctx, sql, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

// mapErr translates constraint violations into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case database.UniqueViolation:
			return errors.Join(store.ErrConflict, err)
		case database.ForeignKeyViolation:
			return errors.Join(store.ErrNotFound, err)
		}
	}
	return err
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
