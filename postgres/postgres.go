// Package postgres persists post aggregates and users in PostgreSQL. A
// post and its embedded likes and comments are written as one unit inside
// a transaction, guarded by a version-conditional update.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/devconnecthq/devconnect/account"
	"github.com/devconnecthq/devconnect/feed"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and pings it to ensure the connection
// is working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

func byPosition(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("position ASC")
}

// LoadPost returns the aggregate with its likes and comments in sequence
// order, or feed.ErrNotFound.
func (pg *Postgres) LoadPost(ctx context.Context, id string) (feed.Post, error) {
	var p post
	err := pg.bun.NewSelect().
		Model(&p).
		Relation("Likes", byPosition).
		Relation("Comments", byPosition).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return feed.Post{}, feed.ErrNotFound
	}
	if err != nil {
		return feed.Post{}, fmt.Errorf("scan: %w", err)
	}
	return p.feedPost(), nil
}

// ListPosts returns all aggregates, newest first.
func (pg *Postgres) ListPosts(ctx context.Context) ([]feed.Post, error) {
	var rows []post
	err := pg.bun.NewSelect().
		Model(&rows).
		Relation("Likes", byPosition).
		Relation("Comments", byPosition).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]feed.Post, len(rows))
	for i, p := range rows {
		out[i] = p.feedPost()
	}
	return out, nil
}

// SavePost writes the aggregate as one unit. A version of zero inserts a
// new post; otherwise the post row is updated conditionally on the loaded
// version and the embedded rows are replaced. A lost version race yields
// feed.ErrConflict and no change.
func (pg *Postgres) SavePost(ctx context.Context, fp feed.Post) (feed.Post, error) {
	row, likes, comments := postRow(fp)
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if fp.Version == 0 {
			row.Version = 1
			if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
				return fmt.Errorf("insert post: %w", err)
			}
		} else {
			row.Version = fp.Version + 1
			res, err := tx.NewUpdate().
				Model(&row).
				WherePK().
				Where("version = ?", fp.Version).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update post: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if n == 0 {
				exists, err := tx.NewSelect().
					Model((*post)(nil)).
					Where("id = ?", fp.ID).
					Exists(ctx)
				if err != nil {
					return fmt.Errorf("exists: %w", err)
				}
				if !exists {
					return feed.ErrNotFound
				}
				return feed.ErrConflict
			}
			if _, err := tx.NewDelete().Model((*like)(nil)).Where("post_id = ?", fp.ID).Exec(ctx); err != nil {
				return fmt.Errorf("delete likes: %w", err)
			}
			if _, err := tx.NewDelete().Model((*comment)(nil)).Where("post_id = ?", fp.ID).Exec(ctx); err != nil {
				return fmt.Errorf("delete comments: %w", err)
			}
		}
		if len(likes) > 0 {
			if _, err := tx.NewInsert().Model(&likes).Exec(ctx); err != nil {
				return fmt.Errorf("insert likes: %w", err)
			}
		}
		if len(comments) > 0 {
			if _, err := tx.NewInsert().Model(&comments).Exec(ctx); err != nil {
				return fmt.Errorf("insert comments: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return feed.Post{}, err
	}
	fp.Version = row.Version
	return fp, nil
}

// DeletePost removes the aggregate and its embedded rows, or returns
// feed.ErrNotFound.
func (pg *Postgres) DeletePost(ctx context.Context, id string) error {
	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*like)(nil)).Where("post_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete likes: %w", err)
		}
		if _, err := tx.NewDelete().Model((*comment)(nil)).Where("post_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		res, err := tx.NewDelete().Model((*post)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return feed.ErrNotFound
		}
		return nil
	})
}

// InsertUser inserts a registered account.
func (pg *Postgres) InsertUser(ctx context.Context, u account.User) (account.User, error) {
	row := userRow(u)
	if _, err := pg.bun.NewInsert().Model(&row).Exec(ctx); err != nil {
		return account.User{}, fmt.Errorf("insert: %w", err)
	}
	return row.accountUser(), nil
}

// GetUser returns the account with the given id or account.ErrNotFound.
func (pg *Postgres) GetUser(ctx context.Context, id string) (account.User, error) {
	var row user
	err := pg.bun.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return account.User{}, account.ErrNotFound
	}
	if err != nil {
		return account.User{}, fmt.Errorf("scan: %w", err)
	}
	return row.accountUser(), nil
}

// GetUserByEmail returns the account registered under email or
// account.ErrNotFound.
func (pg *Postgres) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	var row user
	err := pg.bun.NewSelect().Model(&row).Where("email = ?", email).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return account.User{}, account.ErrNotFound
	}
	if err != nil {
		return account.User{}, fmt.Errorf("scan: %w", err)
	}
	return row.accountUser(), nil
}
