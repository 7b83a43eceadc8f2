package repo

import (
	"context"
	"errors"

	dom "taskboard/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGWorkspaceRepo implements WorkspaceRepo with Postgres.
type PGWorkspaceRepo struct {
	db *pgxpool.Pool
}

func NewPGWorkspaceRepo(db *pgxpool.Pool) *PGWorkspaceRepo {
	return &PGWorkspaceRepo{db: db}
}

func (r *PGWorkspaceRepo) FindByName(ctx context.Context, name string) (dom.Workspace, error) {
	return loadPGWorkspace(ctx, r.db, name)
}

// Save upserts by name and enrolls members in one transaction. Concurrent
// callers converge on the same row thanks to the unique name and ON CONFLICT.
func (r *PGWorkspaceRepo) Save(ctx context.Context, ws dom.Workspace) (dom.Workspace, error) {
	var out dom.Workspace
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO workspaces (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
			ws.Name,
		); err != nil {
			return err
		}
		var id int64
		if err := tx.QueryRow(ctx, `SELECT id FROM workspaces WHERE name = $1`, ws.Name).Scan(&id); err != nil {
			return err
		}
		for _, userID := range ws.Members {
			if _, err := tx.Exec(ctx,
				`INSERT INTO workspace_members (workspace_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				id, userID,
			); err != nil {
				return err
			}
		}
		var err error
		out, err = loadPGWorkspace(ctx, tx, ws.Name)
		return err
	})
	return out, err
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadPGWorkspace(ctx context.Context, q pgQuerier, name string) (dom.Workspace, error) {
	var ws dom.Workspace
	err := q.QueryRow(ctx,
		`SELECT id, name, created_at FROM workspaces WHERE name = $1`, name,
	).Scan(&ws.ID, &ws.Name, &ws.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return dom.Workspace{}, ErrNotFound
	}
	if err != nil {
		return dom.Workspace{}, err
	}
	rows, err := q.Query(ctx,
		`SELECT user_id FROM workspace_members WHERE workspace_id = $1 ORDER BY joined_at, user_id`, ws.ID,
	)
	if err != nil {
		return dom.Workspace{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return dom.Workspace{}, err
		}
		ws.Members = append(ws.Members, id)
	}
	return ws, rows.Err()
}
