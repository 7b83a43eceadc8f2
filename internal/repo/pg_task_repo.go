package repo

import (
	"context"
	"errors"

	dom "taskboard/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgTaskColumns = `
	t.id, t.workspace_id, t.title, t.description, t.status,
	t.assigned_to, COALESCE(u.username, ''), t.created_at, t.updated_at`

// NewPGStore returns the repositories backed by the pool. Close closes the pool.
func NewPGStore(db *pgxpool.Pool) Store {
	return Store{
		Tasks:      NewPGTaskRepo(db),
		Users:      NewPGUserRepo(db),
		Workspaces: NewPGWorkspaceRepo(db),
		Close:      db.Close,
	}
}

type PGTaskRepo struct {
	db *pgxpool.Pool
}

func NewPGTaskRepo(db *pgxpool.Pool) *PGTaskRepo {
	return &PGTaskRepo{db: db}
}

func (r *PGTaskRepo) Find(ctx context.Context, id string) (dom.Task, error) {
	query := `SELECT ` + pgTaskColumns + `
		FROM tasks t LEFT JOIN users u ON u.id = t.assigned_to
		WHERE t.id = $1`
	t, err := scanTask(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return dom.Task{}, ErrNotFound
	}
	return t, err
}

func (r *PGTaskRepo) List(ctx context.Context, workspaceID int64) ([]dom.Task, error) {
	query := `SELECT ` + pgTaskColumns + `
		FROM tasks t LEFT JOIN users u ON u.id = t.assigned_to
		WHERE t.workspace_id = $1
		ORDER BY t.created_at, t.id`
	rows, err := r.db.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []dom.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *PGTaskRepo) Save(ctx context.Context, t dom.Task) error {
	query := `
		INSERT INTO tasks (id, workspace_id, title, description, status, assigned_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			assigned_to = EXCLUDED.assigned_to,
			updated_at = EXCLUDED.updated_at`
	_, err := r.db.Exec(ctx, query,
		t.ID, t.WorkspaceID, t.Title, t.Description, string(t.Status),
		t.AssigneeID(), t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *PGTaskRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (dom.Task, error) {
	var (
		t          dom.Task
		status     string
		assigneeID *int64
		username   string
	)
	err := row.Scan(
		&t.ID, &t.WorkspaceID, &t.Title, &t.Description, &status,
		&assigneeID, &username, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return dom.Task{}, err
	}
	t.Status = dom.TaskStatus(status)
	if assigneeID != nil {
		t.AssignedTo = &dom.UserRef{ID: *assigneeID, Username: username}
	}
	return t, nil
}
