package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	dom "taskboard/internal/domain"

	"github.com/mattn/go-sqlite3"
)

// OpenSQLite opens (creating if needed) the database at path and migrates it.
// The pool is limited to one connection; SQLite serializes writers anyway.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if err := Migrate(db, "sqlite3"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteStore returns the repositories backed by db.
func NewSQLiteStore(db *sql.DB) Store {
	return Store{
		Tasks:      &SQLiteTaskRepo{db: db},
		Users:      &SQLiteUserRepo{db: db},
		Workspaces: &SQLiteWorkspaceRepo{db: db},
		Close:      func() { _ = db.Close() },
	}
}

type SQLiteTaskRepo struct {
	db *sql.DB
}

const sqliteTaskSelect = `
	SELECT t.id, t.workspace_id, t.title, t.description, t.status,
		t.assigned_to, COALESCE(u.username, ''), t.created_at, t.updated_at
	FROM tasks t LEFT JOIN users u ON u.id = t.assigned_to`

func (r *SQLiteTaskRepo) Find(ctx context.Context, id string) (dom.Task, error) {
	t, err := scanSQLiteTask(r.db.QueryRowContext(ctx, sqliteTaskSelect+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return dom.Task{}, ErrNotFound
	}
	return t, err
}

func (r *SQLiteTaskRepo) List(ctx context.Context, workspaceID int64) ([]dom.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		sqliteTaskSelect+` WHERE t.workspace_id = ? ORDER BY t.created_at, t.id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []dom.Task{}
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *SQLiteTaskRepo) Save(ctx context.Context, t dom.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, workspace_id, title, description, status, assigned_to, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			assigned_to = excluded.assigned_to,
			updated_at = excluded.updated_at`,
		t.ID, t.WorkspaceID, t.Title, t.Description, string(t.Status),
		t.AssigneeID(), t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	return err
}

func (r *SQLiteTaskRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row sqlScanner) (dom.Task, error) {
	var (
		t          dom.Task
		status     string
		assigneeID sql.NullInt64
		username   string
	)
	if err := row.Scan(
		&t.ID, &t.WorkspaceID, &t.Title, &t.Description, &status,
		&assigneeID, &username, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return dom.Task{}, err
	}
	t.Status = dom.TaskStatus(status)
	if assigneeID.Valid {
		t.AssignedTo = &dom.UserRef{ID: assigneeID.Int64, Username: username}
	}
	return t, nil
}

type SQLiteUserRepo struct {
	db *sql.DB
}

func (r *SQLiteUserRepo) FindByID(ctx context.Context, id int64) (dom.User, error) {
	return r.findOne(ctx, `WHERE id = ?`, id)
}

func (r *SQLiteUserRepo) FindByEmail(ctx context.Context, email string) (dom.User, error) {
	return r.findOne(ctx, `WHERE email = ?`, email)
}

func (r *SQLiteUserRepo) findOne(ctx context.Context, where string, arg any) (dom.User, error) {
	var u dom.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dom.User{}, ErrNotFound
	}
	return u, err
}

func (r *SQLiteUserRepo) List(ctx context.Context) ([]dom.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, email, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []dom.User{}
	for rows.Next() {
		var u dom.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (r *SQLiteUserRepo) Create(ctx context.Context, username, email, passwordHash string) (dom.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash,
	)
	if isSQLiteUniqueViolation(err) {
		return dom.User{}, ErrDuplicate
	}
	if err != nil {
		return dom.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return dom.User{}, err
	}
	return r.FindByID(ctx, id)
}

type SQLiteWorkspaceRepo struct {
	db *sql.DB
}

func (r *SQLiteWorkspaceRepo) FindByName(ctx context.Context, name string) (dom.Workspace, error) {
	return loadSQLiteWorkspace(ctx, r.db, name)
}

func (r *SQLiteWorkspaceRepo) Save(ctx context.Context, ws dom.Workspace) (dom.Workspace, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dom.Workspace{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO workspaces (name) VALUES (?)`, ws.Name); err != nil {
		return dom.Workspace{}, err
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM workspaces WHERE name = ?`, ws.Name).Scan(&id); err != nil {
		return dom.Workspace{}, err
	}
	for _, userID := range ws.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO workspace_members (workspace_id, user_id) VALUES (?, ?)`, id, userID,
		); err != nil {
			return dom.Workspace{}, err
		}
	}
	out, err := loadSQLiteWorkspace(ctx, tx, ws.Name)
	if err != nil {
		return dom.Workspace{}, err
	}
	return out, tx.Commit()
}

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadSQLiteWorkspace(ctx context.Context, q sqlQuerier, name string) (dom.Workspace, error) {
	var ws dom.Workspace
	err := q.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM workspaces WHERE name = ?`, name,
	).Scan(&ws.ID, &ws.Name, &ws.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dom.Workspace{}, ErrNotFound
	}
	if err != nil {
		return dom.Workspace{}, err
	}
	rows, err := q.QueryContext(ctx,
		`SELECT user_id FROM workspace_members WHERE workspace_id = ? ORDER BY joined_at, rowid`, ws.ID,
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

func isSQLiteUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
