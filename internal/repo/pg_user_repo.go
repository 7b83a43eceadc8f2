package repo

import (
	"context"
	"errors"

	dom "taskboard/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGUserRepo implements UserRepo with Postgres.
type PGUserRepo struct {
	db *pgxpool.Pool
}

// NewPGUserRepo returns a new PGUserRepo.
func NewPGUserRepo(db *pgxpool.Pool) *PGUserRepo {
	return &PGUserRepo{db: db}
}

func (r *PGUserRepo) FindByID(ctx context.Context, id int64) (dom.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *PGUserRepo) FindByEmail(ctx context.Context, email string) (dom.User, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

func (r *PGUserRepo) findOne(ctx context.Context, where string, arg any) (dom.User, error) {
	var u dom.User
	err := r.db.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users `+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return dom.User{}, ErrNotFound
	}
	return u, err
}

// List returns every user ordered by id. password_hash is never selected.
func (r *PGUserRepo) List(ctx context.Context) ([]dom.User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, username, email, created_at FROM users ORDER BY id`)
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

// Create inserts a new user and returns it. A taken email yields ErrDuplicate.
func (r *PGUserRepo) Create(ctx context.Context, username, email, passwordHash string) (dom.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, email, password_hash, created_at`
	var u dom.User
	err := r.db.QueryRow(ctx, query, username, email, passwordHash).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt,
	)
	if isPGUniqueViolation(err) {
		return dom.User{}, ErrDuplicate
	}
	return u, err
}

// isPGUniqueViolation reports a unique constraint violation (SQLSTATE 23505).
func isPGUniqueViolation(err error) bool {
	var pge *pgconn.PgError
	return errors.As(err, &pge) && pge.Code == "23505"
}
