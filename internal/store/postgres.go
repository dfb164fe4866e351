package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/task"
	"github.com/fyrsmithlabs/taskd/internal/user"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id         TEXT PRIMARY KEY,
    email      TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    completed   BOOLEAN NOT NULL DEFAULT FALSE,
    priority    TEXT NOT NULL DEFAULT '',
    due_date    TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    user_id     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS tasks_user_id_idx ON tasks (user_id);`

const taskColumns = `id, title, description, completed, priority, due_date, created_at, updated_at, user_id`

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Postgres stores users and tasks in two tables. Tasks reference users by
// id only; there is no foreign key, matching the document drivers.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens dsn and creates the tables if they do not exist.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t        task.Task
		priority string
		due      sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &priority, &due,
		&t.CreatedAt, &t.UpdatedAt, &t.UserID); err != nil {
		return nil, err
	}
	t.Priority = task.Priority(priority)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if due.Valid {
		d := due.Time.UTC()
		t.DueDate = &d
	}
	return &t, nil
}

func (p *Postgres) ListTasksByUser(ctx context.Context, userID string) ([]*task.Task, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetTask(ctx context.Context, id string) (*task.Task, error) {
	t, err := scanTask(p.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (p *Postgres) CreateTask(ctx context.Context, t *task.Task) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Title, t.Description, t.Completed, string(t.Priority), t.DueDate,
		t.CreatedAt, t.UpdatedAt, t.UserID,
	)
	if isUniqueViolation(err) {
		return apperr.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTask writes only the provided columns: NULL parameters leave the
// stored value in place.
func (p *Postgres) UpdateTask(ctx context.Context, id string, patch task.Patch, updatedAt time.Time) (*task.Task, error) {
	var priority *string
	if patch.Priority != nil {
		v := string(*patch.Priority)
		priority = &v
	}

	t, err := scanTask(p.db.QueryRowContext(ctx, `
UPDATE tasks SET
    title       = COALESCE($2, title),
    description = COALESCE($3, description),
    completed   = COALESCE($4, completed),
    priority    = COALESCE($5, priority),
    due_date    = COALESCE($6, due_date),
    updated_at  = $7
WHERE id = $1
RETURNING `+taskColumns,
		id, patch.Title, patch.Description, patch.Completed, priority, patch.DueDate, updatedAt,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (p *Postgres) DeleteTask(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n == 0 {
		return apperr.ErrRecordNotFound
	}
	return nil
}

func (p *Postgres) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return p.findUser(ctx, `SELECT id, email, created_at FROM users WHERE email = $1`, email)
}

func (p *Postgres) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	return p.findUser(ctx, `SELECT id, email, created_at FROM users WHERE id = $1`, id)
}

func (p *Postgres) findUser(ctx context.Context, query, arg string) (*user.User, error) {
	var u user.User
	err := p.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *user.User) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)`,
		u.ID, u.Email, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close(context.Context) error {
	return p.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
