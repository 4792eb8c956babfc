package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"taskweb/domain"
)

// PostgresSchema creates the task and note tables.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS core_task (
	id          BIGSERIAL PRIMARY KEY,
	user_email  VARCHAR(255) NOT NULL,
	title       VARCHAR(200) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority    VARCHAR(20) NOT NULL DEFAULT 'medium',
	completed   BOOLEAN NOT NULL DEFAULT FALSE,
	due_date    DATE NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS core_task_owner_created_idx ON core_task (user_email, created_at DESC);

CREATE TABLE IF NOT EXISTS core_note (
	id          BIGSERIAL PRIMARY KEY,
	user_email  VARCHAR(255) NOT NULL,
	title       VARCHAR(200) NOT NULL,
	content     TEXT NOT NULL,
	category    VARCHAR(50) NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS core_note_owner_created_idx ON core_note (user_email, created_at DESC);
`

// Postgres keeps tasks and notes in a relational database. Every statement
// filters on user_email.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens a connection pool using the pgx driver and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(10 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgres(db), nil
}

// NewPostgres wraps an existing database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate applies PostgresSchema.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, PostgresSchema)
	return err
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// parseID reports false for ids that cannot name a row, which callers treat as absent.
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = `id, user_email, title, description, priority, completed, due_date, created_at, updated_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t        domain.Task
		id       int64
		priority string
		due      sql.NullTime
	)
	if err := row.Scan(&id, &t.UserEmail, &t.Title, &t.Description, &priority, &t.Completed, &due, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Task{}, err
	}
	t.ID = strconv.FormatInt(id, 10)
	t.Priority = domain.ParsePriority(priority)
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return t, nil
}

func (p *Postgres) ListTasks(ctx context.Context, owner string) ([]domain.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM core_task WHERE user_email = $1 ORDER BY created_at DESC, id DESC`
	rows, err := p.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (p *Postgres) GetTask(ctx context.Context, owner, id string) (*domain.Task, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	const q = `SELECT ` + taskColumns + ` FROM core_task WHERE id = $1 AND user_email = $2`
	t, err := scanTask(p.db.QueryRowContext(ctx, q, n, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (p *Postgres) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	const q = `
INSERT INTO core_task (user_email, title, description, priority, completed, due_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`
	var due sql.NullTime
	if t.DueDate != nil {
		due = sql.NullTime{Time: *t.DueDate, Valid: true}
	}
	var id int64
	err := p.db.QueryRowContext(ctx, q, t.UserEmail, t.Title, t.Description, string(t.Priority), t.Completed, due, t.CreatedAt, t.UpdatedAt).Scan(&id)
	if err != nil {
		return domain.Task{}, err
	}
	t.ID = strconv.FormatInt(id, 10)
	return t, nil
}

func (p *Postgres) UpdateTask(ctx context.Context, t domain.Task) error {
	n, ok := parseID(t.ID)
	if !ok {
		return domain.ErrNotFound
	}
	const q = `UPDATE core_task SET completed = $1, updated_at = $2 WHERE id = $3 AND user_email = $4`
	res, err := p.db.ExecContext(ctx, q, t.Completed, t.UpdatedAt, n, t.UserEmail)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *Postgres) DeleteTask(ctx context.Context, owner, id string) error {
	return p.deleteRow(ctx, `DELETE FROM core_task WHERE id = $1 AND user_email = $2`, owner, id)
}

func (p *Postgres) ListNotes(ctx context.Context, owner string) ([]domain.Note, error) {
	const q = `
SELECT id, user_email, title, content, category, created_at, updated_at
FROM core_note WHERE user_email = $1 ORDER BY created_at DESC, id DESC`
	rows, err := p.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []domain.Note{}
	for rows.Next() {
		var (
			n  domain.Note
			id int64
		)
		if err := rows.Scan(&id, &n.UserEmail, &n.Title, &n.Content, &n.Category, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		n.ID = strconv.FormatInt(id, 10)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (p *Postgres) InsertNote(ctx context.Context, n domain.Note) (domain.Note, error) {
	const q = `
INSERT INTO core_note (user_email, title, content, category, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	var id int64
	if err := p.db.QueryRowContext(ctx, q, n.UserEmail, n.Title, n.Content, n.Category, n.CreatedAt, n.UpdatedAt).Scan(&id); err != nil {
		return domain.Note{}, err
	}
	n.ID = strconv.FormatInt(id, 10)
	return n, nil
}

func (p *Postgres) DeleteNote(ctx context.Context, owner, id string) error {
	return p.deleteRow(ctx, `DELETE FROM core_note WHERE id = $1 AND user_email = $2`, owner, id)
}

func (p *Postgres) deleteRow(ctx context.Context, q, owner, id string) error {
	n, ok := parseID(id)
	if !ok {
		return domain.ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, q, n, owner)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
