package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL,
	status      TEXT NOT NULL,
	jobs        JSONB NOT NULL DEFAULT '[]',
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	claimed_by  TEXT NOT NULL DEFAULT '',
	claimed_at  TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_status_created_idx ON tasks (status, created_at, id);
`

const taskColumns = `id, title, description, status, jobs, attempts, last_error, claimed_by, claimed_at, created_at, updated_at`

// uniqueViolation is the SQLSTATE for a duplicate primary key.
const uniqueViolation = "23505"

// PostgresStore persists tasks in a single table with the job list as JSONB.
// Claim is one conditional UPDATE, so concurrent runners against the same
// database never own the same task.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, pings and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New(errors.ErrCodeStoreConfig, "postgres store requires a DSN").
			WithSuggestion("Set store.dsn in the config file or the JACINTA_DSN environment variable")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.NewStoreError("open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewStoreError("ping", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromDB wraps an existing connection pool and ensures the schema.
func NewPostgresStoreFromDB(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewStoreError("migrate", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t         task.Task
		status    string
		jobs      []byte
		claimedAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &jobs, &t.Attempts,
		&t.LastError, &t.ClaimedBy, &claimedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = task.Status(status)
	if err := json.Unmarshal(jobs, &t.Jobs); err != nil {
		return nil, errors.NewStoreError("decode jobs", err)
	}
	if t.Jobs == nil {
		t.Jobs = []task.Job{}
	}
	if claimedAt.Valid {
		at := claimedAt.Time.UTC()
		t.ClaimedAt = &at
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func encodeJobs(jobs []task.Job) ([]byte, error) {
	if jobs == nil {
		jobs = []task.Job{}
	}
	return json.Marshal(jobs)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *PostgresStore) List(ctx context.Context, status task.Status) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreError("list", err)
	}
	defer rows.Close()

	out := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errors.NewStoreError("list", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, errors.NewStoreError("get", err)
	}
	return t, nil
}

func (s *PostgresStore) Create(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return errors.NewTaskInvalidError(err.Error())
	}
	jobs, err := encodeJobs(t.Jobs)
	if err != nil {
		return errors.NewStoreError("encode jobs", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Title, t.Description, string(t.Status), jobs, t.Attempts, t.LastError,
		t.ClaimedBy, nullTime(t.ClaimedAt), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errors.NewTaskInvalidError(fmt.Sprintf("task %s already exists", t.ID))
		}
		return errors.NewStoreError("create", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, t *task.Task) error {
	jobs, err := encodeJobs(t.Jobs)
	if err != nil {
		return errors.NewStoreError("encode jobs", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET
		title = $2, description = $3, status = $4, jobs = $5, attempts = $6,
		last_error = $7, claimed_by = $8, claimed_at = $9, updated_at = $10
		WHERE id = $1`,
		t.ID, t.Title, t.Description, string(t.Status), jobs, t.Attempts,
		t.LastError, t.ClaimedBy, nullTime(t.ClaimedAt), t.UpdatedAt)
	if err != nil {
		return errors.NewStoreError("save", err)
	}
	return expectOneRow(res, t.ID)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return errors.NewStoreError("delete", err)
	}
	return expectOneRow(res, id)
}

func (s *PostgresStore) Claim(ctx context.Context, id, owner string) (*task.Task, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `UPDATE tasks
		SET status = $2, claimed_by = $3, claimed_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING `+taskColumns,
		id, string(task.StatusCurrent), owner, now, string(task.StatusPending))

	t, err := scanTask(row)
	if err == nil {
		return t, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewStoreError("claim", err)
	}

	// Distinguish a missing task from one another pass already owns.
	existing, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, alreadyClaimed(id, existing.Status)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewStoreError("rows affected", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}
