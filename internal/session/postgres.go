package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haasonsaas/helmsman/internal/apperr"
	"github.com/haasonsaas/helmsman/pkg/models"
)

// schema keeps scalar fields queryable and folds the nested collections
// into JSONB. Sessions are small enough that rewriting a JSONB column
// per update is cheaper than normalizing events into their own table.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                   TEXT PRIMARY KEY,
	title                TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL,
	latest_message       TEXT NOT NULL DEFAULT '',
	latest_message_at    TIMESTAMPTZ,
	unread_message_count INT NOT NULL DEFAULT 0,
	task_id              TEXT NOT NULL DEFAULT '',
	sandbox_id           TEXT NOT NULL DEFAULT '',
	events               JSONB NOT NULL DEFAULT '[]',
	files                JSONB NOT NULL DEFAULT '[]',
	memories             JSONB NOT NULL DEFAULT '{}',
	plans                JSONB NOT NULL DEFAULT '[]',
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_updated_at_idx ON sessions (updated_at DESC);
`

// PostgresRepository persists sessions in a single sessions table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects, verifies the connection, and applies
// the schema.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() { r.pool.Close() }

func (r *PostgresRepository) Save(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now()
	events, files, memories, plans, err := marshalCollections(session)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO sessions (id, title, status, latest_message, latest_message_at,
			unread_message_count, task_id, sandbox_id, events, files, memories, plans,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			latest_message = EXCLUDED.latest_message,
			latest_message_at = EXCLUDED.latest_message_at,
			unread_message_count = EXCLUDED.unread_message_count,
			task_id = EXCLUDED.task_id,
			sandbox_id = EXCLUDED.sandbox_id,
			events = EXCLUDED.events,
			files = EXCLUDED.files,
			memories = EXCLUDED.memories,
			plans = EXCLUDED.plans,
			updated_at = EXCLUDED.updated_at`,
		session.ID, session.Title, session.Status, session.LatestMessage, session.LatestMessageAt,
		session.UnreadMessageCount, session.TaskID, session.SandboxID, events, files, memories, plans,
		session.CreatedAt, session.UpdatedAt)
	return err
}

const sessionColumns = `id, title, status, latest_message, latest_message_at,
	unread_message_count, task_id, sandbox_id, events, files, memories, plans,
	created_at, updated_at`

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("session %s not found", id)
	}
	return session, err
}

func (r *PostgresRepository) GetAll(ctx context.Context) ([]*models.Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	return r.exec(ctx, id, `UPDATE sessions SET status = $2, updated_at = now() WHERE id = $1`, status)
}

func (r *PostgresRepository) UpdateTitle(ctx context.Context, id, title string) error {
	return r.exec(ctx, id, `UPDATE sessions SET title = $2, updated_at = now() WHERE id = $1`, title)
}

func (r *PostgresRepository) UpdateLatestMessage(ctx context.Context, id, message string, at time.Time) error {
	return r.exec(ctx, id,
		`UPDATE sessions SET latest_message = $2, latest_message_at = $3, updated_at = now() WHERE id = $1`,
		message, at)
}

func (r *PostgresRepository) IncrementUnread(ctx context.Context, id string) error {
	return r.exec(ctx, id,
		`UPDATE sessions SET unread_message_count = unread_message_count + 1, updated_at = now() WHERE id = $1`)
}

func (r *PostgresRepository) ClearUnread(ctx context.Context, id string) error {
	return r.exec(ctx, id,
		`UPDATE sessions SET unread_message_count = 0, updated_at = now() WHERE id = $1`)
}

func (r *PostgresRepository) AddEvent(ctx context.Context, id string, event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.exec(ctx, id,
		`UPDATE sessions SET events = events || $2::jsonb, updated_at = now() WHERE id = $1`,
		payload)
}

func (r *PostgresRepository) SavePlan(ctx context.Context, id string, plan *models.Plan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	// Drop any stored version of this plan, then append the new one.
	return r.exec(ctx, id, `
		UPDATE sessions SET plans = (
			SELECT COALESCE(jsonb_agg(p), '[]'::jsonb)
			FROM jsonb_array_elements(plans) AS p
			WHERE p->>'id' <> $3
		) || $2::jsonb, updated_at = now()
		WHERE id = $1`,
		payload, plan.ID)
}

func (r *PostgresRepository) AddFile(ctx context.Context, id string, file *models.File) error {
	payload, err := json.Marshal(file)
	if err != nil {
		return err
	}
	return r.exec(ctx, id,
		`UPDATE sessions SET files = files || $2::jsonb, updated_at = now() WHERE id = $1`,
		payload)
}

func (r *PostgresRepository) RemoveFile(ctx context.Context, id, fileID string) error {
	return r.exec(ctx, id, `
		UPDATE sessions SET files = (
			SELECT COALESCE(jsonb_agg(f), '[]'::jsonb)
			FROM jsonb_array_elements(files) AS f
			WHERE f->>'id' <> $2
		), updated_at = now()
		WHERE id = $1`,
		fileID)
}

func (r *PostgresRepository) GetFileByPath(ctx context.Context, id, filepath string) (*models.File, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `
		SELECT f FROM sessions, jsonb_array_elements(files) AS f
		WHERE sessions.id = $1 AND f->>'filepath' = $2
		LIMIT 1`,
		id, filepath).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("file %s not found in session %s", filepath, id)
	}
	if err != nil {
		return nil, err
	}
	var file models.File
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *PostgresRepository) SaveMemory(ctx context.Context, id, name string, memory *models.Memory) error {
	payload, err := json.Marshal(memory)
	if err != nil {
		return err
	}
	return r.exec(ctx, id,
		`UPDATE sessions SET memories = jsonb_set(memories, ARRAY[$2], $3::jsonb), updated_at = now() WHERE id = $1`,
		name, payload)
}

func (r *PostgresRepository) GetMemory(ctx context.Context, id, name string) (*models.Memory, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT memories->$2 FROM sessions WHERE id = $1`, id, name).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("session %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	memory := &models.Memory{}
	if len(payload) == 0 {
		return memory, nil
	}
	if err := json.Unmarshal(payload, memory); err != nil {
		return nil, err
	}
	return memory, nil
}

// exec runs a statement that must touch exactly one session.
func (r *PostgresRepository) exec(ctx context.Context, id, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("session %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s                             models.Session
		events, files, memories, plans []byte
		latestMessageAt               *time.Time
	)
	err := row.Scan(&s.ID, &s.Title, &s.Status, &s.LatestMessage, &latestMessageAt,
		&s.UnreadMessageCount, &s.TaskID, &s.SandboxID, &events, &files, &memories, &plans,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if latestMessageAt != nil {
		s.LatestMessageAt = *latestMessageAt
	}
	if err := json.Unmarshal(events, &s.Events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	if err := json.Unmarshal(files, &s.Files); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}
	if err := json.Unmarshal(memories, &s.Memories); err != nil {
		return nil, fmt.Errorf("decode memories: %w", err)
	}
	if err := json.Unmarshal(plans, &s.Plans); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	return &s, nil
}

func marshalCollections(s *models.Session) (events, files, memories, plans []byte, err error) {
	if events, err = marshalOr(s.Events, "[]"); err != nil {
		return
	}
	if files, err = marshalOr(s.Files, "[]"); err != nil {
		return
	}
	if memories, err = marshalOr(s.Memories, "{}"); err != nil {
		return
	}
	plans, err = marshalOr(s.Plans, "[]")
	return
}

func marshalOr[T any](v T, empty string) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(payload) == "null" {
		return []byte(empty), nil
	}
	return payload, nil
}
