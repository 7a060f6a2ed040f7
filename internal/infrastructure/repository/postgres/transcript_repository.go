package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

const transcriptSchemaLock int64 = 2026101901

// TranscriptRepository mirrors session threads into Postgres for later review.
type TranscriptRepository struct {
	db *sql.DB
}

func NewTranscriptRepository(db *sql.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

func (r *TranscriptRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chat_threads (
	session_id TEXT NOT NULL,
	thread_id TEXT NOT NULL,
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, thread_id)
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	thread_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	FOREIGN KEY (session_id, thread_id) REFERENCES chat_threads(session_id, thread_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_thread ON chat_messages(session_id, thread_id, id);
`
	return withSchemaLock(ctx, r.db, transcriptSchemaLock, ddl)
}

func (r *TranscriptRepository) SaveThread(ctx context.Context, sessionID string, thread domain.Thread) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_threads (session_id, thread_id, name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (session_id, thread_id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
`, sessionID, thread.ID, thread.Name, now)
	if err != nil {
		return fmt.Errorf("save thread: %w", err)
	}
	return nil
}

func (r *TranscriptRepository) AppendMessage(ctx context.Context, sessionID, threadID string, msg domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_messages (session_id, thread_id, role, content, created_at)
VALUES ($1, $2, $3, $4, $5)
`, sessionID, threadID, string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *TranscriptRepository) ClearThread(ctx context.Context, sessionID, threadID string) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM chat_messages
WHERE session_id = $1 AND thread_id = $2
`, sessionID, threadID)
	if err != nil {
		return fmt.Errorf("clear thread: %w", err)
	}
	return nil
}

func (r *TranscriptRepository) DeleteThread(ctx context.Context, sessionID, threadID string) error {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM chat_threads
WHERE session_id = $1 AND thread_id = $2
`, sessionID, threadID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete thread rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrUnknownThread, "delete thread", fmt.Errorf("thread %s not stored", threadID))
	}
	return nil
}

// ListThreads returns a session transcript in creation order.
func (r *TranscriptRepository) ListThreads(ctx context.Context, sessionID string) ([]domain.Thread, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT t.thread_id, t.name, COALESCE(m.role, ''), COALESCE(m.content, ''), m.created_at
FROM chat_threads t
LEFT JOIN chat_messages m ON m.session_id = t.session_id AND m.thread_id = t.thread_id
WHERE t.session_id = $1
ORDER BY t.created_at ASC, t.thread_id ASC, m.id ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Thread, 0)
	for rows.Next() {
		var (
			threadID, name, role, content string
			createdAt                     sql.NullTime
		)
		if err := rows.Scan(&threadID, &name, &role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan thread row: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != threadID {
			out = append(out, domain.Thread{ID: threadID, Name: name, Messages: []domain.Message{}})
		}
		if role == "" {
			continue
		}
		last := &out[len(out)-1]
		last.Messages = append(last.Messages, domain.Message{
			Role:      domain.Role(role),
			Content:   content,
			CreatedAt: createdAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread rows: %w", err)
	}
	return out, nil
}
