package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/core/ports"
)

const defaultBatchSize = 64

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Index stores passage embeddings in a Postgres table and ranks them by cosine distance.
type Index struct {
	db        *sql.DB
	table     string
	embedder  ports.Embedder
	batchSize int
}

func New(db *sql.DB, table string, embedder ports.Embedder) (*Index, error) {
	if !identifierPattern.MatchString(table) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "pgvector index", fmt.Errorf("invalid table name %q", table))
	}
	return &Index{db: db, table: table, embedder: embedder, batchSize: defaultBatchSize}, nil
}

func (i *Index) IndexExists(ctx context.Context) (bool, error) {
	var exists bool
	if err := i.db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, i.table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check pgvector table: %w", err)
	}
	if !exists {
		return false, nil
	}
	var count int
	if err := i.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, i.table)).Scan(&count); err != nil {
		return false, fmt.Errorf("count pgvector rows: %w", err)
	}
	return count > 0, nil
}

// BuildIndex embeds every passage before touching the table, then swaps contents in one transaction.
func (i *Index) BuildIndex(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return fmt.Errorf("pgvector build: empty collection")
	}

	vectors := make([][]float32, 0, len(passages))
	for start := 0; start < len(passages); start += i.batchSize {
		batch := passages[start:min(start+i.batchSize, len(passages))]
		texts := make([]string, 0, len(batch))
		for _, p := range batch {
			texts = append(texts, p.Text)
		}
		out, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed passages: %w", err)
		}
		if len(out) != len(batch) {
			return fmt.Errorf("embed passages: got %d vectors for %d passages", len(out), len(batch))
		}
		vectors = append(vectors, out...)
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pgvector build: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
DROP TABLE IF EXISTS %[1]s;
CREATE TABLE %[1]s (
	passage_id TEXT PRIMARY KEY,
	ord INTEGER NOT NULL,
	embedding vector(%[2]d) NOT NULL
);
`, i.table, len(vectors[0]))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create pgvector table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (passage_id, ord, embedding) VALUES ($1, $2, $3)`, i.table))
	if err != nil {
		return fmt.Errorf("prepare pgvector insert: %w", err)
	}
	defer stmt.Close()

	for n, p := range passages {
		if _, err := stmt.ExecContext(ctx, p.ID, n, pgvector.NewVector(vectors[n])); err != nil {
			return fmt.Errorf("insert embedding %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pgvector build: %w", err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, query string, topK int) ([]domain.RetrievalHit, error) {
	vector, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf(`
SELECT passage_id, 1 - (embedding <=> $1) AS score
FROM %s
ORDER BY embedding <=> $1, ord
LIMIT $2
`, i.table), pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievalHit, 0, topK)
	for rows.Next() {
		var hit domain.RetrievalHit
		if err := rows.Scan(&hit.PassageID, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan pgvector hit: %w", err)
		}
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pgvector hits: %w", err)
	}
	return out, nil
}
