package pgstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

type embedderFake struct{}

func (embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for range texts {
		out = append(out, []float32{1, 0})
	}
	return out, nil
}

func (embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func TestNewRejectsUnsafeTableName(t *testing.T) {
	if _, err := New(nil, "passages; DROP TABLE x", embedderFake{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIndexExistsChecksTableAndRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	idx, err := New(db, "passage_embeddings", embedderFake{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	mock.ExpectQuery("SELECT to_regclass").WithArgs("passage_embeddings").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	exists, err := idx.IndexExists(context.Background())
	if err != nil || exists {
		t.Fatalf("expected missing table, got %v, %v", exists, err)
	}

	mock.ExpectQuery("SELECT to_regclass").WithArgs("passage_embeddings").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	exists, err = idx.IndexExists(context.Background())
	if err != nil || !exists {
		t.Fatalf("expected populated table, got %v, %v", exists, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBuildIndexRecreatesTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	idx, _ := New(db, "passage_embeddings", embedderFake{})
	mock.ExpectBegin()
	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare("INSERT INTO passage_embeddings")
	prep.ExpectExec().WithArgs("P1", 0, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("P2", 1, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	passages := []domain.Passage{{ID: "P1", Text: "a"}, {ID: "P2", Text: "b"}}
	if err := idx.BuildIndex(context.Background(), passages); err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchScansHits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	idx, _ := New(db, "passage_embeddings", embedderFake{})
	mock.ExpectQuery("ORDER BY embedding <=>").
		WithArgs(sqlmock.AnyArg(), 2).
		WillReturnRows(sqlmock.NewRows([]string{"passage_id", "score"}).AddRow("P1", 0.98).AddRow("P2", 0.5))

	hits, err := idx.Search(context.Background(), "hours", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 || hits[0].PassageID != "P1" || hits[0].Score != 0.98 {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
