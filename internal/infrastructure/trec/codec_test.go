package trec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

func TestFormatRunLayout(t *testing.T) {
	run := domain.RankedRun{Name: "vicroads-dense", Entries: []domain.RunEntry{
		{QueryID: "Q1", PassageID: "P7", Rank: 1, Score: 0.5, Tag: "vicroads-dense"},
		{QueryID: "Q1", PassageID: "P3", Rank: 2, Score: 0.25},
	}}
	var buf bytes.Buffer
	if err := NewCodec().FormatRun(&buf, run); err != nil {
		t.Fatalf("FormatRun() error = %v", err)
	}
	want := "Q1 Q0 P7 1 0.500000 vicroads-dense\nQ1 Q0 P3 2 0.250000 vicroads-dense\n"
	if buf.String() != want {
		t.Fatalf("FormatRun() = %q, want %q", buf.String(), want)
	}
}

func TestFormatJudgmentsLayout(t *testing.T) {
	var buf bytes.Buffer
	err := NewCodec().FormatJudgments(&buf, []domain.RelevanceJudgment{
		{QueryID: "Q1", PassageID: "P1", Score: 1},
		{QueryID: "Q2", PassageID: "P9", Score: 0},
	})
	if err != nil {
		t.Fatalf("FormatJudgments() error = %v", err)
	}
	if buf.String() != "Q1 0 P1 1\nQ2 0 P9 0" {
		t.Fatalf("unexpected qrels %q", buf.String())
	}
}

func TestRunRoundTripThroughFile(t *testing.T) {
	codec := NewCodec()
	run := domain.RankedRun{Name: "vicroads-lexical", Entries: []domain.RunEntry{
		{QueryID: "Q1", PassageID: "P1", Rank: 1, Score: 12.5, Tag: "vicroads-lexical"},
		{QueryID: "Q2", PassageID: "P2", Rank: 1, Score: 3, Tag: "vicroads-lexical"},
	}}
	var buf bytes.Buffer
	if err := codec.FormatRun(&buf, run); err != nil {
		t.Fatalf("FormatRun() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "vicroads-lexical.txt")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write run: %v", err)
	}

	exists, err := codec.RunExists(context.Background(), path)
	if err != nil || !exists {
		t.Fatalf("RunExists() = %v, %v", exists, err)
	}
	got, err := codec.LoadRun(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadRun() error = %v", err)
	}
	if got.Name != "vicroads-lexical" || len(got.Entries) != 2 || got.Entries[0] != run.Entries[0] {
		t.Fatalf("unexpected run: %+v", got)
	}
}

func TestRunExistsMissing(t *testing.T) {
	exists, err := NewCodec().RunExists(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	if err != nil || exists {
		t.Fatalf("expected missing file, got %v, %v", exists, err)
	}
}

func TestParseJudgmentsMalformed(t *testing.T) {
	cases := []string{
		"Q1 0 P1 high\n",
		"Q1 0 P1\n",
		"Q1 0 P1 -2\n",
	}
	for _, input := range cases {
		_, err := ParseJudgments(context.Background(), strings.NewReader(input))
		if !errors.Is(err, domain.ErrMalformedJudgments) {
			t.Fatalf("expected ErrMalformedJudgments for %q, got %v", input, err)
		}
	}
}

func TestParseJudgmentsSkipsBlankLines(t *testing.T) {
	got, err := ParseJudgments(context.Background(), strings.NewReader("Q1 0 P1 1\n\n  Q2\t0\tP2\t2\n"))
	if err != nil {
		t.Fatalf("ParseJudgments() error = %v", err)
	}
	if len(got) != 2 || got[1].QueryID != "Q2" || got[1].Score != 2 {
		t.Fatalf("unexpected judgments: %+v", got)
	}
}

func TestParseRunRejectsBadScore(t *testing.T) {
	_, err := ParseRun(context.Background(), strings.NewReader("Q1 Q0 P1 1 abc tag\n"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
