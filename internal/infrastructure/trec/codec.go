package trec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

// Codec reads and writes whitespace-delimited TREC files:
// runs as "qid Q0 docid rank score tag" and qrels as "qid 0 docid relevance".
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) FormatRun(w io.Writer, run domain.RankedRun) error {
	buf := bufio.NewWriter(w)
	for _, e := range run.Entries {
		tag := e.Tag
		if tag == "" {
			tag = run.Name
		}
		if _, err := fmt.Fprintf(buf, "%s Q0 %s %d %s %s\n",
			e.QueryID, e.PassageID, e.Rank, strconv.FormatFloat(e.Score, 'f', 6, 64), tag); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func (c *Codec) FormatJudgments(w io.Writer, judgments []domain.RelevanceJudgment) error {
	buf := bufio.NewWriter(w)
	for i, j := range judgments {
		if i > 0 {
			if err := buf.WriteByte('\n'); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(buf, "%s 0 %s %d", j.QueryID, j.PassageID, j.Score); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func (c *Codec) RunExists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func (c *Codec) LoadJudgments(ctx context.Context, path string) ([]domain.RelevanceJudgment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open qrels: %w", err)
	}
	defer f.Close()
	return ParseJudgments(ctx, f)
}

func (c *Codec) LoadRun(ctx context.Context, path string) (domain.RankedRun, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.RankedRun{}, domain.WrapError(domain.ErrMissingRunFile, "load run", err)
		}
		return domain.RankedRun{}, fmt.Errorf("open run: %w", err)
	}
	defer f.Close()

	run, err := ParseRun(ctx, f)
	if err != nil {
		return domain.RankedRun{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if run.Name == "" {
		run.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return run, nil
}

// ParseJudgments reads qrels lines. The second column is ignored; any other malformed line fails
// the whole file.
func ParseJudgments(ctx context.Context, r io.Reader) ([]domain.RelevanceJudgment, error) {
	var out []domain.RelevanceJudgment
	err := scanLines(ctx, r, func(line int, fields []string) error {
		if len(fields) != 4 {
			return domain.WrapError(domain.ErrMalformedJudgments, "parse qrels", fmt.Errorf("line %d: expected 4 fields, got %d", line, len(fields)))
		}
		score, err := strconv.Atoi(fields[3])
		if err != nil {
			return domain.WrapError(domain.ErrMalformedJudgments, "parse qrels", fmt.Errorf("line %d: relevance %q is not an integer", line, fields[3]))
		}
		if score < 0 {
			return domain.WrapError(domain.ErrMalformedJudgments, "parse qrels", fmt.Errorf("line %d: negative relevance %d", line, score))
		}
		out = append(out, domain.RelevanceJudgment{QueryID: fields[0], PassageID: fields[2], Score: score})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseRun reads run lines. The run is named after the tag column of its first line.
func ParseRun(ctx context.Context, r io.Reader) (domain.RankedRun, error) {
	var run domain.RankedRun
	err := scanLines(ctx, r, func(line int, fields []string) error {
		if len(fields) != 6 {
			return domain.WrapError(domain.ErrInvalidInput, "parse run", fmt.Errorf("line %d: expected 6 fields, got %d", line, len(fields)))
		}
		rank, err := strconv.Atoi(fields[3])
		if err != nil {
			return domain.WrapError(domain.ErrInvalidInput, "parse run", fmt.Errorf("line %d: rank %q", line, fields[3]))
		}
		score, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return domain.WrapError(domain.ErrInvalidInput, "parse run", fmt.Errorf("line %d: score %q", line, fields[4]))
		}
		if run.Name == "" {
			run.Name = fields[5]
		}
		run.Entries = append(run.Entries, domain.RunEntry{
			QueryID:   fields[0],
			PassageID: fields[2],
			Rank:      rank,
			Score:     score,
			Tag:       fields[5],
		})
		return nil
	})
	return run, err
}

func scanLines(ctx context.Context, r io.Reader, fn func(line int, fields []string) error) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if err := fn(line, fields); err != nil {
			return err
		}
	}
	return scanner.Err()
}
