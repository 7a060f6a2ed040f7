package corpus

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

// JSONLExporter writes one {"id","contents"} object per line, the layout external indexers consume.
type JSONLExporter struct{}

func (JSONLExporter) ExportPassages(w io.Writer, passages []domain.Passage) error {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for _, p := range passages {
		if err := enc.Encode(jsonlPassage{ID: p.ID, Contents: p.Text}); err != nil {
			return err
		}
	}
	return buf.Flush()
}
