package engine

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/rhuss/anreicher/pkg/pipeline"
)

// formatOutput applies the template's output format to the final response
// text. JSON output is compacted, and a single object is wrapped in an
// array when the template produces multiple results. Text that is not
// valid JSON is returned unchanged.
func formatOutput(text string, t *pipeline.Template) string {
	if t.OutputFormat != pipeline.OutputFormatJSON {
		return text
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace([]byte(text))); err != nil {
		slog.Warn("final response is not valid JSON, returning it unchanged", "template", t.Name, "error", err)
		return text
	}
	out := buf.String()

	if t.Cardinality == pipeline.CardinalityMultiple && out[0] != '[' {
		return "[" + out + "]"
	}
	return out
}
