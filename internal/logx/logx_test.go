package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewStampsServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "commerce-api", "warn")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	l.Info().Msg("dropped")
	l.Warn().Str("order_id", "o1").Msg("kept")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("want exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "commerce-api" || line["message"] != "kept" || line["order_id"] != "o1" {
		t.Errorf("line: %v", line)
	}
}
