package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLog_WritesChannelAttributes(t *testing.T) {
	var buf bytes.Buffer
	tr := Log{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	ctx := context.Background()

	if err := tr.SendLog(ctx, "Harvest started."); err != nil {
		t.Fatalf("SendLog() error = %v", err)
	}
	if err := tr.SendResult(ctx, "New Car Found"); err != nil {
		t.Fatalf("SendResult() error = %v", err)
	}

	dec := json.NewDecoder(&buf)
	want := []struct{ channel, text string }{
		{"log", "Harvest started."},
		{"result", "New Car Found"},
	}
	for _, w := range want {
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode log entry: %v", err)
		}
		if entry["channel"] != w.channel || entry["text"] != w.text {
			t.Errorf("entry = %v, want channel=%s text=%q", entry, w.channel, w.text)
		}
	}
}
