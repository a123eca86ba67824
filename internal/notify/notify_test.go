package notify

import (
	"strings"
	"testing"

	"github.com/akalogirou/weft/internal/config"
	"github.com/akalogirou/weft/internal/events"
)

func TestNewDisabledWithoutToken(t *testing.T) {
	n, err := New(config.NotifyConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != nil {
		t.Error("expected nil notifier without token")
	}
}

func TestNewRequiresChatID(t *testing.T) {
	_, err := New(config.NotifyConfig{TelegramToken: "123:abc"})
	if err == nil {
		t.Error("expected error for token without chat_id")
	}
}

func TestFormatRunFinished(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{"completed", "✅ run completed"},
		{"partially_failed", "⚠️ run partially failed"},
		{"failed", "❌ run failed"},
	}
	for _, tc := range cases {
		msg := FormatRunFinished(events.Event{
			Type:  events.RunFinished,
			RunID: "run-1",
			Payload: map[string]any{
				"status":    tc.status,
				"artifacts": float64(3),
			},
		})
		if !strings.HasPrefix(msg, tc.want) {
			t.Errorf("status %s: expected prefix %q, got %q", tc.status, tc.want, msg)
		}
		if !strings.Contains(msg, "run-1") {
			t.Errorf("status %s: expected run id in message, got %q", tc.status, msg)
		}
		if !strings.Contains(msg, "artifacts: 3") {
			t.Errorf("status %s: expected artifact count, got %q", tc.status, msg)
		}
	}
}

func TestChunkMessage(t *testing.T) {
	chunks := chunkMessage("hello", 4096)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}

	// Exactly at the limit stays whole.
	chunks = chunkMessage(strings.Repeat("a", 4096), 4096)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk for exact limit, got %d", len(chunks))
	}

	chunks = chunkMessage(strings.Repeat("a", 8192), 4096)
	if len(chunks) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(chunks))
	}

	// Prefers a newline boundary past the halfway point.
	text := strings.Repeat("a", 3000) + "\n" + strings.Repeat("a", 1999)
	chunks = chunkMessage(text, 4096)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks with newline split, got %d", len(chunks))
	}
	if len(chunks[0]) != 3001 {
		t.Errorf("expected first chunk length 3001, got %d", len(chunks[0]))
	}
}
