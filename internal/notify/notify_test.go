package notify

import (
	"strings"
	"testing"

	"github.com/LuuuXXX/crater-ohos/internal/callback"
)

func TestFormatMessageIncludesStatusAndEmoji(t *testing.T) {
	text := FormatMessage(callback.Payload{
		Experiment: "exp1",
		Event:      callback.ExperimentCompleted,
		Status:     "completed",
		Timestamp:  "2026-07-30T00:00:00Z",
	})
	if !strings.Contains(text, "exp1") || !strings.Contains(text, "completed") || !strings.Contains(text, "✅") {
		t.Fatalf("unexpected message: %q", text)
	}
}

func TestFormatMessageIncludesErrorAndReportURL(t *testing.T) {
	text := FormatMessage(callback.Payload{
		Experiment: "exp2",
		Event:      callback.ExperimentFailed,
		Status:     "report-failed",
		Error:      "disk full",
		ReportURL:  "https://example.com/report",
	})
	if !strings.Contains(text, "disk full") || !strings.Contains(text, "https://example.com/report") {
		t.Fatalf("unexpected message: %q", text)
	}
}

func TestEmojiForUnknownEventDefaultsToInfo(t *testing.T) {
	if got := emojiFor(callback.Event("something_else")); got != "ℹ️" {
		t.Fatalf("expected default emoji, got %q", got)
	}
}
