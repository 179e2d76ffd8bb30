package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func fixedClock() *ClockTool {
	return &ClockTool{
		Now: func() time.Time {
			return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
		},
	}
}

func TestClockTool_Now(t *testing.T) {
	out, err := fixedClock().Execute(context.Background(), `{"action": "now"}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "2025-03-14 09:26:53") {
		t.Errorf("missing timestamp: %s", out)
	}
	if !strings.Contains(out, "Friday") {
		t.Errorf("missing weekday: %s", out)
	}
}

func TestClockTool_Offset(t *testing.T) {
	out, err := fixedClock().Execute(context.Background(), `{"action": "offset", "days": -1, "hours": 2}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "2025-03-13 11:26:53") {
		t.Errorf("wrong shifted time: %s", out)
	}
}

func TestClockTool_Detail(t *testing.T) {
	out, err := fixedClock().Execute(context.Background(), `{"action": "detail"}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for _, want := range []string{"Unix timestamp:", "ISO week:", "Timezone:"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in: %s", want, out)
		}
	}
}

func TestClockTool_BadInput(t *testing.T) {
	if _, err := fixedClock().Execute(context.Background(), `not json`); err == nil {
		t.Error("expected error for invalid input")
	}

	out, err := fixedClock().Execute(context.Background(), `{"action": "explode"}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "Invalid action") {
		t.Errorf("unknown action must be reported in output: %s", out)
	}
}
