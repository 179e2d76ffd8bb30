package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ClockTool reports dates and times. Now is injectable so tests can pin
// the clock.
type ClockTool struct {
	Now func() time.Time
}

func NewClockTool() *ClockTool {
	return &ClockTool{Now: time.Now}
}

func (c *ClockTool) Name() string {
	return "clock"
}

func (c *ClockTool) Description() string {
	return "Get the current date and time, a date offset by days or hours, or detailed time info (timezone, unix timestamp, ISO week)."
}

func (c *ClockTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"now", "offset", "detail"},
				"description": "now: current time; offset: time shifted by days/hours; detail: extended time info",
			},
			"days": map[string]any{
				"type":        "integer",
				"description": "Day offset for 'offset' (negative for past)",
			},
			"hours": map[string]any{
				"type":        "integer",
				"description": "Hour offset for 'offset' (negative for past)",
			},
		},
		"required": []string{"action"},
	}
}

func (c *ClockTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Action string `json:"action"`
		Days   int    `json:"days"`
		Hours  int    `json:"hours"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	now := c.Now()

	switch args.Action {
	case "now", "":
		return fmt.Sprintf("Current time: %s (%s)",
			now.Format("2006-01-02 15:04:05"), now.Weekday()), nil
	case "offset":
		shifted := now.AddDate(0, 0, args.Days).Add(time.Duration(args.Hours) * time.Hour)
		return fmt.Sprintf("Time with offset of %d days and %d hours: %s (%s)",
			args.Days, args.Hours, shifted.Format("2006-01-02 15:04:05"), shifted.Weekday()), nil
	case "detail":
		zone, offset := now.Zone()
		year, week := now.ISOWeek()
		return fmt.Sprintf(
			"Local time: %s\nWeekday: %s\nTimezone: %s (UTC%+d)\nUnix timestamp: %d\nISO week: %d of %d\nDay of year: %d",
			now.Format("2006-01-02 15:04:05"), now.Weekday(), zone, offset/3600,
			now.Unix(), week, year, now.YearDay()), nil
	default:
		return "Invalid action. Use 'now', 'offset', or 'detail'", nil
	}
}
