package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan         EventType = "plan"
	EventTypeStep         EventType = "step"
	EventTypeConfirmation EventType = "confirmation"
	EventTypeResume       EventType = "resume"
	EventTypeCheckpoint   EventType = "checkpoint"
	EventTypeToolCall     EventType = "tool_call"
	EventTypeToolResult   EventType = "tool_result"
	EventTypePolicyCheck  EventType = "policy_check"
	EventTypeFallback     EventType = "fallback"
	EventTypeLLM          EventType = "llm"
	EventTypeSweep        EventType = "sweep"
	EventTypeHeartbeat    EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Step      int       `json:"step,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger emits structured JSON events to its output and mirrors LLM
// exchanges into a size-rotated jsonl file.
type Logger struct {
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return NewLoggerWith(os.Stdout, filepath.Join("logs", "events.jsonl"))
}

// NewLoggerWith directs events to out; llmLogPath may be empty to skip
// the file mirror.
func NewLoggerWith(out io.Writer, llmLogPath string) *Logger {
	return &Logger{
		out:        out,
		llmLogPath: llmLogPath,
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Fprintf(l.out, "{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(sessionID string, steps int) {
	l.Log(Event{
		Type:      EventTypePlan,
		SessionID: sessionID,
		Data:      map[string]any{"steps": steps},
	})
}

// LogStep records a step lifecycle change; duration is zero for
// "started".
func (l *Logger) LogStep(sessionID string, index int, status string, duration float64) {
	l.Log(Event{
		Type:      EventTypeStep,
		SessionID: sessionID,
		Step:      index + 1,
		Data: map[string]any{
			"status":   status,
			"duration": duration,
		},
	})
}

func (l *Logger) LogConfirmation(sessionID string, index int, reason string) {
	l.Log(Event{
		Type:      EventTypeConfirmation,
		SessionID: sessionID,
		Step:      index + 1,
		Data:      map[string]string{"reason": reason},
	})
}

func (l *Logger) LogResume(sessionID string, index int) {
	l.Log(Event{
		Type:      EventTypeResume,
		SessionID: sessionID,
		Step:      index + 1,
		Data:      map[string]string{"status": "resumed"},
	})
}

// LogCheckpoint records a persisted snapshot and feeds the terminal
// dashboard's session tracker.
func (l *Logger) LogCheckpoint(sessionID, status string) {
	TrackSession(sessionID, status)
	l.Log(Event{
		Type:      EventTypeCheckpoint,
		SessionID: sessionID,
		Data:      map[string]string{"status": status},
	})
}

func (l *Logger) LogToolCall(sessionID, tool, args string) {
	l.Log(Event{
		Type:      EventTypeToolCall,
		SessionID: sessionID,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(sessionID, tool, result string) {
	if len(result) > 2000 {
		result = result[:2000] + "..."
	}
	l.Log(Event{
		Type:      EventTypeToolResult,
		SessionID: sessionID,
		Data: map[string]string{
			"tool":   tool,
			"result": result,
		},
	})
}

func (l *Logger) LogPolicy(sessionID, tool, effect, reason string) {
	l.Log(Event{
		Type:      EventTypePolicyCheck,
		SessionID: sessionID,
		Data: map[string]string{
			"tool":   tool,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogFallback(sessionID string, index int, cause error) {
	l.Log(Event{
		Type:      EventTypeFallback,
		SessionID: sessionID,
		Step:      index + 1,
		Data:      map[string]string{"cause": cause.Error()},
	})
}

func (l *Logger) LogLLM(sessionID, role string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:      EventTypeLLM,
		SessionID: sessionID,
		Data: map[string]any{
			"role":       role,
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}

func (l *Logger) LogSweep(purged int) {
	l.Log(Event{
		Type: EventTypeSweep,
		Data: map[string]int{"purged": purged},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}
