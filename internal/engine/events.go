package engine

import (
	"time"

	"github.com/senga07/xAgentic/internal/stream"
)

// EventKind labels a session progress event.
type EventKind string

const (
	EventPlanCreated          EventKind = "plan_created"
	EventStepStarted          EventKind = "step_started"
	EventStepCompleted        EventKind = "step_completed"
	EventStepFailed           EventKind = "step_failed"
	EventConfirmationRequired EventKind = "confirmation_required"
	EventCompleted            EventKind = "completed"
	EventFailed               EventKind = "failed"
)

// Event is one entry in a session's ordered progress log. Seq numbers
// are contiguous per session and keep counting across suspend/resume.
type Event struct {
	Seq       int            `json:"seq"`
	Kind      EventKind      `json:"kind"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"ts"`
}

func (e Event) clone() Event {
	out := e
	if e.Data != nil {
		out.Data = make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			out.Data[k] = v
		}
	}
	return out
}

// Stream delivers a session's events and ends with its final state.
type Stream = stream.EventStream[Event, *ExecutionState]

// appendEvent records a new event on the state's log and returns it.
// The event is not pushed to any stream here; the caller persists the
// state first so no consumer sees an event that was never checkpointed.
func (s *ExecutionState) appendEvent(kind EventKind, message string, data map[string]any) Event {
	ev := Event{
		Seq:       len(s.EventLog),
		Kind:      kind,
		Message:   message,
		Data:      data,
		SessionID: s.SessionID,
		Timestamp: time.Now(),
	}
	s.EventLog = append(s.EventLog, ev)
	s.UpdatedAt = ev.Timestamp
	return ev
}

// planPayload renders the plan for the plan_created event. Step numbers
// are 1-based on the wire.
func planPayload(p *Plan) map[string]any {
	steps := make([]map[string]any, 0, len(p.Steps))
	for _, st := range p.Steps {
		entry := map[string]any{
			"step":        st.Index + 1,
			"description": st.Description,
		}
		if st.ExpectedResult != "" {
			entry["expected_result"] = st.ExpectedResult
		}
		if st.RequiresConfirmation {
			entry["requires_confirmation"] = true
			entry["uncertainty_reason"] = st.UncertaintyReason
		}
		steps = append(steps, entry)
	}
	return map[string]any{
		"task_analysis": p.TaskAnalysis,
		"total_steps":   len(p.Steps),
		"steps":         steps,
	}
}

// confirmationPayload renders a pending confirmation for the wire.
func confirmationPayload(c *Confirmation) map[string]any {
	return map[string]any{
		"step":               c.StepNumber,
		"total_steps":        c.TotalSteps,
		"description":        c.Description,
		"uncertainty_reason": c.UncertaintyReason,
		"expected_result":    c.ExpectedResult,
	}
}

// resultPayload renders one step result for step events.
func resultPayload(total int, res StepResult) map[string]any {
	return map[string]any{
		"step":        res.StepIndex + 1,
		"total_steps": total,
		"status":      string(res.Status),
		"output":      res.Output,
		"duration":    res.Seconds(),
	}
}

// completionPayload renders the terminal completed event: the final
// response plus the timing and result breakdown.
func completionPayload(s *ExecutionState) map[string]any {
	results := make([]map[string]any, 0, len(s.Results))
	completed := 0
	total := 0
	if s.Plan != nil {
		total = len(s.Plan.Steps)
	}
	for _, res := range s.Results {
		if res.Status == StepCompleted {
			completed++
		}
		results = append(results, resultPayload(total, res))
	}
	return map[string]any{
		"response":        s.FinalResponse,
		"total_steps":     total,
		"completed_steps": completed,
		"results":         results,
		"timing":          s.Timing,
	}
}
