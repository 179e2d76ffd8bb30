package engine

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle phase of a session.
type Status string

const (
	StatusPlanning             Status = "planning"
	StatusChecking             Status = "checking"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusExecuting            Status = "executing"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// allowedTransitions is the complete set of legal status moves. Terminal
// states have no outgoing edges.
var allowedTransitions = map[Status]map[Status]struct{}{
	StatusPlanning: {
		StatusChecking: {},
		StatusFailed:   {},
	},
	StatusChecking: {
		StatusAwaitingConfirmation: {},
		StatusExecuting:            {},
		StatusCompleted:            {},
		StatusFailed:               {},
	},
	StatusAwaitingConfirmation: {
		StatusChecking: {},
	},
	StatusExecuting: {
		StatusChecking: {},
		StatusFailed:   {},
	},
}

// ValidateTransition reports whether moving from one status to another is
// legal.
func ValidateTransition(from, to Status) error {
	if _, ok := allowedTransitions[from][to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Step is a single planned unit of work.
type Step struct {
	Index                int    `json:"index"`
	Description          string `json:"description"`
	ExpectedResult       string `json:"expected_result,omitempty"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
	UncertaintyReason    string `json:"uncertainty_reason,omitempty"`

	// UserFeedback is written at most once, when a suspended session is
	// resumed for this step.
	UserFeedback string `json:"user_feedback,omitempty"`
}

// Plan is the ordered result of task analysis.
type Plan struct {
	TaskAnalysis string `json:"task_analysis,omitempty"`
	Steps        []Step `json:"steps"`
}

// StepStatus is the outcome recorded for one executed step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// StepResult records the outcome of executing a single step.
type StepResult struct {
	StepIndex int           `json:"step_index"`
	Status    StepStatus    `json:"status"`
	Output    string        `json:"output"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Seconds returns the duration rounded to two decimal places, the shape
// reported in events and summaries.
func (r StepResult) Seconds() float64 {
	return math.Round(r.Duration.Seconds()*100) / 100
}

// Confirmation describes the step a suspended session is waiting on.
// StepNumber is 1-based for display; StepIndex is the 0-based position.
type Confirmation struct {
	StepIndex         int    `json:"step_index"`
	StepNumber        int    `json:"step_number"`
	TotalSteps        int    `json:"total_steps"`
	Description       string `json:"description"`
	UncertaintyReason string `json:"uncertainty_reason"`
	ExpectedResult    string `json:"expected_result"`
}

// Phase records wall-clock timing for one named stage of a session.
type Phase struct {
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Seconds   float64   `json:"seconds"`
}

// ExecutionState is the full durable snapshot of a session. Outside the
// window in which a single step runs, StepCursor always equals
// len(Results). Pending is non-nil exactly while the session is
// awaiting confirmation.
type ExecutionState struct {
	SessionID     string           `json:"session_id"`
	Task          string           `json:"task"`
	Status        Status           `json:"status"`
	Plan          *Plan            `json:"plan,omitempty"`
	StepCursor    int              `json:"step_cursor"`
	Results       []StepResult     `json:"results"`
	Pending       *Confirmation    `json:"pending_confirmation,omitempty"`
	FinalResponse string           `json:"final_response,omitempty"`
	Error         string           `json:"error,omitempty"`
	EventLog      []Event          `json:"event_log"`
	Timing        map[string]Phase `json:"timing,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewExecutionState creates a fresh session snapshot in the planning
// phase.
func NewExecutionState(sessionID, task string) *ExecutionState {
	now := time.Now()
	return &ExecutionState{
		SessionID: sessionID,
		Task:      task,
		Status:    StatusPlanning,
		Timing:    make(map[string]Phase),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// transition moves the session to a new status, enforcing the table.
func (s *ExecutionState) transition(to Status) error {
	if err := ValidateTransition(s.Status, to); err != nil {
		return err
	}
	s.Status = to
	s.UpdatedAt = time.Now()
	return nil
}

// CurrentStep returns the step at the cursor, or nil when the plan is
// exhausted or absent.
func (s *ExecutionState) CurrentStep() *Step {
	if s.Plan == nil || s.StepCursor < 0 || s.StepCursor >= len(s.Plan.Steps) {
		return nil
	}
	return &s.Plan.Steps[s.StepCursor]
}

// recordPhase stores the timing of a named stage.
func (s *ExecutionState) recordPhase(name string, started time.Time) {
	ended := time.Now()
	s.Timing[name] = Phase{
		StartedAt: started,
		EndedAt:   ended,
		Seconds:   math.Round(ended.Sub(started).Seconds()*100) / 100,
	}
}

// Clone returns a deep copy so callers can hold a snapshot without
// observing later mutations.
func (s *ExecutionState) Clone() *ExecutionState {
	if s == nil {
		return nil
	}
	out := *s

	if s.Plan != nil {
		plan := Plan{TaskAnalysis: s.Plan.TaskAnalysis}
		plan.Steps = append([]Step(nil), s.Plan.Steps...)
		out.Plan = &plan
	}
	out.Results = append([]StepResult(nil), s.Results...)
	if s.Pending != nil {
		pending := *s.Pending
		out.Pending = &pending
	}
	out.EventLog = make([]Event, len(s.EventLog))
	for i, ev := range s.EventLog {
		out.EventLog[i] = ev.clone()
	}
	if s.Timing != nil {
		out.Timing = make(map[string]Phase, len(s.Timing))
		for k, v := range s.Timing {
			out.Timing[k] = v
		}
	}
	return &out
}

// SessionSummary is the listing row for a stored session.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	Task      string    `json:"task"`
	Steps     int       `json:"steps"`
	Completed int       `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summarize reduces a state to its listing row.
func (s *ExecutionState) Summarize() SessionSummary {
	sum := SessionSummary{
		SessionID: s.SessionID,
		Status:    s.Status,
		Task:      s.Task,
		Completed: len(s.Results),
		UpdatedAt: s.UpdatedAt,
	}
	if s.Plan != nil {
		sum.Steps = len(s.Plan.Steps)
	}
	return sum
}
