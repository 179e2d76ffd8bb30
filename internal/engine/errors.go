package engine

import "errors"

// Sentinel errors for session failures and rejected calls. Callers match
// them with errors.Is; wrapped forms carry the session context.
var (
	// ErrEmptyTask rejects planning for a blank task.
	ErrEmptyTask = errors.New("task is empty")

	// ErrPlanParse marks a planner response with no recoverable plan.
	ErrPlanParse = errors.New("no valid plan in planner response")

	// ErrStepExecution marks a step whose agent and fallback both failed.
	ErrStepExecution = errors.New("step execution failed")

	// ErrSummarization marks a failed or empty final response synthesis.
	ErrSummarization = errors.New("final response synthesis failed")

	// ErrNoSuchSession is returned when a session id cannot be loaded.
	ErrNoSuchSession = errors.New("session not found")

	// ErrSessionNotSuspended rejects resume on a session that is not
	// waiting for confirmation.
	ErrSessionNotSuspended = errors.New("session is not awaiting confirmation")

	// ErrSessionTerminated rejects resume on a completed or failed session.
	ErrSessionTerminated = errors.New("session already terminated")

	// ErrSerialization marks a state snapshot that failed to encode or decode.
	ErrSerialization = errors.New("state serialization failed")

	// ErrInvalidTransition guards the status table; seeing it means a bug.
	ErrInvalidTransition = errors.New("illegal status transition")
)
