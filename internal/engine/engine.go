// Package engine runs plan-then-execute sessions: one planning inference
// produces an ordered step plan, steps run strictly in sequence through a
// tool-calling agent, and steps the planner marked uncertain suspend the
// session until the user confirms. Every state mutation is checkpointed,
// so a session survives process restarts and resumes from storage alone.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/senga07/xAgentic/internal/governance"
	"github.com/senga07/xAgentic/internal/observability"
	"github.com/senga07/xAgentic/internal/stream"
	"github.com/senga07/xAgentic/internal/tools"
)

// CheckpointStore persists session snapshots. Implementations must
// round-trip the full ExecutionState and tolerate unknown fields in
// stored payloads.
type CheckpointStore interface {
	Get(ctx context.Context, sessionID string) (*ExecutionState, error)
	Put(ctx context.Context, sessionID string, st *ExecutionState) error
	List(ctx context.Context) ([]*ExecutionState, error)
	Delete(ctx context.Context, sessionID string) error
}

// Budget bounds one step's agent run.
type Budget struct {
	// MaxToolCalls caps the reasoning rounds of the agent loop.
	MaxToolCalls int
	// StepTimeout is the wall-clock limit for one agent or fallback run.
	StepTimeout time.Duration
	// MinOutputChars is the threshold below which step output is wrapped
	// with the step context.
	MinOutputChars int
}

func (b Budget) withDefaults() Budget {
	if b.MaxToolCalls <= 0 {
		b.MaxToolCalls = 15
	}
	if b.StepTimeout <= 0 {
		b.StepTimeout = 60 * time.Second
	}
	if b.MinOutputChars <= 0 {
		b.MinOutputChars = 10
	}
	return b
}

// Dependencies wires an Engine. Planner and Checkpoints are required;
// everything else has a working default.
type Dependencies struct {
	// Planner handles planning and final response synthesis.
	Planner llms.Model
	// Executor handles step execution; defaults to Planner.
	Executor llms.Model
	// Registry is the tool catalog offered to the executor.
	Registry *tools.Registry
	// Checkpoints persists session state.
	Checkpoints CheckpointStore
	// Policy, when set, gates every tool dispatch.
	Policy governance.PolicyEngine
	// Prompts resolves the prompt templates.
	Prompts *PromptManager
	// Logger receives the structured audit trail.
	Logger *observability.Logger
	Budget Budget
}

// Engine drives sessions. Each session runs strictly sequentially under
// a per-session lock; distinct sessions are independent.
type Engine struct {
	planner     llms.Model
	executor    llms.Model
	registry    *tools.Registry
	checkpoints CheckpointStore
	policy      governance.PolicyEngine
	prompts     *PromptManager
	logger      *observability.Logger
	budget      Budget

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock serializes all work for one session id. Entries are
// refcounted so the lock map only holds sessions with an active or
// waiting caller.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// New validates the dependencies and builds an Engine.
func New(deps Dependencies) (*Engine, error) {
	if deps.Planner == nil {
		return nil, errors.New("engine: planner model is required")
	}
	if deps.Checkpoints == nil {
		return nil, errors.New("engine: checkpoint store is required")
	}
	if deps.Executor == nil {
		deps.Executor = deps.Planner
	}
	if deps.Registry == nil {
		deps.Registry = tools.NewRegistry()
	}
	if deps.Prompts == nil {
		deps.Prompts = NewPromptManager("")
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger()
	}
	return &Engine{
		planner:     deps.Planner,
		executor:    deps.Executor,
		registry:    deps.Registry,
		checkpoints: deps.Checkpoints,
		policy:      deps.Policy,
		prompts:     deps.Prompts,
		logger:      deps.Logger,
		budget:      deps.Budget.withDefaults(),
		locks:       make(map[string]*sessionLock),
	}, nil
}

// lockSession acquires the per-session lock, creating the entry on first use.
func (e *Engine) lockSession(sessionID string) *sessionLock {
	e.mu.Lock()
	lk, ok := e.locks[sessionID]
	if !ok {
		lk = &sessionLock{}
		e.locks[sessionID] = lk
	}
	lk.refs++
	e.mu.Unlock()

	lk.mu.Lock()
	return lk
}

// unlockSession releases the lock and drops the map entry once no caller
// holds or waits on it.
func (e *Engine) unlockSession(sessionID string, lk *sessionLock) {
	lk.mu.Unlock()

	e.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(e.locks, sessionID)
	}
	e.mu.Unlock()
}

// Start creates a session for the task and runs it until it completes,
// fails, or suspends for confirmation. A fresh session id is generated
// when sessionID is empty; starting with an existing id replaces that
// session wholesale. Progress arrives on the returned stream, which ends
// with the final state snapshot.
func (e *Engine) Start(ctx context.Context, sessionID, task string) *Stream {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	es := stream.New[Event, *ExecutionState]()

	go func() {
		lk := e.lockSession(sessionID)
		defer e.unlockSession(sessionID, lk)

		st := NewExecutionState(sessionID, task)
		if err := e.save(ctx, st); err != nil {
			e.fail(ctx, st, es, err)
			return
		}

		if strings.TrimSpace(task) == "" {
			e.fail(ctx, st, es, fmt.Errorf("%w: nothing to plan", ErrEmptyTask))
			return
		}

		planStart := time.Now()
		plan, err := e.plan(ctx, sessionID, task)
		if err != nil {
			e.fail(ctx, st, es, err)
			return
		}
		st.Plan = plan
		st.recordPhase("plan_creation", planStart)

		if err := st.transition(StatusChecking); err != nil {
			e.fail(ctx, st, es, err)
			return
		}
		ev := st.appendEvent(EventPlanCreated,
			fmt.Sprintf("plan created with %d steps", len(plan.Steps)),
			planPayload(plan))
		if err := e.save(ctx, st); err != nil {
			e.fail(ctx, st, es, err)
			return
		}
		es.Push(ev)
		e.logger.LogPlan(sessionID, len(plan.Steps))

		e.runLoop(ctx, st, es)
	}()

	return es
}

// Resume continues a session that suspended for confirmation. The
// feedback is written onto the pending step, the gate re-evaluates at
// the same index, and execution proceeds on the returned stream.
func (e *Engine) Resume(ctx context.Context, sessionID, feedback string) (*Stream, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrNoSuchSession)
	}

	lk := e.lockSession(sessionID)

	st, err := e.loadSession(ctx, sessionID)
	if err != nil {
		e.unlockSession(sessionID, lk)
		return nil, err
	}
	if st.Status.Terminal() {
		e.unlockSession(sessionID, lk)
		return nil, fmt.Errorf("%w: session %s is %s", ErrSessionTerminated, sessionID, st.Status)
	}
	if st.Status != StatusAwaitingConfirmation || st.Pending == nil {
		e.unlockSession(sessionID, lk)
		return nil, fmt.Errorf("%w: session %s is %s", ErrSessionNotSuspended, sessionID, st.Status)
	}
	step := st.CurrentStep()
	if step == nil || step.Index != st.Pending.StepIndex {
		e.unlockSession(sessionID, lk)
		return nil, fmt.Errorf("%w: session %s has no pending step", ErrSessionNotSuspended, sessionID)
	}

	step.UserFeedback = feedback
	st.Pending = nil
	if err := st.transition(StatusChecking); err != nil {
		e.unlockSession(sessionID, lk)
		return nil, err
	}

	es := stream.New[Event, *ExecutionState]()
	go func() {
		defer e.unlockSession(sessionID, lk)
		if err := e.save(ctx, st); err != nil {
			e.fail(ctx, st, es, err)
			return
		}
		e.logger.LogResume(sessionID, step.Index)
		e.runLoop(ctx, st, es)
	}()
	return es, nil
}

// State returns the stored snapshot for a session.
func (e *Engine) State(ctx context.Context, sessionID string) (*ExecutionState, error) {
	return e.loadSession(ctx, sessionID)
}

// Sessions lists summaries of all stored sessions.
func (e *Engine) Sessions(ctx context.Context) ([]SessionSummary, error) {
	states, err := e.checkpoints.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]SessionSummary, 0, len(states))
	for _, st := range states {
		summaries = append(summaries, st.Summarize())
	}
	return summaries, nil
}

// Discard removes a stored session.
func (e *Engine) Discard(ctx context.Context, sessionID string) error {
	lk := e.lockSession(sessionID)
	defer e.unlockSession(sessionID, lk)
	return e.checkpoints.Delete(ctx, sessionID)
}

// loadSession reads a snapshot; any read failure degrades to "session
// not found" so callers never act on a partially loaded session.
func (e *Engine) loadSession(ctx context.Context, sessionID string) (*ExecutionState, error) {
	st, err := e.checkpoints.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNoSuchSession) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNoSuchSession, err)
	}
	return st, nil
}

// runLoop advances the session from checking until it suspends or
// terminates: each pass either finishes the plan, suspends on an
// unconfirmed gated step, or executes the step at the cursor.
func (e *Engine) runLoop(ctx context.Context, st *ExecutionState, es *Stream) {
	total := len(st.Plan.Steps)
	for {
		if st.StepCursor >= total {
			e.finish(ctx, st, es)
			return
		}

		step := st.CurrentStep()
		if step.RequiresConfirmation && step.UserFeedback == "" {
			e.suspend(ctx, st, es, step)
			return
		}

		if err := st.transition(StatusExecuting); err != nil {
			e.fail(ctx, st, es, err)
			return
		}
		started := st.appendEvent(EventStepStarted,
			fmt.Sprintf("executing step %d of %d: %s", step.Index+1, total, step.Description),
			map[string]any{
				"step":        step.Index + 1,
				"total_steps": total,
				"description": step.Description,
			})
		if err := e.save(ctx, st); err != nil {
			e.fail(ctx, st, es, err)
			return
		}
		es.Push(started)
		e.logger.LogStep(st.SessionID, step.Index, "started", 0)

		phaseStart := time.Now()
		res := e.executeStep(ctx, st.SessionID, step)
		st.Results = append(st.Results, res)
		st.StepCursor++
		st.recordPhase(fmt.Sprintf("step_%d", step.Index+1), phaseStart)

		if res.Status == StepFailed {
			ev := st.appendEvent(EventStepFailed,
				fmt.Sprintf("step %d of %d failed", step.Index+1, total),
				resultPayload(total, res))
			e.logger.LogStep(st.SessionID, step.Index, "failed", res.Seconds())
			if err := e.save(ctx, st); err != nil {
				e.fail(ctx, st, es, err)
				return
			}
			es.Push(ev)
			e.fail(ctx, st, es, fmt.Errorf("%w: step %d: %s", ErrStepExecution, step.Index+1, res.Output))
			return
		}

		if err := st.transition(StatusChecking); err != nil {
			e.fail(ctx, st, es, err)
			return
		}
		ev := st.appendEvent(EventStepCompleted,
			fmt.Sprintf("step %d of %d completed", step.Index+1, total),
			resultPayload(total, res))
		if err := e.save(ctx, st); err != nil {
			e.fail(ctx, st, es, err)
			return
		}
		es.Push(ev)
		e.logger.LogStep(st.SessionID, step.Index, "completed", res.Seconds())
	}
}

// suspend parks the session on a gated step and ends the stream. The
// persisted snapshot carries the pending confirmation, so any process
// can pick the session up on resume.
func (e *Engine) suspend(ctx context.Context, st *ExecutionState, es *Stream, step *Step) {
	st.Pending = &Confirmation{
		StepIndex:         step.Index,
		StepNumber:        step.Index + 1,
		TotalSteps:        len(st.Plan.Steps),
		Description:       step.Description,
		UncertaintyReason: step.UncertaintyReason,
		ExpectedResult:    step.ExpectedResult,
	}
	if err := st.transition(StatusAwaitingConfirmation); err != nil {
		e.fail(ctx, st, es, err)
		return
	}
	ev := st.appendEvent(EventConfirmationRequired,
		fmt.Sprintf("step %d needs confirmation: %s", step.Index+1, step.UncertaintyReason),
		confirmationPayload(st.Pending))
	if err := e.save(ctx, st); err != nil {
		e.fail(ctx, st, es, err)
		return
	}
	es.Push(ev)
	e.logger.LogConfirmation(st.SessionID, step.Index, step.UncertaintyReason)
	es.End(st.Clone())
}

// finish synthesizes the final response and completes the session.
func (e *Engine) finish(ctx context.Context, st *ExecutionState, es *Stream) {
	sumStart := time.Now()
	response, err := e.summarize(ctx, st)
	if err != nil {
		e.fail(ctx, st, es, err)
		return
	}
	st.FinalResponse = response
	st.recordPhase("response_generation", sumStart)

	if err := st.transition(StatusCompleted); err != nil {
		e.fail(ctx, st, es, err)
		return
	}
	ev := st.appendEvent(EventCompleted, "task completed", completionPayload(st))
	if err := e.save(ctx, st); err != nil {
		e.fail(ctx, st, es, err)
		return
	}
	es.Push(ev)
	es.End(st.Clone())
}

// fail moves the session to failed, records the cause, and ends the
// stream. The snapshot write is best effort at this point; the stream
// reports the failure regardless.
func (e *Engine) fail(ctx context.Context, st *ExecutionState, es *Stream, cause error) {
	st.Error = cause.Error()
	st.Pending = nil
	if err := st.transition(StatusFailed); err != nil {
		// A checkpoint write failed partway through a transition; force
		// the terminal status so the session cannot be resumed.
		st.Status = StatusFailed
		st.UpdatedAt = time.Now()
	}
	ev := st.appendEvent(EventFailed, "session failed: "+st.Error,
		map[string]any{"error": st.Error})
	_ = e.save(ctx, st)
	es.Push(ev)
	es.End(st.Clone())
}

// save checkpoints the snapshot. Write failures are fatal for the
// transition in progress.
func (e *Engine) save(ctx context.Context, st *ExecutionState) error {
	if err := e.checkpoints.Put(ctx, st.SessionID, st); err != nil {
		return fmt.Errorf("checkpoint write for session %s: %w", st.SessionID, err)
	}
	e.logger.LogCheckpoint(st.SessionID, string(st.Status))
	return nil
}

// toolList renders the registry for the executor prompt.
func (e *Engine) toolList() string {
	var lines []string
	for _, t := range e.registry.List() {
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Name(), t.Description()))
	}
	return strings.Join(lines, "\n")
}
