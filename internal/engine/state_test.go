package engine

import (
	"errors"
	"testing"
)

func TestValidateTransitionTable(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusPlanning, StatusChecking},
		{StatusPlanning, StatusFailed},
		{StatusChecking, StatusAwaitingConfirmation},
		{StatusChecking, StatusExecuting},
		{StatusChecking, StatusCompleted},
		{StatusChecking, StatusFailed},
		{StatusAwaitingConfirmation, StatusChecking},
		{StatusExecuting, StatusChecking},
		{StatusExecuting, StatusFailed},
	}
	for _, tr := range legal {
		if err := ValidateTransition(tr.from, tr.to); err != nil {
			t.Errorf("expected %s -> %s to be legal: %v", tr.from, tr.to, err)
		}
	}

	illegal := []struct{ from, to Status }{
		{StatusPlanning, StatusExecuting},
		{StatusPlanning, StatusCompleted},
		{StatusExecuting, StatusCompleted},
		{StatusAwaitingConfirmation, StatusExecuting},
		{StatusCompleted, StatusChecking},
		{StatusCompleted, StatusFailed},
		{StatusFailed, StatusPlanning},
	}
	for _, tr := range illegal {
		if err := ValidateTransition(tr.from, tr.to); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected %s -> %s to be rejected, got %v", tr.from, tr.to, err)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
	for _, s := range []Status{StatusPlanning, StatusChecking, StatusAwaitingConfirmation, StatusExecuting} {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	st := NewExecutionState("s1", "a task")
	st.Plan = &Plan{
		TaskAnalysis: "analysis",
		Steps:        []Step{{Index: 0, Description: "only step"}},
	}
	st.Results = []StepResult{{StepIndex: 0, Status: StepCompleted, Output: "out"}}
	st.Pending = &Confirmation{StepIndex: 0, StepNumber: 1}
	st.appendEvent(EventPlanCreated, "plan", map[string]any{"total_steps": 1})

	clone := st.Clone()

	clone.Plan.Steps[0].UserFeedback = "mutated"
	clone.Results[0].Output = "mutated"
	clone.Pending.StepNumber = 99
	clone.EventLog[0].Data["total_steps"] = 99

	if st.Plan.Steps[0].UserFeedback != "" {
		t.Error("clone mutation leaked into the original plan")
	}
	if st.Results[0].Output != "out" {
		t.Error("clone mutation leaked into the original results")
	}
	if st.Pending.StepNumber != 1 {
		t.Error("clone mutation leaked into the pending confirmation")
	}
	if st.EventLog[0].Data["total_steps"] != 1 {
		t.Error("clone mutation leaked into the event log payload")
	}
}

func TestCurrentStep(t *testing.T) {
	st := NewExecutionState("s1", "task")
	if st.CurrentStep() != nil {
		t.Error("expected nil current step without a plan")
	}

	st.Plan = &Plan{Steps: []Step{{Index: 0, Description: "a"}, {Index: 1, Description: "b"}}}
	if got := st.CurrentStep(); got == nil || got.Index != 0 {
		t.Errorf("expected step 0, got %+v", got)
	}

	st.StepCursor = 2
	if st.CurrentStep() != nil {
		t.Error("expected nil current step past the end of the plan")
	}
}

func TestSummarize(t *testing.T) {
	st := NewExecutionState("s1", "a long running task")
	st.Plan = &Plan{Steps: make([]Step, 3)}
	st.Results = []StepResult{{}, {}}
	st.Status = StatusExecuting

	sum := st.Summarize()
	if sum.SessionID != "s1" || sum.Steps != 3 || sum.Completed != 2 || sum.Status != StatusExecuting {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestAppendEventSequencesAndLogs(t *testing.T) {
	st := NewExecutionState("s1", "task")
	first := st.appendEvent(EventPlanCreated, "one", nil)
	second := st.appendEvent(EventStepStarted, "two", nil)

	if first.Seq != 0 || second.Seq != 1 {
		t.Errorf("expected contiguous seq 0,1, got %d,%d", first.Seq, second.Seq)
	}
	if len(st.EventLog) != 2 {
		t.Errorf("expected 2 logged events, got %d", len(st.EventLog))
	}
	if first.SessionID != "s1" {
		t.Errorf("expected event to carry the session id, got %q", first.SessionID)
	}
}
