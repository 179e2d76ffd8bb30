package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/senga07/xAgentic/internal/jsonx"
)

// planPayloadIn mirrors the JSON contract the planner prompt demands.
// Step numbering in the payload is advisory; indices are reassigned from
// array order.
type planPayloadIn struct {
	TaskAnalysis  string       `json:"task_analysis"`
	ExecutionPlan []planStepIn `json:"execution_plan"`
}

type planStepIn struct {
	Step                 int    `json:"step"`
	Description          string `json:"description"`
	ExpectedResult       string `json:"expected_result"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	UncertaintyReason    string `json:"uncertainty_reason"`
}

// plan runs the single planning inference and parses its response into a
// validated Plan.
func (e *Engine) plan(ctx context.Context, sessionID, task string) (*Plan, error) {
	prompt := e.prompts.RenderPlanner(task)
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	resp, err := e.planner.GenerateContent(ctx, messages, llms.WithTemperature(0.3))
	if err != nil {
		return nil, fmt.Errorf("%w: planner inference: %v", ErrPlanParse, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: planner returned no choices", ErrPlanParse)
	}
	raw := resp.Choices[0].Content
	e.logger.LogLLM(sessionID, "planner", prompt, raw, nil)

	return parsePlan(raw)
}

// parsePlan recovers the plan object from raw model output and validates
// it. The response frequently wraps the JSON in prose or fences; the
// jsonx ladder handles that.
func parsePlan(raw string) (*Plan, error) {
	obj, err := jsonx.ExtractObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanParse, err)
	}

	var payload planPayloadIn
	if err := json.Unmarshal(obj, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanParse, err)
	}
	if len(payload.ExecutionPlan) == 0 {
		return nil, fmt.Errorf("%w: execution_plan is empty", ErrPlanParse)
	}

	plan := &Plan{
		TaskAnalysis: strings.TrimSpace(payload.TaskAnalysis),
		Steps:        make([]Step, 0, len(payload.ExecutionPlan)),
	}
	for i, in := range payload.ExecutionPlan {
		desc := strings.TrimSpace(in.Description)
		if desc == "" {
			return nil, fmt.Errorf("%w: step %d has no description", ErrPlanParse, i+1)
		}
		reason := strings.TrimSpace(in.UncertaintyReason)
		if in.RequiresConfirmation && reason == "" {
			return nil, fmt.Errorf("%w: step %d requires confirmation without a reason", ErrPlanParse, i+1)
		}
		plan.Steps = append(plan.Steps, Step{
			Index:                i,
			Description:          desc,
			ExpectedResult:       strings.TrimSpace(in.ExpectedResult),
			RequiresConfirmation: in.RequiresConfirmation,
			UncertaintyReason:    reason,
		})
	}
	return plan, nil
}
