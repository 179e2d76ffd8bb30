package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Prompt template file names looked up in the prompts directory. A
// missing file falls back to the built-in default, so a deployment can
// override any subset.
const (
	plannerPromptFile    = "planner.md"
	executorPromptFile   = "executor.md"
	summarizerPromptFile = "summarizer.md"
)

const defaultPlannerPrompt = `You are a task planning assistant. Analyze the user's task and produce a
step-by-step execution plan.

Respond with a single JSON object and nothing else, in exactly this shape:

{
  "task_analysis": "one or two sentences restating what the user wants",
  "execution_plan": [
    {
      "step": 1,
      "description": "what to do in this step",
      "expected_result": "what a successful step produces",
      "requires_confirmation": false,
      "uncertainty_reason": ""
    }
  ]
}

Rules:
- Keep the plan as short as possible; merge trivial actions into one step.
- Set "requires_confirmation": true only when the step cannot proceed
  safely without the user's input: destructive operations (deleting or
  overwriting data), ambiguous targets (which file, which account),
  missing parameters, or actions with external side effects.
- When requires_confirmation is true, "uncertainty_reason" must state
  exactly what needs to be confirmed. Leave it empty otherwise.
- Plain questions the assistant can answer directly become a single step
  with requires_confirmation false.

Task: {{task}}`

const defaultExecutorPrompt = `You are executing one step of a larger plan. Complete only this step and
report the outcome.

Step: {{description}}
Expected result: {{expected_result}}
User guidance: {{user_feedback}}

Available tools:
{{tools}}

Use tools when the step needs real data or side effects; keep it to a
few tool calls. When the step is done, reply with the concrete result,
not a description of what you would do.`

const defaultSummarizerPrompt = `A task was executed step by step. Write the final answer for the user.

Task: {{task}}
Analysis: {{task_analysis}}

Plan and results:
{{results}}

Reply with natural prose that directly answers the task, folding in the
step outcomes. Do not mention steps, plans, or internal tooling.`

// PromptManager resolves the prompt templates for the three inference
// roles, preferring override files from a directory over the built-in
// defaults.
type PromptManager struct {
	Directory string
}

// NewPromptManager returns a manager reading overrides from dir. An
// empty dir means defaults only.
func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

func (pm *PromptManager) load(name, fallback string) string {
	if pm == nil || pm.Directory == "" {
		return fallback
	}
	data, err := os.ReadFile(filepath.Join(pm.Directory, name))
	if err != nil {
		return fallback
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fallback
	}
	return text
}

// RenderPlanner builds the planning prompt for a task.
func (pm *PromptManager) RenderPlanner(task string) string {
	tpl := pm.load(plannerPromptFile, defaultPlannerPrompt)
	return strings.ReplaceAll(tpl, "{{task}}", task)
}

// RenderExecutor builds the step prompt. The same text is used for the
// tool-augmented attempt and for the direct fallback call.
func (pm *PromptManager) RenderExecutor(step *Step, toolList string) string {
	tpl := pm.load(executorPromptFile, defaultExecutorPrompt)
	feedback := step.UserFeedback
	if feedback == "" {
		feedback = "(none)"
	}
	if toolList == "" {
		toolList = "(no tools available)"
	}
	r := strings.NewReplacer(
		"{{description}}", step.Description,
		"{{expected_result}}", step.ExpectedResult,
		"{{user_feedback}}", feedback,
		"{{tools}}", toolList,
	)
	return r.Replace(tpl)
}

// RenderSummarizer builds the final-response prompt from the plan and
// the recorded step results.
func (pm *PromptManager) RenderSummarizer(st *ExecutionState) string {
	tpl := pm.load(summarizerPromptFile, defaultSummarizerPrompt)

	var b strings.Builder
	for _, res := range st.Results {
		desc := ""
		if st.Plan != nil && res.StepIndex < len(st.Plan.Steps) {
			desc = st.Plan.Steps[res.StepIndex].Description
		}
		fmt.Fprintf(&b, "Step %d: %s\nStatus: %s\nOutput: %s\n\n",
			res.StepIndex+1, desc, res.Status, res.Output)
	}

	analysis := ""
	if st.Plan != nil {
		analysis = st.Plan.TaskAnalysis
	}
	r := strings.NewReplacer(
		"{{task}}", st.Task,
		"{{task_analysis}}", analysis,
		"{{results}}", strings.TrimSpace(b.String()),
	)
	return r.Replace(tpl)
}
