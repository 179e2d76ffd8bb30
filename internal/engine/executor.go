package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"

	"github.com/senga07/xAgentic/internal/governance"
)

// apologyMarker in extracted output means the model punted; such output
// is wrapped with the step context instead of returned bare.
const apologyMarker = "sorry"

// executeStep runs one step to a StepResult. The tool-augmented agent
// runs first; if it errors for any reason the direct fallback runs
// exactly once with the same prompt. Wall-clock timing is recorded on
// success and failure alike.
func (e *Engine) executeStep(ctx context.Context, sessionID string, step *Step) StepResult {
	started := time.Now()
	prompt := e.prompts.RenderExecutor(step, e.toolList())

	output, err := e.runAgent(ctx, sessionID, prompt)
	if err != nil {
		e.logger.LogFallback(sessionID, step.Index, err)
		output, err = e.directCompletion(ctx, sessionID, prompt)
	}

	res := StepResult{StepIndex: step.Index, StartedAt: started}
	if err != nil {
		res.Status = StepFailed
		res.Output = fmt.Sprintf("execution error: %v", err)
	} else {
		res.Status = StepCompleted
		res.Output = finalizeOutput(step, output, e.budget.MinOutputChars)
	}
	res.Duration = time.Since(started)
	return res
}

// runAgent is the tool-calling loop. Each round asks the executor model
// for the next move; tool results are folded back into the transcript,
// including tool errors and policy denials, so the model can adjust
// course. Provider errors, the step deadline, and an exhausted tool
// budget end the loop with an error.
func (e *Engine) runAgent(ctx context.Context, sessionID, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.budget.StepTimeout)
	defer cancel()

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	var llmTools []llms.Tool
	for _, t := range e.registry.List() {
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	for round := 0; round < e.budget.MaxToolCalls; round++ {
		resp, err := e.executor.GenerateContent(ctx, messages, llms.WithTools(llmTools))
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("model returned no choices")
		}
		choice := resp.Choices[0]
		e.logger.LogLLM(sessionID, "executor", prompt, choice.Content, choice.ToolCalls)

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		if len(choice.ToolCalls) == 0 {
			return extractOutput(messages), nil
		}

		for _, tc := range choice.ToolCalls {
			result := e.dispatchTool(ctx, sessionID, tc)
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	return "", fmt.Errorf("tool budget exhausted after %d rounds", e.budget.MaxToolCalls)
}

// dispatchTool runs one tool call through the policy gate and the
// registry. Failures become observation text so the loop survives them.
func (e *Engine) dispatchTool(ctx context.Context, sessionID string, tc llms.ToolCall) string {
	name := tc.FunctionCall.Name
	args := tc.FunctionCall.Arguments

	if e.policy != nil {
		verdict, err := e.policy.Evaluate(ctx, governance.Request{
			Tool:      name,
			Arguments: args,
			SessionID: sessionID,
		})
		if err != nil {
			return fmt.Sprintf("Error: policy evaluation failed: %v", err)
		}
		e.logger.LogPolicy(sessionID, name, string(verdict.Effect), verdict.Reason)
		if verdict.Effect == governance.EffectDeny {
			return fmt.Sprintf("Denied by policy: %s", verdict.Reason)
		}
	}

	tool := e.registry.Get(name)
	if tool == nil {
		return fmt.Sprintf("Error: tool %s not found", name)
	}

	e.logger.LogToolCall(sessionID, name, args)
	result, err := tool.Execute(ctx, args)
	if err != nil {
		result = fmt.Sprintf("Error: %v", err)
	}
	e.logger.LogToolResult(sessionID, name, result)
	return result
}

// directCompletion is the tool-less fallback: one inference call with
// the unchanged step prompt, under its own copy of the step deadline.
func (e *Engine) directCompletion(ctx context.Context, sessionID, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.budget.StepTimeout)
	defer cancel()

	output, err := llms.GenerateFromSinglePrompt(ctx, e.executor, prompt)
	if err != nil {
		return "", err
	}
	e.logger.LogLLM(sessionID, "executor_fallback", prompt, output, nil)
	return output, nil
}

// extractOutput picks the step output from an agent transcript: the last
// assistant message with text, else the text of the last message, else
// empty.
func extractOutput(messages []llms.MessageContent) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != llms.ChatMessageTypeAI {
			continue
		}
		if text := textOf(messages[i]); text != "" {
			return text
		}
	}
	if len(messages) > 0 {
		return textOf(messages[len(messages)-1])
	}
	return ""
}

// textOf joins the textual parts of a message.
func textOf(msg llms.MessageContent) string {
	var parts []string
	for _, p := range msg.Parts {
		switch v := p.(type) {
		case llms.TextContent:
			if v.Text != "" {
				parts = append(parts, v.Text)
			}
		case llms.ToolCallResponse:
			if v.Content != "" {
				parts = append(parts, v.Content)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// finalizeOutput guards against unusable step output: text below the
// minimum length or carrying an apology is wrapped with the step
// description and a completed annotation.
func finalizeOutput(step *Step, text string, minChars int) string {
	trimmed := strings.TrimSpace(text)
	short := utf8.RuneCountInString(trimmed) < minChars
	apologetic := strings.Contains(strings.ToLower(trimmed), apologyMarker)
	if short || apologetic {
		return fmt.Sprintf("Task: %s\nStatus: completed\nResult: %s", step.Description, trimmed)
	}
	return trimmed
}
