package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// summarize synthesizes the session's final response from the task, the
// plan, and the recorded results. It runs exactly once, after the last
// step, and its failure fails the session.
func (e *Engine) summarize(ctx context.Context, st *ExecutionState) (string, error) {
	prompt := e.prompts.RenderSummarizer(st)

	output, err := llms.GenerateFromSinglePrompt(ctx, e.planner, prompt, llms.WithTemperature(0.5))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarization, err)
	}
	output = strings.TrimSpace(output)
	if output == "" {
		return "", fmt.Errorf("%w: empty response", ErrSummarization)
	}
	e.logger.LogLLM(st.SessionID, "summarizer", prompt, output, nil)
	return output, nil
}
