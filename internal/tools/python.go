package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// PythonTool runs short Python snippets for calculations and data
// munging. Execution is capped by Timeout; interpreter errors are folded
// into the returned text so the model can correct its code.
type PythonTool struct {
	Interpreter string
	Timeout     time.Duration
}

func NewPythonTool() *PythonTool {
	return &PythonTool{
		Interpreter: "python3",
		Timeout:     10 * time.Second,
	}
}

func (p *PythonTool) Name() string {
	return "python"
}

func (p *PythonTool) Description() string {
	return "Execute a short Python snippet and return its stdout. Use print() for anything you want back. Good for math, dates, and text processing."
}

func (p *PythonTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "The Python code to execute",
			},
		},
		"required": []string{"code"},
	}
}

func (p *PythonTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if strings.TrimSpace(args.Code) == "" {
		return "Error: empty code", nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Interpreter, "-c", args.Code)
	output, err := cmd.CombinedOutput()

	result := strings.TrimSpace(string(output))
	if result == "" {
		result = "(no output)"
	}

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Execution timed out after %s\nOutput so far: %s", p.Timeout, result), nil
	}
	if err != nil {
		return fmt.Sprintf("Execution failed with error: %v\nOutput: %s", err, result), nil
	}

	return result, nil
}
