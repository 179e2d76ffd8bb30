package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemTool manages files inside a workspace directory. Paths that
// resolve outside the workspace root are rejected.
type FilesystemTool struct {
	Root string
}

func NewFilesystemTool(root string) *FilesystemTool {
	absRoot, _ := filepath.Abs(root)
	return &FilesystemTool{Root: absRoot}
}

func (f *FilesystemTool) Name() string {
	return "filesystem"
}

func (f *FilesystemTool) Description() string {
	return "Manage files in the local workspace: read, write, append, list, delete, and mkdir."
}

func (f *FilesystemTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"enum":        []string{"read", "write", "append", "list", "delete", "mkdir"},
				"description": "The operation to perform",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "The file or directory path, relative to the workspace",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write (only for 'write' and 'append')",
			},
		},
		"required": []string{"command", "path"},
	}
}

// resolve maps a user path into the workspace, rejecting escapes.
func (f *FilesystemTool) resolve(path string) (string, error) {
	target := filepath.Join(f.Root, path)
	rel, err := filepath.Rel(f.Root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", path)
	}
	return target, nil
}

func (f *FilesystemTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Command string `json:"command"`
		Path    string `json:"path"`
		Content string `json:"content"`
	}

	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	target, err := f.resolve(args.Path)
	if err != nil {
		return "", err
	}

	switch args.Command {
	case "read":
		data, err := os.ReadFile(target)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	case "write":
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return "", fmt.Errorf("failed to create parent directory: %w", err)
		}
		if err := os.WriteFile(target, []byte(args.Content), 0644); err != nil {
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		return fmt.Sprintf("Successfully wrote to %s", args.Path), nil
	case "append":
		file, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return "", fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()
		if _, err := file.WriteString(args.Content); err != nil {
			return "", fmt.Errorf("failed to append: %w", err)
		}
		return fmt.Sprintf("Successfully appended to %s", args.Path), nil
	case "list":
		entries, err := os.ReadDir(target)
		if err != nil {
			return "", fmt.Errorf("failed to list directory: %w", err)
		}
		var b strings.Builder
		for _, entry := range entries {
			typeStr := "file"
			if entry.IsDir() {
				typeStr = "dir"
			}
			fmt.Fprintf(&b, "[%s] %s\n", typeStr, entry.Name())
		}
		if b.Len() == 0 {
			return "Directory is empty", nil
		}
		return b.String(), nil
	case "delete":
		if err := os.Remove(target); err != nil {
			return "", fmt.Errorf("failed to delete: %w", err)
		}
		return fmt.Sprintf("Successfully deleted %s", args.Path), nil
	case "mkdir":
		if err := os.MkdirAll(target, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
		return fmt.Sprintf("Successfully created directory %s", args.Path), nil
	default:
		return "Invalid command. Use 'read', 'write', 'append', 'list', 'delete', or 'mkdir'", nil
	}
}
