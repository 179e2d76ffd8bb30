package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserTool renders JS-heavy pages a plain HTTP fetch cannot. The
// browser instance is lazy and stays open across calls within a process
// until 'close'.
type BrowserTool struct {
	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc

	ScreenshotDir string
}

func NewBrowserTool() *BrowserTool {
	return &BrowserTool{ScreenshotDir: "screenshots"}
}

func (b *BrowserTool) Name() string {
	return "browser"
}

func (b *BrowserTool) Description() string {
	return "Open webpages in a real browser for sites that need JavaScript. Actions: 'navigate' to a URL, 'text' to read the visible page text, 'screenshot' to capture the page, 'close' to shut the browser."
}

func (b *BrowserTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"navigate", "text", "screenshot", "close"},
				"description": "The action to perform",
			},
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to open (required for 'navigate')",
			},
		},
		"required": []string{"action"},
	}
}

func (b *BrowserTool) initBrowser(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		select {
		case <-b.browserCtx.Done():
			b.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	return chromedp.Run(b.browserCtx)
}

func (b *BrowserTool) cleanup() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

func (b *BrowserTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Action string `json:"action"`
		URL    string `json:"url"`
	}

	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	if args.Action == "close" {
		b.mu.Lock()
		b.cleanup()
		b.mu.Unlock()
		return "Browser closed", nil
	}

	if err := b.initBrowser(ctx); err != nil {
		return "", fmt.Errorf("failed to initialize browser: %v", err)
	}

	actionCtx, cancel := context.WithTimeout(b.browserCtx, 45*time.Second)
	defer cancel()

	switch args.Action {
	case "navigate":
		if args.URL == "" {
			return "Error: url is required for 'navigate'", nil
		}
		if err := chromedp.Run(actionCtx,
			chromedp.Navigate(args.URL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		); err != nil {
			return fmt.Sprintf("Browser action failed: %v", err), nil
		}
		return fmt.Sprintf("Opened %s", args.URL), nil

	case "text":
		var text string
		if err := chromedp.Run(actionCtx,
			chromedp.Text("body", &text, chromedp.ByQuery),
		); err != nil {
			return fmt.Sprintf("Browser action failed: %v", err), nil
		}
		text = strings.TrimSpace(text)
		if len(text) > maxPageChars {
			text = text[:maxPageChars] + "\n... (content truncated) ..."
		}
		if text == "" {
			return "Page has no visible text", nil
		}
		return text, nil

	case "screenshot":
		var buf []byte
		if err := chromedp.Run(actionCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
			return fmt.Sprintf("Browser action failed: %v", err), nil
		}
		if err := os.MkdirAll(b.ScreenshotDir, 0755); err != nil {
			return fmt.Sprintf("Failed to save screenshot: %v", err), nil
		}
		path := filepath.Join(b.ScreenshotDir, fmt.Sprintf("screenshot_%d.png", time.Now().Unix()))
		if err := os.WriteFile(path, buf, 0644); err != nil {
			return fmt.Sprintf("Failed to save screenshot: %v", err), nil
		}
		absPath, _ := filepath.Abs(path)
		return fmt.Sprintf("Screenshot saved to %s", absPath), nil

	default:
		return "Invalid action. Use 'navigate', 'text', 'screenshot', or 'close'", nil
	}
}
