package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/senga07/xAgentic/internal/checkpoint"
	"github.com/senga07/xAgentic/internal/engine"
	"github.com/senga07/xAgentic/internal/observability"
)

// scriptedModel plays back queued replies in order.
type scriptedModel struct {
	mu    sync.Mutex
	queue []reply
}

type reply struct {
	content string
	err     error
}

func (m *scriptedModel) push(replies ...reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, replies...)
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, errors.New("scripted model exhausted")
	}
	r := m.queue[0]
	m.queue = m.queue[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: r.content}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, nil, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

const oneStepPlan = `{
	"task_analysis": "answer directly",
	"execution_plan": [
		{"step": 1, "description": "answer the question", "expected_result": "an answer", "requires_confirmation": false}
	]
}`

const confirmationPlan = `{
	"task_analysis": "needs input",
	"execution_plan": [
		{"step": 1, "description": "delete the file", "expected_result": "file gone",
		 "requires_confirmation": true, "uncertainty_reason": "unspecified path"}
	]
}`

func newTestServer(t *testing.T, model *scriptedModel) *httptest.Server {
	t.Helper()
	eng, err := engine.New(engine.Dependencies{
		Planner:     model,
		Checkpoints: checkpoint.NewMemoryStore(),
		Logger:      observability.NewLoggerWith(io.Discard, ""),
	})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	srv := httptest.NewServer(NewServer(eng, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

// readEvents decodes every SSE data frame in the response body.
func readEvents(t *testing.T, resp *http.Response) []engine.Event {
	t.Helper()
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	var events []engine.Event
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev engine.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event frame %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &scriptedModel{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStartStreamsSessionEvents(t *testing.T) {
	model := &scriptedModel{}
	model.push(
		reply{content: oneStepPlan},
		reply{content: "the step output text"},
		reply{content: "here is your answer"},
	)
	srv := newTestServer(t, model)

	resp := postJSON(t, srv.URL+"/api/sessions", `{"session_id": "s-http", "task": "what time is it"}`)
	events := readEvents(t, resp)

	want := []engine.EventKind{
		engine.EventPlanCreated, engine.EventStepStarted,
		engine.EventStepCompleted, engine.EventCompleted,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(events), events)
	}
	for i, kind := range want {
		if events[i].Kind != kind {
			t.Errorf("event %d: expected %s, got %s", i, kind, events[i].Kind)
		}
		if events[i].SessionID != "s-http" {
			t.Errorf("event %d carries session %q", i, events[i].SessionID)
		}
	}
	if response, ok := events[len(events)-1].Data["response"].(string); !ok || response == "" {
		t.Error("expected the completed event to carry the final response")
	}

	// The snapshot endpoint reflects the finished session.
	stateResp, err := http.Get(srv.URL + "/api/sessions/s-http")
	if err != nil {
		t.Fatalf("GET state failed: %v", err)
	}
	defer stateResp.Body.Close()
	var st engine.ExecutionState
	if err := json.NewDecoder(stateResp.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Status != engine.StatusCompleted || st.StepCursor != 1 {
		t.Errorf("unexpected state %s cursor %d", st.Status, st.StepCursor)
	}
}

func TestConfirmationFlowOverHTTP(t *testing.T) {
	model := &scriptedModel{}
	model.push(
		reply{content: confirmationPlan},
		reply{content: "deleted the requested file"},
		reply{content: "your file is gone"},
	)
	srv := newTestServer(t, model)

	resp := postJSON(t, srv.URL+"/api/sessions", `{"session_id": "s-wait", "task": "delete my file"}`)
	events := readEvents(t, resp)
	if len(events) != 2 || events[1].Kind != engine.EventConfirmationRequired {
		t.Fatalf("expected plan_created then confirmation_required, got %+v", events)
	}

	resp = postJSON(t, srv.URL+"/api/sessions/s-wait/resume", `{"feedback": "/tmp/a.txt"}`)
	events = readEvents(t, resp)
	want := []engine.EventKind{
		engine.EventStepStarted, engine.EventStepCompleted, engine.EventCompleted,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events after resume, got %+v", len(want), events)
	}
	for i, kind := range want {
		if events[i].Kind != kind {
			t.Errorf("event %d: expected %s, got %s", i, kind, events[i].Kind)
		}
	}
}

func TestResumeErrorMapping(t *testing.T) {
	model := &scriptedModel{}
	model.push(
		reply{content: oneStepPlan},
		reply{content: "the step output text"},
		reply{content: "final answer"},
	)
	srv := newTestServer(t, model)

	// Unknown session id.
	resp := postJSON(t, srv.URL+"/api/sessions/missing/resume", `{"feedback": "x"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", resp.StatusCode)
	}

	// Terminated session.
	startResp := postJSON(t, srv.URL+"/api/sessions", `{"session_id": "s-term", "task": "what time is it"}`)
	readEvents(t, startResp)
	resp = postJSON(t, srv.URL+"/api/sessions/s-term/resume", `{"feedback": "x"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for terminated session, got %d", resp.StatusCode)
	}

	// Malformed body.
	resp = postJSON(t, srv.URL+"/api/sessions/s-term/resume", `{not json`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestListAndDeleteSessions(t *testing.T) {
	model := &scriptedModel{}
	model.push(
		reply{content: oneStepPlan},
		reply{content: "the step output text"},
		reply{content: "final answer"},
	)
	srv := newTestServer(t, model)

	resp := postJSON(t, srv.URL+"/api/sessions", `{"session_id": "s-list", "task": "what time is it"}`)
	readEvents(t, resp)

	listResp, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET sessions failed: %v", err)
	}
	defer listResp.Body.Close()
	var listing struct {
		Sessions []engine.SessionSummary `json:"sessions"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Sessions) != 1 || listing.Sessions[0].SessionID != "s-list" {
		t.Fatalf("unexpected listing %+v", listing.Sessions)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/s-list", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", delResp.StatusCode)
	}

	stateResp, err := http.Get(srv.URL + "/api/sessions/s-list")
	if err != nil {
		t.Fatalf("GET state failed: %v", err)
	}
	stateResp.Body.Close()
	if stateResp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", stateResp.StatusCode)
	}
}
