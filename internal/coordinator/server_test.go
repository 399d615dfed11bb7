package coordinator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fentz26/drover/internal/audit"
	"github.com/fentz26/drover/internal/models"
	"github.com/fentz26/drover/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if !health.OK || health.DB != "ok" {
		t.Errorf("Expected healthy response, got %+v", health)
	}
	if health.Version != Version {
		t.Errorf("Expected version %s, got %s", Version, health.Version)
	}
}

func TestCommandLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	// Submit
	cmd := postCommand(t, ts, models.CommandTypeDelay, `{"ms":100}`)
	if cmd.Status != models.CommandStatusPending {
		t.Errorf("Expected pending, got %s", cmd.Status)
	}

	// Claim
	claimed := postClaim(t, ts, "agent-1")
	if claimed == nil {
		t.Fatal("Expected a command from claim")
	}
	if claimed.ID != cmd.ID {
		t.Errorf("Expected %s, got %s", cmd.ID, claimed.ID)
	}
	if claimed.Status != models.CommandStatusRunning || claimed.AgentID != "agent-1" {
		t.Errorf("Claim did not bind the command: %+v", claimed)
	}

	// Report
	resp := postResult(t, ts, cmd.ID, "agent-1", `{"ok":true,"took_ms":101}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from result submit, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Verify terminal state
	got := getCommand(t, ts, cmd.ID)
	if got.Status != models.CommandStatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	if string(got.Result) != `{"ok":true,"took_ms":101}` {
		t.Errorf("Result did not round trip, got %s", got.Result)
	}
}

func TestClaim_NoWork(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/commands/claim", "application/json",
		bytes.NewBufferString(`{"agent_id":"agent-1"}`))
	if err != nil {
		t.Fatalf("POST /commands/claim failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204 when no work is available, got %d", resp.StatusCode)
	}
}

func TestClaim_RequiresAgentID(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/commands/claim", "application/json",
		bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("POST /commands/claim failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without agent_id, got %d", resp.StatusCode)
	}
}

func TestSubmitResult_Preconditions(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	// Unknown command
	resp := postResult(t, ts, "no-such-id", "agent-1", `{}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown command, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Not running
	cmd := postCommand(t, ts, models.CommandTypeDelay, `{"ms":1}`)
	resp = postResult(t, ts, cmd.ID, "agent-1", `{}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for pending command, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Wrong agent
	if claimed := postClaim(t, ts, "agent-1"); claimed == nil {
		t.Fatal("Expected a command from claim")
	}
	resp = postResult(t, ts, cmd.ID, "agent-2", `{}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 for non-owning agent, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Rejected submits must not have mutated anything.
	got := getCommand(t, ts, cmd.ID)
	if got.Status != models.CommandStatusRunning || got.AgentID != "agent-1" {
		t.Errorf("Rejected submits mutated the command: %+v", got)
	}

	// Double completion
	resp = postResult(t, ts, cmd.ID, "agent-1", `{"ok":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = postResult(t, ts, cmd.ID, "agent-1", `{"ok":false}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for completed command, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateCommand_Validation(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	tests := []struct {
		name string
		body string
	}{
		{"unknown type", `{"type":"NO_SUCH_TYPE","payload":{}}`},
		{"missing payload", `{"type":"DELAY"}`},
		{"delay negative ms", `{"type":"DELAY","payload":{"ms":-5}}`},
		{"http get missing url", `{"type":"HTTP_GET_JSON","payload":{}}`},
		{"malformed json", `{"type":"DELAY","payload":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/commands", "application/json",
				bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatalf("POST /commands failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestListCommands_StatusFilter(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	postCommand(t, ts, models.CommandTypeDelay, `{"ms":1}`)
	postCommand(t, ts, models.CommandTypeHTTPGetJSON, `{"url":"http://example.com"}`)
	postClaim(t, ts, "agent-1")

	resp, err := http.Get(ts.URL + "/commands?status=pending")
	if err != nil {
		t.Fatalf("GET /commands failed: %v", err)
	}
	defer resp.Body.Close()

	var cmds []models.Command
	if err := json.NewDecoder(resp.Body).Decode(&cmds); err != nil {
		t.Fatalf("Failed to decode command list: %v", err)
	}
	if len(cmds) != 1 {
		t.Errorf("Expected 1 pending command, got %d", len(cmds))
	}
}

func TestRecoveryScenario(t *testing.T) {
	ts, svc := newTestServer(t)
	defer ts.Close()

	cmd := postCommand(t, ts, models.CommandTypeDelay, `{"ms":1}`)
	if claimed := postClaim(t, ts, "agent-1"); claimed == nil {
		t.Fatal("Expected a command from claim")
	}

	// Coordinator restarts while the command is in flight.
	reclaimed, err := svc.Recover()
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if reclaimed != 1 {
		t.Errorf("Expected 1 reclaimed, got %d", reclaimed)
	}

	got := getCommand(t, ts, cmd.ID)
	if got.Status != models.CommandStatusFailed || got.AgentID != "" {
		t.Errorf("Expected orphaned command reset, got %+v", got)
	}

	// A fresh agent picks the command back up and finishes it. The original
	// agent's late report must be fenced out.
	claimed := postClaim(t, ts, "agent-2")
	if claimed == nil || claimed.ID != cmd.ID {
		t.Fatal("Expected the recovered command to be reclaimable")
	}

	resp := postResult(t, ts, cmd.ID, "agent-1", `{"ok":true}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 for stale agent, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postResult(t, ts, cmd.ID, "agent-2", `{"ok":true,"took_ms":2}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for owning agent, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCommandEvents(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	cmd := postCommand(t, ts, models.CommandTypeDelay, `{"ms":1}`)
	postClaim(t, ts, "agent-1")
	resp := postResult(t, ts, cmd.ID, "agent-1", `{"ok":true}`)
	resp.Body.Close()

	eventsResp, err := http.Get(ts.URL + "/commands/" + cmd.ID + "/events")
	if err != nil {
		t.Fatalf("GET events failed: %v", err)
	}
	defer eventsResp.Body.Close()

	var events []models.AuditEvent
	if err := json.NewDecoder(eventsResp.Body).Decode(&events); err != nil {
		t.Fatalf("Failed to decode events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected create/claim/complete events, got %d", len(events))
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Service) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	svc := NewService(s, audit.NewRecorder(s))
	srv := NewServer(svc, s, "127.0.0.1:0")
	return httptest.NewServer(srv.Handler()), svc
}

func postCommand(t *testing.T, ts *httptest.Server, cmdType models.CommandType, payload string) *models.Command {
	t.Helper()
	body := fmt.Sprintf(`{"type":%q,"payload":%s}`, cmdType, payload)
	resp, err := http.Post(ts.URL+"/commands", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /commands failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var cmd models.Command
	if err := json.NewDecoder(resp.Body).Decode(&cmd); err != nil {
		t.Fatalf("Failed to decode command: %v", err)
	}
	return &cmd
}

func postClaim(t *testing.T, ts *httptest.Server, agentID string) *models.Command {
	t.Helper()
	body := fmt.Sprintf(`{"agent_id":%q}`, agentID)
	resp, err := http.Post(ts.URL+"/commands/claim", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /commands/claim failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 or 204 from claim, got %d", resp.StatusCode)
	}
	var cmd models.Command
	if err := json.NewDecoder(resp.Body).Decode(&cmd); err != nil {
		t.Fatalf("Failed to decode claimed command: %v", err)
	}
	return &cmd
}

func postResult(t *testing.T, ts *httptest.Server, commandID, agentID, result string) *http.Response {
	t.Helper()
	body := fmt.Sprintf(`{"agent_id":%q,"result":%s}`, agentID, result)
	resp, err := http.Post(ts.URL+"/commands/"+commandID+"/result", "application/json",
		bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST result failed: %v", err)
	}
	return resp
}

func getCommand(t *testing.T, ts *httptest.Server, commandID string) *models.Command {
	t.Helper()
	resp, err := http.Get(ts.URL + "/commands/" + commandID)
	if err != nil {
		t.Fatalf("GET command failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var cmd models.Command
	if err := json.NewDecoder(resp.Body).Decode(&cmd); err != nil {
		t.Fatalf("Failed to decode command: %v", err)
	}
	return &cmd
}
