package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// CommandItem is a summary of a command for the list view.
type CommandItem struct {
	ID      string
	Type    string
	Status  string
	AgentID string
}

// CommandDetail is the full command information.
type CommandDetail struct {
	ID         string
	Type       string
	Payload    string
	Status     string
	Result     string
	AgentID    string
	CreatedAt  string
	UpdatedAt  string
	AssignedAt string
}

// EventDetail represents an audit event row.
type EventDetail struct {
	Action    string
	Outcome   string
	Details   string
	Timestamp string
}

// Client wraps HTTP calls to the drover coordinator API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ListCommands fetches commands from the API.
func (c *Client) ListCommands(status string) ([]CommandItem, error) {
	url := c.baseURL + "/commands"
	if status != "" {
		url += "?status=" + status
	}

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var cmds []struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Status  string `json:"status"`
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cmds); err != nil {
		return nil, err
	}

	items := make([]CommandItem, len(cmds))
	for i, cm := range cmds {
		items[i] = CommandItem{
			ID:      cm.ID,
			Type:    cm.Type,
			Status:  cm.Status,
			AgentID: cm.AgentID,
		}
	}
	return items, nil
}

// GetCommand fetches a single command.
func (c *Client) GetCommand(id string) (*CommandDetail, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/commands/" + id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var cm struct {
		ID         string          `json:"id"`
		Type       string          `json:"type"`
		Payload    json.RawMessage `json:"payload"`
		Status     string          `json:"status"`
		Result     json.RawMessage `json:"result"`
		AgentID    string          `json:"agent_id"`
		CreatedAt  string          `json:"created_at"`
		UpdatedAt  string          `json:"updated_at"`
		AssignedAt string          `json:"assigned_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cm); err != nil {
		return nil, err
	}

	return &CommandDetail{
		ID:         cm.ID,
		Type:       cm.Type,
		Payload:    string(cm.Payload),
		Status:     cm.Status,
		Result:     string(cm.Result),
		AgentID:    cm.AgentID,
		CreatedAt:  cm.CreatedAt,
		UpdatedAt:  cm.UpdatedAt,
		AssignedAt: cm.AssignedAt,
	}, nil
}

// GetCommandEvents fetches the audit trail for a command.
func (c *Client) GetCommandEvents(commandID string) ([]EventDetail, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/commands/" + commandID + "/events")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var events []struct {
		Action    string `json:"action"`
		Outcome   string `json:"outcome"`
		Details   string `json:"details"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, err
	}

	details := make([]EventDetail, len(events))
	for i, ev := range events {
		details[i] = EventDetail{
			Action:    ev.Action,
			Outcome:   ev.Outcome,
			Details:   ev.Details,
			Timestamp: ev.Timestamp,
		}
	}
	return details, nil
}

// SubmitCommand submits a new command.
func (c *Client) SubmitCommand(cmdType, payload string) (string, error) {
	body := map[string]interface{}{
		"type":    cmdType,
		"payload": json.RawMessage(payload),
	}
	resp, err := c.post("/commands", body)
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}

// CheckHealth checks if the coordinator is healthy.
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}

	return health.OK, nil
}
