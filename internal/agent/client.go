package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fentz26/drover/internal/models"
)

// DefaultClientTimeout is the default timeout for coordinator requests.
const DefaultClientTimeout = 10 * time.Second

// Coordinator is the transport the poll loop drives. Claim returns nil, nil
// when no work is available, which is distinct from an error.
type Coordinator interface {
	Claim(agentID string) (*models.Command, error)
	Submit(commandID, agentID string, result json.RawMessage) error
}

// HTTPCoordinator talks to the coordinator over its HTTP API.
type HTTPCoordinator struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPCoordinator creates an HTTP coordinator client with timeout.
func NewHTTPCoordinator(baseURL string) *HTTPCoordinator {
	return &HTTPCoordinator{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// Claim requests the oldest eligible command for agentID. A 204 response
// means no work is available and returns nil, nil.
func (c *HTTPCoordinator) Claim(agentID string) (*models.Command, error) {
	body, err := json.Marshal(map[string]string{"agent_id": agentID})
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(c.baseURL+"/commands/claim", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("claim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("claim error (%d): %s", resp.StatusCode, string(respBody))
	}

	var cmd models.Command
	if err := json.NewDecoder(resp.Body).Decode(&cmd); err != nil {
		return nil, fmt.Errorf("decode claimed command: %w", err)
	}
	return &cmd, nil
}

// Submit reports a result for a command held by agentID.
func (c *HTTPCoordinator) Submit(commandID, agentID string, result json.RawMessage) error {
	body, err := json.Marshal(map[string]interface{}{
		"agent_id": agentID,
		"result":   result,
	})
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Post(c.baseURL+"/commands/"+commandID+"/result", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("submit error (%d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
