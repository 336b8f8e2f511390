// Package voice is the client for the live audio channel. Sessions are
// opened asynchronously; completion arrives later through the channel's
// webhook, never through this client.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CallContext is the briefing handed to the channel when a session opens.
type CallContext struct {
	TicketID       string `json:"ticket_id"`
	Subject        string `json:"subject"`
	Query          string `json:"query"`
	RedirectReason string `json:"redirect_reason,omitempty"`
}

// Client calls the voice channel over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a voice channel client with a bounded timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type startSessionRequest struct {
	EmployeeID string      `json:"employee_id"`
	Context    CallContext `json:"context"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
}

// StartSession asks the channel to open a call and returns as soon as the
// channel acknowledges creation. It never waits for pickup.
func (c *Client) StartSession(ctx context.Context, employeeID string, callCtx CallContext) (string, error) {
	body, err := json.Marshal(startSessionRequest{EmployeeID: employeeID, Context: callCtx})
	if err != nil {
		return "", fmt.Errorf("marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("voice channel request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("voice channel returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed startSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	return parsed.SessionID, nil
}
