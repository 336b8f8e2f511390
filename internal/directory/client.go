// Package directory is the client for the employee directory service.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spec-kit/support-router/internal/domain"
)

// Client calls the directory service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a directory client with a bounded timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type candidatesRequest struct {
	Excluding []string `json:"excluding"`
}

type candidatesResponse struct {
	Candidates []domain.Employee `json:"candidates"`
}

// ListCandidates returns employees eligible for assignment, already
// filtered server-side by the exclusion set.
func (c *Client) ListCandidates(ctx context.Context, excluding []string) ([]domain.Employee, error) {
	if excluding == nil {
		excluding = []string{}
	}
	body, err := json.Marshal(candidatesRequest{Excluding: excluding})
	if err != nil {
		return nil, fmt.Errorf("marshal candidates request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/candidates", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build candidates request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("directory returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed candidatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode candidates response: %w", err)
	}
	return parsed.Candidates, nil
}
