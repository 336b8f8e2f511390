// Package knowledge is the client for the document similarity store.
package knowledge

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

// SearchResult carries ranked passages and the store's confidence that
// they answer the query. Passages may be empty.
type SearchResult struct {
	Passages   []string `json:"passages"`
	Confidence float64  `json:"confidence"`
}

// Client calls the knowledge store over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a knowledge store client with a bounded timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

// Search returns ranked passages with confidence for the query.
func (c *Client) Search(ctx context.Context, query string) (SearchResult, error) {
	body, err := json.Marshal(searchRequest{Query: query})
	if err != nil {
		return SearchResult{}, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return SearchResult{}, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SearchResult{}, fmt.Errorf("knowledge store request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return SearchResult{}, fmt.Errorf("knowledge store returned %d: %s", resp.StatusCode, string(raw))
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SearchResult{}, fmt.Errorf("decode search response: %w", err)
	}
	return result, nil
}
