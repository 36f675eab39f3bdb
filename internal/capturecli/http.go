package capturecli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/facepace/internal/adapters/repository"
	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/internal/domain/results"
)

// Client talks to the facepace HTTP API.
type Client struct {
	baseURL  string
	client   *http.Client
	analysis *http.Client
}

// NewClient creates a client. Analysis requests get their own, longer timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		analysis: &http.Client{Timeout: analysisTimeout},
	}
}

type sessionResponse struct {
	SessionID     string             `json:"session_id"`
	State         model.SessionState `json:"state"`
	HasReport     bool               `json:"has_report"`
	LeaderboardID string             `json:"leaderboard_id"`
}

// Health probes /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	// The service answers with Prometheus text; any 200 is healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// CreateSession opens a new capture session.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var s sessionResponse
	if err := c.do(ctx, c.client, http.MethodPost, "/sessions", nil, "", &s); err != nil {
		return "", err
	}
	return s.SessionID, nil
}

// Session reads the session state.
func (c *Client) Session(ctx context.Context, id string) (model.SessionState, error) {
	var s sessionResponse
	if err := c.do(ctx, c.client, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, "", &s); err != nil {
		return "", err
	}
	return s.State, nil
}

// Upload sends one asset as a raw body.
func (c *Client) Upload(ctx context.Context, id string, kind model.AssetKind, blob model.Blob) error {
	path := "/sessions/" + url.PathEscape(id) + "/" + string(kind)
	return c.do(ctx, c.client, http.MethodPut, path, blob.Data, blob.ContentType, nil)
}

// Analyze requests the analysis and waits for the report.
func (c *Client) Analyze(ctx context.Context, id string, age int) (results.View, error) {
	body, err := json.Marshal(map[string]int{"age": age})
	if err != nil {
		return results.View{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	var view results.View
	err = c.do(ctx, c.analysis, http.MethodPost, "/sessions/"+url.PathEscape(id)+"/analysis", body, "application/json", &view)
	return view, err
}

// Publish adds the session result to the leaderboard.
func (c *Client) Publish(ctx context.Context, id, name string) (repository.Ranked, error) {
	body, err := json.Marshal(map[string]string{"session_id": id, "name": name})
	if err != nil {
		return repository.Ranked{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	var entry repository.Ranked
	err = c.do(ctx, c.client, http.MethodPost, "/leaderboard", body, "application/json", &entry)
	return entry, err
}

// Leaderboard fetches the top n entries.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]repository.Ranked, error) {
	var entries []repository.Ranked
	err := c.do(ctx, c.client, http.MethodGet, "/leaderboard?limit="+strconv.Itoa(n), nil, "", &entries)
	return entries, err
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body []byte, contentType string, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
