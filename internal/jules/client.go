package jules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultBaseURL is the production Jules API endpoint.
const DefaultBaseURL = "https://jules.googleapis.com/v1alpha"

// Client is the remote job API surface consumed by the bridge.
type Client interface {
	// CreateSession starts a new remote job for the given prompt.
	CreateSession(ctx context.Context, prompt, sourceName, branchName string) (*Session, error)

	// ListActivities returns the current page of activities for a session.
	ListActivities(ctx context.Context, sessionName string) ([]Activity, error)

	// SendMessage injects a prompt into an existing session.
	SendMessage(ctx context.Context, sessionName, prompt string) error
}

// APIError is a structured non-2xx response from the Jules API. It is
// distinguishable from transport errors via errors.As.
type APIError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("jules api: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("jules api: status %d", e.StatusCode)
}

// HTTPClient implements Client against the Jules REST API.
type HTTPClient struct {
	baseURL  string
	apiKey   string
	pageSize int
	http     *http.Client
}

// NewHTTPClient creates a Jules API client. An empty baseURL selects
// DefaultBaseURL; pageSize bounds each activity listing.
func NewHTTPClient(baseURL, apiKey string, pageSize int) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		pageSize: pageSize,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// createSessionRequest is the wire shape of POST /sessions.
type createSessionRequest struct {
	Prompt              string        `json:"prompt"`
	SourceContext       sourceContext `json:"sourceContext"`
	RequirePlanApproval bool          `json:"requirePlanApproval"`
}

type sourceContext struct {
	Source            string            `json:"source"`
	GithubRepoContext githubRepoContext `json:"githubRepoContext"`
}

type githubRepoContext struct {
	StartingBranch string `json:"startingBranch"`
}

// CreateSession starts a new remote job for the given prompt.
func (c *HTTPClient) CreateSession(ctx context.Context, prompt, sourceName, branchName string) (*Session, error) {
	body := createSessionRequest{
		Prompt: prompt,
		SourceContext: sourceContext{
			Source:            sourceName,
			GithubRepoContext: githubRepoContext{StartingBranch: branchName},
		},
		RequirePlanApproval: false,
	}

	raw, err := c.do(ctx, http.MethodPost, "/sessions", body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if parsed.Name == "" {
		return nil, fmt.Errorf("create session: response missing session name")
	}

	return &Session{Name: parsed.Name, Raw: raw}, nil
}

// ListActivities returns the current page of activities for a session,
// oldest first as returned by the API.
func (c *HTTPClient) ListActivities(ctx context.Context, sessionName string) ([]Activity, error) {
	path := "/" + sessionName + "/activities?pageSize=" + strconv.Itoa(c.pageSize)
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Activities []Activity `json:"activities"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return parsed.Activities, nil
}

// SendMessage injects a prompt into an existing session.
func (c *HTTPClient) SendMessage(ctx context.Context, sessionName, prompt string) error {
	body := map[string]string{"prompt": prompt}
	_, err := c.do(ctx, http.MethodPost, "/"+sessionName+":sendMessage", body)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: data}
	}
	return data, nil
}
