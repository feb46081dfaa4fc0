package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"comicpdf/internal/services"
)

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls OneBot HTTP API actions.
type Client struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// NewClient constructs a client for the API rooted at baseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return NewClientWithDoer(baseURL, token, &http.Client{Timeout: timeout})
}

// NewClientWithDoer constructs a client using the supplied HTTP doer.
func NewClientWithDoer(baseURL, token string, doer HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  doer,
	}
}

type apiResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
}

// Call posts params as JSON to {baseURL}/{action} and returns the response
// data. A response whose status is not "ok" is an error.
func (c *Client) Call(ctx context.Context, action string, params any) (json.RawMessage, error) {
	if c == nil || c.client == nil || c.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "onebot", action, "api url not configured", nil)
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "onebot", action, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", action, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrExternalTool, "onebot", action,
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "onebot", action, "decode response", err)
	}
	if !strings.EqualFold(decoded.Status, "ok") {
		detail := strings.TrimSpace(decoded.Wording)
		if detail == "" {
			detail = strings.TrimSpace(decoded.Message)
		}
		return nil, services.Wrap(services.ErrExternalTool, "onebot", action,
			fmt.Sprintf("status %q retcode %d: %s", decoded.Status, decoded.RetCode, detail), nil)
	}
	return decoded.Data, nil
}
