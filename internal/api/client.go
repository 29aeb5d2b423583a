package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bz888/agentchat/internal/logger"
)

const (
	chatPath          = "chat"
	healthPath        = "health"
	modelsPath        = "models"
	conversationsPath = "conversations"

	// cap on error bodies copied into a TransportError
	maxErrorBody = 4 << 10
)

var localLogger = logger.New("api client")

// Config holds the configuration for the client.
type Config struct {
	BaseURL string
	// Timeout bounds every exchange. Zero means no timeout.
	Timeout time.Duration
	// HTTPClient replaces the default client; Timeout is still applied.
	HTTPClient *http.Client
}

// Client talks to the agent backend. It makes a single attempt per call.
type Client struct {
	base      *url.URL
	http      *http.Client
	chatURL   *url.URL
	healthURL *url.URL
	modelsURL *url.URL
}

func NewClient(config Config) (*Client, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", config.BaseURL)
	}

	httpClient := &http.Client{}
	if config.HTTPClient != nil {
		c := *config.HTTPClient
		httpClient = &c
	}
	httpClient.Timeout = config.Timeout

	return &Client{
		base:      base,
		http:      httpClient,
		chatURL:   base.JoinPath(chatPath),
		healthURL: base.JoinPath(healthPath),
		modelsURL: base.JoinPath(modelsPath),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.base.String()
}

// SendMessage posts one user message and returns the agent's reply.
func (c *Client) SendMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, "send message", http.MethodPost, c.chatURL, req, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, &TransportError{Op: "send message", Err: errors.New("response has no text")}
	}
	localLogger.Debugf("reply from %s for conversation %s", resp.ModelUsed, resp.ConversationID)
	return &resp, nil
}

func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "health check", http.MethodGet, c.healthURL, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var resp ModelsResponse
	if err := c.do(ctx, "list models", http.MethodGet, c.modelsURL, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// DeleteConversation asks the backend to forget a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	if id == "" {
		return &TransportError{Op: "delete conversation", Err: errors.New("empty conversation id")}
	}
	u := c.base.JoinPath(conversationsPath, url.PathEscape(id))
	return c.do(ctx, "delete conversation", http.MethodDelete, u, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method string, u *url.URL, body, out any) error {
	var buf io.Reader
	if body != nil {
		bts, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: err}
		}
		buf = bytes.NewReader(bts)
	}

	request, err := http.NewRequestWithContext(ctx, method, u.String(), buf)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	localLogger.Debug(method, u.Path)
	response, err := c.http.Do(request)
	if err != nil {
		localLogger.Errorf("%s failed: %s", op, err)
		return &TransportError{Op: op, Err: err}
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			localLogger.Warnf("failed to close response body: %s", err)
		}
	}()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
		localLogger.Errorf("%s failed: %s", op, response.Status)
		return &TransportError{
			Op:         op,
			StatusCode: response.StatusCode,
			Err:        errors.New(errorDetail(response.Status, detail)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		localLogger.Errorf("%s: failed to decode response: %s", op, err)
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorDetail prefers the FastAPI style {"detail": "..."} body over the bare
// status line.
func errorDetail(status string, body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return status
}
