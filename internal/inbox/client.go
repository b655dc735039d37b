package inbox

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// HTTPClient talks to the console backend. The session token lives on the
// client value and is sent as a bearer token.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	mu         sync.RWMutex
	token      string
	log        *slog.Logger
}

type envelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With(sl.Module("inbox.client")),
	}
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Login opens a session and keeps its token for later calls.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (*entity.Session, error) {
	var session entity.Session
	err := c.call(ctx, http.MethodPost, "/api/v1/auth/login", nil,
		entity.LoginRequest{Username: username, Password: password}, &session)
	if err != nil {
		return nil, err
	}
	c.SetToken(session.Token)
	return &session, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil, nil)
	c.SetToken("")
	return err
}

func (c *HTTPClient) ListAgents(ctx context.Context) ([]entity.Agent, error) {
	var agents []entity.Agent
	if err := c.call(ctx, http.MethodGet, "/api/v1/agents", nil, nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

func (c *HTTPClient) ListConversations(ctx context.Context, agentName string, from, to time.Time) ([]entity.Conversation, error) {
	q := url.Values{"agent_name": {agentName}}
	if !from.IsZero() {
		q.Set("from", from.UTC().Format(time.RFC3339Nano))
	}
	if !to.IsZero() {
		q.Set("to", to.UTC().Format(time.RFC3339Nano))
	}
	var conversations []entity.Conversation
	if err := c.call(ctx, http.MethodGet, "/api/v1/conversations", q, nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// CheckUpdates reads the flat reply of the polling endpoint.
func (c *HTTPClient) CheckUpdates(ctx context.Context, agentName string, since time.Time) (*entity.UpdateSet, error) {
	q := url.Values{"agent_name": {agentName}}
	if !since.IsZero() {
		q.Set("lastCheckTimestamp", since.UTC().Format(time.RFC3339Nano))
	}
	raw, status, err := c.do(ctx, http.MethodGet, "/api/v1/conversations/check-updates", q, nil)
	if err != nil {
		return nil, err
	}
	var updates entity.UpdateSet
	if err = json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("decode check-updates (status %d): %w", status, err)
	}
	if !updates.Ok {
		return nil, fmt.Errorf("check-updates: %s (status %d)", updates.Error, status)
	}
	return &updates, nil
}

func (c *HTTPClient) GetLock(ctx context.Context, key entity.ConversationKey) (*entity.HandoffLock, error) {
	q := url.Values{
		"agent_id":        {key.AgentID},
		"user_id":         {key.UserID},
		"phone_number_id": {key.PhoneNumberID},
	}
	var lock entity.HandoffLock
	if err := c.call(ctx, http.MethodGet, "/api/v1/conversations/lock", q, nil, &lock); err != nil {
		return nil, err
	}
	return &lock, nil
}

func (c *HTTPClient) Take(ctx context.Context, req entity.TakeRequest) (*entity.HandoffLock, error) {
	var lock entity.HandoffLock
	if err := c.call(ctx, http.MethodPost, "/api/v1/conversations/take", nil, req, &lock); err != nil {
		return nil, err
	}
	return &lock, nil
}

func (c *HTTPClient) Release(ctx context.Context, req entity.ReleaseRequest) error {
	return c.call(ctx, http.MethodPost, "/api/v1/conversations/release", nil, req, nil)
}

func (c *HTTPClient) MarkRead(ctx context.Context, req entity.MarkReadRequest) error {
	return c.call(ctx, http.MethodPost, "/api/v1/conversations/mark-read", nil, req, nil)
}

func (c *HTTPClient) Send(ctx context.Context, req entity.SendRequest) (*entity.SendResult, error) {
	var result entity.SendResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/whatsapp/send", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call decodes the {ok, data, error} envelope; ok=false is an error like a
// transport failure.
func (c *HTTPClient) call(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	raw, status, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	var env envelope
	if err = json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s %s: decode response (status %d): %w", method, path, status, err)
	}
	if !env.Ok {
		return fmt.Errorf("%s %s: %s (status %d)", method, path, env.Error, status)
	}
	if out != nil && len(env.Data) > 0 {
		if err = json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	c.log.Debug("backend call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)
	return raw, resp.StatusCode, nil
}
