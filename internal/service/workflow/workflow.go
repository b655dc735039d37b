// Package workflow reads execution history from the automation engine
// (n8n public API).
package workflow

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxPageSize = 250

type Service struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// ListOptions filters one page of executions; zero values are omitted.
type ListOptions struct {
	WorkflowID  string
	Status      string
	Limit       int
	Cursor      string
	IncludeData bool
}

func NewService(baseURL, apiKey string, log *slog.Logger) *Service {
	return &Service{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		log:        log.With(sl.Module("workflow")),
	}
}

func (s *Service) ListExecutions(ctx context.Context, opts ListOptions) (*entity.ExecutionPage, error) {
	q := url.Values{}
	if opts.WorkflowID != "" {
		q.Set("workflowId", opts.WorkflowID)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		if opts.Limit > maxPageSize {
			opts.Limit = maxPageSize
		}
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}
	if opts.IncludeData {
		q.Set("includeData", "true")
	}

	var page entity.ExecutionPage
	if err := s.get(ctx, "/api/v1/executions", q, &page); err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	if page.Data == nil {
		page.Data = []entity.Execution{}
	}
	return &page, nil
}

// GetExecution always includes the node run data.
func (s *Service) GetExecution(ctx context.Context, id string) (*entity.Execution, error) {
	var ex entity.Execution
	q := url.Values{"includeData": {"true"}}
	if err := s.get(ctx, "/api/v1/executions/"+url.PathEscape(id), q, &ex); err != nil {
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	}
	return &ex, nil
}

func (s *Service) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := s.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-N8N-API-KEY", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return entity.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("workflow engine returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
