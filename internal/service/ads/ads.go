// Package ads pulls lead-form submissions from the Meta Graph API.
package ads

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

// Graph returns created_time with a numeric offset and no colon.
const graphTimeLayout = "2006-01-02T15:04:05-0700"

// maxPages bounds one fetch so a misbehaving cursor cannot loop forever.
const maxPages = 50

type Service struct {
	graphURL    string
	accessToken string
	pageSize    int
	httpClient  *http.Client
	log         *slog.Logger
}

type leadsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		CreatedTime string `json:"created_time"`
		FieldData   []struct {
			Name   string   `json:"name"`
			Values []string `json:"values"`
		} `json:"field_data"`
	} `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func NewService(graphURL, accessToken string, pageSize int, log *slog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Service{
		graphURL:    strings.TrimRight(graphURL, "/"),
		accessToken: accessToken,
		pageSize:    pageSize,
		httpClient:  &http.Client{Timeout: 20 * time.Second},
		log:         log.With(sl.Module("ads")),
	}
}

// FetchLeads returns every submission of the form created after since
// (all of them when since is zero), following the after cursor.
func (s *Service) FetchLeads(ctx context.Context, formID string, since time.Time) ([]entity.Lead, error) {
	if formID == "" {
		return nil, fmt.Errorf("%w: empty form id", entity.ErrValidation)
	}

	var leads []entity.Lead
	after := ""
	for page := 0; page < maxPages; page++ {
		resp, err := s.fetchPage(ctx, formID, since, after)
		if err != nil {
			return leads, err
		}
		for _, d := range resp.Data {
			lead := entity.Lead{
				ID:     d.ID,
				FormID: formID,
				Fields: make(map[string]string, len(d.FieldData)),
			}
			if t, err := time.Parse(graphTimeLayout, d.CreatedTime); err == nil {
				lead.CreatedTime = t.UTC()
			}
			for _, f := range d.FieldData {
				lead.Fields[f.Name] = strings.Join(f.Values, ", ")
			}
			leads = append(leads, lead)
		}
		if resp.Paging.Next == "" || resp.Paging.Cursors.After == "" {
			break
		}
		after = resp.Paging.Cursors.After
	}

	s.log.Debug("leads fetched",
		slog.String("form_id", formID),
		slog.Int("count", len(leads)),
	)
	return leads, nil
}

func (s *Service) fetchPage(ctx context.Context, formID string, since time.Time, after string) (*leadsResponse, error) {
	q := url.Values{}
	q.Set("access_token", s.accessToken)
	q.Set("fields", "id,created_time,field_data")
	q.Set("limit", strconv.Itoa(s.pageSize))
	if after != "" {
		q.Set("after", after)
	}
	if !since.IsZero() {
		q.Set("filtering", fmt.Sprintf(`[{"field":"time_created","operator":"GREATER_THAN","value":%d}]`, since.Unix()))
	}

	u := fmt.Sprintf("%s/%s/leads?%s", s.graphURL, url.PathEscape(formID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var out leadsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode leads (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("graph error %d: %s", out.Error.Code, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph returned %d", resp.StatusCode)
	}
	return &out, nil
}
