// Package crm pushes enriched leads into Salesforce.
package crm

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
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

type Config struct {
	InstanceURL  string
	TokenURL     string
	ClientID     string
	ClientSecret string
	ApiVersion   string
	LeadSource   string
}

type Salesforce struct {
	instanceURL string
	apiVersion  string
	leadSource  string
	httpClient  *http.Client
	log         *slog.Logger
}

type leadRecord struct {
	FirstName   string `json:"FirstName,omitempty"`
	LastName    string `json:"LastName"`
	Company     string `json:"Company"`
	Email       string `json:"Email,omitempty"`
	Phone       string `json:"Phone,omitempty"`
	LeadSource  string `json:"LeadSource,omitempty"`
	Description string `json:"Description,omitempty"`
	Rating      string `json:"Rating,omitempty"`
}

type createResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Errors  []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	} `json:"errors"`
}

// NewSalesforce authenticates with the OAuth client-credentials flow; the
// token source refreshes on expiry.
func NewSalesforce(ctx context.Context, conf Config, log *slog.Logger) *Salesforce {
	cc := clientcredentials.Config{
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
		TokenURL:     conf.TokenURL,
	}
	client := cc.Client(ctx)
	client.Timeout = 20 * time.Second

	version := conf.ApiVersion
	if version == "" {
		version = "v59.0"
	}
	return &Salesforce{
		instanceURL: strings.TrimRight(conf.InstanceURL, "/"),
		apiVersion:  version,
		leadSource:  conf.LeadSource,
		httpClient:  client,
		log:         log.With(sl.Module("salesforce")),
	}
}

// CreateLead returns the Salesforce record id.
func (s *Salesforce) CreateLead(ctx context.Context, lead *entity.Lead, enrichment *entity.Enrichment) (string, error) {
	record := s.toRecord(lead, enrichment)
	body, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal lead: %w", err)
	}

	url := fmt.Sprintf("%s/services/data/%s/sobjects/Lead/", s.instanceURL, s.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("salesforce returned %d: %s", resp.StatusCode, string(raw))
	}

	var out createResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !out.Success || out.ID == "" {
		msg := "unknown error"
		if len(out.Errors) > 0 {
			msg = out.Errors[0].ErrorCode + ": " + out.Errors[0].Message
		}
		return "", fmt.Errorf("salesforce rejected lead: %s", msg)
	}

	s.log.Debug("lead created", slog.String("lead_id", lead.ID), slog.String("crm_id", out.ID))
	return out.ID, nil
}

func (s *Salesforce) toRecord(lead *entity.Lead, enrichment *entity.Enrichment) leadRecord {
	first := lead.Field("first_name")
	last := lead.Field("last_name")
	if last == "" {
		full := strings.TrimSpace(lead.Field("full_name", "name"))
		if i := strings.LastIndex(full, " "); i > 0 {
			first, last = full[:i], full[i+1:]
		} else {
			last = full
		}
	}
	if last == "" {
		last = "Lead " + lead.ID
	}

	company := lead.Field("company_name", "company")
	if company == "" {
		company = "Unknown"
	}

	r := leadRecord{
		FirstName:  first,
		LastName:   last,
		Company:    company,
		Email:      lead.Field("email"),
		Phone:      lead.Field("phone_number", "phone"),
		LeadSource: s.leadSource,
	}
	if enrichment != nil {
		r.Description = strings.TrimSpace(enrichment.Summary + "\nSegment: " + enrichment.Segment + "\nScore: " + strconv.Itoa(enrichment.Score))
		r.Rating = Rating(enrichment.Score)
	}
	return r
}

// Rating maps a 0-100 score onto the standard Lead picklist.
func Rating(score int) string {
	switch {
	case score >= 70:
		return "Hot"
	case score >= 40:
		return "Warm"
	default:
		return "Cold"
	}
}
