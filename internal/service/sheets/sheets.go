// Package sheets mirrors processed leads into a Google spreadsheet.
package sheets

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

type Exporter struct {
	service       *gsheets.Service
	spreadsheetID string
	writeRange    string
	log           *slog.Logger
}

// NewExporter builds the Sheets client from a service-account file unless
// opts already carry credentials.
func NewExporter(ctx context.Context, credentialsFile, spreadsheetID, writeRange string, log *slog.Logger, opts ...option.ClientOption) (*Exporter, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(gsheets.SpreadsheetsScope))

	service, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &Exporter{
		service:       service,
		spreadsheetID: spreadsheetID,
		writeRange:    writeRange,
		log:           log.With(sl.Module("sheets")),
	}, nil
}

// AppendLead writes one row: lead id, agent, created, name, email, phone,
// score, summary.
func (e *Exporter) AppendLead(ctx context.Context, agentID string, lead *entity.Lead, enrichment *entity.Enrichment) error {
	row := Row(agentID, lead, enrichment)
	_, err := e.service.Spreadsheets.Values.
		Append(e.spreadsheetID, e.writeRange, &gsheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append lead %s: %w", lead.ID, err)
	}
	e.log.Debug("lead exported", slog.String("lead_id", lead.ID))
	return nil
}

func Row(agentID string, lead *entity.Lead, enrichment *entity.Enrichment) []interface{} {
	created := ""
	if !lead.CreatedTime.IsZero() {
		created = lead.CreatedTime.UTC().Format(time.RFC3339)
	}
	score, summary := "", ""
	if enrichment != nil {
		score = strconv.Itoa(enrichment.Score)
		summary = enrichment.Summary
	}
	return []interface{}{
		lead.ID,
		agentID,
		created,
		lead.Field("full_name", "name"),
		lead.Field("email"),
		lead.Field("phone_number", "phone"),
		score,
		summary,
	}
}
