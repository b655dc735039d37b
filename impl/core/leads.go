package core

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/metrics"
	"AgentDesk/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

var ErrLeadRunInProgress = fmt.Errorf("lead pipeline is already running: %w", entity.ErrConflict)

const (
	stepFetch  = "fetch"
	stepEnrich = "enrich"
	stepCrm    = "crm"
	stepDone   = "done"

	leadSkipped = "skipped"
)

// RunLeads makes one pipeline pass over every agent with a lead form.
func (c *Core) RunLeads(ctx context.Context) ([]entity.LeadRunResult, error) {
	if err := c.leadsReady(); err != nil {
		return nil, err
	}
	select {
	case c.leadRun <- struct{}{}:
		defer func() { <-c.leadRun }()
	default:
		return nil, ErrLeadRunInProgress
	}

	agents, err := c.repo.ListLeadAgents(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]entity.LeadRunResult, 0, len(agents))
	for i := range agents {
		res, err := c.processAgentLeads(ctx, &agents[i])
		if err != nil {
			c.log.Error("lead fetch failed",
				slog.String("agent_id", agents[i].ID),
				sl.Err(err),
			)
		}
		results = append(results, res)
		if ctx.Err() != nil {
			break
		}
	}
	return results, nil
}

// RunAgentLeads is the on-demand pass for a single agent.
func (c *Core) RunAgentLeads(ctx context.Context, op *entity.Operator, agentID string) (*entity.LeadRunResult, error) {
	agent, err := c.agentFor(ctx, op, agentID)
	if err != nil {
		return nil, err
	}
	if agent.Ads.FormID == "" {
		return nil, fmt.Errorf("%w: agent has no lead form", entity.ErrValidation)
	}
	if err = c.leadsReady(); err != nil {
		return nil, err
	}
	select {
	case c.leadRun <- struct{}{}:
		defer func() { <-c.leadRun }()
	default:
		return nil, ErrLeadRunInProgress
	}

	res, err := c.processAgentLeads(ctx, agent)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Core) ListLeadLogs(ctx context.Context, op *entity.Operator, agentID string, limit int) ([]entity.LeadLog, error) {
	if agentID == "" && !op.IsAdmin() {
		return nil, fmt.Errorf("%w: agent_id is required", entity.ErrValidation)
	}
	if agentID != "" {
		if _, err := c.agentFor(ctx, op, agentID); err != nil {
			return nil, err
		}
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return c.repo.ListLeadLogs(ctx, agentID, limit)
}

func (c *Core) leadsReady() error {
	switch {
	case c.repo == nil:
		return fmt.Errorf("%w: repository", entity.ErrDisabled)
	case c.ads == nil:
		return fmt.Errorf("%w: ads source", entity.ErrDisabled)
	case c.crm == nil:
		return fmt.Errorf("%w: crm", entity.ErrDisabled)
	}
	return nil
}

func (c *Core) processAgentLeads(ctx context.Context, agent *entity.Agent) (entity.LeadRunResult, error) {
	res := entity.LeadRunResult{AgentID: agent.ID}

	var since time.Time
	if c.leads.Lookback > 0 {
		since = time.Now().Add(-c.leads.Lookback)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return res, err
	}
	leads, err := c.ads.FetchLeads(ctx, agent.Ads.FormID, since)
	if err != nil {
		return res, err
	}
	res.Fetched = len(leads)

	for i := range leads {
		switch c.processLead(ctx, agent, &leads[i]) {
		case entity.LeadSynced:
			res.Synced++
		case leadSkipped:
			res.Skipped++
		default:
			res.Failed++
		}
		if ctx.Err() != nil {
			break
		}
	}

	c.log.Info("lead pass finished",
		slog.String("agent_id", agent.ID),
		slog.Int("fetched", res.Fetched),
		slog.Int("synced", res.Synced),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

// processLead walks one lead through received -> enriched -> synced. A
// failing step marks the row failed and the lead is left for a later pass.
func (c *Core) processLead(ctx context.Context, agent *entity.Agent, lead *entity.Lead) string {
	log := c.log.With(slog.String("agent_id", agent.ID), slog.String("lead_id", lead.ID))

	row, inserted, err := c.repo.ClaimLead(ctx, lead.ID, agent.ID)
	if err != nil {
		log.Error("claim lead failed", sl.Err(err))
		return entity.LeadFailed
	}
	if !inserted && row.Status == entity.LeadSynced {
		return leadSkipped
	}

	entry := entity.LeadLog{LeadID: lead.ID, AgentID: agent.ID, Status: entity.LeadReceived, Step: stepFetch}

	var enrichment *entity.Enrichment
	if c.enricher != nil {
		if err = c.limiter.Wait(ctx); err != nil {
			return c.failLead(ctx, log, entry, stepEnrich, err)
		}
		if enrichment, err = c.enricher.Enrich(ctx, lead); err != nil {
			return c.failLead(ctx, log, entry, stepEnrich, err)
		}
	}
	entry.Status = entity.LeadEnriched
	entry.Step = stepEnrich
	if err = c.repo.UpdateLeadLog(ctx, entry); err != nil {
		log.Warn("update lead log", sl.Err(err))
	}

	if err = c.limiter.Wait(ctx); err != nil {
		return c.failLead(ctx, log, entry, stepCrm, err)
	}
	crmID, err := c.crm.CreateLead(ctx, lead, enrichment)
	if err != nil {
		return c.failLead(ctx, log, entry, stepCrm, err)
	}
	entry.CrmID = crmID

	if c.exporter != nil {
		if err = c.exporter.AppendLead(ctx, agent.ID, lead, enrichment); err != nil {
			log.Warn("lead export failed", sl.Err(err))
		}
	}

	entry.Status = entity.LeadSynced
	entry.Step = stepDone
	entry.Error = ""
	if err = c.repo.UpdateLeadLog(ctx, entry); err != nil {
		log.Warn("update lead log", sl.Err(err))
	}
	metrics.LeadsProcessed.WithLabelValues(entity.LeadSynced).Inc()
	return entity.LeadSynced
}

func (c *Core) failLead(ctx context.Context, log *slog.Logger, entry entity.LeadLog, step string, cause error) string {
	entry.Status = entity.LeadFailed
	entry.Step = step
	entry.Error = cause.Error()
	if len(entry.Error) > 1000 {
		entry.Error = entry.Error[:1000]
	}
	if err := c.repo.UpdateLeadLog(ctx, entry); err != nil {
		log.Warn("update lead log", sl.Err(err))
	}
	metrics.LeadsProcessed.WithLabelValues(entity.LeadFailed).Inc()
	log.Error("lead failed", slog.String("step", step), sl.Err(cause))
	return entity.LeadFailed
}

// startLeadScheduler runs the pipeline on every tick of the cron expression.
func (c *Core) startLeadScheduler(ctx context.Context, cronExpr string) error {
	if !gronx.IsValid(cronExpr) {
		return fmt.Errorf("invalid lead cron expression: %s", cronExpr)
	}

	go func() {
		for {
			next, err := gronx.NextTickAfter(cronExpr, time.Now(), false)
			if err != nil {
				c.log.Error("lead scheduler next tick", sl.Err(err))
				select {
				case <-time.After(time.Minute):
					continue
				case <-ctx.Done():
					return
				}
			}
			c.log.Debug("next lead run", slog.Time("next_run", next))

			select {
			case <-time.After(time.Until(next)):
			case <-ctx.Done():
				return
			}

			if _, err := c.RunLeads(ctx); err != nil && !errors.Is(err, ErrLeadRunInProgress) {
				c.log.Error("scheduled lead run", sl.Err(err))
			}
		}
	}()
	c.log.Info("lead scheduler started", slog.String("cron", cronExpr))
	return nil
}
