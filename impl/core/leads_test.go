package core

import (
	"AgentDesk/entity"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAds struct {
	leads []entity.Lead
	err   error
}

func (a *fakeAds) FetchLeads(_ context.Context, _ string, _ time.Time) ([]entity.Lead, error) {
	return a.leads, a.err
}

type fakeEnricher struct{ fail map[string]bool }

func (e *fakeEnricher) Enrich(_ context.Context, lead *entity.Lead) (*entity.Enrichment, error) {
	if e.fail[lead.ID] {
		return nil, errors.New("llm timeout")
	}
	return &entity.Enrichment{Summary: "ok", Score: 50}, nil
}

type fakeCrm struct{ created []string }

func (c *fakeCrm) CreateLead(_ context.Context, lead *entity.Lead, _ *entity.Enrichment) (string, error) {
	c.created = append(c.created, lead.ID)
	return "crm-" + lead.ID, nil
}

type fakeExporter struct{ rows int }

func (e *fakeExporter) AppendLead(_ context.Context, _ string, _ *entity.Lead, _ *entity.Enrichment) error {
	e.rows++
	return errors.New("sheet quota")
}

func leadFixture() (*fixture, *fakeAds, *fakeCrm, *fakeExporter) {
	agent := readyAgent()
	agent.Ads.FormID = "F1"
	f := newFixture(agent)
	ads := &fakeAds{leads: []entity.Lead{{ID: "L1"}, {ID: "L2"}, {ID: "L3"}}}
	crm := &fakeCrm{}
	exporter := &fakeExporter{}
	f.core.SetLeadSource(ads)
	f.core.SetLeadEnricher(&fakeEnricher{fail: map[string]bool{"L2": true}})
	f.core.SetCrmService(crm)
	f.core.SetLeadExporter(exporter)
	f.core.SetLeadOptions(LeadOptions{RateLimit: 1000, Burst: 100})
	return f, ads, crm, exporter
}

func TestRunLeads(t *testing.T) {
	f, _, crm, exporter := leadFixture()
	f.repo.leadLogs["L3"] = &entity.LeadLog{LeadID: "L3", AgentID: "a1", Status: entity.LeadSynced}

	results, err := f.core.RunLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, entity.LeadRunResult{AgentID: "a1", Fetched: 3, Synced: 1, Failed: 1, Skipped: 1}, results[0])

	assert.Equal(t, []string{"L1"}, crm.created)
	assert.Equal(t, 1, exporter.rows)

	assert.Equal(t, entity.LeadSynced, f.repo.leadLogs["L1"].Status)
	assert.Equal(t, "crm-L1", f.repo.leadLogs["L1"].CrmID)
	assert.Equal(t, entity.LeadFailed, f.repo.leadLogs["L2"].Status)
	assert.Equal(t, stepEnrich, f.repo.leadLogs["L2"].Step)
	assert.Contains(t, f.repo.leadLogs["L2"].Error, "llm timeout")
}

func TestRunLeads_SecondPassSkipsSynced(t *testing.T) {
	f, _, crm, _ := leadFixture()
	ctx := context.Background()

	_, err := f.core.RunLeads(ctx)
	require.NoError(t, err)
	results, err := f.core.RunLeads(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, results[0].Skipped)
	assert.Equal(t, 1, results[0].Failed)
	assert.Equal(t, []string{"L1", "L3"}, crm.created)
}

func TestRunLeads_Guards(t *testing.T) {
	f := newFixture(readyAgent())
	_, err := f.core.RunLeads(context.Background())
	assert.ErrorIs(t, err, entity.ErrDisabled)

	f, _, _, _ = leadFixture()
	f.core.leadRun <- struct{}{}
	_, err = f.core.RunLeads(context.Background())
	assert.ErrorIs(t, err, ErrLeadRunInProgress)
	<-f.core.leadRun

	_, err = f.core.RunAgentLeads(context.Background(), stranger, "a1")
	assert.ErrorIs(t, err, entity.ErrForbidden)
}

func TestLeadScheduler_InvalidCron(t *testing.T) {
	f := newFixture()
	assert.Error(t, f.core.startLeadScheduler(context.Background(), "not a cron"))
}
