package bot

import (
	"AgentDesk/entity"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, `lead\_log \(3\)\.`, sanitize("lead_log (3).", false))
	assert.Equal(t, `[a](b)\.`, sanitize("[a](b).", true))
	assert.Equal(t, "", sanitize("", false))
}

func TestFormatLeadResults(t *testing.T) {
	assert.Equal(t, "no agents with a lead form", FormatLeadResults(nil))
	assert.Equal(t,
		"a1: fetched 3, synced 1, skipped 1, failed 1\na2: fetched 0, synced 0, skipped 0, failed 0",
		FormatLeadResults([]entity.LeadRunResult{
			{AgentID: "a1", Fetched: 3, Synced: 1, Skipped: 1, Failed: 1},
			{AgentID: "a2"},
		}))
}
