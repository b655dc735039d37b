package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: dev
listen:
  port: "9200"
leads:
  cron: "0 * * * *"
`), 0o600))

	t.Setenv("OPENAI_API_KEY", "sk-test")

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", conf.Env)
	assert.Equal(t, "9200", conf.Listen.Port)
	assert.Equal(t, "127.0.0.1", conf.Listen.BindIP)
	assert.Equal(t, "0 * * * *", conf.Leads.Cron)
	assert.Equal(t, 2.0, conf.Leads.RateLimit)
	assert.Equal(t, "sk-test", conf.OpenAI.ApiKey)
	assert.Equal(t, "conversations", conf.Mongo.ConversationsIndex)
	assert.Equal(t, 10, conf.Inbox.PollSec)
	assert.Equal(t, 7, conf.Inbox.DaysBack)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
