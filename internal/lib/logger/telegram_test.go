package logger

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureSender) SendMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func TestTelegramHandler_ForwardsOnlyAboveLevel(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sender := &captureSender{}

	lg := SetupTelegramHandler(base, sender, slog.LevelError)
	lg = lg.With(slog.String("module", "test"))

	lg.Info("just info")
	lg.Error("went wrong", slog.String("agent", "sales"))

	require.Len(t, sender.msgs, 1)
	assert.Contains(t, sender.msgs[0], "ERROR: went wrong")
	assert.Contains(t, sender.msgs[0], "module: test")
	assert.Contains(t, sender.msgs[0], "agent: sales")

	assert.Contains(t, buf.String(), "just info")
	assert.Contains(t, buf.String(), "went wrong")
}
