package bot

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
)

// LeadRunner starts a lead pipeline pass on request of the admin.
type LeadRunner interface {
	RunLeads(ctx context.Context) ([]entity.LeadRunResult, error)
}

// TgBot delivers alerts to the admin chat and answers the admin's
// /status and /leads commands.
type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	botUsername string
	adminId     int64
	leads       LeadRunner
	status      func() string
}

func NewTgBot(botName, apiKey string, adminId int64, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		adminId:     adminId,
		botUsername: botName,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) SetLeadRunner(runner LeadRunner) {
	t.leads = runner
}

// SetStatus sets the function rendering the /status reply.
func (t *TgBot) SetStatus(status func() string) {
	t.status = status
}

// Start polls for updates until ctx is cancelled.
func (t *TgBot) Start(ctx context.Context) error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Warn("handling update", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	updater := ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("status", t.handleStatus))
	dispatcher.AddHandler(handlers.NewCommand("leads", t.handleLeads))

	err := updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}
	t.log.Info("telegram bot started", slog.String("username", t.botUsername))

	<-ctx.Done()
	updater.Stop()
	return nil
}

// SendMessage implements logger.AlertSender.
func (t *TgBot) SendMessage(msg string) {
	t.plainResponse(t.adminId, msg)
}

func (t *TgBot) isAdmin(ctx *ext.Context) bool {
	return ctx.EffectiveUser != nil && ctx.EffectiveUser.Id == t.adminId
}

func (t *TgBot) handleStatus(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if !t.isAdmin(ctx) {
		return nil
	}
	text := "running"
	if t.status != nil {
		text = t.status()
	}
	t.plainResponse(ctx.EffectiveChat.Id, text)
	return nil
}

func (t *TgBot) handleLeads(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if !t.isAdmin(ctx) {
		return nil
	}
	if t.leads == nil {
		t.plainResponse(ctx.EffectiveChat.Id, "lead pipeline is not enabled")
		return nil
	}
	chatId := ctx.EffectiveChat.Id
	t.plainResponse(chatId, "lead run started")

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()
		results, err := t.leads.RunLeads(runCtx)
		if err != nil {
			t.plainResponse(chatId, fmt.Sprintf("lead run: %v", err))
			return
		}
		t.plainResponse(chatId, FormatLeadResults(results))
	}()
	return nil
}

// FormatLeadResults renders one line per agent.
func FormatLeadResults(results []entity.LeadRunResult) string {
	if len(results) == 0 {
		return "no agents with a lead form"
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%s: fetched %d, synced %d, skipped %d, failed %d\n",
			r.AgentID, r.Fetched, r.Synced, r.Skipped, r.Failed)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	sanitized := sanitize(text, false)
	if sanitized == "" {
		t.log.With(
			slog.Int64("id", chatId),
		).Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, sanitized, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(
			slog.Int64("id", chatId),
		).Warn("sending message", sl.Err(err))
		// plain text fallback
		if _, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{}); err != nil {
			t.log.With(
				slog.Int64("id", chatId),
			).Error("sending safe message", sl.Err(err))
		}
	}
}

// sanitize escapes MarkdownV2 reserved characters.
func sanitize(input string, preserveLinks bool) string {
	reservedChars := "\\`_{}#+-.!|()[]=>~"
	if preserveLinks {
		reservedChars = "\\`_{}#+-.!|=>~"
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
