package main

import (
	"AgentDesk/bot"
	"AgentDesk/entity"
	"AgentDesk/impl/core"
	"AgentDesk/internal/config"
	"AgentDesk/internal/database"
	"AgentDesk/internal/http-server/api"
	"AgentDesk/internal/lib/logger"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/service/ads"
	"AgentDesk/internal/service/auth"
	"AgentDesk/internal/service/crm"
	"AgentDesk/internal/service/enrich"
	"AgentDesk/internal/service/sheets"
	"AgentDesk/internal/service/whatsapp"
	"AgentDesk/internal/service/workflow"
	"AgentDesk/internal/ws"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", sl.Err(err))
		} else {
			lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelWarn)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")
		}
	}

	lg.Info("starting agentdesk", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	handler := core.New(lg)

	authService := auth.NewAuthService(lg, time.Duration(conf.Auth.SessionHours)*time.Hour)
	handler.SetAuthService(authService)
	handler.SetSessionPurger(authService)

	if conf.Postgres.Enabled {
		pg, err := repository.NewPostgres(ctx, conf.Postgres.URL, lg)
		if err != nil {
			lg.Error("postgres client", sl.Err(err))
		} else {
			defer pg.Close()
			if err = pg.Migrate(ctx); err != nil {
				lg.Error("postgres migrate", sl.Err(err))
			}
			handler.SetRepository(pg)
			authService.SetRepository(pg)
			seedAdmin(ctx, conf, authService, lg)
			lg.Info("postgres client initialized")
		}
	}

	mongo, err := repository.NewMongoClient(ctx, conf, lg)
	if err != nil {
		lg.Error("mongo client", sl.Err(err))
	}
	if mongo != nil {
		defer mongo.Close(context.Background())
		if err = mongo.EnsureIndexes(ctx); err != nil {
			lg.Warn("mongo indexes", sl.Err(err))
		}
		handler.SetConversationStore(mongo)
		lg.With(
			slog.String("host", conf.Mongo.Host),
			slog.String("port", conf.Mongo.Port),
			slog.String("database", conf.Mongo.Database),
		).Info("mongo client initialized")
	}

	bridge := whatsapp.NewBridge(conf.WhatsApp.GraphURL, conf.WhatsApp.VerifyToken, conf.WhatsApp.AppSecret, lg)
	bridge.SetListener(handler)
	handler.SetMessenger(bridge)

	hub := ws.NewHub(lg)
	hub.SetHandler(handler)
	handler.SetBroadcaster(hub)
	go hub.Run(ctx)

	if conf.Workflow.Enabled {
		handler.SetWorkflowService(workflow.NewService(conf.Workflow.BaseURL, conf.Workflow.ApiKey, lg))
		lg.With(slog.String("base_url", conf.Workflow.BaseURL)).Info("workflow service initialized")
	}

	if conf.Leads.Enabled {
		setupLeads(ctx, conf, handler, lg)
	}

	if tgBot != nil {
		tgBot.SetLeadRunner(handler)
		tgBot.SetStatus(func() string {
			return fmt.Sprintf("console clients: %d", hub.ClientCount())
		})
		go func() {
			if err := tgBot.Start(ctx); err != nil {
				lg.Error("telegram bot error", sl.Err(err))
			}
		}()
	}

	handler.Init(ctx)

	if err = api.New(ctx, conf, lg, handler, bridge, hub); err != nil {
		lg.Error("server", sl.Err(err))
		os.Exit(1)
	}
	lg.Info("agentdesk stopped")
}

// setupLeads wires the lead pipeline: ads source, LLM enrichment, CRM and the
// optional spreadsheet export.
func setupLeads(ctx context.Context, conf *config.Config, handler *core.Core, lg *slog.Logger) {
	handler.SetLeadSource(ads.NewService(conf.Ads.GraphURL, conf.Ads.AccessToken, conf.Ads.PageSize, lg))

	if conf.OpenAI.ApiKey != "" {
		client := enrich.NewClient(conf.OpenAI.ApiKey, conf.OpenAI.BaseURL)
		handler.SetLeadEnricher(enrich.NewEnricher(client, conf.OpenAI.Model, conf.OpenAI.Prompt, lg))
	} else {
		lg.Warn("openai api key not set, leads will not be enriched")
	}

	if conf.Salesforce.Enabled {
		handler.SetCrmService(crm.NewSalesforce(ctx, crm.Config{
			InstanceURL:  conf.Salesforce.InstanceURL,
			TokenURL:     conf.Salesforce.TokenURL,
			ClientID:     conf.Salesforce.ClientID,
			ClientSecret: conf.Salesforce.ClientSecret,
			ApiVersion:   conf.Salesforce.ApiVersion,
			LeadSource:   conf.Salesforce.LeadSource,
		}, lg))
	}

	if conf.Sheets.Enabled {
		exporter, err := sheets.NewExporter(ctx, conf.Sheets.CredentialsFile, conf.Sheets.SpreadsheetID, conf.Sheets.Range, lg)
		if err != nil {
			lg.Error("sheets exporter", sl.Err(err))
		} else {
			handler.SetLeadExporter(exporter)
		}
	}

	handler.SetLeadOptions(core.LeadOptions{
		Cron:      conf.Leads.Cron,
		RateLimit: conf.Leads.RateLimit,
		Burst:     conf.Leads.Burst,
		Lookback:  time.Duration(conf.Leads.Lookback) * time.Hour,
	})
	lg.With(slog.String("cron", conf.Leads.Cron)).Info("lead pipeline configured")
}

// seedAdmin creates or refreshes the bootstrap administrator.
func seedAdmin(ctx context.Context, conf *config.Config, authService *auth.Service, lg *slog.Logger) {
	if conf.Auth.AdminUser == "" || conf.Auth.AdminPassword == "" {
		return
	}
	op, err := authService.CreateOperator(ctx, entity.Operator{
		Username: conf.Auth.AdminUser,
		Name:     conf.Auth.AdminUser,
		Role:     entity.RoleAdmin,
	}, conf.Auth.AdminPassword)
	if err != nil {
		lg.Error("seed admin", sl.Err(err))
		return
	}
	lg.With(slog.String("username", op.Username)).Info("admin operator ready")
}
