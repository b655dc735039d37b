package core

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/service/workflow"
	"AgentDesk/internal/ws"
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

type Repository interface {
	TakeConversation(ctx context.Context, key entity.ConversationKey, takenBy string) (*entity.HandoffLock, error)
	ReleaseConversation(ctx context.Context, key entity.ConversationKey) error
	GetHandoffLock(ctx context.Context, key entity.ConversationKey) (*entity.HandoffLock, error)
	ListTakenConversations(ctx context.Context, agentID string) ([]entity.HandoffLock, error)

	MarkRead(ctx context.Context, req entity.MarkReadRequest) (*entity.ReadReceipt, error)
	GetReadReceipts(ctx context.Context, agentID, readBy string) (map[string]time.Time, error)
	IncrementUnread(ctx context.Context, key entity.ConversationKey, messageTime time.Time) error

	CreateClient(ctx context.Context, client *entity.Client) (*entity.Client, error)
	GetClient(ctx context.Context, id string) (*entity.Client, error)
	ListClients(ctx context.Context, clientID string) ([]entity.Client, error)
	UpdateClient(ctx context.Context, client *entity.Client) (*entity.Client, error)
	DeleteClient(ctx context.Context, id string) (bool, error)

	CreateAgent(ctx context.Context, agent *entity.Agent) (*entity.Agent, error)
	UpdateAgent(ctx context.Context, agent *entity.Agent) (*entity.Agent, error)
	GetAgent(ctx context.Context, id string) (*entity.Agent, error)
	GetAgentByName(ctx context.Context, name string) (*entity.Agent, error)
	GetAgentByPhoneNumberID(ctx context.Context, phoneNumberID string) (*entity.Agent, error)
	ListAgents(ctx context.Context, clientID string) ([]entity.Agent, error)
	ListLeadAgents(ctx context.Context) ([]entity.Agent, error)
	DeleteAgent(ctx context.Context, id string) (bool, error)

	ClaimLead(ctx context.Context, leadID, agentID string) (*entity.LeadLog, bool, error)
	UpdateLeadLog(ctx context.Context, log entity.LeadLog) error
	ListLeadLogs(ctx context.Context, agentID string, limit int) ([]entity.LeadLog, error)
}

// ConversationStore is the document index holding message and report documents.
type ConversationStore interface {
	FindDocuments(ctx context.Context, agentName string, from, to time.Time) ([]map[string]interface{}, error)
	FindDocumentsSince(ctx context.Context, agentName string, since time.Time) ([]map[string]interface{}, error)
	InsertDocument(ctx context.Context, doc entity.StoredDocument) error
	ListReports(ctx context.Context, agentName string, limit int) ([]entity.Report, error)
	GetReport(ctx context.Context, id string) (*entity.Report, error)
}

type Messenger interface {
	Send(ctx context.Context, creds entity.WhatsAppConfig, req entity.SendRequest) (string, error)
}

type WorkflowService interface {
	ListExecutions(ctx context.Context, opts workflow.ListOptions) (*entity.ExecutionPage, error)
	GetExecution(ctx context.Context, id string) (*entity.Execution, error)
}

type LeadSource interface {
	FetchLeads(ctx context.Context, formID string, since time.Time) ([]entity.Lead, error)
}

type LeadEnricher interface {
	Enrich(ctx context.Context, lead *entity.Lead) (*entity.Enrichment, error)
}

type CrmService interface {
	CreateLead(ctx context.Context, lead *entity.Lead, enrichment *entity.Enrichment) (string, error)
}

type LeadExporter interface {
	AppendLead(ctx context.Context, agentID string, lead *entity.Lead, enrichment *entity.Enrichment) error
}

// Broadcaster pushes realtime events to console clients.
type Broadcaster interface {
	BroadcastMessage(clientID string, event ws.MessageEvent)
	BroadcastLock(clientID string, lock entity.HandoffLock)
	BroadcastReadReceipt(clientID string, receipt entity.ReadReceipt)
	BroadcastStatus(clientID string, status ws.StatusEvent)
}

type SessionPurger interface {
	PurgeExpired(ctx context.Context)
}

type LeadOptions struct {
	Cron      string
	RateLimit float64
	Burst     int
	Lookback  time.Duration
}

type Core struct {
	repo      Repository
	store     ConversationStore
	messenger Messenger
	workflow  WorkflowService
	ads       LeadSource
	enricher  LeadEnricher
	crm       CrmService
	exporter  LeadExporter
	wsHub     Broadcaster
	purger    SessionPurger
	auth      AuthService
	leads     LeadOptions
	limiter   *rate.Limiter
	leadRun   chan struct{}
	log       *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		log:     log.With(sl.Module("core")),
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		leadRun: make(chan struct{}, 1),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetConversationStore(store ConversationStore) {
	c.store = store
}

func (c *Core) SetMessenger(messenger Messenger) {
	c.messenger = messenger
}

func (c *Core) SetWorkflowService(service WorkflowService) {
	c.workflow = service
}

func (c *Core) SetLeadSource(ads LeadSource) {
	c.ads = ads
}

func (c *Core) SetLeadEnricher(enricher LeadEnricher) {
	c.enricher = enricher
}

func (c *Core) SetCrmService(crm CrmService) {
	c.crm = crm
}

func (c *Core) SetLeadExporter(exporter LeadExporter) {
	c.exporter = exporter
}

func (c *Core) SetBroadcaster(hub Broadcaster) {
	c.wsHub = hub
}

func (c *Core) SetSessionPurger(purger SessionPurger) {
	c.purger = purger
}

// SetLeadOptions configures the pipeline schedule and outbound throttle.
func (c *Core) SetLeadOptions(opts LeadOptions) {
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	c.leads = opts
}

// Init starts background jobs; they stop with ctx.
func (c *Core) Init(ctx context.Context) {
	if c.purger != nil {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.purger.PurgeExpired(ctx)
				}
			}
		}()
	}

	if c.leads.Cron != "" {
		if err := c.startLeadScheduler(ctx, c.leads.Cron); err != nil {
			c.log.Error("lead scheduler not started", sl.Err(err))
		}
	}
}
