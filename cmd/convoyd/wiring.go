package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/appconfig"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/broadcast"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/contactreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/convoreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/dashboard"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/engine"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/flow"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/httpapi"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/knowledge"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/llm"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/orchestrator"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/persona"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/template"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/transport"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/trigger"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const wiringComponent = "convoyd"

// platform bundles every wired component so each subcommand can reach
// into just the pieces it needs.
type platform struct {
	cfg appconfig.Config

	pgPool *pgxpool.Pool

	contacts  *contactreg.Registry
	convos    *convoreg.Registry
	flows     *flow.Store
	templates *template.Manager
	broadcast *broadcast.Manager

	knowledgeIndex *knowledge.Index
	catalog        *persona.Catalog

	llmClient llm.Client
	router    *orchestrator.Router
	engine    *engine.Engine

	transportHub *transport.Hub
	triggerMgr   *trigger.Manager
	scheduler    *trigger.Scheduler
	dashboardHub *dashboard.Hub
	httpServer   *httpapi.Server
}

// newStore picks MemoryStore or PGStore per cfg.StoreBackend for record
// kind name; memory stores persist to a JSON snapshot under
// cfg.MemoryDataDir so a restart resumes rather than discarding state.
func newStore[T any](cfg appconfig.Config, pool *pgxpool.Pool, name string) storekit.Store[T] {
	if cfg.StoreBackend == appconfig.StorePostgres {
		return storekit.NewPGStore[T](pool, name)
	}
	return storekit.NewMemoryStore[T](filepath.Join(cfg.MemoryDataDir, name+".json"))
}

func buildLLMClient(cfg appconfig.Config) (llm.Client, error) {
	tracker := llm.NewUsageTracker(cfg.MemoryDataDir)

	var claude, openai llm.Client
	if cfg.ClaudeAPIKey != "" {
		claude = llm.NewTrackedClient(llm.NewClaudeClient(cfg.ClaudeAPIKey, cfg.ClaudeModel), cfg.ClaudeModel, tracker)
	}
	if cfg.OpenAIAPIKey != "" {
		openai = llm.NewTrackedClient(llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel), cfg.OpenAIModel, tracker)
	}

	primary, fallback := claude, openai
	if cfg.LLMProvider == appconfig.LLMProviderOpenAI {
		primary, fallback = openai, claude
	}
	if primary == nil {
		return nil, fmt.Errorf("no API key configured for llm-provider %q", cfg.LLMProvider)
	}
	if fallback == nil {
		return primary, nil
	}
	return llm.NewFallbackClient(primary, fallback), nil
}

// buildPlatform wires every domain component from cfg. Channel adapters
// are registered separately by the commands that need live transports
// (serve and replay-broadcast).
func buildPlatform(ctx context.Context, cfg appconfig.Config) (*platform, error) {
	p := &platform{cfg: cfg}

	if cfg.StoreBackend == appconfig.StorePostgres {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		p.pgPool = pool
	}

	p.contacts = contactreg.New(newStore[types.Contact](cfg, p.pgPool, "contacts"))
	p.convos = convoreg.New(newStore[types.Conversation](cfg, p.pgPool, "conversations"))
	p.flows = flow.NewStore(newStore[types.Flow](cfg, p.pgPool, "flows"))
	p.templates = template.NewManager(newStore[types.Template](cfg, p.pgPool, "templates"))

	p.catalog = persona.NewCatalog()

	if cfg.KnowledgeRoot != "" {
		p.knowledgeIndex = knowledge.NewIndex(cfg.KnowledgeRoot)
		if err := p.knowledgeIndex.Load(); err != nil {
			obslog.WarnCF(wiringComponent, "initial knowledge load failed", map[string]interface{}{"error": err.Error()})
		}
	}

	llmClient, err := buildLLMClient(cfg)
	if err != nil {
		return nil, err
	}
	p.llmClient = llmClient
	p.router = orchestrator.NewRouter(p.llmClient, p.knowledgeIndex, p.catalog)

	p.engine = engine.New(engine.Config{
		Contacts:      p.contacts,
		Conversations: p.convos,
		Router:        p.router,
		Catalog:       p.catalog,
		Knowledge:     p.knowledgeIndex,
		LLMClient:     p.llmClient,
		CompanyName:   cfg.CompanyName,
		ToneOfVoice:   cfg.ToneOfVoice,
		MaxCtxTokens:  cfg.MaxContextTokens,
	})

	p.transportHub = transport.NewHub()

	p.broadcast = broadcast.NewManager(newStore[types.Broadcast](cfg, p.pgPool, "broadcasts"), p.contacts, p.transportHub)

	flowRunner := flow.NewRunner(flow.Config{
		Flows:         p.flows,
		Executions:    newStore[types.FlowExecution](cfg, p.pgPool, "flow_executions"),
		Contacts:      p.contacts,
		Conversations: p.convos,
		Sender:        p.transportHub,
		Webhook:       flow.NewHTTPWebhookCaller(),
		OnEvent: func(kind, executionID, flowID, conversationID, contactID string) {
			p.engine.Bus().Publish(engine.Event{
				Kind:           engine.EventKind(kind),
				ConversationID: conversationID,
				ContactID:      contactID,
				Payload:        map[string]string{"execution_id": executionID, "flow_id": flowID},
			})
		},
	})
	p.triggerMgr = trigger.NewManager(p.flows, flowRunner, p.contacts, p.convos)
	p.triggerMgr.Attach(p.engine.Bus())
	p.scheduler = trigger.NewScheduler(p.triggerMgr)

	p.dashboardHub = dashboard.NewHub()
	p.dashboardHub.Attach(p.engine.Bus())

	p.httpServer = httpapi.NewServer(httpapi.Config{
		Engine:    p.engine,
		Contacts:  p.contacts,
		Convos:    p.convos,
		Flows:     p.flows,
		Broadcast: p.broadcast,
		Templates: p.templates,
		Transport: p.transportHub,
		Dashboard: p.dashboardHub,
	})

	return p, nil
}

func (p *platform) Close() {
	if p.pgPool != nil {
		p.pgPool.Close()
	}
}

// onInbound adapts engine.HandleIncoming to transport.IncomingHandler:
// every channel adapter calls this on receipt of an inbound message and
// has no use for the resulting conversation, only for a failure to log.
func (p *platform) onInbound(ctx context.Context, ev types.RawInboundEvent) {
	if _, err := p.engine.HandleIncoming(ctx, ev); err != nil {
		obslog.ErrorCF(wiringComponent, "handling inbound event failed", map[string]interface{}{
			"channel": string(ev.Channel),
			"error":   err.Error(),
		})
	}
}
