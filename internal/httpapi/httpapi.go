// Package httpapi exposes the platform over HTTP: an inbound webhook
// endpoint per channel that hands raw events to the Conversation Engine,
// and control endpoints for conversations, contacts, flows, broadcasts,
// and templates. Routing follows the chi idiom (one *chi.Mux, route
// groups per resource, middleware chain) rather than the teacher's
// callback-per-update bot frameworks, since this surface is the spec's
// own HTTP control plane, not a chat platform's event loop.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/broadcast"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/contactreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/convoreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/dashboard"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/engine"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/flow"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/template"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/transport"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "httpapi"

// Server wires every domain manager into a single chi.Mux.
type Server struct {
	engine     *engine.Engine
	contacts   *contactreg.Registry
	convos     *convoreg.Registry
	flows      *flow.Store
	broadcast  *broadcast.Manager
	templates  *template.Manager
	transport  *transport.Hub
	dashboard  *dashboard.Hub
	webAdapter *transport.WebAdapter

	router chi.Router
}

type Config struct {
	Engine    *engine.Engine
	Contacts  *contactreg.Registry
	Convos    *convoreg.Registry
	Flows     *flow.Store
	Broadcast *broadcast.Manager
	Templates *template.Manager
	Transport *transport.Hub
	Dashboard *dashboard.Hub
}

func NewServer(cfg Config) *Server {
	s := &Server{
		engine:    cfg.Engine,
		contacts:  cfg.Contacts,
		convos:    cfg.Convos,
		flows:     cfg.Flows,
		broadcast: cfg.Broadcast,
		templates: cfg.Templates,
		transport: cfg.Transport,
		dashboard: cfg.Dashboard,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetWebAdapter wires the Web channel's websocket adapter after
// construction, since the adapter and the server are mutually
// dependent (the adapter needs the engine's inbound handler, the
// server needs the adapter's upgrade handler).
func (s *Server) SetWebAdapter(a *transport.WebAdapter) {
	s.webAdapter = a
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/{channel}", s.handleVerifyWebhook)
		r.Post("/{channel}", s.handleIncomingWebhook)
	})
	r.Get("/dashboard/stream", s.handleDashboardUpgrade)
	r.Get("/web/{channel_user_id}", s.handleWebUpgrade)

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", s.handleListConversations)
		r.Get("/{id}", s.handleGetConversation)
		r.Post("/{id}/human-reply", s.handleHumanReply)
		r.Post("/{id}/handoff", s.handleHandoff)
		r.Post("/{id}/resume", s.handleResumeAI)
		r.Post("/{id}/close", s.handleCloseConversation)
	})

	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", s.handleSearchContacts)
		r.Get("/{id}", s.handleGetContact)
	})

	r.Route("/flows", func(r chi.Router) {
		r.Get("/", s.handleListFlows)
		r.Post("/", s.handleCreateFlow)
		r.Get("/{id}", s.handleGetFlow)
		r.Put("/{id}", s.handleUpdateFlow)
		r.Delete("/{id}", s.handleDeleteFlow)
	})

	r.Route("/broadcasts", func(r chi.Router) {
		r.Post("/", s.handleCreateBroadcast)
		r.Get("/{id}", s.handleGetBroadcast)
		r.Post("/{id}/send", s.handleSendBroadcast)
		r.Post("/{id}/cancel", s.handleCancelBroadcast)
	})

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.handleListTemplates)
		r.Post("/", s.handleCreateTemplate)
		r.Get("/{id}", s.handleGetTemplate)
		r.Post("/{id}/approval", s.handleSetTemplateApproval)
		r.Post("/{id}/render", s.handleRenderTemplate)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		obslog.InfoCF(component, "request handled", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboardUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.dashboard == nil {
		writeError(w, types.NotFound(component, "dashboard is not configured"))
		return
	}
	if err := s.dashboard.HandleUpgrade(w, r); err != nil {
		writeError(w, err)
	}
}

func (s *Server) handleWebUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.webAdapter == nil {
		writeError(w, types.NotFound(component, "web channel is not configured"))
		return
	}
	channelUserID := chi.URLParam(r, "channel_user_id")
	if err := s.webAdapter.HandleUpgrade(w, r, channelUserID); err != nil {
		writeError(w, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := types.ErrExternalFailure
	if de, ok := err.(*types.DomainError); ok {
		kind = de.Kind
	}
	switch kind {
	case types.ErrNotFound:
		status = http.StatusNotFound
	case types.ErrInvalidInput, types.ErrParseFailure:
		status = http.StatusBadRequest
	case types.ErrInvalidStateTransition:
		status = http.StatusConflict
	case types.ErrTimeoutExceeded:
		status = http.StatusGatewayTimeout
	case types.ErrCancelled:
		status = http.StatusRequestTimeout
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return types.ParseFailure(component, "decoding request body", err)
	}
	return nil
}
