package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/convoreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

// --- webhooks ---

func (s *Server) handleVerifyWebhook(w http.ResponseWriter, r *http.Request) {
	channel := types.Channel(chi.URLParam(r, "channel"))
	token := r.URL.Query().Get("verify_token")
	if s.transport == nil || !s.transport.VerifyWebhook(channel, token) {
		writeError(w, types.InvalidInput(component, "webhook verification failed"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(r.URL.Query().Get("challenge")))
}

type incomingWebhookBody struct {
	Content       string            `json:"content"`
	ChannelUserID string            `json:"channel_user_id"`
	SenderName    string            `json:"sender_name,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleIncomingWebhook(w http.ResponseWriter, r *http.Request) {
	channel := types.Channel(chi.URLParam(r, "channel"))

	var body incomingWebhookBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	meta := types.Metadata{}
	for k, v := range body.Metadata {
		meta[k] = v
	}

	conv, err := s.engine.HandleIncoming(r.Context(), types.RawInboundEvent{
		Content:       body.Content,
		ChannelUserID: body.ChannelUserID,
		Channel:       channel,
		SenderName:    body.SenderName,
		Metadata:      meta,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// --- conversations ---

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	convs, err := s.convos.Find(r.Context(), convoreg.Filters{
		Status:       types.ConversationStatus(q.Get("status")),
		Channel:      types.Channel(q.Get("channel")),
		CurrentAgent: q.Get("agent"),
		ContactID:    q.Get("contact_id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.convos.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type humanReplyBody struct {
	HumanAgentID string `json:"human_agent_id"`
	Content      string `json:"content"`
}

func (s *Server) handleHumanReply(w http.ResponseWriter, r *http.Request) {
	var body humanReplyBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	conv, err := s.engine.HandleHumanReply(r.Context(), chi.URLParam(r, "id"), body.HumanAgentID, body.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type reasonBody struct {
	Reason string `json:"reason"`
}

func (s *Server) handleHandoff(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	_ = decodeJSON(r, &body)
	conv, err := s.engine.HandleHandoff(r.Context(), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleResumeAI(w http.ResponseWriter, r *http.Request) {
	conv, err := s.engine.ResumeAI(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleCloseConversation(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	_ = decodeJSON(r, &body)
	conv, err := s.engine.Close(r.Context(), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// --- contacts ---

func (s *Server) handleSearchContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.contacts.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := s.contacts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// --- flows ---

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.flows.All(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flows)
}

func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var f types.Flow
	if err := decodeJSON(r, &f); err != nil {
		writeError(w, err)
		return
	}
	if f.ID == "" {
		writeError(w, types.InvalidInput(component, "flow id is required"))
		return
	}
	if err := s.flows.Create(r.Context(), f); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	f, err := s.flows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleUpdateFlow(w http.ResponseWriter, r *http.Request) {
	var patch types.Flow
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	f, err := s.flows.Update(r.Context(), chi.URLParam(r, "id"), func(existing types.Flow) types.Flow {
		patch.ID = existing.ID
		return patch
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.flows.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- broadcasts ---

type createBroadcastBody struct {
	Name        string                      `json:"name"`
	Content     string                      `json:"content"`
	MessageType types.MessageType           `json:"message_type"`
	Target      types.BroadcastTargetFilter `json:"target"`
}

func (s *Server) handleCreateBroadcast(w http.ResponseWriter, r *http.Request) {
	var body createBroadcastBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	b, err := s.broadcast.Create(r.Context(), body.Name, body.Content, body.MessageType, body.Target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBroadcast(w http.ResponseWriter, r *http.Request) {
	b, err := s.broadcast.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleSendBroadcast(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	go func() {
		// detached from the request context: a broadcast send outlives the
		// HTTP handler that kicked it off, and r.Context() is cancelled the
		// instant this handler returns.
		if _, err := s.broadcast.Send(context.Background(), id); err != nil {
			obslog.ErrorCF(component, "broadcast send failed", map[string]interface{}{"broadcast_id": id, "error": err.Error()})
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "sending"})
}

func (s *Server) handleCancelBroadcast(w http.ResponseWriter, r *http.Request) {
	s.broadcast.Cancel(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// --- templates ---

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.All(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

type createTemplateBody struct {
	Name    string        `json:"name"`
	Content string        `json:"content"`
	Channel types.Channel `json:"channel"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body createTemplateBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.templates.Create(r.Context(), body.Name, body.Content, body.Channel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type approvalBody struct {
	Status types.ApprovalStatus `json:"status"`
}

func (s *Server) handleSetTemplateApproval(w http.ResponseWriter, r *http.Request) {
	var body approvalBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.templates.SetApprovalStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type renderBody struct {
	Vars map[string]string `json:"vars"`
}

func (s *Server) handleRenderTemplate(w http.ResponseWriter, r *http.Request) {
	var body renderBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	rendered, err := s.templates.Render(r.Context(), chi.URLParam(r, "id"), body.Vars)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": rendered})
}
