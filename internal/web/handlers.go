package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/tipe/internal/config"
	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/metrics"
	"github.com/hpungsan/tipe/internal/ops"
	"github.com/hpungsan/tipe/internal/poll"
	"github.com/hpungsan/tipe/internal/source"
	"github.com/hpungsan/tipe/internal/store"
)

// maxBodyBytes caps request bodies; a bulk lead set is the largest payload.
const maxBodyBytes = 8 << 20

// Handlers contains HTTP route handlers for the dashboard and the JSON API.
type Handlers struct {
	st        *store.Store
	cfg       *config.Config
	src       source.Source
	approver  source.Approver
	assistant source.Assistant
	poller    *poll.Poller
	metrics   *metrics.Metrics
	log       zerolog.Logger
	renderer  *Renderer
}

func newHandlers(deps Deps, renderer *Renderer) *Handlers {
	h := &Handlers{
		st:       deps.Store,
		cfg:      deps.Config,
		src:      deps.Source,
		poller:   deps.Poller,
		metrics:  deps.Metrics,
		log:      deps.Log,
		renderer: renderer,
	}
	if a, ok := deps.Source.(source.Approver); ok {
		h.approver = a
	}
	if a, ok := deps.Source.(source.Assistant); ok {
		h.assistant = a
	}
	return h
}

// --- Pages ---

// HandleDashboard handles GET /: stats, analytics and the head of the queue.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	next := ops.NextPending(h.st)
	upcoming, err := ops.ListMeetings(h.st, ops.ListMeetingsInput{View: ops.ViewUpcoming})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	items := upcoming.Items
	if len(items) > 3 {
		items = items[:3]
	}

	data := DashboardPageData{
		PageData:  h.renderer.page("Dashboard", "dashboard"),
		Analytics: ops.Analytics(h.st),
		Next:      next.Lead,
		Remaining: next.Remaining,
		Upcoming:  items,
	}
	if h.src != nil {
		data.Source = h.src.Name()
	}
	if h.poller != nil {
		data.NextSync = h.poller.Next()
	}
	h.renderer.renderPage(w, r, "dashboard", data)
}

// HandleLeadsPage handles GET /leads: the swipe card plus a paged lead table.
func (h *Handlers) HandleLeadsPage(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	industry := r.URL.Query().Get("industry")

	result, err := ops.ListLeads(h.st, ops.ListLeadsInput{
		Status:   crm.LeadStatus(status),
		Industry: industry,
		Limit:    parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:   parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	next := ops.NextPending(h.st)
	p := result.Pagination

	h.renderer.renderPage(w, r, "leads", LeadsPageData{
		PageData:   h.renderer.page("Leads", "leads"),
		Next:       next.Lead,
		Remaining:  next.Remaining,
		Items:      result.Items,
		Pagination: p,
		Status:     status,
		Industry:   industry,
		PrevOffset: max(p.Offset-p.Limit, 0),
		NextOffset: p.Offset + p.Limit,
	})
}

// HandleApprovedPage handles GET /approved.
func (h *Handlers) HandleApprovedPage(w http.ResponseWriter, r *http.Request) {
	industry := r.URL.Query().Get("industry")
	query := r.URL.Query().Get("q")
	result := ops.ApprovedLeads(h.st, ops.ApprovedLeadsInput{Industry: industry, Query: query})

	h.renderer.renderPage(w, r, "approved", ApprovedPageData{
		PageData: h.renderer.page("Approved leads", "approved"),
		Items:    result.Items,
		Industry: industry,
		Query:    query,
	})
}

// HandleConversationsPage handles GET /conversations.
func (h *Handlers) HandleConversationsPage(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	channel := r.URL.Query().Get("channel")
	result, err := ops.ListConversations(h.st, ops.ListConversationsInput{
		Status:  crm.ConversationStatus(status),
		Channel: crm.Channel(channel),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "conversations", ConversationsPageData{
		PageData: h.renderer.page("Conversations", "conversations"),
		Items:    result.Items,
		Status:   status,
		Channel:  channel,
	})
}

// HandleThreadPage handles GET /conversations/{id}.
func (h *Handlers) HandleThreadPage(w http.ResponseWriter, r *http.Request) {
	conv, err := h.st.Conversation(r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	msgs, err := ops.ListMessages(h.st, conv.ID)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "thread", ThreadPageData{
		PageData:     h.renderer.page(conv.LeadCompany, "conversations"),
		Conversation: &conv,
		Messages:     msgs.Items,
	})
}

// HandleMeetingsPage handles GET /meetings?view=upcoming|past.
func (h *Handlers) HandleMeetingsPage(w http.ResponseWriter, r *http.Request) {
	view := ops.MeetingView(r.URL.Query().Get("view"))
	if view == "" {
		view = ops.ViewUpcoming
	}
	result, err := ops.ListMeetings(h.st, ops.ListMeetingsInput{View: view})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "meetings", MeetingsPageData{
		PageData: h.renderer.page("Meetings", "meetings"),
		View:     result.View,
		Items:    result.Items,
	})
}

// HandleContentPage handles GET /content.
func (h *Handlers) HandleContentPage(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	result, err := ops.ListContentPosts(h.st, crm.PostStatus(status))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "content", ContentPageData{
		PageData: h.renderer.page("Content", "content"),
		Items:    result.Items,
		Status:   status,
	})
}

// --- Leads API ---

// HandleListLeads handles GET /api/leads.
func (h *Handlers) HandleListLeads(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListLeads(h.st, ops.ListLeadsInput{
		Status:   crm.LeadStatus(r.URL.Query().Get("status")),
		Industry: r.URL.Query().Get("industry"),
		Limit:    parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:   parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSetLeads handles PUT /api/leads, replacing the whole collection.
func (h *Handlers) HandleSetLeads(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Leads []crm.Lead `json:"leads"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	result, err := ops.SetLeads(h.st, ops.SetLeadsInput{Leads: body.Leads})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleNextLead handles GET /api/leads/next.
func (h *Handlers) HandleNextLead(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, ops.NextPending(h.st))
}

// HandleApprovedLeads handles GET /api/leads/approved.
func (h *Handlers) HandleApprovedLeads(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, ops.ApprovedLeads(h.st, ops.ApprovedLeadsInput{
		Industry: r.URL.Query().Get("industry"),
		Query:    r.URL.Query().Get("q"),
	}))
}

// HandleFetchLead handles GET /api/leads/{id}.
func (h *Handlers) HandleFetchLead(w http.ResponseWriter, r *http.Request) {
	lead, err := ops.FetchLead(h.st, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, lead)
}

// HandleUpdateLeadStatus handles POST /api/leads/{id}/status.
func (h *Handlers) HandleUpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status crm.LeadStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	result, err := ops.UpdateLeadStatus(h.st, ops.UpdateLeadStatusInput{ID: r.PathValue("id"), Status: body.Status})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSwipe handles POST /api/leads/{id}/swipe. Accepts JSON or the
// review card's form post.
func (h *Handlers) HandleSwipe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction ops.Direction `json:"direction"`
	}
	if isForm(r) {
		body.Direction = ops.Direction(r.PostFormValue("direction"))
	} else if err := decodeJSON(r, &body); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.Swipe(r.Context(), h.st, h.approver, ops.SwipeInput{ID: r.PathValue("id"), Direction: body.Direction})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if result.SyncError != "" {
		h.log.Warn().Str("lead", result.ID).Str("error", result.SyncError).Msg("approval write-back failed")
	}
	h.respond(w, r, result, "/leads")
}

// --- Conversations API ---

// HandleListConversations handles GET /api/conversations.
func (h *Handlers) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListConversations(h.st, ops.ListConversationsInput{
		Status:  crm.ConversationStatus(r.URL.Query().Get("status")),
		Channel: crm.Channel(r.URL.Query().Get("channel")),
		LeadID:  r.URL.Query().Get("lead_id"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAddConversation handles POST /api/conversations.
func (h *Handlers) HandleAddConversation(w http.ResponseWriter, r *http.Request) {
	var c crm.Conversation
	if err := decodeJSON(r, &c); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	conv, err := ops.AddConversation(h.st, ops.AddConversationInput{
		ID:              c.ID,
		LeadID:          c.LeadID,
		LeadName:        c.LeadName,
		LeadCompany:     c.LeadCompany,
		Channel:         c.Channel,
		LastMessage:     c.LastMessage,
		LastMessageTime: c.LastMessageTime,
		UnreadCount:     c.UnreadCount,
		AIHandling:      c.AIHandling,
		Status:          c.Status,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, conv)
}

// HandleToggleAI handles POST /api/conversations/{id}/toggle-ai.
func (h *Handlers) HandleToggleAI(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := ops.ToggleAI(h.st, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, result, "/conversations/"+id)
}

// HandleListMessages handles GET /api/conversations/{id}/messages.
func (h *Handlers) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListMessages(h.st, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAddMessage handles POST /api/conversations/{id}/messages. Accepts JSON
// or the thread page's reply form.
func (h *Handlers) HandleAddMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var m crm.Message
	if isForm(r) {
		m.Content = r.PostFormValue("content")
		m.Sender = crm.Sender(r.PostFormValue("sender"))
	} else if err := decodeJSON(r, &m); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	msg, err := ops.AddMessage(h.st, ops.AddMessageInput{
		ConversationID: id,
		ID:             m.ID,
		Sender:         m.Sender,
		Content:        m.Content,
		Channel:        m.Channel,
		Timestamp:      m.Timestamp,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respondStatus(w, r, http.StatusCreated, msg, "/conversations/"+id)
}

// --- Meetings and content API ---

// HandleListMeetings handles GET /api/meetings?view=.
func (h *Handlers) HandleListMeetings(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListMeetings(h.st, ops.ListMeetingsInput{View: ops.MeetingView(r.URL.Query().Get("view"))})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAddMeeting handles POST /api/meetings.
func (h *Handlers) HandleAddMeeting(w http.ResponseWriter, r *http.Request) {
	var m crm.Meeting
	if err := decodeJSON(r, &m); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	meeting, err := ops.AddMeeting(h.st, ops.AddMeetingInput{
		ID:          m.ID,
		LeadID:      m.LeadID,
		LeadName:    m.LeadName,
		LeadCompany: m.LeadCompany,
		Title:       m.Title,
		Date:        m.Date,
		Duration:    m.Duration,
		Status:      m.Status,
		MeetingLink: m.MeetingLink,
		AISummary:   m.AISummary,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, meeting)
}

// HandleUpdateMeetingStatus handles POST /api/meetings/{id}/status.
func (h *Handlers) HandleUpdateMeetingStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status crm.MeetingStatus `json:"status"`
	}
	if isForm(r) {
		body.Status = crm.MeetingStatus(r.PostFormValue("status"))
	} else if err := decodeJSON(r, &body); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	result, err := ops.UpdateMeetingStatus(h.st, ops.UpdateMeetingStatusInput{ID: r.PathValue("id"), Status: body.Status})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, result, "/meetings")
}

// HandleListContent handles GET /api/content?status=.
func (h *Handlers) HandleListContent(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListContentPosts(h.st, crm.PostStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAddContent handles POST /api/content.
func (h *Handlers) HandleAddContent(w http.ResponseWriter, r *http.Request) {
	var p crm.ContentPost
	if err := decodeJSON(r, &p); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	post, err := ops.AddContentPost(h.st, ops.AddContentPostInput{
		ID:            p.ID,
		Content:       p.Content,
		Status:        p.Status,
		ScheduledDate: p.ScheduledDate,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, post)
}

// HandleUpdateContent handles PATCH /api/content/{id}.
func (h *Handlers) HandleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var patch crm.ContentPostPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	post, err := ops.UpdateContentPost(h.st, ops.UpdateContentPostInput{ID: r.PathValue("id"), Patch: patch})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, post)
}

// --- Stats, sync, assistant ---

// HandleStats handles GET /api/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, ops.GetStats(h.st))
}

// HandleRefreshStats handles POST /api/stats/refresh.
func (h *Handlers) HandleRefreshStats(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, ops.RefreshStats(h.st))
}

// HandleAnalytics handles GET /api/analytics.
func (h *Handlers) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, ops.Analytics(h.st))
}

// HandleSync handles POST /api/sync. With a poller the run joins its sequence,
// so a slower scheduled fetch cannot overwrite it; otherwise the source is
// fetched directly and reviewed statuses are kept unless keep_decisions=false.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	if h.poller != nil {
		result, err := h.poller.RunOnce(r.Context())
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		h.respond(w, r, result, "/")
		return
	}

	result, err := ops.SyncLeads(r.Context(), h.st, h.src, h.log, ops.SyncInput{
		KeepDecisions: parseBoolParamDefault(r, "keep_decisions", true),
		Observer:      h.syncObserver(),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, result, "/")
}

// HandleAsk handles POST /api/ask {query}.
func (h *Handlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	result, err := ops.Ask(r.Context(), h.assistant, body.Query)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":        "ok",
		"version":       h.renderer.version,
		"store_version": h.st.Version(),
		"leads":         len(h.st.Leads()),
	}
	if h.poller != nil {
		if next := h.poller.Next(); !next.IsZero() {
			body["next_sync"] = next.UTC().Format(time.RFC3339)
		}
	}
	renderJSON(w, http.StatusOK, body)
}

// syncObserver returns the metrics sink, or a nil interface without metrics.
func (h *Handlers) syncObserver() ops.SyncObserver {
	if h.metrics == nil {
		return nil
	}
	return h.metrics
}

// respond answers an API mutation: JSON for API clients, HX-Redirect for
// htmx, and a redirect back to the page for plain form posts.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, data any, redirect string) {
	h.respondStatus(w, r, http.StatusOK, data, redirect)
}

func (h *Handlers) respondStatus(w http.ResponseWriter, r *http.Request, status int, data any, redirect string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", redirect)
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, status, data)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// decodeJSON decodes a JSON request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.NewInvalidRequest("request body is required")
		}
		return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// isForm reports whether the request carries an HTML form body.
func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	return parseBoolParamDefault(r, name, false)
}

// parseBoolParamDefault returns def when the parameter is absent or unparsable.
func parseBoolParamDefault(r *http.Request, name string, def bool) bool {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return def
}
