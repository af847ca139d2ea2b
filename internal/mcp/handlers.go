package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/hpungsan/tipe/internal/config"
	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/ops"
	"github.com/hpungsan/tipe/internal/source"
	"github.com/hpungsan/tipe/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	st       *store.Store
	cfg      *config.Config
	src      source.Source
	approver source.Approver
	log      zerolog.Logger
}

// NewHandlers creates a new Handlers instance. src may be nil, in which case
// lead_sync fails with INVALID_REQUEST.
func NewHandlers(st *store.Store, cfg *config.Config, src source.Source, log zerolog.Logger) *Handlers {
	h := &Handlers{st: st, cfg: cfg, src: src, log: log}
	if a, ok := src.(source.Approver); ok {
		h.approver = a
	}
	return h
}

// Request types for each tool

// LeadSetRequest represents the arguments for lead_set.
type LeadSetRequest struct {
	Leads []crm.Lead `json:"leads"`
}

// LeadListRequest represents the arguments for lead_list.
type LeadListRequest struct {
	Status   string `json:"status,omitempty"`
	Industry string `json:"industry,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// IDRequest represents tools addressed by a single id.
type IDRequest struct {
	ID string `json:"id"`
}

// StatusRequest represents the arguments for lead_update_status and meeting_update_status.
type StatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SwipeRequest represents the arguments for lead_swipe.
type SwipeRequest struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
}

// ApprovedRequest represents the arguments for lead_approved.
type ApprovedRequest struct {
	Industry string `json:"industry,omitempty"`
	Query    string `json:"query,omitempty"`
}

// SyncRequest represents the arguments for lead_sync.
type SyncRequest struct {
	KeepDecisions *bool `json:"keep_decisions,omitempty"` // nil keeps decisions
}

// ConversationAddRequest represents the arguments for conversation_add.
type ConversationAddRequest struct {
	ID          string `json:"id,omitempty"`
	LeadID      string `json:"lead_id,omitempty"`
	LeadName    string `json:"lead_name,omitempty"`
	LeadCompany string `json:"lead_company,omitempty"`
	Channel     string `json:"channel,omitempty"`
	LastMessage string `json:"last_message,omitempty"`
	UnreadCount int    `json:"unread_count,omitempty"`
	AIHandling  bool   `json:"ai_handling,omitempty"`
	Status      string `json:"status,omitempty"`
}

// ConversationListRequest represents the arguments for conversation_list.
type ConversationListRequest struct {
	Status  string `json:"status,omitempty"`
	Channel string `json:"channel,omitempty"`
	LeadID  string `json:"lead_id,omitempty"`
}

// MessageAddRequest represents the arguments for message_add.
type MessageAddRequest struct {
	ConversationID string `json:"conversation_id"`
	ID             string `json:"id,omitempty"`
	Sender         string `json:"sender,omitempty"`
	Content        string `json:"content"`
	Channel        string `json:"channel,omitempty"`
}

// MessageListRequest represents the arguments for message_list.
type MessageListRequest struct {
	ConversationID string `json:"conversation_id"`
}

// MeetingAddRequest represents the arguments for meeting_add.
type MeetingAddRequest struct {
	ID          string    `json:"id,omitempty"`
	LeadID      string    `json:"lead_id,omitempty"`
	LeadName    string    `json:"lead_name,omitempty"`
	LeadCompany string    `json:"lead_company,omitempty"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Duration    int       `json:"duration,omitempty"`
	Status      string    `json:"status,omitempty"`
	MeetingLink string    `json:"meeting_link,omitempty"`
	AISummary   string    `json:"ai_summary,omitempty"`
}

// MeetingListRequest represents the arguments for meeting_list.
type MeetingListRequest struct {
	View string `json:"view,omitempty"`
}

// ContentAddRequest represents the arguments for content_add.
type ContentAddRequest struct {
	ID            string     `json:"id,omitempty"`
	Content       string     `json:"content"`
	Status        string     `json:"status,omitempty"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
}

// ContentListRequest represents the arguments for content_list.
type ContentListRequest struct {
	Status string `json:"status,omitempty"`
}

// ContentUpdateRequest represents the arguments for content_update.
type ContentUpdateRequest struct {
	ID             string          `json:"id"`
	Content        *string         `json:"content,omitempty"`
	Status         *crm.PostStatus `json:"status,omitempty"`
	ScheduledDate  *time.Time      `json:"scheduled_date,omitempty"`
	PublishedDate  *time.Time      `json:"published_date,omitempty"`
	EngagementRate *float64        `json:"engagement_rate,omitempty"`
	Likes          *int            `json:"likes,omitempty"`
	Comments       *int            `json:"comments,omitempty"`
	Shares         *int            `json:"shares,omitempty"`
}

// ExportRequest represents the arguments for store_export.
type ExportRequest struct {
	Path  string `json:"path,omitempty"`
	Label string `json:"label,omitempty"`
}

// ImportRequest represents the arguments for store_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// Lead handlers

// HandleLeadSet handles the lead_set tool call.
func (h *Handlers) HandleLeadSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LeadSetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.SetLeads(h.st, ops.SetLeadsInput{Leads: input.Leads}))
}

// HandleLeadList handles the lead_list tool call.
func (h *Handlers) HandleLeadList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LeadListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.ListLeads(h.st, ops.ListLeadsInput{
		Status:   crm.LeadStatus(input.Status),
		Industry: input.Industry,
		Limit:    input.Limit,
		Offset:   input.Offset,
	}))
}

// HandleLeadFetch handles the lead_fetch tool call.
func (h *Handlers) HandleLeadFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.FetchLead(h.st, input.ID))
}

// HandleLeadNext handles the lead_next tool call.
func (h *Handlers) HandleLeadNext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.NextPending(h.st))
}

// HandleLeadUpdateStatus handles the lead_update_status tool call.
func (h *Handlers) HandleLeadUpdateStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.UpdateLeadStatus(h.st, ops.UpdateLeadStatusInput{
		ID:     input.ID,
		Status: crm.LeadStatus(input.Status),
	}))
}

// HandleLeadSwipe handles the lead_swipe tool call.
func (h *Handlers) HandleLeadSwipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SwipeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	out, err := ops.Swipe(ctx, h.st, h.approver, ops.SwipeInput{ID: input.ID, Direction: ops.Direction(input.Direction)})
	if err != nil {
		return errorResult(err), nil
	}
	if out.SyncError != "" {
		h.log.Warn().Str("lead", out.ID).Str("error", out.SyncError).Msg("approval write-back failed")
	}
	return successResult(out)
}

// HandleLeadApproved handles the lead_approved tool call.
func (h *Handlers) HandleLeadApproved(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApprovedRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return successResult(ops.ApprovedLeads(h.st, ops.ApprovedLeadsInput{Industry: input.Industry, Query: input.Query}))
}

// HandleLeadSync handles the lead_sync tool call.
func (h *Handlers) HandleLeadSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SyncRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	keep := input.KeepDecisions == nil || *input.KeepDecisions
	return result(ops.SyncLeads(ctx, h.st, h.src, h.log, ops.SyncInput{KeepDecisions: keep}))
}

// Conversation handlers

// HandleConversationAdd handles the conversation_add tool call.
func (h *Handlers) HandleConversationAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConversationAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.AddConversation(h.st, ops.AddConversationInput{
		ID:          input.ID,
		LeadID:      input.LeadID,
		LeadName:    input.LeadName,
		LeadCompany: input.LeadCompany,
		Channel:     crm.Channel(input.Channel),
		LastMessage: input.LastMessage,
		UnreadCount: input.UnreadCount,
		AIHandling:  input.AIHandling,
		Status:      crm.ConversationStatus(input.Status),
	}))
}

// HandleConversationList handles the conversation_list tool call.
func (h *Handlers) HandleConversationList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConversationListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.ListConversations(h.st, ops.ListConversationsInput{
		Status:  crm.ConversationStatus(input.Status),
		Channel: crm.Channel(input.Channel),
		LeadID:  input.LeadID,
	}))
}

// HandleConversationToggleAI handles the conversation_toggle_ai tool call.
func (h *Handlers) HandleConversationToggleAI(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.ToggleAI(h.st, input.ID))
}

// HandleMessageAdd handles the message_add tool call.
func (h *Handlers) HandleMessageAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MessageAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.AddMessage(h.st, ops.AddMessageInput{
		ConversationID: input.ConversationID,
		ID:             input.ID,
		Sender:         crm.Sender(input.Sender),
		Content:        input.Content,
		Channel:        crm.Channel(input.Channel),
	}))
}

// HandleMessageList handles the message_list tool call.
func (h *Handlers) HandleMessageList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MessageListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.ListMessages(h.st, input.ConversationID))
}

// Meeting handlers

// HandleMeetingAdd handles the meeting_add tool call.
func (h *Handlers) HandleMeetingAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MeetingAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.AddMeeting(h.st, ops.AddMeetingInput{
		ID:          input.ID,
		LeadID:      input.LeadID,
		LeadName:    input.LeadName,
		LeadCompany: input.LeadCompany,
		Title:       input.Title,
		Date:        input.Date,
		Duration:    input.Duration,
		Status:      crm.MeetingStatus(input.Status),
		MeetingLink: input.MeetingLink,
		AISummary:   input.AISummary,
	}))
}

// HandleMeetingList handles the meeting_list tool call.
func (h *Handlers) HandleMeetingList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MeetingListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.ListMeetings(h.st, ops.ListMeetingsInput{View: ops.MeetingView(input.View)}))
}

// HandleMeetingUpdateStatus handles the meeting_update_status tool call.
func (h *Handlers) HandleMeetingUpdateStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.UpdateMeetingStatus(h.st, ops.UpdateMeetingStatusInput{
		ID:     input.ID,
		Status: crm.MeetingStatus(input.Status),
	}))
}

// Content handlers

// HandleContentAdd handles the content_add tool call.
func (h *Handlers) HandleContentAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContentAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.AddContentPost(h.st, ops.AddContentPostInput{
		ID:            input.ID,
		Content:       input.Content,
		Status:        crm.PostStatus(input.Status),
		ScheduledDate: input.ScheduledDate,
	}))
}

// HandleContentList handles the content_list tool call.
func (h *Handlers) HandleContentList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContentListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.ListContentPosts(h.st, crm.PostStatus(input.Status)))
}

// HandleContentUpdate handles the content_update tool call.
func (h *Handlers) HandleContentUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContentUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.UpdateContentPost(h.st, ops.UpdateContentPostInput{
		ID: input.ID,
		Patch: crm.ContentPostPatch{
			Content:        input.Content,
			Status:         input.Status,
			ScheduledDate:  input.ScheduledDate,
			PublishedDate:  input.PublishedDate,
			EngagementRate: input.EngagementRate,
			Likes:          input.Likes,
			Comments:       input.Comments,
			Shares:         input.Shares,
		},
	}))
}

// Stats handlers

// HandleStatsGet handles the stats_get tool call.
func (h *Handlers) HandleStatsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.GetStats(h.st))
}

// HandleStatsRefresh handles the stats_refresh tool call.
func (h *Handlers) HandleStatsRefresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.RefreshStats(h.st))
}

// HandleStatsAnalytics handles the stats_analytics tool call.
func (h *Handlers) HandleStatsAnalytics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.Analytics(h.st))
}

// Store handlers

// HandleStoreExport handles the store_export tool call.
func (h *Handlers) HandleStoreExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.Export(ctx, h.st, h.cfg, ops.ExportInput{Path: input.Path, Label: input.Label}))
}

// HandleStoreImport handles the store_import tool call.
func (h *Handlers) HandleStoreImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return result(ops.Import(ctx, h.st, h.cfg, ops.ImportInput{Path: input.Path, Mode: ops.ImportMode(input.Mode)}))
}

// Result helpers

// result turns an ops (value, error) pair into a tool result.
func result[T any](v T, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(v)
}

// errorResult creates an MCP error result from any error. Uncoded errors are
// reported as INTERNAL without their text, and INTERNAL details are never sent.
// Context added by wrapping a coded error is kept in the message.
func errorResult(err error) *mcp.CallToolResult {
	tErr, ok := errors.As(err)
	if !ok {
		tErr = errors.NewInternal(err)
	}

	message := tErr.Message
	if ok {
		if prefix, found := strings.CutSuffix(err.Error(), tErr.Error()); found && prefix != "" {
			message = prefix + message
		}
	}

	errorObj := map[string]any{
		"code":    tErr.Code,
		"message": message,
		"status":  tErr.Status,
	}
	if tErr.Code != errors.ErrInternal && len(tErr.Details) > 0 {
		errorObj["details"] = tErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
