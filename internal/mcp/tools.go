package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Lead tools

var leadSetToolDef = mcp.NewTool("lead_set",
	mcp.WithDescription("Replace the whole lead collection. Leads without a status start as pending. Stats are recomputed."),
	mcp.WithArray("leads", mcp.Required(),
		mcp.Description("Lead records with snake_case fields (id, company_name, industry, location, vector_score, intent_score, trade_momentum_index, match_percentage, status, ...)"),
		mcp.Items(map[string]any{"type": "object"}),
	),
	mcp.WithDestructiveHintAnnotation(true),
)

var leadListToolDef = mcp.NewTool("lead_list",
	mcp.WithDescription("List leads in store order with optional status and industry filters."),
	mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("pending", "approved", "rejected", "skipped")),
	mcp.WithString("industry", mcp.Description("Filter by industry (case and accent insensitive)")),
	mcp.WithNumber("limit", mcp.Description("Page size, default 20, max 100")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var leadFetchToolDef = mcp.NewTool("lead_fetch",
	mcp.WithDescription("Fetch one lead by id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Lead id")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var leadNextToolDef = mcp.NewTool("lead_next",
	mcp.WithDescription("Return the next pending lead in the review queue and how many remain."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var leadUpdateStatusToolDef = mcp.NewTool("lead_update_status",
	mcp.WithDescription("Set a lead's status. Stats are recomputed."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Lead id")),
	mcp.WithString("status", mcp.Required(), mcp.Enum("pending", "approved", "rejected", "skipped")),
)

var leadSwipeToolDef = mcp.NewTool("lead_swipe",
	mcp.WithDescription("Record a review decision: right approves, left rejects, up skips. Approvals are sent to the remote backend when one is configured."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Lead id")),
	mcp.WithString("direction", mcp.Required(), mcp.Enum("left", "right", "up")),
)

var leadApprovedToolDef = mcp.NewTool("lead_approved",
	mcp.WithDescription("List approved leads, optionally narrowed by industry or a company/location query."),
	mcp.WithString("industry", mcp.Description("Filter by industry")),
	mcp.WithString("query", mcp.Description("Substring of company name or location")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var leadSyncToolDef = mcp.NewTool("lead_sync",
	mcp.WithDescription("Fetch leads from the configured source and replace the collection. Seeds sample interactions into an empty store."),
	mcp.WithBoolean("keep_decisions", mcp.Description("Keep local approve/reject/skip decisions for leads that come back (default: true)")),
)

// Conversation and message tools

var conversationAddToolDef = mcp.NewTool("conversation_add",
	mcp.WithDescription("Start a conversation thread with a lead. Names are filled from the lead when omitted."),
	mcp.WithString("id", mcp.Description("Conversation id; generated when omitted")),
	mcp.WithString("lead_id", mcp.Description("Lead the conversation belongs to")),
	mcp.WithString("lead_name", mcp.Description("Contact name")),
	mcp.WithString("lead_company", mcp.Description("Company name")),
	mcp.WithString("channel", mcp.Description("Default email"), mcp.Enum("email", "linkedin", "whatsapp", "call")),
	mcp.WithString("last_message", mcp.Description("Preview of the latest message")),
	mcp.WithNumber("unread_count", mcp.Description("Unread messages")),
	mcp.WithBoolean("ai_handling", mcp.Description("Whether the assistant answers this thread")),
	mcp.WithString("status", mcp.Description("Default active"), mcp.Enum("active", "archived")),
)

var conversationListToolDef = mcp.NewTool("conversation_list",
	mcp.WithDescription("List conversations newest first."),
	mcp.WithString("status", mcp.Enum("active", "archived")),
	mcp.WithString("channel", mcp.Enum("email", "linkedin", "whatsapp", "call")),
	mcp.WithString("lead_id", mcp.Description("Only threads with this lead")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var conversationToggleAIToolDef = mcp.NewTool("conversation_toggle_ai",
	mcp.WithDescription("Flip whether the assistant handles a conversation."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Conversation id")),
)

var messageAddToolDef = mcp.NewTool("message_add",
	mcp.WithDescription("Append a message to a conversation thread."),
	mcp.WithString("conversation_id", mcp.Required()),
	mcp.WithString("content", mcp.Required()),
	mcp.WithString("id", mcp.Description("Message id; generated when omitted")),
	mcp.WithString("sender", mcp.Description("Default user"), mcp.Enum("user", "lead", "ai")),
	mcp.WithString("channel", mcp.Description("Defaults to the conversation's channel"), mcp.Enum("email", "linkedin", "whatsapp", "call")),
)

var messageListToolDef = mcp.NewTool("message_list",
	mcp.WithDescription("List the messages of a conversation in insertion order."),
	mcp.WithString("conversation_id", mcp.Required()),
	mcp.WithReadOnlyHintAnnotation(true),
)

// Meeting tools

var meetingAddToolDef = mcp.NewTool("meeting_add",
	mcp.WithDescription("Book a meeting with a lead."),
	mcp.WithString("title", mcp.Required()),
	mcp.WithString("date", mcp.Required(), mcp.Description("RFC 3339 timestamp")),
	mcp.WithString("id", mcp.Description("Meeting id; generated when omitted")),
	mcp.WithString("lead_id"),
	mcp.WithString("lead_name"),
	mcp.WithString("lead_company"),
	mcp.WithNumber("duration", mcp.Description("Minutes, default 30")),
	mcp.WithString("status", mcp.Description("Default scheduled"), mcp.Enum("scheduled", "completed", "cancelled")),
	mcp.WithString("meeting_link"),
	mcp.WithString("ai_summary", mcp.Description("Markdown summary")),
)

var meetingListToolDef = mcp.NewTool("meeting_list",
	mcp.WithDescription("List meetings. Upcoming is soonest first, past is most recent first."),
	mcp.WithString("view", mcp.Description("Default all"), mcp.Enum("all", "upcoming", "past")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var meetingUpdateStatusToolDef = mcp.NewTool("meeting_update_status",
	mcp.WithDescription("Set a meeting's status. Stats are recomputed."),
	mcp.WithString("id", mcp.Required()),
	mcp.WithString("status", mcp.Required(), mcp.Enum("scheduled", "completed", "cancelled")),
)

// Content tools

var contentAddToolDef = mcp.NewTool("content_add",
	mcp.WithDescription("Draft or schedule a content post."),
	mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body")),
	mcp.WithString("id", mcp.Description("Post id; generated when omitted")),
	mcp.WithString("status", mcp.Enum("draft", "scheduled", "published")),
	mcp.WithString("scheduled_date", mcp.Description("RFC 3339 timestamp")),
)

var contentListToolDef = mcp.NewTool("content_list",
	mcp.WithDescription("List content posts."),
	mcp.WithString("status", mcp.Enum("draft", "scheduled", "published")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var contentUpdateToolDef = mcp.NewTool("content_update",
	mcp.WithDescription("Patch a content post. Only the given fields change."),
	mcp.WithString("id", mcp.Required()),
	mcp.WithString("content"),
	mcp.WithString("status", mcp.Enum("draft", "scheduled", "published")),
	mcp.WithString("scheduled_date", mcp.Description("RFC 3339 timestamp")),
	mcp.WithString("published_date", mcp.Description("RFC 3339 timestamp")),
	mcp.WithNumber("engagement_rate"),
	mcp.WithNumber("likes"),
	mcp.WithNumber("comments"),
	mcp.WithNumber("shares"),
)

// Stats tools

var statsGetToolDef = mcp.NewTool("stats_get",
	mcp.WithDescription("Return the dashboard stats and the store version."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var statsRefreshToolDef = mcp.NewTool("stats_refresh",
	mcp.WithDescription("Recompute the dashboard stats from all collections."),
)

var statsAnalyticsToolDef = mcp.NewTool("stats_analytics",
	mcp.WithDescription("Pipeline funnel, match histogram and top locations by intent."),
	mcp.WithReadOnlyHintAnnotation(true),
)

// Store tools

var storeExportToolDef = mcp.NewTool("store_export",
	mcp.WithDescription("Write every collection to a JSONL file under ~/.tipe/exports or an allowed path."),
	mcp.WithString("path", mcp.Description("Target .jsonl path; a timestamped file in the exports directory when omitted")),
	mcp.WithString("label", mcp.Description("Filename prefix for the default path")),
)

var storeImportToolDef = mcp.NewTool("store_import",
	mcp.WithDescription("Load a JSONL export. replace swaps the whole store atomically; merge adds records whose ids are free."),
	mcp.WithString("path", mcp.Required()),
	mcp.WithString("mode", mcp.Enum("replace", "merge")),
	mcp.WithDestructiveHintAnnotation(true),
)
