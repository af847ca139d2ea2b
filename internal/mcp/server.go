// Package mcp exposes the store operations as MCP tools.
package mcp

import (
	"maps"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"lead", "conversation", "message", "meeting", "content", "stats", "store"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"lead_set": {
		def:     leadSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLeadSet },
	},
	"lead_list": {
		def:     leadListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLeadList },
	},
	"lead_fetch": {
		def:     leadFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLeadFetch },
	},
	"lead_next": {
		def:     leadNextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLeadNext },
	},
	"lead_update_status": {
		def:     leadUpdateStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLeadUpdateStatus },
	},
	"lead_swipe": {
		def:     leadSwipeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLeadSwipe },
	},
	"lead_approved": {
		def:     leadApprovedToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLeadApproved },
	},
	"lead_sync": {
		def:     leadSyncToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLeadSync },
	},
	"conversation_add": {
		def:     conversationAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConversationAdd },
	},
	"conversation_list": {
		def:     conversationListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConversationList },
	},
	"conversation_toggle_ai": {
		def:     conversationToggleAIToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConversationToggleAI },
	},
	"message_add": {
		def:     messageAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMessageAdd },
	},
	"message_list": {
		def:     messageListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMessageList },
	},
	"meeting_add": {
		def:     meetingAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMeetingAdd },
	},
	"meeting_list": {
		def:     meetingListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMeetingList },
	},
	"meeting_update_status": {
		def:     meetingUpdateStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMeetingUpdateStatus },
	},
	"content_add": {
		def:     contentAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContentAdd },
	},
	"content_list": {
		def:     contentListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContentList },
	},
	"content_update": {
		def:     contentUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContentUpdate },
	},
	"stats_get": {
		def:     statsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatsGet },
	},
	"stats_refresh": {
		def:     statsRefreshToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatsRefresh },
	},
	"stats_analytics": {
		def:     statsAnalyticsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatsAnalytics },
	},
	"store_export": {
		def:     storeExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStoreExport },
	},
	"store_import": {
		def:     storeImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStoreImport },
	},
}

// AllToolNames returns every registered tool name, sorted.
func AllToolNames() []string {
	names := slices.Collect(maps.Keys(toolRegistry))
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns the names that are not registered tools.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns the names that are not known types.
func ValidateDisabledTypes(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool returns the type prefix of a "type_action" tool name,
// e.g. "lead_swipe" → "lead".
func GetTypeForTool(toolName string) string {
	typ, _, ok := strings.Cut(toolName, "_")
	if !ok || typ == "" {
		return ""
	}
	return typ
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	tools := make([]string, 0)
	for _, name := range AllToolNames() {
		if slices.Contains(types, GetTypeForTool(name)) {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates an MCP server with the tipe tools registered. Tools listed
// in cfg.DisabledTools or belonging to cfg.DisabledTypes are left out.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tipe",
		version,
		server.WithToolCapabilities(true),
	)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(h.cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range h.cfg.DisabledTools {
		disabled[name] = true
	}

	for _, name := range AllToolNames() {
		if disabled[name] {
			continue
		}
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools over stdio until stdin closes.
func Run(h *Handlers, version string) error {
	return server.ServeStdio(NewServer(h, version))
}
