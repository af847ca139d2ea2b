package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/hpungsan/tipe/internal/config"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/source"
	"github.com/hpungsan/tipe/internal/store"
)

// testSetup creates a synced store backed by the mock source.
func testSetup(t *testing.T) (*Handlers, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}

	src := source.NewMock(source.MockOptions{Count: 5, Seed: 11})
	h := NewHandlers(store.New(), cfg, src, zerolog.Nop())

	result, err := h.HandleLeadSync(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("lead_sync: %v", err)
	}
	parseOutput(t, result)
	return h, dir
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

type toolFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, fn toolFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return result
}

func TestLeadTools(t *testing.T) {
	h, _ := testSetup(t)

	tests := []struct {
		name      string
		fn        toolFunc
		args      map[string]any
		errorCode string
	}{
		{name: "list", fn: h.HandleLeadList, args: map[string]any{"limit": 2}},
		{name: "list bad status", fn: h.HandleLeadList, args: map[string]any{"status": "maybe"}, errorCode: "INVALID_REQUEST"},
		{name: "fetch", fn: h.HandleLeadFetch, args: map[string]any{"id": "lead-1"}},
		{name: "fetch missing", fn: h.HandleLeadFetch, args: map[string]any{"id": "lead-99"}, errorCode: "NOT_FOUND"},
		{name: "fetch without id", fn: h.HandleLeadFetch, args: map[string]any{}, errorCode: "INVALID_REQUEST"},
		{name: "next", fn: h.HandleLeadNext},
		{name: "update status", fn: h.HandleLeadUpdateStatus, args: map[string]any{"id": "lead-2", "status": "rejected"}},
		{name: "update bad status", fn: h.HandleLeadUpdateStatus, args: map[string]any{"id": "lead-2", "status": "maybe"}, errorCode: "INVALID_REQUEST"},
		{name: "swipe right", fn: h.HandleLeadSwipe, args: map[string]any{"id": "lead-1", "direction": "right"}},
		{name: "swipe sideways", fn: h.HandleLeadSwipe, args: map[string]any{"id": "lead-1", "direction": "down"}, errorCode: "INVALID_REQUEST"},
		{name: "approved", fn: h.HandleLeadApproved},
		{name: "limit wrong type", fn: h.HandleLeadList, args: map[string]any{"limit": "ten"}, errorCode: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, tt.fn, tt.args)
			if tt.errorCode != "" {
				if !result.IsError {
					t.Fatalf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}

	out := parseOutput(t, call(t, h.HandleLeadApproved, nil))
	if out["count"] != float64(1) {
		t.Errorf("approved count = %v, want 1", out["count"])
	}
}

func TestHandleLeadList_Pagination(t *testing.T) {
	h, _ := testSetup(t)

	out := parseOutput(t, call(t, h.HandleLeadList, map[string]any{"limit": 2, "offset": 4}))
	items := out["items"].([]any)
	if len(items) != 1 {
		t.Errorf("items = %d, want 1", len(items))
	}
	page := out["pagination"].(map[string]any)
	if page["total"] != float64(5) || page["has_more"] != false {
		t.Errorf("pagination = %v", page)
	}
}

func TestHandleLeadSet(t *testing.T) {
	h, _ := testSetup(t)

	out := parseOutput(t, call(t, h.HandleLeadSet, map[string]any{
		"leads": []any{
			map[string]any{"id": "a", "company_name": "Acme", "intent_score": 0.8},
			map[string]any{"id": "b", "status": "approved"},
		},
	}))
	if out["count"] != float64(2) {
		t.Errorf("count = %v, want 2", out["count"])
	}
	stats := out["stats"].(map[string]any)
	if stats["activeLeads"] != float64(1) || stats["approvalRate"] != float64(50) {
		t.Errorf("stats = %v", stats)
	}

	result := call(t, h.HandleLeadSet, map[string]any{
		"leads": []any{map[string]any{"id": "a"}, map[string]any{"id": "a"}},
	})
	assertErrorCode(t, result, "INVALID_REQUEST")

	result = call(t, h.HandleLeadSet, map[string]any{
		"leads": []any{map[string]any{"id": "c", "vector_score": 2}},
	})
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleLeadSync_KeepDecisions(t *testing.T) {
	h, _ := testSetup(t)
	parseOutput(t, call(t, h.HandleLeadSwipe, map[string]any{"id": "lead-3", "direction": "left"}))

	out := parseOutput(t, call(t, h.HandleLeadSync, map[string]any{"keep_decisions": true}))
	if out["kept_decisions"] != float64(1) {
		t.Errorf("kept_decisions = %v, want 1", out["kept_decisions"])
	}
	if out["seeded"] != false {
		t.Errorf("second sync should not seed")
	}

	noSource := NewHandlers(store.New(), config.DefaultConfig(), nil, zerolog.Nop())
	assertErrorCode(t, call(t, noSource.HandleLeadSync, nil), "INVALID_REQUEST")
}

func TestHandleLeadSync_KeepsDecisionsByDefault(t *testing.T) {
	h, _ := testSetup(t)
	parseOutput(t, call(t, h.HandleLeadUpdateStatus, map[string]any{"id": "lead-1", "status": "approved"}))

	out := parseOutput(t, call(t, h.HandleLeadSync, nil))
	if out["kept_decisions"] != float64(1) {
		t.Errorf("kept_decisions = %v, want 1", out["kept_decisions"])
	}
	lead := parseOutput(t, call(t, h.HandleLeadFetch, map[string]any{"id": "lead-1"}))
	if lead["status"] != "approved" {
		t.Errorf("status after bare lead_sync = %v, want approved", lead["status"])
	}

	parseOutput(t, call(t, h.HandleLeadSync, map[string]any{"keep_decisions": false}))
	lead = parseOutput(t, call(t, h.HandleLeadFetch, map[string]any{"id": "lead-1"}))
	if lead["status"] != "pending" {
		t.Errorf("status after keep_decisions=false = %v, want pending", lead["status"])
	}
}

func TestConversationTools(t *testing.T) {
	h, _ := testSetup(t)

	out := parseOutput(t, call(t, h.HandleConversationAdd, map[string]any{
		"id":      "c-new",
		"lead_id": "lead-1",
		"channel": "whatsapp",
	}))
	if out["leadCompany"] == "" || out["leadCompany"] == nil {
		t.Errorf("lead company should be filled from the lead, got %v", out["leadCompany"])
	}

	assertErrorCode(t, call(t, h.HandleConversationAdd, map[string]any{"id": "c-new"}), "ALREADY_EXISTS")
	assertErrorCode(t, call(t, h.HandleConversationAdd, map[string]any{"channel": "fax"}), "INVALID_REQUEST")

	out = parseOutput(t, call(t, h.HandleConversationList, map[string]any{"channel": "whatsapp"}))
	items := out["items"].([]any)
	if len(items) == 0 || items[0].(map[string]any)["id"] != "c-new" {
		t.Errorf("newest conversation should come first, got %v", items)
	}

	out = parseOutput(t, call(t, h.HandleConversationToggleAI, map[string]any{"id": "c-new"}))
	if out["aiHandling"] != true {
		t.Errorf("aiHandling = %v, want true", out["aiHandling"])
	}
	assertErrorCode(t, call(t, h.HandleConversationToggleAI, map[string]any{"id": "nope"}), "NOT_FOUND")

	out = parseOutput(t, call(t, h.HandleMessageAdd, map[string]any{
		"conversation_id": "c-new",
		"content":         "Hello from the fair",
	}))
	if out["channel"] != "whatsapp" || out["sender"] != "user" {
		t.Errorf("message defaults = %v", out)
	}
	assertErrorCode(t, call(t, h.HandleMessageAdd, map[string]any{"conversation_id": "c-new"}), "INVALID_REQUEST")

	out = parseOutput(t, call(t, h.HandleMessageList, map[string]any{"conversation_id": "c-new"}))
	if out["count"] != float64(1) {
		t.Errorf("message count = %v, want 1", out["count"])
	}
}

func TestMeetingTools(t *testing.T) {
	h, _ := testSetup(t)
	when := time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339)

	out := parseOutput(t, call(t, h.HandleMeetingAdd, map[string]any{
		"id":         "m-new",
		"title":      "Pricing call",
		"date":       when,
		"ai_summary": "- agree on **FOB** terms",
	}))
	if out["duration"] != float64(30) || out["status"] != "scheduled" {
		t.Errorf("meeting defaults = %v", out)
	}

	assertErrorCode(t, call(t, h.HandleMeetingAdd, map[string]any{"title": "x", "date": "tomorrow"}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandleMeetingAdd, map[string]any{"id": "m-new", "title": "x", "date": when}), "ALREADY_EXISTS")

	out = parseOutput(t, call(t, h.HandleMeetingList, map[string]any{"view": "upcoming"}))
	found := false
	for _, it := range out["items"].([]any) {
		if it.(map[string]any)["id"] == "m-new" {
			found = true
		}
	}
	if !found {
		t.Errorf("m-new missing from upcoming meetings")
	}

	out = parseOutput(t, call(t, h.HandleMeetingUpdateStatus, map[string]any{"id": "m-new", "status": "cancelled"}))
	if out["status"] != "cancelled" {
		t.Errorf("status = %v", out["status"])
	}
	assertErrorCode(t, call(t, h.HandleMeetingList, map[string]any{"view": "soon"}), "INVALID_REQUEST")
}

func TestContentTools(t *testing.T) {
	h, _ := testSetup(t)

	out := parseOutput(t, call(t, h.HandleContentAdd, map[string]any{
		"id":             "p-new",
		"content":        "New **route** to Rotterdam",
		"scheduled_date": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	}))
	if out["status"] != "scheduled" {
		t.Errorf("status = %v, want scheduled", out["status"])
	}

	out = parseOutput(t, call(t, h.HandleContentUpdate, map[string]any{
		"id":     "p-new",
		"status": "published",
		"likes":  12,
	}))
	if out["publishedDate"] == nil || out["likes"] != float64(12) {
		t.Errorf("patched post = %v", out)
	}

	assertErrorCode(t, call(t, h.HandleContentUpdate, map[string]any{"id": "p-new"}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandleContentUpdate, map[string]any{"id": "p-new", "likes": -1}), "INVALID_REQUEST")

	out = parseOutput(t, call(t, h.HandleContentList, map[string]any{"status": "published"}))
	if out["count"] == float64(0) {
		t.Errorf("expected published posts")
	}
}

func TestStatsTools(t *testing.T) {
	h, _ := testSetup(t)

	out := parseOutput(t, call(t, h.HandleStatsGet, nil))
	stats := out["stats"].(map[string]any)
	if stats["activeLeads"] != float64(5) {
		t.Errorf("activeLeads = %v, want 5", stats["activeLeads"])
	}

	parseOutput(t, call(t, h.HandleStatsRefresh, nil))

	out = parseOutput(t, call(t, h.HandleStatsAnalytics, nil))
	if out["total_leads"] != float64(5) {
		t.Errorf("total_leads = %v, want 5", out["total_leads"])
	}
	if len(out["match_histogram"].([]any)) != 4 {
		t.Errorf("histogram buckets = %v", out["match_histogram"])
	}
}

func TestHandleExportImport(t *testing.T) {
	h, dir := testSetup(t)
	path := filepath.Join(dir, "backup.jsonl")

	out := parseOutput(t, call(t, h.HandleStoreExport, map[string]any{"path": path}))
	if out["path"] != path {
		t.Errorf("path = %v", out["path"])
	}

	other := NewHandlers(store.New(), h.cfg, nil, zerolog.Nop())
	out = parseOutput(t, call(t, other.HandleStoreImport, map[string]any{"path": path}))
	if n, _ := out["imported"].(float64); n == 0 {
		t.Errorf("imported = %v", out["imported"])
	}
	if got, want := len(other.st.Leads()), len(h.st.Leads()); got != want {
		t.Errorf("imported leads = %d, want %d", got, want)
	}

	assertErrorCode(t, call(t, other.HandleStoreImport, map[string]any{"path": path, "mode": "upsert"}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, other.HandleStoreImport, map[string]any{"path": filepath.Join(dir, "gone.jsonl")}), "FILE_NOT_FOUND")
	assertErrorCode(t, call(t, h.HandleStoreExport, map[string]any{"path": filepath.Join(dir, "backup.txt")}), "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	h, _ := testSetup(t)

	s := NewServer(h, "test")
	tools := s.ListTools()
	if len(tools) != len(toolRegistry) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry))
	}

	expected := []string{
		"lead_set", "lead_list", "lead_fetch", "lead_next", "lead_update_status", "lead_swipe",
		"lead_approved", "lead_sync", "conversation_add", "conversation_list", "conversation_toggle_ai",
		"message_add", "message_list", "meeting_add", "meeting_list", "meeting_update_status",
		"content_add", "content_list", "content_update", "stats_get", "stats_refresh",
		"stats_analytics", "store_export", "store_import",
	}
	if len(expected) != len(toolRegistry) {
		t.Errorf("toolRegistry has %d tools, want %d", len(toolRegistry), len(expected))
	}
	for _, name := range expected {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, _ := testSetup(t)
	h.cfg.DisabledTools = []string{"lead_set", "store_import", "store_import"}

	tools := NewServer(h, "test").ListTools()
	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"lead_set", "store_import"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	h, _ := testSetup(t)
	h.cfg.DisabledTypes = []string{"stats", "store"}

	tools := NewServer(h, "test").ListTools()
	if len(tools) != len(toolRegistry)-5 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-5)
	}
	if _, ok := tools["store_export"]; ok {
		t.Error("store_export should be disabled by type")
	}
	if _, ok := tools["lead_list"]; !ok {
		t.Error("lead_list should stay registered")
	}

	h.cfg.DisabledTools = AllToolNames()
	if n := len(NewServer(h, "test").ListTools()); n != 0 {
		t.Errorf("registered tool count = %d, want 0", n)
	}
}

func TestValidateDisabled(t *testing.T) {
	tests := []struct {
		name    string
		fn      func([]string) []string
		input   []string
		wantLen int
	}{
		{"tools all valid", ValidateDisabledTools, []string{"lead_set", "store_import"}, 0},
		{"tools one unknown", ValidateDisabledTools, []string{"lead_set", "invoice_send"}, 1},
		{"tools empty", ValidateDisabledTools, []string{}, 0},
		{"types valid", ValidateDisabledTypes, []string{"lead", "content"}, 0},
		{"types unknown", ValidateDisabledTypes, []string{"invoice", "post"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.input); len(got) != tt.wantLen {
				t.Errorf("returned %v, want %d unknown", got, tt.wantLen)
			}
		})
	}
}

func TestToolTypes(t *testing.T) {
	if got := GetTypeForTool("conversation_toggle_ai"); got != "conversation" {
		t.Errorf("GetTypeForTool = %q", got)
	}
	if got := GetTypeForTool("plain"); got != "" {
		t.Errorf("GetTypeForTool(plain) = %q, want empty", got)
	}

	for _, name := range AllToolNames() {
		if !slices.Contains(KnownTypes, GetTypeForTool(name)) {
			t.Errorf("tool %q has unknown type", name)
		}
	}

	got := ExpandTypesToTools([]string{"message"})
	if !slices.Equal(got, []string{"message_add", "message_list"}) {
		t.Errorf("ExpandTypesToTools(message) = %v", got)
	}
	if ExpandTypesToTools(nil) != nil {
		t.Error("no types should expand to nil")
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(fmt.Errorf("open /tmp/secret.db: permission denied"))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}
	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if strings.Contains(errObj["message"].(string), "secret") {
		t.Fatal("internal error text leaked")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	r := errorResult(fmt.Errorf("leads[2]: %w", errors.NewNotFound("lead", "x")))
	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if msg := errObj["message"].(string); !strings.HasPrefix(msg, "leads[2]: ") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
	if _, ok := errObj["details"]; !ok {
		t.Error("expected non-INTERNAL errors to include details")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(extractErrorMessage(result)), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload: %v", payload)
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if !result.IsError {
		t.Errorf("expected error %s, got success", expectedCode)
		return
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("got error code %v, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
