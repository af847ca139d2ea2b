package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/logging"
	"github.com/hpungsan/tipe/internal/metrics"
	"github.com/hpungsan/tipe/internal/ops"
	"github.com/hpungsan/tipe/internal/poll"
	"github.com/hpungsan/tipe/internal/source"
	"github.com/hpungsan/tipe/internal/web"
)

// maxStdinBytes bounds JSON read from stdin.
const maxStdinBytes = 8 << 20

// newCLIApp creates the CLI application with all commands. rt may be nil when
// only help or version output is needed.
func newCLIApp(rt *runtime) *cli.App {
	app := &cli.App{
		Name:    "tipe",
		Usage:   "Lead review and outreach store",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(rt),
			syncCmd(rt),
			leadsCmd(rt),
			leadCmd(rt),
			setLeadsCmd(rt),
			nextCmd(rt),
			statusCmd(rt),
			swipeCmd(rt),
			approvedCmd(rt),
			conversationsCmd(rt),
			conversationAddCmd(rt),
			messagesCmd(rt),
			messageAddCmd(rt),
			toggleAICmd(rt),
			meetingsCmd(rt),
			meetingAddCmd(rt),
			meetingStatusCmd(rt),
			postsCmd(rt),
			postAddCmd(rt),
			postUpdateCmd(rt),
			statsCmd(rt),
			analyticsCmd(rt),
			askCmd(rt),
			exportCmd(rt),
			importCmd(rt),
		},
	}
	// Keep errors as return values so tests can inspect them
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	app.After = func(c *cli.Context) error {
		return rt.flush(c.Context)
	}
	return app
}

// flush writes any change the checkpointer has not persisted yet.
func (rt *runtime) flush(ctx context.Context) error {
	if rt == nil {
		return nil
	}
	if err := rt.ckpt.Save(ctx); err != nil {
		rt.log.Error().Err(err).Msg("snapshot save failed")
		return outputError(errors.NewInternal(fmt.Errorf("save snapshot: %w", err)))
	}
	return nil
}

func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web dashboard and the scheduled lead sync",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (overrides http_bind)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (overrides http_port)"},
			&cli.StringFlag{Name: "schedule", Usage: "Cron spec for lead sync (overrides poll_schedule)"},
			&cli.BoolFlag{Name: "sync", Usage: "Sync leads once before serving"},
		},
		Action: func(c *cli.Context) error {
			cfg := rt.cfg
			if bind := c.String("bind"); bind != "" {
				cfg.HTTPBind = bind
			}
			if port := c.Int("port"); port != 0 {
				cfg.HTTPPort = port
			}
			if schedule := c.String("schedule"); schedule != "" {
				cfg.PollSchedule = schedule
			}
			if err := cfg.Validate(); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			m := metrics.New()
			defer m.Attach(rt.st)()

			poller, err := poll.New(rt.st, rt.src, logging.Component(rt.log, "poll"), poll.Options{
				Schedule: cfg.PollSchedule,
				Timeout:  cfg.SourceTimeout(),
				Observer: m,
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("sync") {
				if _, err := poller.RunOnce(c.Context); err != nil {
					rt.log.Warn().Err(err).Msg("initial lead sync failed")
				}
			}
			poller.Start()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				poller.Stop(ctx)
			}()

			srv, err := web.NewServer(web.Deps{
				Store:   rt.st,
				Config:  cfg,
				Source:  rt.src,
				Poller:  poller,
				Metrics: m,
				Log:     logging.Component(rt.log, "web"),
				Version: Version,
			})
			if err != nil {
				return outputError(err)
			}
			return web.Run(srv, rt.log)
		},
	}
}

// Leads

func syncCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Fetch leads from the configured source",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "keep-decisions", Value: true, Usage: "Keep local approve/reject/skip decisions"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.SyncLeads(c.Context, rt.st, rt.src, logging.Component(rt.log, "sync"), ops.SyncInput{
				KeepDecisions: c.Bool("keep-decisions"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func leadsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "leads",
		Usage: "List leads",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status: pending|approved|rejected|skipped"},
			&cli.StringFlag{Name: "industry", Aliases: []string{"i"}, Usage: "Filter by industry"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Page size (max 100)"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListLeads(rt.st, ops.ListLeadsInput{
				Status:   crm.LeadStatus(c.String("status")),
				Industry: c.String("industry"),
				Limit:    c.Int("limit"),
				Offset:   c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func leadCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "lead",
		Usage:     "Show one lead",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.FetchLead(rt.st, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func setLeadsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "set-leads",
		Usage: "Replace all leads with a JSON array read from stdin",
		Action: func(c *cli.Context) error {
			var leads []crm.Lead
			if err := readStdinJSON(&leads); err != nil {
				return outputError(err)
			}
			output, err := ops.SetLeads(rt.st, ops.SetLeadsInput{Leads: leads})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func nextCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "next",
		Usage: "Show the next lead waiting for review",
		Action: func(_ *cli.Context) error {
			return outputJSON(ops.NextPending(rt.st))
		},
	}
}

func statusCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Set a lead's status",
		ArgsUsage: "<id> <pending|approved|rejected|skipped>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: tipe status <id> <status>"))
			}
			output, err := ops.UpdateLeadStatus(rt.st, ops.UpdateLeadStatusInput{
				ID:     c.Args().Get(0),
				Status: crm.LeadStatus(c.Args().Get(1)),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func swipeCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "swipe",
		Usage:     "Review a lead: right approves, left rejects, up skips",
		ArgsUsage: "<id> <left|right|up>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: tipe swipe <id> <left|right|up>"))
			}
			approver, _ := rt.src.(source.Approver)
			output, err := ops.Swipe(c.Context, rt.st, approver, ops.SwipeInput{
				ID:        c.Args().Get(0),
				Direction: ops.Direction(c.Args().Get(1)),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func approvedCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "approved",
		Usage: "List approved leads",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "industry", Aliases: []string{"i"}, Usage: "Filter by industry"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match company name or location"},
		},
		Action: func(c *cli.Context) error {
			return outputJSON(ops.ApprovedLeads(rt.st, ops.ApprovedLeadsInput{
				Industry: c.String("industry"),
				Query:    c.String("query"),
			}))
		},
	}
}

// Conversations

func conversationsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "conversations",
		Usage: "List conversations, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "active|archived"},
			&cli.StringFlag{Name: "channel", Aliases: []string{"c"}, Usage: "email|linkedin|whatsapp|call"},
			&cli.StringFlag{Name: "lead", Usage: "Lead id"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListConversations(rt.st, ops.ListConversationsInput{
				Status:  crm.ConversationStatus(c.String("status")),
				Channel: crm.Channel(c.String("channel")),
				LeadID:  c.String("lead"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func conversationAddCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "conversation-add",
		Usage: "Start a conversation with a lead",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Conversation id (generated when omitted)"},
			&cli.StringFlag{Name: "lead", Usage: "Lead id"},
			&cli.StringFlag{Name: "name", Usage: "Contact name (defaults to the lead's)"},
			&cli.StringFlag{Name: "company", Usage: "Company name (defaults to the lead's)"},
			&cli.StringFlag{Name: "channel", Aliases: []string{"c"}, Value: "email", Usage: "email|linkedin|whatsapp|call"},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Last message preview"},
			&cli.BoolFlag{Name: "ai", Usage: "Let the assistant handle replies"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.AddConversation(rt.st, ops.AddConversationInput{
				ID:          c.String("id"),
				LeadID:      c.String("lead"),
				LeadName:    c.String("name"),
				LeadCompany: c.String("company"),
				Channel:     crm.Channel(c.String("channel")),
				LastMessage: c.String("message"),
				AIHandling:  c.Bool("ai"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func messagesCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "messages",
		Usage:     "List the messages of a conversation",
		ArgsUsage: "<conversation-id>",
		Action: func(c *cli.Context) error {
			output, err := ops.ListMessages(rt.st, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func messageAddCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "message-add",
		Usage:     "Append a message to a conversation (content from the argument or stdin)",
		ArgsUsage: "<conversation-id> [content]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sender", Value: "user", Usage: "user|lead|ai"},
			&cli.StringFlag{Name: "channel", Usage: "Defaults to the conversation's channel"},
		},
		Action: func(c *cli.Context) error {
			content := strings.TrimSpace(strings.Join(c.Args().Tail(), " "))
			if content == "" && stdinHasData() {
				text, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				content = text
			}
			output, err := ops.AddMessage(rt.st, ops.AddMessageInput{
				ConversationID: c.Args().First(),
				Sender:         crm.Sender(c.String("sender")),
				Content:        content,
				Channel:        crm.Channel(c.String("channel")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func toggleAICmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "toggle-ai",
		Usage:     "Flip assistant handling for a conversation",
		ArgsUsage: "<conversation-id>",
		Action: func(c *cli.Context) error {
			output, err := ops.ToggleAI(rt.st, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Meetings

func meetingsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "meetings",
		Usage: "List meetings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "view", Value: "all", Usage: "all|upcoming|past"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListMeetings(rt.st, ops.ListMeetingsInput{View: ops.MeetingView(c.String("view"))})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func meetingAddCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "meeting-add",
		Usage: "Book a meeting",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Meeting title"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Required: true, Usage: "RFC 3339 start time"},
			&cli.StringFlag{Name: "id", Usage: "Meeting id (generated when omitted)"},
			&cli.StringFlag{Name: "lead", Usage: "Lead id"},
			&cli.StringFlag{Name: "name", Usage: "Contact name"},
			&cli.StringFlag{Name: "company", Usage: "Company name"},
			&cli.IntFlag{Name: "duration", Value: ops.DefaultMeetingMinutes, Usage: "Minutes"},
			&cli.StringFlag{Name: "link", Usage: "Meeting link"},
			&cli.StringFlag{Name: "summary", Usage: "Markdown summary"},
		},
		Action: func(c *cli.Context) error {
			date, err := parseTime(c.String("date"))
			if err != nil {
				return outputError(err)
			}
			output, err := ops.AddMeeting(rt.st, ops.AddMeetingInput{
				ID:          c.String("id"),
				LeadID:      c.String("lead"),
				LeadName:    c.String("name"),
				LeadCompany: c.String("company"),
				Title:       c.String("title"),
				Date:        date,
				Duration:    c.Int("duration"),
				MeetingLink: c.String("link"),
				AISummary:   c.String("summary"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func meetingStatusCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "meeting-status",
		Usage:     "Set a meeting's status",
		ArgsUsage: "<id> <scheduled|completed|cancelled>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: tipe meeting-status <id> <status>"))
			}
			output, err := ops.UpdateMeetingStatus(rt.st, ops.UpdateMeetingStatusInput{
				ID:     c.Args().Get(0),
				Status: crm.MeetingStatus(c.Args().Get(1)),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Content

func postsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "posts",
		Usage: "List content posts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "draft|scheduled|published"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListContentPosts(rt.st, crm.PostStatus(c.String("status")))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func postAddCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "post-add",
		Usage: "Draft a content post (markdown read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Post id (generated when omitted)"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "draft|scheduled|published"},
			&cli.StringFlag{Name: "scheduled", Usage: "RFC 3339 publish time"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("content must be piped via stdin"))
			}
			content, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			input := ops.AddContentPostInput{
				ID:      c.String("id"),
				Content: content,
				Status:  crm.PostStatus(c.String("status")),
			}
			if s := c.String("scheduled"); s != "" {
				at, err := parseTime(s)
				if err != nil {
					return outputError(err)
				}
				input.ScheduledDate = &at
			}
			output, err := ops.AddContentPost(rt.st, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func postUpdateCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "post-update",
		Usage:     "Patch a content post; only the given flags change",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "content", Usage: "Replace the body with markdown read from stdin"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "draft|scheduled|published"},
			&cli.StringFlag{Name: "scheduled", Usage: "RFC 3339 publish time"},
			&cli.StringFlag{Name: "published", Usage: "RFC 3339 publication time"},
			&cli.Float64Flag{Name: "engagement", Usage: "Engagement rate"},
			&cli.IntFlag{Name: "likes"},
			&cli.IntFlag{Name: "comments"},
			&cli.IntFlag{Name: "shares"},
		},
		Action: func(c *cli.Context) error {
			patch, err := postPatch(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.UpdateContentPost(rt.st, ops.UpdateContentPostInput{
				ID:    c.Args().First(),
				Patch: patch,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// postPatch builds a patch from the flags the user actually set.
func postPatch(c *cli.Context) (crm.ContentPostPatch, error) {
	var p crm.ContentPostPatch
	if c.Bool("content") {
		text, err := readStdin()
		if err != nil {
			return p, errors.NewInternal(err)
		}
		p.Content = &text
	}
	if c.IsSet("status") {
		s := crm.PostStatus(c.String("status"))
		p.Status = &s
	}
	for _, name := range []string{"scheduled", "published"} {
		if !c.IsSet(name) {
			continue
		}
		at, err := parseTime(c.String(name))
		if err != nil {
			return p, err
		}
		if name == "scheduled" {
			p.ScheduledDate = &at
		} else {
			p.PublishedDate = &at
		}
	}
	if c.IsSet("engagement") {
		v := c.Float64("engagement")
		p.EngagementRate = &v
	}
	if c.IsSet("likes") {
		v := c.Int("likes")
		p.Likes = &v
	}
	if c.IsSet("comments") {
		v := c.Int("comments")
		p.Comments = &v
	}
	if c.IsSet("shares") {
		v := c.Int("shares")
		p.Shares = &v
	}
	return p, nil
}

// Stats

func statsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show dashboard stats",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "refresh", Usage: "Recompute before printing"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("refresh") {
				return outputJSON(ops.RefreshStats(rt.st))
			}
			return outputJSON(ops.GetStats(rt.st))
		},
	}
}

func analyticsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "analytics",
		Usage: "Show the pipeline funnel, match histogram and top locations",
		Action: func(_ *cli.Context) error {
			return outputJSON(ops.Analytics(rt.st))
		},
	}
}

func askCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask the lead assistant a question",
		ArgsUsage: "<question>",
		Action: func(c *cli.Context) error {
			assistant, _ := rt.src.(source.Assistant)
			output, err := ops.Ask(c.Context, assistant, strings.Join(c.Args().Slice(), " "))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Files

func exportCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export every collection to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output path (default: ~/.tipe/exports/<label>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "label", Usage: "File name prefix for the default path"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, rt.st, rt.cfg, ops.ExportInput{
				Path:  c.String("path"),
				Label: c.String("label"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func importCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a JSONL export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Input path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "replace", Usage: "replace|merge"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, rt.st, rt.cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats an error as "[CODE] message" with exit status 1.
func outputError(err error) error {
	if te, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", te.Code, te.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads stdin up to maxStdinBytes.
func readStdin() (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, maxStdinBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxStdinBytes {
		return "", errors.NewInvalidRequest("stdin exceeds 8MB")
	}
	return strings.TrimSpace(string(data)), nil
}

// readStdinJSON decodes a JSON document piped on stdin into v.
func readStdinJSON(v any) error {
	if !stdinHasData() {
		return errors.NewInvalidRequest("JSON must be piped via stdin")
	}
	text, err := readStdin()
	if err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.NewInternal(err)
	}
	if text == "" {
		return errors.NewInvalidRequest("stdin is empty")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return errors.NewInvalidRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// parseTime accepts RFC 3339 timestamps and bare YYYY-MM-DD dates (UTC midnight).
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, errors.NewInvalidRequest(fmt.Sprintf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s))
}
