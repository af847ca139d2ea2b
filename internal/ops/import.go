package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hpungsan/tipe/internal/config"
	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/store"
)

// ImportMode controls how an import combines with the current store.
type ImportMode string

const (
	ImportModeReplace ImportMode = "replace" // swap the whole store, fail on any bad line
	ImportModeMerge   ImportMode = "merge"   // add records with new ids, skip the rest
)

// maxImportLine bounds one JSONL line.
const maxImportLine = 4 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: replace
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Mode     ImportMode     `json:"mode"`
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	Counts   map[string]int `json:"counts"`
	Errors   []ImportError  `json:"errors"`
	Stats    crm.Stats      `json:"stats"`
}

// ImportError describes one line that was not imported.
type ImportError struct {
	Line    int    `json:"line"`
	Kind    string `json:"kind,omitempty"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// importRecord is a decoded, validated line of an export file.
type importRecord struct {
	line    int
	kind    string
	thread  string
	id      string
	lead    crm.Lead
	conv    crm.Conversation
	message crm.Message
	meeting crm.Meeting
	post    crm.ContentPost
}

// Import loads a JSONL export into the store.
//
// Replace mode is all-or-nothing: any unreadable or invalid line aborts the
// import, leaving the store unchanged, and is reported in Errors. Merge mode
// keeps current records, appends records whose ids are new, and reports
// collisions and bad lines as skipped.
func Import(ctx context.Context, st *store.Store, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeReplace
	}
	if input.Mode != ImportModeReplace && input.Mode != ImportModeMerge {
		return nil, errors.NewInvalidRequest("mode must be one of: replace, merge")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openNoFollow(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors, err := parseExport(ctx, file)
	if err != nil {
		return nil, err
	}

	out := &ImportOutput{Mode: input.Mode, Counts: map[string]int{}, Errors: []ImportError{}}
	if input.Mode == ImportModeReplace {
		if len(parseErrors) > 0 {
			out.Errors = parseErrors
			out.Stats = st.Stats()
			return out, nil
		}
		snap := emptySnapshot()
		for _, r := range records {
			addToSnapshot(&snap, r)
			out.Counts[r.kind]++
		}
		if err := st.Restore(snap); err != nil {
			return nil, err
		}
		out.Imported = len(records)
		out.Stats = st.Stats()
		return out, nil
	}

	out.Errors = append(out.Errors, parseErrors...)
	out.Skipped = len(parseErrors)
	snap := st.Snapshot()
	taken := takenIDs(snap)
	for _, r := range records {
		key := r.kind + "\x00" + r.thread + "\x00" + r.id
		if taken[key] {
			out.Errors = append(out.Errors, ImportError{
				Line:    r.line,
				Kind:    r.kind,
				ID:      r.id,
				Code:    "ID_COLLISION",
				Message: fmt.Sprintf("%s with id %q already exists", r.kind, r.id),
			})
			out.Skipped++
			continue
		}
		taken[key] = true
		addToSnapshot(&snap, r)
		out.Counts[r.kind]++
		out.Imported++
	}
	if out.Imported > 0 {
		if err := st.Restore(snap); err != nil {
			return nil, err
		}
	}
	out.Stats = st.Stats()
	return out, nil
}

// parseExport decodes every line of an export file. Header lines are skipped.
func parseExport(ctx context.Context, r io.Reader) ([]importRecord, []ImportError, error) {
	var (
		records []importRecord
		errs    []ImportError
	)
	fail := func(line int, code, msg string) {
		errs = append(errs, ImportError{Line: line, Code: code, Message: msg})
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxImportLine)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if err := ctx.Err(); err != nil {
			return nil, nil, errors.NewCancelled("import")
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var probe struct {
			TipeExport bool `json:"_tipe_export"`
			ExportRecord
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			fail(lineNum, "PARSE_ERROR", fmt.Sprintf("invalid JSON: %v", err))
			continue
		}
		if probe.TipeExport {
			continue
		}

		rec, err := decodeRecord(lineNum, probe.ExportRecord)
		if err != nil {
			fail(lineNum, "INVALID_RECORD", err.Error())
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		fail(lineNum, "READ_ERROR", fmt.Sprintf("failed to read file: %v", err))
	}
	return records, errs, nil
}

func decodeRecord(line int, er ExportRecord) (importRecord, error) {
	rec := importRecord{line: line, kind: er.Kind, thread: er.Thread}
	var err error
	switch er.Kind {
	case KindLead:
		if err = json.Unmarshal(er.Data, &rec.lead); err == nil {
			rec.id, err = rec.lead.ID, crm.ValidateLead(rec.lead)
		}
	case KindConversation:
		if err = json.Unmarshal(er.Data, &rec.conv); err == nil {
			rec.id, err = rec.conv.ID, crm.ValidateConversation(rec.conv)
		}
	case KindMessage:
		if er.Thread == "" {
			return rec, fmt.Errorf("message record without thread")
		}
		if err = json.Unmarshal(er.Data, &rec.message); err == nil {
			rec.id, err = rec.message.ID, crm.ValidateMessage(rec.message)
		}
	case KindMeeting:
		if err = json.Unmarshal(er.Data, &rec.meeting); err == nil {
			rec.id, err = rec.meeting.ID, crm.ValidateMeeting(rec.meeting)
		}
	case KindContentPost:
		if err = json.Unmarshal(er.Data, &rec.post); err == nil {
			rec.id, err = rec.post.ID, crm.ValidateContentPost(rec.post)
		}
	default:
		return rec, fmt.Errorf("unknown record kind %q", er.Kind)
	}
	return rec, err
}

func emptySnapshot() store.Snapshot {
	return store.Snapshot{Messages: map[string][]crm.Message{}}
}

func addToSnapshot(snap *store.Snapshot, r importRecord) {
	switch r.kind {
	case KindLead:
		snap.Leads = append(snap.Leads, r.lead)
	case KindConversation:
		snap.Conversations = append(snap.Conversations, r.conv)
	case KindMessage:
		snap.Messages[r.thread] = append(snap.Messages[r.thread], r.message)
	case KindMeeting:
		snap.Meetings = append(snap.Meetings, r.meeting)
	case KindContentPost:
		snap.ContentPosts = append(snap.ContentPosts, r.post)
	}
}

// takenIDs indexes every id in snap by kind (and thread, for messages).
// Replace mode leaves duplicate detection to store.Restore.
func takenIDs(snap store.Snapshot) map[string]bool {
	taken := map[string]bool{}
	mark := func(kind, thread, id string) { taken[kind+"\x00"+thread+"\x00"+id] = true }
	for _, l := range snap.Leads {
		mark(KindLead, "", l.ID)
	}
	for _, c := range snap.Conversations {
		mark(KindConversation, "", c.ID)
	}
	for thread, msgs := range snap.Messages {
		for _, m := range msgs {
			mark(KindMessage, thread, m.ID)
		}
	}
	for _, m := range snap.Meetings {
		mark(KindMeeting, "", m.ID)
	}
	for _, p := range snap.ContentPosts {
		mark(KindContentPost, "", p.ID)
	}
	return taken
}
