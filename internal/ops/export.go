package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/tipe/internal/config"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/store"
)

// ExportSchemaVersion is written into every export header.
const ExportSchemaVersion = "1.0"

// Record kinds in an export file.
const (
	KindLead         = "lead"
	KindConversation = "conversation"
	KindMessage      = "message"
	KindMeeting      = "meeting"
	KindContentPost  = "content_post"
)

// ExportHeader is the first line of an export file.
type ExportHeader struct {
	TipeExport    bool   `json:"_tipe_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
	StoreVersion  uint64 `json:"store_version"`
}

// ExportRecord is one record line. Thread is set for messages only.
type ExportRecord struct {
	Kind   string          `json:"kind"`
	Thread string          `json:"thread,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path  string // optional, default: ~/.tipe/exports/<label>-<timestamp>.jsonl
	Label string // optional file name prefix for the default path, default "tipe"
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string         `json:"path"`
	Count      int            `json:"count"`
	Counts     map[string]int `json:"counts"`
	ExportedAt int64          `json:"exported_at"`
}

// Export writes a full store snapshot to a JSONL file. The file is written to
// a temp name and renamed into place, so an existing export survives a failure.
func Export(ctx context.Context, st *store.Store, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	path := input.Path
	if path == "" {
		var err error
		if path, err = defaultExportPath(input.Label, now); err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(path, PathCheckWrite, cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(suffix) + ".tmp"
	file, err := createNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	snap := st.Snapshot()
	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	if err := enc.Encode(ExportHeader{
		TipeExport:    true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    now.Unix(),
		StoreVersion:  snap.Version,
	}); err != nil {
		return nil, errors.NewInternal(err)
	}

	counts := map[string]int{}
	write := func(kind, thread string, v any) error {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelled("export")
		}
		data, err := json.Marshal(v)
		if err != nil {
			return errors.NewInternal(err)
		}
		if err := enc.Encode(ExportRecord{Kind: kind, Thread: thread, Data: data}); err != nil {
			return errors.NewInternal(err)
		}
		counts[kind]++
		return nil
	}

	for _, l := range snap.Leads {
		if err := write(KindLead, "", l); err != nil {
			return nil, err
		}
	}
	for _, c := range snap.Conversations {
		if err := write(KindConversation, "", c); err != nil {
			return nil, err
		}
	}
	for _, thread := range orderThreads(snap.Conversations, snap.Messages) {
		for _, m := range snap.Messages[thread] {
			if err := write(KindMessage, thread, m); err != nil {
				return nil, err
			}
		}
	}
	for _, m := range snap.Meetings {
		if err := write(KindMeeting, "", m); err != nil {
			return nil, err
		}
	}
	for _, p := range snap.ContentPosts {
		if err := write(KindContentPost, "", p); err != nil {
			return nil, err
		}
	}

	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted after validation.
	if isSymlink(path) {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	total := 0
	for _, n := range counts {
		total += n
	}
	return &ExportOutput{
		Path:       path,
		Count:      total,
		Counts:     counts,
		ExportedAt: now.Unix(),
	}, nil
}

// defaultExportPath builds ~/.tipe/exports/<label>-<timestamp>.jsonl.
func defaultExportPath(label string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	name := "tipe"
	if label != "" {
		name = SanitizeForFilename(label)
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl", name, now.Format("2006-01-02T150405"))), nil
}
