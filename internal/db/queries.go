package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/store"
)

const (
	metaVersion = "version"
	metaSavedAt = "saved_at"
)

// SaveSnapshot replaces the persisted state with snap in a single transaction.
func SaveSnapshot(ctx context.Context, db *sql.DB, snap store.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	for _, table := range []string{"leads", "conversations", "messages", "meetings", "content_posts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.NewInternal(err)
		}
	}

	for i, l := range snap.Leads {
		data, err := json.Marshal(l)
		if err != nil {
			return errors.NewInternal(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO leads (id, position, status, industry, data_json) VALUES (?, ?, ?, ?, ?)`,
			l.ID, i, string(l.Status), l.Industry, string(data),
		); err != nil {
			return errors.NewInternal(err)
		}
	}

	for i, c := range snap.Conversations {
		data, err := json.Marshal(c)
		if err != nil {
			return errors.NewInternal(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (id, position, lead_id, status, data_json) VALUES (?, ?, ?, ?, ?)`,
			c.ID, i, c.LeadID, string(c.Status), string(data),
		); err != nil {
			return errors.NewInternal(err)
		}
	}

	for convID, msgs := range snap.Messages {
		for seq, m := range msgs {
			data, err := json.Marshal(m)
			if err != nil {
				return errors.NewInternal(err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (conversation_id, seq, id, data_json) VALUES (?, ?, ?, ?)`,
				convID, seq, m.ID, string(data),
			); err != nil {
				return errors.NewInternal(err)
			}
		}
	}

	for i, m := range snap.Meetings {
		data, err := json.Marshal(m)
		if err != nil {
			return errors.NewInternal(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meetings (id, position, lead_id, status, date_unix, data_json) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, i, m.LeadID, string(m.Status), m.Date.Unix(), string(data),
		); err != nil {
			return errors.NewInternal(err)
		}
	}

	for i, p := range snap.ContentPosts {
		data, err := json.Marshal(p)
		if err != nil {
			return errors.NewInternal(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO content_posts (id, position, status, data_json) VALUES (?, ?, ?, ?)`,
			p.ID, i, string(p.Status), string(data),
		); err != nil {
			return errors.NewInternal(err)
		}
	}

	meta := map[string]string{
		metaVersion: strconv.FormatUint(snap.Version, 10),
		metaSavedAt: strconv.FormatInt(time.Now().Unix(), 10),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO store_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v,
		); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// LoadSnapshot reads the persisted state. found is false when nothing was ever saved.
func LoadSnapshot(ctx context.Context, db *sql.DB) (snap store.Snapshot, found bool, err error) {
	var version string
	err = db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, metaVersion).Scan(&version)
	if err == sql.ErrNoRows {
		return store.Snapshot{}, false, nil
	}
	if err != nil {
		return store.Snapshot{}, false, errors.NewInternal(err)
	}
	snap.Version, _ = strconv.ParseUint(version, 10, 64)

	if snap.Leads, err = loadOrdered[crm.Lead](ctx, db, `SELECT data_json FROM leads ORDER BY position`); err != nil {
		return store.Snapshot{}, false, err
	}
	if snap.Conversations, err = loadOrdered[crm.Conversation](ctx, db, `SELECT data_json FROM conversations ORDER BY position`); err != nil {
		return store.Snapshot{}, false, err
	}
	if snap.Meetings, err = loadOrdered[crm.Meeting](ctx, db, `SELECT data_json FROM meetings ORDER BY position`); err != nil {
		return store.Snapshot{}, false, err
	}
	if snap.ContentPosts, err = loadOrdered[crm.ContentPost](ctx, db, `SELECT data_json FROM content_posts ORDER BY position`); err != nil {
		return store.Snapshot{}, false, err
	}
	if snap.Messages, err = loadMessages(ctx, db); err != nil {
		return store.Snapshot{}, false, err
	}

	return snap, true, nil
}

// SavedAt returns when the last snapshot was written, or zero time if never.
func SavedAt(ctx context.Context, db *sql.DB) (time.Time, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, metaSavedAt).Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.NewInternal(err)
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, errors.NewInternal(err)
	}
	return time.Unix(sec, 0), nil
}

// CountLeadsByStatus returns persisted lead counts per status.
func CountLeadsByStatus(ctx context.Context, db *sql.DB) (map[crm.LeadStatus]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	counts := map[crm.LeadStatus]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.NewInternal(err)
		}
		counts[crm.LeadStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return counts, nil
}

// loadOrdered decodes the data_json column of every row returned by query.
func loadOrdered[T any](ctx context.Context, db *sql.DB, query string) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewInternal(err)
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func loadMessages(ctx context.Context, db *sql.DB) (map[string][]crm.Message, error) {
	rows, err := db.QueryContext(ctx, `SELECT conversation_id, data_json FROM messages ORDER BY conversation_id, seq`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := map[string][]crm.Message{}
	for rows.Next() {
		var convID, data string
		if err := rows.Scan(&convID, &data); err != nil {
			return nil, errors.NewInternal(err)
		}
		var m crm.Message
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, errors.NewInternal(err)
		}
		out[convID] = append(out[convID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}
