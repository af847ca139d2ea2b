// Package source fetches leads and seed interactions from a mock generator or
// the remote matchmaking backend.
package source

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hpungsan/tipe/internal/config"
	"github.com/hpungsan/tipe/internal/crm"
)

// Source produces the current lead list.
type Source interface {
	Name() string
	FetchLeads(ctx context.Context) ([]crm.Lead, error)
}

// Seed is the starting set of interactions a source can provide for an empty store.
type Seed struct {
	Conversations []crm.Conversation       // newest first
	Messages      map[string][]crm.Message // keyed by conversation id
	Meetings      []crm.Meeting
	ContentPosts  []crm.ContentPost
}

// Seeder is implemented by sources that ship starter interactions.
type Seeder interface {
	Seed(ctx context.Context) (*Seed, error)
}

// Approver is implemented by sources that record approvals upstream.
type Approver interface {
	Approve(ctx context.Context, leadID string) error
}

// Assistant is implemented by sources that answer free-text questions.
type Assistant interface {
	Chat(ctx context.Context, query string) (string, error)
}

// New builds the source selected by cfg.
func New(cfg *config.Config, log zerolog.Logger) (Source, error) {
	switch cfg.Source {
	case config.SourceMock, "":
		return NewMock(MockOptions{
			Count:    cfg.MockLeadCount,
			Industry: cfg.Industry,
			Seed:     cfg.MockSeed,
			Latency:  cfg.MockLatency(),
		}), nil
	case config.SourceRemote:
		return NewRemote(RemoteOptions{
			BaseURL:   cfg.SourceURL,
			Industry:  cfg.Industry,
			UserEmail: cfg.UserEmail,
			Timeout:   cfg.SourceTimeout(),
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// Clean drops leads that fail validation or repeat an earlier id.
func Clean(leads []crm.Lead, log zerolog.Logger) []crm.Lead {
	seen := make(map[string]struct{}, len(leads))
	out := make([]crm.Lead, 0, len(leads))
	for i, l := range leads {
		if err := crm.ValidateLead(l); err != nil {
			log.Warn().Err(err).Int("index", i).Str("lead_id", l.ID).Msg("dropping invalid lead")
			continue
		}
		if _, dup := seen[l.ID]; dup {
			log.Warn().Int("index", i).Str("lead_id", l.ID).Msg("dropping duplicate lead")
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out
}
