package ops

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/source"
	"github.com/hpungsan/tipe/internal/store"
)

// SyncObserver receives the outcome of every fetch.
type SyncObserver interface {
	ObserveSync(source string, took time.Duration, err error)
}

// SyncInput contains parameters for the SyncLeads operation.
type SyncInput struct {
	// KeepDecisions carries over approved/rejected/skipped statuses for ids
	// that are already in the store. When false the fetched statuses win.
	KeepDecisions bool

	Observer SyncObserver // optional
}

// SyncOutput contains the result of the SyncLeads operation.
type SyncOutput struct {
	Source  string    `json:"source"`
	Fetched int       `json:"fetched"`
	Dropped int       `json:"dropped"`
	Kept    int       `json:"kept_decisions"`
	Seeded  bool      `json:"seeded"`
	Stats   crm.Stats `json:"stats"`
}

// SyncLeads fetches leads from src and replaces the leads collection with them.
// Invalid records are dropped. When src is a Seeder and the store holds no
// conversations, messages, meetings or content posts, the seed interactions are
// added too.
func SyncLeads(ctx context.Context, st *store.Store, src source.Source, log zerolog.Logger, input SyncInput) (*SyncOutput, error) {
	fetched, err := FetchLeads(ctx, src, input.Observer)
	if err != nil {
		return nil, err
	}
	return ApplyLeads(ctx, st, src, log, fetched, input)
}

// FetchLeads runs one fetch against src and reports it to obs.
func FetchLeads(ctx context.Context, src source.Source, obs SyncObserver) ([]crm.Lead, error) {
	if src == nil {
		return nil, errors.NewInvalidRequest("no lead source configured")
	}
	start := time.Now()
	leads, err := src.FetchLeads(ctx)
	if obs != nil {
		obs.ObserveSync(src.Name(), time.Since(start), err)
	}
	return leads, err
}

// ApplyLeads stores leads fetched from src, seeding interactions when needed.
func ApplyLeads(ctx context.Context, st *store.Store, src source.Source, log zerolog.Logger, fetched []crm.Lead, input SyncInput) (*SyncOutput, error) {
	leads := source.Clean(fetched, log)
	out := &SyncOutput{
		Source:  src.Name(),
		Fetched: len(fetched),
		Dropped: len(fetched) - len(leads),
	}
	kept, err := st.MergeLeads(leads, input.KeepDecisions)
	if err != nil {
		return nil, err
	}
	out.Kept = kept

	if seeder, ok := src.(source.Seeder); ok && needsSeed(st) {
		seed, err := seeder.Seed(ctx)
		if err != nil {
			return nil, err
		}
		if err := applySeed(st, seed); err != nil {
			return nil, err
		}
		out.Seeded = true
	}

	out.Stats = st.Stats()
	log.Info().
		Str("source", out.Source).
		Int("fetched", out.Fetched).
		Int("dropped", out.Dropped).
		Int("kept_decisions", out.Kept).
		Bool("seeded", out.Seeded).
		Msg("leads synced")
	return out, nil
}

func needsSeed(st *store.Store) bool {
	return !st.HasInteractions()
}

// applySeed adds seed interactions through the regular store actions, keeping
// the seed's newest-first conversation order.
func applySeed(st *store.Store, seed *source.Seed) error {
	if seed == nil {
		return nil
	}
	for _, c := range slices.Backward(seed.Conversations) {
		if err := st.AddConversation(c); err != nil && !errors.Is(err, errors.ErrAlreadyExists) {
			return err
		}
	}
	for _, convID := range orderThreads(seed.Conversations, seed.Messages) {
		for _, m := range seed.Messages[convID] {
			st.AddMessage(convID, m)
		}
	}
	for _, m := range seed.Meetings {
		if err := st.AddMeeting(m); err != nil && !errors.Is(err, errors.ErrAlreadyExists) {
			return err
		}
	}
	for _, p := range seed.ContentPosts {
		if err := st.AddContentPost(p); err != nil && !errors.Is(err, errors.ErrAlreadyExists) {
			return err
		}
	}
	return nil
}

// orderThreads lists message thread keys in conversation order, then any
// threads without a conversation in sorted order.
func orderThreads(convs []crm.Conversation, msgs map[string][]crm.Message) []string {
	keys := make([]string, 0, len(msgs))
	seen := make(map[string]bool, len(msgs))
	for _, c := range convs {
		if _, ok := msgs[c.ID]; ok && !seen[c.ID] {
			keys = append(keys, c.ID)
			seen[c.ID] = true
		}
	}
	var rest []string
	for k := range msgs {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}
