package source

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tipe/internal/config"
	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
)

func TestMock_FetchLeads(t *testing.T) {
	m := NewMock(MockOptions{Seed: 42})
	leads, err := m.FetchLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, DefaultMockCount)

	ids := map[string]bool{}
	for i, l := range leads {
		require.NoError(t, crm.ValidateLead(l), "lead %d", i)
		assert.Equal(t, crm.LeadPending, l.Status)
		assert.GreaterOrEqual(t, l.VectorScore, 0.7)
		assert.GreaterOrEqual(t, l.IntentScore, 0.6)
		assert.GreaterOrEqual(t, l.TradeMomentumIndex, 0.65)
		assert.False(t, ids[l.ID], "duplicate id %s", l.ID)
		ids[l.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, leads[i-1].RankScore(), l.RankScore(), "not sorted at %d", i)
		}
	}
	assert.True(t, ids["lead-1"])
	assert.True(t, ids["lead-50"])
}

func TestMock_SeedIsReproducible(t *testing.T) {
	a, err := NewMock(MockOptions{Seed: 7, Count: 10}).FetchLeads(context.Background())
	require.NoError(t, err)
	b, err := NewMock(MockOptions{Seed: 7, Count: 10}).FetchLeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMock_PinnedIndustry(t *testing.T) {
	leads, err := NewMock(MockOptions{Count: 5, Industry: "Textiles"}).FetchLeads(context.Background())
	require.NoError(t, err)
	for _, l := range leads {
		assert.Equal(t, "Textiles", l.Industry)
		assert.Contains(t, l.CompanyName, "Textiles")
	}
}

func TestMock_LatencyCancelled(t *testing.T) {
	m := NewMock(MockOptions{Latency: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.FetchLeads(ctx)
	assert.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestMock_Seed(t *testing.T) {
	m := NewMock(MockOptions{})
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	seed, err := m.Seed(context.Background())
	require.NoError(t, err)

	require.Len(t, seed.Conversations, 3)
	assert.Equal(t, "conv-1", seed.Conversations[0].ID)
	total := 0
	for convID, msgs := range seed.Messages {
		total += len(msgs)
		for _, msg := range msgs {
			assert.Equal(t, convID, msg.ConversationID)
			require.NoError(t, crm.ValidateMessage(msg))
		}
	}
	assert.Equal(t, 7, total)

	require.Len(t, seed.Meetings, 3)
	var upcoming, past int
	for _, mt := range seed.Meetings {
		require.NoError(t, crm.ValidateMeeting(mt))
		if mt.IsUpcoming(fixed) {
			upcoming++
		}
		if mt.IsPast(fixed) {
			past++
		}
	}
	assert.Equal(t, 2, upcoming)
	assert.Equal(t, 1, past)

	require.Len(t, seed.ContentPosts, 3)
	statuses := map[crm.PostStatus]bool{}
	for _, p := range seed.ContentPosts {
		statuses[p.Status] = true
	}
	assert.Len(t, statuses, 3)
}

func TestMock_Chat(t *testing.T) {
	reply, err := NewMock(MockOptions{}).Chat(context.Background(), "best markets?")
	require.NoError(t, err)
	assert.Contains(t, reply, "best markets?")
}

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig()
	src, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "mock", src.Name())
	_, isSeeder := src.(Seeder)
	assert.True(t, isSeeder)

	cfg.Source = config.SourceRemote
	src, err = New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "remote", src.Name())
	_, isApprover := src.(Approver)
	assert.True(t, isApprover)

	cfg.Source = "csv"
	_, err = New(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	leads := []crm.Lead{
		{ID: "a", Status: crm.LeadPending, IntentScore: 0.5},
		{ID: "b", Status: crm.LeadPending, IntentScore: 1.5},
		{ID: "a", Status: crm.LeadPending},
		{ID: "", Status: crm.LeadPending},
		{ID: "c", Status: crm.LeadApproved},
	}
	got := Clean(leads, zerolog.Nop())
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
