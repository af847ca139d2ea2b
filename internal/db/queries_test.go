package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/store"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New()
	require.NoError(t, st.SetLeads([]crm.Lead{
		{ID: "lead-1", CompanyName: "Global Textiles Ltd", Industry: "Textiles", IntentScore: 0.9, Status: crm.LeadApproved, Signals: []string{"Trade Active"}},
		{ID: "lead-2", CompanyName: "Premier Textiles Inc", Industry: "Textiles", IntentScore: 0.7, Status: crm.LeadPending},
		{ID: "lead-3", CompanyName: "Elite Textiles Co", Industry: "Textiles", IntentScore: 0.6, Status: crm.LeadRejected},
	}))
	require.NoError(t, st.AddConversation(crm.Conversation{ID: "conv-1", LeadID: "lead-1", Channel: crm.ChannelEmail, Status: crm.ConversationActive}))
	require.NoError(t, st.AddConversation(crm.Conversation{ID: "conv-2", LeadID: "lead-2", Channel: crm.ChannelLinkedIn, Status: crm.ConversationArchived}))
	st.AddMessage("conv-1", crm.Message{ID: "m1", Sender: crm.SenderAI, Content: "Hello", Channel: crm.ChannelEmail, Timestamp: time.Unix(1700000000, 0).UTC()})
	st.AddMessage("conv-1", crm.Message{ID: "m2", Sender: crm.SenderLead, Content: "Hi", Channel: crm.ChannelEmail, Timestamp: time.Unix(1700000100, 0).UTC()})
	st.AddMessage("orphan", crm.Message{ID: "m3", Sender: crm.SenderUser, Content: "note", Channel: crm.ChannelCall})
	require.NoError(t, st.AddMeeting(crm.Meeting{ID: "meet-1", LeadID: "lead-1", Title: "Intro", Date: time.Unix(1800000000, 0).UTC(), Duration: 30, Status: crm.MeetingScheduled}))
	likes := 10
	require.NoError(t, st.AddContentPost(crm.ContentPost{ID: "post-1", Content: "**Launch**", Status: crm.PostPublished, Likes: &likes}))
	return st
}

func TestSaveLoadSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	st := seededStore(t)

	want := st.Snapshot()
	require.NoError(t, SaveSnapshot(ctx, database, want))

	got, found, err := LoadSnapshot(ctx, database)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, want.Leads, got.Leads)
	assert.Equal(t, want.Conversations, got.Conversations)
	assert.Equal(t, want.Messages, got.Messages)
	assert.Equal(t, want.Meetings, got.Meetings)
	assert.Equal(t, want.ContentPosts, got.ContentPosts)
	assert.Equal(t, want.Version, got.Version)
}

func TestLoadSnapshot_Empty(t *testing.T) {
	_, found, err := LoadSnapshot(context.Background(), openTestDB(t))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveSnapshot_Replaces(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	st := seededStore(t)
	require.NoError(t, SaveSnapshot(ctx, database, st.Snapshot()))

	require.NoError(t, st.SetLeads([]crm.Lead{{ID: "only", Status: crm.LeadPending}}))
	require.NoError(t, SaveSnapshot(ctx, database, st.Snapshot()))

	got, _, err := LoadSnapshot(ctx, database)
	require.NoError(t, err)
	require.Len(t, got.Leads, 1)
	assert.Equal(t, "only", got.Leads[0].ID)

	counts, err := CountLeadsByStatus(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, map[crm.LeadStatus]int{crm.LeadPending: 1}, counts)

	savedAt, err := SavedAt(ctx, database)
	require.NoError(t, err)
	assert.False(t, savedAt.IsZero())
}

func TestCheckpointer_PersistsChanges(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	st := store.New()

	cp := NewCheckpointer(database, st, zerolog.Nop())
	detach := cp.Attach()
	defer detach()

	require.NoError(t, st.SetLeads([]crm.Lead{
		{ID: "a", Status: crm.LeadPending},
		{ID: "b", Status: crm.LeadPending},
	}))
	require.NoError(t, st.UpdateLeadStatus("b", crm.LeadApproved))
	require.NoError(t, cp.LastError())

	// A fresh store restored from disk sees the same state and stats.
	restored := store.New()
	found, err := NewCheckpointer(database, restored, zerolog.Nop()).Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, st.Leads(), restored.Leads())
	assert.Equal(t, 50.0, restored.Stats().ApprovalRate)
	assert.Len(t, restored.ApprovedLeads(), 1)
}

func TestCheckpointer_SkipsSavedVersion(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	st := seededStore(t)
	cp := NewCheckpointer(database, st, zerolog.Nop())

	require.NoError(t, cp.Save(ctx))
	first, err := SavedAt(ctx, database)
	require.NoError(t, err)

	// Removing the rows behind the checkpointer's back proves the second Save is a no-op.
	_, err = database.Exec(`DELETE FROM leads`)
	require.NoError(t, err)
	require.NoError(t, cp.Save(ctx))

	counts, err := CountLeadsByStatus(ctx, database)
	require.NoError(t, err)
	assert.Empty(t, counts)
	second, err := SavedAt(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCheckpointer_LoadNothing(t *testing.T) {
	found, err := NewCheckpointer(openTestDB(t), store.New(), zerolog.Nop()).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}
