package poll

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/source"
	"github.com/hpungsan/tipe/internal/store"
)

// gatedSource blocks its first fetch until release is closed.
type gatedSource struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newGatedSource() *gatedSource {
	return &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) Name() string { return "gated" }

func (g *gatedSource) FetchLeads(ctx context.Context) ([]crm.Lead, error) {
	n := g.calls.Add(1)
	if n == 1 {
		close(g.started)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, errors.NewCancelled("fetch leads")
		}
		return []crm.Lead{{ID: "stale", Status: crm.LeadPending}}, nil
	}
	return []crm.Lead{{ID: fmt.Sprintf("fresh-%d", n), Status: crm.LeadPending}}, nil
}

func TestRunOnce_DiscardsSupersededFetch(t *testing.T) {
	st := store.New()
	src := newGatedSource()
	p, err := New(st, src, zerolog.Nop(), Options{})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		slow    *Result
		slowErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		slow, slowErr = p.RunOnce(context.Background())
	}()
	<-src.started

	fast, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, fast.Superseded)
	assert.Equal(t, uint64(2), fast.Seq)

	close(src.release)
	wg.Wait()
	require.NoError(t, slowErr)
	assert.True(t, slow.Superseded)
	assert.Equal(t, uint64(1), slow.Seq)
	assert.Nil(t, slow.Sync)

	leads := st.Leads()
	require.Len(t, leads, 1)
	assert.Equal(t, "fresh-2", leads[0].ID)
}

func TestRunOnce_KeepsDecisions(t *testing.T) {
	st := store.New()
	src := source.NewMock(source.MockOptions{Count: 5, Seed: 9})
	p, err := New(st, src, zerolog.Nop(), Options{})
	require.NoError(t, err)

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Sync)
	assert.True(t, res.Sync.Seeded)

	id := st.Leads()[0].ID
	require.NoError(t, st.UpdateLeadStatus(id, crm.LeadApproved))

	res, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sync.Kept)
	l, err := st.Lead(id)
	require.NoError(t, err)
	assert.Equal(t, crm.LeadApproved, l.Status)
}

func TestRunOnce_Timeout(t *testing.T) {
	src := newGatedSource()
	p, err := New(store.New(), src, zerolog.Nop(), Options{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = p.RunOnce(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCancelled), "got %v", err)
}

func TestNew_Schedule(t *testing.T) {
	src := source.NewMock(source.MockOptions{Count: 1})

	p, err := New(store.New(), src, zerolog.Nop(), Options{})
	require.NoError(t, err)
	assert.True(t, p.Next().IsZero())
	p.Start()
	p.Stop(context.Background())

	p, err = New(store.New(), src, zerolog.Nop(), Options{Schedule: "@every 1h"})
	require.NoError(t, err)
	p.Start()
	defer p.Stop(context.Background())
	assert.WithinDuration(t, time.Now().Add(time.Hour), p.Next(), 5*time.Second)

	_, err = New(store.New(), src, zerolog.Nop(), Options{Schedule: "every tuesday"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestScheduledRun(t *testing.T) {
	st := store.New()
	src := source.NewMock(source.MockOptions{Count: 3, Seed: 1})
	p, err := New(st, src, zerolog.Nop(), Options{Schedule: "@every 1s"})
	require.NoError(t, err)
	p.Start()
	defer p.Stop(context.Background())

	assert.Eventually(t, func() bool { return len(st.Leads()) == 3 }, 5*time.Second, 50*time.Millisecond)
}
