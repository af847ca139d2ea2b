// Package poll re-fetches leads from the configured source on a cron schedule.
package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/ops"
	"github.com/hpungsan/tipe/internal/source"
	"github.com/hpungsan/tipe/internal/store"
)

// DefaultTimeout bounds one scheduled fetch when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options configures a Poller.
type Options struct {
	Schedule string        // cron spec; empty disables the schedule
	Timeout  time.Duration // per-run fetch timeout
	Observer ops.SyncObserver
}

// Result describes one run.
type Result struct {
	Seq        uint64          `json:"seq"`
	Superseded bool            `json:"superseded"`
	Sync       *ops.SyncOutput `json:"sync,omitempty"`
}

// Poller runs lead syncs. Runs are numbered in start order; a run whose fetch
// finishes after a later run has been applied is discarded.
type Poller struct {
	st   *store.Store
	src  source.Source
	log  zerolog.Logger
	opts Options

	cron    *cron.Cron
	seq     atomic.Uint64
	mu      sync.Mutex // serializes apply
	applied uint64
}

// New returns a poller for st and src. Call Start to enable the schedule.
func New(st *store.Store, src source.Source, log zerolog.Logger, opts Options) (*Poller, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	p := &Poller{st: st, src: src, log: log, opts: opts}
	if opts.Schedule == "" {
		return p, nil
	}

	clog := cronLogger{log: log}
	p.cron = cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog)))
	if _, err := p.cron.AddFunc(opts.Schedule, p.scheduled); err != nil {
		return nil, errors.NewInvalidRequest("invalid poll schedule: " + err.Error())
	}
	return p, nil
}

// Start begins running on the schedule. It is a no-op without one.
func (p *Poller) Start() {
	if p.cron == nil {
		return
	}
	p.log.Info().Str("schedule", p.opts.Schedule).Str("source", p.src.Name()).Msg("lead poller started")
	p.cron.Start()
}

// Stop halts the schedule and waits for a running job to finish or ctx to end.
func (p *Poller) Stop(ctx context.Context) {
	if p.cron == nil {
		return
	}
	select {
	case <-p.cron.Stop().Done():
	case <-ctx.Done():
	}
	p.log.Info().Msg("lead poller stopped")
}

// Next returns the time of the next scheduled run, or zero without a schedule.
func (p *Poller) Next() time.Time {
	if p.cron == nil {
		return time.Time{}
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce fetches and applies leads now. Decisions already recorded locally survive.
func (p *Poller) RunOnce(ctx context.Context) (*Result, error) {
	seq := p.seq.Add(1)

	fctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	leads, err := ops.FetchLeads(fctx, p.src, p.opts.Observer)
	cancel()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq < p.applied {
		p.log.Debug().Uint64("seq", seq).Uint64("applied", p.applied).Msg("discarding superseded lead fetch")
		return &Result{Seq: seq, Superseded: true}, nil
	}
	out, err := ops.ApplyLeads(ctx, p.st, p.src, p.log, leads, ops.SyncInput{KeepDecisions: true})
	if err != nil {
		return nil, err
	}
	p.applied = seq
	return &Result{Seq: seq, Sync: out}, nil
}

func (p *Poller) scheduled() {
	if _, err := p.RunOnce(context.Background()); err != nil {
		p.log.Warn().Err(err).Str("source", p.src.Name()).Msg("scheduled lead sync failed")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
