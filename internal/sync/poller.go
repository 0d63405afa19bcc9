package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/nhle/exchange-mail/internal/ews"
	"github.com/nhle/exchange-mail/internal/model"
	"github.com/nhle/exchange-mail/internal/store"
)

// Fetcher is the mailbox surface the poller needs; *ews.MailboxService
// satisfies it.
type Fetcher interface {
	GetMessages(ctx context.Context, opts ews.FetchOptions) ([]model.Message, error)
}

// Result reports the outcome of one poll cycle.
type Result struct {
	Fetched  int
	NewCount int
	Err      error
	At       time.Time
}

// fetchTimeout bounds one full fetch cycle (FindItem, GetItem, and the
// resolution pass together).
const fetchTimeout = 60 * time.Second

// Poller periodically fetches the mailbox into the local cache.
type Poller struct {
	store    store.Store
	fetcher  Fetcher
	interval time.Duration
	window   time.Duration

	resultCh chan Result
	stopOnce gosync.Once
	stopCh   chan struct{}
}

// New creates a poller that fetches messages sent within the trailing
// window every interval. A zero window disables the date filter.
func New(s store.Store, f Fetcher, interval, window time.Duration) *Poller {
	if interval <= 0 {
		interval = 120 * time.Second
	}
	return &Poller{
		store:    s,
		fetcher:  f,
		interval: interval,
		window:   window,
		resultCh: make(chan Result, 16),
		stopCh:   make(chan struct{}),
	}
}

// Results returns the channel on which poll outcomes are reported.
// Results are dropped, not queued, when the consumer falls behind.
func (p *Poller) Results() <-chan Result {
	return p.resultCh
}

// Run polls until ctx is cancelled or Stop is called. The first fetch
// happens immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fetchAndUpsert(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.fetchAndUpsert(ctx)
		}
	}
}

// Stop halts a running poller. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// fetchAndUpsert performs a single fetch, upserts the results into the
// store, records the sync run, and reports the outcome.
func (p *Poller) fetchAndUpsert(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	started := time.Now()

	var opts ews.FetchOptions
	if p.window > 0 {
		start := started.Add(-p.window)
		opts.Start = &start
		opts.End = &started
	}

	messages, err := p.fetcher.GetMessages(fetchCtx, opts)

	run := store.SyncRun{
		StartedAt:  started,
		FinishedAt: time.Now(),
		Fetched:    len(messages),
	}

	if err != nil {
		run.Error = err.Error()
		_ = p.store.RecordSyncRun(ctx, run)
		p.sendResult(Result{Err: err, At: run.FinishedAt})
		return
	}

	newCount := p.countNew(fetchCtx, messages)

	if upsertErr := p.store.UpsertMessages(fetchCtx, messages); upsertErr != nil {
		run.Error = upsertErr.Error()
		_ = p.store.RecordSyncRun(ctx, run)
		p.sendResult(Result{Err: upsertErr, At: run.FinishedAt})
		return
	}

	_ = p.store.RecordSyncRun(ctx, run)
	p.sendResult(Result{
		Fetched:  len(messages),
		NewCount: newCount,
		At:       run.FinishedAt,
	})
}

// countNew reports how many of the fetched messages are not yet cached.
// Best effort: lookup failures leave the count low rather than failing
// the cycle.
func (p *Poller) countNew(ctx context.Context, messages []model.Message) int {
	count := 0
	for _, msg := range messages {
		existing, err := p.store.GetMessageByID(ctx, msg.ID)
		if err == nil && existing == nil {
			count++
		}
	}
	return count
}

// sendResult sends a Result on the result channel without blocking.
func (p *Poller) sendResult(r Result) {
	select {
	case p.resultCh <- r:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
