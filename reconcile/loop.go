package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/duckpond-io/pondctl/api"
)

// DefaultInterval is the reconciliation period.
const DefaultInterval = 10 * time.Second

// maxBackoffShift caps the failure backoff at interval * 2^3.
const maxBackoffShift = 3

// Source is the narrow fetch surface the loop needs.
type Source interface {
	ListNotebooks(ctx context.Context) ([]api.NotebookFile, error)
	ListSessions(ctx context.Context) ([]api.Session, error)
}

// Loop keeps a merged snapshot fresh. Ticks are single-flight: a tick
// requested while one is in flight shares its result instead of racing
// it, and repeated failures back the schedule off exponentially.
type Loop struct {
	src      Source
	interval time.Duration
	logger   *slog.Logger

	flight singleflight.Group

	mu       sync.Mutex
	failures int
}

// NewLoop builds a loop polling src every interval.
func NewLoop(src Source, interval time.Duration, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{src: src, interval: interval, logger: logger}
}

// Interval returns the configured tick period.
func (l *Loop) Interval() time.Duration { return l.interval }

// NextDelay returns how long to wait before the next scheduled tick,
// stretched by the current failure backoff.
func (l *Loop) NextDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	shift := l.failures
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return l.interval << shift
}

// Tick fetches both collections concurrently and merges them. Concurrent
// callers coalesce onto one in-flight fetch.
func (l *Loop) Tick(ctx context.Context) ([]MergedNotebook, error) {
	v, err, _ := l.flight.Do("tick", func() (any, error) {
		return l.fetch(ctx)
	})
	l.record(err)
	if err != nil {
		return nil, err
	}
	return v.([]MergedNotebook), nil
}

// Refresh is an out-of-band Tick whose error is logged and swallowed,
// used after transitions so the view reflects server-confirmed truth.
func (l *Loop) Refresh(ctx context.Context) []MergedNotebook {
	items, err := l.Tick(ctx)
	if err != nil {
		l.logger.Warn("reconcile refresh failed", "error", err)
		return nil
	}
	return items
}

// Run polls until ctx is cancelled, delivering each successful snapshot
// to onUpdate. Per-tick failures are logged and the schedule continues
// with backoff.
func (l *Loop) Run(ctx context.Context, onUpdate func([]MergedNotebook)) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		items, err := l.Tick(ctx)
		if err != nil {
			l.logger.Warn("reconcile tick failed", "error", err)
		} else if onUpdate != nil {
			onUpdate(items)
		}
		timer.Reset(l.NextDelay())
	}
}

func (l *Loop) fetch(ctx context.Context) ([]MergedNotebook, error) {
	var (
		files    []api.NotebookFile
		sessions []api.Session
	)
	// Two independent calls: no atomic snapshot exists across them.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		files, err = l.src.ListNotebooks(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = l.src.ListSessions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(files, sessions), nil
}

func (l *Loop) record(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.failures++
		return
	}
	l.failures = 0
}
