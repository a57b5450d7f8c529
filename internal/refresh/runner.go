// Package refresh orchestrates one dataset refresh cycle: fetch, parse,
// build, publish. A cycle that fails at any stage aborts without touching
// the published snapshot; the failure is logged and pushed to the operator
// alert channel, never surfaced to readers.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lmoretti/fibermirror/internal/alert"
	"github.com/lmoretti/fibermirror/internal/archive"
	"github.com/lmoretti/fibermirror/internal/dataset"
	"github.com/lmoretti/fibermirror/internal/fetch"
	"github.com/lmoretti/fibermirror/internal/metrics"
)

// ErrInProgress is returned by Run when a refresh cycle is already running.
// Cycles are serialized; an overlapping trigger is a no-op for the caller.
var ErrInProgress = errors.New("refresh already in progress")

// Refresh pipeline states reported through Status.
const (
	StateNone     = "none"
	StateFetching = "fetching"
	StateSuccess  = "success"
	StateError    = "error"
)

// Status is a point-in-time report of the refresh pipeline for /health.
type Status struct {
	State       string
	LastRun     time.Time
	LastError   string
	LastCycleID string
}

// DiskArchive is the slice of the disk persistence collaborator the
// pipeline uses: save fresh payloads, read back the last known good one.
type DiskArchive interface {
	Save(ctx context.Context, p *fetch.Payload) error
	Get(ctx context.Context, date time.Time) (*fetch.Payload, error)
	Latest(ctx context.Context) (*fetch.Payload, error)
}

// Runner executes refresh cycles against one snapshot store.
type Runner struct {
	source   fetch.Source
	store    *dataset.Store
	archive  DiskArchive       // optional
	notifier alert.Notifier    // optional
	metrics  *metrics.Registry // optional

	running atomic.Bool
	now     func() time.Time

	mu     sync.Mutex
	status Status
}

// New creates a Runner. archive, notifier and reg may be nil; the
// corresponding behavior (disk cache, alerts, instrumentation) is skipped.
func New(source fetch.Source, store *dataset.Store, archive DiskArchive, notifier alert.Notifier, reg *metrics.Registry) *Runner {
	return &Runner{
		source:   source,
		store:    store,
		archive:  archive,
		notifier: notifier,
		metrics:  reg,
		now:      time.Now,
		status:   Status{State: StateNone},
	}
}

// Status returns a copy of the pipeline status.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Run executes one complete refresh cycle. It is the single entry point for
// the scheduler and for manual triggers. A call while another cycle is in
// flight returns ErrInProgress without doing any work.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		if r.metrics != nil {
			r.metrics.ObserveRefresh("rejected", 0)
		}
		return ErrInProgress
	}
	defer r.running.Store(false)

	cycleID := uuid.NewString()
	log := slog.With("cycle_id", cycleID)
	start := r.now()

	r.setStatus(Status{State: StateFetching, LastRun: start, LastCycleID: cycleID})
	log.Info("refresh cycle started")

	payload, fresh, err := r.obtainPayload(ctx, log)
	if err != nil {
		return r.fail(ctx, log, cycleID, start, fmt.Errorf("fetch: %w", err))
	}
	log.Info("dataset obtained",
		"filename", payload.Filename,
		"dataset_date", payload.DatasetDate.Format("2006-01-02"),
		"bytes", len(payload.CSV),
		"from_upstream", fresh,
	)

	res, err := dataset.Parse(payload.CSV)
	if err != nil {
		return r.fail(ctx, log, cycleID, start, err)
	}
	if res.Skipped > 0 {
		log.Warn("rows dropped by validation", "skipped", res.Skipped)
	}

	views, err := dataset.Build(res.Records, r.now())
	if err != nil {
		return r.fail(ctx, log, cycleID, start, err)
	}

	snap := r.store.Publish(views, dataset.SourceInfo{
		Filename:    payload.Filename,
		DatasetDate: payload.DatasetDate,
		RawCSV:      payload.CSV,
	})

	// The snapshot is already live; an archive write failure only costs the
	// next restart its disk fallback.
	if fresh && r.archive != nil {
		if err := r.archive.Save(ctx, payload); err != nil {
			log.Error("archiving dataset failed", "error", err)
		}
	}

	if r.metrics != nil {
		r.metrics.SetSnapshot(views.Len(), res.Skipped, snap.Generation, snap.PublishedAt)
		r.metrics.ObserveRefresh("success", r.now().Sub(start))
	}
	r.setStatus(Status{State: StateSuccess, LastRun: start, LastCycleID: cycleID})

	log.Info("refresh cycle complete",
		"records", views.Len(),
		"skipped", res.Skipped,
		"generation", snap.Generation,
		"etag", views.ETag(),
		"duration_ms", r.now().Sub(start).Milliseconds(),
	)
	return nil
}

// obtainPayload resolves the raw dataset for this cycle. The disk archive
// is consulted first for today's dataset (upstream publishes at most one
// export per day); otherwise the upstream source is fetched. When the very
// first fetch fails and the archive holds an older dataset, that dataset is
// served rather than starting empty.
func (r *Runner) obtainPayload(ctx context.Context, log *slog.Logger) (payload *fetch.Payload, fresh bool, err error) {
	if r.archive != nil {
		cached, err := r.archive.Get(ctx, r.now())
		switch {
		case err == nil:
			log.Info("using archived dataset for today", "filename", cached.Filename)
			return cached, false, nil
		case !errors.Is(err, archive.ErrEmpty):
			log.Warn("archive read failed, fetching upstream", "error", err)
		}
	}

	payload, fetchErr := r.source.Fetch(ctx)
	if fetchErr == nil {
		return payload, true, nil
	}

	// First-start fallback: prefer stale data over no data.
	if r.archive != nil && r.store.Current().Generation == 0 {
		if cached, err := r.archive.Latest(ctx); err == nil {
			log.Warn("upstream fetch failed, falling back to newest archived dataset",
				"error", fetchErr,
				"filename", cached.Filename,
				"dataset_date", cached.DatasetDate.Format("2006-01-02"),
			)
			return cached, false, nil
		}
	}

	return nil, false, fetchErr
}

// fail records a cycle failure: status, metrics, operator alert.
func (r *Runner) fail(ctx context.Context, log *slog.Logger, cycleID string, start time.Time, err error) error {
	log.Error("refresh cycle failed", "error", err)
	r.setStatus(Status{State: StateError, LastRun: start, LastError: err.Error(), LastCycleID: cycleID})
	if r.metrics != nil {
		r.metrics.ObserveRefresh("error", r.now().Sub(start))
	}
	if r.notifier != nil {
		if nerr := r.notifier.Notify(ctx, fmt.Sprintf("fibermirror refresh failed: %v", err)); nerr != nil {
			log.Error("failure alert not delivered", "error", nerr)
		}
	}
	return err
}
