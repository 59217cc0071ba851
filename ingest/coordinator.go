package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ytcatalog/config"
	"ytcatalog/storage"
)

// Coordinator orchestrates one ingestion run: it owns the advisory lock
// lifecycle on the run-state document and the terminal success/failure
// transition. Run never panics and always returns a RunResult; the external
// trigger contract requires a normal return.
type Coordinator struct {
	newClient ClientFactory
	runs      storage.RunStore
	videos    storage.VideoStore
	cfg       *config.Config
	now       func() time.Time
}

// NewCoordinator wires the pipeline. The client factory runs at the start of
// every run so a missing credential fails fast without touching state.
func NewCoordinator(newClient ClientFactory, runs storage.RunStore, videos storage.VideoStore, cfg *config.Config) *Coordinator {
	return &Coordinator{
		newClient: newClient,
		runs:      runs,
		videos:    videos,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run executes one ingestion pass. Outcomes:
//   - configuration error: returned immediately, no state mutated
//   - fresh lock held elsewhere: Skipped result, no state mutated
//   - zero videos discovered: successful empty result
//   - otherwise: discovered IDs are enriched, tagged, and upserted, and the
//     run state is finalized (complete, resumable, or failed)
func (c *Coordinator) Run(ctx context.Context) RunResult {
	runLog := log.WithFields(log.Fields{
		"run_id":  uuid.NewString(),
		"channel": c.cfg.ChannelID,
	})
	runLog.Info("run: starting")

	client, err := c.newClient(ctx)
	if err != nil {
		runLog.WithError(err).Error("run: platform client init failed")
		return RunResult{Err: err}
	}

	meta, err := c.runs.GetRunMetadata(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			runLog.WithError(err).Error("run: load run metadata failed")
			return RunResult{Err: err}
		}
		meta = storage.NewRunMetadata()
	}

	now := c.now()
	if meta.Locked(now, c.cfg.LockTimeout) {
		runLog.WithField("locked_since", meta.LastFetchedAt).
			Info("run: already in progress, skipping")
		return RunResult{Skipped: true}
	}
	if meta.Stale(now, c.cfg.LockTimeout) {
		runLog.WithField("locked_since", meta.LastFetchedAt).
			Warn("run: overriding stale lock")
	}

	// Take the lock before any network work.
	meta.StartRun(now)
	if err := c.runs.SaveRunMetadata(ctx, meta); err != nil {
		runLog.WithError(err).Error("run: acquire lock failed")
		return RunResult{Err: errors.Wrap(err, "acquire run lock")}
	}

	paginator := NewPaginator(client, c.runs, c.cfg.MaxPages, runLog)
	page, err := paginator.FetchVideoIDs(ctx, meta)
	if err != nil {
		return c.fail(ctx, runLog, meta, err)
	}

	if len(page.VideoIDs) == 0 {
		runLog.Info("run: no videos discovered")
		meta.InProgress = false
		if err := c.runs.SaveRunMetadata(ctx, meta); err != nil {
			runLog.WithError(err).Error("run: release lock failed")
		}
		return RunResult{VideoCount: 0}
	}

	// Playlist aggregation is best-effort and never fails the run.
	tags := NewAggregator(client, runLog).BuildPlaylistMapping(ctx)

	details, err := client.FetchVideoDetails(ctx, page.VideoIDs)
	if err != nil {
		return c.fail(ctx, runLog, meta, err)
	}

	tagged := AttachPlaylistTags(details, tags)

	writer := NewWriter(c.videos, c.cfg.BatchSize, runLog)
	count, err := writer.Save(ctx, tagged)
	if err != nil {
		return c.fail(ctx, runLog, meta, err)
	}

	if page.IsComplete {
		meta.CompleteFetch(c.now())
		runLog.Info("run: pagination drained, complete fetch stamped")
	}
	meta.FinishSuccess()
	if err := c.runs.SaveRunMetadata(ctx, meta); err != nil {
		return c.fail(ctx, runLog, meta, errors.Wrap(err, "finalize run state"))
	}

	runLog.WithFields(log.Fields{
		"videos":   count,
		"complete": page.IsComplete,
	}).Info("run: finished")
	return RunResult{VideoCount: count}
}

// fail releases the lock and records the error, best-effort: a failure of the
// metadata update itself is logged and swallowed so the run still returns
// normally.
func (c *Coordinator) fail(ctx context.Context, runLog *log.Entry, meta *storage.RunMetadata, err error) RunResult {
	runLog.WithError(err).Error("run: failed")
	meta.FinishError(err.Error())
	if saveErr := c.runs.SaveRunMetadata(ctx, meta); saveErr != nil {
		runLog.WithError(saveErr).Error("run: failed to persist error state")
	}
	return RunResult{Err: err}
}

// Status returns the current run-state document, or pristine defaults when
// the pipeline has never run.
func (c *Coordinator) Status(ctx context.Context) (*storage.RunMetadata, error) {
	meta, err := c.runs.GetRunMetadata(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.NewRunMetadata(), nil
		}
		return nil, err
	}
	return meta, nil
}
