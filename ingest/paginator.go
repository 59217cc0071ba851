package ingest

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ytcatalog/quota"
	"ytcatalog/storage"
)

// PageResult is the outcome of one pagination pass.
type PageResult struct {
	// VideoIDs are the deduplicated IDs discovered across all pages of this
	// pass, newest first.
	VideoIDs []string
	// NextPageToken resumes the search on the next run. Empty when drained.
	NextPageToken string
	// IsComplete is true when pagination drained to its natural end, except
	// for a fresh run that immediately found nothing (the coordinator treats
	// that as the empty-result case, not a completed fetch).
	IsComplete bool
}

// Paginator drives repeated search calls, bounded by a page cap per run, and
// checkpoints the continuation token after every page so a crash loses at
// most one page of progress.
type Paginator struct {
	client   PlatformClient
	runs     storage.RunStore
	maxPages int
	log      *log.Entry
}

// NewPaginator creates a paginator with the given per-run page cap.
func NewPaginator(client PlatformClient, runs storage.RunStore, maxPages int, logger *log.Entry) *Paginator {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Paginator{client: client, runs: runs, maxPages: maxPages, log: logger}
}

// FetchVideoIDs resumes from meta's persisted token and accumulates video IDs
// until the search drains or the page cap is reached. meta is mutated with
// the current token and persisted after every page.
//
// On a quota denial this is the one place outside the coordinator that
// mutates run-level state: the lock is released and the quota message is
// persisted before the error is re-raised, so the coordinator's generic
// failure handling cannot mask it.
func (p *Paginator) FetchVideoIDs(ctx context.Context, meta *storage.RunMetadata) (*PageResult, error) {
	token := meta.NextPageToken
	initial := token == ""
	if initial {
		p.log.Info("pagination: starting initial fetch")
	} else {
		p.log.Info("pagination: resuming from persisted token")
	}

	seen := make(map[string]struct{})
	var ids []string
	pages := 0

	for pages < p.maxPages {
		page, err := p.client.SearchVideos(ctx, token)
		if err != nil {
			if errors.Is(err, quota.ErrExceeded) {
				meta.FinishError(quota.ErrExceeded.Error())
				if saveErr := p.runs.SaveRunMetadata(ctx, meta); saveErr != nil {
					p.log.WithError(saveErr).Error("pagination: failed to persist quota failure state")
				}
			}
			return nil, err
		}

		for _, id := range page.VideoIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		pages++
		token = page.NextPageToken

		// Checkpoint the cursor immediately so a crash mid-pagination loses
		// at most this page, not the whole run.
		meta.NextPageToken = token
		if err := p.runs.SaveRunMetadata(ctx, meta); err != nil {
			return nil, errors.Wrap(err, "persist page token")
		}

		p.log.WithFields(log.Fields{
			"page":    pages,
			"ids":     len(ids),
			"drained": token == "",
		}).Debug("pagination: page processed")

		if token == "" {
			break
		}
	}

	complete := token == "" && !(initial && len(ids) == 0)
	if token != "" {
		p.log.WithField("pages", pages).
			Info("pagination: page cap reached, token persisted for next run")
	}

	return &PageResult{VideoIDs: ids, NextPageToken: token, IsComplete: complete}, nil
}
