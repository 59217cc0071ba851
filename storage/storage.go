// Package storage defines the persisted models for catalog ingestion and the
// store interfaces the pipeline writes through, with a MongoDB implementation.
package storage

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// RunStore persists the singleton run-state document.
type RunStore interface {
	// GetRunMetadata loads the run-state document. Returns ErrNotFound when
	// the pipeline has never run.
	GetRunMetadata(ctx context.Context) (*RunMetadata, error)
	// SaveRunMetadata upserts the run-state document.
	SaveRunMetadata(ctx context.Context, m *RunMetadata) error
}

// VideoStore persists catalog entries with merge-upsert semantics: a write
// creates the document if absent or updates only the specified fields,
// leaving unspecified fields untouched.
type VideoStore interface {
	// ExistingIDs reports which of the given video IDs already have
	// documents in the store.
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	// CommitBatch merge-upserts one batch of queued documents in a single
	// bulk write. Callers bound the batch size.
	CommitBatch(ctx context.Context, docs []VideoDoc) error
}
