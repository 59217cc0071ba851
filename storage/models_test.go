package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRunMetadataLockLifecycle(t *testing.T) {
	timeout := 30 * time.Minute

	m := NewRunMetadata()
	assert.False(t, m.Locked(t0, timeout), "fresh state holds no lock")
	assert.False(t, m.Stale(t0, timeout))

	m.StartRun(t0)
	assert.True(t, m.InProgress)
	assert.Equal(t, t0, m.LastFetchedAt)
	assert.True(t, m.Locked(t0.Add(5*time.Minute), timeout))
	assert.False(t, m.Stale(t0.Add(5*time.Minute), timeout))

	// Past the timeout the lock no longer counts, it is stale instead.
	assert.False(t, m.Locked(t0.Add(31*time.Minute), timeout))
	assert.True(t, m.Stale(t0.Add(31*time.Minute), timeout))

	m.FinishSuccess()
	assert.False(t, m.InProgress)
	assert.Empty(t, m.LastError)
	assert.False(t, m.Locked(t0, timeout))
}

func TestRunMetadataFinishError(t *testing.T) {
	m := NewRunMetadata()
	m.StartRun(t0)
	m.NextPageToken = "tok-7"

	m.FinishError("quota exceeded")

	assert.False(t, m.InProgress)
	assert.Equal(t, "quota exceeded", m.LastError)
	assert.Equal(t, "tok-7", m.NextPageToken, "the resume token survives a failure")
}

func TestRunMetadataFinishSuccessClearsError(t *testing.T) {
	m := &RunMetadata{LastError: "boom"}
	m.StartRun(t0)
	m.FinishSuccess()
	assert.Empty(t, m.LastError)
}

func TestCompleteFetch(t *testing.T) {
	m := NewRunMetadata()
	m.NextPageToken = "tok-3"

	m.CompleteFetch(t0)

	assert.Empty(t, m.NextPageToken)
	assert.Equal(t, t0, m.LastSuccessfulCompleteFetch)
}

func TestNilMetadataIsUnlocked(t *testing.T) {
	var m *RunMetadata
	assert.False(t, m.Locked(t0, time.Minute))
	assert.False(t, m.Stale(t0, time.Minute))
}
