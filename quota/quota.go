// Package quota tracks consumption of the YouTube Data API's daily quota
// budget using cost-weighted operation kinds.
package quota

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrExceeded is the typed signal that an operation was denied because the
// remaining budget cannot cover it, or the platform rejected a call for
// quota reasons. Callers detect it with errors.Is instead of matching
// message text.
var ErrExceeded = errors.New("quota exceeded")

// Operation identifies a quota-costed API operation kind.
type Operation string

const (
	// OpSearch is search.list. By far the most expensive read.
	OpSearch Operation = "search.list"
	// OpVideosList is videos.list, one unit per call regardless of part count.
	OpVideosList Operation = "videos.list"
	// OpPlaylistsList is playlists.list.
	OpPlaylistsList Operation = "playlists.list"
	// OpPlaylistItems is playlistItems.list.
	OpPlaylistItems Operation = "playlistItems.list"
)

// Costs maps each operation kind to its quota unit cost per call,
// per the published YouTube Data API quota table.
var Costs = map[Operation]int{
	OpSearch:        100,
	OpVideosList:    1,
	OpPlaylistsList: 1,
	OpPlaylistItems: 1,
}

// Cost returns the unit cost of op, or 0 for unknown operations.
func Cost(op Operation) int {
	return Costs[op]
}

// Plan is the result of asking the monitor how to cover a workload when the
// preferred operation mix does not fit the remaining budget.
type Plan struct {
	// Feasible reports whether the remaining budget can cover the workload
	// with the listed operations.
	Feasible bool
	// Alternatives lists the operation kinds, cheapest first, that the
	// caller should use instead of its preferred mix.
	Alternatives []Operation
}

// Monitor answers whether an operation fits the remaining budget and records
// consumption after successful calls. Implementations must be safe for
// concurrent use.
type Monitor interface {
	// CanExecute reports whether multiplier calls of op fit the remaining
	// budget without dipping into the reserve.
	CanExecute(op Operation, multiplier int) bool
	// RecordUsage deducts multiplier calls of op from the remaining budget.
	RecordUsage(op Operation, multiplier int)
	// LogUsage emits an observability-only record of actual spend.
	LogUsage(op Operation, cost int, context string)
	// SuggestPlan reports whether itemCount items can still be covered by
	// cheaper operations when the preferred mix was denied.
	SuggestPlan(itemCount int) Plan
}

// Ledger is an in-process Monitor keeping a daily-reset running total of
// quota spend, with an optional reserve floor and per-second pacing.
type Ledger struct {
	mu         sync.Mutex
	dailyLimit int
	reserve    int
	chunkSize  int
	used       int
	resetAt    time.Time
	limiter    *rate.Limiter
}

// NewLedger creates a ledger with the given daily budget and reserve.
// chunkSize is the number of items covered by one unit-cost list call, so
// plan feasibility matches how callers actually chunk; values outside 1..50
// fall back to the API cap of 50. Pacing defaults to one request per second
// with a small burst, conservative for the Data API's per-second limits.
func NewLedger(dailyLimit, reserve, chunkSize int) *Ledger {
	if chunkSize <= 0 || chunkSize > 50 {
		chunkSize = 50
	}
	return &Ledger{
		dailyLimit: dailyLimit,
		reserve:    reserve,
		chunkSize:  chunkSize,
		resetAt:    nextMidnightPacific(time.Now()),
		limiter:    rate.NewLimiter(rate.Limit(1), 5),
	}
}

// nextMidnightPacific returns the next quota reset boundary. YouTube resets
// quota at midnight Pacific; fall back to UTC if the zone is unavailable.
func nextMidnightPacific(now time.Time) time.Time {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		loc = time.UTC
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}

// maybeReset rolls the ledger over when the reset boundary has passed.
// Callers must hold l.mu.
func (l *Ledger) maybeReset(now time.Time) {
	if now.Before(l.resetAt) {
		return
	}
	log.WithFields(log.Fields{"used": l.used, "limit": l.dailyLimit}).
		Info("quota: daily reset")
	l.used = 0
	l.resetAt = nextMidnightPacific(now)
}

// Remaining returns the number of unspent units above the reserve.
func (l *Ledger) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maybeReset(time.Now())
	return l.dailyLimit - l.reserve - l.used
}

// CanExecute reports whether multiplier calls of op fit the remaining budget.
func (l *Ledger) CanExecute(op Operation, multiplier int) bool {
	if multiplier <= 0 {
		multiplier = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maybeReset(time.Now())
	return l.used+Cost(op)*multiplier <= l.dailyLimit-l.reserve
}

// RecordUsage deducts multiplier calls of op from the budget.
func (l *Ledger) RecordUsage(op Operation, multiplier int) {
	if multiplier <= 0 {
		multiplier = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maybeReset(time.Now())
	l.used += Cost(op) * multiplier
	if l.used > l.dailyLimit-l.reserve {
		log.WithFields(log.Fields{
			"op":        op,
			"used":      l.used,
			"remaining": l.dailyLimit - l.used,
		}).Warn("quota: budget exhausted")
	}
}

// LogUsage emits a structured record of actual spend. It does not mutate the
// ledger; callers pair it with RecordUsage at each call site.
func (l *Ledger) LogUsage(op Operation, cost int, context string) {
	l.mu.Lock()
	remaining := l.dailyLimit - l.used
	l.mu.Unlock()
	log.WithFields(log.Fields{
		"op":        op,
		"cost":      cost,
		"context":   context,
		"remaining": remaining,
	}).Debug("quota: usage")
}

// SuggestPlan reports whether itemCount items can still be fetched using only
// unit-cost list operations when a pre-check with a larger mix was denied.
func (l *Ledger) SuggestPlan(itemCount int) Plan {
	if itemCount <= 0 {
		return Plan{Feasible: true}
	}
	calls := (itemCount + l.chunkSize - 1) / l.chunkSize
	if l.CanExecute(OpVideosList, calls) {
		return Plan{Feasible: true, Alternatives: []Operation{OpVideosList, OpPlaylistItems}}
	}
	return Plan{Feasible: false}
}

// Wait blocks until per-second pacing allows another request, or until ctx is
// done. Pacing is separate from the daily budget.
func (l *Ledger) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
