// Package quota enforces the rolling daily budget on model calls. Usage
// is a persisted list of call timestamps; a call is in budget while fewer
// than the limit fall inside the trailing 24 hours.
package quota

import (
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tkoide/kwprobe/internal/db"
)

// Window is the trailing period over which calls are counted.
const Window = 24 * time.Hour

// Limiter is a mutex-guarded check-and-increment gate over the persisted
// timestamp list. Trials for all prompts hit it concurrently; the lock
// makes the read-check-append-write sequence atomic so parallel trials
// cannot both claim the last slot.
type Limiter struct {
	mu    sync.Mutex
	sqlDB *sql.DB
	limit int
	now   func() time.Time
	log   zerolog.Logger
}

// New returns a limiter backed by the blob store.
func New(sqlDB *sql.DB, limit int, log zerolog.Logger) *Limiter {
	return &Limiter{
		sqlDB: sqlDB,
		limit: limit,
		now:   time.Now,
		log:   log,
	}
}

// Limit reports the configured budget.
func (l *Limiter) Limit() int {
	return l.limit
}

// CheckAndIncrement records one call attempt. It returns false without
// recording when the window is already full.
func (l *Limiter) CheckAndIncrement() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamps, err := l.load()
	if err != nil {
		return false, err
	}
	if len(stamps) >= l.limit {
		return false, nil
	}

	stamps = append(stamps, l.now().UnixMilli())
	if err := db.PutJSON(l.sqlDB, db.KeyUsageTimestamps, stamps); err != nil {
		return false, err
	}
	return true, nil
}

// Remaining reports how many calls are left in the current window.
func (l *Limiter) Remaining() (int, error) {
	count, err := l.Count()
	if err != nil {
		return 0, err
	}
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Count reports how many calls were made inside the current window.
func (l *Limiter) Count() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamps, err := l.load()
	if err != nil {
		return 0, err
	}
	return len(stamps), nil
}

// load reads the timestamp list and prunes entries that have aged out of
// the window. A missing or corrupt blob counts as empty.
func (l *Limiter) load() ([]int64, error) {
	var stamps []int64
	found, err := db.GetJSON(l.sqlDB, db.KeyUsageTimestamps, &stamps)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	cutoff := l.now().Add(-Window).UnixMilli()
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	if len(kept) < len(stamps) {
		l.log.Debug().Int("expired", len(stamps)-len(kept)).Msg("pruned usage timestamps")
	}
	return kept, nil
}
