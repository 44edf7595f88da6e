package session

import (
	"database/sql"
	"sort"
	"time"

	"github.com/tkoide/kwprobe/internal/db"
	"github.com/tkoide/kwprobe/internal/errors"
)

// SelectForReport loads the sessions named by ids for a multi-session
// comparison. Between 2 and 3 sessions are required, and all must share
// the same keyword.
func SelectForReport(database *sql.DB, ids []int64) ([]Session, error) {
	if len(ids) < 2 || len(ids) > 3 {
		return nil, errors.NewInvalidRequest("select 2 or 3 sessions to compare")
	}

	sessions := make([]Session, 0, len(ids))
	for _, id := range ids {
		s, err := GetSession(database, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}

	kw := sessions[0].Keyword
	for _, s := range sessions[1:] {
		if s.Keyword != kw {
			return nil, errors.NewKeywordMismatch()
		}
	}
	return sessions, nil
}

// RecordMultiAnalysis appends a comparison record to the multi-analysis
// history.
func RecordMultiAnalysis(database *sql.DB, sessions []Session) (MultiAnalysis, error) {
	now := time.Now()
	rec := MultiAnalysis{
		ID:        now.UnixMilli(),
		Timestamp: now.Format(timestampLayout),
		Keyword:   sessions[0].Keyword,
	}
	for _, s := range sessions {
		rec.SessionIDs = append(rec.SessionIDs, s.ID)
	}

	history, err := LoadMultiAnalyses(database)
	if err != nil {
		return MultiAnalysis{}, err
	}
	history = append([]MultiAnalysis{rec}, history...)
	if err := db.PutJSON(database, db.KeyMultiAnalyses, history); err != nil {
		return MultiAnalysis{}, errors.NewStorage(err)
	}
	return rec, nil
}

// LoadMultiAnalyses returns all comparison records, newest first.
func LoadMultiAnalyses(database *sql.DB) ([]MultiAnalysis, error) {
	var history []MultiAnalysis
	if _, err := db.GetJSON(database, db.KeyMultiAnalyses, &history); err != nil {
		return nil, errors.NewStorage(err)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].ID > history[j].ID
	})
	return history, nil
}

// GetMultiAnalysis resolves a comparison record's sessions by id. Sessions
// deleted since the record was made are reported, not silently skipped.
func GetMultiAnalysis(database *sql.DB, id int64) (*MultiAnalysis, []Session, error) {
	history, err := LoadMultiAnalyses(database)
	if err != nil {
		return nil, nil, err
	}
	for i := range history {
		if history[i].ID != id {
			continue
		}
		sessions := make([]Session, 0, len(history[i].SessionIDs))
		for _, sid := range history[i].SessionIDs {
			s, err := GetSession(database, sid)
			if err != nil {
				return nil, nil, err
			}
			sessions = append(sessions, *s)
		}
		return &history[i], sessions, nil
	}
	return nil, nil, errors.NewNotFound("analysis", id)
}

// DeleteMultiAnalysis removes a comparison record by id.
func DeleteMultiAnalysis(database *sql.DB, id int64) error {
	history, err := LoadMultiAnalyses(database)
	if err != nil {
		return err
	}
	kept := history[:0]
	for _, rec := range history {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(history) {
		return errors.NewNotFound("analysis", id)
	}
	if err := db.PutJSON(database, db.KeyMultiAnalyses, kept); err != nil {
		return errors.NewStorage(err)
	}
	return nil
}
