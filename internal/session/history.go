package session

import (
	"database/sql"
	"sort"

	"github.com/tkoide/kwprobe/internal/db"
	"github.com/tkoide/kwprobe/internal/errors"
)

// LoadHistory returns all persisted sessions, newest first. A missing or
// corrupt history blob yields an empty list.
func LoadHistory(database *sql.DB) ([]Session, error) {
	var sessions []Session
	if _, err := db.GetJSON(database, db.KeySessionHistory, &sessions); err != nil {
		return nil, errors.NewStorage(err)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

// AppendSession adds a session to the front of the history.
func AppendSession(database *sql.DB, s Session) error {
	sessions, err := LoadHistory(database)
	if err != nil {
		return err
	}
	sessions = append([]Session{s}, sessions...)
	if err := db.PutJSON(database, db.KeySessionHistory, sessions); err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

// GetSession returns the session with the given id.
func GetSession(database *sql.DB, id int64) (*Session, error) {
	sessions, err := LoadHistory(database)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == id {
			return &sessions[i], nil
		}
	}
	return nil, errors.NewNotFound("session", id)
}

// DeleteSession removes the session with the given id from the history.
func DeleteSession(database *sql.DB, id int64) error {
	sessions, err := LoadHistory(database)
	if err != nil {
		return err
	}
	kept := sessions[:0]
	for _, s := range sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(sessions) {
		return errors.NewNotFound("session", id)
	}
	if err := db.PutJSON(database, db.KeySessionHistory, kept); err != nil {
		return errors.NewStorage(err)
	}
	return nil
}
