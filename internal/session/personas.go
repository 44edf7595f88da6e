package session

import (
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tkoide/kwprobe/internal/db"
	"github.com/tkoide/kwprobe/internal/errors"
)

// ListPersonas returns the default personas followed by all custom ones.
func ListPersonas(database *sql.DB) ([]Persona, error) {
	custom, err := loadCustom(database)
	if err != nil {
		return nil, err
	}
	return append(DefaultPersonas(), custom...), nil
}

// GetPersona returns the persona with the given id, default or custom.
func GetPersona(database *sql.DB, id string) (*Persona, error) {
	personas, err := ListPersonas(database)
	if err != nil {
		return nil, err
	}
	for i := range personas {
		if personas[i].ID == id {
			return &personas[i], nil
		}
	}
	return nil, errors.NewNotFound("persona", id)
}

// SavePersona creates or updates a custom persona. Names are matched
// case-insensitively: saving under an existing custom persona's name
// replaces its content and keeps its id. Default persona names are
// reserved.
func SavePersona(database *sql.DB, name, content string) (*Persona, error) {
	name = strings.TrimSpace(name)
	content = strings.TrimSpace(content)
	if name == "" {
		return nil, errors.NewInvalidRequest("persona name is required")
	}
	if content == "" {
		return nil, errors.NewInvalidRequest("persona content is required")
	}
	for _, d := range DefaultPersonas() {
		if strings.EqualFold(d.Name, name) {
			return nil, errors.NewInvalidRequest("cannot overwrite a default persona")
		}
	}

	custom, err := loadCustom(database)
	if err != nil {
		return nil, err
	}

	var saved *Persona
	for i := range custom {
		if strings.EqualFold(custom[i].Name, name) {
			custom[i].Name = name
			custom[i].Content = content
			saved = &custom[i]
			break
		}
	}
	if saved == nil {
		custom = append(custom, Persona{
			ID:      NewID(),
			Name:    name,
			Content: content,
		})
		saved = &custom[len(custom)-1]
	}

	if err := db.PutJSON(database, db.KeyCustomPersonas, custom); err != nil {
		return nil, errors.NewStorage(err)
	}
	return saved, nil
}

// DeletePersona removes a custom persona. Defaults cannot be deleted.
func DeletePersona(database *sql.DB, id string) error {
	for _, d := range DefaultPersonas() {
		if d.ID == id {
			return errors.NewInvalidRequest("cannot delete a default persona")
		}
	}

	custom, err := loadCustom(database)
	if err != nil {
		return err
	}
	kept := custom[:0]
	for _, p := range custom {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(custom) {
		return errors.NewNotFound("persona", id)
	}
	if err := db.PutJSON(database, db.KeyCustomPersonas, kept); err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

func loadCustom(database *sql.DB) ([]Persona, error) {
	var custom []Persona
	if _, err := db.GetJSON(database, db.KeyCustomPersonas, &custom); err != nil {
		return nil, errors.NewStorage(err)
	}
	return custom, nil
}

// NewID generates a ULID, used for custom persona and prompt ids.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
