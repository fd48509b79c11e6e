package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Note length limits.
const (
	MaxNoteTitleLength   = 255
	MaxNoteContentLength = 10000
)

// Note is a text note owned by exactly one user.
type Note struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fields a note listing can be ordered by, named as in the JSON form.
const (
	NoteSortCreatedAt = "createdAt"
	NoteSortUpdatedAt = "updatedAt"
	NoteSortTitle     = "title"
)

// ErrInvalidNoteSort is returned for an unknown sort field or direction.
var ErrInvalidNoteSort = errors.New("invalid note sort")

// NoteSort orders a listing of notes.
type NoteSort struct {
	Field string
	Desc  bool
}

// DefaultNoteSort lists the newest notes first.
func DefaultNoteSort() NoteSort {
	return NoteSort{Field: NoteSortCreatedAt, Desc: true}
}

// ParseNoteSort reads a sortBy field and a sortDir of "asc" or "desc". Empty
// values keep the defaults and the direction is matched case-insensitively.
func ParseNoteSort(field, dir string) (NoteSort, error) {
	s := DefaultNoteSort()

	switch field {
	case "":
	case NoteSortCreatedAt, NoteSortUpdatedAt, NoteSortTitle:
		s.Field = field
	default:
		return NoteSort{}, fmt.Errorf("%w: unknown sortBy %q", ErrInvalidNoteSort, field)
	}

	switch {
	case dir == "", strings.EqualFold(dir, "desc"):
	case strings.EqualFold(dir, "asc"):
		s.Desc = false
	default:
		return NoteSort{}, fmt.Errorf("%w: sortDir must be asc or desc, got %q", ErrInvalidNoteSort, dir)
	}

	return s, nil
}
