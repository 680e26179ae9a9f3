package models

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Note is a free-text entry on a day.
type Note struct {
	ID   ID     `json:"id"`
	Text string `json:"text"`
}

// NewNote builds a note with trimmed text.
func NewNote(id ID, text string) Note {
	return Note{ID: id, Text: strings.TrimSpace(text)}
}

func (n Note) RecordID() ID  { return n.ID }
func (n Note) Kind() Kind    { return KindNote }
func (n Note) Amount() Money { return 0 }
func (Note) isRecord()       {}

// Validate rejects notes whose text is empty after trimming.
func (n Note) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Text, notBlank),
	)
}
