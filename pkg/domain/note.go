package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ParentKind discriminates the owner of a note.
type ParentKind string

// Note parent kinds. These values are also the parent_type column contents.
const (
	ParentSite          ParentKind = "site"
	ParentSpecification ParentKind = "specification"
)

// NoteParent is a closed union of the entities a note can hang off. The zero
// value is invalid; build one with SiteNoteParent or SpecNoteParent.
type NoteParent struct {
	kind ParentKind
	id   string
}

// SiteNoteParent attaches a note to a site.
func SiteNoteParent(siteID string) NoteParent {
	return NoteParent{kind: ParentSite, id: siteID}
}

// SpecNoteParent attaches a note to a specification.
func SpecNoteParent(specID string) NoteParent {
	return NoteParent{kind: ParentSpecification, id: specID}
}

// ParseNoteParent rebuilds a parent from its stored kind and id.
func ParseNoteParent(kind, id string) (NoteParent, error) {
	switch ParentKind(kind) {
	case ParentSite:
		return SiteNoteParent(id), nil
	case ParentSpecification:
		return SpecNoteParent(id), nil
	default:
		return NoteParent{}, fmt.Errorf("unknown note parent type %q", kind)
	}
}

// Kind returns the parent discriminator.
func (p NoteParent) Kind() ParentKind { return p.kind }

// ID returns the parent entity id.
func (p NoteParent) ID() string { return p.id }

// IsZero reports whether the parent was never set.
func (p NoteParent) IsZero() bool { return p.kind == "" }

type noteParentJSON struct {
	Type ParentKind `json:"type"`
	ID   string     `json:"id"`
}

// MarshalJSON encodes the parent as {"type","id"}.
func (p NoteParent) MarshalJSON() ([]byte, error) {
	return json.Marshal(noteParentJSON{Type: p.kind, ID: p.id})
}

// UnmarshalJSON rejects unknown parent kinds.
func (p *NoteParent) UnmarshalJSON(data []byte) error {
	var aux noteParentJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Type == "" {
		*p = NoteParent{}
		return nil
	}
	parsed, err := ParseNoteParent(string(aux.Type), aux.ID)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Note is an annotation on a site or a specification. Archived is a soft
// delete and only applies to site notes.
type Note struct {
	ID        string     `json:"id"`
	Parent    NoteParent `json:"parent"`
	Content   string     `json:"content" validate:"required"`
	Author    string     `json:"author"`
	Timestamp time.Time  `json:"timestamp"`
	Archived  bool       `json:"archived,omitempty"`
}
