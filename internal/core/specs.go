package core

import (
	"strings"
	"time"

	"calibtrack/pkg/domain"
)

// SaveSpecification creates a specification (unknown or empty ID) or updates
// an existing one. Notes are managed separately and kept on update.
func (s *Store) SaveSpecification(siteID string, spec domain.Specification) (domain.Specification, error) {
	spec.Weigher = strings.TrimSpace(spec.Weigher)
	spec.AltCode = strings.TrimSpace(spec.AltCode)
	if spec.Weigher == "" && spec.AltCode == "" {
		return domain.Specification{}, domain.ErrValidation{Field: "weigher", Reason: "weigher or altCode required"}
	}
	if spec.NumberOfLoadCells < 0 {
		return domain.Specification{}, domain.ErrValidation{Field: "numberOfLoadCells", Reason: "must be >= 0"}
	}
	var saved domain.Specification
	_, err := s.mutate(siteID, "Save specification "+specLabel(spec), func(site *domain.Site, now time.Time) error {
		if spec.ID != "" {
			if existing, ok := site.FindSpecification(spec.ID); ok {
				updated := domain.CloneSpecification(spec)
				updated.Notes = existing.Notes
				updated.History = append(existing.History, s.entry("Specification Updated", now))
				*existing = updated
				saved = domain.CloneSpecification(updated)
				return nil
			}
		} else {
			spec.ID = s.newID()
		}
		created := domain.CloneSpecification(spec)
		created.Notes = []domain.Note{}
		created.History = []domain.HistoryEntry{s.entry("Specification Created", now)}
		site.SpecData = append(site.SpecData, created)
		saved = domain.CloneSpecification(created)
		return nil
	})
	if err != nil {
		return domain.Specification{}, err
	}
	return saved, nil
}

func specLabel(spec domain.Specification) string {
	if spec.Weigher != "" {
		return spec.Weigher
	}
	return spec.AltCode
}

// DeleteSpecification removes a specification and its notes.
func (s *Store) DeleteSpecification(siteID, specID string) error {
	_, err := s.mutate(siteID, "Delete specification", func(site *domain.Site, _ time.Time) error {
		for i := range site.SpecData {
			if site.SpecData[i].ID == specID {
				site.SpecData = append(site.SpecData[:i], site.SpecData[i+1:]...)
				return nil
			}
		}
		return domain.ErrNotFound{Entity: domain.EntitySpecification, ID: specID}
	})
	return err
}

// AddSpecNote appends a note to a specification.
func (s *Store) AddSpecNote(siteID, specID, content, author string) (domain.Note, error) {
	note, err := s.newNote(domain.SpecNoteParent(specID), content, author)
	if err != nil {
		return domain.Note{}, err
	}
	_, err = s.mutate(siteID, "Add specification note", func(site *domain.Site, now time.Time) error {
		spec, ok := site.FindSpecification(specID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntitySpecification, ID: specID}
		}
		note.Timestamp = now
		spec.Notes = append(spec.Notes, note)
		return nil
	})
	if err != nil {
		return domain.Note{}, err
	}
	return note, nil
}

// EditSpecNote replaces the content of a specification note.
func (s *Store) EditSpecNote(siteID, specID, noteID, content string) (domain.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Note{}, domain.ErrValidation{Field: "content", Reason: "required"}
	}
	var edited domain.Note
	_, err := s.mutate(siteID, "Edit specification note", func(site *domain.Site, _ time.Time) error {
		spec, ok := site.FindSpecification(specID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntitySpecification, ID: specID}
		}
		n, ok := findNote(spec.Notes, noteID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityNote, ID: noteID}
		}
		n.Content = content
		edited = *n
		return nil
	})
	if err != nil {
		return domain.Note{}, err
	}
	return edited, nil
}

// DeleteSpecNote removes a specification note.
func (s *Store) DeleteSpecNote(siteID, specID, noteID string) error {
	_, err := s.mutate(siteID, "Delete specification note", func(site *domain.Site, _ time.Time) error {
		spec, ok := site.FindSpecification(specID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntitySpecification, ID: specID}
		}
		notes, ok := removeNote(spec.Notes, noteID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityNote, ID: noteID}
		}
		spec.Notes = notes
		return nil
	})
	return err
}

// AddSiteNote appends a note to a site.
func (s *Store) AddSiteNote(siteID, content, author string) (domain.Note, error) {
	note, err := s.newNote(domain.SiteNoteParent(siteID), content, author)
	if err != nil {
		return domain.Note{}, err
	}
	_, err = s.mutate(siteID, "Add site note", func(site *domain.Site, now time.Time) error {
		note.Timestamp = now
		site.Notes = append(site.Notes, note)
		return nil
	})
	if err != nil {
		return domain.Note{}, err
	}
	return note, nil
}

// SetSiteNoteArchived soft-deletes or restores a site note.
func (s *Store) SetSiteNoteArchived(siteID, noteID string, archived bool) (domain.Note, error) {
	desc := "Restore site note"
	if archived {
		desc = "Archive site note"
	}
	var updated domain.Note
	_, err := s.mutate(siteID, desc, func(site *domain.Site, _ time.Time) error {
		n, ok := findNote(site.Notes, noteID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityNote, ID: noteID}
		}
		n.Archived = archived
		updated = *n
		return nil
	})
	if err != nil {
		return domain.Note{}, err
	}
	return updated, nil
}

// DeleteSiteNote removes a site note.
func (s *Store) DeleteSiteNote(siteID, noteID string) error {
	_, err := s.mutate(siteID, "Delete site note", func(site *domain.Site, _ time.Time) error {
		notes, ok := removeNote(site.Notes, noteID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityNote, ID: noteID}
		}
		site.Notes = notes
		return nil
	})
	return err
}

func (s *Store) newNote(parent domain.NoteParent, content, author string) (domain.Note, error) {
	if author == "" {
		author = s.user
	}
	note := domain.Note{
		ID:      s.newID(),
		Parent:  parent,
		Content: strings.TrimSpace(content),
		Author:  author,
	}
	if err := s.check(note); err != nil {
		return domain.Note{}, err
	}
	return note, nil
}

func findNote(notes []domain.Note, id string) (*domain.Note, bool) {
	for i := range notes {
		if notes[i].ID == id {
			return &notes[i], true
		}
	}
	return nil, false
}

func removeNote(notes []domain.Note, id string) ([]domain.Note, bool) {
	for i := range notes {
		if notes[i].ID == id {
			return append(notes[:i], notes[i+1:]...), true
		}
	}
	return notes, false
}
