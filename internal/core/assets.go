package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"calibtrack/pkg/domain"
)

// NewAsset describes a physical asset to create. Frequency applies to the
// record of View only; the sibling gets its view's default.
type NewAsset struct {
	Name      string
	Code      string
	Weigher   string
	LastCal   string
	Frequency int
	View      domain.View
	OpStatus  domain.OpStatus
	OpNote    string
}

// AssetPatch is a partial update. Nil fields are left untouched.
type AssetPatch struct {
	Name      *string
	Code      *string
	Weigher   *string
	Active    *bool
	LastCal   *string
	Frequency *int
	OpStatus  *domain.OpStatus
	OpNote    *string
}

func (p AssetPatch) edits() []fieldEdit {
	var out []fieldEdit
	add := func(f domain.Field, v string) { out = append(out, fieldEdit{field: f, value: v}) }
	if p.Name != nil {
		add(domain.FieldName, *p.Name)
	}
	if p.Code != nil {
		add(domain.FieldCode, *p.Code)
	}
	if p.Weigher != nil {
		add(domain.FieldWeigher, *p.Weigher)
	}
	if p.Active != nil {
		add(domain.FieldActive, strconv.FormatBool(*p.Active))
	}
	if p.LastCal != nil {
		add(domain.FieldLastCal, *p.LastCal)
	}
	if p.Frequency != nil {
		add(domain.FieldFrequency, strconv.Itoa(*p.Frequency))
	}
	if p.OpStatus != nil {
		add(domain.FieldOpStatus, string(*p.OpStatus))
	}
	if p.OpNote != nil {
		add(domain.FieldOpNote, *p.OpNote)
	}
	return out
}

type fieldEdit struct {
	field domain.Field
	value string
}

// AddAsset creates the service and roller records of a new physical asset
// under one fresh Base ID.
func (s *Store) AddAsset(siteID string, in NewAsset) (domain.MirrorRecord, domain.MirrorRecord, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	in.Weigher = strings.TrimSpace(in.Weigher)
	if in.View == "" {
		in.View = domain.ViewService
	}
	if !in.View.Valid() {
		return domain.MirrorRecord{}, domain.MirrorRecord{}, domain.ErrValidation{Field: "view", Reason: fmt.Sprintf("unknown view %q", in.View)}
	}
	if !in.OpStatus.Valid() {
		return domain.MirrorRecord{}, domain.MirrorRecord{}, domain.ErrValidation{Field: "opStatus", Reason: fmt.Sprintf("unknown status %q", in.OpStatus)}
	}
	base := s.newID()
	build := func(view domain.View) domain.MirrorRecord {
		freq := domain.DefaultFrequency(view)
		if view == in.View && in.Frequency > 0 {
			freq = in.Frequency
		}
		rec := domain.MirrorRecord{
			ID:              domain.RecordID(view, base),
			PhysicalAssetID: base,
			View:            view,
			Name:            in.Name,
			Code:            in.Code,
			Weigher:         in.Weigher,
			Active:          true,
			LastCal:         in.LastCal,
			Frequency:       freq,
			History:         []domain.HistoryEntry{},
			Reports:         []domain.Report{},
		}
		if view == in.View {
			rec.OpStatus = in.OpStatus
			rec.OpNote = in.OpNote
		}
		return rec
	}
	service, roller := build(domain.ViewService), build(domain.ViewRoller)
	if in.Frequency < 0 {
		return domain.MirrorRecord{}, domain.MirrorRecord{}, domain.ErrValidation{Field: "frequency", Reason: "must be >= 1"}
	}
	for _, rec := range []domain.MirrorRecord{service, roller} {
		if err := s.check(rec); err != nil {
			return domain.MirrorRecord{}, domain.MirrorRecord{}, err
		}
	}
	_, err := s.mutate(siteID, "Add asset "+in.Name, func(site *domain.Site, now time.Time) error {
		for _, rec := range []*domain.MirrorRecord{&service, &roller} {
			rec.History = append(rec.History, s.entry("Asset Created", now))
			*rec = domain.Recalculate(*rec, now)
		}
		site.ServiceData = append(site.ServiceData, domain.CloneRecord(service))
		site.RollerData = append(site.RollerData, domain.CloneRecord(roller))
		return nil
	})
	if err != nil {
		return domain.MirrorRecord{}, domain.MirrorRecord{}, err
	}
	return service, roller, nil
}

// EditAssetField sets one field of a record. Synced fields are copied to the
// sibling record with a "(synced)" history entry; schedule fields are
// recalculated. Derived fields are rejected.
func (s *Store) EditAssetField(siteID, recordID string, field domain.Field, value string) (domain.MirrorRecord, error) {
	return s.editRecord(siteID, recordID, fmt.Sprintf("Edit %s", field), []fieldEdit{{field: field, value: value}})
}

// UpdateAsset applies a patch as one journal action.
func (s *Store) UpdateAsset(siteID, recordID string, patch AssetPatch) (domain.MirrorRecord, error) {
	edits := patch.edits()
	if len(edits) == 0 {
		return domain.MirrorRecord{}, domain.ErrValidation{Reason: "empty asset patch"}
	}
	return s.editRecord(siteID, recordID, "Update asset", edits)
}

func (s *Store) editRecord(siteID, recordID, description string, edits []fieldEdit) (domain.MirrorRecord, error) {
	var updated domain.MirrorRecord
	_, err := s.mutate(siteID, description, func(site *domain.Site, now time.Time) error {
		rec, ok := site.FindRecord(recordID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityAsset, ID: recordID}
		}
		for _, e := range edits {
			if err := s.applyEdit(site, rec, e.field, e.value, now); err != nil {
				return err
			}
		}
		updated = domain.CloneRecord(*rec)
		return nil
	})
	if err != nil {
		return domain.MirrorRecord{}, err
	}
	return updated, nil
}

func (s *Store) applyEdit(site *domain.Site, rec *domain.MirrorRecord, f domain.Field, value string, now time.Time) error {
	if f == domain.FieldName || f == domain.FieldCode || f == domain.FieldWeigher {
		value = strings.TrimSpace(value)
	}
	if err := domain.SetField(rec, f, value); err != nil {
		return err
	}
	rec.History = append(rec.History, s.entry(fmt.Sprintf("%s changed to %s", f, value), now))
	*rec = domain.Recalculate(*rec, now)
	if !domain.Propagates(f) {
		return nil
	}
	sib, ok := domain.FindSibling(site, *rec)
	if !ok {
		s.log.Warn().Str("site_id", site.ID).Str("record_id", rec.ID).Str("field", string(f)).Msg("no mirror record to sync")
		return nil
	}
	domain.CopySynced(sib, *rec)
	sib.History = append(sib.History, s.entry(fmt.Sprintf("%s changed to %s (synced)", f, value), now))
	return nil
}

// SetAssetActive archives or restores both records of a physical asset,
// appending one history entry to each.
func (s *Store) SetAssetActive(siteID, recordID string, active bool) (domain.MirrorRecord, error) {
	action := "Asset Restored"
	if !active {
		action = "Asset Archived"
	}
	var updated domain.MirrorRecord
	_, err := s.mutate(siteID, action, func(site *domain.Site, now time.Time) error {
		rec, ok := site.FindRecord(recordID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityAsset, ID: recordID}
		}
		rec.Active = active
		rec.History = append(rec.History, s.entry(action, now))
		if sib, ok := domain.FindSibling(site, *rec); ok {
			sib.Active = active
			sib.History = append(sib.History, s.entry(action, now))
		} else {
			s.log.Warn().Str("site_id", site.ID).Str("record_id", rec.ID).Msg("no mirror record to archive")
		}
		updated = domain.CloneRecord(*rec)
		return nil
	})
	if err != nil {
		return domain.MirrorRecord{}, err
	}
	return updated, nil
}

// DeleteAsset removes a record and its sibling.
func (s *Store) DeleteAsset(siteID, recordID string) (domain.MirrorRecord, error) {
	var removed domain.MirrorRecord
	_, err := s.mutate(siteID, "Delete asset", func(site *domain.Site, _ time.Time) error {
		rec, ok := site.FindRecord(recordID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityAsset, ID: recordID}
		}
		removed = domain.CloneRecord(*rec)
		for _, view := range domain.Views {
			list := site.Records(view)
			kept := (*list)[:0]
			for _, r := range *list {
				if r.ID == removed.ID {
					continue
				}
				if removed.PhysicalAssetID != "" && r.PhysicalAssetID == removed.PhysicalAssetID {
					continue
				}
				kept = append(kept, r)
			}
			*list = kept
		}
		return nil
	})
	if err != nil {
		return domain.MirrorRecord{}, err
	}
	return removed, nil
}
