package domain

import "time"

// NormalizeSite repairs a site read from storage or an import: nil
// collections become empty, records written before PhysicalAssetID and View
// existed get them from their legacy key, note parents are filled in, and
// every schedule is recalculated against now.
func NormalizeSite(site Site, now time.Time) Site {
	out := CloneSite(site)
	normalizeRecords(out.ServiceData, ViewService, now)
	normalizeRecords(out.RollerData, ViewRoller, now)
	for i := range out.SpecData {
		spec := &out.SpecData[i]
		for j := range spec.Notes {
			if spec.Notes[j].Parent.IsZero() {
				spec.Notes[j].Parent = SpecNoteParent(spec.ID)
			}
		}
	}
	for i := range out.Notes {
		if out.Notes[i].Parent.IsZero() {
			out.Notes[i].Parent = SiteNoteParent(out.ID)
		}
	}
	for i := range out.Issues {
		if out.Issues[i].Status == "" {
			out.Issues[i].Status = IssueOpen
		}
	}
	return out
}

func normalizeRecords(records []MirrorRecord, view View, now time.Time) {
	for i := range records {
		rec := &records[i]
		if !rec.View.Valid() {
			rec.View = view
		}
		if rec.PhysicalAssetID == "" {
			if legacyView, base, ok := legacyIdentity(rec.ID); ok && legacyView == rec.View {
				rec.PhysicalAssetID = base
			}
		}
		*rec = Recalculate(*rec, now)
	}
}
